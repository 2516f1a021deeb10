package game

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const updateRetries = 10

// Store persists game records in Redis. Each game lives under game:<id> as a
// JSON value with a TTL; games:user:<id> sets index games per participant.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// NewClient dials Redis from a redis:// URL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func gameKey(id string) string { return "game:" + strings.TrimSpace(id) }

func userIdxKey(user string) string { return "games:user:" + strings.TrimSpace(user) }

// Save writes the full record and both participant index entries in one
// transaction, so a partially indexed record cannot exist.
func (s *Store) Save(ctx context.Context, g *Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, gameKey(g.ID), raw, s.ttl)
	for _, user := range []string{g.WhiteID, g.BlackID} {
		if strings.TrimSpace(user) == "" {
			continue
		}
		pipe.SAdd(ctx, userIdxKey(user), g.ID)
		pipe.Expire(ctx, userIdxKey(user), s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the game or (nil, nil) when the record does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Game, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteIf removes the record and both index entries when fn accepts the
// current snapshot. Check and delete run under the same WATCH as Update, so
// a transition committed between read and delete aborts the transaction and
// the check reruns against the fresh record. Used on invite decline.
func (s *Store) DeleteIf(ctx context.Context, id string, fn func(*Game) error) (*Game, error) {
	key := gameKey(id)
	var out *Game
	for attempt := 0; attempt < updateRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var cur Game
			if err := json.Unmarshal(raw, &cur); err != nil {
				return err
			}
			if err := fn(&cur); err != nil {
				return err
			}
			pipe := tx.TxPipeline()
			pipe.Del(ctx, key)
			pipe.SRem(ctx, userIdxKey(cur.WhiteID), cur.ID)
			pipe.SRem(ctx, userIdxKey(cur.BlackID), cur.ID)
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			out = &cur
			return nil
		}, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("game %s: too many concurrent updates", id)
}

// Update applies fn to the current record under a WATCH transaction so that
// concurrent mutations of the same game serialize instead of interleaving.
// When fn returns an error nothing is written and the error passes through.
// A concurrent write aborts the transaction and the read-mutate-write cycle
// retries against the fresh record.
func (s *Store) Update(ctx context.Context, id string, fn func(*Game) error) (*Game, error) {
	key := gameKey(id)
	var out *Game
	for attempt := 0; attempt < updateRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var cur Game
			if err := json.Unmarshal(raw, &cur); err != nil {
				return err
			}
			if err := fn(&cur); err != nil {
				return err
			}
			cur.UpdatedAt = time.Now()
			newRaw, err := json.Marshal(&cur)
			if err != nil {
				return err
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, newRaw, s.ttl)
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			out = &cur
			return nil
		}, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("game %s: too many concurrent updates", id)
}

// ListByUser loads every indexed game for the user, newest first.
func (s *Store) ListByUser(ctx context.Context, user string) ([]*Game, error) {
	ids, err := s.rdb.SMembers(ctx, userIdxKey(user)).Result()
	if err != nil {
		return nil, err
	}
	var list []*Game
	for _, id := range ids {
		g, gerr := s.Get(ctx, id)
		if gerr != nil || g == nil {
			continue // expired records linger in the index until their set entry ages out
		}
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
