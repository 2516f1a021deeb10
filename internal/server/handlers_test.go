package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chesschat/internal/game"
	"chesschat/internal/msgcat"
	"chesschat/internal/realtime"
	"chesschat/internal/rules"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := realtime.NewHub()
	svc := game.NewService(game.NewStore(rdb, time.Hour), rules.New(), hub)
	cat, err := msgcat.New("")
	require.NoError(t, err)
	return New(":0", svc, realtime.NewGateway(hub, nil), cat)
}

func doJSON(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeGame(t *testing.T, rec *httptest.ResponseRecorder) *game.Game {
	t.Helper()
	var g game.Game
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	return &g
}

func TestFullGameOverHTTP(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/games/invite", "alice", map[string]string{"opponentId": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	g := decodeGame(t, rec)
	assert.Equal(t, game.StatusInvited, g.Status)

	// bob sees the pending invite
	rec = doJSON(t, h, http.MethodGet, "/games/invites", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var invites []*game.Game
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invites))
	require.Len(t, invites, 1)

	rec = doJSON(t, h, http.MethodPost, "/games/"+g.ID+"/accept", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "alice", decodeGame(t, rec).Turn)

	rec = doJSON(t, h, http.MethodPost, "/games/"+g.ID+"/move", "alice", map[string]string{"from": "e2", "to": "e4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decodeGame(t, rec)
	assert.Equal(t, "bob", moved.Turn)
	assert.NotEqual(t, g.FEN, moved.FEN)

	rec = doJSON(t, h, http.MethodPost, "/games/"+g.ID+"/resign", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resigned := decodeGame(t, rec)
	assert.Equal(t, game.StatusResigned, resigned.Status)
	assert.Equal(t, "alice", resigned.Winner)

	// terminal games drop out of the active listing
	rec = doJSON(t, h, http.MethodGet, "/games", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*game.Game
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	// no identity
	rec := doJSON(t, h, http.MethodGet, "/games", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// missing game
	rec = doJSON(t, h, http.MethodGet, "/games/missing", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// set up an active game
	rec = doJSON(t, h, http.MethodPost, "/games/invite", "alice", map[string]string{"opponentId": "bob"})
	g := decodeGame(t, rec)
	rec = doJSON(t, h, http.MethodPost, "/games/"+g.ID+"/accept", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// not your turn
	rec = doJSON(t, h, http.MethodPost, "/games/"+g.ID+"/move", "bob", map[string]string{"from": "e7", "to": "e5"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// illegal move
	rec = doJSON(t, h, http.MethodPost, "/games/"+g.ID+"/move", "alice", map[string]string{"from": "e2", "to": "e5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// outsider read
	rec = doJSON(t, h, http.MethodGet, "/games/"+g.ID, "carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// draw response without a pending offer
	rec = doJSON(t, h, http.MethodPost, "/games/"+g.ID+"/draw-response", "bob", map[string]bool{"accept": true})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// malformed body
	req := httptest.NewRequest(http.MethodPost, "/games/invite", bytes.NewBufferString("{"))
	req.Header.Set("X-User-Id", "alice")
	raw := httptest.NewRecorder()
	h.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestDeclineInviteOverHTTP(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/games/invite", "alice", map[string]string{"opponentId": "bob"})
	g := decodeGame(t, rec)

	rec = doJSON(t, h, http.MethodPost, "/games/"+g.ID+"/decline", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.NotEmpty(t, msg["message"])

	rec = doJSON(t, h, http.MethodGet, "/games/"+g.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
