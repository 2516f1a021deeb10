package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chesschat/internal/obslog"
	"chesschat/internal/rules"
)

// Notifier fans out state-change events to connected clients. Delivery is
// fire-and-forget: implementations must never block and failures are never
// surfaced to the acting user. Notifications fire only after the mutation
// has been persisted.
type Notifier interface {
	GameInvite(gameID, invitedBy, invitee string)
	GameInviteAccepted(gameID, acceptedBy, inviter string)
	GameInviteDeclined(gameID, declinedBy, inviter string)
	MoveMade(gameID, from, to, fen string, gameOver, checkmate bool)
	DrawOffered(gameID, offeredBy string)
	DrawOfferResponse(gameID string, accepted bool, respondedBy string)
	GameResigned(gameID, resignedBy, winner string)
}

// NopNotifier discards all events. Useful for tests and tooling.
type NopNotifier struct{}

func (NopNotifier) GameInvite(string, string, string)                   {}
func (NopNotifier) GameInviteAccepted(string, string, string)           {}
func (NopNotifier) GameInviteDeclined(string, string, string)           {}
func (NopNotifier) MoveMade(string, string, string, string, bool, bool) {}
func (NopNotifier) DrawOffered(string, string)                          {}
func (NopNotifier) DrawOfferResponse(string, bool, string)              {}
func (NopNotifier) GameResigned(string, string, string)                 {}

// Service is the authoritative game state machine. Every action is checked
// against the guard predicates and current status before any mutation; the
// store's per-game transaction provides at-most-one in-progress mutation
// per game.
type Service struct {
	store    *Store
	rules    *rules.Engine
	notifier Notifier
	archive  *Archive
}

func NewService(store *Store, engine *rules.Engine, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{store: store, rules: engine, notifier: notifier}
}

// AttachArchive wires an optional database archive for finished games.
func (s *Service) AttachArchive(a *Archive) {
	if s != nil {
		s.archive = a
	}
}

// Invite creates a new game in INVITED state. The inviter takes White.
func (s *Service) Invite(ctx context.Context, inviter, invitee string) (*Game, error) {
	if inviter == "" || invitee == "" {
		return nil, ErrNotFound
	}
	if inviter == invitee {
		return nil, ErrInvalidState
	}
	now := time.Now()
	g := &Game{
		ID:        uuid.NewString(),
		WhiteID:   inviter,
		BlackID:   invitee,
		InvitedBy: inviter,
		Status:    StatusInvited,
		FEN:       rules.StartFEN,
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("game_invite",
		zap.String("game_id", g.ID),
		zap.String("inviter", inviter),
		zap.String("invitee", invitee),
	)
	s.notifier.GameInvite(g.ID, inviter, invitee)
	return g, nil
}

// AcceptInvite transitions INVITED→ACTIVE and hands the first move to the
// inviter. Only the invited participant may accept.
func (s *Service) AcceptInvite(ctx context.Context, gameID, user string) (*Game, error) {
	g, err := s.store.Update(ctx, gameID, func(cur *Game) error {
		if err := authorizeInviteResponse(cur, user); err != nil {
			return err
		}
		cur.Status = StatusActive
		cur.Turn = cur.InvitedBy
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("game_accept", zap.String("game_id", g.ID), zap.String("user", user))
	s.notifier.GameInviteAccepted(g.ID, user, g.InvitedBy)
	return g, nil
}

// DeclineInvite deletes the pending game record entirely. The authorization
// check and the delete share one transaction: an invite accepted concurrently
// stays alive and the decline comes back as ErrInvalidState.
func (s *Service) DeclineInvite(ctx context.Context, gameID, user string) error {
	g, err := s.store.DeleteIf(ctx, gameID, func(cur *Game) error {
		return authorizeInviteResponse(cur, user)
	})
	if err != nil {
		return err
	}
	obslog.L().Info("game_decline", zap.String("game_id", gameID), zap.String("user", user))
	s.notifier.GameInviteDeclined(gameID, user, g.InvitedBy)
	return nil
}

func authorizeInviteResponse(g *Game, user string) error {
	if !IsParticipant(g, user) || IsInviter(g, user) {
		return ErrUnauthorized
	}
	if g.Status != StatusInvited {
		return ErrInvalidState
	}
	return nil
}

// MakeMove validates turn ownership, delegates legality to the rules engine
// and applies the result. On game over the status flips to COMPLETED; a
// checkmate credits the mover as winner, any engine-reported draw leaves the
// winner unset.
func (s *Service) MakeMove(ctx context.Context, gameID, user, from, to string) (*Game, error) {
	var gameOver, checkmate bool
	g, err := s.store.Update(ctx, gameID, func(cur *Game) error {
		if !IsParticipant(cur, user) {
			return ErrForbidden
		}
		if cur.Status != StatusActive {
			return ErrInvalidState
		}
		if cur.Turn != user {
			return ErrForbidden
		}
		res, rerr := s.rules.Apply(cur.FEN, from, to)
		if rerr != nil {
			if errors.Is(rerr, rules.ErrIllegalMove) {
				return ErrInvalidMove
			}
			return rerr
		}
		cur.FEN = res.FEN
		cur.MovesUCI = append(cur.MovesUCI, from+to)
		cur.MovesSAN = append(cur.MovesSAN, res.SAN)
		cur.Turn = Opponent(cur, user)
		if res.GameOver {
			cur.Status = StatusCompleted
			cur.DrawOffer = nil
			if res.Checkmate {
				cur.Winner = user
				cur.Result = ResultCheckmate
			} else {
				cur.Result = ResultDraw
			}
		}
		gameOver, checkmate = res.GameOver, res.Checkmate
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("game_move",
		zap.String("game_id", g.ID),
		zap.String("user", user),
		zap.String("move", from+to),
		zap.String("status", string(g.Status)),
		zap.Bool("game_over", gameOver),
	)
	s.notifier.MoveMade(g.ID, from, to, g.FEN, gameOver, checkmate)
	s.archiveIfFinal(ctx, g)
	return g, nil
}

// OfferDraw registers a pending draw proposal on an active game. A second
// offer while one is pending is rejected; the first must be answered.
func (s *Service) OfferDraw(ctx context.Context, gameID, user string) (*Game, error) {
	g, err := s.store.Update(ctx, gameID, func(cur *Game) error {
		if !IsParticipant(cur, user) {
			return ErrForbidden
		}
		if cur.Status != StatusActive || cur.DrawOffer != nil {
			return ErrInvalidState
		}
		cur.DrawOffer = &DrawOffer{By: user, OfferedAt: time.Now()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("game_draw_offer", zap.String("game_id", g.ID), zap.String("user", user))
	s.notifier.DrawOffered(g.ID, user)
	return g, nil
}

// RespondToDraw answers a pending offer. Accepting ends the game as DRAWN;
// either way the offer is cleared. The offerer cannot answer their own offer.
func (s *Service) RespondToDraw(ctx context.Context, gameID, user string, accept bool) (*Game, error) {
	g, err := s.store.Update(ctx, gameID, func(cur *Game) error {
		if cur.Status != StatusActive || cur.DrawOffer == nil {
			return ErrInvalidState
		}
		if !IsParticipant(cur, user) || cur.DrawOffer.By == user {
			return ErrForbidden
		}
		cur.DrawOffer = nil
		if accept {
			cur.Status = StatusDrawn
			cur.Result = ResultDraw
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("game_draw_response",
		zap.String("game_id", g.ID),
		zap.String("user", user),
		zap.Bool("accepted", accept),
	)
	s.notifier.DrawOfferResponse(g.ID, accept, user)
	s.archiveIfFinal(ctx, g)
	return g, nil
}

// Resign ends an active game with the other participant as winner,
// regardless of whose turn it is.
func (s *Service) Resign(ctx context.Context, gameID, user string) (*Game, error) {
	g, err := s.store.Update(ctx, gameID, func(cur *Game) error {
		if !IsParticipant(cur, user) {
			return ErrForbidden
		}
		if cur.Status != StatusActive {
			return ErrInvalidState
		}
		cur.Status = StatusResigned
		cur.Result = ResultResignation
		cur.Winner = Opponent(cur, user)
		cur.DrawOffer = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("game_resign",
		zap.String("game_id", g.ID),
		zap.String("user", user),
		zap.String("winner", g.Winner),
	)
	s.notifier.GameResigned(g.ID, user, g.Winner)
	s.archiveIfFinal(ctx, g)
	return g, nil
}

// GetGame returns a single game; only participants may read it.
func (s *Service) GetGame(ctx context.Context, gameID, user string) (*Game, error) {
	g, err := s.store.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	if !IsParticipant(g, user) {
		return nil, ErrForbidden
	}
	return g, nil
}

// ListGames returns the user's non-terminal games, most recently updated first.
func (s *Service) ListGames(ctx context.Context, user string) ([]*Game, error) {
	all, err := s.store.ListByUser(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]*Game, 0, len(all))
	for _, g := range all {
		if !g.Status.Terminal() {
			out = append(out, g)
		}
	}
	return out, nil
}

// ListInvites returns pending invites addressed to the user.
func (s *Service) ListInvites(ctx context.Context, user string) ([]*Game, error) {
	all, err := s.store.ListByUser(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]*Game, 0)
	for _, g := range all {
		if g.Status == StatusInvited && !IsInviter(g, user) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Service) archiveIfFinal(ctx context.Context, g *Game) {
	if s.archive == nil || g == nil || !g.Status.Terminal() {
		return
	}
	if err := s.archive.SaveResult(ctx, g); err != nil {
		obslog.L().Error("game_archive_error", zap.String("game_id", g.ID), zap.Error(err))
		return
	}
	obslog.L().Info("game_archived", zap.String("game_id", g.ID), zap.String("result", string(g.Result)))
}
