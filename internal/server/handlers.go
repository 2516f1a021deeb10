package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"chesschat/internal/game"
	"chesschat/internal/obslog"
)

type inviteRequest struct {
	OpponentID string `json:"opponentId"`
}

type moveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type drawResponseRequest struct {
	Accept bool `json:"accept"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req inviteRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.svc.Invite(r.Context(), user, strings.TrimSpace(req.OpponentID))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	g, err := s.svc.AcceptInvite(r.Context(), mux.Vars(r)["id"], user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeclineInvite(r.Context(), mux.Vars(r)["id"], user); err != nil {
		s.writeError(w, err)
		return
	}
	msg := s.cat.RenderOr("info.invite_declined", nil, "Invite declined.")
	s.writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	g, err := s.svc.GetGame(r.Context(), mux.Vars(r)["id"], user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	list, err := s.svc.ListGames(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	list, err := s.svc.ListInvites(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.svc.MakeMove(r.Context(), mux.Vars(r)["id"], user, strings.TrimSpace(req.From), strings.TrimSpace(req.To))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDrawOffer(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	g, err := s.svc.OfferDraw(r.Context(), mux.Vars(r)["id"], user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDrawResponse(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req drawResponseRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.svc.RespondToDraw(r.Context(), mux.Vars(r)["id"], user, req.Accept)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	user, ok := s.identity(w, r)
	if !ok {
		return
	}
	g, err := s.svc.Resign(r.Context(), mux.Vars(r)["id"], user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

// identity extracts the caller's participant identity. An empty header ends
// the request with 401.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if user == "" {
		msg := s.cat.RenderOr("errors.missing_identity", nil, "Missing user identity.")
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msg})
		return "", false
	}
	return user, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := s.cat.RenderOr("errors.bad_request", nil, "Malformed request body.")
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Error("http_encode_error", zap.Error(err))
	}
}

// writeError maps the domain error taxonomy onto response codes. Anything
// outside the taxonomy is a server fault and stays generic on the wire.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		status int
		key    string
		fall   string
	)
	switch {
	case errors.Is(err, game.ErrNotFound):
		status, key, fall = http.StatusNotFound, "errors.not_found", "Game not found."
	case errors.Is(err, game.ErrInvalidMove):
		status, key, fall = http.StatusBadRequest, "errors.invalid_move", "That move is not legal."
	case errors.Is(err, game.ErrForbidden):
		status, key, fall = http.StatusForbidden, "errors.forbidden", "You are not allowed to do that."
	case errors.Is(err, game.ErrUnauthorized):
		status, key, fall = http.StatusUnauthorized, "errors.unauthorized", "Only the invited player can respond to this invite."
	case errors.Is(err, game.ErrInvalidState):
		status, key, fall = http.StatusConflict, "errors.invalid_state", "The game is not in a state that allows this action."
	default:
		obslog.L().Error("http_internal_error", zap.Error(err))
		status, key, fall = http.StatusInternalServerError, "errors.internal", "Something went wrong. Please try again."
	}
	s.writeJSON(w, status, errorResponse{Error: s.cat.RenderOr(key, nil, fall)})
}
