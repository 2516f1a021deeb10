// Package server exposes the HTTP action surface and the websocket endpoint.
// Authentication is resolved upstream; handlers trust the X-User-Id header
// to carry the caller's participant identity.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"chesschat/internal/game"
	"chesschat/internal/msgcat"
	"chesschat/internal/obslog"
	"chesschat/internal/realtime"
)

type Server struct {
	svc     *game.Service
	gateway *realtime.Gateway
	cat     *msgcat.Catalog
	httpSrv *http.Server
}

func New(addr string, svc *game.Service, gateway *realtime.Gateway, cat *msgcat.Catalog) *Server {
	s := &Server{svc: svc, gateway: gateway, cat: cat}
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router(),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/ws", s.gateway)

	r.HandleFunc("/games/invite", s.handleInvite).Methods(http.MethodPost)
	r.HandleFunc("/games/invites", s.handleListInvites).Methods(http.MethodGet)
	r.HandleFunc("/games", s.handleListGames).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}", s.handleGetGame).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}/accept", s.handleAccept).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/decline", s.handleDecline).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/move", s.handleMove).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/draw-offer", s.handleDrawOffer).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/draw-response", s.handleDrawResponse).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/resign", s.handleResign).Methods(http.MethodPost)
	return r
}

// Handler returns the full HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Run blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Run() error {
	obslog.L().Info("http_listen", zap.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
