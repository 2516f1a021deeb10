package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chesschat/internal/obslog"
)

const writeTimeout = 5 * time.Second

// Gateway upgrades HTTP requests to websocket sessions and routes inbound
// events through a typed dispatch table. The caller's identity is resolved
// by an external auth layer and arrives as the X-User-Id header (or the
// user_id query parameter for browser websocket clients, which cannot set
// headers).
type Gateway struct {
	hub      *Hub
	origins  []string
	handlers map[EventType]func(c *client, data json.RawMessage) error
}

func NewGateway(hub *Hub, allowedOrigins []string) *Gateway {
	g := &Gateway{hub: hub, origins: allowedOrigins}
	g.handlers = map[EventType]func(*client, json.RawMessage) error{
		EventTyping:     g.handleTyping(false),
		EventStopTyping: g.handleTyping(true),
		EventJoinGame:   g.handleJoinGame,
		EventLeaveGame:  g.handleLeaveGame,
	}
	return g
}

// ServeHTTP accepts one websocket session and blocks until it ends.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.origins,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("user", userID), zap.Error(err))
		return
	}

	c := g.hub.Register(userID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()
	go writePump(ctx, conn, c)

	g.readLoop(ctx, conn, c)

	g.hub.Unregister(c)
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		handler, ok := g.handlers[env.Event]
		if !ok {
			obslog.L().Debug("ws_unknown_event", zap.String("user", c.userID), zap.String("event", string(env.Event)))
			continue
		}
		if err := handler(c, env.Data); err != nil {
			obslog.L().Warn("ws_event_error", zap.String("user", c.userID), zap.String("event", string(env.Event)), zap.Error(err))
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (g *Gateway) handleTyping(stop bool) func(c *client, data json.RawMessage) error {
	return func(c *client, data json.RawMessage) error {
		var p TypingIn
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		g.hub.RelayTyping(c.userID, p.ReceiverID, stop)
		return nil
	}
}

func (g *Gateway) handleJoinGame(c *client, data json.RawMessage) error {
	var p GameRef
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	g.hub.JoinGame(c, p.GameID)
	return nil
}

func (g *Gateway) handleLeaveGame(c *client, data json.RawMessage) error {
	var p GameRef
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	g.hub.LeaveGame(c, p.GameID)
	return nil
}
