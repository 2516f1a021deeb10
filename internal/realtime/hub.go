package realtime

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"chesschat/internal/obslog"
)

const sendBuffer = 32

// client is one connected websocket session. Events are queued on send and
// drained by a single writer goroutine in the gateway; done is closed when
// the session is replaced or unregistered.
type client struct {
	userID string
	send   chan Envelope
	done   chan struct{}
}

// Hub is the process-wide presence registry: userID → delivery channel plus
// per-game rooms. Connect/disconnect for the same user serialize on the hub
// mutex, so a rapid reconnect can never leave a stale mapping. Delivery is
// at-most-once: a missing target or a full buffer drops the event.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[*client]struct{}),
	}
}

// Register binds userID to a fresh delivery channel, displacing any previous
// session for the same user, and rebroadcasts the online list.
func (h *Hub) Register(userID string) *client {
	c := &client{
		userID: userID,
		send:   make(chan Envelope, sendBuffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	if old := h.clients[userID]; old != nil {
		h.evictLocked(old)
	}
	h.clients[userID] = c
	h.broadcastOnlineLocked()
	h.mu.Unlock()

	obslog.L().Debug("presence_connect", zap.String("user", userID))
	return c
}

// Unregister removes the mapping if c is still the current session for its
// user. A stale session from before a reconnect is ignored.
func (h *Hub) Unregister(c *client) {
	h.mu.Lock()
	current := h.clients[c.userID] == c
	if current {
		delete(h.clients, c.userID)
		h.evictLocked(c)
		h.broadcastOnlineLocked()
	}
	h.mu.Unlock()
	if !current {
		return
	}
	obslog.L().Debug("presence_disconnect", zap.String("user", c.userID))
}

func (h *Hub) evictLocked(c *client) {
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// OnlineUsers returns the currently connected user identifiers, sorted.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	users := make([]string, 0, len(h.clients))
	for u := range h.clients {
		users = append(users, u)
	}
	h.mu.RUnlock()
	sort.Strings(users)
	return users
}

// broadcastOnlineLocked snapshots and fans out the online list while the
// caller still holds the hub mutex. Broadcasts therefore happen in the order
// the membership changes did, and the last frame a client sees always
// reflects the final membership.
func (h *Hub) broadcastOnlineLocked() {
	users := make([]string, 0, len(h.clients))
	for u := range h.clients {
		users = append(users, u)
	}
	sort.Strings(users)
	ev := envelope(EventOnlineUsers, users)
	for _, c := range h.clients {
		push(c, ev)
	}
}

// JoinGame subscribes the session to the game:<id> room.
func (h *Hub) JoinGame(c *client, gameID string) {
	if gameID == "" {
		return
	}
	room := roomKey(gameID)
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	h.mu.Unlock()
}

// LeaveGame removes the session from the game:<id> room.
func (h *Hub) LeaveGame(c *client, gameID string) {
	room := roomKey(gameID)
	h.mu.Lock()
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

// RelayTyping forwards an ephemeral typing signal to the receiver's channel.
// No registered channel means the signal is silently dropped.
func (h *Hub) RelayTyping(senderID, receiverID string, stop bool) {
	event := EventTyping
	if stop {
		event = EventStopTyping
	}
	h.sendToUser(receiverID, envelope(event, TypingOut{SenderID: senderID}))
}

func (h *Hub) sendToUser(userID string, ev Envelope) {
	h.mu.RLock()
	c := h.clients[userID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	push(c, ev)
}

func (h *Hub) broadcastRoom(gameID string, ev Envelope) {
	room := roomKey(gameID)
	h.mu.RLock()
	for c := range h.rooms[room] {
		push(c, ev)
	}
	h.mu.RUnlock()
}

// push queues without blocking; the mutation that triggered the event must
// never wait on a slow consumer.
func push(c *client, ev Envelope) {
	select {
	case c.send <- ev:
	default:
		obslog.L().Debug("realtime_drop", zap.String("user", c.userID), zap.String("event", string(ev.Event)))
	}
}

func roomKey(gameID string) string { return "game:" + gameID }

// game.Notifier implementation. Invite lifecycle events go to the specific
// user's channel; everything about a running game goes to its room.

func (h *Hub) GameInvite(gameID, invitedBy, invitee string) {
	h.sendToUser(invitee, envelope(EventGameInvite, InvitePayload{GameID: gameID, InvitedBy: invitedBy}))
}

func (h *Hub) GameInviteAccepted(gameID, acceptedBy, inviter string) {
	h.sendToUser(inviter, envelope(EventGameInviteAccepted, InviteAcceptedPayload{GameID: gameID, AcceptedBy: acceptedBy}))
}

func (h *Hub) GameInviteDeclined(gameID, declinedBy, inviter string) {
	h.sendToUser(inviter, envelope(EventGameInviteDeclined, InviteDeclinedPayload{GameID: gameID, DeclinedBy: declinedBy}))
}

func (h *Hub) MoveMade(gameID, from, to, fen string, gameOver, checkmate bool) {
	h.broadcastRoom(gameID, envelope(EventMoveMade, MoveMadePayload{
		GameID:      gameID,
		From:        from,
		To:          to,
		FEN:         fen,
		IsGameOver:  gameOver,
		IsCheckmate: checkmate,
	}))
}

func (h *Hub) DrawOffered(gameID, offeredBy string) {
	h.broadcastRoom(gameID, envelope(EventDrawOffered, DrawOfferedPayload{GameID: gameID, OfferedBy: offeredBy}))
}

func (h *Hub) DrawOfferResponse(gameID string, accepted bool, respondedBy string) {
	h.broadcastRoom(gameID, envelope(EventDrawOfferResponse, DrawResponsePayload{
		GameID:      gameID,
		Accepted:    accepted,
		RespondedBy: respondedBy,
	}))
}

func (h *Hub) GameResigned(gameID, resignedBy, winner string) {
	h.broadcastRoom(gameID, envelope(EventGameResigned, ResignedPayload{
		GameID:     gameID,
		ResignedBy: resignedBy,
		Winner:     winner,
	}))
}
