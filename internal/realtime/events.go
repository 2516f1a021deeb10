package realtime

import (
	"encoding/json"
)

// EventType names a realtime protocol event. The inbound and outbound sets
// form the whole wire contract of the gateway; payloads are typed below
// rather than assembled ad hoc.
type EventType string

// Inbound (client → server).
const (
	EventTyping     EventType = "typing"
	EventStopTyping EventType = "stopTyping"
	EventJoinGame   EventType = "joinGame"
	EventLeaveGame  EventType = "leaveGame"
)

// Outbound (server → client).
const (
	EventOnlineUsers        EventType = "getOnlineUsers"
	EventGameInvite         EventType = "gameInvite"
	EventGameInviteAccepted EventType = "gameInviteAccepted"
	EventGameInviteDeclined EventType = "gameInviteDeclined"
	EventMoveMade           EventType = "moveMade"
	EventDrawOffered        EventType = "drawOffered"
	EventDrawOfferResponse  EventType = "drawOfferResponse"
	EventGameResigned       EventType = "gameResigned"
)

// Envelope is the frame exchanged over the websocket in both directions.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TypingIn is the inbound typing/stopTyping payload.
type TypingIn struct {
	ReceiverID string `json:"receiverId"`
}

// TypingOut is the relayed typing/stopTyping payload.
type TypingOut struct {
	SenderID string `json:"senderId"`
}

// GameRef is the joinGame/leaveGame payload.
type GameRef struct {
	GameID string `json:"gameId"`
}

type InvitePayload struct {
	GameID    string `json:"gameId"`
	InvitedBy string `json:"invitedBy"`
}

type InviteAcceptedPayload struct {
	GameID     string `json:"gameId"`
	AcceptedBy string `json:"acceptedBy"`
}

type InviteDeclinedPayload struct {
	GameID     string `json:"gameId"`
	DeclinedBy string `json:"declinedBy"`
}

type MoveMadePayload struct {
	GameID      string `json:"gameId"`
	From        string `json:"from"`
	To          string `json:"to"`
	FEN         string `json:"fen"`
	IsGameOver  bool   `json:"isGameOver"`
	IsCheckmate bool   `json:"isCheckmate"`
}

type DrawOfferedPayload struct {
	GameID    string `json:"gameId"`
	OfferedBy string `json:"offeredBy"`
}

type DrawResponsePayload struct {
	GameID      string `json:"gameId"`
	Accepted    bool   `json:"accepted"`
	RespondedBy string `json:"respondedBy"`
}

type ResignedPayload struct {
	GameID     string `json:"gameId"`
	ResignedBy string `json:"resignedBy"`
	Winner     string `json:"winner"`
}

// envelope marshals v into a ready-to-send frame. Payload types above are
// all marshalable, so an encoding failure is a programming error and yields
// an empty data field rather than a dropped event.
func envelope(event EventType, v any) Envelope {
	raw, err := json.Marshal(v)
	if err != nil {
		return Envelope{Event: event}
	}
	return Envelope{Event: event, Data: raw}
}
