package game

import (
	"time"
)

// Status represents a game lifecycle state. Transitions are monotonic:
// terminal states never go back to INVITED or ACTIVE.
type Status string

const (
	StatusInvited   Status = "INVITED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusDrawn     Status = "DRAWN"
	StatusResigned  Status = "RESIGNED"
)

// Terminal reports whether no further gameplay mutation is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDrawn || s == StatusResigned
}

// Result tags the cause of a terminal state.
type Result string

const (
	ResultCheckmate   Result = "checkmate"
	ResultDraw        Result = "draw"
	ResultResignation Result = "resignation"
)

// DrawOffer is a pending draw proposal; only valid while the game is active.
type DrawOffer struct {
	By        string    `json:"by"`
	OfferedAt time.Time `json:"offered_at"`
}

// Game is the persisted state of a match between exactly two participants.
// The inviter plays White and moves first once the invite is accepted.
type Game struct {
	ID        string     `json:"id"`
	WhiteID   string     `json:"white_id"`
	BlackID   string     `json:"black_id"`
	InvitedBy string     `json:"invited_by"`
	Status    Status     `json:"status"`
	Turn      string     `json:"turn,omitempty"`
	FEN       string     `json:"fen"`
	MovesUCI  []string   `json:"moves_uci"`
	MovesSAN  []string   `json:"moves_san"`
	Winner    string     `json:"winner,omitempty"`
	Result    Result     `json:"result,omitempty"`
	DrawOffer *DrawOffer `json:"draw_offer,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
