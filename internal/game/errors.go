package game

import "errors"

// Client-fault taxonomy surfaced as distinct response codes. None of these
// are fatal to the server process; store failures propagate as plain errors.
var (
	ErrNotFound     = errors.New("game not found")
	ErrForbidden    = errors.New("action not allowed for this user")
	ErrUnauthorized = errors.New("user may not act on this invite")
	ErrInvalidState = errors.New("action incompatible with game state")
	ErrInvalidMove  = errors.New("move rejected by rules engine")
)
