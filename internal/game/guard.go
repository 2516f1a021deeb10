package game

// Stateless authorization predicates consumed by the session service on
// every action. Side-effect free; safe to call concurrently.

// IsParticipant reports whether user is one of the two players.
func IsParticipant(g *Game, user string) bool {
	if g == nil || user == "" {
		return false
	}
	return g.WhiteID == user || g.BlackID == user
}

// IsTurnOwner reports whether user is allowed to move right now.
func IsTurnOwner(g *Game, user string) bool {
	return g != nil && g.Status == StatusActive && user != "" && g.Turn == user
}

// IsInviter reports whether user created the invite.
func IsInviter(g *Game, user string) bool {
	return g != nil && user != "" && g.InvitedBy == user
}

// Opponent returns the other participant, or "" when user is not in the game.
func Opponent(g *Game, user string) string {
	if g == nil {
		return ""
	}
	switch user {
	case g.WhiteID:
		return g.BlackID
	case g.BlackID:
		return g.WhiteID
	}
	return ""
}
