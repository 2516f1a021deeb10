// Package rules wraps the external chess rules library behind a small
// position-in/position-out interface. The rest of the system treats the
// position encoding (FEN) as opaque and never computes legality itself.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the encoding of the initial position used for new games.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrIllegalMove is returned when the proposed move is not legal in the
// given position. The position itself is untouched on this path.
var ErrIllegalMove = errors.New("illegal move")

// Result is the outcome of applying a single move to a position.
type Result struct {
	FEN       string
	SAN       string
	GameOver  bool
	Checkmate bool
	Draw      bool
}

// Engine validates and applies moves. Stateless; safe for concurrent use.
type Engine struct{}

func New() *Engine { return &Engine{} }

// Apply plays the from/to square pair against the given FEN and returns the
// resulting position plus terminal flags. Pawn moves reaching the last rank
// promote to a queen when no explicit promotion piece is encoded.
func (e *Engine) Apply(fen, from, to string) (*Result, error) {
	game, err := load(fen)
	if err != nil {
		return nil, err
	}

	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to))
	if len(uci) < 4 {
		return nil, ErrIllegalMove
	}

	pos := game.Position()
	notation := nchess.UCINotation{}
	mv, derr := notation.Decode(pos, uci)
	if derr != nil && len(uci) == 4 {
		// bare pair may be a promotion move
		mv, derr = notation.Decode(pos, uci+"q")
	}
	if derr != nil {
		return nil, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := game.PushNotationMove(mv.String(), notation, nil); err != nil {
		return nil, ErrIllegalMove
	}

	res := &Result{
		FEN: game.FEN(),
		SAN: san,
	}
	switch game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		res.GameOver = true
		res.Checkmate = game.Method() == nchess.Checkmate
	case nchess.Draw:
		res.GameOver = true
		res.Draw = true
	}
	return res, nil
}

func load(fen string) (*nchess.Game, error) {
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		return nchess.NewGame(), nil
	}
	option, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return nchess.NewGame(option), nil
}
