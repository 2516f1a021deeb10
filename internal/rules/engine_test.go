package rules

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyLegalMove(t *testing.T) {
	e := New()
	res, err := e.Apply(StartFEN, "e2", "e4")
	if err != nil {
		t.Fatalf("Apply e2e4: %v", err)
	}
	if res.GameOver || res.Checkmate {
		t.Fatalf("unexpected terminal flags: %+v", res)
	}
	if res.SAN != "e4" {
		t.Fatalf("expected SAN e4, got %q", res.SAN)
	}
	if !strings.Contains(res.FEN, " b ") {
		t.Fatalf("expected black to move in FEN, got %q", res.FEN)
	}
}

func TestApplyIllegalMove(t *testing.T) {
	e := New()
	if _, err := e.Apply(StartFEN, "e2", "e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := e.Apply(StartFEN, "xx", "yy"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove on garbage squares, got %v", err)
	}
}

func TestApplyCheckmate(t *testing.T) {
	e := New()
	fen := StartFEN
	// fool's mate
	moves := [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}}
	for _, mv := range moves {
		res, err := e.Apply(fen, mv[0], mv[1])
		if err != nil {
			t.Fatalf("Apply %s%s: %v", mv[0], mv[1], err)
		}
		fen = res.FEN
	}
	res, err := e.Apply(fen, "d8", "h4")
	if err != nil {
		t.Fatalf("Apply mating move: %v", err)
	}
	if !res.GameOver || !res.Checkmate || res.Draw {
		t.Fatalf("expected checkmate, got %+v", res)
	}
}

func TestApplyEmptyFENUsesStartPosition(t *testing.T) {
	e := New()
	res, err := e.Apply("", "g1", "f3")
	if err != nil {
		t.Fatalf("Apply from empty fen: %v", err)
	}
	if res.SAN != "Nf3" {
		t.Fatalf("expected Nf3, got %q", res.SAN)
	}
}
