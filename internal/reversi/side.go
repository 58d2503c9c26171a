package reversi

import (
	"fmt"
	"strings"
)

// Side identifies one of the two players. The zero value means "no side"
// and is used for empty cells.
type Side uint8

const (
	None Side = iota
	Black
	White
)

func (s Side) Opponent() Side {
	switch s {
	case Black:
		return White
	case White:
		return Black
	default:
		return None
	}
}

func (s Side) Valid() bool { return s == Black || s == White }

func (s Side) String() string {
	switch s {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return "none"
	}
}

func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "black", "b", "x", "*":
		return Black, nil
	case "white", "w", "o":
		return White, nil
	default:
		return None, fmt.Errorf("unknown side: %q", raw)
	}
}

// Mode selects which side, if any, the engine plays.
type Mode string

const (
	ModeHumanBlack Mode = "human-black"
	ModeHumanWhite Mode = "human-white"
	ModeAnalysis   Mode = "analysis"
)

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "human-black", "black", "":
		return ModeHumanBlack, nil
	case "human-white", "white":
		return ModeHumanWhite, nil
	case "analysis", "free", "free-analysis":
		return ModeAnalysis, nil
	default:
		return "", fmt.Errorf("unknown game mode: %q", raw)
	}
}

// VsEngine reports whether the engine owns one of the sides.
func (m Mode) VsEngine() bool { return m == ModeHumanBlack || m == ModeHumanWhite }

// HumanSide returns None in analysis mode, where the human moves for both sides.
func (m Mode) HumanSide() Side {
	switch m {
	case ModeHumanBlack:
		return Black
	case ModeHumanWhite:
		return White
	default:
		return None
	}
}

func (m Mode) EngineControls(s Side) bool {
	return m.VsEngine() && s.Valid() && s != m.HumanSide()
}
