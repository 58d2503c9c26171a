package dispatch

import "github.com/park285/cheese-reversi/internal/reversi"

type Action int

const (
	ActionWait Action = iota
	ActionRequestMove
	ActionRequestAnalysis
	ActionPassNotice
	ActionGameOver
)

func (a Action) String() string {
	switch a {
	case ActionRequestMove:
		return "request_move"
	case ActionRequestAnalysis:
		return "request_analysis"
	case ActionPassNotice:
		return "pass_notice"
	case ActionGameOver:
		return "game_over"
	default:
		return "wait"
	}
}

type Input struct {
	Board  reversi.Board
	Side   reversi.Side
	Mode   reversi.Mode
	Status Status
	Hint   bool
}

// Decide picks the automation step for a settled position. Side is the
// side the action concerns: the mover, or the side that must pass.
func Decide(in Input) (Action, reversi.Side) {
	if in.Status != StatusPlaying {
		return ActionWait, reversi.None
	}
	if reversi.HasLegalMove(in.Board, in.Side) {
		switch {
		case in.Mode.EngineControls(in.Side):
			return ActionRequestMove, in.Side
		case in.Hint:
			return ActionRequestAnalysis, in.Side
		default:
			return ActionWait, in.Side
		}
	}
	if !reversi.HasLegalMove(in.Board, in.Side.Opponent()) {
		return ActionGameOver, reversi.None
	}
	return ActionPassNotice, in.Side
}
