package dispatch

import (
	"time"

	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/history"
	"github.com/park285/cheese-reversi/internal/reversi"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Settings are the opaque per-session inputs: who the engine plays, how
// hard it searches, and whether hints run on the human's turn.
type Settings struct {
	Mode         reversi.Mode
	Strength     engine.Strength
	HintEnabled  bool
	HintStrength engine.Strength
	TimeBudget   time.Duration
}

// State is one session snapshot. Values are treated as immutable: the
// reducer returns a modified copy and never writes through shared slices.
type State struct {
	StartBoard reversi.Board
	StartSide  reversi.Side
	Timeline   *history.Timeline
	Status     Status
	Settings   Settings

	// PendingPass is the side that must acknowledge a forced pass, or None.
	PendingPass reversi.Side

	Thinking  bool
	Analyzing bool
	// Generation is the last request generation issued; Outstanding is the
	// generation still awaited, zero when nothing is in flight.
	Generation   uint64
	Outstanding  uint64
	Clock        time.Duration
	ClockRunning bool
	Hints        []engine.Progress
}

func NewState(settings Settings) State {
	return State{
		StartBoard: reversi.InitialBoard(),
		StartSide:  reversi.Black,
		Timeline:   history.Empty(),
		Status:     StatusWaiting,
		Settings:   settings,
		Clock:      settings.TimeBudget,
	}
}

func (s State) timeline() *history.Timeline {
	if s.Timeline == nil {
		return history.Empty()
	}
	return s.Timeline
}

func (s State) Moves() []history.Record { return s.timeline().Current() }

// Position replays the active history from the starting position.
func (s State) Position() (reversi.Board, reversi.Side) {
	return history.Replay(s.Moves(), s.StartBoard, s.StartSide)
}

func (s State) Board() reversi.Board {
	b, _ := s.Position()
	return b
}

func (s State) SideToMove() reversi.Side {
	return history.SideToMove(s.Moves(), s.StartSide)
}

func (s State) LegalMoves() []reversi.Move {
	b, side := s.Position()
	return reversi.LegalMoves(b, side)
}

func (s State) LastMove() (history.Record, bool) { return s.timeline().Last() }

func (s State) Score() reversi.Score { return reversi.ScoreOf(s.Board()) }

func (s State) Busy() bool { return s.Outstanding != 0 }

func (s State) CanUndo() bool {
	return s.Status != StatusWaiting &&
		history.UndoCount(s.Moves(), s.Settings.Mode, s.StartSide) > 0
}

func (s State) CanRedo() bool {
	t := s.timeline()
	return s.Status != StatusWaiting &&
		history.RedoCount(t.Current(), t.All(), s.Settings.Mode, s.StartSide) > 0
}

// clockAt restores the engine clock to the last snapshot in the active
// history, or the full budget when the engine has not moved yet.
func (s State) clockAt() time.Duration {
	moves := s.Moves()
	for i := len(moves) - 1; i >= 0; i-- {
		if moves[i].HasClock {
			return moves[i].Remaining
		}
	}
	return s.Settings.TimeBudget
}
