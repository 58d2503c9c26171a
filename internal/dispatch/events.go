package dispatch

import (
	"time"

	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/history"
	"github.com/park285/cheese-reversi/internal/reversi"
)

type Event interface{ isEvent() }

// Start begins play from a validated position. A non-nil Timeline resumes
// a saved game, redo suffix included.
type Start struct {
	Board    reversi.Board
	Side     reversi.Side
	Settings Settings
	Timeline *history.Timeline
}

type Place struct{ Move reversi.Move }

type AcknowledgePass struct{}

type Undo struct{}

type Redo struct{}

type Reset struct{}

type SetHint struct{ Enabled bool }

// Retry re-runs automation after a failed or declined engine request.
type Retry struct{}

type EngineMoved struct {
	Generation uint64
	Result     engine.MoveResult
}

type EngineFailed struct {
	Generation uint64
	Err        error
}

type AnalysisProgress struct {
	Generation uint64
	Progress   engine.Progress
}

type AnalysisDone struct {
	Generation uint64
	Err        error
}

type ClockTick struct {
	Generation uint64
	Elapsed    time.Duration
}

func (Start) isEvent()            {}
func (Place) isEvent()            {}
func (AcknowledgePass) isEvent()  {}
func (Undo) isEvent()             {}
func (Redo) isEvent()             {}
func (Reset) isEvent()            {}
func (SetHint) isEvent()          {}
func (Retry) isEvent()            {}
func (EngineMoved) isEvent()      {}
func (EngineFailed) isEvent()     {}
func (AnalysisProgress) isEvent() {}
func (AnalysisDone) isEvent()     {}
func (ClockTick) isEvent()        {}

type Effect interface{ isEffect() }

type RequestMove struct{ Request engine.Request }

type RequestAnalysis struct{ Request engine.Request }

type CancelRequest struct{ Generation uint64 }

type StartClock struct{ Generation uint64 }

type StopClock struct{ Generation uint64 }

type PassNotice struct{ Side reversi.Side }

type GameOver struct {
	Score  reversi.Score
	Result reversi.Result
}

// RequestFailed reports an engine request that ended without applying
// anything. The state is already cleared; the effect exists for logging.
type RequestFailed struct {
	Generation uint64
	Err        error
}

func (RequestMove) isEffect()     {}
func (RequestAnalysis) isEffect() {}
func (CancelRequest) isEffect()   {}
func (StartClock) isEffect()      {}
func (StopClock) isEffect()       {}
func (PassNotice) isEffect()      {}
func (GameOver) isEffect()        {}
func (RequestFailed) isEffect()   {}
