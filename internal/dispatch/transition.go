package dispatch

import (
	"errors"
	"fmt"
	"slices"

	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/history"
	"github.com/park285/cheese-reversi/internal/reversi"
	"github.com/park285/cheese-reversi/internal/setup"
)

var (
	ErrNotPlaying    = errors.New("game is not in progress")
	ErrNotYourTurn   = errors.New("engine is to move")
	ErrIllegalMove   = errors.New("illegal move")
	ErrPassPending   = errors.New("a forced pass must be acknowledged first")
	ErrNoPendingPass = errors.New("no pass to acknowledge")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrUnknownEvent  = errors.New("unknown event")
)

// Transition applies ev to s. On error the returned state is s unchanged
// and no effects are produced. Engine events for a generation that is no
// longer outstanding are dropped silently.
func Transition(s State, ev Event) (State, []Effect, error) {
	switch ev := ev.(type) {
	case Start:
		return start(s, ev)
	case Place:
		return place(s, ev.Move)
	case AcknowledgePass:
		return acknowledgePass(s)
	case Undo:
		return undo(s)
	case Redo:
		return redo(s)
	case Reset:
		next, effects := abort(s)
		settings := next.Settings
		fresh := NewState(settings)
		fresh.Generation = next.Generation
		return fresh, effects, nil
	case SetHint:
		return setHint(s, ev.Enabled)
	case Retry:
		if s.Status != StatusPlaying {
			return s, nil, ErrNotPlaying
		}
		if s.Busy() {
			return s, nil, nil
		}
		next, effects := settle(s)
		return next, effects, nil
	case EngineMoved:
		return engineMoved(s, ev)
	case EngineFailed:
		if !s.Thinking || ev.Generation != s.Outstanding {
			return s, nil, nil
		}
		next, effects := abortLocal(s)
		return next, append(effects, RequestFailed{Generation: ev.Generation, Err: engine.MapError(ev.Err)}), nil
	case AnalysisProgress:
		if !s.Analyzing || ev.Generation != s.Outstanding {
			return s, nil, nil
		}
		s.Hints = mergeHint(s.Hints, ev.Progress)
		return s, nil, nil
	case AnalysisDone:
		if !s.Analyzing || ev.Generation != s.Outstanding {
			return s, nil, nil
		}
		next, effects := abortLocal(s)
		next.Hints = s.Hints
		if ev.Err != nil && !errors.Is(ev.Err, engine.ErrCancelled) {
			effects = append(effects, RequestFailed{Generation: ev.Generation, Err: engine.MapError(ev.Err)})
		}
		return next, effects, nil
	case ClockTick:
		if !s.ClockRunning || ev.Generation != s.Outstanding {
			return s, nil, nil
		}
		s.Clock = max(0, s.Clock-ev.Elapsed)
		return s, nil, nil
	default:
		return s, nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func start(s State, ev Start) (State, []Effect, error) {
	if !ev.Side.Valid() {
		return s, nil, fmt.Errorf("invalid side to move: %v", ev.Side)
	}
	if err := setup.Validate(ev.Board, ev.Side); err != nil {
		return s, nil, err
	}
	board := ev.Board.WithoutMarkers()
	timeline := ev.Timeline
	if timeline == nil {
		timeline = history.Empty()
	} else if err := history.Verify(timeline.All(), board, ev.Side); err != nil {
		return s, nil, fmt.Errorf("restore history: %w", err)
	}

	next, effects := abort(s)
	next.StartBoard = board
	next.StartSide = ev.Side
	next.Timeline = timeline
	next.Settings = ev.Settings
	next.Status = StatusPlaying
	next.PendingPass = reversi.None
	next.Hints = nil
	next.Clock = next.clockAt()
	next, more := settle(next)
	return next, append(effects, more...), nil
}

func place(s State, mv reversi.Move) (State, []Effect, error) {
	if s.Status != StatusPlaying {
		return s, nil, ErrNotPlaying
	}
	if s.PendingPass != reversi.None {
		return s, nil, ErrPassPending
	}
	board, side := s.Position()
	if s.Settings.Mode.EngineControls(side) {
		return s, nil, ErrNotYourTurn
	}
	if mv.IsPass() || !reversi.IsLegal(board, mv, side) {
		return s, nil, fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}
	next, effects := abort(s)
	next = appendRecord(next, history.NewRecord(next.timeline().Len()+1, side, mv))
	next, more := settle(next)
	return next, append(effects, more...), nil
}

func acknowledgePass(s State) (State, []Effect, error) {
	if s.Status != StatusPlaying {
		return s, nil, ErrNotPlaying
	}
	if s.PendingPass == reversi.None {
		return s, nil, ErrNoPendingPass
	}
	next, effects := abort(s)
	next = appendRecord(next, history.NewRecord(next.timeline().Len()+1, s.PendingPass, reversi.Pass))
	next, more := settle(next)
	return next, append(effects, more...), nil
}

func undo(s State) (State, []Effect, error) {
	if s.Status == StatusWaiting {
		return s, nil, ErrNotPlaying
	}
	n := history.UndoCount(s.Moves(), s.Settings.Mode, s.StartSide)
	if n == 0 {
		return s, nil, ErrNothingToUndo
	}
	next, effects := abort(s)
	next.Timeline = next.timeline().Undo(n)
	return navigated(next, effects)
}

func redo(s State) (State, []Effect, error) {
	if s.Status == StatusWaiting {
		return s, nil, ErrNotPlaying
	}
	t := s.timeline()
	n := history.RedoCount(t.Current(), t.All(), s.Settings.Mode, s.StartSide)
	if n == 0 {
		return s, nil, ErrNothingToRedo
	}
	next, effects := abort(s)
	next.Timeline = t.Redo(n)
	return navigated(next, effects)
}

// navigated settles after undo or redo. Undo from a finished game reopens it.
func navigated(s State, effects []Effect) (State, []Effect, error) {
	s.Status = StatusPlaying
	s.PendingPass = reversi.None
	s.Hints = nil
	s.Clock = s.clockAt()
	next, more := settle(s)
	return next, append(effects, more...), nil
}

func setHint(s State, enabled bool) (State, []Effect, error) {
	s.Settings.HintEnabled = enabled
	if !enabled {
		if s.Analyzing {
			next, effects := abort(s)
			return next, effects, nil
		}
		s.Hints = nil
		return s, nil, nil
	}
	if s.Status != StatusPlaying || s.Busy() || s.PendingPass != reversi.None {
		return s, nil, nil
	}
	next, effects := settle(s)
	return next, effects, nil
}

func engineMoved(s State, ev EngineMoved) (State, []Effect, error) {
	if !s.Thinking || ev.Generation != s.Outstanding {
		return s, nil, nil
	}
	clock := s.Clock
	next, effects := abortLocal(s)
	board, side := next.Position()
	res := ev.Result
	if !res.Found {
		return next, append(effects, RequestFailed{Generation: ev.Generation, Err: engine.ErrUnavailable}), nil
	}
	if res.Move.IsPass() || !reversi.IsLegal(board, res.Move, side) {
		err := fmt.Errorf("%w: engine returned %s", ErrIllegalMove, res.Move)
		return next, append(effects, RequestFailed{Generation: ev.Generation, Err: err}), nil
	}
	rec := history.NewRecord(next.timeline().Len()+1, side, res.Move).WithScore(res.Score)
	if s.Settings.TimeBudget > 0 {
		rec = rec.WithClock(clock)
	}
	next = appendRecord(next, rec)
	next, more := settle(next)
	return next, append(effects, more...), nil
}

func appendRecord(s State, rec history.Record) State {
	s.Timeline = s.timeline().Append(rec)
	s.PendingPass = reversi.None
	s.Hints = nil
	return s
}

// abort cancels any outstanding request and stops the clock.
func abort(s State) (State, []Effect) {
	if !s.Busy() {
		return s, nil
	}
	gen := s.Outstanding
	next, effects := abortLocal(s)
	return next, append([]Effect{CancelRequest{Generation: gen}}, effects...)
}

// abortLocal clears the in-flight flags without asking the engine to stop,
// for requests that have already resolved.
func abortLocal(s State) (State, []Effect) {
	var effects []Effect
	if s.ClockRunning {
		effects = append(effects, StopClock{Generation: s.Outstanding})
	}
	s.Thinking = false
	s.Analyzing = false
	s.Outstanding = 0
	s.ClockRunning = false
	s.Hints = nil
	return s, effects
}

// settle runs the decision step against the current position and records
// what it decided.
func settle(s State) (State, []Effect) {
	board, side := s.Position()
	action, who := Decide(Input{
		Board:  board,
		Side:   side,
		Mode:   s.Settings.Mode,
		Status: s.Status,
		Hint:   s.Settings.HintEnabled,
	})
	switch action {
	case ActionRequestMove:
		s.Generation++
		s.Outstanding = s.Generation
		s.Thinking = true
		req := engine.Request{
			Generation: s.Generation,
			Board:      board,
			Side:       who,
			Strength:   s.Settings.Strength,
		}
		if s.Settings.TimeBudget > 0 {
			req.Strength = req.Strength.Budget(s.Clock, board.Empties())
			req.Clock = s.Clock
			req.Timed = true
			s.ClockRunning = true
		}
		effects := []Effect{RequestMove{Request: req}}
		if s.ClockRunning {
			effects = append(effects, StartClock{Generation: s.Generation})
		}
		return s, effects
	case ActionRequestAnalysis:
		s.Generation++
		s.Outstanding = s.Generation
		s.Analyzing = true
		s.Hints = nil
		return s, []Effect{RequestAnalysis{Request: engine.Request{
			Generation: s.Generation,
			Board:      board,
			Side:       who,
			Strength:   s.Settings.HintStrength,
		}}}
	case ActionPassNotice:
		s.PendingPass = who
		return s, []Effect{PassNotice{Side: who}}
	case ActionGameOver:
		s.Status = StatusFinished
		score := reversi.ScoreOf(board)
		return s, []Effect{GameOver{Score: score, Result: reversi.Winner(score)}}
	default:
		return s, nil
	}
}

// mergeHint keeps the latest line per candidate move, best score first.
func mergeHint(hints []engine.Progress, p engine.Progress) []engine.Progress {
	out := make([]engine.Progress, 0, len(hints)+1)
	for _, h := range hints {
		if h.Move != p.Move {
			out = append(out, h)
		}
	}
	out = append(out, p)
	slices.SortStableFunc(out, func(a, b engine.Progress) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return out
}
