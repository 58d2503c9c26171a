package engine

import (
	"context"
	"errors"
	"time"

	"github.com/park285/cheese-reversi/internal/reversi"
)

var (
	ErrInitFailed  = errors.New("aiInitFailed")
	ErrCancelled   = errors.New("engine request cancelled")
	ErrUnavailable = errors.New("engine unavailable")
	ErrTimeout     = errors.New("engine timeout")
)

// Strength is the search budget handed to the engine for one request.
type Strength struct {
	Level      string
	Depth      int
	MoveTime   time.Duration
	ExactEmpty int
}

type Request struct {
	Generation uint64
	Board      reversi.Board
	Side       reversi.Side
	Strength   Strength
	// Clock is the remaining game time of the side to move; it is only
	// meaningful when Timed is set.
	Clock time.Duration
	Timed bool
}

// Progress is one streamed search update: a candidate move with its score
// at the current iteration.
type Progress struct {
	Move        reversi.Move
	Score       float64
	Depth       int
	TargetDepth int
	Certainty   int
	Nodes       int64
	PV          []reversi.Move
	Endgame     bool
}

// MoveResult is the final answer to a move request. Found is false when the
// engine declined or had no move to make.
type MoveResult struct {
	Move      reversi.Move
	Found     bool
	Score     float64
	Depth     int
	Certainty int
	Elapsed   time.Duration
}

// Analysis carries no final value; the candidates arrive as Progress.
type Analysis struct{}

// Capability is the external move-search service.
type Capability interface {
	Initialize(ctx context.Context) error
	RequestMove(ctx context.Context, req Request) *Task[MoveResult]
	RequestAnalysis(ctx context.Context, req Request) *Task[Analysis]
	Close() error
}

// MapError folds transport and context errors into the engine taxonomy.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ErrCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrInitFailed):
		return ErrInitFailed
	default:
		return ErrUnavailable
	}
}
