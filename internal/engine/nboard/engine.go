// Package nboard drives Othello engines that speak the NBoard text protocol
// over stdin and stdout.
package nboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/reversi"
)

const defaultDepth = 6

type Engine struct {
	pool   *Pool
	logger *zap.Logger
}

var _ engine.Capability = (*Engine)(nil)

func New(pool *Pool, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{pool: pool, logger: logger}
}

// Initialize starts one process at the default depth and returns it to the
// pool, so a broken binary fails before the first game.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.pool == nil {
		return fmt.Errorf("%w: pool not configured", engine.ErrInitFailed)
	}
	session, err := e.pool.Acquire(ctx, Options{Depth: defaultDepth})
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrInitFailed, err)
	}
	e.pool.Release(session, nil)
	return nil
}

func (e *Engine) RequestMove(ctx context.Context, req engine.Request) *engine.Task[engine.MoveResult] {
	return engine.Run(ctx, req.Generation, func(ctx context.Context, emit func(engine.Progress)) (res engine.MoveResult, err error) {
		ctx, cancel := context.WithTimeout(ctx, searchTimeout(req.Strength))
		defer cancel()

		session, err := e.pool.Acquire(ctx, optionsFor(req.Strength, req.Timed))
		if err != nil {
			return res, err
		}
		defer func() { e.pool.Release(session, err) }()

		res, err = session.Move(ctx, positionOf(req), emit)
		if err != nil {
			e.logger.Warn("nboard_move_failed",
				zap.Uint64("generation", req.Generation),
				zap.Stringer("side", req.Side),
				zap.Error(err))
			return res, err
		}
		if res.Found && !reversi.IsLegal(req.Board, res.Move, req.Side) {
			err = fmt.Errorf("engine played illegal move %s", res.Move)
			return engine.MoveResult{}, err
		}
		return res, nil
	})
}

func (e *Engine) RequestAnalysis(ctx context.Context, req engine.Request) *engine.Task[engine.Analysis] {
	return engine.Run(ctx, req.Generation, func(ctx context.Context, emit func(engine.Progress)) (res engine.Analysis, err error) {
		ctx, cancel := context.WithTimeout(ctx, searchTimeout(req.Strength))
		defer cancel()

		opt := optionsFor(req.Strength, false)
		session, err := e.pool.Acquire(ctx, opt)
		if err != nil {
			return res, err
		}
		defer func() { e.pool.Release(session, err) }()

		candidates := len(reversi.LegalMoves(req.Board, req.Side))
		err = session.Hint(ctx, req.Board, req.Side, candidates, opt.Depth, emit)
		return res, err
	})
}

func (e *Engine) Close() error {
	if e.pool == nil {
		return nil
	}
	return e.pool.Close()
}

// timedDepthCaps bound the depth by the per-move slice of a timed game, so
// a short clock gets a shallow search instead of a killed one.
var timedDepthCaps = []struct {
	below time.Duration
	depth int
}{
	{100 * time.Millisecond, 2},
	{500 * time.Millisecond, 6},
	{2 * time.Second, 10},
}

func optionsFor(s engine.Strength, timed bool) Options {
	depth := defaultDepth
	if s.Depth > 0 {
		depth = min(s.Depth, 60)
	}
	if timed && s.MoveTime > 0 {
		for _, c := range timedDepthCaps {
			if s.MoveTime < c.below {
				depth = min(depth, c.depth)
				break
			}
		}
	}
	return Options{Depth: depth}
}

func searchTimeout(s engine.Strength) time.Duration {
	if s.MoveTime > 0 {
		return (s.MoveTime + 2*time.Second) * 3
	}
	base := time.Duration(max(s.Depth, 1)) * 500 * time.Millisecond
	return min(max(base, 6*time.Second), 30*time.Second)
}
