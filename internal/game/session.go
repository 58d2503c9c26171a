// Package game runs one interactive session: it feeds commands and engine
// results through the dispatcher and carries out the effects it returns.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-reversi/internal/dispatch"
	"github.com/park285/cheese-reversi/internal/domain"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/history"
	"github.com/park285/cheese-reversi/internal/repository"
	"github.com/park285/cheese-reversi/internal/reversi"
	"github.com/park285/cheese-reversi/internal/setup"
	"github.com/park285/cheese-reversi/internal/store"
)

var (
	ErrSessionNotFound = errors.New("reversi session not found")
	ErrClosed          = errors.New("reversi session closed")
	ErrNoEngine        = errors.New("engine capability required")
)

const (
	defaultTick        = 100 * time.Millisecond
	persistTimeout     = 3 * time.Second
	subscriberCapacity = 64
)

type Config struct {
	Engine  engine.Capability
	Store   store.Store
	Archive repository.Repository
	Logger  *zap.Logger
	// Tick is the clock resolution while the engine thinks.
	Tick time.Duration
	Now  func() time.Time
}

type Session struct {
	eng     engine.Capability
	store   store.Store
	archive repository.Repository
	logger  *zap.Logger
	tick    time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	id          string
	state       dispatch.State
	startedAt   time.Time
	initialized bool
	closed      bool
	version     uint64
	move        *engine.Task[engine.MoveResult]
	analysis    *engine.Task[engine.Analysis]
	clockStop   chan struct{}
	subs        map[int]*subscriber
	nextSub     int

	persistMu    sync.Mutex
	savedVersion uint64
}

func NewSession(cfg Config) (*Session, error) {
	if cfg.Engine == nil {
		return nil, ErrNoEngine
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		eng:     cfg.Engine,
		store:   cfg.Store,
		archive: cfg.Archive,
		logger:  logger,
		tick:    tick,
		now:     now,
		ctx:     ctx,
		cancel:  cancel,
		id:      uuid.NewString(),
		state:   dispatch.NewState(dispatch.Settings{Mode: reversi.ModeHumanBlack}),
		subs:    make(map[int]*subscriber),
	}, nil
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current session state. The value shares no mutable
// memory with the session.
func (s *Session) State() dispatch.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a new game from the standard opening position.
func (s *Session) Start(ctx context.Context, opts Options) error {
	return s.StartFrom(ctx, opts, setup.InitialPosition())
}

// CommitSetup resolves the draft and starts a game from it. A draft that
// does not resolve leaves the session untouched.
func (s *Session) CommitSetup(ctx context.Context, opts Options, draft *setup.Draft) error {
	if draft == nil {
		return s.Start(ctx, opts)
	}
	pos, err := draft.Resolve()
	if err != nil {
		return err
	}
	return s.StartFrom(ctx, opts, pos)
}

func (s *Session) StartFrom(ctx context.Context, opts Options, pos setup.Position) error {
	settings, err := opts.settings()
	if err != nil {
		return err
	}
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.apply(dispatch.Start{Board: pos.Board, Side: pos.SideToMove, Settings: settings}, func() {
		s.id = uuid.NewString()
		s.startedAt = s.now()
	})
}

// Resume restores a saved session by id, redo history included.
func (s *Session) Resume(ctx context.Context, id string) error {
	if s.store == nil {
		return ErrSessionNotFound
	}
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if snap == nil {
		return ErrSessionNotFound
	}
	board, side, err := snap.Position()
	if err != nil {
		return err
	}
	timeline, err := snap.Timeline()
	if err != nil {
		return err
	}
	settings, err := Options{
		Mode:        reversi.Mode(snap.Mode),
		Level:       snap.Level,
		HintEnabled: snap.HintEnabled,
		HintLevel:   snap.HintLevel,
		TimeBudget:  time.Duration(snap.TimeBudgetMS) * time.Millisecond,
	}.settings()
	if err != nil {
		return err
	}
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.apply(dispatch.Start{Board: board, Side: side, Settings: settings, Timeline: timeline}, func() {
		s.id = snap.ID
		s.startedAt = snap.StartedAt
	})
}

func (s *Session) ensureInitialized(ctx context.Context) error {
	s.mu.Lock()
	done := s.initialized
	s.mu.Unlock()
	if done {
		return nil
	}
	if err := s.eng.Initialize(ctx); err != nil {
		s.logger.Warn("engine_init_failed", zap.Error(err))
		if errors.Is(err, engine.ErrInitFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", engine.ErrInitFailed, err)
	}
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

func (s *Session) Place(mv reversi.Move) error { return s.apply(dispatch.Place{Move: mv}, nil) }
func (s *Session) AcknowledgePass() error      { return s.apply(dispatch.AcknowledgePass{}, nil) }
func (s *Session) Undo() error                 { return s.apply(dispatch.Undo{}, nil) }
func (s *Session) Redo() error                 { return s.apply(dispatch.Redo{}, nil) }
func (s *Session) SetHint(enabled bool) error {
	return s.apply(dispatch.SetHint{Enabled: enabled}, nil)
}
func (s *Session) Retry() error { return s.apply(dispatch.Retry{}, nil) }

// Reset abandons the current game and forgets its snapshot.
func (s *Session) Reset() error {
	id := s.ID()
	if err := s.apply(dispatch.Reset{}, nil); err != nil {
		return err
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Warn("snapshot_delete_failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	return nil
}

// Snapshot captures the session in its persisted form.
func (s *Session) Snapshot() *store.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.FromState(s.id, s.state, s.startedAt, s.now())
}

// Close cancels outstanding engine work and ends all subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancelTasksLocked()
	s.stopClockLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	for id, sub := range s.subs {
		sub.finish()
		delete(s.subs, id)
	}
	s.mu.Unlock()
}

type followUp struct {
	snapshot *store.Snapshot
	version  uint64
	archive  *domain.Game
}

// apply runs one transition. before, when set, runs under the lock just
// ahead of the transition so identity changes land atomically with it.
func (s *Session) apply(ev dispatch.Event, before func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	next, effects, err := dispatch.Transition(s.state, ev)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if before != nil {
		before()
	}
	s.state = next
	s.version++
	var fu followUp
	for _, eff := range effects {
		s.execute(eff, &fu)
	}
	s.publish(Event{Kind: EventState, State: next})
	if s.store != nil && persistable(ev) && next.Status != dispatch.StatusWaiting {
		fu.snapshot = store.FromState(s.id, next, s.startedAt, s.now())
		fu.version = s.version
	}
	s.mu.Unlock()

	s.finish(fu)
	return nil
}

// persistable skips the high-frequency events that do not change history.
func persistable(ev dispatch.Event) bool {
	switch ev.(type) {
	case dispatch.ClockTick, dispatch.AnalysisProgress:
		return false
	default:
		return true
	}
}

func (s *Session) execute(eff dispatch.Effect, fu *followUp) {
	switch eff := eff.(type) {
	case dispatch.RequestMove:
		task := s.eng.RequestMove(s.ctx, eff.Request)
		s.move = task
		s.logger.Debug("engine_move_requested",
			zap.String("session_id", s.id),
			zap.Uint64("generation", eff.Request.Generation),
			zap.Stringer("side", eff.Request.Side),
			zap.String("level", eff.Request.Strength.Level))
		s.watch(func() { s.watchMove(task) })
	case dispatch.RequestAnalysis:
		task := s.eng.RequestAnalysis(s.ctx, eff.Request)
		s.analysis = task
		s.watch(func() { s.watchAnalysis(task) })
	case dispatch.CancelRequest:
		s.cancelTasksLocked()
	case dispatch.StartClock:
		s.startClockLocked(eff.Generation)
	case dispatch.StopClock:
		s.stopClockLocked()
	case dispatch.PassNotice:
		s.publish(Event{Kind: EventPassNotice, State: s.state, Side: eff.Side})
	case dispatch.GameOver:
		s.logger.Info("game_finished",
			zap.String("session_id", s.id),
			zap.String("result", string(eff.Result)),
			zap.Int("black", eff.Score.Black),
			zap.Int("white", eff.Score.White))
		s.publish(Event{Kind: EventGameOver, State: s.state, Result: eff.Result})
		if s.archive != nil {
			fu.archive = s.archiveRecord(eff)
		}
	case dispatch.RequestFailed:
		s.logger.Warn("engine_request_failed",
			zap.String("session_id", s.id),
			zap.Uint64("generation", eff.Generation),
			zap.Error(eff.Err))
		s.publish(Event{Kind: EventEngineFailed, State: s.state, Err: eff.Err})
	}
}

func (s *Session) watch(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Session) watchMove(task *engine.Task[engine.MoveResult]) {
	for range task.Progress() {
	}
	<-task.Done()
	res, err := task.Result()
	gen := task.Generation()
	if err != nil {
		_ = s.apply(dispatch.EngineFailed{Generation: gen, Err: err}, nil)
		return
	}
	_ = s.apply(dispatch.EngineMoved{Generation: gen, Result: res}, nil)
}

func (s *Session) watchAnalysis(task *engine.Task[engine.Analysis]) {
	gen := task.Generation()
	for p := range task.Progress() {
		if err := s.apply(dispatch.AnalysisProgress{Generation: gen, Progress: p}, nil); err == nil {
			s.mu.Lock()
			if s.state.Outstanding == gen {
				s.publish(Event{Kind: EventAnalysis, State: s.state, Progress: p})
			}
			s.mu.Unlock()
		}
	}
	<-task.Done()
	_, err := task.Result()
	_ = s.apply(dispatch.AnalysisDone{Generation: gen, Err: err}, nil)
}

func (s *Session) cancelTasksLocked() {
	if s.move != nil {
		s.move.Cancel()
		s.move = nil
	}
	if s.analysis != nil {
		s.analysis.Cancel()
		s.analysis = nil
	}
}

func (s *Session) startClockLocked(gen uint64) {
	s.stopClockLocked()
	stop := make(chan struct{})
	s.clockStop = stop
	s.watch(func() {
		t := time.NewTicker(s.tick)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-s.ctx.Done():
				return
			case <-t.C:
				if err := s.apply(dispatch.ClockTick{Generation: gen, Elapsed: s.tick}, nil); err != nil {
					return
				}
			}
		}
	})
}

func (s *Session) stopClockLocked() {
	if s.clockStop != nil {
		close(s.clockStop)
		s.clockStop = nil
	}
}

func (s *Session) archiveRecord(over dispatch.GameOver) *domain.Game {
	moves := s.state.Moves()
	notations := make([]string, 0, len(moves))
	for _, rec := range moves {
		notations = append(notations, rec.Notation)
	}
	end := s.now()
	return &domain.Game{
		SessionID:  s.id,
		Mode:       string(s.state.Settings.Mode),
		Level:      s.state.Settings.Strength.Level,
		Result:     string(over.Result),
		BlackDiscs: over.Score.Black,
		WhiteDiscs: over.Score.White,
		Moves:      notations,
		Transcript: history.Transcript(moves),
		StartBoard: setup.BoardToString(s.state.StartBoard),
		StartSide:  s.state.StartSide.String(),
		StartedAt:  s.startedAt,
		EndedAt:    end,
		Duration:   end.Sub(s.startedAt),
	}
}

// finish performs the storage writes for a transition outside the lock.
// Snapshots older than one already written are skipped.
func (s *Session) finish(fu followUp) {
	if fu.snapshot == nil && fu.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if fu.snapshot != nil {
		s.persistMu.Lock()
		if fu.version > s.savedVersion {
			if err := s.store.Save(ctx, fu.snapshot); err != nil {
				s.logger.Warn("snapshot_save_failed", zap.String("session_id", fu.snapshot.ID), zap.Error(err))
			} else {
				s.savedVersion = fu.version
			}
		}
		s.persistMu.Unlock()
	}
	if fu.archive != nil {
		id, err := s.archive.InsertGame(ctx, fu.archive)
		switch {
		case errors.Is(err, repository.ErrDuplicateGame):
			s.logger.Debug("game_already_archived", zap.String("session_id", fu.archive.SessionID))
		case err != nil:
			s.logger.Warn("game_archive_failed", zap.String("session_id", fu.archive.SessionID), zap.Error(err))
		default:
			s.logger.Info("game_archived", zap.String("session_id", fu.archive.SessionID), zap.Int64("game_id", id))
		}
	}
}
