package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-reversi/internal/dispatch"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/repository"
	"github.com/park285/cheese-reversi/internal/reversi"
	"github.com/park285/cheese-reversi/internal/setup"
	"github.com/park285/cheese-reversi/internal/store"
)

// fakeEngine plays the first legal move unless block is set, in which case
// requests wait for cancellation.
type fakeEngine struct {
	mu        sync.Mutex
	initErr   error
	inits     int
	block     bool
	requests  []engine.Request
	cancelled chan uint64
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{cancelled: make(chan uint64, 16)}
}

func (f *fakeEngine) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initErr
}

func (f *fakeEngine) record(req engine.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.block
}

func (f *fakeEngine) RequestMove(ctx context.Context, req engine.Request) *engine.Task[engine.MoveResult] {
	block := f.record(req)
	return engine.Run(ctx, req.Generation, func(ctx context.Context, emit func(engine.Progress)) (engine.MoveResult, error) {
		if block {
			<-ctx.Done()
			f.cancelled <- req.Generation
			return engine.MoveResult{}, ctx.Err()
		}
		moves := reversi.LegalMoves(req.Board, req.Side)
		if len(moves) == 0 {
			return engine.MoveResult{}, nil
		}
		return engine.MoveResult{Move: moves[0], Found: true, Score: 1}, nil
	})
}

func (f *fakeEngine) RequestAnalysis(ctx context.Context, req engine.Request) *engine.Task[engine.Analysis] {
	f.record(req)
	return engine.Run(ctx, req.Generation, func(ctx context.Context, emit func(engine.Progress)) (engine.Analysis, error) {
		for i, mv := range reversi.LegalMoves(req.Board, req.Side) {
			emit(engine.Progress{Move: mv, Score: float64(i), Depth: 1})
		}
		return engine.Analysis{}, nil
	})
}

func (f *fakeEngine) Close() error { return nil }

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func mustMove(t *testing.T, token string) reversi.Move {
	t.Helper()
	mv, err := reversi.ParseMove(token)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", token, err)
	}
	return mv
}

func waitFor(t *testing.T, s *Session, cond func(dispatch.State) bool) dispatch.State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if st := s.State(); cond(st) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached; state=%+v", s.State())
	return dispatch.State{}
}

func TestEngineOpensWhenHumanPlaysWhite(t *testing.T) {
	eng := newFakeEngine()
	s := newTestSession(t, Config{Engine: eng})
	events, stop := s.Subscribe()
	defer stop()

	if err := s.Start(context.Background(), Options{Mode: reversi.ModeHumanWhite, Level: "level2"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := waitFor(t, s, func(st dispatch.State) bool { return st.Timeline.Len() == 1 && !st.Busy() })
	last, _ := st.LastMove()
	if last.Side != reversi.Black || !last.HasScore {
		t.Fatalf("unexpected engine record %+v", last)
	}
	if st.SideToMove() != reversi.White {
		t.Fatalf("human should be to move")
	}
	eng.mu.Lock()
	first := eng.requests[0]
	eng.mu.Unlock()
	if first.Strength.Level != "level2" {
		t.Fatalf("preset not resolved: %+v", first.Strength)
	}
	select {
	case ev := <-events:
		if ev.Kind != EventState {
			t.Fatalf("first event %s", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event published")
	}
}

func TestInitFailureKeepsPreviousState(t *testing.T) {
	eng := newFakeEngine()
	eng.initErr = errors.New("no binary")
	s := newTestSession(t, Config{Engine: eng})
	before := s.ID()

	err := s.Start(context.Background(), Options{Mode: reversi.ModeAnalysis})
	if !errors.Is(err, engine.ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed, got %v", err)
	}
	if st := s.State(); st.Status != dispatch.StatusWaiting || s.ID() != before {
		t.Fatalf("failed start changed the session")
	}

	eng.mu.Lock()
	eng.initErr = nil
	eng.mu.Unlock()
	if err := s.Start(context.Background(), Options{Mode: reversi.ModeAnalysis}); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if err := s.Start(context.Background(), Options{Mode: reversi.ModeAnalysis}); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if eng.inits != 2 {
		t.Fatalf("engine initialized %d times, want 2", eng.inits)
	}
}

func TestUndoCancelsThinkingEngine(t *testing.T) {
	eng := newFakeEngine()
	eng.block = true
	s := newTestSession(t, Config{Engine: eng})
	if err := s.Start(context.Background(), Options{Mode: reversi.ModeHumanBlack}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Place(mustMove(t, "f5")); err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !s.State().Thinking {
		t.Fatalf("engine should be thinking")
	}
	if err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	select {
	case gen := <-eng.cancelled:
		if gen != 1 {
			t.Fatalf("cancelled generation %d", gen)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("engine request not cancelled")
	}
	time.Sleep(20 * time.Millisecond)
	st := s.State()
	if st.Busy() || st.Timeline.Len() != 0 || st.Status != dispatch.StatusPlaying {
		t.Fatalf("cancelled result leaked into state: len=%d busy=%v", st.Timeline.Len(), st.Busy())
	}
}

func TestHintProgressIsPublished(t *testing.T) {
	s := newTestSession(t, Config{Engine: newFakeEngine()})
	events, stop := s.Subscribe()
	defer stop()
	if err := s.Start(context.Background(), Options{Mode: reversi.ModeAnalysis, HintEnabled: true}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := waitFor(t, s, func(st dispatch.State) bool { return !st.Busy() && len(st.Hints) == 4 })
	if st.Hints[0].Score != 3 {
		t.Fatalf("hints not ordered best first: %+v", st.Hints)
	}
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventAnalysis {
				return
			}
		case <-deadline:
			t.Fatalf("no analysis event")
		}
	}
}

func TestClockCountsDownWhileEngineThinks(t *testing.T) {
	eng := newFakeEngine()
	eng.block = true
	s := newTestSession(t, Config{Engine: eng, Tick: 5 * time.Millisecond})
	if err := s.Start(context.Background(), Options{Mode: reversi.ModeHumanWhite, TimeBudget: time.Minute}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, s, func(st dispatch.State) bool { return st.Clock < time.Minute-20*time.Millisecond })
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st := s.State()
	time.Sleep(30 * time.Millisecond)
	if s.State().Clock != st.Clock || st.Status != dispatch.StatusWaiting {
		t.Fatalf("clock kept running after reset")
	}
}

func TestFinishedGameIsArchivedAndResumable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	snapshots := store.NewRedisStore(rdb, time.Hour)
	archive := repository.NewMemory()

	s := newTestSession(t, Config{Engine: newFakeEngine(), Store: snapshots, Archive: archive})
	ctx := context.Background()
	draft := setup.NewDraft()
	draft.Mode = setup.InputTranscript
	draft.Transcript = "e6f4e3f6g5d6e7f5"
	if err := s.CommitSetup(ctx, Options{Mode: reversi.ModeAnalysis}, draft); err != nil {
		t.Fatalf("CommitSetup: %v", err)
	}
	if err := s.Place(mustMove(t, "c5")); err != nil {
		t.Fatalf("Place: %v", err)
	}
	if st := s.State(); st.Status != dispatch.StatusFinished {
		t.Fatalf("status %s", st.Status)
	}

	games, err := archive.RecentGames(ctx, 5)
	if err != nil || len(games) != 1 {
		t.Fatalf("archive: %+v %v", games, err)
	}
	if games[0].Result != "black" || games[0].BlackDiscs != 13 || games[0].Transcript != "c5" {
		t.Fatalf("unexpected archived game %+v", games[0])
	}

	other := newTestSession(t, Config{Engine: newFakeEngine(), Store: snapshots})
	if err := other.Resume(ctx, s.ID()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	st := other.State()
	if st.Status != dispatch.StatusFinished || st.Board() != s.State().Board() || other.ID() != s.ID() {
		t.Fatalf("resumed session differs")
	}
	if err := other.Resume(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCommitSetupRejectsInvalidDraft(t *testing.T) {
	s := newTestSession(t, Config{Engine: newFakeEngine()})
	draft := setup.NewDraft()
	draft.Clear()
	err := s.CommitSetup(context.Background(), Options{Mode: reversi.ModeAnalysis}, draft)
	if !errors.Is(err, setup.ErrNeedBothColors) {
		t.Fatalf("expected needBothColors, got %v", err)
	}
	if s.State().Status != dispatch.StatusWaiting {
		t.Fatalf("invalid setup must not start a game")
	}
}

func TestClosedSessionRejectsCommands(t *testing.T) {
	s, err := NewSession(Config{Engine: newFakeEngine()})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.Close()
	if err := s.Place(mustMove(t, "f5")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := NewSession(Config{}); !errors.Is(err, ErrNoEngine) {
		t.Fatalf("expected ErrNoEngine, got %v", err)
	}
}
