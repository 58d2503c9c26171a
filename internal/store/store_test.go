package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-reversi/internal/dispatch"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/reversi"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, time.Hour), mr
}

func playedState(t *testing.T) dispatch.State {
	t.Helper()
	settings := dispatch.Settings{Mode: reversi.ModeHumanWhite, Strength: engine.Strength{Level: "level2", Depth: 2}, TimeBudget: time.Minute}
	s, _, err := dispatch.Transition(dispatch.NewState(settings), dispatch.Start{Board: reversi.InitialBoard(), Side: reversi.Black, Settings: settings})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f5 := reversi.Move{Row: 4, Col: 5}
	s, _, err = dispatch.Transition(s, dispatch.EngineMoved{Generation: s.Outstanding, Result: engine.MoveResult{Found: true, Move: f5, Score: 0.5}})
	if err != nil {
		t.Fatalf("engine move: %v", err)
	}
	s, _, err = dispatch.Transition(s, dispatch.Place{Move: reversi.Move{Row: 5, Col: 5}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	s, _, err = dispatch.Transition(s, dispatch.Undo{})
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	return s
}

func TestSaveLoadRestoresTimeline(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()
	s := playedState(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := st.Save(ctx, FromState("abc", s, now, now)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mr.TTL("reversi:session:abc"); ttl != time.Hour {
		t.Fatalf("ttl %v", ttl)
	}

	snap, err := st.Load(ctx, "abc")
	if err != nil || snap == nil {
		t.Fatalf("Load: %+v %v", snap, err)
	}
	board, side, err := snap.Position()
	if err != nil || board != reversi.InitialBoard() || side != reversi.Black {
		t.Fatalf("Position: %v %v", side, err)
	}
	tl, err := snap.Timeline()
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if tl.Len() != 1 || tl.TotalLen() != 2 {
		t.Fatalf("cursor %d of %d, want 1 of 2", tl.Len(), tl.TotalLen())
	}
	first, _ := tl.Last()
	if !first.HasScore || first.Score != 0.5 || !first.HasClock {
		t.Fatalf("engine record lost its annotations: %+v", first)
	}

	restored, _, err := dispatch.Transition(dispatch.NewState(dispatch.Settings{}), dispatch.Start{Board: board, Side: side, Settings: s.Settings, Timeline: tl})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Board() != s.Board() || !restored.CanRedo() {
		t.Fatalf("restored session differs")
	}
}

func TestLoadMissingAndDelete(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	snap, err := st.Load(ctx, "nope")
	if err != nil || snap != nil {
		t.Fatalf("missing snapshot should be nil, nil: %+v %v", snap, err)
	}
	if err := st.Save(ctx, &Snapshot{ID: "x", StartBoard: "", StartSide: "black"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Delete(ctx, "x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if snap, _ := st.Load(ctx, "x"); snap != nil {
		t.Fatalf("snapshot survived delete")
	}
	if err := st.Save(ctx, &Snapshot{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
