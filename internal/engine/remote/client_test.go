package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/reversi"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	})
	c := NewClient("http://engine.test/",
		WithDial(func(string) (net.Conn, error) { return ln.Dial() }),
		WithTimeout(2*time.Second),
	)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType("application/json")
	_ = json.NewEncoder(ctx).Encode(v)
}

func TestRequestMove(t *testing.T) {
	var got searchRequest
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/move" || !ctx.IsPost() {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		_ = json.Unmarshal(ctx.PostBody(), &got)
		writeJSON(ctx, moveResponse{Found: true, Move: "f5", Score: 2, Depth: 8, Certainty: 100, ElapsedMS: 40})
	})

	req := engine.Request{
		Generation: 3,
		Board:      reversi.InitialBoard(),
		Side:       reversi.Black,
		Strength:   engine.Strength{Level: "level4", Depth: 4, MoveTime: 200 * time.Millisecond},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.RequestMove(ctx, req).Wait(ctx)
	if err != nil {
		t.Fatalf("RequestMove: %v", err)
	}
	if !res.Found || res.Move != (reversi.Move{Row: 4, Col: 5}) || res.Elapsed != 40*time.Millisecond {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.Side != "black" || got.Depth != 4 || got.MoveTimeMS != 200 || len(got.Board) != 64 || got.ClockMS != nil {
		t.Fatalf("unexpected request body %+v", got)
	}
}

func TestTimedRequestSendsClock(t *testing.T) {
	for _, clock := range []time.Duration{45 * time.Second, 0} {
		req := engine.Request{Board: reversi.InitialBoard(), Side: reversi.White, Clock: clock, Timed: true}
		body := newSearchRequest(req)
		if body.ClockMS == nil || *body.ClockMS != clock.Milliseconds() {
			t.Fatalf("clock %v not carried: %+v", clock, body.ClockMS)
		}
	}
}

func TestRequestAnalysisStreamsLines(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		writeJSON(ctx, analysisResponse{Lines: []analysisLine{
			{Move: "d3", Score: 1, Depth: 10, TargetDepth: 12, PV: []string{"d3", "c5"}},
			{Move: "zz", Score: 0},
			{Move: "c4", Score: -1, Depth: 10, Endgame: true, Certainty: 73},
		}})
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task := c.RequestAnalysis(ctx, engine.Request{Board: reversi.InitialBoard(), Side: reversi.Black})
	var lines []engine.Progress
	for p := range task.Progress() {
		lines = append(lines, p)
	}
	<-task.Done()
	if _, err := task.Result(); err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if len(lines) != 2 || len(lines[0].PV) != 2 || !lines[1].Endgame || lines[1].Certainty != 73 {
		t.Fatalf("unexpected lines %+v", lines)
	}
}

func TestInitializeRetriesHealth(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) == 1 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusOK)
	})
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected a retry, got %d calls", calls.Load())
	}
}

func TestServerErrorMapsToUnavailable(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.RequestMove(ctx, engine.Request{Board: reversi.InitialBoard(), Side: reversi.Black}).Wait(ctx)
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := c.Initialize(ctx); !errors.Is(err, engine.ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed, got %v", err)
	}
}
