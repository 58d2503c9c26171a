package wsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-reversi/internal/domain"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/game"
	"github.com/park285/cheese-reversi/internal/msgcat"
	"github.com/park285/cheese-reversi/internal/repository"
	"github.com/park285/cheese-reversi/internal/reversi"
	"github.com/park285/cheese-reversi/pkg/reversidto"
)

// firstMoveEngine always plays the first legal move.
type firstMoveEngine struct{}

func (firstMoveEngine) Initialize(context.Context) error { return nil }

func (firstMoveEngine) RequestMove(ctx context.Context, req engine.Request) *engine.Task[engine.MoveResult] {
	return engine.Run(ctx, req.Generation, func(context.Context, func(engine.Progress)) (engine.MoveResult, error) {
		moves := reversi.LegalMoves(req.Board, req.Side)
		if len(moves) == 0 {
			return engine.MoveResult{}, nil
		}
		return engine.MoveResult{Move: moves[0], Found: true, Score: -2}, nil
	})
}

func (firstMoveEngine) RequestAnalysis(ctx context.Context, req engine.Request) *engine.Task[engine.Analysis] {
	return engine.Run(ctx, req.Generation, func(_ context.Context, emit func(engine.Progress)) (engine.Analysis, error) {
		for _, mv := range reversi.LegalMoves(req.Board, req.Side) {
			emit(engine.Progress{Move: mv, Depth: 1})
		}
		return engine.Analysis{}, nil
	})
}

func (firstMoveEngine) Close() error { return nil }

func newTestServer(t *testing.T, archive repository.Repository) *httptest.Server {
	t.Helper()
	messages, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	srv, err := New(Config{
		Sessions: func() (*game.Session, error) {
			return game.NewSession(game.Config{Engine: firstMoveEngine{}, Archive: archive})
		},
		Archive:  archive,
		Messages: messages,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, cmd reversidto.Command) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c, cmd); err != nil {
		t.Fatalf("write %s: %v", cmd.Type, err)
	}
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, c *websocket.Conn, match func(reversidto.Message) bool) reversidto.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var msg reversidto.Message
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestSocketPlaysAgainstEngine(t *testing.T) {
	c := dial(t, newTestServer(t, repository.NewMemory()))

	send(t, c, reversidto.Command{Type: reversidto.CommandStart, Mode: "human-black", Level: "level1"})
	msg := readUntil(t, c, func(m reversidto.Message) bool { return m.Type == reversidto.MessageState })
	if msg.State.Status != "playing" || msg.State.SideToMove != "black" || len(msg.State.LegalMoves) != 4 {
		t.Fatalf("unexpected opening state %+v", msg.State)
	}
	if msg.State.SessionID == "" {
		t.Fatalf("session id missing")
	}

	send(t, c, reversidto.Command{Type: reversidto.CommandPlace, Move: "f5"})
	msg = readUntil(t, c, func(m reversidto.Message) bool {
		return m.Type == reversidto.MessageState && len(m.State.Moves) == 2 && !m.State.Thinking
	})
	reply := msg.State.Moves[1]
	if reply.Side != "white" || reply.Score == nil || *reply.Score != -2 {
		t.Fatalf("unexpected engine reply %+v", reply)
	}
	if msg.State.SideToMove != "black" || !msg.State.CanUndo {
		t.Fatalf("unexpected state after reply %+v", msg.State)
	}

	send(t, c, reversidto.Command{Type: reversidto.CommandPlace, Move: "a1"})
	msg = readUntil(t, c, func(m reversidto.Message) bool { return m.Type == reversidto.MessageError })
	if msg.Error.Code != "illegalMove" || msg.Error.Message != "That move is not legal." {
		t.Fatalf("expected illegalMove, got %+v", msg.Error)
	}

	send(t, c, reversidto.Command{Type: reversidto.CommandUndo})
	msg = readUntil(t, c, func(m reversidto.Message) bool { return m.Type == reversidto.MessageState })
	if len(msg.State.Moves) != 0 || !msg.State.CanRedo {
		t.Fatalf("undo should take back the human move and the reply: %+v", msg.State)
	}
}

func TestSocketSetupAndErrors(t *testing.T) {
	c := dial(t, newTestServer(t, nil))

	send(t, c, reversidto.Command{Type: "castle"})
	msg := readUntil(t, c, func(m reversidto.Message) bool { return m.Type == reversidto.MessageError })
	if msg.Error.Code != "badRequest" {
		t.Fatalf("unknown command mapped to %+v", msg.Error)
	}

	send(t, c, reversidto.Command{
		Type:  reversidto.CommandSetup,
		Mode:  "analysis",
		Setup: &reversidto.SetupRequest{InputMode: "transcript", Transcript: "f5 d6 zz"},
	})
	msg = readUntil(t, c, func(m reversidto.Message) bool { return m.Type == reversidto.MessageError })
	if msg.Error.Code != "invalidMove" {
		t.Fatalf("bad transcript mapped to %+v", msg.Error)
	}

	send(t, c, reversidto.Command{
		Type:  reversidto.CommandSetup,
		Mode:  "analysis",
		Setup: &reversidto.SetupRequest{InputMode: "transcript", Transcript: "f5 d6"},
	})
	msg = readUntil(t, c, func(m reversidto.Message) bool { return m.Type == reversidto.MessageState })
	if msg.State.Mode != "analysis" || msg.State.SideToMove != "black" || len(msg.State.Moves) != 0 {
		t.Fatalf("setup position not committed: %+v", msg.State)
	}

	send(t, c, reversidto.Command{Type: reversidto.CommandSnapshot})
	msg = readUntil(t, c, func(m reversidto.Message) bool { return m.Type == reversidto.MessageState })
	if msg.State.Score.Black != 3 || msg.State.Score.White != 3 {
		t.Fatalf("unexpected score %+v", msg.State.Score)
	}
}

func TestArchiveEndpoints(t *testing.T) {
	repo := repository.NewMemory()
	if _, err := repo.InsertGame(context.Background(), &domain.Game{
		SessionID:  "s1",
		Mode:       "human-black",
		Result:     "black",
		BlackDiscs: 40,
		WhiteDiscs: 24,
		Moves:      []string{"F5", "D6"},
		Duration:   90 * time.Second,
	}); err != nil {
		t.Fatalf("InsertGame: %v", err)
	}
	ts := newTestServer(t, repo)

	resp, err := http.Get(ts.URL + "/games?limit=5")
	if err != nil {
		t.Fatalf("GET /games: %v", err)
	}
	defer resp.Body.Close()
	var games []reversidto.Game
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(games) != 1 || games[0].Score.Black != 40 || games[0].DurationMS != 90000 {
		t.Fatalf("unexpected games %+v", games)
	}

	for path, want := range map[string]int{
		"/games?limit=x": http.StatusBadRequest,
		"/games/999":     http.StatusNotFound,
		"/games/abc":     http.StatusBadRequest,
		"/healthz":       http.StatusOK,
	} {
		r, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		r.Body.Close()
		if r.StatusCode != want {
			t.Fatalf("GET %s: status %d, want %d", path, r.StatusCode, want)
		}
	}
}

func TestGameOptionsOverlayDefaults(t *testing.T) {
	defaults := game.Options{Mode: reversi.ModeHumanWhite, Level: "level3", TimeBudget: time.Minute}
	on := true
	opts, err := gameOptions(reversidto.Command{Level: "level7", Hint: &on}, defaults)
	if err != nil {
		t.Fatalf("gameOptions: %v", err)
	}
	if opts.Mode != reversi.ModeHumanWhite || opts.Level != "level7" || !opts.HintEnabled || opts.TimeBudget != time.Minute {
		t.Fatalf("unexpected options %+v", opts)
	}
	if _, err := gameOptions(reversidto.Command{Mode: "robot"}, defaults); err == nil {
		t.Fatalf("unknown mode should be rejected")
	}
	if _, err := gameOptions(reversidto.Command{TimeBudgetMS: -1}, defaults); err == nil {
		t.Fatalf("negative budget should be rejected")
	}
}
