package nboard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/reversi"
)

const defaultReadyTimeout = 4 * time.Second

type Options struct {
	Depth int
}

func (o Options) key() string { return fmt.Sprintf("depth=%d", o.Depth) }

func validateOptions(opt Options) error {
	if opt.Depth <= 0 || opt.Depth > 60 {
		return fmt.Errorf("depth %d out of range 1-60", opt.Depth)
	}
	return nil
}

// Session is one engine subprocess. Searches are serialized; the process
// lives until Close regardless of the context it was started under.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	search sync.Mutex
	ping   int
}

func NewSession(ctx context.Context, binaryPath string, args []string, opt Options) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}

	cmd := exec.Command(binaryPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
	}
	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	if err := s.send("nboard 2\n"); err != nil {
		return fmt.Errorf("send nboard: %w", err)
	}
	if err := s.send(fmt.Sprintf("set depth %d\n", opt.Depth)); err != nil {
		return fmt.Errorf("send depth: %w", err)
	}
	return s.EnsureReady(ctx)
}

// EnsureReady round-trips a ping so stale output from an earlier search is
// drained before the next command.
func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	s.ping++
	if err := s.send(fmt.Sprintf("ping %d\n", s.ping)); err != nil {
		return fmt.Errorf("send ping: %w", err)
	}
	want := fmt.Sprintf("pong %d", s.ping)
	for {
		line, err := s.readLine(readyCtx)
		if err != nil {
			return fmt.Errorf("wait pong: %w", err)
		}
		if line == want {
			return nil
		}
	}
}

func (s *Session) setPosition(p position) error {
	return s.send("set game " + gameRecord(p) + "\n")
}

// Move asks for the engine's move in the given position. Node counts are
// streamed through emit while the engine thinks.
func (s *Session) Move(ctx context.Context, p position, emit func(engine.Progress)) (engine.MoveResult, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.setPosition(p); err != nil {
		return engine.MoveResult{}, fmt.Errorf("send position: %w", err)
	}
	started := time.Now()
	if err := s.send("go\n"); err != nil {
		return engine.MoveResult{}, fmt.Errorf("send go: %w", err)
	}
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return engine.MoveResult{}, fmt.Errorf("read line: %w", err)
		}
		switch {
		case strings.HasPrefix(line, "==="):
			res, err := parseMoveLine(line)
			if err != nil {
				return engine.MoveResult{}, err
			}
			if res.Elapsed == 0 {
				res.Elapsed = time.Since(started)
			}
			return res, nil
		case strings.HasPrefix(line, "nodestats"):
			if n, ok := parseNodeStats(line); ok {
				emit(engine.Progress{Nodes: n})
			}
		}
	}
}

// Hint streams one line per candidate move per iteration until the engine
// reports an empty status.
func (s *Session) Hint(ctx context.Context, b reversi.Board, side reversi.Side, candidates, depth int, emit func(engine.Progress)) error {
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.setPosition(position{board: b, side: side}); err != nil {
		return fmt.Errorf("send position: %w", err)
	}
	if err := s.send(fmt.Sprintf("hint %d\n", max(1, candidates))); err != nil {
		return fmt.Errorf("send hint: %w", err)
	}
	var nodes int64
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}
		switch {
		case line == "status":
			return nil
		case strings.HasPrefix(line, "nodestats"):
			if n, ok := parseNodeStats(line); ok {
				nodes = n
			}
		default:
			if p, ok := parseSearchLine(line); ok {
				p.TargetDepth = depth
				p.Nodes = nodes
				emit(p)
			}
		}
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}
