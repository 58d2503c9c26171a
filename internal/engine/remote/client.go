// Package remote talks to a move-search service over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/reversi"
	"github.com/park285/cheese-reversi/internal/setup"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

var _ engine.Capability = (*Client)(nil)

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(n int) Option {
	return func(c *Client) { c.retryMax = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDial replaces the transport dialer, mostly for in-memory tests.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		logger:         zap.NewNop(),
		defaultTimeout: 30 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	Board      string `json:"board"`
	Side       string `json:"side"`
	Level      string `json:"level,omitempty"`
	Depth      int    `json:"depth,omitempty"`
	MoveTimeMS int64  `json:"move_time_ms,omitempty"`
	ExactEmpty int    `json:"exact_empty,omitempty"`
	// ClockMS is set only for timed searches; zero means the clock is spent.
	ClockMS *int64 `json:"clock_ms,omitempty"`
}

type moveResponse struct {
	Found     bool    `json:"found"`
	Move      string  `json:"move"`
	Score     float64 `json:"score"`
	Depth     int     `json:"depth"`
	Certainty int     `json:"certainty"`
	ElapsedMS int64   `json:"elapsed_ms"`
}

type analysisLine struct {
	Move        string   `json:"move"`
	Score       float64  `json:"score"`
	Depth       int      `json:"depth"`
	TargetDepth int      `json:"target_depth"`
	Certainty   int      `json:"certainty"`
	Nodes       int64    `json:"nodes"`
	PV          []string `json:"pv"`
	Endgame     bool     `json:"endgame"`
}

type analysisResponse struct {
	Lines []analysisLine `json:"lines"`
}

func newSearchRequest(req engine.Request) searchRequest {
	out := searchRequest{
		Board:      setup.BoardToString(req.Board),
		Side:       req.Side.String(),
		Level:      req.Strength.Level,
		Depth:      req.Strength.Depth,
		MoveTimeMS: req.Strength.MoveTime.Milliseconds(),
		ExactEmpty: req.Strength.ExactEmpty,
	}
	if req.Timed {
		ms := max(req.Clock, 0).Milliseconds()
		out.ClockMS = &ms
	}
	return out
}

// Initialize checks the health endpoint.
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/health", nil, nil, true); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrInitFailed, err)
	}
	return nil
}

func (c *Client) RequestMove(ctx context.Context, req engine.Request) *engine.Task[engine.MoveResult] {
	return engine.Run(ctx, req.Generation, func(ctx context.Context, _ func(engine.Progress)) (engine.MoveResult, error) {
		var resp moveResponse
		if err := c.doJSON(ctx, fasthttp.MethodPost, "/move", newSearchRequest(req), &resp, false); err != nil {
			c.logger.Warn("remote_move_failed", zap.Uint64("generation", req.Generation), zap.Error(err))
			return engine.MoveResult{}, err
		}
		if !resp.Found {
			return engine.MoveResult{}, nil
		}
		mv, err := reversi.ParseMove(resp.Move)
		if err != nil {
			return engine.MoveResult{}, fmt.Errorf("decode move: %w", err)
		}
		return engine.MoveResult{
			Move:      mv,
			Found:     !mv.IsPass(),
			Score:     resp.Score,
			Depth:     resp.Depth,
			Certainty: resp.Certainty,
			Elapsed:   time.Duration(resp.ElapsedMS) * time.Millisecond,
		}, nil
	})
}

func (c *Client) RequestAnalysis(ctx context.Context, req engine.Request) *engine.Task[engine.Analysis] {
	return engine.Run(ctx, req.Generation, func(ctx context.Context, emit func(engine.Progress)) (engine.Analysis, error) {
		var resp analysisResponse
		if err := c.doJSON(ctx, fasthttp.MethodPost, "/analysis", newSearchRequest(req), &resp, false); err != nil {
			c.logger.Warn("remote_analysis_failed", zap.Uint64("generation", req.Generation), zap.Error(err))
			return engine.Analysis{}, err
		}
		for _, line := range resp.Lines {
			p, err := line.progress()
			if err != nil {
				c.logger.Debug("remote_analysis_line_skipped", zap.String("move", line.Move), zap.Error(err))
				continue
			}
			emit(p)
		}
		return engine.Analysis{}, nil
	})
}

func (l analysisLine) progress() (engine.Progress, error) {
	mv, err := reversi.ParseMove(l.Move)
	if err != nil {
		return engine.Progress{}, err
	}
	pv := make([]reversi.Move, 0, len(l.PV))
	for _, tok := range l.PV {
		m, err := reversi.ParseMove(tok)
		if err != nil {
			return engine.Progress{}, fmt.Errorf("pv: %w", err)
		}
		pv = append(pv, m)
	}
	return engine.Progress{
		Move:        mv,
		Score:       l.Score,
		Depth:       l.Depth,
		TargetDepth: l.TargetDepth,
		Certainty:   l.Certainty,
		Nodes:       l.Nodes,
		PV:          pv,
		Endgame:     l.Endgame,
	}, nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("engine api error: status=%d body=%s", e.status, e.body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	attempts := 1
	if retry {
		attempts = max(1, c.retryMax)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.do(ctx, method, c.baseURL+path, payload)
		if err == nil {
			if out != nil {
				if err := json.Unmarshal(body, out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var se *statusError
		if errors.As(err, &se) && !shouldRetryStatus(se.status) {
			return err
		}
		if attempt < attempts {
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return lastErr
}

// do runs one request and gives up when ctx ends. The request objects are
// released by whichever side finishes last.
func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")
	if payload != nil {
		req.SetBody(payload)
	}

	type result struct {
		body []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
		}()
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			ch <- result{err: fmt.Errorf("request failed: %w", err)}
			return
		}
		status := resp.StatusCode()
		body := append([]byte(nil), resp.Body()...)
		if status < 200 || status >= 300 {
			ch <- result{err: &statusError{status: status, body: truncate(string(body), 512)}}
			return
		}
		ch <- result{body: body}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.body, res.err
	}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
