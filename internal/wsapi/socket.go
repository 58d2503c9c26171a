package wsapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-reversi/internal/adapter/presenter"
	"github.com/park285/cheese-reversi/internal/game"
	"github.com/park285/cheese-reversi/internal/msgcat"
	"github.com/park285/cheese-reversi/internal/reversi"
	"github.com/park285/cheese-reversi/internal/setup"
	"github.com/park285/cheese-reversi/pkg/reversidto"
)

const writeTimeout = 5 * time.Second

var errUnknownCommand = errors.New("unknown command")

// conn is one websocket client bound to one game session.
type conn struct {
	ws       *websocket.Conn
	sess     *game.Session
	defaults game.Options
	messages *msgcat.Catalog
	logger   *zap.Logger
	writeMu  sync.Mutex
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		OriginPatterns:  s.origins,
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	sess, err := s.sessions()
	if err != nil {
		s.logger.Error("session_create_failed", zap.Error(err))
		_ = ws.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	defer sess.Close()

	c := &conn{ws: ws, sess: sess, defaults: s.defaults, messages: s.messages, logger: s.logger}
	events, stop := sess.Subscribe()
	defer stop()

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return c.readLoop(ctx) })
	g.Go(func() error { return c.writeLoop(ctx, events) })
	g.Go(func() error { return c.pingLoop(ctx, s.pingInterval) })

	err = g.Wait()
	s.logger.Debug("ws_closed",
		zap.String("session", sess.ID()),
		zap.Int("status", int(websocket.CloseStatus(err))),
		zap.Error(err))
	_ = ws.Close(websocket.StatusNormalClosure, "")
}

func (c *conn) readLoop(ctx context.Context) error {
	for {
		var cmd reversidto.Command
		if err := wsjson.Read(ctx, c.ws, &cmd); err != nil {
			return err
		}
		if err := c.handle(ctx, cmd); err != nil {
			c.logger.Debug("ws_command_rejected", zap.String("type", cmd.Type), zap.Error(err))
			if werr := c.write(ctx, reversidto.Message{Type: reversidto.MessageError, Error: presenter.ToLocalizedError(c.messages, err)}); werr != nil {
				return werr
			}
		}
	}
}

func (c *conn) writeLoop(ctx context.Context, events <-chan game.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return game.ErrClosed
			}
			if err := c.write(ctx, c.message(ev)); err != nil {
				return err
			}
		}
	}
}

func (c *conn) pingLoop(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *conn) write(ctx context.Context, msg reversidto.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.ws, msg)
}

func (c *conn) message(ev game.Event) reversidto.Message {
	switch ev.Kind {
	case game.EventAnalysis:
		return reversidto.Message{Type: reversidto.MessageAnalysis, Analysis: presenter.ToDTOHint(ev.Progress)}
	case game.EventPassNotice:
		return reversidto.Message{Type: reversidto.MessagePass, Side: ev.Side.String()}
	case game.EventGameOver:
		return reversidto.Message{
			Type:   reversidto.MessageGameOver,
			State:  presenter.ToDTOState(c.sess.ID(), ev.State),
			Result: string(ev.Result),
		}
	case game.EventEngineFailed:
		return reversidto.Message{Type: reversidto.MessageError, Error: presenter.ToLocalizedError(c.messages, ev.Err)}
	default:
		return reversidto.Message{Type: reversidto.MessageState, State: presenter.ToDTOState(c.sess.ID(), ev.State)}
	}
}

func (c *conn) handle(ctx context.Context, cmd reversidto.Command) error {
	switch cmd.Type {
	case reversidto.CommandStart:
		opts, err := gameOptions(cmd, c.defaults)
		if err != nil {
			return err
		}
		return c.sess.Start(ctx, opts)
	case reversidto.CommandSetup:
		opts, err := gameOptions(cmd, c.defaults)
		if err != nil {
			return err
		}
		draft, err := setupDraft(cmd.Setup)
		if err != nil {
			return err
		}
		return c.sess.CommitSetup(ctx, opts, draft)
	case reversidto.CommandResume:
		return c.sess.Resume(ctx, cmd.SessionID)
	case reversidto.CommandPlace:
		mv, err := reversi.ParseMove(cmd.Move)
		if err != nil {
			return err
		}
		return c.sess.Place(mv)
	case reversidto.CommandPassAck:
		return c.sess.AcknowledgePass()
	case reversidto.CommandUndo:
		return c.sess.Undo()
	case reversidto.CommandRedo:
		return c.sess.Redo()
	case reversidto.CommandReset:
		return c.sess.Reset()
	case reversidto.CommandRetry:
		return c.sess.Retry()
	case reversidto.CommandHint:
		if cmd.Hint == nil {
			return errors.New("hint: missing enabled flag")
		}
		return c.sess.SetHint(*cmd.Hint)
	case reversidto.CommandSnapshot:
		return c.write(ctx, reversidto.Message{
			Type:  reversidto.MessageState,
			State: presenter.ToDTOState(c.sess.ID(), c.sess.State()),
		})
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, cmd.Type)
	}
}

// gameOptions overlays the fields a command sets onto the server defaults.
func gameOptions(cmd reversidto.Command, defaults game.Options) (game.Options, error) {
	opts := defaults
	if cmd.Mode != "" {
		mode, err := reversi.ParseMode(cmd.Mode)
		if err != nil {
			return game.Options{}, err
		}
		opts.Mode = mode
	}
	if cmd.TimeBudgetMS < 0 {
		return game.Options{}, errors.New("time budget must not be negative")
	}
	if cmd.TimeBudgetMS > 0 {
		opts.TimeBudget = time.Duration(cmd.TimeBudgetMS) * time.Millisecond
	}
	if cmd.Level != "" {
		opts.Level = cmd.Level
	}
	if cmd.HintLevel != "" {
		opts.HintLevel = cmd.HintLevel
	}
	if cmd.Hint != nil {
		opts.HintEnabled = *cmd.Hint
	}
	return opts, nil
}

// setupDraft builds a draft from the wire request. In manual mode the board
// field carries the edited cells.
func setupDraft(req *reversidto.SetupRequest) (*setup.Draft, error) {
	if req == nil {
		return nil, nil
	}
	mode, err := setup.ParseInputMode(req.InputMode)
	if err != nil {
		return nil, err
	}
	draft := setup.NewDraft()
	draft.Mode = mode
	draft.Transcript = req.Transcript
	draft.BoardString = req.Board
	if req.SideToMove != "" {
		side, err := reversi.ParseSide(req.SideToMove)
		if err != nil {
			return nil, err
		}
		draft.SideToMove = side
	}
	if mode == setup.InputManual && req.Board != "" {
		pos, err := setup.ParseBoardString(req.Board)
		if err != nil {
			return nil, err
		}
		draft.Board = pos.Board
	}
	return draft, nil
}
