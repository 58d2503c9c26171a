package store

import (
	"fmt"
	"time"

	"github.com/park285/cheese-reversi/internal/dispatch"
	"github.com/park285/cheese-reversi/internal/history"
	"github.com/park285/cheese-reversi/internal/reversi"
	"github.com/park285/cheese-reversi/internal/setup"
)

// Snapshot is the persisted form of a session: enough to replay it, redo
// suffix included. In-flight engine requests are not persisted.
type Snapshot struct {
	ID           string         `json:"id"`
	Mode         string         `json:"mode"`
	Level        string         `json:"level"`
	HintEnabled  bool           `json:"hint_enabled"`
	HintLevel    string         `json:"hint_level"`
	TimeBudgetMS int64          `json:"time_budget_ms"`
	Status       string         `json:"status"`
	StartBoard   string         `json:"start_board"`
	StartSide    string         `json:"start_side"`
	Moves        []SnapshotMove `json:"moves"`
	Cursor       int            `json:"cursor"`
	StartedAt    time.Time      `json:"started_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type SnapshotMove struct {
	Side        string   `json:"side"`
	Move        string   `json:"move"`
	Score       *float64 `json:"score,omitempty"`
	RemainingMS *int64   `json:"remaining_ms,omitempty"`
}

func encodeMove(m reversi.Move) string {
	if m.IsPass() {
		return "PA"
	}
	return m.String()
}

// FromState captures s under id.
func FromState(id string, s dispatch.State, startedAt, now time.Time) *Snapshot {
	t := s.Timeline
	if t == nil {
		t = history.Empty()
	}
	all := t.All()
	moves := make([]SnapshotMove, 0, len(all))
	for _, rec := range all {
		sm := SnapshotMove{Side: rec.Side.String(), Move: encodeMove(rec.Move)}
		if rec.HasScore {
			score := rec.Score
			sm.Score = &score
		}
		if rec.HasClock {
			ms := rec.Remaining.Milliseconds()
			sm.RemainingMS = &ms
		}
		moves = append(moves, sm)
	}
	return &Snapshot{
		ID:           id,
		Mode:         string(s.Settings.Mode),
		Level:        s.Settings.Strength.Level,
		HintEnabled:  s.Settings.HintEnabled,
		HintLevel:    s.Settings.HintStrength.Level,
		TimeBudgetMS: s.Settings.TimeBudget.Milliseconds(),
		Status:       string(s.Status),
		StartBoard:   setup.BoardToString(s.StartBoard),
		StartSide:    s.StartSide.String(),
		Moves:        moves,
		Cursor:       t.Cursor(),
		StartedAt:    startedAt,
		UpdatedAt:    now,
	}
}

// Position decodes the starting board and side.
func (s *Snapshot) Position() (reversi.Board, reversi.Side, error) {
	pos, err := setup.ParseBoardString(s.StartBoard)
	if err != nil {
		return reversi.Board{}, reversi.None, fmt.Errorf("start board: %w", err)
	}
	side, err := reversi.ParseSide(s.StartSide)
	if err != nil {
		return reversi.Board{}, reversi.None, fmt.Errorf("start side: %w", err)
	}
	return pos.Board, side, nil
}

// Timeline rebuilds the move history. Legality is checked when the
// timeline is started, not here.
func (s *Snapshot) Timeline() (*history.Timeline, error) {
	records := make([]history.Record, 0, len(s.Moves))
	for i, sm := range s.Moves {
		side, err := reversi.ParseSide(sm.Side)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i, err)
		}
		mv, err := reversi.ParseMove(sm.Move)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i, err)
		}
		rec := history.NewRecord(i+1, side, mv)
		if sm.Score != nil {
			rec = rec.WithScore(*sm.Score)
		}
		if sm.RemainingMS != nil {
			rec = rec.WithClock(time.Duration(*sm.RemainingMS) * time.Millisecond)
		}
		records = append(records, rec)
	}
	return history.FromRecords(records, s.Cursor), nil
}
