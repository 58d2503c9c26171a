package history

import (
	"time"

	"github.com/park285/cheese-reversi/internal/reversi"
)

// Record is one applied placement or pass. Records are never modified after
// creation; a Timeline only ever copies them.
type Record struct {
	ID        int
	Side      reversi.Side
	Move      reversi.Move
	Score     float64
	HasScore  bool
	Remaining time.Duration
	HasClock  bool
	Notation  string
}

func NewRecord(id int, side reversi.Side, mv reversi.Move) Record {
	return Record{ID: id, Side: side, Move: mv, Notation: mv.String()}
}

func (r Record) IsPass() bool { return r.Move.IsPass() }

// WithScore returns a copy carrying the engine evaluation.
func (r Record) WithScore(score float64) Record {
	r.Score = score
	r.HasScore = true
	return r
}

// WithClock returns a copy carrying the remaining clock time.
func (r Record) WithClock(remaining time.Duration) Record {
	r.Remaining = remaining
	r.HasClock = true
	return r
}

// Timeline is an append/undo/redo log. Every operation returns a new value
// and leaves the receiver untouched; navigation that changes nothing returns
// the receiver itself so callers can detect it by pointer comparison.
type Timeline struct {
	records []Record
	cursor  int
}

func Empty() *Timeline { return &Timeline{} }

// FromRecords builds a timeline over records with the cursor clamped to
// [0, len(records)].
func FromRecords(records []Record, cursor int) *Timeline {
	cursor = max(0, min(cursor, len(records)))
	return &Timeline{records: append([]Record(nil), records...), cursor: cursor}
}

// Append drops any redo suffix, adds r and moves the cursor past it.
func (t *Timeline) Append(r Record) *Timeline {
	next := make([]Record, t.cursor, t.cursor+1)
	copy(next, t.records[:t.cursor])
	next = append(next, r)
	return &Timeline{records: next, cursor: len(next)}
}

func (t *Timeline) Undo(n int) *Timeline {
	target := max(0, t.cursor-max(n, 0))
	if target == t.cursor {
		return t
	}
	return &Timeline{records: t.records, cursor: target}
}

func (t *Timeline) Redo(n int) *Timeline {
	target := min(len(t.records), t.cursor+max(n, 0))
	if target == t.cursor {
		return t
	}
	return &Timeline{records: t.records, cursor: target}
}

// Current returns the active prefix. The slice must not be modified.
func (t *Timeline) Current() []Record { return t.records[:t.cursor:t.cursor] }

// RedoMoves returns the suffix that Redo would restore.
func (t *Timeline) RedoMoves() []Record { return t.records[t.cursor:] }

// All returns every record including the redo suffix.
func (t *Timeline) All() []Record { return t.records[:len(t.records):len(t.records)] }

func (t *Timeline) CanUndo() bool { return t.cursor > 0 }
func (t *Timeline) CanRedo() bool { return t.cursor < len(t.records) }
func (t *Timeline) Len() int      { return t.cursor }
func (t *Timeline) TotalLen() int { return len(t.records) }
func (t *Timeline) Cursor() int   { return t.cursor }

func (t *Timeline) Last() (Record, bool) {
	if t.cursor == 0 {
		return Record{}, false
	}
	return t.records[t.cursor-1], true
}
