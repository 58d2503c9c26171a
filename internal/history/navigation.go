package history

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-reversi/internal/reversi"
)

// SideToMove follows the recorded sides rather than move parity, since a
// pass lets the same side move twice in a row.
func SideToMove(records []Record, start reversi.Side) reversi.Side {
	if len(records) == 0 {
		return start
	}
	return records[len(records)-1].Side.Opponent()
}

// UndoCount is how many records one undo step removes. Against the engine a
// step goes back to the human's previous decision point.
func UndoCount(current []Record, mode reversi.Mode, start reversi.Side) int {
	if len(current) == 0 {
		return 0
	}
	if !mode.VsEngine() {
		return 1
	}
	if SideToMove(current, start) == mode.HumanSide() {
		if len(current) >= 2 {
			return 2
		}
		return 0
	}
	return 1
}

// RedoCount replays forward until the human is to move again, counting the
// record that hands the turn back.
func RedoCount(current, all []Record, mode reversi.Mode, start reversi.Side) int {
	if len(current) >= len(all) {
		return 0
	}
	if !mode.VsEngine() {
		return 1
	}
	human := mode.HumanSide()
	n := 0
	for _, rec := range all[len(current):] {
		n++
		if rec.Side.Opponent() == human {
			return n
		}
	}
	return n
}

// Replay rebuilds the board for a prefix of records. Passes advance the side
// to move without touching the board.
func Replay(records []Record, board reversi.Board, start reversi.Side) (reversi.Board, reversi.Side) {
	for _, rec := range records {
		if rec.IsPass() {
			continue
		}
		board = reversi.ApplyPlacement(board, rec.Move, rec.Side)
	}
	return board, SideToMove(records, start)
}

// Verify checks that records form a legal sequence from the given start,
// including that passes only occur when the passing side had no move.
func Verify(records []Record, board reversi.Board, start reversi.Side) error {
	side := start
	for i, rec := range records {
		if rec.Side != side {
			return fmt.Errorf("record %d: %s moved out of turn", i, rec.Side)
		}
		if rec.IsPass() {
			if reversi.HasLegalMove(board, side) {
				return fmt.Errorf("record %d: %s passed with legal moves available", i, side)
			}
		} else {
			if !reversi.IsLegal(board, rec.Move, side) {
				return fmt.Errorf("record %d: illegal move %s for %s", i, rec.Move, side)
			}
			board = reversi.ApplyPlacement(board, rec.Move, side)
		}
		side = side.Opponent()
	}
	return nil
}

// Transcript concatenates placements in lower case and skips passes, which
// matches what the transcript importer accepts.
func Transcript(records []Record) string {
	var sb strings.Builder
	for _, rec := range records {
		if rec.IsPass() {
			continue
		}
		sb.WriteString(strings.ToLower(rec.Move.String()))
	}
	return sb.String()
}
