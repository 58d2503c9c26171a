package nboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/reversi"
)

// position is what the engine is asked to search: a board, the side to
// move and, in timed games, that side's remaining clock.
type position struct {
	board reversi.Board
	side  reversi.Side
	clock time.Duration
	timed bool
}

func positionOf(req engine.Request) position {
	return position{board: req.Board, side: req.Side, clock: req.Clock, timed: req.Timed}
}

// gameRecord encodes a position as a GGF record with no moves, which is how
// NBoard hands an arbitrary start position to the engine. A timed position
// carries TI and the mover's BL or WL so the engine paces itself.
func gameRecord(p position) string {
	b, side := p.board, p.side
	var sb strings.Builder
	sb.WriteString("(;GM[Othello]PC[cheese]")
	if p.timed {
		fmt.Fprintf(&sb, "TI[%s]", ggfTime(p.clock))
	}
	sb.WriteString("TY[8]BO[8 ")
	for r := 0; r < reversi.Size; r++ {
		for c := 0; c < reversi.Size; c++ {
			switch b.At(r, c) {
			case reversi.Black:
				sb.WriteByte('*')
			case reversi.White:
				sb.WriteByte('O')
			default:
				sb.WriteByte('-')
			}
		}
	}
	sb.WriteByte(' ')
	if side == reversi.White {
		sb.WriteByte('O')
	} else {
		sb.WriteByte('*')
	}
	sb.WriteByte(']')
	if p.timed {
		tag := "BL"
		if side == reversi.White {
			tag = "WL"
		}
		fmt.Fprintf(&sb, "%s[%s]", tag, ggfTime(p.clock))
	}
	sb.WriteString(";)")
	return sb.String()
}

// ggfTime renders a clock as GGF minutes:seconds, truncating fractions.
func ggfTime(d time.Duration) string {
	secs := int64(max(d, 0) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func parseMove(token string) (reversi.Move, error) {
	token = strings.TrimSpace(token)
	if strings.EqualFold(token, "PA") {
		return reversi.Pass, nil
	}
	return reversi.ParseMove(token)
}

// parseMoveLine reads "=== F5/1.50/0.3", where eval and time are optional.
func parseMoveLine(line string) (engine.MoveResult, error) {
	rest, ok := strings.CutPrefix(line, "===")
	if !ok {
		return engine.MoveResult{}, fmt.Errorf("not a move line: %q", line)
	}
	parts := strings.Split(strings.TrimSpace(rest), "/")
	mv, err := parseMove(parts[0])
	if err != nil {
		return engine.MoveResult{}, fmt.Errorf("move line %q: %w", line, err)
	}
	res := engine.MoveResult{Move: mv, Found: !mv.IsPass(), Certainty: 100}
	if len(parts) > 1 && parts[1] != "" {
		if v, err := strconv.ParseFloat(parts[1], 64); err == nil {
			res.Score = v
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if v, err := strconv.ParseFloat(parts[2], 64); err == nil {
			res.Elapsed = time.Duration(v * float64(time.Second))
		}
	}
	return res, nil
}

// parseSearchLine reads "search F5 1.5 0 22@73%" (or a "book" line of the
// same shape). A depth carrying a certainty marks an exact endgame search.
func parseSearchLine(line string) (engine.Progress, bool) {
	parts := strings.Fields(line)
	if len(parts) < 3 || (parts[0] != "search" && parts[0] != "book") {
		return engine.Progress{}, false
	}
	mv, err := parseMove(parts[1])
	if err != nil || mv.IsPass() {
		return engine.Progress{}, false
	}
	score, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return engine.Progress{}, false
	}
	p := engine.Progress{Move: mv, Score: score, Certainty: 100, PV: []reversi.Move{mv}}
	if len(parts) >= 5 {
		depth := parts[4]
		if d, cert, found := strings.Cut(depth, "@"); found {
			depth = d
			p.Endgame = true
			if v, err := strconv.Atoi(strings.TrimSuffix(cert, "%")); err == nil {
				p.Certainty = v
			}
		}
		if v, err := strconv.Atoi(depth); err == nil {
			p.Depth = v
		}
	}
	return p, true
}

// parseNodeStats reads "nodestats 123456 0.75".
func parseNodeStats(line string) (int64, bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 || parts[0] != "nodestats" {
		return 0, false
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
