// Package presenter maps session and archive values to wire DTOs.
package presenter

import (
	"github.com/park285/cheese-reversi/internal/dispatch"
	"github.com/park285/cheese-reversi/internal/domain"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/history"
	"github.com/park285/cheese-reversi/internal/reversi"
	"github.com/park285/cheese-reversi/internal/setup"
	"github.com/park285/cheese-reversi/pkg/reversidto"
)

func ToDTOState(sessionID string, s dispatch.State) *reversidto.SessionState {
	board, side := s.Position()
	moves := s.Moves()
	out := &reversidto.SessionState{
		SessionID:   sessionID,
		Status:      string(s.Status),
		Mode:        string(s.Settings.Mode),
		Level:       s.Settings.Strength.Level,
		Board:       boardRows(board),
		SideToMove:  side.String(),
		LegalMoves:  []string{},
		Moves:       make([]reversidto.MoveRecord, 0, len(moves)),
		CanUndo:     s.CanUndo(),
		CanRedo:     s.CanRedo(),
		Score:       toDTOScore(reversi.ScoreOf(board)),
		Thinking:    s.Thinking,
		Analyzing:   s.Analyzing,
		HintEnabled: s.Settings.HintEnabled,
		ClockMS:     s.Clock.Milliseconds(),
		Transcript:  history.Transcript(moves),
	}
	if s.Status == dispatch.StatusPlaying && s.PendingPass == reversi.None {
		for _, mv := range reversi.LegalMoves(board, side) {
			out.LegalMoves = append(out.LegalMoves, mv.String())
		}
	}
	for _, rec := range moves {
		out.Moves = append(out.Moves, toDTORecord(rec))
	}
	if last, ok := s.LastMove(); ok {
		out.LastMove = last.Notation
	}
	if s.PendingPass != reversi.None {
		out.PendingPass = s.PendingPass.String()
	}
	for _, h := range s.Hints {
		out.Hints = append(out.Hints, *ToDTOHint(h))
	}
	return out
}

func ToDTOHint(p engine.Progress) *reversidto.Hint {
	pv := make([]string, 0, len(p.PV))
	for _, mv := range p.PV {
		pv = append(pv, mv.String())
	}
	return &reversidto.Hint{
		Move:        p.Move.String(),
		Score:       p.Score,
		Depth:       p.Depth,
		TargetDepth: p.TargetDepth,
		Certainty:   p.Certainty,
		Nodes:       p.Nodes,
		PV:          pv,
		Endgame:     p.Endgame,
	}
}

func ToDTOGame(g *domain.Game) *reversidto.Game {
	if g == nil {
		return nil
	}
	return &reversidto.Game{
		ID:         g.ID,
		SessionID:  g.SessionID,
		Mode:       g.Mode,
		Level:      g.Level,
		Result:     g.Result,
		Score:      reversidto.Score{Black: g.BlackDiscs, White: g.WhiteDiscs},
		Moves:      append([]string(nil), g.Moves...),
		Transcript: g.Transcript,
		StartBoard: g.StartBoard,
		StartSide:  g.StartSide,
		StartedAt:  g.StartedAt,
		EndedAt:    g.EndedAt,
		DurationMS: g.Duration.Milliseconds(),
	}
}

func toDTORecord(rec history.Record) reversidto.MoveRecord {
	out := reversidto.MoveRecord{ID: rec.ID, Side: rec.Side.String(), Move: rec.Notation}
	if rec.HasScore {
		score := rec.Score
		out.Score = &score
	}
	if rec.HasClock {
		ms := rec.Remaining.Milliseconds()
		out.RemainingMS = &ms
	}
	return out
}

func toDTOScore(s reversi.Score) reversidto.Score {
	return reversidto.Score{Black: s.Black, White: s.White}
}

func boardRows(b reversi.Board) []string {
	flat := setup.BoardToString(b)
	rows := make([]string, 0, reversi.Size)
	for r := 0; r < reversi.Size; r++ {
		rows = append(rows, flat[r*reversi.Size:(r+1)*reversi.Size])
	}
	return rows
}
