package presenter

import (
	"fmt"
	"testing"

	"github.com/park285/cheese-reversi/internal/dispatch"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/msgcat"
	"github.com/park285/cheese-reversi/internal/reversi"
	"github.com/park285/cheese-reversi/internal/setup"
)

func TestToDTOState(t *testing.T) {
	settings := dispatch.Settings{Mode: reversi.ModeAnalysis, Strength: engine.Strength{Level: "level1"}}
	s, _, err := dispatch.Transition(dispatch.NewState(settings), dispatch.Start{Board: reversi.InitialBoard(), Side: reversi.Black, Settings: settings})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	s, _, err = dispatch.Transition(s, dispatch.Place{Move: reversi.Move{Row: 4, Col: 5}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	dto := ToDTOState("sid", s)
	if dto.Board[4] != "---XXX--" || dto.Board[3] != "---OX---" {
		t.Fatalf("unexpected board rows %q", dto.Board)
	}
	if dto.SideToMove != "white" || dto.LastMove != "F5" || dto.Transcript != "f5" || !dto.CanUndo || dto.CanRedo {
		t.Fatalf("unexpected state %+v", dto)
	}
	if len(dto.LegalMoves) != 3 || dto.Score.Black != 4 || dto.Score.White != 1 {
		t.Fatalf("legal=%v score=%+v", dto.LegalMoves, dto.Score)
	}
}

func TestToDomainError(t *testing.T) {
	_, err := setup.ParseTranscript("f5a1")
	if got := ToDomainError(err); got.Code != "illegalMove" || got.Message != "illegalMove:A1" {
		t.Fatalf("setup error mapped to %+v", got)
	}
	if got := ToDomainError(fmt.Errorf("%w: c4", dispatch.ErrIllegalMove)); got.Code != "illegalMove" {
		t.Fatalf("dispatch error mapped to %+v", got)
	}
	if got := ToDomainError(fmt.Errorf("%w: boom", engine.ErrInitFailed)); got.Code != "aiInitFailed" || !got.Retryable {
		t.Fatalf("init error mapped to %+v", got)
	}
	if got := ToDomainError(engine.ErrTimeout); got.Code != "aiTimeout" || !got.Retryable {
		t.Fatalf("timeout mapped to %+v", got)
	}
	if got := ToDomainError(fmt.Errorf("no such level")); got.Code != "badRequest" {
		t.Fatalf("plain error mapped to %+v", got)
	}
	if ToDomainError(nil) != nil {
		t.Fatalf("nil error must map to nil")
	}
}

func TestToLocalizedError(t *testing.T) {
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	_, perr := setup.ParseTranscript("f5a1")
	if got := ToLocalizedError(cat, perr); got.Code != "illegalMove" || got.Message != "A1 is not a legal move." {
		t.Fatalf("setup error localized to %+v", got)
	}
	if got := ToLocalizedError(cat, dispatch.ErrNothingToUndo); got.Message != "Nothing to undo." {
		t.Fatalf("undo error localized to %+v", got)
	}
	if got := ToLocalizedError(cat, fmt.Errorf("limit too large")); got.Code != "badRequest" || got.Message != "limit too large" {
		t.Fatalf("bad request localized to %+v", got)
	}
	if got := ToLocalizedError(nil, dispatch.ErrNotPlaying); got.Message != dispatch.ErrNotPlaying.Error() {
		t.Fatalf("nil catalog should keep raw message: %+v", got)
	}
}
