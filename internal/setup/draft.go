package setup

import (
	"fmt"

	"github.com/park285/cheese-reversi/internal/reversi"
)

// InputMode selects which field of a Draft is authoritative on commit.
type InputMode string

const (
	InputManual      InputMode = "manual"
	InputTranscript  InputMode = "transcript"
	InputBoardString InputMode = "boardString"
)

func ParseInputMode(raw string) (InputMode, error) {
	switch InputMode(raw) {
	case InputManual, InputTranscript, InputBoardString:
		return InputMode(raw), nil
	case "":
		return InputManual, nil
	}
	return "", fmt.Errorf("unknown setup input mode: %q", raw)
}

// Draft is the editable pre-game position. It lives between opening the
// setup screen and committing or cancelling it.
type Draft struct {
	Board       reversi.Board
	SideToMove  reversi.Side
	Mode        InputMode
	Transcript  string
	BoardString string
	LastError   error
}

func NewDraft() *Draft {
	return &Draft{
		Board:      reversi.InitialBoard(),
		SideToMove: reversi.Black,
		Mode:       InputManual,
	}
}

// DraftFrom seeds a draft with an existing position, e.g. the current game.
func DraftFrom(board reversi.Board, side reversi.Side) *Draft {
	d := NewDraft()
	d.Board = board.WithoutMarkers()
	d.SideToMove = side
	d.BoardString = BoardToString(board)
	return d
}

func (d *Draft) SetCell(row, col int, s reversi.Side) {
	if !(reversi.Move{Row: row, Col: col}).OnBoard() {
		return
	}
	d.Board = d.Board.Set(row, col, s)
	d.LastError = nil
}

// CycleCell steps a cell through empty, black, white and back to empty.
func (d *Draft) CycleCell(row, col int) {
	next := reversi.None
	switch d.Board.At(row, col) {
	case reversi.None:
		next = reversi.Black
	case reversi.Black:
		next = reversi.White
	}
	d.SetCell(row, col, next)
}

func (d *Draft) Clear() {
	d.Board = reversi.EmptyBoard()
	d.LastError = nil
}

func (d *Draft) ResetToInitial() {
	d.Board = reversi.InitialBoard()
	d.SideToMove = reversi.Black
	d.LastError = nil
}

// Resolve parses the active input and validates the result. The error is
// also kept in LastError for display.
func (d *Draft) Resolve() (Position, error) {
	pos, err := d.parse()
	if err == nil {
		err = Validate(pos.Board, pos.SideToMove)
	}
	d.LastError = err
	if err != nil {
		return Position{}, err
	}
	return pos, nil
}

func (d *Draft) parse() (Position, error) {
	switch d.Mode {
	case InputTranscript:
		return ParseTranscript(d.Transcript)
	case InputBoardString:
		pos, err := ParseBoardString(d.BoardString)
		if err != nil {
			return Position{}, err
		}
		pos.SideToMove = d.SideToMove
		return pos, nil
	default:
		return Position{Board: d.Board.WithoutMarkers(), SideToMove: d.SideToMove}, nil
	}
}
