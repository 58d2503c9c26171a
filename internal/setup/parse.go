package setup

import (
	"strings"
	"unicode"

	"github.com/park285/cheese-reversi/internal/reversi"
)

// Position is a starting point for a game: a board plus the side to move.
type Position struct {
	Board      reversi.Board
	SideToMove reversi.Side
}

func InitialPosition() Position {
	return Position{Board: reversi.InitialBoard(), SideToMove: reversi.Black}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ParseTranscript replays a run of two-character tokens ("f5d6c3") from the
// initial position. Forced passes are inserted automatically.
func ParseTranscript(input string) (Position, error) {
	raw := []rune(stripSpace(input))
	pos := InitialPosition()
	if len(raw) == 0 {
		return pos, nil
	}
	if len(raw)%2 != 0 {
		return Position{}, ErrInvalidLength
	}

	board, side := pos.Board, pos.SideToMove
	for i := 0; i < len(raw); i += 2 {
		token := string(raw[i : i+2])
		mv, err := reversi.ParseMove(token)
		if err != nil || mv.IsPass() {
			return Position{}, ErrInvalidMove
		}
		if !reversi.HasLegalMove(board, side) {
			if !reversi.HasLegalMove(board, side.Opponent()) {
				return Position{}, ErrGameAlreadyOver
			}
			side = side.Opponent()
		}
		if !reversi.IsLegal(board, mv, side) {
			return Position{}, illegalMove(token)
		}
		board = reversi.ApplyPlacement(board, mv, side)
		side = side.Opponent()
	}
	if !reversi.HasLegalMove(board, side) && reversi.HasLegalMove(board, side.Opponent()) {
		side = side.Opponent()
	}
	return Position{Board: board.WithoutMarkers(), SideToMove: side}, nil
}

// ParseBoardString reads 64 cells in row-major order. Whitespace is ignored;
// X, B and * are black, O and W are white, - and . are empty.
func ParseBoardString(input string) (Position, error) {
	raw := []rune(stripSpace(input))
	pos := Position{Board: reversi.EmptyBoard(), SideToMove: reversi.Black}
	if len(raw) == 0 {
		return pos, nil
	}
	if len(raw) != reversi.Size*reversi.Size {
		return Position{}, ErrInvalidBoardLength
	}
	for i, r := range raw {
		var s reversi.Side
		switch r {
		case 'X', 'x', 'B', 'b', '*':
			s = reversi.Black
		case 'O', 'o', 'W', 'w':
			s = reversi.White
		case '-', '.':
			s = reversi.None
		default:
			return Position{}, ErrInvalidCharacter
		}
		pos.Board[i/reversi.Size][i%reversi.Size].Side = s
	}
	return pos, nil
}

// BoardToString encodes b with X/O/- in row-major order. Presentation
// markers are not encoded.
func BoardToString(b reversi.Board) string {
	var sb strings.Builder
	sb.Grow(reversi.Size * reversi.Size)
	for r := 0; r < reversi.Size; r++ {
		for c := 0; c < reversi.Size; c++ {
			switch b.At(r, c) {
			case reversi.Black:
				sb.WriteByte('X')
			case reversi.White:
				sb.WriteByte('O')
			default:
				sb.WriteByte('-')
			}
		}
	}
	return sb.String()
}

// Validate reports whether a game can start from board with side to move.
func Validate(board reversi.Board, side reversi.Side) error {
	score := reversi.ScoreOf(board)
	if score.Black == 0 || score.White == 0 {
		return ErrNeedBothColors
	}
	if score.Total() < 4 {
		return ErrTooFewDiscs
	}
	own := reversi.HasLegalMove(board, side)
	opp := reversi.HasLegalMove(board, side.Opponent())
	switch {
	case !own && !opp:
		return ErrNoValidMoves
	case !own:
		return ErrCurrentPlayerNoMoves
	}
	return nil
}
