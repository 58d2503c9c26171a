package reversi

import (
	"fmt"
	"strings"
)

const Size = 8

// Cell is one square of the board. Placed marks the stone added by the most
// recent placement and only matters for presentation.
type Cell struct {
	Side   Side
	Placed bool
}

// Board is a value type: assignment copies every cell, so a Board handed to
// a caller can never be changed behind its back.
type Board [Size][Size]Cell

type Move struct {
	Row int
	Col int
}

// Pass is the sentinel move recorded when a side has no legal placement.
var Pass = Move{Row: -1, Col: -1}

func (m Move) IsPass() bool { return m == Pass }

func (m Move) OnBoard() bool {
	return m.Row >= 0 && m.Row < Size && m.Col >= 0 && m.Col < Size
}

// String renders the move as <FILE><RANK> ("F5"), or "Pass".
func (m Move) String() string {
	if m.IsPass() {
		return "Pass"
	}
	if !m.OnBoard() {
		return fmt.Sprintf("(%d,%d)", m.Row, m.Col)
	}
	return string(rune('A'+m.Col)) + string(rune('1'+m.Row))
}

// ParseMove reads a two-character coordinate such as "f5" or "F5".
// "pa" and "pass" decode to Pass.
func ParseMove(token string) (Move, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "pa" || t == "pass" {
		return Pass, nil
	}
	if len(t) != 2 {
		return Move{}, fmt.Errorf("invalid move token %q", token)
	}
	file, rank := t[0], t[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return Move{}, fmt.Errorf("invalid move token %q", token)
	}
	return Move{Row: int(rank - '1'), Col: int(file - 'a')}, nil
}

var directions = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

func EmptyBoard() Board { return Board{} }

// InitialBoard returns the standard opening position: white on d4/e5,
// black on e4/d5.
func InitialBoard() Board {
	var b Board
	mid := Size / 2
	b[mid-1][mid-1].Side = White
	b[mid][mid].Side = White
	b[mid-1][mid].Side = Black
	b[mid][mid-1].Side = Black
	return b
}

func (b Board) At(row, col int) Side {
	if row < 0 || row >= Size || col < 0 || col >= Size {
		return None
	}
	return b[row][col].Side
}

// Set returns a copy of b with the cell at (row, col) owned by s.
func (b Board) Set(row, col int, s Side) Board {
	b[row][col] = Cell{Side: s}
	return b
}

// WithoutMarkers returns b with every Placed flag cleared.
func (b Board) WithoutMarkers() Board {
	for r := range b {
		for c := range b[r] {
			b[r][c].Placed = false
		}
	}
	return b
}

// SameStones compares ownership only and ignores presentation markers.
func (b Board) SameStones(other Board) bool {
	return b.WithoutMarkers() == other.WithoutMarkers()
}

func (b Board) Empties() int {
	n := 0
	for r := range b {
		for c := range b[r] {
			if b[r][c].Side == None {
				n++
			}
		}
	}
	return n
}

// FlippedCells lists the opponent stones that a placement by side at
// (row, col) would turn over. An empty result means the move is illegal.
func FlippedCells(b Board, row, col int, side Side) []Move {
	if !side.Valid() || b.At(row, col) != None || !(Move{Row: row, Col: col}).OnBoard() {
		return nil
	}
	opp := side.Opponent()
	var flips []Move
	for _, d := range directions {
		r, c := row+d[0], col+d[1]
		run := 0
		for b.At(r, c) == opp {
			r += d[0]
			c += d[1]
			run++
		}
		if run == 0 || b.At(r, c) != side {
			continue
		}
		for i := 1; i <= run; i++ {
			flips = append(flips, Move{Row: row + d[0]*i, Col: col + d[1]*i})
		}
	}
	return flips
}

func IsLegal(b Board, m Move, side Side) bool {
	return len(FlippedCells(b, m.Row, m.Col, side)) > 0
}

// LegalMoves enumerates playable cells in row-major order.
func LegalMoves(b Board, side Side) []Move {
	var moves []Move
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if len(FlippedCells(b, r, c, side)) > 0 {
				moves = append(moves, Move{Row: r, Col: c})
			}
		}
	}
	return moves
}

func HasLegalMove(b Board, side Side) bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if len(FlippedCells(b, r, c, side)) > 0 {
				return true
			}
		}
	}
	return false
}

// ApplyPlacement returns the board after side plays m. The input board is
// not modified. Applying an illegal move is a programming error and panics.
func ApplyPlacement(b Board, m Move, side Side) Board {
	flips := FlippedCells(b, m.Row, m.Col, side)
	if len(flips) == 0 {
		panic(fmt.Sprintf("reversi: illegal placement %s for %s", m, side))
	}
	next := b.WithoutMarkers()
	next[m.Row][m.Col] = Cell{Side: side, Placed: true}
	for _, f := range flips {
		next[f.Row][f.Col].Side = side
	}
	return next
}

type Score struct {
	Black int
	White int
}

func (s Score) Total() int { return s.Black + s.White }

func (s Score) Of(side Side) int {
	switch side {
	case Black:
		return s.Black
	case White:
		return s.White
	default:
		return 0
	}
}

func ScoreOf(b Board) Score {
	var s Score
	for r := range b {
		for c := range b[r] {
			switch b[r][c].Side {
			case Black:
				s.Black++
			case White:
				s.White++
			}
		}
	}
	return s
}

type Result string

const (
	ResultBlack Result = "black"
	ResultWhite Result = "white"
	ResultDraw  Result = "draw"
)

func Winner(s Score) Result {
	switch {
	case s.Black > s.White:
		return ResultBlack
	case s.White > s.Black:
		return ResultWhite
	default:
		return ResultDraw
	}
}
