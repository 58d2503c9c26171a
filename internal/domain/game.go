package domain

import "time"

// Game is an archived finished game.
type Game struct {
	ID         int64
	SessionID  string
	Mode       string
	Level      string
	Result     string
	BlackDiscs int
	WhiteDiscs int
	Moves      []string
	Transcript string
	StartBoard string
	StartSide  string
	StartedAt  time.Time
	EndedAt    time.Time
	Duration   time.Duration
}
