package setup

import "strings"

// Code is the stable identifier reported to the setup screen.
type Code string

const (
	CodeInvalidLength        Code = "invalidLength"
	CodeInvalidMove          Code = "invalidMove"
	CodeIllegalMove          Code = "illegalMove"
	CodeGameAlreadyOver      Code = "gameAlreadyOver"
	CodeInvalidBoardLength   Code = "invalidBoardLength"
	CodeInvalidCharacter     Code = "invalidCharacter"
	CodeNeedBothColors       Code = "needBothColors"
	CodeTooFewDiscs          Code = "tooFewDiscs"
	CodeNoValidMoves         Code = "noValidMoves"
	CodeCurrentPlayerNoMoves Code = "currentPlayerNoMoves"
)

// Error is returned by every parser and by Validate. Notation is only set
// for CodeIllegalMove and holds the offending token in upper case.
type Error struct {
	Code     Code
	Notation string
}

func (e *Error) Error() string {
	if e.Code == CodeIllegalMove && e.Notation != "" {
		return string(e.Code) + ":" + e.Notation
	}
	return string(e.Code)
}

// Is matches on Code so callers can compare against the Err* values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidLength        = &Error{Code: CodeInvalidLength}
	ErrInvalidMove          = &Error{Code: CodeInvalidMove}
	ErrIllegalMove          = &Error{Code: CodeIllegalMove}
	ErrGameAlreadyOver      = &Error{Code: CodeGameAlreadyOver}
	ErrInvalidBoardLength   = &Error{Code: CodeInvalidBoardLength}
	ErrInvalidCharacter     = &Error{Code: CodeInvalidCharacter}
	ErrNeedBothColors       = &Error{Code: CodeNeedBothColors}
	ErrTooFewDiscs          = &Error{Code: CodeTooFewDiscs}
	ErrNoValidMoves         = &Error{Code: CodeNoValidMoves}
	ErrCurrentPlayerNoMoves = &Error{Code: CodeCurrentPlayerNoMoves}
)

func illegalMove(token string) error {
	return &Error{Code: CodeIllegalMove, Notation: strings.ToUpper(token)}
}
