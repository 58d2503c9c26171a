package presenter

import (
	"errors"

	"github.com/park285/cheese-reversi/internal/dispatch"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/game"
	"github.com/park285/cheese-reversi/internal/msgcat"
	"github.com/park285/cheese-reversi/internal/setup"
	"github.com/park285/cheese-reversi/pkg/reversidto"
)

var dispatchCodes = []struct {
	err  error
	code string
}{
	{dispatch.ErrNotPlaying, "notPlaying"},
	{dispatch.ErrNotYourTurn, "notYourTurn"},
	{dispatch.ErrIllegalMove, "illegalMove"},
	{dispatch.ErrPassPending, "passPending"},
	{dispatch.ErrNoPendingPass, "noPendingPass"},
	{dispatch.ErrNothingToUndo, "nothingToUndo"},
	{dispatch.ErrNothingToRedo, "nothingToRedo"},
	{game.ErrSessionNotFound, "sessionNotFound"},
	{game.ErrClosed, "sessionClosed"},
}

var engineCodes = []struct {
	err  error
	code string
}{
	{engine.ErrTimeout, "aiTimeout"},
	{engine.ErrCancelled, "aiCancelled"},
	{engine.ErrUnavailable, "aiUnavailable"},
}

// ToDomainError maps an error to its stable wire code. Setup errors keep
// their own code, including the notation of an illegal transcript move.
func ToDomainError(err error) *reversidto.DomainError {
	if err == nil {
		return nil
	}
	var se *setup.Error
	if errors.As(err, &se) {
		return &reversidto.DomainError{Code: string(se.Code), Message: se.Error()}
	}
	if errors.Is(err, engine.ErrInitFailed) {
		return &reversidto.DomainError{Code: engine.ErrInitFailed.Error(), Message: err.Error(), Retryable: true}
	}
	for _, ec := range engineCodes {
		if errors.Is(err, ec.err) {
			return &reversidto.DomainError{Code: ec.code, Message: err.Error(), Retryable: true}
		}
	}
	for _, dc := range dispatchCodes {
		if errors.Is(err, dc.err) {
			return &reversidto.DomainError{Code: dc.code, Message: err.Error()}
		}
	}
	return &reversidto.DomainError{Code: "badRequest", Message: err.Error()}
}

// ErrorText is the data available to error message templates.
type ErrorText struct {
	Code   string
	Detail string
	Move   string
}

// ToLocalizedError maps err like ToDomainError and replaces the message
// with the catalog text for its code. The raw message is kept when the
// catalog has no usable entry.
func ToLocalizedError(cat *msgcat.Catalog, err error) *reversidto.DomainError {
	de := ToDomainError(err)
	if de == nil || cat == nil {
		return de
	}
	data := ErrorText{Code: de.Code, Detail: err.Error()}
	var se *setup.Error
	if errors.As(err, &se) {
		data.Move = se.Notation
	}
	if text, rerr := cat.Render("errors."+de.Code, data); rerr == nil {
		de.Message = text
	}
	return de
}
