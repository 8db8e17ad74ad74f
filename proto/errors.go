package proto

import (
	"errors"
	"fmt"
)

// ParseErrorKind classifies errors that end a connection's parse.
type ParseErrorKind int

const (
	// ParseErrorInvariant indicates a parser defect, such as writing to a
	// spool session that is not open. Never caused by bad input.
	ParseErrorInvariant ParseErrorKind = iota
	// ParseErrorHandler indicates a collaborator callback failed.
	ParseErrorHandler
	// ParseErrorClosed indicates Feed was called after Close.
	ParseErrorClosed
)

func (k ParseErrorKind) String() string {
	switch k {
	case ParseErrorInvariant:
		return "invariant_violation"
	case ParseErrorHandler:
		return "handler_error"
	case ParseErrorClosed:
		return "parser_closed"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", int(k))
	}
}

// ParseError is returned by Feed. Malformed input never produces one; every
// ParseError terminates processing of the connection.
type ParseError struct {
	Kind ParseErrorKind
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ends the connection. Every ParseError does;
// errors that are not ParseErrors (such as context cancellation) do not.
func IsFatal(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsInvariantViolation reports whether err signals a parser defect.
func IsInvariantViolation(err error) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind == ParseErrorInvariant
	}
	return false
}

// IsHandlerError reports whether err came from a collaborator callback.
func IsHandlerError(err error) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind == ParseErrorHandler
	}
	return false
}

func invariantError(msg string, err error) error {
	return &ParseError{Kind: ParseErrorInvariant, Msg: msg, Err: err}
}

func handlerError(msg string, err error) error {
	return &ParseError{Kind: ParseErrorHandler, Msg: msg, Err: err}
}
