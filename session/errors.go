package session

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalidOptions is returned when Options are incomplete.
var ErrInvalidOptions = errors.New("session: invalid options")

// TransportError reports a socket failure or timeout. The session ends and
// any retry belongs to the caller.
type TransportError struct {
	// Op is the failed step: dial, greet, read, or status.
	Op string
	// Err is the underlying error.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	return isTimeout(e.Err)
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
