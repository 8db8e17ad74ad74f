package cmd

import (
	"errors"

	"github.com/justapithecus/aetheric/session"
)

// Exit codes shared by collect, replay and validate.
const (
	exitSuccess          = 0
	exitTransportError   = 1
	exitInternalError    = 2
	exitStorageFailure   = 3
	exitValidationFailed = 4
)

// outcomeToExitCode maps a session outcome to the process exit code.
func outcomeToExitCode(outcome session.Outcome) int {
	switch outcome {
	case session.OutcomeCompleted, session.OutcomeRemoteClosed:
		return exitSuccess
	case session.OutcomeTransportError, session.OutcomeCanceled:
		return exitTransportError
	case session.OutcomeStorageError:
		return exitStorageFailure
	default:
		return exitInternalError
	}
}

// startErrorExitCode classifies an error returned before a session started.
func startErrorExitCode(err error) int {
	switch {
	case session.IsTransportError(err):
		return exitTransportError
	case errors.Is(err, session.ErrInvalidOptions):
		return exitInternalError
	default:
		return exitStorageFailure
	}
}
