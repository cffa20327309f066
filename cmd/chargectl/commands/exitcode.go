package commands

import (
	"errors"

	"github.com/florianilch/chargectl/internal/apierror"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitInvalid = 2
)

// usageError marks a malformed invocation, such as a missing argument.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

// ExitCode maps the error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var usage *usageError
	if errors.As(err, &usage) {
		return ExitInvalid
	}

	switch apierror.KindOf(err) {
	case apierror.KindUnknownAction, apierror.KindInvalidInput:
		return ExitInvalid
	default:
		return ExitFailure
	}
}
