// Package apierror defines the failure taxonomy shared by the token store,
// the authenticated client, the response validator and the command executor.
//
// Every error is terminal for the current invocation; none is retried.
// Callers classify wrapped errors with errors.As or KindOf.
package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for logging and exit-code mapping.
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindMissingCredential Kind = "missing_credential"
	KindUnexpectedStatus  Kind = "unexpected_status"
	KindMalformedBody     Kind = "malformed_body"
	KindUnexpectedShape   Kind = "unexpected_shape"
	KindCommandRejected   Kind = "command_rejected"
	KindUnknownAction     Kind = "unknown_action"
	KindInvalidInput      Kind = "invalid_input"
)

// MissingCredentialError reports that a token needed for a request is absent
// or expired in the token store.
type MissingCredentialError struct {
	Name    string
	Expired bool
}

func (e *MissingCredentialError) Error() string {
	if e.Expired {
		return fmt.Sprintf("%s expired", e.Name)
	}
	return fmt.Sprintf("%s not found", e.Name)
}

// UnexpectedStatusError reports an HTTP status other than 200.
type UnexpectedStatusError struct {
	Endpoint string
	Code     int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s api returned status code %d", e.Endpoint, e.Code)
}

// MalformedBodyError reports a response body that is not valid JSON.
type MalformedBodyError struct {
	Endpoint string
	Err      error
}

func (e *MalformedBodyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s api returned malformed body: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s api returned malformed body", e.Endpoint)
}

func (e *MalformedBodyError) Unwrap() error {
	return e.Err
}

// UnexpectedShapeError reports a JSON body missing a required key path.
type UnexpectedShapeError struct {
	Endpoint string
	Path     string
}

func (e *UnexpectedShapeError) Error() string {
	return fmt.Sprintf("%s api returned wrong body format: missing %s", e.Endpoint, e.Path)
}

// CommandRejectedError carries the provider's reason for refusing a command.
type CommandRejectedError struct {
	Endpoint string
	Reason   string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("%s api rejected command: %s", e.Endpoint, e.Reason)
}

// UnknownActionError reports an action string outside the supported set.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action: %q", e.Action)
}

// InvalidInputError reports a value supplied on the command line that cannot
// be used, such as an unknown token type or an already expired token.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// KindOf returns the Kind of the first taxonomy error found in err's chain.
func KindOf(err error) Kind {
	var (
		missing  *MissingCredentialError
		status   *UnexpectedStatusError
		body     *MalformedBodyError
		shape    *UnexpectedShapeError
		rejected *CommandRejectedError
		action   *UnknownActionError
		input    *InvalidInputError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &missing):
		return KindMissingCredential
	case errors.As(err, &status):
		return KindUnexpectedStatus
	case errors.As(err, &body):
		return KindMalformedBody
	case errors.As(err, &shape):
		return KindUnexpectedShape
	case errors.As(err, &rejected):
		return KindCommandRejected
	case errors.As(err, &action):
		return KindUnknownAction
	case errors.As(err, &input):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}
