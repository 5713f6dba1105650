package interview

import (
	"errors"
	"fmt"
)

// Controller misuse. These fail fast at the call site.
var (
	ErrInvalidState     = errors.New("interview: operation not valid in current state")
	ErrEmptyQuestionSet = errors.New("interview: question set is empty")
)

// Speech input failures surfaced to the controller. Permission and device
// failures halt the session; an unsupported environment is normally caught
// by the capability probe at construction and degrades to simulation.
var (
	ErrPermissionDenied       = errors.New("speech input: permission denied")
	ErrDeviceUnavailable      = errors.New("speech input: capture device unavailable")
	ErrUnsupportedEnvironment = errors.New("speech input: capture not supported in this environment")
)

// TransientError wraps a recognition error that is safe to retry within the
// same turn. The controller reports it and stays in Listening.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("speech input: transient recognition error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsFatalInputError reports whether a speech input error blocks forward
// progress. Fatal errors move the session to Failed; everything else leaves
// the controller in Listening so the user can retry the turn.
func IsFatalInputError(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return false
	}
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrDeviceUnavailable) ||
		errors.Is(err, ErrUnsupportedEnvironment)
}
