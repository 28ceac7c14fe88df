package submit

import (
	"errors"
	"fmt"
)

// ErrGateLocked is returned when Submit is called before the session's gate
// has unlocked. It indicates a client bug: the form is never enabled while
// the gate is locked.
var ErrGateLocked = errors.New("agreement form is locked until all rule sections are read")

// ErrSubmissionInFlight is returned when a second submission arrives while
// one is still running for the same session.
var ErrSubmissionInFlight = errors.New("a submission is already in progress")

// Kind classifies a SubmissionError.
type Kind string

const (
	// KindBackend is a store failure other than a code collision. It is not retried.
	KindBackend Kind = "backend"
	// KindExhaustedRetries means every attempt collided on the confirmation code.
	KindExhaustedRetries Kind = "exhausted_retries"
)

// SubmissionError is a failed submission after validation passed.
type SubmissionError struct {
	Kind     Kind
	Message  string
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	switch e.Kind {
	case KindExhaustedRetries:
		return fmt.Sprintf("could not allocate a unique confirmation code after %d attempts", e.Attempts)
	default:
		return "submission failed: " + e.Message
	}
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsExhausted reports whether err is a SubmissionError of kind KindExhaustedRetries.
func IsExhausted(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se) && se.Kind == KindExhaustedRetries
}
