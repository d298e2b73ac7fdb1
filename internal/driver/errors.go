package driver

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PreconditionError reports a call that violated the injection surface's
// contract: made off the control loop, or against a window source in an
// unusable state (mismatched lists, nothing to target). Fatal to the
// operation, never retried internally.
type PreconditionError struct {
	Op      string
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition violated: %s", e.Op, e.Message)
}

// IdleTimeoutError reports that idle convergence did not complete within the
// configured timeout. Stalled holds the sorted names of every resource still
// active when time ran out.
type IdleTimeoutError struct {
	Timeout time.Duration
	Stalled []string
}

func (e *IdleTimeoutError) Error() string {
	return fmt.Sprintf("wait until idle: timed out after %s, still busy: %s",
		e.Timeout, strings.Join(e.Stalled, ", "))
}

// TranslationError reports text that the keymap could not turn into key
// events. Fatal, surfaced immediately, never retried.
type TranslationError struct {
	Text string
	Err  error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("inject text %q: %v", e.Text, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var e *PreconditionError
	return errors.As(err, &e)
}

// IsIdleTimeout reports whether err is an IdleTimeoutError.
func IsIdleTimeout(err error) bool {
	var e *IdleTimeoutError
	return errors.As(err, &e)
}

// IsTranslation reports whether err is a TranslationError.
func IsTranslation(err error) bool {
	var e *TranslationError
	return errors.As(err, &e)
}

// Outcome strings recorded for injections and waits.
const (
	OutcomeOK           = "ok"
	OutcomePrecondition = "precondition"
	OutcomeIdleTimeout  = "idle_timeout"
	OutcomeTranslation  = "translation"
	OutcomeRejected     = "rejected"
)

// OutcomeOf classifies an operation error into its recorded outcome.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case IsPrecondition(err):
		return OutcomePrecondition
	case IsIdleTimeout(err):
		return OutcomeIdleTimeout
	case IsTranslation(err):
		return OutcomeTranslation
	default:
		return OutcomeRejected
	}
}
