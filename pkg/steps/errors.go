package steps

import (
	"errors"
	"fmt"
)

var (
	// ErrPending is returned while the step action is already running.
	ErrPending = errors.New("steps: action already in progress")
	// ErrNoAction is returned by Act on steps without a primary action.
	ErrNoAction = errors.New("steps: current step has no action")
	// ErrTerminal is returned by Act on the confirmation step.
	ErrTerminal = errors.New("steps: confirmation is terminal, start over instead")
	// ErrMissingEmail is returned when a lead cannot be built without email.
	ErrMissingEmail = errors.New("steps: an email address is required")
	// ErrNotConfigured is returned when a step needs a backend that is absent.
	ErrNotConfigured = errors.New("steps: backend not configured")
)

// Kind grades a service failure by what it means for the flow.
type Kind int

const (
	// Retryable failures keep the user on the step; the action may be retried.
	Retryable Kind = iota + 1
	// Degraded failures are reported but never block progress.
	Degraded
	// Fatal failures leave nothing committed; the user stays and may retry.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Retryable:
		return "retryable"
	case Degraded:
		return "degraded"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ServiceError wraps a backend failure with the step that triggered it.
type ServiceError struct {
	Kind   Kind
	StepID string
	Op     string
	Err    error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("steps: %s on step %q (%s): %v", e.Op, e.StepID, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the kind of a ServiceError in err's chain, or 0.
func KindOf(err error) Kind {
	var serr *ServiceError
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return 0
}

func IsRetryable(err error) bool { return KindOf(err) == Retryable }

func IsDegraded(err error) bool { return KindOf(err) == Degraded }

func IsFatal(err error) bool { return KindOf(err) == Fatal }
