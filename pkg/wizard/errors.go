package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFieldsStep is returned by Next when the current step advances
	// through its own action rather than through validation.
	ErrNotFieldsStep = errors.New("wizard: next is only available on fields steps")
	// ErrPreviousDisallowed is returned by Previous on the terminal step.
	ErrPreviousDisallowed = errors.New("wizard: previous is not available after confirmation")
	// ErrNoSteps is returned when no step is visible.
	ErrNoSteps = errors.New("wizard: no visible steps")
	// ErrInvalidReturn is returned for malformed payment return parameters.
	ErrInvalidReturn = errors.New("wizard: invalid payment return")
	// ErrNoApplication is returned when a navigator is built without config.
	ErrNoApplication = errors.New("wizard: application is required")
)

// ValidationError blocks a Next transition. Fields maps field names to their
// messages; First names the first offender in declaration order.
type ValidationError struct {
	StepID string
	Fields map[string]string
	First  string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("wizard: step %q has %d invalid field(s): %s", e.StepID, len(names), strings.Join(names, ", "))
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
