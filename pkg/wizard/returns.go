package wizard

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/progress"
)

// ReturnOutcome is the payment provider verdict carried back in the URL.
type ReturnOutcome string

const (
	ReturnSuccess ReturnOutcome = "success"
	ReturnCancel  ReturnOutcome = "cancel"
)

// StepParam carries the index of the payment step across the redirect.
const StepParam = "step"

// Return is a parsed payment return.
type Return struct {
	Outcome   ReturnOutcome
	StepIndex int
}

// ParseReturn reads payment=success|cancel&step=N. ok is false when the query
// carries no payment marker at all.
func ParseReturn(query url.Values) (Return, bool, error) {
	if !progress.HasReturnMarker(query) {
		return Return{}, false, nil
	}
	outcome := ReturnOutcome(strings.ToLower(strings.TrimSpace(query.Get(progress.ReturnParam))))
	switch outcome {
	case ReturnSuccess, ReturnCancel:
	case "cancelled", "canceled":
		outcome = ReturnCancel
	default:
		return Return{}, true, fmt.Errorf("%w: payment=%q", ErrInvalidReturn, outcome)
	}
	raw := strings.TrimSpace(query.Get(StepParam))
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return Return{}, true, fmt.Errorf("%w: step=%q", ErrInvalidReturn, raw)
	}
	return Return{Outcome: outcome, StepIndex: index}, true, nil
}

// Query renders the return parameters for the provider redirect URLs.
func (r Return) Query() url.Values {
	return url.Values{
		progress.ReturnParam: {string(r.Outcome)},
		StepParam:            {strconv.Itoa(r.StepIndex)},
	}
}
