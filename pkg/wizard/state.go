package wizard

import "github.com/goliatone/go-formwizard/pkg/model"

// State is the single runtime value threaded through the navigator and the
// step dispatcher. It is only mutated through Navigator transitions and the
// dispatcher transaction.
type State struct {
	FormData               model.FormData
	CurrentStepIndex       int
	Touched                map[string]bool
	FieldErrors            map[string]string
	CapturedLeadID         *int64
	PartialPayment         bool
	SubmittedApplicationID *int64
	EmailSent              map[string]bool
}

func newState() State {
	return State{
		FormData:    model.FormData{},
		Touched:     map[string]bool{},
		FieldErrors: map[string]string{},
		EmailSent:   map[string]bool{},
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.FormData = s.FormData.Clone()
	out.Touched = cloneBools(s.Touched)
	out.EmailSent = cloneBools(s.EmailSent)
	out.FieldErrors = make(map[string]string, len(s.FieldErrors))
	for k, v := range s.FieldErrors {
		out.FieldErrors[k] = v
	}
	out.CapturedLeadID = cloneID(s.CapturedLeadID)
	out.SubmittedApplicationID = cloneID(s.SubmittedApplicationID)
	return out
}

func cloneBools(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
