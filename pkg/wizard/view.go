package wizard

import (
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/visibility"
)

// StepView summarises one visible step.
type StepView struct {
	ID        string         `json:"id"`
	Title     string         `json:"title,omitempty"`
	Type      model.StepType `json:"type"`
	Completed bool           `json:"completed,omitempty"`
}

// FieldView is a visible field with its current value and message.
type FieldView struct {
	Field   model.FieldDefinition `json:"field"`
	Value   any                   `json:"value,omitempty"`
	Error   string                `json:"error,omitempty"`
	Content string                `json:"content,omitempty"`
}

// View is a serialisable picture of the session for renderers.
type View struct {
	SessionID     string         `json:"sessionId"`
	ApplicationID string         `json:"applicationId"`
	Steps         []StepView     `json:"steps"`
	CurrentIndex  int            `json:"currentIndex"`
	Current       *StepView      `json:"current,omitempty"`
	Fields        []FieldView    `json:"fields,omitempty"`
	Focus         string         `json:"focus,omitempty"`
	Status        *StepStatus    `json:"status,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
	FormData      model.FormData `json:"formData"`
	CanPrevious   bool           `json:"canPrevious"`
	Terminal      bool           `json:"terminal"`

	CapturedLeadID         *int64 `json:"capturedLeadId,omitempty"`
	SubmittedApplicationID *int64 `json:"submittedApplicationId,omitempty"`
	PartialPayment         bool   `json:"userOptedForPartialPayment"`

	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// View snapshots the session. Queued notifications are handed over and
// cleared.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	nav := s.nav
	state := nav.state
	out := View{
		SessionID:              s.id,
		ApplicationID:          s.app.ID,
		CurrentIndex:           state.CurrentStepIndex,
		Focus:                  nav.Focused(),
		FormData:               state.FormData.Clone(),
		CapturedLeadID:         cloneID(state.CapturedLeadID),
		SubmittedApplicationID: cloneID(state.SubmittedApplicationID),
		PartialPayment:         state.PartialPayment,
		Notifications:          s.notes,
	}
	s.notes = nil

	steps := nav.Steps()
	out.Steps = make([]StepView, 0, len(steps))
	for _, step := range steps {
		view := StepView{ID: step.ID, Title: step.Title, Type: step.Type}
		if st, ok := s.status[step.ID]; ok {
			view.Completed = st.Completed
		}
		out.Steps = append(out.Steps, view)
	}
	if len(steps) == 0 {
		return out
	}

	step := steps[state.CurrentStepIndex]
	current := out.Steps[state.CurrentStepIndex]
	out.Current = &current
	out.Terminal = step.Type == model.StepTypeConfirmation
	out.CanPrevious = !out.Terminal && state.CurrentStepIndex > 0
	if st, ok := s.status[step.ID]; ok {
		out.Status = st.clone()
	}
	if step.Confirmation != nil {
		out.Title = s.resolver.Resolve(step.Confirmation.Title, state.FormData)
		out.Message = s.resolver.Resolve(step.Confirmation.Message, state.FormData)
	}

	for _, field := range visibility.VisibleFields(step, s.app.Fields, state.FormData) {
		fv := FieldView{
			Field: field,
			Error: state.FieldErrors[field.Name],
		}
		if value, ok := state.FormData[field.Name]; ok {
			fv.Value = value
		}
		fv.Content = s.resolver.Content(field, state.FormData)
		out.Fields = append(out.Fields, fv)
	}
	return out
}
