// Package wizard implements the navigator state machine over the visible
// step list and the session that serialises wizard events.
package wizard

import (
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/progress"
	"github.com/goliatone/go-formwizard/pkg/validation"
	"github.com/goliatone/go-formwizard/pkg/visibility"
)

// Navigator owns the runtime state of one wizard run. It is not safe for
// concurrent use; Session provides the serialisation.
type Navigator struct {
	app   *model.Application
	state State
	focus Focuser

	entry     uint64
	entryStep string
	focused   string
}

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithFocuser receives focus effects.
func WithFocuser(f Focuser) NavigatorOption {
	return func(n *Navigator) {
		n.focus = f
	}
}

// NewNavigator starts at the first visible step with empty form data.
func NewNavigator(app *model.Application, options ...NavigatorOption) (*Navigator, error) {
	if app == nil {
		return nil, ErrNoApplication
	}
	n := &Navigator{app: app, state: newState()}
	for _, opt := range options {
		if opt != nil {
			opt(n)
		}
	}
	n.settle()
	return n, nil
}

// Application returns the configuration being navigated.
func (n *Navigator) Application() *model.Application { return n.app }

// State returns a deep copy of the runtime state.
func (n *Navigator) State() State { return n.state.Clone() }

// FormData returns a copy of the current answers.
func (n *Navigator) FormData() model.FormData { return n.state.FormData.Clone() }

// Steps recomputes the visible steps from the current answers.
func (n *Navigator) Steps() []model.StepDefinition {
	return visibility.VisibleSteps(n.app.Wizard, n.state.FormData)
}

// Index is the current position in Steps.
func (n *Navigator) Index() int { return n.state.CurrentStepIndex }

// Entry identifies the current step entry. It changes every time a different
// step becomes current, and on StartOver.
func (n *Navigator) Entry() uint64 { return n.entry }

// Focused names the field that received the last focus effect.
func (n *Navigator) Focused() string { return n.focused }

// Current returns the step at the current index.
func (n *Navigator) Current() (model.StepDefinition, bool) {
	steps := n.Steps()
	if len(steps) == 0 {
		return model.StepDefinition{}, false
	}
	return steps[n.state.CurrentStepIndex], true
}

// IsLast reports whether the current step is the last visible one.
func (n *Navigator) IsLast() bool {
	return n.state.CurrentStepIndex >= len(n.Steps())-1
}

// VisibleFields returns the visible fields of the current step.
func (n *Navigator) VisibleFields() []model.FieldDefinition {
	step, ok := n.Current()
	if !ok {
		return nil
	}
	return visibility.VisibleFields(step, n.app.Fields, n.state.FormData)
}

// SetValue records an answer, clamps the index if the visible step list
// shrank, then re-validates touched or erroring fields.
func (n *Navigator) SetValue(name string, value any) {
	n.state.FormData.Set(name, value)
	n.settle()
	n.revalidate()
}

// SetValues records several answers as one mutation.
func (n *Navigator) SetValues(values map[string]any) {
	for name, value := range values {
		n.state.FormData.Set(name, value)
	}
	n.settle()
	n.revalidate()
}

// Touch marks name as interacted with and re-validates.
func (n *Navigator) Touch(name string) {
	n.state.Touched[name] = true
	n.revalidate()
}

// Next validates the visible fields of the current fields step and moves
// forward one step unless already on the last. Invalid fields are reported
// through a ValidationError and the first one is focused.
func (n *Navigator) Next() error {
	step, ok := n.Current()
	if !ok {
		return ErrNoSteps
	}
	if step.Type != model.StepTypeFields {
		return ErrNotFieldsStep
	}

	fields := visibility.VisibleFields(step, n.app.Fields, n.state.FormData)
	errs, first := validation.ValidateAll(fields, n.state.FormData)
	for _, field := range fields {
		delete(n.state.FieldErrors, field.Name)
	}
	if first != "" {
		for _, field := range fields {
			n.state.Touched[field.Name] = true
		}
		for name, msg := range errs {
			n.state.FieldErrors[name] = msg
		}
		n.focusField(step.ID, first)
		return &ValidationError{StepID: step.ID, Fields: errs, First: first}
	}

	n.Advance()
	return nil
}

// Previous moves back one step. It is refused on the confirmation step.
func (n *Navigator) Previous() error {
	step, ok := n.Current()
	if !ok {
		return ErrNoSteps
	}
	if step.Type == model.StepTypeConfirmation {
		return ErrPreviousDisallowed
	}
	if n.state.CurrentStepIndex > 0 {
		n.moveTo(n.state.CurrentStepIndex - 1)
	}
	return nil
}

// Advance moves forward one step without validation. It reports whether the
// index changed.
func (n *Navigator) Advance() bool {
	if n.IsLast() {
		return false
	}
	n.moveTo(n.state.CurrentStepIndex + 1)
	return true
}

// JumpTo moves to index, clamped to the visible range.
func (n *Navigator) JumpTo(index int) {
	n.moveTo(index)
}

// ApplyReturn positions the wizard after the payment provider redirect. The
// stash, when present, replaces the form data first so the index is resolved
// against the steps the user saw before leaving.
func (n *Navigator) ApplyReturn(ret Return, stash *progress.Stash) {
	if stash != nil {
		n.state.FormData = stash.FormData.Clone()
		if stash.ApplicationID != nil {
			n.state.SubmittedApplicationID = cloneID(stash.ApplicationID)
		}
	}
	index := ret.StepIndex
	if ret.Outcome == ReturnSuccess {
		index++
	}
	n.moveTo(index)
}

// StartOver discards every answer and returns to the first step as a fresh
// entry.
func (n *Navigator) StartOver() {
	n.state = newState()
	n.entry++
	n.entryStep = ""
	n.focused = ""
	n.moveTo(0)
}

// Snapshot returns the persistable subset of the state. SavedAt is stamped by
// the progress manager.
func (n *Navigator) Snapshot() progress.Snapshot {
	return progress.Snapshot{
		FormData:                   n.state.FormData.Clone(),
		StepIndex:                  n.state.CurrentStepIndex,
		CapturedLeadID:             cloneID(n.state.CapturedLeadID),
		UserOptedForPartialPayment: n.state.PartialPayment,
	}
}

// Restore resumes from a snapshot.
func (n *Navigator) Restore(snap progress.Snapshot) {
	n.state.FormData = snap.FormData.Clone()
	n.state.CapturedLeadID = cloneID(snap.CapturedLeadID)
	n.state.PartialPayment = snap.UserOptedForPartialPayment
	n.state.Touched = map[string]bool{}
	n.state.FieldErrors = map[string]string{}
	n.state.CurrentStepIndex = snap.StepIndex
	n.settle()
}

// CaptureLead records the lead id returned by the lead service.
func (n *Navigator) CaptureLead(id int64) {
	n.state.CapturedLeadID = &id
}

// CaptureApplication records the durable application id.
func (n *Navigator) CaptureApplication(id int64) {
	n.state.SubmittedApplicationID = &id
}

// SetPartialPayment records the deposit opt-in.
func (n *Navigator) SetPartialPayment(opted bool) {
	n.state.PartialPayment = opted
}

// MarkEmailSent flags stepID as attempted. It returns false when the step was
// already attempted.
func (n *Navigator) MarkEmailSent(stepID string) bool {
	if n.state.EmailSent[stepID] {
		return false
	}
	n.state.EmailSent[stepID] = true
	return true
}

func (n *Navigator) moveTo(index int) {
	before := n.entry
	n.state.CurrentStepIndex = index
	n.settle()
	if n.entry == before {
		return
	}
	if step, ok := n.Current(); ok {
		n.focusField(step.ID, FirstFocusable(visibility.VisibleFields(step, n.app.Fields, n.state.FormData)))
	}
}

// settle enforces 0 <= index < len(steps) and opens a new entry when the
// current step changed.
func (n *Navigator) settle() {
	steps := n.Steps()
	switch {
	case len(steps) == 0:
		n.state.CurrentStepIndex = 0
	case n.state.CurrentStepIndex >= len(steps):
		n.state.CurrentStepIndex = len(steps) - 1
	case n.state.CurrentStepIndex < 0:
		n.state.CurrentStepIndex = 0
	}

	id := ""
	if len(steps) > 0 {
		id = steps[n.state.CurrentStepIndex].ID
	}
	if id != n.entryStep {
		n.entryStep = id
		n.entry++
	}
}

func (n *Navigator) revalidate() {
	visible := n.VisibleFields()
	errs := validation.Revalidate(visible, n.state.FormData, n.state.Touched, n.state.FieldErrors)

	shown := make(map[string]struct{}, len(visible))
	for _, field := range visible {
		shown[field.Name] = struct{}{}
	}
	for name := range errs {
		if _, ok := shown[name]; !ok {
			delete(errs, name)
		}
	}
	n.state.FieldErrors = errs
}

func (n *Navigator) focusField(stepID, field string) {
	n.focused = field
	if n.focus != nil {
		n.focus.Focus(stepID, field)
	}
}
