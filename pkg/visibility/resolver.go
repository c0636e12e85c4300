package visibility

import (
	"sort"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// SingleStepID identifies the synthetic step produced for non-wizard
// configurations.
const SingleStepID = "__form__"

// SortedSteps returns the configured steps ordered by Sequence. Steps sharing
// a sequence keep their declaration order.
func SortedSteps(cfg model.WizardConfiguration) []model.StepDefinition {
	steps := append([]model.StepDefinition(nil), cfg.Steps...)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Sequence < steps[j].Sequence
	})
	return steps
}

// VisibleSteps returns the steps whose conditions hold for data, in sequence
// order. A disabled wizard yields exactly one fields step that owns every
// field.
func VisibleSteps(cfg model.WizardConfiguration, data model.FormData) []model.StepDefinition {
	if !cfg.Enabled {
		return []model.StepDefinition{singleStep()}
	}

	sorted := SortedSteps(cfg)
	out := make([]model.StepDefinition, 0, len(sorted))
	for _, step := range sorted {
		if Evaluate(step.Conditions, step.ConditionLogic, data) {
			out = append(out, step)
		}
	}
	return out
}

// VisibleFields returns the fields owned by step whose conditions hold for
// data, preserving declaration order. For the synthetic single step every
// field is a candidate regardless of StepID.
func VisibleFields(step model.StepDefinition, fields []model.FieldDefinition, data model.FormData) []model.FieldDefinition {
	out := make([]model.FieldDefinition, 0, len(fields))
	for _, field := range fields {
		if step.ID != SingleStepID && field.StepID != step.ID {
			continue
		}
		if Evaluate(field.Conditions, field.ConditionLogic, data) {
			out = append(out, field)
		}
	}
	return out
}

// FieldVisible reports whether field's own conditions hold for data.
func FieldVisible(field model.FieldDefinition, data model.FormData) bool {
	return Evaluate(field.Conditions, field.ConditionLogic, data)
}

// IsSingleStep reports whether step is the synthetic non-wizard step.
func IsSingleStep(step model.StepDefinition) bool {
	return step.ID == SingleStepID
}

func singleStep() model.StepDefinition {
	return model.StepDefinition{
		ID:   SingleStepID,
		Type: model.StepTypeFields,
	}
}
