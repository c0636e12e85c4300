package wizard

import "github.com/goliatone/go-formwizard/pkg/model"

// Focuser receives the focus effect that follows every step transition and
// every blocked Next. fieldName is empty when the step has no focusable
// control.
type Focuser interface {
	Focus(stepID, fieldName string)
}

// FocusFunc adapts a function to Focuser.
type FocusFunc func(stepID, fieldName string)

func (f FocusFunc) Focus(stepID, fieldName string) {
	if f != nil {
		f(stepID, fieldName)
	}
}

// FirstFocusable returns the name of the first field that can take focus.
func FirstFocusable(fields []model.FieldDefinition) string {
	for _, field := range fields {
		if field.Focusable() {
			return field.Name
		}
	}
	return ""
}
