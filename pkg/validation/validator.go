// Package validation performs per-field convenience checks (required, length,
// numeric range) against the current form data. The backend remains the
// authority; these checks only keep the wizard from advancing with obviously
// incomplete answers.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Validate returns the first violated rule for field as a human readable
// message, or "" when the value is acceptable. Rules run in a fixed order
// (required, length, range) so repeated calls with unchanged inputs return the
// same message.
func Validate(field model.FieldDefinition, data model.FormData) string {
	if field.Type.IsStatic() {
		return ""
	}

	label := field.DisplayLabel()
	value, present := data[field.Name]

	if field.Required && (!present || isMissing(value)) {
		if field.Type == model.FieldTypeTermsAgreement {
			return fmt.Sprintf("You must accept %s", label)
		}
		return fmt.Sprintf("%s is required", label)
	}

	text, textual := value.(string)
	if !textual || text == "" {
		return ""
	}

	rules := field.Validation
	length := utf8.RuneCountInString(text)
	if rules.MinLength != nil && length < *rules.MinLength {
		return fmt.Sprintf("%s must be at least %d characters", label, *rules.MinLength)
	}
	if rules.MaxLength != nil && length > *rules.MaxLength {
		return fmt.Sprintf("%s must be at most %d characters", label, *rules.MaxLength)
	}

	if field.Type != model.FieldTypeNumber {
		return ""
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return ""
	}
	if rules.Min != nil && number < *rules.Min {
		return fmt.Sprintf("%s must be at least %s", label, formatNumber(*rules.Min))
	}
	if rules.Max != nil && number > *rules.Max {
		return fmt.Sprintf("%s must be at most %s", label, formatNumber(*rules.Max))
	}
	return ""
}

// isMissing mirrors the required rule: undefined, "" or false.
func isMissing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	default:
		return false
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
