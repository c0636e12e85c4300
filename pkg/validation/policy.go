package validation

import "github.com/goliatone/go-formwizard/pkg/model"

// Revalidate applies the reactive policy after a form data change: every
// visible field that is touched or already erroring is checked again; fields
// the user has not reached are left alone. The returned map is a fresh copy
// of errs with the re-checked entries updated.
func Revalidate(visible []model.FieldDefinition, data model.FormData, touched map[string]bool, errs map[string]string) map[string]string {
	out := make(map[string]string, len(errs))
	for name, msg := range errs {
		out[name] = msg
	}

	for _, field := range visible {
		_, erroring := errs[field.Name]
		if !touched[field.Name] && !erroring {
			continue
		}
		if msg := Validate(field, data); msg != "" {
			out[field.Name] = msg
		} else {
			delete(out, field.Name)
		}
	}
	return out
}

// ValidateAll checks every field and returns the error map plus the name of
// the first invalid field in declaration order ("" when all pass).
func ValidateAll(fields []model.FieldDefinition, data model.FormData) (map[string]string, string) {
	errs := make(map[string]string)
	first := ""
	for _, field := range fields {
		msg := Validate(field, data)
		if msg == "" {
			continue
		}
		errs[field.Name] = msg
		if first == "" {
			first = field.Name
		}
	}
	return errs, first
}
