package steps

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

var fileReferencePattern = regexp.MustCompile(`(?i)^(data:[^,]*;base64,|blob:|s3://|gs://|https?://\S+/(files?|uploads?|storage|attachments?)/\S+|/?(files?|uploads?|storage|attachments?)/\S+\.[a-z0-9]{2,5}$)`)

var fileLikeWords = map[string]bool{
	"signature": true, "signatures": true,
	"file": true, "files": true,
	"upload": true, "uploads": true,
	"attachment": true, "attachments": true,
}

var nameWordPattern = regexp.MustCompile(`[A-Z]?[a-z0-9]+|[A-Z]+`)

// LooksLikeFileReference reports whether value resembles an uploaded file:
// data or blob URIs, bucket URLs, or paths under a files/uploads/storage
// segment.
func LooksLikeFileReference(value string) bool {
	return fileReferencePattern.MatchString(strings.TrimSpace(value))
}

// fileLike reports whether field carries binary content that must never be
// copied into a lead.
func fileLike(field model.FieldDefinition) bool {
	if field.Type.IsBinary() || field.FileConfig != nil {
		return true
	}
	// Whole words only: resume_file and fileUpload match, profile and
	// document_type do not.
	for _, word := range nameWordPattern.FindAllString(field.Name, -1) {
		if fileLikeWords[strings.ToLower(word)] {
			return true
		}
	}
	return false
}

// LeadPayload builds the lead payload from the configured field subset. With
// no subset configured every field is a candidate. Static fields, file-like
// fields, blank values and file references are dropped.
func LeadPayload(app *model.Application, cfg *model.LeadConfig, data model.FormData) map[string]any {
	allowed := map[string]bool{}
	if cfg != nil {
		for _, name := range cfg.Fields {
			allowed[strings.TrimSpace(name)] = true
		}
	}

	out := map[string]any{}
	for _, field := range app.Fields {
		if len(allowed) > 0 && !allowed[field.Name] {
			continue
		}
		if field.Type.IsStatic() || fileLike(field) {
			continue
		}
		value, ok := data[field.Name]
		if !ok || model.IsBlank(value) {
			continue
		}
		if s, isString := value.(string); isString && LooksLikeFileReference(s) {
			continue
		}
		out[field.Name] = value
	}
	return out
}

// LeadEmail returns the configured email field value, falling back to the
// first email typed field with a value.
func LeadEmail(app *model.Application, cfg *model.LeadConfig, data model.FormData) string {
	if cfg != nil && cfg.EmailField != "" {
		if v := strings.TrimSpace(data.String(cfg.EmailField)); v != "" {
			return v
		}
	}
	for _, field := range app.Fields {
		if field.Type != model.FieldTypeEmail {
			continue
		}
		if v := strings.TrimSpace(data.String(field.Name)); v != "" {
			return v
		}
	}
	return ""
}

// LeadName returns the configured name field, "name", or a first/last name
// pair.
func LeadName(cfg *model.LeadConfig, data model.FormData) string {
	if cfg != nil && cfg.NameField != "" {
		if v := strings.TrimSpace(data.String(cfg.NameField)); v != "" {
			return v
		}
	}
	for _, key := range []string{"name", "full_name", "fullName"} {
		if v := strings.TrimSpace(data.String(key)); v != "" {
			return v
		}
	}
	for _, pair := range [][2]string{{"first_name", "last_name"}, {"firstName", "lastName"}} {
		first := strings.TrimSpace(data.String(pair[0]))
		last := strings.TrimSpace(data.String(pair[1]))
		if full := strings.TrimSpace(first + " " + last); full != "" {
			return full
		}
	}
	return ""
}

// BookingInfo merges every answer into the application payload and returns
// the defaults it assigned to unset optional fields.
func BookingInfo(app *model.Application, data model.FormData) (map[string]any, model.FormData) {
	info := map[string]any{}
	defaults := model.FormData{}
	for _, field := range app.Fields {
		if field.Type.IsStatic() {
			continue
		}
		value, ok := data[field.Name]
		if (!ok || model.IsBlank(value)) && !field.Required && field.DefaultValue != "" {
			def := defaultValue(field)
			defaults[field.Name] = def
			info[field.Name] = def
			continue
		}
		if ok {
			info[field.Name] = value
		}
	}
	return info, defaults
}

func defaultValue(field model.FieldDefinition) any {
	switch field.Type {
	case model.FieldTypeCheckbox, model.FieldTypeTermsAgreement:
		return strings.EqualFold(strings.TrimSpace(field.DefaultValue), "true")
	default:
		return field.DefaultValue
	}
}

var recipientSeparators = regexp.MustCompile(`[,;\s]+`)

// SplitRecipients splits a resolved recipient list, dropping blanks and
// duplicates while keeping order.
func SplitRecipients(list string) []string {
	parts := recipientSeparators.Split(strings.TrimSpace(list), -1)
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := strings.ToLower(part)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, part)
	}
	return out
}

func hasEmailField(app *model.Application) bool {
	for _, field := range app.Fields {
		if field.Type == model.FieldTypeEmail {
			return true
		}
	}
	return false
}
