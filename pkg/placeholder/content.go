package placeholder

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formwizard/pkg/model"
)

var (
	contentPolicyOnce sync.Once
	contentPolicy     *bluemonday.Policy
)

// SanitizeHTML strips scripts, event handlers and other unsafe markup from
// authored HTML while keeping ordinary formatting.
func SanitizeHTML(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(contentSanitizer().Sanitize(trimmed))
}

// Content renders the static text of readonly_text, html_content and
// terms_agreement fields. HTML content is resolved with escaped values and
// then sanitized; the other types are resolved as plain text.
func (r Resolver) Content(field model.FieldDefinition, data model.FormData) string {
	switch field.Type {
	case model.FieldTypeHTMLContent:
		escaped := r
		escaped.escape = true
		return SanitizeHTML(escaped.Resolve(field.Content, data))
	case model.FieldTypeReadonlyText, model.FieldTypeTermsAgreement:
		plain := r
		plain.escape = false
		return plain.Resolve(field.Content, data)
	default:
		return ""
	}
}

func contentSanitizer() *bluemonday.Policy {
	contentPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowAttrs("class").Globally()
		policy.AllowAttrs("target").OnElements("a")
		contentPolicy = policy
	})
	return contentPolicy
}
