// Package placeholder resolves {{fieldName}} tokens in authored text against
// the current form data. It is shared by send_email steps, static content
// fields and terms agreements. Resolution is pure: the clock is injected and
// nothing outside the returned string changes.
package placeholder

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Reserved dynamic tokens.
const (
	TokenCurrentDate      = "current_date"
	TokenCurrentTimestamp = "current_timestamp"
)

var tokenPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallback sets the text substituted for missing or empty values.
func WithFallback(fallback string) Option {
	return func(r *Resolver) {
		r.fallback = fallback
	}
}

// WithClock overrides the time source used by the reserved tokens.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithHTMLEscape escapes substituted values so they can be embedded in HTML
// bodies.
func WithHTMLEscape() Option {
	return func(r *Resolver) {
		r.escape = true
	}
}

// Resolver substitutes tokens. The zero value uses an empty fallback and the
// wall clock.
type Resolver struct {
	fallback string
	now      func() time.Time
	escape   bool
}

// New constructs a Resolver.
func New(options ...Option) Resolver {
	r := Resolver{now: time.Now}
	for _, opt := range options {
		if opt != nil {
			opt(&r)
		}
	}
	return r
}

// Resolve replaces every {{token}} in template. Tokens naming a field with a
// non-blank value receive that value, reserved tokens receive the current
// date or timestamp, and everything else receives the fallback. Substituted
// values are not re-scanned.
func (r Resolver) Resolve(template string, data model.FormData) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	now := r.now
	if now == nil {
		now = time.Now
	}
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		return r.encode(r.lookup(name, data, now))
	})
}

// Resolve is a convenience wrapper around a Resolver using the wall clock.
func Resolve(template string, data model.FormData, fallback string) string {
	return New(WithFallback(fallback)).Resolve(template, data)
}

// Tokens returns the distinct token names referenced by template in order of
// first appearance.
func Tokens(template string) []string {
	matches := tokenPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (r Resolver) lookup(name string, data model.FormData, now func() time.Time) string {
	switch name {
	case TokenCurrentDate:
		return now().Format("January 2, 2006")
	case TokenCurrentTimestamp:
		return now().Format(time.RFC3339)
	case "":
		return r.fallback
	}

	value, ok := data[name]
	if !ok || model.IsBlank(value) {
		if b, isBool := value.(bool); isBool && !b {
			return "No"
		}
		return r.fallback
	}
	if b, isBool := value.(bool); isBool && b {
		return "Yes"
	}
	return model.Stringify(value)
}

func (r Resolver) encode(s string) string {
	if r.escape {
		return html.EscapeString(s)
	}
	return s
}
