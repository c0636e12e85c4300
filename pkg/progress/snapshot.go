// Package progress persists the resumable subset of a wizard session so an
// interrupted application can continue after a reload, and keeps the
// transient stash written around the external payment redirect.
package progress

import (
	"net/url"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Snapshot is the persisted subset of the runtime state.
type Snapshot struct {
	FormData                   model.FormData `json:"formData" msgpack:"formData"`
	StepIndex                  int            `json:"stepIndex" msgpack:"stepIndex"`
	CapturedLeadID             *int64         `json:"capturedLeadId" msgpack:"capturedLeadId"`
	UserOptedForPartialPayment bool           `json:"userOptedForPartialPayment" msgpack:"userOptedForPartialPayment"`
	SavedAt                    int64          `json:"savedAt" msgpack:"savedAt"`
}

// Blank reports whether the snapshot carries nothing worth keeping: every
// value is blank and no lead was captured.
func (s Snapshot) Blank() bool {
	return s.CapturedLeadID == nil && s.FormData.Empty()
}

// Stash is written right before redirecting to the payment provider and read
// back once on return.
type Stash struct {
	FormData        model.FormData `json:"formData" msgpack:"formData"`
	ApplicationID   *int64         `json:"applicationId,omitempty" msgpack:"applicationId,omitempty"`
	ApplicationSlug string         `json:"applicationSlug,omitempty" msgpack:"applicationSlug,omitempty"`
	StepIndex       int            `json:"stepIndex" msgpack:"stepIndex"`
}

// ReturnParam is the query parameter the payment provider redirect carries.
const ReturnParam = "payment"

// HasReturnMarker reports whether the navigation comes back from the payment
// provider. When it does, the stash takes precedence over the snapshot.
func HasReturnMarker(query url.Values) bool {
	return strings.TrimSpace(query.Get(ReturnParam)) != ""
}
