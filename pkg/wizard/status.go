package wizard

import (
	"github.com/goliatone/go-formwizard/pkg/pricing"
	"github.com/goliatone/go-formwizard/pkg/services"
)

// StepStatus is the dispatcher owned progress of one step. It survives
// navigating away so a completed step stays completed.
type StepStatus struct {
	// Entry is the navigator entry the status was last prepared for.
	Entry uint64 `json:"-"`

	Pending   bool   `json:"pending,omitempty"`
	Completed bool   `json:"completed,omitempty"`
	FollowUp  bool   `json:"followUp,omitempty"`
	Error     string `json:"error,omitempty"`

	IdempotencyKey string                    `json:"-"`
	Breakdown      *pricing.Breakdown        `json:"breakdown,omitempty"`
	Preview        *services.DecisionPreview `json:"preview,omitempty"`
	RedirectURL    string                    `json:"redirectUrl,omitempty"`
}

func (s *StepStatus) clone() *StepStatus {
	if s == nil {
		return nil
	}
	out := *s
	if s.Breakdown != nil {
		b := *s.Breakdown
		b.Items = append([]pricing.Item(nil), s.Breakdown.Items...)
		out.Breakdown = &b
	}
	if s.Preview != nil {
		p := *s.Preview
		out.Preview = &p
	}
	return &out
}

// NotificationLevel grades transient notifications.
type NotificationLevel string

const (
	NotifyInfo  NotificationLevel = "info"
	NotifyWarn  NotificationLevel = "warn"
	NotifyError NotificationLevel = "error"
)

// Notification is a dismissible message surfaced to the user.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	StepID  string            `json:"stepId,omitempty"`
	Message string            `json:"message"`
}
