package steps

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/services"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

const defaultPreviewMessage = "This is an estimated preview based on your answers."

// fetchPreview is the decision_preview entry action. It fetches once per
// entry and falls back to a local estimate when the endpoint fails.
func (d *Dispatcher) fetchPreview(ctx context.Context, s *wizard.Session, _ entry) error {
	var e entry
	fetch := false
	_ = s.Update(ctx, func(tx *wizard.Tx) error {
		var ok bool
		if e, ok = capture(tx); !ok {
			return nil
		}
		st := tx.Status(e.step.ID)
		if st.Pending || (st.Preview != nil && st.Entry == e.gen) {
			return nil
		}
		st.Entry = e.gen
		st.Pending = true
		fetch = true
		return nil
	})
	if !fetch {
		return nil
	}

	preview, err := d.preview(ctx, e)
	if err != nil {
		logger.Warn("decision preview failed, using estimate", zap.String("session", s.ID()), zap.String("step", e.step.ID), zap.Error(err))
		preview = d.estimate(e)
	}
	return s.Update(ctx, func(tx *wizard.Tx) error {
		st := tx.Status(e.step.ID)
		st.Pending = false
		if !e.live(tx) {
			return nil
		}
		st.Preview = &preview
		if preview.Estimated {
			tx.Notify(wizard.NotifyInfo, e.step.ID, "Showing an estimated preview.")
		}
		return nil
	})
}

func (d *Dispatcher) preview(ctx context.Context, e entry) (services.DecisionPreview, error) {
	if d.backends.Decisions == nil {
		return services.DecisionPreview{}, ErrNotConfigured
	}
	if e.step.DecisionPreview == nil || e.step.DecisionPreview.Endpoint == "" {
		return services.DecisionPreview{}, fmt.Errorf("steps: decision step %q has no endpoint", e.step.ID)
	}
	preview, err := d.backends.Decisions.GetPreview(ctx, e.step.DecisionPreview.Endpoint, services.PreviewRequest{
		FormData:      e.state.FormData.Clone(),
		ApplicationID: e.state.SubmittedApplicationID,
	})
	if err != nil {
		return services.DecisionPreview{}, &ServiceError{Kind: Retryable, StepID: e.step.ID, Op: "decision preview", Err: err}
	}
	return preview, nil
}

// estimate builds the local preview from the pricing breakdown.
func (d *Dispatcher) estimate(e entry) services.DecisionPreview {
	b := d.breakdown(e)
	msg := defaultPreviewMessage
	if e.step.DecisionPreview != nil && e.step.DecisionPreview.FallbackMessage != "" {
		msg = d.resolver(e.app).Resolve(e.step.DecisionPreview.FallbackMessage, e.state.FormData)
	}
	return services.DecisionPreview{
		Decision:  "estimated",
		Message:   msg,
		Amount:    b.Total,
		Estimated: true,
		Details: map[string]any{
			"amountDue":        b.AmountDue,
			"balanceRemaining": b.BalanceRemaining,
			"items":            len(b.Items),
		},
	}
}
