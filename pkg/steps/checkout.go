package steps

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/pricing"
	"github.com/goliatone/go-formwizard/pkg/progress"
	"github.com/goliatone/go-formwizard/pkg/services"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

const defaultCheckoutMode = "payment"

func (d *Dispatcher) enterCheckout(ctx context.Context, s *wizard.Session, e entry) error {
	b := d.breakdown(e)
	return s.Update(ctx, func(tx *wizard.Tx) error {
		if !e.live(tx) {
			return nil
		}
		st := tx.Status(e.step.ID)
		st.Breakdown = &b
		st.RedirectURL = ""
		return nil
	})
}

// pay opens a checkout session for the amount due. Nothing due means there
// is nothing to pay and the step simply completes.
func (d *Dispatcher) pay(ctx context.Context, s *wizard.Session, _ entry) error {
	e, release, err := d.claim(ctx, s)
	if err != nil {
		return err
	}
	defer release()

	b := d.breakdown(e)
	var done bool
	_ = s.Update(ctx, func(tx *wizard.Tx) error {
		st := tx.Status(e.step.ID)
		st.Breakdown = &b
		if st.Completed || !b.Payable() {
			complete(tx, e)
			done = true
		}
		return nil
	})
	if done {
		return nil
	}

	stash := progress.Stash{
		FormData:        e.state.FormData.Clone(),
		ApplicationID:   e.state.SubmittedApplicationID,
		ApplicationSlug: e.app.Slug,
		StepIndex:       e.index,
	}
	if store := s.Stash(); store != nil {
		if err := store.Put(ctx, s.StashKey(), stash); err != nil {
			return d.checkoutFailed(ctx, s, e, fmt.Errorf("stash form data: %w", err))
		}
	}

	if d.backends.Payments == nil {
		return d.checkoutFailed(ctx, s, e, ErrNotConfigured)
	}
	req := services.CheckoutRequest{
		LineItems:  d.lineItems(e, b),
		SuccessURL: d.returnTo(s, wizard.Return{Outcome: wizard.ReturnSuccess, StepIndex: e.index}),
		CancelURL:  d.returnTo(s, wizard.Return{Outcome: wizard.ReturnCancel, StepIndex: e.index}),
		UserID:     s.Owner(),
		Mode:       defaultCheckoutMode,
		BookingID:  e.state.SubmittedApplicationID,
	}
	if e.step.Stripe != nil && e.step.Stripe.Mode != "" {
		req.Mode = e.step.Stripe.Mode
	}

	resp, err := d.backends.Payments.CreateCheckoutSession(ctx, req)
	if err != nil {
		return d.checkoutFailed(ctx, s, e, err)
	}

	logger.Info("checkout session created",
		zap.String("session", s.ID()),
		zap.String("step", e.step.ID),
		zap.Float64("amountDue", b.AmountDue),
	)
	return s.Update(ctx, func(tx *wizard.Tx) error {
		if e.live(tx) {
			tx.Status(e.step.ID).RedirectURL = resp.URL
		}
		return nil
	})
}

// checkoutFailed degrades when the application is already durable and is
// retryable otherwise.
func (d *Dispatcher) checkoutFailed(ctx context.Context, s *wizard.Session, e entry, cause error) error {
	if e.state.SubmittedApplicationID != nil {
		logger.Warn("checkout failed after submission",
			zap.String("session", s.ID()),
			zap.String("step", e.step.ID),
			zap.Int64("application", *e.state.SubmittedApplicationID),
			zap.Error(cause),
		)
		return s.Update(ctx, func(tx *wizard.Tx) error {
			st := tx.Status(e.step.ID)
			st.FollowUp = true
			tx.Notify(wizard.NotifyWarn, e.step.ID, "Your application was received. We could not start the payment and will follow up with you.")
			complete(tx, e)
			return nil
		})
	}

	logger.Warn("checkout failed", zap.String("session", s.ID()), zap.String("step", e.step.ID), zap.Error(cause))
	_ = s.Update(ctx, func(tx *wizard.Tx) error {
		if e.live(tx) {
			tx.Status(e.step.ID).Error = "We could not start the payment. Please try again."
		}
		tx.Notify(wizard.NotifyError, e.step.ID, "We could not start the payment. Please try again.")
		return nil
	})
	return &ServiceError{Kind: Retryable, StepID: e.step.ID, Op: "checkout", Err: cause}
}

// lineItems itemises a full payment; a deposit or a balance after prior
// payments becomes a single line.
func (d *Dispatcher) lineItems(e entry, b pricing.Breakdown) []services.LineItem {
	product := ""
	description := ""
	if e.step.Stripe != nil {
		product = strings.TrimSpace(e.step.Stripe.ProductName)
		description = strings.TrimSpace(e.step.Stripe.Description)
	}
	currency := strings.ToLower(e.app.Pricing.Currency)

	if b.AmountDue == b.Total {
		items := make([]services.LineItem, 0, len(b.Items)+1)
		if b.BasePrice > 0 {
			name := product
			if label := strings.TrimSpace(e.app.Pricing.BaseLabel); label != "" {
				name = label
			}
			if name == "" {
				name = "Registration"
			}
			items = append(items, services.LineItem{
				Name:        name,
				Description: description,
				UnitAmount:  pricing.Cents(b.BasePrice),
				Quantity:    b.Quantity,
				Currency:    currency,
			})
		}
		for _, item := range b.Items {
			items = append(items, services.LineItem{
				Name:        item.Label,
				Description: description,
				UnitAmount:  pricing.Cents(item.UnitPrice),
				Quantity:    item.Quantity,
				Currency:    currency,
			})
		}
		return items
	}

	name := product
	if b.PartialPayment != nil && b.PartialPayment.Label != "" {
		name = b.PartialPayment.Label
	}
	if name == "" {
		name = "Balance due"
	}
	return []services.LineItem{{
		Name:        name,
		Description: description,
		UnitAmount:  pricing.Cents(b.AmountDue),
		Quantity:    1,
		Currency:    currency,
	}}
}

func (d *Dispatcher) returnTo(s *wizard.Session, ret wizard.Return) string {
	base := strings.NewReplacer(
		"{session}", url.PathEscape(s.ID()),
		"{app}", url.PathEscape(s.Application().ID),
	).Replace(d.returnURL)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + ret.Query().Encode()
}
