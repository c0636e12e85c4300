package steps

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/services"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

func (d *Dispatcher) captureLead(ctx context.Context, s *wizard.Session, _ entry) error {
	e, release, err := d.claim(ctx, s)
	if err != nil {
		return err
	}
	defer release()

	if e.state.CapturedLeadID != nil {
		return s.Update(ctx, func(tx *wizard.Tx) error {
			complete(tx, e)
			return nil
		})
	}

	req := services.LeadRequest{
		Payload:        LeadPayload(e.app, e.step.Lead, e.state.FormData),
		Email:          LeadEmail(e.app, e.step.Lead, e.state.FormData),
		Name:           LeadName(e.step.Lead, e.state.FormData),
		Status:         d.leadStatus,
		IdempotencyKey: e.key,
	}
	if e.step.Lead != nil && e.step.Lead.Status != "" {
		req.Status = e.step.Lead.Status
	}

	var resp services.LeadResponse
	switch {
	case req.Email == "":
		err = ErrMissingEmail
	case d.backends.Leads == nil:
		err = ErrNotConfigured
	default:
		resp, err = d.backends.Leads.CreateLead(ctx, req)
	}
	if err != nil {
		logger.Warn("lead capture failed", zap.String("session", s.ID()), zap.String("step", e.step.ID), zap.Error(err))
		_ = s.Update(ctx, func(tx *wizard.Tx) error {
			msg := "We could not save your details. Please try again."
			if errors.Is(err, ErrMissingEmail) {
				msg = "Please provide an email address."
			}
			if e.live(tx) {
				tx.Status(e.step.ID).Error = msg
			}
			tx.Notify(wizard.NotifyError, e.step.ID, msg)
			return nil
		})
		return &ServiceError{Kind: Retryable, StepID: e.step.ID, Op: "lead", Err: err}
	}

	logger.Info("lead captured", zap.String("session", s.ID()), zap.Int64("lead", resp.ID))
	return s.Update(ctx, func(tx *wizard.Tx) error {
		tx.Navigator().CaptureLead(resp.ID)
		complete(tx, e)
		return nil
	})
}
