package steps

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/services"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// submit creates the application record. Lead auto-capture and campaign
// assignment run afterwards and never fail the submission.
func (d *Dispatcher) submit(ctx context.Context, s *wizard.Session, _ entry) error {
	e, release, err := d.claim(ctx, s)
	if err != nil {
		return err
	}
	defer release()

	if e.state.SubmittedApplicationID != nil {
		return s.Update(ctx, func(tx *wizard.Tx) error {
			complete(tx, e)
			return nil
		})
	}

	info, defaults := BookingInfo(e.app, e.state.FormData)
	merged := e.state.FormData.Clone()
	for name, value := range defaults {
		merged[name] = value
	}
	b := d.pricing.CalculateBreakdown(e.app.Pricing, merged, e.app.Fields, false)

	status := d.appStatus
	if e.app.Status != "" {
		status = e.app.Status
	}
	req := services.ApplicationRequest{
		ItemsID:         e.app.ItemID,
		BookingInfo:     info,
		ApplicationType: e.app.ApplicationType,
		Status:          status,
		Price:           b.Total,
		Quantity:        b.Quantity,
		LeadsID:         e.state.CapturedLeadID,
		IdempotencyKey:  e.key,
	}

	var resp services.ApplicationResponse
	if d.backends.Applications == nil {
		err = ErrNotConfigured
	} else {
		resp, err = d.backends.Applications.CreateApplication(ctx, req)
	}
	if err != nil {
		logger.Error("application submission failed", zap.String("session", s.ID()), zap.String("step", e.step.ID), zap.Error(err))
		_ = s.Update(ctx, func(tx *wizard.Tx) error {
			msg := "We could not submit your application. Please try again."
			if e.live(tx) {
				tx.Status(e.step.ID).Error = msg
			}
			tx.Notify(wizard.NotifyError, e.step.ID, msg)
			return nil
		})
		return &ServiceError{Kind: Fatal, StepID: e.step.ID, Op: "submission", Err: err}
	}

	logger.Info("application submitted", zap.String("session", s.ID()), zap.Int64("application", resp.ID))
	_ = s.Update(ctx, func(tx *wizard.Tx) error {
		tx.Navigator().CaptureApplication(resp.ID)
		tx.Submitted()
		return nil
	})

	leadID := e.state.CapturedLeadID
	if leadID == nil && hasEmailField(e.app) {
		leadID = d.autoCaptureLead(ctx, s, e, merged)
	}
	if leadID != nil {
		d.assignCampaigns(ctx, s, e, *leadID)
	}

	return s.Update(ctx, func(tx *wizard.Tx) error {
		complete(tx, e)
		if len(defaults) > 0 {
			tx.Navigator().SetValues(defaults)
		}
		return nil
	})
}

func (d *Dispatcher) autoCaptureLead(ctx context.Context, s *wizard.Session, e entry, data model.FormData) *int64 {
	email := LeadEmail(e.app, nil, data)
	if email == "" || d.backends.Leads == nil {
		return nil
	}
	resp, err := d.backends.Leads.CreateLead(ctx, services.LeadRequest{
		Payload:        LeadPayload(e.app, nil, data),
		Email:          email,
		Name:           LeadName(nil, data),
		Status:         d.leadStatus,
		IdempotencyKey: e.key + ":lead",
	})
	if err != nil {
		logger.Warn("lead auto capture failed", zap.String("session", s.ID()), zap.Error(err))
		return nil
	}
	_ = s.Update(ctx, func(tx *wizard.Tx) error {
		tx.Navigator().CaptureLead(resp.ID)
		return nil
	})
	id := resp.ID
	return &id
}

// assignCampaigns assigns the lead to every configured campaign. Each
// assignment is independent; failures are only logged.
func (d *Dispatcher) assignCampaigns(ctx context.Context, s *wizard.Session, e entry, leadID int64) {
	if d.backends.Campaigns == nil || len(e.app.Campaigns) == 0 {
		return
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, campaignID := range e.app.Campaigns {
		wg.Add(1)
		go func(campaignID int64) {
			defer wg.Done()
			if err := d.backends.Campaigns.Assign(ctx, campaignID, leadID); err != nil {
				logger.Warn("campaign assignment failed",
					zap.String("session", s.ID()),
					zap.Int64("campaign", campaignID),
					zap.Int64("lead", leadID),
					zap.Error(err),
				)
				mu.Lock()
				errs = multierr.Append(errs, &ServiceError{Kind: Degraded, StepID: e.step.ID, Op: "campaign " + strconv.FormatInt(campaignID, 10), Err: err})
				mu.Unlock()
			}
		}(campaignID)
	}
	wg.Wait()
	if errs != nil {
		logger.Debug("campaign assignment incomplete", zap.Int("failed", len(multierr.Errors(errs))), zap.Int("total", len(e.app.Campaigns)))
	}
}
