package steps

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/placeholder"
	"github.com/goliatone/go-formwizard/pkg/services"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// sendEmail is the send_email entry action. The step is marked attempted
// before anything is sent so re-entering it never sends twice; the flow
// advances once the attempt resolves, whatever the outcome, and again on
// every later entry.
func (d *Dispatcher) sendEmail(ctx context.Context, s *wizard.Session, _ entry) error {
	var e entry
	first := false
	_ = s.Update(ctx, func(tx *wizard.Tx) error {
		var ok bool
		if e, ok = capture(tx); !ok {
			return nil
		}
		if !tx.Navigator().MarkEmailSent(e.step.ID) {
			// Already attempted: walking back onto the step moves straight
			// on, unless the first delivery is still in flight.
			if !tx.Status(e.step.ID).Pending {
				complete(tx, e)
			}
			return nil
		}
		first = true
		tx.Status(e.step.ID).Pending = true
		return nil
	})
	if !first {
		return nil
	}

	err := d.deliver(ctx, e)
	if err != nil {
		logger.Warn("email step delivery failed", zap.String("session", s.ID()), zap.String("step", e.step.ID), zap.Error(err))
	}
	return s.Update(ctx, func(tx *wizard.Tx) error {
		tx.Status(e.step.ID).Pending = false
		if err != nil {
			tx.Notify(wizard.NotifyWarn, e.step.ID, "We could not send every confirmation email.")
		}
		complete(tx, e)
		return nil
	})
}

func (d *Dispatcher) deliver(ctx context.Context, e entry) error {
	cfg := e.step.Email
	if cfg == nil {
		return &ServiceError{Kind: Degraded, StepID: e.step.ID, Op: "email", Err: fmt.Errorf("step has no email configuration")}
	}
	if d.backends.Email == nil {
		return &ServiceError{Kind: Degraded, StepID: e.step.ID, Op: "email", Err: ErrNotConfigured}
	}

	data := e.state.FormData
	plain := d.resolver(e.app)
	recipients := SplitRecipients(plain.Resolve(cfg.To, data))
	if len(recipients) == 0 {
		return &ServiceError{Kind: Degraded, StepID: e.step.ID, Op: "email", Err: fmt.Errorf("no recipients in %q", cfg.To)}
	}
	subject := plain.Resolve(cfg.Subject, data)
	body := d.resolver(e.app, placeholder.WithHTMLEscape()).Resolve(cfg.Body, data)
	if cfg.Layout != "" {
		wrapped, err := d.layouts.Wrap(cfg.Layout, subject, body, data)
		if err != nil {
			logger.Warn("email layout failed, sending bare body", zap.String("layout", cfg.Layout), zap.Error(err))
		} else {
			body = wrapped
		}
	}
	body = placeholder.SanitizeHTML(body)

	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = d.emailFrom
	}
	stream := strings.TrimSpace(cfg.MessageStream)
	if stream == "" {
		stream = d.emailStream
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, to := range recipients {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			err := d.backends.Email.Send(ctx, services.EmailMessage{
				From:          from,
				To:            to,
				Subject:       subject,
				HTMLBody:      body,
				MessageStream: stream,
			})
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("send to %s: %w", to, err))
				mu.Unlock()
			}
		}(to)
	}
	wg.Wait()
	if errs != nil {
		return &ServiceError{Kind: Degraded, StepID: e.step.ID, Op: "email", Err: errs}
	}
	return nil
}
