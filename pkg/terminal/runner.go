// Package terminal drives a wizard session from an interactive terminal.
// Every answer goes through the session, so visibility, validation and
// autosave behave exactly as they do over HTTP.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

const defaultMaxRounds = 200

// Menu entries offered after each step.
const (
	actionContinue  = "Continue"
	actionPay       = "Pay now"
	actionDeposit   = "Toggle deposit payment"
	actionBack      = "Back"
	actionStartOver = "Start over"
	actionQuit      = "Save and quit"
)

// Runner walks a session until it reaches its confirmation step.
type Runner struct {
	driver    PromptDriver
	theme     Theme
	maxRounds int
}

// New constructs a runner with the survey driver.
func New(options ...Option) *Runner {
	r := &Runner{
		driver:    newSurveyDriver(),
		maxRounds: defaultMaxRounds,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Run resumes s and prompts step by step. It returns nil once the
// confirmation step is shown, ErrQuit when the user leaves early.
func (r *Runner) Run(ctx context.Context, s *wizard.Session) error {
	if ctx == nil {
		return errors.New("terminal: context is required")
	}
	if s == nil {
		return errors.New("terminal: session is required")
	}
	if err := s.Resume(ctx, nil); err != nil {
		return err
	}

	for round := 0; round < r.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		view := s.View()
		if err := r.notify(ctx, view.Notifications); err != nil {
			return err
		}
		if view.Current == nil {
			return wizard.ErrNoSteps
		}
		if view.Terminal {
			return r.confirmation(ctx, view)
		}
		if err := r.header(ctx, view); err != nil {
			return err
		}

		var err error
		switch view.Current.Type {
		case model.StepTypeFields:
			err = r.fieldsStep(ctx, s, view)
		case model.StepTypeStripeCheckout:
			err = r.checkoutStep(ctx, s, view)
		default:
			err = r.actionStep(ctx, s, view)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, ErrQuit) || errors.Is(err, ErrAborted) || ctx.Err() != nil {
			return err
		}
		if ierr := r.failure(ctx, err); ierr != nil {
			return ierr
		}
	}
	return ErrStalled
}

func (r *Runner) fieldsStep(ctx context.Context, s *wizard.Session, view wizard.View) error {
	stepID := view.Current.ID
	asked := make(map[string]bool)

	for {
		current := s.View()
		if err := r.notify(ctx, current.Notifications); err != nil {
			return err
		}
		if current.Current == nil || current.Current.ID != stepID {
			return nil
		}
		fv, ok := nextField(current, asked)
		if !ok {
			break
		}
		asked[fv.Field.Name] = true

		value, answered, err := r.promptField(ctx, fv)
		if err != nil {
			return err
		}
		if !answered {
			continue
		}
		if err := s.SetField(ctx, fv.Field.Name, value); err != nil {
			return err
		}
		if err := s.Touch(ctx, fv.Field.Name); err != nil {
			return err
		}
	}

	choice, err := r.menu(ctx, s, view, actionContinue)
	if err != nil || choice != actionContinue {
		return err
	}
	err = s.Next(ctx)
	var verr *wizard.ValidationError
	if errors.As(err, &verr) {
		return r.validationFailure(ctx, verr)
	}
	return err
}

func (r *Runner) checkoutStep(ctx context.Context, s *wizard.Session, view wizard.View) error {
	if st := view.Status; st != nil && st.Breakdown != nil {
		if err := r.breakdown(ctx, view); err != nil {
			return err
		}
	}

	extra := []string{actionPay}
	if depositAllowed(s.Application(), view.Current.ID) {
		extra = append(extra, actionDeposit)
	}
	choice, err := r.menu(ctx, s, view, extra...)
	if err != nil {
		return err
	}
	switch choice {
	case actionDeposit:
		return s.SetPartialPayment(ctx, !view.PartialPayment)
	case actionPay:
	default:
		return nil
	}

	if err := s.Act(ctx); err != nil {
		return err
	}
	st := s.StepStatus(view.Current.ID)
	if st == nil || st.RedirectURL == "" {
		return nil
	}
	return r.awaitPayment(ctx, s, view, st.RedirectURL)
}

// awaitPayment prints the checkout URL and waits for the user to paste the
// URL the provider redirected to. An empty answer counts as cancelled.
func (r *Runner) awaitPayment(ctx context.Context, s *wizard.Session, view wizard.View, redirect string) error {
	if err := r.info(ctx, r.theme.InfoPrefix, "Complete the payment at: "+redirect); err != nil {
		return err
	}
	raw, err := r.driver.Input(ctx, InputConfig{
		Message: "Paste the URL you were returned to (leave empty to cancel)",
		Validator: func(in string) error {
			if strings.TrimSpace(in) == "" {
				return nil
			}
			if _, err := url.Parse(strings.TrimSpace(in)); err != nil {
				return err
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	var query url.Values
	if raw = strings.TrimSpace(raw); raw == "" {
		query = wizard.Return{Outcome: wizard.ReturnCancel, StepIndex: view.CurrentIndex}.Query()
	} else {
		parsed, err := url.Parse(raw)
		if err != nil {
			return err
		}
		query = parsed.Query()
	}
	logger.Debug("terminal payment return", zap.String("session", s.ID()), zap.String("query", query.Encode()))
	return s.ExternalReturn(ctx, query)
}

func (r *Runner) actionStep(ctx context.Context, s *wizard.Session, view wizard.View) error {
	if st := view.Status; st != nil && st.Preview != nil {
		p := st.Preview
		label := "Decision"
		if p.Estimated {
			label = "Estimated decision"
		}
		msg := fmt.Sprintf("%s: %s", label, p.Decision)
		if p.Message != "" {
			msg += " - " + p.Message
		}
		if err := r.info(ctx, r.theme.InfoPrefix, msg); err != nil {
			return err
		}
	}
	choice, err := r.menu(ctx, s, view, actionContinue)
	if err != nil || choice != actionContinue {
		return err
	}
	return s.Act(ctx)
}

// menu offers extra actions followed by navigation. Back, start over and
// quit are handled here; the chosen extra action is returned.
func (r *Runner) menu(ctx context.Context, s *wizard.Session, view wizard.View, extra ...string) (string, error) {
	options := append([]string(nil), extra...)
	if view.CanPrevious {
		options = append(options, actionBack)
	}
	options = append(options, actionStartOver, actionQuit)

	idx, err := r.driver.Select(ctx, SelectConfig{Message: "What next?", Options: options})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(options) {
		return "", nil
	}
	switch choice := options[idx]; choice {
	case actionBack:
		return "", s.Previous(ctx)
	case actionStartOver:
		return "", s.StartOver(ctx)
	case actionQuit:
		return "", ErrQuit
	default:
		return choice, nil
	}
}

func (r *Runner) promptField(ctx context.Context, fv wizard.FieldView) (any, bool, error) {
	field := fv.Field
	label := field.DisplayLabel()
	if field.Required {
		label += " *"
	}
	help := field.Placeholder
	current := model.Stringify(fv.Value)

	switch field.Type {
	case model.FieldTypeReadonlyText, model.FieldTypeHTMLContent:
		if fv.Content == "" {
			return nil, false, nil
		}
		return nil, false, r.driver.Info(ctx, fv.Content)
	case model.FieldTypeCheckbox, model.FieldTypeTermsAgreement:
		if fv.Content != "" {
			if err := r.driver.Info(ctx, fv.Content); err != nil {
				return nil, false, err
			}
		}
		message := label
		if field.CheckboxLabel != "" {
			message = field.CheckboxLabel
		}
		checked, _ := fv.Value.(bool)
		ok, err := r.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: checked, Help: help})
		return ok, err == nil, err
	case model.FieldTypeSelect, model.FieldTypeRadio:
		if len(field.Options) == 0 {
			return nil, false, nil
		}
		labels := make([]string, len(field.Options))
		def := 0
		for i, opt := range field.Options {
			labels[i] = opt.Label
			if labels[i] == "" {
				labels[i] = opt.Value
			}
			if opt.Value == current {
				def = i
			}
		}
		idx, err := r.driver.Select(ctx, SelectConfig{Message: label, Options: labels, DefaultIndex: def, Help: help})
		if err != nil {
			return nil, false, err
		}
		if idx < 0 || idx >= len(field.Options) {
			return nil, false, nil
		}
		return field.Options[idx].Value, true, nil
	case model.FieldTypeTextarea:
		text, err := r.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: current, Help: help})
		return text, err == nil, err
	case model.FieldTypeNumber:
		raw, err := r.driver.Input(ctx, InputConfig{
			Message: label,
			Default: current,
			Help:    help,
			Validator: func(in string) error {
				if strings.TrimSpace(in) == "" {
					return nil
				}
				_, err := strconv.ParseFloat(strings.TrimSpace(in), 64)
				if err != nil {
					return errors.New("enter a number")
				}
				return nil
			},
		})
		if err != nil {
			return nil, false, err
		}
		raw = strings.TrimSpace(raw)
		if n, perr := strconv.ParseFloat(raw, 64); perr == nil {
			return n, true, nil
		}
		return raw, true, nil
	default:
		text, err := r.driver.Input(ctx, InputConfig{Message: label, Default: current, Help: help})
		return text, err == nil, err
	}
}

func (r *Runner) header(ctx context.Context, view wizard.View) error {
	title := view.Current.Title
	if title == "" {
		title = view.Current.ID
	}
	return r.driver.Info(ctx, fmt.Sprintf("\n[%d/%d] %s", view.CurrentIndex+1, len(view.Steps), title))
}

func (r *Runner) breakdown(ctx context.Context, view wizard.View) error {
	b := view.Status.Breakdown
	var lines []string
	for _, item := range b.Items {
		lines = append(lines, fmt.Sprintf("  %s x%d  %.2f", item.Label, item.Quantity, item.Subtotal))
	}
	lines = append(lines, fmt.Sprintf("  Total  %.2f", b.Total))
	if b.AmountPaid > 0 {
		lines = append(lines, fmt.Sprintf("  Paid   %.2f", b.AmountPaid))
	}
	lines = append(lines, fmt.Sprintf("  Due now  %.2f", b.AmountDue))
	if b.BalanceRemaining > 0 {
		lines = append(lines, fmt.Sprintf("  Balance later  %.2f", b.BalanceRemaining))
	}
	return r.driver.Info(ctx, strings.Join(lines, "\n"))
}

func (r *Runner) confirmation(ctx context.Context, view wizard.View) error {
	title := view.Title
	if title == "" {
		title = "All done"
	}
	msg := title
	if view.Message != "" {
		msg += "\n" + view.Message
	}
	return r.info(ctx, r.theme.InfoPrefix, msg)
}

func (r *Runner) notify(ctx context.Context, notes []wizard.Notification) error {
	for _, note := range notes {
		prefix := r.theme.InfoPrefix
		switch note.Level {
		case wizard.NotifyWarn:
			prefix = r.theme.WarnPrefix
		case wizard.NotifyError:
			prefix = r.theme.ErrorPrefix
		}
		if err := r.info(ctx, prefix, note.Message); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) validationFailure(ctx context.Context, verr *wizard.ValidationError) error {
	names := make([]string, 0, len(verr.Fields))
	for name := range verr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.info(ctx, r.theme.ErrorPrefix, verr.Fields[name]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) failure(ctx context.Context, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, steps.ErrPending):
		msg = "Still working on it, please wait."
	case errors.Is(err, steps.ErrMissingEmail):
		msg = "An email address is required before continuing."
	case steps.IsRetryable(err), steps.IsFatal(err):
		msg = "Something went wrong, please try again."
	}
	logger.Warn("terminal step failed", zap.Error(err))
	return r.info(ctx, r.theme.ErrorPrefix, msg)
}

func (r *Runner) info(ctx context.Context, prefix, msg string) error {
	return r.driver.Info(ctx, prefix+msg)
}

func depositAllowed(app *model.Application, stepID string) bool {
	if app == nil || app.Pricing.PartialPayment == nil {
		return false
	}
	for _, step := range app.Wizard.Steps {
		if step.ID == stepID {
			return step.Stripe != nil && step.Stripe.AllowPartialPayment
		}
	}
	return false
}

// nextField picks the focused field first, then the remaining visible
// fields in order.
func nextField(view wizard.View, asked map[string]bool) (wizard.FieldView, bool) {
	if view.Focus != "" && !asked[view.Focus] {
		for _, fv := range view.Fields {
			if fv.Field.Name == view.Focus {
				return fv, true
			}
		}
	}
	for _, fv := range view.Fields {
		if !asked[fv.Field.Name] {
			return fv, true
		}
	}
	return wizard.FieldView{}, false
}
