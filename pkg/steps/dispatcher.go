// Package steps implements the per step type semantics of the wizard: entry
// actions, primary actions and their failure handling.
package steps

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/placeholder"
	"github.com/goliatone/go-formwizard/pkg/pricing"
	"github.com/goliatone/go-formwizard/pkg/services"
	"github.com/goliatone/go-formwizard/pkg/visibility"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Dispatcher routes entry and primary actions to the handler of the current
// step type.
type Dispatcher struct {
	backends services.Backends
	pricing  pricing.Engine
	layouts  *placeholder.Layouts

	returnURL   string
	emailFrom   string
	emailStream string
	leadStatus  string
	appStatus   string

	now    func() time.Time
	newKey func() string
}

var _ wizard.Dispatcher = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackends sets the remote services.
func WithBackends(b services.Backends) Option {
	return func(d *Dispatcher) {
		d.backends = b
	}
}

// WithPricing overrides the pricing engine.
func WithPricing(engine pricing.Engine) Option {
	return func(d *Dispatcher) {
		if engine != nil {
			d.pricing = engine
		}
	}
}

// WithLayouts wraps email bodies in named layouts.
func WithLayouts(l *placeholder.Layouts) Option {
	return func(d *Dispatcher) {
		d.layouts = l
	}
}

// WithReturnURL sets the payment return URL template. {session} and {app}
// are replaced; the payment and step parameters are appended.
func WithReturnURL(tmpl string) Option {
	return func(d *Dispatcher) {
		d.returnURL = strings.TrimSpace(tmpl)
	}
}

// WithEmailDefaults sets the sender and message stream used when a step does
// not configure them.
func WithEmailDefaults(from, stream string) Option {
	return func(d *Dispatcher) {
		d.emailFrom = from
		d.emailStream = stream
	}
}

// WithStatuses overrides the status sent with created leads and
// applications.
func WithStatuses(lead, application string) Option {
	return func(d *Dispatcher) {
		if lead != "" {
			d.leadStatus = lead
		}
		if application != "" {
			d.appStatus = application
		}
	}
}

// WithClock overrides the clock used by placeholder tokens.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithKeyGenerator overrides idempotency key generation.
func WithKeyGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newKey = fn
		}
	}
}

// New constructs a Dispatcher.
func New(options ...Option) *Dispatcher {
	d := &Dispatcher{
		pricing:    pricing.Calculator{},
		leadStatus: "new",
		appStatus:  "submitted",
		now:        time.Now,
		newKey:     uuid.NewString,
	}
	for _, opt := range options {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Enter runs the entry action of the current step.
func (d *Dispatcher) Enter(ctx context.Context, s *wizard.Session) error {
	e, ok := d.current(ctx, s)
	if !ok {
		return nil
	}
	switch e.step.Type {
	case model.StepTypeStripeCheckout:
		return d.enterCheckout(ctx, s, e)
	case model.StepTypeSendEmail:
		return d.sendEmail(ctx, s, e)
	case model.StepTypeDecisionPreview:
		return d.fetchPreview(ctx, s, e)
	default:
		return nil
	}
}

// Act runs the primary action of the current step.
func (d *Dispatcher) Act(ctx context.Context, s *wizard.Session) error {
	e, ok := d.current(ctx, s)
	if !ok {
		return wizard.ErrNoSteps
	}
	switch e.step.Type {
	case model.StepTypeStripeCheckout:
		return d.pay(ctx, s, e)
	case model.StepTypeLeadCapture:
		return d.captureLead(ctx, s, e)
	case model.StepTypeSubmission:
		return d.submit(ctx, s, e)
	case model.StepTypeDecisionPreview:
		return d.proceed(ctx, s, e)
	case model.StepTypeConfirmation:
		return ErrTerminal
	case model.StepTypeFields:
		if visibility.IsSingleStep(e.step) {
			return d.submit(ctx, s, e)
		}
		return ErrNoAction
	default:
		return ErrNoAction
	}
}

// entry is what a handler captured about the step it is working for.
type entry struct {
	step  model.StepDefinition
	index int
	gen   uint64
	app   *model.Application
	state wizard.State
	key   string
}

// live reports whether e is still the current step entry.
func (e entry) live(tx *wizard.Tx) bool {
	return tx.Navigator().Entry() == e.gen
}

func capture(tx *wizard.Tx) (entry, bool) {
	nav := tx.Navigator()
	step, ok := nav.Current()
	if !ok {
		return entry{}, false
	}
	return entry{
		step:  step,
		index: nav.Index(),
		gen:   nav.Entry(),
		app:   tx.Application(),
		state: nav.State(),
	}, true
}

func (d *Dispatcher) current(ctx context.Context, s *wizard.Session) (entry, bool) {
	var e entry
	var ok bool
	_ = s.Update(ctx, func(tx *wizard.Tx) error {
		e, ok = capture(tx)
		return nil
	})
	return e, ok
}

// claim marks the current step pending and captures a fresh entry. The
// returned release clears the flag and must be deferred.
func (d *Dispatcher) claim(ctx context.Context, s *wizard.Session) (entry, func(), error) {
	var e entry
	err := s.Update(ctx, func(tx *wizard.Tx) error {
		var ok bool
		e, ok = capture(tx)
		if !ok {
			return wizard.ErrNoSteps
		}
		st := tx.Status(e.step.ID)
		if st.Pending {
			return ErrPending
		}
		st.Pending = true
		st.Error = ""
		if st.Entry != e.gen || st.IdempotencyKey == "" {
			st.Entry = e.gen
			st.IdempotencyKey = d.newKey()
		}
		e.key = st.IdempotencyKey
		return nil
	})
	if err != nil {
		return entry{}, func() {}, err
	}
	release := func() {
		_ = s.Update(context.WithoutCancel(ctx), func(tx *wizard.Tx) error {
			tx.Status(e.step.ID).Pending = false
			return nil
		})
	}
	return e, release, nil
}

// complete marks the step done and advances when the entry is still live.
func complete(tx *wizard.Tx, e entry) {
	tx.Status(e.step.ID).Completed = true
	if e.live(tx) {
		tx.Navigator().Advance()
	}
}

func (d *Dispatcher) resolver(app *model.Application, options ...placeholder.Option) placeholder.Resolver {
	base := []placeholder.Option{
		placeholder.WithFallback(app.Wizard.PlaceholderFallback),
		placeholder.WithClock(d.now),
	}
	return placeholder.New(append(base, options...)...)
}

func (d *Dispatcher) breakdown(e entry) pricing.Breakdown {
	partial := e.state.PartialPayment && e.step.Stripe != nil && e.step.Stripe.AllowPartialPayment
	return d.pricing.CalculateBreakdown(e.app.Pricing, e.state.FormData, e.app.Fields, partial)
}

func (d *Dispatcher) proceed(ctx context.Context, s *wizard.Session, e entry) error {
	return s.Update(ctx, func(tx *wizard.Tx) error {
		complete(tx, e)
		return nil
	})
}
