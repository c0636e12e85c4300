package wizard

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/placeholder"
	"github.com/goliatone/go-formwizard/pkg/progress"
	"github.com/goliatone/go-formwizard/pkg/visibility"
)

// ErrNoDispatcher is returned when a session is built without a dispatcher.
var ErrNoDispatcher = errors.New("wizard: dispatcher is required")

// Dispatcher runs step semantics. Enter is invoked once per step entry; Act
// runs the primary action of the current step (pay, capture, submit,
// proceed). Implementations mutate the session only through Update.
type Dispatcher interface {
	Enter(ctx context.Context, s *Session) error
	Act(ctx context.Context, s *Session) error
}

// Session serialises every wizard event behind one lock. Long running
// dispatcher calls release the lock while waiting and re-enter it through
// Update to apply their results.
type Session struct {
	mu sync.Mutex

	id         string
	owner      string
	app        *model.Application
	nav        *Navigator
	dispatcher Dispatcher
	progress   *progress.Manager
	stash      progress.StashStore
	resolver   placeholder.Resolver
	navOpts    []NavigatorOption

	status       map[string]*StepStatus
	notes        []Notification
	entered      uint64
	clearPending bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id = strings.TrimSpace(id); id != "" {
			s.id = id
		}
	}
}

// WithOwner scopes persisted progress to one user of a shared deployment.
func WithOwner(owner string) SessionOption {
	return func(s *Session) {
		s.owner = strings.TrimSpace(owner)
	}
}

// WithProgress enables autosave and resume.
func WithProgress(m *progress.Manager) SessionOption {
	return func(s *Session) {
		s.progress = m
	}
}

// WithStash sets the store used around the payment redirect.
func WithStash(store progress.StashStore) SessionOption {
	return func(s *Session) {
		s.stash = store
	}
}

// WithResolver overrides the placeholder resolver used for static content.
func WithResolver(r placeholder.Resolver) SessionOption {
	return func(s *Session) {
		s.resolver = r
	}
}

// WithNavigatorOptions forwards options to the underlying navigator.
func WithNavigatorOptions(options ...NavigatorOption) SessionOption {
	return func(s *Session) {
		s.navOpts = append(s.navOpts, options...)
	}
}

// NewSession builds a session positioned at the first visible step. Call
// Resume to restore saved progress or apply a payment return.
func NewSession(app *model.Application, dispatcher Dispatcher, options ...SessionOption) (*Session, error) {
	if app == nil {
		return nil, ErrNoApplication
	}
	if dispatcher == nil {
		return nil, ErrNoDispatcher
	}
	s := &Session{
		id:         uuid.NewString(),
		app:        app,
		dispatcher: dispatcher,
		resolver:   placeholder.New(placeholder.WithFallback(app.Wizard.PlaceholderFallback)),
		status:     map[string]*StepStatus{},
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	nav, err := NewNavigator(app, s.navOpts...)
	if err != nil {
		return nil, err
	}
	s.nav = nav
	return s, nil
}

// ID identifies the session.
func (s *Session) ID() string { return s.id }

// Application returns the configuration driving the session.
func (s *Session) Application() *model.Application { return s.app }

// ProgressKey is the key saved progress is stored under.
func (s *Session) ProgressKey() string {
	if s.owner == "" {
		return s.app.ID
	}
	return s.owner + ":" + s.app.ID
}

// StashKey is the key of the payment stash. It is the session id, which the
// provider return URL carries back.
func (s *Session) StashKey() string { return s.id }

// Stash returns the payment stash store, or nil.
func (s *Session) Stash() progress.StashStore { return s.stash }

// Resume restores saved progress, or applies the payment return when query
// carries the marker, then runs the entry action of the resulting step.
func (s *Session) Resume(ctx context.Context, query url.Values) error {
	if progress.HasReturnMarker(query) {
		return s.ExternalReturn(ctx, query)
	}
	snap, err := s.progress.Restore(ctx, s.ProgressKey(), query)
	if err != nil {
		logger.Warn("progress restore failed", zap.String("session", s.id), zap.String("app", s.app.ID), zap.Error(err))
	}
	if snap != nil {
		s.mu.Lock()
		s.nav.Restore(*snap)
		s.mu.Unlock()
		logger.Debug("progress restored", zap.String("session", s.id), zap.Int("step", snap.StepIndex))
	}
	s.enter(ctx)
	return nil
}

// SetField records one answer.
func (s *Session) SetField(ctx context.Context, name string, value any) error {
	return s.event(ctx, func(nav *Navigator) error {
		nav.SetValue(name, value)
		return nil
	})
}

// SetFields records several answers as one mutation.
func (s *Session) SetFields(ctx context.Context, values map[string]any) error {
	return s.event(ctx, func(nav *Navigator) error {
		nav.SetValues(values)
		return nil
	})
}

// Touch marks a field as interacted with.
func (s *Session) Touch(ctx context.Context, name string) error {
	return s.event(ctx, func(nav *Navigator) error {
		nav.Touch(name)
		return nil
	})
}

// Next validates and advances a fields step. On the single step form of a
// non-wizard configuration it submits instead.
func (s *Session) Next(ctx context.Context) error {
	submit := false
	err := s.event(ctx, func(nav *Navigator) error {
		step, ok := nav.Current()
		submit = ok && visibility.IsSingleStep(step)
		return nav.Next()
	})
	if err != nil {
		if verr := (*ValidationError)(nil); errors.As(err, &verr) {
			s.notify(NotifyError, verr.StepID, "Please fix the highlighted fields.")
		}
		return err
	}
	if submit {
		return s.Act(ctx)
	}
	return nil
}

// Previous moves back one step.
func (s *Session) Previous(ctx context.Context) error {
	return s.event(ctx, func(nav *Navigator) error {
		return nav.Previous()
	})
}

// Act runs the primary action of the current step.
func (s *Session) Act(ctx context.Context) error {
	err := s.dispatcher.Act(ctx, s)
	s.enter(ctx)
	return err
}

// SetPartialPayment records the deposit opt-in and refreshes the current
// step so its pricing reflects the choice.
func (s *Session) SetPartialPayment(ctx context.Context, opted bool) error {
	return s.event(ctx, func(nav *Navigator) error {
		nav.SetPartialPayment(opted)
		s.entered = 0
		return nil
	})
}

// ExternalReturn applies a payment provider redirect. The stash written
// before leaving is consumed and replaces the form data.
func (s *Session) ExternalReturn(ctx context.Context, query url.Values) error {
	ret, ok, err := ParseReturn(query)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidReturn
	}

	var stash *progress.Stash
	if s.stash != nil {
		stash, err = s.stash.Take(ctx, s.StashKey())
		if err != nil {
			logger.Warn("payment stash read failed", zap.String("session", s.id), zap.Error(err))
		}
	}

	return s.event(ctx, func(nav *Navigator) error {
		nav.ApplyReturn(ret, stash)
		steps := nav.Steps()
		if ret.StepIndex >= len(steps) {
			return nil
		}
		paid := steps[ret.StepIndex]
		st := s.statusLocked(paid.ID)
		st.RedirectURL = ""
		st.Pending = false
		switch ret.Outcome {
		case ReturnSuccess:
			st.Completed = true
			st.Error = ""
			s.notes = append(s.notes, Notification{Level: NotifyInfo, StepID: paid.ID, Message: "Payment received."})
		case ReturnCancel:
			s.notes = append(s.notes, Notification{Level: NotifyWarn, StepID: paid.ID, Message: "Payment was cancelled."})
		}
		logger.Info("payment return applied",
			zap.String("session", s.id),
			zap.String("outcome", string(ret.Outcome)),
			zap.Int("step", ret.StepIndex),
			zap.Bool("stash", stash != nil),
		)
		return nil
	})
}

// StartOver discards every answer and deletes saved progress.
func (s *Session) StartOver(ctx context.Context) error {
	return s.event(ctx, func(nav *Navigator) error {
		nav.StartOver()
		s.status = map[string]*StepStatus{}
		s.clearPending = true
		return nil
	})
}

// Tx is the locked view a dispatcher handler gets inside Update.
type Tx struct {
	s *Session
}

// Navigator returns the session navigator.
func (t *Tx) Navigator() *Navigator { return t.s.nav }

// Application returns the configuration.
func (t *Tx) Application() *model.Application { return t.s.app }

// Status returns the mutable status of stepID.
func (t *Tx) Status(stepID string) *StepStatus { return t.s.statusLocked(stepID) }

// Notify queues a notification.
func (t *Tx) Notify(level NotificationLevel, stepID, message string) {
	t.s.notes = append(t.s.notes, Notification{Level: level, StepID: stepID, Message: message})
}

// Submitted records the terminal submission: saved progress is deleted and
// autosave stops.
func (t *Tx) Submitted() {
	t.s.clearPending = true
}

// Update runs fn while holding the session lock, then persists progress.
func (s *Session) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(&Tx{s: s})
	s.persistLocked(ctx)
	return err
}

func (s *Session) event(ctx context.Context, fn func(nav *Navigator) error) error {
	s.mu.Lock()
	err := fn(s.nav)
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.enter(ctx)
	return err
}

// enter runs the entry action of every step that becomes current, following
// chains of auto-advancing steps.
func (s *Session) enter(ctx context.Context) {
	limit := len(s.app.Wizard.Steps) + 2
	for i := 0; i < limit; i++ {
		s.mu.Lock()
		entry := s.nav.Entry()
		if entry == s.entered {
			s.mu.Unlock()
			return
		}
		s.entered = entry
		s.mu.Unlock()

		if err := s.dispatcher.Enter(ctx, s); err != nil {
			logger.Warn("step entry failed", zap.String("session", s.id), zap.Error(err))
		}
	}
}

func (s *Session) persistLocked(ctx context.Context) {
	if s.progress == nil {
		s.clearPending = false
		return
	}
	key := s.ProgressKey()
	if s.clearPending {
		s.clearPending = false
		if err := s.progress.Clear(ctx, key); err != nil {
			logger.Warn("progress clear failed", zap.String("session", s.id), zap.String("key", key), zap.Error(err))
		}
		return
	}
	if s.nav.state.SubmittedApplicationID != nil {
		return
	}
	if _, err := s.progress.Save(ctx, key, s.nav.Snapshot()); err != nil {
		logger.Warn("progress save failed", zap.String("session", s.id), zap.String("key", key), zap.Error(err))
	}
}

func (s *Session) statusLocked(stepID string) *StepStatus {
	st, ok := s.status[stepID]
	if !ok {
		st = &StepStatus{}
		s.status[stepID] = st
	}
	return st
}

func (s *Session) notify(level NotificationLevel, stepID, message string) {
	s.mu.Lock()
	s.notes = append(s.notes, Notification{Level: level, StepID: stepID, Message: message})
	s.mu.Unlock()
}

// Owner is the user the session belongs to, or "".
func (s *Session) Owner() string { return s.owner }

// StepStatus returns a copy of the dispatcher status of stepID, or nil.
func (s *Session) StepStatus(stepID string) *StepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[stepID].clone()
}
