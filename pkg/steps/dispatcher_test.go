package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/progress"
	"github.com/goliatone/go-formwizard/pkg/services"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

func newSession(t *testing.T, app *model.Application, d *Dispatcher, options ...wizard.SessionOption) *wizard.Session {
	t.Helper()
	s, err := wizard.NewSession(app, d, options...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func jump(t *testing.T, s *wizard.Session, index int) {
	t.Helper()
	_ = s.Update(context.Background(), func(tx *wizard.Tx) error {
		tx.Navigator().JumpTo(index)
		return nil
	})
}

func currentID(s *wizard.Session) string {
	view := s.View()
	if view.Current == nil {
		return ""
	}
	return view.Current.ID
}

func sequentialKeys() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("key-%d", n)
	}
}

func baseAnswers() map[string]any {
	return map[string]any{"name": "Ada", "email": "ada@example.com"}
}

func TestSendEmailSendsOnceWhenEnteredTwice(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{}
	started := make(chan struct{}, 4)
	gate := make(chan struct{})
	fake.emailFn = func(services.EmailMessage) error {
		started <- struct{}{}
		<-gate
		return nil
	}
	d := New(WithBackends(fake.backends()), WithEmailDefaults("club@example.com", "outbound"))
	s := newSession(t, clubApp(), d)
	_ = s.SetFields(ctx, baseAnswers())
	jump(t, s, idxNotify)

	done := make(chan error, 1)
	go func() { done <- d.Enter(ctx, s) }()
	<-started

	if err := d.Enter(ctx, s); err != nil {
		t.Fatalf("second entry: %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first entry: %v", err)
	}

	if got := fake.emailCount(); got != 2 {
		t.Fatalf("expected one message per distinct recipient, got %d", got)
	}
	if got := currentID(s); got != "review" {
		t.Fatalf("expected auto advance to review, got %q", got)
	}

	msg := fake.emails[0]
	if msg.Subject != "Welcome Ada" || msg.From != "club@example.com" || msg.MessageStream != "outbound" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if strings.Contains(msg.HTMLBody, "<script>") || !strings.Contains(msg.HTMLBody, "<p>Hi Ada</p>") {
		t.Fatalf("body not resolved and sanitized: %q", msg.HTMLBody)
	}

	if err := d.Enter(ctx, s); err != nil {
		t.Fatalf("enter review: %v", err)
	}
	jump(t, s, idxNotify)
	if err := d.Enter(ctx, s); err != nil {
		t.Fatalf("re-enter notify: %v", err)
	}
	if got := fake.emailCount(); got != 2 {
		t.Fatalf("revisiting the step must not send again, got %d", got)
	}
	if got := currentID(s); got != "review" {
		t.Fatalf("expected the revisited step to advance, got %q", got)
	}
}

func TestSendEmailPreviousOntoSentStepMovesOn(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{}
	app := clubApp()
	app.Wizard.Steps = []model.StepDefinition{app.Wizard.Steps[0], app.Wizard.Steps[3], app.Wizard.Steps[4]}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, app, d)
	if err := s.Resume(ctx, nil); err != nil {
		t.Fatalf("resume: %v", err)
	}
	_ = s.SetFields(ctx, baseAnswers())
	if err := s.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := currentID(s); got != "review" {
		t.Fatalf("expected review after the email step, got %q", got)
	}
	if got := fake.emailCount(); got != 2 {
		t.Fatalf("expected two messages, got %d", got)
	}

	if err := s.Previous(ctx); err != nil {
		t.Fatalf("previous: %v", err)
	}
	if got := currentID(s); got != "review" {
		t.Fatalf("expected the sent step to move on, stuck on %q", got)
	}
	if got := fake.emailCount(); got != 2 {
		t.Fatalf("re-entering the sent step must not send again, got %d", got)
	}
	if st := s.StepStatus("notify"); st == nil || !st.Completed || st.Pending {
		t.Fatalf("unexpected notify status %+v", st)
	}
}

func TestSendEmailFailureStillAdvances(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{emailFn: func(msg services.EmailMessage) error {
		if msg.To == "office@example.com" {
			return errBackend
		}
		return nil
	}}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	_ = s.SetFields(ctx, baseAnswers())
	jump(t, s, idxNotify)

	if err := d.Enter(ctx, s); err != nil {
		t.Fatalf("enter: %v", err)
	}
	view := s.View()
	if view.Current == nil || view.Current.ID != "review" {
		t.Fatalf("expected advance despite failure, got %+v", view.Current)
	}
	if len(view.Notifications) != 1 || view.Notifications[0].Level != wizard.NotifyWarn {
		t.Fatalf("expected a warning notification, got %+v", view.Notifications)
	}
}

func TestCheckoutNothingDueSkipsPayment(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	answers := baseAnswers()
	answers["paid"] = "100"
	_ = s.SetFields(ctx, answers)
	jump(t, s, idxPay)

	if err := d.Enter(ctx, s); err != nil {
		t.Fatalf("enter: %v", err)
	}
	st := s.StepStatus("pay")
	if st == nil || st.Breakdown == nil || st.Breakdown.AmountDue != 0 || st.Breakdown.Payable() {
		t.Fatalf("expected nothing due, got %+v", st)
	}

	if err := d.Act(ctx, s); err != nil {
		t.Fatalf("act: %v", err)
	}
	if len(fake.checkouts) != 0 {
		t.Fatalf("pay action must not reach the payment service, got %d calls", len(fake.checkouts))
	}
	if got := currentID(s); got != "notify" {
		t.Fatalf("expected to continue past payment, got %q", got)
	}
	if st := s.StepStatus("pay"); st == nil || !st.Completed {
		t.Fatalf("payment step should be completed, got %+v", st)
	}
}

func TestCheckoutStashesAndRedirects(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{}
	stash := progress.NewMemoryStash(0)
	d := New(WithBackends(fake.backends()), WithReturnURL("https://portal.example/sessions/{session}/return"))
	s := newSession(t, clubApp(), d, wizard.WithStash(stash), wizard.WithSessionID("s1"), wizard.WithOwner("user-3"))
	_ = s.SetFields(ctx, baseAnswers())
	_ = s.SetPartialPayment(ctx, true)
	jump(t, s, idxPay)

	if err := d.Act(ctx, s); err != nil {
		t.Fatalf("act: %v", err)
	}
	if len(fake.checkouts) != 1 {
		t.Fatalf("expected one checkout call, got %d", len(fake.checkouts))
	}
	req := fake.checkouts[0]
	wantItems := []services.LineItem{{Name: "Deposit", UnitAmount: 2500, Quantity: 1, Currency: "usd"}}
	if diff := cmp.Diff(wantItems, req.LineItems); diff != "" {
		t.Fatalf("line items mismatch (-want +got):\n%s", diff)
	}
	if req.SuccessURL != "https://portal.example/sessions/s1/return?payment=success&step=2" {
		t.Fatalf("unexpected success url %q", req.SuccessURL)
	}
	if req.CancelURL != "https://portal.example/sessions/s1/return?payment=cancel&step=2" {
		t.Fatalf("unexpected cancel url %q", req.CancelURL)
	}
	if req.UserID != "user-3" || req.Mode != "payment" {
		t.Fatalf("unexpected checkout request %+v", req)
	}

	st := s.StepStatus("pay")
	if st == nil || st.RedirectURL != "https://pay.example.com/c/1" || st.Pending {
		t.Fatalf("unexpected status %+v", st)
	}
	if got := currentID(s); got != "pay" {
		t.Fatalf("checkout must stay on the step until the provider returns, got %q", got)
	}

	saved, err := stash.Take(ctx, "s1")
	if err != nil || saved == nil {
		t.Fatalf("expected stash, got %+v %v", saved, err)
	}
	if saved.StepIndex != idxPay || saved.ApplicationSlug != "summer-club" || saved.FormData["name"] != "Ada" {
		t.Fatalf("unexpected stash %+v", saved)
	}
}

func TestCheckoutItemisesFullPayment(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	_ = s.SetFields(ctx, baseAnswers())
	jump(t, s, idxPay)

	if err := d.Act(ctx, s); err != nil {
		t.Fatalf("act: %v", err)
	}
	want := []services.LineItem{{Name: "Membership", UnitAmount: 10000, Quantity: 1, Currency: "usd"}}
	if diff := cmp.Diff(want, fake.checkouts[0].LineItems); diff != "" {
		t.Fatalf("line items mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckoutFailureBeforeSubmissionIsRetryable(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{checkoutFn: func(services.CheckoutRequest) (services.CheckoutResponse, error) {
		return services.CheckoutResponse{}, errBackend
	}}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	_ = s.SetFields(ctx, baseAnswers())
	jump(t, s, idxPay)

	err := d.Act(ctx, s)
	if !IsRetryable(err) || !errors.Is(err, errBackend) {
		t.Fatalf("expected retryable error wrapping the cause, got %v", err)
	}
	st := s.StepStatus("pay")
	if st == nil || st.Error == "" || st.Pending || st.Completed {
		t.Fatalf("unexpected status %+v", st)
	}
	if got := currentID(s); got != "pay" {
		t.Fatalf("expected to stay on pay, got %q", got)
	}
}

func TestCheckoutFailureAfterSubmissionDegrades(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{checkoutFn: func(services.CheckoutRequest) (services.CheckoutResponse, error) {
		return services.CheckoutResponse{}, errBackend
	}}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	_ = s.SetFields(ctx, baseAnswers())
	_ = s.Update(ctx, func(tx *wizard.Tx) error {
		tx.Navigator().CaptureApplication(900)
		tx.Navigator().JumpTo(idxPay)
		return nil
	})

	if err := d.Act(ctx, s); err != nil {
		t.Fatalf("degraded checkout must not fail the action, got %v", err)
	}
	if req := fake.checkouts[0]; req.BookingID == nil || *req.BookingID != 900 {
		t.Fatalf("checkout should reference the booking, got %+v", req.BookingID)
	}
	st := s.StepStatus("pay")
	if st == nil || !st.Completed || !st.FollowUp {
		t.Fatalf("expected completed follow-up status, got %+v", st)
	}
	view := s.View()
	if view.Current == nil || view.Current.ID != "notify" {
		t.Fatalf("expected advance, got %+v", view.Current)
	}
	if len(view.Notifications) != 1 || view.Notifications[0].Level != wizard.NotifyWarn {
		t.Fatalf("expected follow-up notification, got %+v", view.Notifications)
	}
}

func TestLeadCaptureRetriesWithSameKey(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{leadFn: func(call int, _ services.LeadRequest) (services.LeadResponse, error) {
		if call == 1 {
			return services.LeadResponse{}, errBackend
		}
		return services.LeadResponse{ID: 501}, nil
	}}
	d := New(WithBackends(fake.backends()), WithKeyGenerator(sequentialKeys()))
	s := newSession(t, clubApp(), d)
	answers := baseAnswers()
	answers["phone"] = "555-0100"
	answers["cv"] = "https://cdn.example.com/uploads/cv.pdf"
	answers["signature"] = "data:image/png;base64,AAAA"
	_ = s.SetFields(ctx, answers)
	jump(t, s, idxLead)

	if err := d.Act(ctx, s); !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if got := currentID(s); got != "lead" {
		t.Fatalf("failed capture must not advance, got %q", got)
	}
	if err := d.Act(ctx, s); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if len(fake.leads) != 2 {
		t.Fatalf("expected two attempts, got %d", len(fake.leads))
	}
	if fake.leads[0].IdempotencyKey != "key-1" || fake.leads[1].IdempotencyKey != "key-1" {
		t.Fatalf("retries must reuse the entry key, got %q and %q", fake.leads[0].IdempotencyKey, fake.leads[1].IdempotencyKey)
	}
	wantPayload := map[string]any{"name": "Ada", "email": "ada@example.com", "phone": "555-0100"}
	if diff := cmp.Diff(wantPayload, fake.leads[1].Payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if fake.leads[1].Email != "ada@example.com" || fake.leads[1].Name != "Ada" || fake.leads[1].Status != "new" {
		t.Fatalf("unexpected lead request %+v", fake.leads[1])
	}

	view := s.View()
	if view.CapturedLeadID == nil || *view.CapturedLeadID != 501 {
		t.Fatalf("lead id not captured: %v", view.CapturedLeadID)
	}
	if view.Current == nil || view.Current.ID != "pay" {
		t.Fatalf("expected auto advance to pay, got %+v", view.Current)
	}
}

func TestLeadCaptureLateResponseKeepsIDButNotPosition(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	gate := make(chan struct{})
	fake := &fakeBackends{leadFn: func(int, services.LeadRequest) (services.LeadResponse, error) {
		close(started)
		<-gate
		return services.LeadResponse{ID: 77}, nil
	}}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	_ = s.SetFields(ctx, baseAnswers())
	jump(t, s, idxLead)

	done := make(chan error, 1)
	go func() { done <- d.Act(ctx, s) }()
	<-started

	if err := d.Act(ctx, s); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending while the call is outstanding, got %v", err)
	}
	if err := s.Previous(ctx); err != nil {
		t.Fatalf("previous: %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("act: %v", err)
	}

	view := s.View()
	if view.Current == nil || view.Current.ID != "about" {
		t.Fatalf("late response must not move the user, got %+v", view.Current)
	}
	if view.CapturedLeadID == nil || *view.CapturedLeadID != 77 {
		t.Fatalf("late lead id must still be captured, got %v", view.CapturedLeadID)
	}
	if st := s.StepStatus("lead"); st == nil || st.Pending {
		t.Fatalf("pending flag must be reset, got %+v", st)
	}
}

func TestLeadCaptureRequiresEmail(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	_ = s.SetField(ctx, "name", "Ada")
	jump(t, s, idxLead)

	err := d.Act(ctx, s)
	if !IsRetryable(err) || !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected missing email error, got %v", err)
	}
	if len(fake.leads) != 0 {
		t.Fatalf("lead service must not be called")
	}
}

func TestSubmissionCreatesApplication(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{assignFn: func(campaignID int64) error {
		if campaignID == 8 {
			return errBackend
		}
		return nil
	}}
	store := progress.NewMemoryStore(nil)
	d := New(WithBackends(fake.backends()), WithKeyGenerator(sequentialKeys()))
	s := newSession(t, clubApp(), d, wizard.WithProgress(progress.NewManager(store)))
	_ = s.SetFields(ctx, baseAnswers())
	jump(t, s, idxSubmit)
	if snap, _ := store.Load(ctx, s.ProgressKey()); snap == nil {
		t.Fatalf("expected autosaved progress before submission")
	}

	if err := d.Act(ctx, s); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(fake.apps) != 1 {
		t.Fatalf("expected one application, got %d", len(fake.apps))
	}
	req := fake.apps[0]
	if req.ItemsID != 42 || req.ApplicationType != "membership" || req.Status != "submitted" || req.Price != 100 || req.Quantity != 1 {
		t.Fatalf("unexpected application request %+v", req)
	}
	if req.IdempotencyKey != "key-1" || req.LeadsID != nil {
		t.Fatalf("unexpected key or lead: %q %v", req.IdempotencyKey, req.LeadsID)
	}
	wantInfo := map[string]any{"name": "Ada", "email": "ada@example.com", "size": "M"}
	if diff := cmp.Diff(wantInfo, req.BookingInfo); diff != "" {
		t.Fatalf("booking info mismatch (-want +got):\n%s", diff)
	}

	if len(fake.leads) != 1 || fake.leads[0].IdempotencyKey != "key-1:lead" {
		t.Fatalf("expected lead auto capture, got %+v", fake.leads)
	}
	assigned := append([]int64(nil), fake.assigned...)
	if len(assigned) != 2 {
		t.Fatalf("every campaign should be attempted, got %v", assigned)
	}

	if snap, _ := store.Load(ctx, s.ProgressKey()); snap != nil {
		t.Fatalf("submission must clear saved progress, got %+v", snap)
	}
	view := s.View()
	if view.Current == nil || view.Current.ID != "done" {
		t.Fatalf("expected confirmation, got %+v", view.Current)
	}
	if view.SubmittedApplicationID == nil || *view.SubmittedApplicationID != 901 {
		t.Fatalf("application id not captured: %v", view.SubmittedApplicationID)
	}
	if view.CapturedLeadID == nil || *view.CapturedLeadID != 501 {
		t.Fatalf("lead id not captured: %v", view.CapturedLeadID)
	}
	if view.FormData["size"] != "M" {
		t.Fatalf("default should be assigned to the form data, got %v", view.FormData["size"])
	}
}

func TestSubmissionFailureIsFatalAndRetryable(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{appFn: func(call int, _ services.ApplicationRequest) (services.ApplicationResponse, error) {
		if call == 1 {
			return services.ApplicationResponse{}, errBackend
		}
		return services.ApplicationResponse{ID: 902}, nil
	}}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	_ = s.SetFields(ctx, baseAnswers())
	_ = s.Update(ctx, func(tx *wizard.Tx) error {
		tx.Navigator().CaptureLead(33)
		tx.Navigator().JumpTo(idxSubmit)
		return nil
	})

	if err := d.Act(ctx, s); !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if st := s.StepStatus("submit"); st == nil || st.Pending || st.Error == "" {
		t.Fatalf("unexpected status after failure %+v", st)
	}
	if got := currentID(s); got != "submit" {
		t.Fatalf("expected to stay on submit, got %q", got)
	}

	if err := d.Act(ctx, s); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if fake.apps[0].IdempotencyKey != fake.apps[1].IdempotencyKey {
		t.Fatalf("retry must reuse the key")
	}
	if fake.apps[1].LeadsID == nil || *fake.apps[1].LeadsID != 33 {
		t.Fatalf("captured lead should be linked, got %v", fake.apps[1].LeadsID)
	}
	if len(fake.leads) != 0 {
		t.Fatalf("no auto capture when a lead exists, got %d", len(fake.leads))
	}
	if got := currentID(s); got != "done" {
		t.Fatalf("expected confirmation, got %q", got)
	}
}

func TestDecisionPreviewFetchesOncePerEntry(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	_ = s.SetFields(ctx, baseAnswers())
	jump(t, s, idxReview)

	for i := 0; i < 2; i++ {
		if err := d.Enter(ctx, s); err != nil {
			t.Fatalf("enter: %v", err)
		}
	}
	if len(fake.previews) != 1 {
		t.Fatalf("expected one preview call, got %d", len(fake.previews))
	}
	st := s.StepStatus("review")
	if st == nil || st.Preview == nil || st.Preview.Decision != "approve" || st.Preview.Estimated {
		t.Fatalf("unexpected preview %+v", st)
	}

	if err := d.Act(ctx, s); err != nil {
		t.Fatalf("proceed: %v", err)
	}
	if got := currentID(s); got != "submit" {
		t.Fatalf("expected submit after proceed, got %q", got)
	}
}

func TestDecisionPreviewFallsBackToEstimate(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{previewFn: func(services.PreviewRequest) (services.DecisionPreview, error) {
		return services.DecisionPreview{}, errBackend
	}}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, clubApp(), d)
	_ = s.SetFields(ctx, baseAnswers())
	jump(t, s, idxReview)

	if err := d.Enter(ctx, s); err != nil {
		t.Fatalf("enter: %v", err)
	}
	st := s.StepStatus("review")
	if st == nil || st.Preview == nil {
		t.Fatalf("expected estimated preview, got %+v", st)
	}
	if !st.Preview.Estimated || st.Preview.Message != "Estimate for Ada" || st.Preview.Amount != 100 {
		t.Fatalf("unexpected estimate %+v", st.Preview)
	}
}

func TestActOnStepsWithoutAction(t *testing.T) {
	ctx := context.Background()
	d := New()
	s := newSession(t, clubApp(), d)
	if err := d.Act(ctx, s); !errors.Is(err, ErrNoAction) {
		t.Fatalf("expected ErrNoAction on a fields step, got %v", err)
	}
	jump(t, s, idxDone)
	if err := d.Act(ctx, s); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal on confirmation, got %v", err)
	}
}

func TestSessionDrivesDispatcherEndToEnd(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBackends{}
	app := clubApp()
	app.Wizard.Steps = []model.StepDefinition{app.Wizard.Steps[0], app.Wizard.Steps[3], app.Wizard.Steps[6]}
	d := New(WithBackends(fake.backends()))
	s := newSession(t, app, d)
	if err := s.Resume(ctx, nil); err != nil {
		t.Fatalf("resume: %v", err)
	}
	_ = s.SetFields(ctx, baseAnswers())
	if err := s.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := fake.emailCount(); got != 2 {
		t.Fatalf("expected emails from the entry action, got %d", got)
	}
	if got := currentID(s); got != "done" {
		t.Fatalf("expected confirmation after the email step, got %q", got)
	}
}
