package terminal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/progress"
	"github.com/goliatone/go-formwizard/pkg/services"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	confirm      []bool
	textAreas    []string
	infoMessages []string
	inputPos     int
	selectPos    int
	confirmPos   int
	textPos      int
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	if cfg.Validator != nil {
		if err := cfg.Validator(val); err != nil {
			return "", err
		}
	}
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, _ SelectConfig) (int, error) {
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, _ TextAreaConfig) (string, error) {
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no textarea scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func (s *stubDriver) saw(substr string) bool {
	for _, msg := range s.infoMessages {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

type stubPayments struct {
	requests []services.CheckoutRequest
}

func (p *stubPayments) CreateCheckoutSession(_ context.Context, req services.CheckoutRequest) (services.CheckoutResponse, error) {
	p.requests = append(p.requests, req)
	return services.CheckoutResponse{URL: "https://pay.example.com/c/1"}, nil
}

func signupApp() *model.Application {
	return &model.Application{
		ID: "signup",
		Fields: []model.FieldDefinition{
			{Name: "name", Label: "Name", Type: model.FieldTypeText, Required: true, StepID: "about"},
			{Name: "plan", Label: "Plan", Type: model.FieldTypeSelect, StepID: "about", Options: []model.Option{
				{Label: "Basic", Value: "basic"},
				{Label: "Pro", Value: "pro"},
			}},
			{Name: "agree", Label: "Terms", Type: model.FieldTypeTermsAgreement, Required: true, StepID: "about"},
		},
		Wizard: model.WizardConfiguration{
			Enabled: true,
			Steps: []model.StepDefinition{
				{ID: "about", Title: "About you", Type: model.StepTypeFields, Sequence: 1},
				{ID: "done", Type: model.StepTypeConfirmation, Sequence: 2, Confirmation: &model.ConfirmationConfig{
					Title: "Thanks {{name}}",
				}},
			},
		},
	}
}

func paidApp() *model.Application {
	return &model.Application{
		ID: "paid",
		Fields: []model.FieldDefinition{
			{Name: "name", Label: "Name", Type: model.FieldTypeText, Required: true, StepID: "about"},
		},
		Wizard: model.WizardConfiguration{
			Enabled: true,
			Steps: []model.StepDefinition{
				{ID: "about", Type: model.StepTypeFields, Sequence: 1},
				{ID: "pay", Type: model.StepTypeStripeCheckout, Sequence: 2},
				{ID: "done", Type: model.StepTypeConfirmation, Sequence: 3, Confirmation: &model.ConfirmationConfig{
					Title: "Paid, {{name}}",
				}},
			},
		},
		Pricing: model.PricingConfig{BasePrice: 50, Currency: "usd"},
	}
}

func newSession(t *testing.T, app *model.Application, d wizard.Dispatcher, options ...wizard.SessionOption) *wizard.Session {
	t.Helper()
	s, err := wizard.NewSession(app, d, options...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func TestRun_FieldsToConfirmation(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"Ada"},
		selectIdx: []int{1, 0},
		confirm:   []bool{true},
	}
	s := newSession(t, signupApp(), steps.New())

	if err := New(WithPromptDriver(driver)).Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}

	view := s.View()
	if !view.Terminal {
		t.Fatalf("expected confirmation, at %+v", view.Current)
	}
	if view.FormData["plan"] != "pro" || view.FormData["agree"] != true {
		t.Fatalf("answers not recorded: %#v", view.FormData)
	}
	if !driver.saw("Thanks Ada") {
		t.Fatalf("confirmation not printed: %v", driver.infoMessages)
	}
}

func TestRun_ValidationFailureReprompts(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"", "Ada"},
		selectIdx: []int{0, 0, 0, 0},
		confirm:   []bool{true, true},
	}
	s := newSession(t, signupApp(), steps.New())

	if err := New(WithPromptDriver(driver)).Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if driver.inputPos != 2 {
		t.Fatalf("expected the name prompt twice, got %d", driver.inputPos)
	}
	if !driver.saw("Please fix the highlighted fields.") {
		t.Fatalf("validation notification not shown: %v", driver.infoMessages)
	}
}

func TestRun_QuitKeepsProgress(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"Ada"},
		selectIdx: []int{0, 2},
		confirm:   []bool{false},
	}
	store := progress.NewMemoryStore(progress.JSONCodec[progress.Snapshot]{})
	s := newSession(t, signupApp(), steps.New(), wizard.WithProgress(progress.NewManager(store)))

	err := New(WithPromptDriver(driver)).Run(context.Background(), s)
	if !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}

	snap, err := store.Load(context.Background(), s.ProgressKey())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap == nil || snap.FormData["name"] != "Ada" {
		t.Fatalf("progress not autosaved: %#v", snap)
	}
}

func TestRun_CheckoutReturn(t *testing.T) {
	payments := &stubPayments{}
	driver := &stubDriver{
		inputs:    []string{"Ada", "https://app.example.com/back?payment=success&step=1"},
		selectIdx: []int{0, 0},
	}
	d := steps.New(
		steps.WithBackends(services.Backends{Payments: payments}),
		steps.WithReturnURL("https://app.example.com/back"),
	)
	s := newSession(t, paidApp(), d, wizard.WithStash(progress.NewMemoryStash(time.Hour)))

	if err := New(WithPromptDriver(driver)).Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(payments.requests) != 1 {
		t.Fatalf("expected one checkout session, got %d", len(payments.requests))
	}
	if !driver.saw("https://pay.example.com/c/1") {
		t.Fatalf("checkout URL not printed: %v", driver.infoMessages)
	}
	if !driver.saw("Due now  50.00") {
		t.Fatalf("breakdown not printed: %v", driver.infoMessages)
	}
	if !driver.saw("Paid, Ada") {
		t.Fatalf("confirmation not printed: %v", driver.infoMessages)
	}
	if st := s.StepStatus("pay"); st == nil || !st.Completed {
		t.Fatalf("pay step not completed: %+v", st)
	}
}

func TestRun_CheckoutCancelStaysOnStep(t *testing.T) {
	payments := &stubPayments{}
	driver := &stubDriver{
		inputs:    []string{"Ada", ""},
		selectIdx: []int{0, 0},
	}
	d := steps.New(steps.WithBackends(services.Backends{Payments: payments}))
	s := newSession(t, paidApp(), d, wizard.WithStash(progress.NewMemoryStash(time.Hour)))

	err := New(WithPromptDriver(driver), WithMaxRounds(5)).Run(context.Background(), s)
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("expected ErrStalled once the script runs out, got %v", err)
	}
	view := s.View()
	if view.Current == nil || view.Current.ID != "pay" {
		t.Fatalf("expected to stay on pay, got %+v", view.Current)
	}
	if !driver.saw("Payment was cancelled.") {
		t.Fatalf("cancel notification not shown: %v", driver.infoMessages)
	}
}

func TestRun_SessionRequired(t *testing.T) {
	r := New(WithPromptDriver(&stubDriver{}))
	if err := r.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil session")
	}
}

func TestNextField_FocusFirst(t *testing.T) {
	view := wizard.View{
		Focus: "b",
		Fields: []wizard.FieldView{
			{Field: model.FieldDefinition{Name: "a"}},
			{Field: model.FieldDefinition{Name: "b"}},
		},
	}
	asked := map[string]bool{}
	first, _ := nextField(view, asked)
	asked[first.Field.Name] = true
	second, _ := nextField(view, asked)
	asked[second.Field.Name] = true
	if first.Field.Name != "b" || second.Field.Name != "a" {
		t.Fatalf("order = %s, %s", first.Field.Name, second.Field.Name)
	}
	if _, ok := nextField(view, asked); ok {
		t.Fatalf("expected no field left")
	}
}

func TestDepositAllowed(t *testing.T) {
	app := paidApp()
	if depositAllowed(app, "pay") {
		t.Fatalf("deposit offered without partial payment config")
	}
	app.Pricing.PartialPayment = &model.PartialPaymentConfig{Type: model.PartialPaymentPercentage, Amount: 25}
	if depositAllowed(app, "pay") {
		t.Fatalf("deposit offered although the step does not allow it")
	}
	app.Wizard.Steps[1].Stripe = &model.StripeConfig{AllowPartialPayment: true}
	if !depositAllowed(app, "pay") {
		t.Fatalf("deposit not offered")
	}
	if depositAllowed(app, "about") {
		t.Fatalf("deposit offered on a fields step")
	}
}
