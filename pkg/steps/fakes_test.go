package steps

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/services"
)

var errBackend = errors.New("backend unavailable")

type fakeBackends struct {
	mu sync.Mutex

	leads     []services.LeadRequest
	apps      []services.ApplicationRequest
	checkouts []services.CheckoutRequest
	emails    []services.EmailMessage
	previews  []services.PreviewRequest
	assigned  []int64

	leadFn     func(call int, req services.LeadRequest) (services.LeadResponse, error)
	appFn      func(call int, req services.ApplicationRequest) (services.ApplicationResponse, error)
	checkoutFn func(req services.CheckoutRequest) (services.CheckoutResponse, error)
	emailFn    func(msg services.EmailMessage) error
	previewFn  func(req services.PreviewRequest) (services.DecisionPreview, error)
	assignFn   func(campaignID int64) error
}

func (f *fakeBackends) backends() services.Backends {
	return services.Backends{
		Leads:        f,
		Applications: f,
		Payments:     f,
		Email:        f,
		Decisions:    f,
		Campaigns:    f,
	}
}

func (f *fakeBackends) CreateLead(_ context.Context, req services.LeadRequest) (services.LeadResponse, error) {
	f.mu.Lock()
	f.leads = append(f.leads, req)
	call := len(f.leads)
	fn := f.leadFn
	f.mu.Unlock()
	if fn != nil {
		return fn(call, req)
	}
	return services.LeadResponse{ID: 501}, nil
}

func (f *fakeBackends) CreateApplication(_ context.Context, req services.ApplicationRequest) (services.ApplicationResponse, error) {
	f.mu.Lock()
	f.apps = append(f.apps, req)
	call := len(f.apps)
	fn := f.appFn
	f.mu.Unlock()
	if fn != nil {
		return fn(call, req)
	}
	return services.ApplicationResponse{ID: 901}, nil
}

func (f *fakeBackends) CreateCheckoutSession(_ context.Context, req services.CheckoutRequest) (services.CheckoutResponse, error) {
	f.mu.Lock()
	f.checkouts = append(f.checkouts, req)
	fn := f.checkoutFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return services.CheckoutResponse{URL: "https://pay.example.com/c/1"}, nil
}

func (f *fakeBackends) Send(_ context.Context, msg services.EmailMessage) error {
	f.mu.Lock()
	f.emails = append(f.emails, msg)
	fn := f.emailFn
	f.mu.Unlock()
	if fn != nil {
		return fn(msg)
	}
	return nil
}

func (f *fakeBackends) GetPreview(_ context.Context, _ string, req services.PreviewRequest) (services.DecisionPreview, error) {
	f.mu.Lock()
	f.previews = append(f.previews, req)
	fn := f.previewFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return services.DecisionPreview{Decision: "approve", Message: "Approved"}, nil
}

func (f *fakeBackends) Assign(_ context.Context, campaignID, _ int64) error {
	f.mu.Lock()
	f.assigned = append(f.assigned, campaignID)
	fn := f.assignFn
	f.mu.Unlock()
	if fn != nil {
		return fn(campaignID)
	}
	return nil
}

func (f *fakeBackends) emailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emails)
}

// Step indexes of clubApp when every step is visible.
const (
	idxAbout = iota
	idxLead
	idxPay
	idxNotify
	idxReview
	idxSubmit
	idxDone
)

func clubApp() *model.Application {
	return &model.Application{
		ID:              "club",
		Slug:            "summer-club",
		ItemID:          42,
		ApplicationType: "membership",
		Campaigns:       []int64{7, 8},
		Fields: []model.FieldDefinition{
			{Name: "name", Label: "Name", Type: model.FieldTypeText, StepID: "about", Required: true},
			{Name: "email", Label: "Email", Type: model.FieldTypeEmail, StepID: "about", Required: true},
			{Name: "phone", Label: "Phone", Type: model.FieldTypePhone, StepID: "about"},
			{Name: "cv", Label: "CV link", Type: model.FieldTypeURL, StepID: "about"},
			{Name: "signature", Label: "Signature", Type: model.FieldTypeSignature, StepID: "about"},
			{Name: "size", Label: "Shirt size", Type: model.FieldTypeSelect, StepID: "about", DefaultValue: "M"},
			{Name: "paid", Label: "Paid", Type: model.FieldTypeNumber, StepID: "about"},
		},
		Pricing: model.PricingConfig{
			BasePrice:       100,
			BaseLabel:       "Membership",
			Currency:        "USD",
			AmountPaidField: "paid",
			PartialPayment:  &model.PartialPaymentConfig{Type: model.PartialPaymentPercentage, Amount: 25, Label: "Deposit"},
		},
		Wizard: model.WizardConfiguration{
			Enabled:             true,
			PlaceholderFallback: "friend",
			Steps: []model.StepDefinition{
				{ID: "about", Type: model.StepTypeFields, Sequence: 1},
				{ID: "lead", Type: model.StepTypeLeadCapture, Sequence: 2, Lead: &model.LeadConfig{
					Fields: []string{"name", "email", "phone", "cv", "signature"},
				}},
				{ID: "pay", Type: model.StepTypeStripeCheckout, Sequence: 3, Stripe: &model.StripeConfig{
					ProductName: "Summer club", AllowPartialPayment: true,
				}},
				{ID: "notify", Type: model.StepTypeSendEmail, Sequence: 4, Email: &model.EmailConfig{
					To:      "{{email}}, office@example.com; {{email}}",
					Subject: "Welcome {{name}}",
					Body:    "<p>Hi {{name}}</p><script>alert(1)</script>",
				}},
				{ID: "review", Type: model.StepTypeDecisionPreview, Sequence: 5, DecisionPreview: &model.DecisionPreviewConfig{
					Endpoint: "/decisions/preview", FallbackMessage: "Estimate for {{name}}",
				}},
				{ID: "submit", Type: model.StepTypeSubmission, Sequence: 6},
				{ID: "done", Type: model.StepTypeConfirmation, Sequence: 7},
			},
		},
	}
}
