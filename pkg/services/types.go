// Package services declares the remote backends the wizard talks to and an
// HTTP client that implements all of them against a JSON API.
package services

import (
	"context"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// LeadRequest creates a lead from the captured subset of form data.
type LeadRequest struct {
	Payload map[string]any `json:"lead_payload"`
	Email   string         `json:"email"`
	Name    string         `json:"name,omitempty"`
	Status  string         `json:"status"`

	// IdempotencyKey is sent as a header so retries of the same step entry
	// collapse server side.
	IdempotencyKey string `json:"-"`
}

// LeadResponse carries the id of the created lead.
type LeadResponse struct {
	ID int64 `json:"id"`
}

// ApplicationRequest creates the durable application record.
type ApplicationRequest struct {
	ItemsID         int64          `json:"items_id"`
	BookingInfo     map[string]any `json:"booking_info"`
	ApplicationType string         `json:"application_type"`
	Status          string         `json:"status"`
	Price           float64        `json:"price"`
	Quantity        int            `json:"quantity"`
	LeadsID         *int64         `json:"leads_id,omitempty"`

	IdempotencyKey string `json:"-"`
}

// ApplicationResponse carries the id of the created application.
type ApplicationResponse struct {
	ID int64 `json:"id"`
}

// LineItem is one charge on the checkout page. UnitAmount is in cents.
type LineItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UnitAmount  int64  `json:"unit_amount"`
	Quantity    int    `json:"quantity"`
	Currency    string `json:"currency,omitempty"`
}

// CheckoutRequest opens a hosted payment session.
type CheckoutRequest struct {
	LineItems  []LineItem `json:"line_items"`
	SuccessURL string     `json:"success_url"`
	CancelURL  string     `json:"cancel_url"`
	UserID     string     `json:"user_id,omitempty"`
	Mode       string     `json:"mode"`
	BookingID  *int64     `json:"booking_id,omitempty"`
}

// CheckoutResponse points at the provider hosted page.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// EmailMessage is one outbound message to a single recipient.
type EmailMessage struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	HTMLBody      string `json:"htmlBody"`
	MessageStream string `json:"messageStream,omitempty"`
}

// PreviewRequest asks the decision endpoint to evaluate the current answers.
type PreviewRequest struct {
	FormData      model.FormData `json:"formData"`
	ApplicationID *int64         `json:"applicationId,omitempty"`
}

// DecisionPreview is the decision endpoint response. Estimated is set when the
// preview was produced locally because the endpoint failed.
type DecisionPreview struct {
	Decision  string         `json:"decision,omitempty"`
	Message   string         `json:"message,omitempty"`
	Amount    float64        `json:"amount,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Estimated bool           `json:"estimated,omitempty"`
}

// LeadService creates leads.
type LeadService interface {
	CreateLead(ctx context.Context, req LeadRequest) (LeadResponse, error)
}

// ApplicationService creates application records.
type ApplicationService interface {
	CreateApplication(ctx context.Context, req ApplicationRequest) (ApplicationResponse, error)
}

// PaymentService opens checkout sessions.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error)
}

// EmailService delivers one message.
type EmailService interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// DecisionService fetches decision previews from a per-step endpoint.
type DecisionService interface {
	GetPreview(ctx context.Context, endpoint string, req PreviewRequest) (DecisionPreview, error)
}

// CampaignService assigns a lead to a campaign.
type CampaignService interface {
	Assign(ctx context.Context, campaignID, leadID int64) error
}

// Backends groups every service the dispatcher needs. Nil members disable the
// corresponding behavior.
type Backends struct {
	Leads        LeadService
	Applications ApplicationService
	Payments     PaymentService
	Email        EmailService
	Decisions    DecisionService
	Campaigns    CampaignService
}
