// Package pricing computes the charge breakdown of an application from its
// pricing configuration and the current form data. Calculations are pure and
// rounded to cents.
package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Item is one priced line of the breakdown.
type Item struct {
	Label     string  `json:"label"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// PartialPayment describes the deposit applied to a breakdown.
type PartialPayment struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	Label  string  `json:"label,omitempty"`
}

// Breakdown is the result of a calculation.
type Breakdown struct {
	BasePrice        float64         `json:"basePrice"`
	Quantity         int             `json:"quantity"`
	Items            []Item          `json:"items"`
	Total            float64         `json:"total"`
	AmountPaid       float64         `json:"amountPaid,omitempty"`
	AmountDue        float64         `json:"amountDue"`
	BalanceRemaining float64         `json:"balanceRemaining"`
	PartialPayment   *PartialPayment `json:"partialPayment,omitempty"`
}

// Payable reports whether anything is due now.
func (b Breakdown) Payable() bool {
	return b.AmountDue > 0
}

// Engine is the pricing contract consumed by the wizard.
type Engine interface {
	CalculateBreakdown(cfg model.PricingConfig, data model.FormData, fields []model.FieldDefinition, partial bool) Breakdown
}

// EngineFunc adapts a function into an Engine.
type EngineFunc func(cfg model.PricingConfig, data model.FormData, fields []model.FieldDefinition, partial bool) Breakdown

// CalculateBreakdown delegates to the underlying function.
func (fn EngineFunc) CalculateBreakdown(cfg model.PricingConfig, data model.FormData, fields []model.FieldDefinition, partial bool) Breakdown {
	return fn(cfg, data, fields, partial)
}

// Calculator is the default Engine.
//
// The base price is multiplied by the quantity field (default 1). Checked
// checkbox or terms fields with a Price add one line each; select and radio
// fields add the price of the chosen option; number fields with a Price add
// Price times the entered amount. A prior payment recorded in
// AmountPaidField reduces what is due. When partial is requested and a
// partial payment is configured, the deposit (fixed or percentage of the
// total) is due now, capped at the remaining amount.
type Calculator struct{}

var _ Engine = Calculator{}

// CalculateBreakdown implements Engine.
func (Calculator) CalculateBreakdown(cfg model.PricingConfig, data model.FormData, fields []model.FieldDefinition, partial bool) Breakdown {
	quantity := 1
	if name := strings.TrimSpace(cfg.QuantityField); name != "" {
		if n, ok := parseInt(data.String(name)); ok && n > 0 {
			quantity = n
		}
	}

	out := Breakdown{
		BasePrice: round(cfg.BasePrice),
		Quantity:  quantity,
		Items:     []Item{},
	}
	total := cfg.BasePrice * float64(quantity)

	for _, field := range fields {
		item, ok := fieldItem(field, data)
		if !ok {
			continue
		}
		out.Items = append(out.Items, item)
		total += item.Subtotal
	}

	out.Total = round(total)
	if name := strings.TrimSpace(cfg.AmountPaidField); name != "" {
		if paid, ok := parseFloat(data.String(name)); ok && paid > 0 {
			out.AmountPaid = round(paid)
		}
	}

	remaining := math.Max(out.Total-out.AmountPaid, 0)
	out.AmountDue = round(remaining)

	if partial && cfg.PartialPayment != nil && remaining > 0 {
		deposit := depositFor(*cfg.PartialPayment, out.Total)
		if deposit > 0 && deposit < remaining {
			out.AmountDue = round(deposit)
			out.BalanceRemaining = round(remaining - deposit)
			out.PartialPayment = &PartialPayment{
				Type:   cfg.PartialPayment.Type,
				Amount: cfg.PartialPayment.Amount,
				Label:  cfg.PartialPayment.Label,
			}
		}
	}
	return out
}

func fieldItem(field model.FieldDefinition, data model.FormData) (Item, bool) {
	switch field.Type {
	case model.FieldTypeCheckbox, model.FieldTypeTermsAgreement:
		if field.Price == 0 {
			return Item{}, false
		}
		if checked, _ := data[field.Name].(bool); !checked {
			return Item{}, false
		}
		return newItem(field.DisplayLabel(), field.Price, 1), true
	case model.FieldTypeSelect, model.FieldTypeRadio:
		selected := data.String(field.Name)
		for _, opt := range field.Options {
			if opt.Value == selected && opt.Price != 0 {
				label := field.DisplayLabel() + ": " + optionLabel(opt)
				return newItem(label, opt.Price, 1), true
			}
		}
		return Item{}, false
	case model.FieldTypeNumber:
		if field.Price == 0 {
			return Item{}, false
		}
		n, ok := parseInt(data.String(field.Name))
		if !ok || n <= 0 {
			return Item{}, false
		}
		return newItem(field.DisplayLabel(), field.Price, n), true
	default:
		return Item{}, false
	}
}

func newItem(label string, unit float64, quantity int) Item {
	return Item{
		Label:     label,
		UnitPrice: round(unit),
		Quantity:  quantity,
		Subtotal:  round(unit * float64(quantity)),
	}
}

func optionLabel(opt model.Option) string {
	if strings.TrimSpace(opt.Label) != "" {
		return opt.Label
	}
	return opt.Value
}

func depositFor(cfg model.PartialPaymentConfig, total float64) float64 {
	switch cfg.Type {
	case model.PartialPaymentPercentage:
		return total * cfg.Amount / 100
	case model.PartialPaymentFixed:
		return cfg.Amount
	default:
		return 0
	}
}

func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

func parseFloat(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return f, err == nil
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cents converts a currency amount to the integer minor unit used by payment
// providers.
func Cents(v float64) int64 {
	return int64(math.Round(v * 100))
}
