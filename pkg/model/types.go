package model

import "strings"

// FieldType enumerates the controls the form builder can author.
type FieldType string

const (
	FieldTypeText           FieldType = "text"
	FieldTypeEmail          FieldType = "email"
	FieldTypePhone          FieldType = "phone"
	FieldTypeTextarea       FieldType = "textarea"
	FieldTypeSelect         FieldType = "select"
	FieldTypeCheckbox       FieldType = "checkbox"
	FieldTypeNumber         FieldType = "number"
	FieldTypeDate           FieldType = "date"
	FieldTypeURL            FieldType = "url"
	FieldTypeReadonlyText   FieldType = "readonly_text"
	FieldTypeHTMLContent    FieldType = "html_content"
	FieldTypeTermsAgreement FieldType = "terms_agreement"
	FieldTypeSignature      FieldType = "signature"
	FieldTypeFileUpload     FieldType = "file_upload"
	FieldTypeRadio          FieldType = "radio"
)

// IsStatic reports whether the field only displays content and never holds a
// value (readonly_text, html_content).
func (t FieldType) IsStatic() bool {
	return t == FieldTypeReadonlyText || t == FieldTypeHTMLContent
}

// IsBinary reports whether the field stores a file-like payload (uploads,
// signatures) that must never leave the wizard through lead payloads.
func (t FieldType) IsBinary() bool {
	return t == FieldTypeFileUpload || t == FieldTypeSignature
}

// IsKnown reports whether t is one of the enumerated field types.
func (t FieldType) IsKnown() bool {
	switch t {
	case FieldTypeText, FieldTypeEmail, FieldTypePhone, FieldTypeTextarea,
		FieldTypeSelect, FieldTypeCheckbox, FieldTypeNumber, FieldTypeDate,
		FieldTypeURL, FieldTypeReadonlyText, FieldTypeHTMLContent,
		FieldTypeTermsAgreement, FieldTypeSignature, FieldTypeFileUpload,
		FieldTypeRadio:
		return true
	default:
		return false
	}
}

// ConditionOperator enumerates the comparisons a Condition can perform.
type ConditionOperator string

const (
	OperatorEquals    ConditionOperator = "equals"
	OperatorNotEquals ConditionOperator = "not_equals"
	OperatorContains  ConditionOperator = "contains"
	OperatorNotEmpty  ConditionOperator = "not_empty"
	OperatorIsEmpty   ConditionOperator = "is_empty"
)

// ConditionLogic controls how sibling conditions combine. The zero value
// behaves as LogicAll.
type ConditionLogic string

const (
	LogicAll ConditionLogic = "all"
	LogicAny ConditionLogic = "any"
)

// Condition is a predicate over a single field's current value. A condition
// without FieldName is satisfied.
type Condition struct {
	FieldName string            `json:"fieldName" yaml:"fieldName"`
	Operator  ConditionOperator `json:"operator" yaml:"operator"`
	Value     string            `json:"value,omitempty" yaml:"value,omitempty"`
}

// Validation holds the optional textual and numeric bounds of a field. Nil
// pointers mean "no constraint".
type Validation struct {
	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// FileConfig restricts file_upload fields.
type FileConfig struct {
	AcceptedTypes []string `json:"acceptedTypes,omitempty" yaml:"acceptedTypes,omitempty"`
	MaxSize       int64    `json:"maxSize,omitempty" yaml:"maxSize,omitempty"`
}

// Option is a choice for select and radio fields. Price feeds the pricing
// calculator when the option is selected.
type Option struct {
	Label string  `json:"label" yaml:"label"`
	Value string  `json:"value" yaml:"value"`
	Price float64 `json:"price,omitempty" yaml:"price,omitempty"`
}

// FieldDefinition describes one authored control. StepID is empty for
// non-wizard configurations.
type FieldDefinition struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Label          string         `json:"label,omitempty" yaml:"label,omitempty"`
	Type           FieldType      `json:"type" yaml:"type"`
	Required       bool           `json:"required,omitempty" yaml:"required,omitempty"`
	StepID         string         `json:"stepId,omitempty" yaml:"stepId,omitempty"`
	Content        string         `json:"content,omitempty" yaml:"content,omitempty"`
	CheckboxLabel  string         `json:"checkboxLabel,omitempty" yaml:"checkboxLabel,omitempty"`
	Placeholder    string         `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	DefaultValue   string         `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Disabled       bool           `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Price          float64        `json:"price,omitempty" yaml:"price,omitempty"`
	Options        []Option       `json:"options,omitempty" yaml:"options,omitempty"`
	Validation     Validation     `json:"validation,omitempty" yaml:"validation,omitempty"`
	Conditions     []Condition    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	ConditionLogic ConditionLogic `json:"conditionLogic,omitempty" yaml:"conditionLogic,omitempty"`
	FileConfig     *FileConfig    `json:"fileConfig,omitempty" yaml:"fileConfig,omitempty"`
}

// DisplayLabel returns the label, falling back to the field name.
func (f FieldDefinition) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return f.Name
}

// Focusable reports whether the rendered control can receive focus.
func (f FieldDefinition) Focusable() bool {
	return !f.Type.IsStatic() && !f.Disabled
}

// StepType enumerates the step behaviors the dispatcher understands.
type StepType string

const (
	StepTypeFields          StepType = "fields"
	StepTypeStripeCheckout  StepType = "stripe_checkout"
	StepTypeLeadCapture     StepType = "lead_capture"
	StepTypeSubmission      StepType = "submission"
	StepTypeSendEmail       StepType = "send_email"
	StepTypeConfirmation    StepType = "confirmation"
	StepTypeDecisionPreview StepType = "decision_preview"
)

// IsKnown reports whether t is one of the enumerated step types.
func (t StepType) IsKnown() bool {
	switch t {
	case StepTypeFields, StepTypeStripeCheckout, StepTypeLeadCapture,
		StepTypeSubmission, StepTypeSendEmail, StepTypeConfirmation,
		StepTypeDecisionPreview:
		return true
	default:
		return false
	}
}

// StripeConfig configures a stripe_checkout step.
type StripeConfig struct {
	ProductName         string `json:"productName,omitempty" yaml:"productName,omitempty"`
	Description         string `json:"description,omitempty" yaml:"description,omitempty"`
	Mode                string `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowPartialPayment bool   `json:"allowPartialPayment,omitempty" yaml:"allowPartialPayment,omitempty"`
}

// LeadConfig configures a lead_capture step. Fields lists the field names that
// may appear in the lead payload.
type LeadConfig struct {
	Fields     []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	EmailField string   `json:"emailField,omitempty" yaml:"emailField,omitempty"`
	NameField  string   `json:"nameField,omitempty" yaml:"nameField,omitempty"`
	Status     string   `json:"status,omitempty" yaml:"status,omitempty"`
}

// EmailConfig configures a send_email step. To, Subject and Body accept
// {{fieldName}} placeholders; To may list several recipients separated by
// commas, semicolons or whitespace.
type EmailConfig struct {
	From          string `json:"from,omitempty" yaml:"from,omitempty"`
	To            string `json:"to" yaml:"to"`
	Subject       string `json:"subject" yaml:"subject"`
	Body          string `json:"body" yaml:"body"`
	Layout        string `json:"layout,omitempty" yaml:"layout,omitempty"`
	MessageStream string `json:"messageStream,omitempty" yaml:"messageStream,omitempty"`
}

// ConfirmationConfig configures the terminal confirmation step.
type ConfirmationConfig struct {
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// DecisionPreviewConfig configures a decision_preview step.
type DecisionPreviewConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	FallbackMessage string `json:"fallbackMessage,omitempty" yaml:"fallbackMessage,omitempty"`
}

// StepDefinition is one unit of the wizard. Steps are totally ordered by
// Sequence; exactly one of the type-specific configs is meaningful.
type StepDefinition struct {
	ID             string         `json:"id" yaml:"id"`
	Title          string         `json:"title,omitempty" yaml:"title,omitempty"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Type           StepType       `json:"type" yaml:"type"`
	Sequence       int            `json:"sequence" yaml:"sequence"`
	Conditions     []Condition    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	ConditionLogic ConditionLogic `json:"conditionLogic,omitempty" yaml:"conditionLogic,omitempty"`

	Stripe          *StripeConfig          `json:"stripeConfig,omitempty" yaml:"stripeConfig,omitempty"`
	Lead            *LeadConfig            `json:"leadConfig,omitempty" yaml:"leadConfig,omitempty"`
	Email           *EmailConfig           `json:"emailConfig,omitempty" yaml:"emailConfig,omitempty"`
	Confirmation    *ConfirmationConfig    `json:"confirmationConfig,omitempty" yaml:"confirmationConfig,omitempty"`
	DecisionPreview *DecisionPreviewConfig `json:"decisionPreviewConfig,omitempty" yaml:"decisionPreviewConfig,omitempty"`
}

// WizardConfiguration is the step layout. When Enabled is false the engine
// renders every visible field as one single-step form.
type WizardConfiguration struct {
	Enabled             bool             `json:"enabled" yaml:"enabled"`
	Steps               []StepDefinition `json:"steps,omitempty" yaml:"steps,omitempty"`
	PlaceholderFallback string           `json:"placeholderFallback,omitempty" yaml:"placeholderFallback,omitempty"`
}

// PartialPaymentConfig describes a deposit collected instead of the total.
type PartialPaymentConfig struct {
	// Type is "fixed" (Amount in currency units) or "percentage" (Amount in
	// percent of the total).
	Type   string  `json:"type" yaml:"type"`
	Amount float64 `json:"amount" yaml:"amount"`
	Label  string  `json:"label,omitempty" yaml:"label,omitempty"`
}

// Partial payment types.
const (
	PartialPaymentFixed      = "fixed"
	PartialPaymentPercentage = "percentage"
)

// PricingConfig feeds the pricing calculator.
type PricingConfig struct {
	BasePrice       float64               `json:"basePrice,omitempty" yaml:"basePrice,omitempty"`
	BaseLabel       string                `json:"baseLabel,omitempty" yaml:"baseLabel,omitempty"`
	Currency        string                `json:"currency,omitempty" yaml:"currency,omitempty"`
	QuantityField   string                `json:"quantityField,omitempty" yaml:"quantityField,omitempty"`
	AmountPaidField string                `json:"amountPaidField,omitempty" yaml:"amountPaidField,omitempty"`
	PartialPayment  *PartialPaymentConfig `json:"partialPayment,omitempty" yaml:"partialPayment,omitempty"`
}

// Application bundles everything the form builder publishes for one vendor or
// member application: identity, field list, wizard layout, pricing and the
// campaigns captured leads are assigned to.
type Application struct {
	ID              string              `json:"id" yaml:"id"`
	Slug            string              `json:"slug,omitempty" yaml:"slug,omitempty"`
	ItemID          int64               `json:"itemId" yaml:"itemId"`
	ApplicationType string              `json:"applicationType,omitempty" yaml:"applicationType,omitempty"`
	Status          string              `json:"status,omitempty" yaml:"status,omitempty"`
	Fields          []FieldDefinition   `json:"fields" yaml:"fields"`
	Wizard          WizardConfiguration `json:"wizardConfig" yaml:"wizardConfig"`
	Pricing         PricingConfig       `json:"pricing,omitempty" yaml:"pricing,omitempty"`
	Campaigns       []int64             `json:"campaigns,omitempty" yaml:"campaigns,omitempty"`
}

// Field looks up a field definition by name.
func (a *Application) Field(name string) (FieldDefinition, bool) {
	if a == nil {
		return FieldDefinition{}, false
	}
	for _, field := range a.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldDefinition{}, false
}
