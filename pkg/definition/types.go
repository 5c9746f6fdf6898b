package definition

import "encoding/json"

// ComponentType enumerates the supported field and content component kinds.
type ComponentType string

const (
	TypeText          ComponentType = "TextField"
	TypeMultilineText ComponentType = "MultilineTextField"
	TypeNumber        ComponentType = "NumberField"
	TypeEmail         ComponentType = "EmailAddressField"
	TypeTelephone     ComponentType = "TelephoneNumberField"
	TypeDate          ComponentType = "DateField"
	TypeDateParts     ComponentType = "DatePartsField"
	TypeMonthYear     ComponentType = "MonthYearField"
	TypeYesNo         ComponentType = "YesNoField"
	TypeSelect        ComponentType = "SelectField"
	TypeRadios        ComponentType = "RadiosField"
	TypeCheckboxes    ComponentType = "CheckboxesField"
	TypeAutocomplete  ComponentType = "AutocompleteField"
	TypeFileUpload    ComponentType = "FileUploadField"
	TypeHTML          ComponentType = "Html"
	TypePara          ComponentType = "Para"
	TypeInsetText     ComponentType = "InsetText"
)

// FormComponentTypes lists the component kinds that collect an answer. Content
// components (Html, Para, InsetText) render but contribute no schema keys.
var FormComponentTypes = map[ComponentType]bool{
	TypeText:          true,
	TypeMultilineText: true,
	TypeNumber:        true,
	TypeEmail:         true,
	TypeTelephone:     true,
	TypeDate:          true,
	TypeDateParts:     true,
	TypeMonthYear:     true,
	TypeYesNo:         true,
	TypeSelect:        true,
	TypeRadios:        true,
	TypeCheckboxes:    true,
	TypeAutocomplete:  true,
	TypeFileUpload:    true,
}

// ListValueType constrains the value type shared by every item in a list.
type ListValueType string

const (
	ListTypeString  ListValueType = "string"
	ListTypeNumber  ListValueType = "number"
	ListTypeBoolean ListValueType = "boolean"
)

// Definition is the whole declarative form document. It is validated once at
// load and treated as immutable afterwards.
type Definition struct {
	Name         string        `json:"name,omitempty"`
	StartPage    string        `json:"startPage"`
	Pages        []Page        `json:"pages"`
	Lists        []List        `json:"lists"`
	Sections     []Section     `json:"sections"`
	Conditions   []Condition   `json:"conditions"`
	Outputs      []Output      `json:"outputs,omitempty"`
	Declaration  string        `json:"declaration,omitempty"`
	SkipSummary  bool          `json:"skipSummary,omitempty"`
	Feedback     *Feedback     `json:"feedback,omitempty"`
	PhaseBanner  *PhaseBanner  `json:"phaseBanner,omitempty"`
	FeeOptions   *FeeOptions   `json:"feeOptions,omitempty"`
	Fees         []Fee         `json:"fees,omitempty"`
	SpecialPages *SpecialPages `json:"specialPages,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Page describes one wizard step.
type Page struct {
	Path        string      `json:"path"`
	Title       string      `json:"title"`
	Section     string      `json:"section,omitempty"`
	Controller  string      `json:"controller,omitempty"`
	Components  []Component `json:"components"`
	Next        []Link      `json:"next,omitempty"`
	RepeatField string      `json:"repeatField,omitempty"`
}

// Link is a conditional edge to another page. Edges are evaluated in declared
// order; the first edge whose condition holds (or which has none) wins.
type Link struct {
	Path      string `json:"path"`
	Condition string `json:"condition,omitempty"`
}

// Component describes one field or content block on a page.
type Component struct {
	Type    ComponentType    `json:"type"`
	Name    string           `json:"name,omitempty"`
	Title   string           `json:"title,omitempty"`
	Hint    string           `json:"hint,omitempty"`
	List    string           `json:"list,omitempty"`
	Content string           `json:"content,omitempty"`
	Options ComponentOptions `json:"options"`
	Schema  ComponentSchema  `json:"schema"`
}

// IsFormComponent reports whether the component collects an answer.
func (c Component) IsFormComponent() bool {
	return FormComponentTypes[c.Type]
}

// ComponentOptions carries presentation and validation switches. Required
// defaults to true when unset, matching the source document convention.
type ComponentOptions struct {
	Required                *bool  `json:"required,omitempty"`
	OptionalText            bool   `json:"optionalText,omitempty"`
	Classes                 string `json:"classes,omitempty"`
	Prefix                  string `json:"prefix,omitempty"`
	Suffix                  string `json:"suffix,omitempty"`
	CustomValidationMessage string `json:"customValidationMessage,omitempty"`
	ExposeToContext         bool   `json:"exposeToContext,omitempty"`
	MaxDaysInPast           int    `json:"maxDaysInPast,omitempty"`
	MaxDaysInFuture         int    `json:"maxDaysInFuture,omitempty"`
	Bold                    bool   `json:"bold,omitempty"`
	MultipleFilesAllowed    bool   `json:"multipleFilesAllowed,omitempty"`
}

// IsRequired resolves the optional Required flag to its default.
func (o ComponentOptions) IsRequired() bool {
	return o.Required == nil || *o.Required
}

// ComponentSchema carries numeric and length constraints.
type ComponentSchema struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Length    *int     `json:"length,omitempty"`
	Precision *int     `json:"precision,omitempty"`
	Regex     string   `json:"regex,omitempty"`
}

// List is a named set of selectable items sharing one value type.
type List struct {
	Name  string        `json:"name"`
	Title string        `json:"title,omitempty"`
	Type  ListValueType `json:"type"`
	Items []Item        `json:"items"`
}

// Item is one selectable entry in a list. Value holds a string, float64 or
// bool depending on the owning list's type. Description may carry authored
// HTML and is sanitised before rendering.
type Item struct {
	Text        string `json:"text"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
	Condition   string `json:"condition,omitempty"`
}

// Section groups pages under a shared state namespace.
type Section struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// Condition is a named boolean expression over answer values. Value is either
// a raw expression string or a structured condition tree (see condition
// package for the lowering rules).
type Condition struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName,omitempty"`
	Value       json.RawMessage `json:"value"`
}

// OutputType enumerates the downstream delivery channels.
type OutputType string

const (
	OutputEmail   OutputType = "email"
	OutputNotify  OutputType = "notify"
	OutputWebhook OutputType = "webhook"
)

// Output configures one downstream delivery of the final submission.
type Output struct {
	Name          string        `json:"name,omitempty"`
	Title         string        `json:"title,omitempty"`
	Type          OutputType    `json:"type"`
	Configuration OutputConfig  `json:"outputConfiguration"`
}

// OutputConfig is the union of per-channel settings; only the fields relevant
// to the output's type are consulted.
type OutputConfig struct {
	// webhook
	URL        string `json:"url,omitempty"`
	AllowRetry *bool  `json:"allowRetry,omitempty"`

	// email
	EmailAddress string `json:"emailAddress,omitempty"`

	// notify
	TemplateID                    string              `json:"templateId,omitempty"`
	APIKey                        string              `json:"apiKey,omitempty"`
	EmailField                    string              `json:"emailField,omitempty"`
	Personalisation               []string            `json:"personalisation,omitempty"`
	AddReferencesToPersonalisation bool               `json:"addReferencesToPersonalisation,omitempty"`
	EmailReplyToIDConfiguration   []EmailReplyTo      `json:"emailReplyToIdConfiguration,omitempty"`
}

// EmailReplyTo selects a reply-to identity, optionally gated by a condition.
type EmailReplyTo struct {
	EmailReplyToID string `json:"emailReplyToId"`
	Condition      string `json:"condition,omitempty"`
}

// Fee is a payable item, optionally gated by a condition.
type Fee struct {
	Description string `json:"description"`
	Amount      int    `json:"amount"`
	Condition   string `json:"condition,omitempty"`
	Multiplier  string `json:"multiplier,omitempty"`
}

// FeeOptions tunes payment behaviour.
type FeeOptions struct {
	PayAPIKey                     string `json:"payApiKey,omitempty"`
	PaymentReferenceFormat        string `json:"paymentReferenceFormat,omitempty"`
	MaxAttempts                   int    `json:"maxAttempts,omitempty"`
	ShowPaymentSkippedWarningPage bool   `json:"showPaymentSkippedWarningPage,omitempty"`
	AllowSubmissionWithoutPayment *bool  `json:"allowSubmissionWithoutPayment,omitempty"`
}

// Feedback points users at a feedback channel.
type Feedback struct {
	URL          string `json:"url,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	FeedbackForm bool   `json:"feedbackForm,omitempty"`
}

// PhaseBanner labels the service maturity phase.
type PhaseBanner struct {
	Phase string `json:"phase,omitempty"`
}

// SpecialPages overrides built-in page behaviour.
type SpecialPages struct {
	ConfirmationPage *ConfirmationPage `json:"confirmationPage,omitempty"`
}

// ConfirmationPage customises the post-submission status page.
type ConfirmationPage struct {
	CustomText struct {
		Title          string `json:"title,omitempty"`
		PaymentSkipped string `json:"paymentSkipped,omitempty"`
		NextSteps      string `json:"nextSteps,omitempty"`
	} `json:"customText"`
}
