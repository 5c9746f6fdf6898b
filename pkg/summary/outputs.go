package summary

import (
	"fmt"

	"github.com/goliatone/go-formrunner/pkg/definition"
	"github.com/goliatone/go-formrunner/pkg/form"
	"github.com/goliatone/go-formrunner/pkg/page"
)

// Field is one answered field inside a webhook question.
type Field struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	Answer any    `json:"answer"`
}

// Question is one page's worth of answers in the webhook payload.
type Question struct {
	Category string  `json:"category,omitempty"`
	Question string  `json:"question"`
	Index    int     `json:"index"`
	Fields   []Field `json:"fields"`
}

// FeeDetail is one applicable fee line.
type FeeDetail struct {
	Description string `json:"description"`
	Amount      int    `json:"amount"`
	Multiplier  int    `json:"multiplier,omitempty"`
}

// FeeDetails totals the applicable fees for this submission.
type FeeDetails struct {
	Details          []FeeDetail `json:"details"`
	Total            int         `json:"total"`
	PaymentReference string      `json:"paymentReference,omitempty"`
	ReferenceFormat  string      `json:"referenceFormat,omitempty"`
}

// WebhookPayload is the submission document sent to webhook targets and
// embedded in notify personalisation when requested.
type WebhookPayload struct {
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Questions   []Question     `json:"questions"`
	Declaration bool           `json:"declaration,omitempty"`
	Fees        *FeeDetails    `json:"fees,omitempty"`
}

// WebhookOutput is one webhook delivery to perform.
type WebhookOutput struct {
	Name       string          `json:"name"`
	URL        string          `json:"url"`
	AllowRetry bool            `json:"allowRetry"`
	Payload    *WebhookPayload `json:"payload"`
}

// EmailOutput is one plain email delivery to perform.
type EmailOutput struct {
	Name    string          `json:"name"`
	To      string          `json:"to"`
	Subject string          `json:"subject"`
	Payload *WebhookPayload `json:"payload"`
}

// NotifyOutput is one templated notification to perform.
type NotifyOutput struct {
	Name            string         `json:"name"`
	TemplateID      string         `json:"templateId"`
	APIKey          string         `json:"apiKey"`
	EmailAddress    string         `json:"emailAddress"`
	EmailReplyToID  string         `json:"emailReplyToId,omitempty"`
	Personalisation map[string]any `json:"personalisation"`
}

// Dispatch is everything the transport layer must deliver for one
// submission, in order: fees settle first so the payment reference can ride
// along, then webhooks, then notifications and emails.
type Dispatch struct {
	Fees          *FeeDetails     `json:"fees,omitempty"`
	Webhooks      []WebhookOutput `json:"webhooks,omitempty"`
	Emails        []EmailOutput   `json:"emails,omitempty"`
	Notifications []NotifyOutput  `json:"notifications,omitempty"`
	Skipped       bool            `json:"skipped,omitempty"`
}

// Outputs assembles the dispatch plan for the current answers. declaration
// records whether the user accepted the declaration checkbox; it is appended
// to the payload as a synthetic question when the form configures one. A
// session carrying a callback override skips every configured output.
func Outputs(model *form.Model, state map[string]any, declaration bool) (*Dispatch, error) {
	if _, ok := state["callback"]; ok {
		return &Dispatch{Skipped: true}, nil
	}

	payload := buildPayload(model, state, declaration)
	ctxState := model.ContextState(state)

	dispatch := &Dispatch{}
	if fees := applicableFees(model, ctxState); fees != nil {
		dispatch.Fees = fees
		payload.Fees = fees
	}

	for _, output := range model.Definition().Outputs {
		switch output.Type {
		case definition.OutputWebhook:
			dispatch.Webhooks = append(dispatch.Webhooks, WebhookOutput{
				Name:       output.Name,
				URL:        output.Configuration.URL,
				AllowRetry: output.Configuration.AllowRetry == nil || *output.Configuration.AllowRetry,
				Payload:    payload,
			})

		case definition.OutputEmail:
			dispatch.Emails = append(dispatch.Emails, EmailOutput{
				Name:    output.Name,
				To:      output.Configuration.EmailAddress,
				Subject: fmt.Sprintf("%s submission", model.Name()),
				Payload: payload,
			})

		case definition.OutputNotify:
			notify, err := buildNotify(model, output, ctxState)
			if err != nil {
				return nil, err
			}
			dispatch.Notifications = append(dispatch.Notifications, notify)

		default:
			return nil, fmt.Errorf("summary: output %q: unknown type %q", output.Name, output.Type)
		}
	}
	return dispatch, nil
}

// Payload renders every relevant page's answers into the questions
// structure downstream systems consume.
func Payload(model *form.Model, state map[string]any, declaration bool) *WebhookPayload {
	return buildPayload(model, state, declaration)
}

func buildPayload(model *form.Model, state map[string]any, declaration bool) *WebhookPayload {
	pages := model.RelevantPages(state)
	reconciled := Reconcile(model, state, pages)

	payload := &WebhookPayload{
		Name:     model.Name(),
		Metadata: model.Definition().Metadata,
	}

	for _, ctrl := range pages {
		if !ctrl.HasFormComponents() {
			continue
		}
		category, _ := sectionTitle(model, ctrl.Def.Section)

		if ctrl.Kind == page.KindRepeating {
			list, _ := reconciled[ctrl.Def.Section].([]any)
			for i := range list {
				scoped, _ := list[i].(map[string]any)
				payload.Questions = append(payload.Questions, pageQuestion(ctrl, scoped, category, i+1))
			}
			continue
		}
		payload.Questions = append(payload.Questions, pageQuestion(ctrl, ctrl.ScopedState(reconciled, 0), category, 0))
	}

	if model.Definition().Declaration != "" {
		payload.Declaration = declaration
		payload.Questions = append(payload.Questions, Question{
			Question: "Declaration",
			Fields: []Field{{
				Key:    "declaration",
				Title:  "Declaration",
				Type:   "boolean",
				Answer: declaration,
			}},
		})
	}
	return payload
}

func pageQuestion(ctrl *page.Controller, scoped map[string]any, category string, index int) Question {
	q := Question{
		Category: category,
		Question: ctrl.Def.Title,
		Index:    index,
	}
	for _, c := range ctrl.Components.FormComponents() {
		answer, ok := scoped[c.Name]
		if !ok {
			answer = nil
		}
		q.Fields = append(q.Fields, Field{
			Key:    c.Name,
			Title:  c.Title,
			Type:   string(c.DataType()),
			Answer: answer,
		})
	}
	return q
}

func sectionTitle(model *form.Model, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if section, ok := model.Section(name); ok && section.Title != "" {
		return section.Title, true
	}
	return name, true
}

// applicableFees evaluates each fee's gating condition and multiplies by the
// named count answer where configured. Nil when no fee applies.
func applicableFees(model *form.Model, ctxState map[string]any) *FeeDetails {
	def := model.Definition()
	if len(def.Fees) == 0 {
		return nil
	}

	details := &FeeDetails{}
	if def.FeeOptions != nil {
		details.ReferenceFormat = def.FeeOptions.PaymentReferenceFormat
	}

	for _, fee := range def.Fees {
		if fee.Condition != "" && !model.Conditions().Evaluate(fee.Condition, ctxState) {
			continue
		}
		detail := FeeDetail{Description: fee.Description, Amount: fee.Amount}
		total := fee.Amount
		if fee.Multiplier != "" {
			if n := repeatCount(ctxState, fee.Multiplier); n > 0 {
				detail.Multiplier = n
				total = fee.Amount * n
			}
		}
		details.Details = append(details.Details, detail)
		details.Total += total
	}

	if len(details.Details) == 0 {
		return nil
	}
	return details
}

func buildNotify(model *form.Model, output definition.Output, ctxState map[string]any) (NotifyOutput, error) {
	cfg := output.Configuration

	address, _ := ctxState[cfg.EmailField].(string)
	if address == "" {
		return NotifyOutput{}, fmt.Errorf("summary: output %q: no answer for email field %q", output.Name, cfg.EmailField)
	}

	personalisation := make(map[string]any, len(cfg.Personalisation))
	for _, name := range cfg.Personalisation {
		if value, ok := ctxState[name]; ok {
			personalisation[name] = value
			continue
		}
		// Named conditions may be used as personalisation flags.
		if compiled, ok := model.Conditions().Resolve(name); ok {
			personalisation[name] = compiled.Evaluate(ctxState)
		}
	}
	if cfg.AddReferencesToPersonalisation {
		hasWebhook := false
		for _, out := range model.Definition().Outputs {
			if out.Type == definition.OutputWebhook {
				hasWebhook = true
				break
			}
		}
		personalisation["hasWebhookReference"] = hasWebhook
	}

	notify := NotifyOutput{
		Name:            output.Name,
		TemplateID:      cfg.TemplateID,
		APIKey:          cfg.APIKey,
		EmailAddress:    address,
		Personalisation: personalisation,
	}
	for _, replyTo := range cfg.EmailReplyToIDConfiguration {
		if replyTo.Condition == "" || model.Conditions().Evaluate(replyTo.Condition, ctxState) {
			notify.EmailReplyToID = replyTo.EmailReplyToID
			break
		}
	}
	return notify, nil
}
