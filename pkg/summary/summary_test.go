package summary_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrunner/pkg/definition"
	"github.com/goliatone/go-formrunner/pkg/form"
	"github.com/goliatone/go-formrunner/pkg/summary"
)

// vehicleDefinition is the fixture the summary tests run against: one
// unsectioned contact page, a repeating vehicles section governed by a count
// answer, fees multiplied by that count, and webhook plus notify outputs.
func vehicleDefinition() *definition.Definition {
	return &definition.Definition{
		Name:        "Register your vehicles",
		StartPage:   "/contact",
		Declaration: "I confirm these details are correct",
		Sections: []definition.Section{
			{Name: "vehicles", Title: "Your vehicles"},
		},
		Conditions: []definition.Condition{
			{Name: "fleet", Value: json.RawMessage(`"vehicleCount >= 3"`)},
		},
		Fees: []definition.Fee{
			{Description: "Registration fee", Amount: 1000, Multiplier: "vehicleCount"},
		},
		FeeOptions: &definition.FeeOptions{PaymentReferenceFormat: "VRN"},
		Outputs: []definition.Output{
			{
				Name: "registry",
				Type: definition.OutputWebhook,
				Configuration: definition.OutputConfig{
					URL: "https://registry.example/submissions",
				},
			},
			{
				Name: "receipt",
				Type: definition.OutputNotify,
				Configuration: definition.OutputConfig{
					TemplateID:      "tmpl-receipt",
					APIKey:          "test-key",
					EmailField:      "contactEmail",
					Personalisation: []string{"vehicleCount", "fleet"},
				},
			},
		},
		Pages: []definition.Page{
			{
				Path:  "/contact",
				Title: "How can we reach you?",
				Components: []definition.Component{
					{Type: definition.TypeEmail, Name: "contactEmail", Title: "Email address"},
					{Type: definition.TypeNumber, Name: "vehicleCount", Title: "How many vehicles?"},
				},
				Next: []definition.Link{{Path: "/vehicle"}},
			},
			{
				Path:        "/vehicle",
				Title:       "Vehicle details",
				Section:     "vehicles",
				Controller:  "repeating",
				RepeatField: "vehicleCount",
				Components: []definition.Component{
					{Type: definition.TypeText, Name: "registration", Title: "Registration number"},
				},
				Next: []definition.Link{{Path: "/summary"}},
			},
			{
				Path:       "/summary",
				Title:      "Check your answers",
				Controller: "summary",
			},
		},
	}
}

func mustModel(t *testing.T, def *definition.Definition) *form.Model {
	t.Helper()
	model, err := form.New(def)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return model
}

func vehicleState(count float64, regs ...string) map[string]any {
	list := make([]any, 0, len(regs))
	for _, reg := range regs {
		list = append(list, map[string]any{"registration": reg})
	}
	return map[string]any{
		"contactEmail": "owner@example.com",
		"vehicleCount": count,
		"vehicles":     list,
	}
}

func TestReconcileTruncatesExtraIterations(t *testing.T) {
	t.Parallel()

	model := mustModel(t, vehicleDefinition())
	state := vehicleState(2, "AB12 CDE", "FG34 HIJ", "KL56 MNO")

	got := summary.Reconcile(model, state, model.RelevantPages(state))

	list, ok := got["vehicles"].([]any)
	if !ok {
		t.Fatalf("vehicles = %T, want []any", got["vehicles"])
	}
	if len(list) != 2 {
		t.Fatalf("len(vehicles) = %d, want 2", len(list))
	}
	if entry, _ := list[1].(map[string]any); entry["registration"] != "FG34 HIJ" {
		t.Fatalf("vehicles[1] = %v, want FG34 HIJ", entry)
	}
	// The input state is left alone.
	if len(state["vehicles"].([]any)) != 3 {
		t.Fatal("Reconcile() mutated its input")
	}
}

func TestReconcilePadsMissingIterations(t *testing.T) {
	t.Parallel()

	model := mustModel(t, vehicleDefinition())
	state := vehicleState(4, "AB12 CDE", "FG34 HIJ")

	got := summary.Reconcile(model, state, model.RelevantPages(state))

	list, ok := got["vehicles"].([]any)
	if !ok {
		t.Fatalf("vehicles = %T, want []any", got["vehicles"])
	}
	if len(list) != 4 {
		t.Fatalf("len(vehicles) = %d, want 4", len(list))
	}
	for i := 2; i < 4; i++ {
		entry, ok := list[i].(map[string]any)
		if !ok || len(entry) != 0 {
			t.Fatalf("vehicles[%d] = %v, want empty entry", i, list[i])
		}
	}
}

func TestBuildGroupsRowsBySection(t *testing.T) {
	t.Parallel()

	model := mustModel(t, vehicleDefinition())
	vm, err := summary.Build(model, vehicleState(2, "AB12 CDE", "FG34 HIJ"))
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}

	if vm.HasErrors() {
		t.Fatalf("Build() errors = %v, want none", vm.Errors)
	}
	if vm.Declaration == "" {
		t.Fatal("Build() dropped the declaration text")
	}
	if len(vm.Sections) != 2 {
		t.Fatalf("len(sections) = %d, want 2", len(vm.Sections))
	}

	contact := vm.Sections[0]
	want := []summary.Row{
		{Name: "contactEmail", Label: "Email address", Value: "owner@example.com", Page: "/contact"},
		{Name: "vehicleCount", Label: "How many vehicles?", Value: "2", Page: "/contact"},
	}
	if diff := cmp.Diff(want, contact.Rows); diff != "" {
		t.Fatalf("contact rows mismatch (-want +got):\n%s", diff)
	}

	vehicles := vm.Sections[1]
	if !vehicles.Repeating || vehicles.Title != "Your vehicles" {
		t.Fatalf("vehicles section = %+v, want repeating with title", vehicles)
	}
	want = []summary.Row{
		{Name: "registration", Label: "Registration number", Value: "AB12 CDE", Page: "/vehicle", Iteration: 1},
		{Name: "registration", Label: "Registration number", Value: "FG34 HIJ", Page: "/vehicle", Iteration: 2},
	}
	if diff := cmp.Diff(want, vehicles.Rows); diff != "" {
		t.Fatalf("vehicle rows mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFlagsPaddedIterations(t *testing.T) {
	t.Parallel()

	model := mustModel(t, vehicleDefinition())
	vm, err := summary.Build(model, vehicleState(3, "AB12 CDE", "FG34 HIJ"))
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}

	if !vm.HasErrors() {
		t.Fatal("Build() reported no errors for a missing iteration answer")
	}

	var flagged bool
	for _, e := range vm.Errors {
		if strings.HasPrefix(e.Path, "/vehicles/2") {
			flagged = true
		}
	}
	if !flagged {
		t.Fatalf("errors = %v, want one under /vehicles/2", vm.Errors)
	}

	vehicles := vm.Sections[1]
	if len(vehicles.Rows) != 3 {
		t.Fatalf("len(vehicle rows) = %d, want 3", len(vehicles.Rows))
	}
	if vehicles.Rows[0].InError || vehicles.Rows[1].InError {
		t.Fatal("answered iterations flagged in error")
	}
	if !vehicles.Rows[2].InError {
		t.Fatal("padded iteration not flagged in error")
	}
}

func TestBuildFlagsAbsentSection(t *testing.T) {
	t.Parallel()

	def := &definition.Definition{
		Name:      "Report a change",
		StartPage: "/name",
		Sections: []definition.Section{
			{Name: "applicant", Title: "About you"},
		},
		Pages: []definition.Page{
			{
				Path:    "/name",
				Title:   "What is your name?",
				Section: "applicant",
				Components: []definition.Component{
					{Type: definition.TypeText, Name: "fullName", Title: "Full name"},
				},
			},
		},
	}
	model := mustModel(t, def)

	// Nothing answered at all: the section map itself is missing, which
	// must still surface its required fields.
	vm, err := summary.Build(model, map[string]any{})
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if !vm.HasErrors() {
		t.Fatal("Build() validated an empty state against a required sectioned field")
	}
}

func TestOutputsAssemblesDispatch(t *testing.T) {
	t.Parallel()

	model := mustModel(t, vehicleDefinition())
	dispatch, err := summary.Outputs(model, vehicleState(2, "AB12 CDE", "FG34 HIJ"), true)
	if err != nil {
		t.Fatalf("Outputs() returned error: %v", err)
	}

	if dispatch.Skipped {
		t.Fatal("Outputs() skipped a live submission")
	}

	if dispatch.Fees == nil {
		t.Fatal("Outputs() produced no fees")
	}
	if got, want := dispatch.Fees.Total, 2000; got != want {
		t.Fatalf("fees total = %d, want %d", got, want)
	}
	if got := dispatch.Fees.Details[0].Multiplier; got != 2 {
		t.Fatalf("fee multiplier = %d, want 2", got)
	}
	if dispatch.Fees.ReferenceFormat != "VRN" {
		t.Fatalf("reference format = %q, want VRN", dispatch.Fees.ReferenceFormat)
	}

	if len(dispatch.Webhooks) != 1 {
		t.Fatalf("len(webhooks) = %d, want 1", len(dispatch.Webhooks))
	}
	hook := dispatch.Webhooks[0]
	if hook.URL != "https://registry.example/submissions" || !hook.AllowRetry {
		t.Fatalf("webhook = %+v", hook)
	}
	if hook.Payload.Fees != dispatch.Fees {
		t.Fatal("webhook payload does not carry the dispatch fees")
	}

	if len(dispatch.Notifications) != 1 {
		t.Fatalf("len(notifications) = %d, want 1", len(dispatch.Notifications))
	}
	notify := dispatch.Notifications[0]
	if notify.EmailAddress != "owner@example.com" {
		t.Fatalf("notify address = %q", notify.EmailAddress)
	}
	if got := notify.Personalisation["vehicleCount"]; got != float64(2) {
		t.Fatalf("personalisation vehicleCount = %v, want 2", got)
	}
	// Named conditions double as personalisation flags.
	if got := notify.Personalisation["fleet"]; got != false {
		t.Fatalf("personalisation fleet = %v, want false", got)
	}
}

func TestOutputsWebhookReferenceFlag(t *testing.T) {
	t.Parallel()

	def := vehicleDefinition()
	def.Outputs[1].Configuration.AddReferencesToPersonalisation = true

	dispatch, err := summary.Outputs(mustModel(t, def), vehicleState(2, "AB12 CDE", "FG34 HIJ"), true)
	if err != nil {
		t.Fatalf("Outputs() returned error: %v", err)
	}
	if got := dispatch.Notifications[0].Personalisation["hasWebhookReference"]; got != true {
		t.Fatalf("hasWebhookReference = %v, want true", got)
	}

	// Without a webhook output there is no reference to promise.
	def = vehicleDefinition()
	def.Outputs = def.Outputs[1:]
	def.Outputs[0].Configuration.AddReferencesToPersonalisation = true

	dispatch, err = summary.Outputs(mustModel(t, def), vehicleState(2, "AB12 CDE", "FG34 HIJ"), true)
	if err != nil {
		t.Fatalf("Outputs() returned error: %v", err)
	}
	if got := dispatch.Notifications[0].Personalisation["hasWebhookReference"]; got != false {
		t.Fatalf("hasWebhookReference = %v, want false", got)
	}
}

func TestPayloadLaysOutQuestions(t *testing.T) {
	t.Parallel()

	model := mustModel(t, vehicleDefinition())
	payload := summary.Payload(model, vehicleState(2, "AB12 CDE", "FG34 HIJ"), true)

	if payload.Name != "Register your vehicles" {
		t.Fatalf("payload name = %q", payload.Name)
	}
	// One contact page, two vehicle iterations, plus the declaration.
	if len(payload.Questions) != 4 {
		t.Fatalf("len(questions) = %d, want 4", len(payload.Questions))
	}

	contact := payload.Questions[0]
	if contact.Question != "How can we reach you?" || len(contact.Fields) != 2 {
		t.Fatalf("contact question = %+v", contact)
	}

	for i, q := range payload.Questions[1:3] {
		if q.Category != "Your vehicles" || q.Index != i+1 {
			t.Fatalf("vehicle question %d = %+v", i, q)
		}
	}
	if got := payload.Questions[2].Fields[0].Answer; got != "FG34 HIJ" {
		t.Fatalf("second iteration answer = %v", got)
	}

	declaration := payload.Questions[3]
	if declaration.Question != "Declaration" || declaration.Fields[0].Answer != true {
		t.Fatalf("declaration question = %+v", declaration)
	}
	if !payload.Declaration {
		t.Fatal("payload declaration flag not set")
	}
}

func TestOutputsSkipsClaimedSessions(t *testing.T) {
	t.Parallel()

	model := mustModel(t, vehicleDefinition())
	state := vehicleState(1, "AB12 CDE")
	state["callback"] = map[string]any{"claimed": true}

	dispatch, err := summary.Outputs(model, state, true)
	if err != nil {
		t.Fatalf("Outputs() returned error: %v", err)
	}
	if !dispatch.Skipped {
		t.Fatal("Outputs() did not skip a claimed session")
	}
	if len(dispatch.Webhooks) != 0 || len(dispatch.Notifications) != 0 || dispatch.Fees != nil {
		t.Fatalf("skipped dispatch still carries work: %+v", dispatch)
	}
}

func TestOutputsRejectsUnknownType(t *testing.T) {
	t.Parallel()

	def := vehicleDefinition()
	def.Outputs = append(def.Outputs, definition.Output{
		Name: "mystery",
		Type: definition.OutputType("carrier-pigeon"),
	})

	// The definition validator catches unknown output types before a model
	// can exist for them.
	if _, err := form.New(def); err == nil || !strings.Contains(err.Error(), "unknown output type") {
		t.Fatalf("New() error = %v, want unknown output type", err)
	}
}

func TestOutputsNotifyRequiresEmailAnswer(t *testing.T) {
	t.Parallel()

	model := mustModel(t, vehicleDefinition())
	state := vehicleState(1, "AB12 CDE")
	delete(state, "contactEmail")

	if _, err := summary.Outputs(model, state, true); err == nil || !strings.Contains(err.Error(), "email field") {
		t.Fatalf("Outputs() error = %v, want email field failure", err)
	}
}
