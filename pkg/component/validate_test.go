package component_test

import (
	"strings"
	"testing"

	"github.com/goliatone/go-formrunner/pkg/component"
	"github.com/goliatone/go-formrunner/pkg/definition"
)

// listFixture resolves the lists component tests rely on, including the
// implicit yes/no list every form model provides.
type listFixture map[string]*definition.List

func (f listFixture) ResolveList(name string) (*definition.List, bool) {
	list, ok := f[name]
	return list, ok
}

func testLists() listFixture {
	return listFixture{
		component.YesNoListName: {
			Name: component.YesNoListName,
			Type: definition.ListTypeBoolean,
			Items: []definition.Item{
				{Text: "Yes", Value: true},
				{Text: "No", Value: false},
			},
		},
		"colours": {
			Name: "colours",
			Type: definition.ListTypeString,
			Items: []definition.Item{
				{Text: "Red", Value: "red"},
				{Text: "Green", Value: "green"},
				{Text: "Blue", Value: "blue"},
			},
		},
	}
}

func mustComponent(t *testing.T, def definition.Component) *component.Component {
	t.Helper()
	c, err := component.New(def, testLists())
	if err != nil {
		t.Fatalf("New(%s %q) returned error: %v", def.Type, def.Name, err)
	}
	return c
}

func optional() definition.ComponentOptions {
	required := false
	return definition.ComponentOptions{Required: &required}
}

func TestRequiredFieldRejectsEmpty(t *testing.T) {
	t.Parallel()

	c := mustComponent(t, definition.Component{
		Type: definition.TypeText, Name: "fullName", Title: "Full name",
	})

	for _, empty := range []any{nil, "", "   "} {
		_, errs := c.Validate(map[string]any{"fullName": empty})
		if len(errs) != 1 {
			t.Fatalf("Validate(%q) errors = %v, want exactly one", empty, errs)
		}
		if got, want := errs[0].Message, "full name is required"; got != want {
			t.Fatalf("message = %q, want %q", got, want)
		}
	}

	values, errs := c.Validate(map[string]any{"fullName": "Ada Lovelace"})
	if len(errs) != 0 {
		t.Fatalf("Validate(valid) errors = %v, want none", errs)
	}
	if got, want := values["fullName"], "Ada Lovelace"; got != want {
		t.Fatalf("value = %v, want %v", got, want)
	}
}

func TestOptionalFieldNormalisesEmpty(t *testing.T) {
	t.Parallel()

	c := mustComponent(t, definition.Component{
		Type: definition.TypeText, Name: "nickname", Title: "Nickname",
		Options: optional(),
	})

	// Every empty submission normalizes to the same representation.
	for _, empty := range []any{nil, "", "  "} {
		values, errs := c.Validate(map[string]any{"nickname": empty})
		if len(errs) != 0 {
			t.Fatalf("Validate(%v) errors = %v, want none", empty, errs)
		}
		if got := values["nickname"]; got != "" {
			t.Fatalf("normalized value = %v, want empty string", got)
		}
	}
}

func TestNumberCoercion(t *testing.T) {
	t.Parallel()

	min, max := 1.0, 10.0
	c := mustComponent(t, definition.Component{
		Type: definition.TypeNumber, Name: "guests", Title: "Number of guests",
		Schema: definition.ComponentSchema{Min: &min, Max: &max},
	})

	values, errs := c.Validate(map[string]any{"guests": "7"})
	if len(errs) != 0 {
		t.Fatalf("Validate(\"7\") errors = %v, want none", errs)
	}
	if got, want := values["guests"], float64(7); got != want {
		t.Fatalf("value = %v, want %v", got, want)
	}

	_, errs = c.Validate(map[string]any{"guests": "eleven"})
	if len(errs) == 0 {
		t.Fatal("Validate(non-numeric) accepted the value")
	}

	_, errs = c.Validate(map[string]any{"guests": "42"})
	if len(errs) == 0 {
		t.Fatal("Validate(42) should fail the maximum of 10")
	}
	if !strings.Contains(errs[0].Message, "10 or lower") {
		t.Fatalf("message = %q, want maximum phrasing", errs[0].Message)
	}
}

func TestListValueMustBeInSet(t *testing.T) {
	t.Parallel()

	c := mustComponent(t, definition.Component{
		Type: definition.TypeRadios, Name: "colour", Title: "Favourite colour",
		List: "colours",
	})

	// Well-typed and non-empty, but not an allowed value.
	_, errs := c.Validate(map[string]any{"colour": "purple"})
	if len(errs) == 0 {
		t.Fatal("Validate(off-list value) accepted the value")
	}
	if !strings.Contains(errs[0].Message, "item from the list") {
		t.Fatalf("message = %q, want list-membership phrasing", errs[0].Message)
	}

	if _, errs := c.Validate(map[string]any{"colour": "green"}); len(errs) != 0 {
		t.Fatalf("Validate(green) errors = %v, want none", errs)
	}
}

func TestCheckboxesAcceptSubsets(t *testing.T) {
	t.Parallel()

	c := mustComponent(t, definition.Component{
		Type: definition.TypeCheckboxes, Name: "colours", Title: "Colours",
		List: "colours",
	})

	values, errs := c.Validate(map[string]any{"colours": []any{"red", "blue"}})
	if len(errs) != 0 {
		t.Fatalf("Validate() errors = %v, want none", errs)
	}
	answer, ok := values["colours"].([]any)
	if !ok || len(answer) != 2 {
		t.Fatalf("value = %v, want two-element slice", values["colours"])
	}

	// A single bare value is promoted to a one-element answer.
	values, errs = c.Validate(map[string]any{"colours": "red"})
	if len(errs) != 0 {
		t.Fatalf("Validate(single) errors = %v, want none", errs)
	}
	if answer, ok := values["colours"].([]any); !ok || len(answer) != 1 {
		t.Fatalf("value = %v, want one-element slice", values["colours"])
	}

	if _, errs := c.Validate(map[string]any{"colours": []any{"red", "mauve"}}); len(errs) == 0 {
		t.Fatal("Validate() accepted an off-list member")
	}
}

func TestYesNoCoercion(t *testing.T) {
	t.Parallel()

	c := mustComponent(t, definition.Component{
		Type: definition.TypeYesNo, Name: "agreed", Title: "Do you agree?",
	})

	values, errs := c.Validate(map[string]any{"agreed": "true"})
	if len(errs) != 0 {
		t.Fatalf("Validate(\"true\") errors = %v, want none", errs)
	}
	if got, want := values["agreed"], true; got != want {
		t.Fatalf("value = %v, want %v", got, want)
	}
}

func TestCustomValidationMessageReplacesBuiltins(t *testing.T) {
	t.Parallel()

	minLength := 8
	c := mustComponent(t, definition.Component{
		Type: definition.TypeText, Name: "reference", Title: "Reference",
		Options: definition.ComponentOptions{CustomValidationMessage: "Enter your reference as shown on your letter"},
		Schema:  definition.ComponentSchema{MinLength: &minLength},
	})

	for _, bad := range []any{"", "abc"} {
		_, errs := c.Validate(map[string]any{"reference": bad})
		if len(errs) == 0 {
			t.Fatalf("Validate(%q) accepted the value", bad)
		}
		for _, fieldErr := range errs {
			if fieldErr.Message != "Enter your reference as shown on your letter" {
				t.Fatalf("message = %q, want the custom message for every failure", fieldErr.Message)
			}
		}
	}
}

func TestDatePartsRejectImpossibleDates(t *testing.T) {
	t.Parallel()

	c := mustComponent(t, definition.Component{
		Type: definition.TypeDateParts, Name: "dob", Title: "Date of birth",
	})

	// November has 30 days.
	_, errs := c.Validate(map[string]any{
		"dob__day": "31", "dob__month": "11", "dob__year": "2021",
	})
	if len(errs) == 0 {
		t.Fatal("Validate(31 November) accepted an impossible date")
	}
	if !strings.Contains(errs[0].Message, "real date") {
		t.Fatalf("message = %q, want real-date phrasing", errs[0].Message)
	}

	values, errs := c.Validate(map[string]any{
		"dob__day": "31", "dob__month": "12", "dob__year": "2021",
	})
	if len(errs) != 0 {
		t.Fatalf("Validate(31 December) errors = %v, want none", errs)
	}
	if got, want := values["dob__day"], float64(31); got != want {
		t.Fatalf("day = %v, want %v", got, want)
	}
}
