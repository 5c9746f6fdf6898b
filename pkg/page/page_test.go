package page_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrunner/pkg/component"
	"github.com/goliatone/go-formrunner/pkg/condition"
	"github.com/goliatone/go-formrunner/pkg/definition"
	"github.com/goliatone/go-formrunner/pkg/page"
)

type listFixture map[string]*definition.List

func (f listFixture) ResolveList(name string) (*definition.List, bool) {
	list, ok := f[name]
	return list, ok
}

var _ component.ListResolver = listFixture{}

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
	}
}

func testConditions(t *testing.T) *condition.Registry {
	t.Helper()
	registry, err := condition.NewRegistry([]definition.Condition{
		{Name: "xIsTrue", Value: json.RawMessage(`"x == true"`)},
		{Name: "alwaysFalse", Value: json.RawMessage(`"x == \"neverThisValue\""`)},
	})
	if err != nil {
		t.Fatalf("NewRegistry() returned error: %v", err)
	}
	return registry
}

func mustController(t *testing.T, def definition.Page) *page.Controller {
	t.Helper()
	ctrl, err := page.New(def, testConditions(t), testLists())
	if err != nil {
		t.Fatalf("New(%q) returned error: %v", def.Path, err)
	}
	return ctrl
}

func TestNextFirstMatchWins(t *testing.T) {
	t.Parallel()

	ctrl := mustController(t, definition.Page{
		Path:  "/branch",
		Title: "Branch",
		Next: []definition.Link{
			{Path: "/a", Condition: "xIsTrue"},
			{Path: "/b"},
		},
	})

	if next, ok := ctrl.Next(map[string]any{"x": true}); !ok || next != "/a" {
		t.Fatalf("Next(x=true) = %q, %t, want /a", next, ok)
	}
	if next, ok := ctrl.Next(map[string]any{"x": false}); !ok || next != "/b" {
		t.Fatalf("Next(x=false) = %q, %t, want /b", next, ok)
	}

	// Declared order is significant even when a later edge would match too.
	ordered := mustController(t, definition.Page{
		Path:  "/ordered",
		Title: "Ordered",
		Next: []definition.Link{
			{Path: "/first"},
			{Path: "/second", Condition: "xIsTrue"},
		},
	})
	if next, _ := ordered.Next(map[string]any{"x": true}); next != "/first" {
		t.Fatalf("Next() = %q, want the first declared edge", next)
	}
}

func TestNextTerminalPage(t *testing.T) {
	t.Parallel()

	ctrl := mustController(t, definition.Page{Path: "/end", Title: "End"})
	if _, ok := ctrl.Next(map[string]any{}); ok {
		t.Fatal("Next() on a terminal page reported an edge")
	}

	unmatched := mustController(t, definition.Page{
		Path:  "/maybe",
		Title: "Maybe",
		Next:  []definition.Link{{Path: "/a", Condition: "alwaysFalse"}},
	})
	if _, ok := unmatched.Next(map[string]any{}); ok {
		t.Fatal("Next() with no matching edge reported an edge")
	}
}

func TestStateUpdateNestsUnderSection(t *testing.T) {
	t.Parallel()

	ctrl := mustController(t, definition.Page{
		Path:    "/name",
		Title:   "Name",
		Section: "applicant",
		Components: []definition.Component{
			{Type: definition.TypeText, Name: "fullName", Title: "Full name"},
		},
	})

	current := map[string]any{
		"applicant": map[string]any{"existing": "kept"},
	}
	update, err := ctrl.StateUpdate(current, map[string]any{"fullName": "Ada"}, 0)
	if err != nil {
		t.Fatalf("StateUpdate() returned error: %v", err)
	}

	want := map[string]any{
		"applicant": map[string]any{"existing": "kept", "fullName": "Ada"},
	}
	if diff := cmp.Diff(want, update); diff != "" {
		t.Fatalf("update mismatch (-want +got):\n%s", diff)
	}
}

func repeatingController(t *testing.T) *page.Controller {
	t.Helper()
	return mustController(t, definition.Page{
		Path:        "/vehicle",
		Title:       "Vehicle",
		Section:     "vehicles",
		Controller:  "repeating",
		RepeatField: "vehicleCount",
		Components: []definition.Component{
			{Type: definition.TypeText, Name: "registration", Title: "Registration"},
		},
	})
}

func TestRepeatingIterations(t *testing.T) {
	t.Parallel()

	ctrl := repeatingController(t)

	state := map[string]any{}
	if got, want := ctrl.NextIndex(state), 1; got != want {
		t.Fatalf("NextIndex(empty) = %d, want %d", got, want)
	}

	update, err := ctrl.StateUpdate(state, map[string]any{"registration": "AB12 CDE"}, 1)
	if err != nil {
		t.Fatalf("StateUpdate(1) returned error: %v", err)
	}
	state = update

	if got, want := ctrl.NextIndex(state), 2; got != want {
		t.Fatalf("NextIndex(one entry) = %d, want %d", got, want)
	}

	// Writing iteration 3 pads iteration 2 with an empty entry.
	update, err = ctrl.StateUpdate(state, map[string]any{"registration": "XY99 ZZZ"}, 3)
	if err != nil {
		t.Fatalf("StateUpdate(3) returned error: %v", err)
	}
	list := update["vehicles"].([]any)
	if len(list) != 3 {
		t.Fatalf("len(iterations) = %d, want 3", len(list))
	}
	if entry := list[1].(map[string]any); len(entry) != 0 {
		t.Fatalf("padded iteration = %v, want empty", entry)
	}
	if entry := list[2].(map[string]any); entry["registration"] != "XY99 ZZZ" {
		t.Fatalf("third iteration = %v", entry)
	}
}

func TestRemoveAtReindexes(t *testing.T) {
	t.Parallel()

	ctrl := repeatingController(t)

	state := map[string]any{
		"vehicles": []any{
			map[string]any{"registration": "ONE"},
			map[string]any{"registration": "TWO"},
			map[string]any{"registration": "THREE"},
		},
		page.ProgressKey: []any{"/vehicle?visit=v1", "/other?visit=v1"},
	}

	update, err := ctrl.RemoveAt(state, 2)
	if err != nil {
		t.Fatalf("RemoveAt(2) returned error: %v", err)
	}

	list := update["vehicles"].([]any)
	if len(list) != 2 {
		t.Fatalf("len(iterations) = %d, want 2", len(list))
	}
	if list[0].(map[string]any)["registration"] != "ONE" || list[1].(map[string]any)["registration"] != "THREE" {
		t.Fatalf("iterations after removal = %v", list)
	}

	trail := update[page.ProgressKey].([]any)
	for _, entry := range trail {
		if entry == "/vehicle?visit=v1" {
			t.Fatal("progress trail still points at the removed page")
		}
	}

	if _, err := ctrl.RemoveAt(state, 9); err == nil {
		t.Fatal("RemoveAt(out of range) did not error")
	}
}

func TestAppendProgressSkipsConsecutiveRepeats(t *testing.T) {
	t.Parallel()

	state := map[string]any{}
	trail := page.AppendProgress(state, "/a?visit=v1")
	state[page.ProgressKey] = trail
	trail = page.AppendProgress(state, "/a?visit=v1")

	if len(trail) != 1 {
		t.Fatalf("len(trail) = %d, want 1", len(trail))
	}

	state[page.ProgressKey] = trail
	trail = page.AppendProgress(state, "/b?visit=v1")
	if len(trail) != 2 {
		t.Fatalf("len(trail) = %d, want 2", len(trail))
	}
}

func TestSubmittedValuesPreservedOnError(t *testing.T) {
	t.Parallel()

	ctrl := mustController(t, definition.Page{
		Path:  "/age",
		Title: "Age",
		Components: []definition.Component{
			{Type: definition.TypeText, Name: "fullName", Title: "Full name"},
			{Type: definition.TypeNumber, Name: "age", Title: "Age"},
		},
	})

	payload := map[string]any{"fullName": "Ada", "age": "not a number"}
	_, errs := ctrl.Validate(payload)
	if len(errs) == 0 {
		t.Fatal("Validate() accepted a bad number")
	}

	vm := ctrl.ViewModel(map[string]any{}, payload, errs)
	for _, cvm := range vm.Components {
		if cvm.Name == "age" && cvm.Value != "not a number" {
			t.Fatalf("submitted value dropped: %v", cvm.Value)
		}
		if cvm.Name == "fullName" && cvm.Value != "Ada" {
			t.Fatalf("valid sibling value dropped: %v", cvm.Value)
		}
	}
}
