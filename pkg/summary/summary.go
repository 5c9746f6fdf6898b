package summary

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formrunner/pkg/form"
	"github.com/goliatone/go-formrunner/pkg/page"
)

// Row is one answered (or missing) field on the check-your-answers page.
type Row struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Page      string `json:"page"`
	Iteration int    `json:"iteration,omitempty"`
	InError   bool   `json:"inError,omitempty"`
}

// Section groups rows the way the definition groups pages.
type Section struct {
	Name      string `json:"name,omitempty"`
	Title     string `json:"title,omitempty"`
	Repeating bool   `json:"repeating,omitempty"`
	Rows      []Row  `json:"rows"`
}

// StateError is one validation failure addressed by its location in the
// answer state (a JSON pointer such as /applicant/2/firstName).
type StateError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ViewModel is the complete check-your-answers page.
type ViewModel struct {
	Name        string       `json:"name"`
	Declaration string       `json:"declaration,omitempty"`
	Sections    []Section    `json:"sections"`
	Errors      []StateError `json:"errors,omitempty"`
}

// HasErrors reports whether any answer failed re-validation.
func (vm *ViewModel) HasErrors() bool {
	return len(vm.Errors) > 0
}

// Build assembles the summary for the current answers: it walks the
// reachable pages, reconciles repeating sections against their declared
// count, re-validates the whole state, and lays rows out by section with
// change links back to their pages.
func Build(model *form.Model, state map[string]any) (*ViewModel, error) {
	pages := model.RelevantPages(state)
	reconciled := Reconcile(model, state, pages)

	var stateErrors []StateError
	if err := model.ValidateState(reconciled, pages); err != nil {
		stateErrors = describeStateErrors(err)
	}

	vm := &ViewModel{
		Name:        model.Name(),
		Declaration: model.Definition().Declaration,
		Errors:      stateErrors,
	}

	bySection := make(map[string]int)
	for _, ctrl := range pages {
		if !ctrl.HasFormComponents() {
			continue
		}

		idx, ok := bySection[ctrl.Def.Section]
		if !ok {
			section := Section{Name: ctrl.Def.Section}
			if def, found := model.Section(ctrl.Def.Section); found {
				section.Title = def.Title
			}
			vm.Sections = append(vm.Sections, section)
			idx = len(vm.Sections) - 1
			bySection[ctrl.Def.Section] = idx
		}

		if ctrl.Kind == page.KindRepeating {
			vm.Sections[idx].Repeating = true
			vm.Sections[idx].Rows = append(vm.Sections[idx].Rows, repeatingRows(ctrl, reconciled, stateErrors)...)
			continue
		}
		vm.Sections[idx].Rows = append(vm.Sections[idx].Rows, pageRows(ctrl, reconciled, stateErrors)...)
	}

	return vm, nil
}

// Reconcile aligns every repeating section's iteration list with the count
// its repeat field declares: extra iterations are truncated, missing ones
// padded with empty entries. Non-repeating state passes through untouched.
func Reconcile(model *form.Model, state map[string]any, pages []*page.Controller) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = v
	}

	ctxState := model.ContextState(state)
	for _, ctrl := range pages {
		if ctrl.Kind != page.KindRepeating {
			continue
		}
		want := repeatCount(ctxState, ctrl.Def.RepeatField)
		if want < 0 {
			continue
		}
		list, _ := out[ctrl.Def.Section].([]any)
		switch {
		case len(list) > want:
			list = list[:want]
		case len(list) < want:
			padded := make([]any, 0, want)
			padded = append(padded, list...)
			for len(padded) < want {
				padded = append(padded, map[string]any{})
			}
			list = padded
		}
		out[ctrl.Def.Section] = list
	}
	return out
}

func repeatCount(ctxState map[string]any, field string) int {
	switch v := ctxState[field].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return -1
		}
		return n
	default:
		return -1
	}
}

func pageRows(ctrl *page.Controller, state map[string]any, errs []StateError) []Row {
	scoped := ctrl.ScopedState(state, 0)
	rows := make([]Row, 0, len(ctrl.Components.FormComponents()))
	for _, c := range ctrl.Components.FormComponents() {
		rows = append(rows, Row{
			Name:    c.Name,
			Label:   c.Title,
			Value:   c.DisplayString(scoped),
			Page:    ctrl.Def.Path,
			InError: rowInError(errs, ctrl.Def.Section, c.Name, 0),
		})
	}
	return rows
}

func repeatingRows(ctrl *page.Controller, state map[string]any, errs []StateError) []Row {
	list, _ := state[ctrl.Def.Section].([]any)
	var rows []Row
	for i := range list {
		scoped, _ := list[i].(map[string]any)
		for _, c := range ctrl.Components.FormComponents() {
			rows = append(rows, Row{
				Name:      c.Name,
				Label:     c.Title,
				Value:     c.DisplayString(scoped),
				Page:      ctrl.Def.Path,
				Iteration: i + 1,
				InError:   rowInError(errs, ctrl.Def.Section, c.Name, i+1),
			})
		}
	}
	return rows
}

// rowInError matches a row against the addressed validation failures.
// iteration 0 addresses /section/name (or /name unsectioned); iteration n
// addresses /section/n-1/name.
func rowInError(errs []StateError, section, name string, iteration int) bool {
	var want string
	switch {
	case section == "":
		want = "/" + name
	case iteration > 0:
		want = fmt.Sprintf("/%s/%d/%s", section, iteration-1, name)
	default:
		want = fmt.Sprintf("/%s/%s", section, name)
	}
	for _, e := range errs {
		if e.Path == want || strings.HasPrefix(e.Path, want+"/") {
			return true
		}
	}
	return false
}

func describeStateErrors(err error) []StateError {
	var multi openapi3.MultiError
	if !errors.As(err, &multi) {
		multi = openapi3.MultiError{err}
	}

	var out []StateError
	for _, item := range multi {
		var schemaErr *openapi3.SchemaError
		if errors.As(item, &schemaErr) {
			out = append(out, StateError{
				Path:    "/" + strings.Join(schemaErr.JSONPointer(), "/"),
				Message: schemaErr.Reason,
			})
			continue
		}
		out = append(out, StateError{Path: "/", Message: item.Error()})
	}
	return out
}
