package page

import (
	"fmt"

	"github.com/goliatone/go-formrunner/pkg/component"
	"github.com/goliatone/go-formrunner/pkg/condition"
	"github.com/goliatone/go-formrunner/pkg/definition"
)

// Kind selects the controller behaviour for a page.
type Kind string

const (
	KindStart     Kind = "start"
	KindQuestion  Kind = "question"
	KindSummary   Kind = "summary"
	KindStatus    Kind = "status"
	KindUpload    Kind = "upload"
	KindRepeating Kind = "repeating"
)

// kindFor maps the authored controller name onto a Kind. The empty name is
// the plain question page.
func kindFor(def definition.Page) (Kind, error) {
	switch def.Controller {
	case "", "question":
		return KindQuestion, nil
	case "start", "home":
		return KindStart, nil
	case "summary":
		return KindSummary, nil
	case "status":
		return KindStatus, nil
	case "upload":
		return KindUpload, nil
	case "repeating":
		return KindRepeating, nil
	default:
		return "", fmt.Errorf("page: %q: unknown controller %q", def.Path, def.Controller)
	}
}

// Controller drives one wizard page: it validates submissions, folds answers
// into session state, and decides where the user goes next. Controllers are
// immutable after construction.
type Controller struct {
	Kind       Kind
	Def        definition.Page
	Components *component.Collection

	conditions *condition.Registry
}

// New builds the controller for a page definition. The components are
// instantiated here so an invalid page fails the whole form load.
func New(def definition.Page, conds *condition.Registry, lists component.ListResolver) (*Controller, error) {
	kind, err := kindFor(def)
	if err != nil {
		return nil, err
	}
	if kind == KindRepeating && def.RepeatField == "" {
		return nil, fmt.Errorf("page: %q: repeating controller requires repeatField", def.Path)
	}

	col, err := component.NewCollection(def.Components, lists)
	if err != nil {
		return nil, fmt.Errorf("page: %q: %w", def.Path, err)
	}

	return &Controller{
		Kind:       kind,
		Def:        def,
		Components: col,
		conditions: conds,
	}, nil
}

// HasFormComponents reports whether the page collects any answers.
func (c *Controller) HasFormComponents() bool {
	return len(c.Components.FormComponents()) > 0
}

// Next resolves the outgoing edge for the given evaluation-context state.
// Edges are checked in declared order and the first whose condition holds
// (or which has none) wins. A page with no matching edge is terminal.
func (c *Controller) Next(ctxState map[string]any) (string, bool) {
	for _, link := range c.Def.Next {
		if link.Condition == "" {
			return link.Path, true
		}
		if c.conditions.Evaluate(link.Condition, ctxState) {
			return link.Path, true
		}
	}
	return "", false
}

// Validate checks a submitted payload against the page's components.
func (c *Controller) Validate(payload map[string]any) (map[string]any, []component.FieldError) {
	return c.Components.Validate(payload)
}

// ViewModel prepares the page for rendering. payload carries form-key values
// (either the redisplayed submission or the expansion of stored state) and
// ctxState feeds conditional list items.
func (c *Controller) ViewModel(ctxState, payload map[string]any, errs []component.FieldError) ViewModel {
	vms := c.Components.ViewModels(payload, errs)
	c.filterConditionalItems(vms, ctxState)

	messages := make([]Error, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, Error{Name: e.Name, Message: e.Message})
	}

	return ViewModel{
		Path:       c.Def.Path,
		Title:      c.Def.Title,
		Section:    c.Def.Section,
		Components: vms,
		Errors:     messages,
		HasNext:    len(c.Def.Next) > 0,
	}
}

// filterConditionalItems drops list options whose gating condition does not
// hold for the current answers.
func (c *Controller) filterConditionalItems(vms []component.ViewModel, ctxState map[string]any) {
	for i, vm := range vms {
		comp, ok := c.Components.Get(vm.Name)
		if !ok || comp.List() == nil {
			continue
		}
		kept := vm.Items[:0]
		for j, item := range comp.List().Items {
			if j >= len(vm.Items) {
				break
			}
			if item.Condition != "" && !c.conditions.Evaluate(item.Condition, ctxState) {
				continue
			}
			kept = append(kept, vm.Items[j])
		}
		vms[i].Items = kept
	}
}

// Error is one rendered validation message.
type Error struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ViewModel is a page prepared for the template engine.
type ViewModel struct {
	Path       string                `json:"path"`
	Title      string                `json:"title"`
	Section    string                `json:"section,omitempty"`
	Components []component.ViewModel `json:"components"`
	Errors     []Error               `json:"errors,omitempty"`
	HasNext    bool                  `json:"hasNext"`
}
