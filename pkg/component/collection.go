package component

import (
	"fmt"
	"sort"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formrunner/pkg/definition"
)

var contentPolicy = bluemonday.UGCPolicy()

// Collection holds the components of one page (or the sub-fields of one
// compound component) in declared order.
type Collection struct {
	components []*Component
	byName     map[string]*Component
	keyOrder   map[string]int
}

// NewCollection instantiates every component definition in order. Two
// components claiming the same form key is a definition error.
func NewCollection(defs []definition.Component, lists ListResolver) (*Collection, error) {
	col := &Collection{
		byName:   make(map[string]*Component, len(defs)),
		keyOrder: make(map[string]int),
	}
	for _, def := range defs {
		c, err := New(def, lists)
		if err != nil {
			return nil, err
		}
		col.components = append(col.components, c)
		if !c.IsFormComponent() {
			continue
		}
		if _, dup := col.byName[c.Name]; dup {
			return nil, fmt.Errorf("component: duplicate field name %q", c.Name)
		}
		col.byName[c.Name] = c
		col.keyOrder[c.Name] = len(col.keyOrder)
		for _, key := range c.FormKeys() {
			if key == c.Name {
				continue
			}
			if _, dup := col.keyOrder[key]; dup {
				return nil, fmt.Errorf("component: duplicate field name %q", key)
			}
			col.keyOrder[key] = len(col.keyOrder)
		}
	}
	return col, nil
}

// All returns the components in declared order.
func (col *Collection) All() []*Component {
	return col.components
}

// FormComponents returns only the answer-collecting components, in order.
func (col *Collection) FormComponents() []*Component {
	out := make([]*Component, 0, len(col.components))
	for _, c := range col.components {
		if c.IsFormComponent() {
			out = append(out, c)
		}
	}
	return out
}

// Get looks a form component up by field name.
func (col *Collection) Get(name string) (*Component, bool) {
	c, ok := col.byName[name]
	return c, ok
}

// FormKeys lists every wire payload key the collection owns, in declared
// order, compound fields expanded.
func (col *Collection) FormKeys() []string {
	var keys []string
	for _, c := range col.FormComponents() {
		keys = append(keys, c.FormKeys()...)
	}
	return keys
}

// StateKeys lists the answer-state keys the collection owns.
func (col *Collection) StateKeys() []string {
	var keys []string
	for _, c := range col.FormComponents() {
		keys = append(keys, c.Name)
	}
	return keys
}

// Validate checks a submitted payload against every form component and
// returns the normalized values plus all errors, ordered by the declared
// field order regardless of which component produced them.
func (col *Collection) Validate(payload map[string]any) (map[string]any, []FieldError) {
	values := make(map[string]any)
	var errs []FieldError
	for _, c := range col.FormComponents() {
		v, componentErrs := c.Validate(payload)
		errs = append(errs, componentErrs...)
		if len(componentErrs) > 0 {
			continue
		}
		for key, value := range v {
			values[key] = value
		}
	}
	col.sortErrors(errs)
	if len(errs) > 0 {
		return nil, errs
	}
	return values, nil
}

// sortErrors orders errors by the declared field order. The sort is stable
// so multiple errors on the same field keep their emission order.
func (col *Collection) sortErrors(errs []FieldError) {
	sort.SliceStable(errs, func(i, j int) bool {
		return col.keyPosition(errs[i].Name) < col.keyPosition(errs[j].Name)
	})
}

func (col *Collection) keyPosition(key string) int {
	if pos, ok := col.keyOrder[key]; ok {
		return pos
	}
	return len(col.keyOrder)
}

// StateFromValidPayload folds validated form values into the answer-state
// shape for the whole collection.
func (col *Collection) StateFromValidPayload(values map[string]any) (map[string]any, error) {
	state := make(map[string]any)
	for _, c := range col.FormComponents() {
		partial, err := c.StateFromValidPayload(values)
		if err != nil {
			return nil, err
		}
		for key, value := range partial {
			state[key] = value
		}
	}
	return state, nil
}

// PayloadFromState expands stored answers back into form keys for
// pre-filling every component on the page.
func (col *Collection) PayloadFromState(state map[string]any) map[string]any {
	payload := make(map[string]any)
	for _, c := range col.FormComponents() {
		for key, value := range c.PayloadFromState(state) {
			payload[key] = value
		}
	}
	return payload
}

// ItemViewModel is one selectable option prepared for rendering.
type ItemViewModel struct {
	Text        string `json:"text"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
	Selected    bool   `json:"selected"`
}

// PartViewModel is one input of a compound field: a day, month or year box
// keyed by its own form key.
type PartViewModel struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value any    `json:"value,omitempty"`
}

// ViewModel is one component prepared for rendering: content sanitised,
// list items resolved, current answer and errors attached.
type ViewModel struct {
	Type    definition.ComponentType `json:"type"`
	Name    string                   `json:"name,omitempty"`
	Title   string                   `json:"title,omitempty"`
	Hint    string                   `json:"hint,omitempty"`
	Content string                   `json:"content,omitempty"`
	Options definition.ComponentOptions
	Items    []ItemViewModel `json:"items,omitempty"`
	Parts    []PartViewModel `json:"parts,omitempty"`
	Multiple bool            `json:"multiple,omitempty"`
	Value    any             `json:"value,omitempty"`
	Errors   []string        `json:"errors,omitempty"`
}

// ViewModels prepares every component for rendering against the current
// payload (form keys, as returned by PayloadFromState or an invalid
// submission) and the validation errors for the page.
func (col *Collection) ViewModels(payload map[string]any, errs []FieldError) []ViewModel {
	out := make([]ViewModel, 0, len(col.components))
	for _, c := range col.components {
		vm := ViewModel{
			Type:    c.Type,
			Name:    c.Name,
			Title:   c.Title,
			Hint:    c.Hint,
			Options: c.Options,
		}
		if c.Content != "" {
			vm.Content = contentPolicy.Sanitize(c.Content)
		}
		if c.IsFormComponent() {
			vm.Multiple = c.Type == definition.TypeCheckboxes
			if c.children != nil {
				values := make(map[string]any)
				parts := make([]PartViewModel, 0, len(c.children.FormComponents()))
				for _, child := range c.children.FormComponents() {
					parts = append(parts, PartViewModel{
						Key:   child.Name,
						Label: child.Title,
						Value: payload[child.Name],
					})
					if v, ok := payload[child.Name]; ok {
						values[child.Name] = v
					}
				}
				vm.Parts = parts
				vm.Value = values
			} else {
				vm.Value = payload[c.Name]
			}
			if c.list != nil {
				vm.Items = c.itemViewModels(payload[c.Name])
			}
			for _, key := range c.FormKeys() {
				for _, fieldErr := range errs {
					if fieldErr.Name == key || fieldErr.Name == c.Name {
						vm.Errors = appendUnique(vm.Errors, fieldErr.Message)
					}
				}
			}
		}
		out = append(out, vm)
	}
	return out
}

func (c *Component) itemViewModels(current any) []ItemViewModel {
	items := make([]ItemViewModel, 0, len(c.list.Items))
	for _, item := range c.list.Items {
		vm := ItemViewModel{
			Text:     item.Text,
			Value:    item.Value,
			Selected: selectedValue(item.Value, current),
		}
		if item.Description != "" {
			vm.Description = contentPolicy.Sanitize(item.Description)
		}
		items = append(items, vm)
	}
	return items
}

func selectedValue(itemValue, current any) bool {
	switch v := current.(type) {
	case []any:
		for _, item := range v {
			if listValuesEqual(itemValue, item) {
				return true
			}
		}
		return false
	default:
		return listValuesEqual(itemValue, current)
	}
}

func appendUnique(list []string, value string) []string {
	for _, item := range list {
		if item == value {
			return list
		}
	}
	return append(list, value)
}
