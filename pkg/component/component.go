package component

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formrunner/pkg/definition"
)

// ListResolver resolves named value lists from the owning form model.
type ListResolver interface {
	ResolveList(name string) (*definition.List, bool)
}

// DataType tags the logical shape of a field's answer. Output assembly and
// renderers branch on it instead of on the component type.
type DataType string

const (
	DataTypeText      DataType = "text"
	DataTypeNumber    DataType = "number"
	DataTypeDate      DataType = "date"
	DataTypeMonthYear DataType = "monthYear"
	DataTypeList      DataType = "list"
	DataTypeFile      DataType = "file"
)

// Component is one form field (or content block) instantiated from its
// definition. Components are built once per form model and are stateless:
// per-request data flows through arguments only.
type Component struct {
	Type    definition.ComponentType
	Name    string
	Title   string
	Hint    string
	Content string
	Options definition.ComponentOptions
	Schema  definition.ComponentSchema

	list     *definition.List
	children *Collection

	formSchema  map[string]schemaEntry
	stateSchema schemaEntry
}

// schemaEntry pairs a kin-openapi schema fragment with the metadata the
// validator needs to phrase errors.
type schemaEntry struct {
	schema   *openapi3.Schema
	label    string
	required bool
}

// New builds a component from its definition. List-backed components resolve
// their list here; an unresolvable list is a definition error (the definition
// validator catches authored lists, this guards the implicit ones).
func New(def definition.Component, lists ListResolver) (*Component, error) {
	c := &Component{
		Type:    def.Type,
		Name:    def.Name,
		Title:   def.Title,
		Hint:    def.Hint,
		Content: def.Content,
		Options: def.Options,
		Schema:  def.Schema,
	}

	if !def.IsFormComponent() {
		return c, nil
	}

	switch def.Type {
	case definition.TypeYesNo:
		list, ok := lists.ResolveList(YesNoListName)
		if !ok {
			return nil, fmt.Errorf("component: %q: list %q not found", def.Name, YesNoListName)
		}
		c.list = list
	case definition.TypeSelect, definition.TypeRadios, definition.TypeCheckboxes, definition.TypeAutocomplete:
		list, ok := lists.ResolveList(def.List)
		if !ok {
			return nil, fmt.Errorf("component: %q: list %q not found", def.Name, def.List)
		}
		c.list = list
	case definition.TypeDateParts:
		children, err := NewCollection(datePartsChildren(def), lists)
		if err != nil {
			return nil, err
		}
		c.children = children
	case definition.TypeMonthYear:
		children, err := NewCollection(monthYearChildren(def), lists)
		if err != nil {
			return nil, err
		}
		c.children = children
	}

	c.formSchema = buildFormSchema(c)
	c.stateSchema = buildStateSchema(c)
	return c, nil
}

// YesNoListName is the implicit boolean list every form model carries.
const YesNoListName = "__yesNo"

// IsFormComponent reports whether the component collects an answer.
func (c *Component) IsFormComponent() bool {
	return definition.FormComponentTypes[c.Type]
}

// DataType reports the logical answer shape.
func (c *Component) DataType() DataType {
	switch c.Type {
	case definition.TypeNumber:
		return DataTypeNumber
	case definition.TypeDate, definition.TypeDateParts:
		return DataTypeDate
	case definition.TypeMonthYear:
		return DataTypeMonthYear
	case definition.TypeYesNo, definition.TypeSelect, definition.TypeRadios,
		definition.TypeCheckboxes, definition.TypeAutocomplete:
		return DataTypeList
	case definition.TypeFileUpload:
		return DataTypeFile
	default:
		return DataTypeText
	}
}

// Label is the human name used in validation messages.
func (c *Component) Label() string {
	return strings.ToLower(c.Title)
}

// StateSchema exposes the fragment that validates this component's stored
// answer, plus whether an answer is required.
func (c *Component) StateSchema() (*openapi3.Schema, bool) {
	return c.stateSchema.schema, c.stateSchema.required
}

// List exposes the resolved value list for list-backed components.
func (c *Component) List() *definition.List {
	return c.list
}

// Children exposes the sub-field collection of compound components.
func (c *Component) Children() *Collection {
	return c.children
}

// FormKeys lists the wire payload keys the component owns, in declared order.
// Compound fields expand into one key per physical input.
func (c *Component) FormKeys() []string {
	switch c.Type {
	case definition.TypeDateParts:
		return []string{c.Name + "__day", c.Name + "__month", c.Name + "__year"}
	case definition.TypeMonthYear:
		return []string{c.Name + "__month", c.Name + "__year"}
	default:
		return []string{c.Name}
	}
}

// ListValues returns the allowed answer values of the resolved list.
func (c *Component) ListValues() []any {
	if c.list == nil {
		return nil
	}
	values := make([]any, 0, len(c.list.Items))
	for _, item := range c.list.Items {
		values = append(values, item.Value)
	}
	return values
}

func datePartsChildren(def definition.Component) []definition.Component {
	required := def.Options.Required
	return []definition.Component{
		numberChild(def.Name+"__day", "Day", 1, 31, required),
		numberChild(def.Name+"__month", "Month", 1, 12, required),
		numberChild(def.Name+"__year", "Year", 1000, 3000, required),
	}
}

func monthYearChildren(def definition.Component) []definition.Component {
	required := def.Options.Required
	return []definition.Component{
		numberChild(def.Name+"__month", "Month", 1, 12, required),
		numberChild(def.Name+"__year", "Year", 1000, 3000, required),
	}
}

func numberChild(name, title string, min, max float64, required *bool) definition.Component {
	precision := 0
	return definition.Component{
		Type:  definition.TypeNumber,
		Name:  name,
		Title: title,
		Options: definition.ComponentOptions{
			Required: required,
		},
		Schema: definition.ComponentSchema{
			Min:       &min,
			Max:       &max,
			Precision: &precision,
		},
	}
}
