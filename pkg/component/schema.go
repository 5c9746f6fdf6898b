package component

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formrunner/pkg/definition"
)

// Wire patterns for fields whose format cannot be expressed through numeric
// bounds alone.
const (
	emailPattern     = `^[^@\s]+@[^@\s]+\.[^@\s]+$`
	telephonePattern = `^[0-9\s\+\(\)-]{6,}$`
	isoDatePattern   = `^\d{4}-\d{2}-\d{2}$`
)

// buildFormSchema derives the wire-shape schema fragments for every form key
// the component owns. Compound fields delegate to their children.
func buildFormSchema(c *Component) map[string]schemaEntry {
	if !c.IsFormComponent() {
		return nil
	}

	switch c.Type {
	case definition.TypeDateParts, definition.TypeMonthYear:
		merged := make(map[string]schemaEntry)
		for _, child := range c.children.FormComponents() {
			for key, entry := range child.formSchema {
				merged[key] = entry
			}
		}
		return merged
	}

	return map[string]schemaEntry{
		c.Name: {
			schema:   scalarSchema(c),
			label:    c.Label(),
			required: c.Options.IsRequired(),
		},
	}
}

// buildStateSchema derives the persisted-state schema for the component's
// logical value, keyed under the component name.
func buildStateSchema(c *Component) schemaEntry {
	if !c.IsFormComponent() {
		return schemaEntry{}
	}

	entry := schemaEntry{
		label:    c.Label(),
		required: c.Options.IsRequired(),
	}

	switch c.Type {
	case definition.TypeDate, definition.TypeDateParts:
		entry.schema = openapi3.NewStringSchema().WithPattern(isoDatePattern)
	case definition.TypeMonthYear:
		month := openapi3.NewIntegerSchema().WithMin(1).WithMax(12)
		year := openapi3.NewIntegerSchema().WithMin(1000).WithMax(3000)
		entry.schema = openapi3.NewObjectSchema().
			WithProperty(c.Name+"__month", month).
			WithProperty(c.Name+"__year", year)
	default:
		entry.schema = scalarSchema(c)
	}

	if !entry.required {
		entry.schema.Nullable = true
	}
	return entry
}

// scalarSchema builds the constraint schema shared by the wire and state
// shape of single-valued fields.
func scalarSchema(c *Component) *openapi3.Schema {
	switch c.Type {
	case definition.TypeNumber:
		return numberSchema(c.Schema)

	case definition.TypeYesNo:
		return openapi3.NewBoolSchema()

	case definition.TypeSelect, definition.TypeRadios, definition.TypeAutocomplete:
		return listItemSchema(c.list).WithEnum(c.ListValues()...)

	case definition.TypeCheckboxes:
		items := listItemSchema(c.list).WithEnum(c.ListValues()...)
		return openapi3.NewArraySchema().WithItems(items)

	case definition.TypeEmail:
		return stringSchema(c.Schema).WithPattern(emailPattern)

	case definition.TypeTelephone:
		return stringSchema(c.Schema).WithPattern(telephonePattern)

	case definition.TypeDate:
		return openapi3.NewStringSchema().WithPattern(isoDatePattern)

	case definition.TypeFileUpload:
		if c.Options.MultipleFilesAllowed {
			return openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
		}
		return openapi3.NewStringSchema()

	default: // Text, MultilineText
		return stringSchema(c.Schema)
	}
}

func stringSchema(def definition.ComponentSchema) *openapi3.Schema {
	s := openapi3.NewStringSchema()
	if def.Length != nil {
		s = s.WithMinLength(int64(*def.Length)).WithMaxLength(int64(*def.Length))
	} else {
		if def.MinLength != nil {
			s = s.WithMinLength(int64(*def.MinLength))
		}
		if def.MaxLength != nil {
			s = s.WithMaxLength(int64(*def.MaxLength))
		}
	}
	if def.Regex != "" {
		s = s.WithPattern(def.Regex)
	}
	return s
}

func numberSchema(def definition.ComponentSchema) *openapi3.Schema {
	var s *openapi3.Schema
	if def.Precision != nil && *def.Precision == 0 {
		s = openapi3.NewIntegerSchema()
	} else {
		s = openapi3.NewFloat64Schema()
	}
	if def.Min != nil {
		s = s.WithMin(*def.Min)
	}
	if def.Max != nil {
		s = s.WithMax(*def.Max)
	}
	return s
}

func listItemSchema(list *definition.List) *openapi3.Schema {
	switch list.Type {
	case definition.ListTypeNumber:
		return openapi3.NewFloat64Schema()
	case definition.ListTypeBoolean:
		return openapi3.NewBoolSchema()
	default:
		return openapi3.NewStringSchema()
	}
}
