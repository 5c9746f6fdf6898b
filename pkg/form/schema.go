package form

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formrunner/pkg/page"
)

// ContextState flattens sectioned answers into a single namespace for
// condition evaluation. Section maps contribute their keys directly;
// iteration lists stay under the section name so conditions can inspect
// them. On a key collision the later section wins (last-write-wins); authors
// are expected to keep field names unique across sections.
func (m *Model) ContextState(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for key, value := range state {
		if nested, ok := value.(map[string]any); ok {
			if _, isSection := m.sections[key]; isSection {
				for k, v := range nested {
					out[k] = v
				}
				continue
			}
		}
		out[key] = value
	}
	return out
}

// FilteredSchema assembles the object schema validating the whole answer
// state across the given pages. Answers group by section; a section served
// by a repeating page becomes an array of per-iteration objects; unsectioned
// answers sit at the top level.
func (m *Model) FilteredSchema(pages []*page.Controller) *openapi3.Schema {
	root := openapi3.NewObjectSchema()
	sectionSchemas := make(map[string]*openapi3.Schema)
	repeating := make(map[string]bool)

	for _, ctrl := range pages {
		target := root
		if section := ctrl.Def.Section; section != "" {
			s, ok := sectionSchemas[section]
			if !ok {
				s = openapi3.NewObjectSchema()
				sectionSchemas[section] = s
			}
			if ctrl.Kind == page.KindRepeating {
				repeating[section] = true
			}
			target = s
		}

		for _, c := range ctrl.Components.FormComponents() {
			schema, required := c.StateSchema()
			target = target.WithProperty(c.Name, schema)
			if required {
				target.Required = append(target.Required, c.Name)
			}
		}
	}

	names := make([]string, 0, len(sectionSchemas))
	for name := range sectionSchemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := sectionSchemas[name]
		if repeating[name] {
			root = root.WithProperty(name, openapi3.NewArraySchema().WithItems(s))
		} else {
			root = root.WithProperty(name, s)
		}
		// An absent section map must not bypass its fields' required
		// checks.
		if len(s.Required) > 0 {
			root.Required = append(root.Required, name)
		}
	}
	return root
}

// ValidateState checks stored answers against the filtered schema for the
// given pages. It returns openapi3 errors for the summary layer to address
// rows with.
func (m *Model) ValidateState(state map[string]any, pages []*page.Controller) error {
	schema := m.FilteredSchema(pages)
	return schema.VisitJSON(pruneState(state), openapi3.MultiErrors())
}

// pruneState drops runner bookkeeping keys that are not answers.
func pruneState(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for key, value := range state {
		switch key {
		case page.ProgressKey, "metadata", "callback", "pay":
			continue
		}
		out[key] = value
	}
	return out
}
