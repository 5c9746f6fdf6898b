package form

import (
	"fmt"

	"github.com/goliatone/go-formrunner/pkg/component"
	"github.com/goliatone/go-formrunner/pkg/condition"
	"github.com/goliatone/go-formrunner/pkg/definition"
	"github.com/goliatone/go-formrunner/pkg/page"
)

// Model is a fully constructed, immutable form: definition validated, lists
// resolved, conditions compiled, one controller per page. Any structural
// problem fails construction; a model that exists is servable.
type Model struct {
	def        *definition.Definition
	name       string
	lists      map[string]*definition.List
	sections   map[string]definition.Section
	conditions *condition.Registry
	pages      []*page.Controller
	byPath     map[string]*page.Controller
	start      *page.Controller
}

// Option configures a Model during construction.
type Option func(*Model)

// WithName overrides the display name from the definition.
func WithName(name string) Option {
	return func(m *Model) {
		m.name = name
	}
}

// New builds a model from a validated definition. It injects the implicit
// yes/no list, compiles every named condition, and instantiates every page
// controller, failing on the first error.
func New(def *definition.Definition, opts ...Option) (*Model, error) {
	if err := definition.Validate(def); err != nil {
		return nil, fmt.Errorf("form: %w", err)
	}

	m := &Model{
		def:      def,
		name:     def.Name,
		lists:    make(map[string]*definition.List, len(def.Lists)+1),
		sections: make(map[string]definition.Section, len(def.Sections)),
		byPath:   make(map[string]*page.Controller, len(def.Pages)),
	}
	for _, opt := range opts {
		opt(m)
	}

	for i := range def.Lists {
		m.lists[def.Lists[i].Name] = &def.Lists[i]
	}
	m.lists[component.YesNoListName] = yesNoList()

	for _, section := range def.Sections {
		m.sections[section.Name] = section
	}

	conds, err := condition.NewRegistry(def.Conditions)
	if err != nil {
		return nil, fmt.Errorf("form: %w", err)
	}
	m.conditions = conds

	for _, pageDef := range def.Pages {
		ctrl, err := page.New(pageDef, conds, m)
		if err != nil {
			return nil, fmt.Errorf("form: %w", err)
		}
		m.pages = append(m.pages, ctrl)
		m.byPath[pageDef.Path] = ctrl
	}

	start, ok := m.byPath[def.StartPage]
	if !ok {
		return nil, fmt.Errorf("form: start page %q not found", def.StartPage)
	}
	m.start = start

	return m, nil
}

func yesNoList() *definition.List {
	return &definition.List{
		Name: component.YesNoListName,
		Type: definition.ListTypeBoolean,
		Items: []definition.Item{
			{Text: "Yes", Value: true},
			{Text: "No", Value: false},
		},
	}
}

// ResolveList implements component.ListResolver.
func (m *Model) ResolveList(name string) (*definition.List, bool) {
	list, ok := m.lists[name]
	return list, ok
}

// Definition exposes the underlying definition. Callers must not mutate it.
func (m *Model) Definition() *definition.Definition {
	return m.def
}

// Name is the form's display name.
func (m *Model) Name() string {
	return m.name
}

// Conditions exposes the compiled condition registry.
func (m *Model) Conditions() *condition.Registry {
	return m.conditions
}

// Pages returns the page controllers in definition order.
func (m *Model) Pages() []*page.Controller {
	return m.pages
}

// PageByPath looks a controller up by page path.
func (m *Model) PageByPath(path string) (*page.Controller, bool) {
	ctrl, ok := m.byPath[path]
	return ctrl, ok
}

// Start is the entry page controller.
func (m *Model) Start() *page.Controller {
	return m.start
}

// Section resolves a section by name.
func (m *Model) Section(name string) (definition.Section, bool) {
	section, ok := m.sections[name]
	return section, ok
}

// RelevantPages walks the outgoing edges from the start page against the
// given answers and returns every reachable page in visit order. The walk is
// recomputed on every call; reachability always reflects current answers.
func (m *Model) RelevantPages(state map[string]any) []*page.Controller {
	ctxState := m.ContextState(state)
	var out []*page.Controller
	seen := make(map[string]bool, len(m.pages))

	current := m.start
	for current != nil && !seen[current.Def.Path] {
		seen[current.Def.Path] = true
		out = append(out, current)
		nextPath, ok := current.Next(ctxState)
		if !ok {
			break
		}
		next, ok := m.byPath[nextPath]
		if !ok {
			break
		}
		current = next
	}
	return out
}
