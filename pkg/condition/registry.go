package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formrunner/pkg/definition"
)

// Compiled is a named condition parsed once into an expression tree.
// Evaluation never fails: any lookup or type problem degrades to false.
type Compiled struct {
	Name       string
	Expression string
	root       exprNode
	registry   *Registry
}

// Registry resolves named conditions into evaluable predicates over answer
// state. It is built once per form model and read-only afterwards.
type Registry struct {
	conditions map[string]*Compiled
	order      []string
}

// NewRegistry compiles every condition definition. Unknown references between
// conditions and reference cycles are load-time errors; the expression
// grammar itself is checked here too, so a registry that constructs cleanly
// can always evaluate.
func NewRegistry(defs []definition.Condition) (*Registry, error) {
	registry := &Registry{conditions: make(map[string]*Compiled, len(defs))}

	for _, def := range defs {
		expr, err := lowerValue(def.Value)
		if err != nil {
			return nil, fmt.Errorf("condition: %q: %w", def.Name, err)
		}

		tokens, err := tokenize(expr)
		if err != nil {
			return nil, fmt.Errorf("condition: %q: %w", def.Name, err)
		}
		root, err := parseExpression(tokens)
		if err != nil {
			return nil, fmt.Errorf("condition: %q: %w", def.Name, err)
		}

		registry.conditions[def.Name] = &Compiled{
			Name:       def.Name,
			Expression: expr,
			root:       root,
			registry:   registry,
		}
		registry.order = append(registry.order, def.Name)
	}

	if err := registry.checkCycles(); err != nil {
		return nil, err
	}
	return registry, nil
}

// Resolve returns the compiled condition for name.
func (r *Registry) Resolve(name string) (*Compiled, bool) {
	c, ok := r.conditions[name]
	return c, ok
}

// Names lists the registered condition names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Evaluate runs the named condition against state. Unknown names evaluate to
// false; the definition validator has already rejected dangling references
// from pages and outputs.
func (r *Registry) Evaluate(name string, state map[string]any) bool {
	c, ok := r.conditions[name]
	if !ok {
		return false
	}
	return c.Evaluate(state)
}

// Evaluate runs the condition against state, exposing every other named
// condition to the expression as a lazily computed boolean. Sub-condition
// results are memoized for the duration of one evaluation.
func (c *Compiled) Evaluate(state map[string]any) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()

	ctx := &evalContext{
		state:    state,
		registry: c.registry,
		memo:     make(map[string]bool),
	}
	ok, err := c.root.eval(ctx)
	if err != nil {
		return false
	}
	return ok
}

// evalContext resolves identifiers against raw answers first, then against
// the registry's named conditions. Memoization keeps diamond-shaped condition
// graphs from re-evaluating shared sub-conditions.
type evalContext struct {
	state    map[string]any
	registry *Registry
	memo     map[string]bool
}

func (ctx *evalContext) Lookup(key string) (any, bool) {
	if value, ok := lookupMap(ctx.state, key); ok {
		return value, true
	}

	if done, ok := ctx.memo[key]; ok {
		return done, true
	}
	if sub, ok := ctx.registry.conditions[key]; ok {
		ctx.memo[key] = false // cycle guard; compile already rejects cycles
		result := false
		if ok, err := sub.root.eval(ctx); err == nil {
			result = ok
		}
		ctx.memo[key] = result
		return result, true
	}
	return nil, false
}

// checkCycles rejects condition graphs where a condition reaches itself
// through other named conditions.
func (r *Registry) checkCycles() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	colour := make(map[string]int, len(r.conditions))

	var visit func(name string, trail []string) error
	visit = func(name string, trail []string) error {
		switch colour[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("condition: reference cycle: %s", strings.Join(append(trail, name), " -> "))
		}
		colour[name] = visiting

		refs := make(map[string]struct{})
		identifiers(r.conditions[name].root, refs)
		for ref := range refs {
			if _, ok := r.conditions[ref]; !ok {
				continue
			}
			if err := visit(ref, append(trail, name)); err != nil {
				return err
			}
		}
		colour[name] = done
		return nil
	}

	for _, name := range r.order {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// lowerValue turns a raw condition value into an expression string. String
// values are used verbatim; structured condition trees are lowered clause by
// clause.
func lowerValue(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if strings.TrimSpace(asString) == "" {
			return "", fmt.Errorf("empty expression")
		}
		return asString, nil
	}

	var tree conditionTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return "", fmt.Errorf("value is neither an expression string nor a condition tree: %w", err)
	}
	return lowerTree(tree)
}

// conditionTree mirrors the structured authoring format: an ordered clause
// list where every clause after the first names its coordinator.
type conditionTree struct {
	Name       string   `json:"name,omitempty"`
	Conditions []clause `json:"conditions"`
}

type clause struct {
	Coordinator   string       `json:"coordinator,omitempty"`
	ConditionName string       `json:"conditionName,omitempty"`
	Field         *clauseField `json:"field,omitempty"`
	Operator      string       `json:"operator,omitempty"`
	Value         *clauseValue `json:"value,omitempty"`
}

type clauseField struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type clauseValue struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

func lowerTree(tree conditionTree) (string, error) {
	if len(tree.Conditions) == 0 {
		return "", fmt.Errorf("condition tree has no clauses")
	}

	var sb strings.Builder
	for i, cl := range tree.Conditions {
		if i > 0 {
			switch strings.ToLower(cl.Coordinator) {
			case "and":
				sb.WriteString(" && ")
			case "or":
				sb.WriteString(" || ")
			default:
				return "", fmt.Errorf("clause %d has unknown coordinator %q", i, cl.Coordinator)
			}
		}

		lowered, err := lowerClause(cl)
		if err != nil {
			return "", err
		}
		sb.WriteString(lowered)
	}
	return sb.String(), nil
}

func lowerClause(cl clause) (string, error) {
	if cl.ConditionName != "" {
		return cl.ConditionName, nil
	}
	if cl.Field == nil || cl.Value == nil {
		return "", fmt.Errorf("clause requires field and value")
	}

	op, err := lowerOperator(cl.Operator)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", cl.Field.Name, op, lowerLiteral(cl.Value.Value)), nil
}

func lowerOperator(op string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "is":
		return "==", nil
	case "is not":
		return "!=", nil
	case "is at least":
		return ">=", nil
	case "is at most":
		return "<=", nil
	case "is less than":
		return "<", nil
	case "is more than":
		return ">", nil
	default:
		return "", fmt.Errorf("unknown operator %q", op)
	}
}

func lowerLiteral(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "true", "false", "null":
		return strings.ToLower(trimmed)
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return trimmed
	}
	return strconv.Quote(trimmed)
}
