package component

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formrunner/pkg/definition"
)

// StateFromValidPayload folds normalized form values into the answer-state
// shape. Compound components collapse their part keys into the single state
// key; everything else passes through unchanged. The payload must already
// have passed Validate.
func (c *Component) StateFromValidPayload(values map[string]any) (map[string]any, error) {
	if !c.IsFormComponent() {
		return nil, nil
	}

	switch c.Type {
	case definition.TypeDateParts:
		day, dayOK := intValue(values[c.Name+"__day"])
		month, monthOK := intValue(values[c.Name+"__month"])
		year, yearOK := intValue(values[c.Name+"__year"])
		if !dayOK || !monthOK || !yearOK {
			return map[string]any{c.Name: nil}, nil
		}
		iso, err := composeDate(year, month, day)
		if err != nil {
			return nil, err
		}
		return map[string]any{c.Name: iso}, nil

	case definition.TypeMonthYear:
		month, monthOK := intValue(values[c.Name+"__month"])
		year, yearOK := intValue(values[c.Name+"__year"])
		if !monthOK || !yearOK {
			return map[string]any{c.Name: nil}, nil
		}
		return map[string]any{c.Name: map[string]any{
			c.Name + "__month": float64(month),
			c.Name + "__year":  float64(year),
		}}, nil

	default:
		value, ok := values[c.Name]
		if !ok {
			value = nil
		}
		return map[string]any{c.Name: value}, nil
	}
}

// PayloadFromState is the inverse of StateFromValidPayload: it expands a
// stored answer back into form keys for pre-filling a page.
func (c *Component) PayloadFromState(state map[string]any) map[string]any {
	if !c.IsFormComponent() {
		return nil
	}

	value, ok := state[c.Name]
	if !ok || value == nil {
		return map[string]any{}
	}

	switch c.Type {
	case definition.TypeDateParts:
		iso, ok := value.(string)
		if !ok {
			return map[string]any{}
		}
		t, err := time.Parse("2006-01-02", iso)
		if err != nil {
			return map[string]any{}
		}
		return map[string]any{
			c.Name + "__day":   float64(t.Day()),
			c.Name + "__month": float64(int(t.Month())),
			c.Name + "__year":  float64(t.Year()),
		}

	case definition.TypeMonthYear:
		parts, ok := value.(map[string]any)
		if !ok {
			return map[string]any{}
		}
		out := make(map[string]any, 2)
		for _, suffix := range []string{"__month", "__year"} {
			if v, ok := parts[c.Name+suffix]; ok {
				out[c.Name+suffix] = v
			}
		}
		return out

	default:
		return map[string]any{c.Name: value}
	}
}

// ParseISODate parses the stored representation of a date answer.
func ParseISODate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("component: parse date: %w", err)
	}
	return t, nil
}
