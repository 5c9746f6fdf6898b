package component

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formrunner/pkg/definition"
)

// DisplayString renders the stored answer for this component as the text
// shown on summary pages and in output documents. Unanswered fields render
// as the empty string.
func (c *Component) DisplayString(state map[string]any) string {
	value, ok := state[c.Name]
	if !ok || value == nil {
		return ""
	}

	switch c.Type {
	case definition.TypeDate, definition.TypeDateParts:
		iso, ok := value.(string)
		if !ok || iso == "" {
			return ""
		}
		t, err := ParseISODate(iso)
		if err != nil {
			return iso
		}
		return t.Format("2 January 2006")

	case definition.TypeMonthYear:
		parts, ok := value.(map[string]any)
		if !ok {
			return ""
		}
		month, monthOK := intValue(parts[c.Name+"__month"])
		year, yearOK := intValue(parts[c.Name+"__year"])
		if !monthOK || !yearOK {
			return ""
		}
		t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return t.Format("January 2006")

	case definition.TypeYesNo, definition.TypeSelect, definition.TypeRadios, definition.TypeAutocomplete:
		return c.itemText(value)

	case definition.TypeCheckboxes:
		items, ok := value.([]any)
		if !ok {
			return c.itemText(value)
		}
		texts := make([]string, 0, len(items))
		for _, item := range items {
			texts = append(texts, c.itemText(item))
		}
		return strings.Join(texts, ", ")

	case definition.TypeNumber:
		if f, ok := value.(float64); ok {
			return formatNumber(f)
		}
		return fmt.Sprint(value)

	default:
		s := fmt.Sprint(value)
		if s == "<nil>" {
			return ""
		}
		return s
	}
}

// itemText looks the stored value up in the component's list and returns the
// item's display text, falling back to the raw value when unmatched.
func (c *Component) itemText(value any) string {
	if c.list != nil {
		for _, item := range c.list.Items {
			if listValuesEqual(item.Value, value) {
				return item.Text
			}
		}
	}
	return fmt.Sprint(value)
}

func listValuesEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aOK := a.(float64)
	bf, bOK := b.(float64)
	return aOK && bOK && af == bf
}
