package component

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formrunner/pkg/definition"
)

// FieldError is one user-facing validation failure, addressed by form key.
type FieldError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Validate checks the submitted wire payload against the component's form
// schema. It returns the normalized typed values keyed by form key alongside
// any errors; callers must discard the values when errors are present.
func (c *Component) Validate(payload map[string]any) (map[string]any, []FieldError) {
	if !c.IsFormComponent() {
		return nil, nil
	}

	values := make(map[string]any)
	var errs []FieldError

	for _, key := range c.FormKeys() {
		entry := c.formSchema[key]
		raw := payload[key]

		if isEmpty(raw) {
			if entry.required {
				errs = append(errs, FieldError{Name: key, Message: c.message(entry, requiredMessage(entry.label))})
			} else {
				values[key] = emptyValue(entry.schema)
			}
			continue
		}

		typed, err := coerceValue(raw, entry.schema)
		if err != nil {
			errs = append(errs, FieldError{Name: key, Message: c.message(entry, c.coercionMessage(entry.label))})
			continue
		}

		if err := entry.schema.VisitJSON(typed, openapi3.MultiErrors()); err != nil {
			errs = append(errs, c.schemaErrors(key, entry, err)...)
			continue
		}
		values[key] = typed
	}

	if len(errs) == 0 {
		errs = append(errs, c.validateComposite(values)...)
	}
	return values, errs
}

// validateComposite applies cross-key checks that individual schema
// fragments cannot express: calendar validity for date parts and the
// configured past/future range for date answers.
func (c *Component) validateComposite(values map[string]any) []FieldError {
	switch c.Type {
	case definition.TypeDateParts:
		day, dayOK := intValue(values[c.Name+"__day"])
		month, monthOK := intValue(values[c.Name+"__month"])
		year, yearOK := intValue(values[c.Name+"__year"])
		if !dayOK || !monthOK || !yearOK {
			// Optional field with no parts supplied.
			return nil
		}
		iso, err := composeDate(year, month, day)
		if err != nil {
			return []FieldError{{
				Name:    c.Name,
				Message: c.message(c.stateSchema, fmt.Sprintf("%s must be a real date", c.Label())),
			}}
		}
		return c.validateDateRange(iso)

	case definition.TypeDate:
		iso, ok := values[c.Name].(string)
		if !ok || iso == "" {
			return nil
		}
		return c.validateDateRange(iso)

	default:
		return nil
	}
}

// validateDateRange enforces the maxDaysInPast / maxDaysInFuture options.
func (c *Component) validateDateRange(iso string) []FieldError {
	if c.Options.MaxDaysInPast == 0 && c.Options.MaxDaysInFuture == 0 {
		return nil
	}
	t, err := ParseISODate(iso)
	if err != nil {
		return nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var errs []FieldError
	if c.Options.MaxDaysInPast > 0 {
		earliest := today.AddDate(0, 0, -c.Options.MaxDaysInPast)
		if t.Before(earliest) {
			errs = append(errs, FieldError{
				Name:    c.Name,
				Message: c.message(c.stateSchema, fmt.Sprintf("%s must be on or after %s", c.Label(), earliest.Format("2 January 2006"))),
			})
		}
	}
	if c.Options.MaxDaysInFuture > 0 {
		latest := today.AddDate(0, 0, c.Options.MaxDaysInFuture)
		if t.After(latest) {
			errs = append(errs, FieldError{
				Name:    c.Name,
				Message: c.message(c.stateSchema, fmt.Sprintf("%s must be on or before %s", c.Label(), latest.Format("2 January 2006"))),
			})
		}
	}
	return errs
}

// composeDate builds an ISO date string, rejecting impossible calendar dates
// such as 31 November instead of letting time.Date normalise them away.
func composeDate(year, month, day int) (string, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return "", fmt.Errorf("component: %04d-%02d-%02d is not a real date", year, month, day)
	}
	return t.Format("2006-01-02"), nil
}

// message applies the component's custom validation message, which replaces
// every built-in message when configured.
func (c *Component) message(entry schemaEntry, fallback string) string {
	if c.Options.CustomValidationMessage != "" {
		return strings.ReplaceAll(c.Options.CustomValidationMessage, "{{label}}", entry.label)
	}
	return fallback
}

func requiredMessage(label string) string {
	return fmt.Sprintf("%s is required", label)
}

func (c *Component) coercionMessage(label string) string {
	switch c.Type {
	case definition.TypeNumber, definition.TypeDateParts, definition.TypeMonthYear:
		return fmt.Sprintf("%s must be a number", label)
	case definition.TypeYesNo:
		return fmt.Sprintf("%s must be yes or no", label)
	case definition.TypeDate:
		return fmt.Sprintf("%s must be a real date", label)
	default:
		return fmt.Sprintf("%s is not valid", label)
	}
}

// schemaErrors maps kin-openapi validation failures onto user-facing
// messages keyed by form key.
func (c *Component) schemaErrors(key string, entry schemaEntry, err error) []FieldError {
	var multi openapi3.MultiError
	if !errors.As(err, &multi) {
		multi = openapi3.MultiError{err}
	}

	seen := make(map[string]bool, len(multi))
	var out []FieldError
	for _, item := range multi {
		var schemaErr *openapi3.SchemaError
		if !errors.As(item, &schemaErr) {
			continue
		}
		message := c.message(entry, c.describeSchemaError(entry, schemaErr))
		if seen[message] {
			continue
		}
		seen[message] = true
		out = append(out, FieldError{Name: key, Message: message})
	}

	if len(out) == 0 {
		out = append(out, FieldError{Name: key, Message: c.message(entry, fmt.Sprintf("%s is not valid", entry.label))})
	}
	return out
}

func (c *Component) describeSchemaError(entry schemaEntry, err *openapi3.SchemaError) string {
	label := entry.label
	schema := err.Schema
	if schema == nil {
		schema = entry.schema
	}

	switch err.SchemaField {
	case "enum":
		return fmt.Sprintf("%s must be an item from the list", label)
	case "pattern":
		switch c.Type {
		case definition.TypeEmail:
			return fmt.Sprintf("%s must be a valid email address", label)
		case definition.TypeTelephone:
			return fmt.Sprintf("%s must be a valid telephone number", label)
		case definition.TypeDate, definition.TypeDateParts:
			return fmt.Sprintf("%s must be a real date", label)
		default:
			return fmt.Sprintf("%s is not in the correct format", label)
		}
	case "minLength":
		return fmt.Sprintf("%s must be at least %d characters", label, schema.MinLength)
	case "maxLength":
		if schema.MaxLength != nil {
			return fmt.Sprintf("%s must be %d characters or fewer", label, *schema.MaxLength)
		}
	case "minimum":
		if schema.Min != nil {
			return fmt.Sprintf("%s must be %s or higher", label, formatNumber(*schema.Min))
		}
	case "maximum":
		if schema.Max != nil {
			return fmt.Sprintf("%s must be %s or lower", label, formatNumber(*schema.Max))
		}
	case "type":
		if schema.Type != nil && schema.Type.Is("integer") {
			return fmt.Sprintf("%s must be a whole number", label)
		}
	}
	return fmt.Sprintf("%s is not valid", label)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// coerceValue converts a wire value (usually a string from an HTML form)
// into the typed representation the schema fragment validates.
func coerceValue(raw any, schema *openapi3.Schema) (any, error) {
	if schema.Type == nil {
		return raw, nil
	}

	switch {
	case schema.Type.Is("boolean"):
		return coerceBoolValue(raw)
	case schema.Type.Is("number"), schema.Type.Is("integer"):
		return coerceNumberValue(raw)
	case schema.Type.Is("array"):
		return coerceArrayValue(raw, schema)
	default:
		return coerceStringValue(raw), nil
	}
}

func coerceBoolValue(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("component: %q is not a boolean", v)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("component: %T is not a boolean", raw)
	}
}

func coerceNumberValue(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("component: %q is not a number", v)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("component: %T is not a number", raw)
	}
}

func coerceArrayValue(raw any, schema *openapi3.Schema) (any, error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	default:
		// A single submitted value is promoted to a one-element answer.
		items = []any{raw}
	}

	itemSchema := openapi3.NewStringSchema()
	if schema.Items != nil && schema.Items.Value != nil {
		itemSchema = schema.Items.Value
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		coerced, err := coerceValue(item, itemSchema)
		if err != nil {
			return nil, err
		}
		out = append(out, coerced)
	}
	return out, nil
}

func coerceStringValue(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// isEmpty reports whether a wire value counts as "not answered".
func isEmpty(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// emptyValue is the canonical normalization for optional unanswered fields:
// empty string for text-shaped answers, nil for everything else.
func emptyValue(schema *openapi3.Schema) any {
	if schema.Type != nil && schema.Type.Is("string") {
		return ""
	}
	return nil
}

func intValue(value any) (int, bool) {
	f, ok := value.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}
