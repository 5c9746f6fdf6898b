package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Parse decodes and validates a form definition document. The whole document
// is rejected on the first structural problem; no partially valid definition
// is ever returned.
func Parse(raw []byte) (*Definition, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("definition: document is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("definition: decode document: %w", err)
	}

	normaliseItemValues(&def)

	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseFile reads and parses a definition from disk.
func ParseFile(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("definition: read %s: %w", path, err)
	}
	return Parse(raw)
}

// normaliseItemValues converts json.Number item values into float64 so list
// lookups compare against the same representation the evaluator and the
// schema layer use.
func normaliseItemValues(def *Definition) {
	for li := range def.Lists {
		list := &def.Lists[li]
		for ii := range list.Items {
			if num, ok := list.Items[ii].Value.(json.Number); ok {
				if f, err := num.Float64(); err == nil {
					list.Items[ii].Value = f
				}
			}
		}
	}
}
