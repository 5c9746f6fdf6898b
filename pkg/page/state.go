package page

import (
	"fmt"
	"strings"
)

// ProgressKey is the top-level state key holding the visited-page trail.
const ProgressKey = "progress"

// ScopedState extracts the slice of session state this page reads and
// writes: the section map for sectioned pages, the requested iteration for
// repeating pages, the whole state otherwise. iteration is 1-based and
// ignored for non-repeating pages.
func (c *Controller) ScopedState(state map[string]any, iteration int) map[string]any {
	if c.Def.Section == "" {
		return state
	}

	if c.Kind == KindRepeating {
		list := iterationList(state, c.Def.Section)
		idx := iteration - 1
		if idx < 0 || idx >= len(list) {
			return map[string]any{}
		}
		if m, ok := list[idx].(map[string]any); ok {
			return m
		}
		return map[string]any{}
	}

	if m, ok := state[c.Def.Section].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Prefill expands the stored answers for this page back into form keys.
func (c *Controller) Prefill(state map[string]any, iteration int) map[string]any {
	return c.Components.PayloadFromState(c.ScopedState(state, iteration))
}

// StateUpdate folds validated form values into the top-level keys to merge
// into session state. Sectioned answers nest under the section name;
// repeating answers land in the requested 1-based iteration, padding the
// iteration list with empty entries when the index is past the end.
func (c *Controller) StateUpdate(current map[string]any, values map[string]any, iteration int) (map[string]any, error) {
	answers, err := c.Components.StateFromValidPayload(values)
	if err != nil {
		return nil, err
	}

	if c.Def.Section == "" {
		return answers, nil
	}

	if c.Kind == KindRepeating {
		if iteration < 1 {
			return nil, fmt.Errorf("page: %q: iteration %d out of range", c.Def.Path, iteration)
		}
		list := iterationList(current, c.Def.Section)
		next := make([]any, 0, iteration)
		for i := 0; i < iteration || i < len(list); i++ {
			entry := map[string]any{}
			if i < len(list) {
				if m, ok := list[i].(map[string]any); ok {
					entry = cloneMap(m)
				}
			}
			next = append(next, entry)
		}
		target := next[iteration-1].(map[string]any)
		for key, value := range answers {
			target[key] = value
		}
		return map[string]any{c.Def.Section: next}, nil
	}

	merged := map[string]any{}
	if existing, ok := current[c.Def.Section].(map[string]any); ok {
		merged = cloneMap(existing)
	}
	for key, value := range answers {
		merged[key] = value
	}
	return map[string]any{c.Def.Section: merged}, nil
}

// NextIndex is the 1-based index of the next fresh iteration for a
// repeating page.
func (c *Controller) NextIndex(state map[string]any) int {
	return len(iterationList(state, c.Def.Section)) + 1
}

// RemoveAt drops the given 1-based iteration and reindexes the rest
// contiguously. The returned map is the top-level merge to apply; the
// progress trail is re-homed so back links do not point at the removed
// iteration.
func (c *Controller) RemoveAt(state map[string]any, iteration int) (map[string]any, error) {
	list := iterationList(state, c.Def.Section)
	idx := iteration - 1
	if idx < 0 || idx >= len(list) {
		return nil, fmt.Errorf("page: %q: iteration %d out of range", c.Def.Path, iteration)
	}

	next := make([]any, 0, len(list)-1)
	next = append(next, list[:idx]...)
	next = append(next, list[idx+1:]...)

	update := map[string]any{c.Def.Section: next}
	if trail, ok := state[ProgressKey].([]any); ok {
		update[ProgressKey] = pruneProgress(trail, c.Def.Path)
	}
	return update, nil
}

// AppendProgress records a page visit on the trail, skipping immediate
// repeats of the same entry.
func AppendProgress(state map[string]any, entry string) []any {
	trail, _ := state[ProgressKey].([]any)
	if len(trail) > 0 && trail[len(trail)-1] == entry {
		return trail
	}
	out := make([]any, 0, len(trail)+1)
	out = append(out, trail...)
	return append(out, entry)
}

// pruneProgress removes trail entries for the given page path so the trail
// stays consistent after an iteration is removed.
func pruneProgress(trail []any, path string) []any {
	out := make([]any, 0, len(trail))
	for _, entry := range trail {
		s, ok := entry.(string)
		if ok && (s == path || strings.HasPrefix(s, path+"?")) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func iterationList(state map[string]any, section string) []any {
	list, _ := state[section].([]any)
	return list
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
