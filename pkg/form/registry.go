package form

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is one published form version.
type Entry struct {
	ID          string
	Version     int
	Model       *Model
	PublishedAt time.Time
}

// Registry holds the published forms. Publishing swaps a copy-on-write map
// atomically, so readers always observe complete models and never block on
// writers.
type Registry struct {
	mu    sync.Mutex
	forms atomic.Value // map[string]*Entry
	clock func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{clock: time.Now}
	r.forms.Store(map[string]*Entry{})
	return r
}

// Publish installs a model under the given id, replacing any previous
// version. The previous version keeps serving in-flight requests that
// already resolved it.
func (r *Registry) Publish(id string, model *Model) (*Entry, error) {
	if id == "" {
		return nil, errors.New("form: publish: empty form id")
	}
	if model == nil {
		return nil, errors.New("form: publish: nil model")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snapshot()
	version := 1
	if prev, ok := current[id]; ok {
		version = prev.Version + 1
	}
	entry := &Entry{
		ID:          id,
		Version:     version,
		Model:       model,
		PublishedAt: r.clock().UTC(),
	}

	next := make(map[string]*Entry, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[id] = entry
	r.forms.Store(next)
	return entry, nil
}

// Get resolves the currently published version of a form.
func (r *Registry) Get(id string) (*Entry, bool) {
	entry, ok := r.snapshot()[id]
	return entry, ok
}

// List returns every published form, sorted by id.
func (r *Registry) List() []*Entry {
	current := r.snapshot()
	out := make([]*Entry, 0, len(current))
	for _, entry := range current {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove unpublishes a form. Resolved entries keep working.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snapshot()
	if _, ok := current[id]; !ok {
		return false
	}
	next := make(map[string]*Entry, len(current))
	for k, v := range current {
		if k != id {
			next[k] = v
		}
	}
	r.forms.Store(next)
	return true
}

func (r *Registry) snapshot() map[string]*Entry {
	return r.forms.Load().(map[string]*Entry)
}
