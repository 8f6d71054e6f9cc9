package workflow

import (
	"fmt"
	"sort"
	"sync"

	"ada/internal/domain"
)

// Registry maps workflow names to implementations. It is filled at process
// start and read concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]Workflow
}

func NewRegistry() *Registry {
	return &Registry{workflows: map[string]Workflow{}}
}

// Register adds w. Declared param types and transports are checked here so a
// misconfigured workflow never reaches execution.
func (r *Registry) Register(w Workflow) error {
	name := w.Name()
	if name == "" {
		return fmt.Errorf("workflow: empty name")
	}
	for key, typ := range w.Requirements() {
		if !typ.Valid() {
			return fmt.Errorf("workflow %s: param %s has unknown type %q", name, key, typ)
		}
	}
	for _, t := range w.Transports() {
		if !t.Valid() {
			return fmt.Errorf("workflow %s: unknown transport %q", name, t)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.workflows[name]; dup {
		return fmt.Errorf("workflow %s: already registered", name)
	}
	r.workflows[name] = w
	return nil
}

// MustRegister is Register for process start-up, where a failure is a programming error.
func (r *Registry) MustRegister(ws ...Workflow) {
	for _, w := range ws {
		if err := r.Register(w); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Resolve(name string) (Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[name]
	return w, ok
}

// All returns the registered workflows sorted by name.
func (r *Registry) All() []Workflow {
	r.mu.RLock()
	out := make([]Workflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		out = append(out, w)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Transports implements domain.Catalog.
func (r *Registry) Transports(name string) ([]domain.Transport, bool) {
	w, ok := r.Resolve(name)
	if !ok {
		return nil, false
	}
	return w.Transports(), true
}

var _ domain.Catalog = (*Registry)(nil)
