package check

import (
	"fmt"
)

// Registry maps a spec kind to the Check implementation evaluating it.
// Registration happens during startup wiring; lookups after that are
// read-only, so no locking is needed.
type Registry struct {
	checks map[string]Check
}

func NewRegistry() *Registry {
	return &Registry{
		checks: make(map[string]Check),
	}
}

func (r *Registry) Register(kind string, c Check) {
	r.checks[kind] = c
}

// Lookup returns the check registered for kind. Specs referencing an
// unregistered kind are a configuration error and fail startup.
func (r *Registry) Lookup(kind string) (Check, error) {
	c, ok := r.checks[kind]
	if !ok {
		return nil, fmt.Errorf("Registry.Lookup: no check registered for kind %q", kind)
	}
	return c, nil
}

func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.checks))
	for kind := range r.checks {
		kinds = append(kinds, kind)
	}
	return kinds
}
