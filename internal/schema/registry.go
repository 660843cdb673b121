package schema

import (
	"fmt"
	"sort"
)

// Registry holds the known entity schemas in display order.
type Registry struct {
	order  []string
	byName map[string]Schema
}

// NewRegistry validates the schemas and checks that references resolve.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{byName: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate schema %s", s.Name)
		}
		r.byName[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	for _, s := range schemas {
		for _, f := range s.Fields {
			if !f.IsReference() {
				continue
			}
			if _, ok := r.byName[f.Ref]; !ok {
				return nil, fmt.Errorf("schema %s: field %s references unknown entity %s", s.Name, f.Name, f.Ref)
			}
		}
	}
	return r, nil
}

// Default returns the institution's entities.
func Default() *Registry {
	r, err := NewRegistry(
		Department(),
		Program(),
		Course(),
		Prerequisite(),
		Stream(),
		Student(),
		Teacher(),
		Vendor(),
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the schema registered under name.
func (r *Registry) Get(name string) (Schema, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// All returns the schemas in registration order.
func (r *Registry) All() []Schema {
	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns the registered entity names sorted alphabetically.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
