package meta

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Registry holds the environment and every known object type
type Registry struct {
	env    *Struct
	byName map[string]*Struct
	byID   map[uuid.UUID]*Struct
	types  []*Struct
}

// NewRegistry builds a registry, rejecting duplicate qualifiers and type ids
func NewRegistry(env *Struct, types ...*Struct) (*Registry, error) {
	if env == nil {
		env = NewEnvironment()
	}
	r := &Registry{
		env:    env,
		byName: map[string]*Struct{},
		byID:   map[uuid.UUID]*Struct{},
	}
	for _, t := range types {
		if !t.IsType() {
			return nil, fmt.Errorf("%s is not an object type", t)
		}
		if r.byName[t.Qualifier] != nil {
			return nil, fmt.Errorf("duplicate type %s", t.Qualifier)
		}
		if t.ID != uuid.Nil {
			if other := r.byID[t.ID]; other != nil {
				return nil, fmt.Errorf("types %s and %s share id %s", other, t, t.ID)
			}
			r.byID[t.ID] = t
		}
		r.byName[t.Qualifier] = t
		r.types = append(r.types, t)
	}
	return r, nil
}

// Environment returns the environment struct
func (r *Registry) Environment() *Struct {
	return r.env
}

// Type finds a type by qualifier
func (r *Registry) Type(qualifier string) (*Struct, bool) {
	t, ok := r.byName[qualifier]
	return t, ok
}

// TypeByID finds a type by its id
func (r *Registry) TypeByID(id uuid.UUID) (*Struct, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// Types returns all types in registration order
func (r *Registry) Types() []*Struct {
	return r.types
}

// Live is a registry that can be replaced while in use, e.g. when the schema
// file changes. Safe for concurrent use.
type Live struct {
	current atomic.Pointer[Registry]
}

// NewLive creates a Live holding r
func NewLive(r *Registry) *Live {
	l := &Live{}
	l.current.Store(r)
	return l
}

// Load returns the current registry
func (l *Live) Load() *Registry {
	return l.current.Load()
}

// Store replaces the current registry
func (l *Live) Store(r *Registry) {
	l.current.Store(r)
}

// Environment returns the current environment struct
func (l *Live) Environment() *Struct {
	return l.Load().Environment()
}
