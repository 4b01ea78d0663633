// Package object holds the dynamic state of stored objects: their identity,
// type and field values.
package object

import (
	"strings"

	"github.com/google/uuid"
	"github.com/ridge/quartz/meta"
)

// Recordable is implemented by values that are stored objects or wrap one
type Recordable interface {
	QuartzState() *State
}

// State is the current state of one object.
//
// Values are keyed by field internal name. A value may be a scalar, a slice,
// a map, or another object (*State or Recordable) for record fields.
type State struct {
	ID     uuid.UUID
	TypeID uuid.UUID
	Type   *meta.Struct // nil for untyped objects
	Values map[string]any
}

// New creates a state for an object of the given type
func New(t *meta.Struct, id uuid.UUID, values map[string]any) *State {
	s := &State{ID: id, Type: t, Values: values}
	if t != nil {
		s.TypeID = t.ID
	}
	if s.Values == nil {
		s.Values = map[string]any{}
	}
	return s
}

// QuartzState implements Recordable
func (s *State) QuartzState() *State {
	return s
}

// Get returns the value of a stored field
func (s *State) Get(name string) any {
	return s.Values[name]
}

// ByPath resolves a "/"-separated path of field names, descending into
// embedded objects and maps. Computed fields along the path are evaluated
// against the values of the object that declares them.
//
// Returns nil if any step is missing.
func (s *State) ByPath(path string) any {
	var current any = s
	for _, name := range strings.Split(path, "/") {
		switch v := current.(type) {
		case Recordable:
			current = v.QuartzState().field(name)
		case map[string]any:
			current = v[name]
		default:
			return nil
		}
		if current == nil {
			return nil
		}
	}
	return current
}

func (s *State) field(name string) any {
	if s.Type != nil {
		if f, ok := s.Type.Field(name); ok && f.IsComputed() {
			return f.Computed(s.Values)
		}
	}
	return s.Values[name]
}
