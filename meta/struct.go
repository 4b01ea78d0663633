package meta

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrUnknownField is returned when an index references a field that does not
// exist in its struct
var ErrUnknownField = errors.New("unknown field")

// Meta is a type for dummy fields bearing tags for the containing structure
type Meta struct{}

// Struct describes an object type or the environment (the set of fields and
// indexes shared by every object).
//
// A Struct is built once at startup and is read-only afterwards.
type Struct struct {
	Qualifier string
	ID        uuid.UUID // type id; zero for the environment
	Embedded  bool      // objects of this type are always indexed in place

	fields  []*Field
	byName  map[string]int // index into fields
	indexes []*Index
	isType  bool
}

// NewEnvironment creates an empty environment struct
func NewEnvironment() *Struct {
	return &Struct{byName: map[string]int{}}
}

// NewType creates an empty object type
func NewType(qualifier string, id uuid.UUID) *Struct {
	return &Struct{
		Qualifier: qualifier,
		ID:        id,
		byName:    map[string]int{},
		isType:    true,
	}
}

// IsType tells an object type apart from the environment
func (s *Struct) IsType() bool {
	return s.isType
}

// String returns the qualifier
func (s *Struct) String() string {
	if !s.isType {
		return "<environment>"
	}
	return s.Qualifier
}

// AddField adds a field to the struct and returns its descriptor.
// Panics on duplicate names.
func (s *Struct) AddField(f Field) *Field {
	if _, ok := s.byName[f.InternalName]; ok {
		panicf("duplicate field %s in %s", f.InternalName, s)
	}
	if f.ItemType == "" {
		f.ItemType = TypeAny
	}
	if s.isType {
		f.Declaring = s.Qualifier
	}
	field := &f
	s.byName[f.InternalName] = len(s.fields)
	s.fields = append(s.fields, field)
	return field
}

// Field finds the field with a given internal name
func (s *Struct) Field(name string) (*Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

// Fields returns all fields in declaration order
func (s *Struct) Fields() []*Field {
	return s.fields
}

// AddIndex declares an index covering the given fields
func (s *Struct) AddIndex(caseSensitive bool, fields ...string) (*Index, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("index on %s covers no fields", s)
	}
	for _, name := range fields {
		if _, ok := s.byName[name]; !ok {
			return nil, fmt.Errorf("index on %s covers field %s: %w", s, name, ErrUnknownField)
		}
	}
	ix := &Index{
		Fields:        append([]string(nil), fields...),
		CaseSensitive: caseSensitive,
		Parent:        s,
	}
	s.indexes = append(s.indexes, ix)
	return ix, nil
}

// Indexes returns all indexes in declaration order
func (s *Struct) Indexes() []*Index {
	return s.indexes
}

func panicf(format string, a ...any) {
	panic(fmt.Sprintf(format, a...))
}
