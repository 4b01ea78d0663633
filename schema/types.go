package schema

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/ridge/quartz/meta"
)

// FromTypes builds a registry from Go struct types carrying quartz tags, see
// meta.Survey. The environment has no fields. A type without an id gets one
// derived from its qualifier, as in a schema file.
//
// Malformed tags are reported as errors.
func FromTypes(types ...reflect.Type) (reg *meta.Registry, err error) {
	defer func() {
		if r := recover(); r != nil {
			reg, err = nil, fmt.Errorf("invalid struct tags: %v", r)
		}
	}()

	structs := make([]*meta.Struct, 0, len(types))
	for _, t := range types {
		s := meta.Survey(t)
		if s.ID == uuid.Nil {
			s.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.Qualifier))
		}
		structs = append(structs, s)
	}
	return meta.NewRegistry(meta.NewEnvironment(), structs...)
}
