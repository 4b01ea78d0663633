package indices

import (
	"github.com/ridge/quartz/meta"
)

// Definition is a blueprint for an index. Blueprints are created before the
// struct they are declared on, so the same definition can be shared among
// several types that contain the covered fields.
type Definition interface {
	Name() string     // covered field names joined by ","
	Fields() []string // covered field names in column order
	CaseSensitive() bool
}

// Declare adds indexes built from the definitions to the struct.
// Fails if a definition covers a field the struct lacks.
func Declare(s *meta.Struct, defs ...Definition) error {
	for _, def := range defs {
		if _, err := s.AddIndex(def.CaseSensitive(), def.Fields()...); err != nil {
			return err
		}
	}
	return nil
}
