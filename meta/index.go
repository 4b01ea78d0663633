package meta

import (
	"strings"
)

// Index describes one declared index on a Struct: the ordered list of
// fields it covers and whether values are compared case-sensitively.
//
// Indexes are derived from the schema and never persisted.
type Index struct {
	Fields        []string
	CaseSensitive bool

	// Parent is the struct declaring the index
	Parent *Struct
}

// Field returns the first covered field name, which drives the choice of
// the index kind
func (ix *Index) Field() string {
	return ix.Fields[0]
}

// FieldAt returns the descriptor of the i-th covered field
func (ix *Index) FieldAt(i int) *Field {
	f, _ := ix.Parent.Field(ix.Fields[i])
	return f
}

// UniqueName identifies the index across the whole schema: type-level
// indexes are prefixed with the declaring type's qualifier.
func (ix *Index) UniqueName() string {
	var b strings.Builder
	if ix.Parent != nil && ix.Parent.IsType() {
		b.WriteString(ix.Parent.Qualifier)
		b.WriteByte('/')
	}
	b.WriteString(strings.Join(ix.Fields, ","))
	return b.String()
}

func (ix *Index) String() string {
	return ix.UniqueName()
}
