package indices

import (
	"strings"
)

type compoundIndexDef struct {
	defs []Definition
}

// Compound specifies a compound index built from several simpler indices.
// Only produces rows for objects for which every covered field has at least
// one value; multi-valued fields produce the cross product of their values.
//
// Example:
//
//	var indexAuthorTag = indices.Compound(
//	    indices.Field("author"),
//	    indices.Field("tags", indices.IgnoreCase),
//	)
//
// The index kind (and so the table family) is chosen by the first field.
// The compound index is case-sensitive unless any part ignores case.
func Compound(defs ...Definition) Definition {
	return compoundIndexDef{defs: defs}
}

func (cid compoundIndexDef) Name() string {
	return strings.Join(cid.Fields(), ",")
}

func (cid compoundIndexDef) Fields() []string {
	fields := make([]string, 0, len(cid.defs))
	for _, def := range cid.defs {
		fields = append(fields, def.Fields()...)
	}
	return fields
}

func (cid compoundIndexDef) CaseSensitive() bool {
	for _, def := range cid.defs {
		if !def.CaseSensitive() {
			return false
		}
	}
	return true
}
