package indices

type fieldIndexDef struct {
	name       string
	ignoreCase bool
}

// Field specifies an index on a single field. Multi-valued fields (lists,
// sets, maps) produce one index row per distinct value.
// The only option is IgnoreCase.
func Field(name string, options ...fieldIndexOption) Definition {
	fi := fieldIndexDef{name: name}
	for _, opt := range options {
		opt.apply(&fi)
	}
	return fi
}

type fieldIndexOption interface {
	apply(fi *fieldIndexDef)
}

// IgnoreCase is an option to Field that makes the index case-insensitive.
// Text values are lower-cased before they are written when the backend
// compares case-insensitively, so values that only differ in case share a
// row.
var IgnoreCase ignoreCase

type ignoreCase struct{}

func (ignoreCase) apply(fi *fieldIndexDef) {
	fi.ignoreCase = true
}

func (fid fieldIndexDef) Name() string {
	return fid.name
}

func (fid fieldIndexDef) Fields() []string {
	return []string{fid.name}
}

func (fid fieldIndexDef) CaseSensitive() bool {
	return !fid.ignoreCase
}
