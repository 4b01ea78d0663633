// Package permute expands an object's field values into the rows every
// declared index needs.
//
// Multi-valued fields contribute one value per element, and compound indexes
// get the full cross product of their fields' values. Embedded objects are
// indexed in place under a prefixed index name.
package permute

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/object"
	"golang.org/x/text/language"
)

// IndexValue is the set of rows one index needs for one object
type IndexValue struct {
	// Prefixes is the chain of embedding fields leading to the indexed
	// object; empty for the object's own indexes
	Prefixes []*meta.Field
	Index    *meta.Index

	// Rows holds one permutation per row; every row has one column per
	// covered field
	Rows [][]any
}

// UniqueName is the stable key of the index value in index tables
func (iv IndexValue) UniqueName() string {
	if len(iv.Prefixes) == 0 {
		return iv.Index.UniqueName()
	}
	var b strings.Builder
	b.WriteString(iv.Prefixes[0].UniqueName())
	b.WriteByte('/')
	for _, f := range iv.Prefixes[1:] {
		b.WriteString(f.InternalName)
		b.WriteByte('/')
	}
	b.WriteString(strings.Join(iv.Index.Fields, ","))
	return b.String()
}

// InternalType returns the item type of the last covered field
func (iv IndexValue) InternalType() meta.ItemType {
	if f := iv.Index.FieldAt(len(iv.Index.Fields) - 1); f != nil {
		return f.ItemType
	}
	return meta.TypeAny
}

func (iv IndexValue) String() string {
	return fmt.Sprintf("%s (%d rows)", iv.UniqueName(), len(iv.Rows))
}

// Compute returns the index values of every environment index, then every
// index of the object's type, including those of embedded objects
func Compute(env *meta.Struct, st *object.State) []IndexValue {
	var acc []IndexValue
	acc = collectStruct(acc, env, st, nil, env, st.Values)
	if st.Type != nil {
		acc = collectStruct(acc, env, st, nil, st.Type, st.Values)
	}
	return acc
}

// ComputeIndex is a version of Compute returning only the values of ix
func ComputeIndex(env *meta.Struct, st *object.State, ix *meta.Index) []IndexValue {
	var res []IndexValue
	for _, iv := range Compute(env, st) {
		if iv.Index == ix {
			res = append(res, iv)
		}
	}
	return res
}

func collectStruct(acc []IndexValue, env *meta.Struct, root *object.State, prefixes []*meta.Field, s *meta.Struct, values map[string]any) []IndexValue {
	for _, ix := range s.Indexes() {
		acc = collectIndex(acc, env, root, prefixes, s, values, ix)
	}
	return acc
}

func collectIndex(acc []IndexValue, env *meta.Struct, root *object.State, prefixes []*meta.Field, s *meta.Struct, values map[string]any, ix *meta.Index) []IndexValue {
	sets := make([]*valueSet, 0, len(ix.Fields))
	for _, name := range ix.Fields {
		f, ok := s.Field(name)
		if !ok {
			return acc
		}

		var v any
		if f.IsComputed() {
			v = root.ByPath(fieldPath(prefixes, f))
		} else {
			v = values[f.InternalName]
		}

		set := &valueSet{}
		acc = collectValues(acc, env, root, prefixes, f, set, v)
		if len(set.items) == 0 {
			return acc
		}
		sets = append(sets, set)
	}

	return append(acc, IndexValue{
		Prefixes: prefixes,
		Index:    ix,
		Rows:     permutations(sets),
	})
}

func fieldPath(prefixes []*meta.Field, f *meta.Field) string {
	var b strings.Builder
	for _, p := range prefixes {
		b.WriteString(p.InternalName)
		b.WriteByte('/')
	}
	b.WriteString(f.InternalName)
	return b.String()
}

func collectValues(acc []IndexValue, env *meta.Struct, root *object.State, prefixes []*meta.Field, f *meta.Field, set *valueSet, v any) []IndexValue {
	switch v := v.(type) {
	case nil:
		return acc
	case object.Recordable:
		st := v.QuartzState()
		if st == nil {
			return acc
		}
		if f.ItemType == meta.TypeRecord && (f.Embedded || (st.Type != nil && st.Type.Embedded)) {
			next := append(prefixes[:len(prefixes):len(prefixes)], f)
			acc = collectStruct(acc, env, root, next, env, st.Values)
			if st.Type != nil {
				acc = collectStruct(acc, env, root, next, st.Type, st.Values)
			}
			return acc
		}
		set.add(st.ID)
	case uuid.UUID:
		set.add(v)
	case string:
		set.add(v)
	case []byte:
		set.add(string(v))
	case time.Time:
		set.add(v.UnixMilli())
	case object.Enum:
		set.add(v.EnumName())
	case language.Tag:
		set.add(v.String())
	case *url.URL:
		set.add(v.String())
	case url.URL:
		set.add(v.String())
	case []any:
		for _, item := range v {
			acc = collectValues(acc, env, root, prefixes, f, set, item)
		}
	case map[string]any:
		for _, item := range v {
			acc = collectValues(acc, env, root, prefixes, f, set, item)
		}
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				acc = collectValues(acc, env, root, prefixes, f, set, rv.Index(i).Interface())
			}
		case reflect.Map:
			it := rv.MapRange()
			for it.Next() {
				acc = collectValues(acc, env, root, prefixes, f, set, it.Value().Interface())
			}
		case reflect.Pointer:
			if rv.IsNil() {
				return acc
			}
			set.add(v)
		default:
			set.add(v)
		}
	}
	return acc
}

// permutations returns the cross product of sets. Column i cycles through the
// values of sets[i] in blocks whose size is the product of the sizes of the
// sets after it, so every combination appears exactly once.
func permutations(sets []*valueSet) [][]any {
	total := 1
	for _, set := range sets {
		total *= len(set.items)
	}

	rows := make([][]any, total)
	for p := range rows {
		rows[p] = make([]any, len(sets))
	}

	partition := total
	for i, set := range sets {
		partition /= len(set.items)
		for p := 0; p < total; {
			for _, v := range set.items {
				for k := 0; k < partition; k++ {
					rows[p][i] = v
					p++
				}
			}
		}
	}
	return rows
}

// valueSet keeps distinct values in insertion order
type valueSet struct {
	seen  map[any]bool
	items []any
}

type printedKey string

func (s *valueSet) add(v any) {
	var key any = v
	if !reflect.TypeOf(v).Comparable() {
		key = printedKey(fmt.Sprintf("%T %#v", v, v))
	}
	if s.seen == nil {
		s.seen = map[any]bool{}
	}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.items = append(s.items, v)
}
