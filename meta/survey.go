package meta

import (
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

var (
	metaType     = reflect.TypeOf(Meta{})
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	urlType      = reflect.TypeOf(url.URL{})
	languageType = reflect.TypeOf(language.Tag{})
)

type surveyIndex struct {
	caseSensitive bool
	fields        []string
}

// Survey produces an object type describing a Go struct type.
//
// The struct-level settings live on a field of type Meta:
//
//	type Article struct {
//	    meta.Meta `quartz:"name=com.example.Article,id=2b0e...,compound=author+title"`
//	    Author    uuid.UUID `quartz:"type=record"`
//	    Title     string    `quartz:"index,ignorecase"`
//	    Tags      []string  `quartz:"name=tags,index"`
//	}
//
// Struct-level options: name= (required qualifier), id= (type id), embedded,
// compound= and compound-ci= (compound indexes, fields joined by "+").
//
// Field options: name= (internal name, defaults to the Go name), type=
// (item type, inferred from the Go type when omitted), embedded, index,
// ignorecase, and "-" to skip the field.
//
// Survey panics on malformed tags.
func Survey(t reflect.Type) *Struct {
	if t.Kind() != reflect.Struct {
		panicf("%v expected to be a struct type", t)
	}

	s := &Struct{
		byName: map[string]int{},
		isType: true,
	}
	var indexes []surveyIndex
	surveyFields(t, s, &indexes)

	if s.Qualifier == "" {
		panicf("missing struct-level name setting in struct %v", t)
	}
	for i := range s.fields {
		s.fields[i].Declaring = s.Qualifier
	}
	for _, ix := range indexes {
		if _, err := s.AddIndex(ix.caseSensitive, ix.fields...); err != nil {
			panic(err)
		}
	}
	return s
}

func surveyFields(t reflect.Type, s *Struct, indexes *[]surveyIndex) {
loop:
	for i, n := 0, t.NumField(); i < n; i++ {
		f := t.Field(i)
		options := parseTag(f.Tag)
		switch {
		case f.Type == metaType:
			for _, opt := range options {
				switch opt.key {
				case "name=":
					if s.Qualifier != "" && s.Qualifier != opt.value {
						panicf("conflicting name settings for struct %v: %s vs. %s", t, s.Qualifier, opt.value)
					}
					s.Qualifier = opt.value
				case "id=":
					id, err := uuid.Parse(opt.value)
					if err != nil {
						panicf("invalid type id for struct %v: %s", t, err)
					}
					s.ID = id
				case "embedded":
					s.Embedded = true
				case "compound=", "compound-ci=":
					*indexes = append(*indexes, surveyIndex{
						caseSensitive: opt.key == "compound=",
						fields:        strings.Split(opt.value, "+"),
					})
				default:
					panicf("invalid struct-level option for %v: %s", t, opt)
				}
			}

		case f.Anonymous:
			for _, opt := range options {
				if opt.key == "-" {
					continue loop
				}
				panicf("invalid option for %v.%s: %s", t, f.Name, opt)
			}
			surveyFields(f.Type, s, indexes)

		default:
			field := Field{InternalName: f.Name}
			var index, ignoreCase bool
			for _, opt := range options {
				switch opt.key {
				case "-":
					if len(options) != 1 {
						panicf("option - for field %v.%s cannot be combined with other options", t, f.Name)
					}
					continue loop
				case "name=":
					field.InternalName = opt.value
				case "type=":
					it, err := ParseItemType(opt.value)
					if err != nil {
						panicf("%v.%s: %s", t, f.Name, err)
					}
					field.ItemType = it
				case "embedded":
					field.Embedded = true
				case "index":
					index = true
				case "ignorecase":
					ignoreCase = true
				default:
					panicf("invalid option for %v.%s: %s", t, f.Name, opt)
				}
			}
			if !f.IsExported() {
				panicf("unexported field %v.%s must be skipped using a `quartz:\"-\"` tag", t, f.Name)
			}
			if ignoreCase && !index {
				panicf("option ignorecase for field %v.%s requires index", t, f.Name)
			}
			inferred, collection := inferItemType(f.Type)
			if field.ItemType == "" {
				field.ItemType = inferred
			}
			field.Collection = collection
			if _, ok := s.byName[field.InternalName]; ok {
				panicf("duplicate field name %s in struct %v", field.InternalName, t)
			}
			s.byName[field.InternalName] = len(s.fields)
			s.fields = append(s.fields, &field)
			if index {
				*indexes = append(*indexes, surveyIndex{
					caseSensitive: !ignoreCase,
					fields:        []string{field.InternalName},
				})
			}
		}
	}
}

// inferItemType maps a Go type to an item type, unwrapping pointers and
// collections
func inferItemType(t reflect.Type) (ItemType, bool) {
	collection := false
	for {
		switch t.Kind() {
		case reflect.Pointer:
			t = t.Elem()
			continue
		case reflect.Slice, reflect.Array, reflect.Map:
			if t == uuidType {
				return TypeUUID, collection
			}
			if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
				return TypeAny, collection
			}
			collection = true
			t = t.Elem()
			continue
		}
		break
	}

	switch t {
	case timeType:
		return TypeDate, collection
	case urlType:
		return TypeURI, collection
	case languageType:
		return TypeLocale, collection
	}
	switch t.Kind() {
	case reflect.String:
		return TypeText, collection
	case reflect.Bool:
		return TypeBoolean, collection
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber, collection
	case reflect.Struct:
		return TypeRecord, collection
	default:
		return TypeAny, collection
	}
}
