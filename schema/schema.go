// Package schema reads object types, fields and indexes from a YAML file:
//
//	environment:
//	  fields:
//	    - {name: created, type: date}
//	  indexes:
//	    - fields: [created]
//	types:
//	  - qualifier: example.Article
//	    id: 6f1a0a4e-3c1e-4a55-9b7a-2d0f5c1e9e41
//	    fields:
//	      - {name: title, type: text}
//	      - {name: tags, type: text, collection: true}
//	      - {name: address, type: record, embedded: true}
//	    indexes:
//	      - fields: [title]
//	        ignoreCase: true
//	      - fields: [tags, title]
//
// A type without an id gets one derived from its qualifier.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/ridge/quartz/indices"
	"github.com/ridge/quartz/meta"
	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned by Load for an empty schema file
var ErrEmpty = errors.New("schema file is empty")

// File is the YAML document
type File struct {
	Environment StructDef `yaml:"environment"`
	Types       []TypeDef `yaml:"types"`
}

// StructDef lists the fields and indexes of the environment or a type
type StructDef struct {
	Fields  []FieldDef `yaml:"fields"`
	Indexes []IndexDef `yaml:"indexes"`
}

// TypeDef defines one object type
type TypeDef struct {
	Qualifier string `yaml:"qualifier"`
	ID        string `yaml:"id"`
	Embedded  bool   `yaml:"embedded"`
	StructDef `yaml:",inline"`
}

// FieldDef defines one field
type FieldDef struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Collection bool   `yaml:"collection"`
	Embedded   bool   `yaml:"embedded"`
}

// IndexDef defines one index. Several fields make a compound index.
type IndexDef struct {
	Fields     []string `yaml:"fields"`
	IgnoreCase bool     `yaml:"ignoreCase"`
}

// Definition returns the index blueprint
func (d IndexDef) Definition() indices.Definition {
	defs := make([]indices.Definition, 0, len(d.Fields))
	for _, name := range d.Fields {
		if d.IgnoreCase {
			defs = append(defs, indices.Field(name, indices.IgnoreCase))
		} else {
			defs = append(defs, indices.Field(name))
		}
	}
	if len(defs) == 1 {
		return defs[0]
	}
	return indices.Compound(defs...)
}

// Load reads a schema file
func Load(path string) (*meta.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	// a file being rewritten is briefly empty
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse builds a registry from YAML. Unknown keys are errors.
func Parse(data []byte) (*meta.Registry, error) {
	var f File
	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)
	if err := d.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return f.Registry()
}

// Registry builds the registry the file describes
func (f File) Registry() (*meta.Registry, error) {
	env := meta.NewEnvironment()
	if err := f.Environment.fill(env); err != nil {
		return nil, err
	}

	types := make([]*meta.Struct, 0, len(f.Types))
	for _, td := range f.Types {
		if td.Qualifier == "" {
			return nil, errors.New("type without qualifier")
		}
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(td.Qualifier))
		if td.ID != "" {
			var err error
			if id, err = uuid.Parse(td.ID); err != nil {
				return nil, fmt.Errorf("type %s: invalid id: %w", td.Qualifier, err)
			}
		}
		t := meta.NewType(td.Qualifier, id)
		t.Embedded = td.Embedded
		if err := td.fill(t); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return meta.NewRegistry(env, types...)
}

func (sd StructDef) fill(s *meta.Struct) error {
	for _, fd := range sd.Fields {
		if fd.Name == "" {
			return fmt.Errorf("%s: field without name", s)
		}
		if _, ok := s.Field(fd.Name); ok {
			return fmt.Errorf("%s: duplicate field %s", s, fd.Name)
		}
		itemType := meta.TypeAny
		if fd.Type != "" {
			var err error
			if itemType, err = meta.ParseItemType(fd.Type); err != nil {
				return fmt.Errorf("%s: field %s: %w", s, fd.Name, err)
			}
		}
		if fd.Embedded && itemType != meta.TypeRecord {
			return fmt.Errorf("%s: field %s: only record fields can be embedded", s, fd.Name)
		}
		s.AddField(meta.Field{
			InternalName: fd.Name,
			ItemType:     itemType,
			Collection:   fd.Collection,
			Embedded:     fd.Embedded,
		})
	}

	defs := make([]indices.Definition, 0, len(sd.Indexes))
	for _, id := range sd.Indexes {
		defs = append(defs, id.Definition())
	}
	return indices.Declare(s, defs...)
}
