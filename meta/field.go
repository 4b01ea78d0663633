package meta

import (
	"fmt"
)

// ItemType is the semantic type of a field's items. For collection fields it
// is the type of the elements.
type ItemType string

// ItemType values
const (
	TypeAny      ItemType = "any"
	TypeBoolean  ItemType = "boolean"
	TypeDate     ItemType = "date"
	TypeNumber   ItemType = "number"
	TypeText     ItemType = "text"
	TypeLocation ItemType = "location"
	TypeRegion   ItemType = "region"
	TypeRecord   ItemType = "record"
	TypeUUID     ItemType = "uuid"
	TypeLocale   ItemType = "locale"
	TypeURI      ItemType = "uri"
)

var itemTypes = map[ItemType]bool{
	TypeAny: true, TypeBoolean: true, TypeDate: true, TypeNumber: true, TypeText: true,
	TypeLocation: true, TypeRegion: true, TypeRecord: true, TypeUUID: true,
	TypeLocale: true, TypeURI: true,
}

// ParseItemType validates an item type name
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(s)
	if !itemTypes[t] {
		return "", fmt.Errorf("unknown item type %q", s)
	}
	return t, nil
}

// Field describes one field of a Struct.
// All fields are read-only once the field is added to a Struct.
type Field struct {
	InternalName string
	ItemType     ItemType

	// Collection is set for list, set and map fields
	Collection bool

	// Embedded marks record fields whose referenced objects are indexed in
	// place instead of by their id
	Embedded bool

	// Computed derives the field value from the owning object's values.
	// Computed fields are read by path rather than by direct lookup.
	Computed func(values map[string]any) any

	// Declaring is the qualifier of the declaring type; empty for
	// environment-wide fields
	Declaring string
}

// IsComputed tells whether the field is derived rather than stored
func (f *Field) IsComputed() bool {
	return f.Computed != nil
}

// UniqueName returns the field name qualified by its declaring type
func (f *Field) UniqueName() string {
	if f.Declaring == "" {
		return f.InternalName
	}
	return f.Declaring + "/" + f.InternalName
}

func (f *Field) String() string {
	if f.Collection {
		return fmt.Sprintf("%s (%s collection)", f.InternalName, f.ItemType)
	}
	return fmt.Sprintf("%s (%s)", f.InternalName, f.ItemType)
}
