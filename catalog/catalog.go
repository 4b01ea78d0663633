// Package catalog describes the physical index tables.
//
// Every index kind is served by an ordered list of table generations, oldest
// first. Readers use the oldest generation present in the database; writers
// fan out to every present generation so that old readers keep working while
// the data is migrated.
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/normalize"
	"github.com/ridge/quartz/symbol"
)

// Kind is the semantic bucket of an index
type Kind int

// Kind values
const (
	Location Kind = iota
	Region
	Number
	String
	UUID
)

var kindNames = [...]string{
	Location: "location",
	Region:   "region",
	Number:   "number",
	String:   "string",
	UUID:     "uuid",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Spatial tells whether the kind holds geometry
func (k Kind) Spatial() bool {
	return k == Location || k == Region
}

// Kinds returns all kinds in declaration order
func Kinds() []Kind {
	return []Kind{Location, Region, Number, String, UUID}
}

// Keying says what is stored in the key column of a table
type Keying int

// Keying values
const (
	ByName   Keying = iota // the index unique name
	BySymbol               // the symbol id of the index unique name
)

// Generation is one physical table layout of a kind
type Generation struct {
	Kind    Kind
	Version int
	Name    string

	IDColumn     string
	TypeIDColumn string // empty when the table has no type id
	KeyColumn    string
	ValueColumn  string

	ReadOnly bool
	Keying   Keying

	// Convert turns field values into column values
	Convert normalize.Func
}

func (g *Generation) String() string {
	return g.Name
}

// ValueColumnName returns the column holding the i-th covered field:
// value, value2, value3...
func (g *Generation) ValueColumnName(i int) string {
	if i == 0 {
		return g.ValueColumn
	}
	return g.ValueColumn + strconv.Itoa(i+1)
}

// Key returns the key column value for an index unique name, creating the
// symbol if necessary
func (g *Generation) Key(ctx context.Context, symbols symbol.Resolver, name string) (any, error) {
	if g.Keying == ByName {
		return name, nil
	}
	id, err := symbols.ForWrite(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("key for %s in %s: %w", name, g.Name, err)
	}
	return id, nil
}

// ReadKey is a version of Key that never creates symbols. The boolean is
// false when no row of this table can carry the name.
func (g *Generation) ReadKey(ctx context.Context, symbols symbol.Resolver, name string) (any, bool, error) {
	if g.Keying == ByName {
		return name, true, nil
	}
	id, ok, err := symbols.ForRead(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("read key for %s in %s: %w", name, g.Name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return id, true, nil
}

func byName(kind Kind, version int, name string) *Generation {
	return &Generation{
		Kind:        kind,
		Version:     version,
		Name:        name,
		IDColumn:    "recordId",
		KeyColumn:   "name",
		ValueColumn: "value",
		Keying:      ByName,
		Convert:     normalize.Default,
	}
}

func bySymbol(kind Kind, version int, name string) *Generation {
	return &Generation{
		Kind:        kind,
		Version:     version,
		Name:        name,
		IDColumn:    "id",
		KeyColumn:   "symbolId",
		ValueColumn: "value",
		Keying:      BySymbol,
		Convert:     normalize.Default,
	}
}

func byTypeAndSymbol(kind Kind, version int, name string) *Generation {
	g := bySymbol(kind, version, name)
	g.TypeIDColumn = "typeId"
	return g
}

func withConvert(g *Generation, convert normalize.Func) *Generation {
	g.Convert = convert
	return g
}

var generations = map[Kind][]*Generation{
	Location: {
		byName(Location, 1, "RecordLocation"),
		bySymbol(Location, 2, "RecordLocation2"),
		byTypeAndSymbol(Location, 3, "RecordLocation3"),
	},
	Region: {
		bySymbol(Region, 1, "RecordRegion"),
		byTypeAndSymbol(Region, 2, "RecordRegion2"),
	},
	Number: {
		byName(Number, 1, "RecordNumber"),
		bySymbol(Number, 2, "RecordNumber2"),
		byTypeAndSymbol(Number, 3, "RecordNumber3"),
	},
	String: {
		withConvert(byName(String, 1, "RecordString"), normalize.StringV1),
		withConvert(bySymbol(String, 2, "RecordString2"), normalize.StringV2),
		withConvert(bySymbol(String, 3, "RecordString3"), normalize.StringV3),
		withConvert(byTypeAndSymbol(String, 4, "RecordString4"), normalize.StringV4),
	},
	UUID: {
		byName(UUID, 1, "RecordUuid"),
		bySymbol(UUID, 2, "RecordUuid2"),
		byTypeAndSymbol(UUID, 3, "RecordUuid3"),
	},
}

// Generations returns the generations of a kind, oldest first
func Generations(k Kind) []*Generation {
	return generations[k]
}

// Schema is the view of the database the catalog needs
type Schema interface {
	HasTable(name string) bool
	IndexSpatial() bool
}

// ReadTable returns the oldest generation present in the database, or the
// newest one if none is
func ReadTable(s Schema, k Kind) *Generation {
	return readTable(s, generations[k])
}

func readTable(s Schema, gens []*Generation) *Generation {
	for _, g := range gens {
		if s.HasTable(g.Name) {
			return g
		}
	}
	return gens[len(gens)-1]
}

// WriteTables returns every present, writable generation. On an empty
// database this is the newest generation alone. Spatial kinds have no write
// tables unless spatial indexing is enabled.
func WriteTables(s Schema, k Kind) []*Generation {
	if k.Spatial() && !s.IndexSpatial() {
		return nil
	}
	return writeTables(s, generations[k])
}

func writeTables(s Schema, gens []*Generation) []*Generation {
	var res []*Generation
	for _, g := range gens {
		if s.HasTable(g.Name) && !g.ReadOnly {
			res = append(res, g)
		}
	}
	if len(res) == 0 {
		if last := gens[len(gens)-1]; !last.ReadOnly {
			res = append(res, last)
		}
	}
	return res
}

// Classify returns the kind storing values of an item type
func Classify(t meta.ItemType) Kind {
	switch t {
	case meta.TypeDate, meta.TypeNumber:
		return Number
	case meta.TypeLocation:
		return Location
	case meta.TypeRegion:
		return Region
	case meta.TypeRecord, meta.TypeUUID:
		return UUID
	default:
		return String
	}
}

// ForIndex returns the kind of an index, decided by its first field
func ForIndex(ix *meta.Index) Kind {
	f := ix.FieldAt(0)
	if f == nil {
		return String
	}
	return Classify(f.ItemType)
}
