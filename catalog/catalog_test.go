package catalog

import (
	"testing"

	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/symbol"
	"github.com/ridge/quartz/test"
	"github.com/stretchr/testify/require"
)

type fakeSchema struct {
	tables  map[string]bool
	spatial bool
}

func (s fakeSchema) HasTable(name string) bool { return s.tables[name] }
func (s fakeSchema) IndexSpatial() bool        { return s.spatial }

func schemaWith(spatial bool, tables ...string) fakeSchema {
	s := fakeSchema{tables: map[string]bool{}, spatial: spatial}
	for _, t := range tables {
		s.tables[t] = true
	}
	return s
}

func names(gens []*Generation) []string {
	var res []string
	for _, g := range gens {
		res = append(res, g.Name)
	}
	return res
}

func TestReadTable(t *testing.T) {
	require.Equal(t, "RecordString4", ReadTable(schemaWith(false), String).Name)
	require.Equal(t, "RecordString2", ReadTable(schemaWith(false, "RecordString2", "RecordString4"), String).Name)
	require.Equal(t, "RecordNumber", ReadTable(schemaWith(false, "RecordNumber", "RecordNumber3"), Number).Name)
}

func TestWriteTables(t *testing.T) {
	require.Equal(t, []string{"RecordString4"}, names(WriteTables(schemaWith(false), String)))
	require.Equal(t, []string{"RecordString2", "RecordString4"},
		names(WriteTables(schemaWith(false, "RecordString2", "RecordString4"), String)))
	require.Equal(t, []string{"RecordUuid", "RecordUuid2", "RecordUuid3"},
		names(WriteTables(schemaWith(false, "RecordUuid", "RecordUuid2", "RecordUuid3"), UUID)))
}

func TestWriteTablesSpatial(t *testing.T) {
	s := schemaWith(false, "RecordLocation3", "RecordRegion2")
	require.Empty(t, WriteTables(s, Location))
	require.Empty(t, WriteTables(s, Region))

	s.spatial = true
	require.Equal(t, []string{"RecordLocation3"}, names(WriteTables(s, Location)))
	require.Equal(t, []string{"RecordRegion2"}, names(WriteTables(s, Region)))
}

func TestWriteTablesReadOnly(t *testing.T) {
	old := &Generation{Name: "Old", ReadOnly: true}
	current := &Generation{Name: "Current"}
	frozen := &Generation{Name: "Frozen", ReadOnly: true}

	require.Equal(t, []string{"Current"}, names(writeTables(schemaWith(false, "Old", "Current"), []*Generation{old, current})))
	require.Equal(t, []string{"Current"}, names(writeTables(schemaWith(false), []*Generation{old, current})))
	require.Empty(t, writeTables(schemaWith(false, "Old"), []*Generation{current, frozen}))
}

func TestLayout(t *testing.T) {
	g := Generations(String)[0]
	require.Equal(t, "recordId", g.IDColumn)
	require.Equal(t, "name", g.KeyColumn)
	require.Empty(t, g.TypeIDColumn)

	g = Generations(String)[3]
	require.Equal(t, "id", g.IDColumn)
	require.Equal(t, "symbolId", g.KeyColumn)
	require.Equal(t, "typeId", g.TypeIDColumn)
	require.Equal(t, "value", g.ValueColumnName(0))
	require.Equal(t, "value2", g.ValueColumnName(1))
	require.Equal(t, "value3", g.ValueColumnName(2))

	require.Equal(t, BySymbol, Generations(Region)[0].Keying)
	require.Len(t, Generations(Location), 3)
	require.Len(t, Generations(Region), 2)
	require.Len(t, Generations(Number), 3)
	require.Len(t, Generations(String), 4)
	require.Len(t, Generations(UUID), 3)
}

func TestClassify(t *testing.T) {
	require.Equal(t, Number, Classify(meta.TypeDate))
	require.Equal(t, Number, Classify(meta.TypeNumber))
	require.Equal(t, Location, Classify(meta.TypeLocation))
	require.Equal(t, Region, Classify(meta.TypeRegion))
	require.Equal(t, UUID, Classify(meta.TypeRecord))
	require.Equal(t, UUID, Classify(meta.TypeUUID))
	require.Equal(t, String, Classify(meta.TypeText))
	require.Equal(t, String, Classify(meta.TypeBoolean))
}

func TestForIndex(t *testing.T) {
	env := meta.NewEnvironment()
	env.AddField(meta.Field{InternalName: "when", ItemType: meta.TypeDate})
	env.AddField(meta.Field{InternalName: "name", ItemType: meta.TypeText})
	ix, err := env.AddIndex(true, "when", "name")
	require.NoError(t, err)
	require.Equal(t, Number, ForIndex(ix))
}

func TestKeys(t *testing.T) {
	ctx := test.Context(t)
	symbols := symbol.NewCache(symbol.NewMemStore())

	key, err := Generations(String)[0].Key(ctx, symbols, "tags")
	require.NoError(t, err)
	require.Equal(t, "tags", key)

	g := Generations(String)[3]
	_, ok, err := g.ReadKey(ctx, symbols, "tags")
	require.NoError(t, err)
	require.False(t, ok)

	key, err = g.Key(ctx, symbols, "tags")
	require.NoError(t, err)
	read, ok, err := g.ReadKey(ctx, symbols, "tags")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, key, read)
}
