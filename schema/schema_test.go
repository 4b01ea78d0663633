package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/parallel"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/test"
	"github.com/stretchr/testify/require"
)

const articleYAML = `
environment:
  fields:
    - {name: created, type: date}
  indexes:
    - fields: [created]
types:
  - qualifier: example.Article
    id: 6f1a0a4e-3c1e-4a55-9b7a-2d0f5c1e9e41
    fields:
      - {name: title, type: text}
      - {name: tags, type: text, collection: true}
      - {name: address, type: record, embedded: true}
    indexes:
      - fields: [title]
        ignoreCase: true
      - fields: [tags, title]
  - qualifier: example.Address
    embedded: true
    fields:
      - {name: city}
`

func TestParse(t *testing.T) {
	reg, err := Parse([]byte(articleYAML))
	require.NoError(t, err)

	env := reg.Environment()
	require.False(t, env.IsType())
	require.Len(t, env.Indexes(), 1)
	require.Equal(t, "created", env.Indexes()[0].UniqueName())

	article, ok := reg.Type("example.Article")
	require.True(t, ok)
	require.Equal(t, uuid.MustParse("6f1a0a4e-3c1e-4a55-9b7a-2d0f5c1e9e41"), article.ID)

	tags, ok := article.Field("tags")
	require.True(t, ok)
	require.True(t, tags.Collection)
	require.Equal(t, meta.TypeText, tags.ItemType)
	require.Equal(t, "example.Article/tags", tags.UniqueName())

	address, ok := article.Field("address")
	require.True(t, ok)
	require.True(t, address.Embedded)

	ixs := article.Indexes()
	require.Len(t, ixs, 2)
	require.Equal(t, "example.Article/title", ixs[0].UniqueName())
	require.False(t, ixs[0].CaseSensitive)
	require.Equal(t, []string{"tags", "title"}, ixs[1].Fields)
	require.True(t, ixs[1].CaseSensitive)

	addressType, ok := reg.Type("example.Address")
	require.True(t, ok)
	require.True(t, addressType.Embedded)
	require.Equal(t, uuid.NewSHA1(uuid.NameSpaceOID, []byte("example.Address")), addressType.ID)
	city, _ := addressType.Field("city")
	require.Equal(t, meta.TypeAny, city.ItemType)
}

func TestParseEmpty(t *testing.T) {
	reg, err := Parse(nil)
	require.NoError(t, err)
	require.Empty(t, reg.Types())
	require.Empty(t, reg.Environment().Indexes())
}

func TestParseErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":     "tpyes: []",
		"item type":       "types: [{qualifier: a, fields: [{name: x, type: blob}]}]",
		"unknown field":   "types: [{qualifier: a, indexes: [{fields: [x]}]}]",
		"no qualifier":    "types: [{fields: []}]",
		"duplicate type":  "types: [{qualifier: a}, {qualifier: a}]",
		"duplicate field": "types: [{qualifier: a, fields: [{name: x}, {name: x}]}]",
		"embedded text":   "types: [{qualifier: a, fields: [{name: x, type: text, embedded: true}]}]",
		"bad id":          "types: [{qualifier: a, id: nope}]",
		"empty index":     "environment: {indexes: [{fields: []}]}",
	} {
		_, err := Parse([]byte(doc))
		require.Error(t, err, name)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "schema.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o644))
	_, err := Load(path)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("types: [{qualifier: example.Note}]"), 0o644))
	reg, err := Load(path)
	require.NoError(t, err)
	live := meta.NewLive(reg)

	reload := make(chan struct{})
	group := test.GroupWithTimeout(t, 30*time.Second)
	group.Spawn("watch", parallel.Fail, func(ctx context.Context) error {
		return Watch(ctx, path, live, reload)
	})

	hasType := func(qualifier string) func() bool {
		return func() bool {
			_, ok := live.Load().Type(qualifier)
			return ok
		}
	}

	// the watcher may not be installed yet, so keep writing
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte(articleYAML), 0o644); err != nil {
			return false
		}
		return hasType("example.Article")()
	}, 5*time.Second, 50*time.Millisecond)

	// a broken file keeps the current schema
	require.NoError(t, os.WriteFile(path, []byte("types: ["), 0o644))
	reload <- struct{}{}
	require.True(t, hasType("example.Article")())

	require.NoError(t, os.WriteFile(path, []byte("types: [{qualifier: example.Memo}]"), 0o644))
	reload <- struct{}{}
	require.Eventually(t, hasType("example.Memo"), 5*time.Second, 10*time.Millisecond)
}
