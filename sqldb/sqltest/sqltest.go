// Package sqltest creates throwaway SQLite index databases for tests
package sqltest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/ridge/must/v2"
	"github.com/ridge/quartz/catalog"
	"github.com/ridge/quartz/sqldb"
	"github.com/ridge/quartz/sqlvendor"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite" // driver
)

// MaxValues is the number of value columns created in every index table
const MaxValues = 3

// Config is passed to Open
type Config struct {
	// Tables lists the index tables to create; the Symbol table is always
	// created
	Tables []string

	// Path, if set, is the file holding the database, shared by several
	// connections. Otherwise the database lives in memory on a single
	// connection.
	Path string

	IndexSpatial       bool
	ComparesIgnoreCase bool
}

// Open creates a database holding the given tables.
//
// Code holding a transaction must not create symbols: the symbol store
// either waits for the single in-memory connection or fails on the lock of a
// file database.
func Open(ctx context.Context, t *testing.T, config Config) *sqldb.Database {
	var db *sql.DB
	if config.Path != "" {
		db = must.OK1(sql.Open("sqlite", config.Path))
		db.SetMaxOpenConns(8)
	} else {
		db = must.OK1(sql.Open("sqlite", ":memory:"))
		db.SetMaxOpenConns(1)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range DDL(config.Tables...) {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	d, err := sqldb.New(ctx, db, sqldb.Config{
		Driver:             "sqlite",
		IndexSpatial:       config.IndexSpatial,
		ComparesIgnoreCase: config.ComparesIgnoreCase,
	})
	require.NoError(t, err)
	return d
}

func generation(name string) *catalog.Generation {
	for _, k := range catalog.Kinds() {
		for _, g := range catalog.Generations(k) {
			if g.Name == name {
				return g
			}
		}
	}
	panic(fmt.Sprintf("unknown index table %s", name))
}

// DDL returns SQLite statements creating the Symbol table and the given
// index tables
func DDL(tables ...string) []string {
	v := sqlvendor.SQLite{}
	ident := func(b *strings.Builder, name string) { v.AppendIdentifier(b, name) }

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	ident(&b, sqldb.SymbolTable)
	b.WriteString(" (")
	ident(&b, "symbolId")
	b.WriteString(" INTEGER PRIMARY KEY AUTOINCREMENT, ")
	ident(&b, "value")
	b.WriteString(" TEXT NOT NULL UNIQUE)")
	res := []string{b.String()}

	for _, name := range tables {
		g := generation(name)
		b.Reset()
		b.WriteString("CREATE TABLE ")
		ident(&b, g.Name)
		b.WriteString(" (")
		ident(&b, g.IDColumn)
		b.WriteString(" TEXT NOT NULL, ")
		if g.TypeIDColumn != "" {
			ident(&b, g.TypeIDColumn)
			b.WriteString(" TEXT NOT NULL, ")
		}
		ident(&b, g.KeyColumn)
		if g.Keying == catalog.ByName {
			b.WriteString(" TEXT NOT NULL")
		} else {
			b.WriteString(" INTEGER NOT NULL")
		}
		for i := 0; i < MaxValues; i++ {
			b.WriteString(", ")
			ident(&b, g.ValueColumnName(i))
		}
		b.WriteString(")")
		res = append(res, b.String())
	}
	return res
}

// Row is one index table row as stored
type Row struct {
	ID     string
	TypeID string
	Key    any
	Values []any
}

// Rows returns every row of an index table ordered by id, key and value
func Rows(ctx context.Context, t *testing.T, d *sqldb.Database, table string) []Row {
	g := generation(table)
	v := sqlvendor.SQLite{}

	var b strings.Builder
	b.WriteString("SELECT ")
	v.AppendIdentifier(&b, g.IDColumn)
	b.WriteString(", ")
	if g.TypeIDColumn != "" {
		v.AppendIdentifier(&b, g.TypeIDColumn)
	} else {
		b.WriteString("''")
	}
	b.WriteString(", ")
	v.AppendIdentifier(&b, g.KeyColumn)
	for i := 0; i < MaxValues; i++ {
		b.WriteString(", ")
		v.AppendIdentifier(&b, g.ValueColumnName(i))
	}
	b.WriteString(" FROM ")
	v.AppendIdentifier(&b, g.Name)
	b.WriteString(" ORDER BY 1, 3, 4")

	rows, err := d.DB().QueryContext(ctx, b.String())
	require.NoError(t, err)
	defer rows.Close()

	var res []Row
	for rows.Next() {
		var r Row
		values := make([]any, MaxValues)
		dest := []any{&r.ID, &r.TypeID, &r.Key}
		for i := range values {
			dest = append(dest, &values[i])
		}
		require.NoError(t, rows.Scan(dest...))
		for len(values) > 0 && values[len(values)-1] == nil {
			values = values[:len(values)-1]
		}
		r.Values = values
		res = append(res, r)
	}
	require.NoError(t, rows.Err())
	return res
}
