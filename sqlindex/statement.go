package sqlindex

import (
	"fmt"
	"strings"

	"github.com/ridge/quartz/catalog"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/sqldb"
	"github.com/ridge/quartz/sqlvendor"
)

func appendValuePlaceholder(v sqlvendor.Vendor, b *strings.Builder, kind catalog.Kind) {
	switch kind {
	case catalog.Location:
		v.AppendBindLocation(b)
	case catalog.Region:
		v.AppendBindRegion(b)
	default:
		v.AppendPlaceholder(b)
	}
}

// insertStatement builds
//
//	INSERT INTO t (id,[typeId,]key,value,value2...) VALUES (?, [?, ]?, v1, v2...)
func insertStatement(v sqlvendor.Vendor, g *catalog.Generation, ix *meta.Index) (string, error) {
	if g.ReadOnly {
		return "", fmt.Errorf("insert into %s: %w", g.Name, sqldb.ErrReadOnlyTable)
	}
	kind := catalog.ForIndex(ix)
	n := len(ix.Fields)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	v.AppendIdentifier(&b, g.Name)
	b.WriteString(" (")
	v.AppendIdentifier(&b, g.IDColumn)
	b.WriteString(",")
	if g.TypeIDColumn != "" {
		v.AppendIdentifier(&b, g.TypeIDColumn)
		b.WriteString(",")
	}
	v.AppendIdentifier(&b, g.KeyColumn)
	for i := 0; i < n; i++ {
		b.WriteString(",")
		v.AppendIdentifier(&b, g.ValueColumnName(i))
	}

	b.WriteString(") VALUES (")
	v.AppendPlaceholder(&b)
	b.WriteString(", ")
	if g.TypeIDColumn != "" {
		v.AppendPlaceholder(&b)
		b.WriteString(", ")
	}
	v.AppendPlaceholder(&b)
	for i := 0; i < n; i++ {
		b.WriteString(", ")
		appendValuePlaceholder(v, &b, kind)
	}
	b.WriteString(")")
	return b.String(), nil
}

// updateStatement builds
//
//	UPDATE t SET value = v1, value2 = v2... WHERE id = ? [AND typeId = ?] AND key = ?
func updateStatement(v sqlvendor.Vendor, g *catalog.Generation, ix *meta.Index) (string, error) {
	if g.ReadOnly {
		return "", fmt.Errorf("update %s: %w", g.Name, sqldb.ErrReadOnlyTable)
	}
	kind := catalog.ForIndex(ix)

	var b strings.Builder
	b.WriteString("UPDATE ")
	v.AppendIdentifier(&b, g.Name)
	b.WriteString(" SET ")
	for i := range ix.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		v.AppendIdentifier(&b, g.ValueColumnName(i))
		b.WriteString(" = ")
		appendValuePlaceholder(v, &b, kind)
	}

	b.WriteString(" WHERE ")
	appendCondition(v, &b, g.IDColumn)
	if g.TypeIDColumn != "" {
		b.WriteString(" AND ")
		appendCondition(v, &b, g.TypeIDColumn)
	}
	b.WriteString(" AND ")
	appendCondition(v, &b, g.KeyColumn)
	return b.String(), nil
}

// deleteStatement builds
//
//	DELETE FROM t WHERE id IN (?, ?...) [AND key = ?]
func deleteStatement(v sqlvendor.Vendor, g *catalog.Generation, ids int, withKey bool) string {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	v.AppendIdentifier(&b, g.Name)
	b.WriteString(" WHERE ")
	v.AppendIdentifier(&b, g.IDColumn)
	b.WriteString(" IN (")
	for i := 0; i < ids; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		v.AppendPlaceholder(&b)
	}
	b.WriteString(")")
	if withKey {
		b.WriteString(" AND ")
		appendCondition(v, &b, g.KeyColumn)
	}
	return b.String()
}

func appendCondition(v sqlvendor.Vendor, b *strings.Builder, column string) {
	v.AppendIdentifier(b, column)
	b.WriteString(" = ")
	v.AppendPlaceholder(b)
}
