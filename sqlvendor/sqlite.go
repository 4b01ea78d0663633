package sqlvendor

import (
	"strings"
)

// SQLite is the SQLite dialect. Geometry is stored as WKT text.
type SQLite struct {
	generic
}

// Name implements Vendor
func (SQLite) Name() string {
	return "sqlite"
}

// AppendIdentifier implements Vendor
func (SQLite) AppendIdentifier(b *strings.Builder, name string) {
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(name, `"`, `""`))
	b.WriteByte('"')
}

// AppendBindLocation implements Vendor
func (SQLite) AppendBindLocation(b *strings.Builder) {
	b.WriteByte('?')
}

// AppendBindRegion implements Vendor
func (SQLite) AppendBindRegion(b *strings.Builder) {
	b.WriteByte('?')
}

// BindValue implements Vendor
func (SQLite) BindValue(v any) any {
	return bindCommon(v)
}

// TablesQuery implements Vendor
func (SQLite) TablesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table'"
}
