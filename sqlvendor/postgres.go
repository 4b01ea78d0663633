package sqlvendor

import (
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Postgres is the PostgreSQL dialect with PostGIS geometry
type Postgres struct {
	generic
}

// Name implements Vendor
func (Postgres) Name() string {
	return "postgres"
}

// AppendIdentifier implements Vendor
func (Postgres) AppendIdentifier(b *strings.Builder, name string) {
	b.WriteString(pq.QuoteIdentifier(name))
}

// AppendBindLocation implements Vendor
func (Postgres) AppendBindLocation(b *strings.Builder) {
	b.WriteString("ST_GeomFromText(?, 4326)")
}

// AppendBindRegion implements Vendor
func (Postgres) AppendBindRegion(b *strings.Builder) {
	b.WriteString("ST_GeomFromText(?, 4326)")
}

// BindValue implements Vendor
func (Postgres) BindValue(v any) any {
	return bindCommon(v)
}

// Rebind implements Vendor: placeholders become $1, $2...
func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// TablesQuery implements Vendor
func (Postgres) TablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()"
}
