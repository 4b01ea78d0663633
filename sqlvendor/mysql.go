package sqlvendor

import (
	"strings"

	"github.com/google/uuid"
)

// MySQL is the MySQL dialect. UUIDs are stored as BINARY(16).
type MySQL struct {
	generic
}

// Name implements Vendor
func (MySQL) Name() string {
	return "mysql"
}

// AppendIdentifier implements Vendor
func (MySQL) AppendIdentifier(b *strings.Builder, name string) {
	b.WriteByte('`')
	b.WriteString(strings.ReplaceAll(name, "`", "``"))
	b.WriteByte('`')
}

// AppendBindLocation implements Vendor
func (MySQL) AppendBindLocation(b *strings.Builder) {
	b.WriteString("ST_GeomFromText(?)")
}

// AppendBindRegion implements Vendor
func (MySQL) AppendBindRegion(b *strings.Builder) {
	b.WriteString("ST_GeomFromText(?)")
}

// BindValue implements Vendor
func (MySQL) BindValue(v any) any {
	if u, ok := v.(uuid.UUID); ok {
		return u[:]
	}
	return bindCommon(v)
}

// TablesQuery implements Vendor
func (MySQL) TablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE()"
}
