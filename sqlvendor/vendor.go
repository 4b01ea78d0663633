// Package sqlvendor builds the vendor-specific fragments of SQL statements.
//
// Statements are assembled with "?" placeholders; Rebind converts them to
// the vendor's placeholder syntax right before execution.
package sqlvendor

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/quartz/object"
)

// Vendor is a SQL dialect
type Vendor interface {
	// Name is the name the vendor is selected by in configuration
	Name() string

	AppendIdentifier(b *strings.Builder, name string)
	AppendPlaceholder(b *strings.Builder)

	// AppendBindLocation appends a placeholder taking a location in WKT form
	AppendBindLocation(b *strings.Builder)

	// AppendBindRegion appends a placeholder taking a region in WKT form
	AppendBindRegion(b *strings.Builder)

	// AppendValue appends v as a SQL literal
	AppendValue(b *strings.Builder, v any)

	// BindValue converts v into a driver argument
	BindValue(v any) any

	// Rebind converts "?" placeholders into the vendor's syntax
	Rebind(query string) string

	// TablesQuery returns a query listing the table names of the current
	// schema, one per row
	TablesQuery() string
}

// ByName returns the vendor with a given name
func ByName(name string) (Vendor, error) {
	switch name {
	case "postgres":
		return Postgres{}, nil
	case "mysql":
		return MySQL{}, nil
	case "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unknown SQL vendor %q", name)
	}
}

// generic holds the behavior shared by all vendors
type generic struct{}

func (generic) AppendPlaceholder(b *strings.Builder) {
	b.WriteByte('?')
}

func (generic) AppendValue(b *strings.Builder, v any) {
	appendLiteral(b, v)
}

func (generic) Rebind(query string) string {
	return query
}

func appendLiteral(b *strings.Builder, v any) {
	switch v := v.(type) {
	case nil:
		b.WriteString("NULL")
	case string:
		appendQuoted(b, v)
	case []byte:
		b.WriteString("X'")
		b.WriteString(hex.EncodeToString(v))
		b.WriteByte('\'')
	case uuid.UUID:
		appendQuoted(b, v.String())
	case bool:
		if v {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	case int:
		b.WriteString(strconv.Itoa(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case time.Time:
		b.WriteString(strconv.FormatInt(v.UnixMilli(), 10))
	case object.Location:
		appendQuoted(b, v.WKT())
	case object.Region:
		appendQuoted(b, v.WKT())
	default:
		appendQuoted(b, fmt.Sprint(v))
	}
}

func appendQuoted(b *strings.Builder, s string) {
	b.WriteByte('\'')
	b.WriteString(strings.ReplaceAll(s, "'", "''"))
	b.WriteByte('\'')
}

func bindCommon(v any) any {
	switch v := v.(type) {
	case object.Location:
		return v.WKT()
	case object.Region:
		return v.WKT()
	case time.Time:
		return v.UnixMilli()
	case uuid.UUID:
		return v.String()
	default:
		return v
	}
}
