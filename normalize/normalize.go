// Package normalize converts field values into the form stored in index
// tables.
package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ridge/quartz/meta"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultByteLimit caps the UTF-8 length of stored text values
const DefaultByteLimit = 500

// Options carries backend properties that affect conversion
type Options struct {
	// ComparesIgnoreCase is set when the backend compares text
	// case-insensitively; only then are case-insensitive indexes lower-cased
	ComparesIgnoreCase bool
}

// Func converts the value of the field-th covered field of an index
type Func func(opts Options, ix *meta.Index, field int, value any) any

// Default passes dates, numbers, locations, regions and UUIDs through,
// normalizes text and stringifies everything else.
func Default(opts Options, ix *meta.Index, field int, value any) any {
	if f := ix.FieldAt(field); f != nil {
		switch f.ItemType {
		case meta.TypeDate, meta.TypeNumber, meta.TypeLocation, meta.TypeRegion:
			return value
		}
	}
	switch v := value.(type) {
	case uuid.UUID:
		return v
	case string:
		s := CollapseWhitespace(v)
		if !ix.CaseSensitive && opts.ComparesIgnoreCase {
			s = Lower(s)
		}
		return TruncateBytes(s, DefaultByteLimit)
	default:
		return String(value)
	}
}

// StringV1 is the RecordString conversion: the string form, untrimmed, capped
// at 400 characters (UTF-16 code units)
func StringV1(_ Options, _ *meta.Index, _ int, value any) any {
	return TruncateChars(String(value), 400)
}

// StringV2 is the RecordString2 conversion: UTF-8 bytes capped at 500
func StringV2(_ Options, _ *meta.Index, _ int, value any) any {
	return TruncateBytes(String(value), DefaultByteLimit)
}

// StringV3 is the RecordString3 conversion: trimmed, lower-cased for
// case-insensitive indexes, UTF-8 bytes capped at 500
func StringV3(_ Options, ix *meta.Index, _ int, value any) any {
	s := Trim(String(value))
	if !ix.CaseSensitive {
		s = Lower(s)
	}
	return TruncateBytes(s, DefaultByteLimit)
}

// StringV4 is the RecordString4 conversion: trimmed with internal whitespace
// collapsed, lower-cased for case-insensitive indexes, UTF-8 bytes capped at
// 500
func StringV4(_ Options, ix *meta.Index, _ int, value any) any {
	s := CollapseWhitespace(String(value))
	if !ix.CaseSensitive {
		s = Lower(s)
	}
	return TruncateBytes(s, DefaultByteLimit)
}

// String returns the canonical string form of a value
func String(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(value)
	}
}

// Lower lower-cases text using English rules
func Lower(s string) string {
	return cases.Lower(language.English).String(s)
}

// Trim removes leading and trailing ASCII control characters and spaces
func Trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
}

func isCollapsible(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// CollapseWhitespace trims s and replaces every run of whitespace inside it
// with a single space
func CollapseWhitespace(s string) string {
	s = Trim(s)
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if isCollapsible(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte(' ')
			inSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TruncateBytes returns the UTF-8 encoding of s cut to at most limit bytes.
// The cut is a plain byte prefix and may split a multi-byte sequence.
func TruncateBytes(s string, limit int) []byte {
	b := []byte(s)
	if len(b) <= limit {
		return b
	}
	return b[:limit:limit]
}

// TruncateChars cuts s to at most limit UTF-16 code units. A surrogate pair
// that would straddle the limit is dropped as a whole.
func TruncateChars(s string, limit int) string {
	units := 0
	for i, r := range s {
		n := 1
		if r >= 0x10000 && r != utf8.RuneError {
			n = 2
		}
		if units+n > limit {
			return s[:i]
		}
		units += n
	}
	return s
}

// IsBlank tells whether a converted value must not be written
func IsBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []byte:
		return len(v) == 0
	default:
		return false
	}
}
