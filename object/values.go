package object

import (
	"strconv"
	"strings"
)

// Location is a geographic point
type Location struct {
	X float64 // longitude
	Y float64 // latitude
}

// WKT returns the well-known text representation
func (l Location) WKT() string {
	var b strings.Builder
	b.WriteString("POINT(")
	l.appendCoords(&b)
	b.WriteByte(')')
	return b.String()
}

func (l Location) appendCoords(b *strings.Builder) {
	b.WriteString(strconv.FormatFloat(l.X, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(l.Y, 'f', -1, 64))
}

// String implements fmt.Stringer
func (l Location) String() string {
	return l.WKT()
}

// Region is a geographic area made of one or more closed polygons
type Region struct {
	Polygons [][]Location
}

// WKT returns the well-known text representation. Open rings are closed.
func (r Region) WKT() string {
	var b strings.Builder
	b.WriteString("MULTIPOLYGON(")
	for i, polygon := range r.Polygons {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("((")
		for j, point := range polygon {
			if j > 0 {
				b.WriteByte(',')
			}
			point.appendCoords(&b)
		}
		if n := len(polygon); n > 0 && polygon[0] != polygon[n-1] {
			b.WriteByte(',')
			polygon[0].appendCoords(&b)
		}
		b.WriteString("))")
	}
	b.WriteByte(')')
	return b.String()
}

// String implements fmt.Stringer
func (r Region) String() string {
	return r.WKT()
}

// Enum is implemented by enumerated values; the index stores the symbolic
// name
type Enum interface {
	EnumName() string
}

// Label is a ready-made Enum for decoded or ad hoc enumerated values
type Label string

// EnumName implements Enum
func (l Label) EnumName() string {
	return string(l)
}
