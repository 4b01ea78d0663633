package object

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/quartz/meta"
	"golang.org/x/text/language"
)

// ErrUnknownType is returned when an encoded object names a type the
// registry does not know
var ErrUnknownType = errors.New("unknown type")

// Envelope is the JSON form of an object:
//
//	{"_id": "...", "_type": "com.example.Article", "title": "...", "tags": ["a", "b"]}
//
// Record fields hold either {"_ref": "<id>"} for references or a nested
// envelope for embedded objects. Dates are RFC 3339 strings or epoch
// milliseconds, locations are {"x": .., "y": ..}, regions are lists of
// polygons of [x, y] pairs.
type Envelope map[string]json.RawMessage

// Decode parses a JSON object envelope
func Decode(reg *meta.Registry, data []byte) (*State, error) {
	var env Envelope
	if err := unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}
	return decodeEnvelope(reg, env)
}

func unmarshal(data []byte, v any) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	return d.Decode(v)
}

func decodeEnvelope(reg *meta.Registry, env Envelope) (*State, error) {
	s := &State{Values: map[string]any{}}

	if raw, ok := env["_id"]; ok {
		id, err := decodeUUID(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid _id: %w", err)
		}
		s.ID = id
	}
	if raw, ok := env["_type"]; ok {
		var qualifier string
		if err := json.Unmarshal(raw, &qualifier); err != nil {
			return nil, fmt.Errorf("invalid _type: %w", err)
		}
		t, ok := reg.Type(qualifier)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, qualifier)
		}
		s.Type = t
		s.TypeID = t.ID
	}

	for name, raw := range env {
		if name == "_id" || name == "_type" {
			continue
		}
		f := lookupField(reg, s.Type, name)
		if f == nil {
			var v any
			if err := unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			s.Values[name] = v
			continue
		}
		v, err := decodeField(reg, f, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		s.Values[name] = v
	}
	return s, nil
}

func lookupField(reg *meta.Registry, t *meta.Struct, name string) *meta.Field {
	if t != nil {
		if f, ok := t.Field(name); ok {
			return f
		}
	}
	if f, ok := reg.Environment().Field(name); ok {
		return f
	}
	return nil
}

func decodeField(reg *meta.Registry, f *meta.Field, raw json.RawMessage) (any, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	if !f.Collection {
		return decodeItem(reg, f.ItemType, raw)
	}
	switch bytes.TrimSpace(raw)[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		values := make([]any, 0, len(items))
		for _, item := range items {
			v, err := decodeItem(reg, f.ItemType, item)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	case '{':
		var items map[string]json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		values := make(map[string]any, len(items))
		for k, item := range items {
			v, err := decodeItem(reg, f.ItemType, item)
			if err != nil {
				return nil, err
			}
			values[k] = v
		}
		return values, nil
	default:
		return nil, fmt.Errorf("collection field %s must be an array or an object", f.InternalName)
	}
}

func decodeItem(reg *meta.Registry, t meta.ItemType, raw json.RawMessage) (any, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	switch t {
	case meta.TypeText:
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case meta.TypeBoolean:
		var b bool
		err := json.Unmarshal(raw, &b)
		return b, err
	case meta.TypeNumber:
		var n json.Number
		if err := unmarshal(raw, &n); err != nil {
			return nil, err
		}
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return n.Float64()
	case meta.TypeDate:
		return decodeDate(raw)
	case meta.TypeUUID:
		return decodeUUID(raw)
	case meta.TypeLocation:
		var l struct{ X, Y float64 }
		err := json.Unmarshal(raw, &l)
		return Location{X: l.X, Y: l.Y}, err
	case meta.TypeRegion:
		var polygons [][][2]float64
		if err := json.Unmarshal(raw, &polygons); err != nil {
			return nil, err
		}
		r := Region{Polygons: make([][]Location, 0, len(polygons))}
		for _, polygon := range polygons {
			points := make([]Location, 0, len(polygon))
			for _, p := range polygon {
				points = append(points, Location{X: p[0], Y: p[1]})
			}
			r.Polygons = append(r.Polygons, points)
		}
		return r, nil
	case meta.TypeLocale:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return language.Parse(s)
	case meta.TypeURI:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return url.Parse(s)
	case meta.TypeRecord:
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, err
		}
		if ref, ok := env["_ref"]; ok {
			id, err := decodeUUID(ref)
			if err != nil {
				return nil, fmt.Errorf("invalid _ref: %w", err)
			}
			return &State{ID: id, Values: map[string]any{}}, nil
		}
		return decodeEnvelope(reg, env)
	default:
		var v any
		err := unmarshal(raw, &v)
		return v, err
	}
}

func decodeUUID(raw json.RawMessage) (uuid.UUID, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(s)
}

func decodeDate(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	var millis int64
	if err := json.Unmarshal(raw, &millis); err != nil {
		return time.Time{}, fmt.Errorf("date must be an RFC 3339 string or epoch milliseconds: %w", err)
	}
	return time.UnixMilli(millis).UTC(), nil
}
