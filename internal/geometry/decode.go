package geometry

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// UnmarshalJSON decodes a position leniently. Values that are not a
// two-element array of numbers decode to an empty Position instead of
// failing, so one malformed pair never rejects a whole ring.
func (p *Position) UnmarshalJSON(data []byte) error {
	*p = nil

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) != 2 {
		return nil
	}

	out := make(Position, 0, 2)
	for _, r := range raw {
		var v *float64
		if err := json.Unmarshal(r, &v); err != nil || v == nil {
			return nil
		}
		out = append(out, *v)
	}
	*p = out
	return nil
}

type typedGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	Geometry    json.RawMessage `json:"geometry"`
}

// ParseJSON decodes a request geometry. It accepts a flat ring of
// [lon, lat] pairs, a GeoJSON Polygon or MultiPolygon object, or a GeoJSON
// Feature wrapping one of those.
func ParseJSON(data []byte) (Input, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, eris.Wrap(ErrInvalid, "geometry is required")
	}

	switch data[0] {
	case '[':
		var ring Ring
		if err := json.Unmarshal(data, &ring); err != nil {
			return nil, eris.Wrap(ErrInvalid, "ring must be an array of [lon, lat] pairs")
		}
		return ring, nil

	case '{':
		var tg typedGeometry
		if err := json.Unmarshal(data, &tg); err != nil {
			return nil, eris.Wrap(ErrInvalid, "malformed geometry object")
		}
		return parseTyped(tg)

	default:
		return nil, eris.Wrap(ErrInvalid, "geometry must be an array or an object")
	}
}

func parseTyped(tg typedGeometry) (Input, error) {
	switch tg.Type {
	case "Feature":
		if len(tg.Geometry) == 0 {
			return nil, eris.Wrap(ErrInvalid, "feature has no geometry")
		}
		var inner typedGeometry
		if err := json.Unmarshal(tg.Geometry, &inner); err != nil {
			return nil, eris.Wrap(ErrInvalid, "malformed feature geometry")
		}
		if inner.Type == "Feature" {
			return nil, eris.Wrap(ErrInvalid, "nested feature")
		}
		return parseTyped(inner)

	case string(KindPolygon):
		var poly Polygon
		if err := unmarshalCoordinates(tg.Coordinates, &poly); err != nil {
			return nil, err
		}
		return poly, nil

	case string(KindMultiPolygon):
		var mp MultiPolygon
		if err := unmarshalCoordinates(tg.Coordinates, &mp); err != nil {
			return nil, err
		}
		return mp, nil

	case "":
		return nil, eris.Wrap(ErrInvalid, "geometry type is required")

	default:
		return nil, eris.Wrapf(ErrInvalid, "unsupported geometry type %q", tg.Type)
	}
}

func unmarshalCoordinates(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return eris.Wrap(ErrInvalid, "coordinates are required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return eris.Wrap(ErrInvalid, "coordinates have the wrong nesting")
	}
	return nil
}
