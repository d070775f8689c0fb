package catalog

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Dataset is the raw content read from a Source.
type Dataset struct {
	Records []Record
	// Skipped counts features the source could not decode at all.
	Skipped int
}

// Source reads the boundary dataset from its backing store. Load returns an
// error only when the dataset as a whole cannot be read or parsed; individual
// malformed features are counted in Dataset.Skipped.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Dataset, error)
}

// Identifier property names, most current first.
var idProperties = []string{"ZCTA5CE20", "ZCTA5CE10", "GEOID20", "GEOID10"}

// Interior point property pairs (lat, lon), most current first.
var interiorProperties = [][2]string{
	{"INTPTLAT20", "INTPTLON20"},
	{"INTPTLAT10", "INTPTLON10"},
	{"INTPTLAT", "INTPTLON"},
}

// attrs abstracts property access over GeoJSON properties and shapefile
// attribute rows.
type attrs func(name string) (any, bool)

func mapAttrs(m map[string]any) attrs {
	return func(name string) (any, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// regionID returns the first non-empty identifier property.
func regionID(get attrs) string {
	for _, name := range idProperties {
		v, ok := get(name)
		if !ok {
			continue
		}
		if s := propString(v); s != "" {
			return s
		}
	}
	return ""
}

// interiorPoint returns the first complete, finite interior point pair.
func interiorPoint(get attrs) *orb.Point {
	for _, pair := range interiorProperties {
		latV, ok := get(pair[0])
		if !ok {
			continue
		}
		lonV, ok := get(pair[1])
		if !ok {
			continue
		}
		lat, okLat := propFloat(latV)
		lon, okLon := propFloat(lonV)
		if okLat && okLon {
			return &orb.Point{lon, lat}
		}
	}
	return nil
}

func propString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// propFloat parses numbers and numeric strings such as "+40.1234567".
func propFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
