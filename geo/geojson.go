package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodeFeatureCollection parses a GeoJSON FeatureCollection of Polygon
// and MultiPolygon features into parcel Features. Features with other
// geometry types (or no usable rings) are skipped rather than treated
// as errors; upstream data is messy.
func DecodeFeatureCollection(r io.Reader) ([]Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	t, _ := raw["type"].(string)
	if t != "FeatureCollection" {
		return nil, errors.New("geo: not a FeatureCollection")
	}
	fs, _ := raw["features"].([]any)
	out := make([]Feature, 0, len(fs))
	for _, el := range fs {
		fm, ok := el.(map[string]any)
		if !ok {
			continue
		}
		var f Feature
		if props, ok := fm["properties"].(map[string]any); ok {
			f.ID = asString(props["id"])
			f.Address = asString(props["address"])
			f.Community = asString(props["community"])
			f.Zoning = asString(props["zoning"])
			f.AssessedValue, _ = asFloat(props["assessed_value"])
			f.HeightM, _ = asFloat(props["height_m"])
			if y, ok := asFloat(props["year"]); ok {
				f.Year = int(y)
			}
			f.Source = asString(props["source"])
		}
		g, ok := fm["geometry"].(map[string]any)
		if !ok {
			continue
		}
		gt, _ := g["type"].(string)
		switch gt {
		case "Polygon":
			if poly, ok := parsePolygon(g["coordinates"]); ok {
				f.Footprints = append(f.Footprints, poly)
			}
		case "MultiPolygon":
			arr, ok := g["coordinates"].([]any)
			if !ok {
				continue
			}
			for _, p := range arr {
				if poly, ok := parsePolygon(p); ok {
					f.Footprints = append(f.Footprints, poly)
				}
			}
		default:
			continue
		}
		if len(f.Footprints) == 0 {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func parsePolygon(v any) (Polygon, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return Polygon{}, false
	}
	var poly Polygon
	for i, el := range arr {
		ring, ok := parseRing(el)
		if !ok || len(ring) < 3 {
			if i == 0 {
				return Polygon{}, false
			}
			continue
		}
		if i == 0 {
			poly.Outer = ring
		} else {
			poly.Holes = append(poly.Holes, ring)
		}
	}
	return poly, len(poly.Outer) >= 3
}

func parseRing(v any) (Ring, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	ring := make(Ring, 0, len(arr))
	for _, el := range arr {
		a, ok := el.([]any)
		if !ok || len(a) < 2 {
			continue
		}
		lon, lok := a[0].(float64)
		lat, aok := a[1].(float64)
		if lok && aok {
			ring = append(ring, [2]float64{lon, lat})
		}
	}
	return ring, true
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// Upstream ids are sometimes numeric.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
