package geo

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {
        "type": "Polygon",
        "coordinates": [
          [[-114.07, 51.045], [-114.069, 51.045], [-114.069, 51.046], [-114.07, 51.046], [-114.07, 51.045]],
          [[-114.0697, 51.0453], [-114.0693, 51.0453], [-114.0693, 51.0457], [-114.0697, 51.0457], [-114.0697, 51.0453]]
        ]
      },
      "properties": {
        "id": 40213,
        "address": "112 8 Ave SE",
        "assessed_value": 1250000.5,
        "community": "Downtown Commercial Core",
        "zoning": "CC-X",
        "height_m": 42.75,
        "year": 1987,
        "source": "socrata"
      }
    },
    {
      "type": "Feature",
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [
          [[[-114.08, 51.05], [-114.079, 51.05], [-114.079, 51.051], [-114.08, 51.05]]],
          [[[-114.081, 51.05], [-114.0805, 51.05], [-114.0805, 51.0505], [-114.081, 51.05]]]
        ]
      },
      "properties": {"id": "roll-7", "zoning": "R-C1", "height_m": 7.2}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-114.1, 51.0]},
      "properties": {"id": "pt-1"}
    }
  ]
}`

func TestDecodeFeatureCollection(t *testing.T) {
	feats, err := DecodeFeatureCollection(strings.NewReader(sampleCollection))
	require.NoError(t, err)
	// The Point feature carries no polygonal footprint and is skipped.
	require.Len(t, feats, 2)

	f := feats[0]
	assert.Equal(t, "40213", f.ID)
	assert.Equal(t, "112 8 Ave SE", f.Address)
	assert.Equal(t, "Downtown Commercial Core", f.Community)
	assert.Equal(t, "CC-X", f.Zoning)
	assert.InDelta(t, 1250000.5, f.AssessedValue, 1e-9)
	assert.InDelta(t, 42.75, f.HeightM, 1e-9)
	assert.Equal(t, 1987, f.Year)
	require.Len(t, f.Footprints, 1)
	assert.Len(t, f.Footprints[0].Outer, 5)
	require.Len(t, f.Footprints[0].Holes, 1)

	m := feats[1]
	assert.Equal(t, "roll-7", m.ID)
	assert.Len(t, m.Footprints, 2)
	assert.Empty(t, m.Footprints[0].Holes)
}

func TestDecodeRejectsNonCollection(t *testing.T) {
	_, err := DecodeFeatureCollection(strings.NewReader(`{"type": "Feature"}`))
	assert.Error(t, err)
}

func TestProjectorScales(t *testing.T) {
	p := NewProjector(0)
	assert.InDelta(t, DefaultRefLat, p.RefLat(), 1e-12)

	// One degree of latitude is a fixed number of meters.
	_, y0 := p.Project(-114, 51)
	_, y1 := p.Project(-114, 52)
	assert.InDelta(t, MetersPerDegree, y1-y0, 1e-6)

	// One degree of longitude is shortened by cos(refLat).
	x0, _ := p.Project(-114, 51)
	x1, _ := p.Project(-113, 51)
	want := MetersPerDegree * math.Cos(DefaultRefLat*math.Pi/180)
	assert.InDelta(t, want, x1-x0, 1e-6)
}

func TestOriginForUsesFirstFeatureCentroid(t *testing.T) {
	feats, err := DecodeFeatureCollection(strings.NewReader(sampleCollection))
	require.NoError(t, err)

	p := NewProjector(0)
	ox, oy := p.OriginFor(feats)
	lon, lat, ok := feats[0].Centroid()
	require.True(t, ok)
	wx, wy := p.Project(lon, lat)
	assert.InDelta(t, wx, ox, 1e-9)
	assert.InDelta(t, wy, oy, 1e-9)

	// No geometry at all falls back to the world origin.
	ox, oy = p.OriginFor(nil)
	assert.Zero(t, ox)
	assert.Zero(t, oy)
}

func TestCentroidIgnoresClosingVertex(t *testing.T) {
	f := Feature{Footprints: []Polygon{{
		Outer: Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}},
	}}}
	lon, lat, ok := f.Centroid()
	require.True(t, ok)
	assert.InDelta(t, 1.0, lon, 1e-12)
	assert.InDelta(t, 1.0, lat, 1e-12)
}
