package geo

import "math"

// Meters per degree of latitude, and per degree of longitude at the
// equator. Matches the constant used by the parcel data pipeline.
const MetersPerDegree = 111320.0

// DefaultRefLat is downtown Calgary; the longitude scale of the
// projection is pinned to it unless a dataset-specific value is given.
const DefaultRefLat = 51.0447

// Projector maps lon/lat to planar meters with a fixed-scale
// equirectangular projection. Over a city-sized extent the distortion
// is far below parcel size, and the mapping stays affine, which keeps
// extruded footprints consistent with each other.
type Projector struct {
	refLat   float64
	lonScale float64
}

// NewProjector builds a projector whose longitude scale is evaluated at
// refLat. A zero refLat selects DefaultRefLat; projecting at the actual
// equator is not a use case for this viewer.
func NewProjector(refLat float64) *Projector {
	if refLat == 0 {
		refLat = DefaultRefLat
	}
	return &Projector{
		refLat:   refLat,
		lonScale: MetersPerDegree * math.Cos(refLat*math.Pi/180.0),
	}
}

func (p *Projector) RefLat() float64 { return p.refLat }

// Project converts a lon/lat pair to planar meters. X grows eastward,
// Y northward.
func (p *Projector) Project(lon, lat float64) (x, y float64) {
	return lon * p.lonScale, lat * MetersPerDegree
}

// ProjectRing converts a whole ring, preserving vertex order.
func (p *Projector) ProjectRing(ring Ring) [][2]float64 {
	out := make([][2]float64, len(ring))
	for i, pt := range ring {
		x, y := p.Project(pt[0], pt[1])
		out[i] = [2]float64{x, y}
	}
	return out
}

// OriginFor picks the local origin for a batch of features: the
// projected centroid of the first feature with geometry. Subtracting it
// before converting to float32 keeps vertex coordinates small enough
// that single precision does not chew up parcel-scale detail.
func (p *Projector) OriginFor(features []Feature) (x, y float64) {
	for i := range features {
		if lon, lat, ok := features[i].Centroid(); ok {
			return p.Project(lon, lat)
		}
	}
	return 0, 0
}
