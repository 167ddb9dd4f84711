package geo

// Ring is a closed loop of lon/lat pairs. The closing vertex may or may
// not repeat the first one; consumers must tolerate both.
type Ring [][2]float64

// Polygon is a single footprint: one outer boundary plus zero or more
// interior holes (courtyards).
type Polygon struct {
	Outer Ring
	Holes []Ring
}

// Feature is one parcel as served by the buildings endpoint: footprint
// geometry plus the attributes the filter language operates on.
type Feature struct {
	ID            string
	Address       string
	Community     string
	Zoning        string
	AssessedValue float64
	HeightM       float64
	Year          int
	Source        string
	Footprints    []Polygon
}

// Centroid returns the vertex average of the first footprint's outer
// ring in lon/lat. Returns false when the feature has no geometry.
func (f *Feature) Centroid() (lon, lat float64, ok bool) {
	if len(f.Footprints) == 0 || len(f.Footprints[0].Outer) == 0 {
		return 0, 0, false
	}
	outer := f.Footprints[0].Outer
	n := len(outer)
	// Ignore a duplicated closing vertex so it does not skew the average.
	if n > 1 && outer[0] == outer[n-1] {
		n--
	}
	for i := 0; i < n; i++ {
		lon += outer[i][0]
		lat += outer[i][1]
	}
	return lon / float64(n), lat / float64(n), true
}
