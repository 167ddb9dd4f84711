package geometry

import (
	"errors"
	"math"
)

/**
 * Ear-clipping triangulation of a planar polygon with holes.
 *
 * Holes are folded into the outer boundary with bridge edges first, so
 * the clipping loop only ever sees one simple (if self-touching)
 * polygon. Quadratic, which is fine at footprint vertex counts.
 */

// Triangulate returns the combined vertex list (outer ring followed by
// each hole, closing vertices stripped) and triangle indices into it.
// The outer ring is normalized to counter-clockwise, holes to
// clockwise, before bridging.
func Triangulate(outer [][2]float64, holes [][][2]float64) ([][2]float64, []uint32, error) {
	outer = stripClosing(outer)
	if len(outer) < 3 {
		return nil, nil, errors.New("geometry: outer ring needs at least 3 vertices")
	}

	verts := make([][2]float64, 0, len(outer))
	verts = append(verts, outer...)
	poly := make([]int, len(outer))
	for i := range poly {
		poly[i] = i
	}
	if signedArea(verts, poly) < 0 {
		reverse(poly)
	}

	type holeLoop struct {
		idx  []int
		maxX float64
	}
	loops := make([]holeLoop, 0, len(holes))
	for _, h := range holes {
		h = stripClosing(h)
		if len(h) < 3 {
			continue
		}
		base := len(verts)
		verts = append(verts, h...)
		idx := make([]int, len(h))
		for i := range idx {
			idx[i] = base + i
		}
		// Holes wind opposite to the outer boundary.
		if signedArea(verts, idx) > 0 {
			reverse(idx)
		}
		maxX := math.Inf(-1)
		for _, i := range idx {
			if verts[i][0] > maxX {
				maxX = verts[i][0]
			}
		}
		loops = append(loops, holeLoop{idx: idx, maxX: maxX})
	}

	// Merge right-to-left so earlier bridges cannot occlude later ones.
	for i := 0; i < len(loops); i++ {
		for j := i + 1; j < len(loops); j++ {
			if loops[j].maxX > loops[i].maxX {
				loops[i], loops[j] = loops[j], loops[i]
			}
		}
	}
	for i, h := range loops {
		pending := make([][]int, 0, len(loops)-i-1)
		for _, rest := range loops[i+1:] {
			pending = append(pending, rest.idx)
		}
		var ok bool
		poly, ok = bridgeHole(verts, poly, h.idx, pending)
		if !ok {
			return nil, nil, errors.New("geometry: no visible bridge vertex for hole")
		}
	}

	tris, err := clipEars(verts, poly)
	if err != nil {
		return nil, nil, err
	}
	return verts, tris, nil
}

// bridgeHole splices a hole loop into the polygon by connecting the
// hole's rightmost vertex to a mutually visible polygon vertex. The
// bridge must also stay clear of every hole still waiting to be merged,
// or a later merge would cross it.
func bridgeHole(verts [][2]float64, poly, hole []int, pending [][]int) ([]int, bool) {
	hi := 0
	for i := 1; i < len(hole); i++ {
		if verts[hole[i]][0] > verts[hole[hi]][0] {
			hi = i
		}
	}
	m := verts[hole[hi]]

	// Candidates ordered by distance to the hole vertex; take the first
	// one the bridge segment can reach without crossing an edge.
	order := make([]int, len(poly))
	for i := range order {
		order[i] = i
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if dist2(verts[poly[order[j]]], m) < dist2(verts[poly[order[i]]], m) {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	for _, pi := range order {
		p := verts[poly[pi]]
		if segmentClear(verts, poly, hole, pending, m, p) {
			merged := make([]int, 0, len(poly)+len(hole)+2)
			merged = append(merged, poly[:pi+1]...)
			for k := 0; k <= len(hole); k++ {
				merged = append(merged, hole[(hi+k)%len(hole)])
			}
			merged = append(merged, poly[pi])
			merged = append(merged, poly[pi+1:]...)
			return merged, true
		}
	}
	return nil, false
}

// segmentClear reports whether segment a-b crosses no edge of the
// polygon, the hole, or any pending hole loop (shared endpoints
// excluded).
func segmentClear(verts [][2]float64, poly, hole []int, pending [][]int, a, b [2]float64) bool {
	check := func(loop []int) bool {
		for i := 0; i < len(loop); i++ {
			p := verts[loop[i]]
			q := verts[loop[(i+1)%len(loop)]]
			if p == a || p == b || q == a || q == b {
				continue
			}
			if segmentsIntersect(a, b, p, q) {
				return false
			}
		}
		return true
	}
	if !check(poly) || !check(hole) {
		return false
	}
	for _, loop := range pending {
		if !check(loop) {
			return false
		}
	}
	return true
}

func clipEars(verts [][2]float64, poly []int) ([]uint32, error) {
	idx := make([]int, len(poly))
	copy(idx, poly)
	tris := make([]uint32, 0, 3*(len(idx)-2))

	guard := 0
	for len(idx) > 3 {
		clipped := false
		n := len(idx)
		for i := 0; i < n; i++ {
			prev := verts[idx[(i+n-1)%n]]
			cur := verts[idx[i]]
			next := verts[idx[(i+1)%n]]
			if cross(prev, cur, next) <= 0 {
				continue
			}
			if containsOther(verts, idx, i, prev, cur, next) {
				continue
			}
			tris = append(tris, uint32(idx[(i+n-1)%n]), uint32(idx[i]), uint32(idx[(i+1)%n]))
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Collinear runs can starve the ear test. Drop the first
			// degenerate vertex and keep going; bail if nothing helps.
			removed := false
			for i := 0; i < len(idx); i++ {
				n := len(idx)
				prev := verts[idx[(i+n-1)%n]]
				cur := verts[idx[i]]
				next := verts[idx[(i+1)%n]]
				if math.Abs(cross(prev, cur, next)) < 1e-12 {
					idx = append(idx[:i], idx[i+1:]...)
					removed = true
					break
				}
			}
			if !removed {
				return nil, errors.New("geometry: ear clipping stalled on degenerate polygon")
			}
		}
		guard++
		if guard > 4*len(poly)+16 {
			return nil, errors.New("geometry: ear clipping did not converge")
		}
	}
	if len(idx) == 3 {
		tris = append(tris, uint32(idx[0]), uint32(idx[1]), uint32(idx[2]))
	}
	return tris, nil
}

// containsOther reports whether any remaining vertex lies strictly
// inside the ear candidate triangle.
func containsOther(verts [][2]float64, idx []int, ear int, a, b, c [2]float64) bool {
	n := len(idx)
	for j := 0; j < n; j++ {
		if j == ear || j == (ear+n-1)%n || j == (ear+1)%n {
			continue
		}
		p := verts[idx[j]]
		if p == a || p == b || p == c {
			continue
		}
		if pointInTriangle(p, a, b, c) {
			return true
		}
	}
	return false
}

func stripClosing(ring [][2]float64) [][2]float64 {
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		return ring[:n-1]
	}
	return ring
}

func signedArea(verts [][2]float64, loop []int) float64 {
	var area float64
	for i := 0; i < len(loop); i++ {
		p := verts[loop[i]]
		q := verts[loop[(i+1)%len(loop)]]
		area += p[0]*q[1] - q[0]*p[1]
	}
	return area / 2
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func cross(o, a, b [2]float64) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func dist2(a, b [2]float64) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}

func pointInTriangle(p, a, b, c [2]float64) bool {
	d1 := cross(a, b, p)
	d2 := cross(b, c, p)
	d3 := cross(c, a, p)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

func segmentsIntersect(a, b, c, d [2]float64) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}
