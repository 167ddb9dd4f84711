package math

import "github.com/chewxy/math32"

// Ray is an origin plus a normalized direction. Intersection results are
// expressed as the ray parameter t, the distance along Dir from Origin.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

func NewRay(origin, dir Vec3) Ray {
	return Ray{Origin: origin, Dir: dir.Normalized()}
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Dir.MulScalar(t))
}

// IntersectExtents performs a slab test against axis-aligned extents.
// Returns the entry parameter and whether the ray hits at t >= 0.
// A ray starting inside the box hits at t = 0.
func (r Ray) IntersectExtents(e Extents3D) (float32, bool) {
	tmin := float32(0)
	tmax := K_INFINITY

	mins := [3]float32{e.Min.X, e.Min.Y, e.Min.Z}
	maxs := [3]float32{e.Max.X, e.Max.Y, e.Max.Z}
	org := [3]float32{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float32{r.Dir.X, r.Dir.Y, r.Dir.Z}

	for i := 0; i < 3; i++ {
		if math32.Abs(dir[i]) < K_FLOAT_EPSILON {
			if org[i] < mins[i] || org[i] > maxs[i] {
				return 0, false
			}
			continue
		}
		inv := 1.0 / dir[i]
		t0 := (mins[i] - org[i]) * inv
		t1 := (maxs[i] - org[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math32.Max(tmin, t0)
		tmax = math32.Min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// IntersectTriangle computes the ray/triangle intersection using the
// Moeller-Trumbore algorithm. Both triangle sides are accepted so ring
// winding of the source geometry does not affect pickability.
// Returns the ray parameter and whether the triangle is hit at t >= 0.
func (r Ray) IntersectTriangle(a, b, c Vec3) (float32, bool) {
	edge1 := b.Sub(a)
	edge2 := c.Sub(a)

	pvec := r.Dir.Cross(edge2)
	det := edge1.Dot(pvec)
	if math32.Abs(det) < K_FLOAT_EPSILON {
		return 0, false // parallel to the triangle plane
	}
	invDet := 1.0 / det

	tvec := r.Origin.Sub(a)
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	qvec := tvec.Cross(edge1)
	v := r.Dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := edge2.Dot(qvec) * invDet
	if t < 0 {
		return 0, false
	}
	return t, true
}

// NewRayFromNDC builds a world-space ray from normalized device coordinates
// (x, y in [-1, 1], y up) by unprojecting through the inverse of the combined
// projection*view matrix.
func NewRayFromNDC(ndcX, ndcY float32, invProjView Mat4) Ray {
	near := invProjView.TransformPoint(Vec3{X: ndcX, Y: ndcY, Z: -1.0})
	far := invProjView.TransformPoint(Vec3{X: ndcX, Y: ndcY, Z: 1.0})
	return NewRay(near, far.Sub(near))
}
