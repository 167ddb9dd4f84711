package geometry

import (
	"fmt"

	"parcelscape/engine/core"
	m "parcelscape/engine/math"
	"parcelscape/geo"
)

// MeshData is a fully-built triangle mesh ready for upload: interleaved
// vertices, 32-bit indices, and the axis-aligned bounds used by the
// picking broad phase.
type MeshData struct {
	Vertices []m.Vertex3D
	Indices  []uint32
	Extents  m.Extents3D
}

// Empty reports whether the mesh holds no triangles.
func (md *MeshData) Empty() bool { return len(md.Indices) == 0 }

func (md *MeshData) append(other MeshData) {
	base := uint32(len(md.Vertices))
	md.Vertices = append(md.Vertices, other.Vertices...)
	for _, i := range other.Indices {
		md.Indices = append(md.Indices, base+i)
	}
	for _, v := range other.Vertices {
		md.Extents.ExpandTo(v.Position)
	}
}

/**
 * BuildParcelMesh extrudes every footprint of a parcel into a prism and
 * merges them into one mesh.
 *
 * Projected planar coordinates map into the scene as X=east, Z=-north,
 * with the prism rising along +Y from the ground plane. The local
 * origin is subtracted in double precision before the cast to float32.
 * Extrusion depth is the parcel height clamped to at least one meter so
 * missing or zero heights still produce a pickable slab. The color is
 * baked per vertex at build time.
 */
func BuildParcelMesh(f *geo.Feature, proj *geo.Projector, originX, originY float64, color m.Vec4) (MeshData, error) {
	depth := float32(f.HeightM)
	if depth < 1 {
		depth = 1
	}

	var mesh MeshData
	mesh.Extents = m.NewExtents3D()
	for fi := range f.Footprints {
		fp := &f.Footprints[fi]
		outer := projectRingLocal(proj, fp.Outer, originX, originY)
		holes := make([][][2]float64, 0, len(fp.Holes))
		for _, h := range fp.Holes {
			holes = append(holes, projectRingLocal(proj, h, originX, originY))
		}
		prism, err := extrudePolygon(outer, holes, depth, color)
		if err != nil {
			return MeshData{}, fmt.Errorf("parcel %s footprint %d: %w", f.ID, fi, err)
		}
		mesh.append(prism)
	}
	if mesh.Empty() {
		return MeshData{}, fmt.Errorf("parcel %s: no triangulable footprint", f.ID)
	}
	return mesh, nil
}

func projectRingLocal(proj *geo.Projector, ring geo.Ring, originX, originY float64) [][2]float64 {
	out := make([][2]float64, len(ring))
	for i, pt := range ring {
		x, y := proj.Project(pt[0], pt[1])
		out[i] = [2]float64{x - originX, y - originY}
	}
	return out
}

// extrudePolygon builds the prism for one footprint: roof and floor
// caps from the triangulation, plus a wall quad per ring edge.
func extrudePolygon(outer [][2]float64, holes [][][2]float64, depth float32, color m.Vec4) (MeshData, error) {
	if signedAreaRing(outer) < 0 {
		core.LogDebug("footprint outer ring wound clockwise, normalizing")
	}

	verts, tris, err := Triangulate(outer, holes)
	if err != nil {
		return MeshData{}, err
	}

	var mesh MeshData
	mesh.Extents = m.NewExtents3D()
	up := m.NewVec3(0, 1, 0)
	down := m.NewVec3(0, -1, 0)

	// Roof cap at extrusion depth, floor cap on the ground plane with
	// reversed winding so both face outward.
	roofBase := len(mesh.Vertices)
	for _, v := range verts {
		mesh.Vertices = append(mesh.Vertices, m.Vertex3D{
			Position: toScene(v, depth),
			Normal:   up,
			Color:    color,
		})
	}
	floorBase := len(mesh.Vertices)
	for _, v := range verts {
		mesh.Vertices = append(mesh.Vertices, m.Vertex3D{
			Position: toScene(v, 0),
			Normal:   down,
			Color:    color,
		})
	}
	for i := 0; i+2 < len(tris); i += 3 {
		mesh.Indices = append(mesh.Indices,
			uint32(roofBase)+tris[i], uint32(roofBase)+tris[i+1], uint32(roofBase)+tris[i+2])
		mesh.Indices = append(mesh.Indices,
			uint32(floorBase)+tris[i+2], uint32(floorBase)+tris[i+1], uint32(floorBase)+tris[i])
	}

	appendWalls := func(ring [][2]float64, ccw bool) {
		ring = stripClosing(ring)
		n := len(ring)
		if n < 3 {
			return
		}
		// Walls face away from the solid: outward on the boundary,
		// into the cavity on holes.
		for i := 0; i < n; i++ {
			p0 := ring[i]
			p1 := ring[(i+1)%n]
			if !ccw {
				p0, p1 = p1, p0
			}
			d := m.NewVec2(float32(p1[0]-p0[0]), float32(p1[1]-p0[1]))
			if d.Length() == 0 {
				continue
			}
			normal := m.NewVec3(d.Y, 0, d.X).Normalized()

			base := uint32(len(mesh.Vertices))
			mesh.Vertices = append(mesh.Vertices,
				m.Vertex3D{Position: toScene(p0, 0), Normal: normal, Color: color},
				m.Vertex3D{Position: toScene(p1, 0), Normal: normal, Color: color},
				m.Vertex3D{Position: toScene(p1, depth), Normal: normal, Color: color},
				m.Vertex3D{Position: toScene(p0, depth), Normal: normal, Color: color},
			)
			mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
		}
	}
	appendWalls(outer, signedAreaRing(outer) >= 0)
	for _, h := range holes {
		// Hole rings walk opposite to the outer boundary, so the same
		// orientation flag flips.
		appendWalls(h, signedAreaRing(h) < 0)
	}

	for i := range mesh.Vertices {
		mesh.Extents.ExpandTo(mesh.Vertices[i].Position)
	}
	return mesh, nil
}

func toScene(p [2]float64, height float32) m.Vec3 {
	return m.NewVec3(float32(p[0]), height, float32(-p[1]))
}

func signedAreaRing(ring [][2]float64) float64 {
	ring = stripClosing(ring)
	var area float64
	for i := 0; i < len(ring); i++ {
		p := ring[i]
		q := ring[(i+1)%len(ring)]
		area += p[0]*q[1] - q[0]*p[1]
	}
	return area / 2
}
