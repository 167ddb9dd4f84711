package softraster

import (
	"errors"
	"fmt"

	"parcelscape/engine/core"
	"parcelscape/engine/geometry"
	m "parcelscape/engine/math"
	"parcelscape/engine/renderer"
)

/**
 * Software rasterizer backend. No window, no GPU: frames land in an
 * in-memory color buffer with a z-buffer, which makes the full render
 * path exercisable from tests and headless runs.
 */

const depthFar float32 = 1e9

type meshSlot struct {
	vertices []m.Vertex3D
	indices  []uint32
	live     bool
}

// Backend implements renderer.Backend against CPU buffers.
type Backend struct {
	width  int
	height int

	color []m.Vec4
	depth []float32

	slots []meshSlot
	free  []uint32

	// Frame state, valid between BeginFrame and EndFrame.
	projView m.Mat4
	inFrame  bool

	ClearColor m.Vec4
	// LightDir is the direction light travels; vertices facing against
	// it are lit fully.
	LightDir m.Vec3
}

func New() *Backend {
	return &Backend{
		ClearColor: m.NewVec4(0.08, 0.09, 0.11, 1),
		LightDir:   m.NewVec3(-0.4, -1, -0.3).Normalized(),
	}
}

func (b *Backend) Initialize(appName string, width, height uint32) error {
	if width == 0 || height == 0 {
		return errors.New("softraster: zero-sized target")
	}
	b.resize(int(width), int(height))
	core.LogInfo("%s: software rasterizer %dx%d", appName, width, height)
	return nil
}

func (b *Backend) Shutdown() error {
	b.slots = nil
	b.free = nil
	b.color = nil
	b.depth = nil
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	if width == 0 || height == 0 {
		// Minimized; keep the old buffers until a real size arrives.
		return nil
	}
	b.resize(int(width), int(height))
	return nil
}

func (b *Backend) resize(w, h int) {
	b.width, b.height = w, h
	b.color = make([]m.Vec4, w*h)
	b.depth = make([]float32, w*h)
}

func (b *Backend) Size() (int, int) { return b.width, b.height }

// Pixel returns the shaded color at x,y. Out of range returns zero.
func (b *Backend) Pixel(x, y int) m.Vec4 {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return m.Vec4{}
	}
	return b.color[y*b.width+x]
}

// DepthAt returns the z-buffer value at x,y; depthFar where nothing
// was drawn.
func (b *Backend) DepthAt(x, y int) float32 {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return depthFar
	}
	return b.depth[y*b.width+x]
}

func (b *Backend) BeginFrame(packet *renderer.RenderPacket) error {
	if b.width == 0 || b.height == 0 {
		return errors.New("softraster: no target")
	}
	for i := range b.color {
		b.color[i] = b.ClearColor
		b.depth[i] = depthFar
	}
	b.projView = packet.Projection.Mul(packet.View)
	b.inFrame = true
	return nil
}

func (b *Backend) EndFrame(packet *renderer.RenderPacket) error {
	b.inFrame = false
	return nil
}

func (b *Backend) CreateGeometry(g *renderer.Geometry, mesh *geometry.MeshData) error {
	if mesh.Empty() {
		return errors.New("softraster: empty mesh")
	}
	slot := meshSlot{
		vertices: append([]m.Vertex3D(nil), mesh.Vertices...),
		indices:  append([]uint32(nil), mesh.Indices...),
		live:     true,
	}
	var id uint32
	if n := len(b.free); n > 0 {
		id = b.free[n-1]
		b.free = b.free[:n-1]
		b.slots[id] = slot
	} else {
		id = uint32(len(b.slots))
		b.slots = append(b.slots, slot)
	}
	g.InternalID = id
	return nil
}

func (b *Backend) DestroyGeometry(g *renderer.Geometry) {
	id := g.InternalID
	if id == renderer.InvalidID || int(id) >= len(b.slots) || !b.slots[id].live {
		return
	}
	b.slots[id] = meshSlot{}
	b.free = append(b.free, id)
}

func (b *Backend) DrawGeometry(data *renderer.GeometryRenderData) error {
	if !b.inFrame {
		return errors.New("softraster: draw outside frame")
	}
	id := data.Geometry.InternalID
	if id == renderer.InvalidID || int(id) >= len(b.slots) || !b.slots[id].live {
		return fmt.Errorf("softraster: draw on dead geometry %d", id)
	}
	slot := &b.slots[id]
	mvp := b.projView.Mul(data.Model)

	for i := 0; i+2 < len(slot.indices); i += 3 {
		v0 := &slot.vertices[slot.indices[i]]
		v1 := &slot.vertices[slot.indices[i+1]]
		v2 := &slot.vertices[slot.indices[i+2]]
		b.rasterTriangle(mvp, v0, v1, v2)
	}
	return nil
}

type screenVert struct {
	x, y, z float32
	color   m.Vec4
}

func (b *Backend) rasterTriangle(mvp m.Mat4, v0, v1, v2 *m.Vertex3D) {
	s0, ok0 := b.toScreen(mvp, v0)
	s1, ok1 := b.toScreen(mvp, v1)
	s2, ok2 := b.toScreen(mvp, v2)
	// Trivial clip: any vertex behind the near plane drops the
	// triangle. Fine for a test target, wrong for a product renderer.
	if !ok0 || !ok1 || !ok2 {
		return
	}

	area := edgeFn(s0.x, s0.y, s1.x, s1.y, s2.x, s2.y)
	if area == 0 {
		return
	}
	if area < 0 {
		// Both windings shade the same; flip instead of culling.
		s1, s2 = s2, s1
		area = -area
	}
	invArea := 1 / area

	minX := clampInt(int(min3(s0.x, s1.x, s2.x)), 0, b.width-1)
	maxX := clampInt(int(max3(s0.x, s1.x, s2.x))+1, 0, b.width-1)
	minY := clampInt(int(min3(s0.y, s1.y, s2.y)), 0, b.height-1)
	maxY := clampInt(int(max3(s0.y, s1.y, s2.y))+1, 0, b.height-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float32(x)+0.5, float32(y)+0.5
			w0 := edgeFn(s1.x, s1.y, s2.x, s2.y, px, py)
			w1 := edgeFn(s2.x, s2.y, s0.x, s0.y, px, py)
			w2 := edgeFn(s0.x, s0.y, s1.x, s1.y, px, py)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			a0, a1, a2 := w0*invArea, w1*invArea, w2*invArea
			z := a0*s0.z + a1*s1.z + a2*s2.z
			idx := y*b.width + x
			if z >= b.depth[idx] {
				continue
			}
			b.depth[idx] = z
			b.color[idx] = m.NewVec4(
				a0*s0.color.X+a1*s1.color.X+a2*s2.color.X,
				a0*s0.color.Y+a1*s1.color.Y+a2*s2.color.Y,
				a0*s0.color.Z+a1*s1.color.Z+a2*s2.color.Z,
				1,
			)
		}
	}
}

func (b *Backend) toScreen(mvp m.Mat4, v *m.Vertex3D) (screenVert, bool) {
	clip := mvp.MulVec4(v.Position.ToVec4(1))
	if clip.W <= 0 {
		return screenVert{}, false
	}
	inv := 1 / clip.W
	ndcX, ndcY, ndcZ := clip.X*inv, clip.Y*inv, clip.Z*inv

	// Lambert with a fixed ambient floor, per vertex, flat per color.
	lit := v.Color
	d := -v.Normal.Dot(b.LightDir)
	if d < 0 {
		d = 0
	}
	k := 0.35 + 0.65*d
	lit = m.NewVec4(lit.X*k, lit.Y*k, lit.Z*k, lit.W)

	return screenVert{
		x:     (ndcX*0.5 + 0.5) * float32(b.width),
		y:     (1 - (ndcY*0.5 + 0.5)) * float32(b.height),
		z:     ndcZ*0.5 + 0.5,
		color: lit,
	}, true
}

func edgeFn(x0, y0, x1, y1, x, y float32) float32 {
	return (x-x0)*(y1-y0) - (y-y0)*(x1-x0)
}

func min3(a, b, c float32) float32 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c float32) float32 {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
