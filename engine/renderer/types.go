package renderer

import (
	"parcelscape/engine/geometry"
	"parcelscape/engine/math"
)

// InvalidID marks a geometry slot with no backend resources attached.
const InvalidID uint32 = 0xFFFFFFFF

// Geometry is a handle to GPU-resident vertex/index buffers. The
// backend fills InternalID when the buffers are created and resets it
// to InvalidID when they are released; Generation increments on every
// re-upload so stale handles are detectable.
type Geometry struct {
	InternalID uint32
	Generation uint32
	IndexCount uint32
	Extents    math.Extents3D
}

// NewGeometry returns an unbound handle.
func NewGeometry() *Geometry {
	return &Geometry{InternalID: InvalidID, Extents: math.NewExtents3D()}
}

// Uploaded reports whether the handle currently owns backend buffers.
func (g *Geometry) Uploaded() bool {
	return g != nil && g.InternalID != InvalidID
}

// GeometryRenderData is one draw: a geometry handle plus its model
// transform.
type GeometryRenderData struct {
	Geometry *Geometry
	Model    math.Mat4
}

// RenderPacket describes a single frame.
type RenderPacket struct {
	DeltaTime  float64
	View       math.Mat4
	Projection math.Mat4
	Geometries []GeometryRenderData
}

// Backend is the device-facing half of the renderer. Implementations
// exist for a WebGPU surface and for a headless software rasterizer.
type Backend interface {
	Initialize(appName string, width, height uint32) error
	Shutdown() error
	Resized(width, height uint32) error
	BeginFrame(packet *RenderPacket) error
	DrawGeometry(data *GeometryRenderData) error
	EndFrame(packet *RenderPacket) error
	CreateGeometry(g *Geometry, mesh *geometry.MeshData) error
	DestroyGeometry(g *Geometry)
}
