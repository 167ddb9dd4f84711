package renderer

import (
	"sync/atomic"

	"parcelscape/engine/core"
	"parcelscape/engine/geometry"
)

// Renderer fronts a Backend: it owns frame orchestration and refuses
// work once the surface has been torn down, so a draw or upload racing
// shutdown degrades to a no-op error instead of touching dead GPU
// state.
type Renderer struct {
	backend  Backend
	tornDown atomic.Bool
}

func New(backend Backend) *Renderer {
	return &Renderer{backend: backend}
}

func (r *Renderer) Initialize(appName string, width, height uint32) error {
	return r.backend.Initialize(appName, width, height)
}

// Shutdown releases the backend. Marks the renderer torn down first so
// concurrent callers fail fast.
func (r *Renderer) Shutdown() error {
	if r.tornDown.Swap(true) {
		return nil
	}
	return r.backend.Shutdown()
}

func (r *Renderer) TornDown() bool {
	return r.tornDown.Load()
}

func (r *Renderer) OnResize(width, height uint32) error {
	if r.tornDown.Load() {
		return core.ErrTornDown
	}
	return r.backend.Resized(width, height)
}

// DrawFrame renders one packet: begin, draw each geometry, end. A
// failed begin (for example a lost surface during resize) skips the
// frame without treating it as fatal; the caller decides.
func (r *Renderer) DrawFrame(packet *RenderPacket) error {
	if r.tornDown.Load() {
		return core.ErrTornDown
	}
	if err := r.backend.BeginFrame(packet); err != nil {
		return err
	}
	for i := range packet.Geometries {
		if !packet.Geometries[i].Geometry.Uploaded() {
			continue
		}
		if err := r.backend.DrawGeometry(&packet.Geometries[i]); err != nil {
			core.LogError("draw geometry failed: %v", err)
		}
	}
	return r.backend.EndFrame(packet)
}

// CreateGeometry uploads mesh data and binds it to the handle. The
// extents travel on the handle so picking never needs the raw mesh.
func (r *Renderer) CreateGeometry(g *Geometry, mesh *geometry.MeshData) error {
	if r.tornDown.Load() {
		return core.ErrTornDown
	}
	if err := r.backend.CreateGeometry(g, mesh); err != nil {
		return err
	}
	g.IndexCount = uint32(len(mesh.Indices))
	g.Extents = mesh.Extents
	g.Generation++
	return nil
}

// DestroyGeometry releases the handle's buffers. Safe to call on a
// handle that was never uploaded.
func (r *Renderer) DestroyGeometry(g *Geometry) {
	if r.tornDown.Load() || !g.Uploaded() {
		return
	}
	r.backend.DestroyGeometry(g)
	g.InternalID = InvalidID
}
