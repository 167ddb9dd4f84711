package systems

import (
	"github.com/google/uuid"

	"parcelscape/engine/core"
	m "parcelscape/engine/math"
	"parcelscape/engine/renderer/components"
)

// PickState is the picker's request lifecycle.
type PickState int

const (
	// No outstanding pick request.
	PickStateIdle PickState = iota
	// A pointer position is queued for the next frame's raycast.
	PickStatePending
	// The queued request was resolved this frame.
	PickStateResolved
)

/**
 * @brief The pick system turns pointer positions into solid hits.
 *
 * Requests are queued from input callbacks and resolved at most once
 * per frame, on the frame's camera and scene state. Hover tracks
 * whatever is under the pointer; selection only changes on click hits
 * or an explicit clear. A click over empty ground keeps the current
 * selection. Scene rebuilds and viewport resizes both invalidate the
 * last result and force a re-pick at the remembered pointer position.
 */
type PickSystem struct {
	state PickState

	pendingX, pendingY float64
	pendingClick       bool

	lastX, lastY float64
	havePointer  bool

	hovered     uuid.UUID
	hasHovered  bool
	selected    uuid.UUID
	hasSelected bool
	// Parcel id backing the selection; survives rebuilds where the
	// solid UUID does not.
	selectedParcel string

	sceneGeneration uint64
}

func NewPickSystem() *PickSystem {
	return &PickSystem{}
}

func (ps *PickSystem) Shutdown() error { return nil }

func (ps *PickSystem) State() PickState { return ps.state }

func (ps *PickSystem) Hovered() (uuid.UUID, bool) {
	return ps.hovered, ps.hasHovered
}

func (ps *PickSystem) Selected() (uuid.UUID, bool) {
	return ps.selected, ps.hasSelected
}

func (ps *PickSystem) SelectedParcel() string { return ps.selectedParcel }

// RequestHover queues a hover raycast. Later requests in the same
// frame overwrite earlier ones; a queued click is not downgraded.
func (ps *PickSystem) RequestHover(x, y float64) {
	ps.pendingX, ps.pendingY = x, y
	ps.lastX, ps.lastY = x, y
	ps.havePointer = true
	ps.state = PickStatePending
}

// RequestClick queues a click raycast, independent of whatever hover
// state the pointer had.
func (ps *PickSystem) RequestClick(x, y float64) {
	ps.RequestHover(x, y)
	ps.pendingClick = true
}

// Invalidate forces a re-pick at the last pointer position. Called on
// viewport resize; rebuilds are detected by generation instead.
func (ps *PickSystem) Invalidate() {
	if ps.havePointer && ps.state != PickStatePending {
		ps.pendingX, ps.pendingY = ps.lastX, ps.lastY
		ps.state = PickStatePending
	}
}

// ClearSelection drops the selection and notifies listeners. This is
// the only way to empty it besides selecting another parcel.
func (ps *PickSystem) ClearSelection() {
	if !ps.hasSelected && ps.selectedParcel == "" {
		return
	}
	ps.hasSelected = false
	ps.selected = uuid.UUID{}
	ps.selectedParcel = ""
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_SELECTION_CHANGED,
		Data: &core.PickEvent{},
	})
}

/**
 * @brief Resolve runs the queued raycast, at most one per frame.
 *
 * Broad phase rejects solids whose bounds the ray misses, narrow phase
 * takes the nearest triangle hit across the remaining solids. Fires
 * hover/selection events only on actual changes.
 */
func (ps *PickSystem) Resolve(scene *SceneSystem, camera *components.Camera, width, height uint32) {
	if gen := scene.Generation(); gen != ps.sceneGeneration {
		ps.sceneGeneration = gen
		ps.rebind(scene)
		if ps.havePointer && ps.state != PickStatePending {
			ps.pendingX, ps.pendingY = ps.lastX, ps.lastY
			ps.state = PickStatePending
		}
	}
	if ps.state != PickStatePending || width == 0 || height == 0 {
		return
	}
	click := ps.pendingClick
	ps.pendingClick = false
	ps.state = PickStateResolved

	ray := rayFromScreen(ps.pendingX, ps.pendingY, width, height, camera)
	hit, hitOK := nearestSolid(scene, ray)

	ps.updateHover(hit, hitOK)
	if !click {
		return
	}
	if !hitOK {
		// Clicking empty ground keeps the selection.
		return
	}
	if ps.hasSelected && ps.selected == hit.ID {
		return
	}
	ps.selected = hit.ID
	ps.hasSelected = true
	ps.selectedParcel = hit.Feature.ID
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_SELECTION_CHANGED,
		Data: &core.PickEvent{SolidID: hit.ID.String(), ParcelID: hit.Feature.ID},
	})
}

// rebind maps selection and hover onto the new generation's solids.
// Hover is always dropped (the re-pick restores it); the selection
// follows the parcel id, or survives unresolved until the parcel
// reappears.
func (ps *PickSystem) rebind(scene *SceneSystem) {
	if ps.hasHovered {
		ps.hasHovered = false
		ps.hovered = uuid.UUID{}
	}
	if ps.selectedParcel == "" {
		ps.hasSelected = false
		return
	}
	if solid, ok := scene.SolidByParcel(ps.selectedParcel); ok {
		ps.selected = solid.ID
		ps.hasSelected = true
	} else {
		ps.hasSelected = false
	}
}

func (ps *PickSystem) updateHover(hit *Solid, hitOK bool) {
	switch {
	case hitOK && (!ps.hasHovered || ps.hovered != hit.ID):
		ps.hovered = hit.ID
		ps.hasHovered = true
		core.EventFire(core.EventContext{
			Type: core.EVENT_CODE_HOVER_CHANGED,
			Data: &core.PickEvent{SolidID: hit.ID.String(), ParcelID: hit.Feature.ID},
		})
	case !hitOK && ps.hasHovered:
		ps.hasHovered = false
		ps.hovered = uuid.UUID{}
		core.EventFire(core.EventContext{
			Type: core.EVENT_CODE_HOVER_CHANGED,
			Data: &core.PickEvent{},
		})
	}
}

func rayFromScreen(x, y float64, width, height uint32, camera *components.Camera) m.Ray {
	ndcX := float32(2*x/float64(width) - 1)
	ndcY := float32(1 - 2*y/float64(height))
	aspect := float32(width) / float32(height)
	projView := camera.GetProjection(aspect).Mul(camera.GetView())
	return m.NewRayFromNDC(ndcX, ndcY, projView.Inverse())
}

// nearestSolid returns the solid with the closest triangle hit along
// the ray.
func nearestSolid(scene *SceneSystem, ray m.Ray) (*Solid, bool) {
	var best *Solid
	bestT := m.K_INFINITY
	for _, s := range scene.Solids() {
		if _, ok := ray.IntersectExtents(s.Geometry.Extents); !ok {
			continue
		}
		verts := s.Mesh.Vertices
		idx := s.Mesh.Indices
		for i := 0; i+2 < len(idx); i += 3 {
			t, ok := ray.IntersectTriangle(
				verts[idx[i]].Position,
				verts[idx[i+1]].Position,
				verts[idx[i+2]].Position,
			)
			if ok && t < bestT {
				bestT = t
				best = s
			}
		}
	}
	return best, best != nil
}
