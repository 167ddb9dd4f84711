package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelscape/engine/core"
	m "parcelscape/engine/math"
	"parcelscape/engine/renderer"
	"parcelscape/engine/renderer/components"
	"parcelscape/engine/renderer/softraster"
	"parcelscape/geo"
)

// parcelAt builds a square parcel footprint centered at planar meters
// (cx, cy), expressed back in lon/lat for the projector.
func parcelAt(proj *geo.Projector, id string, cx, cy, half, height float64) geo.Feature {
	sx, _ := proj.Project(1, 0)
	_, sy := proj.Project(0, 1)
	ring := geo.Ring{
		{(cx - half) / sx, (cy - half) / sy},
		{(cx + half) / sx, (cy - half) / sy},
		{(cx + half) / sx, (cy + half) / sy},
		{(cx - half) / sx, (cy + half) / sy},
	}
	return geo.Feature{
		ID:         id,
		Zoning:     "CC-X",
		HeightM:    height,
		Footprints: []geo.Polygon{{Outer: ring}},
	}
}

func newTestScene(t *testing.T) (*SceneSystem, *renderer.Renderer) {
	t.Helper()
	backend := softraster.New()
	require.NoError(t, backend.Initialize("test", 400, 400))
	front := renderer.New(backend)
	scene, err := NewSceneSystem(&SceneSystemConfig{}, front, geo.NewProjector(0))
	require.NoError(t, err)
	return scene, front
}

func highlightSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func testFeatures(proj *geo.Projector) []geo.Feature {
	return []geo.Feature{
		parcelAt(proj, "a", 0, 0, 20, 30),
		parcelAt(proj, "b", 500, 0, 20, 30),
	}
}

func overheadCamera() *components.Camera {
	cam := components.NewCamera()
	cam.SetPosition(m.NewVec3(0, 300, 300))
	cam.SetTarget(m.NewVec3Zero())
	return cam
}

// screenPosFor projects a world point to window coordinates for a
// square viewport.
func screenPosFor(cam *components.Camera, size uint32, p m.Vec3) (float64, float64) {
	pv := cam.GetProjection(1).Mul(cam.GetView())
	ndc := pv.TransformPoint(p)
	x := float64(ndc.X*0.5+0.5) * float64(size)
	y := float64(1-(ndc.Y*0.5+0.5)) * float64(size)
	return x, y
}

func TestSceneRebuildReplacesSolids(t *testing.T) {
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	proj := geo.NewProjector(0)

	require.NoError(t, scene.Rebuild(testFeatures(proj), nil))
	assert.EqualValues(t, 1, scene.Generation())
	require.Len(t, scene.Solids(), 2)

	firstGen := append([]*Solid(nil), scene.Solids()...)
	for _, s := range firstGen {
		assert.True(t, s.Geometry.Uploaded())
		got, ok := scene.SolidByID(s.ID)
		require.True(t, ok)
		assert.Same(t, s, got)
	}

	require.NoError(t, scene.Rebuild(testFeatures(proj), nil))
	assert.EqualValues(t, 2, scene.Generation())
	require.Len(t, scene.Solids(), 2)

	// Old handles are stale: their geometry is gone and their UUIDs
	// resolve to nothing.
	for _, s := range firstGen {
		assert.False(t, s.Geometry.Uploaded())
		_, ok := scene.SolidByID(s.ID)
		assert.False(t, ok)
	}
	for i, s := range scene.Solids() {
		assert.NotEqual(t, firstGen[i].ID, s.ID)
	}
}

func TestSceneRebuildEmptyStillBumpsGeneration(t *testing.T) {
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	proj := geo.NewProjector(0)

	require.NoError(t, scene.Rebuild(testFeatures(proj), nil))
	require.NoError(t, scene.Rebuild(nil, nil))
	assert.EqualValues(t, 2, scene.Generation())
	assert.Empty(t, scene.Solids())

	scene.Clear()
	assert.EqualValues(t, 3, scene.Generation())
}

func TestSceneSkipsBrokenFeature(t *testing.T) {
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	proj := geo.NewProjector(0)

	feats := testFeatures(proj)
	feats = append(feats, geo.Feature{ID: "broken"})
	require.NoError(t, scene.Rebuild(feats, nil))
	assert.Len(t, scene.Solids(), 2)
}

func TestSceneHighlightBakedAtRebuild(t *testing.T) {
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	proj := geo.NewProjector(0)

	require.NoError(t, scene.Rebuild(testFeatures(proj), highlightSet("b")))
	a, ok := scene.SolidByParcel("a")
	require.True(t, ok)
	b, ok := scene.SolidByParcel("b")
	require.True(t, ok)

	assert.False(t, a.Highlighted)
	assert.True(t, b.Highlighted)
	highlight := scene.Config.HighlightColor
	assert.Equal(t, highlight, b.Mesh.Vertices[0].Color)
	assert.NotEqual(t, highlight, a.Mesh.Vertices[0].Color)
}

func TestSceneSetHighlightKeepsIdentity(t *testing.T) {
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	proj := geo.NewProjector(0)

	require.NoError(t, scene.Rebuild(testFeatures(proj), nil))
	gen := scene.Generation()
	a, _ := scene.SolidByParcel("a")
	id := a.ID

	require.NoError(t, scene.SetHighlight(id, true))
	assert.Equal(t, gen, scene.Generation())
	assert.Equal(t, id, a.ID)
	assert.True(t, a.Highlighted)
	assert.Equal(t, scene.Config.HighlightColor, a.Mesh.Vertices[0].Color)
	assert.True(t, a.Geometry.Uploaded())

	// Toggling twice is idempotent.
	require.NoError(t, scene.SetHighlight(id, true))
	require.NoError(t, scene.SetHighlight(id, false))
	assert.False(t, a.Highlighted)
	assert.NotEqual(t, scene.Config.HighlightColor, a.Mesh.Vertices[0].Color)
}

func TestSceneBuildPacket(t *testing.T) {
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	proj := geo.NewProjector(0)

	require.NoError(t, scene.Rebuild(testFeatures(proj), nil))
	cam := overheadCamera()
	packet := scene.BuildPacket(cam.GetView(), cam.GetProjection(1), 0.016)
	assert.Len(t, packet.Geometries, 2)
	for _, g := range packet.Geometries {
		assert.True(t, g.Geometry.Uploaded())
	}
}

type eventRecorder struct {
	hover     []core.PickEvent
	selection []core.PickEvent
	handles   []*core.EventHandle
}

func recordPickEvents(t *testing.T) *eventRecorder {
	t.Helper()
	core.EventSystemInitialize()
	rec := &eventRecorder{}
	h1 := core.EventRegister(core.EVENT_CODE_HOVER_CHANGED, func(ctx core.EventContext) bool {
		rec.hover = append(rec.hover, *ctx.Data.(*core.PickEvent))
		return false
	})
	h2 := core.EventRegister(core.EVENT_CODE_SELECTION_CHANGED, func(ctx core.EventContext) bool {
		rec.selection = append(rec.selection, *ctx.Data.(*core.PickEvent))
		return false
	})
	rec.handles = []*core.EventHandle{h1, h2}
	t.Cleanup(func() {
		for _, h := range rec.handles {
			core.EventUnregister(h)
		}
	})
	return rec
}

func TestPickHoverAndClick(t *testing.T) {
	rec := recordPickEvents(t)
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	proj := geo.NewProjector(0)
	require.NoError(t, scene.Rebuild(testFeatures(proj), nil))

	cam := overheadCamera()
	ps := NewPickSystem()
	a, _ := scene.SolidByParcel("a")

	// Hover over parcel a.
	x, y := screenPosFor(cam, 400, m.NewVec3(0, 15, 0))
	ps.RequestHover(x, y)
	assert.Equal(t, PickStatePending, ps.State())
	ps.Resolve(scene, cam, 400, 400)
	assert.Equal(t, PickStateResolved, ps.State())

	hovered, ok := ps.Hovered()
	require.True(t, ok)
	assert.Equal(t, a.ID, hovered)
	require.Len(t, rec.hover, 1)
	assert.Equal(t, "a", rec.hover[0].ParcelID)

	// Resolving again without a new request does nothing.
	ps.Resolve(scene, cam, 400, 400)
	assert.Len(t, rec.hover, 1)

	// Click on parcel a selects it.
	ps.RequestClick(x, y)
	ps.Resolve(scene, cam, 400, 400)
	selected, ok := ps.Selected()
	require.True(t, ok)
	assert.Equal(t, a.ID, selected)
	assert.Equal(t, "a", ps.SelectedParcel())
	require.Len(t, rec.selection, 1)

	// Clicking empty sky keeps the selection.
	ex, ey := screenPosFor(cam, 400, m.NewVec3(0, 450, -100))
	ps.RequestClick(ex, ey)
	ps.Resolve(scene, cam, 400, 400)
	_, ok = ps.Selected()
	assert.True(t, ok)
	assert.Equal(t, "a", ps.SelectedParcel())
	assert.Len(t, rec.selection, 1)

	// The hover moved off the parcel though.
	_, ok = ps.Hovered()
	assert.False(t, ok)
	require.Len(t, rec.hover, 2)
	assert.Empty(t, rec.hover[1].ParcelID)

	// Explicit clear empties the selection.
	ps.ClearSelection()
	_, ok = ps.Selected()
	assert.False(t, ok)
	assert.Empty(t, ps.SelectedParcel())
	require.Len(t, rec.selection, 2)
	assert.Empty(t, rec.selection[1].ParcelID)
}

func TestPickRebuildForcesRepickAndRebindsSelection(t *testing.T) {
	rec := recordPickEvents(t)
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	proj := geo.NewProjector(0)
	require.NoError(t, scene.Rebuild(testFeatures(proj), nil))

	cam := overheadCamera()
	ps := NewPickSystem()

	x, y := screenPosFor(cam, 400, m.NewVec3(0, 15, 0))
	ps.RequestClick(x, y)
	ps.Resolve(scene, cam, 400, 400)
	oldSolid, _ := ps.Selected()
	require.Equal(t, "a", ps.SelectedParcel())

	// Rebuild with the same parcels: solids get new UUIDs.
	require.NoError(t, scene.Rebuild(testFeatures(proj), highlightSet("a")))
	ps.Resolve(scene, cam, 400, 400)

	// Selection followed the parcel id onto the new solid.
	newSolid, ok := ps.Selected()
	require.True(t, ok)
	assert.NotEqual(t, oldSolid, newSolid)
	got, ok := scene.SolidByID(newSolid)
	require.True(t, ok)
	assert.Equal(t, "a", got.Feature.ID)

	// The hover re-pick ran at the remembered pointer position.
	hovered, ok := ps.Hovered()
	require.True(t, ok)
	assert.Equal(t, newSolid, hovered)
	assert.GreaterOrEqual(t, len(rec.hover), 2)

	// Rebuild without the selected parcel: selection becomes
	// unresolved but the parcel id is retained.
	require.NoError(t, scene.Rebuild([]geo.Feature{parcelAt(proj, "b", 500, 0, 20, 30)}, nil))
	ps.Resolve(scene, cam, 400, 400)
	_, ok = ps.Selected()
	assert.False(t, ok)
	assert.Equal(t, "a", ps.SelectedParcel())
}

func TestPickInvalidateRepicksAfterResize(t *testing.T) {
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	proj := geo.NewProjector(0)
	require.NoError(t, scene.Rebuild(testFeatures(proj), nil))

	cam := overheadCamera()
	ps := NewPickSystem()
	x, y := screenPosFor(cam, 400, m.NewVec3(0, 15, 0))
	ps.RequestHover(x, y)
	ps.Resolve(scene, cam, 400, 400)
	require.Equal(t, PickStateResolved, ps.State())

	ps.Invalidate()
	assert.Equal(t, PickStatePending, ps.State())
	ps.Resolve(scene, cam, 400, 400)
	assert.Equal(t, PickStateResolved, ps.State())
	_, ok := ps.Hovered()
	assert.True(t, ok)
}

func TestPickWithoutPointerStaysIdle(t *testing.T) {
	scene, _ := newTestScene(t)
	defer scene.Shutdown()
	ps := NewPickSystem()
	cam := overheadCamera()

	ps.Invalidate()
	assert.Equal(t, PickStateIdle, ps.State())
	ps.Resolve(scene, cam, 400, 400)
	assert.Equal(t, PickStateIdle, ps.State())
}

func TestCameraSystemAcquireRelease(t *testing.T) {
	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 2})
	require.NoError(t, err)
	defer cs.Shutdown()

	def, err := cs.Acquire(components.DEFAULT_CAMERA_NAME)
	require.NoError(t, err)
	assert.Same(t, cs.DefaultCamera, def)

	c1, err := cs.Acquire("overview")
	require.NoError(t, err)
	c2, err := cs.Acquire("overview")
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	cs.Release("overview")
	cs.Release("overview")
	c3, err := cs.Acquire("overview")
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
}

func TestOrbitControllerClampsAndFrames(t *testing.T) {
	oc := components.NewOrbitController()
	cam := components.NewCamera()

	oc.Rotate(0, -10) // way past straight down
	assert.GreaterOrEqual(t, oc.Pitch, oc.MinPitch)

	for i := 0; i < 100; i++ {
		oc.Zoom(1)
	}
	assert.GreaterOrEqual(t, oc.Radius, oc.MinRadius)

	oc.Apply(cam)
	// Negative pitch looks down on the focus.
	assert.Greater(t, cam.Position.Y, oc.Focus.Y)
	assert.InDelta(t, float64(oc.Radius), float64(cam.Position.Sub(oc.Focus).Length()), 0.5)
}
