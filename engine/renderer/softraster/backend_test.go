package softraster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelscape/engine/core"
	"parcelscape/engine/geometry"
	m "parcelscape/engine/math"
	"parcelscape/engine/renderer"
)

func quadMesh(z float32, color m.Vec4) *geometry.MeshData {
	n := m.NewVec3(0, 0, 1)
	mesh := &geometry.MeshData{
		Vertices: []m.Vertex3D{
			{Position: m.NewVec3(-5, -5, z), Normal: n, Color: color},
			{Position: m.NewVec3(5, -5, z), Normal: n, Color: color},
			{Position: m.NewVec3(5, 5, z), Normal: n, Color: color},
			{Position: m.NewVec3(-5, 5, z), Normal: n, Color: color},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
		Extents: m.NewExtents3D(),
	}
	for _, v := range mesh.Vertices {
		mesh.Extents.ExpandTo(v.Position)
	}
	return mesh
}

func testPacket(geoms ...renderer.GeometryRenderData) *renderer.RenderPacket {
	return &renderer.RenderPacket{
		View:       m.NewMat4LookAt(m.NewVec3(0, 0, 20), m.NewVec3Zero(), m.NewVec3Up()),
		Projection: m.NewMat4Perspective(m.DegToRad(60), 1, 0.1, 100),
		Geometries: geoms,
	}
}

func TestDrawFrameShadesCenterPixel(t *testing.T) {
	b := New()
	require.NoError(t, b.Initialize("test", 64, 64))
	defer b.Shutdown()
	front := renderer.New(b)

	g := renderer.NewGeometry()
	red := quadMesh(0, m.NewVec4(1, 0, 0, 1))
	require.NoError(t, front.CreateGeometry(g, red))

	packet := testPacket(renderer.GeometryRenderData{Geometry: g, Model: m.NewMat4Identity()})
	require.NoError(t, front.DrawFrame(packet))

	px := b.Pixel(32, 32)
	assert.Greater(t, float64(px.X), 0.2)
	assert.Less(t, float64(px.Y), 0.05)
	assert.Less(t, float64(b.DepthAt(32, 32)), float64(depthFar))

	// A corner outside the quad keeps the clear color.
	assert.Equal(t, b.ClearColor, b.Pixel(0, 0))
}

func TestDepthOrderingIsDrawOrderIndependent(t *testing.T) {
	near := quadMesh(0, m.NewVec4(1, 0, 0, 1))
	far := quadMesh(-5, m.NewVec4(0, 1, 0, 1))

	for _, reversed := range []bool{false, true} {
		b := New()
		require.NoError(t, b.Initialize("test", 64, 64))
		front := renderer.New(b)

		gNear := renderer.NewGeometry()
		gFar := renderer.NewGeometry()
		require.NoError(t, front.CreateGeometry(gNear, near))
		require.NoError(t, front.CreateGeometry(gFar, far))

		draws := []renderer.GeometryRenderData{
			{Geometry: gFar, Model: m.NewMat4Identity()},
			{Geometry: gNear, Model: m.NewMat4Identity()},
		}
		if reversed {
			draws[0], draws[1] = draws[1], draws[0]
		}
		require.NoError(t, front.DrawFrame(testPacket(draws...)))

		// The near quad wins the center pixel either way.
		px := b.Pixel(32, 32)
		assert.Greater(t, float64(px.X), 0.2, "reversed=%v", reversed)
		assert.Less(t, float64(px.Y), 0.05, "reversed=%v", reversed)
		b.Shutdown()
	}
}

func TestDestroyGeometryReusesSlot(t *testing.T) {
	b := New()
	require.NoError(t, b.Initialize("test", 16, 16))
	defer b.Shutdown()
	front := renderer.New(b)

	g1 := renderer.NewGeometry()
	g2 := renderer.NewGeometry()
	mesh := quadMesh(0, m.NewVec4(1, 1, 1, 1))
	require.NoError(t, front.CreateGeometry(g1, mesh))
	first := g1.InternalID
	front.DestroyGeometry(g1)
	assert.False(t, g1.Uploaded())

	require.NoError(t, front.CreateGeometry(g2, mesh))
	assert.Equal(t, first, g2.InternalID)
}

func TestRendererRefusesWorkAfterShutdown(t *testing.T) {
	b := New()
	require.NoError(t, b.Initialize("test", 16, 16))
	front := renderer.New(b)
	require.NoError(t, front.Shutdown())
	assert.True(t, front.TornDown())

	g := renderer.NewGeometry()
	err := front.CreateGeometry(g, quadMesh(0, m.NewVec4(1, 1, 1, 1)))
	assert.ErrorIs(t, err, core.ErrTornDown)
	assert.ErrorIs(t, front.DrawFrame(testPacket()), core.ErrTornDown)
	assert.ErrorIs(t, front.OnResize(32, 32), core.ErrTornDown)
}

func TestResizedIgnoresMinimize(t *testing.T) {
	b := New()
	require.NoError(t, b.Initialize("test", 64, 48))
	defer b.Shutdown()

	require.NoError(t, b.Resized(0, 0))
	w, h := b.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)

	require.NoError(t, b.Resized(128, 96))
	w, h = b.Size()
	assert.Equal(t, 128, w)
	assert.Equal(t, 96, h)
}
