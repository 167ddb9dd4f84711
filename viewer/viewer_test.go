package viewer

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelscape/config"
	"parcelscape/engine/core"
	"parcelscape/engine/renderer"
	"parcelscape/engine/renderer/softraster"
)

// Two parcels a block apart, one cheap and one expensive, so the
// configured filter query splits them.
func parcelServer(t *testing.T) *httptest.Server {
	t.Helper()
	payload := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {
					"id": "cheap-1", "address": "101 9 Ave SE", "community": "Inglewood",
					"zoning": "RC-G", "assessed_value": 250000, "height_m": 8, "year": 1955
				},
				"geometry": {
					"type": "Polygon",
					"coordinates": [[[-114.031, 51.038], [-114.0305, 51.038], [-114.0305, 51.0384], [-114.031, 51.0384]]]
				}
			},
			{
				"type": "Feature",
				"properties": {
					"id": "tower-2", "address": "225 11 Ave SE", "community": "Beltline",
					"zoning": "CC-X", "assessed_value": 900000, "height_m": 60, "year": 2012
				},
				"geometry": {
					"type": "Polygon",
					"coordinates": [[[-114.032, 51.039], [-114.0315, 51.039], [-114.0315, 51.0394], [-114.032, 51.0394]]]
				}
			}
		]
	}`
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/buildings" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, payload)
			return
		}
		// No filter endpoint: the viewer falls back to local parsing.
		http.NotFound(w, r)
	}))
}

func newTestViewer(t *testing.T) *Viewer {
	t.Helper()

	require.NoError(t, core.InputInitialize())
	core.EventSystemInitialize()

	srv := parcelServer(t)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Data.BaseURL = srv.URL
	cfg.Data.Query = "under $500k"
	cfg.Data.TimeoutSeconds = 5
	cfg.Projects.Dir = t.TempDir()
	cfg.Projects.Username = "tester"

	v, err := New(cfg)
	require.NoError(t, err)

	v.Renderer = renderer.New(softraster.New())
	require.NoError(t, v.Renderer.Initialize(cfg.Window.Title, 320, 240))
	t.Cleanup(func() { v.Renderer.Shutdown() })

	require.NoError(t, v.Initialize())
	t.Cleanup(func() { v.Shutdown() })
	require.NoError(t, v.OnResize(320, 240))
	return v
}

// pumpUntil runs frames until the condition holds or the deadline hits.
func pumpUntil(t *testing.T, v *Viewer, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, v.Update(1.0/60.0))
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestViewerFetchesAndBuildsScene(t *testing.T) {
	v := newTestViewer(t)

	pumpUntil(t, v, func() bool { return len(v.scene.Solids()) == 2 })

	packet, err := v.Render(1.0 / 60.0)
	require.NoError(t, err)
	require.NotNil(t, packet)
	assert.Len(t, packet.Geometries, 2)

	// The orbit was framed onto the scene.
	assert.True(t, v.framed)
	assert.Greater(t, v.cameras.Orbit.Radius, float32(0))

	require.NoError(t, v.Renderer.DrawFrame(packet))
}

func TestViewerFilterToggleHighlightsMatches(t *testing.T) {
	v := newTestViewer(t)
	pumpUntil(t, v, func() bool { return len(v.scene.Solids()) == 2 })

	v.toggleFilter()
	require.NotNil(t, v.filterIDs)
	require.Len(t, v.scene.Solids(), 2)

	cheap, ok := v.scene.SolidByParcel("cheap-1")
	require.True(t, ok)
	assert.True(t, cheap.Highlighted)
	tower, ok := v.scene.SolidByParcel("tower-2")
	require.True(t, ok)
	assert.False(t, tower.Highlighted)

	// The session landed in the project store.
	p, ok := v.store.Load("tester", "last-session")
	require.True(t, ok)
	assert.Equal(t, "under $500k", p.Query)
	require.NotEmpty(t, p.Filters)

	v.toggleFilter()
	assert.Nil(t, v.filterIDs)
	cheap, _ = v.scene.SolidByParcel("cheap-1")
	assert.False(t, cheap.Highlighted)
}

func TestViewerLoadSessionRestoresFilter(t *testing.T) {
	v := newTestViewer(t)
	pumpUntil(t, v, func() bool { return len(v.scene.Solids()) == 2 })

	// First toggle saves the session, second clears the live filter.
	v.toggleFilter()
	v.toggleFilter()
	require.Nil(t, v.filterIDs)

	v.loadSession()
	require.NotNil(t, v.filterIDs)
	assert.Equal(t, "under $500k", v.activeQuery)
	require.NotEmpty(t, v.activeFilters)

	cheap, ok := v.scene.SolidByParcel("cheap-1")
	require.True(t, ok)
	assert.True(t, cheap.Highlighted)
	tower, ok := v.scene.SolidByParcel("tower-2")
	require.True(t, ok)
	assert.False(t, tower.Highlighted)
}

func TestViewerLoadSessionWithoutSaveIsIgnored(t *testing.T) {
	v := newTestViewer(t)
	pumpUntil(t, v, func() bool { return len(v.scene.Solids()) == 2 })

	v.loadSession()
	assert.Nil(t, v.filterIDs)
	assert.Empty(t, v.activeQuery)
}

func TestViewerSelectionHighlightFollowsEvents(t *testing.T) {
	v := newTestViewer(t)
	pumpUntil(t, v, func() bool { return len(v.scene.Solids()) == 2 })

	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_SELECTION_CHANGED,
		Data: &core.PickEvent{ParcelID: "tower-2"},
	})
	solid, ok := v.scene.SolidByParcel("tower-2")
	require.True(t, ok)
	assert.True(t, solid.Highlighted)

	// Selecting the other parcel moves the highlight.
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_SELECTION_CHANGED,
		Data: &core.PickEvent{ParcelID: "cheap-1"},
	})
	tower, _ := v.scene.SolidByParcel("tower-2")
	cheap, _ := v.scene.SolidByParcel("cheap-1")
	assert.False(t, tower.Highlighted)
	assert.True(t, cheap.Highlighted)
}

func TestViewerRenderSkipsWhenMinimized(t *testing.T) {
	v := newTestViewer(t)
	require.NoError(t, v.OnResize(0, 0))

	packet, err := v.Render(1.0 / 60.0)
	require.NoError(t, err)
	assert.Nil(t, packet)
}

func TestViewerEmptyQueryIsIgnored(t *testing.T) {
	v := newTestViewer(t)
	pumpUntil(t, v, func() bool { return len(v.scene.Solids()) == 2 })

	v.cfg.Data.Query = ""
	v.toggleFilter()
	assert.Nil(t, v.filterIDs)
	assert.Len(t, v.scene.Solids(), 2)
}
