package viewer

import (
	"context"
	"fmt"
	"time"

	"parcelscape/config"
	"parcelscape/engine"
	"parcelscape/engine/core"
	m "parcelscape/engine/math"
	"parcelscape/engine/renderer"
	"parcelscape/engine/systems"
	"parcelscape/geo"
	"parcelscape/parcels"
)

/**
 * @brief The viewer is the application driving the engine: it fetches
 * parcels from the backend, extrudes them into the scene, routes
 * pointer input into orbiting and picking, and mirrors the active
 * filter session into the project store.
 *
 * Key bindings: R refetches, F toggles the configured filter query,
 * L reloads the saved session's filters, C clears the selection,
 * Escape quits.
 */

// Name of the project the active filter session is mirrored into.
const sessionProject = "last-session"

type fetchResult struct {
	features []geo.Feature
	err      error
}

type Viewer struct {
	*engine.Game

	cfg    *config.Config
	client *parcels.Client
	store  *parcels.Store

	projector *geo.Projector
	scene     *systems.SceneSystem
	pick      *systems.PickSystem
	cameras   *systems.CameraSystem

	// Full feature set of the last fetch plus the filter highlighting
	// part of it. filterIDs is nil when no filter is active.
	features      []geo.Feature
	activeQuery   string
	activeFilters []parcels.Filter
	filterIDs     map[string]struct{}

	width  uint32
	height uint32

	lastX, lastY float64
	havePointer  bool
	framed       bool

	fetchCh  chan fetchResult
	cfgCh    chan *config.Config
	fetching bool

	handles []*core.EventHandle
}

func New(cfg *config.Config) (*Viewer, error) {
	client, err := parcels.NewClient(parcels.ClientConfig{
		BaseURL: cfg.Data.BaseURL,
		Timeout: time.Duration(cfg.Data.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	store, err := parcels.NewStore(cfg.Projects.Dir)
	if err != nil {
		return nil, err
	}

	v := &Viewer{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartPosX:   uint32(cfg.Window.X),
				StartPosY:   uint32(cfg.Window.Y),
				StartWidth:  cfg.Window.Width,
				StartHeight: cfg.Window.Height,
				Name:        cfg.Window.Title,
				LogLevel:    cfg.Log.Level,
			},
		},
		cfg:       cfg,
		client:    client,
		store:     store,
		projector: geo.NewProjector(cfg.Data.RefLat),
		fetchCh:   make(chan fetchResult, 1),
		cfgCh:     make(chan *config.Config, 1),
		width:     cfg.Window.Width,
		height:    cfg.Window.Height,
	}

	v.FnInitialize = v.Initialize
	v.FnUpdate = v.Update
	v.FnRender = v.Render
	v.FnOnResize = v.OnResize
	v.FnShutdown = v.Shutdown

	return v, nil
}

// ApplyConfig hands a fresh config to the viewer. Safe to call from
// other goroutines; the change lands on the next frame.
func (v *Viewer) ApplyConfig(cfg *config.Config) {
	select {
	case v.cfgCh <- cfg:
	default:
	}
}

func (v *Viewer) Initialize() error {
	var err error
	v.cameras, err = systems.NewCameraSystem(&systems.CameraSystemConfig{MaxCameraCount: 61})
	if err != nil {
		return err
	}
	v.scene, err = systems.NewSceneSystem(&systems.SceneSystemConfig{}, v.Renderer, v.projector)
	if err != nil {
		return err
	}
	v.pick = systems.NewPickSystem()

	v.handles = append(v.handles,
		core.EventRegister(core.EVENT_CODE_KEY_PRESSED, v.onKey),
		core.EventRegister(core.EVENT_CODE_BUTTON_PRESSED, v.onButton),
		core.EventRegister(core.EVENT_CODE_MOUSE_MOVED, v.onMouseMove),
		core.EventRegister(core.EVENT_CODE_MOUSE_WHEEL, v.onWheel),
		core.EventRegister(core.EVENT_CODE_HOVER_CHANGED, v.onHoverChanged),
		core.EventRegister(core.EVENT_CODE_SELECTION_CHANGED, v.onSelectionChanged),
	)

	for _, p := range v.store.List(v.cfg.Projects.Username) {
		core.LogInfo("saved project: %s (updated %s)", p.Name, p.UpdatedAt.Format(time.RFC3339))
	}

	v.startFetch()
	return nil
}

func (v *Viewer) Shutdown() error {
	for _, h := range v.handles {
		core.EventUnregister(h)
	}
	v.handles = nil
	v.store.Close()
	if v.scene != nil {
		return v.scene.Shutdown()
	}
	return nil
}

func (v *Viewer) startFetch() {
	if v.fetching {
		return
	}
	v.fetching = true
	core.LogInfo("fetching parcels for bbox %v", v.cfg.Data.BBox)

	bbox := parcels.BBox(v.cfg.Data.BBox)
	limit := v.cfg.Data.Limit
	timeout := time.Duration(v.cfg.Data.TimeoutSeconds) * time.Second
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		features, err := v.client.FetchBuildings(ctx, bbox, limit)
		v.fetchCh <- fetchResult{features: features, err: err}
	}()
}

func (v *Viewer) Update(deltaTime float64) error {
	select {
	case cfg := <-v.cfgCh:
		v.cfg = cfg
		core.SetLogLevel(cfg.Log.Level)
	default:
	}

	select {
	case res := <-v.fetchCh:
		v.fetching = false
		if res.err != nil {
			core.LogError("parcel fetch failed: %s", res.err.Error())
		} else {
			core.LogInfo("fetched %d parcels", len(res.features))
			v.features = res.features
			if err := v.rebuildScene(); err != nil {
				return err
			}
		}
	default:
	}

	v.cameras.Update()

	camera := v.cameras.DefaultCamera
	v.pick.Resolve(v.scene, camera, v.width, v.height)
	return nil
}

func (v *Viewer) Render(deltaTime float64) (*renderer.RenderPacket, error) {
	if v.width == 0 || v.height == 0 {
		return nil, nil
	}
	camera := v.cameras.DefaultCamera
	aspect := float32(v.width) / float32(v.height)
	return v.scene.BuildPacket(camera.GetView(), camera.GetProjection(aspect), deltaTime), nil
}

func (v *Viewer) OnResize(width, height uint32) error {
	v.width = width
	v.height = height
	v.pick.Invalidate()
	return nil
}

// rebuildScene re-extrudes the full feature set with filter matches and
// the current selection highlighted, and frames the camera on the first
// build.
func (v *Viewer) rebuildScene() error {
	highlights := make(map[string]struct{}, len(v.filterIDs)+1)
	for id := range v.filterIDs {
		highlights[id] = struct{}{}
	}
	if selected := v.pick.SelectedParcel(); selected != "" {
		highlights[selected] = struct{}{}
	}

	if err := v.scene.Rebuild(v.features, highlights); err != nil {
		return err
	}
	core.LogInfo("scene rebuilt: %d solids, %d highlighted, generation %d",
		len(v.scene.Solids()), len(highlights), v.scene.Generation())

	if !v.framed && len(v.scene.Solids()) > 0 {
		v.frameScene()
		v.framed = true
	}
	return nil
}

// frameScene aims the orbit at the middle of the scene bounds, backed
// off far enough to see all of it.
func (v *Viewer) frameScene() {
	ext := v.scene.Extents()
	center := ext.Min.Add(ext.Max).MulScalar(0.5)
	size := ext.Max.Sub(ext.Min).Length()
	if size <= 0 {
		return
	}
	orbit := v.cameras.Orbit
	orbit.Focus = m.NewVec3(center.X, 0, center.Z)
	orbit.Radius = m.Clamp(size*1.2, orbit.MinRadius, orbit.MaxRadius)
}

func (v *Viewer) toggleFilter() {
	if v.filterIDs != nil {
		v.filterIDs = nil
		v.activeFilters = nil
		v.activeQuery = ""
		core.LogInfo("filter cleared")
		if err := v.rebuildScene(); err != nil {
			core.LogError(err.Error())
		}
		return
	}

	query := v.cfg.Data.Query
	if query == "" {
		core.LogWarn("no filter query configured; set data.query in the config file")
		return
	}

	filters, ids := v.resolveFilters(query)
	if len(filters) == 0 {
		core.LogWarn("query %q parsed to no filters", query)
		return
	}
	core.LogInfo("filter %q matched %d of %d parcels", query, len(ids), len(v.features))

	v.filterIDs = ids
	v.activeQuery = query
	v.activeFilters = filters

	if err := v.rebuildScene(); err != nil {
		core.LogError(err.Error())
		return
	}
	v.saveSession()
}

// resolveFilters asks the backend to parse and apply the query, falling
// back to the local parser and matcher when the backend is unreachable.
func (v *Viewer) resolveFilters(query string) ([]parcels.Filter, map[string]struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(v.cfg.Data.TimeoutSeconds)*time.Second)
	defer cancel()

	res, err := v.client.QueryFilter(ctx, parcels.BBox(v.cfg.Data.BBox), query, v.cfg.Data.Limit)
	if err != nil {
		core.LogWarn("backend filter parse unavailable, parsing locally: %s", err.Error())
		filters := parcels.ParseQuery(query)
		ids, _ := parcels.ApplyFilters(filters, v.features)
		return filters, ids
	}

	ids := make(map[string]struct{}, len(res.IDs))
	for _, id := range res.IDs {
		ids[id] = struct{}{}
	}
	return res.Filters, ids
}

// loadSession restores the saved filter session from the project store
// and re-applies its filters to the current features.
func (v *Viewer) loadSession() {
	p, ok := v.store.Load(v.cfg.Projects.Username, sessionProject)
	if !ok {
		core.LogWarn("no saved session for user %q", v.cfg.Projects.Username)
		return
	}
	if len(p.Filters) == 0 {
		core.LogWarn("saved session %q has no filters", p.Query)
		return
	}

	ids := v.applyFilters(p.Filters)
	core.LogInfo("session %q restored: %d of %d parcels match", p.Query, len(ids), len(v.features))

	v.filterIDs = ids
	v.activeQuery = p.Query
	v.activeFilters = p.Filters
	if err := v.rebuildScene(); err != nil {
		core.LogError(err.Error())
	}
}

// applyFilters resolves parsed filters to their matching parcel ids,
// on the backend when reachable and locally otherwise.
func (v *Viewer) applyFilters(filters []parcels.Filter) map[string]struct{} {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(v.cfg.Data.TimeoutSeconds)*time.Second)
	defer cancel()

	res, err := v.client.ApplyFilter(ctx, parcels.BBox(v.cfg.Data.BBox), filters, v.cfg.Data.Limit)
	if err != nil {
		core.LogWarn("backend filter apply unavailable, matching locally: %s", err.Error())
		ids, _ := parcels.ApplyFilters(filters, v.features)
		return ids
	}

	ids := make(map[string]struct{}, len(res.IDs))
	for _, id := range res.IDs {
		ids[id] = struct{}{}
	}
	return ids
}

// saveSession snapshots the active filter session as a project.
func (v *Viewer) saveSession() {
	err := v.store.Save(&parcels.Project{
		Username: v.cfg.Projects.Username,
		Name:     sessionProject,
		Query:    v.activeQuery,
		Filters:  v.activeFilters,
		BBox:     v.cfg.Data.BBox,
		Limit:    v.cfg.Data.Limit,
	})
	if err != nil {
		core.LogError("failed to save session project: %s", err.Error())
	}
}

func (v *Viewer) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	switch ke.KeyCode {
	case core.KEY_R:
		v.startFetch()
	case core.KEY_F:
		v.toggleFilter()
	case core.KEY_L:
		v.loadSession()
	case core.KEY_C:
		v.pick.ClearSelection()
	}
	return false
}

func (v *Viewer) onButton(context core.EventContext) bool {
	be, ok := context.Data.(*core.ButtonEvent)
	if !ok {
		return false
	}
	if be.Button == core.BUTTON_LEFT {
		v.pick.RequestClick(be.PosX, be.PosY)
	}
	return false
}

func (v *Viewer) onMouseMove(context core.EventContext) bool {
	me, ok := context.Data.(*core.MouseEvent)
	if !ok {
		return false
	}
	dx := me.PosX - v.lastX
	dy := me.PosY - v.lastY
	if !v.havePointer {
		dx, dy = 0, 0
		v.havePointer = true
	}
	v.lastX, v.lastY = me.PosX, me.PosY

	orbit := v.cameras.Orbit
	switch {
	case core.InputIsButtonDown(core.BUTTON_RIGHT):
		orbit.Rotate(float32(-dx)*0.005, float32(-dy)*0.005)
	case core.InputIsButtonDown(core.BUTTON_MIDDLE):
		orbit.Pan(float32(dx), float32(dy))
	default:
		v.pick.RequestHover(me.PosX, me.PosY)
	}
	return false
}

func (v *Viewer) onWheel(context core.EventContext) bool {
	we, ok := context.Data.(*core.WheelEvent)
	if !ok {
		return false
	}
	v.cameras.Orbit.Zoom(float32(we.Delta))
	return false
}

func (v *Viewer) onHoverChanged(context core.EventContext) bool {
	pe, ok := context.Data.(*core.PickEvent)
	if !ok {
		return false
	}
	if pe.ParcelID == "" {
		core.LogDebug("hover cleared")
		return false
	}
	if solid, ok := v.scene.SolidByParcel(pe.ParcelID); ok {
		core.LogDebug("hovering %s (%s)", solid.Feature.Address, pe.ParcelID)
	}
	return false
}

func (v *Viewer) onSelectionChanged(context core.EventContext) bool {
	pe, ok := context.Data.(*core.PickEvent)
	if !ok {
		return false
	}

	// Move the highlight bake to the newly selected solid. Solids lit
	// by the active filter keep their highlight.
	for _, solid := range v.scene.Solids() {
		if !solid.Highlighted || solid.Feature.ID == pe.ParcelID {
			continue
		}
		if _, inFilter := v.filterIDs[solid.Feature.ID]; inFilter {
			continue
		}
		if err := v.scene.SetHighlight(solid.ID, false); err != nil {
			core.LogError(err.Error())
		}
	}
	if pe.ParcelID == "" {
		core.LogInfo("selection cleared")
		return false
	}
	solid, ok := v.scene.SolidByParcel(pe.ParcelID)
	if !ok {
		return false
	}
	if !solid.Highlighted {
		if err := v.scene.SetHighlight(solid.ID, true); err != nil {
			core.LogError(err.Error())
		}
	}

	f := &solid.Feature
	core.LogInfo("selected parcel %s: %s", f.ID, describeFeature(f))
	return false
}

func describeFeature(f *geo.Feature) string {
	return fmt.Sprintf("%s | community %s | zoning %s | assessed $%.0f | height %.1fm | built %d",
		f.Address, f.Community, f.Zoning, f.AssessedValue, f.HeightM, f.Year)
}
