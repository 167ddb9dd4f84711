package systems

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"parcelscape/engine/core"
	"parcelscape/engine/geometry"
	m "parcelscape/engine/math"
	"parcelscape/engine/renderer"
	"parcelscape/geo"
)

/**
 * @brief The scene system owns every solid currently on screen: one
 * extruded prism per parcel, keyed by a scene-local UUID, carrying the
 * parcel's attributes and the GPU geometry handle.
 *
 * The scene only changes through full rebuilds. A rebuild disposes all
 * GPU geometry, re-extrudes the new feature set and bumps the
 * generation counter; anything holding solid handles from a previous
 * generation must treat them as stale.
 */

type Solid struct {
	ID       uuid.UUID
	Feature  geo.Feature
	Geometry *renderer.Geometry
	// CPU-side triangles for the picking narrow phase.
	Mesh        geometry.MeshData
	Highlighted bool
}

type SceneSystemConfig struct {
	DefaultColor   m.Vec4
	HighlightColor m.Vec4
}

type SceneSystem struct {
	Config *SceneSystemConfig

	renderer  *renderer.Renderer
	projector *geo.Projector

	solids []*Solid
	byID   map[uuid.UUID]*Solid

	originX, originY float64
	generation       uint64
	extents          m.Extents3D
}

func NewSceneSystem(config *SceneSystemConfig, r *renderer.Renderer, projector *geo.Projector) (*SceneSystem, error) {
	if r == nil || projector == nil {
		err := fmt.Errorf("func NewSceneSystem - renderer and projector are required")
		core.LogError(err.Error())
		return nil, err
	}
	if config.HighlightColor == (m.Vec4{}) {
		config.HighlightColor = m.NewVec4(1.0, 0.72, 0.18, 1)
	}
	return &SceneSystem{
		Config:    config,
		renderer:  r,
		projector: projector,
		byID:      make(map[uuid.UUID]*Solid),
		extents:   m.NewExtents3D(),
	}, nil
}

func (ss *SceneSystem) Shutdown() error {
	ss.disposeAll()
	return nil
}

func (ss *SceneSystem) Generation() uint64 { return ss.generation }

func (ss *SceneSystem) Origin() (float64, float64) { return ss.originX, ss.originY }

// Extents covers every solid in the scene; used to frame the camera.
func (ss *SceneSystem) Extents() m.Extents3D { return ss.extents }

func (ss *SceneSystem) Solids() []*Solid { return ss.solids }

func (ss *SceneSystem) SolidByID(id uuid.UUID) (*Solid, bool) {
	s, ok := ss.byID[id]
	return s, ok
}

// SolidByParcel finds the solid for a parcel id in the current
// generation, if the parcel survived the latest rebuild.
func (ss *SceneSystem) SolidByParcel(parcelID string) (*Solid, bool) {
	for _, s := range ss.solids {
		if s.Feature.ID == parcelID {
			return s, true
		}
	}
	return nil, false
}

/**
 * @brief Rebuild replaces the whole scene with the given features.
 *
 * Old geometry is disposed before any new geometry is created, every
 * solid gets a fresh UUID, and the generation counter increments even
 * when the new feature set is empty. Features whose footprints cannot
 * be extruded are skipped with a warning rather than failing the
 * rebuild. highlights is a membership set of parcel ids whose solids
 * bake the highlight color; it carries filter matches and the current
 * selection across the rebuild.
 */
func (ss *SceneSystem) Rebuild(features []geo.Feature, highlights map[string]struct{}) error {
	ss.disposeAll()

	ss.originX, ss.originY = ss.projector.OriginFor(features)

	for i := range features {
		f := &features[i]
		_, highlighted := highlights[f.ID]
		color := ss.colorFor(f, highlighted)

		mesh, err := geometry.BuildParcelMesh(f, ss.projector, ss.originX, ss.originY, color)
		if err != nil {
			core.LogWarn("scene rebuild: %v", err)
			continue
		}
		g := renderer.NewGeometry()
		if err := ss.renderer.CreateGeometry(g, &mesh); err != nil {
			return fmt.Errorf("upload parcel %s: %w", f.ID, err)
		}
		solid := &Solid{
			ID:          uuid.New(),
			Feature:     *f,
			Geometry:    g,
			Mesh:        mesh,
			Highlighted: highlighted,
		}
		ss.solids = append(ss.solids, solid)
		ss.byID[solid.ID] = solid
		ss.extents.ExpandTo(g.Extents.Min)
		ss.extents.ExpandTo(g.Extents.Max)
	}

	ss.generation++
	core.LogInfo("scene generation %d: %d solids from %d features", ss.generation, len(ss.solids), len(features))
	return nil
}

// Clear removes every solid. Counts as a rebuild for staleness.
func (ss *SceneSystem) Clear() {
	ss.disposeAll()
	ss.generation++
}

/**
 * @brief SetHighlight re-bakes one solid's colors in place.
 *
 * Vertex colors are baked at creation, so toggling the highlight
 * re-extrudes just that solid and re-uploads its buffers. The solid
 * keeps its UUID and the generation does not change: nothing else in
 * the scene moved.
 */
func (ss *SceneSystem) SetHighlight(id uuid.UUID, highlighted bool) error {
	solid, ok := ss.byID[id]
	if !ok {
		return fmt.Errorf("scene: unknown solid %s", id)
	}
	if solid.Highlighted == highlighted {
		return nil
	}
	color := ss.colorFor(&solid.Feature, highlighted)
	mesh, err := geometry.BuildParcelMesh(&solid.Feature, ss.projector, ss.originX, ss.originY, color)
	if err != nil {
		return err
	}
	ss.renderer.DestroyGeometry(solid.Geometry)
	g := renderer.NewGeometry()
	g.Generation = solid.Geometry.Generation
	if err := ss.renderer.CreateGeometry(g, &mesh); err != nil {
		return err
	}
	solid.Geometry = g
	solid.Mesh = mesh
	solid.Highlighted = highlighted
	return nil
}

// BuildPacket assembles the frame's draw list. Solids are already in
// world space, so every draw uses the identity model transform.
func (ss *SceneSystem) BuildPacket(view, projection m.Mat4, deltaTime float64) *renderer.RenderPacket {
	packet := &renderer.RenderPacket{
		DeltaTime:  deltaTime,
		View:       view,
		Projection: projection,
		Geometries: make([]renderer.GeometryRenderData, 0, len(ss.solids)),
	}
	identity := m.NewMat4Identity()
	for _, s := range ss.solids {
		packet.Geometries = append(packet.Geometries, renderer.GeometryRenderData{
			Geometry: s.Geometry,
			Model:    identity,
		})
	}
	return packet
}

func (ss *SceneSystem) disposeAll() {
	for _, s := range ss.solids {
		ss.renderer.DestroyGeometry(s.Geometry)
	}
	ss.solids = nil
	ss.byID = make(map[uuid.UUID]*Solid)
	ss.extents = m.NewExtents3D()
}

// colorFor picks the baked color: the highlight color for selected
// parcels, otherwise a muted tone keyed off the zoning group so
// districts read at a glance.
func (ss *SceneSystem) colorFor(f *geo.Feature, highlighted bool) m.Vec4 {
	if highlighted {
		return ss.Config.HighlightColor
	}
	if ss.Config.DefaultColor != (m.Vec4{}) {
		return ss.Config.DefaultColor
	}
	zoning := strings.ToUpper(f.Zoning)
	switch {
	case strings.HasPrefix(zoning, "R"):
		return m.NewVec4(0.45, 0.58, 0.45, 1)
	case strings.HasPrefix(zoning, "C"):
		return m.NewVec4(0.42, 0.50, 0.65, 1)
	case strings.HasPrefix(zoning, "M"):
		return m.NewVec4(0.40, 0.58, 0.58, 1)
	case strings.HasPrefix(zoning, "I"):
		return m.NewVec4(0.62, 0.54, 0.38, 1)
	case strings.HasPrefix(zoning, "DC"), strings.HasPrefix(zoning, "S"):
		return m.NewVec4(0.55, 0.47, 0.62, 1)
	default:
		return m.NewVec4(0.52, 0.52, 0.55, 1)
	}
}
