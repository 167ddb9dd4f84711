package components

import (
	"parcelscape/engine/math"
)

/**
 * @brief A look-at camera over the parcel scene. Ideally created and
 * managed by the camera system.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	/**
	 * @brief The point the camera looks at.
	 * NOTE: Do not set this directly, use SetTarget() instead
	 * so the view matrix is recalculated when needed.
	 */
	Target math.Vec3
	/** @brief Vertical field of view in radians. */
	FOV float32
	/** @brief Near clip distance. */
	NearClip float32
	/** @brief Far clip distance. */
	FarClip float32
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: Do not get this directly, use GetView() instead
	 * so the view matrix is recalculated when needed.
	 */
	ViewMatrix math.Mat4
}

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.NewVec3(0, 120, 220)
	c.Target = math.NewVec3Zero()
	c.FOV = math.DegToRad(60)
	c.NearClip = 0.1
	c.FarClip = 10000
	c.IsDirty = true
	c.ViewMatrix = math.NewMat4Identity()
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) GetTarget() math.Vec3 {
	return c.Target
}

func (c *Camera) SetTarget(target math.Vec3) {
	c.Target = target
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = math.NewMat4LookAt(c.Position, c.Target, math.NewVec3Up())
		c.IsDirty = false
	}
	return c.ViewMatrix
}

func (c *Camera) GetProjection(aspect float32) math.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return math.NewMat4Perspective(c.FOV, aspect, c.NearClip, c.FarClip)
}

/**
 * @brief Orbit interaction state around a focus point: yaw and pitch
 * in radians plus the orbit radius. Applied to a camera once per frame.
 */
type OrbitController struct {
	Focus  math.Vec3
	Yaw    float32
	Pitch  float32
	Radius float32

	MinRadius float32
	MaxRadius float32
	MinPitch  float32
	MaxPitch  float32
}

func NewOrbitController() *OrbitController {
	return &OrbitController{
		Yaw:       math.DegToRad(35),
		Pitch:     math.DegToRad(-40),
		Radius:    400,
		MinRadius: 10,
		MaxRadius: 6000,
		// Never quite straight down, never below the horizon.
		MinPitch: math.DegToRad(-89),
		MaxPitch: math.DegToRad(-5),
	}
}

func (oc *OrbitController) Rotate(deltaYaw, deltaPitch float32) {
	oc.Yaw += deltaYaw
	oc.Pitch = math.Clamp(oc.Pitch+deltaPitch, oc.MinPitch, oc.MaxPitch)
}

func (oc *OrbitController) Zoom(delta float32) {
	// Multiplicative so zoom speed tracks distance.
	oc.Radius = math.Clamp(oc.Radius*(1-delta*0.1), oc.MinRadius, oc.MaxRadius)
}

func (oc *OrbitController) Pan(deltaX, deltaY float32) {
	// Pan in the ground plane relative to the current yaw.
	sinYaw := math.Sin(oc.Yaw)
	cosYaw := math.Cos(oc.Yaw)
	scale := oc.Radius * 0.0015
	right := math.NewVec3(cosYaw, 0, -sinYaw)
	forward := math.NewVec3(sinYaw, 0, cosYaw)
	oc.Focus = oc.Focus.
		Add(right.MulScalar(-deltaX * scale)).
		Add(forward.MulScalar(deltaY * scale))
}

// Apply positions the camera on the orbit sphere around the focus.
func (oc *OrbitController) Apply(camera *Camera) {
	cosPitch := math.Cos(oc.Pitch)
	offset := math.NewVec3(
		oc.Radius*cosPitch*math.Sin(oc.Yaw),
		oc.Radius*-math.Sin(oc.Pitch),
		oc.Radius*cosPitch*math.Cos(oc.Yaw),
	)
	camera.SetPosition(oc.Focus.Add(offset))
	camera.SetTarget(oc.Focus)
}
