package systems

import (
	"fmt"

	"parcelscape/engine/core"
	"parcelscape/engine/renderer/components"
)

type CameraSystem struct {
	Config *CameraSystemConfig
	Lookup map[string]*cameraLookup
	Orbit  *components.OrbitController
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *components.Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/** @brief The maximum number of cameras that can be managed by the system. */
	MaxCameraCount uint16
}

type cameraLookup struct {
	ReferenceCount uint16
	Camera         *components.Camera
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	cs := &CameraSystem{
		Config:        config,
		Lookup:        make(map[string]*cameraLookup, config.MaxCameraCount),
		Orbit:         components.NewOrbitController(),
		DefaultCamera: components.NewCamera(),
	}
	return cs, nil
}

func (cs *CameraSystem) Shutdown() error {
	cs.Lookup = nil
	return nil
}

/**
 * @brief Acquires a camera by name, creating it on first use.
 * Internal reference counter is incremented.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == components.DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	lookup, ok := cs.Lookup[name]
	if !ok {
		if len(cs.Lookup) >= int(cs.Config.MaxCameraCount) {
			err := fmt.Errorf("func CameraSystem.Acquire failed to acquire new slot. Adjust camera system config to allow more. Null returned")
			core.LogError(err.Error())
			return nil, err
		}
		core.LogDebug("creating new camera named '%s'", name)
		lookup = &cameraLookup{Camera: components.NewCamera()}
		cs.Lookup[name] = lookup
	}
	lookup.ReferenceCount++
	return lookup.Camera, nil
}

/**
 * @brief Releases a camera with the given name. Internal reference
 * counter is decremented; at zero the camera is removed.
 */
func (cs *CameraSystem) Release(name string) {
	if name == components.DEFAULT_CAMERA_NAME {
		return
	}
	lookup, ok := cs.Lookup[name]
	if !ok {
		core.LogWarn("CameraSystem.Release: no camera named '%s'", name)
		return
	}
	lookup.ReferenceCount--
	if lookup.ReferenceCount == 0 {
		delete(cs.Lookup, name)
	}
}

// Update applies the orbit controller to the default camera. Called
// once per frame after input has been processed.
func (cs *CameraSystem) Update() {
	cs.Orbit.Apply(cs.DefaultCamera)
}
