package engine

import (
	"parcelscape/engine/renderer"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// Renderer is set by the engine before FnInitialize runs.
	Renderer     *renderer.Renderer
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(deltaTime float64) (*renderer.RenderPacket, error)
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
