package engine

import (
	"fmt"
	"sync/atomic"

	"parcelscape/engine/core"
	"parcelscape/engine/platform"
	"parcelscape/engine/renderer"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// BackendFactory builds the render backend once the platform window
// exists.
type BackendFactory func(p *platform.Platform) renderer.Backend

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool
	// Set from any goroutine; the run loop polls it each iteration.
	quitRequested atomic.Bool
	platform     *platform.Platform
	renderer     *renderer.Renderer
	newBackend   BackendFactory
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64
}

func New(g *Game, newBackend BackendFactory) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("func New - game with application config is required")
	}
	if newBackend == nil {
		return nil, fmt.Errorf("func New - backend factory is required")
	}

	p, err := platform.New()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     p,
		newBackend:   newBackend,
		isRunning:    true,
		isSuspended:  false,
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
		lastTime:     0,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	core.SetLogLevel(e.gameInstance.ApplicationConfig.LogLevel)

	// initialize input
	if err := core.InputInitialize(); err != nil {
		return err
	}

	// initialize events
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)

	if err := e.platform.Startup(e.gameInstance.ApplicationConfig.Name,
		e.gameInstance.ApplicationConfig.StartPosX,
		e.gameInstance.ApplicationConfig.StartPosY,
		e.gameInstance.ApplicationConfig.StartWidth,
		e.gameInstance.ApplicationConfig.StartHeight); err != nil {
		return err
	}

	e.renderer = renderer.New(e.newBackend(e.platform))
	if err := e.renderer.Initialize(e.gameInstance.ApplicationConfig.Name, e.width, e.height); err != nil {
		return err
	}
	e.gameInstance.Renderer = e.renderer

	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}

	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if e.quitRequested.Load() {
			break
		}
		if !e.platform.PumpMessages() {
			e.isRunning = false
		}

		if !e.isSuspended {
			e.clock.Update()

			currentTime := e.clock.Elapsed()
			delta := currentTime - e.lastTime

			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogFatal("game update failed, shutting down: %s", err.Error())
				e.isRunning = false
				break
			}

			packet, err := e.gameInstance.FnRender(delta)
			if err != nil {
				core.LogFatal("game render failed, shutting down: %s", err.Error())
				e.isRunning = false
				break
			}
			if packet != nil {
				if err := e.renderer.DrawFrame(packet); err != nil {
					if e.renderer.TornDown() {
						break
					}
					core.LogError("frame draw failed: %s", err.Error())
				}
			}

			// NOTE: Input update/state copying should always be handled
			// after any input should be recorded; I.E. before this line.
			// As a safety, input is the last thing to be updated before
			// this frame ends.
			core.InputUpdate(delta)

			e.lastTime = currentTime
		}
	}

	return e.Shutdown()
}

// RequestShutdown asks the run loop to exit. Safe to call from other
// goroutines; teardown happens on the loop's goroutine after the loop
// has stopped, so no frame can observe destroyed resources.
func (e *Engine) RequestShutdown() {
	e.quitRequested.Store(true)
	// SetShouldClose is one of the few GLFW calls allowed off the main
	// thread; it also wakes a loop blocked on the window.
	e.platform.RequestClose()
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if err := core.EventSystemShutdown(); err != nil {
		return err
	}
	if err := core.InputShutdown(); err != nil {
		return err
	}
	return e.platform.Shutdown()
}

// GetFramebufferSize returns the width and height (in this order)
// of the application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		e.platform.RequestClose()
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EventContext{
			Type: core.EVENT_CODE_APPLICATION_QUIT,
		})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	width := se.WindowWidth
	height := se.WindowHeight

	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height

	core.LogDebug("window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.renderer.OnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	return false
}
