package core

import "sync"

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key code definitions. Values match the platform layer's translation table;
// only the keys the viewer binds are named.
type KeyCode uint16

const (
	KEY_ESCAPE KeyCode = 0x1B
	KEY_SPACE  KeyCode = 0x20
	KEY_C      KeyCode = 0x43
	KEY_F      KeyCode = 0x46
	KEY_L      KeyCode = 0x4C
	KEY_R      KeyCode = 0x52
	// One past the highest trackable key code; sizes the state arrays.
	KEYS_MAX_KEYS KeyCode = 256
)

// Mouse state structure.
type MouseState struct {
	X       float64
	Y       float64
	Buttons [BUTTON_MAX_BUTTONS]bool
}

// Keyboard state structure.
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input state that holds current and previous states for keyboard and mouse.
// The previous copy is taken once per frame, after all events of that frame
// have been recorded.
type InputState struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
}

var onceInput sync.Once
var inputInitialized bool = false
var inputState *InputState = nil

func InputInitialize() error {
	onceInput.Do(func() {
		inputState = &InputState{}
	})
	inputInitialized = true
	LogInfo("Input subsystem initialized.")
	return nil
}

func InputShutdown() error {
	inputInitialized = false
	return nil
}

// InputUpdate copies current states to previous states. Call at the end of a
// frame, after all input of that frame has been recorded.
func InputUpdate(deltaTime float64) error {
	if !inputInitialized {
		return nil
	}
	inputState.KeyboardPrevious = inputState.KeyboardCurrent
	inputState.MousePrevious = inputState.MouseCurrent
	return nil
}

// InputProcessKey records a key state change and fires the matching event.
func InputProcessKey(keyCode KeyCode, pressed bool) {
	if !inputInitialized || keyCode >= KEYS_MAX_KEYS {
		return
	}
	if inputState.KeyboardCurrent.Keys[keyCode] == pressed {
		return
	}
	inputState.KeyboardCurrent.Keys[keyCode] = pressed

	eventType := EVENT_CODE_KEY_RELEASED
	if pressed {
		eventType = EVENT_CODE_KEY_PRESSED
	}
	EventFire(EventContext{
		Type: eventType,
		Data: &KeyEvent{KeyCode: keyCode},
	})
}

// InputProcessButton records a mouse button state change and fires the
// matching event with the pointer position at the time of the click.
func InputProcessButton(button Button, pressed bool) {
	if !inputInitialized || button >= BUTTON_MAX_BUTTONS {
		return
	}
	if inputState.MouseCurrent.Buttons[button] == pressed {
		return
	}
	inputState.MouseCurrent.Buttons[button] = pressed

	eventType := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		eventType = EVENT_CODE_BUTTON_PRESSED
	}
	EventFire(EventContext{
		Type: eventType,
		Data: &ButtonEvent{
			Button: button,
			PosX:   inputState.MouseCurrent.X,
			PosY:   inputState.MouseCurrent.Y,
		},
	})
}

// InputProcessMouseMove records the pointer position and fires a move event.
func InputProcessMouseMove(x, y float64) {
	if !inputInitialized {
		return
	}
	if inputState.MouseCurrent.X == x && inputState.MouseCurrent.Y == y {
		return
	}
	inputState.MouseCurrent.X = x
	inputState.MouseCurrent.Y = y
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_MOVED,
		Data: &MouseEvent{PosX: x, PosY: y},
	})
}

// InputProcessMouseWheel fires a wheel event. Wheel position is not tracked
// as state; only the per-event delta matters.
func InputProcessMouseWheel(delta float64) {
	if !inputInitialized {
		return
	}
	EventFire(EventContext{
		Type: EVENT_CODE_MOUSE_WHEEL,
		Data: &WheelEvent{Delta: delta},
	})
}

// InputIsButtonDown reports whether a mouse button is currently held.
func InputIsButtonDown(button Button) bool {
	if !inputInitialized || button >= BUTTON_MAX_BUTTONS {
		return false
	}
	return inputState.MouseCurrent.Buttons[button]
}

// InputMousePosition returns the current pointer position in window pixels.
func InputMousePosition() (float64, float64) {
	if !inputInitialized {
		return 0, 0
	}
	return inputState.MouseCurrent.X, inputState.MouseCurrent.Y
}

// InputWasKeyDown reports the key state of the previous frame.
func InputWasKeyDown(keyCode KeyCode) bool {
	if !inputInitialized || keyCode >= KEYS_MAX_KEYS {
		return false
	}
	return inputState.KeyboardPrevious.Keys[keyCode]
}

// InputIsKeyDown reports whether a key is currently held.
func InputIsKeyDown(keyCode KeyCode) bool {
	if !inputInitialized || keyCode >= KEYS_MAX_KEYS {
		return false
	}
	return inputState.KeyboardCurrent.Keys[keyCode]
}
