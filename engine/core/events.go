package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed. Data is a *KeyEvent.
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released. Data is a *KeyEvent.
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Mouse button pressed. Data is a *ButtonEvent.
	EVENT_CODE_BUTTON_PRESSED SystemEventCode = 0x04

	// Mouse button released. Data is a *ButtonEvent.
	EVENT_CODE_BUTTON_RELEASED SystemEventCode = 0x05

	// Mouse moved. Data is a *MouseEvent.
	EVENT_CODE_MOUSE_MOVED SystemEventCode = 0x06

	// Mouse wheel scrolled. Data is a *WheelEvent.
	EVENT_CODE_MOUSE_WHEEL SystemEventCode = 0x07

	// Resized/resolution changed from the OS. Data is a *SystemEvent.
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The solid under the pointer changed. Data is a *PickEvent.
	EVENT_CODE_HOVER_CHANGED SystemEventCode = 0x09

	// The selected solid changed. Data is a *PickEvent.
	EVENT_CODE_SELECTION_CHANGED SystemEventCode = 0x0A

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// EventContext carries one fired event to its listeners.
type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

// KeyEvent is the payload for key press/release events.
type KeyEvent struct {
	KeyCode KeyCode
}

// ButtonEvent is the payload for mouse button events.
type ButtonEvent struct {
	Button Button
	PosX   float64
	PosY   float64
}

// MouseEvent is the payload for pointer movement events.
type MouseEvent struct {
	PosX float64
	PosY float64
}

// WheelEvent is the payload for scroll events.
type WheelEvent struct {
	Delta float64
}

// PickEvent is the payload for hover and selection changes. SolidID is
// the scene handle as a string, empty when nothing is picked; ParcelID
// is the stable parcel identity.
type PickEvent struct {
	SolidID  string
	ParcelID string
}

// SystemEvent is the payload for window-level events such as resize.
type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

// FnOnEvent handles one fired event. Returning true marks the event as
// consumed and stops propagation to later listeners.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	callback FnOnEvent
}

type eventSystemState struct {
	registered map[SystemEventCode][]*registeredEvent
}

var onceEvent sync.Once
var isInitialized bool = false
var eventState *eventSystemState = nil

func EventSystemInitialize() bool {
	if isInitialized {
		return false
	}
	onceEvent.Do(func() {
		eventState = &eventSystemState{
			registered: make(map[SystemEventCode][]*registeredEvent),
		}
	})
	isInitialized = true
	return true
}

func EventSystemShutdown() error {
	if eventState != nil {
		eventState.registered = make(map[SystemEventCode][]*registeredEvent)
	}
	isInitialized = false
	return nil
}

// EventRegister subscribes a callback to the given code. The returned handle
// is used for unregistering.
func EventRegister(code SystemEventCode, onEvent FnOnEvent) *EventHandle {
	if !isInitialized {
		return nil
	}
	event := &registeredEvent{callback: onEvent}
	eventState.registered[code] = append(eventState.registered[code], event)
	return &EventHandle{code: code, event: event}
}

// EventHandle identifies one registration for later removal.
type EventHandle struct {
	code  SystemEventCode
	event *registeredEvent
}

// EventUnregister removes a previously registered callback. Returns false if
// the registration is unknown (already removed, or from before a shutdown).
func EventUnregister(handle *EventHandle) bool {
	if !isInitialized || handle == nil {
		return false
	}
	events := eventState.registered[handle.code]
	for i, e := range events {
		if e == handle.event {
			eventState.registered[handle.code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// EventFire delivers an event synchronously to listeners of context.Type, in
// registration order, until one reports it handled.
func EventFire(context EventContext) bool {
	if !isInitialized {
		return false
	}
	for _, e := range eventState.registered[context.Type] {
		if e.callback(context) {
			return true
		}
	}
	return false
}
