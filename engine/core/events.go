package core

import "sync"

// Data carried by an event. Only the fields relevant to the code are set.
type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * data := context.Data.(*SystemEvent)
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// A watched asset changed on disk.
	/* Context usage:
	 * data := context.Data.(*AssetEvent)
	 */
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AssetEvent struct {
	Path string
	Kind string
}

type FnOnEvent func(context EventContext)

type eventSystemState struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]FnOnEvent
}

var eventState *eventSystemState

func EventSystemInitialize() bool {
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{
		registered: make(map[SystemEventCode][]FnOnEvent),
	}
	return true
}

func EventSystemShutdown() error {
	eventState = nil
	return nil
}

// EventRegister adds a callback for code. Returns false if the system is not running.
func EventRegister(code SystemEventCode, onEvent FnOnEvent) bool {
	if eventState == nil || onEvent == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	eventState.registered[code] = append(eventState.registered[code], onEvent)
	return true
}

// EventFire delivers context to every listener of its code and reports
// whether anyone was listening. Safe to call from the asset watcher goroutine.
func EventFire(context EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.RLock()
	listeners := append([]FnOnEvent(nil), eventState.registered[context.Type]...)
	eventState.mu.RUnlock()
	for _, l := range listeners {
		l(context)
	}
	return len(listeners) > 0
}
