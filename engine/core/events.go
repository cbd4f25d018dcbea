package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * data.(*SystemEvent).WindowWidth
	 * data.(*SystemEvent).WindowHeight
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The host window exists and a surface can be created for it.
	EVENT_CODE_WINDOW_CREATED SystemEventCode = 0x09

	// The host window is going away. Every GPU resource must be released.
	EVENT_CODE_WINDOW_DESTROYED SystemEventCode = 0x0A

	EVENT_CODE_FOCUS_GAINED SystemEventCode = 0x0B
	EVENT_CODE_FOCUS_LOST   SystemEventCode = 0x0C

	// A watched asset was written.
	/* Context usage:
	 * data.(string) = path of the asset
	 */
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x0D

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// DefaultEventQueueSize is large enough to absorb a burst of window callbacks between two frames.
const DefaultEventQueueSize = 64

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type FnOnEvent func(context EventContext)

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventSystem queues events fired from any goroutine and delivers them to the
// registered listeners on the goroutine that calls Dispatch.
type EventSystem struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
	queue      chan EventContext
	closed     bool
}

func NewEventSystem(queueSize int) *EventSystem {
	if queueSize <= 0 {
		queueSize = DefaultEventQueueSize
	}
	return &EventSystem{
		registered: make(map[SystemEventCode][]*registeredEvent),
		queue:      make(chan EventContext, queueSize),
	}
}

// Register listens for events with the provided code. A listener can only be
// registered once per code; a duplicate returns false.
func (es *EventSystem) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	es.mu.Lock()
	defer es.mu.Unlock()

	for _, e := range es.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code `%d`", code)
			return false
		}
	}
	es.registered[code] = append(es.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

func (es *EventSystem) Unregister(code SystemEventCode, listener interface{}) bool {
	es.mu.Lock()
	defer es.mu.Unlock()

	events := es.registered[code]
	for i, e := range events {
		if e.listener == listener {
			es.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire enqueues the event without blocking. It returns false when the queue
// is full or the system has been shut down.
func (es *EventSystem) Fire(context EventContext) bool {
	es.mu.RLock()
	defer es.mu.RUnlock()
	if es.closed {
		return false
	}
	select {
	case es.queue <- context:
		return true
	default:
		LogWarn("event queue full, dropping event code `%d`", context.Type)
		return false
	}
}

// Dispatch delivers every queued event in order and returns how many were handled.
func (es *EventSystem) Dispatch() int {
	count := 0
	for {
		select {
		case context := <-es.queue:
			es.deliver(context)
			count++
		default:
			return count
		}
	}
}

func (es *EventSystem) deliver(context EventContext) {
	es.mu.RLock()
	listeners := make([]*registeredEvent, len(es.registered[context.Type]))
	copy(listeners, es.registered[context.Type])
	es.mu.RUnlock()

	for _, l := range listeners {
		l.callback(context)
	}
}

// Pending reports the number of queued, undelivered events.
func (es *EventSystem) Pending() int {
	return len(es.queue)
}

func (es *EventSystem) Shutdown() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.closed = true
	es.registered = make(map[SystemEventCode][]*registeredEvent)
	return nil
}
