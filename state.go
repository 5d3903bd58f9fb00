package winloop

import (
	"sync"

	"github.com/joeycumines/logiface"
)

// State is the target of [Connection.DispatchPending]: the backend's protocol
// handlers translate server events into calls on State, which records them in
// the window store, the event sink and the compositor update aggregator.
//
// State belongs to the loop goroutine, except where noted.
type State struct {
	logger  *logiface.Logger[logiface.Event]
	windows *WindowStore

	// windowEvents is fed from Window handles, on any goroutine.
	windowEvents struct {
		sink EventSink
		mu   sync.Mutex
	}

	events  EventSink
	updates compositorUpdates

	// dispatchedEvents is the hint that the last wait produced work.
	dispatchedEvents bool
	// proxyWakeUp is set by the proxy ping source.
	proxyWakeUp bool
}

// NewState constructs an empty State, for backends driving a Connection
// outside an EventLoop. A nil logger disables logging.
func NewState(logger *logiface.Logger[logiface.Event]) *State {
	return &State{
		logger:  logger,
		windows: NewWindowStore(),
	}
}

// Windows returns the window store.
func (s *State) Windows() *WindowStore { return s.windows }

// ScaleFactorChanged applies a new scale factor to a window.
func (s *State) ScaleFactorChanged(id WindowID, scale float64) {
	var changed bool
	if !s.windows.With(id, func(w WindowState) { changed = w.SetScaleFactor(scale) }) {
		s.dropUnknown(id, "scale")
		return
	}
	if changed {
		s.updates.queue(CompositorUpdate{WindowID: id, ScaleChanged: true})
	}
}

// Configure applies a server-driven logical surface size to a window.
func (s *State) Configure(id WindowID, size LogicalSize) {
	var changed bool
	if !s.windows.With(id, func(w WindowState) { changed = w.Configure(size) }) {
		s.dropUnknown(id, "configure")
		return
	}
	if changed {
		s.updates.queue(CompositorUpdate{WindowID: id, Resized: true})
	}
}

// CloseRequested records the server asking for a window to close.
func (s *State) CloseRequested(id WindowID) {
	if !s.windows.Contains(id) {
		s.dropUnknown(id, "close")
		return
	}
	s.updates.queue(CompositorUpdate{WindowID: id, CloseWindow: true})
}

// FrameDone records a frame callback acknowledgment.
func (s *State) FrameDone(id WindowID) {
	if !s.windows.With(id, func(w WindowState) { w.FrameCallbackReceived() }) {
		s.dropUnknown(id, "frame")
		return
	}
	// a redraw held back by the outstanding callback is now deliverable
	if r := s.windows.Requests(id); r != nil && r.redrawRequested.Load() {
		s.dispatchedEvents = true
	}
}

// PushWindowEvent records a raw window event.
func (s *State) PushWindowEvent(id WindowID, event WindowEvent) {
	if !s.windows.Contains(id) {
		s.dropUnknown(id, "window event")
		return
	}
	s.events.PushWindowEvent(id, event)
}

// PushDeviceEvent records a raw device event.
func (s *State) PushDeviceEvent(id DeviceID, event DeviceEvent) {
	s.events.PushDeviceEvent(id, event)
}

// pushHandleEvent is the cross-goroutine path used by Window handles.
func (s *State) pushHandleEvent(id WindowID, event WindowEvent) {
	s.windowEvents.mu.Lock()
	s.windowEvents.sink.PushWindowEvent(id, event)
	s.windowEvents.mu.Unlock()
}

func (s *State) takeHandleEvents(dst *EventSink) {
	s.windowEvents.mu.Lock()
	dst.Append(&s.windowEvents.sink)
	s.windowEvents.mu.Unlock()
}

// hasPendingWork reports whether dispatch produced events or updates.
func (s *State) hasPendingWork() bool {
	return !s.events.IsEmpty() || !s.updates.isEmpty()
}

func (s *State) dropUnknown(id WindowID, what string) {
	s.logger.Debug().
		Uint64("window", uint64(id)).
		Str("event", what).
		Log("winloop: dropped event for unknown window")
}
