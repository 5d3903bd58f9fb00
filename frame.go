package winloop

// FrameCallbackState tracks the display server's frame pacing for a window.
//
// State Machine:
//
//	FrameCallbackIdle (0) → FrameCallbackRequested (1)     [RequestFrameCallback()]
//	FrameCallbackReceived (2) → FrameCallbackRequested (1) [RequestFrameCallback()]
//	FrameCallbackRequested (1) → FrameCallbackReceived (2) [FrameCallbackReceived(), server "done"]
//	any → FrameCallbackIdle (0)                            [FrameCallbackReset(), by the driver]
//
// RedrawRequested is never delivered while the state is FrameCallbackRequested.
type FrameCallbackState uint8

const (
	// FrameCallbackIdle indicates no frame callback is outstanding.
	FrameCallbackIdle FrameCallbackState = iota
	// FrameCallbackRequested indicates the server has not yet acknowledged the
	// last frame.
	FrameCallbackRequested
	// FrameCallbackReceived indicates the server acknowledged the last frame.
	FrameCallbackReceived
)

// String returns a human-readable representation of the state.
func (s FrameCallbackState) String() string {
	switch s {
	case FrameCallbackIdle:
		return "Idle"
	case FrameCallbackRequested:
		return "Requested"
	case FrameCallbackReceived:
		return "Received"
	default:
		return "Unknown"
	}
}

// FrameScheduler is the per-window redraw state machine. A window is either
// idle or owes a redraw (dirty); the parallel [FrameCallbackState] gates
// delivery to the display's own pacing.
//
// Not thread-safe, the owning [WindowStore] entry lock guards it.
type FrameScheduler struct {
	callback FrameCallbackState
	dirty    bool
}

// FrameCallbackState returns the display-server frame pacing state.
func (f *FrameScheduler) FrameCallbackState() FrameCallbackState {
	return f.callback
}

// RequestFrameCallback moves to Requested, returning false if a frame
// callback was already outstanding (the caller must not request another).
func (f *FrameScheduler) RequestFrameCallback() bool {
	if f.callback == FrameCallbackRequested {
		return false
	}
	f.callback = FrameCallbackRequested
	return true
}

// FrameCallbackReceived records the server's frame acknowledgment.
func (f *FrameScheduler) FrameCallbackReceived() {
	f.callback = FrameCallbackReceived
}

// FrameCallbackReset returns to Idle, once the driver consumed the state.
func (f *FrameScheduler) FrameCallbackReset() {
	f.callback = FrameCallbackIdle
}

// MarkDirty schedules a redraw.
func (f *FrameScheduler) MarkDirty() {
	f.dirty = true
}

// RefreshFrame reports whether a redraw is owed, consuming it. Calling it
// again without new scheduling activity returns false.
func (f *FrameScheduler) RefreshFrame() bool {
	dirty := f.dirty
	f.dirty = false
	return dirty
}
