package winloop

import (
	"slices"
	"sync"
	"sync/atomic"
)

// WindowState is the per-window record the dispatch core reads and the
// backend's protocol handlers mutate. Implementations need not be
// thread-safe: every call is made with the owning [WindowStore] entry locked.
type WindowState interface {
	ScaleFactor() float64
	SurfaceSize() LogicalSize
	RequestSurfaceSize(size LogicalSize)
	FrameCallbackState() FrameCallbackState
	FrameCallbackReset()
	FrameCallbackReceived()
	// RequestFrameCallback asks the display server for a frame callback,
	// unless one is already outstanding.
	RequestFrameCallback()
	// RefreshFrame reports whether a redraw is owed, consuming it.
	RefreshFrame() bool
	// SetScaleFactor applies a server-driven scale change, returning false
	// if the scale did not change.
	SetScaleFactor(scale float64) bool
	// Configure applies a server-driven logical size, returning false if the
	// size did not change.
	Configure(size LogicalSize) bool
}

// SurfaceState is the bundled [WindowState] implementation.
type SurfaceState struct {
	conn  Connection
	size  LogicalSize
	scale float64
	FrameScheduler
	id WindowID
}

var _ WindowState = (*SurfaceState)(nil)

// NewSurfaceState constructs the state for a new window. Frame callback and
// resize requests are sent on conn, which may be nil.
func NewSurfaceState(id WindowID, conn Connection, size LogicalSize, scale float64) *SurfaceState {
	if scale <= 0 {
		scale = 1
	}
	s := &SurfaceState{
		id:    id,
		conn:  conn,
		size:  size,
		scale: scale,
	}
	// the initial frame is owed
	s.MarkDirty()
	return s
}

func (s *SurfaceState) ScaleFactor() float64 { return s.scale }

func (s *SurfaceState) SurfaceSize() LogicalSize { return s.size }

func (s *SurfaceState) RequestSurfaceSize(size LogicalSize) {
	if size == s.size {
		return
	}
	s.size = size
	s.MarkDirty()
	if s.conn != nil {
		_ = s.conn.Send(SetSurfaceSize{WindowID: s.id, Size: size})
	}
}

func (s *SurfaceState) RequestFrameCallback() {
	if s.FrameScheduler.RequestFrameCallback() && s.conn != nil {
		_ = s.conn.Send(FrameRequest{WindowID: s.id})
	}
}

func (s *SurfaceState) SetScaleFactor(scale float64) bool {
	if scale <= 0 || scale == s.scale {
		return false
	}
	s.scale = scale
	s.MarkDirty()
	return true
}

func (s *SurfaceState) Configure(size LogicalSize) bool {
	if size == s.size {
		return false
	}
	s.size = size
	s.MarkDirty()
	return true
}

// WindowRequests holds the per-window flags that any goroutine may set.
type WindowRequests struct {
	redrawRequested atomic.Bool
	closed          atomic.Bool
}

// RequestRedraw sets the redraw flag, returning true on the false→true edge.
func (r *WindowRequests) RequestRedraw() bool {
	return !r.redrawRequested.Swap(true)
}

func (r *WindowRequests) takeRedrawRequested() bool {
	return r.redrawRequested.Swap(false)
}

// MarkClosed sets the closed flag, returning true on the false→true edge.
func (r *WindowRequests) MarkClosed() bool {
	return !r.closed.Swap(true)
}

func (r *WindowRequests) takeClosed() bool {
	return r.closed.Swap(false)
}

// windowEntry is one arena slot: the state behind its own lock, plus the
// lock-free request flags.
type windowEntry struct {
	state    WindowState
	requests *WindowRequests
	mu       sync.Mutex
}

// WindowStore is the arena of live windows keyed by [WindowID]. The index is
// guarded by an RWMutex held only for lookup, insert and remove; each entry
// has its own exclusive lock, so unrelated windows never serialize.
type WindowStore struct {
	entries map[WindowID]*windowEntry
	mu      sync.RWMutex
}

// NewWindowStore constructs an empty store.
func NewWindowStore() *WindowStore {
	return &WindowStore{entries: make(map[WindowID]*windowEntry)}
}

// Insert adds a window, returning its request flags.
func (s *WindowStore) Insert(id WindowID, state WindowState) *WindowRequests {
	e := &windowEntry{state: state, requests: new(WindowRequests)}
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return e.requests
}

// Remove deletes a window, returning false if it was not present.
func (s *WindowStore) Remove(id WindowID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

// Contains reports whether a window is live.
func (s *WindowStore) Contains(id WindowID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of live windows.
func (s *WindowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// With calls fn with the window's state, holding only that entry's lock.
// It returns false if the window is not present.
func (s *WindowStore) With(id WindowID, fn func(state WindowState)) bool {
	e := s.entry(id)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
	return true
}

// Requests returns the window's request flags, or nil.
func (s *WindowStore) Requests(id WindowID) *WindowRequests {
	if e := s.entry(id); e != nil {
		return e.requests
	}
	return nil
}

// AppendIDs appends the live window IDs to dst in ascending order.
func (s *WindowStore) AppendIDs(dst []WindowID) []WindowID {
	start := len(dst)
	s.mu.RLock()
	for id := range s.entries {
		dst = append(dst, id)
	}
	s.mu.RUnlock()
	slices.Sort(dst[start:])
	return dst
}

func (s *WindowStore) entry(id WindowID) *windowEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}
