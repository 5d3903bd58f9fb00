//go:build unix

package winloop

import (
	"sync"
)

// Window is the application's handle to a window created by
// [ActiveEventLoop.CreateWindow]. Its methods may be called from any
// goroutine.
type Window struct {
	conn      Connection
	state     *State
	requests  *WindowRequests
	awakener  *ping
	closeOnce sync.Once
	id        WindowID
}

// ID returns the window's identifier.
func (w *Window) ID() WindowID { return w.id }

// ScaleFactor returns the current scale factor, or 1 once the window is gone.
func (w *Window) ScaleFactor() float64 {
	scale := 1.0
	w.state.windows.With(w.id, func(s WindowState) { scale = s.ScaleFactor() })
	return scale
}

// SurfaceSize returns the current physical surface size, or the zero size
// once the window is gone.
func (w *Window) SurfaceSize() PhysicalSize {
	var size PhysicalSize
	w.state.windows.With(w.id, func(s WindowState) {
		size = LogicalToPhysical(s.SurfaceSize(), s.ScaleFactor())
	})
	return size
}

// RequestSurfaceSize asks for a new logical size. The change is reported as
// SurfaceResized once the server configures the surface.
func (w *Window) RequestSurfaceSize(size LogicalSize) error {
	if !w.state.windows.With(w.id, func(s WindowState) { s.RequestSurfaceSize(size) }) {
		return &RequestError{Op: "request surface size", Err: ErrUnknownWindow}
	}
	w.awakener.Ping()
	return nil
}

// RequestRedraw schedules RedrawRequested. Repeated calls before delivery
// coalesce into one event, and only the first wakes the loop.
func (w *Window) RequestRedraw() {
	if w.requests.RequestRedraw() {
		w.awakener.Ping()
	}
}

// PrePresentNotify must be called right before presenting a frame. It asks
// the server for a frame callback, so the next redraw is paced to the display.
func (w *Window) PrePresentNotify() {
	w.state.windows.With(w.id, func(s WindowState) { s.RequestFrameCallback() })
}

// SetTheme applies a theme, reported back to the application as a
// ThemeChanged event in the next iteration.
func (w *Window) SetTheme(theme Theme) {
	if !w.state.windows.Contains(w.id) {
		return
	}
	w.state.pushHandleEvent(w.id, ThemeChanged{Theme: theme})
	w.awakener.Ping()
}

// Close destroys the window. The loop delivers exactly one Destroyed event
// for it, after which the handle is inert. Idempotent.
func (w *Window) Close() error {
	var err error
	w.closeOnce.Do(func() {
		if !w.state.windows.Contains(w.id) {
			return
		}
		if sendErr := w.conn.Send(DestroySurface{WindowID: w.id}); sendErr != nil {
			err = &RequestError{Op: "close window", Err: sendErr}
		}
		if w.requests.MarkClosed() {
			w.awakener.Ping()
		}
	})
	return err
}
