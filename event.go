package winloop

import (
	"sync"
)

type (
	// WindowID identifies a window for its whole lifetime. IDs are allocated
	// from a process-wide counter and never reused.
	WindowID uint64

	// DeviceID identifies an input device. [NoDevice] means unknown.
	DeviceID uint64

	// Theme is a window color theme.
	Theme uint8
)

// NoDevice is passed to [ApplicationHandler.DeviceEvent] when the backend
// cannot attribute an event to a device.
const NoDevice DeviceID = 0

const (
	ThemeLight Theme = iota
	ThemeDark
)

// String returns a human-readable representation of the theme.
func (t Theme) String() string {
	if t == ThemeDark {
		return "Dark"
	}
	return "Light"
}

// WindowEvent is a window-scoped event, see [ApplicationHandler.WindowEvent].
type WindowEvent interface {
	isWindowEvent()
}

type (
	// ScaleFactorChanged is delivered when the window's scale factor changed.
	// The handler may negotiate a different surface size through
	// SurfaceSizeWriter, which is only valid for the duration of the callback.
	ScaleFactorChanged struct {
		SurfaceSizeWriter *SurfaceSizeWriter
		ScaleFactor       float64
	}

	// SurfaceResized carries the new physical surface size.
	SurfaceResized struct {
		Size PhysicalSize
	}

	// CloseRequested is a request, the application may ignore it.
	CloseRequested struct{}

	// Destroyed is terminal: no further events are delivered for the window.
	Destroyed struct{}

	// RedrawRequested signals the application should draw the window.
	RedrawRequested struct{}

	Focused struct {
		Focused bool
	}

	PointerMoved struct {
		X float64
		Y float64
	}

	PointerButton struct {
		Button  uint32
		Pressed bool
	}

	KeyboardInput struct {
		Key     uint32
		Pressed bool
	}

	ThemeChanged struct {
		Theme Theme
	}
)

func (ScaleFactorChanged) isWindowEvent() {}
func (SurfaceResized) isWindowEvent()     {}
func (CloseRequested) isWindowEvent()     {}
func (Destroyed) isWindowEvent()          {}
func (RedrawRequested) isWindowEvent()    {}
func (Focused) isWindowEvent()            {}
func (PointerMoved) isWindowEvent()       {}
func (PointerButton) isWindowEvent()      {}
func (KeyboardInput) isWindowEvent()      {}
func (ThemeChanged) isWindowEvent()       {}

// DeviceEvent is an event not bound to any window.
type DeviceEvent interface {
	isDeviceEvent()
}

type (
	// PointerMotion is raw, unaccelerated relative pointer motion.
	PointerMotion struct {
		DX float64
		DY float64
	}

	// Key is a raw key state change.
	Key struct {
		Code    uint32
		Pressed bool
	}
)

func (PointerMotion) isDeviceEvent() {}
func (Key) isDeviceEvent()           {}

// Event is the element type of an [EventSink]: either a
// [WindowEventRecord] or a [DeviceEventRecord].
type Event interface {
	isEvent()
}

type (
	WindowEventRecord struct {
		Event    WindowEvent
		WindowID WindowID
	}

	DeviceEventRecord struct {
		Event    DeviceEvent
		DeviceID DeviceID
	}
)

func (WindowEventRecord) isEvent() {}
func (DeviceEventRecord) isEvent() {}

// SurfaceSizeWriter lets a ScaleFactorChanged handler override the surface
// size implied by pure scaling.
type SurfaceSizeWriter struct {
	mu      sync.Mutex
	size    PhysicalSize
	expired bool
}

func newSurfaceSizeWriter(size PhysicalSize) *SurfaceSizeWriter {
	return &SurfaceSizeWriter{size: size}
}

// SurfaceSize returns the size that will be applied once the callback returns.
func (w *SurfaceSizeWriter) SurfaceSize() PhysicalSize {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// RequestSurfaceSize sets the surface size to apply. It returns
// [ErrSizeWriterExpired] once the ScaleFactorChanged callback has returned.
func (w *SurfaceSizeWriter) RequestSurfaceSize(size PhysicalSize) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.expired {
		return ErrSizeWriterExpired
	}
	w.size = size
	return nil
}

// expire invalidates the writer and returns the final size.
func (w *SurfaceSizeWriter) expire() PhysicalSize {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expired = true
	return w.size
}
