//go:build unix

package winloop

import (
	"errors"
	"sync/atomic"
	"time"
)

// ActiveEventLoop is passed to every callback. It is only valid on the loop
// goroutine, for the lifetime of the [EventLoop].
type ActiveEventLoop struct {
	conn        Connection
	state       *State
	awakener    *ping
	controlFlow ControlFlow
	proxy       Proxy
	exitCode    int
	exiting     bool
}

// SetControlFlow sets how the loop waits after the current iteration. The
// change takes effect at the next wait, never retroactively.
func (l *ActiveEventLoop) SetControlFlow(cf ControlFlow) { l.controlFlow = cf }

// ControlFlow returns the current control flow.
func (l *ActiveEventLoop) ControlFlow() ControlFlow { return l.controlFlow }

// Exit requests the loop to stop after the current iteration, with code 0.
func (l *ActiveEventLoop) Exit() { l.setExitCode(0) }

// Exiting reports whether an exit has been requested.
func (l *ActiveEventLoop) Exiting() bool { return l.exiting }

// ExitCode returns the exit code, if an exit has been requested.
func (l *ActiveEventLoop) ExitCode() (int, bool) { return l.exitCode, l.exiting }

// setExitCode records the exit code; the first write per run wins.
func (l *ActiveEventLoop) setExitCode(code int) {
	if l.exiting {
		return
	}
	l.exitCode = code
	l.exiting = true
}

func (l *ActiveEventLoop) clearExit() {
	l.exitCode = 0
	l.exiting = false
}

// CreateProxy returns a handle that can wake the loop from any goroutine.
func (l *ActiveEventLoop) CreateProxy() Proxy { return l.proxy }

// Connection returns the native connection shared with the loop.
func (l *ActiveEventLoop) Connection() Connection { return l.conn }

// DeviceEvents selects when device events are delivered.
type DeviceEvents uint8

const (
	DeviceEventsWhenFocused DeviceEvents = iota
	DeviceEventsAlways
	DeviceEventsNever
)

// ListenDeviceEvents is accepted for portability; this backend always
// delivers the device events the server sends.
func (l *ActiveEventLoop) ListenDeviceEvents(DeviceEvents) {}

// SystemTheme returns false: the display protocol carries no system theme.
func (l *ActiveEventLoop) SystemTheme() (Theme, bool) { return ThemeLight, false }

// WindowAttributes configures [ActiveEventLoop.CreateWindow].
type WindowAttributes struct {
	// SurfaceSize is the initial logical size, defaulting to 800x600.
	SurfaceSize LogicalSize
}

var windowIDCounter atomic.Uint64

// CreateWindow registers a new window and asks the server for its surface.
func (l *ActiveEventLoop) CreateWindow(attrs WindowAttributes) (*Window, error) {
	size := attrs.SurfaceSize
	if size.Width <= 0 || size.Height <= 0 {
		size = LogicalSize{Width: 800, Height: 600}
	}

	id := WindowID(windowIDCounter.Add(1))
	store := l.state.windows
	requests := store.Insert(id, NewSurfaceState(id, l.conn, size, 1))

	if err := l.conn.Send(CreateSurface{WindowID: id, Size: size}); err != nil {
		store.Remove(id)
		return nil, &RequestError{Op: "create window", Err: err}
	}

	return &Window{
		id:       id,
		conn:     l.conn,
		state:    l.state,
		requests: requests,
		awakener: l.awakener,
	}, nil
}

// CustomCursorSource describes a cursor to build with
// [ActiveEventLoop.CreateCustomCursor].
type CustomCursorSource interface {
	isCustomCursorSource()
}

type (
	// CursorImage is a straight RGBA8 image.
	CursorImage struct {
		RGBA     []byte
		Width    uint16
		Height   uint16
		HotspotX uint16
		HotspotY uint16
	}

	CursorAnimation struct {
		Frames   []CursorImage
		Duration time.Duration
	}

	CursorURL struct {
		URL string
	}
)

func (CursorImage) isCustomCursorSource()     {}
func (CursorAnimation) isCustomCursorSource() {}
func (CursorURL) isCustomCursorSource()       {}

// CustomCursor is a cursor accepted by the backend.
type CustomCursor struct {
	Image CursorImage
}

var errBadCursorImage = errors.New("winloop: cursor image does not match its dimensions")

// CreateCustomCursor builds a cursor. Only [CursorImage] sources are
// supported, others are rejected with a [*NotSupportedError].
func (l *ActiveEventLoop) CreateCustomCursor(source CustomCursorSource) (*CustomCursor, error) {
	image, ok := source.(CursorImage)
	if !ok {
		return nil, &NotSupportedError{Reason: "unsupported cursor kind"}
	}
	if len(image.RGBA) != int(image.Width)*int(image.Height)*4 ||
		image.HotspotX >= image.Width && image.Width != 0 ||
		image.HotspotY >= image.Height && image.Height != 0 {
		return nil, &RequestError{Op: "create custom cursor", Err: errBadCursorImage}
	}
	return &CustomCursor{Image: image}, nil
}
