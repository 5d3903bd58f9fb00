//go:build unix

package winloop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSendConn struct {
	*fakeConn
	err error
}

func (c failingSendConn) Send(Request) error { return c.err }

func newTestActive(t *testing.T, conn Connection) *ActiveEventLoop {
	t.Helper()
	awakener, err := newPing()
	require.NoError(t, err)
	t.Cleanup(func() { _ = awakener.close() })
	return &ActiveEventLoop{conn: conn, state: NewState(nil), awakener: awakener}
}

func TestActiveEventLoop_ExitCodeFirstWins(t *testing.T) {
	l := newTestActive(t, newFakeConn(t))
	_, ok := l.ExitCode()
	assert.False(t, ok)

	l.setExitCode(3)
	l.Exit()
	l.setExitCode(4)
	code, ok := l.ExitCode()
	assert.True(t, ok)
	assert.Equal(t, 3, code)
	assert.True(t, l.Exiting())

	l.clearExit()
	assert.False(t, l.Exiting())
	l.Exit()
	code, _ = l.ExitCode()
	assert.Equal(t, 0, code)
}

func TestActiveEventLoop_CreateWindow(t *testing.T) {
	conn := newFakeConn(t)
	l := newTestActive(t, conn)

	a, err := l.CreateWindow(WindowAttributes{})
	require.NoError(t, err)
	b, err := l.CreateWindow(WindowAttributes{SurfaceSize: LogicalSize{Width: 10, Height: 20}})
	require.NoError(t, err)
	assert.Greater(t, b.ID(), a.ID(), "ids are never reused")

	assert.Equal(t, PhysicalSize{Width: 800, Height: 600}, a.SurfaceSize())
	assert.Equal(t, 1.0, a.ScaleFactor())
	assert.Equal(t, []Request{
		CreateSurface{WindowID: a.ID(), Size: LogicalSize{Width: 800, Height: 600}},
		CreateSurface{WindowID: b.ID(), Size: LogicalSize{Width: 10, Height: 20}},
	}, conn.sent())
	assert.Equal(t, 2, l.state.windows.Len())
}

func TestActiveEventLoop_CreateWindowSendFailure(t *testing.T) {
	cause := errors.New("broken pipe")
	l := newTestActive(t, failingSendConn{fakeConn: newFakeConn(t), err: cause})

	w, err := l.CreateWindow(WindowAttributes{})
	assert.Nil(t, w)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "create window", reqErr.Op)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, l.state.windows.Len(), "the window is not left behind")
}

func TestActiveEventLoop_CreateCustomCursor(t *testing.T) {
	l := newTestActive(t, newFakeConn(t))

	cursor, err := l.CreateCustomCursor(CursorImage{RGBA: make([]byte, 2*2*4), Width: 2, Height: 2, HotspotX: 1, HotspotY: 1})
	require.NoError(t, err)
	assert.Equal(t, uint16(2), cursor.Image.Width)

	for _, source := range []CustomCursorSource{CursorAnimation{}, CursorURL{URL: "https://example.com/c.png"}} {
		_, err := l.CreateCustomCursor(source)
		var notSupported *NotSupportedError
		assert.ErrorAs(t, err, &notSupported, "%T", source)
	}

	for _, image := range []CursorImage{
		{RGBA: make([]byte, 3), Width: 1, Height: 1},
		{RGBA: make([]byte, 4), Width: 1, Height: 1, HotspotX: 1},
		{RGBA: make([]byte, 4), Width: 1, Height: 1, HotspotY: 2},
	} {
		_, err := l.CreateCustomCursor(image)
		assert.ErrorIs(t, err, errBadCursorImage)
	}
}

func TestActiveEventLoop_Misc(t *testing.T) {
	conn := newFakeConn(t)
	l := newTestActive(t, conn)
	assert.Same(t, conn, l.Connection())
	theme, ok := l.SystemTheme()
	assert.False(t, ok)
	assert.Equal(t, ThemeLight, theme)
	assert.NotPanics(t, func() { l.ListenDeviceEvents(DeviceEventsAlways) })
	assert.True(t, l.ControlFlow().IsWait())
	l.SetControlFlow(Poll())
	assert.True(t, l.ControlFlow().IsPoll())
}

func TestWindow_Requests(t *testing.T) {
	conn := newFakeConn(t)
	l := newTestActive(t, conn)
	w, err := l.CreateWindow(WindowAttributes{SurfaceSize: LogicalSize{Width: 10, Height: 10}})
	require.NoError(t, err)

	require.NoError(t, w.RequestSurfaceSize(LogicalSize{Width: 20, Height: 10}))
	assert.Equal(t, PhysicalSize{Width: 20, Height: 10}, w.SurfaceSize())
	assert.True(t, readable(t, l.awakener.readFd, 0))
	l.awakener.drain()

	w.RequestRedraw()
	assert.True(t, readable(t, l.awakener.readFd, 0))
	l.awakener.drain()
	w.RequestRedraw()
	assert.False(t, readable(t, l.awakener.readFd, 0), "only the first request wakes")

	w.PrePresentNotify()
	w.PrePresentNotify()
	w.SetTheme(ThemeDark)
	assert.Equal(t, 1, l.state.windowEvents.sink.Len())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, []Request{
		CreateSurface{WindowID: w.ID(), Size: LogicalSize{Width: 10, Height: 10}},
		SetSurfaceSize{WindowID: w.ID(), Size: LogicalSize{Width: 20, Height: 10}},
		FrameRequest{WindowID: w.ID()},
		DestroySurface{WindowID: w.ID()},
	}, conn.sent())
	assert.True(t, w.requests.takeClosed())

	// gone from the store: the handle is inert
	l.state.windows.Remove(w.ID())
	assert.ErrorIs(t, w.RequestSurfaceSize(LogicalSize{Width: 1, Height: 1}), ErrUnknownWindow)
	assert.Equal(t, PhysicalSize{}, w.SurfaceSize())
	assert.Equal(t, 1.0, w.ScaleFactor())
	w.SetTheme(ThemeLight)
	assert.Equal(t, 1, l.state.windowEvents.sink.Len())
}
