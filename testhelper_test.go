//go:build unix

package winloop

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeConn is a Connection backed by a pipe. Tests inject protocol events as
// closures over *State; writing to the pipe makes the read end ready, and a
// ReadGuard.Read moves injected events to the dispatch queue.
type fakeConn struct {
	flushErr error
	readErr  error

	// guarded by mu
	pending  []func(*State)
	queued   []func(*State)
	requests []Request
	mu       sync.Mutex

	r int
	w int
}

var _ Connection = (*fakeConn)(nil)

func newFakeConn(t *testing.T) *fakeConn {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	c := &fakeConn{r: fds[0], w: fds[1]}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// inject delivers fn to the State with the next read.
func (c *fakeConn) inject(fn func(*State)) {
	c.mu.Lock()
	c.pending = append(c.pending, fn)
	c.mu.Unlock()
	c.poke()
}

// poke makes the connection readable without sending anything.
func (c *fakeConn) poke() {
	_, _ = unix.Write(c.w, []byte{1})
}

func (c *fakeConn) setFlushErr(err error) {
	c.mu.Lock()
	c.flushErr = err
	c.mu.Unlock()
}

func (c *fakeConn) setReadErr(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
}

func (c *fakeConn) sent() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.requests...)
}

func (c *fakeConn) Fd() int { return c.r }

func (c *fakeConn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushErr
}

func (c *fakeConn) PrepareRead() ReadGuard {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queued) > 0 {
		return nil
	}
	return fakeGuard{c}
}

type fakeGuard struct{ c *fakeConn }

func (g fakeGuard) Read() error {
	var buf [64]byte
	for {
		if n, err := unix.Read(g.c.r, buf[:]); err != nil || n <= 0 {
			break
		}
	}
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	g.c.queued = append(g.c.queued, g.c.pending...)
	g.c.pending = nil
	return g.c.readErr
}

func (fakeGuard) Cancel() {}

func (c *fakeConn) DispatchPending(state *State) (int, error) {
	c.mu.Lock()
	queued := c.queued
	c.queued = nil
	c.mu.Unlock()
	for _, fn := range queued {
		fn(state)
	}
	return len(queued), nil
}

func (c *fakeConn) Roundtrip(state *State) error {
	c.mu.Lock()
	queued := append(c.queued, c.pending...)
	c.queued, c.pending = nil, nil
	c.mu.Unlock()
	for _, fn := range queued {
		fn(state)
	}
	return nil
}

func (c *fakeConn) Send(request Request) error {
	c.mu.Lock()
	c.requests = append(c.requests, request)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.r < 0 {
		return nil
	}
	_ = unix.Close(c.w)
	err := unix.Close(c.r)
	c.r, c.w = -1, -1
	return err
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

func newTestLogger(w *syncBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}

func newTestLoop(t *testing.T, opts ...Option) (*EventLoop, *fakeConn) {
	t.Helper()
	conn := newFakeConn(t)
	loop, err := New(conn, append([]Option{WithMetrics(true)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })
	return loop, conn
}

// traceHandler records every callback as a string, and runs the optional
// hooks after recording.
type traceHandler struct {
	onNewEvents   func(loop *ActiveEventLoop, cause StartCause)
	onCreate      func(loop *ActiveEventLoop)
	onProxy       func(loop *ActiveEventLoop)
	onWindowEvent func(loop *ActiveEventLoop, id WindowID, event WindowEvent)
	onDeviceEvent func(loop *ActiveEventLoop, id DeviceID, event DeviceEvent)
	onAboutToWait func(loop *ActiveEventLoop)
	trace         []string
}

var _ ApplicationHandler = (*traceHandler)(nil)

func (h *traceHandler) NewEvents(loop *ActiveEventLoop, cause StartCause) {
	h.trace = append(h.trace, fmt.Sprintf("NewEvents(%s)", causeName(cause)))
	if h.onNewEvents != nil {
		h.onNewEvents(loop, cause)
	}
}

func (h *traceHandler) CanCreateSurfaces(loop *ActiveEventLoop) {
	h.trace = append(h.trace, "CanCreateSurfaces")
	if h.onCreate != nil {
		h.onCreate(loop)
	}
}

func (h *traceHandler) ProxyWakeUp(loop *ActiveEventLoop) {
	h.trace = append(h.trace, "ProxyWakeUp")
	if h.onProxy != nil {
		h.onProxy(loop)
	}
}

func (h *traceHandler) WindowEvent(loop *ActiveEventLoop, id WindowID, event WindowEvent) {
	h.trace = append(h.trace, windowEventEntry(id, event))
	if h.onWindowEvent != nil {
		h.onWindowEvent(loop, id, event)
	}
}

func (h *traceHandler) DeviceEvent(loop *ActiveEventLoop, id DeviceID, event DeviceEvent) {
	h.trace = append(h.trace, fmt.Sprintf("DeviceEvent(%d, %T)", id, event))
	if h.onDeviceEvent != nil {
		h.onDeviceEvent(loop, id, event)
	}
}

func (h *traceHandler) AboutToWait(loop *ActiveEventLoop) {
	h.trace = append(h.trace, "AboutToWait")
	if h.onAboutToWait != nil {
		h.onAboutToWait(loop)
	}
}

func (h *traceHandler) reset() { h.trace = nil }

// count returns how many trace entries equal s.
func (h *traceHandler) count(s string) int {
	var n int
	for _, v := range h.trace {
		if v == s {
			n++
		}
	}
	return n
}

func causeName(cause StartCause) string {
	switch cause.(type) {
	case Init:
		return "Init"
	case PollCause:
		return "Poll"
	case WaitCancelled:
		return "WaitCancelled"
	case ResumeTimeReached:
		return "ResumeTimeReached"
	default:
		return fmt.Sprintf("%T", cause)
	}
}

func eventName(event WindowEvent) string {
	switch event := event.(type) {
	case SurfaceResized:
		return fmt.Sprintf("SurfaceResized(%dx%d)", event.Size.Width, event.Size.Height)
	case ScaleFactorChanged:
		return fmt.Sprintf("ScaleFactorChanged(%v)", event.ScaleFactor)
	default:
		name := fmt.Sprintf("%T", event)
		return name[len("winloop."):]
	}
}

func windowEventEntry(id WindowID, event WindowEvent) string {
	return fmt.Sprintf("WindowEvent(%d, %s)", id, eventName(event))
}
