//go:build unix

package wire

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-winloop"
	"golang.org/x/sys/unix"
)

// ErrClosed is returned by operations on a closed Conn.
var ErrClosed = errors.New("wire: connection closed")

// errUnexpectedOpcode is a protocol error: the server sent a request opcode.
var errUnexpectedOpcode = errors.New("wire: unexpected opcode")

// Conn is a client connection to a display server. It implements
// [winloop.Connection].
//
// Outbound requests are buffered until Flush. Inbound bytes are read
// non-blockingly and framed into a queue, under one lock, so concurrent
// readers never consume the same message twice.
type Conn struct {
	// out is guarded by outMu
	out   []byte
	outMu sync.Mutex

	// in holds a partial frame, queue the decoded messages, both guarded by inMu
	in    []byte
	queue []Message
	inMu  sync.Mutex

	readBuf [4096]byte

	fd     int
	serial atomic.Uint64
	// done is the highest Done serial dispatched, loop goroutine only
	done   uint64
	closed atomic.Bool
}

var _ winloop.Connection = (*Conn)(nil)

// NewConn wraps a connected stream socket, switching it to non-blocking
// mode. The Conn takes ownership of fd.
func NewConn(fd int) (*Conn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("wire: set non-blocking: %w", err)
	}
	return &Conn{fd: fd}, nil
}

// Dial connects to the server listening on the Unix socket at path.
func Dial(path string) (*Conn, error) {
	if path == "" {
		return nil, errors.New("wire: empty socket path")
	}
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("wire: socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("wire: connect %s: %w", path, err)
	}
	c, err := NewConn(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return c, nil
}

// Fd returns the socket's file descriptor.
func (c *Conn) Fd() int { return c.fd }

// Send buffers a request until the next Flush.
func (c *Conn) Send(request winloop.Request) error {
	m, err := encodeRequest(request)
	if err != nil {
		return err
	}
	return c.sendMessage(m)
}

func (c *Conn) sendMessage(m Message) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.outMu.Lock()
	c.out = AppendFrame(c.out, m)
	c.outMu.Unlock()
	return nil
}

func encodeRequest(request winloop.Request) (Message, error) {
	switch r := request.(type) {
	case winloop.CreateSurface:
		return Message{Op: OpCreateSurface, Window: uint64(r.WindowID), X: r.Size.Width, Y: r.Size.Height}, nil
	case winloop.DestroySurface:
		return Message{Op: OpDestroySurface, Window: uint64(r.WindowID)}, nil
	case winloop.FrameRequest:
		return Message{Op: OpFrameRequest, Window: uint64(r.WindowID)}, nil
	case winloop.SetSurfaceSize:
		return Message{Op: OpSetSurfaceSize, Window: uint64(r.WindowID), X: r.Size.Width, Y: r.Size.Height}, nil
	default:
		return Message{}, fmt.Errorf("wire: unsupported request %T", request)
	}
}

// Flush writes every buffered request, blocking while the socket is full.
func (c *Conn) Flush() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	for len(c.out) > 0 {
		n, err := unix.Write(c.fd, c.out)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			if err := waitFd(c.fd, unix.POLLOUT); err != nil {
				return err
			}
			continue
		case err != nil:
			return fmt.Errorf("wire: write: %w", err)
		}
		c.out = c.out[n:]
	}
	c.out = c.out[:0]
	return nil
}

// PrepareRead returns nil if messages are already queued.
func (c *Conn) PrepareRead() winloop.ReadGuard {
	c.inMu.Lock()
	defer c.inMu.Unlock()
	if len(c.queue) > 0 {
		return nil
	}
	return readGuard{c: c}
}

type readGuard struct {
	c *Conn
}

func (g readGuard) Read() error { return g.c.readAvailable() }

func (readGuard) Cancel() {}

// readAvailable reads until the socket would block, framing what arrived.
func (c *Conn) readAvailable() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.inMu.Lock()
	defer c.inMu.Unlock()
	for {
		n, err := unix.Read(c.fd, c.readBuf[:])
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return nil
		case err != nil:
			return fmt.Errorf("wire: read: %w", err)
		case n == 0:
			return fmt.Errorf("wire: server hung up: %w", unix.ECONNRESET)
		}
		c.in = append(c.in, c.readBuf[:n]...)
		if err := c.frameLocked(); err != nil {
			return err
		}
	}
}

func (c *Conn) frameLocked() error {
	var off int
	for off < len(c.in) {
		m, n, err := ConsumeFrame(c.in[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		c.queue = append(c.queue, m)
		off += n
	}
	c.in = append(c.in[:0], c.in[off:]...)
	return nil
}

// DispatchPending decodes every queued message into state.
func (c *Conn) DispatchPending(state *winloop.State) (int, error) {
	c.inMu.Lock()
	queue := c.queue
	c.queue = nil
	c.inMu.Unlock()

	for i, m := range queue {
		if err := c.dispatch(state, m); err != nil {
			return i, err
		}
	}
	return len(queue), nil
}

func (c *Conn) dispatch(state *winloop.State, m Message) error {
	id := winloop.WindowID(m.Window)
	switch m.Op {
	case OpConfigure:
		state.Configure(id, winloop.LogicalSize{Width: m.X, Height: m.Y})
	case OpScale:
		state.ScaleFactorChanged(id, m.X)
	case OpClose:
		state.CloseRequested(id)
	case OpFrameDone:
		state.FrameDone(id)
	case OpFocus:
		state.PushWindowEvent(id, winloop.Focused{Focused: m.Flag})
	case OpPointerMotion:
		state.PushWindowEvent(id, winloop.PointerMoved{X: m.X, Y: m.Y})
	case OpPointerButton:
		state.PushWindowEvent(id, winloop.PointerButton{Button: m.Code, Pressed: m.Flag})
	case OpKey:
		if m.Window == 0 {
			state.PushDeviceEvent(winloop.DeviceID(m.Device), winloop.Key{Code: m.Code, Pressed: m.Flag})
		} else {
			state.PushWindowEvent(id, winloop.KeyboardInput{Key: m.Code, Pressed: m.Flag})
		}
	case OpRelativeMotion:
		state.PushDeviceEvent(winloop.DeviceID(m.Device), winloop.PointerMotion{DX: m.X, DY: m.Y})
	case OpDone:
		if m.Serial > c.done {
			c.done = m.Serial
		}
	default:
		return fmt.Errorf("%w: %s", errUnexpectedOpcode, m.Op)
	}
	return nil
}

// Roundtrip blocks until the server has answered a Sync sent after every
// buffered request, dispatching whatever arrives meanwhile into state.
func (c *Conn) Roundtrip(state *winloop.State) error {
	serial := c.serial.Add(1)
	if err := c.sendMessage(Message{Op: OpSync, Serial: serial}); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}
	for {
		if _, err := c.DispatchPending(state); err != nil {
			return err
		}
		if c.done >= serial {
			return nil
		}
		if err := waitFd(c.fd, unix.POLLIN); err != nil {
			return err
		}
		if err := c.readAvailable(); err != nil {
			return err
		}
	}
}

// Close closes the socket. Idempotent.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	// wait out concurrent readers and writers
	c.inMu.Lock()
	c.outMu.Lock()
	defer c.outMu.Unlock()
	defer c.inMu.Unlock()
	return unix.Close(c.fd)
}

func waitFd(fd int, events int16) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("wire: poll: %w", err)
		}
		return nil
	}
}
