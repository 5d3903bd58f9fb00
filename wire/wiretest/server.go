//go:build unix

// Package wiretest provides an in-process display server for exercising
// [wire.Conn] and the event loop without a real compositor.
package wiretest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/joeycumines/go-winloop"
	"github.com/joeycumines/go-winloop/wire"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Server is a fake display server on one end of a socketpair. It records
// every request, answers Sync with Done, and answers FrameRequest with
// FrameDone unless frames are held.
type Server struct {
	client *wire.Conn
	group  errgroup.Group

	// guarded by mu
	requests []wire.Message
	held     []uint64
	changed  chan struct{}
	hold     bool
	mu       sync.Mutex

	writeMu   sync.Mutex
	closeOnce sync.Once
	scale     float64
	fd        int
}

// Option configures a Server.
type Option func(*Server)

// WithHeldFrames makes the server hold back FrameDone until ReleaseFrames.
func WithHeldFrames(hold bool) Option {
	return func(s *Server) { s.hold = hold }
}

// WithScale makes the server announce scale right after every
// CreateSurface.
func WithScale(scale float64) Option {
	return func(s *Server) { s.scale = scale }
}

// New starts a server, returning it with the connected client end.
func New(opts ...Option) (*Server, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("wiretest: socketpair: %w", err)
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])

	client, err := wire.NewConn(fds[0])
	if err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}

	s := &Server{
		client:  client,
		fd:      fds[1],
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.group.Go(s.serve)
	return s, nil
}

// Client returns the client end. Closing it is the caller's responsibility.
func (s *Server) Client() *wire.Conn { return s.client }

func (s *Server) serve() error {
	var (
		buf [4096]byte
		in  []byte
	)
	for {
		n, err := unix.Read(s.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil || n == 0 {
			// hung up, or shut down by Close
			return nil
		}
		in = append(in, buf[:n]...)

		var off int
		for {
			m, size, err := wire.ConsumeFrame(in[off:])
			if err != nil {
				return err
			}
			if size == 0 {
				break
			}
			off += size
			if err := s.handle(m); err != nil {
				return err
			}
		}
		in = append(in[:0], in[off:]...)
	}
}

func (s *Server) handle(m wire.Message) error {
	s.mu.Lock()
	s.requests = append(s.requests, m)
	close(s.changed)
	s.changed = make(chan struct{})
	hold := s.hold
	if hold && m.Op == wire.OpFrameRequest {
		s.held = append(s.held, m.Window)
	}
	s.mu.Unlock()

	switch m.Op {
	case wire.OpSync:
		return s.write(wire.Message{Op: wire.OpDone, Serial: m.Serial})
	case wire.OpFrameRequest:
		if !hold {
			return s.write(wire.Message{Op: wire.OpFrameDone, Window: m.Window})
		}
	case wire.OpCreateSurface:
		if s.scale > 0 && s.scale != 1 {
			return s.write(wire.Message{Op: wire.OpScale, Window: m.Window, X: s.scale})
		}
	}
	return nil
}

func (s *Server) write(messages ...wire.Message) error {
	var b []byte
	for _, m := range messages {
		b = wire.AppendFrame(b, m)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for len(b) > 0 {
		n, err := unix.Write(s.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("wiretest: write: %w", err)
		}
		b = b[n:]
	}
	return nil
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// WaitFor blocks until fn, called with the requests received so far,
// returns true.
func (s *Server) WaitFor(ctx context.Context, fn func(requests []wire.Message) bool) error {
	for {
		s.mu.Lock()
		ok := fn(s.requests)
		changed := s.changed
		s.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// ReleaseFrames sends FrameDone for every held frame request.
func (s *Server) ReleaseFrames() error {
	s.mu.Lock()
	held := s.held
	s.held = nil
	s.mu.Unlock()

	messages := make([]wire.Message, 0, len(held))
	for _, id := range held {
		messages = append(messages, wire.Message{Op: wire.OpFrameDone, Window: id})
	}
	return s.write(messages...)
}

// Configure sends a new logical surface size.
func (s *Server) Configure(id winloop.WindowID, size winloop.LogicalSize) error {
	return s.write(wire.Message{Op: wire.OpConfigure, Window: uint64(id), X: size.Width, Y: size.Height})
}

// Scale sends a new scale factor.
func (s *Server) Scale(id winloop.WindowID, scale float64) error {
	return s.write(wire.Message{Op: wire.OpScale, Window: uint64(id), X: scale})
}

// RequestClose asks the client to close a window.
func (s *Server) RequestClose(id winloop.WindowID) error {
	return s.write(wire.Message{Op: wire.OpClose, Window: uint64(id)})
}

// FrameDone sends an unsolicited frame acknowledgment.
func (s *Server) FrameDone(id winloop.WindowID) error {
	return s.write(wire.Message{Op: wire.OpFrameDone, Window: uint64(id)})
}

func (s *Server) Focus(id winloop.WindowID, focused bool) error {
	return s.write(wire.Message{Op: wire.OpFocus, Window: uint64(id), Flag: focused})
}

func (s *Server) PointerMotion(id winloop.WindowID, x, y float64) error {
	return s.write(wire.Message{Op: wire.OpPointerMotion, Window: uint64(id), X: x, Y: y})
}

func (s *Server) PointerButton(id winloop.WindowID, button uint32, pressed bool) error {
	return s.write(wire.Message{Op: wire.OpPointerButton, Window: uint64(id), Code: button, Flag: pressed})
}

func (s *Server) Key(id winloop.WindowID, key uint32, pressed bool) error {
	return s.write(wire.Message{Op: wire.OpKey, Window: uint64(id), Code: key, Flag: pressed})
}

// DeviceKey sends a raw key event not bound to a window.
func (s *Server) DeviceKey(device winloop.DeviceID, key uint32, pressed bool) error {
	return s.write(wire.Message{Op: wire.OpKey, Device: uint64(device), Code: key, Flag: pressed})
}

func (s *Server) RelativeMotion(device winloop.DeviceID, dx, dy float64) error {
	return s.write(wire.Message{Op: wire.OpRelativeMotion, Device: uint64(device), X: dx, Y: dy})
}

// Send writes raw messages, for protocol edge cases.
func (s *Server) Send(messages ...wire.Message) error {
	return s.write(messages...)
}

// Close shuts the server end down and waits for it to stop. The client end
// observes a hang-up. Idempotent.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = unix.Shutdown(s.fd, unix.SHUT_RDWR)
		err = s.group.Wait()
		if closeErr := unix.Close(s.fd); err == nil && !errors.Is(closeErr, unix.EBADF) {
			err = closeErr
		}
	})
	return err
}
