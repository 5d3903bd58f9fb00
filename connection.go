package winloop

// Connection is the native display-server connection the loop drives.
//
// The loop, its pump notifier and [Window] handles share a Connection: Fd,
// Flush, Send, PrepareRead and the [ReadGuard] methods must be safe for
// concurrent use. DispatchPending and Roundtrip are only called from the loop
// goroutine.
type Connection interface {
	// Fd is the connection's readable file descriptor.
	Fd() int

	// Flush writes buffered outbound requests. A failure is fatal to the loop.
	Flush() error

	// PrepareRead announces the intention to read from Fd. It returns nil if
	// events are already queued, in which case the caller must dispatch them
	// before waiting.
	PrepareRead() ReadGuard

	// DispatchPending decodes queued events into state, returning the number
	// of events dispatched.
	DispatchPending(state *State) (int, error)

	// Roundtrip blocks until the server has processed every request sent so
	// far, dispatching events received meanwhile into state.
	Roundtrip(state *State) error

	// Send buffers an outbound request, until the next Flush.
	Send(request Request) error

	// Close releases the connection.
	Close() error
}

// ReadGuard is a pending read returned by [Connection.PrepareRead]. Exactly
// one of Read or Cancel must be called.
type ReadGuard interface {
	// Read performs a non-blocking read of whatever is available on the
	// connection, queueing it without dispatching.
	Read() error

	// Cancel abandons the read.
	Cancel()
}

// Request is an outbound protocol request.
type Request interface {
	isRequest()
}

type (
	CreateSurface struct {
		Size     LogicalSize
		WindowID WindowID
	}

	DestroySurface struct {
		WindowID WindowID
	}

	// FrameRequest asks for a frame callback, answered by a "frame done".
	FrameRequest struct {
		WindowID WindowID
	}

	SetSurfaceSize struct {
		Size     LogicalSize
		WindowID WindowID
	}
)

func (CreateSurface) isRequest()  {}
func (DestroySurface) isRequest() {}
func (FrameRequest) isRequest()   {}
func (SetSurfaceSize) isRequest() {}
