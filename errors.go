package winloop

import (
	"errors"
	"fmt"
	"syscall"
)

// Standard errors.
var (
	// ErrLoopClosed is returned when operations are attempted on a closed loop.
	ErrLoopClosed = errors.New("winloop: event loop has been closed")

	// ErrReentrantRun is returned (or raised, for PumpAppEvents) when the loop
	// is driven from within one of its own callbacks.
	ErrReentrantRun = errors.New("winloop: cannot run the event loop from within a callback")

	// ErrSizeWriterExpired is returned by [SurfaceSizeWriter.RequestSurfaceSize]
	// once the ScaleFactorChanged callback it was delivered with has returned.
	ErrSizeWriterExpired = errors.New("winloop: surface size writer has expired")

	// ErrUnknownWindow is returned when a request targets a window that is not
	// (or no longer) present in the window store.
	ErrUnknownWindow = errors.New("winloop: unknown window")
)

// ExitFailureError is returned by [EventLoop.Run] when the loop exited with a
// non-zero code, either requested by the application or derived from a fatal
// connection error.
type ExitFailureError struct {
	Code int
}

// Error implements the error interface.
func (e *ExitFailureError) Error() string {
	return fmt.Sprintf("winloop: exit failure: %d", e.Code)
}

// NotSupportedError reports a request the backend does not implement. It is
// returned to the immediate caller and never affects loop state.
type NotSupportedError struct {
	Reason string
}

// Error implements the error interface.
func (e *NotSupportedError) Error() string {
	if e.Reason == "" {
		return "winloop: not supported"
	}
	return "winloop: not supported: " + e.Reason
}

// RequestError wraps a failed request against the native connection or the
// window store.
type RequestError struct {
	Err error
	Op  string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("winloop: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *RequestError) Unwrap() error {
	return e.Err
}

// exitCodeFromError derives a process exit code from a fatal error, using the
// OS error number when one is present in the chain.
func exitCodeFromError(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return int(errno)
	}
	return 1
}
