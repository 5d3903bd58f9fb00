//go:build unix

package winloop

// ApplicationHandler receives the loop's callbacks. All methods are invoked
// on the loop goroutine, never concurrently, in the phase order documented
// on the package.
type ApplicationHandler interface {
	// NewEvents announces the start of an iteration.
	NewEvents(loop *ActiveEventLoop, cause StartCause)

	// CanCreateSurfaces is called once, during the first iteration.
	CanCreateSurfaces(loop *ActiveEventLoop)

	// ProxyWakeUp is called when a [Proxy] woke the loop.
	ProxyWakeUp(loop *ActiveEventLoop)

	WindowEvent(loop *ActiveEventLoop, id WindowID, event WindowEvent)

	DeviceEvent(loop *ActiveEventLoop, id DeviceID, event DeviceEvent)

	// AboutToWait is always the last callback of an iteration.
	AboutToWait(loop *ActiveEventLoop)
}

// NopHandler implements every [ApplicationHandler] method as a no-op, and is
// intended to be embedded.
type NopHandler struct{}

var _ ApplicationHandler = NopHandler{}

func (NopHandler) NewEvents(*ActiveEventLoop, StartCause)              {}
func (NopHandler) CanCreateSurfaces(*ActiveEventLoop)                  {}
func (NopHandler) ProxyWakeUp(*ActiveEventLoop)                        {}
func (NopHandler) WindowEvent(*ActiveEventLoop, WindowID, WindowEvent) {}
func (NopHandler) DeviceEvent(*ActiveEventLoop, DeviceID, DeviceEvent) {}
func (NopHandler) AboutToWait(*ActiveEventLoop)                        {}
