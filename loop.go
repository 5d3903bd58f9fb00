//go:build unix

package winloop

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

var errNilConnection = errors.New("winloop: nil connection")

// EventLoop drives a [Connection], delivering its events to an
// [ApplicationHandler] in iterations of a fixed phase order.
//
// The loop goroutine is whichever goroutine calls Run, RunOnDemand or
// PumpAppEvents; the loop may be driven from different goroutines over its
// lifetime, but never from two at once.
type EventLoop struct {
	conn     Connection
	state    *State
	active   *ActiveEventLoop
	logger   *logiface.Logger[logiface.Event]
	now      func() time.Time
	metrics  *loopMetrics
	notifier *pumpNotifier

	// proxyPing backs every Proxy, awakener is the loop's own wake source
	// (window handles, the pump notifier, owed redraws)
	proxyPing *ping
	awakener  *ping

	poller poller

	// grow-only scratch buffers, reused by every iteration
	updatesBuf []CompositorUpdate
	windowIDs  []WindowID
	buffer     EventSink

	running atomic.Bool
	closed  atomic.Bool

	pollerReady bool
	// loopRunning is true between the Init iteration and the exit of a run
	loopRunning bool
}

// New creates an event loop over conn. The loop does not take ownership of
// conn: [EventLoop.Close] leaves it open.
func New(conn Connection, opts ...Option) (*EventLoop, error) {
	if conn == nil {
		return nil, errNilConnection
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	l := &EventLoop{
		conn:   conn,
		state:  NewState(cfg.logger),
		logger: cfg.logger,
		now:    cfg.now,
	}
	if cfg.metricsEnabled {
		l.metrics = new(loopMetrics)
	}

	if err := l.init(); err != nil {
		l.release()
		return nil, err
	}

	l.active = &ActiveEventLoop{
		conn:     conn,
		state:    l.state,
		awakener: l.awakener,
		proxy:    Proxy{ping: l.proxyPing},
	}

	// settle the initial server state before the first iteration
	if err := conn.Roundtrip(l.state); err != nil {
		l.release()
		return nil, &RequestError{Op: "initial roundtrip", Err: err}
	}

	return l, nil
}

func (l *EventLoop) init() error {
	if err := l.poller.init(); err != nil {
		return fmt.Errorf("winloop: failed to create poller: %w", err)
	}
	l.pollerReady = true

	var err error
	if l.proxyPing, err = newPing(); err != nil {
		return fmt.Errorf("winloop: failed to create proxy wake source: %w", err)
	}
	if l.awakener, err = newPing(); err != nil {
		return fmt.Errorf("winloop: failed to create loop awakener: %w", err)
	}

	// readiness alone carries no work, the read guard consumes the data
	if err := l.poller.register(l.conn.Fd(), func(ioEvents) {}); err != nil {
		return fmt.Errorf("winloop: failed to register connection: %w", err)
	}
	if err := l.poller.register(l.proxyPing.readFd, func(ioEvents) {
		l.proxyPing.drain()
		l.state.dispatchedEvents = true
		l.state.proxyWakeUp = true
	}); err != nil {
		return fmt.Errorf("winloop: failed to register proxy wake source: %w", err)
	}
	if err := l.poller.register(l.awakener.readFd, func(ioEvents) {
		l.awakener.drain()
		l.state.dispatchedEvents = true
	}); err != nil {
		return fmt.Errorf("winloop: failed to register loop awakener: %w", err)
	}
	return nil
}

// release frees the wake primitives and the poller, whichever exist.
func (l *EventLoop) release() error {
	var errs []error
	if l.notifier != nil {
		l.notifier.shutdown()
	}
	if l.proxyPing != nil {
		errs = append(errs, l.proxyPing.close())
	}
	if l.awakener != nil {
		errs = append(errs, l.awakener.close())
	}
	if l.pollerReady {
		errs = append(errs, l.poller.close())
	}
	return errors.Join(errs...)
}

// Proxy returns a handle that wakes the loop from any goroutine.
func (l *EventLoop) Proxy() Proxy { return Proxy{ping: l.proxyPing} }

// Metrics returns a snapshot of the loop's statistics. It returns the zero
// value unless the loop was created with [WithMetrics].
func (l *EventLoop) Metrics() Metrics {
	if l.metrics == nil {
		return Metrics{}
	}
	return l.metrics.snapshot()
}

// Run runs app until it exits, then closes the loop. A non-zero exit code is
// returned as an [*ExitFailureError].
func (l *EventLoop) Run(app ApplicationHandler) error {
	err := l.RunOnDemand(app)
	if errors.Is(err, ErrReentrantRun) || errors.Is(err, ErrLoopClosed) {
		return err
	}
	if closeErr := l.Close(); err == nil {
		err = closeErr
	}
	return err
}

// RunOnDemand runs app until it exits, leaving the loop reusable. Windows
// must not be carried across runs.
func (l *EventLoop) RunOnDemand(app ApplicationHandler) error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrReentrantRun
	}
	defer l.running.Store(false)

	l.active.clearExit()
	var status PumpStatus
	for {
		if status = l.pump(NoTimeout, app); status.Exit {
			break
		}
	}

	// push the requests of windows dropped in the last iteration
	if err := l.roundtrip(); err != nil {
		l.logger.Warning().
			Err(err).
			Log("winloop: final roundtrip failed")
	}

	if status.Code != 0 {
		return &ExitFailureError{Code: status.Code}
	}
	return nil
}

// PumpAppEvents runs the loop for at most timeout (with [NoTimeout], until
// the first iteration after the initial one), then returns control to the
// caller. It must be called repeatedly until the returned status is an exit.
//
// Calling it from within one of the loop's callbacks panics with
// [ErrReentrantRun].
func (l *EventLoop) PumpAppEvents(timeout Timeout, app ApplicationHandler) PumpStatus {
	if !l.running.CompareAndSwap(false, true) {
		panic(ErrReentrantRun)
	}
	defer l.running.Store(false)

	if l.closed.Load() {
		l.logger.Err().
			Err(ErrLoopClosed).
			Log("winloop: pump on a closed event loop")
		return PumpStatus{Exit: true, Code: 1}
	}

	return l.pump(timeout, app)
}

func (l *EventLoop) pump(timeout Timeout, app ApplicationHandler) PumpStatus {
	if !l.loopRunning {
		l.loopRunning = true
		l.singleIteration(app, Init{})
	}

	// the Init iteration may itself exit
	if !l.active.Exiting() {
		l.pollEventsWithTimeout(timeout, app)
	}

	if code, ok := l.active.ExitCode(); ok {
		l.loopRunning = false
		return PumpStatus{Exit: true, Code: code}
	}

	// while the caller is outside the loop, someone else may read the
	// connection; the notifier makes sure the next pump sees those events
	if timeout.IsBounded() && l.notifier == nil {
		l.notifier = spawnPumpNotifier(l.conn, l.awakener, l.logger, l.onNotifierPing)
	}
	if l.notifier != nil {
		l.notifier.monitor()
	}

	return PumpStatus{}
}

func (l *EventLoop) onNotifierPing() {
	if l.metrics != nil {
		l.metrics.notifierPings.Add(1)
	}
}

// pollEventsWithTimeout waits, then runs one iteration. Wake-ups that were
// cancelled without producing events are suppressed while the effective
// timeout is unbounded; a bounded wait always ends in an iteration.
func (l *EventLoop) pollEventsWithTimeout(timeout Timeout, app ApplicationHandler) {
	var cause StartCause
	for {
		start := l.now()
		cf := l.active.ControlFlow()
		timeout = minTimeout(cf.timeout(start), timeout)

		// a protocol error surfaces here first; retrying would spin
		if err := l.conn.Flush(); err != nil {
			l.logger.Err().
				Err(err).
				Log("winloop: failed to flush connection")
			l.active.setExitCode(1)
			return
		}

		if err := l.loopDispatch(timeout); err != nil {
			code := exitCodeFromError(err)
			l.logger.Err().
				Err(err).
				Int("code", code).
				Log("winloop: failed to dispatch connection events")
			l.active.setExitCode(code)
			return
		}

		cause = classifyCause(cf, start, l.now())

		if _, cancelled := cause.(WaitCancelled); cancelled && !l.state.dispatchedEvents && !timeout.IsBounded() {
			if l.metrics != nil {
				l.metrics.spuriousWakeups.Add(1)
			}
			l.logger.Debug().Log("winloop: suppressed spurious wake-up")
			continue
		}

		break
	}

	l.singleIteration(app, cause)
}

// loopDispatch performs one wait on the connection and the wake sources,
// then dispatches whatever the connection queued.
func (l *EventLoop) loopDispatch(timeout Timeout) error {
	guard := l.conn.PrepareRead()
	if guard == nil {
		// events are already queued
		timeout = TimeoutAfter(0)
	}

	begin := time.Now()
	_, err := l.poller.wait(timeout.millis())
	if l.metrics != nil {
		l.metrics.wait.record(time.Since(begin))
	}

	if guard != nil {
		if err != nil {
			guard.Cancel()
			return err
		}
		if err := guard.Read(); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if _, err := l.conn.DispatchPending(l.state); err != nil {
		return err
	}
	if l.state.hasPendingWork() {
		l.state.dispatchedEvents = true
	}
	return nil
}

// singleIteration runs the phases of one iteration, in order: NewEvents,
// CanCreateSurfaces (Init only), ProxyWakeUp, compositor updates, raw events
// (window handles first), Destroyed/RedrawRequested, AboutToWait, and the
// frame refresh that schedules the next redraws.
func (l *EventLoop) singleIteration(app ApplicationHandler, cause StartCause) {
	active := l.active

	app.NewEvents(active, cause)

	if _, ok := cause.(Init); ok {
		app.CanCreateSurfaces(active)
	}

	if l.state.proxyWakeUp {
		l.state.proxyWakeUp = false
		app.ProxyWakeUp(active)
	}

	l.updatesBuf = l.state.updates.take(l.updatesBuf[:0])
	for _, update := range l.updatesBuf {
		l.applyCompositorUpdate(app, update)
	}
	clear(l.updatesBuf)
	l.updatesBuf = l.updatesBuf[:0]

	deliver := func(event Event) { l.deliver(app, event) }
	l.state.takeHandleEvents(&l.buffer)
	l.buffer.Drain(deliver)
	l.buffer.Append(&l.state.events)
	l.buffer.Drain(deliver)

	l.windowIDs = l.state.windows.AppendIDs(l.windowIDs[:0])
	for _, id := range l.windowIDs {
		event := l.windowLifecycle(id)
		if event == nil {
			continue
		}
		if _, redraw := event.(RedrawRequested); redraw && l.metrics != nil {
			l.metrics.redraws.Add(1)
		}
		app.WindowEvent(active, id, event)
	}

	l.state.dispatchedEvents = false

	app.AboutToWait(active)

	var wakeUp bool
	for _, id := range l.windowIDs {
		requests := l.state.windows.Requests(id)
		if requests == nil {
			continue
		}
		var refresh bool
		l.state.windows.With(id, func(s WindowState) { refresh = s.RefreshFrame() })
		if refresh {
			requests.redrawRequested.Store(true)
			wakeUp = true
		}
	}
	if wakeUp {
		// drawing from AboutToWait makes this redundant, but harmless
		l.awakener.Ping()
	}

	if l.metrics != nil {
		l.metrics.iterations.Add(1)
	}
}

// applyCompositorUpdate delivers the events of one update, in the order
// ScaleFactorChanged, SurfaceResized, CloseRequested.
func (l *EventLoop) applyCompositorUpdate(app ApplicationHandler, update CompositorUpdate) {
	id := update.WindowID
	windows := l.state.windows

	if update.ScaleChanged {
		var (
			scale float64
			size  PhysicalSize
		)
		if !windows.With(id, func(s WindowState) {
			scale = s.ScaleFactor()
			size = LogicalToPhysical(s.SurfaceSize(), scale)
		}) {
			return
		}

		writer := newSurfaceSizeWriter(size)
		app.WindowEvent(l.active, id, ScaleFactorChanged{ScaleFactor: scale, SurfaceSizeWriter: writer})

		if requested := writer.expire(); requested != size {
			windows.With(id, func(s WindowState) { s.RequestSurfaceSize(requested.ToLogical(scale)) })
			update.Resized = true
		}
	}

	if update.Resized || update.ScaleChanged {
		requests := windows.Requests(id)
		var size PhysicalSize
		if requests == nil || !windows.With(id, func(s WindowState) {
			size = LogicalToPhysical(s.SurfaceSize(), s.ScaleFactor())
		}) {
			return
		}
		requests.redrawRequested.Store(true)
		app.WindowEvent(l.active, id, SurfaceResized{Size: size})
	}

	if update.CloseWindow && windows.Contains(id) {
		app.WindowEvent(l.active, id, CloseRequested{})
	}
}

// windowLifecycle returns Destroyed for a closed window (removing it from
// the store), RedrawRequested if one is owed and not held back by an
// outstanding frame callback, or nil.
func (l *EventLoop) windowLifecycle(id WindowID) WindowEvent {
	windows := l.state.windows
	requests := windows.Requests(id)
	if requests == nil {
		return nil
	}

	if requests.takeClosed() {
		windows.Remove(id)
		l.logger.Debug().
			Uint64("window", uint64(id)).
			Log("winloop: window destroyed")
		return Destroyed{}
	}

	var redraw bool
	windows.With(id, func(s WindowState) {
		if s.FrameCallbackState() == FrameCallbackRequested {
			return
		}
		s.FrameCallbackReset()
		redraw = requests.takeRedrawRequested()
		if s.RefreshFrame() {
			redraw = true
		}
	})
	if redraw {
		return RedrawRequested{}
	}
	return nil
}

func (l *EventLoop) deliver(app ApplicationHandler, event Event) {
	switch event := event.(type) {
	case WindowEventRecord:
		if !l.state.windows.Contains(event.WindowID) {
			l.state.dropUnknown(event.WindowID, "window event")
			return
		}
		app.WindowEvent(l.active, event.WindowID, event.Event)
	case DeviceEventRecord:
		app.DeviceEvent(l.active, event.DeviceID, event.Event)
	}
}

func (l *EventLoop) roundtrip() error {
	if err := l.conn.Roundtrip(l.state); err != nil {
		return &RequestError{Op: "roundtrip", Err: err}
	}
	return nil
}

// Close flushes the connection, stops the pump notifier and releases the
// loop's wake sources. It must not be called from within a callback.
// Idempotent.
func (l *EventLoop) Close() error {
	if l.running.Load() {
		return ErrReentrantRun
	}
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	flushErr := l.conn.Flush()
	if flushErr != nil {
		flushErr = &RequestError{Op: "flush", Err: flushErr}
	}
	return errors.Join(flushErr, l.release())
}
