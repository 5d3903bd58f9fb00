// Package winloop implements the event-dispatch core of a windowing toolkit
// backend: a single-goroutine driver that multiplexes native readiness
// (display-server socket, cross-goroutine pings, redraw pacing) into an
// ordered, deduplicated stream of callbacks on an [ApplicationHandler].
//
// # Architecture
//
// The [EventLoop] owns a native readiness poller (epoll on Linux, poll(2) on
// other Unix systems), the per-window [WindowStore], the [EventSink] buffers
// and the compositor update aggregator. Each iteration delivers callbacks in
// a fixed phase order:
//
//  1. [ApplicationHandler.NewEvents], with the [StartCause]
//  2. [ApplicationHandler.CanCreateSurfaces], first iteration only
//  3. [ApplicationHandler.ProxyWakeUp], if a [Proxy] pinged the loop
//  4. compositor-derived events (ScaleFactorChanged, SurfaceResized,
//     CloseRequested), per window, in that order
//  5. raw window and device events, in arrival order
//  6. Destroyed or RedrawRequested, per window
//  7. [ApplicationHandler.AboutToWait]
//
// # Execution Modes
//
// [EventLoop.Run] blocks until the application calls [ActiveEventLoop.Exit].
// [EventLoop.PumpAppEvents] drives at most one iteration and returns, so the
// caller can own its outer loop. When pumping with a bounded [Timeout], a
// background notifier goroutine watches the connection between pump calls
// and pings the loop when data arrives.
//
// # Thread Safety
//
//   - The [EventLoop], [ActiveEventLoop] and all callbacks belong to the
//     goroutine that calls Run or PumpAppEvents
//   - [Proxy.WakeUp] is safe to call from any goroutine, including after the
//     loop has been closed
//   - [Window.RequestRedraw], [Window.SetTheme] and [Window.Close] are safe to
//     call from any goroutine
//
// # Usage
//
//	conn, err := wire.Dial(os.Getenv("WINLOOP_DISPLAY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	loop, err := winloop.New(conn, winloop.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := loop.Run(&app{}); err != nil {
//	    log.Fatal(err)
//	}
package winloop
