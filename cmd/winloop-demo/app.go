//go:build unix

package main

import (
	"context"
	"io"
	"time"

	"github.com/joeycumines/go-winloop"
	"github.com/joeycumines/go-winloop/wire/wiretest"
	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
)

type mode uint8

const (
	modeRun mode = iota
	modePump
)

// demoApp opens the configured windows, redraws each until it reached its
// frame budget, then closes it, exiting once every window is destroyed.
type demoApp struct {
	winloop.NopHandler
	ctx     context.Context
	logger  *logiface.Logger[logiface.Event]
	ready   chan []winloop.WindowID
	windows map[winloop.WindowID]*demoWindow
	cfg     config
	err     error
}

type demoWindow struct {
	window *winloop.Window
	frames int
}

func (a *demoApp) CanCreateSurfaces(loop *winloop.ActiveEventLoop) {
	ids := make([]winloop.WindowID, 0, a.cfg.Windows)
	for range a.cfg.Windows {
		w, err := loop.CreateWindow(winloop.WindowAttributes{SurfaceSize: winloop.LogicalSize{Width: 640, Height: 480}})
		if err != nil {
			a.err = err
			loop.Exit()
			return
		}
		a.windows[w.ID()] = &demoWindow{window: w}
		ids = append(ids, w.ID())
	}
	a.ready <- ids
}

func (a *demoApp) ProxyWakeUp(loop *winloop.ActiveEventLoop) {
	if a.ctx.Err() != nil {
		a.logger.Info().Log("interrupted")
		loop.Exit()
	}
}

func (a *demoApp) WindowEvent(loop *winloop.ActiveEventLoop, id winloop.WindowID, event winloop.WindowEvent) {
	w := a.windows[id]
	if w == nil {
		return
	}
	switch event := event.(type) {
	case winloop.RedrawRequested:
		w.frames++
		if w.frames >= a.cfg.Frames {
			if err := w.window.Close(); err != nil {
				a.logger.Warning().Err(err).Uint64("window", uint64(id)).Log("close failed")
			}
			return
		}
		w.window.PrePresentNotify()
		w.window.RequestRedraw()
	case winloop.ScaleFactorChanged:
		a.logger.Info().
			Uint64("window", uint64(id)).
			Float64("scale", event.ScaleFactor).
			Log("scale factor changed")
	case winloop.SurfaceResized:
		a.logger.Info().
			Uint64("window", uint64(id)).
			Uint64("width", uint64(event.Size.Width)).
			Uint64("height", uint64(event.Size.Height)).
			Log("surface resized")
	case winloop.CloseRequested:
		_ = w.window.Close()
	case winloop.Destroyed:
		a.logger.Info().
			Uint64("window", uint64(id)).
			Int("frames", w.frames).
			Log("window destroyed")
		delete(a.windows, id)
		if len(a.windows) == 0 {
			loop.Exit()
		}
	default:
		a.logger.Debug().Uint64("window", uint64(id)).Log("window event")
	}
}

func (a *demoApp) DeviceEvent(_ *winloop.ActiveEventLoop, id winloop.DeviceID, _ winloop.DeviceEvent) {
	a.logger.Debug().Uint64("device", uint64(id)).Log("device event")
}

func runDemo(ctx context.Context, cfg config, logOutput io.Writer, m mode) error {
	logger, err := newLogger(logOutput, cfg.LogLevel)
	if err != nil {
		return err
	}

	server, err := wiretest.New(wiretest.WithScale(cfg.Scale))
	if err != nil {
		return err
	}
	defer server.Close()
	conn := server.Client()
	defer conn.Close()

	loop, err := winloop.New(conn, winloop.WithLogger(logger), winloop.WithMetrics(true))
	if err != nil {
		return err
	}

	app := &demoApp{
		ctx:     ctx,
		logger:  logger,
		cfg:     cfg,
		ready:   make(chan []winloop.WindowID, 1),
		windows: make(map[winloop.WindowID]*demoWindow),
	}

	var g errgroup.Group
	stop := make(chan struct{})

	// wake the loop on interrupt, so the application can observe it
	proxy := loop.Proxy()
	g.Go(func() error {
		select {
		case <-ctx.Done():
			proxy.WakeUp()
		case <-stop:
		}
		return nil
	})

	// nudge the windows from the server side, like a user would
	g.Go(func() error {
		var ids []winloop.WindowID
		select {
		case ids = <-app.ready:
		case <-stop:
			return nil
		}
		for i, id := range ids {
			if err := server.Focus(id, true); err != nil {
				return err
			}
			if err := server.PointerMotion(id, float64(10*i), 20); err != nil {
				return err
			}
		}
		return server.RelativeMotion(1, 1.5, -0.5)
	})

	start := time.Now()
	switch m {
	case modePump:
		err = pumpLoop(loop, app, cfg.PumpTimeout)
	default:
		err = loop.Run(app)
	}
	close(stop)
	if groupErr := g.Wait(); err == nil {
		err = groupErr
	}
	if err == nil {
		err = app.err
	}

	metrics := loop.Metrics()
	logger.Info().
		Dur("elapsed", time.Since(start)).
		Uint64("iterations", metrics.Iterations).
		Uint64("redraws", metrics.Redraws).
		Uint64("spurious_wakeups", metrics.SpuriousWakeups).
		Uint64("notifier_pings", metrics.NotifierPings).
		Dur("wait_p99", metrics.Wait.P99).
		Log("demo finished")

	if m == modePump {
		if closeErr := loop.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// pumpLoop stands in for an outer loop that owns the goroutine, and hands
// control to the event loop for at most timeout per turn.
func pumpLoop(loop *winloop.EventLoop, app winloop.ApplicationHandler, timeout time.Duration) error {
	for {
		status := loop.PumpAppEvents(winloop.TimeoutAfter(timeout), app)
		if status.Continue() {
			continue
		}
		if status.Code != 0 {
			return &winloop.ExitFailureError{Code: status.Code}
		}
		return nil
	}
}
