package winloop

import (
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for EventLoop creation.
type loopOptions struct {
	logger         *logiface.Logger[logiface.Event]
	now            func() time.Time
	metricsEnabled bool
}

// Option configures an EventLoop instance.
type Option interface {
	applyLoop(*loopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (o *optionImpl) applyLoop(opts *loopOptions) error {
	return o.applyLoopFunc(opts)
}

// WithLogger sets the structured logger used by the loop and its notifier.
// A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime metrics collection, see [EventLoop.Metrics].
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithClock overrides the clock used to classify wake causes and compute
// WaitUntil deadlines. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if now != nil {
			opts.now = now
		}
		return nil
	}}
}

// resolveOptions applies Option instances to loopOptions.
func resolveOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{
		now: time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
