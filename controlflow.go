package winloop

import (
	"math"
	"time"
)

type controlFlowKind uint8

const (
	controlFlowWait controlFlowKind = iota
	controlFlowPoll
	controlFlowWaitUntil
)

// ControlFlow is the application's declared preference for how the loop
// waits between iterations. The zero value is [Wait].
type ControlFlow struct {
	deadline time.Time
	kind     controlFlowKind
}

// Wait blocks until a native event or a ping arrives.
func Wait() ControlFlow { return ControlFlow{kind: controlFlowWait} }

// Poll starts the next iteration immediately.
func Poll() ControlFlow { return ControlFlow{kind: controlFlowPoll} }

// WaitUntil blocks until a native event, a ping, or the deadline.
func WaitUntil(deadline time.Time) ControlFlow {
	return ControlFlow{kind: controlFlowWaitUntil, deadline: deadline}
}

// IsWait reports whether c is [Wait].
func (c ControlFlow) IsWait() bool { return c.kind == controlFlowWait }

// IsPoll reports whether c is [Poll].
func (c ControlFlow) IsPoll() bool { return c.kind == controlFlowPoll }

// Deadline returns the WaitUntil deadline, if any.
func (c ControlFlow) Deadline() (time.Time, bool) {
	return c.deadline, c.kind == controlFlowWaitUntil
}

// String returns a human-readable representation of the control flow.
func (c ControlFlow) String() string {
	switch c.kind {
	case controlFlowPoll:
		return "Poll"
	case controlFlowWaitUntil:
		return "WaitUntil(" + c.deadline.Format(time.RFC3339Nano) + ")"
	default:
		return "Wait"
	}
}

// timeout is the wait bound implied by this control flow, relative to now.
func (c ControlFlow) timeout(now time.Time) Timeout {
	switch c.kind {
	case controlFlowPoll:
		return TimeoutAfter(0)
	case controlFlowWaitUntil:
		d := c.deadline.Sub(now)
		if d < 0 {
			d = 0
		}
		return TimeoutAfter(d)
	default:
		return NoTimeout
	}
}

// Timeout is an optional wait bound. The zero value ([NoTimeout]) is
// unbounded, i.e. +Inf, not zero.
type Timeout struct {
	d       time.Duration
	bounded bool
}

// NoTimeout is the unbounded timeout.
var NoTimeout Timeout

// TimeoutAfter returns a bounded timeout. Negative durations saturate to zero.
func TimeoutAfter(d time.Duration) Timeout {
	if d < 0 {
		d = 0
	}
	return Timeout{d: d, bounded: true}
}

// Duration returns the bound, and false if the timeout is unbounded.
func (t Timeout) Duration() (time.Duration, bool) {
	return t.d, t.bounded
}

// IsBounded reports whether t has a finite duration.
func (t Timeout) IsBounded() bool { return t.bounded }

// String returns a human-readable representation of the timeout.
func (t Timeout) String() string {
	if !t.bounded {
		return "none"
	}
	return t.d.String()
}

// millis converts t to a poll(2)/epoll_wait(2) timeout: -1 when unbounded,
// otherwise rounded up to whole milliseconds, so a deadline is never reported
// as reached early.
func (t Timeout) millis() int {
	if !t.bounded {
		return -1
	}
	ms := t.d / time.Millisecond
	if t.d%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// minTimeout returns the smaller of a and b, where an unbounded timeout
// equates to +Inf.
func minTimeout(a, b Timeout) Timeout {
	switch {
	case !a.bounded:
		return b
	case !b.bounded:
		return a
	case a.d <= b.d:
		return a
	default:
		return b
	}
}

// StartCause describes why an iteration started, see
// [ApplicationHandler.NewEvents].
type StartCause interface {
	isStartCause()
}

type (
	// Init is the cause of the very first iteration.
	Init struct{}

	// PollCause starts every iteration while the control flow is [Poll].
	PollCause struct{}

	// WaitCancelled is delivered when the wait returned before its deadline
	// (or, for [Wait], at all).
	WaitCancelled struct {
		Start              time.Time
		RequestedResume    time.Time
		HasRequestedResume bool
	}

	// ResumeTimeReached is delivered when a [WaitUntil] deadline elapsed.
	ResumeTimeReached struct {
		Start           time.Time
		RequestedResume time.Time
	}
)

func (Init) isStartCause()              {}
func (PollCause) isStartCause()         {}
func (WaitCancelled) isStartCause()     {}
func (ResumeTimeReached) isStartCause() {}

// classifyCause determines the start cause after a wait that began at start.
func classifyCause(cf ControlFlow, start, now time.Time) StartCause {
	switch cf.kind {
	case controlFlowPoll:
		return PollCause{}
	case controlFlowWaitUntil:
		if now.Before(cf.deadline) {
			return WaitCancelled{Start: start, RequestedResume: cf.deadline, HasRequestedResume: true}
		}
		return ResumeTimeReached{Start: start, RequestedResume: cf.deadline}
	default:
		return WaitCancelled{Start: start}
	}
}

// PumpStatus is the result of [EventLoop.PumpAppEvents].
type PumpStatus struct {
	// Code is the exit code, meaningful only if Exit is true.
	Code int
	// Exit is true if the application (or a fatal error) ended the loop.
	Exit bool
}

// Continue reports whether the caller should keep pumping.
func (s PumpStatus) Continue() bool { return !s.Exit }
