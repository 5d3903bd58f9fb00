//go:build unix

package winloop

import (
	"sync"

	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// notifierAction is the pump notifier's control state.
//
// State Machine:
//
//	notifierPause → notifierMonitor     [monitor(), end of every pump]
//	notifierMonitor → notifierPause     [worker, before it starts reading]
//	notifierPause|Monitor → notifierShutdown [shutdown(), terminal]
type notifierAction uint8

const (
	// notifierPause blocks the worker on the condition variable.
	notifierPause notifierAction = iota
	// notifierMonitor has the worker wait for connection readiness once.
	notifierMonitor
	// notifierShutdown terminates the worker.
	notifierShutdown
)

// String returns a human-readable representation of the action.
func (a notifierAction) String() string {
	switch a {
	case notifierPause:
		return "Pause"
	case notifierMonitor:
		return "Monitor"
	case notifierShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// pumpNotifier watches the connection while the caller of PumpAppEvents is
// outside the loop, and pings the loop's awakener when data arrives. It only
// reads ahead (queueing without dispatching), never interprets messages.
type pumpNotifier struct {
	cond *sync.Cond
	// worker unblocks the goroutine from its readiness wait, nil if the
	// notifier could not be started
	worker *ping
	// done is closed once the goroutine exits
	done   chan struct{}
	mu     sync.Mutex
	action notifierAction
}

// spawnPumpNotifier starts the worker goroutine in the Pause state. If the
// worker's wake source cannot be created, the returned notifier is inert.
func spawnPumpNotifier(conn Connection, awakener *ping, logger *logiface.Logger[logiface.Event], onPing func()) *pumpNotifier {
	n := &pumpNotifier{action: notifierPause}
	n.cond = sync.NewCond(&n.mu)

	worker, err := newPing()
	if err != nil {
		logger.Warning().
			Err(err).
			Log("winloop: failed to spawn pump_events wake-up goroutine")
		return n
	}
	n.worker = worker
	n.done = make(chan struct{})

	go n.run(conn, awakener, onPing)

	return n
}

func (n *pumpNotifier) run(conn Connection, awakener *ping, onPing func()) {
	defer close(n.done)
	for {
		n.mu.Lock()
		for n.action == notifierPause {
			n.cond.Wait()
		}
		if n.action == notifierShutdown {
			n.mu.Unlock()
			return
		}
		// back to sleep after this round, unless monitor() is called again
		n.action = notifierPause
		n.mu.Unlock()

		for {
			guard := conn.PrepareRead()
			if guard == nil {
				// events are queued, the loop must dispatch them
				break
			}
			_ = conn.Flush()
			if n.shutdownRequested() {
				guard.Cancel()
				return
			}
			fds := []unix.PollFd{
				{Fd: int32(conn.Fd()), Events: unix.POLLIN},
				{Fd: int32(n.worker.readFd), Events: unix.POLLIN},
			}
			_, _ = unix.Poll(fds, -1)
			if err := guard.Read(); err != nil {
				// the loop observes the broken connection on its own dispatch
				break
			}
		}

		awakener.Ping()
		if onPing != nil {
			onPing()
		}
	}
}

// shutdownRequested consumes a pending worker wake (written only by shutdown).
func (n *pumpNotifier) shutdownRequested() bool {
	var buf [8]byte
	count, err := unix.Read(n.worker.readFd, buf[:])
	return err == nil && count > 0
}

// monitor asks the worker to watch the connection once.
func (n *pumpNotifier) monitor() {
	n.mu.Lock()
	if n.action != notifierShutdown {
		n.action = notifierMonitor
	}
	n.mu.Unlock()
	n.cond.Signal()
}

// shutdown stops the worker and waits for it to exit. Idempotent.
func (n *pumpNotifier) shutdown() {
	if n.worker != nil {
		n.worker.Ping()
	}
	n.mu.Lock()
	n.action = notifierShutdown
	n.mu.Unlock()
	n.cond.Signal()
	if n.done != nil {
		<-n.done
	}
	if n.worker != nil {
		_ = n.worker.close()
	}
}

func (n *pumpNotifier) currentAction() notifierAction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.action
}
