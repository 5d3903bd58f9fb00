//go:build unix

package winloop

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierAction_String(t *testing.T) {
	assert.Equal(t, "Pause", notifierPause.String())
	assert.Equal(t, "Monitor", notifierMonitor.String())
	assert.Equal(t, "Shutdown", notifierShutdown.String())
	assert.Equal(t, "Unknown", notifierAction(7).String())
}

func TestPumpNotifier_MonitorPingsOnReadiness(t *testing.T) {
	conn := newFakeConn(t)
	awakener, err := newPing()
	require.NoError(t, err)
	defer awakener.close()

	var pings atomic.Int32
	n := spawnPumpNotifier(conn, awakener, nil, func() { pings.Add(1) })
	require.NotNil(t, n.worker)

	// paused: nothing is read
	conn.inject(func(*State) {})
	assert.False(t, readable(t, awakener.readFd, 50))

	n.monitor()
	assert.True(t, readable(t, awakener.readFd, 5000))
	assert.Eventually(t, func() bool {
		return pings.Load() == 1 && n.currentAction() == notifierPause
	}, 5*time.Second, time.Millisecond)

	// read ahead, not dispatched
	assert.Nil(t, conn.PrepareRead())

	n.shutdown()
	assert.Equal(t, notifierShutdown, n.currentAction())
	n.monitor()
	assert.Equal(t, notifierShutdown, n.currentAction(), "shutdown is terminal")
	assert.NotPanics(t, n.shutdown)
}

func TestPumpNotifier_ShutdownWhileWaiting(t *testing.T) {
	conn := newFakeConn(t)
	awakener, err := newPing()
	require.NoError(t, err)
	defer awakener.close()

	n := spawnPumpNotifier(conn, awakener, nil, nil)
	n.monitor()
	// give the worker time to block in its readiness wait
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.shutdown()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not unblock the worker")
	}
}

func TestPumpNotifier_Inert(t *testing.T) {
	n := &pumpNotifier{action: notifierPause}
	n.cond = sync.NewCond(&n.mu)
	assert.NotPanics(t, n.monitor)
	assert.NotPanics(t, n.shutdown)
	assert.Equal(t, notifierShutdown, n.currentAction())
}
