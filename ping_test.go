//go:build unix

package winloop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// readable reports whether fd polls readable within timeoutMillis.
func readable(t *testing.T, fd int, timeoutMillis int) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, timeoutMillis)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		return n > 0
	}
}

func TestPing_Coalesces(t *testing.T) {
	p, err := newPing()
	require.NoError(t, err)
	defer p.close()

	assert.False(t, readable(t, p.readFd, 0))

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Ping()
		}()
	}
	wg.Wait()
	assert.True(t, readable(t, p.readFd, 0))

	p.drain()
	assert.False(t, readable(t, p.readFd, 0), "one drain consumes every ping")
	p.drain()
}

func TestPing_Close(t *testing.T) {
	p, err := newPing()
	require.NoError(t, err)
	require.NoError(t, p.close())
	assert.NoError(t, p.close(), "idempotent")
	assert.NotPanics(t, p.Ping)
}

func TestProxy_ZeroValue(t *testing.T) {
	assert.NotPanics(t, Proxy{}.WakeUp)
}
