//go:build unix

package winloop

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ping is a coalescing one-shot wake signal: any number of Ping calls before
// the read end is drained produce a single readiness event. Draining is
// idempotent.
type ping struct {
	readFd   int
	writeFd  int
	inflight atomic.Int32
	closed   atomic.Bool
	buf      [8]byte
}

func newPing() (*ping, error) {
	readFd, writeFd, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &ping{readFd: readFd, writeFd: writeFd}, nil
}

// Ping signals the read end. Safe for concurrent use, never blocks, and a
// no-op once the ping is closed.
func (p *ping) Ping() {
	// increment FIRST, so close waits for writes that passed the check
	p.inflight.Add(1)
	defer p.inflight.Add(-1)
	if p.closed.Load() {
		return
	}
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	// EAGAIN means a wake is already pending
	_, _ = unix.Write(p.writeFd, buf)
}

// drain consumes every pending signal. Loop goroutine only.
func (p *ping) drain() {
	for {
		n, err := unix.Read(p.readFd, p.buf[:])
		if err != nil || n <= 0 {
			return
		}
	}
}

func (p *ping) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	for p.inflight.Load() > 0 {
		runtime.Gosched()
	}
	err := unix.Close(p.readFd)
	if p.writeFd != p.readFd {
		if err2 := unix.Close(p.writeFd); err == nil {
			err = err2
		}
	}
	return err
}
