//go:build linux

package winloop

import (
	"golang.org/x/sys/unix"
)

// poller multiplexes readiness using epoll (Linux). Loop goroutine only.
type poller struct {
	sources  []source
	eventBuf [16]unix.EpollEvent
	epfd     int
	closed   bool
}

func (p *poller) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	return nil
}

func (p *poller) register(fd int, cb func(ioEvents)) error {
	if p.closed {
		return errPollerClosed
	}
	if p.lookup(fd) != nil {
		return errFDAlreadyRegistered
	}
	ev := &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	p.sources = append(p.sources, source{fd: fd, callback: cb})
	return nil
}

// wait blocks for at most timeoutMs (-1 = unbounded), invoking the callback
// of every ready source inline. Returns the number of ready sources.
func (p *poller) wait(timeoutMs int) (int, error) {
	if p.closed {
		return 0, errPollerClosed
	}
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		if s := p.lookup(int(p.eventBuf[i].Fd)); s != nil {
			s.callback(epollToEvents(p.eventBuf[i].Events))
		}
	}
	return n, nil
}

func (p *poller) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.sources = nil
	return unix.Close(p.epfd)
}

// epollToEvents converts epoll event flags to ioEvents.
func epollToEvents(epollEvents uint32) ioEvents {
	var events ioEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= eventRead
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= eventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= eventHangup
	}
	return events
}
