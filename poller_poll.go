//go:build unix && !linux

package winloop

import (
	"golang.org/x/sys/unix"
)

// poller multiplexes readiness using poll(2), for Unix systems without epoll.
// Loop goroutine only.
type poller struct {
	sources []source
	fds     []unix.PollFd
	closed  bool
}

func (p *poller) init() error { return nil }

func (p *poller) register(fd int, cb func(ioEvents)) error {
	if p.closed {
		return errPollerClosed
	}
	if p.lookup(fd) != nil {
		return errFDAlreadyRegistered
	}
	p.sources = append(p.sources, source{fd: fd, callback: cb})
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	return nil
}

// wait blocks for at most timeoutMs (-1 = unbounded), invoking the callback
// of every ready source inline. Returns the number of ready sources.
func (p *poller) wait(timeoutMs int) (int, error) {
	if p.closed {
		return 0, errPollerClosed
	}
	for i := range p.fds {
		p.fds[i].Revents = 0
	}
	n, err := unix.Poll(p.fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := range p.fds {
		if p.fds[i].Revents == 0 {
			continue
		}
		p.sources[i].callback(pollToEvents(p.fds[i].Revents))
	}
	return n, nil
}

func (p *poller) close() error {
	p.closed = true
	p.sources = nil
	p.fds = nil
	return nil
}

func pollToEvents(revents int16) ioEvents {
	var events ioEvents
	if revents&unix.POLLIN != 0 {
		events |= eventRead
	}
	if revents&unix.POLLERR != 0 {
		events |= eventError
	}
	if revents&unix.POLLHUP != 0 {
		events |= eventHangup
	}
	return events
}
