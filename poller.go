//go:build unix

package winloop

import (
	"errors"
)

// ioEvents represents the readiness reported for a source.
type ioEvents uint32

const (
	eventRead ioEvents = 1 << iota
	eventError
	eventHangup
)

// Standard poller errors.
var (
	errFDAlreadyRegistered = errors.New("winloop: fd already registered")
	errPollerClosed        = errors.New("winloop: poller closed")
)

// source is one registered readiness source. The loop registers three: the
// connection, the proxy ping and the awakener ping.
type source struct {
	callback func(ioEvents)
	fd       int
}

func (p *poller) lookup(fd int) *source {
	for i := range p.sources {
		if p.sources[i].fd == fd {
			return &p.sources[i]
		}
	}
	return nil
}
