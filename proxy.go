//go:build unix

package winloop

// Proxy wakes the loop from any goroutine. Copies share the same wake
// source. The zero value is a no-op.
type Proxy struct {
	ping *ping
}

// WakeUp makes the loop's current (or next) wait return, delivering
// [ApplicationHandler.ProxyWakeUp] in the following iteration. Multiple calls
// before the loop observes them coalesce into one wake-up. It never blocks,
// and is a no-op once the loop is closed.
func (p Proxy) WakeUp() {
	if p.ping != nil {
		p.ping.Ping()
	}
}
