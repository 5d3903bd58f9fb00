package winloop

// EventSink is an append-only buffer of events, drained in arrival order.
// The backing storage is retained across drains. EventSink is not safe for
// concurrent use, see [State] for the guarded cross-goroutine sink.
type EventSink struct {
	events []Event
}

// PushWindowEvent appends a window-scoped event.
func (s *EventSink) PushWindowEvent(id WindowID, event WindowEvent) {
	s.events = append(s.events, WindowEventRecord{WindowID: id, Event: event})
}

// PushDeviceEvent appends a device event.
func (s *EventSink) PushDeviceEvent(id DeviceID, event DeviceEvent) {
	s.events = append(s.events, DeviceEventRecord{DeviceID: id, Event: event})
}

// Len returns the number of buffered events.
func (s *EventSink) Len() int { return len(s.events) }

// IsEmpty reports whether the sink holds no events.
func (s *EventSink) IsEmpty() bool { return len(s.events) == 0 }

// Append moves every event from other to the end of s, leaving other empty.
func (s *EventSink) Append(other *EventSink) {
	s.events = append(s.events, other.events...)
	other.reset()
}

// Drain calls fn for every buffered event, in arrival order, then empties the
// sink. Events pushed to s by fn are drained in the same pass.
func (s *EventSink) Drain(fn func(Event)) {
	for i := 0; i < len(s.events); i++ {
		fn(s.events[i])
	}
	s.reset()
}

// reset empties the sink, clearing references for GC but keeping capacity.
func (s *EventSink) reset() {
	clear(s.events)
	s.events = s.events[:0]
}
