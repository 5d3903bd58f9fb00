package winloop

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestEventSink_AppendPreservesOrder(t *testing.T) {
	var a, b EventSink
	a.PushWindowEvent(1, Focused{Focused: true})
	a.PushDeviceEvent(NoDevice, Key{Code: 1})
	b.PushWindowEvent(2, RedrawRequested{})
	b.PushWindowEvent(1, CloseRequested{})

	a.Append(&b)
	assert.True(t, b.IsEmpty(), "source is emptied")
	assert.Equal(t, 4, a.Len())

	var got []Event
	a.Drain(func(e Event) { got = append(got, e) })
	want := []Event{
		WindowEventRecord{WindowID: 1, Event: Focused{Focused: true}},
		DeviceEventRecord{DeviceID: NoDevice, Event: Key{Code: 1}},
		WindowEventRecord{WindowID: 2, Event: RedrawRequested{}},
		WindowEventRecord{WindowID: 1, Event: CloseRequested{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("drain mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, a.IsEmpty())
}

func TestEventSink_DrainIncludesEventsPushedDuringDrain(t *testing.T) {
	var s EventSink
	s.PushWindowEvent(1, RedrawRequested{})

	var n int
	s.Drain(func(Event) {
		n++
		if n == 1 {
			s.PushWindowEvent(1, Destroyed{})
		}
	})
	assert.Equal(t, 2, n)
	assert.True(t, s.IsEmpty())
}

func TestEventSink_ReusesStorage(t *testing.T) {
	var s EventSink
	for range 8 {
		s.PushWindowEvent(1, RedrawRequested{})
	}
	s.Drain(func(Event) {})
	capacity := cap(s.events)
	s.PushWindowEvent(1, RedrawRequested{})
	assert.Equal(t, capacity, cap(s.events))
	assert.Nil(t, s.events[:capacity][1], "drained slots are cleared")
}
