package winloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompositorUpdates_MergeAndOrder(t *testing.T) {
	var c compositorUpdates
	assert.True(t, c.isEmpty())

	c.queue(CompositorUpdate{WindowID: 2, Resized: true})
	c.queue(CompositorUpdate{WindowID: 1, CloseWindow: true})
	c.queue(CompositorUpdate{WindowID: 2, ScaleChanged: true})
	c.queue(CompositorUpdate{WindowID: 2, Resized: true})
	assert.Equal(t, 2, c.len(), "one record per window")

	got := c.take(nil)
	assert.Equal(t, []CompositorUpdate{
		{WindowID: 2, ScaleChanged: true, Resized: true},
		{WindowID: 1, CloseWindow: true},
	}, got, "first-observed order")
	assert.True(t, c.isEmpty())

	// a fresh iteration starts a fresh record
	c.queue(CompositorUpdate{WindowID: 2, CloseWindow: true})
	assert.Equal(t, []CompositorUpdate{{WindowID: 2, CloseWindow: true}}, c.take(got[:0]))
}
