package winloop

// CompositorUpdate is the coalesced record of derived state changes for one
// window, within one iteration.
type CompositorUpdate struct {
	WindowID     WindowID
	ScaleChanged bool
	Resized      bool
	CloseWindow  bool
}

// merge ORs the flags of other into u.
func (u *CompositorUpdate) merge(other CompositorUpdate) {
	u.ScaleChanged = u.ScaleChanged || other.ScaleChanged
	u.Resized = u.Resized || other.Resized
	u.CloseWindow = u.CloseWindow || other.CloseWindow
}

// compositorUpdates aggregates updates, holding at most one record per
// window, in first-observed order.
type compositorUpdates struct {
	index   map[WindowID]int
	updates []CompositorUpdate
}

// queue merges update into the existing record for its window, or appends a
// new record.
func (c *compositorUpdates) queue(update CompositorUpdate) {
	if i, ok := c.index[update.WindowID]; ok {
		c.updates[i].merge(update)
		return
	}
	if c.index == nil {
		c.index = make(map[WindowID]int)
	}
	c.index[update.WindowID] = len(c.updates)
	c.updates = append(c.updates, update)
}

func (c *compositorUpdates) len() int { return len(c.updates) }

func (c *compositorUpdates) isEmpty() bool { return len(c.updates) == 0 }

// take moves every pending record to the end of dst, returning it, and
// resets the aggregator for the next iteration.
func (c *compositorUpdates) take(dst []CompositorUpdate) []CompositorUpdate {
	dst = append(dst, c.updates...)
	c.updates = c.updates[:0]
	clear(c.index)
	return dst
}
