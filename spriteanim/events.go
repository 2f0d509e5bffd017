package spriteanim

import "github.com/kestrel-engine/kestrel"

// eventCoalescer accumulates events from all frame-boundary crossings in a
// single phase into one linear buffer, then flushes them to the bus in one
// pass (spec §4.3 "Event coalescing"). A configurable per-phase cap drops
// further events once reached and counts the drop instead of growing
// without bound.
type eventCoalescer struct {
	cap       int
	buf       []coalescedEvent
	coalesced int
	dropped   int
}

type coalescedEvent struct {
	entity kestrel.EntityId
	name   string
}

func newEventCoalescer(cap int) *eventCoalescer {
	if cap <= 0 {
		cap = 256
	}
	return &eventCoalescer{cap: cap}
}

func (c *eventCoalescer) collect(e kestrel.EntityId, names []string) {
	for _, name := range names {
		if len(c.buf) >= c.cap {
			c.dropped++
			continue
		}
		c.buf = append(c.buf, coalescedEvent{entity: e, name: name})
		c.coalesced++
	}
}

// Flush publishes every buffered event to the bus in collection order and
// empties the buffer, returning how many were emitted this phase.
func (c *eventCoalescer) Flush(bus *kestrel.EventBus, logger kestrel.Logger) int {
	n := len(c.buf)
	for _, evt := range c.buf {
		bus.Publish(kestrel.Event{Kind: "sprite_animation." + evt.name, Entity: evt.entity})
	}
	if c.dropped > 0 {
		logger.Warnf("spriteanim: dropped %d events this phase (cap %d)", c.dropped, c.cap)
	}
	c.buf = c.buf[:0]
	c.dropped = 0
	return n
}
