package spriteanim

import "github.com/kestrel-engine/kestrel"

// frameApplyQueue deduplicates (entity, region) writes within one phase:
// a second enqueue for the same entity overwrites the first (spec §4.3
// "Frame-apply queue"). Order is insertion order of each entity's *first*
// enqueue this phase, which is enough for determinism since drains only
// write Sprite.RegionId and never observe cross-entity ordering.
type frameApplyQueue struct {
	order  []kestrel.EntityId
	region map[kestrel.EntityId]string
}

func newFrameApplyQueue() *frameApplyQueue {
	return &frameApplyQueue{region: make(map[kestrel.EntityId]string)}
}

func (q *frameApplyQueue) enqueue(e kestrel.EntityId, regionId string) {
	if _, exists := q.region[e]; !exists {
		q.order = append(q.order, e)
	}
	q.region[e] = regionId
}

// Len reports how many distinct entities are pending; the invariant is
// that this is zero before each driver invocation (spec §4.3, §8).
func (q *frameApplyQueue) Len() int { return len(q.order) }

// Drain writes every pending region change to the entity's Sprite
// component and empties the queue. Applied directly against World, not
// deferred through Commands, since this is bookkeeping internal to the
// evaluator's own phase (mirrors the marker-maintenance system).
func (q *frameApplyQueue) Drain(world *kestrel.World) int {
	n := 0
	for _, e := range q.order {
		if !world.Exists(e) {
			continue
		}
		regionId := q.region[e]
		kestrel.Query1Of[kestrel.Sprite](world).Each(func(id kestrel.EntityId, sp *kestrel.Sprite) bool {
			if id != e {
				return true
			}
			sp.RegionId = regionId
			return false
		})
		n++
	}
	q.order = q.order[:0]
	for k := range q.region {
		delete(q.region, k)
	}
	return n
}
