// Package spriteanim implements the Sprite Animation Evaluator (spec §4.3):
// a struct-of-arrays store driven by two dispatchers — a branch-minimal
// "fast" driver for uniform-duration, Loop-mode, event-free timelines,
// and a "general" driver for everything else.
package spriteanim

import "github.com/kestrel-engine/kestrel"

// flags bits, mirrored from (not aliased to) the cold SpriteAnimation
// component's bitfield in package kestrel.
type flags uint8

const (
	flagReverse       flags = 1 << 0
	flagPaused        flags = 1 << 1
	flagFastEligible  flags = 1 << 2
	flagEventsPresent flags = 1 << 3
	flagErrored       flags = 1 << 4
	flagFinished      flags = 1 << 5 // OnceStop reached its terminal frame this pass
	flagVariableRate  flags = 1 << 6
)

// timeline is the cold, read-mostly per-slot metadata the drivers consult
// only on a frame change, never every tick. frameDt/invFrameDt are both
// precomputed here so the fast driver's inner loop never divides.
type timeline struct {
	regionIds  []string
	durations  []float32
	frameDt    float64 // fast path only: uniform per-frame duration
	invFrameDt float64 // fast path only: 1 / frameDt
	events     [][]string
	loopMode   int8
}

// Store is the SoA backing for every sprite animator slot. Hot fields are
// columnar so the fast driver's inner loop touches only the arrays it
// needs, never a struct-per-entity layout.
type Store struct {
	entity     []kestrel.EntityId
	accum      []float64
	frameIdx   []int32
	frameCount []int32
	flagCol    []flags

	timelineKey []string
	tl          []timeline

	entityToSlot map[kestrel.EntityId]int
	free         []int
}

// NewStore constructs an empty evaluator store.
func NewStore() *Store {
	return &Store{entityToSlot: make(map[kestrel.EntityId]int)}
}

// slotFor returns the slot index for an entity, allocating one (recycling a
// freed slot when available) if it doesn't exist yet.
func (s *Store) slotFor(e kestrel.EntityId) int {
	if idx, ok := s.entityToSlot[e]; ok {
		return idx
	}
	var idx int
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
		s.entity[idx] = e
		s.accum[idx] = 0
		s.frameIdx[idx] = 0
		s.frameCount[idx] = 0
		s.flagCol[idx] = 0
		s.timelineKey[idx] = ""
		s.tl[idx] = timeline{}
	} else {
		idx = len(s.entity)
		s.entity = append(s.entity, e)
		s.accum = append(s.accum, 0)
		s.frameIdx = append(s.frameIdx, 0)
		s.frameCount = append(s.frameCount, 0)
		s.flagCol = append(s.flagCol, 0)
		s.timelineKey = append(s.timelineKey, "")
		s.tl = append(s.tl, timeline{})
	}
	s.entityToSlot[e] = idx
	return idx
}

// Release frees an entity's slot (despawn, component removal).
func (s *Store) Release(e kestrel.EntityId) {
	idx, ok := s.entityToSlot[e]
	if !ok {
		return
	}
	delete(s.entityToSlot, e)
	s.free = append(s.free, idx)
}

// Len reports the number of allocated slots (including freed holes), for
// tests asserting on store growth.
func (s *Store) Len() int { return len(s.entity) }
