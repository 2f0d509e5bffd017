package kestrel

import (
	"fmt"
)

// slot tracks the liveness and generation of one entity index. Recycled
// indices bump the generation so old handles fail validation instead of
// silently addressing a different entity.
type slot struct {
	generation uint32
	alive      bool
}

// World owns the single instance of component storage for a frame. Systems
// borrow it for the duration of their phase; no lock is held across
// phases because the runtime is single-threaded cooperative (spec §5).
type World struct {
	ecs         ecs
	slots       []slot
	freeList    []uint32
	logger      Logger
	warnStale   *throttle
	despawnHooks []func(EntityId)
}

// NewWorld constructs an empty entity/component world. Slot 0 is reserved
// and permanently dead so the zero handle (Invalid) never compares equal to
// a live, spawned entity.
func NewWorld() *World {
	w := &World{
		ecs:       makeEcs(),
		logger:    NewNopLogger(),
		warnStale: newThrottle(time1Second),
	}
	w.slots = append(w.slots, slot{generation: 0, alive: false})
	return w
}

// SetLogger installs the logger used for throttled diagnostic warnings.
func (w *World) SetLogger(l Logger) {
	if l == nil {
		l = NewNopLogger()
	}
	w.logger = l
}

// OnDespawn registers a callback invoked synchronously whenever an entity is
// despawned, before its storage is reclaimed. Every registered hook runs, in
// registration order — the event bus, script host, and particle simulator
// each register their own to auto-unsubscribe/clean up entity-scoped state.
func (w *World) OnDespawn(fn func(EntityId)) { w.despawnHooks = append(w.despawnHooks, fn) }

// Spawn creates a new entity with the given components and never fails;
// spawning always succeeds, recycling a stale slot if one is free.
func (w *World) Spawn(components ...any) EntityId {
	var index uint32
	if n := len(w.freeList); n > 0 {
		index = w.freeList[n-1]
		w.freeList = w.freeList[:n-1]
		w.slots[index].alive = true
	} else {
		index = uint32(len(w.slots))
		w.slots = append(w.slots, slot{generation: 0, alive: true})
	}

	w.ecs.insertEntity(index, components...)
	return EntityId{index: index, generation: w.slots[index].generation}
}

// Exists reports whether a handle still points at a live entity.
func (w *World) Exists(h EntityId) bool {
	return w.valid(h)
}

func (w *World) valid(h EntityId) bool {
	if int(h.index) >= len(w.slots) {
		return false
	}
	s := w.slots[h.index]
	return s.alive && s.generation == h.generation
}

// Despawn removes an entity. It is idempotent: despawning a handle whose
// generation no longer matches (because it was already despawned, or the
// slot was recycled for someone else) is a silent no-op that returns false.
func (w *World) Despawn(h EntityId) bool {
	if !w.valid(h) {
		return false
	}
	for _, hook := range w.despawnHooks {
		hook(h)
	}
	w.ecs.removeEntity(h.index)
	w.slots[h.index].alive = false
	w.slots[h.index].generation++
	w.freeList = append(w.freeList, h.index)
	return true
}

// Attach and Detach below log a throttled warning on a stale handle and
// return a *StaleHandleError without mutating the world.

// Attach adds components to a live entity. Returns a *StaleHandleError if
// the handle is stale.
func (w *World) Attach(h EntityId, components ...any) error {
	if !w.valid(h) {
		w.warnStale.Warnf(w.logger, "stale handle in Attach: %s", h)
		return NewStaleHandle(h.String())
	}
	w.ecs.addComponents(h.index, components...)
	return nil
}

// Detach removes components from a live entity. Returns a
// *StaleHandleError if the handle is stale.
func (w *World) Detach(h EntityId, components ...any) error {
	if !w.valid(h) {
		w.warnStale.Warnf(w.logger, "stale handle in Detach: %s", h)
		return NewStaleHandle(h.String())
	}
	w.ecs.removeComponents(h.index, components...)
	return nil
}

// GetAllComponents returns a snapshot copy of every component value on an
// entity; used by the editor inspector and by systems that need to branch
// on "does this entity also have X" without a dedicated query.
func (w *World) GetAllComponents(h EntityId) []any {
	if !w.valid(h) {
		return nil
	}
	archId := w.ecs.entityArch[h.index]
	arch := w.ecs.archetypes[archId]
	r := arch.entities[h.index]

	res := make([]any, 0, len(arch.componentData))
	for _, data := range arch.componentData {
		res = append(res, reflectSliceGet(data, int(r)).Interface())
	}
	return res
}

// SetParent assigns child's Parent component and appends child to parent's
// Children, rejecting cycles. Passing the zero EntityId clears the parent.
func (w *World) SetParent(child, parent EntityId) error {
	if !w.valid(child) {
		return NewStaleHandle(child.String())
	}
	if parent != Invalid {
		if !w.valid(parent) {
			return NewStaleHandle(parent.String())
		}
		for cursor := parent; cursor != Invalid; {
			if cursor == child {
				return NewHierarchyCycle(fmt.Sprintf("%s would become its own ancestor", child))
			}
			p, ok := w.getParent(cursor)
			if !ok {
				break
			}
			cursor = p
		}
	}

	if oldParent, ok := w.getParent(child); ok && oldParent != Invalid {
		w.removeChild(oldParent, child)
	}

	if parent == Invalid {
		w.Detach(child, Parent{})
	} else {
		if w.Exists(child) {
			w.Detach(child, Parent{})
		}
		w.Attach(child, Parent{Entity: parent})
		w.appendChild(parent, child)
	}
	return nil
}

func (w *World) getParent(h EntityId) (EntityId, bool) {
	var found EntityId
	ok := false
	Query1Of[Parent](w).Each(func(id EntityId, p *Parent) bool {
		if id == h {
			found = p.Entity
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

func (w *World) appendChild(parent, child EntityId) {
	var c *Children
	Query1Of[Children](w).Each(func(id EntityId, ch *Children) bool {
		if id == parent {
			c = ch
			return false
		}
		return true
	})
	if c == nil {
		w.Attach(parent, Children{Entities: []EntityId{child}})
		return
	}
	c.Entities = append(c.Entities, child)
}

func (w *World) removeChild(parent, child EntityId) {
	Query1Of[Children](w).Each(func(id EntityId, ch *Children) bool {
		if id == parent {
			out := ch.Entities[:0]
			for _, e := range ch.Entities {
				if e != child {
					out = append(out, e)
				}
			}
			ch.Entities = out
			return false
		}
		return true
	})
}

// PropagateWorldTransforms walks from roots (entities with Transform but no
// Parent) down to leaves, composing child.WorldTransform =
// parent.WorldTransform ∘ local. Idempotent; must run at most once per
// frame after all transform mutations for that frame have landed.
func (w *World) PropagateWorldTransforms() {
	Query2Of[Transform, WorldTransform](w).Each(func(id EntityId, local *Transform, world *WorldTransform) bool {
		if _, hasParent := w.getParent(id); hasParent {
			return true
		}
		world.Translation = local.Translation
		world.Rotation = local.Rotation
		world.Scale = local.Scale
		w.propagateChildren(id, *world)
		return true
	})
}

func (w *World) propagateChildren(parent EntityId, parentWorld WorldTransform) {
	var children []EntityId
	Query1Of[Children](w).Each(func(id EntityId, ch *Children) bool {
		if id == parent {
			children = ch.Entities
			return false
		}
		return true
	})

	for _, childId := range children {
		if !w.Exists(childId) {
			continue
		}
		Query2Of[Transform, WorldTransform](w).Each(func(id EntityId, local *Transform, world *WorldTransform) bool {
			if id != childId {
				return true
			}
			composed := composeTransform(parentWorld, *local)
			world.Translation = composed.Translation
			world.Rotation = composed.Rotation
			world.Scale = composed.Scale
			w.propagateChildren(childId, *world)
			return false
		})
	}
}
