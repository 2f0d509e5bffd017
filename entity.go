package kestrel

import "fmt"

// EntityId is an opaque handle carrying a slot index and a generation
// counter. A handle whose generation no longer matches the live slot is
// stale: every World operation taking a handle validates it first and
// leaves storage untouched for a stale one (Attach, Detach and SetParent
// return a *StaleHandleError; Despawn returns false).
type EntityId struct {
	index      uint32
	generation uint32
}

// Invalid is the zero handle; it never compares equal to a spawned entity.
var Invalid = EntityId{}

func (e EntityId) String() string {
	return fmt.Sprintf("Entity(%d#%d)", e.index, e.generation)
}

// Index exposes the raw slot index, e.g. for deterministic sort keys.
func (e EntityId) Index() uint32 { return e.index }

type archetypeId uint64
type archetypeKey []componentId
type componentId uint32
type row int
type set[T comparable] = map[T]struct{}
