// Package telemetry implements the reference-counted immutable snapshot
// cache the editor and profiler panels read from (spec §4.10).
package telemetry

import (
	"runtime"
	"sync/atomic"
)

// Shared is an immutable, reference-counted, versioned view of a value.
// Producers publish new versions; consumers read the latest without
// cloning, and release when done. The zero value is not usable; construct
// with NewShared.
type Shared[T any] struct {
	value   T
	version uint64
	refs    *int32
}

// NewShared wraps value at version 1 with an initial refcount of 1.
func NewShared[T any](value T) Shared[T] {
	refs := int32(1)
	return Shared[T]{value: value, version: 1, refs: &refs}
}

// Retain increments the refcount and returns the same snapshot, letting
// callers pass a Shared around without the producer losing its reference.
func (s Shared[T]) Retain() Shared[T] {
	atomic.AddInt32(s.refs, 1)
	return s
}

// Release decrements the refcount. The underlying value is only ever
// garbage-collected by the Go runtime once the last Shared referencing it
// is gone; Release exists so RefCount-based tests and debug panels can
// observe lifetime the way the other reference-counted subsystems
// (asset.Server) do.
func (s Shared[T]) Release() {
	atomic.AddInt32(s.refs, -1)
}

// Value returns the wrapped value. Safe to call after Release; Go's GC,
// not this refcount, decides when storage is actually reclaimed.
func (s Shared[T]) Value() T { return s.value }

// Version returns the publish version, so consumers can skip redundant
// redraws when it hasn't advanced since their last read.
func (s Shared[T]) Version() uint64 { return s.version }

// RefCount reports the current reference count, for tests.
func (s Shared[T]) RefCount() int32 { return atomic.LoadInt32(s.refs) }

// Cell is a single-slot publish/subscribe point: producers call Publish,
// consumers call Load. Safe for concurrent use by one producer and many
// readers (asset watcher / profiler panels).
type Cell[T any] struct {
	current atomic.Pointer[Shared[T]]
}

// NewCell constructs a Cell pre-populated with an initial value at
// version 1.
func NewCell[T any](initial T) *Cell[T] {
	c := &Cell[T]{}
	s := NewShared(initial)
	c.current.Store(&s)
	return c
}

// Publish stores a new version of the value, bumping Version by one
// relative to whatever was previously stored.
func (c *Cell[T]) Publish(value T) {
	prev := c.current.Load()
	next := Shared[T]{value: value, version: prev.version + 1, refs: new(int32)}
	*next.refs = 1
	c.current.Store(&next)
}

// Load returns the latest published snapshot without cloning.
func (c *Cell[T]) Load() Shared[T] {
	return *c.current.Load()
}

// Capture is an opt-in harness comparing heap allocation between an idle
// frame and a frame with editor panels open, per spec §4.10 "a capture
// harness (opt-in) compares idle vs. panels-open frame budgets".
type Capture struct {
	idleAllocs    uint64
	panelsAllocs  uint64
	idleSamples   int
	panelsSamples int
}

// NewCapture constructs an idle Capture harness; call SampleIdle/
// SamplePanels around the frames under measurement.
func NewCapture() *Capture { return &Capture{} }

// SampleIdle runs fn once and records its heap allocation delta as an idle
// (no panels open) sample.
func (c *Capture) SampleIdle(fn func()) {
	c.idleAllocs += measureAllocs(fn)
	c.idleSamples++
}

// SamplePanels runs fn once and records its heap allocation delta as a
// panels-open sample.
func (c *Capture) SamplePanels(fn func()) {
	c.panelsAllocs += measureAllocs(fn)
	c.panelsSamples++
}

// IdleMeanAllocs returns the mean bytes allocated per idle sample.
func (c *Capture) IdleMeanAllocs() float64 {
	if c.idleSamples == 0 {
		return 0
	}
	return float64(c.idleAllocs) / float64(c.idleSamples)
}

// PanelsMeanAllocs returns the mean bytes allocated per panels-open sample.
func (c *Capture) PanelsMeanAllocs() float64 {
	if c.panelsSamples == 0 {
		return 0
	}
	return float64(c.panelsAllocs) / float64(c.panelsSamples)
}

func measureAllocs(fn func()) uint64 {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	fn()
	runtime.ReadMemStats(&after)
	if after.TotalAlloc < before.TotalAlloc {
		return 0
	}
	return after.TotalAlloc - before.TotalAlloc
}
