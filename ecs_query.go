package kestrel

import (
	"reflect"
	"slices"
)

// Query1Of ... Query4Of borrow rows matching a set of component types,
// optionally narrowed by WithoutTypes (every query) and WithAnyTypes
// (Query1 only) filters. Each() stops early when the callback returns false.
type Query1[A any] struct {
	w       *World
	without []componentId
	any     []componentId
}
type Query2[A, B any] struct {
	w       *World
	without []componentId
	any     []componentId
}
type Query3[A, B, C any] struct {
	w       *World
	without []componentId
	any     []componentId
}
type Query4[A, B, C, D any] struct {
	w       *World
	without []componentId
	any     []componentId
}

func Query1Of[A any](w *World) Query1[A] { return Query1[A]{w: w} }
func Query2Of[A, B any](w *World) Query2[A, B] { return Query2[A, B]{w: w} }
func Query3Of[A, B, C any](w *World) Query3[A, B, C] { return Query3[A, B, C]{w: w} }
func Query4Of[A, B, C, D any](w *World) Query4[A, B, C, D] { return Query4[A, B, C, D]{w: w} }

func (q Query1[A]) WithoutTypes(types ...any) Query1[A] {
	q.without = append(q.without, idsOfValues(&q.w.ecs, types...)...)
	return q
}
func (q Query1[A]) WithAnyTypes(types ...any) Query1[A] {
	q.any = append(q.any, idsOfValues(&q.w.ecs, types...)...)
	return q
}

func (q Query2[A, B]) WithoutTypes(types ...any) Query2[A, B] {
	q.without = append(q.without, idsOfValues(&q.w.ecs, types...)...)
	return q
}

func (q Query3[A, B, C]) WithoutTypes(types ...any) Query3[A, B, C] {
	q.without = append(q.without, idsOfValues(&q.w.ecs, types...)...)
	return q
}

func (q Query4[A, B, C, D]) WithoutTypes(types ...any) Query4[A, B, C, D] {
	q.without = append(q.without, idsOfValues(&q.w.ecs, types...)...)
	return q
}

func idOf[T any](e *ecs) componentId {
	var zero T
	return e.getComponentId(reflect.TypeOf(zero))
}

func idsOfValues(e *ecs, vals ...any) []componentId {
	ids := make([]componentId, 0, len(vals))
	for _, v := range vals {
		ids = append(ids, e.getComponentId(structType(v)))
	}
	return ids
}

// Each iterates entities holding component A, honoring WithoutTypes/
// WithAnyTypes filters; within each archetype, rows are visited in
// ascending entity-index order (see iterateArchetype).
func (q Query1[A]) Each(fn func(EntityId, *A) bool) {
	idA := idOf[A](&q.w.ecs)
	for _, arch := range q.w.ecs.archetypes {
		if !archHas(arch, idA) || !hasNone(arch, q.without) || !hasAny(arch, q.any) {
			continue
		}
		dataA := arch.componentData[idA]
		if !iterateArchetype(q.w, arch, func(idx uint32, r row) bool {
			a := reflectSliceGet(dataA, int(r)).Addr().Interface().(*A)
			return fn(q.w.handleFor(idx), a)
		}) {
			return
		}
	}
}

func (q Query2[A, B]) Each(fn func(EntityId, *A, *B) bool) {
	idA, idB := idOf[A](&q.w.ecs), idOf[B](&q.w.ecs)
	for _, arch := range q.w.ecs.archetypes {
		if !hasAll(arch, []componentId{idA, idB}) || !hasNone(arch, q.without) || !hasAny(arch, q.any) {
			continue
		}
		dataA, dataB := arch.componentData[idA], arch.componentData[idB]
		if !iterateArchetype(q.w, arch, func(idx uint32, r row) bool {
			a := reflectSliceGet(dataA, int(r)).Addr().Interface().(*A)
			b := reflectSliceGet(dataB, int(r)).Addr().Interface().(*B)
			return fn(q.w.handleFor(idx), a, b)
		}) {
			return
		}
	}
}

func (q Query3[A, B, C]) Each(fn func(EntityId, *A, *B, *C) bool) {
	idA, idB, idC := idOf[A](&q.w.ecs), idOf[B](&q.w.ecs), idOf[C](&q.w.ecs)
	for _, arch := range q.w.ecs.archetypes {
		if !hasAll(arch, []componentId{idA, idB, idC}) || !hasNone(arch, q.without) || !hasAny(arch, q.any) {
			continue
		}
		dataA, dataB, dataC := arch.componentData[idA], arch.componentData[idB], arch.componentData[idC]
		if !iterateArchetype(q.w, arch, func(idx uint32, r row) bool {
			a := reflectSliceGet(dataA, int(r)).Addr().Interface().(*A)
			b := reflectSliceGet(dataB, int(r)).Addr().Interface().(*B)
			c := reflectSliceGet(dataC, int(r)).Addr().Interface().(*C)
			return fn(q.w.handleFor(idx), a, b, c)
		}) {
			return
		}
	}
}

func (q Query4[A, B, C, D]) Each(fn func(EntityId, *A, *B, *C, *D) bool) {
	idA, idB, idC, idD := idOf[A](&q.w.ecs), idOf[B](&q.w.ecs), idOf[C](&q.w.ecs), idOf[D](&q.w.ecs)
	for _, arch := range q.w.ecs.archetypes {
		if !hasAll(arch, []componentId{idA, idB, idC, idD}) || !hasNone(arch, q.without) || !hasAny(arch, q.any) {
			continue
		}
		dataA, dataB, dataC, dataD := arch.componentData[idA], arch.componentData[idB], arch.componentData[idC], arch.componentData[idD]
		if !iterateArchetype(q.w, arch, func(idx uint32, r row) bool {
			a := reflectSliceGet(dataA, int(r)).Addr().Interface().(*A)
			b := reflectSliceGet(dataB, int(r)).Addr().Interface().(*B)
			c := reflectSliceGet(dataC, int(r)).Addr().Interface().(*C)
			d := reflectSliceGet(dataD, int(r)).Addr().Interface().(*D)
			return fn(q.w.handleFor(idx), a, b, c, d)
		}) {
			return
		}
	}
}

// iterateArchetype walks rows in ascending entity-index order so that
// deterministic_ordering mode gets index-ordered iteration for free.
func iterateArchetype(w *World, arch *archetype, fn func(idx uint32, r row) bool) bool {
	indices := make([]uint32, 0, len(arch.entities))
	for idx := range arch.entities {
		indices = append(indices, idx)
	}
	slices.Sort(indices)
	for _, idx := range indices {
		if !fn(idx, arch.entities[idx]) {
			return false
		}
	}
	return true
}

func (w *World) handleFor(index uint32) EntityId {
	return EntityId{index: index, generation: w.slots[index].generation}
}
