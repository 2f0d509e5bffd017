package kestrel

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"reflect"
	"slices"
	"sync"
)

// ecs is the typed component storage. Entities are grouped into archetypes
// keyed by their sorted set of component ids; each archetype stores one
// reflect-backed slice per component type (struct-of-arrays per archetype,
// not per entity). Adding/removing a component moves the entity's row to a
// different archetype.
//
// Stale-handle detection lives one layer up in World, which is the only
// thing that hands out EntityId values: ecs itself is unaware of
// generations and only ever sees slot indices it has been told are live.
type ecs struct {
	archetypes map[archetypeId]*archetype
	entityArch map[uint32]archetypeId

	componentIdCounterLock sync.Mutex
	componentIdCounter     componentId
	componentTypeIdMap     map[reflect.Type]componentId
	componentIdTypeMap     map[componentId]reflect.Type
}

func makeEcs() ecs {
	return ecs{
		archetypes:         make(map[archetypeId]*archetype),
		entityArch:         make(map[uint32]archetypeId),
		componentTypeIdMap: make(map[reflect.Type]componentId),
		componentIdTypeMap: make(map[componentId]reflect.Type),
	}
}

type archetype struct {
	id            archetypeId
	key           archetypeKey
	entities      map[uint32]row
	rowEntity     map[row]uint32
	componentData map[componentId]any // typed slices via reflection
	recycled      []row
}

func (e *ecs) insertEntity(index uint32, components ...any) {
	archId, _, arch := e.archetypeFromComponents(components...)

	r := e.archetypeReserveRow(arch)
	arch.entities[index] = r
	arch.rowEntity[r] = index
	for _, component := range components {
		e.writeComponent(arch, r, component)
	}

	e.entityArch[index] = archId
}

func (e *ecs) removeEntity(index uint32) {
	archId, ok := e.entityArch[index]
	if !ok {
		return
	}
	arch := e.archetypes[archId]
	r := arch.entities[index]
	arch.recycled = append(arch.recycled, r)
	delete(arch.entities, index)
	delete(arch.rowEntity, r)
	delete(e.entityArch, index)
}

func (e *ecs) addComponents(index uint32, components ...any) {
	srcArchId := e.entityArch[index]
	srcArch := e.archetypes[srcArchId]
	srcRow := srcArch.entities[index]

	dstArchId, _, dstArch := e.archetypeFromExtraComponents(srcArch, components...)
	dstRow := e.archetypeReserveRow(dstArch)

	e.moveComponents(srcArch, srcRow, dstArch, dstRow)
	for _, component := range components {
		e.writeComponent(dstArch, dstRow, component)
	}

	e.detachRow(srcArch, index, srcRow)

	dstArch.entities[index] = dstRow
	dstArch.rowEntity[dstRow] = index
	e.entityArch[index] = dstArchId
}

func (e *ecs) removeComponents(index uint32, components ...any) {
	srcArchId := e.entityArch[index]
	srcArch := e.archetypes[srcArchId]
	srcRow := srcArch.entities[index]

	removeSet := make(set[componentId])
	for _, c := range components {
		removeSet[e.getComponentId(structType(c))] = struct{}{}
	}

	var dstKey archetypeKey
	for _, compId := range srcArch.key {
		if _, drop := removeSet[compId]; !drop {
			dstKey = append(dstKey, compId)
		}
	}

	dstArchId, dstArch := e.getOrMakeArchetype(dstKey)
	dstRow := e.archetypeReserveRow(dstArch)

	e.moveComponents(srcArch, srcRow, dstArch, dstRow)
	e.detachRow(srcArch, index, srcRow)

	dstArch.entities[index] = dstRow
	dstArch.rowEntity[dstRow] = index
	e.entityArch[index] = dstArchId
}

func (e *ecs) detachRow(arch *archetype, index uint32, r row) {
	arch.recycled = append(arch.recycled, r)
	delete(arch.entities, index)
	delete(arch.rowEntity, r)
}

func (e *ecs) moveComponents(srcArch *archetype, srcRow row, dstArch *archetype, dstRow row) {
	var key archetypeKey
	if len(srcArch.key) <= len(dstArch.key) {
		key = srcArch.key
	} else {
		key = dstArch.key
	}

	for _, cid := range key {
		if _, ok := dstArch.componentData[cid]; !ok {
			continue
		}
		srcValue := reflectSliceGet(srcArch.componentData[cid], int(srcRow))
		reflectSliceSet(dstArch.componentData[cid], int(dstRow), srcValue)
	}
}

func (e *ecs) writeComponent(dstArch *archetype, dstRow row, component any) {
	componentType := reflect.TypeOf(component)
	reflectValue := reflect.ValueOf(component)
	if componentType.Kind() == reflect.Pointer {
		componentType = componentType.Elem()
		reflectValue = reflectValue.Elem()
	}
	if componentType.Kind() != reflect.Struct {
		panic(fmt.Errorf("expected Component to be a struct or pointer to struct, got %s", componentType.Kind()))
	}

	cid := e.getComponentId(componentType)
	reflectSliceSet(dstArch.componentData[cid], int(dstRow), reflectValue)
}

func (e *ecs) archetypeFromComponents(components ...any) (archetypeId, archetypeKey, *archetype) {
	key := e.getArchetypeKey(components...)
	id, arch := e.getOrMakeArchetype(key)
	return id, key, arch
}

func (e *ecs) archetypeFromExtraComponents(srcArch *archetype, components ...any) (archetypeId, archetypeKey, *archetype) {
	dstKey := combineArchetypeKeys(srcArch.key, e.getArchetypeKey(components...))
	id, arch := e.getOrMakeArchetype(dstKey)
	return id, dstKey, arch
}

func (e *ecs) getOrMakeArchetype(key archetypeKey) (archetypeId, *archetype) {
	id := getArchetypeId(key)
	if arch, ok := e.archetypes[id]; ok {
		return id, arch
	}

	arch := &archetype{
		id:            id,
		key:           key,
		entities:      make(map[uint32]row),
		rowEntity:     make(map[row]uint32),
		componentData: make(map[componentId]any),
	}
	for _, cid := range arch.key {
		arch.componentData[cid] = reflectSliceMake(e.componentIdTypeMap[cid])
	}

	e.archetypes[id] = arch
	return id, arch
}

func (e *ecs) archetypeReserveRow(arch *archetype) row {
	if len(arch.recycled) > 0 {
		r := arch.recycled[len(arch.recycled)-1]
		arch.recycled = arch.recycled[:len(arch.recycled)-1]
		return r
	}

	r := row(len(arch.entities) + len(arch.recycled))
	// row count tracked by the length of the backing slices, not just the
	// live entity map (rows may have been vacated and recycled already).
	want := int(r) + 1
	for _, cid := range arch.key {
		for reflectSliceLen(arch.componentData[cid]) < want {
			arch.componentData[cid] = reflectSliceAppend(arch.componentData[cid], reflect.Zero(e.componentIdTypeMap[cid]))
		}
	}
	return r
}

// getArchetypeKey derives the canonical (sorted, deduped) key for a set of
// component values. ArchetypeID is a hash of that key: fast to compare, at
// the cost of (unhandled-here, vanishingly unlikely) collisions.
func (e *ecs) getArchetypeKey(components ...any) archetypeKey {
	var res archetypeKey
	for _, component := range components {
		res = append(res, e.getComponentId(structType(component)))
	}
	return dedupAndSortArchetypeKey(res)
}

func structType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic("component must be a struct or pointer to struct")
	}
	return t
}

func combineArchetypeKeys(a, b archetypeKey) archetypeKey {
	return dedupAndSortArchetypeKey(append(slices.Clone(a), b...))
}

func dedupAndSortArchetypeKey(key archetypeKey) archetypeKey {
	dedup := make(set[componentId])
	for _, v := range key {
		dedup[v] = struct{}{}
	}
	res := make(archetypeKey, 0, len(dedup))
	for k := range dedup {
		res = append(res, k)
	}
	slices.Sort(res)
	return res
}

func getArchetypeId(key archetypeKey) archetypeId {
	hash := fnv.New64a()
	b := make([]byte, 8)
	for _, cid := range key {
		binary.LittleEndian.PutUint64(b, uint64(cid))
		hash.Write(b)
	}
	return archetypeId(hash.Sum64())
}

func (e *ecs) getComponentId(componentType reflect.Type) componentId {
	e.componentIdCounterLock.Lock()
	defer e.componentIdCounterLock.Unlock()

	if id, ok := e.componentTypeIdMap[componentType]; ok {
		return id
	}
	id := e.componentIdCounter
	e.componentIdCounter++
	e.componentTypeIdMap[componentType] = id
	e.componentIdTypeMap[id] = componentType
	return id
}

func archHas(arch *archetype, id componentId) bool {
	_, found := slices.BinarySearch(arch.key, id)
	return found
}

func hasAll(arch *archetype, ids []componentId) bool {
	for _, id := range ids {
		if !archHas(arch, id) {
			return false
		}
	}
	return true
}

func hasAny(arch *archetype, ids []componentId) bool {
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if archHas(arch, id) {
			return true
		}
	}
	return false
}

func hasNone(arch *archetype, ids []componentId) bool {
	for _, id := range ids {
		if archHas(arch, id) {
			return false
		}
	}
	return true
}
