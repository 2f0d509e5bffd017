package kestrel

// Commands is the deferred-mutation façade systems and scripts use instead
// of touching World directly (spec §4.2 "Entity World", §4.8 "Scripts
// never mutate ECS directly"). Mutations queue here and apply at the next
// flush, made by the CommandDrain stage every fixed tick and by
// PreFrameCommandDrain once per frame.
type Commands struct {
	app *App

	pendingAttach    []pendingAttach
	pendingRemovals  []pendingRemoval
	pendingDespawns  []EntityId
	pendingReparents []pendingReparent
}

type pendingAttach struct {
	entity     EntityId
	components []any
}

type pendingRemoval struct {
	entity     EntityId
	components []any
}

type pendingReparent struct {
	child, parent EntityId
}

// AddEntity spawns an entity immediately (spawn never fails, per spec
// §4.2) and queues its initial components to attach on the next flush.
func (cmd *Commands) AddEntity(components ...any) EntityId {
	h := cmd.app.world.Spawn()
	if len(components) > 0 {
		cmd.pendingAttach = append(cmd.pendingAttach, pendingAttach{entity: h, components: components})
	}
	return h
}

// AddComponents queues components to attach to an existing entity.
func (cmd *Commands) AddComponents(entityId EntityId, components ...any) {
	cmd.pendingAttach = append(cmd.pendingAttach, pendingAttach{entity: entityId, components: components})
}

// RemoveComponents queues components to detach from an existing entity.
func (cmd *Commands) RemoveComponents(entityId EntityId, components ...any) {
	cmd.pendingRemovals = append(cmd.pendingRemovals, pendingRemoval{entity: entityId, components: components})
}

// RemoveEntity queues a despawn, applied at the next flush.
func (cmd *Commands) RemoveEntity(entityId EntityId) {
	cmd.pendingDespawns = append(cmd.pendingDespawns, entityId)
}

// SetParent queues a hierarchy reparent.
func (cmd *Commands) SetParent(child, parent EntityId) {
	cmd.pendingReparents = append(cmd.pendingReparents, pendingReparent{child: child, parent: parent})
}

// GetAllComponents returns a snapshot of every component on an entity.
func (cmd *Commands) GetAllComponents(entityId EntityId) []any {
	return cmd.app.world.GetAllComponents(entityId)
}

// AddResources installs App-level singleton resources (asset servers,
// physics worlds, loggers, ...).
func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

// World exposes direct, synchronous World access for systems that only
// read — queries never need deferral since iteration snapshots the entity
// index list up front (see ecs_query.go).
func (cmd *Commands) World() *World { return cmd.app.world }

// EventBus returns the App-wide event bus.
func (cmd *Commands) EventBus() *EventBus { return cmd.app.eventBus }

// Logger returns the App's installed logger, or a no-op logger.
func (cmd *Commands) Logger() Logger { return cmd.app.Logger() }

// flush applies every queued mutation in a fixed, deterministic order:
// attachments first, then removals, then reparenting, then despawns last
// so a despawn this phase cannot race a reparent targeting the same handle.
func (cmd *Commands) flush() {
	for _, p := range cmd.pendingAttach {
		cmd.app.world.Attach(p.entity, p.components...)
	}
	for _, p := range cmd.pendingRemovals {
		cmd.app.world.Detach(p.entity, p.components...)
	}
	for _, p := range cmd.pendingReparents {
		cmd.app.world.SetParent(p.child, p.parent)
	}
	for _, h := range cmd.pendingDespawns {
		cmd.app.world.Despawn(h)
	}

	cmd.pendingAttach = cmd.pendingAttach[:0]
	cmd.pendingRemovals = cmd.pendingRemovals[:0]
	cmd.pendingReparents = cmd.pendingReparents[:0]
	cmd.pendingDespawns = cmd.pendingDespawns[:0]
}
