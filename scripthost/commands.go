package scripthost

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

// PrefabFunc spawns a prefab's entities via cmd and returns its root.
type PrefabFunc func(cmd *kestrel.Commands) kestrel.EntityId

type commandKind int

const (
	cmdSpawnPrefab commandKind = iota
	cmdSetPosition
	cmdSetVelocity
	cmdDespawn
)

type queuedCommand struct {
	kind       commandKind
	scriptPath string
	seq        int
	target     kestrel.EntityId
	position   mgl32.Vec3
	velocity   mgl32.Vec3
	prefab     PrefabFunc
}

// CommandQueue is the deferred-mutation surface scripts use instead of
// touching the World directly (spec §4.8 "Scripts never mutate ECS
// directly"). Queued commands are applied at the Host's phase boundary in
// either enqueue order or, under deterministic_ordering, sorted by
// (script_path, entity_id).
type CommandQueue struct {
	mu   sync.Mutex
	seq  int
	cmds []queuedCommand
}

func newCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

func (q *CommandQueue) push(c queuedCommand) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	c.seq = q.seq
	q.cmds = append(q.cmds, c)
}

// SpawnPrefab enqueues a prefab instantiation attributed to scriptPath.
func (q *CommandQueue) SpawnPrefab(scriptPath string, fn PrefabFunc) {
	q.push(queuedCommand{kind: cmdSpawnPrefab, scriptPath: scriptPath, prefab: fn})
}

// SetPosition enqueues a Transform.Translation write on target.
func (q *CommandQueue) SetPosition(scriptPath string, target kestrel.EntityId, pos mgl32.Vec3) {
	q.push(queuedCommand{kind: cmdSetPosition, scriptPath: scriptPath, target: target, position: pos})
}

// SetVelocity enqueues a Velocity.Linear write on target.
func (q *CommandQueue) SetVelocity(scriptPath string, target kestrel.EntityId, vel mgl32.Vec3) {
	q.push(queuedCommand{kind: cmdSetVelocity, scriptPath: scriptPath, target: target, velocity: vel})
}

// Despawn enqueues target's removal.
func (q *CommandQueue) Despawn(scriptPath string, target kestrel.EntityId) {
	q.push(queuedCommand{kind: cmdDespawn, scriptPath: scriptPath, target: target})
}

// apply drains and executes every queued command in either enqueue order or,
// when deterministic is true, sorted by (script_path, entity_index) (spec
// §4.1 "deterministic_ordering"). Commands targeting a stale handle are
// dropped with a throttled warning rather than applied.
func (q *CommandQueue) apply(app *kestrel.App, deterministic bool) {
	q.mu.Lock()
	cmds := q.cmds
	q.cmds = nil
	q.mu.Unlock()
	if len(cmds) == 0 {
		return
	}

	if deterministic {
		sort.SliceStable(cmds, func(i, j int) bool {
			if cmds[i].scriptPath != cmds[j].scriptPath {
				return cmds[i].scriptPath < cmds[j].scriptPath
			}
			return cmds[i].target.Index() < cmds[j].target.Index()
		})
	} else {
		sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].seq < cmds[j].seq })
	}

	world := app.World()
	cmd := app.Commands()
	logger := app.Logger()

	for _, c := range cmds {
		switch c.kind {
		case cmdSpawnPrefab:
			if c.prefab != nil {
				c.prefab(cmd)
			}
		case cmdSetPosition:
			if !world.Exists(c.target) {
				logger.Warnf("script %q: SetPosition on stale handle %s dropped", c.scriptPath, c.target)
				continue
			}
			mutateTransform(world, c.target, func(t *kestrel.Transform) { t.Translation = c.position })
		case cmdSetVelocity:
			if !world.Exists(c.target) {
				logger.Warnf("script %q: SetVelocity on stale handle %s dropped", c.scriptPath, c.target)
				continue
			}
			mutateVelocity(world, c.target, func(v *kestrel.Velocity) { v.Linear = c.velocity })
		case cmdDespawn:
			if !world.Exists(c.target) {
				logger.Warnf("script %q: Despawn on stale handle %s dropped", c.scriptPath, c.target)
				continue
			}
			world.Despawn(c.target)
		}
	}
}

func mutateTransform(w *kestrel.World, target kestrel.EntityId, fn func(*kestrel.Transform)) {
	kestrel.Query1Of[kestrel.Transform](w).Each(func(id kestrel.EntityId, t *kestrel.Transform) bool {
		if id != target {
			return true
		}
		fn(t)
		return false
	})
}

func mutateVelocity(w *kestrel.World, target kestrel.EntityId, fn func(*kestrel.Velocity)) {
	kestrel.Query1Of[kestrel.Velocity](w).Each(func(id kestrel.EntityId, v *kestrel.Velocity) bool {
		if id != target {
			return true
		}
		fn(v)
		return false
	})
}
