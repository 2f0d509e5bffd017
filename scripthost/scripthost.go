// Package scripthost implements the Script Behaviour Host (spec §4.8): a
// compiled-script cache keyed by path, a per-entity instance table, callback
// dispatch with a per-callback time budget, a deferred command queue, and
// hot reload.
//
// The engine places no requirement on which scripting language a Script is
// written in; a Script is any Go value satisfying the Script interface,
// optionally also implementing Readier/Processor/PhysicsProcessor/Exiter.
// "Compiling" a script means invoking its registered Loader, matching the
// way the rest of the engine treats assets as opaque values behind a
// loader function (see package asset's RegisterLoader).
package scripthost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kestrel-engine/kestrel"
)

// Readier, Processor, PhysicsProcessor, and Exiter are the optional
// lifecycle callbacks a Script may implement. The host probes for each with
// a type assertion once per compiled script and records the result as the
// callback discovery flags spec §4.8 names (has_ready, has_process,
// has_physics_process, has_exit).
type Readier interface{ Ready(ctx *Context) }
type Processor interface{ Process(ctx *Context, dt float64) }
type PhysicsProcessor interface{ PhysicsProcess(ctx *Context, dt float64) }
type Exiter interface{ Exit(ctx *Context) }

// Script is the minimal contract every compiled script instance satisfies.
type Script interface {
	// PersistState reports whether a hot reload should keep this instance's
	// scope instead of re-invoking Ready (spec §4.8 "persist_state").
	PersistState() bool
}

// Loader constructs a fresh Script instance for path. Returning an error
// fails the compile; the host keeps serving the previous working instances
// (spec §4.8 "retain the prior AST and surface a path-aware error").
type Loader func(path string) (Script, error)

// Context is what a script callback receives. Scripts never mutate the ECS
// directly (spec §4.8); they enqueue commands on Commands instead.
type Context struct {
	World    *kestrel.World
	Entity   kestrel.EntityId
	Commands *CommandQueue
	Logger   kestrel.Logger
}

type callbackFlags struct {
	hasReady, hasProcess, hasPhysicsProcess, hasExit bool
}

type compiledScript struct {
	flags callbackFlags
	err   error
}

type instance struct {
	id         uint64
	entity     kestrel.EntityId
	scriptPath string
	script     Script
	flags      callbackFlags
	errored    bool
	lastError  error
	warnedOnce map[string]bool
}

// Config carries the callback budget and deterministic-ordering settings of
// the engine config's scripts section; it has no command quota or seed.
type Config struct {
	CallbackBudget        time.Duration
	DeterministicOrdering bool
}

func DefaultConfig() Config {
	return Config{CallbackBudget: 8 * time.Millisecond}
}

// Host is the Script Behaviour Host. One Host serves every ScriptBehaviour
// component in the World.
type Host struct {
	cfg    Config
	loader Loader

	mu        sync.Mutex
	compiled  map[string]*compiledScript
	instances map[uint64]*instance
	nextId    uint64
	queue     *CommandQueue
}

// NewHost constructs a Host. loader is the single script compiler used for
// every ScriptBehaviour.ScriptPath observed.
func NewHost(cfg Config, loader Loader) *Host {
	return &Host{
		cfg:       cfg,
		loader:    loader,
		compiled:  make(map[string]*compiledScript),
		instances: make(map[uint64]*instance),
		queue:     newCommandQueue(),
	}
}

// Install wires the Host into ScriptProcess (variable phase) and
// ScriptPhysicsProcess (fixed phase), and auto-unsubscribes an entity's
// instance when it is despawned.
func (h *Host) Install(app *kestrel.App, cmd *kestrel.Commands) {
	app.World().OnDespawn(h.onDespawn)
	app.UseSystem(kestrel.System(h.runProcess).InStage(kestrel.ScriptProcess))
	app.UseSystem(kestrel.System(h.runPhysicsProcess).InStage(kestrel.ScriptPhysicsProcess))
}

func (h *Host) onDespawn(id kestrel.EntityId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for instId, inst := range h.instances {
		if inst.entity == id {
			delete(h.instances, instId)
		}
	}
}

// InstanceCount reports how many live script instances the host is tracking.
func (h *Host) InstanceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.instances)
}

func (h *Host) runProcess(app *kestrel.App) {
	dt := app.Time().Dt
	h.runPhase(app, dt, false)
}

func (h *Host) runPhysicsProcess(app *kestrel.App) {
	dt := float64(kestrel.FixedStep)
	h.runPhase(app, dt, true)
}

func (h *Host) runPhase(app *kestrel.App, dt float64, fixed bool) {
	world := app.World()
	logger := app.Logger()

	var touched []*instance
	kestrel.Query1Of[kestrel.ScriptBehaviour](world).Each(func(id kestrel.EntityId, sb *kestrel.ScriptBehaviour) bool {
		inst := h.ensureInstance(world, logger, id, sb, false)
		if inst == nil || inst.errored {
			return true
		}
		touched = append(touched, inst)
		return true
	})

	for _, inst := range touched {
		if fixed {
			if pp, ok := inst.script.(PhysicsProcessor); ok {
				h.dispatch(app, inst, logger, "physics_process", func(c *Context) { pp.PhysicsProcess(c, dt) })
			}
		} else {
			if p, ok := inst.script.(Processor); ok {
				h.dispatch(app, inst, logger, "process", func(c *Context) { p.Process(c, dt) })
			}
		}
	}

	h.queue.apply(app, h.cfg.DeterministicOrdering)
}

// ensureInstance compiles the script on first observation of this entity's
// ScriptBehaviour and invokes ready exactly once (spec §4.8).
func (h *Host) ensureInstance(world *kestrel.World, logger kestrel.Logger, id kestrel.EntityId, sb *kestrel.ScriptBehaviour, hotReload bool) *instance {
	h.mu.Lock()
	if sb.InstanceId != 0 {
		inst, ok := h.instances[sb.InstanceId]
		h.mu.Unlock()
		if ok {
			return inst
		}
		// InstanceId points at an instance the host no longer tracks
		// (e.g. process restarted); fall through and recompile.
	} else {
		h.mu.Unlock()
	}

	cs := h.compile(sb.ScriptPath)
	if cs.err != nil {
		logger.Errorf("script compile failed for %q: %v", sb.ScriptPath, cs.err)
		return nil
	}

	script, err := h.loader(sb.ScriptPath)
	if err != nil {
		logger.Errorf("script instantiate failed for %q: %v", sb.ScriptPath, err)
		return nil
	}

	h.mu.Lock()
	h.nextId++
	inst := &instance{
		id:         h.nextId,
		entity:     id,
		scriptPath: sb.ScriptPath,
		script:     script,
		flags:      cs.flags,
		warnedOnce: make(map[string]bool),
	}
	h.instances[inst.id] = inst
	h.mu.Unlock()
	sb.InstanceId = inst.id

	if cs.flags.hasReady {
		h.dispatch(nil, inst, logger, "ready", func(c *Context) {
			script.(Readier).Ready(c)
		})
	}
	return inst
}

// compile loads (and caches by path) the callback discovery flags for a
// script. A probe instance is constructed once to discover which optional
// interfaces it implements; the cache never holds the probe itself since
// each entity needs its own instance state.
func (h *Host) compile(path string) *compiledScript {
	h.mu.Lock()
	if cs, ok := h.compiled[path]; ok {
		h.mu.Unlock()
		return cs
	}
	h.mu.Unlock()

	probe, err := h.loader(path)
	cs := &compiledScript{err: err}
	if err == nil {
		_, cs.flags.hasReady = probe.(Readier)
		_, cs.flags.hasProcess = probe.(Processor)
		_, cs.flags.hasPhysicsProcess = probe.(PhysicsProcessor)
		_, cs.flags.hasExit = probe.(Exiter)
	}

	h.mu.Lock()
	h.compiled[path] = cs
	h.mu.Unlock()
	return cs
}

// Reload recompiles path. On success, every live instance bound to it has
// Exit invoked (if it defines one). An instance whose PersistState is false
// then gets a fresh Script from the loader, its error state cleared, and
// Ready invoked on the new Script; a persisting instance keeps its Script
// and only has its callback flags refreshed. Ready receives no indication
// that it runs because of a hot reload. On failure the prior compiled
// flags and every existing instance are left untouched.
func (h *Host) Reload(world *kestrel.World, logger kestrel.Logger, path string) error {
	probe, err := h.loader(path)
	if err != nil {
		logger.Errorf("hot reload failed for %q, keeping prior script: %v", path, err)
		return fmt.Errorf("reload %q: %w", path, err)
	}

	var flags callbackFlags
	_, flags.hasReady = probe.(Readier)
	_, flags.hasProcess = probe.(Processor)
	_, flags.hasPhysicsProcess = probe.(PhysicsProcessor)
	_, flags.hasExit = probe.(Exiter)

	h.mu.Lock()
	h.compiled[path] = &compiledScript{flags: flags}
	var affected []*instance
	for _, inst := range h.instances {
		if inst.scriptPath == path {
			affected = append(affected, inst)
		}
	}
	h.mu.Unlock()

	for _, inst := range affected {
		if inst.flags.hasExit {
			h.dispatch(nil, inst, logger, "exit", func(c *Context) { inst.script.(Exiter).Exit(c) })
		}
		if inst.script.PersistState() {
			// keep the existing scope; only refresh the discovered flags.
			inst.flags = flags
			continue
		}
		fresh, err := h.loader(path)
		if err != nil {
			logger.Errorf("hot reload instantiate failed for entity on %q: %v", path, err)
			continue
		}
		inst.script = fresh
		inst.flags = flags
		inst.errored = false
		inst.lastError = nil
		if flags.hasReady {
			h.dispatch(nil, inst, logger, "ready", func(c *Context) { fresh.(Readier).Ready(c) })
		}
	}
	return nil
}

// dispatch runs one callback on its own goroutine under the configured time
// budget. A callback that panics, or has not returned when the budget
// elapses (recorded as BudgetExceeded), errors the instance, which then
// skips further callbacks until reload. An overrunning callback is not
// stopped: its goroutine keeps running until the callback returns.
func (h *Host) dispatch(app *kestrel.App, inst *instance, logger kestrel.Logger, phase string, call func(*Context)) {
	var world *kestrel.World
	if app != nil {
		world = app.World()
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CallbackBudget)
	defer cancel()

	sctx := &Context{World: world, Entity: inst.entity, Commands: h.queue, Logger: logger}
	done := make(chan struct{})
	var panicked any
	go func() {
		defer func() {
			panicked = recover()
			close(done)
		}()
		call(sctx)
	}()

	select {
	case <-done:
		if panicked != nil {
			inst.errored = true
			inst.lastError = fmt.Errorf("%s: panic: %v", phase, panicked)
			h.warnOnce(logger, inst, phase, "script %q panicked in %s: %v", inst.scriptPath, phase, panicked)
		}
	case <-ctx.Done():
		inst.errored = true
		inst.lastError = kestrel.NewBudgetExceeded(fmt.Sprintf("script.%s", phase), h.cfg.CallbackBudget.Seconds(), h.cfg.CallbackBudget.Seconds())
		h.warnOnce(logger, inst, phase, "script %q exceeded its %s budget in %s", inst.scriptPath, h.cfg.CallbackBudget, phase)
	}
}

// warnOnce logs a script callback failure at most once per (instance,
// phase) pair, matching spec §4.8 "log once with path:line:col and call
// stack" — the host has no source positions for a Go-defined script, so it
// logs the script path and phase instead.
func (h *Host) warnOnce(logger kestrel.Logger, inst *instance, key, format string, args ...any) {
	if inst.warnedOnce[key] {
		return
	}
	inst.warnedOnce[key] = true
	logger.Warnf(format, args...)
}
