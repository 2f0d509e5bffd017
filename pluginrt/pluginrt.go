// Package pluginrt implements the Plugin Runtime (spec §4.7): capability
// gating, a panic-catching boundary for full-trust plugins, an isolated-host
// RPC transport over framed pipes, watchdog timers, asset readback quotas,
// and manifest-driven loading.
package pluginrt

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrel-engine/kestrel"
)

// Capability is one of the fixed set of gated plugin abilities (spec §4.7).
type Capability string

const (
	CapRenderer  Capability = "renderer"
	CapECS       Capability = "ecs"
	CapAssets    Capability = "assets"
	CapInput     Capability = "input"
	CapScripts   Capability = "scripts"
	CapAnalytics Capability = "analytics"
	CapTime      Capability = "time"
	CapEvents    Capability = "events"
)

// Trust distinguishes full-trust in-process plugins from isolated
// subprocess-hosted ones (spec §4.7).
type Trust int

const (
	FullTrust Trust = iota
	Isolated
)

// Status is a plugin's lifecycle state.
type Status int

const (
	StatusBuilding Status = iota
	StatusRunning
	StatusFailed
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusBuilding:
		return "Building"
	case StatusRunning:
		return "Running"
	case StatusFailed:
		return "Failed"
	case StatusDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// Context is what a plugin lifecycle callback receives; every mutating
// method checks the plugin's declared capabilities first.
type Context struct {
	app   *kestrel.App
	plug  *registration
}

func (c *Context) requireCapability(cap Capability) error {
	if !c.plug.capabilities[cap] {
		err := kestrel.NewCapabilityError(c.plug.name, string(cap))
		c.plug.violations = append(c.plug.violations, err.Error())
		return err
	}
	return nil
}

// World returns the ECS world, gated on CapECS.
func (c *Context) World() (*kestrel.World, error) {
	if err := c.requireCapability(CapECS); err != nil {
		return nil, err
	}
	return c.app.World(), nil
}

// CheckAssets returns nothing by itself — it only validates the capability so
// callers can proceed to use their own asset.Server handle; the runtime
// does not own a concrete asset server type, to avoid an import cycle with
// package asset's call sites in the evaluators.
func (c *Context) CheckAssets() error { return c.requireCapability(CapAssets) }

// Events returns the App event bus, gated on CapEvents.
func (c *Context) Events() (*kestrel.EventBus, error) {
	if err := c.requireCapability(CapEvents); err != nil {
		return nil, err
	}
	return c.app.EventBus(), nil
}

// Plugin is the lifecycle contract every full-trust or isolated plugin
// implements (spec §4.7 "build, update, fixed_update, on_events, shutdown").
type Plugin interface {
	Name() string
	Build(ctx *Context) error
	Update(ctx *Context, dt float64) error
	FixedUpdate(ctx *Context, dt float64) error
	OnEvents(ctx *Context, events []kestrel.Event) error
	Shutdown(ctx *Context) error
}

// PluginWatchdogEvent is published on the App event bus when a full-trust
// plugin panics or an isolated plugin's RPC times out (spec §4.7).
type PluginWatchdogEvent struct {
	Plugin     string
	InstanceId string
	Callback   string
	Reason     string
}

type registration struct {
	name         string
	instanceId   string
	plugin       Plugin
	trust        Trust
	capabilities map[Capability]bool
	status       Status
	violations   []string
	lastError    error
}

// Runtime owns every loaded plugin and dispatches lifecycle callbacks
// through the panic-catching boundary spec §4.7 requires.
type Runtime struct {
	mu      sync.Mutex
	plugins []*registration
	logger  kestrel.Logger
}

func NewRuntime(logger kestrel.Logger) *Runtime {
	if logger == nil {
		logger = kestrel.NewNopLogger()
	}
	return &Runtime{logger: logger}
}

// Register loads a full-trust plugin in-process with the given declared
// capabilities. Each registration gets its own InstanceId (distinct from
// Name, which two registrations of the same plugin type may share) so
// watchdog events and logs can tell them apart.
func (r *Runtime) Register(p Plugin, trust Trust, caps ...Capability) {
	capSet := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		capSet[c] = true
	}
	r.mu.Lock()
	r.plugins = append(r.plugins, &registration{
		name: p.Name(), instanceId: uuid.NewString(), plugin: p,
		trust: trust, capabilities: capSet, status: StatusBuilding,
	})
	r.mu.Unlock()
}

// Install wires the runtime's Build and Update calls into a PluginUpdate
// variable stage placed after ScriptProcess, and FixedUpdate into the
// ScriptPhysicsProcess fixed stage, alongside the script host. Shutdown is
// not scheduled; it runs only when Runtime.Shutdown is called.
func (r *Runtime) Install(app *kestrel.App, cmd *kestrel.Commands) {
	app.UseStage(pluginUpdateStage, kestrel.AfterStage(kestrel.ScriptProcess))
	app.UseSystem(kestrel.System(r.buildAll).InStage(pluginUpdateStage))
	app.UseSystem(kestrel.System(r.updateAll).InStage(pluginUpdateStage))
	app.UseSystem(kestrel.System(r.fixedUpdateAll).InStage(kestrel.ScriptPhysicsProcess))
}

var pluginUpdateStage = kestrel.Stage{Name: "PluginUpdate", UpdateType: kestrel.VariableUpdate}

func (r *Runtime) buildAll(app *kestrel.App) {
	r.mu.Lock()
	regs := append([]*registration(nil), r.plugins...)
	r.mu.Unlock()

	for _, reg := range regs {
		if reg.status != StatusBuilding {
			continue
		}
		r.dispatch(app, reg, "build", func(ctx *Context) error { return reg.plugin.Build(ctx) })
		if reg.status == StatusBuilding {
			reg.status = StatusRunning
		}
	}
}

func (r *Runtime) updateAll(app *kestrel.App) {
	dt := app.Time().Dt
	r.forEachRunning(func(reg *registration) {
		r.dispatch(app, reg, "update", func(ctx *Context) error { return reg.plugin.Update(ctx, dt) })
	})
}

func (r *Runtime) fixedUpdateAll(app *kestrel.App) {
	dt := float64(kestrel.FixedStep)
	r.forEachRunning(func(reg *registration) {
		r.dispatch(app, reg, "fixed_update", func(ctx *Context) error { return reg.plugin.FixedUpdate(ctx, dt) })
	})
}

// Shutdown invokes Shutdown on every plugin regardless of status, in
// registration order.
func (r *Runtime) Shutdown(app *kestrel.App) {
	r.mu.Lock()
	regs := append([]*registration(nil), r.plugins...)
	r.mu.Unlock()
	for _, reg := range regs {
		r.dispatch(app, reg, "shutdown", func(ctx *Context) error { return reg.plugin.Shutdown(ctx) })
	}
}

func (r *Runtime) forEachRunning(fn func(*registration)) {
	r.mu.Lock()
	regs := append([]*registration(nil), r.plugins...)
	r.mu.Unlock()
	for _, reg := range regs {
		if reg.status == StatusRunning {
			fn(reg)
		}
	}
}

// dispatch wraps one lifecycle callback in the panic-catching boundary spec
// §4.7 mandates for full-trust plugins: on panic, the plugin transitions to
// Failed, a PluginWatchdogEvent is published, and the rest of the runtime
// continues untouched.
func (r *Runtime) dispatch(app *kestrel.App, reg *registration, callback string, call func(*Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.status = StatusFailed
			reg.lastError = kestrel.NewPluginPanic(reg.name, callback, rec)
			r.logger.Errorf("plugin %q panicked in %s: %v", reg.name, callback, rec)
			app.EventBus().Publish(kestrel.Event{
				Kind:    "pluginrt.watchdog",
				Payload: PluginWatchdogEvent{Plugin: reg.name, InstanceId: reg.instanceId, Callback: callback, Reason: fmt.Sprintf("%v", rec)},
			})
		}
	}()

	ctx := &Context{app: app, plug: reg}
	if err := call(ctx); err != nil {
		reg.lastError = err
		r.logger.Warnf("plugin %q error in %s: %v", reg.name, callback, err)
	}
}

// Status reports one plugin's current lifecycle state, or StatusDisabled
// with ok=false if name is not registered.
func (r *Runtime) Status(name string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.plugins {
		if reg.name == name {
			return reg.status, true
		}
	}
	return StatusDisabled, false
}

// CapabilityViolations returns the recorded CapabilityError messages for
// name, oldest first.
func (r *Runtime) CapabilityViolations(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.plugins {
		if reg.name == name {
			return append([]string(nil), reg.violations...)
		}
	}
	return nil
}
