package kestrel

import (
	"math/rand/v2"
	"reflect"
)

// Module installs systems and resources into an App at build time
// (spec §9 "Polymorphism without inheritance" — plugins/scripts are
// polymorphic over capabilities, but engine subsystems compose the same
// way the teacher repo's modules do).
type Module interface {
	Install(app *App, cmd *Commands)
}

// App owns the runtime loop: the world, the scheduler, resources, and the
// single Commands façade shared by every system this frame (spec §5
// "World, assets, renderer, and plugin manager are owned by the runtime
// loop").
type App struct {
	world     *World
	eventBus  *EventBus
	resources map[reflect.Type]any

	stages  []Stage
	systems map[string][]systemFn

	modules []Module
	cmd     *Commands

	clock       *Clock
	accumulator *FixedStepAccumulator
	time        *Time

	// DeterministicOrdering, when true, makes RNG return the generator
	// seeded from Seed. App does not reorder Commands; the script host's
	// (script_path, entity_id) command ordering has its own flag in
	// scripthost.Config.
	DeterministicOrdering bool
	Seed                  uint64
	rng                   *rand.Rand

	running bool
	stop    bool
}

// NewApp constructs an empty App with the default stage schedule wired in.
func NewApp() *App {
	app := &App{
		world:       NewWorld(),
		eventBus:    NewEventBus(0),
		resources:   make(map[reflect.Type]any),
		systems:     make(map[string][]systemFn),
		clock:       NewClock(),
		accumulator: NewFixedStepAccumulator(),
		time:        &Time{},
	}
	app.defaultStages()
	app.cmd = &Commands{app: app}
	app.world.OnDespawn(app.eventBus.UnsubscribeEntity)
	return app
}

// UseModules registers Modules to be installed when Build runs.
func (app *App) UseModules(modules ...Module) *App {
	app.modules = append(app.modules, modules...)
	return app
}

// Build installs every registered module in order. Call once before Run
// (or StepFrame, for tests driving individual frames).
func (app *App) Build() *App {
	for _, m := range app.modules {
		m.Install(app, app.cmd)
	}
	app.reseed()
	return app
}

func (app *App) reseed() {
	if app.Seed == 0 {
		app.Seed = 1
	}
	app.rng = rand.New(rand.NewPCG(app.Seed, app.Seed^0x9E3779B97F4A7C15))
}

// RNG returns the App's seeded RNG when DeterministicOrdering is enabled,
// matching spec §4.1 "RNG seeded from configured value"; otherwise a
// process-global, non-reproducible source.
func (app *App) RNG() *rand.Rand {
	if app.DeterministicOrdering && app.rng != nil {
		return app.rng
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (app *App) addResources(resources ...any) {
	for _, resource := range resources {
		t := reflect.TypeOf(resource)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		app.resources[t] = resource
	}
}

// Resource fetches a previously-installed resource by its pointee type, or
// returns the zero value and false.
func Resource[T any](app *App) (*T, bool) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	v, ok := app.resources[t]
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// World returns the App's entity/component world.
func (app *App) World() *World { return app.world }

// EventBus returns the App-wide event bus.
func (app *App) EventBus() *EventBus { return app.eventBus }

// Commands returns the shared Commands façade.
func (app *App) Commands() *Commands { return app.cmd }

// Stop requests the run loop exit after the current frame finishes.
func (app *App) Stop() { app.stop = true }

// Run drives frames until Stop is called. Each frame runs input ingest,
// command drain, the capped fixed-step loop, the variable-phase stages
// (which include TelemetryUpdate and then FrameAssembly), and finally the
// event-bus drain.
func (app *App) Run() {
	app.running = true
	for !app.stop {
		app.StepFrame()
	}
	app.running = false
}

// StepFrame advances exactly one frame: one Clock.Tick, zero-or-more fixed
// ticks, and one pass of the variable-phase stages. Exposed directly so
// tests and the capture harness can drive deterministic single frames.
func (app *App) StepFrame() {
	dtVariable, elapsed := app.clock.Tick()
	app.callStage(InputIngest)

	app.cmd.flush()
	app.callStage(PreFrameCommandDrain)

	ticks := app.accumulator.Advance(dtVariable)
	app.time.Dt = dtVariable
	app.time.Elapsed = elapsed
	app.time.FrameCount++
	app.time.FixedTicks = ticks
	app.time.StutterTotal = app.accumulator.StutterCount
	app.time.FixedDt = FixedStep

	for i := 0; i < ticks; i++ {
		app.runFixedTick()
	}

	for _, st := range variableStageOrder() {
		app.callStage(st)
	}

	app.eventBus.Drain()
}

func (app *App) runFixedTick() {
	for _, st := range fixedStageOrder() {
		app.callStage(st)
		app.cmd.flush()
	}
}

// Time returns the per-frame timing resource.
func (app *App) Time() *Time { return app.time }
