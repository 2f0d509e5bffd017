package kestrel

import (
	"fmt"
	"slices"
)

// UpdateType marks whether a Stage runs once per fixed tick or once per
// variable frame (spec §4.1).
type UpdateType int

const (
	FixedUpdate UpdateType = iota
	VariableUpdate
)

// Stage is a named point in the per-frame schedule. Systems register
// against a Stage; Stages run in the order spec §4.1 "Scheduling
// discipline" lays out.
type Stage struct {
	Name       string
	UpdateType UpdateType
}

// Fixed-phase stages, run once per fixed tick, in this order
// (spec §4.1 (i)-(viii)).
var (
	CommandDrain         = Stage{Name: "CommandDrain", UpdateType: FixedUpdate}
	PhysicsStep          = Stage{Name: "PhysicsStep", UpdateType: FixedUpdate}
	PoseSync             = Stage{Name: "PoseSync", UpdateType: FixedUpdate}
	FixedAnimation       = Stage{Name: "FixedAnimation", UpdateType: FixedUpdate}
	SkeletalFixed        = Stage{Name: "SkeletalFixed", UpdateType: FixedUpdate}
	ScriptPhysicsProcess = Stage{Name: "ScriptPhysicsProcess", UpdateType: FixedUpdate}
	FlushFrameApply      = Stage{Name: "FlushFrameApply", UpdateType: FixedUpdate}
	FixedEventDispatch   = Stage{Name: "FixedEventDispatch", UpdateType: FixedUpdate}
)

// Variable-phase stages, run once per frame after all fixed iterations
// (spec §4.1 "Variable phase order").
var (
	CameraUpdate    = Stage{Name: "CameraUpdate", UpdateType: VariableUpdate}
	ScriptProcess   = Stage{Name: "ScriptProcess", UpdateType: VariableUpdate}
	SpriteVariable  = Stage{Name: "SpriteVariable", UpdateType: VariableUpdate}
	ClipVariable    = Stage{Name: "ClipVariable", UpdateType: VariableUpdate}
	WorldPropagate  = Stage{Name: "WorldPropagate", UpdateType: VariableUpdate}
	MeshParticle    = Stage{Name: "MeshParticle", UpdateType: VariableUpdate}
	TelemetryUpdate = Stage{Name: "TelemetryUpdate", UpdateType: VariableUpdate}
	FrameAssembly   = Stage{Name: "FrameAssembly", UpdateType: VariableUpdate}
)

// InputIngest and PreFrameCommandDrain bookend the whole frame, outside
// both the fixed and variable loops (spec §4.1 "Input ingest → drain
// pending script/editor commands → fixed-step loop → variable-step
// evaluators").
var (
	InputIngest          = Stage{Name: "InputIngest", UpdateType: VariableUpdate}
	PreFrameCommandDrain = Stage{Name: "PreFrameCommandDrain", UpdateType: VariableUpdate}
)

// fixedStageOrder and variableStageOrder are the canonical per-frame
// schedules; App.defaultStages seeds app.stages with them so UseStage's
// BeforeStage/AfterStage has somewhere to insert relative to.
func fixedStageOrder() []Stage {
	return []Stage{CommandDrain, PhysicsStep, PoseSync, FixedAnimation, SkeletalFixed, ScriptPhysicsProcess, FlushFrameApply, FixedEventDispatch}
}

func variableStageOrder() []Stage {
	return []Stage{CameraUpdate, ScriptProcess, SpriteVariable, ClipVariable, WorldPropagate, MeshParticle, TelemetryUpdate, FrameAssembly}
}

type systemFn = func(*App)

type systemScheduleBuilder struct {
	inStage Stage
	system  systemFn
}

// System wraps a system function for registration via App.UseSystem.
func System(fn systemFn) systemScheduleBuilder {
	return systemScheduleBuilder{system: fn, inStage: ScriptProcess}
}

// InStage selects which Stage the system runs under.
func (s systemScheduleBuilder) InStage(stage Stage) systemScheduleBuilder {
	s.inStage = stage
	return s
}

type stagePosition int

const (
	stageBefore stagePosition = iota
	stageAfter
)

type stagePositionBuilder struct {
	position stagePosition
	target   Stage
}

func BeforeStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{position: stageBefore, target: s}
}

func AfterStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{position: stageAfter, target: s}
}

// UseStage inserts a custom Stage relative to an existing one, e.g. a
// plugin module adding "PluginUpdate" AfterStage(ScriptProcess).
func (app *App) UseStage(stage Stage, where stagePositionBuilder) *App {
	idx := -1
	for i, s := range app.stages {
		if s.Name == where.target.Name {
			idx = i
			break
		}
	}
	if idx == -1 {
		panic(fmt.Sprintf("kestrel: stage %q not found", where.target.Name))
	}

	insertAt := idx
	if where.position == stageAfter {
		insertAt = idx + 1
	}
	app.stages = slices.Insert(app.stages, insertAt, stage)
	app.systems[stage.Name] = nil
	return app
}

// UseSystem registers a system function against a previously-declared Stage.
func (app *App) UseSystem(s systemScheduleBuilder) *App {
	if _, ok := app.systems[s.inStage.Name]; !ok {
		panic(fmt.Sprintf("kestrel: stage %q not declared", s.inStage.Name))
	}
	app.systems[s.inStage.Name] = append(app.systems[s.inStage.Name], s.system)
	return app
}

func (app *App) defaultStages() {
	app.stages = append(app.stages, InputIngest, PreFrameCommandDrain)
	app.stages = append(app.stages, fixedStageOrder()...)
	app.stages = append(app.stages, variableStageOrder()...)
	for _, s := range app.stages {
		app.systems[s.Name] = nil
	}
}

func (app *App) callStage(stage Stage) {
	for _, fn := range app.systems[stage.Name] {
		fn(app)
	}
}
