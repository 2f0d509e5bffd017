package kestrel

// WorldPropagateModule wires World.PropagateWorldTransforms into the
// WorldPropagate variable stage, so systems in the later variable stages
// (particles, telemetry, frame-assembly culling) see a hierarchy that's
// current for this frame. The fixed-phase stages, physics included, run
// before WorldPropagate within each frame.
type WorldPropagateModule struct{}

func (WorldPropagateModule) Install(app *App, cmd *Commands) {
	app.UseSystem(System(runWorldPropagate).InStage(WorldPropagate))
}

func runWorldPropagate(app *App) {
	app.World().PropagateWorldTransforms()
}
