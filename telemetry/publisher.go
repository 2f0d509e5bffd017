package telemetry

import "github.com/kestrel-engine/kestrel"

// Publisher republishes a subsystem's latest Stats snapshot into a Cell
// once per frame in the TelemetryUpdate variable stage (spec §4.1
// "telemetry update"), so editor/profiler panels can Load() a point-in-time
// view without reaching into physicsstep/spriteanim/frameassembler/
// particlesim directly.
type Publisher[T any] struct {
	cell   *Cell[T]
	source func() T
}

// NewPublisher constructs a Publisher pre-seeded with initial, sourcing
// each frame's snapshot from source (typically a subsystem's Stats method).
func NewPublisher[T any](initial T, source func() T) *Publisher[T] {
	return &Publisher[T]{cell: NewCell(initial), source: source}
}

// Cell returns the Publisher's backing Cell for consumers to Load from.
func (p *Publisher[T]) Cell() *Cell[T] { return p.cell }

func (p *Publisher[T]) Install(app *kestrel.App, cmd *kestrel.Commands) {
	app.UseSystem(kestrel.System(p.run).InStage(kestrel.TelemetryUpdate))
}

func (p *Publisher[T]) run(app *kestrel.App) {
	p.cell.Publish(p.source())
}
