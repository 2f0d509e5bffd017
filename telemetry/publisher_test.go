package telemetry

import (
	"testing"

	"github.com/kestrel-engine/kestrel"
)

func TestPublisher_PublishesSourceEachTelemetryStage(t *testing.T) {
	calls := 0
	pub := NewPublisher(0, func() int {
		calls++
		return calls
	})
	app := kestrel.NewApp().UseModules(pub).Build()

	app.StepFrame()
	if pub.Cell().Load().Value() != 1 {
		t.Fatalf("expected the first frame to publish value 1, got %d", pub.Cell().Load().Value())
	}

	app.StepFrame()
	if pub.Cell().Load().Value() != 2 {
		t.Fatalf("expected the second frame to publish value 2, got %d", pub.Cell().Load().Value())
	}
	if pub.Cell().Load().Version() != 3 {
		t.Fatalf("expected version to have advanced twice past the initial seed, got %d", pub.Cell().Load().Version())
	}
}
