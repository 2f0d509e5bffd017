package clipanim

import (
	"testing"

	"github.com/kestrel-engine/kestrel/asset"
)

func TestInstance_AdvanceLoopsForever(t *testing.T) {
	clip := &asset.Clip{
		Duration: 2.0,
		Channels: map[string]asset.Channel{
			"translation": {
				Times:         []float64{0, 1, 2},
				Values:        [][4]float32{{0, 0, 0, 0}, {1, 0, 0, 0}, {0, 0, 0, 0}},
				Interpolation: asset.InterpLinear,
				Target:        asset.TargetVec3,
			},
		},
	}
	in := NewInstance("walk", 0)
	for i := 0; i < 5; i++ {
		in.Advance(clip, 1.0)
	}
	if in.Finished {
		t.Fatal("LoopForever instance must never finish")
	}
}

func TestInstance_SeekInvalidatesCursors(t *testing.T) {
	clip := &asset.Clip{
		Duration: 4.0,
		Channels: map[string]asset.Channel{
			"translation": {
				Times:         []float64{0, 1, 2, 3, 4},
				Values:        [][4]float32{{0, 0, 0, 0}, {1, 0, 0, 0}, {2, 0, 0, 0}, {3, 0, 0, 0}, {4, 0, 0, 0}},
				Interpolation: asset.InterpLinear,
				Target:        asset.TargetVec3,
			},
		},
	}
	in := NewInstance("walk", 0)
	in.Advance(clip, 0.5)
	in.Seek(3.0)
	sampled := in.Advance(clip, 0.0)
	if got := sampled["translation"][0]; got < 2.9 || got > 3.1 {
		t.Fatalf("expected translation near 3.0 after seek, got %v", got)
	}
}

func TestInstance_OnceStopStaysFinished(t *testing.T) {
	clip := &asset.Clip{
		Duration: 1.0,
		Channels: map[string]asset.Channel{
			"translation": {
				Times:         []float64{0, 1},
				Values:        [][4]float32{{0, 0, 0, 0}, {1, 0, 0, 0}},
				Interpolation: asset.InterpLinear,
				Target:        asset.TargetVec3,
			},
		},
	}
	in := NewInstance("oneshot", 3) // OnceStop
	in.Advance(clip, 2.0)
	if !in.Finished {
		t.Fatal("expected OnceStop to finish after exceeding duration")
	}
	before := in.Time
	in.Advance(clip, 1.0)
	if in.Time != before {
		t.Fatalf("expected finished instance's time to hold steady, went from %v to %v", before, in.Time)
	}
}
