package spriteanim

import (
	"testing"

	"github.com/kestrel-engine/kestrel"
)

func newGeneralSlot(t *testing.T, world *kestrel.World, s *Store, regions []string, frameDt float32, loopMode kestrel.LoopMode) kestrel.EntityId {
	t.Helper()
	e := world.Spawn()
	idx := s.slotFor(e)
	s.frameCount[idx] = int32(len(regions))
	s.tl[idx] = timeline{
		regionIds: regions,
		durations: repeat(frameDt, len(regions)),
		events:    make([][]string, len(regions)),
		loopMode:  int8(loopMode),
	}
	return e
}

// TestDriveGeneral_PingPongNoDuplicateAtTurn exercises spec §8's boundary
// invariant directly: stepping across a ping-pong timeline's endpoint must
// never emit the same region twice in a row in the frame-apply stream.
func TestDriveGeneral_PingPongNoDuplicateAtTurn(t *testing.T) {
	world := kestrel.NewWorld()
	store := NewStore()
	newGeneralSlot(t, world, store, []string{"A", "B", "C"}, 1.0, kestrel.PingPong)
	apply := newFrameApplyQueue()
	events := newEventCoalescer(64)

	var sequence []string
	const dt = 0.25
	for tick := 0; tick < 40; tick++ {
		driveGeneral(store, dt, apply, events, false)
		for _, e := range apply.order {
			sequence = append(sequence, apply.region[e])
		}
		apply.Drain(world)
	}

	if len(sequence) == 0 {
		t.Fatal("expected at least one frame transition over 40 ticks")
	}
	for i := 1; i < len(sequence); i++ {
		if sequence[i] == sequence[i-1] {
			t.Fatalf("duplicate adjacent emission %q at position %d: %v", sequence[i], i, sequence)
		}
	}

	sawB := false
	for _, r := range sequence {
		if r == "B" {
			sawB = true
		}
	}
	if !sawB {
		t.Fatalf("expected ping-pong to pass back through B, got %v", sequence)
	}
}

// TestDriveGeneral_PingPongHoldsFrameForDurationOverDt exercises spec §8
// scenario 2 literally: a 3-frame [A,B,C] ping-pong timeline with a 1.0s
// frame duration stepped at dt=0.25s must hold each frame for exactly
// dur/dt=4 ticks, yielding A,A,A,A,B,B,B,B,C,C,C,C over 12 ticks.
func TestDriveGeneral_PingPongHoldsFrameForDurationOverDt(t *testing.T) {
	world := kestrel.NewWorld()
	store := NewStore()
	e := newGeneralSlot(t, world, store, []string{"A", "B", "C"}, 1.0, kestrel.PingPong)
	idx := store.entityToSlot[e]
	apply := newFrameApplyQueue()
	events := newEventCoalescer(64)

	regions := []string{"A", "B", "C"}
	want := []string{"A", "A", "A", "A", "B", "B", "B", "B", "C", "C", "C", "C"}
	var got []string
	const dt = 0.25
	for tick := 0; tick < len(want); tick++ {
		driveGeneral(store, dt, apply, events, false)
		apply.Drain(world)
		got = append(got, regions[store.frameIdx[idx]])
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d ticks recorded, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tick %d: expected sequence %v, got %v", i, want, got)
		}
	}
}

func TestDriveGeneral_OnceStopFinishesAtLastFrame(t *testing.T) {
	world := kestrel.NewWorld()
	store := NewStore()
	newGeneralSlot(t, world, store, []string{"A", "B"}, 0.5, kestrel.OnceStop)
	apply := newFrameApplyQueue()
	events := newEventCoalescer(64)

	var finished []kestrel.EntityId
	for tick := 0; tick < 10 && len(finished) == 0; tick++ {
		finished = driveGeneral(store, 0.5, apply, events, false)
	}
	if len(finished) != 1 {
		t.Fatalf("expected exactly one finished entity, got %d", len(finished))
	}
}

func TestDriveGeneral_OnceHoldClampsAtLastFrame(t *testing.T) {
	world := kestrel.NewWorld()
	store := NewStore()
	newGeneralSlot(t, world, store, []string{"A", "B"}, 0.5, kestrel.OnceHold)
	apply := newFrameApplyQueue()
	events := newEventCoalescer(64)

	for tick := 0; tick < 20; tick++ {
		driveGeneral(store, 0.5, apply, events, false)
	}
	if store.frameIdx[0] != 1 {
		t.Fatalf("expected OnceHold to clamp at last frame index 1, got %d", store.frameIdx[0])
	}
}

func TestDriveGeneral_SkipsVariableRateSlotsWhenNotRequested(t *testing.T) {
	world := kestrel.NewWorld()
	store := NewStore()
	e := newGeneralSlot(t, world, store, []string{"A", "B"}, 0.1, kestrel.LoopForever)
	idx := store.entityToSlot[e]
	store.flagCol[idx] |= flagVariableRate
	apply := newFrameApplyQueue()
	events := newEventCoalescer(64)

	driveGeneral(store, 10.0, apply, events, false)
	if apply.Len() != 0 {
		t.Fatalf("expected variable-rate slot to be skipped by the fixed-phase call, got %d applies", apply.Len())
	}
}
