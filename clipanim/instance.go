package clipanim

import "github.com/kestrel-engine/kestrel/asset"

// Instance is one playing clip: a channel's-worth of cached cursors plus
// the time cursor shared by every channel in the clip. Transform clips
// (non-skeletal) and skeletal clips both use Instance; the caller decides
// whether to apply the sampled channels to a single Transform or to a
// joint hierarchy.
type Instance struct {
	ClipKey  asset.Key
	Time     float64
	LoopMode int
	Finished bool
	cursors  map[string]int
}

// NewInstance starts an instance at t=0 with no cached cursors, forcing a
// binary-search locate on the first Advance (spec §4.4 "seek").
func NewInstance(clipKey asset.Key, loopMode int) *Instance {
	return &Instance{ClipKey: clipKey, LoopMode: loopMode, cursors: make(map[string]int)}
}

// Seek jumps to an arbitrary time, invalidating every cached cursor so the
// next Advance binary-searches each channel instead of trusting a stale
// cursor (spec §4.4 "binary search (seek)").
func (in *Instance) Seek(t float64) {
	in.Time = t
	in.Finished = false
	for k := range in.cursors {
		in.cursors[k] = -1
	}
}

// Advance steps the instance's clock by dt and samples every channel of
// clip, returning each channel's name mapped to its sampled value. Channel
// names are the clip's own keys ("root.translation", "Spine.rotation",
// ...); the caller maps them onto Transform fields or joint-local TRS.
func (in *Instance) Advance(clip *asset.Clip, dt float64) map[string][4]float32 {
	if in.Finished {
		return in.sampleAt(clip, in.Time)
	}
	t, finished := wrapTime(in.Time+dt, clip.Duration, in.LoopMode)
	in.Time = t
	in.Finished = finished
	return in.sampleAt(clip, t)
}

func (in *Instance) sampleAt(clip *asset.Clip, t float64) map[string][4]float32 {
	out := make(map[string][4]float32, len(clip.Channels))
	for name, ch := range clip.Channels {
		ch := ch
		cursor, ok := in.cursors[name]
		if !ok {
			cursor = -1
		}
		value, next := sampleChannel(&ch, t, cursor)
		in.cursors[name] = next
		out[name] = value
	}
	return out
}
