// Package clipanim implements the Transform/Skeletal Clip Evaluator
// (spec §4.4): segment location by cached cursor or binary search, step/
// linear/spherical-linear interpolation, clip looping, and skeletal
// palette composition.
package clipanim

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel/asset"
)

// sampleChannel evaluates one channel at time t, given the last segment
// index used for this channel (cursor), and returns the new cursor. cursor
// -1 means "no prior playback" and forces a binary search (spec §4.4
// "cached cursor (monotonic playback) or binary search (seek)").
func sampleChannel(c *asset.Channel, t float64, cursor int) ([4]float32, int) {
	n := len(c.Times)
	if n == 0 {
		return [4]float32{}, cursor
	}
	if n == 1 {
		return c.Values[0], 0
	}

	i := locateSegment(c.Times, t, cursor)

	if t <= c.Times[0] {
		return c.Values[0], 0
	}
	if t >= c.Times[n-1] {
		return c.Values[n-1], n - 2
	}

	k0, k1 := c.Times[i], c.Times[i+1]
	if c.Interpolation == asset.InterpStep {
		return c.Values[i], i
	}

	var frac float32
	if k1 > k0 {
		frac = float32((t - k0) / (k1 - k0))
	}
	return blend(c.Values[i], c.Values[i+1], frac, c.Target), i
}

// locateSegment finds i such that Times[i] <= t < Times[i+1]. A valid
// cursor from the previous frame almost always still holds (monotonic
// playback advances one or zero segments per call) so the common path is
// an O(1)-amortized linear nudge rather than a binary search; seeks (no
// cursor, or a cursor far from t) fall back to sort.Search.
func locateSegment(times []float64, t float64, cursor int) int {
	n := len(times)
	if cursor >= 0 && cursor < n-1 && times[cursor] <= t && t < times[cursor+1] {
		return cursor
	}
	if cursor >= 0 && cursor+1 < n-1 && times[cursor+1] <= t && t < times[cursor+2] {
		return cursor + 1
	}

	i := sort.Search(n, func(i int) bool { return times[i] > t }) - 1
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	return i
}

func blend(a, b [4]float32, frac float32, target asset.ChannelTarget) [4]float32 {
	switch target {
	case asset.TargetQuat:
		qa := mgl32.Quat{W: a[3], V: mgl32.Vec3{a[0], a[1], a[2]}}
		qb := mgl32.Quat{W: b[3], V: mgl32.Vec3{b[0], b[1], b[2]}}
		q := mgl32.QuatSlerp(qa, qb, frac)
		return [4]float32{q.V.X(), q.V.Y(), q.V.Z(), q.W}
	default:
		var out [4]float32
		for i := range out {
			out[i] = a[i] + (b[i]-a[i])*frac
		}
		return out
	}
}

// wrapTime implements spec §4.4's loop-mode time wrapping: LoopForever
// wraps into [0, duration); OnceHold/OnceStop clamp to the end (the caller
// distinguishes "hold and keep ticking" from "stop advancing" by whether
// it keeps calling Advance once the clip instance is finished).
func wrapTime(t, duration float64, loopMode int) (float64, bool) {
	if duration <= 0 {
		return 0, false
	}
	switch loopMode {
	case 0: // LoopForever
		t = fmod(t, duration)
		if t < 0 {
			t += duration
		}
		return t, false
	default: // PingPong, OnceHold, OnceStop: clamp at the clip's end
		if t >= duration {
			return duration, true
		}
		if t < 0 {
			return 0, true
		}
		return t, false
	}
}

func fmod(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	q := int64(a / b)
	return a - float64(q)*b
}
