package spriteanim

import "math"

// driveFast advances every fast-eligible slot by dt using the branch-
// minimal update from spec §4.3: constant dt, uniform frame duration,
// Loop mode only, no events, no EventBus touch. No divides: frameDt and
// invFrameDt were both precomputed at sync time, and the modulo on
// frame_idx is done by conditional subtraction instead of `%`.
//
// Returns the number of slots advanced, for the const_dt telemetry
// counter, and appends any changed (entity, new region) pairs to apply.
func driveFast(store *Store, dt float64, apply *frameApplyQueue) int {
	n := 0
	for idx := range store.entity {
		if store.flagCol[idx]&flagFastEligible == 0 {
			continue
		}
		if store.flagCol[idx]&flagPaused != 0 {
			continue
		}
		tl := &store.tl[idx]
		frameCount := store.frameCount[idx]
		if frameCount <= 0 {
			continue
		}

		accum := store.accum[idx]
		step := int32(math.Floor((accum+dt)*tl.invFrameDt) - math.Floor(accum*tl.invFrameDt))
		accum = accum + dt - float64(step)*tl.frameDt
		store.accum[idx] = accum

		if step != 0 {
			newIdx := store.frameIdx[idx] + step
			for newIdx >= frameCount {
				newIdx -= frameCount
			}
			for newIdx < 0 {
				newIdx += frameCount
			}
			if newIdx != store.frameIdx[idx] {
				store.frameIdx[idx] = newIdx
				apply.enqueue(store.entity[idx], tl.regionIds[newIdx])
			}
		}
		n++
	}
	return n
}
