package spriteanim

import "github.com/kestrel-engine/kestrel"

// driveGeneral advances every non-fast slot: variable per-frame durations,
// ping-pong, OnceHold/OnceStop terminal modes, and per-frame events (spec
// §4.3 "General driver"). Unlike the fast driver it may branch freely and
// touch the event bus; it is the contributor to the %slow telemetry ratio.
//
// variableRate selects which half of the non-fast population this call
// covers: false drives fixed-tick (constant dt) slots in the fixed phase,
// true drives the variable-rate subset once per frame with the real dt —
// the two must never overlap in the same call.
//
// Returns the entities whose timeline reached OnceStop's terminal frame
// this call; the caller despawns them via Commands.
func driveGeneral(store *Store, dt float64, apply *frameApplyQueue, events *eventCoalescer, variableRate bool) []kestrel.EntityId {
	var finished []kestrel.EntityId

	for idx := range store.entity {
		if store.flagCol[idx]&flagFastEligible != 0 {
			continue
		}
		if (store.flagCol[idx]&flagVariableRate != 0) != variableRate {
			continue
		}
		if store.flagCol[idx]&flagPaused != 0 {
			continue
		}
		if store.flagCol[idx]&flagFinished != 0 {
			continue
		}
		frameCount := store.frameCount[idx]
		if frameCount <= 0 {
			continue
		}
		tl := &store.tl[idx]

		store.accum[idx] += dt
		loopMode := kestrel.LoopMode(tl.loopMode)

		for {
			cur := store.frameIdx[idx]
			dur := float64(tl.durations[cur])
			if store.accum[idx] <= dur {
				break
			}

			reverse := store.flagCol[idx]&flagReverse != 0
			atForwardEnd := !reverse && cur == frameCount-1

			switch loopMode {
			case kestrel.LoopForever:
				store.accum[idx] -= dur
				next := advanceWrap(cur, frameCount, reverse)
				setFrame(store, apply, idx, next)
				events.collect(store.entity[idx], tl.events[cur])
				continue

			case kestrel.PingPong:
				store.accum[idx] -= dur
				if frameCount < 2 {
					break
				}
				var next int32
				switch {
				case !reverse && cur == frameCount-1:
					// Boundary crossing: flip direction and move off the
					// endpoint in the same step so it is never emitted
					// twice in a row (spec §8 "no duplicated endpoint
					// frame").
					store.flagCol[idx] |= flagReverse
					next = cur - 1
				case reverse && cur == 0:
					store.flagCol[idx] &^= flagReverse
					next = cur + 1
				default:
					next = advanceWrap(cur, frameCount, reverse)
				}
				setFrame(store, apply, idx, next)
				events.collect(store.entity[idx], tl.events[cur])
				continue

			case kestrel.OnceHold:
				store.accum[idx] = 0
				if !atForwardEnd {
					next := advanceWrap(cur, frameCount, false)
					setFrame(store, apply, idx, next)
					events.collect(store.entity[idx], tl.events[cur])
				}

			case kestrel.OnceStop:
				store.accum[idx] = 0
				if !atForwardEnd {
					next := advanceWrap(cur, frameCount, false)
					setFrame(store, apply, idx, next)
					events.collect(store.entity[idx], tl.events[cur])
				} else {
					store.flagCol[idx] |= flagFinished
					finished = append(finished, store.entity[idx])
				}
			}
			break
		}
	}
	return finished
}

func advanceWrap(cur, frameCount int32, reverse bool) int32 {
	if reverse {
		cur--
		if cur < 0 {
			cur = frameCount - 1
		}
		return cur
	}
	cur++
	if cur >= frameCount {
		cur = 0
	}
	return cur
}

func setFrame(store *Store, apply *frameApplyQueue, idx int, next int32) {
	if next == store.frameIdx[idx] {
		return
	}
	store.frameIdx[idx] = next
	apply.enqueue(store.entity[idx], store.tl[idx].regionIds[next])
}
