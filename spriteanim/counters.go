package spriteanim

// Counters is the per-frame telemetry record (spec §4.3 "Telemetry
// counters"). The evaluator's fixed-phase driver system rebuilds it every
// fixed tick and publishes it to the evaluator's own telemetry.Cell
// (read via Evaluator.Stats); the fixed-phase drain republishes it with
// FrameApplyCount filled in.
type Counters struct {
	ConstDtSlots    int
	VarDtSlots      int
	PingPongSlots   int
	EventsHeavy     int
	ModOrDivCalls   int
	SimdLanesUsed   int
	EventsEmitted   int
	EventsCoalesced int
	FrameApplyCount int
}

// PercentSlow implements spec §4.3's "%slow = (var_dt + ping_pong +
// event_heavy) / total".
func (c Counters) PercentSlow() float64 {
	total := c.ConstDtSlots + c.VarDtSlots
	if total == 0 {
		return 0
	}
	slow := c.VarDtSlots + c.PingPongSlots + c.EventsHeavy
	return float64(slow) / float64(total)
}
