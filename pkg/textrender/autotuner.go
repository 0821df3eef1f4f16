package textrender

// Autotuner adapts the per-frame batch limit toward a target encode
// budget, per spec.md §3/§4.4. It is mutated only at endFrame.
type Autotuner struct {
	targetEncodeNanos int64
	batchLimitUsed    uint32
	minBatch          uint32
	maxBatch          uint32

	ewmaEncodeNanos float64
	haveEWMA        bool
}

// ewmaAlpha weights the most recent frame's encode time against the
// running average; 0.2 favors stability over responsiveness, matching
// the teacher's preference for smoothed telemetry over raw per-frame
// noise (internal/profiling averages over a window rather than reacting
// to single-frame spikes).
const ewmaAlpha = 0.2

// NewAutotuner constructs an Autotuner. initialBatch is clamped into
// [minBatch, maxBatch].
func NewAutotuner(targetEncodeNanos int64, initialBatch, minBatch, maxBatch uint32) *Autotuner {
	if initialBatch < minBatch {
		initialBatch = minBatch
	}
	if initialBatch > maxBatch {
		initialBatch = maxBatch
	}
	return &Autotuner{
		targetEncodeNanos: targetEncodeNanos,
		batchLimitUsed:    initialBatch,
		minBatch:          minBatch,
		maxBatch:          maxBatch,
	}
}

// BatchLimit is the batch limit the next encode should use.
func (a *Autotuner) BatchLimit() uint32 { return a.batchLimitUsed }

// Observe updates the EWMA with one frame's encode_cpu_ns and adjusts
// batchLimitUsed per spec.md §4.4's adaptive-batching rule: if the
// smoothed value exceeds the goal, decrease by 25% (floor at
// batch_min); if below 50% of goal and the frame used the full batch
// limit (instance_count == batch_limit_used), increase by 25% (ceiling
// at max_instances, passed by the caller as maxBatch).
func (a *Autotuner) Observe(encodeCPUNanos int64, instanceCount uint32) {
	if !a.haveEWMA {
		a.ewmaEncodeNanos = float64(encodeCPUNanos)
		a.haveEWMA = true
	} else {
		a.ewmaEncodeNanos = ewmaAlpha*float64(encodeCPUNanos) + (1-ewmaAlpha)*a.ewmaEncodeNanos
	}

	goal := float64(a.targetEncodeNanos)
	switch {
	case a.ewmaEncodeNanos > goal:
		a.batchLimitUsed = shrinkBy25Percent(a.batchLimitUsed, a.minBatch)
	case a.ewmaEncodeNanos < 0.5*goal && instanceCount == a.batchLimitUsed:
		a.batchLimitUsed = growBy25Percent(a.batchLimitUsed, a.maxBatch)
	}
}

func shrinkBy25Percent(current, floor uint32) uint32 {
	reduced := current - current/4
	if reduced < floor {
		reduced = floor
	}
	if reduced == current && current > floor {
		// Integer truncation can stall a shrink for small batch sizes;
		// guarantee forward progress toward the floor.
		reduced = current - 1
	}
	return reduced
}

func growBy25Percent(current, ceil uint32) uint32 {
	grown := current + current/4
	if grown <= current {
		grown = current + 1
	}
	if grown > ceil {
		grown = ceil
	}
	return grown
}
