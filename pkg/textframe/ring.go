package textframe

import "fmt"

// FrameRing owns N FrameBanks and rotates between them on each
// BeginFrame (spec.md §2, Component C). The ring itself never
// allocates after construction: every bank's instance buffer is a
// preallocated slice handed in at NewFrameRing time.
type FrameRing struct {
	banks []*FrameBank
}

// NewFrameRing wraps N preallocated instance-buffer slices as N
// FrameBanks. backings[i] becomes bank i's storage.
func NewFrameRing(backings [][]Quad) *FrameRing {
	banks := make([]*FrameBank, len(backings))
	for i, b := range backings {
		banks[i] = NewFrameBank(b)
	}
	return &FrameRing{banks: banks}
}

// N is the number of banks in the ring.
func (r *FrameRing) N() int { return len(r.banks) }

// Bank exposes read-only access to a bank's telemetry/state without
// going through the mutating frame API (used by frameStats/frameSyncInfo
// callers).
func (r *FrameRing) Bank(i int) (*FrameBank, error) {
	if i < 0 || i >= len(r.banks) {
		return nil, ErrSlotOutOfRange
	}
	return r.banks[i], nil
}

// BeginFrame transitions bank i from Idle to Recording, resetting its
// per-frame counters and telemetry.
func (r *FrameRing) BeginFrame(i int) (*FrameBank, error) {
	b, err := r.Bank(i)
	if err != nil {
		return nil, err
	}
	if b.state != FrameIdle {
		return nil, fmt.Errorf("textframe: beginFrame(%d) in state %s: %w", i, b.state, ErrInvalidFrameState)
	}
	b.instanceCount = 0
	b.stats = FrameStats{}
	b.transferSync = nil
	b.state = FrameRecording
	return b, nil
}

// SetProjection stores the 16-float column-major projection matrix for
// the current frame (spec.md §4.4 step 5 consumes this at encode).
func (r *FrameRing) SetProjection(i int, m [16]float32) error {
	b, err := r.Bank(i)
	if err != nil {
		return err
	}
	if b.state != FrameRecording {
		return fmt.Errorf("textframe: setProjection(%d) in state %s: %w", i, b.state, ErrInvalidFrameState)
	}
	b.projection = m
	return nil
}

// Projection returns bank i's last-set projection matrix.
func (b *FrameBank) Projection() [16]float32 { return b.projection }

// QueueQuad writes one quad into bank i's instance buffer, failing with
// ErrFrameFull at capacity (spec.md §4.3).
func (r *FrameRing) QueueQuad(i int, q Quad) error {
	b, err := r.Bank(i)
	if err != nil {
		return err
	}
	if b.state != FrameRecording {
		return fmt.Errorf("textframe: queueQuad(%d) in state %s: %w", i, b.state, ErrInvalidFrameState)
	}
	if b.instanceCount >= uint32(len(b.instances)) {
		return ErrFrameFull
	}
	b.instances[b.instanceCount] = q
	b.instanceCount++
	b.stats.GlyphCount++
	return nil
}

// QueueQuads bulk-copies a slice of quads into bank i's instance
// buffer. The check-then-copy is all-or-nothing: if the slice would
// overflow capacity, nothing is written and ErrFrameFull is returned
// (spec.md §4.3). The copy itself is semantically identical to calling
// QueueQuad in a loop; implementations MAY vectorize it (spec.md §9)
// but Go's builtin copy over a contiguous []Quad slice already performs
// a single bulk move, which is the vectorization-eligible shape without
// any unsafe pointer games.
func (r *FrameRing) QueueQuads(i int, quads []Quad) error {
	b, err := r.Bank(i)
	if err != nil {
		return err
	}
	if b.state != FrameRecording {
		return fmt.Errorf("textframe: queueQuads(%d) in state %s: %w", i, b.state, ErrInvalidFrameState)
	}
	if uint64(b.instanceCount)+uint64(len(quads)) > uint64(len(b.instances)) {
		return ErrFrameFull
	}
	n := copy(b.instances[b.instanceCount:], quads)
	b.instanceCount += uint32(n)
	b.stats.GlyphCount += uint32(n)
	return nil
}

// Instances returns the live instance slice queued so far in bank i,
// for the orchestrator's encode step to bind as the vertex buffer
// source.
func (r *FrameRing) Instances(i int) ([]Quad, error) {
	b, err := r.Bank(i)
	if err != nil {
		return nil, err
	}
	return b.instances[:b.instanceCount], nil
}

// MarkEncoded transitions bank i from Recording to Encoded, recording
// final telemetry for the frame. Called by the orchestrator at the end
// of its encode protocol (spec.md §4.4 step 7).
func (r *FrameRing) MarkEncoded(i int, stats FrameStats, sync *TransferSync) error {
	b, err := r.Bank(i)
	if err != nil {
		return err
	}
	if b.state != FrameRecording {
		return fmt.Errorf("textframe: encode(%d) in state %s: %w", i, b.state, ErrInvalidFrameState)
	}
	stats.GlyphCount = b.stats.GlyphCount
	b.stats = stats
	b.transferSync = sync
	b.stats.UsedTransferQueue = sync != nil
	b.state = FrameEncoded
	return nil
}

// EndFrame transitions bank i from Encoded back to Idle.
func (r *FrameRing) EndFrame(i int) error {
	b, err := r.Bank(i)
	if err != nil {
		return err
	}
	if b.state != FrameEncoded {
		return fmt.Errorf("textframe: endFrame(%d) in state %s: %w", i, b.state, ErrInvalidFrameState)
	}
	b.state = FrameIdle
	return nil
}

// Reset forces bank i back to Idle regardless of its current state,
// zeroing counters. This is the explicit reset path spec.md §5
// describes for a bank stuck in Recording due to a caller error. Apart
// from ResetAll, which the orchestrator calls on a device loss, nothing
// invokes it automatically.
func (r *FrameRing) Reset(i int) error {
	b, err := r.Bank(i)
	if err != nil {
		return err
	}
	b.instanceCount = 0
	b.stats = FrameStats{}
	b.transferSync = nil
	b.state = FrameIdle
	return nil
}

// ResetAll forces every bank in the ring back to Idle. Callers use this
// on a fatal device-lost signal (spec.md §7: "all bank state transitions
// to Idle; caller must reinitialize"), since at that point no bank's
// in-flight recording can be trusted regardless of which one detected
// the failure.
func (r *FrameRing) ResetAll() {
	for i := range r.banks {
		_ = r.Reset(i)
	}
}
