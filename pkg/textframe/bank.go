package textframe

import "fmt"

// FrameState is the per-bank state machine from spec.md §4.3:
//
//	Idle --beginFrame--> Recording --encode--> Encoded --endFrame--> Idle
//	                           |                  |
//	                           +------ error -----+--> Idle
type FrameState int

const (
	FrameIdle FrameState = iota
	FrameRecording
	FrameEncoded
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "Idle"
	case FrameRecording:
		return "Recording"
	case FrameEncoded:
		return "Encoded"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

// TransferSync is present iff atlas upload work was submitted on the
// transfer queue during this bank's last encode (spec.md §3/§4.4).
type TransferSync struct {
	Semaphore uint64 // opaque vk.Semaphore handle, stored as uint64 to keep this package Vulkan-free
	Value     uint64
	StageMask uint32 // vk.PipelineStageFlags value, e.g. FRAGMENT_SHADER
}

// FrameStats is the per-bank telemetry record from spec.md §3.
type FrameStats struct {
	GlyphCount        uint32
	DrawCount         uint32
	AtlasUploads      uint32
	UploadBytes       uint64
	EncodeCPUNanos    int64
	TransferCPUNanos  int64
	UsedTransferQueue bool
	SubmitCPUNanos    int64
	BatchLimitUsed    uint32
}

// FrameBank is one per-in-flight-frame slice of renderer state
// (spec.md §3). The instance buffer itself is owned by the caller of
// FrameRing (TextRenderer), which maps a host-visible/BAR buffer and
// hands FrameRing the resulting slice; FrameBank only tracks the
// write cursor and per-bank bookkeeping over that slice.
type FrameBank struct {
	instances    []Quad // pre-mapped, caller-owned backing storage; len == capacity
	instanceCount uint32

	projection [16]float32

	descriptorDirty bool

	stats FrameStats

	transferSync *TransferSync

	state FrameState
}

// NewFrameBank wraps a preallocated instance-buffer slice (capacity ==
// len(backing)) as one FrameBank. The backing slice must outlive the
// bank; FrameRing never reallocates it (spec.md §9: per-frame rings
// over dynamic allocation).
func NewFrameBank(backing []Quad) *FrameBank {
	return &FrameBank{
		instances: backing,
		state:     FrameIdle,
	}
}

// Capacity is the maximum instance count this bank can hold.
func (b *FrameBank) Capacity() uint32 { return uint32(len(b.instances)) }

// State reports the bank's current lifecycle state.
func (b *FrameBank) State() FrameState { return b.state }

// InstanceCount is the number of quads queued since the last beginFrame.
func (b *FrameBank) InstanceCount() uint32 { return b.instanceCount }

// Stats returns a copy of the bank's telemetry.
func (b *FrameBank) Stats() FrameStats { return b.stats }

// TransferSync returns the bank's transfer-queue sync info, if any.
func (b *FrameBank) TransferSync() (TransferSync, bool) {
	if b.transferSync == nil {
		return TransferSync{}, false
	}
	return *b.transferSync, true
}

// DescriptorDirty reports whether the bank's descriptor set needs a
// refresh (set when the atlas grew since this bank last encoded).
func (b *FrameBank) DescriptorDirty() bool { return b.descriptorDirty }

// MarkDescriptorDirty is called by the orchestrator for every bank when
// GlyphAtlas.TookGrow() reports a grow (spec.md P5).
func (b *FrameBank) MarkDescriptorDirty() { b.descriptorDirty = true }

// ClearDescriptorDirty is called once this bank's descriptor set has
// been refreshed during its own encode.
func (b *FrameBank) ClearDescriptorDirty() { b.descriptorDirty = false }
