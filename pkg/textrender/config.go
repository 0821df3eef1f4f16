package textrender

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/GhostKellz/zeus-sub002/pkg/textatlas"
	"github.com/GhostKellz/zeus-sub002/pkg/textframe"
)

// TransferQueueConfig enables the async transfer-queue upload path
// (spec.md §4.4 step 2). Pool and Queue are caller-owned; the renderer
// only allocates a one-off command buffer from Pool per frame with
// outstanding atlas uploads.
type TransferQueueConfig struct {
	Pool                 vk.CommandPool
	Queue                vk.Queue
	InitialTimelineValue uint64
}

// ProfilerConfig enables periodic structured-summary logging of frame
// telemetry (spec.md §4.4 "optional profiler").
type ProfilerConfig struct {
	// LogInterval is how many frames elapse between sink deliveries. 0
	// disables periodic delivery; Snapshot is still available on demand.
	LogInterval int
	Sink        ProfilerSink
}

// Config configures a TextRenderer at Init.
type Config struct {
	Extent        [2]uint32
	SurfaceFormat vk.Format

	FramesInFlight uint32
	MaxInstances   uint32

	BatchTarget         uint32
	BatchMin            uint32
	BatchAutotune       bool
	BatchAutotuneGoalNs int64

	PipelineTarget PipelineTarget
	Shaders        ShaderBytecode
	Atlas          textatlas.Config

	TransferQueue *TransferQueueConfig
	Profiler      *ProfilerConfig

	// StatsCallback, if set, receives a copy of a bank's FrameStats
	// immediately after MarkEncoded during that bank's encode.
	StatsCallback func(bank int, stats textframe.FrameStats)
}

// normalize fills in defaults for fields with a sensible non-zero
// default (teacher's internal/config clamp-on-set style). Fields whose
// zero value is a Misconfigured error (FramesInFlight, MaxInstances,
// SurfaceFormat) are validated separately in Init, never defaulted.
func (c *Config) normalize() {
	if c.BatchMin == 0 {
		c.BatchMin = 64
	}
	if c.BatchTarget == 0 {
		c.BatchTarget = c.MaxInstances
	}
	if c.BatchTarget > c.MaxInstances {
		c.BatchTarget = c.MaxInstances
	}
	if c.BatchMin > c.BatchTarget {
		c.BatchMin = c.BatchTarget
	}
	if c.BatchAutotuneGoalNs == 0 {
		// 2ms: comfortably under the ~2.77ms budget spec.md §9 cites for
		// a 360Hz frame.
		c.BatchAutotuneGoalNs = 2_000_000
	}
}
