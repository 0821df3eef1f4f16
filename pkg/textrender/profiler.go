package textrender

import "fmt"

// defaultHistoryFrames is how many recent frames Profiler keeps samples
// for, matching the teacher's internal/profiling package's rolling
// window rather than an unbounded history.
const defaultHistoryFrames = 240

// ProfilerSample is one frame's worth of timing data fed to Profiler.
type ProfilerSample struct {
	EncodeCPUNanos   int64
	SubmitCPUNanos   int64
	GlyphCount       uint32
	DrawCount        uint32
}

// ProfilerSink receives a Profiler.Summary every log_interval frames.
// Expressed as a single-method interface per spec.md §9's "no
// inheritance" design note (function-pointer-equivalent).
type ProfilerSink interface {
	ReportSummary(Summary)
}

// ProfilerSinkFunc adapts a plain function to ProfilerSink.
type ProfilerSinkFunc func(Summary)

func (f ProfilerSinkFunc) ReportSummary(s Summary) { f(s) }

// Summary is the structured output the profiler sink receives
// (spec.md §7: "the optional profiler sink receives structured
// summaries").
type Summary struct {
	Frames              int
	AvgEncodeNanos      int64
	MaxEncodeNanos      int64
	AvgSubmitNanos      int64
	AvgGlyphsPerDraw     float64
}

// Profiler is a rolling histogram over the last K frames of encode and
// submit timings plus the glyphs/draw ratio, adapted from the teacher's
// internal/profiling package's Track/ResetFrame/Snapshot shape but
// reshaped around the telemetry fields spec.md §3 names.
type Profiler struct {
	samples     []ProfilerSample
	cursor      int
	filled      int
	logInterval int
	sink        ProfilerSink
	frameCount  int
}

// NewProfiler constructs a Profiler. logInterval == 0 disables the
// sink callback entirely (the caller can still call Snapshot directly).
func NewProfiler(logInterval int, sink ProfilerSink) *Profiler {
	return &Profiler{
		samples:     make([]ProfilerSample, defaultHistoryFrames),
		logInterval: logInterval,
		sink:        sink,
	}
}

// Record appends one frame's sample, emitting a Summary to the sink
// every log_interval frames.
func (p *Profiler) Record(s ProfilerSample) {
	p.samples[p.cursor] = s
	p.cursor = (p.cursor + 1) % len(p.samples)
	if p.filled < len(p.samples) {
		p.filled++
	}
	p.frameCount++

	if p.sink != nil && p.logInterval > 0 && p.frameCount%p.logInterval == 0 {
		p.sink.ReportSummary(p.Snapshot())
	}
}

// Snapshot computes a Summary over the samples currently held.
func (p *Profiler) Snapshot() Summary {
	if p.filled == 0 {
		return Summary{}
	}
	var sumEncode, sumSubmit int64
	var maxEncode int64
	var sumGlyphs, sumDraws uint64

	for i := 0; i < p.filled; i++ {
		s := p.samples[i]
		sumEncode += s.EncodeCPUNanos
		sumSubmit += s.SubmitCPUNanos
		if s.EncodeCPUNanos > maxEncode {
			maxEncode = s.EncodeCPUNanos
		}
		sumGlyphs += uint64(s.GlyphCount)
		sumDraws += uint64(s.DrawCount)
	}

	avgGlyphsPerDraw := 0.0
	if sumDraws > 0 {
		avgGlyphsPerDraw = float64(sumGlyphs) / float64(sumDraws)
	}

	return Summary{
		Frames:           p.filled,
		AvgEncodeNanos:   sumEncode / int64(p.filled),
		MaxEncodeNanos:   maxEncode,
		AvgSubmitNanos:   sumSubmit / int64(p.filled),
		AvgGlyphsPerDraw: avgGlyphsPerDraw,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("frames=%d avg_encode=%dns max_encode=%dns avg_submit=%dns avg_glyphs_per_draw=%.2f",
		s.Frames, s.AvgEncodeNanos, s.MaxEncodeNanos, s.AvgSubmitNanos, s.AvgGlyphsPerDraw)
}
