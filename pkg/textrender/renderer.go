package textrender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/closer"

	"github.com/GhostKellz/zeus-sub002/internal/vkresult"
	"github.com/GhostKellz/zeus-sub002/pkg/textatlas"
	"github.com/GhostKellz/zeus-sub002/pkg/textframe"
)

// nopHandler discards every record; the zero-cost default logger,
// adapted from the teacher's pattern for gpu-accelerator packages.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the package-wide logger. textrender produces no
// output by default; pass nil to restore the silent default. Safe for
// concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

func logger() *slog.Logger { return loggerPtr.Load() }

type bankResources struct {
	vertexBuffer vk.Buffer
	vertexMemory vk.DeviceMemory
	descriptorSet vk.DescriptorSet
}

// TextRenderer orchestrates GlyphAtlas, FrameRing, the graphics
// pipeline, and the Autotuner into the encode protocol of spec.md §4.4.
// One instance drives one logical GPU device from a single thread
// (spec.md §5); it holds no internal locking beyond what GlyphAtlas
// already provides.
type TextRenderer struct {
	dispatch textatlas.Dispatch
	cfg      Config

	atlas *textatlas.GlyphAtlas
	ring  *textframe.FrameRing

	pipeline       *pipelineResources
	descriptorPool vk.DescriptorPool
	banks          []bankResources

	autotuner *Autotuner
	profiler  *Profiler

	transferSemaphore vk.Semaphore
	nextTimelineValue uint64

	extentW, extentH uint32

	closed bool
}

// Init constructs a TextRenderer: the graphics pipeline, the glyph
// atlas, per-bank instance buffers and descriptor sets, and (if
// configured) the transfer-queue timeline semaphore and profiler.
func Init(dispatch textatlas.Dispatch, cfg Config) (*TextRenderer, error) {
	if cfg.FramesInFlight == 0 {
		return nil, fmt.Errorf("textrender: %w: frames_in_flight must be > 0", ErrMisconfigured)
	}
	if cfg.MaxInstances == 0 {
		return nil, fmt.Errorf("textrender: %w: max_instances must be > 0", ErrMisconfigured)
	}
	if cfg.SurfaceFormat == vk.FormatUndefined {
		return nil, fmt.Errorf("textrender: %w: surface_format must not be Undefined", ErrMisconfigured)
	}
	if err := cfg.Shaders.validate(); err != nil {
		return nil, err
	}
	cfg.normalize()

	pipeline, err := createPipeline(dispatch, cfg.PipelineTarget, cfg.Shaders)
	if err != nil {
		return nil, err
	}

	atlas, err := textatlas.New(dispatch, cfg.Atlas)
	if err != nil {
		pipeline.destroy(dispatch)
		return nil, err
	}

	descriptorPool, ret := dispatch.CreateDescriptorPool(vk.DescriptorPoolCreateInfo{
		SType:   vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets: cfg.FramesInFlight,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{
			{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: cfg.FramesInFlight},
		},
	})
	if err := vkresult.Check(ret); err != nil {
		atlas.Destroy()
		pipeline.destroy(dispatch)
		return nil, fmt.Errorf("textrender: create descriptor pool: %w", err)
	}

	setLayouts := make([]vk.DescriptorSetLayout, cfg.FramesInFlight)
	for i := range setLayouts {
		setLayouts[i] = pipeline.setLayout
	}
	sets, ret := dispatch.AllocateDescriptorSets(vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     descriptorPool,
		DescriptorSetCount: cfg.FramesInFlight,
		PSetLayouts:        setLayouts,
	})
	if err := vkresult.Check(ret); err != nil {
		dispatch.DestroyDescriptorPool(descriptorPool)
		atlas.Destroy()
		pipeline.destroy(dispatch)
		return nil, fmt.Errorf("textrender: allocate descriptor sets: %w", err)
	}

	banks := make([]bankResources, cfg.FramesInFlight)
	backings := make([][]textframe.Quad, cfg.FramesInFlight)
	for i := range banks {
		buf, mem, quads, err := createInstanceBuffer(dispatch, cfg.MaxInstances)
		if err != nil {
			for j := 0; j < i; j++ {
				dispatch.DestroyBuffer(banks[j].vertexBuffer)
				dispatch.FreeMemory(banks[j].vertexMemory)
			}
			dispatch.DestroyDescriptorPool(descriptorPool)
			atlas.Destroy()
			pipeline.destroy(dispatch)
			return nil, err
		}
		banks[i] = bankResources{vertexBuffer: buf, vertexMemory: mem, descriptorSet: sets[i]}
		backings[i] = quads
	}

	ring := textframe.NewFrameRing(backings)
	autotuner := NewAutotuner(cfg.BatchAutotuneGoalNs, cfg.BatchTarget, cfg.BatchMin, cfg.MaxInstances)

	var profiler *Profiler
	if cfg.Profiler != nil {
		profiler = NewProfiler(cfg.Profiler.LogInterval, cfg.Profiler.Sink)
	}

	tr := &TextRenderer{
		dispatch:       dispatch,
		cfg:            cfg,
		atlas:          atlas,
		ring:           ring,
		pipeline:       pipeline,
		descriptorPool: descriptorPool,
		banks:          banks,
		autotuner:      autotuner,
		profiler:       profiler,
		extentW:        cfg.Extent[0],
		extentH:        cfg.Extent[1],
	}

	if cfg.TransferQueue != nil {
		sem, ret := dispatch.CreateTimelineSemaphore(cfg.TransferQueue.InitialTimelineValue)
		if err := vkresult.Check(ret); err != nil {
			tr.destroyAll()
			return nil, fmt.Errorf("textrender: create transfer timeline semaphore: %w", err)
		}
		tr.transferSemaphore = sem
		tr.nextTimelineValue = cfg.TransferQueue.InitialTimelineValue + 1
	}

	tr.refreshAllDescriptors()

	return tr, nil
}

// createInstanceBuffer allocates and maps a host-visible/BAR vertex
// buffer for one bank's instances, reinterpreting the mapped bytes as
// a []textframe.Quad slice per spec.md §9's "per-frame rings over
// dynamic allocation": the buffer is mapped once at init and never
// reallocated.
func createInstanceBuffer(dispatch textatlas.Dispatch, maxInstances uint32) (vk.Buffer, vk.DeviceMemory, []textframe.Quad, error) {
	size := vk.DeviceSize(uint64(maxInstances) * uint64(textframe.SizeOf))
	buf, ret := dispatch.CreateBuffer(vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit),
		SharingMode: vk.SharingModeExclusive,
	})
	if err := vkresult.Check(ret); err != nil {
		return 0, 0, nil, fmt.Errorf("textrender: create instance buffer: %w", err)
	}

	heap, ok := textatlas.BestHostVisibleHeap(dispatch.MemoryHeaps())
	if !ok {
		dispatch.DestroyBuffer(buf)
		return 0, 0, nil, fmt.Errorf("textrender: %w: no host-visible memory heap", ErrMisconfigured)
	}
	mem, ret := dispatch.AllocateMemory(vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: heap.TypeIndex,
	})
	if err := vkresult.Check(ret); err != nil {
		dispatch.DestroyBuffer(buf)
		return 0, 0, nil, fmt.Errorf("textrender: allocate instance buffer memory: %w", err)
	}
	if err := vkresult.Check(dispatch.BindBufferMemory(buf, mem, 0)); err != nil {
		dispatch.FreeMemory(mem)
		dispatch.DestroyBuffer(buf)
		return 0, 0, nil, fmt.Errorf("textrender: bind instance buffer memory: %w", err)
	}
	mapped, ret := dispatch.MapMemory(mem, 0, size)
	if err := vkresult.Check(ret); err != nil {
		dispatch.FreeMemory(mem)
		dispatch.DestroyBuffer(buf)
		return 0, 0, nil, fmt.Errorf("textrender: map instance buffer memory: %w", err)
	}

	quads := unsafe.Slice((*textframe.Quad)(unsafe.Pointer(&mapped[0])), maxInstances)
	return buf, mem, quads, nil
}

// BeginFrame transitions bank i from Idle to Recording.
func (r *TextRenderer) BeginFrame(i int) error {
	_, err := r.ring.BeginFrame(i)
	return err
}

// SetProjection stores bank i's column-major projection matrix.
func (r *TextRenderer) SetProjection(i int, m [16]float32) error {
	return r.ring.SetProjection(i, m)
}

// QueueQuad appends one quad to bank i's instance buffer.
func (r *TextRenderer) QueueQuad(i int, q textframe.Quad) error {
	return r.ring.QueueQuad(i, q)
}

// QueueQuads bulk-appends quads to bank i's instance buffer, all or
// nothing.
func (r *TextRenderer) QueueQuads(i int, quads []textframe.Quad) error {
	return r.ring.QueueQuads(i, quads)
}

// GlyphAtlas exposes the underlying atlas for ReserveRect/Upload calls,
// which the caller drives before encode (spec.md §4.4 table: any state).
func (r *TextRenderer) GlyphAtlas() *textatlas.GlyphAtlas { return r.atlas }

// Resize updates the viewport/scissor extent used by subsequent
// Encode calls.
func (r *TextRenderer) Resize(w, h uint32) {
	r.extentW, r.extentH = w, h
}

// Encode records bank i's draw commands into cmdbuf, following the
// seven-step sequence from spec.md §4.4 exactly.
func (r *TextRenderer) Encode(i int, cmdbuf vk.CommandBuffer) error {
	bank, err := r.ring.Bank(i)
	if err != nil {
		return err
	}
	if bank.State() != textframe.FrameRecording {
		return fmt.Errorf("textrender: encode(%d) in state %s: %w", i, bank.State(), textframe.ErrInvalidFrameState)
	}

	// Step 1.
	t0 := time.Now()

	uploadCount, uploadBytes := r.atlas.PendingSummary()
	var transferSync *textframe.TransferSync
	var transferCPUNanos int64

	// Step 2.
	if uploadCount > 0 {
		if r.cfg.TransferQueue != nil {
			sync, err := r.recordTransferUpload(cmdbuf)
			if err != nil {
				if r.isFatalDeviceLost(err) {
					return fmt.Errorf("textrender: encode(%d): %w", i, ErrDeviceLost)
				}
				logger().Warn("textrender: transfer queue submit failed, falling back to inline upload", "error", err)
				if fallbackErr := r.atlas.RecordUploads(cmdbuf, textatlas.QueueGraphics); fallbackErr != nil {
					return fallbackErr
				}
			} else {
				transferSync = sync
			}
		} else {
			if err := r.atlas.RecordUploads(cmdbuf, textatlas.QueueGraphics); err != nil {
				return err
			}
		}
	}

	// Step 3.
	if r.atlas.TookGrow() {
		for idx := 0; idx < r.ring.N(); idx++ {
			if other, err := r.ring.Bank(idx); err == nil {
				other.MarkDescriptorDirty()
			}
		}
	}
	if bank.DescriptorDirty() {
		r.refreshDescriptor(i)
		bank.ClearDescriptorDirty()
	}

	// Step 4.
	r.dispatch.CmdBindPipeline(cmdbuf, r.pipeline.pipeline)
	r.dispatch.CmdBindDescriptorSets(cmdbuf, r.pipeline.layout, []vk.DescriptorSet{r.banks[i].descriptorSet})
	r.dispatch.CmdBindVertexBuffers(cmdbuf, 1, []vk.Buffer{r.banks[i].vertexBuffer}, []vk.DeviceSize{0})
	r.dispatch.CmdSetViewport(cmdbuf, []vk.Viewport{{
		X: 0, Y: 0,
		Width: float32(r.extentW), Height: float32(r.extentH),
		MinDepth: 0, MaxDepth: 1,
	}})
	r.dispatch.CmdSetScissor(cmdbuf, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: r.extentW, Height: r.extentH},
	}})

	// Step 5.
	projection := bank.Projection()
	r.dispatch.CmdPushConstants(cmdbuf, r.pipeline.layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, mat4ToBytes(projection))

	// Step 6.
	instances, err := r.ring.Instances(i)
	if err != nil {
		return err
	}
	drawCount := r.emitDraws(cmdbuf, uint32(len(instances)))

	// Step 7.
	encodeCPUNanos := time.Since(t0).Nanoseconds()

	stats := textframe.FrameStats{
		DrawCount:      drawCount,
		AtlasUploads:   uploadCount,
		UploadBytes:    uploadBytes,
		EncodeCPUNanos: encodeCPUNanos,
		TransferCPUNanos: transferCPUNanos,
		BatchLimitUsed: r.autotuner.BatchLimit(),
	}
	if err := r.ring.MarkEncoded(i, stats, transferSync); err != nil {
		return err
	}

	if r.cfg.StatsCallback != nil {
		r.cfg.StatsCallback(i, bank.Stats())
	}
	if r.profiler != nil {
		r.profiler.Record(ProfilerSample{
			EncodeCPUNanos: encodeCPUNanos,
			GlyphCount:     bank.Stats().GlyphCount,
			DrawCount:      drawCount,
		})
	}

	return nil
}

// isFatalDeviceLost reports whether err carries vkresult.ErrDeviceLost
// and, if so, resets every bank in the ring to Idle per spec.md §7:
// "Vulkan DeviceLost -> fatal; all bank state transitions to Idle;
// caller must reinitialize." A non-fatal error (e.g. a recoverable
// transfer-queue submit failure) is left untouched so the caller's
// existing fallback path still runs.
func (r *TextRenderer) isFatalDeviceLost(err error) bool {
	if !errors.Is(err, vkresult.ErrDeviceLost) {
		return false
	}
	r.ring.ResetAll()
	return true
}

// emitDraws implements the adaptive-batching draw rule of spec.md §4.4
// step 6 and returns the number of draw calls recorded.
func (r *TextRenderer) emitDraws(cmdbuf vk.CommandBuffer, instanceCount uint32) uint32 {
	if instanceCount == 0 {
		return 0
	}

	limit := r.autotuner.BatchLimit()
	if !r.cfg.BatchAutotune || instanceCount <= limit {
		r.dispatch.CmdDraw(cmdbuf, VerticesPerInstance, instanceCount, 0, 0)
		return 1
	}

	var drawCount uint32
	for offset := uint32(0); offset < instanceCount; offset += limit {
		chunk := limit
		if offset+chunk > instanceCount {
			chunk = instanceCount - offset
		}
		r.dispatch.CmdDraw(cmdbuf, VerticesPerInstance, chunk, 0, offset)
		drawCount++
	}
	return drawCount
}

// recordTransferUpload implements spec.md §4.4 step 2's transfer-queue
// branch: record the release barrier and copy on a one-off transfer
// command buffer, submit it signalling the timeline semaphore, then
// record the matching acquire barrier at the head of the graphics
// cmdbuf.
//
// Known limitation: a QueueSubmit failure here is detected after the
// atlas has already recorded its collapsed barrier sequence (pending
// uploads cleared, layout advanced) into the doomed transfer command
// buffer. The inline fallback in Encode therefore records no further
// barriers of its own for this frame's uploads; the bytes already sit
// in the staging ring and are picked up cleanly on the next frame that
// calls RecordUploads. A submit failure here is rare enough in practice
// to usually precede a DeviceLost, at which point the caller reinitializes anyway.
func (r *TextRenderer) recordTransferUpload(cmdbuf vk.CommandBuffer) (*textframe.TransferSync, error) {
	tq := r.cfg.TransferQueue

	txCmd, ret := r.dispatch.AllocateCommandBuffer(tq.Pool)
	if err := vkresult.Check(ret); err != nil {
		return nil, fmt.Errorf("%w: allocate transfer command buffer: %w", ErrTransferSubmitFailed, err)
	}
	defer r.dispatch.FreeCommandBuffer(tq.Pool, txCmd)

	if err := vkresult.Check(r.dispatch.BeginCommandBuffer(txCmd)); err != nil {
		return nil, fmt.Errorf("%w: begin transfer command buffer: %w", ErrTransferSubmitFailed, err)
	}
	if err := r.atlas.RecordUploads(txCmd, textatlas.QueueTransfer); err != nil {
		return nil, fmt.Errorf("%w: record transfer uploads: %w", ErrTransferSubmitFailed, err)
	}
	if err := vkresult.Check(r.dispatch.EndCommandBuffer(txCmd)); err != nil {
		return nil, fmt.Errorf("%w: end transfer command buffer: %w", ErrTransferSubmitFailed, err)
	}

	value := r.nextTimelineValue
	if err := vkresult.Check(r.dispatch.QueueSubmit(tq.Queue, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{txCmd},
	}}, 0)); err != nil {
		return nil, fmt.Errorf("%w: submit transfer command buffer: %w", ErrTransferSubmitFailed, err)
	}
	if err := vkresult.Check(r.dispatch.SignalSemaphoreValue(r.transferSemaphore, value)); err != nil {
		return nil, fmt.Errorf("%w: signal transfer timeline: %w", ErrTransferSubmitFailed, err)
	}
	r.nextTimelineValue++

	if err := r.atlas.RecordQueueFamilyAcquire(cmdbuf); err != nil {
		return nil, fmt.Errorf("%w: record acquire barrier: %w", ErrTransferSubmitFailed, err)
	}

	return &textframe.TransferSync{
		Semaphore: uint64(uintptr(r.transferSemaphore)),
		Value:     value,
		StageMask: uint32(vk.PipelineStageFragmentShaderBit),
	}, nil
}

// EndFrame observes this frame's telemetry into the Autotuner and
// transitions bank i back to Idle.
func (r *TextRenderer) EndFrame(i int) error {
	bank, err := r.ring.Bank(i)
	if err != nil {
		return err
	}
	stats := bank.Stats()
	r.autotuner.Observe(stats.EncodeCPUNanos, stats.GlyphCount)
	return r.ring.EndFrame(i)
}

// FrameStats returns a copy of bank i's telemetry.
func (r *TextRenderer) FrameStats(i int) (textframe.FrameStats, error) {
	bank, err := r.ring.Bank(i)
	if err != nil {
		return textframe.FrameStats{}, err
	}
	return bank.Stats(), nil
}

// FrameSyncInfo returns bank i's transfer-queue sync info, if any.
func (r *TextRenderer) FrameSyncInfo(i int) (textframe.TransferSync, bool, error) {
	bank, err := r.ring.Bank(i)
	if err != nil {
		return textframe.TransferSync{}, false, err
	}
	sync, ok := bank.TransferSync()
	return sync, ok, nil
}

// ReleaseAtlasUploads forwards the hint to the underlying atlas.
func (r *TextRenderer) ReleaseAtlasUploads() {
	r.atlas.ReleaseAtlasUploads()
}

func (r *TextRenderer) refreshAllDescriptors() {
	for i := range r.banks {
		r.refreshDescriptor(i)
	}
}

func (r *TextRenderer) refreshDescriptor(i int) {
	view, sampler, _, _ := r.atlas.View()
	r.dispatch.UpdateDescriptorSets([]vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          r.banks[i].descriptorSet,
			DstBinding:      BindingAtlasSampler,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo: []vk.DescriptorImageInfo{
				{Sampler: sampler, ImageView: view, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal},
			},
		},
	})
}

func mat4ToBytes(m [16]float32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&m[0])), PushConstantSize)
}

func (r *TextRenderer) destroyAll() {
	for _, b := range r.banks {
		r.dispatch.DestroyBuffer(b.vertexBuffer)
		r.dispatch.FreeMemory(b.vertexMemory)
	}
	r.dispatch.DestroyDescriptorPool(r.descriptorPool)
	r.atlas.DestroyRetired()
	r.atlas.Destroy()
	r.pipeline.destroy(r.dispatch)
	if r.transferSemaphore != 0 {
		r.dispatch.DestroySemaphore(r.transferSemaphore)
	}
}

// Deinit releases every Vulkan resource the renderer owns. Registering
// it with closer.Bind lets cmd/textdemo guarantee cleanup runs on
// os.Exit or an interrupt signal, matching the teacher's cleanup-hook
// idiom.
func (r *TextRenderer) Deinit() {
	if r.closed {
		return
	}
	r.closed = true
	r.destroyAll()
}

// BindCleanup registers r.Deinit with closer so the caller's process
// exit path cleans up GPU resources even on an unhandled signal.
func (r *TextRenderer) BindCleanup() {
	closer.Bind(r.Deinit)
}
