package textatlas

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"

	"github.com/GhostKellz/zeus-sub002/internal/vkresult"
)

// ImageLayout mirrors the three layouts the atlas image ever holds
// (spec.md §3): Undefined, TransferDst, ShaderReadOnly.
type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutTransferDst
	LayoutShaderReadOnly
)

// QueueKind selects which queue recordUploads records its copy commands
// for: the inline graphics path, or the async transfer-queue path that
// requires a queue-family release barrier (spec.md §4.2/§5).
type QueueKind int

const (
	QueueGraphics QueueKind = iota
	QueueTransfer
)

// Config configures a GlyphAtlas at construction.
type Config struct {
	// InitialWidth/InitialHeight default to 512x512 if zero.
	InitialWidth, InitialHeight uint32
	// MaxExtent bounds growth; defaults to 8192 if zero.
	MaxExtent uint32
	// StagingCapacity bounds total in-flight upload bytes; must be >=
	// the largest single upload the caller will ever issue.
	StagingCapacity uint64
	// GraphicsQueueFamily/TransferQueueFamily are used as the
	// {srcQueueFamily, dstQueueFamily} pair on the release/acquire
	// barrier pair when uploads are recorded on the transfer queue.
	// Equal values (the common single-queue-family case) disable the
	// ownership-transfer barrier fields (vk.QueueFamilyIgnored).
	GraphicsQueueFamily, TransferQueueFamily uint32
}

func (c *Config) normalize() {
	if c.InitialWidth == 0 {
		c.InitialWidth = 512
	}
	if c.InitialHeight == 0 {
		c.InitialHeight = 512
	}
	if c.MaxExtent == 0 {
		c.MaxExtent = 8192
	}
}

type pendingUpload struct {
	rect          AtlasRect
	stagingOffset uint64
	size          uint64
}

type retiredImage struct {
	image   vk.Image
	mem     vk.DeviceMemory
	view    vk.ImageView
	sampler vk.Sampler
}

// GlyphAtlas owns the device-local R8 image, its view/sampler, a
// host-visible staging ring, and the packer driving rectangle
// reservations (spec.md §3/§4.2). All public methods are safe for use
// from the single thread that drives the owning TextRenderer; no
// internal locking is assumed beyond guarding against concurrent
// Destroy (mirrors spec.md §5's single-threaded-per-instance model).
type GlyphAtlas struct {
	mu sync.Mutex

	dispatch Dispatch
	cfg      Config

	extentW, extentH uint32
	layout           ImageLayout

	image   vk.Image
	mem     vk.DeviceMemory
	view    vk.ImageView
	sampler vk.Sampler

	packer *packer

	stagingBuffer   vk.Buffer
	stagingMem      vk.DeviceMemory
	stagingMapped   []byte
	stagingCapacity uint64
	stagingCursor   uint64

	pending []pendingUpload
	retired []retiredImage

	grewThisFrame bool
	needsClear    bool
	needsAcquire  bool
}

// New constructs a GlyphAtlas: allocates the initial image, view,
// sampler, and staging ring against the supplied Dispatch.
func New(dispatch Dispatch, cfg Config) (*GlyphAtlas, error) {
	cfg.normalize()
	if cfg.StagingCapacity == 0 {
		return nil, fmt.Errorf("textatlas: %w: staging capacity must be > 0", ErrMisconfigured)
	}
	maxDim := dispatch.MaxImageDimension2D()
	if maxDim != 0 && cfg.MaxExtent > maxDim {
		cfg.MaxExtent = maxDim
	}

	a := &GlyphAtlas{
		dispatch: dispatch,
		cfg:      cfg,
		layout:   LayoutUndefined,
	}

	image, mem, view, sampler, err := a.createImageResources(cfg.InitialWidth, cfg.InitialHeight)
	if err != nil {
		return nil, err
	}
	a.image, a.mem, a.view, a.sampler = image, mem, view, sampler
	a.extentW, a.extentH = cfg.InitialWidth, cfg.InitialHeight
	a.packer = newPacker(cfg.InitialWidth, cfg.InitialHeight, cfg.MaxExtent)
	a.needsClear = true // fresh image is Undefined; guarantee padding=0 before first read.

	if err := a.createStaging(cfg.StagingCapacity); err != nil {
		a.destroyImageResources(image, mem, view, sampler)
		return nil, err
	}

	return a, nil
}

func (a *GlyphAtlas) createImageResources(w, h uint32) (vk.Image, vk.DeviceMemory, vk.ImageView, vk.Sampler, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.FormatR8Unorm,
		Extent: vk.Extent3D{
			Width:  w,
			Height: h,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) | vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	image, ret := a.dispatch.CreateImage(imageInfo)
	if err := vkresult.Check(ret); err != nil {
		return vk.Image(0), vk.DeviceMemory(0), vk.ImageView(0), vk.Sampler(0), fmt.Errorf("textatlas: create image: %w", err)
	}

	heap, ok := BestDeviceLocalHeap(a.dispatch.MemoryHeaps())
	if !ok {
		a.dispatch.DestroyImage(image)
		return vk.Image(0), vk.DeviceMemory(0), vk.ImageView(0), vk.Sampler(0), fmt.Errorf("textatlas: %w: no device-local memory heap", ErrOutOfMemory)
	}
	mem, ret := a.dispatch.AllocateMemory(vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(uint64(w) * uint64(h)),
		MemoryTypeIndex: heap.TypeIndex,
	})
	if err := vkresult.Check(ret); err != nil {
		a.dispatch.DestroyImage(image)
		return vk.Image(0), vk.DeviceMemory(0), vk.ImageView(0), vk.Sampler(0), fmt.Errorf("textatlas: allocate image memory: %w", err)
	}
	if err := vkresult.Check(a.dispatch.BindImageMemory(image, mem, 0)); err != nil {
		a.dispatch.FreeMemory(mem)
		a.dispatch.DestroyImage(image)
		return vk.Image(0), vk.DeviceMemory(0), vk.ImageView(0), vk.Sampler(0), fmt.Errorf("textatlas: bind image memory: %w", err)
	}

	view, ret := a.dispatch.CreateImageView(vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   vk.FormatR8Unorm,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount:     1,
			LayerCount:     1,
			BaseMipLevel:   0,
			BaseArrayLayer: 0,
		},
	})
	if err := vkresult.Check(ret); err != nil {
		a.dispatch.FreeMemory(mem)
		a.dispatch.DestroyImage(image)
		return vk.Image(0), vk.DeviceMemory(0), vk.ImageView(0), vk.Sampler(0), fmt.Errorf("textatlas: create image view: %w", err)
	}

	sampler, ret := a.dispatch.CreateSampler(vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		AddressModeU: vk.SamplerAddressModeClampToEdge,
		AddressModeV: vk.SamplerAddressModeClampToEdge,
		AddressModeW: vk.SamplerAddressModeClampToEdge,
		BorderColor:  vk.BorderColorFloatTransparentBlack,
		MaxLod:       0,
	})
	if err := vkresult.Check(ret); err != nil {
		a.dispatch.DestroyImageView(view)
		a.dispatch.FreeMemory(mem)
		a.dispatch.DestroyImage(image)
		return vk.Image(0), vk.DeviceMemory(0), vk.ImageView(0), vk.Sampler(0), fmt.Errorf("textatlas: create sampler: %w", err)
	}

	return image, mem, view, sampler, nil
}

func (a *GlyphAtlas) destroyImageResources(image vk.Image, mem vk.DeviceMemory, view vk.ImageView, sampler vk.Sampler) {
	a.dispatch.DestroySampler(sampler)
	a.dispatch.DestroyImageView(view)
	a.dispatch.DestroyImage(image)
	a.dispatch.FreeMemory(mem)
}

func (a *GlyphAtlas) createStaging(capacity uint64) error {
	buf, ret := a.dispatch.CreateBuffer(vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(capacity),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	})
	if err := vkresult.Check(ret); err != nil {
		return fmt.Errorf("textatlas: create staging buffer: %w", err)
	}

	heap, ok := BestHostVisibleHeap(a.dispatch.MemoryHeaps())
	if !ok {
		a.dispatch.DestroyBuffer(buf)
		return fmt.Errorf("textatlas: %w: no host-visible memory heap", ErrOutOfMemory)
	}
	mem, ret := a.dispatch.AllocateMemory(vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(capacity),
		MemoryTypeIndex: heap.TypeIndex,
	})
	if err := vkresult.Check(ret); err != nil {
		a.dispatch.DestroyBuffer(buf)
		return fmt.Errorf("textatlas: allocate staging memory: %w", err)
	}
	if err := vkresult.Check(a.dispatch.BindBufferMemory(buf, mem, 0)); err != nil {
		a.dispatch.FreeMemory(mem)
		a.dispatch.DestroyBuffer(buf)
		return fmt.Errorf("textatlas: bind staging memory: %w", err)
	}
	mapped, ret := a.dispatch.MapMemory(mem, 0, vk.DeviceSize(capacity))
	if err := vkresult.Check(ret); err != nil {
		a.dispatch.FreeMemory(mem)
		a.dispatch.DestroyBuffer(buf)
		return fmt.Errorf("textatlas: map staging memory: %w", err)
	}

	a.stagingBuffer = buf
	a.stagingMem = mem
	a.stagingMapped = mapped
	a.stagingCapacity = capacity
	return nil
}

// ReserveRect packs a w*h rectangle (1-texel default padding) into the
// atlas, growing the backing image (as many times as needed, up to
// MaxExtent) if the current extent cannot fit it.
func (a *GlyphAtlas) ReserveRect(w, h uint32) (AtlasRect, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rect, err := a.packer.reserve(w, h, DefaultPadding)
	for err != nil {
		var grow GrowRequired
		if !asGrowRequired(err, &grow) {
			return AtlasRect{}, err
		}
		if err := a.grow(grow.NeedW, grow.NeedH); err != nil {
			return AtlasRect{}, err
		}
		rect, err = a.packer.reserve(w, h, DefaultPadding)
	}
	return rect, nil
}

func asGrowRequired(err error, out *GrowRequired) bool {
	g, ok := err.(GrowRequired)
	if !ok {
		return false
	}
	*out = g
	return true
}

// grow recreates the image/view/sampler at the new extent, retires the
// previous resources (destroyed later via DestroyRetired, once the
// caller has waited on all outstanding frame fences per spec.md §4.4's
// atlas-grow policy), and extends the packer in place so every
// previously issued rect keeps its coordinates.
func (a *GlyphAtlas) grow(newW, newH uint32) error {
	image, mem, view, sampler, err := a.createImageResources(newW, newH)
	if err != nil {
		return err
	}

	a.retired = append(a.retired, retiredImage{
		image:   a.image,
		mem:     a.mem,
		view:    a.view,
		sampler: a.sampler,
	})

	a.image, a.mem, a.view, a.sampler = image, mem, view, sampler
	a.packer.growTo(newW, newH)
	a.extentW, a.extentH = newW, newH
	a.layout = LayoutUndefined
	a.needsClear = true
	a.grewThisFrame = true
	return nil
}

// DestroyRetired frees image resources replaced by a grow. The caller
// must only invoke this after waiting on every in-flight frame's fence,
// since a prior frame's draw may still reference the old image via a
// descriptor set that has not yet been refreshed.
func (a *GlyphAtlas) DestroyRetired() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.retired {
		a.destroyImageResources(r.image, r.mem, r.view, r.sampler)
	}
	a.retired = a.retired[:0]
}

// Upload copies bytes (length == rect.W*rect.H) into the staging ring
// and records a pending {rect, offset, size} entry consumed by the next
// RecordUploads call.
func (a *GlyphAtlas) Upload(rect AtlasRect, bytes []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := uint64(len(bytes))
	if size != uint64(rect.W)*uint64(rect.H) {
		return fmt.Errorf("textatlas: upload size %d does not match rect area %dx%d", size, rect.W, rect.H)
	}
	if a.stagingCursor+size > a.stagingCapacity {
		return ErrUploadTooLarge
	}

	copy(a.stagingMapped[a.stagingCursor:a.stagingCursor+size], bytes)
	a.pending = append(a.pending, pendingUpload{rect: rect, stagingOffset: a.stagingCursor, size: size})
	a.stagingCursor += size
	return nil
}

// PendingSummary reports the count and total byte size of uploads
// queued since the last RecordUploads, for the orchestrator's
// atlas_uploads/upload_bytes telemetry (spec.md §3).
func (a *GlyphAtlas) PendingSummary() (count uint32, bytes uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.pending {
		bytes += p.size
	}
	return uint32(len(a.pending)), bytes
}

// RecordUploads emits the single collapsed barrier sequence described
// in spec.md §4.2/§9: at most one TransferDst transition, one
// (possibly preceded by a full clear on grow) multi-region copy, and
// one ShaderReadOnly transition, regardless of how many uploads are
// pending. Returns nil and records nothing if there is no pending work.
func (a *GlyphAtlas) RecordUploads(cmdbuf vk.CommandBuffer, queueKind QueueKind) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	hasWork := a.needsClear || len(a.pending) > 0
	if !hasWork {
		return nil
	}

	srcFamily, dstFamily := uint32(vk.QueueFamilyIgnored), uint32(vk.QueueFamilyIgnored)
	if queueKind == QueueTransfer && a.cfg.GraphicsQueueFamily != a.cfg.TransferQueueFamily {
		srcFamily, dstFamily = a.cfg.TransferQueueFamily, a.cfg.GraphicsQueueFamily
	}

	srcAccess, srcStage := accessAndStageFor(a.layout)
	toTransferDst := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		OldLayout:           layoutToVk(a.layout),
		NewLayout:           vk.ImageLayoutTransferDstOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               a.image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	a.dispatch.CmdPipelineBarrier(cmdbuf, srcStage, vk.PipelineStageFlags(vk.PipelineStageTransferBit), []vk.ImageMemoryBarrier{toTransferDst})
	a.layout = LayoutTransferDst

	if a.needsClear {
		a.dispatch.CmdClearColorImage(cmdbuf, a.image, vk.ImageLayoutTransferDstOptimal, vk.ClearColorValue{}, []vk.ImageSubresourceRange{{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		}})
		a.needsClear = false
	}

	if len(a.pending) > 0 {
		regions := make([]vk.BufferImageCopy, len(a.pending))
		for i, p := range a.pending {
			regions[i] = vk.BufferImageCopy{
				BufferOffset:      vk.DeviceSize(p.stagingOffset),
				BufferRowLength:   p.rect.W,
				BufferImageHeight: p.rect.H,
				ImageSubresource: vk.ImageSubresourceLayers{
					AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
					LayerCount: 1,
				},
				ImageOffset: vk.Offset3D{X: int32(p.rect.X), Y: int32(p.rect.Y), Z: 0},
				ImageExtent: vk.Extent3D{Width: p.rect.W, Height: p.rect.H, Depth: 1},
			}
		}
		a.dispatch.CmdCopyBufferToImage(cmdbuf, a.stagingBuffer, a.image, vk.ImageLayoutTransferDstOptimal, regions)
		a.pending = a.pending[:0]
	}

	toShaderRead := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		OldLayout:           vk.ImageLayoutTransferDstOptimal,
		NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		SrcQueueFamilyIndex: srcFamily,
		DstQueueFamilyIndex: dstFamily,
		Image:               a.image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	a.dispatch.CmdPipelineBarrier(cmdbuf, vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), []vk.ImageMemoryBarrier{toShaderRead})
	a.layout = LayoutShaderReadOnly
	a.needsAcquire = srcFamily != dstFamily

	return nil
}

// RecordQueueFamilyAcquire records the acquire-side half of the
// ownership-transfer barrier pair on the graphics queue's command
// buffer, completing a release emitted by a prior RecordUploads(...,
// QueueTransfer) call when the transfer and graphics queues belong to
// different families (spec.md §4.4 step 2, §9 "Transfer queue
// ownership"). A no-op if no release is outstanding.
func (a *GlyphAtlas) RecordQueueFamilyAcquire(cmdbuf vk.CommandBuffer) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.needsAcquire {
		return nil
	}
	acquire := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       0,
		DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		OldLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		SrcQueueFamilyIndex: a.cfg.TransferQueueFamily,
		DstQueueFamilyIndex: a.cfg.GraphicsQueueFamily,
		Image:               a.image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	a.dispatch.CmdPipelineBarrier(cmdbuf, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), []vk.ImageMemoryBarrier{acquire})
	a.needsAcquire = false
	return nil
}

func accessAndStageFor(layout ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch layout {
	case LayoutShaderReadOnly:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case LayoutTransferDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	default:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}

func layoutToVk(layout ImageLayout) vk.ImageLayout {
	switch layout {
	case LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	default:
		return vk.ImageLayoutUndefined
	}
}

// View returns the current image view, sampler, and extent. Safe to
// call at any time; the returned values reflect the most recent grow.
func (a *GlyphAtlas) View() (vk.ImageView, vk.Sampler, uint32, uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view, a.sampler, a.extentW, a.extentH
}

// TookGrow reports whether a reservation forced a grow since the last
// call, clearing the flag. Every bank's descriptor set must be marked
// dirty when this returns true (spec.md P5).
func (a *GlyphAtlas) TookGrow() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	grew := a.grewThisFrame
	a.grewThisFrame = false
	return grew
}

// ReleaseAtlasUploads is a hint that the staging bytes written so far
// have been consumed by a completed GPU submission and the ring cursor
// may be reused. Explicit by spec.md design (§9 Open Questions).
func (a *GlyphAtlas) ReleaseAtlasUploads() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stagingCursor = 0
}

// Layout reports the atlas image's current layout.
func (a *GlyphAtlas) Layout() ImageLayout {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.layout
}

// Destroy releases every Vulkan resource the atlas owns, including any
// retired images not yet cleaned up via DestroyRetired.
func (a *GlyphAtlas) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.retired {
		a.destroyImageResources(r.image, r.mem, r.view, r.sampler)
	}
	a.retired = nil

	a.destroyImageResources(a.image, a.mem, a.view, a.sampler)

	if a.stagingMapped != nil {
		a.dispatch.UnmapMemory(a.stagingMem)
	}
	a.dispatch.DestroyBuffer(a.stagingBuffer)
	a.dispatch.FreeMemory(a.stagingMem)
}
