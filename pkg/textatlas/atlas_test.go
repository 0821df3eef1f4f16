package textatlas

import (
	"errors"
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

// fakeDispatch is an in-memory Dispatch good enough to exercise
// GlyphAtlas's bookkeeping without a real device. It hands out
// monotonically increasing handle values and records calls a test may
// want to assert on.
type fakeDispatch struct {
	nextHandle uint64
	memory     []byte

	clearCalls int
	copyCalls  int
	barriers   []vk.ImageMemoryBarrier
}

func newFakeDispatch(stagingCapacity uint64) *fakeDispatch {
	return &fakeDispatch{nextHandle: 1, memory: make([]byte, stagingCapacity)}
}

func (f *fakeDispatch) handle() uint64 {
	f.nextHandle++
	return f.nextHandle
}

func (f *fakeDispatch) CreateImage(vk.ImageCreateInfo) (vk.Image, vk.Result) {
	return vk.Image(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroyImage(vk.Image) {}
func (f *fakeDispatch) CreateImageView(vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	return vk.ImageView(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroyImageView(vk.ImageView) {}
func (f *fakeDispatch) CreateSampler(vk.SamplerCreateInfo) (vk.Sampler, vk.Result) {
	return vk.Sampler(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroySampler(vk.Sampler) {}

func (f *fakeDispatch) CreateBuffer(vk.BufferCreateInfo) (vk.Buffer, vk.Result) {
	return vk.Buffer(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroyBuffer(vk.Buffer) {}
func (f *fakeDispatch) AllocateMemory(vk.MemoryAllocateInfo) (vk.DeviceMemory, vk.Result) {
	return vk.DeviceMemory(f.handle()), vk.Success
}
func (f *fakeDispatch) FreeMemory(vk.DeviceMemory) {}
func (f *fakeDispatch) BindImageMemory(vk.Image, vk.DeviceMemory, vk.DeviceSize) vk.Result {
	return vk.Success
}
func (f *fakeDispatch) BindBufferMemory(vk.Buffer, vk.DeviceMemory, vk.DeviceSize) vk.Result {
	return vk.Success
}
func (f *fakeDispatch) MapMemory(vk.DeviceMemory, vk.DeviceSize, vk.DeviceSize) ([]byte, vk.Result) {
	return f.memory, vk.Success
}
func (f *fakeDispatch) UnmapMemory(vk.DeviceMemory) {}

func (f *fakeDispatch) MemoryHeaps() []MemoryHeapInfo {
	return []MemoryHeapInfo{
		{
			PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
			HeapSize:      vk.DeviceSize(1 << 30),
			TypeIndex:     0,
		},
		{
			PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit),
			HeapSize:      vk.DeviceSize(1 << 28),
			TypeIndex:     1,
		},
	}
}
func (f *fakeDispatch) MaxImageDimension2D() uint32 { return 8192 }

func (f *fakeDispatch) CreateDescriptorSetLayout(vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, vk.Result) {
	return vk.DescriptorSetLayout(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroyDescriptorSetLayout(vk.DescriptorSetLayout) {}
func (f *fakeDispatch) CreateDescriptorPool(vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result) {
	return vk.DescriptorPool(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroyDescriptorPool(vk.DescriptorPool) {}
func (f *fakeDispatch) AllocateDescriptorSets(vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, vk.Result) {
	return []vk.DescriptorSet{vk.DescriptorSet(f.handle())}, vk.Success
}
func (f *fakeDispatch) UpdateDescriptorSets([]vk.WriteDescriptorSet) {}
func (f *fakeDispatch) CreatePipelineLayout(vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	return vk.PipelineLayout(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroyPipelineLayout(vk.PipelineLayout) {}
func (f *fakeDispatch) CreateGraphicsPipeline(vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result) {
	return vk.Pipeline(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroyPipeline(vk.Pipeline) {}
func (f *fakeDispatch) CreateShaderModule(vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	return vk.ShaderModule(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroyShaderModule(vk.ShaderModule) {}

func (f *fakeDispatch) CmdPipelineBarrier(_ vk.CommandBuffer, _, _ vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	f.barriers = append(f.barriers, barriers...)
}
func (f *fakeDispatch) CmdCopyBufferToImage(vk.CommandBuffer, vk.Buffer, vk.Image, vk.ImageLayout, []vk.BufferImageCopy) {
	f.copyCalls++
}
func (f *fakeDispatch) CmdClearColorImage(vk.CommandBuffer, vk.Image, vk.ImageLayout, vk.ClearColorValue, []vk.ImageSubresourceRange) {
	f.clearCalls++
}
func (f *fakeDispatch) CmdBindPipeline(vk.CommandBuffer, vk.Pipeline)                         {}
func (f *fakeDispatch) CmdBindDescriptorSets(vk.CommandBuffer, vk.PipelineLayout, []vk.DescriptorSet) {}
func (f *fakeDispatch) CmdBindVertexBuffers(vk.CommandBuffer, uint32, []vk.Buffer, []vk.DeviceSize) {}
func (f *fakeDispatch) CmdSetViewport(vk.CommandBuffer, []vk.Viewport)                        {}
func (f *fakeDispatch) CmdSetScissor(vk.CommandBuffer, []vk.Rect2D)                            {}
func (f *fakeDispatch) CmdPushConstants(vk.CommandBuffer, vk.PipelineLayout, vk.ShaderStageFlags, uint32, []byte) {
}
func (f *fakeDispatch) CmdDraw(vk.CommandBuffer, uint32, uint32, uint32, uint32) {}

func (f *fakeDispatch) QueueSubmit(vk.Queue, []vk.SubmitInfo, vk.Fence) vk.Result { return vk.Success }
func (f *fakeDispatch) CreateTimelineSemaphore(uint64) (vk.Semaphore, vk.Result) {
	return vk.Semaphore(f.handle()), vk.Success
}
func (f *fakeDispatch) DestroySemaphore(vk.Semaphore)                        {}
func (f *fakeDispatch) SignalSemaphoreValue(vk.Semaphore, uint64) vk.Result  { return vk.Success }
func (f *fakeDispatch) GetSemaphoreCounterValue(vk.Semaphore) (uint64, vk.Result) { return 0, vk.Success }

func (f *fakeDispatch) AllocateCommandBuffer(vk.CommandPool) (vk.CommandBuffer, vk.Result) {
	return vk.CommandBuffer(nil), vk.Success
}
func (f *fakeDispatch) BeginCommandBuffer(vk.CommandBuffer) vk.Result { return vk.Success }
func (f *fakeDispatch) EndCommandBuffer(vk.CommandBuffer) vk.Result   { return vk.Success }
func (f *fakeDispatch) FreeCommandBuffer(vk.CommandPool, vk.CommandBuffer) {}

var _ Dispatch = (*fakeDispatch)(nil)

func TestGlyphAtlasReserveUploadRecord(t *testing.T) {
	d := newFakeDispatch(1 << 16)
	a, err := New(d, Config{InitialWidth: 64, InitialHeight: 64, MaxExtent: 512, StagingCapacity: 1 << 16})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rect, err := a.ReserveRect(8, 16)
	if err != nil {
		t.Fatalf("ReserveRect: %v", err)
	}
	if rect.W != 8 || rect.H != 16 {
		t.Fatalf("unexpected rect %+v", rect)
	}

	bitmap := make([]byte, 8*16)
	for i := range bitmap {
		bitmap[i] = 0xFF
	}
	if err := a.Upload(rect, bitmap); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := a.RecordUploads(vk.CommandBuffer(nil), QueueGraphics); err != nil {
		t.Fatalf("RecordUploads: %v", err)
	}
	if d.copyCalls != 1 {
		t.Fatalf("expected exactly one copy call, got %d", d.copyCalls)
	}
	if len(d.barriers) != 2 {
		t.Fatalf("expected exactly two barriers (TransferDst, ShaderReadOnly), got %d", len(d.barriers))
	}
	if a.Layout() != LayoutShaderReadOnly {
		t.Fatalf("expected ShaderReadOnly after RecordUploads, got %v", a.Layout())
	}

	// Second call with nothing pending must emit no barrier (P3).
	d.barriers = nil
	if err := a.RecordUploads(vk.CommandBuffer(nil), QueueGraphics); err != nil {
		t.Fatalf("RecordUploads (empty): %v", err)
	}
	if len(d.barriers) != 0 {
		t.Fatalf("expected no barrier when nothing is pending, got %d", len(d.barriers))
	}
}

func TestGlyphAtlasGrowPreservesCoordinatesAndClearsOnce(t *testing.T) {
	d := newFakeDispatch(1 << 20)
	a, err := New(d, Config{InitialWidth: 16, InitialHeight: 16, MaxExtent: 1024, StagingCapacity: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// With the 1-texel padding, 16x16 needs 18x18 and forces the grow.
	first, err := a.ReserveRect(16, 16)
	if err != nil {
		t.Fatalf("ReserveRect (forcing grow): %v", err)
	}

	second, err := a.ReserveRect(8, 8)
	if err != nil {
		t.Fatalf("ReserveRect (after grow): %v", err)
	}
	if first.overlaps(second) {
		t.Fatalf("post-grow rect overlaps pre-grow rect")
	}
	if !a.TookGrow() {
		t.Fatalf("expected TookGrow() to report a grow happened")
	}
	if a.TookGrow() {
		t.Fatalf("TookGrow() must clear after reading")
	}

	if err := a.RecordUploads(vk.CommandBuffer(nil), QueueGraphics); err != nil {
		t.Fatalf("RecordUploads: %v", err)
	}
	if d.clearCalls != 1 {
		t.Fatalf("expected exactly one full-image clear on grow, got %d", d.clearCalls)
	}

	a.DestroyRetired()
}

func TestGlyphAtlasUploadTooLarge(t *testing.T) {
	d := newFakeDispatch(8)
	a, err := New(d, Config{InitialWidth: 64, InitialHeight: 64, MaxExtent: 512, StagingCapacity: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rect, err := a.ReserveRect(4, 4)
	if err != nil {
		t.Fatalf("ReserveRect: %v", err)
	}
	bytes := make([]byte, 16)
	if err := a.Upload(rect, bytes); !errors.Is(err, ErrUploadTooLarge) {
		t.Fatalf("expected ErrUploadTooLarge, got %v", err)
	}
}
