package textatlas

import (
	vk "github.com/vulkan-go/vulkan"
)

// MemoryHeapInfo describes one physical-device memory heap, the shape
// the renderer needs to pick device-local vs. host-visible+coherent
// heaps (spec.md §6).
type MemoryHeapInfo struct {
	Flags    vk.MemoryHeapFlags
	HeapSize vk.DeviceSize
	// TypeIndex is the vk.MemoryType index backed by this heap entry,
	// as required by vk.MemoryAllocateInfo.MemoryTypeIndex.
	TypeIndex uint32
	// PropertyFlags are the vk.MemoryPropertyFlagBits for TypeIndex.
	PropertyFlags vk.MemoryPropertyFlags
}

// Dispatch is the device-handle-plus-function-table external
// collaborator from spec.md §6: "opaque token identifying a logical GPU
// device, plus a function table containing, at minimum, the commands
// used in §4.4". GlyphAtlas and TextRenderer never touch a vk.Device
// directly; they only call through this interface, which the caller
// implements as a thin pass-through to the real vulkan-go functions of
// the same name. Every method that wraps a result-bearing Vulkan call
// returns the raw vk.Result exactly as vulkan-go does; GlyphAtlas,
// TextRenderer, and the pipeline builder translate it via
// internal/vkresult.Check at the call site, the same division of labor
// the teacher's asche-derived NewError/orPanic pattern used.
type Dispatch interface {
	// Image / view / sampler lifecycle (GlyphAtlas).
	CreateImage(info vk.ImageCreateInfo) (vk.Image, vk.Result)
	DestroyImage(image vk.Image)
	CreateImageView(info vk.ImageViewCreateInfo) (vk.ImageView, vk.Result)
	DestroyImageView(view vk.ImageView)
	CreateSampler(info vk.SamplerCreateInfo) (vk.Sampler, vk.Result)
	DestroySampler(sampler vk.Sampler)

	// Buffer + memory lifecycle (GlyphAtlas staging ring, FrameBank
	// instance buffers).
	CreateBuffer(info vk.BufferCreateInfo) (vk.Buffer, vk.Result)
	DestroyBuffer(buffer vk.Buffer)
	AllocateMemory(info vk.MemoryAllocateInfo) (vk.DeviceMemory, vk.Result)
	FreeMemory(mem vk.DeviceMemory)
	BindImageMemory(image vk.Image, mem vk.DeviceMemory, offset vk.DeviceSize) vk.Result
	BindBufferMemory(buffer vk.Buffer, mem vk.DeviceMemory, offset vk.DeviceSize) vk.Result
	MapMemory(mem vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, vk.Result)
	UnmapMemory(mem vk.DeviceMemory)

	// Memory property introspection, used to pick device-local vs.
	// host-visible+coherent (BAR) heaps.
	MemoryHeaps() []MemoryHeapInfo
	MaxImageDimension2D() uint32

	// Descriptor + pipeline layout (TextRenderer.pipeline.go).
	CreateDescriptorSetLayout(info vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, vk.Result)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	CreateDescriptorPool(info vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	AllocateDescriptorSets(info vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, vk.Result)
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)
	CreatePipelineLayout(info vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	CreateGraphicsPipeline(info vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result)
	DestroyPipeline(pipeline vk.Pipeline)
	CreateShaderModule(info vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result)
	DestroyShaderModule(module vk.ShaderModule)

	// Command recording.
	CmdPipelineBarrier(cmd vk.CommandBuffer, src, dst vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier)
	CmdCopyBufferToImage(cmd vk.CommandBuffer, src vk.Buffer, dst vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy)
	CmdClearColorImage(cmd vk.CommandBuffer, image vk.Image, layout vk.ImageLayout, color vk.ClearColorValue, ranges []vk.ImageSubresourceRange)
	CmdBindPipeline(cmd vk.CommandBuffer, pipeline vk.Pipeline)
	CmdBindDescriptorSets(cmd vk.CommandBuffer, layout vk.PipelineLayout, sets []vk.DescriptorSet)
	CmdBindVertexBuffers(cmd vk.CommandBuffer, firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize)
	CmdSetViewport(cmd vk.CommandBuffer, viewports []vk.Viewport)
	CmdSetScissor(cmd vk.CommandBuffer, scissors []vk.Rect2D)
	CmdPushConstants(cmd vk.CommandBuffer, layout vk.PipelineLayout, stage vk.ShaderStageFlags, offset uint32, data []byte)
	CmdDraw(cmd vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// Queue submission and timeline-semaphore handoff (transfer queue
	// path, spec.md §4.4/§5).
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result
	CreateTimelineSemaphore(initialValue uint64) (vk.Semaphore, vk.Result)
	DestroySemaphore(sem vk.Semaphore)
	SignalSemaphoreValue(sem vk.Semaphore, value uint64) vk.Result
	GetSemaphoreCounterValue(sem vk.Semaphore) (uint64, vk.Result)

	// AllocateCommandBuffer returns a single primary command buffer from
	// a pool the caller owns, used to build the one-off transfer command
	// buffer in the transfer-queue upload path.
	AllocateCommandBuffer(pool vk.CommandPool) (vk.CommandBuffer, vk.Result)
	BeginCommandBuffer(cmd vk.CommandBuffer) vk.Result
	EndCommandBuffer(cmd vk.CommandBuffer) vk.Result
	FreeCommandBuffer(pool vk.CommandPool, cmd vk.CommandBuffer)
}

// BestHostVisibleHeap picks the memory heap used for the atlas staging
// ring and the per-bank instance buffers: spec.md §6 prefers a heap
// that is simultaneously device-local and host-visible ("BAR/resizable
// BAR") above a 256 MB threshold, falling back to the first plain
// host-visible+coherent heap otherwise.
func BestHostVisibleHeap(heaps []MemoryHeapInfo) (MemoryHeapInfo, bool) {
	const barThreshold = 256 * 1024 * 1024

	hostVisibleCoherent := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	deviceLocalHostVisible := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) | hostVisibleCoherent

	var fallback MemoryHeapInfo
	haveFallback := false

	for _, h := range heaps {
		if h.PropertyFlags&deviceLocalHostVisible == deviceLocalHostVisible && uint64(h.HeapSize) >= barThreshold {
			return h, true
		}
		if !haveFallback && h.PropertyFlags&hostVisibleCoherent == hostVisibleCoherent {
			fallback, haveFallback = h, true
		}
	}
	return fallback, haveFallback
}

// BestDeviceLocalHeap picks the memory heap used for the atlas image.
func BestDeviceLocalHeap(heaps []MemoryHeapInfo) (MemoryHeapInfo, bool) {
	deviceLocal := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	for _, h := range heaps {
		if h.PropertyFlags&deviceLocal != 0 {
			return h, true
		}
	}
	return MemoryHeapInfo{}, false
}
