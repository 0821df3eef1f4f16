package main

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/GhostKellz/zeus-sub002/pkg/textatlas"
)

// noopDispatch is a Dispatch that performs no real GPU work: every
// create call hands out a fake handle and records nothing. It exists
// so this demo can drive the full textrender public API without a
// window, instance, or physical device, the same way cmd/triangle
// proved out the teacher's OpenGL path with the smallest program that
// would compile and run.
type noopDispatch struct {
	nextHandle uint64
	memoryPool map[vk.DeviceMemory][]byte
}

func newNoopDispatch() *noopDispatch {
	return &noopDispatch{nextHandle: 1, memoryPool: make(map[vk.DeviceMemory][]byte)}
}

func (d *noopDispatch) handle() uint64 {
	d.nextHandle++
	return d.nextHandle
}

func (d *noopDispatch) CreateImage(vk.ImageCreateInfo) (vk.Image, vk.Result) {
	return vk.Image(d.handle()), vk.Success
}
func (d *noopDispatch) DestroyImage(vk.Image) {}
func (d *noopDispatch) CreateImageView(vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	return vk.ImageView(d.handle()), vk.Success
}
func (d *noopDispatch) DestroyImageView(vk.ImageView) {}
func (d *noopDispatch) CreateSampler(vk.SamplerCreateInfo) (vk.Sampler, vk.Result) {
	return vk.Sampler(d.handle()), vk.Success
}
func (d *noopDispatch) DestroySampler(vk.Sampler) {}

func (d *noopDispatch) CreateBuffer(vk.BufferCreateInfo) (vk.Buffer, vk.Result) {
	return vk.Buffer(d.handle()), vk.Success
}
func (d *noopDispatch) DestroyBuffer(vk.Buffer) {}
func (d *noopDispatch) AllocateMemory(info vk.MemoryAllocateInfo) (vk.DeviceMemory, vk.Result) {
	h := vk.DeviceMemory(d.handle())
	d.memoryPool[h] = make([]byte, info.AllocationSize)
	return h, vk.Success
}
func (d *noopDispatch) FreeMemory(mem vk.DeviceMemory) { delete(d.memoryPool, mem) }
func (d *noopDispatch) BindImageMemory(vk.Image, vk.DeviceMemory, vk.DeviceSize) vk.Result {
	return vk.Success
}
func (d *noopDispatch) BindBufferMemory(vk.Buffer, vk.DeviceMemory, vk.DeviceSize) vk.Result {
	return vk.Success
}
func (d *noopDispatch) MapMemory(mem vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, vk.Result) {
	buf, ok := d.memoryPool[mem]
	if !ok {
		buf = make([]byte, offset+size)
		d.memoryPool[mem] = buf
	}
	return buf[offset:], vk.Success
}
func (d *noopDispatch) UnmapMemory(vk.DeviceMemory) {}

func (d *noopDispatch) MemoryHeaps() []textatlas.MemoryHeapInfo {
	return []textatlas.MemoryHeapInfo{
		{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), HeapSize: vk.DeviceSize(1 << 31), TypeIndex: 0},
		{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit), HeapSize: vk.DeviceSize(1 << 29), TypeIndex: 1},
	}
}
func (d *noopDispatch) MaxImageDimension2D() uint32 { return 16384 }

func (d *noopDispatch) CreateDescriptorSetLayout(vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, vk.Result) {
	return vk.DescriptorSetLayout(d.handle()), vk.Success
}
func (d *noopDispatch) DestroyDescriptorSetLayout(vk.DescriptorSetLayout) {}
func (d *noopDispatch) CreateDescriptorPool(vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result) {
	return vk.DescriptorPool(d.handle()), vk.Success
}
func (d *noopDispatch) DestroyDescriptorPool(vk.DescriptorPool) {}
func (d *noopDispatch) AllocateDescriptorSets(info vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, vk.Result) {
	sets := make([]vk.DescriptorSet, info.DescriptorSetCount)
	for i := range sets {
		sets[i] = vk.DescriptorSet(d.handle())
	}
	return sets, vk.Success
}
func (d *noopDispatch) UpdateDescriptorSets([]vk.WriteDescriptorSet) {}
func (d *noopDispatch) CreatePipelineLayout(vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	return vk.PipelineLayout(d.handle()), vk.Success
}
func (d *noopDispatch) DestroyPipelineLayout(vk.PipelineLayout) {}
func (d *noopDispatch) CreateGraphicsPipeline(vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result) {
	return vk.Pipeline(d.handle()), vk.Success
}
func (d *noopDispatch) DestroyPipeline(vk.Pipeline) {}
func (d *noopDispatch) CreateShaderModule(vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	return vk.ShaderModule(d.handle()), vk.Success
}
func (d *noopDispatch) DestroyShaderModule(vk.ShaderModule) {}

func (d *noopDispatch) CmdPipelineBarrier(vk.CommandBuffer, vk.PipelineStageFlags, vk.PipelineStageFlags, []vk.ImageMemoryBarrier) {
}
func (d *noopDispatch) CmdCopyBufferToImage(vk.CommandBuffer, vk.Buffer, vk.Image, vk.ImageLayout, []vk.BufferImageCopy) {
}
func (d *noopDispatch) CmdClearColorImage(vk.CommandBuffer, vk.Image, vk.ImageLayout, vk.ClearColorValue, []vk.ImageSubresourceRange) {
}
func (d *noopDispatch) CmdBindPipeline(vk.CommandBuffer, vk.Pipeline) {}
func (d *noopDispatch) CmdBindDescriptorSets(vk.CommandBuffer, vk.PipelineLayout, []vk.DescriptorSet) {
}
func (d *noopDispatch) CmdBindVertexBuffers(vk.CommandBuffer, uint32, []vk.Buffer, []vk.DeviceSize) {}
func (d *noopDispatch) CmdSetViewport(vk.CommandBuffer, []vk.Viewport)                       {}
func (d *noopDispatch) CmdSetScissor(vk.CommandBuffer, []vk.Rect2D)                          {}
func (d *noopDispatch) CmdPushConstants(vk.CommandBuffer, vk.PipelineLayout, vk.ShaderStageFlags, uint32, []byte) {
}
func (d *noopDispatch) CmdDraw(vk.CommandBuffer, uint32, uint32, uint32, uint32) {}

func (d *noopDispatch) QueueSubmit(vk.Queue, []vk.SubmitInfo, vk.Fence) vk.Result { return vk.Success }
func (d *noopDispatch) CreateTimelineSemaphore(uint64) (vk.Semaphore, vk.Result) {
	return vk.Semaphore(d.handle()), vk.Success
}
func (d *noopDispatch) DestroySemaphore(vk.Semaphore)                         {}
func (d *noopDispatch) SignalSemaphoreValue(vk.Semaphore, uint64) vk.Result   { return vk.Success }
func (d *noopDispatch) GetSemaphoreCounterValue(vk.Semaphore) (uint64, vk.Result) { return 0, vk.Success }

func (d *noopDispatch) AllocateCommandBuffer(vk.CommandPool) (vk.CommandBuffer, vk.Result) {
	return vk.CommandBuffer(nil), vk.Success
}
func (d *noopDispatch) BeginCommandBuffer(vk.CommandBuffer) vk.Result { return vk.Success }
func (d *noopDispatch) EndCommandBuffer(vk.CommandBuffer) vk.Result   { return vk.Success }
func (d *noopDispatch) FreeCommandBuffer(vk.CommandPool, vk.CommandBuffer) {}

var _ textatlas.Dispatch = (*noopDispatch)(nil)
