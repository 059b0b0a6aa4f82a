package vkr

import (
	vk "github.com/vulkan-go/vulkan"
)

type bufferEntry struct {
	buffer vk.Buffer
	memory *memoryAllocation
}

type imageEntry struct {
	image  vk.Image
	memory *memoryAllocation
}

// swapchainEntry pairs a retired swapchain with the surface it was created
// against. The surface reference is released only after the swapchain is
// destroyed, so the surface handle is guaranteed to outlive it.
type swapchainEntry struct {
	swapchain vk.Swapchain
	surface   *Surface
}

// fencedDeleter destroys native handles only after the GPU has finished
// every submission that may reference them. Handles are enqueued tagged
// with the serial of the next pending submission; each queue drains in
// order as completed serials advance. All methods are called with the
// device lock held.
type fencedDeleter struct {
	device *Device

	semaphores           serialQueue[vk.Semaphore]
	buffers              serialQueue[bufferEntry]
	images               serialQueue[imageEntry]
	imageViews           serialQueue[vk.ImageView]
	samplers             serialQueue[vk.Sampler]
	descriptorSetLayouts serialQueue[vk.DescriptorSetLayout]
	descriptorPools      serialQueue[vk.DescriptorPool]
	commandPools         serialQueue[vk.CommandPool]
	shaderModules        serialQueue[vk.ShaderModule]
	pipelineLayouts      serialQueue[vk.PipelineLayout]
	pipelines            serialQueue[vk.Pipeline]
	framebuffers         serialQueue[vk.Framebuffer]
	swapchains           serialQueue[swapchainEntry]
}

func newFencedDeleter(device *Device) *fencedDeleter {
	return &fencedDeleter{device: device}
}

func (d *fencedDeleter) deleteSemaphore(s vk.Semaphore, after Serial) {
	d.semaphores.Enqueue(s, after)
}

func (d *fencedDeleter) deleteBuffer(b vk.Buffer, m *memoryAllocation, after Serial) {
	d.buffers.Enqueue(bufferEntry{buffer: b, memory: m}, after)
}

func (d *fencedDeleter) deleteImage(i vk.Image, m *memoryAllocation, after Serial) {
	d.images.Enqueue(imageEntry{image: i, memory: m}, after)
}

func (d *fencedDeleter) deleteImageView(v vk.ImageView, after Serial) {
	d.imageViews.Enqueue(v, after)
}

func (d *fencedDeleter) deleteSampler(s vk.Sampler, after Serial) {
	d.samplers.Enqueue(s, after)
}

func (d *fencedDeleter) deleteDescriptorSetLayout(l vk.DescriptorSetLayout, after Serial) {
	d.descriptorSetLayouts.Enqueue(l, after)
}

func (d *fencedDeleter) deleteDescriptorPool(p vk.DescriptorPool, after Serial) {
	d.descriptorPools.Enqueue(p, after)
}

func (d *fencedDeleter) deleteCommandPool(p vk.CommandPool, after Serial) {
	d.commandPools.Enqueue(p, after)
}

func (d *fencedDeleter) deleteShaderModule(m vk.ShaderModule, after Serial) {
	d.shaderModules.Enqueue(m, after)
}

func (d *fencedDeleter) deletePipelineLayout(l vk.PipelineLayout, after Serial) {
	d.pipelineLayouts.Enqueue(l, after)
}

func (d *fencedDeleter) deletePipeline(p vk.Pipeline, after Serial) {
	d.pipelines.Enqueue(p, after)
}

func (d *fencedDeleter) deleteFramebuffer(f vk.Framebuffer, after Serial) {
	d.framebuffers.Enqueue(f, after)
}

func (d *fencedDeleter) deleteSwapchain(s vk.Swapchain, surface *Surface, after Serial) {
	d.swapchains.Enqueue(swapchainEntry{swapchain: s, surface: surface}, after)
}

// tick destroys every handle whose tagged serial has completed.
func (d *fencedDeleter) tick(lastCompleted Serial) {
	dev := d.device.VKDevice

	for _, item := range d.semaphores.DrainUpTo(lastCompleted) {
		vk.DestroySemaphore(dev, item.value, nil)
	}
	for _, item := range d.buffers.DrainUpTo(lastCompleted) {
		vk.DestroyBuffer(dev, item.value.buffer, nil)
		d.device.allocator.free(item.value.memory)
	}
	for _, item := range d.images.DrainUpTo(lastCompleted) {
		vk.DestroyImage(dev, item.value.image, nil)
		d.device.allocator.free(item.value.memory)
	}
	for _, item := range d.imageViews.DrainUpTo(lastCompleted) {
		vk.DestroyImageView(dev, item.value, nil)
	}
	for _, item := range d.samplers.DrainUpTo(lastCompleted) {
		vk.DestroySampler(dev, item.value, nil)
	}
	for _, item := range d.descriptorSetLayouts.DrainUpTo(lastCompleted) {
		vk.DestroyDescriptorSetLayout(dev, item.value, nil)
	}
	for _, item := range d.descriptorPools.DrainUpTo(lastCompleted) {
		vk.DestroyDescriptorPool(dev, item.value, nil)
	}
	for _, item := range d.commandPools.DrainUpTo(lastCompleted) {
		vk.DestroyCommandPool(dev, item.value, nil)
	}
	for _, item := range d.shaderModules.DrainUpTo(lastCompleted) {
		vk.DestroyShaderModule(dev, item.value, nil)
	}
	for _, item := range d.pipelineLayouts.DrainUpTo(lastCompleted) {
		vk.DestroyPipelineLayout(dev, item.value, nil)
	}
	for _, item := range d.pipelines.DrainUpTo(lastCompleted) {
		vk.DestroyPipeline(dev, item.value, nil)
	}
	for _, item := range d.framebuffers.DrainUpTo(lastCompleted) {
		vk.DestroyFramebuffer(dev, item.value, nil)
	}
	for _, item := range d.swapchains.DrainUpTo(lastCompleted) {
		vk.DestroySwapchain(dev, item.value.swapchain, nil)
		item.value.surface.Release()
	}
}

// empty reports whether every queue has drained. The device asserts this
// during teardown after forcing all serials to complete.
func (d *fencedDeleter) empty() bool {
	return d.semaphores.Empty() &&
		d.buffers.Empty() &&
		d.images.Empty() &&
		d.imageViews.Empty() &&
		d.samplers.Empty() &&
		d.descriptorSetLayouts.Empty() &&
		d.descriptorPools.Empty() &&
		d.commandPools.Empty() &&
		d.shaderModules.Empty() &&
		d.pipelineLayouts.Empty() &&
		d.pipelines.Empty() &&
		d.framebuffers.Empty() &&
		d.swapchains.Empty()
}
