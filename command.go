package vkr

import (
	vk "github.com/vulkan-go/vulkan"
)

// command is one recorded encoder operation. Commands are replayed into a
// native command buffer when the owning CommandBuffer is submitted.
type command interface {
	isCommand()
}

// usageTracker accumulates the resource usages of a single pass. All
// transitions for a pass happen before its native render pass begins, since
// layout transitions are not allowed inside one.
type usageTracker struct {
	buffers  map[*Buffer]BufferUsage
	textures map[*Texture]TextureUsage
}

func newUsageTracker() *usageTracker {
	return &usageTracker{
		buffers:  make(map[*Buffer]BufferUsage),
		textures: make(map[*Texture]TextureUsage),
	}
}

func (t *usageTracker) bufferUsed(b *Buffer, usage BufferUsage) {
	t.buffers[b] |= usage
}

func (t *usageTracker) textureUsed(tex *Texture, usage TextureUsage) {
	t.textures[tex] |= usage
}

func (t *usageTracker) reset() {
	clear(t.buffers)
	clear(t.textures)
}

// transitionAllLocked emits the barriers that bring every tracked resource
// into its pass usage. Caller holds the device lock.
func (t *usageTracker) transitionAllLocked(cb vk.CommandBuffer) error {
	for b, usage := range t.buffers {
		if err := b.transitionUsageLocked(cb, usage); err != nil {
			return err
		}
	}
	for tex, usage := range t.textures {
		if err := tex.transitionUsageLocked(cb, usage); err != nil {
			return err
		}
	}
	return nil
}

// renderPassColorInfo captures one color attachment of a recorded pass.
type renderPassColorInfo struct {
	view       *TextureView
	resolve    *TextureView
	loadOp     LoadOp
	clearColor [4]float32
}

type renderPassDepthStencilInfo struct {
	view          *TextureView
	depthLoadOp   LoadOp
	stencilLoadOp LoadOp
	clearDepth    float32
	clearStencil  uint32
}

type cmdBeginRenderPass struct {
	colors       []renderPassColorInfo
	depthStencil *renderPassDepthStencilInfo
	width        uint32
	height       uint32
	sampleCount  uint32
	tracker      *usageTracker
}

type cmdEndRenderPass struct{}

type cmdBeginComputePass struct {
	tracker *usageTracker
}

type cmdEndComputePass struct{}

type cmdSetRenderPipeline struct {
	pipeline *RenderPipeline
}

type cmdSetComputePipeline struct {
	pipeline *ComputePipeline
}

type cmdSetBindGroup struct {
	bindPoint      vk.PipelineBindPoint
	index          uint32
	group          *BindGroup
	dynamicOffsets []uint32
}

type cmdSetVertexBuffers struct {
	startSlot uint32
	buffers   []vk.Buffer
	offsets   []vk.DeviceSize
}

type cmdSetIndexBuffer struct {
	buffer    vk.Buffer
	offset    vk.DeviceSize
	indexType vk.IndexType
}

type cmdSetViewport struct {
	viewport vk.Viewport
}

type cmdSetScissor struct {
	scissor vk.Rect2D
}

type cmdSetBlendConstants struct {
	color [4]float32
}

type cmdSetStencilReference struct {
	reference uint32
}

type cmdDraw struct {
	vertexCount   uint32
	instanceCount uint32
	firstVertex   uint32
	firstInstance uint32
}

type cmdDrawIndexed struct {
	indexCount    uint32
	instanceCount uint32
	firstIndex    uint32
	vertexOffset  int32
	firstInstance uint32
}

type cmdDispatch struct {
	x, y, z uint32
}

type cmdCopyBufferToBuffer struct {
	src       *Buffer
	dst       *Buffer
	srcOffset vk.DeviceSize
	dstOffset vk.DeviceSize
	size      vk.DeviceSize
}

// BufferImageCopyLayout describes how texel rows are laid out in a buffer
// taking part in a buffer/texture copy. Zero RowLength and ImageHeight mean
// tightly packed.
type BufferImageCopyLayout struct {
	Offset      vk.DeviceSize
	RowLength   uint32
	ImageHeight uint32
}

// TextureCopyView selects a mip level, array layer, and origin of a texture
// taking part in a copy.
type TextureCopyView struct {
	Texture        *Texture
	MipLevel       uint32
	BaseArrayLayer uint32
	LayerCount     uint32
	Origin         [3]int32
}

func (v TextureCopyView) layerCount() uint32 {
	if v.LayerCount == 0 {
		return 1
	}
	return v.LayerCount
}

type cmdCopyBufferToTexture struct {
	src    *Buffer
	layout BufferImageCopyLayout
	dst    TextureCopyView
	extent [3]uint32
}

type cmdCopyTextureToBuffer struct {
	src    TextureCopyView
	dst    *Buffer
	layout BufferImageCopyLayout
	extent [3]uint32
}

type cmdCopyTextureToTexture struct {
	src    TextureCopyView
	dst    TextureCopyView
	extent [3]uint32
}

func (cmdBeginRenderPass) isCommand()      {}
func (cmdEndRenderPass) isCommand()        {}
func (cmdBeginComputePass) isCommand()     {}
func (cmdEndComputePass) isCommand()       {}
func (cmdSetRenderPipeline) isCommand()    {}
func (cmdSetComputePipeline) isCommand()   {}
func (cmdSetBindGroup) isCommand()         {}
func (cmdSetVertexBuffers) isCommand()     {}
func (cmdSetIndexBuffer) isCommand()       {}
func (cmdSetViewport) isCommand()          {}
func (cmdSetScissor) isCommand()           {}
func (cmdSetBlendConstants) isCommand()    {}
func (cmdSetStencilReference) isCommand()  {}
func (cmdDraw) isCommand()                 {}
func (cmdDrawIndexed) isCommand()          {}
func (cmdDispatch) isCommand()             {}
func (cmdCopyBufferToBuffer) isCommand()   {}
func (cmdCopyBufferToTexture) isCommand()  {}
func (cmdCopyTextureToBuffer) isCommand()  {}
func (cmdCopyTextureToTexture) isCommand() {}
