package vkr

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// encoderStatePool recycles pass usage trackers across encoders. Trackers
// are returned once their command buffer has been recorded.
type encoderStatePool struct {
	pool sync.Pool
}

func newEncoderStatePool() *encoderStatePool {
	return &encoderStatePool{
		pool: sync.Pool{
			New: func() any { return newUsageTracker() },
		},
	}
}

func (p *encoderStatePool) get() *usageTracker {
	return p.pool.Get().(*usageTracker)
}

func (p *encoderStatePool) put(t *usageTracker) {
	t.reset()
	p.pool.Put(t)
}

// CommandEncoder records work for later submission. Encoders are not safe
// for concurrent use; each goroutine should create its own.
type CommandEncoder struct {
	device   *Device
	commands []command
	trackers []*usageTracker
	passOpen bool
	finished bool
}

// CreateCommandEncoder creates an encoder for recording a command buffer.
func (d *Device) CreateCommandEncoder() *CommandEncoder {
	return &CommandEncoder{device: d}
}

// RenderPassColorAttachment describes one color attachment of a render
// pass. ResolveTarget, when set, receives the multisample resolve.
type RenderPassColorAttachment struct {
	Attachment    *TextureView
	ResolveTarget *TextureView
	LoadOp        LoadOp
	ClearColor    [4]float32
}

// RenderPassDepthStencilAttachment describes the depth/stencil attachment
// of a render pass.
type RenderPassDepthStencilAttachment struct {
	Attachment    *TextureView
	DepthLoadOp   LoadOp
	StencilLoadOp LoadOp
	ClearDepth    float32
	ClearStencil  uint32
}

// RenderPassDescriptor describes the attachments of a render pass. All
// attachments must share one size and sample count.
type RenderPassDescriptor struct {
	ColorAttachments       []RenderPassColorAttachment
	DepthStencilAttachment *RenderPassDepthStencilAttachment
}

// BeginRenderPass begins recording a render pass. Only one pass may be open
// on an encoder at a time, and it must be ended before Finish.
func (e *CommandEncoder) BeginRenderPass(descriptor *RenderPassDescriptor) (*RenderPassEncoder, error) {
	if e.passOpen {
		return nil, fmt.Errorf("a pass is already open on this encoder")
	}
	if len(descriptor.ColorAttachments) == 0 && descriptor.DepthStencilAttachment == nil {
		return nil, fmt.Errorf("render pass requires at least one attachment")
	}
	if len(descriptor.ColorAttachments) > maxColorAttachments {
		return nil, fmt.Errorf("at most %d color attachments are supported; got %d",
			maxColorAttachments, len(descriptor.ColorAttachments))
	}

	tracker := e.device.encoderPool.get()
	e.trackers = append(e.trackers, tracker)

	cmd := cmdBeginRenderPass{
		colors:      make([]renderPassColorInfo, 0, len(descriptor.ColorAttachments)),
		sampleCount: 1,
		tracker:     tracker,
	}
	for _, ca := range descriptor.ColorAttachments {
		tex := ca.Attachment.Texture
		if cmd.width == 0 {
			cmd.width = tex.Descriptor.Width
			cmd.height = tex.Descriptor.Height
			cmd.sampleCount = tex.Descriptor.SampleCount
		} else if cmd.width != tex.Descriptor.Width || cmd.height != tex.Descriptor.Height {
			return nil, fmt.Errorf("render pass attachments disagree on size")
		}
		tracker.textureUsed(tex, TextureUsageOutputAttachment)
		if ca.ResolveTarget != nil {
			tracker.textureUsed(ca.ResolveTarget.Texture, TextureUsageOutputAttachment)
		}
		cmd.colors = append(cmd.colors, renderPassColorInfo{
			view:       ca.Attachment,
			resolve:    ca.ResolveTarget,
			loadOp:     ca.LoadOp,
			clearColor: ca.ClearColor,
		})
	}
	if ds := descriptor.DepthStencilAttachment; ds != nil {
		tex := ds.Attachment.Texture
		if cmd.width == 0 {
			cmd.width = tex.Descriptor.Width
			cmd.height = tex.Descriptor.Height
			cmd.sampleCount = tex.Descriptor.SampleCount
		} else if cmd.width != tex.Descriptor.Width || cmd.height != tex.Descriptor.Height {
			return nil, fmt.Errorf("render pass attachments disagree on size")
		}
		tracker.textureUsed(tex, TextureUsageOutputAttachment)
		cmd.depthStencil = &renderPassDepthStencilInfo{
			view:          ds.Attachment,
			depthLoadOp:   ds.DepthLoadOp,
			stencilLoadOp: ds.StencilLoadOp,
			clearDepth:    ds.ClearDepth,
			clearStencil:  ds.ClearStencil,
		}
	}

	e.commands = append(e.commands, cmd)
	e.passOpen = true
	return &RenderPassEncoder{encoder: e, tracker: tracker}, nil
}

// BeginComputePass begins recording a compute pass.
func (e *CommandEncoder) BeginComputePass() (*ComputePassEncoder, error) {
	if e.passOpen {
		return nil, fmt.Errorf("a pass is already open on this encoder")
	}
	tracker := e.device.encoderPool.get()
	e.trackers = append(e.trackers, tracker)
	e.commands = append(e.commands, cmdBeginComputePass{tracker: tracker})
	e.passOpen = true
	return &ComputePassEncoder{encoder: e, tracker: tracker}, nil
}

// CopyBufferToBuffer records a copy between buffer regions. The source
// needs transfer-src usage and the destination transfer-dst.
func (e *CommandEncoder) CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset, size uint64) error {
	if e.passOpen {
		return fmt.Errorf("copies may not be recorded inside a pass")
	}
	if srcOffset+size > src.Size || dstOffset+size > dst.Size {
		return fmt.Errorf("copy of %d bytes exceeds buffer bounds", size)
	}
	e.commands = append(e.commands, cmdCopyBufferToBuffer{
		src:       src,
		dst:       dst,
		srcOffset: vk.DeviceSize(srcOffset),
		dstOffset: vk.DeviceSize(dstOffset),
		size:      vk.DeviceSize(size),
	})
	return nil
}

// CopyBufferToTexture records an upload from a buffer into a texture
// region.
func (e *CommandEncoder) CopyBufferToTexture(src *Buffer, layout BufferImageCopyLayout, dst TextureCopyView, extent [3]uint32) error {
	if e.passOpen {
		return fmt.Errorf("copies may not be recorded inside a pass")
	}
	e.commands = append(e.commands, cmdCopyBufferToTexture{
		src:    src,
		layout: layout,
		dst:    dst,
		extent: extent,
	})
	return nil
}

// CopyTextureToBuffer records a readback from a texture region into a
// buffer.
func (e *CommandEncoder) CopyTextureToBuffer(src TextureCopyView, dst *Buffer, layout BufferImageCopyLayout, extent [3]uint32) error {
	if e.passOpen {
		return fmt.Errorf("copies may not be recorded inside a pass")
	}
	e.commands = append(e.commands, cmdCopyTextureToBuffer{
		src:    src,
		dst:    dst,
		layout: layout,
		extent: extent,
	})
	return nil
}

// CopyTextureToTexture records a copy between texture regions.
func (e *CommandEncoder) CopyTextureToTexture(src, dst TextureCopyView, extent [3]uint32) error {
	if e.passOpen {
		return fmt.Errorf("copies may not be recorded inside a pass")
	}
	e.commands = append(e.commands, cmdCopyTextureToTexture{
		src:    src,
		dst:    dst,
		extent: extent,
	})
	return nil
}

// Finish seals the encoder and returns the command buffer. The encoder may
// not be used again afterwards.
func (e *CommandEncoder) Finish() (*CommandBuffer, error) {
	if e.passOpen {
		return nil, fmt.Errorf("cannot finish an encoder with an open pass")
	}
	if e.finished {
		return nil, fmt.Errorf("encoder already finished")
	}
	e.finished = true
	return &CommandBuffer{
		device:   e.device,
		commands: e.commands,
		trackers: e.trackers,
	}, nil
}

// RenderPassEncoder records commands within one render pass.
type RenderPassEncoder struct {
	encoder *CommandEncoder
	tracker *usageTracker
	ended   bool
}

// SetPipeline selects the render pipeline for subsequent draws.
func (r *RenderPassEncoder) SetPipeline(pipeline *RenderPipeline) {
	r.encoder.commands = append(r.encoder.commands, cmdSetRenderPipeline{pipeline: pipeline})
}

// SetBindGroup binds a bind group at the given index. Dynamic offsets must
// match the layout's dynamic binding count, in binding order.
func (r *RenderPassEncoder) SetBindGroup(index uint32, group *BindGroup, dynamicOffsets ...uint32) error {
	if err := trackBindGroup(r.tracker, group, dynamicOffsets); err != nil {
		return err
	}
	r.encoder.commands = append(r.encoder.commands, cmdSetBindGroup{
		bindPoint:      vk.PipelineBindPointGraphics,
		index:          index,
		group:          group,
		dynamicOffsets: dynamicOffsets,
	})
	return nil
}

// SetVertexBuffers binds vertex buffers starting at the given slot.
func (r *RenderPassEncoder) SetVertexBuffers(startSlot uint32, buffers []*Buffer, offsets []uint64) error {
	if len(buffers) != len(offsets) {
		return fmt.Errorf("got %d vertex buffers but %d offsets", len(buffers), len(offsets))
	}
	cmd := cmdSetVertexBuffers{
		startSlot: startSlot,
		buffers:   make([]vk.Buffer, len(buffers)),
		offsets:   make([]vk.DeviceSize, len(offsets)),
	}
	for i, b := range buffers {
		r.tracker.bufferUsed(b, BufferUsageVertex)
		cmd.buffers[i] = b.VKBuffer
		cmd.offsets[i] = vk.DeviceSize(offsets[i])
	}
	r.encoder.commands = append(r.encoder.commands, cmd)
	return nil
}

// SetIndexBuffer binds the index buffer for indexed draws.
func (r *RenderPassEncoder) SetIndexBuffer(buffer *Buffer, offset uint64, indexType vk.IndexType) {
	r.tracker.bufferUsed(buffer, BufferUsageIndex)
	r.encoder.commands = append(r.encoder.commands, cmdSetIndexBuffer{
		buffer:    buffer.VKBuffer,
		offset:    vk.DeviceSize(offset),
		indexType: indexType,
	})
}

// SetViewport overrides the full-attachment viewport set at pass begin.
func (r *RenderPassEncoder) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	r.encoder.commands = append(r.encoder.commands, cmdSetViewport{
		viewport: vk.Viewport{X: x, Y: y, Width: width, Height: height, MinDepth: minDepth, MaxDepth: maxDepth},
	})
}

// SetScissor overrides the full-attachment scissor set at pass begin.
func (r *RenderPassEncoder) SetScissor(x, y int32, width, height uint32) {
	r.encoder.commands = append(r.encoder.commands, cmdSetScissor{
		scissor: vk.Rect2D{
			Offset: vk.Offset2D{X: x, Y: y},
			Extent: vk.Extent2D{Width: width, Height: height},
		},
	})
}

// SetBlendConstants sets the blend constant color.
func (r *RenderPassEncoder) SetBlendConstants(color [4]float32) {
	r.encoder.commands = append(r.encoder.commands, cmdSetBlendConstants{color: color})
}

// SetStencilReference sets the stencil reference value.
func (r *RenderPassEncoder) SetStencilReference(reference uint32) {
	r.encoder.commands = append(r.encoder.commands, cmdSetStencilReference{reference: reference})
}

// Draw records a non-indexed draw.
func (r *RenderPassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.encoder.commands = append(r.encoder.commands, cmdDraw{
		vertexCount:   vertexCount,
		instanceCount: instanceCount,
		firstVertex:   firstVertex,
		firstInstance: firstInstance,
	})
}

// DrawIndexed records an indexed draw.
func (r *RenderPassEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.encoder.commands = append(r.encoder.commands, cmdDrawIndexed{
		indexCount:    indexCount,
		instanceCount: instanceCount,
		firstIndex:    firstIndex,
		vertexOffset:  vertexOffset,
		firstInstance: firstInstance,
	})
}

// EndPass closes the render pass and returns control to the encoder.
func (r *RenderPassEncoder) EndPass() {
	if r.ended {
		return
	}
	r.ended = true
	r.encoder.commands = append(r.encoder.commands, cmdEndRenderPass{})
	r.encoder.passOpen = false
}

// ComputePassEncoder records commands within one compute pass.
type ComputePassEncoder struct {
	encoder *CommandEncoder
	tracker *usageTracker
	ended   bool
}

// SetPipeline selects the compute pipeline for subsequent dispatches.
func (c *ComputePassEncoder) SetPipeline(pipeline *ComputePipeline) {
	c.encoder.commands = append(c.encoder.commands, cmdSetComputePipeline{pipeline: pipeline})
}

// SetBindGroup binds a bind group at the given index.
func (c *ComputePassEncoder) SetBindGroup(index uint32, group *BindGroup, dynamicOffsets ...uint32) error {
	if err := trackBindGroup(c.tracker, group, dynamicOffsets); err != nil {
		return err
	}
	c.encoder.commands = append(c.encoder.commands, cmdSetBindGroup{
		bindPoint:      vk.PipelineBindPointCompute,
		index:          index,
		group:          group,
		dynamicOffsets: dynamicOffsets,
	})
	return nil
}

// Dispatch records a compute dispatch.
func (c *ComputePassEncoder) Dispatch(x, y, z uint32) {
	c.encoder.commands = append(c.encoder.commands, cmdDispatch{x: x, y: y, z: z})
}

// EndPass closes the compute pass and returns control to the encoder.
func (c *ComputePassEncoder) EndPass() {
	if c.ended {
		return
	}
	c.ended = true
	c.encoder.commands = append(c.encoder.commands, cmdEndComputePass{})
	c.encoder.passOpen = false
}

// trackBindGroup records the usages a bind group imposes on its resources
// and validates dynamic offsets against the layout.
func trackBindGroup(tracker *usageTracker, group *BindGroup, dynamicOffsets []uint32) error {
	if want := group.layout.dynamicBindingCount(); len(dynamicOffsets) != want {
		return fmt.Errorf("bind group expects %d dynamic offsets; got %d", want, len(dynamicOffsets))
	}
	for i, b := range group.buffers {
		tracker.bufferUsed(b, group.bufferUsages[i])
	}
	for _, v := range group.views {
		tracker.textureUsed(v.Texture, TextureUsageSampled)
	}
	return nil
}
