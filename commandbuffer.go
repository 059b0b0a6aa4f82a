package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// CommandBuffer holds recorded commands awaiting submission. A command
// buffer may be submitted once; submission replays its commands into the
// device's pending native command buffer.
type CommandBuffer struct {
	device   *Device
	commands []command
	trackers []*usageTracker
	consumed bool
}

// recordState carries the bindings that commands resolve against during
// replay.
type recordState struct {
	renderPipeline  *RenderPipeline
	computePipeline *ComputePipeline
}

// recordLocked replays the recorded commands into cb, resolving pass usage
// transitions and render pass objects as it goes. Caller holds the device
// lock.
func (b *CommandBuffer) recordLocked(cb vk.CommandBuffer) error {
	if b.consumed {
		return fmt.Errorf("command buffer already submitted")
	}
	b.consumed = true

	d := b.device
	var state recordState

	for _, c := range b.commands {
		switch cmd := c.(type) {
		case cmdBeginRenderPass:
			if err := d.beginRenderPassLocked(cb, cmd); err != nil {
				return err
			}

		case cmdEndRenderPass:
			vk.CmdEndRenderPass(cb)

		case cmdBeginComputePass:
			if err := cmd.tracker.transitionAllLocked(cb); err != nil {
				return err
			}

		case cmdEndComputePass:
			// nothing to end natively

		case cmdSetRenderPipeline:
			state.renderPipeline = cmd.pipeline
			vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, cmd.pipeline.VKPipeline)

		case cmdSetComputePipeline:
			state.computePipeline = cmd.pipeline
			vk.CmdBindPipeline(cb, vk.PipelineBindPointCompute, cmd.pipeline.VKPipeline)

		case cmdSetBindGroup:
			var layout vk.PipelineLayout
			switch cmd.bindPoint {
			case vk.PipelineBindPointGraphics:
				if state.renderPipeline == nil {
					return fmt.Errorf("bind group set before a render pipeline")
				}
				layout = state.renderPipeline.layout.VKPipelineLayout
			case vk.PipelineBindPointCompute:
				if state.computePipeline == nil {
					return fmt.Errorf("bind group set before a compute pipeline")
				}
				layout = state.computePipeline.layout.VKPipelineLayout
			}
			vk.CmdBindDescriptorSets(cb, cmd.bindPoint, layout, cmd.index,
				1, []vk.DescriptorSet{cmd.group.VKDescriptorSet},
				uint32(len(cmd.dynamicOffsets)), cmd.dynamicOffsets)

		case cmdSetVertexBuffers:
			vk.CmdBindVertexBuffers(cb, cmd.startSlot, uint32(len(cmd.buffers)), cmd.buffers, cmd.offsets)

		case cmdSetIndexBuffer:
			vk.CmdBindIndexBuffer(cb, cmd.buffer, cmd.offset, cmd.indexType)

		case cmdSetViewport:
			vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{cmd.viewport})

		case cmdSetScissor:
			vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{cmd.scissor})

		case cmdSetBlendConstants:
			vk.CmdSetBlendConstants(cb, &cmd.color)

		case cmdSetStencilReference:
			vk.CmdSetStencilReference(cb, vk.StencilFaceFlags(vk.StencilFrontAndBack), cmd.reference)

		case cmdDraw:
			vk.CmdDraw(cb, cmd.vertexCount, cmd.instanceCount, cmd.firstVertex, cmd.firstInstance)

		case cmdDrawIndexed:
			vk.CmdDrawIndexed(cb, cmd.indexCount, cmd.instanceCount, cmd.firstIndex, cmd.vertexOffset, cmd.firstInstance)

		case cmdDispatch:
			vk.CmdDispatch(cb, cmd.x, cmd.y, cmd.z)

		case cmdCopyBufferToBuffer:
			if err := cmd.src.transitionUsageLocked(cb, BufferUsageTransferSrc); err != nil {
				return err
			}
			if err := cmd.dst.transitionUsageLocked(cb, BufferUsageTransferDst); err != nil {
				return err
			}
			vk.CmdCopyBuffer(cb, cmd.src.VKBuffer, cmd.dst.VKBuffer, 1, []vk.BufferCopy{{
				SrcOffset: cmd.srcOffset,
				DstOffset: cmd.dstOffset,
				Size:      cmd.size,
			}})

		case cmdCopyBufferToTexture:
			if err := cmd.src.transitionUsageLocked(cb, BufferUsageTransferSrc); err != nil {
				return err
			}
			if err := cmd.dst.Texture.transitionUsageLocked(cb, TextureUsageTransferDst); err != nil {
				return err
			}
			vk.CmdCopyBufferToImage(cb, cmd.src.VKBuffer, cmd.dst.Texture.VKImage,
				vkImageLayout(TextureUsageTransferDst, cmd.dst.Texture.Descriptor.Format),
				1, []vk.BufferImageCopy{bufferImageCopy(cmd.layout, cmd.dst, cmd.extent)})

		case cmdCopyTextureToBuffer:
			if err := cmd.src.Texture.transitionUsageLocked(cb, TextureUsageTransferSrc); err != nil {
				return err
			}
			if err := cmd.dst.transitionUsageLocked(cb, BufferUsageTransferDst); err != nil {
				return err
			}
			vk.CmdCopyImageToBuffer(cb, cmd.src.Texture.VKImage,
				vkImageLayout(TextureUsageTransferSrc, cmd.src.Texture.Descriptor.Format),
				cmd.dst.VKBuffer,
				1, []vk.BufferImageCopy{bufferImageCopy(cmd.layout, cmd.src, cmd.extent)})

		case cmdCopyTextureToTexture:
			if err := cmd.src.Texture.transitionUsageLocked(cb, TextureUsageTransferSrc); err != nil {
				return err
			}
			if err := cmd.dst.Texture.transitionUsageLocked(cb, TextureUsageTransferDst); err != nil {
				return err
			}
			vk.CmdCopyImage(cb,
				cmd.src.Texture.VKImage, vkImageLayout(TextureUsageTransferSrc, cmd.src.Texture.Descriptor.Format),
				cmd.dst.Texture.VKImage, vkImageLayout(TextureUsageTransferDst, cmd.dst.Texture.Descriptor.Format),
				1, []vk.ImageCopy{{
					SrcSubresource: subresourceLayers(cmd.src),
					SrcOffset:      vk.Offset3D{X: cmd.src.Origin[0], Y: cmd.src.Origin[1], Z: cmd.src.Origin[2]},
					DstSubresource: subresourceLayers(cmd.dst),
					DstOffset:      vk.Offset3D{X: cmd.dst.Origin[0], Y: cmd.dst.Origin[1], Z: cmd.dst.Origin[2]},
					Extent:         vk.Extent3D{Width: cmd.extent[0], Height: cmd.extent[1], Depth: cmd.extent[2]},
				}})
		}
	}

	for _, t := range b.trackers {
		d.encoderPool.put(t)
	}
	b.trackers = nil
	b.commands = nil
	return nil
}

// beginRenderPassLocked transitions the pass resources, resolves the cached
// render pass, creates a transient framebuffer, and begins the native pass
// with full-attachment dynamic state.
func (d *Device) beginRenderPassLocked(cb vk.CommandBuffer, cmd cmdBeginRenderPass) error {
	if err := cmd.tracker.transitionAllLocked(cb); err != nil {
		return err
	}

	key := renderPassKey{
		colorCount:  len(cmd.colors),
		sampleCount: cmd.sampleCount,
	}
	for i, color := range cmd.colors {
		key.colors[i] = colorAttachmentKey{
			format:     color.view.Format,
			loadOp:     color.loadOp,
			hasResolve: color.resolve != nil,
		}
	}
	if cmd.depthStencil != nil {
		key.hasDepthStencil = true
		key.depthStencil = depthStencilAttachmentKey{
			format:        cmd.depthStencil.view.Format,
			depthLoadOp:   cmd.depthStencil.depthLoadOp,
			stencilLoadOp: cmd.depthStencil.stencilLoadOp,
		}
	}

	renderPass, err := d.renderPasses.getLocked(key)
	if err != nil {
		return err
	}

	// Attachment order must mirror the cached pass: colors, then resolve
	// targets, then depth/stencil.
	var views []vk.ImageView
	var clearValues []vk.ClearValue
	for _, color := range cmd.colors {
		views = append(views, color.view.VKImageView)
		var cv vk.ClearValue
		cv.SetColor(color.clearColor[:])
		clearValues = append(clearValues, cv)
	}
	for _, color := range cmd.colors {
		if color.resolve == nil {
			continue
		}
		views = append(views, color.resolve.VKImageView)
		clearValues = append(clearValues, vk.ClearValue{})
	}
	if cmd.depthStencil != nil {
		views = append(views, cmd.depthStencil.view.VKImageView)
		var cv vk.ClearValue
		cv.SetDepthStencil(cmd.depthStencil.clearDepth, cmd.depthStencil.clearStencil)
		clearValues = append(clearValues, cv)
	}

	var framebuffer vk.Framebuffer
	res := vk.CreateFramebuffer(d.VKDevice, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           cmd.width,
		Height:          cmd.height,
		Layers:          1,
	}, nil, &framebuffer)
	if err := vk.Error(res); err != nil {
		return fmt.Errorf("creating framebuffer: %w", err)
	}
	// Framebuffers are transient and live only as long as this submission.
	d.deleter.deleteFramebuffer(framebuffer, d.nextPendingSerial())

	vk.CmdBeginRenderPass(cb, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: cmd.width, Height: cmd.height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)

	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{{
		Width:    float32(cmd.width),
		Height:   float32(cmd.height),
		MaxDepth: 1.0,
	}})
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{{
		Extent: vk.Extent2D{Width: cmd.width, Height: cmd.height},
	}})
	vk.CmdSetBlendConstants(cb, &[4]float32{})
	vk.CmdSetStencilReference(cb, vk.StencilFaceFlags(vk.StencilFrontAndBack), 0)
	return nil
}

func subresourceLayers(view TextureCopyView) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     view.Texture.Descriptor.Format.aspectMask(),
		MipLevel:       view.MipLevel,
		BaseArrayLayer: view.BaseArrayLayer,
		LayerCount:     view.layerCount(),
	}
}

func bufferImageCopy(layout BufferImageCopyLayout, view TextureCopyView, extent [3]uint32) vk.BufferImageCopy {
	return vk.BufferImageCopy{
		BufferOffset:      layout.Offset,
		BufferRowLength:   layout.RowLength,
		BufferImageHeight: layout.ImageHeight,
		ImageSubresource:  subresourceLayers(view),
		ImageOffset:       vk.Offset3D{X: view.Origin[0], Y: view.Origin[1], Z: view.Origin[2]},
		ImageExtent:       vk.Extent3D{Width: extent[0], Height: extent[1], Depth: extent[2]},
	}
}
