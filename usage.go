package vkr

import (
	vk "github.com/vulkan-go/vulkan"
)

// BufferUsage describes how a buffer is accessed. Usages combine with
// bitwise-or; the device tracks the last usage of every buffer and inserts
// barriers when a new usage is incompatible with it.
type BufferUsage uint32

const (
	BufferUsageNone        BufferUsage = 0
	BufferUsageMapRead     BufferUsage = 1 << 0
	BufferUsageMapWrite    BufferUsage = 1 << 1
	BufferUsageTransferSrc BufferUsage = 1 << 2
	BufferUsageTransferDst BufferUsage = 1 << 3
	BufferUsageIndex       BufferUsage = 1 << 4
	BufferUsageVertex      BufferUsage = 1 << 5
	BufferUsageUniform     BufferUsage = 1 << 6
	BufferUsageStorage     BufferUsage = 1 << 7
	BufferUsageIndirect    BufferUsage = 1 << 8
)

// TextureUsage describes how a texture is accessed. A texture's usage also
// determines its image layout, so usage transitions may imply a layout
// change.
type TextureUsage uint32

const (
	TextureUsageNone             TextureUsage = 0
	TextureUsageTransferSrc      TextureUsage = 1 << 0
	TextureUsageTransferDst      TextureUsage = 1 << 1
	TextureUsageSampled          TextureUsage = 1 << 2
	TextureUsageStorage          TextureUsage = 1 << 3
	TextureUsageOutputAttachment TextureUsage = 1 << 4
	TextureUsagePresent          TextureUsage = 1 << 5
)

func readOnlyBufferUsages() BufferUsage {
	return BufferUsageMapRead | BufferUsageTransferSrc | BufferUsageIndex |
		BufferUsageVertex | BufferUsageUniform | BufferUsageIndirect
}

func readOnlyTextureUsages() TextureUsage {
	return TextureUsageTransferSrc | TextureUsageSampled | TextureUsagePresent
}

// vkBufferUsageFlags maps abstract buffer usages onto native create flags.
func vkBufferUsageFlags(usage BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if usage&BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	if usage&BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if usage&BufferUsageIndirect != 0 {
		flags |= vk.BufferUsageIndirectBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

// vkBufferMemoryProperties selects the memory properties backing a buffer.
// Mappable buffers need host-visible memory; everything else prefers device
// local.
func vkBufferMemoryProperties(usage BufferUsage) vk.MemoryPropertyFlagBits {
	if usage&(BufferUsageMapRead|BufferUsageMapWrite) != 0 {
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

func vkBufferPipelineStage(usage BufferUsage) vk.PipelineStageFlags {
	if usage == BufferUsageNone {
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	var flags vk.PipelineStageFlagBits
	if usage&(BufferUsageMapRead|BufferUsageMapWrite) != 0 {
		flags |= vk.PipelineStageHostBit
	}
	if usage&(BufferUsageTransferSrc|BufferUsageTransferDst) != 0 {
		flags |= vk.PipelineStageTransferBit
	}
	if usage&(BufferUsageIndex|BufferUsageVertex|BufferUsageIndirect) != 0 {
		flags |= vk.PipelineStageVertexInputBit
	}
	if usage&(BufferUsageUniform|BufferUsageStorage) != 0 {
		flags |= vk.PipelineStageVertexShaderBit |
			vk.PipelineStageFragmentShaderBit |
			vk.PipelineStageComputeShaderBit
	}
	return vk.PipelineStageFlags(flags)
}

func vkBufferAccessFlags(usage BufferUsage) vk.AccessFlags {
	var flags vk.AccessFlagBits
	if usage&BufferUsageMapRead != 0 {
		flags |= vk.AccessHostReadBit
	}
	if usage&BufferUsageMapWrite != 0 {
		flags |= vk.AccessHostWriteBit
	}
	if usage&BufferUsageTransferSrc != 0 {
		flags |= vk.AccessTransferReadBit
	}
	if usage&BufferUsageTransferDst != 0 {
		flags |= vk.AccessTransferWriteBit
	}
	if usage&BufferUsageIndex != 0 {
		flags |= vk.AccessIndexReadBit
	}
	if usage&BufferUsageVertex != 0 {
		flags |= vk.AccessVertexAttributeReadBit
	}
	if usage&BufferUsageUniform != 0 {
		flags |= vk.AccessUniformReadBit
	}
	if usage&BufferUsageStorage != 0 {
		flags |= vk.AccessShaderReadBit | vk.AccessShaderWriteBit
	}
	if usage&BufferUsageIndirect != 0 {
		flags |= vk.AccessIndirectCommandReadBit
	}
	return vk.AccessFlags(flags)
}

func vkTextureUsageFlags(usage TextureUsage, format TextureFormat) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if usage&TextureUsageTransferSrc != 0 {
		flags |= vk.ImageUsageTransferSrcBit
	}
	if usage&TextureUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if usage&TextureUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if usage&TextureUsageStorage != 0 {
		flags |= vk.ImageUsageStorageBit
	}
	if usage&TextureUsageOutputAttachment != 0 {
		if format.IsDepthOrStencil() {
			flags |= vk.ImageUsageDepthStencilAttachmentBit
		} else {
			flags |= vk.ImageUsageColorAttachmentBit
		}
	}
	return vk.ImageUsageFlags(flags)
}

func vkTexturePipelineStage(usage TextureUsage, format TextureFormat) vk.PipelineStageFlags {
	if usage == TextureUsageNone {
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	var flags vk.PipelineStageFlagBits
	if usage&(TextureUsageTransferSrc|TextureUsageTransferDst) != 0 {
		flags |= vk.PipelineStageTransferBit
	}
	if usage&(TextureUsageSampled|TextureUsageStorage) != 0 {
		flags |= vk.PipelineStageVertexShaderBit |
			vk.PipelineStageFragmentShaderBit |
			vk.PipelineStageComputeShaderBit
	}
	if usage&TextureUsageOutputAttachment != 0 {
		if format.IsDepthOrStencil() {
			flags |= vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
		} else {
			flags |= vk.PipelineStageColorAttachmentOutputBit
		}
	}
	if usage&TextureUsagePresent != 0 {
		flags |= vk.PipelineStageBottomOfPipeBit
	}
	return vk.PipelineStageFlags(flags)
}

func vkTextureAccessFlags(usage TextureUsage, format TextureFormat) vk.AccessFlags {
	var flags vk.AccessFlagBits
	if usage&TextureUsageTransferSrc != 0 {
		flags |= vk.AccessTransferReadBit
	}
	if usage&TextureUsageTransferDst != 0 {
		flags |= vk.AccessTransferWriteBit
	}
	if usage&TextureUsageSampled != 0 {
		flags |= vk.AccessShaderReadBit
	}
	if usage&TextureUsageStorage != 0 {
		flags |= vk.AccessShaderReadBit | vk.AccessShaderWriteBit
	}
	if usage&TextureUsageOutputAttachment != 0 {
		if format.IsDepthOrStencil() {
			flags |= vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit
		} else {
			flags |= vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit
		}
	}
	// Present requires no access mask; availability is handled by the
	// presentation engine.
	return vk.AccessFlags(flags)
}

// vkImageLayout returns the layout implied by a usage. Multiple simultaneous
// usages require the general layout.
func vkImageLayout(usage TextureUsage, format TextureFormat) vk.ImageLayout {
	if usage == TextureUsageNone {
		return vk.ImageLayoutUndefined
	}
	if usage&(usage-1) != 0 {
		return vk.ImageLayoutGeneral
	}
	switch usage {
	case TextureUsageTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case TextureUsageSampled:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case TextureUsageTransferSrc, TextureUsageStorage:
		return vk.ImageLayoutGeneral
	case TextureUsageOutputAttachment:
		if format.IsDepthOrStencil() {
			return vk.ImageLayoutDepthStencilAttachmentOptimal
		}
		return vk.ImageLayoutColorAttachmentOptimal
	case TextureUsagePresent:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutGeneral
}

// bufferTransition describes the barrier required to move a buffer from one
// usage to another.
type bufferTransition struct {
	srcStage  vk.PipelineStageFlags
	dstStage  vk.PipelineStageFlags
	srcAccess vk.AccessFlags
	dstAccess vk.AccessFlags
}

// bufferTransitionFor decides whether moving from last to next requires a
// barrier. Read-only usages that are already covered by the previous usage
// need nothing: concurrent reads never serialize against each other. Writes
// are never elided, even when the usage is unchanged, because a second write
// must still be ordered after the first.
func bufferTransitionFor(last, next BufferUsage) (bufferTransition, bool) {
	lastIncludesNext := last&next == next
	lastReadOnly := last&readOnlyBufferUsages() == last
	if lastIncludesNext && lastReadOnly && last != BufferUsageNone {
		return bufferTransition{}, false
	}
	// source side from the old usage, destination side from the new one
	return bufferTransition{
		srcStage:  vkBufferPipelineStage(last),
		dstStage:  vkBufferPipelineStage(next),
		srcAccess: vkBufferAccessFlags(last),
		dstAccess: vkBufferAccessFlags(next),
	}, true
}

// textureTransition describes the barrier and layout change required to move
// a texture from one usage to another.
type textureTransition struct {
	srcStage  vk.PipelineStageFlags
	dstStage  vk.PipelineStageFlags
	srcAccess vk.AccessFlags
	dstAccess vk.AccessFlags
	oldLayout vk.ImageLayout
	newLayout vk.ImageLayout
}

// textureTransitionFor decides whether moving from last to next requires a
// barrier. Unlike buffers, a texture's layout depends on its full usage set,
// so only an exactly repeated read-only usage can be skipped.
func textureTransitionFor(last, next TextureUsage, format TextureFormat) (textureTransition, bool) {
	lastReadOnly := last&readOnlyTextureUsages() == last
	if lastReadOnly && last == next && last != TextureUsageNone {
		return textureTransition{}, false
	}
	return textureTransition{
		srcStage:  vkTexturePipelineStage(last, format),
		dstStage:  vkTexturePipelineStage(next, format),
		srcAccess: vkTextureAccessFlags(last, format),
		dstAccess: vkTextureAccessFlags(next, format),
		oldLayout: vkImageLayout(last, format),
		newLayout: vkImageLayout(next, format),
	}, true
}
