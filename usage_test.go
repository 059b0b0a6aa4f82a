package vkr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestBufferTransitionRepeatedReadSkipped(t *testing.T) {
	_, needed := bufferTransitionFor(BufferUsageVertex, BufferUsageVertex)
	assert.False(t, needed, "an idempotent read-only usage needs no barrier")

	_, needed = bufferTransitionFor(BufferUsageVertex|BufferUsageIndex, BufferUsageIndex)
	assert.False(t, needed, "a read-only subset of the previous usage needs no barrier")
}

func TestBufferTransitionWriteNeverElided(t *testing.T) {
	_, needed := bufferTransitionFor(BufferUsageTransferDst, BufferUsageTransferDst)
	assert.True(t, needed, "back-to-back writes must still be ordered")

	_, needed = bufferTransitionFor(BufferUsageStorage, BufferUsageStorage)
	assert.True(t, needed)
}

func TestBufferTransitionFirstUse(t *testing.T) {
	tr, needed := bufferTransitionFor(BufferUsageNone, BufferUsageVertex)
	require.True(t, needed)
	assert.Equal(t, vkBufferPipelineStage(BufferUsageNone), tr.srcStage)
	assert.Equal(t, vkBufferPipelineStage(BufferUsageVertex), tr.dstStage)
}

func TestBufferTransitionReadToWrite(t *testing.T) {
	tr, needed := bufferTransitionFor(BufferUsageVertex, BufferUsageTransferDst)
	require.True(t, needed)
	assert.Equal(t, vkBufferAccessFlags(BufferUsageVertex), tr.srcAccess)
	assert.Equal(t, vkBufferAccessFlags(BufferUsageTransferDst), tr.dstAccess)
}

func TestTextureTransitionRepeatedReadSkipped(t *testing.T) {
	_, needed := textureTransitionFor(TextureUsageSampled, TextureUsageSampled, TextureFormatR8G8B8A8Unorm)
	assert.False(t, needed)
}

func TestTextureTransitionSubsetNotSkipped(t *testing.T) {
	// A read-only subset still transitions: the image layout depends on the
	// full usage set, and a combined usage sits in the general layout while
	// sampled-only uses the read-only optimal one.
	tr, needed := textureTransitionFor(TextureUsageSampled|TextureUsageTransferSrc,
		TextureUsageSampled, TextureFormatR8G8B8A8Unorm)
	require.True(t, needed)
	assert.Equal(t, vk.ImageLayoutGeneral, tr.oldLayout)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, tr.newLayout)
}

func TestTextureTransitionStageMasksAreDirectional(t *testing.T) {
	// The source stage must come from the old usage and the destination
	// stage from the new one. A transfer-dst to sampled transition blocks
	// shader reads on the transfer stage, not transfers on transfers.
	tr, needed := textureTransitionFor(TextureUsageTransferDst, TextureUsageSampled, TextureFormatR8G8B8A8Unorm)
	require.True(t, needed)
	assert.Equal(t, vkTexturePipelineStage(TextureUsageTransferDst, TextureFormatR8G8B8A8Unorm), tr.srcStage)
	assert.Equal(t, vkTexturePipelineStage(TextureUsageSampled, TextureFormatR8G8B8A8Unorm), tr.dstStage)
	assert.NotEqual(t, tr.srcStage, tr.dstStage)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, tr.oldLayout)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, tr.newLayout)
}

func TestTextureFirstUseTransitionsFromUndefined(t *testing.T) {
	tr, needed := textureTransitionFor(TextureUsageNone, TextureUsageOutputAttachment, TextureFormatR8G8B8A8Unorm)
	require.True(t, needed, "a first use must leave the undefined layout")
	assert.Equal(t, vk.ImageLayoutUndefined, tr.oldLayout)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, tr.newLayout)
}

func TestPresentedTextureTransitionKeepsContents(t *testing.T) {
	// A reacquired swapchain image still carries Present usage, so the
	// next transition leaves the present-source layout rather than an
	// undefined one that would discard the image's contents.
	tr, needed := textureTransitionFor(TextureUsagePresent, TextureUsageOutputAttachment, TextureFormatB8G8R8A8Unorm)
	require.True(t, needed)
	assert.Equal(t, vk.ImageLayoutPresentSrc, tr.oldLayout)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, tr.newLayout)
}

func TestImageLayoutForUsage(t *testing.T) {
	assert.Equal(t, vk.ImageLayoutPresentSrc,
		vkImageLayout(TextureUsagePresent, TextureFormatB8G8R8A8Unorm))
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal,
		vkImageLayout(TextureUsageOutputAttachment, TextureFormatD32SfloatS8Uint))
	assert.Equal(t, vk.ImageLayoutGeneral,
		vkImageLayout(TextureUsageStorage, TextureFormatR8G8B8A8Unorm))
	assert.Equal(t, vk.ImageLayoutUndefined,
		vkImageLayout(TextureUsageNone, TextureFormatR8G8B8A8Unorm))
}
