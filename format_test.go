package vkr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestFormatRoundTrip(t *testing.T) {
	formats := []TextureFormat{
		TextureFormatR8Unorm,
		TextureFormatR8G8B8A8Unorm,
		TextureFormatB8G8R8A8UnormSrgb,
		TextureFormatR32G32B32A32Sfloat,
		TextureFormatD32Sfloat,
		TextureFormatD24UnormS8Uint,
	}
	for _, f := range formats {
		assert.Equal(t, f, formatFromVK(f.vk()), f.String())
	}
}

func TestFormatDepthStencilProperties(t *testing.T) {
	assert.True(t, TextureFormatD32Sfloat.HasDepth())
	assert.False(t, TextureFormatD32Sfloat.HasStencil())
	assert.True(t, TextureFormatD24UnormS8Uint.HasStencil())
	assert.True(t, TextureFormatD32SfloatS8Uint.IsDepthOrStencil())
	assert.False(t, TextureFormatR8G8B8A8Unorm.IsDepthOrStencil())
}

func TestFormatAspectMask(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		TextureFormatR8G8B8A8Unorm.aspectMask())
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		TextureFormatD32Sfloat.aspectMask())
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit),
		TextureFormatD24UnormS8Uint.aspectMask())
}

func TestFormatPixelSize(t *testing.T) {
	assert.Equal(t, 1, TextureFormatR8Unorm.PixelSize())
	assert.Equal(t, 4, TextureFormatR8G8B8A8Unorm.PixelSize())
	assert.Equal(t, 16, TextureFormatR32G32B32A32Sfloat.PixelSize())
}
