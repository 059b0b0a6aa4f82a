package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// TextureFormat enumerates the texel formats understood by the runtime.
// Native formats not listed here can still be used through the VK* handle
// fields on Texture and Swapchain.
type TextureFormat uint32

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatR8Unorm
	TextureFormatR8Snorm
	TextureFormatR8Uint
	TextureFormatR8Sint
	TextureFormatR8G8Unorm
	TextureFormatR8G8Uint
	TextureFormatR16Uint
	TextureFormatR16Sint
	TextureFormatR16Sfloat
	TextureFormatR8G8B8A8Unorm
	TextureFormatR8G8B8A8UnormSrgb
	TextureFormatR8G8B8A8Uint
	TextureFormatB8G8R8A8Unorm
	TextureFormatB8G8R8A8UnormSrgb
	TextureFormatR16G16Sfloat
	TextureFormatR32Uint
	TextureFormatR32Sint
	TextureFormatR32Sfloat
	TextureFormatR16G16B16A16Sfloat
	TextureFormatR32G32Sfloat
	TextureFormatR32G32B32A32Sfloat
	TextureFormatD32Sfloat
	TextureFormatD24UnormS8Uint
	TextureFormatD32SfloatS8Uint
)

func (f TextureFormat) vk() vk.Format {
	switch f {
	case TextureFormatR8Unorm:
		return vk.FormatR8Unorm
	case TextureFormatR8Snorm:
		return vk.FormatR8Snorm
	case TextureFormatR8Uint:
		return vk.FormatR8Uint
	case TextureFormatR8Sint:
		return vk.FormatR8Sint
	case TextureFormatR8G8Unorm:
		return vk.FormatR8g8Unorm
	case TextureFormatR8G8Uint:
		return vk.FormatR8g8Uint
	case TextureFormatR16Uint:
		return vk.FormatR16Uint
	case TextureFormatR16Sint:
		return vk.FormatR16Sint
	case TextureFormatR16Sfloat:
		return vk.FormatR16Sfloat
	case TextureFormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case TextureFormatR8G8B8A8UnormSrgb:
		return vk.FormatR8g8b8a8Srgb
	case TextureFormatR8G8B8A8Uint:
		return vk.FormatR8g8b8a8Uint
	case TextureFormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case TextureFormatB8G8R8A8UnormSrgb:
		return vk.FormatB8g8r8a8Srgb
	case TextureFormatR16G16Sfloat:
		return vk.FormatR16g16Sfloat
	case TextureFormatR32Uint:
		return vk.FormatR32Uint
	case TextureFormatR32Sint:
		return vk.FormatR32Sint
	case TextureFormatR32Sfloat:
		return vk.FormatR32Sfloat
	case TextureFormatR16G16B16A16Sfloat:
		return vk.FormatR16g16b16a16Sfloat
	case TextureFormatR32G32Sfloat:
		return vk.FormatR32g32Sfloat
	case TextureFormatR32G32B32A32Sfloat:
		return vk.FormatR32g32b32a32Sfloat
	case TextureFormatD32Sfloat:
		return vk.FormatD32Sfloat
	case TextureFormatD24UnormS8Uint:
		return vk.FormatD24UnormS8Uint
	case TextureFormatD32SfloatS8Uint:
		return vk.FormatD32SfloatS8Uint
	}
	return vk.FormatUndefined
}

// formatFromVK maps a native surface format back onto the abstract
// enumeration. Unknown formats report TextureFormatUndefined; the native
// value is still usable through the VK handle fields.
func formatFromVK(f vk.Format) TextureFormat {
	switch f {
	case vk.FormatR8g8b8a8Unorm:
		return TextureFormatR8G8B8A8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return TextureFormatR8G8B8A8UnormSrgb
	case vk.FormatB8g8r8a8Unorm:
		return TextureFormatB8G8R8A8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return TextureFormatB8G8R8A8UnormSrgb
	case vk.FormatR16g16b16a16Sfloat:
		return TextureFormatR16G16B16A16Sfloat
	case vk.FormatD32Sfloat:
		return TextureFormatD32Sfloat
	case vk.FormatD24UnormS8Uint:
		return TextureFormatD24UnormS8Uint
	case vk.FormatD32SfloatS8Uint:
		return TextureFormatD32SfloatS8Uint
	}
	return TextureFormatUndefined
}

// PixelSize returns the size of one texel in bytes. Depth/stencil formats
// report the depth aspect size.
func (f TextureFormat) PixelSize() int {
	switch f {
	case TextureFormatR8Unorm, TextureFormatR8Snorm, TextureFormatR8Uint, TextureFormatR8Sint:
		return 1
	case TextureFormatR8G8Unorm, TextureFormatR8G8Uint,
		TextureFormatR16Uint, TextureFormatR16Sint, TextureFormatR16Sfloat:
		return 2
	case TextureFormatR8G8B8A8Unorm, TextureFormatR8G8B8A8UnormSrgb, TextureFormatR8G8B8A8Uint,
		TextureFormatB8G8R8A8Unorm, TextureFormatB8G8R8A8UnormSrgb,
		TextureFormatR16G16Sfloat,
		TextureFormatR32Uint, TextureFormatR32Sint, TextureFormatR32Sfloat,
		TextureFormatD32Sfloat, TextureFormatD24UnormS8Uint:
		return 4
	case TextureFormatR16G16B16A16Sfloat, TextureFormatR32G32Sfloat, TextureFormatD32SfloatS8Uint:
		return 8
	case TextureFormatR32G32B32A32Sfloat:
		return 16
	}
	return 0
}

func (f TextureFormat) HasDepth() bool {
	switch f {
	case TextureFormatD32Sfloat, TextureFormatD24UnormS8Uint, TextureFormatD32SfloatS8Uint:
		return true
	}
	return false
}

func (f TextureFormat) HasStencil() bool {
	switch f {
	case TextureFormatD24UnormS8Uint, TextureFormatD32SfloatS8Uint:
		return true
	}
	return false
}

func (f TextureFormat) IsDepthOrStencil() bool {
	return f.HasDepth() || f.HasStencil()
}

func (f TextureFormat) aspectMask() vk.ImageAspectFlags {
	var flags vk.ImageAspectFlagBits
	if f.IsDepthOrStencil() {
		if f.HasDepth() {
			flags |= vk.ImageAspectDepthBit
		}
		if f.HasStencil() {
			flags |= vk.ImageAspectStencilBit
		}
	} else {
		flags = vk.ImageAspectColorBit
	}
	return vk.ImageAspectFlags(flags)
}

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatUndefined:
		return "Undefined"
	case TextureFormatR8Unorm:
		return "R8Unorm"
	case TextureFormatR8Snorm:
		return "R8Snorm"
	case TextureFormatR8Uint:
		return "R8Uint"
	case TextureFormatR8Sint:
		return "R8Sint"
	case TextureFormatR8G8Unorm:
		return "R8G8Unorm"
	case TextureFormatR8G8Uint:
		return "R8G8Uint"
	case TextureFormatR16Uint:
		return "R16Uint"
	case TextureFormatR16Sint:
		return "R16Sint"
	case TextureFormatR16Sfloat:
		return "R16Sfloat"
	case TextureFormatR8G8B8A8Unorm:
		return "R8G8B8A8Unorm"
	case TextureFormatR8G8B8A8UnormSrgb:
		return "R8G8B8A8UnormSrgb"
	case TextureFormatR8G8B8A8Uint:
		return "R8G8B8A8Uint"
	case TextureFormatB8G8R8A8Unorm:
		return "B8G8R8A8Unorm"
	case TextureFormatB8G8R8A8UnormSrgb:
		return "B8G8R8A8UnormSrgb"
	case TextureFormatR16G16Sfloat:
		return "R16G16Sfloat"
	case TextureFormatR32Uint:
		return "R32Uint"
	case TextureFormatR32Sint:
		return "R32Sint"
	case TextureFormatR32Sfloat:
		return "R32Sfloat"
	case TextureFormatR16G16B16A16Sfloat:
		return "R16G16B16A16Sfloat"
	case TextureFormatR32G32Sfloat:
		return "R32G32Sfloat"
	case TextureFormatR32G32B32A32Sfloat:
		return "R32G32B32A32Sfloat"
	case TextureFormatD32Sfloat:
		return "D32Sfloat"
	case TextureFormatD24UnormS8Uint:
		return "D24UnormS8Uint"
	case TextureFormatD32SfloatS8Uint:
		return "D32SfloatS8Uint"
	}
	return fmt.Sprintf("TextureFormat(%d)", uint32(f))
}
