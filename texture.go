package vkr

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// TextureDescriptor describes a texture to create. Zero values for counts
// default to 1.
type TextureDescriptor struct {
	Width           uint32
	Height          uint32
	Depth           uint32
	ArrayLayerCount uint32
	MipLevelCount   uint32
	SampleCount     uint32
	Format          TextureFormat
	Usage           TextureUsage
}

func (t *TextureDescriptor) withDefaults() TextureDescriptor {
	d := *t
	if d.Depth == 0 {
		d.Depth = 1
	}
	if d.ArrayLayerCount == 0 {
		d.ArrayLayerCount = 1
	}
	if d.MipLevelCount == 0 {
		d.MipLevelCount = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	return d
}

// Texture is a GPU image with automatic usage and layout tracking. Usage
// transitions record both the memory barrier and the image layout change
// they imply.
type Texture struct {
	// Device is the device this texture was created on
	Device *Device
	// VKImage is the native image handle
	VKImage vk.Image
	// Descriptor is the creation descriptor with defaults applied
	Descriptor TextureDescriptor

	// memory is nil for externally owned images (swapchain textures)
	memory   *memoryAllocation
	external bool

	usageMu   sync.Mutex
	lastUsage TextureUsage

	refs refCount
}

// CreateTexture creates a texture and binds device-local memory to it. The
// texture starts untracked; its first use transitions it from the undefined
// layout.
func (d *Device) CreateTexture(descriptor *TextureDescriptor) (*Texture, error) {
	desc := descriptor.withDefaults()

	imageType := vk.ImageType2d
	if desc.Depth > 1 {
		imageType = vk.ImageType3d
	}

	var image vk.Image
	res := vk.CreateImage(d.VKDevice, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Format:    desc.Format.vk(),
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  desc.Depth,
		},
		MipLevels:     desc.MipLevelCount,
		ArrayLayers:   desc.ArrayLayerCount,
		Samples:       vk.SampleCountFlagBits(desc.SampleCount),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vkTextureUsageFlags(desc.Usage, desc.Format),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating image: %w", err)
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.VKDevice, image, &memoryRequirements)
	memoryRequirements.Deref()

	memory, err := d.allocator.allocate(memoryRequirements, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(d.VKDevice, image, nil)
		return nil, fmt.Errorf("allocating image memory: %w", err)
	}

	res = vk.BindImageMemory(d.VKDevice, image, memory.VKDeviceMemory, vk.DeviceSize(memory.Offset))
	if err := vk.Error(res); err != nil {
		vk.DestroyImage(d.VKDevice, image, nil)
		d.allocator.free(memory)
		return nil, fmt.Errorf("binding image memory: %w", err)
	}

	return &Texture{
		Device:     d,
		VKImage:    image,
		Descriptor: desc,
		memory:     memory,
		refs:       newRefCount(),
	}, nil
}

// externalTexture wraps an image whose lifetime is owned elsewhere, such as
// a swapchain image. It is tracked for usage like any other texture but
// Release never destroys the native image.
func (d *Device) externalTexture(image vk.Image, desc TextureDescriptor) *Texture {
	return &Texture{
		Device:     d,
		VKImage:    image,
		Descriptor: desc,
		external:   true,
		refs:       newRefCount(),
	}
}

// Retain adds a reference.
func (t *Texture) Retain() {
	t.refs.retain()
}

// Release drops the caller's reference, scheduling the native image and its
// memory into the fenced deleter on the last one.
func (t *Texture) Release() {
	if !t.refs.release() {
		return
	}
	if t.external {
		return
	}
	d := t.Device
	d.mu.Lock()
	d.deleter.deleteImage(t.VKImage, t.memory, d.nextPendingSerial())
	d.mu.Unlock()
	t.VKImage = vk.NullImage
	t.memory = nil
}

// transitionUsageLocked records the barrier and layout change needed to use
// the texture as usage. The device lock must be held; cb is the pending
// command buffer. The source side of the barrier derives from the last
// usage and the destination side from the new one; a first use transitions
// out of the undefined layout.
func (t *Texture) transitionUsageLocked(cb vk.CommandBuffer, usage TextureUsage) error {
	if usage&t.Descriptor.Usage != usage {
		return fmt.Errorf("texture usage %#x not in created usage %#x", usage, t.Descriptor.Usage)
	}

	t.usageMu.Lock()
	defer t.usageMu.Unlock()

	tr, needed := textureTransitionFor(t.lastUsage, usage, t.Descriptor.Format)
	if !needed {
		return nil
	}

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       tr.srcAccess,
		DstAccessMask:       tr.dstAccess,
		OldLayout:           tr.oldLayout,
		NewLayout:           tr.newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.VKImage,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     t.Descriptor.Format.aspectMask(),
			BaseMipLevel:   0,
			LevelCount:     t.Descriptor.MipLevelCount,
			BaseArrayLayer: 0,
			LayerCount:     t.Descriptor.ArrayLayerCount,
		},
	}

	vk.CmdPipelineBarrier(cb, tr.srcStage, tr.dstStage, 0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier})

	t.lastUsage = usage
	return nil
}

// TextureViewDescriptor describes a view of a texture. The zero value views
// the whole texture in its own format.
type TextureViewDescriptor struct {
	Format          TextureFormat
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// TextureView is a shader- or attachment-visible view of a texture. The
// view retains its texture, so the texture outlives every view of it.
type TextureView struct {
	// VKImageView is the native image view handle
	VKImageView vk.ImageView
	// Texture is the viewed texture
	Texture *Texture
	// Format is the view's format
	Format TextureFormat

	refs refCount
}

// CreateDefaultView creates a view of the entire texture in its own format.
func (t *Texture) CreateDefaultView() (*TextureView, error) {
	return t.CreateView(&TextureViewDescriptor{})
}

// CreateView creates a view of the texture.
func (t *Texture) CreateView(descriptor *TextureViewDescriptor) (*TextureView, error) {
	desc := *descriptor
	if desc.Format == TextureFormatUndefined {
		desc.Format = t.Descriptor.Format
	}
	if desc.MipLevelCount == 0 {
		desc.MipLevelCount = t.Descriptor.MipLevelCount - desc.BaseMipLevel
	}
	if desc.ArrayLayerCount == 0 {
		desc.ArrayLayerCount = t.Descriptor.ArrayLayerCount - desc.BaseArrayLayer
	}

	viewType := vk.ImageViewType2d
	switch {
	case t.Descriptor.Depth > 1:
		viewType = vk.ImageViewType3d
	case desc.ArrayLayerCount > 1:
		viewType = vk.ImageViewType2dArray
	}

	var view vk.ImageView
	res := vk.CreateImageView(t.Device.VKDevice, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.VKImage,
		ViewType: viewType,
		Format:   desc.Format.vk(),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     desc.Format.aspectMask(),
			BaseMipLevel:   desc.BaseMipLevel,
			LevelCount:     desc.MipLevelCount,
			BaseArrayLayer: desc.BaseArrayLayer,
			LayerCount:     desc.ArrayLayerCount,
		},
	}, nil, &view)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating image view: %w", err)
	}

	t.Retain()
	return &TextureView{
		VKImageView: view,
		Texture:     t,
		Format:      desc.Format,
		refs:        newRefCount(),
	}, nil
}

// Retain adds a reference.
func (v *TextureView) Retain() {
	v.refs.retain()
}

// Release drops the caller's reference. The last release schedules the
// native view into the fenced deleter and releases the viewed texture.
func (v *TextureView) Release() {
	if !v.refs.release() {
		return
	}
	d := v.Texture.Device
	d.mu.Lock()
	d.deleter.deleteImageView(v.VKImageView, d.nextPendingSerial())
	d.mu.Unlock()
	v.VKImageView = vk.NullImageView
	v.Texture.Release()
	v.Texture = nil
}
