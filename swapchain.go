package vkr

import (
	"fmt"
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// acquireTimeout bounds one native acquire attempt. Acquire keeps ticking
// the device between attempts so in-flight work retires while waiting.
const acquireTimeout = 100 * time.Millisecond

// SwapchainOptions configure swapchain creation. Width and Height are only
// consulted when the surface does not dictate its own extent.
type SwapchainOptions struct {
	Surface *Surface
	Width   uint32
	Height  uint32

	// Format must be one of the surface's supported formats
	Format TextureFormat
	// Usage defaults to output attachment
	Usage TextureUsage
	// PresentMode falls back to FIFO when unsupported, which is always
	// available
	PresentMode vk.PresentMode

	// OldSwapchain, when set, is consumed: its images may be reused by the
	// driver and it is scheduled for deferred destruction
	OldSwapchain *Swapchain
}

// Swapchain owns the presentable images of a surface. The swapchain holds a
// reference on its surface until the swapchain itself has been destroyed,
// so the surface always outlives it.
type Swapchain struct {
	// VKSwapchain is the native swapchain handle
	VKSwapchain vk.Swapchain

	// Format is the image format of the swapchain textures
	Format TextureFormat
	// Width and Height are the dimensions of the swapchain textures
	Width  uint32
	Height uint32

	device   *Device
	surface  *Surface
	textures []*Texture
	released bool
}

// SwapchainImage is one acquired swapchain texture, valid until presented.
type SwapchainImage struct {
	// Texture wraps the acquired native image
	Texture *Texture
	// ImageIndex is the native index of the image within its swapchain
	ImageIndex uint32

	swapchain *Swapchain
}

// CreateSwapchain creates a swapchain over options.Surface. Pass the
// previous swapchain in options.OldSwapchain when recreating after a
// resize or an ErrSwapchainOutOfDate.
func (d *Device) CreateSwapchain(options *SwapchainOptions) (*Swapchain, error) {
	if options.Surface == nil {
		return nil, fmt.Errorf("swapchain requires a surface")
	}

	caps, err := d.Adapter.GetSurfaceCapabilities(options.Surface)
	if err != nil {
		return nil, fmt.Errorf("querying surface capabilities: %w", err)
	}

	formats, err := d.Adapter.GetSurfaceFormats(options.Surface)
	if err != nil {
		return nil, fmt.Errorf("querying surface formats: %w", err)
	}
	format := options.Format
	var colorSpace vk.ColorSpace
	formatOK := false
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == format.vk() {
			colorSpace = formats[i].ColorSpace
			formatOK = true
			break
		}
	}
	if !formatOK {
		return nil, fmt.Errorf("surface does not support format %s", format)
	}

	usage := options.Usage
	if usage == TextureUsageNone {
		usage = TextureUsageOutputAttachment
	}
	imageUsage := vkTextureUsageFlags(usage, format)
	if imageUsage&caps.SupportedUsageFlags != imageUsage {
		return nil, fmt.Errorf("surface does not support usage %#x", usage)
	}

	presentMode := options.PresentMode
	modes, err := d.Adapter.GetSurfacePresentModes(options.Surface)
	if err != nil {
		return nil, fmt.Errorf("querying surface present modes: %w", err)
	}
	if !modes.Contains(presentMode) {
		// FIFO support is mandated
		presentMode = vk.PresentModeFifo
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount != 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	caps.CurrentExtent.Deref()
	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		// the surface lets the swapchain choose
		caps.MinImageExtent.Deref()
		caps.MaxImageExtent.Deref()
		extent.Width = clampUint32(options.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
		extent.Height = clampUint32(options.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	}

	oldSwapchain := vk.NullSwapchain
	if options.OldSwapchain != nil {
		oldSwapchain = options.OldSwapchain.VKSwapchain
	}

	var swapchain vk.Swapchain
	res := vk.CreateSwapchain(d.VKDevice, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          options.Surface.VKSurface,
		MinImageCount:    imageCount,
		ImageFormat:      format.vk(),
		ImageColorSpace:  colorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       imageUsage,
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}, nil, &swapchain)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating swapchain: %w", err)
	}

	if options.OldSwapchain != nil {
		options.OldSwapchain.Release()
	}

	var count uint32
	if err := vk.Error(vk.GetSwapchainImages(d.VKDevice, swapchain, &count, nil)); err != nil {
		return nil, fmt.Errorf("querying swapchain images: %w", err)
	}
	images := make([]vk.Image, count)
	if err := vk.Error(vk.GetSwapchainImages(d.VKDevice, swapchain, &count, images)); err != nil {
		return nil, fmt.Errorf("querying swapchain images: %w", err)
	}

	textures := make([]*Texture, count)
	for i, image := range images {
		textures[i] = d.externalTexture(image, TextureDescriptor{
			Width:           extent.Width,
			Height:          extent.Height,
			Depth:           1,
			ArrayLayerCount: 1,
			MipLevelCount:   1,
			SampleCount:     1,
			Format:          format,
			Usage:           usage | TextureUsagePresent,
		})
	}

	options.Surface.retain()
	Logger().Debug("swapchain created",
		"width", extent.Width, "height", extent.Height,
		"format", format, "images", count, "presentMode", presentMode)
	return &Swapchain{
		VKSwapchain: swapchain,
		Format:      format,
		Width:       extent.Width,
		Height:      extent.Height,
		device:      d,
		surface:     options.Surface,
		textures:    textures,
	}, nil
}

// AcquireNextImage blocks until a swapchain image is available, returning
// ErrSwapchainOutOfDate when the swapchain no longer matches the surface
// and must be recreated. A previously presented image keeps its contents;
// a first-time image has undefined contents.
func (s *Swapchain) AcquireNextImage() (*SwapchainImage, error) {
	d := s.device

	var semaphore vk.Semaphore
	res := vk.CreateSemaphore(d.VKDevice, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &semaphore)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating acquire semaphore: %w", err)
	}

	var index uint32
	for {
		res = vk.AcquireNextImage(d.VKDevice, s.VKSwapchain,
			uint64(acquireTimeout.Nanoseconds()), semaphore, vk.NullFence, &index)
		if res != vk.Timeout && res != vk.NotReady {
			break
		}
		// keep retiring in-flight work while the driver holds all images
		if err := d.Tick(); err != nil {
			d.mu.Lock()
			d.deleter.deleteSemaphore(semaphore, d.nextPendingSerial())
			d.mu.Unlock()
			return nil, fmt.Errorf("waiting for a swapchain image: %w", err)
		}
	}

	switch res {
	case vk.Success:
	case vk.Suboptimal:
		Logger().Warn("swapchain is suboptimal for its surface")
	default:
		// the semaphore was never waited on; retire it with the deleter
		d.mu.Lock()
		d.deleter.deleteSemaphore(semaphore, d.nextPendingSerial())
		d.mu.Unlock()
		return nil, vkErrorf(res, "acquiring swapchain image")
	}

	// The next submission waits on the acquire semaphore; the submission
	// path hands it to the fenced deleter afterwards.
	d.mu.Lock()
	d.addWaitSemaphoreLocked(semaphore)
	d.mu.Unlock()

	// A reused image keeps its Present usage, so the next transition
	// starts from the presented layout and the image's contents survive
	// for load-preserving render passes.
	texture := s.textures[index]
	return &SwapchainImage{
		Texture:    texture,
		ImageIndex: index,
		swapchain:  s,
	}, nil
}

// Release schedules the swapchain for destruction once all submissions
// that may touch its images complete. The surface reference is dropped
// after the native swapchain is destroyed.
func (s *Swapchain) Release() {
	if s.released {
		return
	}
	s.released = true
	d := s.device
	d.mu.Lock()
	d.deleter.deleteSwapchain(s.VKSwapchain, s.surface, d.nextPendingSerial())
	d.mu.Unlock()
	s.VKSwapchain = vk.NullSwapchain
	s.textures = nil
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
