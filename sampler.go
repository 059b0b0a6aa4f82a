package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// FilterMode selects texel filtering for samplers.
type FilterMode uint32

const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

func (f FilterMode) vk() vk.Filter {
	if f == FilterModeLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func (f FilterMode) vkMipmap() vk.SamplerMipmapMode {
	if f == FilterModeLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

// AddressMode selects coordinate wrapping for samplers.
type AddressMode uint32

const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
	AddressModeMirrorRepeat
)

func (a AddressMode) vk() vk.SamplerAddressMode {
	switch a {
	case AddressModeRepeat:
		return vk.SamplerAddressModeRepeat
	case AddressModeMirrorRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	}
	return vk.SamplerAddressModeClampToEdge
}

// SamplerDescriptor describes a sampler. The zero value is nearest
// filtering with clamp-to-edge addressing.
type SamplerDescriptor struct {
	MagFilter     FilterMode
	MinFilter     FilterMode
	MipmapFilter  FilterMode
	AddressModeU  AddressMode
	AddressModeV  AddressMode
	AddressModeW  AddressMode
	LodMinClamp   float32
	LodMaxClamp   float32
	MaxAnisotropy float32
}

// Sampler configures how shaders sample textures.
type Sampler struct {
	// VKSampler is the native sampler handle
	VKSampler vk.Sampler

	device *Device
	refs   refCount
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(descriptor *SamplerDescriptor) (*Sampler, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    descriptor.MagFilter.vk(),
		MinFilter:    descriptor.MinFilter.vk(),
		MipmapMode:   descriptor.MipmapFilter.vkMipmap(),
		AddressModeU: descriptor.AddressModeU.vk(),
		AddressModeV: descriptor.AddressModeV.vk(),
		AddressModeW: descriptor.AddressModeW.vk(),
		MinLod:       descriptor.LodMinClamp,
		MaxLod:       descriptor.LodMaxClamp,
		BorderColor:  vk.BorderColorFloatTransparentBlack,
	}
	if descriptor.MaxAnisotropy > 1 {
		createInfo.AnisotropyEnable = vk.True
		createInfo.MaxAnisotropy = descriptor.MaxAnisotropy
	}

	var sampler vk.Sampler
	res := vk.CreateSampler(d.VKDevice, &createInfo, nil, &sampler)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating sampler: %w", err)
	}

	return &Sampler{VKSampler: sampler, device: d, refs: newRefCount()}, nil
}

// Retain adds a reference.
func (s *Sampler) Retain() {
	s.refs.retain()
}

// Release drops the caller's reference, scheduling the native sampler into
// the fenced deleter on the last one.
func (s *Sampler) Release() {
	if !s.refs.release() {
		return
	}
	d := s.device
	d.mu.Lock()
	d.deleter.deleteSampler(s.VKSampler, d.nextPendingSerial())
	d.mu.Unlock()
	s.VKSampler = vk.NullSampler
}
