package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ShaderStage is a bitset of pipeline stages a binding is visible to.
type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 1 << 0
	ShaderStageFragment ShaderStage = 1 << 1
	ShaderStageCompute  ShaderStage = 1 << 2
)

func (s ShaderStage) vk() vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	if s&ShaderStageCompute != 0 {
		flags |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(flags)
}

// BindingType enumerates what kind of resource a binding slot holds.
type BindingType uint32

const (
	BindingTypeUniformBuffer BindingType = iota
	BindingTypeStorageBuffer
	BindingTypeDynamicUniformBuffer
	BindingTypeDynamicStorageBuffer
	BindingTypeSampledTexture
	BindingTypeSampler
)

func (t BindingType) vk() vk.DescriptorType {
	switch t {
	case BindingTypeUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case BindingTypeStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case BindingTypeDynamicUniformBuffer:
		return vk.DescriptorTypeUniformBufferDynamic
	case BindingTypeDynamicStorageBuffer:
		return vk.DescriptorTypeStorageBufferDynamic
	case BindingTypeSampledTexture:
		return vk.DescriptorTypeSampledImage
	case BindingTypeSampler:
		return vk.DescriptorTypeSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func (t BindingType) isDynamic() bool {
	return t == BindingTypeDynamicUniformBuffer || t == BindingTypeDynamicStorageBuffer
}

func (t BindingType) isBuffer() bool {
	switch t {
	case BindingTypeUniformBuffer, BindingTypeStorageBuffer,
		BindingTypeDynamicUniformBuffer, BindingTypeDynamicStorageBuffer:
		return true
	}
	return false
}

// bufferUsage is the usage a pass transitions a bound buffer to.
func (t BindingType) bufferUsage() BufferUsage {
	switch t {
	case BindingTypeStorageBuffer, BindingTypeDynamicStorageBuffer:
		return BufferUsageStorage
	}
	return BufferUsageUniform
}

// BindGroupLayoutBinding declares one slot of a bind group layout.
type BindGroupLayoutBinding struct {
	Binding    uint32
	Visibility ShaderStage
	Type       BindingType
}

// BindGroupLayoutDescriptor describes a bind group layout to create.
type BindGroupLayoutDescriptor struct {
	Bindings []BindGroupLayoutBinding
}

// BindGroupLayout describes the shape of a bind group and anchors pipeline
// layout compatibility.
type BindGroupLayout struct {
	// VKDescriptorSetLayout is the native layout handle
	VKDescriptorSetLayout vk.DescriptorSetLayout

	device   *Device
	bindings []BindGroupLayoutBinding
	refs     refCount
}

// CreateBindGroupLayout creates a bind group layout.
func (d *Device) CreateBindGroupLayout(descriptor *BindGroupLayoutDescriptor) (*BindGroupLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(descriptor.Bindings))
	for i, b := range descriptor.Bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type.vk(),
			DescriptorCount: 1,
			StageFlags:      b.Visibility.vk(),
		}
	}

	var layout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(d.VKDevice, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &layout)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating bind group layout: %w", err)
	}

	return &BindGroupLayout{
		VKDescriptorSetLayout: layout,
		device:                d,
		bindings:              append([]BindGroupLayoutBinding(nil), descriptor.Bindings...),
		refs:                  newRefCount(),
	}, nil
}

// dynamicBindingCount is the number of dynamic buffer slots, which is the
// number of dynamic offsets a SetBindGroup call must supply.
func (l *BindGroupLayout) dynamicBindingCount() int {
	n := 0
	for _, b := range l.bindings {
		if b.Type.isDynamic() {
			n++
		}
	}
	return n
}

// Retain adds a reference.
func (l *BindGroupLayout) Retain() {
	l.refs.retain()
}

// Release drops the caller's reference, scheduling the native layout into
// the fenced deleter on the last one.
func (l *BindGroupLayout) Release() {
	if !l.refs.release() {
		return
	}
	d := l.device
	d.mu.Lock()
	d.deleter.deleteDescriptorSetLayout(l.VKDescriptorSetLayout, d.nextPendingSerial())
	d.mu.Unlock()
	l.VKDescriptorSetLayout = vk.NullDescriptorSetLayout
}

// BindingResource is the resource bound into one slot. Exactly one of
// Buffer, TextureView, or Sampler must be set, matching the slot's type in
// the layout.
type BindingResource struct {
	Buffer       *Buffer
	BufferOffset uint64
	// BufferSize of zero binds from BufferOffset to the end of the buffer.
	// Dynamic bindings treat it as the window size visible per offset.
	BufferSize uint64

	TextureView *TextureView

	Sampler *Sampler
}

// BindGroupBinding assigns a resource to a layout slot.
type BindGroupBinding struct {
	Binding  uint32
	Resource BindingResource
}

// BindGroupDescriptor describes a bind group to create.
type BindGroupDescriptor struct {
	Layout   *BindGroupLayout
	Bindings []BindGroupBinding
}

// BindGroup is an immutable set of resources matching a layout. The group
// retains every bound resource and its layout, so binding a group keeps
// everything it references alive.
type BindGroup struct {
	// VKDescriptorSet is the native descriptor set handle
	VKDescriptorSet vk.DescriptorSet

	device *Device
	pool   vk.DescriptorPool
	layout *BindGroupLayout

	// retained resources, released with the group
	buffers  []*Buffer
	views    []*TextureView
	samplers []*Sampler

	// per-buffer target usages resolved from the layout, consulted by pass
	// usage tracking
	bufferUsages []BufferUsage

	refs refCount
}

// CreateBindGroup creates a bind group. Each group allocates its own
// descriptor pool sized exactly for its layout; the pool is scheduled into
// the fenced deleter with the group, freeing the set with it.
func (d *Device) CreateBindGroup(descriptor *BindGroupDescriptor) (*BindGroup, error) {
	layout := descriptor.Layout
	if len(descriptor.Bindings) != len(layout.bindings) {
		return nil, fmt.Errorf("bind group has %d bindings; layout requires %d",
			len(descriptor.Bindings), len(layout.bindings))
	}

	typeCounts := make(map[vk.DescriptorType]uint32)
	for _, b := range layout.bindings {
		typeCounts[b.Type.vk()]++
	}
	poolSizes := make([]vk.DescriptorPoolSize, 0, len(typeCounts))
	for dtype, count := range typeCounts {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{Type: dtype, DescriptorCount: count})
	}

	var pool vk.DescriptorPool
	res := vk.CreateDescriptorPool(d.VKDevice, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}, nil, &pool)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating descriptor pool: %w", err)
	}

	var set vk.DescriptorSet
	res = vk.AllocateDescriptorSets(d.VKDevice, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.VKDescriptorSetLayout},
	}, &set)
	if err := vk.Error(res); err != nil {
		vk.DestroyDescriptorPool(d.VKDevice, pool, nil)
		if res == vk.ErrorOutOfPoolMemory {
			return nil, ErrOutOfPoolSpace
		}
		return nil, fmt.Errorf("allocating descriptor set: %w", err)
	}

	group := &BindGroup{
		VKDescriptorSet: set,
		device:          d,
		pool:            pool,
		layout:          layout,
		refs:            newRefCount(),
	}

	// fail unwinds the retains taken so far before reporting a bad binding.
	fail := func(err error) (*BindGroup, error) {
		for _, b := range group.buffers {
			b.Release()
		}
		for _, v := range group.views {
			v.Release()
		}
		for _, s := range group.samplers {
			s.Release()
		}
		vk.DestroyDescriptorPool(d.VKDevice, pool, nil)
		return nil, err
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(descriptor.Bindings))
	for _, binding := range descriptor.Bindings {
		slot, ok := layout.slot(binding.Binding)
		if !ok {
			return fail(fmt.Errorf("binding %d not present in layout", binding.Binding))
		}

		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      binding.Binding,
			DescriptorCount: 1,
			DescriptorType:  slot.Type.vk(),
		}

		switch {
		case slot.Type.isBuffer():
			buffer := binding.Resource.Buffer
			if buffer == nil {
				return fail(fmt.Errorf("binding %d requires a buffer", binding.Binding))
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{
				buffer.descriptorInfo(binding.Resource.BufferOffset, binding.Resource.BufferSize),
			}
			buffer.Retain()
			group.buffers = append(group.buffers, buffer)
			group.bufferUsages = append(group.bufferUsages, slot.Type.bufferUsage())
		case slot.Type == BindingTypeSampledTexture:
			view := binding.Resource.TextureView
			if view == nil {
				return fail(fmt.Errorf("binding %d requires a texture view", binding.Binding))
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				ImageView:   view.VKImageView,
				ImageLayout: vkImageLayout(TextureUsageSampled, view.Format),
			}}
			view.Retain()
			group.views = append(group.views, view)
		case slot.Type == BindingTypeSampler:
			sampler := binding.Resource.Sampler
			if sampler == nil {
				return fail(fmt.Errorf("binding %d requires a sampler", binding.Binding))
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler: sampler.VKSampler,
			}}
			sampler.Retain()
			group.samplers = append(group.samplers, sampler)
		}

		writes = append(writes, write)
	}

	vk.UpdateDescriptorSets(d.VKDevice, uint32(len(writes)), writes, 0, nil)

	layout.Retain()
	return group, nil
}

func (l *BindGroupLayout) slot(binding uint32) (BindGroupLayoutBinding, bool) {
	for _, b := range l.bindings {
		if b.Binding == binding {
			return b, true
		}
	}
	return BindGroupLayoutBinding{}, false
}

// Retain adds a reference.
func (g *BindGroup) Retain() {
	g.refs.retain()
}

// Release drops the caller's reference. The last release schedules the
// descriptor pool into the fenced deleter and releases every retained
// resource.
func (g *BindGroup) Release() {
	if !g.refs.release() {
		return
	}
	d := g.device
	d.mu.Lock()
	d.deleter.deleteDescriptorPool(g.pool, d.nextPendingSerial())
	d.mu.Unlock()
	g.pool = vk.NullDescriptorPool
	g.VKDescriptorSet = vk.NullDescriptorSet

	g.layout.Release()
	for _, b := range g.buffers {
		b.Release()
	}
	for _, v := range g.views {
		v.Release()
	}
	for _, s := range g.samplers {
		s.Release()
	}
	g.buffers, g.views, g.samplers = nil, nil, nil
}
