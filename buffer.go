package vkr

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// setSubDataMaxSize bounds inline buffer updates; larger uploads go through
// a staging buffer copy.
const setSubDataMaxSize = 65536

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Size  uint64
	Usage BufferUsage
}

// Buffer is a GPU buffer with automatic usage tracking. Every operation
// touching the buffer declares its intended usage; the device compares it
// with the buffer's last usage and records the minimal barrier required.
type Buffer struct {
	// Device is the device this buffer was created on
	Device *Device
	// VKBuffer is the native buffer handle
	VKBuffer vk.Buffer
	// Size is the buffer's size in bytes
	Size uint64
	// Usage is the full set of usages the buffer was created with
	Usage BufferUsage

	memory *memoryAllocation

	usageMu   sync.Mutex
	lastUsage BufferUsage

	refs refCount
}

// CreateBuffer creates a buffer and binds device memory to it. Memory is
// host-visible when the usage includes MapRead or MapWrite, device-local
// otherwise.
func (d *Device) CreateBuffer(descriptor *BufferDescriptor) (*Buffer, error) {
	if descriptor.Size == 0 {
		return nil, fmt.Errorf("buffer size must be greater than zero")
	}

	var buffer vk.Buffer
	res := vk.CreateBuffer(d.VKDevice, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(descriptor.Size),
		Usage:       vkBufferUsageFlags(descriptor.Usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating buffer: %w", err)
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.VKDevice, buffer, &memoryRequirements)
	memoryRequirements.Deref()

	memory, err := d.allocator.allocate(memoryRequirements, vkBufferMemoryProperties(descriptor.Usage))
	if err != nil {
		vk.DestroyBuffer(d.VKDevice, buffer, nil)
		return nil, fmt.Errorf("allocating buffer memory: %w", err)
	}

	res = vk.BindBufferMemory(d.VKDevice, buffer, memory.VKDeviceMemory, vk.DeviceSize(memory.Offset))
	if err := vk.Error(res); err != nil {
		vk.DestroyBuffer(d.VKDevice, buffer, nil)
		d.allocator.free(memory)
		return nil, fmt.Errorf("binding buffer memory: %w", err)
	}

	return &Buffer{
		Device:   d,
		VKBuffer: buffer,
		Size:     descriptor.Size,
		Usage:    descriptor.Usage,
		memory:   memory,
		refs:     newRefCount(),
	}, nil
}

// CreateBufferMapped creates a buffer with MapWrite usage added and returns
// its mapped bytes alongside it, so initial data can be written without a
// staging copy.
func (d *Device) CreateBufferMapped(descriptor *BufferDescriptor) (*Buffer, []byte, error) {
	desc := *descriptor
	desc.Usage |= BufferUsageMapWrite
	buffer, err := d.CreateBuffer(&desc)
	if err != nil {
		return nil, nil, err
	}
	return buffer, buffer.memory.Bytes()[:buffer.Size], nil
}

// Retain adds a reference.
func (b *Buffer) Retain() {
	b.refs.retain()
}

// Release drops the caller's reference. When the last reference is gone the
// native buffer and its memory are scheduled into the fenced deleter; they
// are destroyed only once the GPU can no longer reference them.
func (b *Buffer) Release() {
	if !b.refs.release() {
		return
	}
	d := b.Device
	d.mu.Lock()
	d.deleter.deleteBuffer(b.VKBuffer, b.memory, d.nextPendingSerial())
	d.mu.Unlock()
	b.VKBuffer = vk.NullBuffer
	b.memory = nil
}

// transitionUsageLocked records the barrier needed to use the buffer as
// usage, updating the tracked last usage. The device lock must be held; cb
// is the device's pending command buffer. The first use records the usage
// with no barrier since nothing prior can conflict.
func (b *Buffer) transitionUsageLocked(cb vk.CommandBuffer, usage BufferUsage) error {
	if usage&b.Usage != usage {
		return fmt.Errorf("buffer usage %#x not in created usage %#x", usage, b.Usage)
	}

	b.usageMu.Lock()
	defer b.usageMu.Unlock()

	if b.lastUsage == BufferUsageNone {
		b.lastUsage = usage
		return nil
	}

	t, needed := bufferTransitionFor(b.lastUsage, usage)
	if !needed {
		return nil
	}

	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       t.srcAccess,
		DstAccessMask:       t.dstAccess,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              b.VKBuffer,
		Offset:              0,
		Size:                vk.DeviceSize(b.Size),
	}

	vk.CmdPipelineBarrier(cb, t.srcStage, t.dstStage, 0,
		0, nil,
		1, []vk.BufferMemoryBarrier{barrier},
		0, nil)

	b.lastUsage = usage
	return nil
}

// MapRead returns the buffer's bytes for reading. The buffer must have been
// created with MapRead usage, and the caller must ensure all GPU writes to
// it have completed, typically by waiting on a Fence.
func (b *Buffer) MapRead() ([]byte, error) {
	if b.Usage&BufferUsageMapRead == 0 {
		return nil, fmt.Errorf("buffer was not created with MapRead usage")
	}
	return b.memory.Bytes()[:b.Size], nil
}

// MapWrite returns the buffer's bytes for writing. The buffer must have
// been created with MapWrite usage. The memory is host-coherent; no
// explicit flush is required.
func (b *Buffer) MapWrite() ([]byte, error) {
	if b.Usage&BufferUsageMapWrite == 0 {
		return nil, fmt.Errorf("buffer was not created with MapWrite usage")
	}
	return b.memory.Bytes()[:b.Size], nil
}

// SetSubData writes up to 64KiB of data into the buffer inline in the
// pending command buffer. The buffer must have TransferDst usage. Larger
// uploads should go through a mapped staging buffer and an encoder copy.
func (b *Buffer) SetSubData(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) > setSubDataMaxSize {
		return fmt.Errorf("SetSubData is limited to %d bytes; got %d", setSubDataMaxSize, len(data))
	}
	if len(data)%4 != 0 || offset%4 != 0 {
		return fmt.Errorf("SetSubData offset and size must be multiples of 4")
	}
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("SetSubData range [%d, %d) exceeds buffer size %d", offset, offset+uint64(len(data)), b.Size)
	}

	d := b.Device
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, err := d.getPendingCommandsLocked()
	if err != nil {
		return err
	}
	if err := b.transitionUsageLocked(cb, BufferUsageTransferDst); err != nil {
		return err
	}
	vk.CmdUpdateBuffer(cb, b.VKBuffer, vk.DeviceSize(offset), vk.DeviceSize(len(data)), (*uint32)(unsafe.Pointer(&data[0])))
	return nil
}

// descriptorInfo describes the buffer (or a range of it) for binding.
func (b *Buffer) descriptorInfo(offset, size uint64) vk.DescriptorBufferInfo {
	if size == 0 {
		size = b.Size - offset
	}
	return vk.DescriptorBufferInfo{
		Buffer: b.VKBuffer,
		Offset: vk.DeviceSize(offset),
		Range:  vk.DeviceSize(size),
	}
}
