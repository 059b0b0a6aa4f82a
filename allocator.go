package vkr

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// defaultBlockSize is the size of each pooled device memory block.
// Resources larger than this get a dedicated allocation.
const defaultBlockSize = 16 * 1024 * 1024

func makeAlignUp(a uint64, align uint64) uint64 {
	m := a % align
	if m == 0 {
		return a
	}
	return (a - m) + align
}

// span is a live sub-allocation within a memory block, kept sorted by
// offset.
type span struct {
	Offset uint64
	Size   uint64
}

func (s *span) String() string {
	return fmt.Sprintf("[%d %d]", s.Offset, s.Size)
}

// spanList allocates first-fit out of a fixed region. Candidate positions
// are the region start, the gaps between neighboring spans, and the tail.
type spanList struct {
	Size  uint64
	spans []*span
}

func (p *spanList) Free(fa *span) {
	fi := -1
	for i, a := range p.spans {
		if a == fa {
			fi = i
		}
	}
	if fi != -1 {
		p.spans = append(p.spans[:fi], p.spans[fi+1:]...)
	}
}

func (p *spanList) Allocate(size uint64, align uint64) *span {
	if len(p.spans) == 0 {
		if size > p.Size {
			return nil
		}
		na := &span{Offset: 0, Size: size}
		p.spans = append(p.spans, na)
		return na
	}

	if p.spans[0].Offset >= size {
		na := &span{Offset: 0, Size: size}
		p.spans = append([]*span{na}, p.spans...)
		return na
	}

	for i := 0; i+1 < len(p.spans); i++ {
		c := p.spans[i]
		n := p.spans[i+1]

		l := makeAlignUp(c.Offset+c.Size, align)
		if n.Offset >= l && n.Offset-l >= size {
			na := &span{Offset: l, Size: size}
			p.spans = append(p.spans[:i+1], append([]*span{na}, p.spans[i+1:]...)...)
			return na
		}
	}

	last := p.spans[len(p.spans)-1]
	nl := makeAlignUp(last.Offset+last.Size, align)
	if nl <= p.Size && p.Size-nl >= size {
		na := &span{Offset: nl, Size: size}
		p.spans = append(p.spans, na)
		return na
	}
	return nil
}

func (p *spanList) Empty() bool {
	return len(p.spans) == 0
}

func (p *spanList) String() string {
	return fmt.Sprintf("%v", p.spans)
}

// memoryBlock is one native device memory allocation shared by many
// resources. Host-visible blocks stay persistently mapped for their
// lifetime.
type memoryBlock struct {
	memory    vk.DeviceMemory
	typeIndex uint32
	ptr       unsafe.Pointer
	spans     spanList
}

// memoryAllocation is the backing memory of a single buffer or image. It
// either points into a shared block or owns a dedicated native allocation.
type memoryAllocation struct {
	// VKDeviceMemory is the native memory object backing the resource
	VKDeviceMemory vk.DeviceMemory
	// Offset is the resource's offset within VKDeviceMemory
	Offset uint64
	// Size is the allocated size, which may exceed the requested size due
	// to alignment
	Size uint64

	// Ptr addresses the allocation's bytes when the memory is
	// host-visible, nil otherwise
	Ptr unsafe.Pointer

	block *memoryBlock
	sp    *span
}

// Bytes returns the mapped bytes of a host-visible allocation.
func (m *memoryAllocation) Bytes() []byte {
	if m.Ptr == nil {
		return nil
	}
	return ToBytes(m.Ptr, int(m.Size))
}

// deviceAllocator pools device memory by memory type. Allocation happens at
// resource creation; freeing happens from the fenced deleter once the GPU is
// done with the resource, so a freed span can be reused immediately.
type deviceAllocator struct {
	device    *Device
	blockSize uint64

	mu     sync.Mutex
	blocks map[uint32][]*memoryBlock
}

func newDeviceAllocator(device *Device) *deviceAllocator {
	return &deviceAllocator{
		device:    device,
		blockSize: defaultBlockSize,
		blocks:    make(map[uint32][]*memoryBlock),
	}
}

func (a *deviceAllocator) allocate(req vk.MemoryRequirements, props vk.MemoryPropertyFlagBits) (*memoryAllocation, error) {
	typeIndex, err := a.device.Adapter.FindMemoryType(req.MemoryTypeBits, props)
	if err != nil {
		return nil, err
	}

	size := uint64(req.Size)
	align := uint64(req.Alignment)
	hostVisible := props&vk.MemoryPropertyHostVisibleBit != 0

	if size > a.blockSize {
		return a.allocateDedicated(typeIndex, size, hostVisible)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, block := range a.blocks[typeIndex] {
		if sp := block.spans.Allocate(size, align); sp != nil {
			return a.wrap(block, sp), nil
		}
	}

	block, err := a.newBlock(typeIndex, hostVisible)
	if err != nil {
		return nil, err
	}
	a.blocks[typeIndex] = append(a.blocks[typeIndex], block)

	sp := block.spans.Allocate(size, align)
	if sp == nil {
		return nil, fmt.Errorf("allocation of %d bytes does not fit a fresh block", size)
	}
	return a.wrap(block, sp), nil
}

func (a *deviceAllocator) wrap(block *memoryBlock, sp *span) *memoryAllocation {
	m := &memoryAllocation{
		VKDeviceMemory: block.memory,
		Offset:         sp.Offset,
		Size:           sp.Size,
		block:          block,
		sp:             sp,
	}
	if block.ptr != nil {
		m.Ptr = unsafe.Add(block.ptr, sp.Offset)
	}
	return m
}

func (a *deviceAllocator) newBlock(typeIndex uint32, hostVisible bool) (*memoryBlock, error) {
	var memory vk.DeviceMemory
	res := vk.AllocateMemory(a.device.VKDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(a.blockSize),
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("allocating memory block: %w", err)
	}

	block := &memoryBlock{
		memory:    memory,
		typeIndex: typeIndex,
		spans:     spanList{Size: a.blockSize},
	}

	if hostVisible {
		var ptr unsafe.Pointer
		res := vk.MapMemory(a.device.VKDevice, memory, 0, vk.DeviceSize(a.blockSize), 0, &ptr)
		if err := vk.Error(res); err != nil {
			vk.FreeMemory(a.device.VKDevice, memory, nil)
			return nil, fmt.Errorf("mapping memory block: %w", err)
		}
		block.ptr = ptr
	}

	return block, nil
}

func (a *deviceAllocator) allocateDedicated(typeIndex uint32, size uint64, hostVisible bool) (*memoryAllocation, error) {
	var memory vk.DeviceMemory
	res := vk.AllocateMemory(a.device.VKDevice, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("allocating dedicated memory: %w", err)
	}

	m := &memoryAllocation{
		VKDeviceMemory: memory,
		Offset:         0,
		Size:           size,
	}

	if hostVisible {
		var ptr unsafe.Pointer
		res := vk.MapMemory(a.device.VKDevice, memory, 0, vk.DeviceSize(size), 0, &ptr)
		if err := vk.Error(res); err != nil {
			vk.FreeMemory(a.device.VKDevice, memory, nil)
			return nil, fmt.Errorf("mapping dedicated memory: %w", err)
		}
		m.Ptr = ptr
	}

	return m, nil
}

func (a *deviceAllocator) free(m *memoryAllocation) {
	if m == nil {
		return
	}
	if m.block == nil {
		vk.FreeMemory(a.device.VKDevice, m.VKDeviceMemory, nil)
		return
	}
	a.mu.Lock()
	m.block.spans.Free(m.sp)
	a.mu.Unlock()
}

// destroy frees all pooled blocks. Every sub-allocation must have been
// freed first, which the device guarantees by draining the fenced deleter
// before teardown.
func (a *deviceAllocator) destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for typeIndex, blocks := range a.blocks {
		for _, block := range blocks {
			if !block.spans.Empty() {
				Logger().Warn("destroying memory block with live allocations",
					"memoryType", typeIndex, "spans", block.spans.String())
			}
			vk.FreeMemory(a.device.VKDevice, block.memory, nil)
		}
	}
	a.blocks = make(map[uint32][]*memoryBlock)
}
