package vkr

import (
	"fmt"
	"runtime"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// DeviceOptions configures logical device creation. The zero value selects
// the first queue family with graphics and compute support and enables the
// swapchain extension when the adapter offers it.
type DeviceOptions struct {
	// EnabledExtensions the device extensions to enable
	EnabledExtensions []string
	// EnabledLayers the device layers to enable
	EnabledLayers []string
	// Surface, when set, restricts queue family selection to families that
	// can present to it
	Surface *Surface
}

// commandRecording is a transient command pool paired with the single
// primary command buffer allocated from it. The device cycles recordings
// between pending, in-flight, and unused.
type commandRecording struct {
	pool   vk.CommandPool
	buffer vk.CommandBuffer
}

// Device owns the single GPU queue and everything scheduled onto it. All
// work recorded anywhere in the runtime funnels into the device's pending
// command buffer and is stamped with a serial at submission; completed
// serials then drive fence recycling and deferred destruction. See Tick.
type Device struct {
	// Adapter is the physical device this device was created from
	Adapter *Adapter
	// VKDevice is the native logical device handle
	VKDevice vk.Device
	// VKQueue is the native queue; all submissions go through it
	VKQueue vk.Queue
	// QueueFamily is the family VKQueue belongs to
	QueueFamily *QueueFamily

	allocator *deviceAllocator

	// mu guards all state below. It is non-reentrant: internal helpers
	// suffixed Locked assume it is held and never take it themselves.
	mu sync.Mutex

	lastSubmitted Serial
	lastCompleted Serial

	deleter      *fencedDeleter
	renderPasses *renderPassCache
	encoderPool  *encoderStatePool

	fencesInFlight   serialQueue[vk.Fence]
	commandsInFlight serialQueue[commandRecording]
	unusedFences     []vk.Fence
	unusedCommands   []commandRecording

	pending        *commandRecording
	waitSemaphores []vk.Semaphore

	destroyed bool
}

// CreateDevice creates a logical device with a single queue. The queue
// family is the first one supporting graphics and compute, and presentation
// to options.Surface when one is given.
func (a *Adapter) CreateDevice(options *DeviceOptions) (*Device, error) {
	if options == nil {
		options = &DeviceOptions{}
	}

	families, err := a.QueueFamilies()
	if err != nil {
		return nil, fmt.Errorf("querying queue families: %w", err)
	}

	candidates := families.FilterGraphics().FilterCompute()
	if options.Surface != nil {
		candidates = candidates.FilterPresent(options.Surface)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("adapter %q has no usable queue family", a.DeviceName)
	}
	family := candidates[0]

	extensions := options.EnabledExtensions
	if supported, err := a.SupportedExtensions(); err == nil {
		for _, name := range supported {
			if name == "VK_KHR_swapchain" && !containsString(extensions, name) {
				extensions = append(extensions, name)
			}
		}
	}

	features := a.VKPhysicalDeviceFeatures()

	createInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(family.Index),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{features},
	}
	if len(extensions) > 0 {
		createInfo.EnabledExtensionCount = uint32(len(extensions))
		createInfo.PpEnabledExtensionNames = safeStrings(extensions)
	}
	if len(options.EnabledLayers) > 0 {
		createInfo.EnabledLayerCount = uint32(len(options.EnabledLayers))
		createInfo.PpEnabledLayerNames = safeStrings(options.EnabledLayers)
	}

	var ldevice vk.Device
	if err := vk.Error(vk.CreateDevice(a.VKPhysicalDevice, &createInfo, nil, &ldevice)); err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}

	device := &Device{
		Adapter:     a,
		VKDevice:    ldevice,
		QueueFamily: family,
	}
	vk.GetDeviceQueue(ldevice, uint32(family.Index), 0, &device.VKQueue)

	device.allocator = newDeviceAllocator(device)
	device.deleter = newFencedDeleter(device)
	device.renderPasses = newRenderPassCache(device)
	device.encoderPool = newEncoderStatePool()

	Logger().Info("device created", "adapter", a.DeviceName, "queueFamily", family.Index)

	return device, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (d *Device) String() string {
	return fmt.Sprintf("{ Adapter: %s }", d.Adapter)
}

// Queue returns the device's queue.
func (d *Device) Queue() *Queue {
	return &Queue{Device: d, QueueFamily: d.QueueFamily, VKQueue: d.VKQueue}
}

// WaitIdle blocks until the GPU has finished all submitted work, then ticks
// so completed serials are observed.
func (d *Device) WaitIdle() error {
	if err := vk.Error(vk.DeviceWaitIdle(d.VKDevice)); err != nil {
		return err
	}
	return d.Tick()
}

// LastCompletedSerial reports the highest serial the driver has confirmed
// finished.
func (d *Device) LastCompletedSerial() Serial {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCompleted
}

// LastSubmittedSerial reports the serial of the most recent submission.
func (d *Device) LastSubmittedSerial() Serial {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSubmitted
}

// nextPendingSerial is the serial the next submission will carry. Anything
// recorded or released now may be referenced by the pending command buffer,
// so deferred destruction is tagged with this value.
func (d *Device) nextPendingSerial() Serial {
	return d.lastSubmitted.Next()
}

// getPendingCommandsLocked returns the command buffer accumulating work for
// the next submission, beginning a recycled or fresh recording on first use.
func (d *Device) getPendingCommandsLocked() (vk.CommandBuffer, error) {
	if d.pending != nil {
		return d.pending.buffer, nil
	}

	var rec commandRecording
	if n := len(d.unusedCommands); n > 0 {
		rec = d.unusedCommands[n-1]
		d.unusedCommands = d.unusedCommands[:n-1]
	} else {
		r, err := d.newCommandRecording()
		if err != nil {
			return nil, err
		}
		rec = r
	}

	res := vk.BeginCommandBuffer(rec.buffer, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := vk.Error(res); err != nil {
		d.unusedCommands = append(d.unusedCommands, rec)
		return nil, fmt.Errorf("beginning command buffer: %w", err)
	}

	d.pending = &rec
	return rec.buffer, nil
}

func (d *Device) newCommandRecording() (commandRecording, error) {
	var pool vk.CommandPool
	res := vk.CreateCommandPool(d.VKDevice, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: uint32(d.QueueFamily.Index),
	}, nil, &pool)
	if err := vk.Error(res); err != nil {
		return commandRecording{}, fmt.Errorf("creating command pool: %w", err)
	}

	buffers := make([]vk.CommandBuffer, 1)
	res = vk.AllocateCommandBuffers(d.VKDevice, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := vk.Error(res); err != nil {
		vk.DestroyCommandPool(d.VKDevice, pool, nil)
		return commandRecording{}, fmt.Errorf("allocating command buffer: %w", err)
	}

	return commandRecording{pool: pool, buffer: buffers[0]}, nil
}

// takePendingLocked removes the pending recording from device state and
// hands ownership to the caller.
func (d *Device) takePendingLocked() (commandRecording, bool) {
	if d.pending == nil {
		return commandRecording{}, false
	}
	rec := *d.pending
	d.pending = nil
	return rec, true
}

// discardRecordingLocked resets a recording that will not be submitted and
// returns it to the unused pool.
func (d *Device) discardRecordingLocked(rec commandRecording) {
	vk.ResetCommandPool(d.VKDevice, rec.pool, 0)
	d.unusedCommands = append(d.unusedCommands, rec)
}

// addWaitSemaphoreLocked queues a semaphore the next submission must wait
// on. Acquired swapchain images hand their semaphores to the device this
// way.
func (d *Device) addWaitSemaphoreLocked(s vk.Semaphore) {
	d.waitSemaphores = append(d.waitSemaphores, s)
}

func (d *Device) getUnusedFenceLocked() (vk.Fence, error) {
	if n := len(d.unusedFences); n > 0 {
		f := d.unusedFences[n-1]
		d.unusedFences = d.unusedFences[:n-1]
		return f, nil
	}
	var fence vk.Fence
	res := vk.CreateFence(d.VKDevice, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &fence)
	if err := vk.Error(res); err != nil {
		return vk.NullFence, fmt.Errorf("creating fence: %w", err)
	}
	return fence, nil
}

// submitPendingCommandsLocked submits the accumulated command buffer with
// every queued wait semaphore and a fresh fence, advancing lastSubmitted.
// A submission with wait semaphores but no recorded commands still goes
// through, so the semaphores are consumed and can be recycled.
func (d *Device) submitPendingCommandsLocked() error {
	if d.pending == nil && len(d.waitSemaphores) == 0 {
		return nil
	}
	if d.pending == nil {
		if _, err := d.getPendingCommandsLocked(); err != nil {
			return err
		}
	}

	// The recording leaves device state before any native call can fail,
	// so a failed submission drops it instead of leaving a half-ended
	// buffer for the next tick to end again.
	rec, ok := d.takePendingLocked()
	if !ok {
		return nil
	}
	if err := vk.Error(vk.EndCommandBuffer(rec.buffer)); err != nil {
		d.discardRecordingLocked(rec)
		return fmt.Errorf("ending command buffer: %w", err)
	}

	fence, err := d.getUnusedFenceLocked()
	if err != nil {
		d.discardRecordingLocked(rec)
		return err
	}

	waits := d.waitSemaphores
	waitStages := make([]vk.PipelineStageFlags, len(waits))
	for i := range waitStages {
		waitStages[i] = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		PWaitDstStageMask:  waitStages,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{rec.buffer},
	}

	res := vk.QueueSubmit(d.VKQueue, 1, []vk.SubmitInfo{submit}, fence)
	if err := vk.Error(res); err != nil {
		d.unusedFences = append(d.unusedFences, fence)
		d.discardRecordingLocked(rec)
		return fmt.Errorf("queue submit: %w", err)
	}

	serial := d.lastSubmitted.Increment()
	d.commandsInFlight.Enqueue(rec, serial)
	d.fencesInFlight.Enqueue(fence, serial)

	// The consumed semaphores become destroyable once this submission
	// completes.
	for _, s := range waits {
		d.deleter.deleteSemaphore(s, serial)
	}
	d.waitSemaphores = nil

	Logger().Debug("submitted pending commands", "serial", serial)
	return nil
}

// Destroy tears the device down. It flushes and waits for all in-flight
// work, drains the fenced deleter, destroys pooled objects and the render
// pass cache, and finally destroys the native device. Errors during
// teardown are logged and suppressed; Destroy itself never fails partway.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true

	if err := d.tickLocked(); err != nil {
		Logger().Error("teardown tick failed", "error", err)
	}
	if err := vk.Error(vk.DeviceWaitIdle(d.VKDevice)); err != nil {
		Logger().Error("teardown wait idle failed", "error", err)
	}

	for !d.fencesInFlight.Empty() {
		if err := d.tickLocked(); err != nil {
			Logger().Error("teardown tick failed", "error", err)
			break
		}
		d.mu.Unlock()
		runtime.Gosched()
		d.mu.Lock()
	}
	defer d.mu.Unlock()

	// Anything scheduled after the last completed submission can no longer
	// be referenced by the GPU once the queue is idle. Force the serials
	// past all pending work so the final deleter pass drains everything.
	d.lastCompleted = d.lastSubmitted
	d.lastSubmitted.Increment()
	d.lastCompleted.Increment()
	d.deleter.tick(d.lastCompleted)
	if !d.deleter.empty() {
		Logger().Error("fenced deleter not empty after teardown drain")
	}

	if d.pending != nil {
		vk.DestroyCommandPool(d.VKDevice, d.pending.pool, nil)
		d.pending = nil
	}
	for _, rec := range d.unusedCommands {
		vk.DestroyCommandPool(d.VKDevice, rec.pool, nil)
	}
	d.unusedCommands = nil
	for _, fence := range d.unusedFences {
		vk.DestroyFence(d.VKDevice, fence, nil)
	}
	d.unusedFences = nil

	d.renderPasses.drain()
	d.allocator.destroy()

	vk.DestroyDevice(d.VKDevice, nil)
	Logger().Info("device destroyed", "adapter", d.Adapter.DeviceName)
}
