package vkr

import (
	"fmt"
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// Queue is the device's single submission queue. All recorded command
// buffers funnel through it into the pending native command buffer, and
// presentation goes through it as well.
type Queue struct {
	Device      *Device
	QueueFamily *QueueFamily
	VKQueue     vk.Queue
}

func (q *Queue) String() string {
	return fmt.Sprintf("{Device: %s QueueFamily: %s}", q.Device, q.QueueFamily)
}

// Submit records the given command buffers into the device's pending native
// command buffer and submits it. Resource usage transitions recorded by the
// encoders are resolved here, under the device lock, in submission order.
func (q *Queue) Submit(commandBuffers ...*CommandBuffer) error {
	d := q.Device

	if err := d.Tick(); err != nil {
		return err
	}

	if len(commandBuffers) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cb, err := d.getPendingCommandsLocked()
	if err != nil {
		return err
	}
	for _, commandBuffer := range commandBuffers {
		if err := commandBuffer.recordLocked(cb); err != nil {
			return err
		}
	}
	return d.submitPendingCommandsLocked()
}

// Present queues the acquired swapchain image for presentation. The image
// is transitioned to its presentable layout and all pending work is
// submitted first, so presentation observes every recorded command.
// ErrSwapchainOutOfDate reports that the swapchain must be recreated.
func (q *Queue) Present(frame *SwapchainImage) error {
	d := q.Device

	d.mu.Lock()
	cb, err := d.getPendingCommandsLocked()
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if err := frame.Texture.transitionUsageLocked(cb, TextureUsagePresent); err != nil {
		d.mu.Unlock()
		return err
	}
	if err := d.submitPendingCommandsLocked(); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	res := vk.QueuePresent(q.VKQueue, &vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{frame.swapchain.VKSwapchain},
		PImageIndices:  []uint32{frame.ImageIndex},
	})
	if res == vk.Suboptimal {
		Logger().Warn("present: suboptimal")
	}
	if err := vkResult(res); err != nil {
		if err == ErrSwapchainOutOfDate {
			return err
		}
		return fmt.Errorf("present: %w", err)
	}

	return d.Tick()
}

// CreateFence creates a fence guarding all work submitted to the queue so
// far, including the pending command buffer. Waiting on the fence
// guarantees that work has completed.
func (q *Queue) CreateFence() *Fence {
	d := q.Device
	d.mu.Lock()
	serial := d.nextPendingSerial()
	d.mu.Unlock()
	return &Fence{device: d, serial: serial}
}

// Fence tracks completion of all work submitted before its creation. It is
// a logical construct over serials, not a native fence.
type Fence struct {
	device *Device
	serial Serial
}

// Reset re-arms the fence to guard all work submitted up to now.
func (f *Fence) Reset() {
	d := f.device
	d.mu.Lock()
	f.serial = d.nextPendingSerial()
	d.mu.Unlock()
}

// Wait polls the device until the guarded work completes or the wall-clock
// timeout expires, in which case it returns ErrTimeout.
func (f *Fence) Wait(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for f.serial > f.device.LastCompletedSerial() {
		if err := f.device.Tick(); err != nil {
			return err
		}
		if f.serial <= f.device.LastCompletedSerial() {
			break
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(100 * time.Microsecond)
	}
	return nil
}
