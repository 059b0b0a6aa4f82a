package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Tick drives the device's submission loop one step:
//
//  1. Reap: poll in-flight fences in submission order, stopping at the
//     first unsignaled one, and advance the last completed serial.
//  2. Recycle: reset command pools and fences belonging to completed
//     submissions back into the unused pools.
//  3. Advance: destroy everything in the fenced deleter whose guard serial
//     has completed. If nothing is pending and the queue has fully caught
//     up, artificially advance both serials one step so work scheduled
//     against the next pending serial (deferred deletions on an idle
//     device) still resolves.
//  4. Submit: hand the pending command buffer, with any accumulated wait
//     semaphores, to the queue under a fresh fence.
//
// Applications with a frame loop call Tick once per frame; Present and
// Fence.Wait also tick internally.
func (d *Device) Tick() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tickLocked()
}

func (d *Device) tickLocked() error {
	if err := d.checkPassedFencesLocked(); err != nil {
		return err
	}
	d.recycleCompletedCommandsLocked()

	if d.pending != nil || len(d.waitSemaphores) > 0 {
		if err := d.submitPendingCommandsLocked(); err != nil {
			return err
		}
	} else if d.lastSubmitted == d.lastCompleted {
		d.lastSubmitted.Increment()
		d.lastCompleted.Increment()
	}

	d.deleter.tick(d.lastCompleted)
	return nil
}

// checkPassedFencesLocked polls fences in FIFO order. Serials complete
// in submission order, so polling stops at the first unsignaled fence even
// if a later one happens to have signaled already.
func (d *Device) checkPassedFencesLocked() error {
	for {
		fence, serial, ok := d.fencesInFlight.First()
		if !ok {
			break
		}
		res := vk.GetFenceStatus(d.VKDevice, fence)
		if res == vk.NotReady {
			break
		}
		if res != vk.Success {
			return vkErrorf(res, "polling fence for %s", serial)
		}
		d.lastCompleted = serial
		d.fencesInFlight.DrainUpTo(serial)
		if err := vk.Error(vk.ResetFences(d.VKDevice, 1, []vk.Fence{fence})); err != nil {
			return fmt.Errorf("resetting fence: %w", err)
		}
		d.unusedFences = append(d.unusedFences, fence)
	}
	return nil
}

// recycleCompletedCommandsLocked resets the command pools of completed
// submissions and returns them to the unused pool.
func (d *Device) recycleCompletedCommandsLocked() {
	for _, item := range d.commandsInFlight.DrainUpTo(d.lastCompleted) {
		vk.ResetCommandPool(d.VKDevice, item.value.pool, 0)
		d.unusedCommands = append(d.unusedCommands, item.value)
	}
}
