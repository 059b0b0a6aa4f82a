package vkr

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Errors returned for transient operational conditions. These are conditions
// the caller is expected to handle - typically by recreating the swapchain or
// retrying at a higher level - rather than failures of the runtime itself.
var (
	// ErrSwapchainOutOfDate indicates the surface has changed incompatibly
	// (usually a window resize) and the swapchain must be recreated before
	// acquiring or presenting again.
	ErrSwapchainOutOfDate = errors.New("vkr: swapchain out of date")

	// ErrTimeout indicates a wall-clock wait deadline expired before the
	// driver signaled the awaited work complete.
	ErrTimeout = errors.New("vkr: wait timed out")

	// ErrDeviceLost indicates the driver reported the logical device lost;
	// the device and everything created from it must be abandoned.
	ErrDeviceLost = errors.New("vkr: device lost")

	// ErrOutOfPoolSpace indicates a pool allocator could not satisfy an
	// allocation. Allocation failures are propagated, never retried.
	ErrOutOfPoolSpace = errors.New("vkr: insufficient space in resource pool")
)

// vkResult converts a native result into an error, mapping results that have
// a distinguished meaning onto the sentinel errors above. Success and
// Suboptimal map to nil; Suboptimal is a hint, not a failure.
func vkResult(res vk.Result) error {
	switch res {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return ErrSwapchainOutOfDate
	case vk.Timeout:
		return ErrTimeout
	case vk.ErrorDeviceLost:
		return ErrDeviceLost
	default:
		return vk.Error(res)
	}
}

func vkErrorf(res vk.Result, format string, args ...interface{}) error {
	err := vkResult(res)
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
