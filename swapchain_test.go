package vkr

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

func init() {
	runtime.LockOSThread()
}

// testWindowedDevice creates a device able to present to a hidden window,
// skipping when no display or vulkan implementation is available. The caller
// owns the returned surface reference.
func testWindowedDevice(t *testing.T) (*Device, *Surface) {
	t.Helper()
	if err := glfw.Init(); err != nil {
		t.Skipf("glfw unavailable: %v", err)
	}
	t.Cleanup(glfw.Terminate)
	if !glfw.VulkanSupported() {
		t.Skip("glfw reports no vulkan support")
	}
	if err := InitWithProcAddr(glfw.GetVulkanGetInstanceProcAddress()); err != nil {
		t.Skipf("vulkan loader unavailable: %v", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	window, err := glfw.CreateWindow(320, 240, "vkr-test", nil, nil)
	if err != nil {
		t.Skipf("cannot create window: %v", err)
	}
	t.Cleanup(window.Destroy)

	app := &App{Name: "vkr-test"}
	app.EnabledExtensions = window.GetRequiredInstanceExtensions()
	instance, err := app.CreateInstance()
	if err != nil {
		t.Skipf("cannot create instance: %v", err)
	}

	surface, err := instance.CreateSurface(window)
	require.NoError(t, err)

	adapters, err := instance.Adapters()
	if err != nil || len(adapters) == 0 {
		surface.Release()
		instance.Destroy()
		t.Skip("no vulkan adapters present")
	}

	device, err := adapters[0].CreateDevice(&DeviceOptions{Surface: surface})
	require.NoError(t, err)

	t.Cleanup(func() {
		device.Destroy()
		instance.Destroy()
	})
	return device, surface
}

func testSurfaceFormat(t *testing.T, d *Device, surface *Surface) TextureFormat {
	t.Helper()
	formats, err := d.Adapter.GetSurfaceFormats(surface)
	require.NoError(t, err)
	for _, f := range formats {
		f.Deref()
		if format := formatFromVK(f.Format); format != TextureFormatUndefined {
			return format
		}
	}
	t.Skip("no supported surface format")
	return TextureFormatUndefined
}

func TestSurfaceOutlivesSwapchain(t *testing.T) {
	d, surface := testWindowedDevice(t)

	sc, err := d.CreateSwapchain(&SwapchainOptions{
		Surface: surface,
		Width:   320,
		Height:  240,
		Format:  testSurfaceFormat(t, d, surface),
	})
	require.NoError(t, err)

	// the application drops its reference while the swapchain still
	// presents to the surface
	surface.Release()
	assert.NotEqual(t, vk.NullSurface, surface.VKSurface,
		"the swapchain's reference must keep the surface alive")

	sc.Release()
	require.NoError(t, d.WaitIdle())
	for i := 0; i < 4 && surface.VKSurface != vk.NullSurface; i++ {
		require.NoError(t, d.Tick())
	}
	assert.Equal(t, vk.NullSurface, surface.VKSurface,
		"retiring the swapchain must release its surface reference")
}

func TestReacquiredImageKeepsPresentedUsage(t *testing.T) {
	d, surface := testWindowedDevice(t)
	q := d.Queue()

	sc, err := d.CreateSwapchain(&SwapchainOptions{
		Surface: surface,
		Width:   320,
		Height:  240,
		Format:  testSurfaceFormat(t, d, surface),
	})
	require.NoError(t, err)
	defer func() {
		sc.Release()
		surface.Release()
	}()

	frame, err := sc.AcquireNextImage()
	require.NoError(t, err)
	first := frame.Texture
	require.NoError(t, q.Present(frame))

	// cycle through the image set until the first image comes back
	for i := 0; i < 8; i++ {
		frame, err = sc.AcquireNextImage()
		require.NoError(t, err)
		if frame.Texture == first {
			break
		}
		require.NoError(t, q.Present(frame))
	}
	if frame.Texture != first {
		t.Skip("driver never handed the first image back")
	}

	first.usageMu.Lock()
	last := first.lastUsage
	first.usageMu.Unlock()
	assert.Equal(t, TextureUsagePresent, last,
		"a reacquired image keeps its presented usage so its contents survive a load-preserving pass")

	require.NoError(t, q.Present(frame))
}
