package vkr

import (
	"fmt"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// Surface wraps a presentable window surface. Surfaces are reference
// counted: every swapchain created against a surface retains it, so the
// surface's native handle stays valid until the last swapchain using it has
// been retired, even if the application releases the surface first.
type Surface struct {
	// VKSurface is the native surface handle
	VKSurface vk.Surface

	instance *Instance
	refs     refCount
}

// CreateSurface creates a surface for a GLFW window. The instance must have
// been created with the extensions reported by
// glfw.Window.GetRequiredInstanceExtensions.
func (i *Instance) CreateSurface(window *glfw.Window) (*Surface, error) {
	ptr, err := window.CreateWindowSurface(i.VKInstance, nil)
	if err != nil {
		return nil, fmt.Errorf("creating window surface: %w", err)
	}
	return i.SurfaceFromPointer(ptr), nil
}

// SurfaceFromPointer wraps a VkSurfaceKHR created by outside code, for
// example by a windowing library other than GLFW. The surface takes
// ownership of the handle.
func (i *Instance) SurfaceFromPointer(ptr uintptr) *Surface {
	return &Surface{
		VKSurface: vk.SurfaceFromPointer(ptr),
		instance:  i,
		refs:      newRefCount(),
	}
}

func (s *Surface) retain() {
	s.refs.retain()
}

// Release drops the caller's reference. The native surface is destroyed
// once no swapchain refers to it anymore.
func (s *Surface) Release() {
	if s.refs.release() {
		vk.DestroySurface(s.instance.VKInstance, s.VKSurface, nil)
		s.VKSurface = vk.NullSurface
	}
}
