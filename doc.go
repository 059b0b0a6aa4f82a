/*
Package vkr implements an explicit, WebGPU-flavored GPU API on top of the
Vulkan graphics framework for go. Vulkan is a very powerful graphics and
compute framework but at a cost - the application is responsible for
sequencing synchronization primitives, placing memory barriers, and keeping
every object alive until the GPU has finished using it. Getting any of this
wrong tends to produce crashes or corruption which are very difficult to
debug.

This package takes over exactly that bookkeeping. Callers allocate buffers
and textures, build pipelines, record work into command encoders, submit and
present - and never touch a fence, semaphore or pipeline barrier directly.

How it works

Every submission to the single device queue is stamped with a Serial, a
strictly increasing logical clock. The device remembers the last serial it
submitted and the last serial the driver reported complete. Those two values
order everything else:

	1. Dropping the last reference to a GPU object does not destroy it.
	   Instead the native handle is enqueued on the device's fenced deleter,
	   keyed by the next serial that has not yet been submitted - any command
	   buffer still pending could reference it.
	2. Device.Tick polls the fences in flight (they complete in FIFO order),
	   advances the completed serial, recycles command pools and fences, and
	   destroys every handle whose guard serial has passed.
	3. Each buffer and texture tracks the last way it was used. When new work
	   needs it differently, the minimal pipeline barrier (and image layout
	   transition) is recorded automatically. Concurrent read-only uses never
	   serialize against each other.

Blocking operations (fence waits, swapchain acquire) poll the driver and
opportunistically tick the device, so waiting on one resource also advances
the global bookkeeping.

Native Vulkan handles remain reachable through fields and methods prefixed
with VK, so applications are not limited by what this package wraps.

A minimal frame looks like:

	encoder, _ := device.CreateCommandEncoder()
	pass, _ := encoder.BeginRenderPass(&vkr.RenderPassDescriptor{ ... })
	pass.SetPipeline(pipeline)
	pass.Draw(3, 1, 0, 0)
	pass.EndPass()
	cmd, _ := encoder.Finish()
	queue.Submit(cmd)
	queue.Present(frame)

See the examples directory for complete programs.
*/
package vkr
