package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// maxColorAttachments bounds the number of color attachments per render
// pass, which keeps the cache key a comparable fixed-size value.
const maxColorAttachments = 4

// LoadOp selects what happens to an attachment's contents at the start of a
// pass.
type LoadOp uint32

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
)

func (op LoadOp) vk() vk.AttachmentLoadOp {
	if op == LoadOpLoad {
		return vk.AttachmentLoadOpLoad
	}
	return vk.AttachmentLoadOpClear
}

type colorAttachmentKey struct {
	format     TextureFormat
	loadOp     LoadOp
	hasResolve bool
}

type depthStencilAttachmentKey struct {
	format        TextureFormat
	depthLoadOp   LoadOp
	stencilLoadOp LoadOp
}

// renderPassKey identifies a compatible native render pass. It is a value
// type so it can key a map directly.
type renderPassKey struct {
	colors          [maxColorAttachments]colorAttachmentKey
	colorCount      int
	hasDepthStencil bool
	depthStencil    depthStencilAttachmentKey
	sampleCount     uint32
}

// renderPassCache memoizes native render passes by attachment signature.
// The key space is bounded, so entries are never evicted; the device drains
// the cache during teardown. Guarded by the device lock.
type renderPassCache struct {
	device *Device
	passes map[renderPassKey]vk.RenderPass
}

func newRenderPassCache(device *Device) *renderPassCache {
	return &renderPassCache{
		device: device,
		passes: make(map[renderPassKey]vk.RenderPass),
	}
}

// getLocked returns the cached render pass for key, creating and inserting
// it on first request.
func (c *renderPassCache) getLocked(key renderPassKey) (vk.RenderPass, error) {
	if pass, ok := c.passes[key]; ok {
		return pass, nil
	}

	pass, err := c.create(key)
	if err != nil {
		return vk.NullRenderPass, err
	}
	c.passes[key] = pass
	return pass, nil
}

func (c *renderPassCache) create(key renderPassKey) (vk.RenderPass, error) {
	var attachments []vk.AttachmentDescription
	var colorRefs []vk.AttachmentReference
	var resolveRefs []vk.AttachmentReference
	hasResolve := false

	samples := vk.SampleCountFlagBits(key.sampleCount)

	for i := 0; i < key.colorCount; i++ {
		color := key.colors[i]
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         color.format.vk(),
			Samples:        samples,
			LoadOp:         color.loadOp.vk(),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
		if color.hasResolve {
			hasResolve = true
		}
	}

	if hasResolve {
		for i := 0; i < key.colorCount; i++ {
			color := key.colors[i]
			if !color.hasResolve {
				resolveRefs = append(resolveRefs, vk.AttachmentReference{
					Attachment: vk.AttachmentUnused,
				})
				continue
			}
			resolveRefs = append(resolveRefs, vk.AttachmentReference{
				Attachment: uint32(len(attachments)),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
			attachments = append(attachments, vk.AttachmentDescription{
				Format:         color.format.vk(),
				Samples:        vk.SampleCount1Bit,
				LoadOp:         vk.AttachmentLoadOpDontCare,
				StoreOp:        vk.AttachmentStoreOpStore,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
				FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
			})
		}
	}

	var depthRef *vk.AttachmentReference
	if key.hasDepthStencil {
		ds := key.depthStencil
		depthRef = &vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         ds.format.vk(),
			Samples:        samples,
			LoadOp:         ds.depthLoadOp.vk(),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  ds.stencilLoadOp.vk(),
			StencilStoreOp: vk.AttachmentStoreOpStore,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: depthRef,
	}
	if hasResolve {
		subpass.PResolveAttachments = resolveRefs
	}

	var pass vk.RenderPass
	res := vk.CreateRenderPass(c.device.VKDevice, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}, nil, &pass)
	if err := vk.Error(res); err != nil {
		return vk.NullRenderPass, fmt.Errorf("creating render pass: %w", err)
	}

	Logger().Debug("render pass created", "colorCount", key.colorCount,
		"depthStencil", key.hasDepthStencil, "samples", key.sampleCount)
	return pass, nil
}

// drain destroys every cached render pass. Called during device teardown
// once the GPU is idle.
func (c *renderPassCache) drain() {
	for key, pass := range c.passes {
		vk.DestroyRenderPass(c.device.VKDevice, pass, nil)
		delete(c.passes, key)
	}
}
