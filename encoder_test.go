package vkr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encoderTestDevice() *Device {
	return &Device{encoderPool: newEncoderStatePool()}
}

func colorTargetView(d *Device, width, height uint32) *TextureView {
	texture := &Texture{
		Device: d,
		Descriptor: TextureDescriptor{
			Width:           width,
			Height:          height,
			Depth:           1,
			ArrayLayerCount: 1,
			MipLevelCount:   1,
			SampleCount:     1,
			Format:          TextureFormatB8G8R8A8Unorm,
			Usage:           TextureUsageOutputAttachment | TextureUsagePresent,
		},
		external: true,
		refs:     newRefCount(),
	}
	return &TextureView{
		Texture: texture,
		Format:  texture.Descriptor.Format,
		refs:    newRefCount(),
	}
}

func TestEncoderOnePassAtATime(t *testing.T) {
	d := encoderTestDevice()
	e := d.CreateCommandEncoder()

	pass, err := e.BeginRenderPass(&RenderPassDescriptor{
		ColorAttachments: []RenderPassColorAttachment{
			{Attachment: colorTargetView(d, 64, 64), LoadOp: LoadOpClear},
		},
	})
	require.NoError(t, err)

	_, err = e.BeginComputePass()
	assert.Error(t, err, "a second pass must not open while one is recording")

	_, err = e.Finish()
	assert.Error(t, err, "finishing with an open pass must fail")

	pass.EndPass()
	cb, err := e.Finish()
	require.NoError(t, err)
	require.NotNil(t, cb)

	_, err = e.Finish()
	assert.Error(t, err, "an encoder finishes once")
}

func TestEncoderRejectsEmptyRenderPass(t *testing.T) {
	d := encoderTestDevice()
	e := d.CreateCommandEncoder()
	_, err := e.BeginRenderPass(&RenderPassDescriptor{})
	assert.Error(t, err)
}

func TestEncoderRejectsMismatchedAttachmentSizes(t *testing.T) {
	d := encoderTestDevice()
	e := d.CreateCommandEncoder()
	_, err := e.BeginRenderPass(&RenderPassDescriptor{
		ColorAttachments: []RenderPassColorAttachment{
			{Attachment: colorTargetView(d, 64, 64)},
			{Attachment: colorTargetView(d, 32, 32)},
		},
	})
	assert.Error(t, err)
}

func TestRenderPassTracksAttachmentAndBufferUsages(t *testing.T) {
	d := encoderTestDevice()
	e := d.CreateCommandEncoder()

	view := colorTargetView(d, 64, 64)
	pass, err := e.BeginRenderPass(&RenderPassDescriptor{
		ColorAttachments: []RenderPassColorAttachment{
			{Attachment: view, LoadOp: LoadOpClear},
		},
	})
	require.NoError(t, err)

	vertices := &Buffer{Device: d, Size: 256, Usage: BufferUsageVertex, refs: newRefCount()}
	indices := &Buffer{Device: d, Size: 64, Usage: BufferUsageIndex, refs: newRefCount()}
	require.NoError(t, pass.SetVertexBuffers(0, []*Buffer{vertices}, []uint64{0}))
	pass.SetIndexBuffer(indices, 0, 0)

	tracker := pass.tracker
	assert.Equal(t, TextureUsageOutputAttachment, tracker.textures[view.Texture])
	assert.Equal(t, BufferUsageVertex, tracker.buffers[vertices])
	assert.Equal(t, BufferUsageIndex, tracker.buffers[indices])

	pass.EndPass()
}

func TestSetBindGroupValidatesDynamicOffsets(t *testing.T) {
	d := encoderTestDevice()
	e := d.CreateCommandEncoder()
	pass, err := e.BeginComputePass()
	require.NoError(t, err)

	layout := &BindGroupLayout{
		device: d,
		bindings: []BindGroupLayoutBinding{
			{Binding: 0, Visibility: ShaderStageCompute, Type: BindingTypeDynamicUniformBuffer},
		},
		refs: newRefCount(),
	}
	uniforms := &Buffer{Device: d, Size: 512, Usage: BufferUsageUniform, refs: newRefCount()}
	group := &BindGroup{
		device:       d,
		layout:       layout,
		buffers:      []*Buffer{uniforms},
		bufferUsages: []BufferUsage{BufferUsageUniform},
		refs:         newRefCount(),
	}

	assert.Error(t, pass.SetBindGroup(0, group), "missing dynamic offset must be rejected")
	assert.Error(t, pass.SetBindGroup(0, group, 0, 256), "extra dynamic offsets must be rejected")
	require.NoError(t, pass.SetBindGroup(0, group, 256))

	assert.Equal(t, BufferUsageUniform, pass.tracker.buffers[uniforms])
	pass.EndPass()
}

func TestUsageTrackerAccumulates(t *testing.T) {
	tr := newUsageTracker()
	b := &Buffer{Size: 16, Usage: BufferUsageVertex | BufferUsageTransferDst}
	tr.bufferUsed(b, BufferUsageVertex)
	tr.bufferUsed(b, BufferUsageTransferDst)
	assert.Equal(t, BufferUsageVertex|BufferUsageTransferDst, tr.buffers[b])

	tr.reset()
	assert.Empty(t, tr.buffers)
	assert.Empty(t, tr.textures)
}

func TestCommandBufferSubmitsOnce(t *testing.T) {
	d := encoderTestDevice()
	e := d.CreateCommandEncoder()
	cb, err := e.Finish()
	require.NoError(t, err)

	require.NoError(t, cb.recordLocked(nil))
	assert.Error(t, cb.recordLocked(nil), "a command buffer replays once")
}
