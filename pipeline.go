package vkr

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// PipelineLayout is an ordered list of bind group layouts shared by
// compatible pipelines. The layout retains its bind group layouts.
type PipelineLayout struct {
	// VKPipelineLayout is the native layout handle
	VKPipelineLayout vk.PipelineLayout

	device           *Device
	bindGroupLayouts []*BindGroupLayout
	refs             refCount
}

// CreatePipelineLayout creates a pipeline layout from bind group layouts.
// Group N in shaders corresponds to the Nth layout given here.
func (d *Device) CreatePipelineLayout(bindGroupLayouts ...*BindGroupLayout) (*PipelineLayout, error) {
	setLayouts := make([]vk.DescriptorSetLayout, len(bindGroupLayouts))
	for i, l := range bindGroupLayouts {
		setLayouts[i] = l.VKDescriptorSetLayout
	}

	var layout vk.PipelineLayout
	res := vk.CreatePipelineLayout(d.VKDevice, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}, nil, &layout)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating pipeline layout: %w", err)
	}

	for _, l := range bindGroupLayouts {
		l.Retain()
	}
	return &PipelineLayout{
		VKPipelineLayout: layout,
		device:           d,
		bindGroupLayouts: append([]*BindGroupLayout(nil), bindGroupLayouts...),
		refs:             newRefCount(),
	}, nil
}

// Retain adds a reference.
func (l *PipelineLayout) Retain() {
	l.refs.retain()
}

// Release drops the caller's reference, scheduling the native layout into
// the fenced deleter and releasing the bind group layouts on the last one.
func (l *PipelineLayout) Release() {
	if !l.refs.release() {
		return
	}
	d := l.device
	d.mu.Lock()
	d.deleter.deletePipelineLayout(l.VKPipelineLayout, d.nextPendingSerial())
	d.mu.Unlock()
	l.VKPipelineLayout = vk.NullPipelineLayout

	for _, bgl := range l.bindGroupLayouts {
		bgl.Release()
	}
	l.bindGroupLayouts = nil
}

// RenderPipelineDescriptor describes a render pipeline. Viewport, scissor,
// blend constants, and stencil reference are always dynamic and set on the
// render pass encoder. Native create-info types are exposed directly for
// vertex input and blending, in keeping with the VK escape hatches
// elsewhere.
type RenderPipelineDescriptor struct {
	Layout *PipelineLayout

	VertexStage        *ShaderModule
	VertexEntryPoint   string
	FragmentStage      *ShaderModule
	FragmentEntryPoint string

	VertexBindings   []vk.VertexInputBindingDescription
	VertexAttributes []vk.VertexInputAttributeDescription

	// PrimitiveTopology defaults to triangle list
	PrimitiveTopology vk.PrimitiveTopology
	// PolygonMode defaults to fill
	PolygonMode vk.PolygonMode
	// CullMode defaults to no culling
	CullMode vk.CullModeFlagBits
	// FrontFace defaults to counter-clockwise
	FrontFace vk.FrontFace
	// LineWidth defaults to 1.0
	LineWidth float32

	// ColorFormats are the formats of the pass color attachments the
	// pipeline renders into; order matters
	ColorFormats []TextureFormat
	// DepthStencilFormat of Undefined disables depth/stencil
	DepthStencilFormat TextureFormat
	// SampleCount defaults to 1
	SampleCount uint32

	// BlendAttachments defaults to one opaque attachment per color format
	BlendAttachments []vk.PipelineColorBlendAttachmentState

	DepthTestEnable  bool
	DepthWriteEnable bool
	// DepthCompareOp defaults to less
	DepthCompareOp vk.CompareOp
}

// RenderPipeline is an immutable graphics pipeline. It retains its layout.
type RenderPipeline struct {
	// VKPipeline is the native pipeline handle
	VKPipeline vk.Pipeline

	device *Device
	layout *PipelineLayout
	refs   refCount
}

// CreateRenderPipeline creates a render pipeline. The pipeline is built
// against a cached render pass compatible with the descriptor's attachment
// formats.
func (d *Device) CreateRenderPipeline(descriptor *RenderPipelineDescriptor) (*RenderPipeline, error) {
	if descriptor.Layout == nil {
		return nil, fmt.Errorf("render pipeline requires a layout")
	}
	if descriptor.VertexStage == nil {
		return nil, fmt.Errorf("render pipeline requires a vertex stage")
	}
	if len(descriptor.ColorFormats) > maxColorAttachments {
		return nil, fmt.Errorf("at most %d color attachments are supported; got %d",
			maxColorAttachments, len(descriptor.ColorFormats))
	}

	sampleCount := descriptor.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	// Render pass compatibility ignores load ops, so any cached pass with
	// matching formats and sample count will do.
	key := renderPassKey{
		colorCount:  len(descriptor.ColorFormats),
		sampleCount: sampleCount,
	}
	for i, format := range descriptor.ColorFormats {
		key.colors[i] = colorAttachmentKey{format: format, loadOp: LoadOpClear}
	}
	if descriptor.DepthStencilFormat != TextureFormatUndefined {
		key.hasDepthStencil = true
		key.depthStencil = depthStencilAttachmentKey{format: descriptor.DepthStencilFormat}
	}

	d.mu.Lock()
	renderPass, err := d.renderPasses.getLocked(key)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vertexEntry := descriptor.VertexEntryPoint
	if vertexEntry == "" {
		vertexEntry = "main"
	}
	stages := []vk.PipelineShaderStageCreateInfo{
		descriptor.VertexStage.VKPipelineShaderStageCreateInfo(vk.ShaderStageVertexBit, vertexEntry),
	}
	if descriptor.FragmentStage != nil {
		fragmentEntry := descriptor.FragmentEntryPoint
		if fragmentEntry == "" {
			fragmentEntry = "main"
		}
		stages = append(stages,
			descriptor.FragmentStage.VKPipelineShaderStageCreateInfo(vk.ShaderStageFragmentBit, fragmentEntry))
	}

	topology := descriptor.PrimitiveTopology
	if topology == 0 {
		topology = vk.PrimitiveTopologyTriangleList
	}
	lineWidth := descriptor.LineWidth
	if lineWidth == 0 {
		lineWidth = 1.0
	}

	blendAttachments := descriptor.BlendAttachments
	if blendAttachments == nil {
		blendAttachments = make([]vk.PipelineColorBlendAttachmentState, len(descriptor.ColorFormats))
		for i := range blendAttachments {
			blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
				ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit |
					vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
				BlendEnable: vk.False,
			}
		}
	}

	vertexInputState := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(descriptor.VertexBindings)),
		PVertexBindingDescriptions:      descriptor.VertexBindings,
		VertexAttributeDescriptionCount: uint32(len(descriptor.VertexAttributes)),
		PVertexAttributeDescriptions:    descriptor.VertexAttributes,
	}

	inputAssemblyState := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: topology,
	}

	// Viewport and scissor are dynamic; the counts still must be declared.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterState := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: descriptor.PolygonMode,
		LineWidth:   lineWidth,
		CullMode:    vk.CullModeFlags(descriptor.CullMode),
		FrontFace:   descriptor.FrontFace,
	}

	multisampleState := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCountFlagBits(sampleCount),
	}

	colorBlendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateBlendConstants,
		vk.DynamicStateStencilReference,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterState,
		PMultisampleState:   &multisampleState,
		PColorBlendState:    &colorBlendState,
		PDynamicState:       &dynamicState,
		Layout:              descriptor.Layout.VKPipelineLayout,
		RenderPass:          renderPass,
		Subpass:             0,
	}

	if descriptor.DepthStencilFormat != TextureFormatUndefined {
		compareOp := descriptor.DepthCompareOp
		if compareOp == 0 {
			compareOp = vk.CompareOpLess
		}
		depthStencilState := vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vkBool(descriptor.DepthTestEnable),
			DepthWriteEnable: vkBool(descriptor.DepthWriteEnable),
			DepthCompareOp:   compareOp,
			MaxDepthBounds:   1.0,
		}
		createInfo.PDepthStencilState = &depthStencilState
	}

	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(d.VKDevice, vk.NullPipelineCache,
		1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating render pipeline: %w", err)
	}

	descriptor.Layout.Retain()
	return &RenderPipeline{
		VKPipeline: pipelines[0],
		device:     d,
		layout:     descriptor.Layout,
		refs:       newRefCount(),
	}, nil
}

// Retain adds a reference.
func (p *RenderPipeline) Retain() {
	p.refs.retain()
}

// Release drops the caller's reference, scheduling the native pipeline into
// the fenced deleter and releasing the layout on the last one.
func (p *RenderPipeline) Release() {
	if !p.refs.release() {
		return
	}
	d := p.device
	d.mu.Lock()
	d.deleter.deletePipeline(p.VKPipeline, d.nextPendingSerial())
	d.mu.Unlock()
	p.VKPipeline = vk.NullPipeline
	p.layout.Release()
	p.layout = nil
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Layout *PipelineLayout
	Stage  *ShaderModule
	// EntryPoint defaults to "main"
	EntryPoint string
}

// ComputePipeline is an immutable compute pipeline. It retains its layout.
type ComputePipeline struct {
	// VKPipeline is the native pipeline handle
	VKPipeline vk.Pipeline

	device *Device
	layout *PipelineLayout
	refs   refCount
}

// CreateComputePipeline creates a compute pipeline.
func (d *Device) CreateComputePipeline(descriptor *ComputePipelineDescriptor) (*ComputePipeline, error) {
	if descriptor.Layout == nil {
		return nil, fmt.Errorf("compute pipeline requires a layout")
	}
	if descriptor.Stage == nil {
		return nil, fmt.Errorf("compute pipeline requires a shader stage")
	}
	entryPoint := descriptor.EntryPoint
	if entryPoint == "" {
		entryPoint = "main"
	}

	createInfo := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  descriptor.Stage.VKPipelineShaderStageCreateInfo(vk.ShaderStageComputeBit, entryPoint),
		Layout: descriptor.Layout.VKPipelineLayout,
	}

	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateComputePipelines(d.VKDevice, vk.NullPipelineCache,
		1, []vk.ComputePipelineCreateInfo{createInfo}, nil, pipelines)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("creating compute pipeline: %w", err)
	}

	descriptor.Layout.Retain()
	return &ComputePipeline{
		VKPipeline: pipelines[0],
		device:     d,
		layout:     descriptor.Layout,
		refs:       newRefCount(),
	}, nil
}

// Retain adds a reference.
func (p *ComputePipeline) Retain() {
	p.refs.retain()
}

// Release drops the caller's reference, scheduling the native pipeline into
// the fenced deleter and releasing the layout on the last one.
func (p *ComputePipeline) Release() {
	if !p.refs.release() {
		return
	}
	d := p.device
	d.mu.Lock()
	d.deleter.deletePipeline(p.VKPipeline, d.nextPendingSerial())
	d.mu.Unlock()
	p.VKPipeline = vk.NullPipeline
	p.layout.Release()
	p.layout = nil
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
