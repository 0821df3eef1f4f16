package textrender

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/GhostKellz/zeus-sub002/internal/vkresult"
	"github.com/GhostKellz/zeus-sub002/pkg/textatlas"
	"github.com/GhostKellz/zeus-sub002/pkg/textframe"
)

// PipelineTarget describes where the pipeline renders to. RenderPass
// covers the classic render-pass path; a caller targeting Vulkan 1.3
// dynamic rendering instead leaves RenderPass as the zero value and
// chains a vk.PipelineRenderingCreateInfo (or equivalent) through
// NextChain, which is forwarded verbatim as
// GraphicsPipelineCreateInfo.PNext. Either way, this is caller-owned
// state per spec.md §3; the renderer never creates or destroys a
// render pass.
type PipelineTarget struct {
	RenderPass   vk.RenderPass
	Subpass      uint32
	SurfaceFormat vk.Format
	NextChain    unsafe.Pointer
}

type pipelineResources struct {
	setLayout      vk.DescriptorSetLayout
	layout         vk.PipelineLayout
	pipeline       vk.Pipeline
	vertexModule   vk.ShaderModule
	fragmentModule vk.ShaderModule
}

// createPipeline builds the descriptor-set layout, pipeline layout, and
// graphics pipeline matching the shader contract in shader_contract.go:
// set 0 binding 1 = combined image sampler, a 64-byte vertex-stage push
// constant range, triangle-strip topology, and standard alpha blending.
func createPipeline(dispatch textatlas.Dispatch, target PipelineTarget, shaders ShaderBytecode) (*pipelineResources, error) {
	if err := shaders.validate(); err != nil {
		return nil, err
	}

	setLayout, ret := dispatch.CreateDescriptorSetLayout(vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings: []vk.DescriptorSetLayoutBinding{
			{
				Binding:         BindingAtlasSampler,
				DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,
				StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
			},
		},
	})
	if err := vkresult.Check(ret); err != nil {
		return nil, fmt.Errorf("textrender: create descriptor set layout: %w", err)
	}

	layout, ret := dispatch.CreatePipelineLayout(vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{
			{
				StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
				Offset:     0,
				Size:       PushConstantSize,
			},
		},
	})
	if err := vkresult.Check(ret); err != nil {
		dispatch.DestroyDescriptorSetLayout(setLayout)
		return nil, fmt.Errorf("textrender: create pipeline layout: %w", err)
	}

	vertexModule, ret := dispatch.CreateShaderModule(vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(shaders.Vertex)),
		PCode:    bytesToUint32Slice(shaders.Vertex),
	})
	if err := vkresult.Check(ret); err != nil {
		dispatch.DestroyPipelineLayout(layout)
		dispatch.DestroyDescriptorSetLayout(setLayout)
		return nil, fmt.Errorf("textrender: create vertex shader module: %w", err)
	}
	fragmentModule, ret := dispatch.CreateShaderModule(vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(shaders.Fragment)),
		PCode:    bytesToUint32Slice(shaders.Fragment),
	})
	if err := vkresult.Check(ret); err != nil {
		dispatch.DestroyShaderModule(vertexModule)
		dispatch.DestroyPipelineLayout(layout)
		dispatch.DestroyDescriptorSetLayout(setLayout)
		return nil, fmt.Errorf("textrender: create fragment shader module: %w", err)
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageVertexBit, Module: vertexModule, PName: "main\x00"},
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageFragmentBit, Module: fragmentModule, PName: "main\x00"},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{
			{Binding: 1, Stride: uint32(textframe.SizeOf), InputRate: vk.VertexInputRateInstance},
		},
		VertexAttributeDescriptionCount: 4,
		PVertexAttributeDescriptions: []vk.VertexInputAttributeDescription{
			{Location: LocationPosition, Binding: 1, Format: vk.FormatR32g32Sfloat, Offset: 0},
			{Location: LocationSize, Binding: 1, Format: vk.FormatR32g32Sfloat, Offset: 8},
			{Location: LocationAtlasRect, Binding: 1, Format: vk.FormatR32g32b32a32Sfloat, Offset: 16},
			{Location: LocationColor, Binding: 1, Format: vk.FormatR32g32b32a32Sfloat, Offset: 32},
		},
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleStrip,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterization := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) |
			vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) |
			vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:                target.NextChain,
		StageCount:          2,
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          target.RenderPass,
		Subpass:             target.Subpass,
	}

	pipeline, ret := dispatch.CreateGraphicsPipeline(pipelineInfo)
	if err := vkresult.Check(ret); err != nil {
		dispatch.DestroyShaderModule(fragmentModule)
		dispatch.DestroyShaderModule(vertexModule)
		dispatch.DestroyPipelineLayout(layout)
		dispatch.DestroyDescriptorSetLayout(setLayout)
		return nil, fmt.Errorf("textrender: create graphics pipeline: %w", err)
	}

	return &pipelineResources{
		setLayout:      setLayout,
		layout:         layout,
		pipeline:       pipeline,
		vertexModule:   vertexModule,
		fragmentModule: fragmentModule,
	}, nil
}

func (p *pipelineResources) destroy(dispatch textatlas.Dispatch) {
	dispatch.DestroyPipeline(p.pipeline)
	dispatch.DestroyShaderModule(p.fragmentModule)
	dispatch.DestroyShaderModule(p.vertexModule)
	dispatch.DestroyPipelineLayout(p.layout)
	dispatch.DestroyDescriptorSetLayout(p.setLayout)
}

// bytesToUint32Slice reinterprets a 4-byte-aligned byte slice as the
// []uint32 vk.ShaderModuleCreateInfo.PCode expects. Safe because
// shaders.validate() has already asserted 4-byte alignment and SPIR-V
// length is always a multiple of 4 bytes.
func bytesToUint32Slice(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}
