package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle driver.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout driver.PipelineLayout
}

type VulkanPipelineConfig struct {
	/** @brief The renderpass to associate with the pipeline. */
	Renderpass *VulkanRenderpass
	/** @brief The descriptor set layouts, in set order. */
	DescriptorSetLayouts []driver.DescriptorSetLayout
	/** @brief The shader stages. */
	Stages []VulkanShaderStage
	/** @brief The initial viewport and scissor size. Both are dynamic. */
	Extent driver.Extent2D
	/** @brief The face cull mode. */
	CullMode metadata.FaceCullMode
	/** @brief Rasterization samples, matching the color attachment. */
	Samples vk.SampleCountFlagBits
}

// vertexLayout describes metadata.Vertex to the input assembler.
func vertexLayout() driver.VertexBinding {
	return driver.VertexBinding{
		Stride: metadata.VertexStride,
		Attributes: []driver.VertexAttribute{
			{Location: 0, Format: vk.FormatR32g32b32Sfloat, Offset: metadata.VertexOffsets[0]},
			{Location: 1, Format: vk.FormatR32g32b32Sfloat, Offset: metadata.VertexOffsets[1]},
			{Location: 2, Format: vk.FormatR32g32Sfloat, Offset: metadata.VertexOffsets[2]},
		},
	}
}

func cullModeFlags(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

func NewGraphicsPipeline(drv driver.Driver, device driver.Device, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{}

	layout, err := drv.CreatePipelineLayout(device, config.DescriptorSetLayouts)
	if err != nil {
		core.LogError("vkCreatePipelineLayout failed: %s", err)
		return nil, err
	}
	outPipeline.PipelineLayout = layout

	stages := make([]driver.ShaderStage, len(config.Stages))
	for i, s := range config.Stages {
		stages[i] = s.info()
	}

	handle, err := drv.CreateGraphicsPipeline(device, driver.GraphicsPipelineInfo{
		Stages:                 stages,
		Vertex:                 vertexLayout(),
		Topology:               vk.PrimitiveTopologyTriangleList,
		Extent:                 config.Extent,
		CullMode:               cullModeFlags(config.CullMode),
		FrontFace:              vk.FrontFaceCounterClockwise,
		Samples:                config.Samples,
		DepthTest:              true,
		DepthWrite:             true,
		Layout:                 layout,
		RenderPass:             config.Renderpass.Handle,
		DynamicViewportScissor: true,
	})
	if err != nil {
		core.LogError("vkCreateGraphicsPipelines failed: %s", err)
		drv.DestroyPipelineLayout(device, layout)
		return nil, err
	}
	outPipeline.Handle = handle

	core.LogDebug("Graphics pipeline created!")
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(drv driver.Driver, device driver.Device) {
	if pipeline.Handle != driver.NullHandle {
		drv.DestroyPipeline(device, pipeline.Handle)
		pipeline.Handle = driver.NullHandle
	}
	if pipeline.PipelineLayout != driver.NullHandle {
		drv.DestroyPipelineLayout(device, pipeline.PipelineLayout)
		pipeline.PipelineLayout = driver.NullHandle
	}
}

func (pipeline *VulkanPipeline) Bind(drv driver.Driver, commandBuffer *CommandBuffer) {
	drv.CmdBindPipeline(commandBuffer.Handle, pipeline.Handle)
}
