package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

type RenderTargetsOptions struct {
	ClearColor [4]float32
	CullMode   metadata.FaceCullMode
}

// RenderTargets is everything that depends on the swapchain: the swapchain
// and its views, the render pass, the descriptor set layout, the pipeline,
// the depth and multisampled color attachments and one framebuffer per
// swapchain image.
type RenderTargets struct {
	lifecycle

	drv    driver.Driver
	device driver.Device

	Config     *SwapchainConfig
	Swapchain  driver.Swapchain
	Images     []driver.Image
	Views      []driver.ImageView
	Renderpass *VulkanRenderpass
	SetLayout  driver.DescriptorSetLayout
	Pipeline   *VulkanPipeline
	Depth      *Image
	// Nil without multisampling.
	Color        *Image
	Framebuffers []*VulkanFramebuffer
}

// NewRenderTargets builds the render targets for config in dependency order.
// On failure everything built so far is released in reverse order.
func NewRenderTargets(dc *DeviceContext, config *SwapchainConfig, shaders ShaderSource, opts RenderTargetsOptions) (*RenderTargets, error) {
	drv, device := dc.Driver(), dc.Device()
	sel := dc.Selection()
	samples := dc.MsaaSamples()

	rt := &RenderTargets{drv: drv, device: device, Config: config}
	td := &teardown{}
	defer td.unwind()

	swapchain, err := drv.CreateSwapchain(device, config.createInfo(dc.Surface()))
	if err != nil {
		core.LogError("failed to create swapchain: %s", err)
		return nil, err
	}
	rt.Swapchain = swapchain
	td.push("swapchain", func() { drv.DestroySwapchain(device, swapchain) })

	images, err := drv.SwapchainImages(device, swapchain)
	if err != nil {
		core.LogError("failed to get swapchain images: %s", err)
		return nil, err
	}
	rt.Images = images

	for _, image := range images {
		view, err := drv.CreateImageView(device, driver.ImageViewInfo{
			Image:     image,
			Format:    config.Format.Format,
			Aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevels: 1,
		})
		if err != nil {
			core.LogError("failed to create swapchain image view: %s", err)
			return nil, err
		}
		rt.Views = append(rt.Views, view)
		td.push("swapchain image view", func() { drv.DestroyImageView(device, view) })
	}
	core.LogDebug("Swapchain created with %d images of %dx%d.", len(images), config.Extent.Width, config.Extent.Height)

	renderpass, err := RenderpassCreate(drv, device, config.Format.Format, sel.DepthFormat, samples, opts.ClearColor)
	if err != nil {
		return nil, err
	}
	rt.Renderpass = renderpass
	td.push("render pass", func() { renderpass.RenderpassDestroy(drv, device) })

	setLayout, err := createDescriptorSetLayout(drv, device)
	if err != nil {
		return nil, err
	}
	rt.SetLayout = setLayout
	td.push("descriptor set layout", func() { drv.DestroyDescriptorSetLayout(device, setLayout) })

	pipeline, err := rt.createPipeline(shaders, samples, opts.CullMode)
	if err != nil {
		return nil, err
	}
	rt.Pipeline = pipeline
	td.push("pipeline", func() { pipeline.Destroy(drv, device) })

	depth, err := NewImage(drv, device, sel.Memory, ImageOptions{
		Width:       config.Extent.Width,
		Height:      config.Extent.Height,
		Format:      sel.DepthFormat,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		Samples:     samples,
		MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		ViewAspect:  vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	})
	if err != nil {
		core.LogError("failed to create depth attachment: %s", err)
		return nil, err
	}
	rt.Depth = depth
	td.push("depth attachment", depth.Destroy)

	if renderpass.Multisample {
		color, err := NewImage(drv, device, sel.Memory, ImageOptions{
			Width:       config.Extent.Width,
			Height:      config.Extent.Height,
			Format:      config.Format.Format,
			Tiling:      vk.ImageTilingOptimal,
			Usage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransientAttachmentBit),
			Samples:     samples,
			MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
			ViewAspect:  vk.ImageAspectFlags(vk.ImageAspectColorBit),
		})
		if err != nil {
			core.LogError("failed to create multisampled color attachment: %s", err)
			return nil, err
		}
		rt.Color = color
		td.push("color attachment", color.Destroy)
	}

	for _, view := range rt.Views {
		fb, err := FramebufferCreate(drv, device, renderpass, config.Extent.Width, config.Extent.Height, rt.attachments(view))
		if err != nil {
			return nil, err
		}
		rt.Framebuffers = append(rt.Framebuffers, fb)
		td.push("framebuffer", func() { fb.Destroy(drv, device) })
	}

	td.release()
	core.LogDebug("Render targets created (%dx MSAA).", samples)
	return rt, nil
}

func (rt *RenderTargets) createPipeline(shaders ShaderSource, samples vk.SampleCountFlagBits, cullMode metadata.FaceCullMode) (*VulkanPipeline, error) {
	stages, err := loadShaderStages(rt.drv, rt.device, shaders)
	if err != nil {
		return nil, err
	}
	defer destroyShaderStages(rt.drv, rt.device, stages)

	return NewGraphicsPipeline(rt.drv, rt.device, &VulkanPipelineConfig{
		Renderpass:           rt.Renderpass,
		DescriptorSetLayouts: []driver.DescriptorSetLayout{rt.SetLayout},
		Stages:               stages,
		Extent:               rt.Config.Extent,
		CullMode:             cullMode,
		Samples:              samples,
	})
}

// attachments orders the views the way the render pass declares them.
func (rt *RenderTargets) attachments(swapchainView driver.ImageView) []driver.ImageView {
	if rt.Color != nil {
		return []driver.ImageView{rt.Color.View, rt.Depth.View, swapchainView}
	}
	return []driver.ImageView{swapchainView, rt.Depth.View}
}

func (rt *RenderTargets) Extent() driver.Extent2D {
	return rt.Config.Extent
}

func (rt *RenderTargets) ImageCount() uint32 {
	return uint32(len(rt.Images))
}

// Destroy releases everything in the reverse order of creation. The device
// must be idle.
func (rt *RenderTargets) Destroy() {
	if !rt.markDestroyed("render targets") {
		return
	}
	for _, fb := range rt.Framebuffers {
		fb.Destroy(rt.drv, rt.device)
	}
	rt.Framebuffers = nil
	if rt.Color != nil {
		rt.Color.Destroy()
	}
	rt.Depth.Destroy()
	rt.Pipeline.Destroy(rt.drv, rt.device)
	rt.drv.DestroyDescriptorSetLayout(rt.device, rt.SetLayout)
	rt.Renderpass.RenderpassDestroy(rt.drv, rt.device)
	for _, view := range rt.Views {
		rt.drv.DestroyImageView(rt.device, view)
	}
	rt.Views = nil
	rt.drv.DestroySwapchain(rt.device, rt.Swapchain)
	rt.Images = nil
	core.LogDebug("Render targets destroyed.")
}
