package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// VulkanRenderpass is the single render pass of the renderer: a color target,
// a depth target and, when multisampling, a resolve into the swapchain image.
type VulkanRenderpass struct {
	Handle      driver.RenderPass
	Multisample bool
	R, G, B, A  float32
	Depth       float32
	Stencil     uint32
}

func RenderpassCreate(drv driver.Driver, device driver.Device, colorFormat, depthFormat vk.Format, samples vk.SampleCountFlagBits, clearColor [4]float32) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		Multisample: samples != vk.SampleCount1Bit,
		R:           clearColor[0],
		G:           clearColor[1],
		B:           clearColor[2],
		A:           clearColor[3],
		Depth:       1.0,
		Stencil:     0,
	}

	// Color attachment. Without multisampling it is the swapchain image
	// itself and goes straight to presentation.
	colorAttachment := driver.AttachmentDescription{
		Format:         colorFormat,
		Samples:        samples,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	if outRenderpass.Multisample {
		colorAttachment.StoreOp = vk.AttachmentStoreOpDontCare
		colorAttachment.FinalLayout = vk.ImageLayoutColorAttachmentOptimal
	}

	depthAttachment := driver.AttachmentDescription{
		Format:         depthFormat,
		Samples:        samples,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	info := driver.RenderPassInfo{
		Attachments: []driver.AttachmentDescription{colorAttachment, depthAttachment},
		Color:       driver.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal},
		Depth:       &driver.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal},
		Dependency: driver.SubpassDependency{
			SrcSubpass: vk.SubpassExternal,
			DstSubpass: 0,
			SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) |
				vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
			DstStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) |
				vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
			SrcAccessMask: 0,
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit) |
				vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		},
	}

	// Resolve attachment: the swapchain image.
	if outRenderpass.Multisample {
		info.Attachments = append(info.Attachments, driver.AttachmentDescription{
			Format:         colorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpDontCare,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		})
		info.Resolve = &driver.AttachmentReference{Attachment: 2, Layout: vk.ImageLayoutColorAttachmentOptimal}
	}

	handle, err := drv.CreateRenderPass(device, info)
	if err != nil {
		core.LogError("failed to create render pass: %s", err)
		return nil, err
	}
	outRenderpass.Handle = handle
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(drv driver.Driver, device driver.Device) {
	if vr.Handle != driver.NullHandle {
		drv.DestroyRenderPass(device, vr.Handle)
		vr.Handle = driver.NullHandle
	}
}

func (vr *VulkanRenderpass) RenderpassBegin(drv driver.Driver, commandBuffer *CommandBuffer, frameBuffer driver.Framebuffer, extent driver.Extent2D) {
	drv.CmdBeginRenderPass(commandBuffer.Handle, driver.RenderPassBegin{
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		Extent:      extent,
		ClearColor:  [4]float32{vr.R, vr.G, vr.B, vr.A},
		ClearDepth:  true,
		Depth:       vr.Depth,
		Stencil:     vr.Stencil,
	})
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) RenderpassEnd(drv driver.Driver, commandBuffer *CommandBuffer) {
	drv.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
