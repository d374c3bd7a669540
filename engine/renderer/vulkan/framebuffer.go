package vulkan

import (
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

type VulkanFramebuffer struct {
	Handle      driver.Framebuffer
	Attachments []driver.ImageView
	Renderpass  *VulkanRenderpass
}

func FramebufferCreate(drv driver.Driver, device driver.Device, renderpass *VulkanRenderpass, width, height uint32, attachments []driver.ImageView) (*VulkanFramebuffer, error) {
	// Take a copy of the attachments, the caller reuses its slice.
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]driver.ImageView(nil), attachments...),
		Renderpass:  renderpass,
	}

	handle, err := drv.CreateFramebuffer(device, driver.FramebufferInfo{
		RenderPass:  renderpass.Handle,
		Attachments: outFramebuffer.Attachments,
		Width:       width,
		Height:      height,
	})
	if err != nil {
		core.LogError("failed to create framebuffer: %s", err)
		return nil, err
	}
	outFramebuffer.Handle = handle
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(drv driver.Driver, device driver.Device) {
	drv.DestroyFramebuffer(device, vfb.Handle)
	vfb.Handle = driver.NullHandle
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
