package vulkan

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

var errNotInitialized = errors.New("vulkan renderer is not initialized")

// RendererOptions is everything the renderer needs to build its first frame.
type RendererOptions struct {
	ApplicationName     string
	Validation          bool
	MSAA                bool
	FramesInFlight      uint32
	PreferredImageCount uint32
	ClearColor          [4]float32
	CullMode            metadata.FaceCullMode

	Shaders ShaderSource
	Mesh    *metadata.MeshData
	Texture *metadata.TextureData
}

// OptionsFromConfig fills the renderer settings of cfg into RendererOptions.
// Shaders, mesh and texture are left to the caller.
func OptionsFromConfig(cfg *core.Config) RendererOptions {
	return RendererOptions{
		ApplicationName:     cfg.Application.Name,
		Validation:          cfg.Renderer.Validation,
		MSAA:                cfg.Renderer.MSAA,
		FramesInFlight:      cfg.Renderer.FramesInFlight,
		PreferredImageCount: cfg.Renderer.PreferredImageCount,
		ClearColor:          cfg.Renderer.ClearColor,
		CullMode:            metadata.FaceCullModeBack,
	}
}

// VulkanRenderer assembles the device context, frame interface, render
// targets and resources and hands frames to the frame loop.
type VulkanRenderer struct {
	drv    driver.Driver
	window Window
	opts   RendererOptions

	// Read by Resized and ReloadShaders, which may run on other goroutines.
	loop        atomic.Pointer[FrameLoop]
	FrameNumber uint64
}

func New(drv driver.Driver, window Window, opts RendererOptions) *VulkanRenderer {
	return &VulkanRenderer{
		drv:    drv,
		window: window,
		opts:   opts,
	}
}

// Initialize builds every component in dependency order. A failure releases
// whatever was already built.
func (vr *VulkanRenderer) Initialize() error {
	if vr.opts.Shaders == nil || vr.opts.Mesh == nil || vr.opts.Texture == nil {
		return fmt.Errorf("vulkan renderer needs shaders, a mesh and a texture")
	}

	td := &teardown{}
	defer td.unwind()

	dc, err := NewDeviceContext(vr.drv, vr.window, ContextOptions{
		ApplicationName: vr.opts.ApplicationName,
		Validation:      vr.opts.Validation,
		MSAA:            vr.opts.MSAA,
		Swapchain:       SwapchainOptions{PreferredImageCount: vr.opts.PreferredImageCount},
	})
	if err != nil {
		core.LogError("failed to create the device context: %s", err)
		return err
	}
	td.push("device context", dc.Destroy)

	fi, err := NewFrameInterface(dc, vr.opts.FramesInFlight)
	if err != nil {
		return err
	}
	td.push("frame interface", fi.Destroy)

	// Rebuilds keep the last shaders that loaded if a reload finds a broken file.
	shaders := newLastGoodShaders(vr.opts.Shaders)
	targets := RenderTargetsOptions{ClearColor: vr.opts.ClearColor, CullMode: vr.opts.CullMode}
	rt, err := NewRenderTargets(dc, dc.Selection().Swapchain, shaders, targets)
	if err != nil {
		return err
	}
	td.push("render targets", rt.Destroy)

	rm, err := NewResourceMemory(dc, fi, rt, vr.opts.Mesh, vr.opts.Texture)
	if err != nil {
		return err
	}

	td.release()
	vr.loop.Store(NewFrameLoop(dc, fi, rt, rm, FrameLoopOptions{Shaders: shaders, Targets: targets}))
	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

// Resized is called by the windowing layer whenever the framebuffer size
// changes. The swapchain is rebuilt on the next frame.
func (vr *VulkanRenderer) Resized(width, height uint32) {
	core.LogInfo("Vulkan renderer backend->resized: w/h: %d/%d", width, height)
	if loop := vr.loop.Load(); loop != nil {
		loop.RequestRecreate()
	}
}

// ReloadShaders rebuilds the pipeline with freshly loaded shader code on the
// next frame.
func (vr *VulkanRenderer) ReloadShaders() {
	if loop := vr.loop.Load(); loop != nil {
		loop.RequestRecreate()
	}
}

// DrawFrame derives the uniform block from packet and renders one frame.
func (vr *VulkanRenderer) DrawFrame(packet *metadata.RenderPacket) error {
	loop := vr.loop.Load()
	if loop == nil {
		return errNotInitialized
	}
	ubo := math.NewUniformBufferObject()
	ubo.Model = packet.Model
	if cam := packet.Camera; cam != nil {
		ubo.View = cam.View()
		extent := loop.RenderTargets().Extent()
		if extent.Height > 0 {
			ubo.SetPerspective(cam.FovY, float32(extent.Width)/float32(extent.Height), cam.Near, cam.Far)
		}
	}
	if err := loop.DrawFrame(&ubo); err != nil {
		core.LogError("failed to draw frame %d at stage %s: %s", vr.FrameNumber, loop.Stage(), err)
		return err
	}
	vr.FrameNumber++
	return nil
}

func (vr *VulkanRenderer) Loop() *FrameLoop {
	return vr.loop.Load()
}

func (vr *VulkanRenderer) Shutdown() error {
	loop := vr.loop.Swap(nil)
	if loop == nil {
		return errNotInitialized
	}
	core.LogInfo("Shutting down Vulkan renderer after %d frames (%d swapchain recreations).", vr.FrameNumber, loop.Recreations())
	loop.Shutdown()
	return nil
}
