package vulkan

import (
	"errors"
	"fmt"
	gomath "math"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// FrameStage is the last stage a frame reached.
type FrameStage int

const (
	StageIdle FrameStage = iota
	StageFenceWait
	StageImageAcquire
	StageRecording
	StageSubmit
	StagePresent
)

func (s FrameStage) String() string {
	switch s {
	case StageFenceWait:
		return "fence wait"
	case StageImageAcquire:
		return "image acquire"
	case StageRecording:
		return "recording"
	case StageSubmit:
		return "submit"
	case StagePresent:
		return "present"
	}
	return "idle"
}

type FrameLoopOptions struct {
	Shaders ShaderSource
	Targets RenderTargetsOptions
}

// FrameLoop drives one frame at a time through fence wait, image acquire,
// recording, submit and present, and rebuilds the swapchain dependent state
// when the surface changes. It is not safe for concurrent use except for
// RequestRecreate.
type FrameLoop struct {
	dc *DeviceContext
	fi *FrameInterface
	rt *RenderTargets
	rm *ResourceMemory

	opts           FrameLoopOptions
	framesInFlight uint32

	frame       uint32
	stage       FrameStage
	recreations uint64

	recreateRequested atomic.Bool
	// Set while the surface has no drawable area or a rebuild failed.
	pending bool
	// Set once the logical device was torn down by a rebuild that did not
	// complete. The next rebuild selects a device again.
	deviceLost bool

	mesh    *metadata.MeshData
	texture *metadata.TextureData
}

func NewFrameLoop(dc *DeviceContext, fi *FrameInterface, rt *RenderTargets, rm *ResourceMemory, opts FrameLoopOptions) *FrameLoop {
	return &FrameLoop{
		dc:             dc,
		fi:             fi,
		rt:             rt,
		rm:             rm,
		opts:           opts,
		framesInFlight: fi.FramesInFlight(),
		mesh:           rm.Mesh(),
		texture:        rm.TextureData(),
	}
}

// DrawFrame renders and presents one frame with ubo as the uniform data of
// the current slot. A frame skipped because of a pending or performed
// swapchain rebuild returns nil.
func (fl *FrameLoop) DrawFrame(ubo *math.UniformBufferObject) error {
	if fl.recreateRequested.Swap(false) || fl.pending {
		_, err := fl.RecreateSwapchain()
		return err
	}

	drv, device := fl.dc.Driver(), fl.dc.Device()
	slot := fl.fi.Slot(fl.frame)

	fl.stage = StageFenceWait
	if err := slot.InFlight.Wait(drv, device, gomath.MaxUint64); err != nil {
		return err
	}

	fl.stage = StageImageAcquire
	imageIndex, result := drv.AcquireNextImage(device, fl.rt.Swapchain, gomath.MaxUint64, slot.ImageAvailable)
	suboptimal := false
	switch {
	case driver.IsOutOfDate(result):
		core.LogDebug("Swapchain out of date at acquire, recreating.")
		_, err := fl.RecreateSwapchain()
		return err
	case driver.IsSuboptimal(result):
		suboptimal = true
	case !driver.ResultIsSuccess(result):
		err := &driver.ResultError{Op: "vkAcquireNextImageKHR", Result: result}
		core.LogError("failed to acquire swapchain image: %s", err)
		return err
	}

	// Only reset once an image is guaranteed to be submitted, or the next
	// wait on this slot would never return.
	if err := slot.InFlight.Reset(drv, device); err != nil {
		return err
	}

	fl.stage = StageRecording
	if err := fl.rm.UpdateUniformBuffer(fl.frame, ubo); err != nil {
		return err
	}
	cb := fl.fi.CommandBuffer(fl.frame)
	if err := fl.record(cb, imageIndex); err != nil {
		return err
	}

	fl.stage = StageSubmit
	err := drv.QueueSubmit(fl.fi.GraphicsQueue(), driver.SubmitInfo{
		CommandBuffers: []driver.CommandBuffer{cb.Handle},
		Wait:           []driver.Semaphore{slot.ImageAvailable},
		WaitStages:     []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		Signal:         []driver.Semaphore{slot.RenderFinished},
	}, slot.InFlight.Handle)
	if err != nil {
		core.LogError("vkQueueSubmit failed: %s", err)
		return err
	}
	cb.UpdateSubmitted()

	fl.stage = StagePresent
	result = drv.QueuePresent(fl.fi.PresentQueue(), driver.PresentInfo{
		Wait:       []driver.Semaphore{slot.RenderFinished},
		Swapchain:  fl.rt.Swapchain,
		ImageIndex: imageIndex,
	})
	switch {
	case suboptimal || driver.IsOutOfDate(result) || driver.IsSuboptimal(result):
		core.LogDebug("Swapchain out of date or suboptimal at present, recreating.")
		_, err := fl.RecreateSwapchain()
		return err
	case !driver.ResultIsSuccess(result):
		err := &driver.ResultError{Op: "vkQueuePresentKHR", Result: result}
		core.LogError("failed to present swapchain image: %s", err)
		return err
	}

	fl.frame = (fl.frame + 1) % fl.framesInFlight
	return nil
}

func (fl *FrameLoop) record(cb *CommandBuffer, imageIndex uint32) error {
	drv := fl.dc.Driver()
	if err := cb.Reset(drv); err != nil {
		return err
	}
	if err := cb.Begin(drv, false, false, false); err != nil {
		return err
	}

	extent := fl.rt.Extent()
	fl.rt.Renderpass.RenderpassBegin(drv, cb, fl.rt.Framebuffers[imageIndex].Handle, extent)
	fl.rt.Pipeline.Bind(drv, cb)
	drv.CmdBindVertexBuffer(cb.Handle, fl.rm.VertexBuffer.Handle)
	drv.CmdBindIndexBuffer(cb.Handle, fl.rm.IndexBuffer.Handle, vk.IndexTypeUint32)

	drv.CmdSetViewport(cb.Handle, driver.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	})
	drv.CmdSetScissor(cb.Handle, extent)

	drv.CmdBindDescriptorSet(cb.Handle, fl.rt.Pipeline.PipelineLayout, fl.rm.DescriptorSet(fl.frame))
	drv.CmdDrawIndexed(cb.Handle, fl.rm.IndexCount)

	fl.rt.Renderpass.RenderpassEnd(drv, cb)
	return cb.End(drv)
}

// RequestRecreate asks for a swapchain rebuild at the start of the next
// frame. It may be called from any goroutine.
func (fl *FrameLoop) RequestRecreate() {
	fl.recreateRequested.Store(true)
}

// RecreateSwapchain rebuilds the render targets for the current surface. It
// reports false while the surface has no drawable area; the rebuild is then
// retried on every frame until it succeeds. When no swapchain can be
// configured on the current device a new device is selected and everything
// depending on it is rebuilt.
//
// A failed rebuild leaves the loop without render targets: nothing is
// recorded until a later call succeeds.
func (fl *FrameLoop) RecreateSwapchain() (bool, error) {
	ok, err := fl.recreate()
	if err != nil {
		fl.pending = true
	}
	return ok, err
}

func (fl *FrameLoop) recreate() (bool, error) {
	drawable := fl.dc.DrawableExtent()
	if drawable.Width == 0 || drawable.Height == 0 {
		if !fl.pending {
			core.LogDebug("Swapchain recreation requested while the window is < 1 in a dimension. Booting.")
		}
		fl.pending = true
		return false, nil
	}

	if fl.deviceLost {
		if err := fl.rebuildDeviceAndDependents(); err != nil {
			return false, err
		}
		fl.finishRecreate()
		return true, nil
	}

	if err := fl.dc.DeviceWaitIdle(); err != nil {
		core.LogError("vkDeviceWaitIdle failed before swapchain recreation: %s", err)
		return false, err
	}

	fl.rm.DestroyDescriptors()
	if fl.rt.Alive() {
		fl.rt.Destroy()
	}

	config, err := BuildSwapchainConfig(fl.dc.Driver(), fl.dc.Selection(), fl.dc.Surface(), drawable, fl.dc.SwapchainOptions())
	switch {
	case errors.Is(err, core.ErrSwapchainBooting):
		fl.pending = true
		return false, nil
	case err != nil:
		core.LogWarn("Swapchain cannot be configured on the current device (%s), selecting a device again.", err)
		if err := fl.rebuildDeviceAndDependents(); err != nil {
			return false, err
		}
	default:
		rt, err := NewRenderTargets(fl.dc, config, fl.opts.Shaders, fl.opts.Targets)
		if err != nil {
			return false, err
		}
		if err := fl.rm.RebuildDescriptors(rt); err != nil {
			rt.Destroy()
			return false, err
		}
		fl.rt = rt
	}

	fl.finishRecreate()
	return true, nil
}

func (fl *FrameLoop) finishRecreate() {
	fl.pending = false
	fl.recreations++
	core.LogInfo("Swapchain recreated (%dx%d).", fl.rt.Extent().Width, fl.rt.Extent().Height)
}

// rebuildDeviceAndDependents replaces the logical device and rebuilds the
// frame interface, render targets and resources on the new one. The new
// components are installed only once all of them were built.
func (fl *FrameLoop) rebuildDeviceAndDependents() error {
	if err := fl.dc.DeviceWaitIdle(); err != nil {
		core.LogWarn("vkDeviceWaitIdle failed before device rebuild: %s", err)
	}
	if fl.rm.Alive() {
		fl.rm.Destroy()
	}
	if fl.rt.Alive() {
		fl.rt.Destroy()
	}
	if fl.fi.Alive() {
		fl.fi.Destroy()
	}
	if fl.dc.DeviceAlive() {
		fl.dc.DestroyDevice()
	}
	fl.deviceLost = true

	sel, err := fl.dc.SelectDevice()
	if err != nil {
		return err
	}
	if err := fl.dc.SetDevice(sel); err != nil {
		return err
	}

	fi, err := NewFrameInterface(fl.dc, fl.framesInFlight)
	if err != nil {
		return err
	}
	rt, err := NewRenderTargets(fl.dc, sel.Swapchain, fl.opts.Shaders, fl.opts.Targets)
	if err != nil {
		fi.Destroy()
		return err
	}
	rm, err := NewResourceMemory(fl.dc, fi, rt, fl.mesh, fl.texture)
	if err != nil {
		rt.Destroy()
		fi.Destroy()
		return fmt.Errorf("re-uploading resources to %s: %w", sel.Properties.Name, err)
	}

	fl.fi, fl.rt, fl.rm = fi, rt, rm
	fl.frame = 0
	fl.deviceLost = false
	return nil
}

func (fl *FrameLoop) FrameIndex() uint32 {
	return fl.frame
}

func (fl *FrameLoop) Stage() FrameStage {
	return fl.stage
}

func (fl *FrameLoop) Recreations() uint64 {
	return fl.recreations
}

func (fl *FrameLoop) FrameInterface() *FrameInterface {
	return fl.fi
}

func (fl *FrameLoop) RenderTargets() *RenderTargets {
	return fl.rt
}

func (fl *FrameLoop) ResourceMemory() *ResourceMemory {
	return fl.rm
}

// Shutdown waits for the device to go idle and releases resources, the frame
// interface, the render targets and the device context in that order. Errors
// are logged, never returned.
func (fl *FrameLoop) Shutdown() {
	if err := fl.dc.DeviceWaitIdle(); err != nil {
		core.LogError("vkDeviceWaitIdle failed at shutdown: %s", err)
	}
	if fl.rm.Alive() {
		fl.rm.Destroy()
	}
	if fl.fi.Alive() {
		fl.fi.Destroy()
	}
	if fl.rt.Alive() {
		fl.rt.Destroy()
	}
	if fl.dc.Alive() {
		fl.dc.Destroy()
	}
	fl.stage = StageIdle
}
