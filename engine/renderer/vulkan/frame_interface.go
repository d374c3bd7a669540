package vulkan

import (
	"fmt"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// SyncSlot is the synchronization state of one frame in flight.
type SyncSlot struct {
	ImageAvailable driver.Semaphore
	RenderFinished driver.Semaphore
	InFlight       *Fence
}

// FrameInterface owns the queues, the graphics command pool, one command
// buffer per frame in flight and the matching sync slots.
type FrameInterface struct {
	lifecycle

	drv    driver.Driver
	device driver.Device

	graphicsQueue driver.Queue
	presentQueue  driver.Queue
	pool          driver.CommandPool

	commandBuffers []*CommandBuffer
	slots          []SyncSlot
}

func NewFrameInterface(dc *DeviceContext, framesInFlight uint32) (*FrameInterface, error) {
	if framesInFlight == 0 || framesInFlight > core.MaxFramesInFlight {
		return nil, fmt.Errorf("frames in flight must be in [1, %d], got %d", core.MaxFramesInFlight, framesInFlight)
	}
	drv, device := dc.Driver(), dc.Device()
	families := dc.Selection().Families

	fi := &FrameInterface{
		drv:           drv,
		device:        device,
		graphicsQueue: drv.GetQueue(device, families.Graphics),
		presentQueue:  drv.GetQueue(device, families.Present),
	}

	td := &teardown{}
	defer td.unwind()

	pool, err := drv.CreateCommandPool(device, families.Graphics, true)
	if err != nil {
		core.LogError("failed to create graphics command pool: %s", err)
		return nil, err
	}
	fi.pool = pool
	td.push("command pool", func() { drv.DestroyCommandPool(device, pool) })
	core.LogDebug("Graphics command pool created.")

	cbs, err := NewCommandBuffers(drv, device, pool, framesInFlight)
	if err != nil {
		return nil, err
	}
	fi.commandBuffers = cbs
	td.push("command buffers", func() {
		for _, cb := range cbs {
			cb.Free(drv, device, pool)
		}
	})

	fi.slots = make([]SyncSlot, 0, framesInFlight)
	for i := uint32(0); i < framesInFlight; i++ {
		imageAvailable, err := drv.CreateSemaphore(device)
		if err != nil {
			core.LogError("failed to create image available semaphore: %s", err)
			return nil, err
		}
		td.push("image available semaphore", func() { drv.DestroySemaphore(device, imageAvailable) })

		renderFinished, err := drv.CreateSemaphore(device)
		if err != nil {
			core.LogError("failed to create render finished semaphore: %s", err)
			return nil, err
		}
		td.push("render finished semaphore", func() { drv.DestroySemaphore(device, renderFinished) })

		// Signaled so the first wait of every slot returns at once.
		inFlight, err := NewFence(drv, device, true)
		if err != nil {
			return nil, err
		}
		td.push("in flight fence", func() { inFlight.Destroy(drv, device) })

		fi.slots = append(fi.slots, SyncSlot{
			ImageAvailable: imageAvailable,
			RenderFinished: renderFinished,
			InFlight:       inFlight,
		})
	}

	td.release()
	core.LogDebug("Frame interface created with %d frames in flight.", framesInFlight)
	return fi, nil
}

func (fi *FrameInterface) FramesInFlight() uint32 {
	return uint32(len(fi.slots))
}

func (fi *FrameInterface) GraphicsQueue() driver.Queue {
	fi.assertLive("frame interface")
	return fi.graphicsQueue
}

func (fi *FrameInterface) PresentQueue() driver.Queue {
	fi.assertLive("frame interface")
	return fi.presentQueue
}

func (fi *FrameInterface) CommandPool() driver.CommandPool {
	fi.assertLive("frame interface")
	return fi.pool
}

func (fi *FrameInterface) CommandBuffer(frame uint32) *CommandBuffer {
	fi.assertLive("frame interface")
	return fi.commandBuffers[frame]
}

func (fi *FrameInterface) Slot(frame uint32) *SyncSlot {
	fi.assertLive("frame interface")
	return &fi.slots[frame]
}

// Destroy releases semaphores, fences, command buffers and the pool. The
// device must be idle.
func (fi *FrameInterface) Destroy() {
	if !fi.markDestroyed("frame interface") {
		return
	}
	for i := range fi.slots {
		s := &fi.slots[i]
		fi.drv.DestroySemaphore(fi.device, s.ImageAvailable)
		fi.drv.DestroySemaphore(fi.device, s.RenderFinished)
		s.InFlight.Destroy(fi.drv, fi.device)
	}
	for _, cb := range fi.commandBuffers {
		cb.Free(fi.drv, fi.device, fi.pool)
	}
	fi.drv.DestroyCommandPool(fi.device, fi.pool)
	core.LogDebug("Frame interface destroyed.")
}
