package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

type CommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY CommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type CommandBuffer struct {
	Handle driver.CommandBuffer
	State  CommandBufferState
}

func NewCommandBuffers(drv driver.Driver, device driver.Device, pool driver.CommandPool, count uint32) ([]*CommandBuffer, error) {
	handles, err := drv.AllocateCommandBuffers(device, pool, count)
	if err != nil {
		core.LogError("failed to allocate command buffers: %s", err)
		return nil, err
	}
	out := make([]*CommandBuffer, len(handles))
	for i, h := range handles {
		out[i] = &CommandBuffer{Handle: h, State: COMMAND_BUFFER_STATE_READY}
	}
	return out, nil
}

func (c *CommandBuffer) Free(drv driver.Driver, device driver.Device, pool driver.CommandPool) {
	if c.Handle != driver.NullHandle {
		drv.FreeCommandBuffers(device, pool, []driver.CommandBuffer{c.Handle})
		c.Handle = driver.NullHandle
	}
	c.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (c *CommandBuffer) Begin(drv driver.Driver, isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	var flags vk.CommandBufferUsageFlags
	if isSingleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if err := drv.BeginCommandBuffer(c.Handle, flags); err != nil {
		core.LogError("failed to begin command buffer: %s", err)
		return err
	}
	c.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (c *CommandBuffer) End(drv driver.Driver) error {
	if err := drv.EndCommandBuffer(c.Handle); err != nil {
		core.LogError("failed to end command buffer: %s", err)
		return err
	}
	c.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (c *CommandBuffer) UpdateSubmitted() {
	c.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (c *CommandBuffer) Reset(drv driver.Driver) error {
	if err := drv.ResetCommandBuffer(c.Handle); err != nil {
		return err
	}
	c.State = COMMAND_BUFFER_STATE_READY
	return nil
}

// AllocateAndBeginSingleUse allocates a command buffer and begins a one time
// submit recording on it.
func AllocateAndBeginSingleUse(drv driver.Driver, device driver.Device, pool driver.CommandPool) (*CommandBuffer, error) {
	cbs, err := NewCommandBuffers(drv, device, pool, 1)
	if err != nil {
		return nil, err
	}
	cb := cbs[0]
	if err := cb.Begin(drv, true, false, false); err != nil {
		cb.Free(drv, device, pool)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits to queue, waits for it to drain and
// frees the command buffer, whatever the outcome.
func (c *CommandBuffer) EndSingleUse(drv driver.Driver, device driver.Device, pool driver.CommandPool, queue driver.Queue) error {
	defer c.Free(drv, device, pool)

	if err := c.End(drv); err != nil {
		return err
	}
	if err := drv.QueueSubmit(queue, driver.SubmitInfo{CommandBuffers: []driver.CommandBuffer{c.Handle}}, driver.NullHandle); err != nil {
		core.LogError("failed submit info to queue: %s", err)
		return err
	}
	c.UpdateSubmitted()
	if err := drv.QueueWaitIdle(queue); err != nil {
		core.LogError("queue failed to wait in idle mode: %s", err)
		return err
	}
	return nil
}
