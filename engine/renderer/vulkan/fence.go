package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// Fence tracks whether the fence is known to be signaled so waiting on it
// again is free and resetting an unsignaled fence is skipped.
type Fence struct {
	Handle     driver.Fence
	IsSignaled bool
}

func NewFence(drv driver.Driver, device driver.Device, createSignaled bool) (*Fence, error) {
	handle, err := drv.CreateFence(device, createSignaled)
	if err != nil {
		core.LogError("failed to create fence: %s", err)
		return nil, err
	}
	return &Fence{Handle: handle, IsSignaled: createSignaled}, nil
}

func (f *Fence) Destroy(drv driver.Driver, device driver.Device) {
	if f.Handle != driver.NullHandle {
		drv.DestroyFence(device, f.Handle)
		f.Handle = driver.NullHandle
	}
	f.IsSignaled = false
}

// Wait blocks until the fence is signaled or timeoutNs elapses.
func (f *Fence) Wait(drv driver.Driver, device driver.Device, timeoutNs uint64) error {
	if f.IsSignaled {
		return nil
	}
	result := drv.WaitForFence(device, f.Handle, timeoutNs)
	switch result {
	case vk.Success:
		f.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("fence wait - Timed out")
	case vk.ErrorDeviceLost:
		core.LogError("fence wait - VK_ERROR_DEVICE_LOST.")
	case vk.ErrorOutOfHostMemory:
		core.LogError("fence wait - VK_ERROR_OUT_OF_HOST_MEMORY.")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("fence wait - VK_ERROR_OUT_OF_DEVICE_MEMORY.")
	default:
		core.LogError("fence wait - An unknown error has occurred.")
	}
	return fmt.Errorf("fence wait: %w", &driver.ResultError{Op: "vkWaitForFences", Result: result})
}

func (f *Fence) Reset(drv driver.Driver, device driver.Device) error {
	if !f.IsSignaled {
		return nil
	}
	if err := drv.ResetFence(device, f.Handle); err != nil {
		core.LogError("failed to reset fence: %s", err)
		return err
	}
	f.IsSignaled = false
	return nil
}
