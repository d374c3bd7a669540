package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// Buffer is a buffer bound to a dedicated allocation. Host visible buffers
// can be mapped; the mapping stays valid until Unmap or Destroy.
type Buffer struct {
	lifecycle

	ID     uuid.UUID
	Handle driver.Buffer
	Memory driver.DeviceMemory
	Size   vk.DeviceSize
	Usage  vk.BufferUsageFlags

	mapped []byte

	drv    driver.Driver
	device driver.Device
}

func NewBuffer(drv driver.Driver, device driver.Device, memory driver.MemoryProperties, size vk.DeviceSize, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (*Buffer, error) {
	b := &Buffer{
		ID:     uuid.New(),
		Size:   size,
		Usage:  usage,
		drv:    drv,
		device: device,
	}

	td := &teardown{}
	defer td.unwind()

	handle, err := drv.CreateBuffer(device, driver.BufferInfo{Size: size, Usage: usage})
	if err != nil {
		core.LogError("failed to create buffer %s: %s", b.ID, err)
		return nil, allocationError("create buffer", err)
	}
	b.Handle = handle
	td.push("buffer", func() { drv.DestroyBuffer(device, handle) })

	reqs := drv.BufferMemoryRequirements(device, handle)
	typeIndex, err := FindMemoryTypeIndex(memory, reqs.MemoryTypeBits, memoryFlags)
	if err != nil {
		return nil, err
	}
	mem, err := drv.AllocateMemory(device, reqs.Size, typeIndex)
	if err != nil {
		core.LogError("failed to allocate memory for buffer %s: %s", b.ID, err)
		return nil, allocationError("allocate buffer memory", err)
	}
	b.Memory = mem
	td.push("buffer memory", func() { drv.FreeMemory(device, mem) })

	if err := drv.BindBufferMemory(device, handle, mem); err != nil {
		core.LogError("failed to bind memory for buffer %s: %s", b.ID, err)
		return nil, err
	}

	td.release()
	return b, nil
}

// Map maps the whole buffer, or returns the existing mapping.
func (b *Buffer) Map() ([]byte, error) {
	b.assertLive("buffer")
	if b.mapped != nil {
		return b.mapped, nil
	}
	data, err := b.drv.MapMemory(b.device, b.Memory, b.Size)
	if err != nil {
		core.LogError("failed to map buffer %s: %s", b.ID, err)
		return nil, err
	}
	b.mapped = data
	return data, nil
}

func (b *Buffer) Unmap() {
	if b.mapped == nil {
		return
	}
	b.drv.UnmapMemory(b.device, b.Memory)
	b.mapped = nil
}

// Write copies data at offset into the mapped buffer.
func (b *Buffer) Write(offset vk.DeviceSize, data []byte) error {
	end := offset + vk.DeviceSize(len(data))
	if end > b.Size {
		if debugAssertions {
			panic(fmt.Sprintf("write of %d bytes at %d overflows buffer %s of %d bytes", len(data), offset, b.ID, b.Size))
		}
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d bytes", len(data), offset, b.Size)
	}
	if b.mapped == nil {
		return fmt.Errorf("buffer %s is not mapped", b.ID)
	}
	copy(b.mapped[offset:end], data)
	return nil
}

// Upload maps the buffer, writes data at the start and unmaps it again.
func (b *Buffer) Upload(data []byte) error {
	if _, err := b.Map(); err != nil {
		return err
	}
	defer b.Unmap()
	return b.Write(0, data)
}

// CopyTo copies size bytes into dst with a single use command buffer and
// waits for the copy to complete.
func (b *Buffer) CopyTo(dst *Buffer, size vk.DeviceSize, pool driver.CommandPool, queue driver.Queue) error {
	cb, err := AllocateAndBeginSingleUse(b.drv, b.device, pool)
	if err != nil {
		return err
	}
	b.drv.CmdCopyBuffer(cb.Handle, b.Handle, dst.Handle, size)
	return cb.EndSingleUse(b.drv, b.device, pool, queue)
}

func (b *Buffer) Destroy() {
	if !b.markDestroyed(fmt.Sprintf("buffer %s", b.ID)) {
		return
	}
	b.Unmap()
	b.drv.DestroyBuffer(b.device, b.Handle)
	b.drv.FreeMemory(b.device, b.Memory)
	b.Handle = driver.NullHandle
	b.Memory = driver.NullHandle
}
