package vulkan

import (
	"fmt"
	"math/bits"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

type ImageOptions struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    vk.Format
	Tiling    vk.ImageTiling
	Usage     vk.ImageUsageFlags
	Samples   vk.SampleCountFlagBits
	// Memory properties the backing allocation must have.
	MemoryFlags vk.MemoryPropertyFlags
	// When non-zero a view covering every mip level is created.
	ViewAspect vk.ImageAspectFlags
}

// Image is an image together with its dedicated memory and optional view.
type Image struct {
	lifecycle

	ID        uuid.UUID
	Handle    driver.Image
	Memory    driver.DeviceMemory
	View      driver.ImageView
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    vk.Format

	drv    driver.Driver
	device driver.Device
}

// MipLevelsFor returns floor(log2(max(width, height))) + 1.
func MipLevelsFor(width, height uint32) uint32 {
	size := max(width, height)
	if size == 0 {
		return 1
	}
	return uint32(bits.Len32(size))
}

func NewImage(drv driver.Driver, device driver.Device, memory driver.MemoryProperties, opts ImageOptions) (*Image, error) {
	if opts.MipLevels == 0 {
		opts.MipLevels = 1
	}
	if opts.Samples == 0 {
		opts.Samples = vk.SampleCount1Bit
	}
	img := &Image{
		ID:        uuid.New(),
		Width:     opts.Width,
		Height:    opts.Height,
		MipLevels: opts.MipLevels,
		Format:    opts.Format,
		drv:       drv,
		device:    device,
	}

	td := &teardown{}
	defer td.unwind()

	handle, err := drv.CreateImage(device, driver.ImageInfo{
		Width:     opts.Width,
		Height:    opts.Height,
		MipLevels: opts.MipLevels,
		Format:    opts.Format,
		Tiling:    opts.Tiling,
		Usage:     opts.Usage,
		Samples:   opts.Samples,
	})
	if err != nil {
		core.LogError("failed to create image %s: %s", img.ID, err)
		return nil, allocationError("create image", err)
	}
	img.Handle = handle
	td.push("image", func() { drv.DestroyImage(device, handle) })

	reqs := drv.ImageMemoryRequirements(device, handle)
	typeIndex, err := FindMemoryTypeIndex(memory, reqs.MemoryTypeBits, opts.MemoryFlags)
	if err != nil {
		return nil, err
	}
	mem, err := drv.AllocateMemory(device, reqs.Size, typeIndex)
	if err != nil {
		core.LogError("failed to allocate memory for image %s: %s", img.ID, err)
		return nil, allocationError("allocate image memory", err)
	}
	img.Memory = mem
	td.push("image memory", func() { drv.FreeMemory(device, mem) })

	if err := drv.BindImageMemory(device, handle, mem); err != nil {
		core.LogError("failed to bind memory for image %s: %s", img.ID, err)
		return nil, err
	}

	if opts.ViewAspect != 0 {
		view, err := drv.CreateImageView(device, driver.ImageViewInfo{
			Image:     handle,
			Format:    opts.Format,
			Aspect:    opts.ViewAspect,
			MipLevels: opts.MipLevels,
		})
		if err != nil {
			core.LogError("failed to create view for image %s: %s", img.ID, err)
			return nil, err
		}
		img.View = view
	}

	td.release()
	return img, nil
}

// Destroy releases the view, the image and its memory.
func (img *Image) Destroy() {
	if !img.markDestroyed(fmt.Sprintf("image %s", img.ID)) {
		return
	}
	if img.View != driver.NullHandle {
		img.drv.DestroyImageView(img.device, img.View)
		img.View = driver.NullHandle
	}
	img.drv.DestroyImage(img.device, img.Handle)
	img.drv.FreeMemory(img.device, img.Memory)
	img.Handle = driver.NullHandle
	img.Memory = driver.NullHandle
}

// TransitionLayout records a barrier moving every mip level from oldLayout to
// newLayout. Only the transitions an upload needs are supported.
func (img *Image) TransitionLayout(cb *CommandBuffer, oldLayout, newLayout vk.ImageLayout) error {
	barrier := driver.ImageBarrier{
		Image:        img.Handle,
		OldLayout:    oldLayout,
		NewLayout:    newLayout,
		BaseMipLevel: 0,
		LevelCount:   img.MipLevels,
	}
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccess = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.SrcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		barrier.DstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccess = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccess = vk.AccessFlags(vk.AccessShaderReadBit)
		barrier.SrcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		barrier.DstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		core.LogError("unsupported layout transition %d -> %d", oldLayout, newLayout)
		return fmt.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}
	img.drv.CmdPipelineBarrier(cb.Handle, barrier)
	return nil
}

// CopyFromBuffer records a copy of a tightly packed buffer into mip level 0.
// The image must be in TRANSFER_DST layout.
func (img *Image) CopyFromBuffer(cb *CommandBuffer, src *Buffer) {
	img.drv.CmdCopyBufferToImage(cb.Handle, src.Handle, img.Handle, img.Width, img.Height)
}

// GenerateMipmaps fills levels 1..n-1 by successive linear blits. Every level
// must be in TRANSFER_DST layout with level 0 holding the data; afterwards
// every level is SHADER_READ_ONLY.
func (img *Image) GenerateMipmaps(cb *CommandBuffer) {
	width, height := int32(img.Width), int32(img.Height)
	level := func(base uint32, oldLayout, newLayout vk.ImageLayout, src, dst vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlagBits) {
		img.drv.CmdPipelineBarrier(cb.Handle, driver.ImageBarrier{
			Image:        img.Handle,
			OldLayout:    oldLayout,
			NewLayout:    newLayout,
			SrcAccess:    src,
			DstAccess:    dst,
			SrcStage:     vk.PipelineStageFlags(srcStage),
			DstStage:     vk.PipelineStageFlags(dstStage),
			BaseMipLevel: base,
			LevelCount:   1,
		})
	}

	for i := uint32(1); i < img.MipLevels; i++ {
		level(i-1, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessTransferReadBit),
			vk.PipelineStageTransferBit, vk.PipelineStageTransferBit)

		nextWidth, nextHeight := max(width/2, 1), max(height/2, 1)
		img.drv.CmdBlitImage(cb.Handle, driver.ImageBlit{
			Image:     img.Handle,
			SrcLevel:  i - 1,
			SrcWidth:  width,
			SrcHeight: height,
			DstLevel:  i,
			DstWidth:  nextWidth,
			DstHeight: nextHeight,
		})

		level(i-1, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.AccessFlags(vk.AccessTransferReadBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit)

		width, height = nextWidth, nextHeight
	}

	level(img.MipLevels-1, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
		vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
		vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit)
}
