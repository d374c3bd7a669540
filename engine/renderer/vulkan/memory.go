package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

const textureFormat = vk.FormatR8g8b8a8Srgb

// FindMemoryTypeIndex returns the first memory type allowed by typeBits that
// has every flag in properties.
func FindMemoryTypeIndex(memory driver.MemoryProperties, typeBits uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for i, t := range memory.Types {
		if typeBits&(1<<uint32(i)) != 0 && t.PropertyFlags&properties == properties {
			return uint32(i), nil
		}
	}
	core.LogError("Unable to find suitable memory type (bits %b, properties %d)", typeBits, properties)
	return 0, core.ErrMemoryTypeNotFound
}

// allocationError tags out-of-memory results as allocation pressure.
func allocationError(op string, err error) error {
	var re *driver.ResultError
	if errors.As(err, &re) && (re.Result == vk.ErrorOutOfDeviceMemory || re.Result == vk.ErrorOutOfHostMemory) {
		return fmt.Errorf("%s: %w: %w", op, core.ErrAllocation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ResourceMemory owns the GPU copies of the scene: vertex and index buffers,
// one mapped uniform buffer per frame in flight, the texture with its sampler
// and the descriptor sets binding them. The source mesh and texture are kept
// so everything can be rebuilt on another device.
type ResourceMemory struct {
	lifecycle

	drv    driver.Driver
	device driver.Device

	mesh    *metadata.MeshData
	texture *metadata.TextureData

	VertexBuffer *Buffer
	IndexBuffer  *Buffer
	IndexCount   uint32
	Uniforms     []*Buffer
	Texture      *Image
	Sampler      driver.Sampler
	Descriptors  *VulkanDescriptorSets
}

// NewResourceMemory uploads mesh and texture and binds them to descriptor
// sets of the layout in rt.
func NewResourceMemory(dc *DeviceContext, fi *FrameInterface, rt *RenderTargets, mesh *metadata.MeshData, texture *metadata.TextureData) (*ResourceMemory, error) {
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("mesh %q has no geometry", mesh.Name)
	}
	if texture.Width == 0 || texture.Height == 0 || uint64(len(texture.Pixels)) < texture.Size() {
		return nil, fmt.Errorf("texture %q has no pixel data", texture.Name)
	}

	rm := &ResourceMemory{
		drv:        dc.Driver(),
		device:     dc.Device(),
		mesh:       mesh,
		texture:    texture,
		IndexCount: mesh.IndexCount(),
	}
	sel := dc.Selection()
	pool, queue := fi.CommandPool(), fi.GraphicsQueue()

	td := &teardown{}
	defer td.unwind()

	vertices, err := rm.uploadDeviceLocal(sel.Memory, pool, queue, mesh.VertexBytes(),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		core.LogError("failed to upload vertex buffer: %s", err)
		return nil, err
	}
	rm.VertexBuffer = vertices
	td.push("vertex buffer", vertices.Destroy)

	indices, err := rm.uploadDeviceLocal(sel.Memory, pool, queue, mesh.IndexBytes(),
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		core.LogError("failed to upload index buffer: %s", err)
		return nil, err
	}
	rm.IndexBuffer = indices
	td.push("index buffer", indices.Destroy)

	for i := uint32(0); i < fi.FramesInFlight(); i++ {
		ubo, err := NewBuffer(rm.drv, rm.device, sel.Memory, vk.DeviceSize(math.UniformBufferObjectSize),
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			return nil, err
		}
		td.push("uniform buffer", ubo.Destroy)
		// Mapped for the whole lifetime of the buffer.
		if _, err := ubo.Map(); err != nil {
			return nil, err
		}
		rm.Uniforms = append(rm.Uniforms, ubo)
	}

	tex, err := rm.uploadTexture(dc, pool, queue)
	if err != nil {
		core.LogError("failed to upload texture %q: %s", texture.Name, err)
		return nil, err
	}
	rm.Texture = tex
	td.push("texture", tex.Destroy)

	sampler, err := createSampler(dc, tex.MipLevels)
	if err != nil {
		return nil, err
	}
	rm.Sampler = sampler
	td.push("sampler", func() { rm.drv.DestroySampler(rm.device, sampler) })

	if err := rm.RebuildDescriptors(rt); err != nil {
		return nil, err
	}

	td.release()
	core.LogDebug("Resources uploaded: %d vertices, %d indices, %dx%d texture with %d mip levels.",
		len(mesh.Vertices), rm.IndexCount, tex.Width, tex.Height, tex.MipLevels)
	return rm, nil
}

// uploadDeviceLocal copies data into a new device local buffer through a
// temporary staging buffer.
func (rm *ResourceMemory) uploadDeviceLocal(memory driver.MemoryProperties, pool driver.CommandPool, queue driver.Queue, data []byte, usage vk.BufferUsageFlags) (*Buffer, error) {
	size := vk.DeviceSize(len(data))
	staging, err := NewBuffer(rm.drv, rm.device, memory, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	if err := staging.Upload(data); err != nil {
		return nil, err
	}

	dst, err := NewBuffer(rm.drv, rm.device, memory, size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	if err := staging.CopyTo(dst, size, pool, queue); err != nil {
		dst.Destroy()
		return nil, err
	}
	return dst, nil
}

// uploadTexture creates the sampled image, copies the pixels into level 0
// and fills the remaining levels. Mipmaps are skipped when the format cannot
// be blitted with a linear filter.
func (rm *ResourceMemory) uploadTexture(dc *DeviceContext, pool driver.CommandPool, queue driver.Queue) (*Image, error) {
	sel := dc.Selection()
	texture := rm.texture

	mipLevels := MipLevelsFor(texture.Width, texture.Height)
	features := rm.drv.FormatProperties(sel.PhysicalDevice, textureFormat).OptimalTilingFeatures
	if features&vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit) == 0 {
		core.LogWarn("Texture format does not support linear blitting, mipmaps disabled.")
		mipLevels = 1
	}

	staging, err := NewBuffer(rm.drv, rm.device, sel.Memory, vk.DeviceSize(texture.Size()),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.Upload(texture.Pixels[:texture.Size()]); err != nil {
		return nil, err
	}

	img, err := NewImage(rm.drv, rm.device, sel.Memory, ImageOptions{
		Width:     texture.Width,
		Height:    texture.Height,
		MipLevels: mipLevels,
		Format:    textureFormat,
		Tiling:    vk.ImageTilingOptimal,
		Usage: vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit |
			vk.ImageUsageSampledBit),
		MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		ViewAspect:  vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		return nil, err
	}

	cb, err := AllocateAndBeginSingleUse(rm.drv, rm.device, pool)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	if err := img.TransitionLayout(cb, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		cb.Free(rm.drv, rm.device, pool)
		img.Destroy()
		return nil, err
	}
	img.CopyFromBuffer(cb, staging)
	if mipLevels > 1 {
		img.GenerateMipmaps(cb)
	} else if err := img.TransitionLayout(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		cb.Free(rm.drv, rm.device, pool)
		img.Destroy()
		return nil, err
	}
	if err := cb.EndSingleUse(rm.drv, rm.device, pool, queue); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// createSampler enables anisotropic filtering when the device supports it.
func createSampler(dc *DeviceContext, mipLevels uint32) (driver.Sampler, error) {
	sel := dc.Selection()
	info := driver.SamplerInfo{
		AnisotropyEnable: false,
		MaxAnisotropy:    1.0,
		MaxLod:           float32(mipLevels),
	}
	if sel.Features.SamplerAnisotropy {
		info.AnisotropyEnable = true
		info.MaxAnisotropy = sel.Properties.MaxSamplerAnisotropy
	}
	sampler, err := dc.Driver().CreateSampler(dc.Device(), info)
	if err != nil {
		core.LogError("failed to create texture sampler: %s", err)
		return driver.NullHandle, err
	}
	return sampler, nil
}

// RebuildDescriptors replaces the descriptor pool and sets with new ones
// allocated against the set layout of rt.
func (rm *ResourceMemory) RebuildDescriptors(rt *RenderTargets) error {
	rm.DestroyDescriptors()
	descriptors, err := newDescriptorSets(rm.drv, rm.device, rt.SetLayout, rm.Uniforms, rm.Texture, rm.Sampler)
	if err != nil {
		return err
	}
	rm.Descriptors = descriptors
	return nil
}

// DestroyDescriptors frees the descriptor sets. They must be rebuilt before
// the next frame is recorded.
func (rm *ResourceMemory) DestroyDescriptors() {
	if rm.Descriptors != nil {
		rm.Descriptors.Destroy(rm.drv, rm.device)
		rm.Descriptors = nil
	}
}

// DescriptorSet returns the set of frame, nil while descriptors are torn down.
func (rm *ResourceMemory) DescriptorSet(frame uint32) driver.DescriptorSet {
	rm.assertLive("resource memory")
	if rm.Descriptors == nil {
		return driver.NullHandle
	}
	return rm.Descriptors.Sets[frame]
}

// UpdateUniformBuffer writes ubo into the uniform buffer of frame. The fence
// of that frame must have been waited on.
func (rm *ResourceMemory) UpdateUniformBuffer(frame uint32, ubo *math.UniformBufferObject) error {
	rm.assertLive("resource memory")
	return rm.Uniforms[frame].Write(0, ubo.Bytes())
}

func (rm *ResourceMemory) Mesh() *metadata.MeshData {
	return rm.mesh
}

func (rm *ResourceMemory) TextureData() *metadata.TextureData {
	return rm.texture
}

// Destroy releases descriptors, sampler, texture and buffers. The device must
// be idle.
func (rm *ResourceMemory) Destroy() {
	if !rm.markDestroyed("resource memory") {
		return
	}
	rm.DestroyDescriptors()
	rm.drv.DestroySampler(rm.device, rm.Sampler)
	rm.Texture.Destroy()
	for _, ubo := range rm.Uniforms {
		ubo.Destroy()
	}
	rm.Uniforms = nil
	rm.IndexBuffer.Destroy()
	rm.VertexBuffer.Destroy()
	core.LogDebug("Resource memory destroyed.")
}
