package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

const (
	uniformBinding = 0
	samplerBinding = 1
)

// descriptorBindings is the layout shared by the pipeline and every
// descriptor set: the uniform block for the vertex stage and the texture for
// the fragment stage.
var descriptorBindings = []driver.DescriptorBinding{
	{
		Binding: uniformBinding,
		Type:    vk.DescriptorTypeUniformBuffer,
		Count:   1,
		Stages:  vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	},
	{
		Binding: samplerBinding,
		Type:    vk.DescriptorTypeCombinedImageSampler,
		Count:   1,
		Stages:  vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	},
}

func createDescriptorSetLayout(drv driver.Driver, device driver.Device) (driver.DescriptorSetLayout, error) {
	layout, err := drv.CreateDescriptorSetLayout(device, descriptorBindings)
	if err != nil {
		core.LogError("failed to create descriptor set layout: %s", err)
		return driver.NullHandle, err
	}
	return layout, nil
}

// VulkanDescriptorSets is a pool holding one set per frame in flight.
type VulkanDescriptorSets struct {
	Pool driver.DescriptorPool
	Sets []driver.DescriptorSet
}

// newDescriptorSets allocates one set per uniform buffer and points binding 0
// at that buffer and binding 1 at the texture.
func newDescriptorSets(drv driver.Driver, device driver.Device, layout driver.DescriptorSetLayout, uniforms []*Buffer, texture *Image, sampler driver.Sampler) (*VulkanDescriptorSets, error) {
	count := uint32(len(uniforms))
	pool, err := drv.CreateDescriptorPool(device, []driver.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, Count: count},
		{Type: vk.DescriptorTypeCombinedImageSampler, Count: count},
	}, count)
	if err != nil {
		core.LogError("failed to create descriptor pool: %s", err)
		return nil, err
	}

	layouts := make([]driver.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	sets, err := drv.AllocateDescriptorSets(device, pool, layouts)
	if err != nil {
		core.LogError("failed to allocate descriptor sets: %s", err)
		drv.DestroyDescriptorPool(device, pool)
		return nil, err
	}
	if len(sets) != len(uniforms) {
		drv.DestroyDescriptorPool(device, pool)
		return nil, fmt.Errorf("allocated %d descriptor sets, wanted %d", len(sets), len(uniforms))
	}

	writes := make([]driver.DescriptorWrite, 0, 2*len(sets))
	for i, set := range sets {
		writes = append(writes,
			driver.DescriptorWrite{
				Set:     set,
				Binding: uniformBinding,
				Type:    vk.DescriptorTypeUniformBuffer,
				Buffer:  uniforms[i].Handle,
				Range:   uniforms[i].Size,
			},
			driver.DescriptorWrite{
				Set:         set,
				Binding:     samplerBinding,
				Type:        vk.DescriptorTypeCombinedImageSampler,
				ImageView:   texture.View,
				Sampler:     sampler,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			})
	}
	drv.UpdateDescriptorSets(device, writes)

	return &VulkanDescriptorSets{Pool: pool, Sets: sets}, nil
}

// Destroy frees the pool, which frees the sets with it.
func (d *VulkanDescriptorSets) Destroy(drv driver.Driver, device driver.Device) {
	drv.DestroyDescriptorPool(device, d.Pool)
	d.Pool = driver.NullHandle
	d.Sets = nil
}
