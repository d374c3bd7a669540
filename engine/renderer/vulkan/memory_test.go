package vulkan

import (
	"fmt"
	"testing"

	vk "github.com/goki/vulkan"
	. "github.com/onsi/gomega"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
)

func TestFindMemoryTypeIndex(t *testing.T) {
	g := NewWithT(t)
	memory := drivertest.Device("gpu").Memory

	index, err := FindMemoryTypeIndex(memory, 0b11, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(index).To(Equal(uint32(1)))

	index, err = FindMemoryTypeIndex(memory, 0b11, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(index).To(BeZero())

	// Type 1 is host visible but excluded by the type bits.
	_, err = FindMemoryTypeIndex(memory, 0b01, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	g.Expect(err).To(MatchError(core.ErrMemoryTypeNotFound))
}

func TestAllocationError(t *testing.T) {
	g := NewWithT(t)

	err := allocationError("allocate", &driver.ResultError{Op: "vkAllocateMemory", Result: vk.ErrorOutOfDeviceMemory})
	g.Expect(err).To(MatchError(core.ErrAllocation))

	err = allocationError("allocate", &driver.ResultError{Op: "vkAllocateMemory", Result: vk.ErrorDeviceLost})
	g.Expect(err).NotTo(MatchError(core.ErrAllocation))
}

type resourceFixture struct {
	m  *drivertest.Mock
	dc *DeviceContext
	fi *FrameInterface
	rt *RenderTargets
}

func newResourceFixture(t *testing.T, spec *drivertest.DeviceSpec) *resourceFixture {
	t.Helper()
	g := NewWithT(t)
	m := drivertest.New(spec)
	dc := newTestContext(t, m, &fakeWindow{width: 800, height: 600})
	fi, err := NewFrameInterface(dc, 2)
	g.Expect(err).NotTo(HaveOccurred())
	rt, err := newTestRenderTargets(t, dc)
	g.Expect(err).NotTo(HaveOccurred())
	return &resourceFixture{m: m, dc: dc, fi: fi, rt: rt}
}

func (f *resourceFixture) destroy() {
	f.rt.Destroy()
	f.fi.Destroy()
	f.dc.Destroy()
}

func TestResourceMemoryUpload(t *testing.T) {
	g := NewWithT(t)
	f := newResourceFixture(t, drivertest.Device("gpu"))
	defer f.destroy()
	baseline := f.m.LiveSnapshot()

	mesh := testMesh()
	rm, err := NewResourceMemory(f.dc, f.fi, f.rt, mesh, testTexture(4, 4))
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(rm.IndexCount).To(Equal(uint32(6)))
	g.Expect(rm.Uniforms).To(HaveLen(2))
	g.Expect(rm.Descriptors.Sets).To(HaveLen(2))
	// Staging buffers are gone once the uploads finish.
	g.Expect(f.m.Live(drivertest.KindBuffer)).To(Equal(4))
	g.Expect(f.m.Calls("CmdCopyBuffer")).To(Equal(2))
	g.Expect(f.m.Calls("CmdCopyBufferToImage")).To(Equal(1))

	// Device local memory is only reached through copies.
	g.Expect(f.m.MemoryContents(rm.VertexBuffer.Memory)).To(BeNil())

	rm.Destroy()
	g.Expect(f.m.LiveSnapshot()).To(Equal(baseline))
	g.Expect(f.m.DoubleFrees()).To(BeEmpty())
}

func TestResourceMemoryMipmaps(t *testing.T) {
	g := NewWithT(t)
	f := newResourceFixture(t, drivertest.Device("gpu"))
	defer f.destroy()

	rm, err := NewResourceMemory(f.dc, f.fi, f.rt, testMesh(), testTexture(4, 4))
	g.Expect(err).NotTo(HaveOccurred())
	defer rm.Destroy()

	g.Expect(rm.Texture.MipLevels).To(Equal(uint32(3)))
	g.Expect(f.m.ImageInfo(rm.Texture.Handle).MipLevels).To(Equal(uint32(3)))
	g.Expect(f.m.Blits()).To(HaveLen(2))
	g.Expect(finalLayouts(f.m, rm.Texture)).To(HaveEach(vk.ImageLayoutShaderReadOnlyOptimal))
}

func TestResourceMemoryWithoutLinearBlit(t *testing.T) {
	g := NewWithT(t)
	spec := drivertest.Device("gpu")
	spec.FormatProps[vk.FormatR8g8b8a8Srgb] = driver.FormatProperties{
		OptimalTilingFeatures: vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit),
	}
	spec.Features.SamplerAnisotropy = false
	f := newResourceFixture(t, spec)
	defer f.destroy()

	rm, err := NewResourceMemory(f.dc, f.fi, f.rt, testMesh(), testTexture(4, 4))
	g.Expect(err).NotTo(HaveOccurred())
	defer rm.Destroy()

	g.Expect(rm.Texture.MipLevels).To(Equal(uint32(1)))
	g.Expect(f.m.Blits()).To(BeEmpty())
	g.Expect(finalLayouts(f.m, rm.Texture)).To(Equal([]vk.ImageLayout{vk.ImageLayoutShaderReadOnlyOptimal}))
}

func TestResourceMemoryUniformBuffer(t *testing.T) {
	g := NewWithT(t)
	f := newResourceFixture(t, drivertest.Device("gpu"))
	defer f.destroy()

	rm, err := NewResourceMemory(f.dc, f.fi, f.rt, testMesh(), testTexture(2, 2))
	g.Expect(err).NotTo(HaveOccurred())
	defer rm.Destroy()

	ubo := math.NewUniformBufferObject()
	ubo.Model[3][0] = 5
	g.Expect(rm.UpdateUniformBuffer(1, &ubo)).To(Succeed())

	frame1 := f.m.MemoryContents(rm.Uniforms[1].Memory)
	g.Expect(frame1[:math.UniformBufferObjectSize]).To(Equal(ubo.Bytes()))
	frame0 := f.m.MemoryContents(rm.Uniforms[0].Memory)
	g.Expect(frame0[:math.UniformBufferObjectSize]).NotTo(Equal(ubo.Bytes()))
}

func TestResourceMemoryRebuildDescriptors(t *testing.T) {
	g := NewWithT(t)
	f := newResourceFixture(t, drivertest.Device("gpu"))
	defer f.destroy()

	rm, err := NewResourceMemory(f.dc, f.fi, f.rt, testMesh(), testTexture(2, 2))
	g.Expect(err).NotTo(HaveOccurred())
	defer rm.Destroy()

	before := rm.DescriptorSet(0)
	rm.DestroyDescriptors()
	g.Expect(f.m.Live(drivertest.KindDescriptorPool)).To(BeZero())
	g.Expect(rm.DescriptorSet(0)).To(Equal(driver.DescriptorSet(driver.NullHandle)))

	g.Expect(rm.RebuildDescriptors(f.rt)).To(Succeed())
	g.Expect(f.m.Live(drivertest.KindDescriptorPool)).To(Equal(1))
	g.Expect(rm.DescriptorSet(0)).NotTo(Equal(before))
}

func TestResourceMemoryRollback(t *testing.T) {
	steps := []struct {
		op string
		n  int
	}{
		{"CreateBuffer", 1},
		{"CreateBuffer", 2},
		{"AllocateMemory", 2},
		{"QueueSubmit", 1},
		{"CreateBuffer", 4},
		{"MapMemory", 3},
		{"CreateBuffer", 6},
		{"CreateImage", 1},
		{"CreateSampler", 1},
		{"CreateDescriptorPool", 1},
		{"AllocateDescriptorSets", 1},
	}
	for _, step := range steps {
		t.Run(fmt.Sprintf("%s#%d", step.op, step.n), func(t *testing.T) {
			g := NewWithT(t)
			f := newResourceFixture(t, drivertest.Device("gpu"))
			defer f.destroy()
			baseline := f.m.LiveSnapshot()

			f.m.FailOn(step.op, step.n)
			_, err := NewResourceMemory(f.dc, f.fi, f.rt, testMesh(), testTexture(4, 4))
			g.Expect(err).To(HaveOccurred())
			g.Expect(f.m.LiveSnapshot()).To(Equal(baseline))
			g.Expect(f.m.DoubleFrees()).To(BeEmpty())
		})
	}
}

func TestResourceMemoryOutOfDeviceMemory(t *testing.T) {
	g := NewWithT(t)
	f := newResourceFixture(t, drivertest.Device("gpu"))
	defer f.destroy()

	// Injected failures report VK_ERROR_OUT_OF_DEVICE_MEMORY.
	f.m.FailOn("AllocateMemory", 1)
	_, err := NewResourceMemory(f.dc, f.fi, f.rt, testMesh(), testTexture(4, 4))
	g.Expect(err).To(MatchError(core.ErrAllocation))
}

func TestResourceMemoryRejectsEmptyInput(t *testing.T) {
	g := NewWithT(t)
	f := newResourceFixture(t, drivertest.Device("gpu"))
	defer f.destroy()

	mesh := testMesh()
	mesh.Indices = nil
	_, err := NewResourceMemory(f.dc, f.fi, f.rt, mesh, testTexture(4, 4))
	g.Expect(err).To(HaveOccurred())

	texture := testTexture(4, 4)
	texture.Pixels = texture.Pixels[:8]
	_, err = NewResourceMemory(f.dc, f.fi, f.rt, testMesh(), texture)
	g.Expect(err).To(HaveOccurred())
	g.Expect(f.m.Live(drivertest.KindBuffer)).To(BeZero())
}
