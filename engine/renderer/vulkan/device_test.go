package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	. "github.com/onsi/gomega"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
)

var drawable = driver.Extent2D{Width: 800, Height: 600}

func integrated(name string) *drivertest.DeviceSpec {
	spec := drivertest.Device(name)
	spec.Properties.Type = vk.PhysicalDeviceTypeIntegratedGpu
	return spec
}

func TestSelectPhysicalDevicePicksHighestScore(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(integrated("igpu"), drivertest.Device("dgpu"))

	sel, err := SelectPhysicalDevice(m, driver.NullHandle, driver.NullHandle, drawable, SwapchainOptions{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.Properties.Name).To(Equal("dgpu"))
	g.Expect(sel.Score).To(Equal(uint32(1000 + 100 + 8)))
	g.Expect(sel.Swapchain).NotTo(BeNil())
}

func TestSelectPhysicalDeviceTieGoesToFirst(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("first"), drivertest.Device("second"))

	sel, err := SelectPhysicalDevice(m, driver.NullHandle, driver.NullHandle, drawable, SwapchainOptions{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.Properties.Name).To(Equal("first"))
}

func TestSelectPhysicalDeviceSkipsUnsuitable(t *testing.T) {
	g := NewWithT(t)

	noSwapchain := drivertest.Device("no-swapchain")
	noSwapchain.Extensions = nil
	noDepth := drivertest.Device("no-depth")
	noDepth.FormatProps = nil
	noPresent := drivertest.Device("no-present")
	noPresent.Present = []bool{false}
	fallback := integrated("fallback")

	m := drivertest.New(noSwapchain, noDepth, noPresent, fallback)
	sel, err := SelectPhysicalDevice(m, driver.NullHandle, driver.NullHandle, drawable, SwapchainOptions{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.Properties.Name).To(Equal("fallback"))
}

func TestSelectPhysicalDeviceFailsWithoutCandidates(t *testing.T) {
	g := NewWithT(t)

	_, err := SelectPhysicalDevice(drivertest.New(), driver.NullHandle, driver.NullHandle, drawable, SwapchainOptions{})
	g.Expect(err).To(MatchError(core.ErrNoSuitableDevice))

	broken := drivertest.Device("broken")
	broken.Formats = nil
	_, err = SelectPhysicalDevice(drivertest.New(broken), driver.NullHandle, driver.NullHandle, drawable, SwapchainOptions{})
	g.Expect(err).To(MatchError(core.ErrNoSuitableDevice))
}

func TestDeviceScore(t *testing.T) {
	g := NewWithT(t)

	props := driver.PhysicalDeviceProperties{
		Type:              vk.PhysicalDeviceTypeDiscreteGpu,
		ColorSampleCounts: vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount64Bit),
		DepthSampleCounts: vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount64Bit),
	}
	g.Expect(DeviceScore(props, driver.Features{SamplerAnisotropy: true})).To(Equal(uint32(1164)))

	// Only counts shared by color and depth attachments contribute.
	props.Type = vk.PhysicalDeviceTypeCpu
	props.DepthSampleCounts = vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount4Bit)
	g.Expect(DeviceScore(props, driver.Features{})).To(Equal(uint32(1)))
}

func TestFindQueueFamilies(t *testing.T) {
	g := NewWithT(t)

	spec := drivertest.Device("split")
	spec.Families = []driver.QueueFamily{
		{Flags: vk.QueueFlags(vk.QueueTransferBit), Count: 1},
		{Flags: vk.QueueFlags(vk.QueueGraphicsBit), Count: 1},
		{Flags: vk.QueueFlags(vk.QueueComputeBit), Count: 1},
	}
	spec.Present = []bool{true, false, true}
	m := drivertest.New(spec)
	pds, _ := m.EnumeratePhysicalDevices(driver.NullHandle)

	families, ok, err := FindQueueFamilies(m, pds[0], driver.NullHandle)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeTrue())
	g.Expect(families).To(Equal(QueueFamilies{Graphics: 1, Present: 0}))

	// Presentation prefers the graphics family when it can present.
	spec.Present = []bool{true, true, true}
	families, ok, err = FindQueueFamilies(m, pds[0], driver.NullHandle)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeTrue())
	g.Expect(families).To(Equal(QueueFamilies{Graphics: 1, Present: 1}))

	spec.Present = []bool{false, false, false}
	_, ok, err = FindQueueFamilies(m, pds[0], driver.NullHandle)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeFalse())
}

func TestUniqueIndexes(t *testing.T) {
	g := NewWithT(t)

	g.Expect(QueueFamilies{Graphics: 2, Present: 2}.UniqueIndexes()).To(Equal([]uint32{2}))
	g.Expect(QueueFamilies{Graphics: 0, Present: 3}.UniqueIndexes()).To(Equal([]uint32{0, 3}))
	g.Expect(QueueFamilies{Graphics: 3, Present: 0}.UniqueIndexes()).To(Equal([]uint32{3, 0}))
}

func TestDetectDepthFormat(t *testing.T) {
	g := NewWithT(t)

	spec := drivertest.Device("gpu")
	delete(spec.FormatProps, vk.FormatD32Sfloat)
	m := drivertest.New(spec)
	pds, _ := m.EnumeratePhysicalDevices(driver.NullHandle)

	format, ok := DetectDepthFormat(m, pds[0])
	g.Expect(ok).To(BeTrue())
	g.Expect(format).To(Equal(vk.FormatD32SfloatS8Uint))
}
