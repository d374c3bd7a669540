package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// Device extensions every candidate must expose.
var requiredDeviceExtensions = []string{vk.KhrSwapchainExtensionName}

// Enabled on the logical device when the implementation exposes it (MoltenVK).
const portabilitySubsetExtension = "VK_KHR_portability_subset"

const (
	discreteGPUScore       uint32 = 1000
	samplerAnisotropyScore uint32 = 100
)

// QueueFamilies holds the queue family indices used by the renderer. Graphics
// and present are resolved independently and may coincide.
type QueueFamilies struct {
	Graphics uint32
	Present  uint32
}

// UniqueIndexes returns the distinct family indices, graphics first.
func (q QueueFamilies) UniqueIndexes() []uint32 {
	if q.Graphics == q.Present {
		return []uint32{q.Graphics}
	}
	return []uint32{q.Graphics, q.Present}
}

// Selection is the outcome of physical device selection: the device, what it
// can do and the swapchain configuration proposed against the surface.
type Selection struct {
	PhysicalDevice driver.PhysicalDevice
	Properties     driver.PhysicalDeviceProperties
	Features       driver.Features
	Memory         driver.MemoryProperties
	Families       QueueFamilies
	DepthFormat    vk.Format
	// Highest sample count usable by both color and depth attachments.
	MaxSamples vk.SampleCountFlagBits
	Swapchain  *SwapchainConfig
	Score      uint32
}

// unsuitableError explains why a candidate was skipped.
type unsuitableError struct {
	device string
	reason string
}

func (e *unsuitableError) Error() string {
	return fmt.Sprintf("physical device %q is not suitable: %s", e.device, e.reason)
}

// FindQueueFamilies scans the queue families of pd. The first graphics
// family wins; presentation prefers the graphics family and otherwise takes
// the first family that can present to surface.
func FindQueueFamilies(drv driver.Driver, pd driver.PhysicalDevice, surface driver.Surface) (QueueFamilies, bool, error) {
	families := drv.QueueFamilies(pd)

	var graphics, present uint32
	var hasGraphics, hasPresent bool

	core.LogDebug("Graphics | Present | Compute | Transfer")
	for i, family := range families {
		index := uint32(i)
		isGraphics := family.Flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		supportsPresent, err := drv.SurfaceSupport(pd, index, surface)
		if err != nil {
			return QueueFamilies{}, false, err
		}
		core.LogDebug("       %d |       %d |       %d |        %d",
			b2i(isGraphics), b2i(supportsPresent),
			b2i(family.Flags&vk.QueueFlags(vk.QueueComputeBit) != 0),
			b2i(family.Flags&vk.QueueFlags(vk.QueueTransferBit) != 0))

		if isGraphics && !hasGraphics {
			graphics, hasGraphics = index, true
		}
		if supportsPresent && (!hasPresent || (isGraphics && index == graphics)) {
			present, hasPresent = index, true
		}
	}
	if !hasGraphics || !hasPresent {
		return QueueFamilies{}, false, nil
	}
	return QueueFamilies{Graphics: graphics, Present: present}, true, nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sampleCountsDescending pairs every sample count with its score bonus.
var sampleCountsDescending = []struct {
	bit   vk.SampleCountFlagBits
	score uint32
}{
	{vk.SampleCount64Bit, 64},
	{vk.SampleCount32Bit, 32},
	{vk.SampleCount16Bit, 16},
	{vk.SampleCount8Bit, 8},
	{vk.SampleCount4Bit, 4},
	{vk.SampleCount2Bit, 2},
	{vk.SampleCount1Bit, 1},
}

// maxUsableSampleCount returns the highest sample count supported by both
// color and depth framebuffer attachments.
func maxUsableSampleCount(props driver.PhysicalDeviceProperties) (vk.SampleCountFlagBits, uint32) {
	counts := props.ColorSampleCounts & props.DepthSampleCounts
	for _, c := range sampleCountsDescending {
		if counts&vk.SampleCountFlags(c.bit) != 0 {
			return c.bit, c.score
		}
	}
	return vk.SampleCount1Bit, 0
}

// DeviceScore ranks a candidate. Being discrete dominates, then sampler
// anisotropy, then the multisample capability.
func DeviceScore(props driver.PhysicalDeviceProperties, features driver.Features) uint32 {
	var score uint32
	if props.Type == vk.PhysicalDeviceTypeDiscreteGpu {
		score += discreteGPUScore
	}
	if features.SamplerAnisotropy {
		score += samplerAnisotropyScore
	}
	_, samples := maxUsableSampleCount(props)
	return score + samples
}

// DetectDepthFormat returns the first depth format usable as an optimally
// tiled depth/stencil attachment.
func DetectDepthFormat(drv driver.Driver, pd driver.PhysicalDevice) (vk.Format, bool) {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, format := range candidates {
		if drv.FormatProperties(pd, format).OptimalTilingFeatures&flags == flags {
			return format, true
		}
	}
	return vk.FormatUndefined, false
}

// SelectPhysicalDevice scores every physical device and picks the highest
// score. Ties go to the device enumerated first. Unsuitable devices are
// skipped with a diagnostic.
func SelectPhysicalDevice(drv driver.Driver, instance driver.Instance, surface driver.Surface, drawable driver.Extent2D, opts SwapchainOptions) (*Selection, error) {
	devices, err := drv.EnumeratePhysicalDevices(instance)
	if err != nil {
		core.LogError("failed to enumerate physical devices: %s", err)
		return nil, err
	}
	if len(devices) == 0 {
		core.LogError("No devices which support Vulkan were found.")
		return nil, core.ErrNoSuitableDevice
	}

	var best *Selection
	for _, pd := range devices {
		candidate, err := scoreDevice(drv, pd, surface, drawable, opts)
		if err != nil {
			var unsuitable *unsuitableError
			if !errors.As(err, &unsuitable) && !errors.Is(err, core.ErrSwapchainConfig) {
				core.LogWarn("Failed to score physical device: %s", err)
			} else {
				core.LogInfo("%s. Skipping.", err)
			}
			continue
		}
		core.LogInfo("Physical device '%s' scored %d.", candidate.Properties.Name, candidate.Score)
		if best == nil || candidate.Score > best.Score {
			best = candidate
		}
	}

	if best == nil {
		core.LogError("No physical devices were found which meet the requirements.")
		return nil, core.ErrNoSuitableDevice
	}
	logSelection(best)
	return best, nil
}

func scoreDevice(drv driver.Driver, pd driver.PhysicalDevice, surface driver.Surface, drawable driver.Extent2D, opts SwapchainOptions) (*Selection, error) {
	props := drv.PhysicalDeviceProperties(pd)
	features := drv.PhysicalDeviceFeatures(pd)

	families, ok, err := FindQueueFamilies(drv, pd, surface)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &unsuitableError{props.Name, "missing a graphics or present queue family"}
	}

	available, err := drv.DeviceExtensions(pd)
	if err != nil {
		return nil, err
	}
	for _, ext := range requiredDeviceExtensions {
		if !driver.Contains(available, ext) {
			return nil, &unsuitableError{props.Name, fmt.Sprintf("extension %s is not supported", ext)}
		}
	}

	depthFormat, ok := DetectDepthFormat(drv, pd)
	if !ok {
		return nil, &unsuitableError{props.Name, "no supported depth format"}
	}

	sel := &Selection{
		PhysicalDevice: pd,
		Properties:     props,
		Features:       features,
		Memory:         drv.MemoryProperties(pd),
		Families:       families,
		DepthFormat:    depthFormat,
		Score:          DeviceScore(props, features),
	}
	sel.MaxSamples, _ = maxUsableSampleCount(props)

	config, err := BuildSwapchainConfig(drv, sel, surface, drawable, opts)
	if err != nil {
		return nil, fmt.Errorf("physical device %q: %w", props.Name, err)
	}
	sel.Swapchain = config
	return sel, nil
}

func logSelection(sel *Selection) {
	props := sel.Properties
	core.LogInfo("Selected device: '%s'.", props.Name)
	switch props.Type {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo("GPU Driver version: %d.%d.%d",
		vk.Version(props.DriverVersion).Major(),
		vk.Version(props.DriverVersion).Minor(),
		vk.Version(props.DriverVersion).Patch())
	core.LogInfo("Vulkan API version: %d.%d.%d",
		vk.Version(props.APIVersion).Major(),
		vk.Version(props.APIVersion).Minor(),
		vk.Version(props.APIVersion).Patch())
	for _, heap := range sel.Memory.Heaps {
		gib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if heap.DeviceLocal {
			core.LogInfo("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", gib)
		}
	}
	core.LogInfo("Queue families: graphics=%d present=%d, max MSAA %dx.",
		sel.Families.Graphics, sel.Families.Present, sel.MaxSamples)
}
