package vulkan

import (
	gomath "math"
	"testing"

	vk "github.com/goki/vulkan"
	. "github.com/onsi/gomega"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
)

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		name      string
		min, max  uint32
		preferred uint32
		want      uint32
		wantErr   bool
	}{
		{name: "fixed", min: 2, max: 2, preferred: 3, want: 2},
		{name: "unbounded", min: 1, max: 0, preferred: 3, want: 3},
		{name: "unbounded above preferred", min: 4, max: 0, preferred: 3, want: 5},
		{name: "clamped up to min+1", min: 3, max: 8, preferred: 3, want: 4},
		{name: "clamped down to max", min: 1, max: 2, preferred: 3, want: 2},
		{name: "within range", min: 2, max: 8, preferred: 3, want: 3},
		{name: "zero images", min: 0, max: 0, preferred: 3, wantErr: true},
		{name: "empty range", min: 4, max: 2, preferred: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			got, err := chooseImageCount(tt.min, tt.max, tt.preferred)
			if tt.wantErr {
				g.Expect(err).To(MatchError(core.ErrSwapchainConfig))
				return
			}
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	g := NewWithT(t)

	mode, err := choosePresentMode([]vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo, vk.PresentModeMailbox})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(mode).To(Equal(vk.PresentModeMailbox))

	mode, err = choosePresentMode([]vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifoRelaxed})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(mode).To(Equal(vk.PresentModeFifoRelaxed))

	unknown := vk.PresentMode(42)
	mode, err = choosePresentMode([]vk.PresentMode{unknown})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(mode).To(Equal(unknown))

	_, err = choosePresentMode(nil)
	g.Expect(err).To(MatchError(core.ErrSwapchainConfig))
}

func TestChooseSurfaceFormat(t *testing.T) {
	g := NewWithT(t)

	unorm := driver.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	format, err := chooseSurfaceFormat([]driver.SurfaceFormat{unorm, preferredSurfaceFormat})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(format).To(Equal(preferredSurfaceFormat))

	format, err = chooseSurfaceFormat([]driver.SurfaceFormat{unorm})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(format).To(Equal(unorm))

	_, err = chooseSurfaceFormat(nil)
	g.Expect(err).To(MatchError(core.ErrSwapchainConfig))
}

func TestChooseExtent(t *testing.T) {
	g := NewWithT(t)

	caps := driver.SurfaceCapabilities{
		CurrentExtent:  driver.Extent2D{Width: 1024, Height: 768},
		MinImageExtent: driver.Extent2D{Width: 16, Height: 16},
		MaxImageExtent: driver.Extent2D{Width: 2048, Height: 2048},
	}
	g.Expect(chooseExtent(caps, driver.Extent2D{Width: 10, Height: 10})).To(Equal(driver.Extent2D{Width: 1024, Height: 768}))

	caps.CurrentExtent = driver.Extent2D{Width: gomath.MaxUint32, Height: gomath.MaxUint32}
	g.Expect(chooseExtent(caps, driver.Extent2D{Width: 4000, Height: 8})).To(Equal(driver.Extent2D{Width: 2048, Height: 16}))
	g.Expect(chooseExtent(caps, driver.Extent2D{Width: 640, Height: 480})).To(Equal(driver.Extent2D{Width: 640, Height: 480}))
}

func TestBuildSwapchainConfig(t *testing.T) {
	g := NewWithT(t)

	spec := drivertest.Device("gpu")
	m := drivertest.New(spec)
	sel, err := SelectPhysicalDevice(m, driver.NullHandle, driver.NullHandle, drawable, SwapchainOptions{})
	g.Expect(err).NotTo(HaveOccurred())

	config, err := BuildSwapchainConfig(m, sel, driver.NullHandle, drawable, SwapchainOptions{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(config.Format).To(Equal(preferredSurfaceFormat))
	g.Expect(config.PresentMode).To(Equal(vk.PresentModeMailbox))
	g.Expect(config.Extent).To(Equal(driver.Extent2D{Width: 800, Height: 600}))
	g.Expect(config.ImageCount).To(Equal(uint32(3)))
	g.Expect(config.SharingMode()).To(Equal(vk.SharingModeExclusive))

	// A minimised window leaves nothing to draw to.
	spec.Capabilities.CurrentExtent = driver.Extent2D{Width: gomath.MaxUint32, Height: gomath.MaxUint32}
	spec.Capabilities.MinImageExtent = driver.Extent2D{}
	_, err = BuildSwapchainConfig(m, sel, driver.NullHandle, driver.Extent2D{}, SwapchainOptions{})
	g.Expect(err).To(MatchError(core.ErrSwapchainBooting))
}

func TestSwapchainConfigConcurrentSharing(t *testing.T) {
	g := NewWithT(t)

	config := &SwapchainConfig{ImageCount: 3, QueueFamilies: []uint32{0, 2}}
	info := config.createInfo(driver.NullHandle)
	g.Expect(info.SharingMode).To(Equal(vk.SharingModeConcurrent))
	g.Expect(info.QueueFamilies).To(Equal([]uint32{0, 2}))
	g.Expect(info.MinImageCount).To(Equal(uint32(3)))
}
