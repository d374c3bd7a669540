package vulkan

import (
	"fmt"
	gomath "math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

const defaultPreferredImageCount uint32 = 3

var preferredPresentModes = []vk.PresentMode{
	vk.PresentModeMailbox,
	vk.PresentModeFifo,
	vk.PresentModeFifoRelaxed,
	vk.PresentModeImmediate,
}

var preferredSurfaceFormat = driver.SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Srgb,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

type SwapchainOptions struct {
	// Zero means the default of 3.
	PreferredImageCount uint32
}

// SwapchainConfig is a fully resolved swapchain proposal for one device and
// surface.
type SwapchainConfig struct {
	Format       driver.SurfaceFormat
	PresentMode  vk.PresentMode
	Extent       driver.Extent2D
	ImageCount   uint32
	PreTransform vk.SurfaceTransformFlagBits
	// Distinct families touching swapchain images; two means concurrent
	// sharing.
	QueueFamilies []uint32
}

func (c *SwapchainConfig) SharingMode() vk.SharingMode {
	if len(c.QueueFamilies) > 1 {
		return vk.SharingModeConcurrent
	}
	return vk.SharingModeExclusive
}

func (c *SwapchainConfig) createInfo(surface driver.Surface) driver.SwapchainInfo {
	info := driver.SwapchainInfo{
		Surface:       surface,
		MinImageCount: c.ImageCount,
		Format:        c.Format,
		Extent:        c.Extent,
		PresentMode:   c.PresentMode,
		PreTransform:  c.PreTransform,
		SharingMode:   c.SharingMode(),
	}
	if info.SharingMode == vk.SharingModeConcurrent {
		info.QueueFamilies = c.QueueFamilies
	}
	return info
}

// BuildSwapchainConfig queries the surface support of the selected device
// and resolves a configuration for the drawable size.
func BuildSwapchainConfig(drv driver.Driver, sel *Selection, surface driver.Surface, drawable driver.Extent2D, opts SwapchainOptions) (*SwapchainConfig, error) {
	caps, err := drv.SurfaceCapabilities(sel.PhysicalDevice, surface)
	if err != nil {
		return nil, err
	}
	formats, err := drv.SurfaceFormats(sel.PhysicalDevice, surface)
	if err != nil {
		return nil, err
	}
	modes, err := drv.PresentModes(sel.PhysicalDevice, surface)
	if err != nil {
		return nil, err
	}

	format, err := chooseSurfaceFormat(formats)
	if err != nil {
		return nil, err
	}
	mode, err := choosePresentMode(modes)
	if err != nil {
		return nil, err
	}
	extent := chooseExtent(caps, drawable)
	if extent.Width == 0 || extent.Height == 0 {
		return nil, core.ErrSwapchainBooting
	}
	preferred := opts.PreferredImageCount
	if preferred == 0 {
		preferred = defaultPreferredImageCount
	}
	count, err := chooseImageCount(caps.MinImageCount, caps.MaxImageCount, preferred)
	if err != nil {
		return nil, err
	}

	return &SwapchainConfig{
		Format:        format,
		PresentMode:   mode,
		Extent:        extent,
		ImageCount:    count,
		PreTransform:  caps.CurrentTransform,
		QueueFamilies: sel.Families.UniqueIndexes(),
	}, nil
}

func chooseSurfaceFormat(formats []driver.SurfaceFormat) (driver.SurfaceFormat, error) {
	if len(formats) == 0 {
		return driver.SurfaceFormat{}, fmt.Errorf("no surface formats available: %w", core.ErrSwapchainConfig)
	}
	for _, f := range formats {
		if f == preferredSurfaceFormat {
			return f, nil
		}
	}
	core.LogWarn("Preferred surface format not available, using format %d.", formats[0].Format)
	return formats[0], nil
}

func choosePresentMode(modes []vk.PresentMode) (vk.PresentMode, error) {
	if len(modes) == 0 {
		return 0, fmt.Errorf("no present modes available: %w", core.ErrSwapchainConfig)
	}
	for _, preferred := range preferredPresentModes {
		for _, m := range modes {
			if m == preferred {
				return m, nil
			}
		}
	}
	core.LogWarn("No preferred present mode available, using mode %d.", modes[0])
	return modes[0], nil
}

// chooseExtent uses the extent fixed by the surface, or clamps the drawable
// size into the supported range when the surface leaves it to us.
func chooseExtent(caps driver.SurfaceCapabilities, drawable driver.Extent2D) driver.Extent2D {
	if caps.CurrentExtent.Width != gomath.MaxUint32 {
		return caps.CurrentExtent
	}
	return driver.Extent2D{
		Width:  math.Clamp(drawable.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(drawable.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount clamps preferred into [min+1, max]. A max of zero means
// unbounded.
func chooseImageCount(minCount, maxCount, preferred uint32) (uint32, error) {
	switch {
	case minCount == maxCount:
		if minCount == 0 {
			return 0, fmt.Errorf("surface reports zero images: %w", core.ErrSwapchainConfig)
		}
		return minCount, nil
	case maxCount == 0:
		if preferred > minCount+1 {
			return preferred, nil
		}
		return minCount + 1, nil
	case maxCount < minCount:
		return 0, fmt.Errorf("surface image count range [%d, %d] is empty: %w", minCount, maxCount, core.ErrSwapchainConfig)
	}
	return math.Clamp(preferred, minCount+1, maxCount), nil
}
