package vulkan

import (
	"errors"
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

const (
	validationLayer              = "VK_LAYER_KHRONOS_validation"
	surfaceExtension             = "VK_KHR_surface"
	portabilityEnumerationExt    = "VK_KHR_portability_enumeration"
	physicalDeviceProperties2Ext = "VK_KHR_get_physical_device_properties2"
	engineName                   = "Ember Engine"
)

// Window is what the renderer needs from the windowing system.
type Window interface {
	driver.SurfaceSource
	RequiredInstanceExtensions() []string
	// DrawableSize is the framebuffer size in pixels.
	DrawableSize() (width, height uint32)
}

type ContextOptions struct {
	ApplicationName string
	Validation      bool
	// When false the renderer never multisamples.
	MSAA      bool
	Swapchain SwapchainOptions
}

// DeviceContext owns the instance, the optional debug messenger, the surface
// and the logical device. The logical device can be replaced on its own with
// DestroyDevice followed by SetDevice.
type DeviceContext struct {
	lifecycle
	device lifecycle

	drv    driver.Driver
	window Window
	opts   ContextOptions

	instance  driver.Instance
	messenger driver.DebugMessenger
	surface   driver.Surface

	selection     *Selection
	logicalDevice driver.Device
}

// NewDeviceContext builds instance, debug messenger, surface, physical device
// and logical device in that order. On failure everything created so far is
// released in reverse order.
func NewDeviceContext(drv driver.Driver, window Window, opts ContextOptions) (*DeviceContext, error) {
	dc := &DeviceContext{drv: drv, window: window, opts: opts}
	td := &teardown{}
	defer td.unwind()

	instance, err := createInstance(drv, window, opts)
	if err != nil {
		return nil, err
	}
	dc.instance = instance
	td.push("instance", func() { drv.DestroyInstance(instance) })
	core.LogDebug("Vulkan instance created.")

	if opts.Validation {
		messenger, err := drv.CreateDebugMessenger(instance, debugCallback)
		if err != nil {
			core.LogError("failed to create debug messenger: %s", err)
			return nil, err
		}
		dc.messenger = messenger
		td.push("debug messenger", func() { drv.DestroyDebugMessenger(instance, messenger) })
		core.LogDebug("Vulkan debugger created.")
	}

	surface, err := drv.CreateSurface(instance, window)
	if err != nil {
		core.LogError("Failed to create platform surface: %s", err)
		return nil, err
	}
	dc.surface = surface
	td.push("surface", func() { drv.DestroySurface(instance, surface) })
	core.LogDebug("Vulkan surface created.")

	sel, err := dc.SelectDevice()
	if err != nil {
		return nil, err
	}
	if err := dc.createLogicalDevice(sel); err != nil {
		return nil, err
	}

	td.release()
	return dc, nil
}

func createInstance(drv driver.Driver, window Window, opts ContextOptions) (driver.Instance, error) {
	extensions := []string{surfaceExtension}
	for _, ext := range window.RequiredInstanceExtensions() {
		if !driver.Contains(extensions, ext) {
			extensions = append(extensions, ext)
		}
	}
	portability := runtime.GOOS == "darwin"
	if portability {
		extensions = append(extensions, portabilityEnumerationExt, physicalDeviceProperties2Ext)
	}
	if opts.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}

	available, err := drv.InstanceExtensions()
	if err != nil {
		return driver.NullHandle, err
	}
	for _, ext := range extensions {
		if !driver.Contains(available, ext) {
			core.LogError("Required extension is missing: %s", ext)
			return driver.NullHandle, fmt.Errorf("%s: %w", ext, core.ErrMissingExtension)
		}
	}

	var layers []string
	if opts.Validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		availableLayers, err := drv.InstanceLayers()
		if err != nil {
			return driver.NullHandle, err
		}
		if !driver.Contains(availableLayers, validationLayer) {
			core.LogError("Required validation layer is missing: %s", validationLayer)
			return driver.NullHandle, fmt.Errorf("%s: %w", validationLayer, core.ErrMissingValidationLayer)
		}
		layers = append(layers, validationLayer)
	}

	instance, err := drv.CreateInstance(driver.InstanceInfo{
		ApplicationName: opts.ApplicationName,
		EngineName:      engineName,
		Extensions:      extensions,
		Layers:          layers,
		Portability:     portability,
	})
	if err != nil {
		core.LogError("vkCreateInstance failed: %s", err)
		return driver.NullHandle, err
	}
	return instance, nil
}

func debugCallback(severity driver.DebugSeverity, layer string, code int32, message string) {
	switch severity {
	case driver.DebugSeverityError:
		core.LogError("[%s] Code %d : %s", layer, code, message)
	case driver.DebugSeverityWarning, driver.DebugSeverityPerformance:
		core.LogWarn("[%s] Code %d : %s", layer, code, message)
	default:
		core.LogDebug("[%s] Code %d : %s", layer, code, message)
	}
}

// SelectDevice runs physical device selection against the current surface
// and drawable size.
func (dc *DeviceContext) SelectDevice() (*Selection, error) {
	return SelectPhysicalDevice(dc.drv, dc.instance, dc.surface, dc.DrawableExtent(), dc.opts.Swapchain)
}

func (dc *DeviceContext) createLogicalDevice(sel *Selection) error {
	extensions := append([]string(nil), requiredDeviceExtensions...)
	if available, err := dc.drv.DeviceExtensions(sel.PhysicalDevice); err == nil && driver.Contains(available, portabilitySubsetExtension) {
		extensions = append(extensions, portabilitySubsetExtension)
	}
	var layers []string
	if dc.opts.Validation {
		layers = []string{validationLayer}
	}

	device, err := dc.drv.CreateDevice(sel.PhysicalDevice, driver.DeviceInfo{
		QueueFamilies:     sel.Families.UniqueIndexes(),
		Extensions:        extensions,
		Layers:            layers,
		SamplerAnisotropy: sel.Features.SamplerAnisotropy,
	})
	if err != nil {
		core.LogError("failed to create logical device: %s", err)
		return err
	}
	dc.selection = sel
	dc.logicalDevice = device
	dc.device.revive()
	core.LogInfo("Logical device created.")
	return nil
}

func (dc *DeviceContext) Driver() driver.Driver { return dc.drv }

func (dc *DeviceContext) Instance() driver.Instance { return dc.instance }

func (dc *DeviceContext) Surface() driver.Surface { return dc.surface }

// Device returns the logical device. It must not be called while the device
// is destroyed.
func (dc *DeviceContext) Device() driver.Device {
	dc.device.assertLive("logical device")
	return dc.logicalDevice
}

// DeviceAlive reports whether a logical device is installed.
func (dc *DeviceContext) DeviceAlive() bool {
	return dc.device.Alive()
}

func (dc *DeviceContext) Selection() *Selection {
	return dc.selection
}

// MsaaSamples is the sample count used for color and depth attachments.
func (dc *DeviceContext) MsaaSamples() vk.SampleCountFlagBits {
	if !dc.opts.MSAA || dc.selection == nil {
		return vk.SampleCount1Bit
	}
	return dc.selection.MaxSamples
}

func (dc *DeviceContext) SwapchainOptions() SwapchainOptions {
	return dc.opts.Swapchain
}

func (dc *DeviceContext) DrawableExtent() driver.Extent2D {
	w, h := dc.window.DrawableSize()
	return driver.Extent2D{Width: w, Height: h}
}

// DeviceWaitIdle blocks until the device is idle. It is a no-op once the
// device has been destroyed.
func (dc *DeviceContext) DeviceWaitIdle() error {
	if !dc.device.Alive() {
		return nil
	}
	return dc.drv.DeviceWaitIdle(dc.logicalDevice)
}

// DestroyDevice destroys the logical device only.
func (dc *DeviceContext) DestroyDevice() {
	if !dc.device.markDestroyed("logical device") {
		return
	}
	core.LogInfo("Destroying logical device...")
	dc.drv.DestroyDevice(dc.logicalDevice)
	dc.logicalDevice = driver.NullHandle
}

var errDeviceInstalled = errors.New("a logical device is already installed")

// SetDevice creates a logical device for sel. Only valid after DestroyDevice.
func (dc *DeviceContext) SetDevice(sel *Selection) error {
	if dc.device.Alive() {
		return errDeviceInstalled
	}
	return dc.createLogicalDevice(sel)
}

// Destroy releases the device, the surface, the debug messenger and the
// instance. The device may already have been destroyed.
func (dc *DeviceContext) Destroy() {
	if !dc.markDestroyed("device context") {
		return
	}
	if dc.device.Alive() {
		dc.DestroyDevice()
	}
	core.LogDebug("Destroying Vulkan surface...")
	dc.drv.DestroySurface(dc.instance, dc.surface)
	if dc.messenger != driver.NullHandle {
		core.LogDebug("Destroying Vulkan debugger...")
		dc.drv.DestroyDebugMessenger(dc.instance, dc.messenger)
	}
	core.LogDebug("Destroying Vulkan instance...")
	dc.drv.DestroyInstance(dc.instance)
}
