// Package drivertest provides an in-memory driver.Driver that hands out
// counted handles, records the commands it is given and lets tests inject
// failures and swapchain results.
package drivertest

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// Object kinds tracked by Live.
const (
	KindInstance       = "instance"
	KindDebugMessenger = "debug_messenger"
	KindSurface        = "surface"
	KindDevice         = "device"
	KindCommandPool    = "command_pool"
	KindCommandBuffer  = "command_buffer"
	KindSemaphore      = "semaphore"
	KindFence          = "fence"
	KindSwapchain      = "swapchain"
	KindImage          = "image"
	KindImageView      = "image_view"
	KindRenderPass     = "render_pass"
	KindSetLayout      = "descriptor_set_layout"
	KindPipelineLayout = "pipeline_layout"
	KindShaderModule   = "shader_module"
	KindPipeline       = "pipeline"
	KindFramebuffer    = "framebuffer"
	KindBuffer         = "buffer"
	KindMemory         = "device_memory"
	KindSampler        = "sampler"
	KindDescriptorPool = "descriptor_pool"
)

// DeviceSpec describes one fake physical device.
type DeviceSpec struct {
	Properties   driver.PhysicalDeviceProperties
	Features     driver.Features
	Families     []driver.QueueFamily
	Present      []bool
	Extensions   []string
	Capabilities driver.SurfaceCapabilities
	Formats      []driver.SurfaceFormat
	PresentModes []vk.PresentMode
	FormatProps  map[vk.Format]driver.FormatProperties
	Memory       driver.MemoryProperties
}

// Device returns a discrete GPU with a single graphics+present family that
// satisfies every requirement of the renderer.
func Device(name string) *DeviceSpec {
	filterable := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit | vk.FormatFeatureSampledImageFilterLinearBit |
		vk.FormatFeatureBlitSrcBit | vk.FormatFeatureBlitDstBit)
	depth := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	return &DeviceSpec{
		Properties: driver.PhysicalDeviceProperties{
			Name:                 name,
			Type:                 vk.PhysicalDeviceTypeDiscreteGpu,
			APIVersion:           uint32(vk.MakeVersion(1, 3, 0)),
			DriverVersion:        uint32(vk.MakeVersion(1, 0, 0)),
			ColorSampleCounts:    vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit | vk.SampleCount4Bit | vk.SampleCount8Bit),
			DepthSampleCounts:    vk.SampleCountFlags(vk.SampleCount1Bit | vk.SampleCount2Bit | vk.SampleCount4Bit | vk.SampleCount8Bit),
			MaxSamplerAnisotropy: 16,
		},
		Features: driver.Features{SamplerAnisotropy: true},
		Families: []driver.QueueFamily{
			{Flags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit), Count: 1},
		},
		Present:    []bool{true},
		Extensions: []string{vk.KhrSwapchainExtensionName},
		Capabilities: driver.SurfaceCapabilities{
			MinImageCount:    2,
			MaxImageCount:    8,
			CurrentExtent:    driver.Extent2D{Width: 800, Height: 600},
			MinImageExtent:   driver.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:   driver.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform: vk.SurfaceTransformIdentityBit,
		},
		Formats: []driver.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		FormatProps: map[vk.Format]driver.FormatProperties{
			vk.FormatR8g8b8a8Srgb:    {OptimalTilingFeatures: filterable},
			vk.FormatD32Sfloat:       {OptimalTilingFeatures: depth},
			vk.FormatD32SfloatS8Uint: {OptimalTilingFeatures: depth},
			vk.FormatD24UnormS8Uint:  {OptimalTilingFeatures: depth},
		},
		Memory: driver.MemoryProperties{
			Types: []driver.MemoryType{
				{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), HeapIndex: 0},
				{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit), HeapIndex: 1},
			},
			Heaps: []driver.MemoryHeap{
				{Size: 8 << 30, DeviceLocal: true},
				{Size: 16 << 30},
			},
		},
	}
}

// BarrierRecord is a barrier recorded on a command buffer.
type BarrierRecord struct {
	CommandBuffer driver.CommandBuffer
	driver.ImageBarrier
}

// SubmitRecord is one QueueSubmit call.
type SubmitRecord struct {
	Queue driver.Queue
	driver.SubmitInfo
	Fence driver.Fence
}

// PresentRecord is one QueuePresent call.
type PresentRecord struct {
	Queue driver.Queue
	driver.PresentInfo
}

// CommandRecord is a command recorded into a command buffer. Handle is the
// object it binds or targets, if any.
type CommandRecord struct {
	Op         string
	Handle     driver.Handle
	IndexCount uint32
}

// Mock is a driver.Driver that never touches a GPU. The zero value is not
// usable, call New.
type Mock struct {
	mu sync.Mutex

	Devices             []*DeviceSpec
	AvailableExtensions []string
	AvailableLayers     []string

	next     driver.Handle
	live     map[string]map[driver.Handle]bool
	physical map[driver.PhysicalDevice]*DeviceSpec
	order    []driver.PhysicalDevice
	failures map[string]int
	calls    []string

	acquireResults []vk.Result
	presentResults []vk.Result
	acquireCounter map[driver.Swapchain]uint32

	swapchainImages map[driver.Swapchain][]driver.Image
	swapchainInfo   map[driver.Swapchain]driver.SwapchainInfo
	signaled        map[driver.Fence]bool
	memorySize      map[driver.DeviceMemory]vk.DeviceSize
	memoryData      map[driver.DeviceMemory][]byte
	bufferSize      map[driver.Buffer]vk.DeviceSize
	imageInfo       map[driver.Image]driver.ImageInfo

	barriers    []BarrierRecord
	blits       []driver.ImageBlit
	instance    driver.InstanceInfo
	submitLog   []SubmitRecord
	presentLog  []PresentRecord
	commands    map[driver.CommandBuffer][]CommandRecord
	draws       int
	submits     int
	doubleFrees []string
}

// New returns a mock exposing the given physical devices in order.
func New(devices ...*DeviceSpec) *Mock {
	m := &Mock{
		Devices:             devices,
		AvailableExtensions: []string{"VK_KHR_surface", "VK_EXT_debug_report", "VK_EXT_debug_utils", "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2"},
		AvailableLayers:     []string{"VK_LAYER_KHRONOS_validation"},
		live:                make(map[string]map[driver.Handle]bool),
		physical:            make(map[driver.PhysicalDevice]*DeviceSpec),
		failures:            make(map[string]int),
		acquireCounter:      make(map[driver.Swapchain]uint32),
		swapchainImages:     make(map[driver.Swapchain][]driver.Image),
		swapchainInfo:       make(map[driver.Swapchain]driver.SwapchainInfo),
		signaled:            make(map[driver.Fence]bool),
		memorySize:          make(map[driver.DeviceMemory]vk.DeviceSize),
		memoryData:          make(map[driver.DeviceMemory][]byte),
		bufferSize:          make(map[driver.Buffer]vk.DeviceSize),
		imageInfo:           make(map[driver.Image]driver.ImageInfo),
		commands:            make(map[driver.CommandBuffer][]CommandRecord),
	}
	for _, spec := range devices {
		pd := driver.PhysicalDevice(m.handle())
		m.physical[pd] = spec
		m.order = append(m.order, pd)
	}
	return m
}

// FailOn makes the nth next call of op fail. n=1 fails the very next call.
func (m *Mock) FailOn(op string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = n
}

// QueueAcquireResults queues results returned by the next AcquireNextImage
// calls, Success afterwards.
func (m *Mock) QueueAcquireResults(results ...vk.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquireResults = append(m.acquireResults, results...)
}

func (m *Mock) QueuePresentResults(results ...vk.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presentResults = append(m.presentResults, results...)
}

// Live returns the number of live objects of a kind.
func (m *Mock) Live(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live[kind])
}

// LiveTotal returns the number of live objects of every kind.
func (m *Mock) LiveTotal() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, objs := range m.live {
		total += len(objs)
	}
	return total
}

// LiveSnapshot returns the live count per kind.
func (m *Mock) LiveSnapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.live))
	for kind, objs := range m.live {
		if len(objs) > 0 {
			out[kind] = len(objs)
		}
	}
	return out
}

// DoubleFrees lists destroy calls on handles that were not live.
func (m *Mock) DoubleFrees() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.doubleFrees...)
}

// Calls returns how many times op was called.
func (m *Mock) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (m *Mock) Barriers() []BarrierRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BarrierRecord(nil), m.barriers...)
}

func (m *Mock) Blits() []driver.ImageBlit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driver.ImageBlit(nil), m.blits...)
}

func (m *Mock) Draws() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draws
}

func (m *Mock) Submits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submits
}

// InstanceInfo returns what the last successful CreateInstance asked for.
func (m *Mock) InstanceInfo() driver.InstanceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instance
}

// Submissions returns every successful QueueSubmit in call order.
func (m *Mock) Submissions() []SubmitRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SubmitRecord(nil), m.submitLog...)
}

// Presents returns every QueuePresent in call order.
func (m *Mock) Presents() []PresentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PresentRecord(nil), m.presentLog...)
}

// Commands returns what was recorded into cb since it was last begun.
func (m *Mock) Commands(cb driver.CommandBuffer) []CommandRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CommandRecord(nil), m.commands[cb]...)
}

// ImageInfo returns the creation info of a non-swapchain image.
func (m *Mock) ImageInfo(image driver.Image) driver.ImageInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imageInfo[image]
}

// SwapchainInfo returns the creation info of a live swapchain.
func (m *Mock) SwapchainInfo(swapchain driver.Swapchain) driver.SwapchainInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swapchainInfo[swapchain]
}

// MemoryContents returns the backing bytes of an allocation.
func (m *Mock) MemoryContents(memory driver.DeviceMemory) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memoryData[memory]
}

func (m *Mock) handle() driver.Handle {
	m.next++
	return m.next
}

// call records op and reports an injected failure.
func (m *Mock) call(op string) error {
	m.calls = append(m.calls, op)
	if n, ok := m.failures[op]; ok {
		if n <= 1 {
			delete(m.failures, op)
			return &driver.ResultError{Op: op, Result: vk.ErrorOutOfDeviceMemory}
		}
		m.failures[op] = n - 1
	}
	return nil
}

func (m *Mock) create(op, kind string) (driver.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call(op); err != nil {
		return driver.NullHandle, err
	}
	h := m.handle()
	if m.live[kind] == nil {
		m.live[kind] = make(map[driver.Handle]bool)
	}
	m.live[kind][h] = true
	return h, nil
}

func (m *Mock) destroy(op, kind string, h driver.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
	if h == driver.NullHandle {
		return
	}
	if !m.live[kind][h] {
		m.doubleFrees = append(m.doubleFrees, fmt.Sprintf("%s(%d)", op, h))
		return
	}
	delete(m.live[kind], h)
}

func (m *Mock) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
}

func (m *Mock) recordCmd(cb driver.CommandBuffer, cmd CommandRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, cmd.Op)
	m.commands[cb] = append(m.commands[cb], cmd)
}

func (m *Mock) check(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.call(op)
}

func (m *Mock) spec(pd driver.PhysicalDevice) *DeviceSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.physical[pd]
}

func (m *Mock) InstanceExtensions() ([]string, error) {
	if err := m.check("InstanceExtensions"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.AvailableExtensions...), nil
}

func (m *Mock) InstanceLayers() ([]string, error) {
	if err := m.check("InstanceLayers"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.AvailableLayers...), nil
}

func (m *Mock) CreateInstance(info driver.InstanceInfo) (driver.Instance, error) {
	h, err := m.create("CreateInstance", KindInstance)
	if err == nil {
		m.mu.Lock()
		m.instance = info
		m.mu.Unlock()
	}
	return driver.Instance(h), err
}

func (m *Mock) DestroyInstance(instance driver.Instance) {
	m.destroy("DestroyInstance", KindInstance, driver.Handle(instance))
}

func (m *Mock) CreateDebugMessenger(instance driver.Instance, callback driver.DebugCallback) (driver.DebugMessenger, error) {
	h, err := m.create("CreateDebugMessenger", KindDebugMessenger)
	return driver.DebugMessenger(h), err
}

func (m *Mock) DestroyDebugMessenger(instance driver.Instance, messenger driver.DebugMessenger) {
	m.destroy("DestroyDebugMessenger", KindDebugMessenger, driver.Handle(messenger))
}

func (m *Mock) CreateSurface(instance driver.Instance, source driver.SurfaceSource) (driver.Surface, error) {
	h, err := m.create("CreateSurface", KindSurface)
	return driver.Surface(h), err
}

func (m *Mock) DestroySurface(instance driver.Instance, surface driver.Surface) {
	m.destroy("DestroySurface", KindSurface, driver.Handle(surface))
}

func (m *Mock) EnumeratePhysicalDevices(instance driver.Instance) ([]driver.PhysicalDevice, error) {
	if err := m.check("EnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driver.PhysicalDevice(nil), m.order...), nil
}

func (m *Mock) PhysicalDeviceProperties(pd driver.PhysicalDevice) driver.PhysicalDeviceProperties {
	return m.spec(pd).Properties
}

func (m *Mock) PhysicalDeviceFeatures(pd driver.PhysicalDevice) driver.Features {
	return m.spec(pd).Features
}

func (m *Mock) QueueFamilies(pd driver.PhysicalDevice) []driver.QueueFamily {
	return append([]driver.QueueFamily(nil), m.spec(pd).Families...)
}

func (m *Mock) SurfaceSupport(pd driver.PhysicalDevice, family uint32, surface driver.Surface) (bool, error) {
	spec := m.spec(pd)
	if int(family) >= len(spec.Present) {
		return false, nil
	}
	return spec.Present[family], nil
}

func (m *Mock) DeviceExtensions(pd driver.PhysicalDevice) ([]string, error) {
	return append([]string(nil), m.spec(pd).Extensions...), nil
}

func (m *Mock) SurfaceCapabilities(pd driver.PhysicalDevice, surface driver.Surface) (driver.SurfaceCapabilities, error) {
	if err := m.check("SurfaceCapabilities"); err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	return m.spec(pd).Capabilities, nil
}

func (m *Mock) SurfaceFormats(pd driver.PhysicalDevice, surface driver.Surface) ([]driver.SurfaceFormat, error) {
	return append([]driver.SurfaceFormat(nil), m.spec(pd).Formats...), nil
}

func (m *Mock) PresentModes(pd driver.PhysicalDevice, surface driver.Surface) ([]vk.PresentMode, error) {
	return append([]vk.PresentMode(nil), m.spec(pd).PresentModes...), nil
}

func (m *Mock) FormatProperties(pd driver.PhysicalDevice, format vk.Format) driver.FormatProperties {
	return m.spec(pd).FormatProps[format]
}

func (m *Mock) MemoryProperties(pd driver.PhysicalDevice) driver.MemoryProperties {
	return m.spec(pd).Memory
}

func (m *Mock) CreateDevice(pd driver.PhysicalDevice, info driver.DeviceInfo) (driver.Device, error) {
	h, err := m.create("CreateDevice", KindDevice)
	return driver.Device(h), err
}

func (m *Mock) DestroyDevice(device driver.Device) {
	m.destroy("DestroyDevice", KindDevice, driver.Handle(device))
}

func (m *Mock) DeviceWaitIdle(device driver.Device) error {
	return m.check("DeviceWaitIdle")
}

func (m *Mock) GetQueue(device driver.Device, family uint32) driver.Queue {
	m.record("GetQueue")
	// Queues are owned by the device; derive a stable handle per family.
	return driver.Queue(uint64(device)<<8 | uint64(family+1))
}

func (m *Mock) QueueSubmit(queue driver.Queue, info driver.SubmitInfo, fence driver.Fence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("QueueSubmit"); err != nil {
		return err
	}
	m.submits++
	m.submitLog = append(m.submitLog, SubmitRecord{Queue: queue, SubmitInfo: info, Fence: fence})
	if fence != driver.NullHandle {
		m.signaled[fence] = true
	}
	return nil
}

func (m *Mock) QueueWaitIdle(queue driver.Queue) error {
	return m.check("QueueWaitIdle")
}

func (m *Mock) QueuePresent(queue driver.Queue, info driver.PresentInfo) vk.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("QueuePresent"); err != nil {
		return vk.ErrorDeviceLost
	}
	m.presentLog = append(m.presentLog, PresentRecord{Queue: queue, PresentInfo: info})
	if len(m.presentResults) > 0 {
		res := m.presentResults[0]
		m.presentResults = m.presentResults[1:]
		return res
	}
	return vk.Success
}

func (m *Mock) CreateCommandPool(device driver.Device, family uint32, resettable bool) (driver.CommandPool, error) {
	h, err := m.create("CreateCommandPool", KindCommandPool)
	return driver.CommandPool(h), err
}

func (m *Mock) DestroyCommandPool(device driver.Device, pool driver.CommandPool) {
	m.destroy("DestroyCommandPool", KindCommandPool, driver.Handle(pool))
}

func (m *Mock) AllocateCommandBuffers(device driver.Device, pool driver.CommandPool, count uint32) ([]driver.CommandBuffer, error) {
	out := make([]driver.CommandBuffer, 0, count)
	for i := uint32(0); i < count; i++ {
		h, err := m.create("AllocateCommandBuffers", KindCommandBuffer)
		if err != nil {
			m.FreeCommandBuffers(device, pool, out)
			return nil, err
		}
		out = append(out, driver.CommandBuffer(h))
	}
	return out, nil
}

func (m *Mock) FreeCommandBuffers(device driver.Device, pool driver.CommandPool, buffers []driver.CommandBuffer) {
	for _, cb := range buffers {
		m.destroy("FreeCommandBuffers", KindCommandBuffer, driver.Handle(cb))
	}
}

func (m *Mock) BeginCommandBuffer(cb driver.CommandBuffer, usage vk.CommandBufferUsageFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("BeginCommandBuffer"); err != nil {
		return err
	}
	m.commands[cb] = nil
	return nil
}

func (m *Mock) EndCommandBuffer(cb driver.CommandBuffer) error {
	return m.check("EndCommandBuffer")
}

func (m *Mock) ResetCommandBuffer(cb driver.CommandBuffer) error {
	return m.check("ResetCommandBuffer")
}

func (m *Mock) CreateSemaphore(device driver.Device) (driver.Semaphore, error) {
	h, err := m.create("CreateSemaphore", KindSemaphore)
	return driver.Semaphore(h), err
}

func (m *Mock) DestroySemaphore(device driver.Device, semaphore driver.Semaphore) {
	m.destroy("DestroySemaphore", KindSemaphore, driver.Handle(semaphore))
}

func (m *Mock) CreateFence(device driver.Device, signaled bool) (driver.Fence, error) {
	h, err := m.create("CreateFence", KindFence)
	if err == nil {
		m.mu.Lock()
		m.signaled[driver.Fence(h)] = signaled
		m.mu.Unlock()
	}
	return driver.Fence(h), err
}

func (m *Mock) DestroyFence(device driver.Device, fence driver.Fence) {
	m.destroy("DestroyFence", KindFence, driver.Handle(fence))
	m.mu.Lock()
	delete(m.signaled, fence)
	m.mu.Unlock()
}

// WaitForFence times out on a fence that nothing will ever signal.
func (m *Mock) WaitForFence(device driver.Device, fence driver.Fence, timeout uint64) vk.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("WaitForFence"); err != nil {
		return vk.ErrorDeviceLost
	}
	if !m.signaled[fence] {
		return vk.Timeout
	}
	return vk.Success
}

func (m *Mock) ResetFence(device driver.Device, fence driver.Fence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ResetFence"); err != nil {
		return err
	}
	m.signaled[fence] = false
	return nil
}

// FenceSignaled reports the signal state of a fence.
func (m *Mock) FenceSignaled(fence driver.Fence) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signaled[fence]
}

func (m *Mock) CreateSwapchain(device driver.Device, info driver.SwapchainInfo) (driver.Swapchain, error) {
	h, err := m.create("CreateSwapchain", KindSwapchain)
	if err != nil {
		return driver.NullHandle, err
	}
	sc := driver.Swapchain(h)
	m.mu.Lock()
	defer m.mu.Unlock()
	images := make([]driver.Image, info.MinImageCount)
	for i := range images {
		images[i] = driver.Image(m.handle())
	}
	m.swapchainImages[sc] = images
	m.swapchainInfo[sc] = info
	return sc, nil
}

func (m *Mock) DestroySwapchain(device driver.Device, swapchain driver.Swapchain) {
	m.destroy("DestroySwapchain", KindSwapchain, driver.Handle(swapchain))
	m.mu.Lock()
	delete(m.swapchainImages, swapchain)
	delete(m.swapchainInfo, swapchain)
	delete(m.acquireCounter, swapchain)
	m.mu.Unlock()
}

func (m *Mock) SwapchainImages(device driver.Device, swapchain driver.Swapchain) ([]driver.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SwapchainImages"); err != nil {
		return nil, err
	}
	return append([]driver.Image(nil), m.swapchainImages[swapchain]...), nil
}

// AcquireNextImage cycles through the swapchain images in order.
func (m *Mock) AcquireNextImage(device driver.Device, swapchain driver.Swapchain, timeout uint64, signal driver.Semaphore) (uint32, vk.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "AcquireNextImage")
	if len(m.acquireResults) > 0 {
		res := m.acquireResults[0]
		m.acquireResults = m.acquireResults[1:]
		if !driver.ResultIsSuccess(res) {
			return 0, res
		}
		idx := m.nextImage(swapchain)
		return idx, res
	}
	return m.nextImage(swapchain), vk.Success
}

func (m *Mock) nextImage(swapchain driver.Swapchain) uint32 {
	count := uint32(len(m.swapchainImages[swapchain]))
	if count == 0 {
		return 0
	}
	idx := m.acquireCounter[swapchain] % count
	m.acquireCounter[swapchain]++
	return idx
}

func (m *Mock) CreateImage(device driver.Device, info driver.ImageInfo) (driver.Image, error) {
	h, err := m.create("CreateImage", KindImage)
	if err == nil {
		m.mu.Lock()
		m.imageInfo[driver.Image(h)] = info
		m.mu.Unlock()
	}
	return driver.Image(h), err
}

func (m *Mock) DestroyImage(device driver.Device, image driver.Image) {
	m.destroy("DestroyImage", KindImage, driver.Handle(image))
}

func (m *Mock) ImageMemoryRequirements(device driver.Device, image driver.Image) driver.MemoryRequirements {
	info := m.ImageInfo(image)
	return driver.MemoryRequirements{
		Size:           vk.DeviceSize(info.Width) * vk.DeviceSize(info.Height) * 4 * 2,
		Alignment:      256,
		MemoryTypeBits: 0b11,
	}
}

func (m *Mock) BindImageMemory(device driver.Device, image driver.Image, memory driver.DeviceMemory) error {
	return m.check("BindImageMemory")
}

func (m *Mock) CreateImageView(device driver.Device, info driver.ImageViewInfo) (driver.ImageView, error) {
	h, err := m.create("CreateImageView", KindImageView)
	return driver.ImageView(h), err
}

func (m *Mock) DestroyImageView(device driver.Device, view driver.ImageView) {
	m.destroy("DestroyImageView", KindImageView, driver.Handle(view))
}

func (m *Mock) CreateBuffer(device driver.Device, info driver.BufferInfo) (driver.Buffer, error) {
	h, err := m.create("CreateBuffer", KindBuffer)
	if err == nil {
		m.mu.Lock()
		m.bufferSize[driver.Buffer(h)] = info.Size
		m.mu.Unlock()
	}
	return driver.Buffer(h), err
}

func (m *Mock) DestroyBuffer(device driver.Device, buffer driver.Buffer) {
	m.destroy("DestroyBuffer", KindBuffer, driver.Handle(buffer))
}

func (m *Mock) BufferMemoryRequirements(device driver.Device, buffer driver.Buffer) driver.MemoryRequirements {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := m.bufferSize[buffer]
	return driver.MemoryRequirements{Size: (size + 255) &^ 255, Alignment: 256, MemoryTypeBits: 0b11}
}

func (m *Mock) BindBufferMemory(device driver.Device, buffer driver.Buffer, memory driver.DeviceMemory) error {
	return m.check("BindBufferMemory")
}

func (m *Mock) AllocateMemory(device driver.Device, size vk.DeviceSize, typeIndex uint32) (driver.DeviceMemory, error) {
	h, err := m.create("AllocateMemory", KindMemory)
	if err == nil {
		m.mu.Lock()
		m.memorySize[driver.DeviceMemory(h)] = size
		m.mu.Unlock()
	}
	return driver.DeviceMemory(h), err
}

func (m *Mock) FreeMemory(device driver.Device, memory driver.DeviceMemory) {
	m.destroy("FreeMemory", KindMemory, driver.Handle(memory))
	m.mu.Lock()
	delete(m.memorySize, memory)
	delete(m.memoryData, memory)
	m.mu.Unlock()
}

func (m *Mock) MapMemory(device driver.Device, memory driver.DeviceMemory, size vk.DeviceSize) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("MapMemory"); err != nil {
		return nil, err
	}
	data, ok := m.memoryData[memory]
	if !ok {
		data = make([]byte, m.memorySize[memory])
		m.memoryData[memory] = data
	}
	return data[:size], nil
}

func (m *Mock) UnmapMemory(device driver.Device, memory driver.DeviceMemory) {
	m.record("UnmapMemory")
}

func (m *Mock) CreateRenderPass(device driver.Device, info driver.RenderPassInfo) (driver.RenderPass, error) {
	h, err := m.create("CreateRenderPass", KindRenderPass)
	return driver.RenderPass(h), err
}

func (m *Mock) DestroyRenderPass(device driver.Device, pass driver.RenderPass) {
	m.destroy("DestroyRenderPass", KindRenderPass, driver.Handle(pass))
}

func (m *Mock) CreateDescriptorSetLayout(device driver.Device, bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	h, err := m.create("CreateDescriptorSetLayout", KindSetLayout)
	return driver.DescriptorSetLayout(h), err
}

func (m *Mock) DestroyDescriptorSetLayout(device driver.Device, layout driver.DescriptorSetLayout) {
	m.destroy("DestroyDescriptorSetLayout", KindSetLayout, driver.Handle(layout))
}

func (m *Mock) CreatePipelineLayout(device driver.Device, layouts []driver.DescriptorSetLayout) (driver.PipelineLayout, error) {
	h, err := m.create("CreatePipelineLayout", KindPipelineLayout)
	return driver.PipelineLayout(h), err
}

func (m *Mock) DestroyPipelineLayout(device driver.Device, layout driver.PipelineLayout) {
	m.destroy("DestroyPipelineLayout", KindPipelineLayout, driver.Handle(layout))
}

func (m *Mock) CreateShaderModule(device driver.Device, code []uint32) (driver.ShaderModule, error) {
	h, err := m.create("CreateShaderModule", KindShaderModule)
	return driver.ShaderModule(h), err
}

func (m *Mock) DestroyShaderModule(device driver.Device, module driver.ShaderModule) {
	m.destroy("DestroyShaderModule", KindShaderModule, driver.Handle(module))
}

func (m *Mock) CreateGraphicsPipeline(device driver.Device, info driver.GraphicsPipelineInfo) (driver.Pipeline, error) {
	h, err := m.create("CreateGraphicsPipeline", KindPipeline)
	return driver.Pipeline(h), err
}

func (m *Mock) DestroyPipeline(device driver.Device, pipeline driver.Pipeline) {
	m.destroy("DestroyPipeline", KindPipeline, driver.Handle(pipeline))
}

func (m *Mock) CreateFramebuffer(device driver.Device, info driver.FramebufferInfo) (driver.Framebuffer, error) {
	h, err := m.create("CreateFramebuffer", KindFramebuffer)
	return driver.Framebuffer(h), err
}

func (m *Mock) DestroyFramebuffer(device driver.Device, framebuffer driver.Framebuffer) {
	m.destroy("DestroyFramebuffer", KindFramebuffer, driver.Handle(framebuffer))
}

func (m *Mock) CreateSampler(device driver.Device, info driver.SamplerInfo) (driver.Sampler, error) {
	h, err := m.create("CreateSampler", KindSampler)
	return driver.Sampler(h), err
}

func (m *Mock) DestroySampler(device driver.Device, sampler driver.Sampler) {
	m.destroy("DestroySampler", KindSampler, driver.Handle(sampler))
}

func (m *Mock) CreateDescriptorPool(device driver.Device, sizes []driver.DescriptorPoolSize, maxSets uint32) (driver.DescriptorPool, error) {
	h, err := m.create("CreateDescriptorPool", KindDescriptorPool)
	return driver.DescriptorPool(h), err
}

func (m *Mock) DestroyDescriptorPool(device driver.Device, pool driver.DescriptorPool) {
	m.destroy("DestroyDescriptorPool", KindDescriptorPool, driver.Handle(pool))
}

// AllocateDescriptorSets returns sets owned by the pool; they are not
// counted as live objects.
func (m *Mock) AllocateDescriptorSets(device driver.Device, pool driver.DescriptorPool, layouts []driver.DescriptorSetLayout) ([]driver.DescriptorSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	out := make([]driver.DescriptorSet, len(layouts))
	for i := range out {
		out[i] = driver.DescriptorSet(m.handle())
	}
	return out, nil
}

func (m *Mock) UpdateDescriptorSets(device driver.Device, writes []driver.DescriptorWrite) {
	m.record("UpdateDescriptorSets")
}

func (m *Mock) CmdBeginRenderPass(cb driver.CommandBuffer, begin driver.RenderPassBegin) {
	m.recordCmd(cb, CommandRecord{Op: "CmdBeginRenderPass", Handle: driver.Handle(begin.Framebuffer)})
}

func (m *Mock) CmdEndRenderPass(cb driver.CommandBuffer) {
	m.recordCmd(cb, CommandRecord{Op: "CmdEndRenderPass"})
}

func (m *Mock) CmdBindPipeline(cb driver.CommandBuffer, pipeline driver.Pipeline) {
	m.recordCmd(cb, CommandRecord{Op: "CmdBindPipeline", Handle: driver.Handle(pipeline)})
}

func (m *Mock) CmdBindVertexBuffer(cb driver.CommandBuffer, buffer driver.Buffer) {
	m.recordCmd(cb, CommandRecord{Op: "CmdBindVertexBuffer", Handle: driver.Handle(buffer)})
}

func (m *Mock) CmdBindIndexBuffer(cb driver.CommandBuffer, buffer driver.Buffer, indexType vk.IndexType) {
	m.recordCmd(cb, CommandRecord{Op: "CmdBindIndexBuffer", Handle: driver.Handle(buffer)})
}

func (m *Mock) CmdSetViewport(cb driver.CommandBuffer, viewport driver.Viewport) {
	m.recordCmd(cb, CommandRecord{Op: "CmdSetViewport"})
}

func (m *Mock) CmdSetScissor(cb driver.CommandBuffer, extent driver.Extent2D) {
	m.recordCmd(cb, CommandRecord{Op: "CmdSetScissor"})
}

func (m *Mock) CmdBindDescriptorSet(cb driver.CommandBuffer, layout driver.PipelineLayout, set driver.DescriptorSet) {
	m.recordCmd(cb, CommandRecord{Op: "CmdBindDescriptorSet", Handle: driver.Handle(set)})
}

func (m *Mock) CmdDrawIndexed(cb driver.CommandBuffer, indexCount uint32) {
	m.mu.Lock()
	m.draws++
	m.mu.Unlock()
	m.recordCmd(cb, CommandRecord{Op: "CmdDrawIndexed", IndexCount: indexCount})
}

func (m *Mock) CmdCopyBuffer(cb driver.CommandBuffer, src, dst driver.Buffer, size vk.DeviceSize) {
	m.record("CmdCopyBuffer")
}

func (m *Mock) CmdCopyBufferToImage(cb driver.CommandBuffer, src driver.Buffer, dst driver.Image, width, height uint32) {
	m.record("CmdCopyBufferToImage")
}

func (m *Mock) CmdPipelineBarrier(cb driver.CommandBuffer, barrier driver.ImageBarrier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "CmdPipelineBarrier")
	m.barriers = append(m.barriers, BarrierRecord{CommandBuffer: cb, ImageBarrier: barrier})
}

func (m *Mock) CmdBlitImage(cb driver.CommandBuffer, blit driver.ImageBlit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "CmdBlitImage")
	m.blits = append(m.blits, blit)
}

var _ driver.Driver = (*Mock)(nil)
