package driver

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// table maps opaque handles to the raw objects they stand for.
type table[T any] struct {
	mu   sync.Mutex
	next Handle
	objs map[Handle]T
}

func (t *table[T]) put(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.objs == nil {
		t.objs = make(map[Handle]T)
	}
	t.next++
	t.objs[t.next] = v
	return t.next
}

func (t *table[T]) get(h Handle) T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.objs[h]
}

func (t *table[T]) drop(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.objs[h]
	delete(t.objs, h)
	return v, ok
}

type queueKey struct {
	device Device
	family uint32
}

// VulkanDriver implements Driver on top of github.com/goki/vulkan.
type VulkanDriver struct {
	locks *LockPool

	instances       table[vk.Instance]
	messengers      table[vk.DebugReportCallback]
	surfaces        table[vk.Surface]
	physicalDevices table[vk.PhysicalDevice]
	devices         table[vk.Device]
	queues          table[vk.Queue]
	commandPools    table[vk.CommandPool]
	commandBuffers  table[vk.CommandBuffer]
	semaphores      table[vk.Semaphore]
	fences          table[vk.Fence]
	swapchains      table[vk.Swapchain]
	images          table[vk.Image]
	imageViews      table[vk.ImageView]
	renderPasses    table[vk.RenderPass]
	setLayouts      table[vk.DescriptorSetLayout]
	pipelineLayouts table[vk.PipelineLayout]
	pipelines       table[vk.Pipeline]
	shaderModules   table[vk.ShaderModule]
	framebuffers    table[vk.Framebuffer]
	buffers         table[vk.Buffer]
	memories        table[vk.DeviceMemory]
	samplers        table[vk.Sampler]
	descriptorPools table[vk.DescriptorPool]
	descriptorSets  table[vk.DescriptorSet]

	mu sync.Mutex
	// Physical devices are stable per instance and queues per device.
	physicalByRaw map[vk.PhysicalDevice]PhysicalDevice
	queueByKey    map[queueKey]Queue
	// Swapchain images are owned by their swapchain.
	swapchainImages map[Swapchain][]Image
	poolSets        map[DescriptorPool][]DescriptorSet
}

// NewVulkanDriver loads the Vulkan loader through procAddr, usually
// glfw.GetVulkanGetInstanceProcAddress().
func NewVulkanDriver(procAddr unsafe.Pointer) (*VulkanDriver, error) {
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vulkan loader: %w", err)
	}
	return &VulkanDriver{
		locks:           NewLockPool(),
		physicalByRaw:   make(map[vk.PhysicalDevice]PhysicalDevice),
		queueByKey:      make(map[queueKey]Queue),
		swapchainImages: make(map[Swapchain][]Image),
		poolSets:        make(map[DescriptorPool][]DescriptorSet),
	}, nil
}

func (d *VulkanDriver) InstanceExtensions() ([]string, error) {
	var count uint32
	if err := Check("vkEnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := Check("vkEnumerateInstanceExtensionProperties", vk.EnumerateInstanceExtensionProperties("", &count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, vk.ToString(props[i].ExtensionName[:]))
	}
	return names, nil
}

func (d *VulkanDriver) InstanceLayers() ([]string, error) {
	var count uint32
	if err := Check("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.LayerProperties, count)
	if err := Check("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, vk.ToString(props[i].LayerName[:]))
	}
	return names, nil
}

// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
const instanceCreateEnumeratePortability = 0x00000001

func (d *VulkanDriver) CreateInstance(info InstanceInfo) (Instance, error) {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   SafeString(info.ApplicationName),
		PEngineName:        SafeString(info.EngineName),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: SafeStrings(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     SafeStrings(info.Layers),
	}
	if info.Portability {
		createInfo.Flags = vk.InstanceCreateFlags(instanceCreateEnumeratePortability)
	}

	var instance vk.Instance
	if err := Check("vkCreateInstance", vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		return NullHandle, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return NullHandle, fmt.Errorf("vulkan instance functions: %w", err)
	}
	return Instance(d.instances.put(instance)), nil
}

func (d *VulkanDriver) DestroyInstance(instance Instance) {
	if raw, ok := d.instances.drop(Handle(instance)); ok {
		vk.DestroyInstance(raw, nil)
	}
}

func (d *VulkanDriver) CreateDebugMessenger(instance Instance, callback DebugCallback) (DebugMessenger, error) {
	createInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit),
		PfnCallback: func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64,
			messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
			callback(debugSeverity(flags), pLayerPrefix, messageCode, pMessage)
			return vk.Bool32(vk.False)
		},
	}
	var messenger vk.DebugReportCallback
	if err := Check("vkCreateDebugReportCallbackEXT", vk.CreateDebugReportCallback(d.instances.get(Handle(instance)), &createInfo, nil, &messenger)); err != nil {
		return NullHandle, err
	}
	return DebugMessenger(d.messengers.put(messenger)), nil
}

func debugSeverity(flags vk.DebugReportFlags) DebugSeverity {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return DebugSeverityError
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		return DebugSeverityPerformance
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		return DebugSeverityWarning
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		return DebugSeverityDebug
	default:
		return DebugSeverityInfo
	}
}

func (d *VulkanDriver) DestroyDebugMessenger(instance Instance, messenger DebugMessenger) {
	if raw, ok := d.messengers.drop(Handle(messenger)); ok {
		vk.DestroyDebugReportCallback(d.instances.get(Handle(instance)), raw, nil)
	}
}

func (d *VulkanDriver) CreateSurface(instance Instance, source SurfaceSource) (Surface, error) {
	ptr, err := source.CreateWindowSurface(d.instances.get(Handle(instance)), nil)
	if err != nil {
		return NullHandle, err
	}
	if ptr == 0 {
		return NullHandle, fmt.Errorf("window returned a null surface")
	}
	return Surface(d.surfaces.put(vk.SurfaceFromPointer(ptr))), nil
}

func (d *VulkanDriver) DestroySurface(instance Instance, surface Surface) {
	if raw, ok := d.surfaces.drop(Handle(surface)); ok {
		vk.DestroySurface(d.instances.get(Handle(instance)), raw, nil)
	}
}

func (d *VulkanDriver) EnumeratePhysicalDevices(instance Instance) ([]PhysicalDevice, error) {
	raw := d.instances.get(Handle(instance))
	var count uint32
	if err := Check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(raw, &count, nil)); err != nil {
		return nil, err
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := Check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(raw, &count, devices)); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PhysicalDevice, 0, count)
	for _, pd := range devices {
		h, ok := d.physicalByRaw[pd]
		if !ok {
			h = PhysicalDevice(d.physicalDevices.put(pd))
			d.physicalByRaw[pd] = h
		}
		out = append(out, h)
	}
	return out, nil
}

func (d *VulkanDriver) PhysicalDeviceProperties(pd PhysicalDevice) PhysicalDeviceProperties {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(d.physicalDevices.get(Handle(pd)), &props)
	props.Deref()
	props.Limits.Deref()
	return PhysicalDeviceProperties{
		Name:                 vk.ToString(props.DeviceName[:]),
		Type:                 props.DeviceType,
		APIVersion:           props.ApiVersion,
		DriverVersion:        props.DriverVersion,
		ColorSampleCounts:    props.Limits.FramebufferColorSampleCounts,
		DepthSampleCounts:    props.Limits.FramebufferDepthSampleCounts,
		MaxSamplerAnisotropy: props.Limits.MaxSamplerAnisotropy,
	}
}

func (d *VulkanDriver) PhysicalDeviceFeatures(pd PhysicalDevice) Features {
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(d.physicalDevices.get(Handle(pd)), &features)
	features.Deref()
	return Features{SamplerAnisotropy: features.SamplerAnisotropy == vk.True}
}

func (d *VulkanDriver) QueueFamilies(pd PhysicalDevice) []QueueFamily {
	raw := d.physicalDevices.get(Handle(pd))
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(raw, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(raw, &count, props)
	out := make([]QueueFamily, count)
	for i := range props {
		props[i].Deref()
		out[i] = QueueFamily{Flags: props[i].QueueFlags, Count: props[i].QueueCount}
	}
	return out
}

func (d *VulkanDriver) SurfaceSupport(pd PhysicalDevice, family uint32, surface Surface) (bool, error) {
	var supported vk.Bool32
	res := vk.GetPhysicalDeviceSurfaceSupport(d.physicalDevices.get(Handle(pd)), family, d.surfaces.get(Handle(surface)), &supported)
	if err := Check("vkGetPhysicalDeviceSurfaceSupportKHR", res); err != nil {
		return false, err
	}
	return supported == vk.True, nil
}

func (d *VulkanDriver) DeviceExtensions(pd PhysicalDevice) ([]string, error) {
	raw := d.physicalDevices.get(Handle(pd))
	var count uint32
	if err := Check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(raw, "", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := Check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(raw, "", &count, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, vk.ToString(props[i].ExtensionName[:]))
	}
	return names, nil
}

func (d *VulkanDriver) SurfaceCapabilities(pd PhysicalDevice, surface Surface) (SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevices.get(Handle(pd)), d.surfaces.get(Handle(surface)), &caps)
	if err := Check("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res); err != nil {
		return SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return SurfaceCapabilities{
		MinImageCount:    caps.MinImageCount,
		MaxImageCount:    caps.MaxImageCount,
		CurrentExtent:    Extent2D{caps.CurrentExtent.Width, caps.CurrentExtent.Height},
		MinImageExtent:   Extent2D{caps.MinImageExtent.Width, caps.MinImageExtent.Height},
		MaxImageExtent:   Extent2D{caps.MaxImageExtent.Width, caps.MaxImageExtent.Height},
		CurrentTransform: caps.CurrentTransform,
	}, nil
}

func (d *VulkanDriver) SurfaceFormats(pd PhysicalDevice, surface Surface) ([]SurfaceFormat, error) {
	rawPD, rawSurface := d.physicalDevices.get(Handle(pd)), d.surfaces.get(Handle(surface))
	var count uint32
	if err := Check("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(rawPD, rawSurface, &count, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := Check("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(rawPD, rawSurface, &count, formats)); err != nil {
		return nil, err
	}
	out := make([]SurfaceFormat, count)
	for i := range formats {
		formats[i].Deref()
		out[i] = SurfaceFormat{Format: formats[i].Format, ColorSpace: formats[i].ColorSpace}
	}
	return out, nil
}

func (d *VulkanDriver) PresentModes(pd PhysicalDevice, surface Surface) ([]vk.PresentMode, error) {
	rawPD, rawSurface := d.physicalDevices.get(Handle(pd)), d.surfaces.get(Handle(surface))
	var count uint32
	if err := Check("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(rawPD, rawSurface, &count, nil)); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if err := Check("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(rawPD, rawSurface, &count, modes)); err != nil {
		return nil, err
	}
	return modes, nil
}

func (d *VulkanDriver) FormatProperties(pd PhysicalDevice, format vk.Format) FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physicalDevices.get(Handle(pd)), format, &props)
	props.Deref()
	return FormatProperties{
		LinearTilingFeatures:  props.LinearTilingFeatures,
		OptimalTilingFeatures: props.OptimalTilingFeatures,
	}
}

func (d *VulkanDriver) MemoryProperties(pd PhysicalDevice) MemoryProperties {
	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevices.get(Handle(pd)), &memory)
	memory.Deref()
	out := MemoryProperties{
		Types: make([]MemoryType, memory.MemoryTypeCount),
		Heaps: make([]MemoryHeap, memory.MemoryHeapCount),
	}
	for i := range out.Types {
		memory.MemoryTypes[i].Deref()
		out.Types[i] = MemoryType{PropertyFlags: memory.MemoryTypes[i].PropertyFlags, HeapIndex: memory.MemoryTypes[i].HeapIndex}
	}
	for i := range out.Heaps {
		memory.MemoryHeaps[i].Deref()
		out.Heaps[i] = MemoryHeap{
			Size:        uint64(memory.MemoryHeaps[i].Size),
			DeviceLocal: vk.MemoryHeapFlagBits(memory.MemoryHeaps[i].Flags)&vk.MemoryHeapDeviceLocalBit != 0,
		}
	}
	return out
}

func (d *VulkanDriver) CreateDevice(pd PhysicalDevice, info DeviceInfo) (Device, error) {
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(info.QueueFamilies))
	for i, family := range info.QueueFamilies {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}
	features := vk.PhysicalDeviceFeatures{}
	if info.SamplerAnisotropy {
		features.SamplerAnisotropy = vk.True
	}
	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: SafeStrings(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     SafeStrings(info.Layers),
	}
	var device vk.Device
	if err := Check("vkCreateDevice", vk.CreateDevice(d.physicalDevices.get(Handle(pd)), &createInfo, nil, &device)); err != nil {
		return NullHandle, err
	}
	return Device(d.devices.put(device)), nil
}

func (d *VulkanDriver) DestroyDevice(device Device) {
	raw, ok := d.devices.drop(Handle(device))
	if !ok {
		return
	}
	d.mu.Lock()
	for key, q := range d.queueByKey {
		if key.device == device {
			d.queues.drop(Handle(q))
			d.locks.Forget(q)
			delete(d.queueByKey, key)
		}
	}
	d.mu.Unlock()
	vk.DestroyDevice(raw, nil)
}

func (d *VulkanDriver) DeviceWaitIdle(device Device) error {
	return Check("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.devices.get(Handle(device))))
}

func (d *VulkanDriver) GetQueue(device Device, family uint32) Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := queueKey{device, family}
	if q, ok := d.queueByKey[key]; ok {
		return q
	}
	var queue vk.Queue
	vk.GetDeviceQueue(d.devices.get(Handle(device)), family, 0, &queue)
	q := Queue(d.queues.put(queue))
	d.queueByKey[key] = q
	return q
}

func (d *VulkanDriver) QueueSubmit(queue Queue, info SubmitInfo, fence Fence) error {
	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(info.Wait)),
		PWaitSemaphores:      d.rawSemaphores(info.Wait),
		PWaitDstStageMask:    info.WaitStages,
		CommandBufferCount:   uint32(len(info.CommandBuffers)),
		PCommandBuffers:      d.rawCommandBuffers(info.CommandBuffers),
		SignalSemaphoreCount: uint32(len(info.Signal)),
		PSignalSemaphores:    d.rawSemaphores(info.Signal),
	}
	rawFence := vk.NullFence
	if fence != NullHandle {
		rawFence = d.fences.get(Handle(fence))
	}
	raw := d.queues.get(Handle(queue))
	return d.locks.SafeQueueCall(queue, func() error {
		return Check("vkQueueSubmit", vk.QueueSubmit(raw, 1, []vk.SubmitInfo{submit}, rawFence))
	})
}

func (d *VulkanDriver) QueueWaitIdle(queue Queue) error {
	raw := d.queues.get(Handle(queue))
	return d.locks.SafeQueueCall(queue, func() error {
		return Check("vkQueueWaitIdle", vk.QueueWaitIdle(raw))
	})
}

func (d *VulkanDriver) QueuePresent(queue Queue, info PresentInfo) vk.Result {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(info.Wait)),
		PWaitSemaphores:    d.rawSemaphores(info.Wait),
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{d.swapchains.get(Handle(info.Swapchain))},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	raw := d.queues.get(Handle(queue))
	var result vk.Result
	_ = d.locks.SafeQueueCall(queue, func() error {
		result = vk.QueuePresent(raw, &presentInfo)
		return nil
	})
	return result
}

func (d *VulkanDriver) rawSemaphores(in []Semaphore) []vk.Semaphore {
	if len(in) == 0 {
		return nil
	}
	out := make([]vk.Semaphore, len(in))
	for i, s := range in {
		out[i] = d.semaphores.get(Handle(s))
	}
	return out
}

func (d *VulkanDriver) rawCommandBuffers(in []CommandBuffer) []vk.CommandBuffer {
	out := make([]vk.CommandBuffer, len(in))
	for i, cb := range in {
		out[i] = d.commandBuffers.get(Handle(cb))
	}
	return out
}

func (d *VulkanDriver) CreateCommandPool(device Device, family uint32, resettable bool) (CommandPool, error) {
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
	}
	if resettable {
		createInfo.Flags = vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	}
	var pool vk.CommandPool
	if err := Check("vkCreateCommandPool", vk.CreateCommandPool(d.devices.get(Handle(device)), &createInfo, nil, &pool)); err != nil {
		return NullHandle, err
	}
	return CommandPool(d.commandPools.put(pool)), nil
}

func (d *VulkanDriver) DestroyCommandPool(device Device, pool CommandPool) {
	if raw, ok := d.commandPools.drop(Handle(pool)); ok {
		vk.DestroyCommandPool(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) AllocateCommandBuffers(device Device, pool CommandPool, count uint32) ([]CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPools.get(Handle(pool)),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	raw := make([]vk.CommandBuffer, count)
	if err := Check("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(d.devices.get(Handle(device)), &allocateInfo, raw)); err != nil {
		return nil, err
	}
	out := make([]CommandBuffer, count)
	for i := range raw {
		out[i] = CommandBuffer(d.commandBuffers.put(raw[i]))
	}
	return out, nil
}

func (d *VulkanDriver) FreeCommandBuffers(device Device, pool CommandPool, buffers []CommandBuffer) {
	raw := make([]vk.CommandBuffer, 0, len(buffers))
	for _, cb := range buffers {
		if b, ok := d.commandBuffers.drop(Handle(cb)); ok {
			raw = append(raw, b)
		}
	}
	if len(raw) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.devices.get(Handle(device)), d.commandPools.get(Handle(pool)), uint32(len(raw)), raw)
}

func (d *VulkanDriver) BeginCommandBuffer(cb CommandBuffer, usage vk.CommandBufferUsageFlags) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: usage,
	}
	return Check("vkBeginCommandBuffer", vk.BeginCommandBuffer(d.commandBuffers.get(Handle(cb)), &beginInfo))
}

func (d *VulkanDriver) EndCommandBuffer(cb CommandBuffer) error {
	return Check("vkEndCommandBuffer", vk.EndCommandBuffer(d.commandBuffers.get(Handle(cb))))
}

func (d *VulkanDriver) ResetCommandBuffer(cb CommandBuffer) error {
	return Check("vkResetCommandBuffer", vk.ResetCommandBuffer(d.commandBuffers.get(Handle(cb)), 0))
}

func (d *VulkanDriver) CreateSemaphore(device Device) (Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var semaphore vk.Semaphore
	if err := Check("vkCreateSemaphore", vk.CreateSemaphore(d.devices.get(Handle(device)), &createInfo, nil, &semaphore)); err != nil {
		return NullHandle, err
	}
	return Semaphore(d.semaphores.put(semaphore)), nil
}

func (d *VulkanDriver) DestroySemaphore(device Device, semaphore Semaphore) {
	if raw, ok := d.semaphores.drop(Handle(semaphore)); ok {
		vk.DestroySemaphore(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) CreateFence(device Device, signaled bool) (Fence, error) {
	createInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := Check("vkCreateFence", vk.CreateFence(d.devices.get(Handle(device)), &createInfo, nil, &fence)); err != nil {
		return NullHandle, err
	}
	return Fence(d.fences.put(fence)), nil
}

func (d *VulkanDriver) DestroyFence(device Device, fence Fence) {
	if raw, ok := d.fences.drop(Handle(fence)); ok {
		vk.DestroyFence(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) WaitForFence(device Device, fence Fence, timeout uint64) vk.Result {
	return vk.WaitForFences(d.devices.get(Handle(device)), 1, []vk.Fence{d.fences.get(Handle(fence))}, vk.True, timeout)
}

func (d *VulkanDriver) ResetFence(device Device, fence Fence) error {
	return Check("vkResetFences", vk.ResetFences(d.devices.get(Handle(device)), 1, []vk.Fence{d.fences.get(Handle(fence))}))
}

func (d *VulkanDriver) CreateSwapchain(device Device, info SwapchainInfo) (Swapchain, error) {
	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surfaces.get(Handle(info.Surface)),
		MinImageCount:    info.MinImageCount,
		ImageFormat:      info.Format.Format,
		ImageColorSpace:  info.Format.ColorSpace,
		ImageExtent:      vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: info.SharingMode,
		PreTransform:     info.PreTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      info.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if info.SharingMode == vk.SharingModeConcurrent {
		createInfo.QueueFamilyIndexCount = uint32(len(info.QueueFamilies))
		createInfo.PQueueFamilyIndices = info.QueueFamilies
	}
	var swapchain vk.Swapchain
	if err := Check("vkCreateSwapchainKHR", vk.CreateSwapchain(d.devices.get(Handle(device)), &createInfo, nil, &swapchain)); err != nil {
		return NullHandle, err
	}
	return Swapchain(d.swapchains.put(swapchain)), nil
}

func (d *VulkanDriver) DestroySwapchain(device Device, swapchain Swapchain) {
	raw, ok := d.swapchains.drop(Handle(swapchain))
	if !ok {
		return
	}
	d.mu.Lock()
	for _, img := range d.swapchainImages[swapchain] {
		d.images.drop(Handle(img))
	}
	delete(d.swapchainImages, swapchain)
	d.mu.Unlock()
	vk.DestroySwapchain(d.devices.get(Handle(device)), raw, nil)
}

func (d *VulkanDriver) SwapchainImages(device Device, swapchain Swapchain) ([]Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if imgs, ok := d.swapchainImages[swapchain]; ok {
		return imgs, nil
	}
	rawDevice, rawSwapchain := d.devices.get(Handle(device)), d.swapchains.get(Handle(swapchain))
	var count uint32
	if err := Check("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(rawDevice, rawSwapchain, &count, nil)); err != nil {
		return nil, err
	}
	raw := make([]vk.Image, count)
	if err := Check("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(rawDevice, rawSwapchain, &count, raw)); err != nil {
		return nil, err
	}
	imgs := make([]Image, count)
	for i := range raw {
		imgs[i] = Image(d.images.put(raw[i]))
	}
	d.swapchainImages[swapchain] = imgs
	return imgs, nil
}

func (d *VulkanDriver) AcquireNextImage(device Device, swapchain Swapchain, timeout uint64, signal Semaphore) (uint32, vk.Result) {
	var index uint32
	res := vk.AcquireNextImage(d.devices.get(Handle(device)), d.swapchains.get(Handle(swapchain)), timeout,
		d.semaphores.get(Handle(signal)), vk.NullFence, &index)
	return index, res
}

func (d *VulkanDriver) CreateImage(device Device, info ImageInfo) (Image, error) {
	createInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        info.Format,
		Extent:        vk.Extent3D{Width: info.Width, Height: info.Height, Depth: 1},
		MipLevels:     info.MipLevels,
		ArrayLayers:   1,
		Samples:       info.Samples,
		Tiling:        info.Tiling,
		Usage:         info.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if err := Check("vkCreateImage", vk.CreateImage(d.devices.get(Handle(device)), &createInfo, nil, &image)); err != nil {
		return NullHandle, err
	}
	return Image(d.images.put(image)), nil
}

func (d *VulkanDriver) DestroyImage(device Device, image Image) {
	if raw, ok := d.images.drop(Handle(image)); ok {
		vk.DestroyImage(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) ImageMemoryRequirements(device Device, image Image) MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.devices.get(Handle(device)), d.images.get(Handle(image)), &req)
	req.Deref()
	return MemoryRequirements{Size: req.Size, Alignment: req.Alignment, MemoryTypeBits: req.MemoryTypeBits}
}

func (d *VulkanDriver) BindImageMemory(device Device, image Image, memory DeviceMemory) error {
	return Check("vkBindImageMemory", vk.BindImageMemory(d.devices.get(Handle(device)), d.images.get(Handle(image)), d.memories.get(Handle(memory)), 0))
}

func (d *VulkanDriver) CreateImageView(device Device, info ImageViewInfo) (ImageView, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    d.images.get(Handle(info.Image)),
		ViewType: vk.ImageViewType2d,
		Format:   info.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     info.Aspect,
			BaseMipLevel:   0,
			LevelCount:     info.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := Check("vkCreateImageView", vk.CreateImageView(d.devices.get(Handle(device)), &createInfo, nil, &view)); err != nil {
		return NullHandle, err
	}
	return ImageView(d.imageViews.put(view)), nil
}

func (d *VulkanDriver) DestroyImageView(device Device, view ImageView) {
	if raw, ok := d.imageViews.drop(Handle(view)); ok {
		vk.DestroyImageView(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) CreateBuffer(device Device, info BufferInfo) (Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        info.Size,
		Usage:       info.Usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := Check("vkCreateBuffer", vk.CreateBuffer(d.devices.get(Handle(device)), &createInfo, nil, &buffer)); err != nil {
		return NullHandle, err
	}
	return Buffer(d.buffers.put(buffer)), nil
}

func (d *VulkanDriver) DestroyBuffer(device Device, buffer Buffer) {
	if raw, ok := d.buffers.drop(Handle(buffer)); ok {
		vk.DestroyBuffer(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) BufferMemoryRequirements(device Device, buffer Buffer) MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.devices.get(Handle(device)), d.buffers.get(Handle(buffer)), &req)
	req.Deref()
	return MemoryRequirements{Size: req.Size, Alignment: req.Alignment, MemoryTypeBits: req.MemoryTypeBits}
}

func (d *VulkanDriver) BindBufferMemory(device Device, buffer Buffer, memory DeviceMemory) error {
	return Check("vkBindBufferMemory", vk.BindBufferMemory(d.devices.get(Handle(device)), d.buffers.get(Handle(buffer)), d.memories.get(Handle(memory)), 0))
}

func (d *VulkanDriver) AllocateMemory(device Device, size vk.DeviceSize, typeIndex uint32) (DeviceMemory, error) {
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  size,
		MemoryTypeIndex: typeIndex,
	}
	var memory vk.DeviceMemory
	if err := Check("vkAllocateMemory", vk.AllocateMemory(d.devices.get(Handle(device)), &allocateInfo, nil, &memory)); err != nil {
		return NullHandle, err
	}
	return DeviceMemory(d.memories.put(memory)), nil
}

func (d *VulkanDriver) FreeMemory(device Device, memory DeviceMemory) {
	if raw, ok := d.memories.drop(Handle(memory)); ok {
		vk.FreeMemory(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) MapMemory(device Device, memory DeviceMemory, size vk.DeviceSize) ([]byte, error) {
	var data unsafe.Pointer
	if err := Check("vkMapMemory", vk.MapMemory(d.devices.get(Handle(device)), d.memories.get(Handle(memory)), 0, size, 0, &data)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(data), int(size)), nil
}

func (d *VulkanDriver) UnmapMemory(device Device, memory DeviceMemory) {
	vk.UnmapMemory(d.devices.get(Handle(device)), d.memories.get(Handle(memory)))
}

func (d *VulkanDriver) CreateRenderPass(device Device, info RenderPassInfo) (RenderPass, error) {
	attachments := make([]vk.AttachmentDescription, len(info.Attachments))
	for i, a := range info.Attachments {
		attachments[i] = vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        a.Samples,
			LoadOp:         a.LoadOp,
			StoreOp:        a.StoreOp,
			StencilLoadOp:  a.StencilLoadOp,
			StencilStoreOp: a.StencilStoreOp,
			InitialLayout:  a.InitialLayout,
			FinalLayout:    a.FinalLayout,
		}
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{{Attachment: info.Color.Attachment, Layout: info.Color.Layout}},
	}
	if info.Depth != nil {
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{Attachment: info.Depth.Attachment, Layout: info.Depth.Layout}
	}
	if info.Resolve != nil {
		subpass.PResolveAttachments = []vk.AttachmentReference{{Attachment: info.Resolve.Attachment, Layout: info.Resolve.Layout}}
	}
	dep := info.Dependency
	dependency := vk.SubpassDependency{
		SrcSubpass:    dep.SrcSubpass,
		DstSubpass:    dep.DstSubpass,
		SrcStageMask:  dep.SrcStageMask,
		DstStageMask:  dep.DstStageMask,
		SrcAccessMask: dep.SrcAccessMask,
		DstAccessMask: dep.DstAccessMask,
	}
	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var pass vk.RenderPass
	if err := Check("vkCreateRenderPass", vk.CreateRenderPass(d.devices.get(Handle(device)), &createInfo, nil, &pass)); err != nil {
		return NullHandle, err
	}
	return RenderPass(d.renderPasses.put(pass)), nil
}

func (d *VulkanDriver) DestroyRenderPass(device Device, pass RenderPass) {
	if raw, ok := d.renderPasses.drop(Handle(pass)); ok {
		vk.DestroyRenderPass(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) CreateDescriptorSetLayout(device Device, bindings []DescriptorBinding) (DescriptorSetLayout, error) {
	raw := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		raw[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: b.Count,
			StageFlags:      b.Stages,
		}
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(raw)),
		PBindings:    raw,
	}
	var layout vk.DescriptorSetLayout
	if err := Check("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.devices.get(Handle(device)), &createInfo, nil, &layout)); err != nil {
		return NullHandle, err
	}
	return DescriptorSetLayout(d.setLayouts.put(layout)), nil
}

func (d *VulkanDriver) DestroyDescriptorSetLayout(device Device, layout DescriptorSetLayout) {
	if raw, ok := d.setLayouts.drop(Handle(layout)); ok {
		vk.DestroyDescriptorSetLayout(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) CreatePipelineLayout(device Device, layouts []DescriptorSetLayout) (PipelineLayout, error) {
	raw := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		raw[i] = d.setLayouts.get(Handle(l))
	}
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(raw)),
		PSetLayouts:    raw,
	}
	var layout vk.PipelineLayout
	if err := Check("vkCreatePipelineLayout", vk.CreatePipelineLayout(d.devices.get(Handle(device)), &createInfo, nil, &layout)); err != nil {
		return NullHandle, err
	}
	return PipelineLayout(d.pipelineLayouts.put(layout)), nil
}

func (d *VulkanDriver) DestroyPipelineLayout(device Device, layout PipelineLayout) {
	if raw, ok := d.pipelineLayouts.drop(Handle(layout)); ok {
		vk.DestroyPipelineLayout(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) CreateShaderModule(device Device, code []uint32) (ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := Check("vkCreateShaderModule", vk.CreateShaderModule(d.devices.get(Handle(device)), &createInfo, nil, &module)); err != nil {
		return NullHandle, err
	}
	return ShaderModule(d.shaderModules.put(module)), nil
}

func (d *VulkanDriver) DestroyShaderModule(device Device, module ShaderModule) {
	if raw, ok := d.shaderModules.drop(Handle(module)); ok {
		vk.DestroyShaderModule(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) CreateGraphicsPipeline(device Device, info GraphicsPipelineInfo) (Pipeline, error) {
	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, s := range info.Stages {
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  s.Stage,
			Module: d.shaderModules.get(Handle(s.Module)),
			PName:  SafeString(s.Entry),
		}
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(info.Vertex.Attributes))
	for i, a := range info.Vertex.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Binding:  0,
			Location: a.Location,
			Format:   a.Format,
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    info.Vertex.Stride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               info.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			Width:    float32(info.Extent.Width),
			Height:   float32(info.Extent.Height),
			MaxDepth: 1.0,
		}},
		ScissorCount: 1,
		PScissors: []vk.Rect2D{{
			Extent: vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		}},
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                info.CullMode,
		FrontFace:               info.FrontFace,
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  info.Samples,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(info.DepthTest),
		DepthWriteEnable:      vkBool(info.DepthWrite),
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MaxDepthBounds:        1.0,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		Layout:              d.pipelineLayouts.get(Handle(info.Layout)),
		RenderPass:          d.renderPasses.get(Handle(info.RenderPass)),
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	if info.DynamicViewportScissor {
		dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
		pipelineInfo.PDynamicState = &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		}
	}

	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(d.devices.get(Handle(device)), vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines)
	if err := Check("vkCreateGraphicsPipelines", res); err != nil {
		return NullHandle, err
	}
	return Pipeline(d.pipelines.put(pipelines[0])), nil
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func (d *VulkanDriver) DestroyPipeline(device Device, pipeline Pipeline) {
	if raw, ok := d.pipelines.drop(Handle(pipeline)); ok {
		vk.DestroyPipeline(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) CreateFramebuffer(device Device, info FramebufferInfo) (Framebuffer, error) {
	views := make([]vk.ImageView, len(info.Attachments))
	for i, v := range info.Attachments {
		views[i] = d.imageViews.get(Handle(v))
	}
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      d.renderPasses.get(Handle(info.RenderPass)),
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           info.Width,
		Height:          info.Height,
		Layers:          1,
	}
	var framebuffer vk.Framebuffer
	if err := Check("vkCreateFramebuffer", vk.CreateFramebuffer(d.devices.get(Handle(device)), &createInfo, nil, &framebuffer)); err != nil {
		return NullHandle, err
	}
	return Framebuffer(d.framebuffers.put(framebuffer)), nil
}

func (d *VulkanDriver) DestroyFramebuffer(device Device, framebuffer Framebuffer) {
	if raw, ok := d.framebuffers.drop(Handle(framebuffer)); ok {
		vk.DestroyFramebuffer(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) CreateSampler(device Device, info SamplerInfo) (Sampler, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vkBool(info.AnisotropyEnable),
		MaxAnisotropy:           info.MaxAnisotropy,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  info.MaxLod,
	}
	var sampler vk.Sampler
	if err := Check("vkCreateSampler", vk.CreateSampler(d.devices.get(Handle(device)), &createInfo, nil, &sampler)); err != nil {
		return NullHandle, err
	}
	return Sampler(d.samplers.put(sampler)), nil
}

func (d *VulkanDriver) DestroySampler(device Device, sampler Sampler) {
	if raw, ok := d.samplers.drop(Handle(sampler)); ok {
		vk.DestroySampler(d.devices.get(Handle(device)), raw, nil)
	}
}

func (d *VulkanDriver) CreateDescriptorPool(device Device, sizes []DescriptorPoolSize, maxSets uint32) (DescriptorPool, error) {
	raw := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		raw[i] = vk.DescriptorPoolSize{Type: s.Type, DescriptorCount: s.Count}
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(raw)),
		PPoolSizes:    raw,
		MaxSets:       maxSets,
	}
	var pool vk.DescriptorPool
	if err := Check("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.devices.get(Handle(device)), &createInfo, nil, &pool)); err != nil {
		return NullHandle, err
	}
	return DescriptorPool(d.descriptorPools.put(pool)), nil
}

// DestroyDescriptorPool also forgets every set allocated from the pool.
func (d *VulkanDriver) DestroyDescriptorPool(device Device, pool DescriptorPool) {
	raw, ok := d.descriptorPools.drop(Handle(pool))
	if !ok {
		return
	}
	d.mu.Lock()
	for _, set := range d.poolSets[pool] {
		d.descriptorSets.drop(Handle(set))
	}
	delete(d.poolSets, pool)
	d.mu.Unlock()
	vk.DestroyDescriptorPool(d.devices.get(Handle(device)), raw, nil)
}

func (d *VulkanDriver) AllocateDescriptorSets(device Device, pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error) {
	rawLayouts := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		rawLayouts[i] = d.setLayouts.get(Handle(l))
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descriptorPools.get(Handle(pool)),
		DescriptorSetCount: uint32(len(rawLayouts)),
		PSetLayouts:        rawLayouts,
	}
	raw := make([]vk.DescriptorSet, len(layouts))
	if err := Check("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(d.devices.get(Handle(device)), &allocateInfo, &raw[0])); err != nil {
		return nil, err
	}
	out := make([]DescriptorSet, len(raw))
	for i := range raw {
		out[i] = DescriptorSet(d.descriptorSets.put(raw[i]))
	}
	d.mu.Lock()
	d.poolSets[pool] = append(d.poolSets[pool], out...)
	d.mu.Unlock()
	return out, nil
}

func (d *VulkanDriver) UpdateDescriptorSets(device Device, writes []DescriptorWrite) {
	raw := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		raw[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          d.descriptorSets.get(Handle(w.Set)),
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorType:  w.Type,
			DescriptorCount: 1,
		}
		if w.Type == vk.DescriptorTypeCombinedImageSampler {
			raw[i].PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     d.samplers.get(Handle(w.Sampler)),
				ImageView:   d.imageViews.get(Handle(w.ImageView)),
				ImageLayout: w.ImageLayout,
			}}
		} else {
			raw[i].PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: d.buffers.get(Handle(w.Buffer)),
				Offset: 0,
				Range:  w.Range,
			}}
		}
	}
	vk.UpdateDescriptorSets(d.devices.get(Handle(device)), uint32(len(raw)), raw, 0, nil)
}

func (d *VulkanDriver) CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin) {
	clearValues := make([]vk.ClearValue, 1, 2)
	clearValues[0].SetColor(begin.ClearColor[:])
	if begin.ClearDepth {
		var depth vk.ClearValue
		depth.SetDepthStencil(begin.Depth, begin.Stencil)
		clearValues = append(clearValues, depth)
	}
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  d.renderPasses.get(Handle(begin.RenderPass)),
		Framebuffer: d.framebuffers.get(Handle(begin.Framebuffer)),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: begin.Extent.Width, Height: begin.Extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(d.commandBuffers.get(Handle(cb)), &beginInfo, vk.SubpassContentsInline)
}

func (d *VulkanDriver) CmdEndRenderPass(cb CommandBuffer) {
	vk.CmdEndRenderPass(d.commandBuffers.get(Handle(cb)))
}

func (d *VulkanDriver) CmdBindPipeline(cb CommandBuffer, pipeline Pipeline) {
	vk.CmdBindPipeline(d.commandBuffers.get(Handle(cb)), vk.PipelineBindPointGraphics, d.pipelines.get(Handle(pipeline)))
}

func (d *VulkanDriver) CmdBindVertexBuffer(cb CommandBuffer, buffer Buffer) {
	vk.CmdBindVertexBuffers(d.commandBuffers.get(Handle(cb)), 0, 1, []vk.Buffer{d.buffers.get(Handle(buffer))}, []vk.DeviceSize{0})
}

func (d *VulkanDriver) CmdBindIndexBuffer(cb CommandBuffer, buffer Buffer, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(d.commandBuffers.get(Handle(cb)), d.buffers.get(Handle(buffer)), 0, indexType)
}

func (d *VulkanDriver) CmdSetViewport(cb CommandBuffer, viewport Viewport) {
	vk.CmdSetViewport(d.commandBuffers.get(Handle(cb)), 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (d *VulkanDriver) CmdSetScissor(cb CommandBuffer, extent Extent2D) {
	vk.CmdSetScissor(d.commandBuffers.get(Handle(cb)), 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}})
}

func (d *VulkanDriver) CmdBindDescriptorSet(cb CommandBuffer, layout PipelineLayout, set DescriptorSet) {
	vk.CmdBindDescriptorSets(d.commandBuffers.get(Handle(cb)), vk.PipelineBindPointGraphics,
		d.pipelineLayouts.get(Handle(layout)), 0, 1, []vk.DescriptorSet{d.descriptorSets.get(Handle(set))}, 0, nil)
}

func (d *VulkanDriver) CmdDrawIndexed(cb CommandBuffer, indexCount uint32) {
	vk.CmdDrawIndexed(d.commandBuffers.get(Handle(cb)), indexCount, 1, 0, 0, 0)
}

func (d *VulkanDriver) CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, size vk.DeviceSize) {
	vk.CmdCopyBuffer(d.commandBuffers.get(Handle(cb)), d.buffers.get(Handle(src)), d.buffers.get(Handle(dst)), 1,
		[]vk.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: size}})
}

func (d *VulkanDriver) CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, width, height uint32) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(d.commandBuffers.get(Handle(cb)), d.buffers.get(Handle(src)), d.images.get(Handle(dst)),
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (d *VulkanDriver) CmdPipelineBarrier(cb CommandBuffer, barrier ImageBarrier) {
	raw := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           barrier.OldLayout,
		NewLayout:           barrier.NewLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               d.images.get(Handle(barrier.Image)),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   barrier.BaseMipLevel,
			LevelCount:     barrier.LevelCount,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: barrier.SrcAccess,
		DstAccessMask: barrier.DstAccess,
	}
	vk.CmdPipelineBarrier(d.commandBuffers.get(Handle(cb)), barrier.SrcStage, barrier.DstStage, 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{raw})
}

func (d *VulkanDriver) CmdBlitImage(cb CommandBuffer, blit ImageBlit) {
	image := d.images.get(Handle(blit.Image))
	region := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       blit.SrcLevel,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcOffsets: [2]vk.Offset3D{{X: 0, Y: 0, Z: 0}, {X: blit.SrcWidth, Y: blit.SrcHeight, Z: 1}},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       blit.DstLevel,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		DstOffsets: [2]vk.Offset3D{{X: 0, Y: 0, Z: 0}, {X: blit.DstWidth, Y: blit.DstHeight, Z: 1}},
	}
	vk.CmdBlitImage(d.commandBuffers.get(Handle(cb)), image, vk.ImageLayoutTransferSrcOptimal,
		image, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{region}, vk.FilterLinear)
}

var _ Driver = (*VulkanDriver)(nil)
