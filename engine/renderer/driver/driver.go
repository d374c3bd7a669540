// Package driver is the thin layer between the renderer core and the raw
// Vulkan entry points. The core only ever sees opaque handles and plain data
// descriptions; the goki/vulkan implementation lives in vk.go and a counting
// mock lives in drivertest.
package driver

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Handle is an opaque reference to a driver object. NullHandle is never a
// valid object.
type Handle uint64

const NullHandle = 0

type (
	Instance            Handle
	DebugMessenger      Handle
	Surface             Handle
	PhysicalDevice      Handle
	Device              Handle
	Queue               Handle
	CommandPool         Handle
	CommandBuffer       Handle
	Semaphore           Handle
	Fence               Handle
	Swapchain           Handle
	Image               Handle
	ImageView           Handle
	RenderPass          Handle
	DescriptorSetLayout Handle
	PipelineLayout      Handle
	Pipeline            Handle
	ShaderModule        Handle
	Framebuffer         Handle
	Buffer              Handle
	DeviceMemory        Handle
	Sampler             Handle
	DescriptorPool      Handle
	DescriptorSet       Handle
)

// SurfaceSource creates a presentation surface for a native window.
// *glfw.Window satisfies it.
type SurfaceSource interface {
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

// DebugSeverity classifies validation layer messages.
type DebugSeverity int

const (
	DebugSeverityDebug DebugSeverity = iota
	DebugSeverityInfo
	DebugSeverityWarning
	DebugSeverityPerformance
	DebugSeverityError
)

type DebugCallback func(severity DebugSeverity, layer string, code int32, message string)

type InstanceInfo struct {
	ApplicationName string
	EngineName      string
	Extensions      []string
	Layers          []string
	// Portability enables VK_KHR_portability_enumeration devices (MoltenVK).
	Portability bool
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

type SurfaceCapabilities struct {
	MinImageCount    uint32
	MaxImageCount    uint32
	CurrentExtent    Extent2D
	MinImageExtent   Extent2D
	MaxImageExtent   Extent2D
	CurrentTransform vk.SurfaceTransformFlagBits
}

type SurfaceFormat struct {
	Format     vk.Format
	ColorSpace vk.ColorSpace
}

type PhysicalDeviceProperties struct {
	Name          string
	Type          vk.PhysicalDeviceType
	APIVersion    uint32
	DriverVersion uint32
	// Sample counts supported by color and depth framebuffer attachments.
	ColorSampleCounts    vk.SampleCountFlags
	DepthSampleCounts    vk.SampleCountFlags
	MaxSamplerAnisotropy float32
}

type Features struct {
	SamplerAnisotropy bool
}

type QueueFamily struct {
	Flags vk.QueueFlags
	Count uint32
}

type FormatProperties struct {
	LinearTilingFeatures  vk.FormatFeatureFlags
	OptimalTilingFeatures vk.FormatFeatureFlags
}

type MemoryType struct {
	PropertyFlags vk.MemoryPropertyFlags
	HeapIndex     uint32
}

type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

type MemoryProperties struct {
	Types []MemoryType
	Heaps []MemoryHeap
}

type MemoryRequirements struct {
	Size           vk.DeviceSize
	Alignment      vk.DeviceSize
	MemoryTypeBits uint32
}

type DeviceInfo struct {
	// One queue is requested per distinct family.
	QueueFamilies     []uint32
	Extensions        []string
	Layers            []string
	SamplerAnisotropy bool
}

type SwapchainInfo struct {
	Surface       Surface
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   vk.PresentMode
	PreTransform  vk.SurfaceTransformFlagBits
	SharingMode   vk.SharingMode
	// Only used with concurrent sharing.
	QueueFamilies []uint32
}

type ImageInfo struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    vk.Format
	Tiling    vk.ImageTiling
	Usage     vk.ImageUsageFlags
	Samples   vk.SampleCountFlagBits
}

type ImageViewInfo struct {
	Image     Image
	Format    vk.Format
	Aspect    vk.ImageAspectFlags
	MipLevels uint32
}

type BufferInfo struct {
	Size  vk.DeviceSize
	Usage vk.BufferUsageFlags
}

type AttachmentDescription struct {
	Format         vk.Format
	Samples        vk.SampleCountFlagBits
	LoadOp         vk.AttachmentLoadOp
	StoreOp        vk.AttachmentStoreOp
	StencilLoadOp  vk.AttachmentLoadOp
	StencilStoreOp vk.AttachmentStoreOp
	InitialLayout  vk.ImageLayout
	FinalLayout    vk.ImageLayout
}

type AttachmentReference struct {
	Attachment uint32
	Layout     vk.ImageLayout
}

type SubpassDependency struct {
	SrcSubpass    uint32
	DstSubpass    uint32
	SrcStageMask  vk.PipelineStageFlags
	DstStageMask  vk.PipelineStageFlags
	SrcAccessMask vk.AccessFlags
	DstAccessMask vk.AccessFlags
}

// RenderPassInfo describes a render pass with a single graphics subpass.
type RenderPassInfo struct {
	Attachments []AttachmentDescription
	Color       AttachmentReference
	Depth       *AttachmentReference
	Resolve     *AttachmentReference
	Dependency  SubpassDependency
}

type DescriptorBinding struct {
	Binding uint32
	Type    vk.DescriptorType
	Count   uint32
	Stages  vk.ShaderStageFlags
}

type VertexBinding struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type VertexAttribute struct {
	Location uint32
	Format   vk.Format
	Offset   uint32
}

type ShaderStage struct {
	Stage  vk.ShaderStageFlagBits
	Module ShaderModule
	Entry  string
}

type GraphicsPipelineInfo struct {
	Stages                 []ShaderStage
	Vertex                 VertexBinding
	Topology               vk.PrimitiveTopology
	Extent                 Extent2D
	CullMode               vk.CullModeFlags
	FrontFace              vk.FrontFace
	Samples                vk.SampleCountFlagBits
	DepthTest              bool
	DepthWrite             bool
	Layout                 PipelineLayout
	RenderPass             RenderPass
	DynamicViewportScissor bool
}

type FramebufferInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Width       uint32
	Height      uint32
}

type SamplerInfo struct {
	AnisotropyEnable bool
	MaxAnisotropy    float32
	MaxLod           float32
}

type DescriptorPoolSize struct {
	Type  vk.DescriptorType
	Count uint32
}

// DescriptorWrite updates a single binding of a set. Exactly one of Buffer and
// ImageView is used, depending on Type.
type DescriptorWrite struct {
	Set         DescriptorSet
	Binding     uint32
	Type        vk.DescriptorType
	Buffer      Buffer
	Range       vk.DeviceSize
	ImageView   ImageView
	Sampler     Sampler
	ImageLayout vk.ImageLayout
}

type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Wait           []Semaphore
	WaitStages     []vk.PipelineStageFlags
	Signal         []Semaphore
}

type PresentInfo struct {
	Wait       []Semaphore
	Swapchain  Swapchain
	ImageIndex uint32
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearColor  [4]float32
	// When set a depth clear of (Depth, Stencil) follows the color clear.
	ClearDepth bool
	Depth      float32
	Stencil    uint32
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// ImageBarrier is a layout transition over a mip range of a color image.
type ImageBarrier struct {
	Image        Image
	OldLayout    vk.ImageLayout
	NewLayout    vk.ImageLayout
	SrcAccess    vk.AccessFlags
	DstAccess    vk.AccessFlags
	SrcStage     vk.PipelineStageFlags
	DstStage     vk.PipelineStageFlags
	BaseMipLevel uint32
	LevelCount   uint32
}

// ImageBlit copies one mip level of an image into the next, scaling with a
// linear filter. The source must be in TRANSFER_SRC and the destination in
// TRANSFER_DST layout.
type ImageBlit struct {
	Image     Image
	SrcLevel  uint32
	SrcWidth  int32
	SrcHeight int32
	DstLevel  uint32
	DstWidth  int32
	DstHeight int32
}

// Driver is implemented once per graphics API binding. Every method maps to
// one or two raw entry points; no policy lives here.
type Driver interface {
	// Instance level.
	InstanceExtensions() ([]string, error)
	InstanceLayers() ([]string, error)
	CreateInstance(info InstanceInfo) (Instance, error)
	DestroyInstance(instance Instance)
	CreateDebugMessenger(instance Instance, callback DebugCallback) (DebugMessenger, error)
	DestroyDebugMessenger(instance Instance, messenger DebugMessenger)
	CreateSurface(instance Instance, source SurfaceSource) (Surface, error)
	DestroySurface(instance Instance, surface Surface)

	// Physical devices.
	EnumeratePhysicalDevices(instance Instance) ([]PhysicalDevice, error)
	PhysicalDeviceProperties(pd PhysicalDevice) PhysicalDeviceProperties
	PhysicalDeviceFeatures(pd PhysicalDevice) Features
	QueueFamilies(pd PhysicalDevice) []QueueFamily
	SurfaceSupport(pd PhysicalDevice, family uint32, surface Surface) (bool, error)
	DeviceExtensions(pd PhysicalDevice) ([]string, error)
	SurfaceCapabilities(pd PhysicalDevice, surface Surface) (SurfaceCapabilities, error)
	SurfaceFormats(pd PhysicalDevice, surface Surface) ([]SurfaceFormat, error)
	PresentModes(pd PhysicalDevice, surface Surface) ([]vk.PresentMode, error)
	FormatProperties(pd PhysicalDevice, format vk.Format) FormatProperties
	MemoryProperties(pd PhysicalDevice) MemoryProperties

	// Logical device and queues.
	CreateDevice(pd PhysicalDevice, info DeviceInfo) (Device, error)
	DestroyDevice(device Device)
	DeviceWaitIdle(device Device) error
	GetQueue(device Device, family uint32) Queue
	QueueSubmit(queue Queue, info SubmitInfo, fence Fence) error
	QueueWaitIdle(queue Queue) error
	QueuePresent(queue Queue, info PresentInfo) vk.Result

	// Commands.
	CreateCommandPool(device Device, family uint32, resettable bool) (CommandPool, error)
	DestroyCommandPool(device Device, pool CommandPool)
	AllocateCommandBuffers(device Device, pool CommandPool, count uint32) ([]CommandBuffer, error)
	FreeCommandBuffers(device Device, pool CommandPool, buffers []CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, usage vk.CommandBufferUsageFlags) error
	EndCommandBuffer(cb CommandBuffer) error
	ResetCommandBuffer(cb CommandBuffer) error

	// Synchronization.
	CreateSemaphore(device Device) (Semaphore, error)
	DestroySemaphore(device Device, semaphore Semaphore)
	CreateFence(device Device, signaled bool) (Fence, error)
	DestroyFence(device Device, fence Fence)
	WaitForFence(device Device, fence Fence, timeout uint64) vk.Result
	ResetFence(device Device, fence Fence) error

	// Swapchain.
	CreateSwapchain(device Device, info SwapchainInfo) (Swapchain, error)
	DestroySwapchain(device Device, swapchain Swapchain)
	SwapchainImages(device Device, swapchain Swapchain) ([]Image, error)
	AcquireNextImage(device Device, swapchain Swapchain, timeout uint64, signal Semaphore) (uint32, vk.Result)

	// Images, buffers and memory.
	CreateImage(device Device, info ImageInfo) (Image, error)
	DestroyImage(device Device, image Image)
	ImageMemoryRequirements(device Device, image Image) MemoryRequirements
	BindImageMemory(device Device, image Image, memory DeviceMemory) error
	CreateImageView(device Device, info ImageViewInfo) (ImageView, error)
	DestroyImageView(device Device, view ImageView)
	CreateBuffer(device Device, info BufferInfo) (Buffer, error)
	DestroyBuffer(device Device, buffer Buffer)
	BufferMemoryRequirements(device Device, buffer Buffer) MemoryRequirements
	BindBufferMemory(device Device, buffer Buffer, memory DeviceMemory) error
	AllocateMemory(device Device, size vk.DeviceSize, typeIndex uint32) (DeviceMemory, error)
	FreeMemory(device Device, memory DeviceMemory)
	MapMemory(device Device, memory DeviceMemory, size vk.DeviceSize) ([]byte, error)
	UnmapMemory(device Device, memory DeviceMemory)

	// Pipeline objects.
	CreateRenderPass(device Device, info RenderPassInfo) (RenderPass, error)
	DestroyRenderPass(device Device, pass RenderPass)
	CreateDescriptorSetLayout(device Device, bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(device Device, layout DescriptorSetLayout)
	CreatePipelineLayout(device Device, layouts []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(device Device, layout PipelineLayout)
	CreateShaderModule(device Device, code []uint32) (ShaderModule, error)
	DestroyShaderModule(device Device, module ShaderModule)
	CreateGraphicsPipeline(device Device, info GraphicsPipelineInfo) (Pipeline, error)
	DestroyPipeline(device Device, pipeline Pipeline)
	CreateFramebuffer(device Device, info FramebufferInfo) (Framebuffer, error)
	DestroyFramebuffer(device Device, framebuffer Framebuffer)
	CreateSampler(device Device, info SamplerInfo) (Sampler, error)
	DestroySampler(device Device, sampler Sampler)
	CreateDescriptorPool(device Device, sizes []DescriptorPoolSize, maxSets uint32) (DescriptorPool, error)
	DestroyDescriptorPool(device Device, pool DescriptorPool)
	AllocateDescriptorSets(device Device, pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	UpdateDescriptorSets(device Device, writes []DescriptorWrite)

	// Recording.
	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, pipeline Pipeline)
	CmdBindVertexBuffer(cb CommandBuffer, buffer Buffer)
	CmdBindIndexBuffer(cb CommandBuffer, buffer Buffer, indexType vk.IndexType)
	CmdSetViewport(cb CommandBuffer, viewport Viewport)
	CmdSetScissor(cb CommandBuffer, extent Extent2D)
	CmdBindDescriptorSet(cb CommandBuffer, layout PipelineLayout, set DescriptorSet)
	CmdDrawIndexed(cb CommandBuffer, indexCount uint32)
	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, size vk.DeviceSize)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, width, height uint32)
	CmdPipelineBarrier(cb CommandBuffer, barrier ImageBarrier)
	CmdBlitImage(cb CommandBuffer, blit ImageBlit)
}
