package vulkan

import (
	vk "github.com/goki/vulkan"
)

// AdapterInfo is the subset of the physical device properties the renderer logs and keeps.
type AdapterInfo struct {
	Name          string
	Type          vk.PhysicalDeviceType
	DriverVersion uint32
	APIVersion    uint32
}

// Driver is the set of Vulkan entry points the renderer uses. Every call takes
// the same create-info structures as the C API so that all decisions about
// formats, flags and ordering are made by the renderer itself. The goki/vulkan
// implementation lives in driver_vk.go; vktest provides an in-memory one.
//
// Enumeration calls hide the two-call count/fill pattern and return slices.
type Driver interface {
	// Instance level
	CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result)
	DestroyInstance(instance vk.Instance)
	InstanceLayers() ([]string, vk.Result)
	CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo) (vk.DebugReportCallback, vk.Result)
	DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback)
	DestroySurface(instance vk.Instance, surface vk.Surface)

	// Physical device queries
	EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result)
	PhysicalDeviceInfo(physicalDevice vk.PhysicalDevice) AdapterInfo
	QueueFamilyProperties(physicalDevice vk.PhysicalDevice) []vk.QueueFamilyProperties
	MemoryTypes(physicalDevice vk.PhysicalDevice) []vk.MemoryType
	OptimalTilingFeatures(physicalDevice vk.PhysicalDevice, format vk.Format) vk.FormatFeatureFlags
	DeviceExtensions(physicalDevice vk.PhysicalDevice) ([]string, vk.Result)
	SurfaceCapabilities(physicalDevice vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result)
	SurfaceFormats(physicalDevice vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result)
	SurfacePresentModes(physicalDevice vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result)

	// Logical device
	CreateDevice(physicalDevice vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result)
	DestroyDevice(device vk.Device)
	DeviceQueue(device vk.Device, familyIndex, queueIndex uint32) vk.Queue
	DeviceWaitIdle(device vk.Device) vk.Result

	// Swapchain
	CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result)
	DestroySwapchain(device vk.Device, swapchain vk.Swapchain)
	SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result)
	AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore) (uint32, vk.Result)
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result

	// Images and memory
	CreateImage(device vk.Device, info *vk.ImageCreateInfo) (vk.Image, vk.Result)
	DestroyImage(device vk.Device, image vk.Image)
	ImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements
	AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, vk.Result)
	FreeMemory(device vk.Device, memory vk.DeviceMemory)
	BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory) vk.Result
	CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result)
	DestroyImageView(device vk.Device, view vk.ImageView)

	// Render pass and framebuffers
	CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result)
	DestroyRenderPass(device vk.Device, renderpass vk.RenderPass)
	CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result)
	DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer)

	// Command pools and buffers
	CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, vk.Result)
	DestroyCommandPool(device vk.Device, pool vk.CommandPool)
	AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, vk.Result)
	FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer)
	ResetCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result
	BeginCommandBuffer(commandBuffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result
	EndCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result

	// Recording
	CmdBeginRenderPass(commandBuffer vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents)
	CmdEndRenderPass(commandBuffer vk.CommandBuffer)
	CmdSetViewport(commandBuffer vk.CommandBuffer, viewports []vk.Viewport)
	CmdSetScissor(commandBuffer vk.CommandBuffer, scissors []vk.Rect2D)
	CmdBindPipeline(commandBuffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdDraw(commandBuffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// Queue
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result

	// Synchronization
	CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, vk.Result)
	DestroyFence(device vk.Device, fence vk.Fence)
	WaitForFences(device vk.Device, fences []vk.Fence, timeout uint64) vk.Result
	ResetFences(device vk.Device, fences []vk.Fence) vk.Result
	CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo) (vk.Semaphore, vk.Result)
	DestroySemaphore(device vk.Device, semaphore vk.Semaphore)

	// Shaders and pipelines
	CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result)
	DestroyShaderModule(device vk.Device, module vk.ShaderModule)
	CreatePipelineCache(device vk.Device, info *vk.PipelineCacheCreateInfo) (vk.PipelineCache, vk.Result)
	DestroyPipelineCache(device vk.Device, cache vk.PipelineCache)
	CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result)
	DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout)
	CreateGraphicsPipeline(device vk.Device, cache vk.PipelineCache, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result)
	DestroyPipeline(device vk.Device, pipeline vk.Pipeline)
}

// SurfaceSource is the host window the renderer presents to.
type SurfaceSource interface {
	// Instance extensions the host needs to create a surface.
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	// Size of the drawable area in pixels. Zero in either dimension means
	// there is nothing to present to, e.g. a minimized window.
	FramebufferSize() (uint32, uint32)
}
