package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
)

// VulkanDriver forwards every call to the goki/vulkan bindings. No custom
// allocator is used anywhere, so all allocation callbacks are nil.
type VulkanDriver struct{}

var _ Driver = (*VulkanDriver)(nil)

// NewVulkanDriver loads the Vulkan loader through the given vkGetInstanceProcAddr.
func NewVulkanDriver(procAddr unsafe.Pointer) (*VulkanDriver, error) {
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}
	return &VulkanDriver{}, nil
}

func (d *VulkanDriver) CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result) {
	var instance vk.Instance
	if res := vk.CreateInstance(info, nil, &instance); res != vk.Success {
		return nil, res
	}
	if err := vk.InitInstance(instance); err != nil {
		core.LogError("failed to load instance functions: %s", err)
		vk.DestroyInstance(instance, nil)
		return nil, vk.ErrorInitializationFailed
	}
	return instance, vk.Success
}

func (d *VulkanDriver) DestroyInstance(instance vk.Instance) {
	vk.DestroyInstance(instance, nil)
}

func (d *VulkanDriver) InstanceLayers() ([]string, vk.Result) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return nil, res
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return nil, res
	}
	names := make([]string, 0, count)
	for i := range layers {
		layers[i].Deref()
		names = append(names, vk.ToString(layers[i].LayerName[:]))
	}
	return names, vk.Success
}

func (d *VulkanDriver) CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo) (vk.DebugReportCallback, vk.Result) {
	var callback vk.DebugReportCallback
	res := vk.CreateDebugReportCallback(instance, info, nil, &callback)
	return callback, res
}

func (d *VulkanDriver) DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback) {
	vk.DestroyDebugReportCallback(instance, callback, nil)
}

func (d *VulkanDriver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	vk.DestroySurface(instance, surface, nil)
}

func (d *VulkanDriver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, res
	}
	if count == 0 {
		return nil, vk.Success
	}
	devices := make([]vk.PhysicalDevice, count)
	res := vk.EnumeratePhysicalDevices(instance, &count, devices)
	return devices[:count], res
}

func (d *VulkanDriver) PhysicalDeviceInfo(physicalDevice vk.PhysicalDevice) AdapterInfo {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
	properties.Deref()
	return AdapterInfo{
		Name:          vk.ToString(properties.DeviceName[:]),
		Type:          properties.DeviceType,
		DriverVersion: properties.DriverVersion,
		APIVersion:    properties.ApiVersion,
	}
}

func (d *VulkanDriver) QueueFamilyProperties(physicalDevice vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, families)
	for i := range families {
		families[i].Deref()
	}
	return families
}

func (d *VulkanDriver) MemoryTypes(physicalDevice vk.PhysicalDevice) []vk.MemoryType {
	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
	memory.Deref()

	types := make([]vk.MemoryType, memory.MemoryTypeCount)
	for i := range types {
		memory.MemoryTypes[i].Deref()
		types[i] = memory.MemoryTypes[i]
	}
	return types
}

func (d *VulkanDriver) OptimalTilingFeatures(physicalDevice vk.PhysicalDevice, format vk.Format) vk.FormatFeatureFlags {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(physicalDevice, format, &properties)
	properties.Deref()
	return properties.OptimalTilingFeatures
}

func (d *VulkanDriver) DeviceExtensions(physicalDevice vk.PhysicalDevice) ([]string, vk.Result) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, nil); res != vk.Success {
		return nil, res
	}
	extensions := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, extensions); res != vk.Success {
		return nil, res
	}
	names := make([]string, 0, count)
	for i := range extensions {
		extensions[i].Deref()
		names = append(names, vk.ToString(extensions[i].ExtensionName[:]))
	}
	return names, vk.Success
}

func (d *VulkanDriver) SurfaceCapabilities(physicalDevice vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	var capabilities vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &capabilities)
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	return capabilities, res
}

func (d *VulkanDriver) SurfaceFormats(physicalDevice vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &count, nil); res != vk.Success {
		return nil, res
	}
	formats := make([]vk.SurfaceFormat, count)
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &count, formats); res != vk.Success {
		return nil, res
	}
	for i := range formats {
		formats[i].Deref()
	}
	return formats, vk.Success
}

func (d *VulkanDriver) SurfacePresentModes(physicalDevice vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result) {
	var count uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &count, nil); res != vk.Success {
		return nil, res
	}
	modes := make([]vk.PresentMode, count)
	res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &count, modes)
	return modes, res
}

func (d *VulkanDriver) CreateDevice(physicalDevice vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result) {
	var device vk.Device
	res := vk.CreateDevice(physicalDevice, info, nil, &device)
	return device, res
}

func (d *VulkanDriver) DestroyDevice(device vk.Device) {
	vk.DestroyDevice(device, nil)
}

func (d *VulkanDriver) DeviceQueue(device vk.Device, familyIndex, queueIndex uint32) vk.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(device, familyIndex, queueIndex, &queue)
	return queue
}

func (d *VulkanDriver) DeviceWaitIdle(device vk.Device) vk.Result {
	return vk.DeviceWaitIdle(device)
}

func (d *VulkanDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	var swapchain vk.Swapchain
	res := vk.CreateSwapchain(device, info, nil, &swapchain)
	return swapchain, res
}

func (d *VulkanDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	vk.DestroySwapchain(device, swapchain, nil)
}

func (d *VulkanDriver) SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	var count uint32
	if res := vk.GetSwapchainImages(device, swapchain, &count, nil); res != vk.Success {
		return nil, res
	}
	images := make([]vk.Image, count)
	res := vk.GetSwapchainImages(device, swapchain, &count, images)
	return images, res
}

func (d *VulkanDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore) (uint32, vk.Result) {
	var index uint32
	res := vk.AcquireNextImage(device, swapchain, timeout, semaphore, vk.NullFence, &index)
	return index, res
}

func (d *VulkanDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (d *VulkanDriver) CreateImage(device vk.Device, info *vk.ImageCreateInfo) (vk.Image, vk.Result) {
	var image vk.Image
	res := vk.CreateImage(device, info, nil, &image)
	return image, res
}

func (d *VulkanDriver) DestroyImage(device vk.Device, image vk.Image) {
	vk.DestroyImage(device, image, nil)
}

func (d *VulkanDriver) ImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements {
	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image, &requirements)
	requirements.Deref()
	return requirements
}

func (d *VulkanDriver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, vk.Result) {
	var memory vk.DeviceMemory
	res := vk.AllocateMemory(device, info, nil, &memory)
	return memory, res
}

func (d *VulkanDriver) FreeMemory(device vk.Device, memory vk.DeviceMemory) {
	vk.FreeMemory(device, memory, nil)
}

func (d *VulkanDriver) BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory) vk.Result {
	return vk.BindImageMemory(device, image, memory, 0)
}

func (d *VulkanDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	var view vk.ImageView
	res := vk.CreateImageView(device, info, nil, &view)
	return view, res
}

func (d *VulkanDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	vk.DestroyImageView(device, view, nil)
}

func (d *VulkanDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result) {
	var renderpass vk.RenderPass
	res := vk.CreateRenderPass(device, info, nil, &renderpass)
	return renderpass, res
}

func (d *VulkanDriver) DestroyRenderPass(device vk.Device, renderpass vk.RenderPass) {
	vk.DestroyRenderPass(device, renderpass, nil)
}

func (d *VulkanDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	var framebuffer vk.Framebuffer
	res := vk.CreateFramebuffer(device, info, nil, &framebuffer)
	return framebuffer, res
}

func (d *VulkanDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(device, framebuffer, nil)
}

func (d *VulkanDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, vk.Result) {
	var pool vk.CommandPool
	res := vk.CreateCommandPool(device, info, nil, &pool)
	return pool, res
}

func (d *VulkanDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	vk.DestroyCommandPool(device, pool, nil)
}

func (d *VulkanDriver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, vk.Result) {
	buffers := make([]vk.CommandBuffer, info.CommandBufferCount)
	res := vk.AllocateCommandBuffers(device, info, buffers)
	return buffers, res
}

func (d *VulkanDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(device, pool, uint32(len(buffers)), buffers)
}

func (d *VulkanDriver) ResetCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	return vk.ResetCommandBuffer(commandBuffer, 0)
}

func (d *VulkanDriver) BeginCommandBuffer(commandBuffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	return vk.BeginCommandBuffer(commandBuffer, info)
}

func (d *VulkanDriver) EndCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(commandBuffer)
}

func (d *VulkanDriver) CmdBeginRenderPass(commandBuffer vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	vk.CmdBeginRenderPass(commandBuffer, info, contents)
}

func (d *VulkanDriver) CmdEndRenderPass(commandBuffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer)
}

func (d *VulkanDriver) CmdSetViewport(commandBuffer vk.CommandBuffer, viewports []vk.Viewport) {
	vk.CmdSetViewport(commandBuffer, 0, uint32(len(viewports)), viewports)
}

func (d *VulkanDriver) CmdSetScissor(commandBuffer vk.CommandBuffer, scissors []vk.Rect2D) {
	vk.CmdSetScissor(commandBuffer, 0, uint32(len(scissors)), scissors)
}

func (d *VulkanDriver) CmdBindPipeline(commandBuffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(commandBuffer, bindPoint, pipeline)
}

func (d *VulkanDriver) CmdDraw(commandBuffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(commandBuffer, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *VulkanDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(queue, uint32(len(submits)), submits, fence)
}

func (d *VulkanDriver) CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, vk.Result) {
	var fence vk.Fence
	res := vk.CreateFence(device, info, nil, &fence)
	return fence, res
}

func (d *VulkanDriver) DestroyFence(device vk.Device, fence vk.Fence) {
	vk.DestroyFence(device, fence, nil)
}

func (d *VulkanDriver) WaitForFences(device vk.Device, fences []vk.Fence, timeout uint64) vk.Result {
	return vk.WaitForFences(device, uint32(len(fences)), fences, vk.True, timeout)
}

func (d *VulkanDriver) ResetFences(device vk.Device, fences []vk.Fence) vk.Result {
	return vk.ResetFences(device, uint32(len(fences)), fences)
}

func (d *VulkanDriver) CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo) (vk.Semaphore, vk.Result) {
	var semaphore vk.Semaphore
	res := vk.CreateSemaphore(device, info, nil, &semaphore)
	return semaphore, res
}

func (d *VulkanDriver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore) {
	vk.DestroySemaphore(device, semaphore, nil)
}

func (d *VulkanDriver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	var module vk.ShaderModule
	res := vk.CreateShaderModule(device, info, nil, &module)
	return module, res
}

func (d *VulkanDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	vk.DestroyShaderModule(device, module, nil)
}

func (d *VulkanDriver) CreatePipelineCache(device vk.Device, info *vk.PipelineCacheCreateInfo) (vk.PipelineCache, vk.Result) {
	var cache vk.PipelineCache
	res := vk.CreatePipelineCache(device, info, nil, &cache)
	return cache, res
}

func (d *VulkanDriver) DestroyPipelineCache(device vk.Device, cache vk.PipelineCache) {
	vk.DestroyPipelineCache(device, cache, nil)
}

func (d *VulkanDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	var layout vk.PipelineLayout
	res := vk.CreatePipelineLayout(device, info, nil, &layout)
	return layout, res
}

func (d *VulkanDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(device, layout, nil)
}

func (d *VulkanDriver) CreateGraphicsPipeline(device vk.Device, cache vk.PipelineCache, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result) {
	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(device, cache, 1, []vk.GraphicsPipelineCreateInfo{*info}, nil, pipelines)
	return pipelines[0], res
}

func (d *VulkanDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	vk.DestroyPipeline(device, pipeline, nil)
}
