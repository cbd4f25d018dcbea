package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanContext holds every live GPU object of one bring-up. It is owned by
// VulkanBackend and handed by pointer to the functions that create and
// destroy those objects.
type VulkanContext struct {
	Driver Driver
	Config BackendConfig
	Locks  *VulkanLockPool

	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match FramebufferSizeLastGeneration,
	// the swapchain is stale.
	FramebufferSizeGeneration uint64
	// The generation of the framebuffer when the swapchain was last created.
	FramebufferSizeLastGeneration uint64

	Instance vk.Instance
	Surface  vk.Surface

	debugCallback vk.DebugReportCallback

	Device        *VulkanDevice
	Frames        *FrameRing
	PipelineCache vk.PipelineCache

	// Replaced on every recreation; nil while the surface has no area.
	Swapchain *VulkanSwapchain
	Targets   *RenderTargets

	// Swapchain image acquired for the frame being recorded.
	ImageIndex uint32

	RecreatingSwapchain bool
	// Set when acquire or present reported the swapchain out of date or suboptimal.
	staleSurface bool
}

// MemoryTypeIndex is a shortcut for Device.MemoryTypeIndex.
func (vc *VulkanContext) MemoryTypeIndex(typeBits uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	return vc.Device.MemoryTypeIndex(typeBits, propertyFlags)
}

// SurfaceStale reports whether the swapchain must be recreated before the next frame.
func (vc *VulkanContext) SurfaceStale() bool {
	return vc.staleSurface || vc.Swapchain == nil || vc.FramebufferSizeGeneration != vc.FramebufferSizeLastGeneration
}

func (vc *VulkanContext) markStale() {
	vc.staleSurface = true
}
