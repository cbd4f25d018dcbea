package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
	emath "github.com/spaghettifunk/vkbase/engine/math"
)

type VulkanSwapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	// One view per image, same index.
	Views []vk.ImageView
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func DeviceQuerySwapchainSupport(context *VulkanContext) (*VulkanSwapchainSupportInfo, error) {
	driver := context.Driver
	physicalDevice := context.Device.PhysicalDevice

	capabilities, res := driver.SurfaceCapabilities(physicalDevice, context.Surface)
	if err := checkResult("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res); err != nil {
		return nil, err
	}
	formats, res := driver.SurfaceFormats(physicalDevice, context.Surface)
	if err := checkResult("vkGetPhysicalDeviceSurfaceFormatsKHR", res); err != nil {
		return nil, err
	}
	presentModes, res := driver.SurfacePresentModes(physicalDevice, context.Surface)
	if err := checkResult("vkGetPhysicalDeviceSurfacePresentModesKHR", res); err != nil {
		return nil, err
	}
	return &VulkanSwapchainSupportInfo{
		Capabilities: capabilities,
		Formats:      formats,
		PresentModes: presentModes,
	}, nil
}

// SwapchainCreate builds a swapchain for the context's surface. When old is
// not nil its handle is handed to the driver so in-flight presents can
// finish; the caller still destroys old afterwards.
func SwapchainCreate(context *VulkanContext, width, height uint32, old *VulkanSwapchain) (*VulkanSwapchain, error) {
	support, err := DeviceQuerySwapchainSupport(context)
	if err != nil {
		return nil, err
	}

	format, err := chooseSurfaceFormat(support.Formats)
	if err != nil {
		core.LogError("Surface reports no formats.")
		return nil, err
	}
	for _, mode := range support.PresentModes {
		core.LogDebug("Surface supports present mode %d", mode)
	}

	caps := support.Capabilities
	swapchain := &VulkanSwapchain{
		ImageFormat: format,
		// FIFO is the only mode every implementation must support.
		PresentMode: vk.PresentModeFifo,
		Extent:      chooseSwapchainExtent(caps, width, height),
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    desiredImageCount(caps),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   chooseCompositeAlpha(caps.SupportedCompositeAlpha),
		PresentMode:      swapchain.PresentMode,
		Clipped:          vk.True,
	}
	if old != nil {
		swapchainCreateInfo.OldSwapchain = old.Handle
	}

	driver := context.Driver
	logicalDevice := context.Device.LogicalDevice

	// Partial results are released in reverse if any later step fails.
	var rollback ResourceStack

	handle, res := driver.CreateSwapchain(logicalDevice, &swapchainCreateInfo)
	if err := checkResult("vkCreateSwapchainKHR", res); err != nil {
		return nil, err
	}
	swapchain.Handle = handle
	rollback.Push("swapchain", func() { driver.DestroySwapchain(logicalDevice, handle) })

	images, res := driver.SwapchainImages(logicalDevice, handle)
	if err := checkResult("vkGetSwapchainImagesKHR", res); err != nil {
		rollback.Release()
		return nil, err
	}
	swapchain.Images = images
	swapchain.ImageCount = uint32(len(images))
	swapchain.Views = make([]vk.ImageView, 0, len(images))

	// Only the views are ours; the images belong to the swapchain.
	for i, image := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		view, res := driver.CreateImageView(logicalDevice, &viewInfo)
		if err := checkResult(fmt.Sprintf("vkCreateImageView[%d]", i), res); err != nil {
			rollback.Release()
			return nil, err
		}
		swapchain.Views = append(swapchain.Views, view)
		rollback.Push("swapchain image view", func() { driver.DestroyImageView(logicalDevice, view) })
	}

	core.LogInfo("Swapchain created successfully (%dx%d, %d images).",
		swapchain.Extent.Width, swapchain.Extent.Height, swapchain.ImageCount)
	return swapchain, nil
}

// Destroy releases the views and the swapchain. The images go with it.
func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	logicalDevice := context.Device.LogicalDevice
	for i := len(vs.Views) - 1; i >= 0; i-- {
		context.Driver.DestroyImageView(logicalDevice, vs.Views[i])
	}
	vs.Views = nil
	vs.Images = nil
	vs.ImageCount = 0

	if vs.Handle != nil {
		context.Driver.DestroySwapchain(logicalDevice, vs.Handle)
		vs.Handle = nil
	}
}

// AcquireNextImageIndex asks the swapchain for the next image, signalling
// semaphore once it is ready. The bool result reports a suboptimal swapchain
// that can still be rendered to.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNs uint64, semaphore vk.Semaphore) (uint32, bool, error) {
	index, result := context.Driver.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNs, semaphore)
	switch result {
	case vk.Success:
		return index, false, nil
	case vk.Suboptimal:
		return index, true, nil
	case vk.ErrorOutOfDate:
		return 0, false, ErrStaleSurface
	case vk.Timeout, vk.NotReady:
		core.LogWarn("vkAcquireNextImageKHR - %s", VulkanResultString(result, false))
		return 0, false, ErrFrameTimeout
	default:
		return 0, false, checkResult("vkAcquireNextImageKHR", result)
	}
}

// Present returns the image to the swapchain once renderComplete is
// signalled. stale is true when the swapchain no longer matches the surface.
func (vs *VulkanSwapchain) Present(context *VulkanContext, queue vk.Queue, renderComplete vk.Semaphore, imageIndex uint32) (stale bool, err error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}

	var result vk.Result
	err = context.Locks.SafeQueueCall(context.Device.GraphicsQueueIndex, func() error {
		result = context.Driver.QueuePresent(queue, &presentInfo)
		return nil
	})
	if err != nil {
		return false, err
	}

	switch result {
	case vk.Success:
		return false, nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return true, nil
	default:
		return false, checkResult("vkQueuePresentKHR", result)
	}
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, ErrNoSurfaceFormat
	}
	// A lone UNDEFINED entry means the surface takes any format.
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: formats[0].ColorSpace}, nil
	}
	for _, format := range formats {
		if format.Format == vk.FormatR8g8b8a8Unorm {
			return format, nil
		}
	}
	return formats[0], nil
}

func chooseSwapchainExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	// The surface size is defined by the swapchain, so use the window size
	// within what the GPU allows.
	return vk.Extent2D{
		Width:  emath.Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: emath.Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func desiredImageCount(caps vk.SurfaceCapabilities) uint32 {
	return emath.ClampUnbounded(caps.MinImageCount+1, caps.MinImageCount, caps.MaxImageCount)
}

func chooseCompositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	if supported&vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit) != 0 {
		return vk.CompositeAlphaInheritBit
	}
	return vk.CompositeAlphaOpaqueBit
}
