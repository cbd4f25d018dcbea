package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
}

// ImageCreate creates a single-mip 2D image, backs it with memory of the
// requested properties and, when createView is set, a view over viewAspect.
func ImageCreate(
	context *VulkanContext,
	imageType vk.ImageType,
	width, height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspect vk.ImageAspectFlags,
) (*VulkanImage, error) {
	driver := context.Driver
	logicalDevice := context.Device.LogicalDevice

	image := &VulkanImage{
		Width:  width,
		Height: height,
		Format: format,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	handle, res := driver.CreateImage(logicalDevice, &imageCreateInfo)
	if err := checkResult("vkCreateImage", res); err != nil {
		return nil, err
	}
	image.Handle = handle

	requirements := driver.ImageMemoryRequirements(logicalDevice, handle)
	memoryType, err := context.MemoryTypeIndex(requirements.MemoryTypeBits, memoryFlags)
	if err != nil {
		core.LogError("Required memory type not found. Image not valid.")
		image.Destroy(context)
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryType,
	}
	memory, res := driver.AllocateMemory(logicalDevice, &allocateInfo)
	if err := checkResult("vkAllocateMemory", res); err != nil {
		image.Destroy(context)
		return nil, err
	}
	image.Memory = memory

	if err := checkResult("vkBindImageMemory", driver.BindImageMemory(logicalDevice, handle, memory)); err != nil {
		image.Destroy(context)
		return nil, err
	}

	if createView {
		if err := image.CreateView(context, viewAspect); err != nil {
			image.Destroy(context)
			return nil, err
		}
	}
	return image, nil
}

func (vi *VulkanImage) CreateView(context *VulkanContext, aspectFlags vk.ImageAspectFlags) error {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   vi.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	view, res := context.Driver.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo)
	if err := checkResult("vkCreateImageView", res); err != nil {
		return err
	}
	vi.View = view
	return nil
}

// Destroy releases the view, the memory and the image, skipping whatever was
// never created.
func (vi *VulkanImage) Destroy(context *VulkanContext) {
	driver := context.Driver
	logicalDevice := context.Device.LogicalDevice
	if vi.View != nil {
		driver.DestroyImageView(logicalDevice, vi.View)
		vi.View = nil
	}
	if vi.Memory != nil {
		driver.FreeMemory(logicalDevice, vi.Memory)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		driver.DestroyImage(logicalDevice, vi.Handle)
		vi.Handle = nil
	}
}
