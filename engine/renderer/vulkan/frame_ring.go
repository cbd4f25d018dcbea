package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
)

// MaxFramesInFlight is how many frames the CPU may record ahead of the GPU.
const MaxFramesInFlight = 2

// FrameSlot is the set of resources one in-flight frame uses.
type FrameSlot struct {
	CommandBuffer *VulkanCommandBuffer
	// Signalled by the GPU when the slot's last submission completes.
	InFlight *VulkanFence
	// Signalled when the acquired swapchain image is ready to be written.
	ImageAvailable vk.Semaphore
	// Signalled when rendering is done and the image may be presented.
	RenderComplete vk.Semaphore
}

type FrameRing struct {
	CommandPool vk.CommandPool
	Slots       [MaxFramesInFlight]FrameSlot

	currentFrame uint32
	resources    ResourceStack
}

// FrameRingCreate creates the command pool on the graphics family and the
// per-slot command buffers, fences and semaphores. Fences start signalled so
// the first wait on each slot returns at once.
func FrameRingCreate(context *VulkanContext) (*FrameRing, error) {
	driver := context.Driver
	logicalDevice := context.Device.LogicalDevice
	ring := &FrameRing{}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: context.Device.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	pool, res := driver.CreateCommandPool(logicalDevice, &poolCreateInfo)
	if err := checkResult("vkCreateCommandPool", res); err != nil {
		return nil, err
	}
	ring.CommandPool = pool
	ring.resources.Push("command pool", func() { driver.DestroyCommandPool(logicalDevice, pool) })
	core.LogInfo("Graphics command pool created.")

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	for i := range ring.Slots {
		slot := &ring.Slots[i]

		cb, err := NewVulkanCommandBuffer(context, pool, true)
		if err != nil {
			ring.resources.Release()
			return nil, err
		}
		slot.CommandBuffer = cb
		ring.resources.Push("command buffer", func() { cb.Free(context, pool) })

		fence, err := NewFence(context, true)
		if err != nil {
			ring.resources.Release()
			return nil, err
		}
		slot.InFlight = fence
		ring.resources.Push("in-flight fence", func() { fence.Destroy(context) })

		imageAvailable, res := driver.CreateSemaphore(logicalDevice, &semaphoreCreateInfo)
		if err := checkResult("vkCreateSemaphore", res); err != nil {
			ring.resources.Release()
			return nil, err
		}
		slot.ImageAvailable = imageAvailable
		ring.resources.Push("image available semaphore", func() { driver.DestroySemaphore(logicalDevice, imageAvailable) })

		renderComplete, res := driver.CreateSemaphore(logicalDevice, &semaphoreCreateInfo)
		if err := checkResult("vkCreateSemaphore", res); err != nil {
			ring.resources.Release()
			return nil, err
		}
		slot.RenderComplete = renderComplete
		ring.resources.Push("render complete semaphore", func() { driver.DestroySemaphore(logicalDevice, renderComplete) })
	}

	core.LogInfo("Frame ring created with %d slots.", MaxFramesInFlight)
	return ring, nil
}

func (r *FrameRing) Current() *FrameSlot {
	return &r.Slots[r.currentFrame]
}

func (r *FrameRing) CurrentFrame() uint32 {
	return r.currentFrame
}

// Advance moves to the next slot, wrapping after MaxFramesInFlight.
func (r *FrameRing) Advance() {
	r.currentFrame = (r.currentFrame + 1) % MaxFramesInFlight
}

// Destroy releases every slot resource and the pool, newest first. The
// device must be idle.
func (r *FrameRing) Destroy() {
	r.resources.Release()
	r.Slots = [MaxFramesInFlight]FrameSlot{}
	r.CommandPool = nil
	r.currentFrame = 0
}
