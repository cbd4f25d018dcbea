package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	handle, res := context.Driver.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo)
	if err := checkResult("vkCreateFence", res); err != nil {
		return nil, err
	}
	fence.Handle = handle
	return fence, nil
}

func (vf *VulkanFence) Destroy(context *VulkanContext) {
	if vf.Handle != nil {
		context.Driver.DestroyFence(context.Device.LogicalDevice, vf.Handle)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence is signalled or timeoutNs expires. A fence
// already known to be signalled returns at once.
func (vf *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}

	result := context.Driver.WaitForFences(context.Device.LogicalDevice, []vk.Fence{vf.Handle}, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return ErrFrameTimeout
	default:
		return checkResult("vkWaitForFences", result)
	}
}

// Reset returns a signalled fence to the unsignalled state. It is a no-op
// on a fence that is already unsignalled.
func (vf *VulkanFence) Reset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if err := checkResult("vkResetFences", context.Driver.ResetFences(context.Device.LogicalDevice, []vk.Fence{vf.Handle})); err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}

// MarkSubmitted records that the fence was handed to a queue submission and
// will be signalled by the GPU.
func (vf *VulkanFence) MarkSubmitted() {
	vf.IsSignaled = false
}
