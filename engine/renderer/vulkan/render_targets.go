package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
)

// DepthFormatCandidates lists depth formats from most to least preferred.
var DepthFormatCandidates = []vk.Format{
	vk.FormatD32SfloatS8Uint,
	vk.FormatD32Sfloat,
	vk.FormatD24UnormS8Uint,
	vk.FormatD16UnormS8Uint,
	vk.FormatD16Unorm,
}

// DepthFormatByName maps the names accepted in configuration to formats.
var DepthFormatByName = map[string]vk.Format{
	"undefined": vk.FormatUndefined,
	"d32s8":     vk.FormatD32SfloatS8Uint,
	"d32":       vk.FormatD32Sfloat,
	"d24s8":     vk.FormatD24UnormS8Uint,
	"d16s8":     vk.FormatD16UnormS8Uint,
	"d16":       vk.FormatD16Unorm,
}

// ParseDepthFormat looks up a depth format by its configuration name.
func ParseDepthFormat(name string) (vk.Format, error) {
	format, ok := DepthFormatByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return vk.FormatUndefined, fmt.Errorf("unknown depth format %q", name)
	}
	return format, nil
}

// FormatName is the configuration name of a depth format, or its number.
func FormatName(format vk.Format) string {
	for name, f := range DepthFormatByName {
		if f == format {
			return name
		}
	}
	return fmt.Sprintf("format(%d)", format)
}

// SelectDepthFormat returns the first candidate the device supports, or
// fallback when none is.
func SelectDepthFormat(candidates []vk.Format, supported func(vk.Format) bool, fallback vk.Format) vk.Format {
	for _, format := range candidates {
		if supported(format) {
			return format
		}
	}
	return fallback
}

// DepthAspectMask is the view aspect of a depth format: depth, plus stencil
// for the formats that carry one.
func DepthAspectMask(format vk.Format) vk.ImageAspectFlags {
	mask := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if format >= vk.FormatD16UnormS8Uint {
		mask |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return mask
}

// RenderTargets is everything a frame draws into besides the swapchain
// image itself. It lives exactly as long as one swapchain.
type RenderTargets struct {
	Depth        *VulkanImage
	Renderpass   *VulkanRenderpass
	Framebuffers []*VulkanFramebuffer

	resources ResourceStack
}

func RenderTargetsCreate(context *VulkanContext, swapchain *VulkanSwapchain) (*RenderTargets, error) {
	targets := &RenderTargets{}
	extent := swapchain.Extent
	depthFormat := context.Device.DepthFormat

	depth, err := ImageCreate(
		context,
		vk.ImageType2d,
		extent.Width,
		extent.Height,
		depthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		DepthAspectMask(depthFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("depth attachment: %w", err)
	}
	targets.Depth = depth
	targets.resources.Push("depth attachment", func() { depth.Destroy(context) })

	renderpass, err := RenderpassCreate(context, swapchain.ImageFormat.Format, depthFormat, context.Config.ClearColor)
	if err != nil {
		targets.resources.Release()
		return nil, err
	}
	targets.Renderpass = renderpass
	targets.resources.Push("renderpass", func() { renderpass.Destroy(context) })

	targets.Framebuffers = make([]*VulkanFramebuffer, 0, len(swapchain.Views))
	for _, view := range swapchain.Views {
		framebuffer, err := FramebufferCreate(context, renderpass, extent.Width, extent.Height, []vk.ImageView{view, depth.View})
		if err != nil {
			targets.resources.Release()
			return nil, err
		}
		targets.Framebuffers = append(targets.Framebuffers, framebuffer)
		targets.resources.Push("framebuffer", func() { framebuffer.Destroy(context) })
	}

	core.LogDebug("Render targets created for %d swapchain images.", len(targets.Framebuffers))
	return targets, nil
}

// Destroy releases framebuffers, render pass and depth image in that order.
func (rt *RenderTargets) Destroy() {
	rt.resources.Release()
	rt.Framebuffers = nil
	rt.Renderpass = nil
	rt.Depth = nil
}
