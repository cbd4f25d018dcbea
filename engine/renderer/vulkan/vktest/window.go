package vktest

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
)

// Window is a vulkan.SurfaceSource backed by a Driver.
type Window struct {
	Driver        *Driver
	Width, Height uint32
	Extensions    []string
}

var _ vulkan.SurfaceSource = (*Window)(nil)

func NewWindow(driver *Driver, width, height uint32) *Window {
	return &Window{
		Driver:     driver,
		Width:      width,
		Height:     height,
		Extensions: []string{"VK_KHR_surface", "VK_KHR_xcb_surface"},
	}
}

func (w *Window) RequiredInstanceExtensions() []string {
	return append([]string(nil), w.Extensions...)
}

func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	return w.Driver.CreateSurface(instance)
}

func (w *Window) FramebufferSize() (uint32, uint32) {
	return w.Width, w.Height
}

// Resize changes both the window size and the extent the surface reports.
func (w *Window) Resize(width, height uint32) {
	w.Width, w.Height = width, height
	w.Driver.SetExtent(width, height)
}
