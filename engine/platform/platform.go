package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the GLFW window. Window system callbacks are turned into
// events on the engine's queue; nothing else happens inside them.
type Platform struct {
	Window *glfw.Window

	events    *core.EventSystem
	startTime float64
}

func New(events *core.EventSystem) *Platform {
	return &Platform{
		Window: nil,
		events: events,
	}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetFocusCallback(p.focusCallback)
	p.Window.SetIconifyCallback(p.iconifyCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.startTime = glfw.GetTime()
	p.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages polls the window system. It returns false once the window
// has been asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return p.Window != nil && !p.Window.ShouldClose()
}

// GetVulkanGetInstanceProcAddress is the loader entry point GLFW found.
func GetVulkanGetInstanceProcAddress() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return nil, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

// FramebufferSize is the drawable size in pixels, zero while minimized.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	width, height := p.Window.GetFramebufferSize()
	return uint32(width), uint32(height)
}

// GetAbsoluteTime is the time in seconds since Startup.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

func (p *Platform) fire(code core.SystemEventCode, data interface{}) {
	p.events.Fire(core.EventContext{Type: code, Data: data})
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.fire(core.EVENT_CODE_RESIZED, &core.SystemEvent{
		WindowWidth:  uint32(width),
		WindowHeight: uint32(height),
	})
}

func (p *Platform) focusCallback(w *glfw.Window, focused bool) {
	if focused {
		p.fire(core.EVENT_CODE_FOCUS_GAINED, nil)
	} else {
		p.fire(core.EVENT_CODE_FOCUS_LOST, nil)
	}
}

// A minimized window has no drawable area, so it is treated as unfocused.
func (p *Platform) iconifyCallback(w *glfw.Window, iconified bool) {
	if iconified {
		p.fire(core.EVENT_CODE_FOCUS_LOST, nil)
	} else {
		p.fire(core.EVENT_CODE_FOCUS_GAINED, nil)
	}
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.fire(core.EVENT_CODE_WINDOW_DESTROYED, nil)
}
