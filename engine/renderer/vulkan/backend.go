package vulkan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/vkbase/engine/core"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

type BackendConfig struct {
	ApplicationName string
	// Enables the Khronos validation layer and the debug report callback.
	Validation bool
	ClearColor [4]float32
	// Nanoseconds to wait for a frame slot's fence. math.MaxUint64 waits forever.
	FenceTimeout uint64
	// Nanoseconds to wait for a swapchain image. math.MaxUint64 waits forever.
	AcquireTimeout uint64
	// Used when the device supports none of DepthFormatCandidates.
	DepthFallback vk.Format
}

func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		ApplicationName: "Vulkan Example",
		ClearColor:      [4]float32{0.025, 0.025, 0.025, 1.0},
		FenceTimeout:    math.MaxUint64,
		AcquireTimeout:  math.MaxUint64,
		DepthFallback:   vk.FormatUndefined,
	}
}

// FrameInfo describes the frame a Renderer is recording.
type FrameInfo struct {
	CommandBuffer *VulkanCommandBuffer
	// Slot in the frame ring, in [0, MaxFramesInFlight).
	FrameIndex uint32
	// Swapchain image being rendered to.
	ImageIndex  uint32
	Extent      vk.Extent2D
	FrameNumber uint64
}

// Renderer records the scene into the backend's render pass.
type Renderer interface {
	// OnPrepare is called whenever a new swapchain and render targets exist.
	OnPrepare(context *VulkanContext) error
	// RecordFrame runs inside the render pass with viewport and scissor set.
	RecordFrame(commandBuffer *VulkanCommandBuffer, info FrameInfo) error
	// OnTeardown is called, with the device idle, before the render targets go away.
	OnTeardown(context *VulkanContext)
}

// VulkanBackend drives one bring-up of the renderer and its frame loop.
type VulkanBackend struct {
	FrameNumber uint64

	driver        Driver
	surfaceSource SurfaceSource
	scene         Renderer
	config        BackendConfig
	locks         *VulkanLockPool

	context *VulkanContext
	stack   ResourceStack

	sessionID uuid.UUID
	log       *log.Logger

	initialized   bool
	scenePrepared bool
}

func NewVulkanBackend(driver Driver, surfaceSource SurfaceSource, scene Renderer, config BackendConfig) *VulkanBackend {
	return &VulkanBackend{
		driver:        driver,
		surfaceSource: surfaceSource,
		scene:         scene,
		config:        config,
		locks:         NewVulkanLockPool(),
		log:           core.LogWith("session", "none"),
	}
}

// Initialize brings up the instance, surface, device, frame ring, pipeline
// cache and, if the surface has an area, the swapchain and render targets.
// On failure everything created so far is released.
func (b *VulkanBackend) Initialize() error {
	return b.locks.SafeCall(FrameManagement, func() error {
		if b.initialized {
			return nil
		}

		b.sessionID = uuid.New()
		b.log = core.LogWith("session", b.sessionID.String())
		b.FrameNumber = 0

		width, height := b.surfaceSource.FramebufferSize()
		b.context = &VulkanContext{
			Driver:            b.driver,
			Config:            b.config,
			Locks:             b.locks,
			FramebufferWidth:  width,
			FramebufferHeight: height,
		}

		if err := b.bringUp(width, height); err != nil {
			b.log.Error("Vulkan bring-up failed, releasing partial state", "err", err)
			b.stack.Release()
			b.context = nil
			b.scenePrepared = false
			return err
		}

		b.initialized = true
		b.log.Info("Vulkan renderer initialized successfully.", "frames_in_flight", MaxFramesInFlight)
		return nil
	})
}

func (b *VulkanBackend) bringUp(width, height uint32) error {
	vc := b.context
	driver := b.driver

	if err := b.createInstance(); err != nil {
		return err
	}
	instance := vc.Instance
	b.stack.Push("instance", func() { driver.DestroyInstance(instance) })

	if b.config.Validation {
		if err := b.createDebugCallback(); err != nil {
			return err
		}
		callback := vc.debugCallback
		b.stack.Push("debug callback", func() { driver.DestroyDebugReportCallback(instance, callback) })
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := b.surfaceSource.CreateSurface(instance)
	if err != nil {
		core.LogError("Failed to create platform surface!")
		return fmt.Errorf("create surface: %w", err)
	}
	vc.Surface = surface
	b.stack.Push("surface", func() { driver.DestroySurface(instance, surface) })
	core.LogDebug("Vulkan surface created.")

	device, err := DeviceCreate(vc)
	if err != nil {
		return err
	}
	vc.Device = device
	b.stack.Push("device", func() { device.Destroy(vc) })

	frames, err := FrameRingCreate(vc)
	if err != nil {
		return err
	}
	vc.Frames = frames
	b.stack.Push("frame ring", frames.Destroy)

	cache, err := PipelineCacheCreate(vc)
	if err != nil {
		return err
	}
	vc.PipelineCache = cache
	b.stack.Push("pipeline cache", func() { driver.DestroyPipelineCache(device.LogicalDevice, cache) })

	b.stack.Push("swapchain", func() {
		if old := b.releaseSwapchain(); old != nil {
			old.Destroy(vc)
		}
	})

	if width == 0 || height == 0 {
		// Created by the first frame once the window has an area.
		b.log.Warn("Surface has no area, deferring swapchain creation.", "width", width, "height", height)
		return nil
	}
	return b.buildSwapchain(width, height, nil)
}

func (b *VulkanBackend) createInstance() error {
	vc := b.context

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(b.config.ApplicationName),
		PEngineName:        VulkanSafeString("vkbase"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := append([]string{}, b.surfaceSource.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var requiredLayers []string
	if b.config.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)

		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredLayers = []string{validationLayerName}
		available, res := b.driver.InstanceLayers()
		if err := checkResult("vkEnumerateInstanceLayerProperties", res); err != nil {
			return err
		}
		for _, required := range requiredLayers {
			found := false
			for _, layer := range available {
				if trimNull(layer) == required {
					found = true
					break
				}
			}
			core.LogInfo("Searching for layer: %s... %s", required, ConditionalOperator(found, "found", "missing"))
			if !found {
				core.LogError("Required validation layer is missing: %s", required)
				return ErrMissingLayer
			}
		}
		core.LogInfo("All required validation layers are present.")
	}

	core.LogInfo("Required extensions:")
	for _, ext := range requiredExtensions {
		core.LogInfo(ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	instance, res := b.driver.CreateInstance(&createInfo)
	if err := checkResult("vkCreateInstance", res); err != nil {
		return err
	}
	vc.Instance = instance
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func (b *VulkanBackend) createDebugCallback() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}
	callback, res := b.driver.CreateDebugReportCallback(b.context.Instance, &debugCreateInfo)
	if err := checkResult("vkCreateDebugReportCallbackEXT", res); err != nil {
		return err
	}
	b.context.debugCallback = callback
	core.LogDebug("Vulkan debugger created.")
	return nil
}

// buildSwapchain creates the swapchain and its render targets and prepares
// the scene for them. old, if any, is destroyed once the new chain exists.
func (b *VulkanBackend) buildSwapchain(width, height uint32, old *VulkanSwapchain) error {
	vc := b.context

	swapchain, err := SwapchainCreate(vc, width, height, old)
	// The old chain is retired by the create call whether or not it succeeded.
	if old != nil {
		old.Destroy(vc)
	}
	if err != nil {
		return err
	}
	vc.Swapchain = swapchain

	targets, err := RenderTargetsCreate(vc, swapchain)
	if err != nil {
		swapchain.Destroy(vc)
		vc.Swapchain = nil
		return err
	}
	vc.Targets = targets

	vc.FramebufferWidth = swapchain.Extent.Width
	vc.FramebufferHeight = swapchain.Extent.Height
	vc.FramebufferSizeLastGeneration = vc.FramebufferSizeGeneration
	vc.staleSurface = false

	if b.scene != nil {
		if err := b.scene.OnPrepare(vc); err != nil {
			return fmt.Errorf("prepare scene: %w", err)
		}
		b.scenePrepared = true
	}
	return nil
}

// releaseSwapchain tears down the scene and the render targets and detaches
// the swapchain from the context, returning it so it can be passed as the
// old chain to the next create.
func (b *VulkanBackend) releaseSwapchain() *VulkanSwapchain {
	vc := b.context
	if b.scenePrepared {
		b.scene.OnTeardown(vc)
		b.scenePrepared = false
	}
	if vc.Targets != nil {
		vc.Targets.Destroy()
		vc.Targets = nil
	}
	old := vc.Swapchain
	vc.Swapchain = nil
	return old
}

func (b *VulkanBackend) recreateSwapchain() error {
	vc := b.context
	return b.locks.SafeCall(SwapchainManagement, func() error {
		// If already being recreated, do not try again.
		if vc.RecreatingSwapchain {
			core.LogDebug("recreateSwapchain called when already recreating. Booting.")
			return nil
		}

		// Stay stale until the window can be drawn to.
		width, height := b.surfaceSource.FramebufferSize()
		if width == 0 || height == 0 {
			core.LogDebug("recreateSwapchain called when window is < 1 in a dimension. Booting.")
			return nil
		}

		vc.RecreatingSwapchain = true
		defer func() { vc.RecreatingSwapchain = false }()

		if err := vc.Device.WaitIdle(vc); err != nil {
			return err
		}

		old := b.releaseSwapchain()
		if err := b.buildSwapchain(width, height, old); err != nil {
			return err
		}
		b.log.Info("Swapchain recreated.", "width", vc.FramebufferWidth, "height", vc.FramebufferHeight)
		return nil
	})
}

// BeginFrame waits for the current slot, acquires a swapchain image and
// opens the render pass. It returns false when there is nothing to record
// this tick: the swapchain was just recreated, the window has no area or the
// image could not be acquired.
func (b *VulkanBackend) BeginFrame(ctx context.Context) (bool, error) {
	if !b.initialized {
		return false, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	vc := b.context
	if vc.SurfaceStale() {
		if err := b.recreateSwapchain(); err != nil {
			return false, err
		}
		core.LogDebug("Swapchain stale, booting.")
		return false, nil
	}

	slot := vc.Frames.Current()

	// Wait for the slot's previous submission. The fence stays signalled
	// until just before the next submit, so a skipped frame cannot leave it
	// unsignalled.
	if err := slot.InFlight.Wait(vc, b.config.FenceTimeout); err != nil {
		return false, err
	}

	imageIndex, suboptimal, err := vc.Swapchain.AcquireNextImageIndex(vc, b.config.AcquireTimeout, slot.ImageAvailable)
	if errors.Is(err, ErrStaleSurface) {
		vc.markStale()
		return false, err
	}
	if err != nil {
		return false, err
	}
	if suboptimal {
		// Still presentable; recreate after this frame.
		vc.markStale()
	}
	vc.ImageIndex = imageIndex

	commandBuffer := slot.CommandBuffer
	if err := commandBuffer.Reset(vc, slot.InFlight); err != nil {
		return false, err
	}
	if err := commandBuffer.Begin(vc, false, false, false); err != nil {
		return false, err
	}

	extent := vc.Swapchain.Extent
	vc.Targets.Renderpass.Begin(vc, commandBuffer, vc.Targets.Framebuffers[imageIndex].Handle, extent)

	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	vc.Driver.CmdSetViewport(commandBuffer.Handle, []vk.Viewport{viewport})
	vc.Driver.CmdSetScissor(commandBuffer.Handle, []vk.Rect2D{scissor})

	return true, nil
}

// EndFrame closes the render pass, submits the slot's command buffer and
// presents the image. The ring advances whatever the present reports.
func (b *VulkanBackend) EndFrame() error {
	vc := b.context
	slot := vc.Frames.Current()
	commandBuffer := slot.CommandBuffer

	vc.Targets.Renderpass.End(vc, commandBuffer)
	if err := commandBuffer.End(vc); err != nil {
		return err
	}

	// Reset the fence for use on this frame's submission.
	if err := slot.InFlight.Reset(vc); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{slot.ImageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.RenderComplete},
	}

	if err := vc.Locks.SafeQueueCall(vc.Device.GraphicsQueueIndex, func() error {
		return checkResult("vkQueueSubmit", vc.Driver.QueueSubmit(vc.Device.GraphicsQueue, []vk.SubmitInfo{submitInfo}, slot.InFlight.Handle))
	}); err != nil {
		return err
	}
	slot.InFlight.MarkSubmitted()
	commandBuffer.UpdateSubmitted()

	// Give the image back to the swapchain.
	stale, err := vc.Swapchain.Present(vc, vc.Device.GraphicsQueue, slot.RenderComplete, vc.ImageIndex)
	if stale {
		core.LogDebug("Swapchain out of date after present.")
		vc.markStale()
	}

	vc.Frames.Advance()
	b.FrameNumber++
	return err
}

// DrawFrame runs one full frame. It reports whether an image was presented.
func (b *VulkanBackend) DrawFrame(ctx context.Context) (bool, error) {
	drawn := false
	err := b.locks.SafeCall(FrameManagement, func() error {
		ok, err := b.BeginFrame(ctx)
		if err != nil || !ok {
			return err
		}

		vc := b.context
		slot := vc.Frames.Current()
		var recordErr error
		if b.scene != nil {
			recordErr = b.scene.RecordFrame(slot.CommandBuffer, FrameInfo{
				CommandBuffer: slot.CommandBuffer,
				FrameIndex:    vc.Frames.CurrentFrame(),
				ImageIndex:    vc.ImageIndex,
				Extent:        vc.Swapchain.Extent,
				FrameNumber:   b.FrameNumber,
			})
		}

		// Submit even when recording failed so the acquired image and its
		// semaphore are consumed.
		frameNumber := b.FrameNumber
		if err := b.EndFrame(); err != nil {
			return err
		}
		if recordErr != nil {
			return fmt.Errorf("record frame %d: %w", frameNumber, recordErr)
		}
		drawn = true
		return nil
	})
	return drawn, err
}

// Resized records that the window's framebuffer changed size. The swapchain
// is recreated at the start of the next frame.
func (b *VulkanBackend) Resized(width, height uint32) {
	_ = b.locks.SafeCall(FrameManagement, func() error {
		if !b.initialized {
			return nil
		}
		b.context.FramebufferSizeGeneration++
		core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, b.context.FramebufferSizeGeneration)
		return nil
	})
}

// ReloadScene tears the scene down and prepares it again, e.g. after its
// shaders changed on disk.
func (b *VulkanBackend) ReloadScene() error {
	return b.locks.SafeCall(FrameManagement, func() error {
		if !b.initialized || b.scene == nil {
			return nil
		}
		vc := b.context
		if err := vc.Device.WaitIdle(vc); err != nil {
			return err
		}
		if b.scenePrepared {
			b.scene.OnTeardown(vc)
			b.scenePrepared = false
		}
		if vc.Targets == nil {
			// Prepared with the next swapchain.
			return nil
		}
		if err := b.scene.OnPrepare(vc); err != nil {
			return fmt.Errorf("reload scene: %w", err)
		}
		b.scenePrepared = true
		b.log.Info("Scene reloaded.")
		return nil
	})
}

func (b *VulkanBackend) WaitIdle() error {
	return b.locks.SafeCall(FrameManagement, func() error {
		if !b.initialized {
			return nil
		}
		return b.context.Device.WaitIdle(b.context)
	})
}

// Shutdown waits for the device to go idle and releases everything in the
// reverse order of creation.
func (b *VulkanBackend) Shutdown() error {
	return b.locks.SafeCall(FrameManagement, func() error {
		if !b.initialized {
			return nil
		}
		err := b.context.Device.WaitIdle(b.context)
		if err != nil {
			b.log.Error("Device idle wait failed, tearing down anyway", "err", err)
		}
		b.stack.Release()
		b.initialized = false
		b.context = nil
		b.log.Info("Vulkan renderer shut down.")
		return err
	})
}

func (b *VulkanBackend) IsInitialized() bool {
	initialized := false
	_ = b.locks.SafeCall(FrameManagement, func() error {
		initialized = b.initialized
		return nil
	})
	return initialized
}

// Context is the live context, or nil when the backend is not initialized.
// The handles it holds may only be used from the render goroutine.
func (b *VulkanBackend) Context() *VulkanContext {
	var vc *VulkanContext
	_ = b.locks.SafeCall(FrameManagement, func() error {
		vc = b.context
		return nil
	})
	return vc
}

func (b *VulkanBackend) SessionID() string {
	var id uuid.UUID
	_ = b.locks.SafeCall(FrameManagement, func() error {
		id = b.sessionID
		return nil
	})
	return id.String()
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
