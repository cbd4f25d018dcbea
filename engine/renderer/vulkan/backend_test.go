package vulkan_test

import (
	"context"
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan/vktest"
	"github.com/stretchr/testify/require"
)

type harness struct {
	backend *vulkan.VulkanBackend
	driver  *vktest.Driver
	window  *vktest.Window
	scene   *vktest.Scene
}

func newHarness(t *testing.T, configure func(h *harness, config *vulkan.BackendConfig)) *harness {
	t.Helper()
	driver := vktest.New()
	h := &harness{
		driver: driver,
		window: vktest.NewWindow(driver, 1280, 720),
		scene:  &vktest.Scene{},
	}
	config := vulkan.DefaultBackendConfig()
	if configure != nil {
		configure(h, &config)
	}
	h.backend = vulkan.NewVulkanBackend(driver, h.window, h.scene, config)
	return h
}

func (h *harness) draw(t *testing.T) bool {
	t.Helper()
	drawn, err := h.backend.DrawFrame(context.Background())
	require.NoError(t, err)
	return drawn
}

func (h *harness) shutdown(t *testing.T) {
	t.Helper()
	require.NoError(t, h.backend.Shutdown())
	require.Zero(t, h.driver.LiveCount(), "live objects: %v", h.driver.Live())
	require.Empty(t, h.driver.Violations)
}

func indexOf(list []string, kind string) int {
	for i, k := range list {
		if k == kind {
			return i
		}
	}
	return -1
}

func TestBringUpAndTeardown(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())
	require.True(t, h.backend.IsInitialized())
	require.NotEmpty(t, h.backend.SessionID())

	vc := h.backend.Context()
	require.Equal(t, uint32(1), vc.Device.GraphicsQueueIndex)
	require.Equal(t, vk.FormatD32Sfloat, vc.Device.DepthFormat)
	require.Equal(t, []string{"VK_KHR_swapchain"}, h.driver.EnabledDeviceExtensions)
	require.Subset(t, h.driver.EnabledExtensions, []string{"VK_KHR_surface", "VK_KHR_xcb_surface"})
	require.NotContains(t, h.driver.EnabledExtensions, "VK_EXT_debug_report")
	require.Empty(t, h.driver.EnabledLayers)

	require.Equal(t, uint32(3), vc.Swapchain.ImageCount)
	require.Len(t, vc.Swapchain.Views, 3)
	require.Equal(t, vk.FormatR8g8b8a8Unorm, vc.Swapchain.ImageFormat.Format)
	require.Equal(t, vk.Extent2D{Width: 1280, Height: 720}, vc.Swapchain.Extent)
	require.Equal(t, vk.PresentModeFifo, h.driver.SwapchainInfos[0].PresentMode)
	require.Nil(t, h.driver.SwapchainInfos[0].OldSwapchain)

	require.Len(t, vc.Targets.Framebuffers, 3)
	for i, fb := range vc.Targets.Framebuffers {
		require.Equal(t, []vk.ImageView{vc.Swapchain.Views[i], vc.Targets.Depth.View}, fb.Attachments)
		require.Equal(t, uint32(1280), fb.Width)
	}
	require.Equal(t, 1, h.scene.Prepares)

	live := h.driver.Live()
	require.Equal(t, 4, live["semaphore"])
	require.Equal(t, 2, live["fence"])
	require.Equal(t, 2, live["command buffer"])
	require.Equal(t, 1, live["pipeline cache"])

	h.shutdown(t)
	require.False(t, h.backend.IsInitialized())
	require.Nil(t, h.backend.Context())
	require.Equal(t, 1, h.scene.Teardowns)

	destroyed := h.driver.Destroyed
	require.Less(t, indexOf(destroyed, "framebuffer"), indexOf(destroyed, "render pass"))
	require.Less(t, indexOf(destroyed, "swapchain"), indexOf(destroyed, "device"))
	require.Less(t, indexOf(destroyed, "device"), indexOf(destroyed, "surface"))
	require.Equal(t, "instance", destroyed[len(destroyed)-1])
}

func TestFramesAlternateSlots(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())
	vc := h.backend.Context()

	for i := 0; i < 5; i++ {
		require.True(t, h.draw(t))
	}

	require.Len(t, h.driver.Submits, 5)
	require.Len(t, h.driver.Presents, 5)
	require.Equal(t, uint64(5), h.backend.FrameNumber)

	var slots []uint32
	for _, frame := range h.scene.Frames {
		slots = append(slots, frame.FrameIndex)
	}
	require.Equal(t, []uint32{0, 1, 0, 1, 0}, slots)

	for i, submit := range h.driver.Submits {
		slot := vc.Frames.Slots[i%vulkan.MaxFramesInFlight]
		require.Equal(t, slot.InFlight.Handle, submit.Fence)
		require.Equal(t, []vk.Semaphore{slot.ImageAvailable}, submit.Wait)
		require.Equal(t, []vk.Semaphore{slot.RenderComplete}, submit.Signal)
		require.Equal(t, submit.Signal, h.driver.Presents[i].Wait)
		require.Equal(t, []string{"BeginRenderPass", "SetViewport", "SetScissor", "Draw(3)", "EndRenderPass"}, submit.Commands)
	}
	require.NotEqual(t, h.driver.Submits[0].Fence, h.driver.Submits[1].Fence)

	var images []uint32
	for _, present := range h.driver.Presents {
		images = append(images, present.ImageIndex)
	}
	require.Equal(t, []uint32{0, 1, 2, 0, 1}, images)

	require.Equal(t, 5, h.driver.FenceResets)
	require.Equal(t, 5, h.driver.CommandBufferResets)
	require.Equal(t, uint32(1), vc.Frames.CurrentFrame())
	h.shutdown(t)
}

func TestOutOfDateAcquireRecreatesSwapchain(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())
	oldHandle := h.backend.Context().Swapchain.Handle

	h.driver.AcquireResults = []vk.Result{vk.ErrorOutOfDate}
	drawn, err := h.backend.DrawFrame(context.Background())
	require.ErrorIs(t, err, vulkan.ErrStaleSurface)
	require.False(t, vulkan.IsFatal(err))
	require.False(t, drawn)
	require.Empty(t, h.driver.Submits)
	require.True(t, h.backend.Context().SurfaceStale())
	// The skipped frame leaves its fence signalled.
	require.Zero(t, h.driver.FenceResets)
	require.True(t, h.backend.Context().Frames.Current().InFlight.IsSignaled)

	// The next tick only recreates.
	require.False(t, h.draw(t))
	require.Len(t, h.driver.SwapchainInfos, 2)
	require.Equal(t, oldHandle, h.driver.SwapchainInfos[1].OldSwapchain)
	require.Equal(t, 2, h.scene.Prepares)
	require.Equal(t, 1, h.scene.Teardowns)
	require.False(t, h.backend.Context().SurfaceStale())

	require.True(t, h.draw(t))
	require.Len(t, h.driver.Submits, 1)
	h.shutdown(t)
}

func TestSuboptimalAcquireStillRenders(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())

	h.driver.AcquireResults = []vk.Result{vk.Suboptimal}
	require.True(t, h.draw(t))
	require.Len(t, h.driver.Presents, 1)
	require.True(t, h.backend.Context().SurfaceStale())

	require.False(t, h.draw(t))
	require.Len(t, h.driver.SwapchainInfos, 2)
	require.True(t, h.draw(t))
	h.shutdown(t)
}

func TestStalePresentAdvancesAndRecreates(t *testing.T) {
	for _, result := range []vk.Result{vk.ErrorOutOfDate, vk.Suboptimal} {
		h := newHarness(t, nil)
		require.NoError(t, h.backend.Initialize())

		h.driver.PresentResults = []vk.Result{result}
		require.True(t, h.draw(t))
		vc := h.backend.Context()
		require.Equal(t, uint32(1), vc.Frames.CurrentFrame())
		require.True(t, vc.SurfaceStale())

		require.False(t, h.draw(t))
		require.True(t, h.draw(t))
		require.Len(t, h.driver.SwapchainInfos, 2)
		h.shutdown(t)
	}
}

func TestResizeRecreatesWithNewExtent(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())
	require.True(t, h.draw(t))

	h.window.Resize(800, 600)
	h.backend.Resized(800, 600)
	vc := h.backend.Context()
	require.True(t, vc.SurfaceStale())

	require.False(t, h.draw(t))
	require.Equal(t, vk.Extent2D{Width: 800, Height: 600}, vc.Swapchain.Extent)
	require.Equal(t, uint32(800), vc.FramebufferWidth)
	require.Equal(t, vc.FramebufferSizeGeneration, vc.FramebufferSizeLastGeneration)

	require.True(t, h.draw(t))
	require.Equal(t, vk.Extent2D{Width: 800, Height: 600}, h.scene.Frames[len(h.scene.Frames)-1].Extent)
	h.shutdown(t)
}

func TestZeroSizedWindowDefersSwapchain(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *vulkan.BackendConfig) {
		h.window.Resize(0, 0)
	})
	require.NoError(t, h.backend.Initialize())
	require.Nil(t, h.backend.Context().Swapchain)
	require.Zero(t, h.scene.Prepares)

	for i := 0; i < 3; i++ {
		require.False(t, h.draw(t))
	}
	require.Empty(t, h.driver.SwapchainInfos)
	require.Empty(t, h.driver.Submits)

	h.window.Resize(640, 480)
	require.False(t, h.draw(t))
	require.True(t, h.draw(t))
	require.Equal(t, 1, h.scene.Prepares)
	h.shutdown(t)
}

func TestBringUpFailuresReleaseEverything(t *testing.T) {
	tests := []struct {
		name      string
		configure func(h *harness, config *vulkan.BackendConfig)
		want      error
	}{
		{
			name:      "no adapter",
			configure: func(h *harness, _ *vulkan.BackendConfig) { h.driver.AdapterCount = 0 },
			want:      vulkan.ErrNoPhysicalDevice,
		},
		{
			name: "no graphics queue",
			configure: func(h *harness, _ *vulkan.BackendConfig) {
				h.driver.QueueFamilies = []vk.QueueFamilyProperties{{QueueFlags: vk.QueueFlags(vk.QueueComputeBit), QueueCount: 1}}
			},
			want: vulkan.ErrNoGraphicsQueue,
		},
		{
			name:      "no depth format",
			configure: func(h *harness, _ *vulkan.BackendConfig) { h.driver.DepthFormats = nil },
			want:      vulkan.ErrNoDepthFormat,
		},
		{
			name:      "no device local memory",
			configure: func(h *harness, _ *vulkan.BackendConfig) { h.driver.MemoryTypeBits = 0b01 },
			want:      vulkan.ErrNoMemoryType,
		},
		{
			name: "missing validation layer",
			configure: func(h *harness, config *vulkan.BackendConfig) {
				config.Validation = true
				h.driver.AvailableLayers = nil
			},
			want: vulkan.ErrMissingLayer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.configure)
			err := h.backend.Initialize()
			require.ErrorIs(t, err, tt.want)
			require.True(t, vulkan.IsFatal(err))
			require.False(t, h.backend.IsInitialized())
			require.Zero(t, h.driver.LiveCount(), "live objects: %v", h.driver.Live())
			require.Empty(t, h.driver.Violations)
		})
	}
}

func TestSwapchainCreateFailureIsAPIError(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *vulkan.BackendConfig) {
		h.driver.FailOn["vkCreateSwapchainKHR"] = vk.ErrorInitializationFailed
	})
	err := h.backend.Initialize()

	var apiErr *vulkan.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "vkCreateSwapchainKHR", apiErr.Call)
	require.Equal(t, vk.ErrorInitializationFailed, apiErr.Result)
	require.Zero(t, h.driver.LiveCount())
}

func TestDepthFallback(t *testing.T) {
	h := newHarness(t, func(h *harness, config *vulkan.BackendConfig) {
		h.driver.DepthFormats = nil
		config.DepthFallback = vk.FormatD16Unorm
	})
	require.NoError(t, h.backend.Initialize())
	require.Equal(t, vk.FormatD16Unorm, h.backend.Context().Device.DepthFormat)
	require.Equal(t, vk.FormatD16Unorm, h.driver.RenderPassInfos[0].PAttachments[1].Format)
	h.shutdown(t)
}

func TestValidationEnablesLayerAndDebugCallback(t *testing.T) {
	h := newHarness(t, func(_ *harness, config *vulkan.BackendConfig) {
		config.Validation = true
	})
	require.NoError(t, h.backend.Initialize())
	require.Equal(t, []string{"VK_LAYER_KHRONOS_validation"}, h.driver.EnabledLayers)
	require.Contains(t, h.driver.EnabledExtensions, "VK_EXT_debug_report")
	require.Equal(t, 1, h.driver.Live()["debug callback"])
	h.shutdown(t)
}

func TestFenceTimeoutSkipsFrame(t *testing.T) {
	h := newHarness(t, func(_ *harness, config *vulkan.BackendConfig) {
		config.FenceTimeout = 1000
	})
	require.NoError(t, h.backend.Initialize())
	h.driver.HangFences = true

	require.True(t, h.draw(t))
	require.True(t, h.draw(t))

	// Slot 0 is still in flight.
	drawn, err := h.backend.DrawFrame(context.Background())
	require.ErrorIs(t, err, vulkan.ErrFrameTimeout)
	require.False(t, vulkan.IsFatal(err))
	require.False(t, drawn)
	require.Len(t, h.driver.Submits, 2)

	h.driver.HangFences = false
	require.True(t, h.draw(t))
	h.shutdown(t)
}

func TestRecordErrorStillConsumesImage(t *testing.T) {
	boom := errors.New("boom")
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())

	h.scene.RecordErr = boom
	drawn, err := h.backend.DrawFrame(context.Background())
	require.ErrorIs(t, err, boom)
	require.False(t, vulkan.IsFatal(err))
	require.False(t, drawn)
	require.Len(t, h.driver.Submits, 1)
	require.Len(t, h.driver.Presents, 1)

	h.scene.RecordErr = nil
	require.True(t, h.draw(t))
	h.shutdown(t)
}

func TestDrawFrameGuards(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.backend.DrawFrame(context.Background())
	require.ErrorIs(t, err, vulkan.ErrNotInitialized)

	require.NoError(t, h.backend.Initialize())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	drawn, err := h.backend.DrawFrame(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, drawn)
	require.Empty(t, h.driver.Submits)
	h.shutdown(t)

	// Shutting down twice is harmless.
	require.NoError(t, h.backend.Shutdown())
}

func TestReinitializeAfterShutdown(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())
	first := h.backend.SessionID()
	require.True(t, h.draw(t))
	h.shutdown(t)

	require.NoError(t, h.backend.Initialize())
	require.NotEqual(t, first, h.backend.SessionID())
	require.Equal(t, uint64(0), h.backend.FrameNumber)
	require.True(t, h.draw(t))
	h.shutdown(t)
}

func TestShaderStageCodeSizeInBytes(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())
	vc := h.backend.Context()

	code := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	stage, err := vulkan.NewShaderStage(vc, code, vk.ShaderStageVertexBit)
	require.NoError(t, err)
	require.Empty(t, h.driver.Violations)
	require.Equal(t, 1, h.driver.Live()["shader module"])

	stage.Destroy(vc)
	h.shutdown(t)
}

func TestContextReadableWhileCycling(t *testing.T) {
	h := newHarness(t, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = h.backend.Context()
			_ = h.backend.SessionID()
		}
	}()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.backend.Initialize())
		require.NotNil(t, h.backend.Context())
		h.shutdown(t)
		require.Nil(t, h.backend.Context())
	}
	<-done
}

func TestReloadScene(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())
	require.True(t, h.draw(t))

	require.NoError(t, h.backend.ReloadScene())
	require.Equal(t, 2, h.scene.Prepares)
	require.Equal(t, 1, h.scene.Teardowns)
	require.True(t, h.scene.Prepared())
	require.True(t, h.draw(t))
	h.shutdown(t)
}

func TestNilSceneClearsOnly(t *testing.T) {
	driver := vktest.New()
	backend := vulkan.NewVulkanBackend(driver, vktest.NewWindow(driver, 320, 240), nil, vulkan.DefaultBackendConfig())
	require.NoError(t, backend.Initialize())

	drawn, err := backend.DrawFrame(context.Background())
	require.NoError(t, err)
	require.True(t, drawn)
	require.Equal(t, []string{"BeginRenderPass", "SetViewport", "SetScissor", "EndRenderPass"}, driver.Submits[0].Commands)

	require.NoError(t, backend.Shutdown())
	require.Zero(t, driver.LiveCount())
	require.Empty(t, driver.Violations)
}

func TestCommandBufferResetNeedsSignalledFence(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.backend.Initialize())
	require.True(t, h.draw(t))

	vc := h.backend.Context()
	slot := vc.Frames.Slots[0]
	require.False(t, slot.InFlight.IsSignaled)
	require.Error(t, slot.CommandBuffer.Reset(vc, slot.InFlight))

	require.NoError(t, slot.InFlight.Wait(vc, 0))
	require.True(t, slot.InFlight.IsSignaled)
	require.NoError(t, slot.CommandBuffer.Reset(vc, slot.InFlight))
	h.shutdown(t)
}
