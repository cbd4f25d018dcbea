// Package vktest provides an in-memory vulkan.Driver for tests. It hands out
// distinct handles, tracks what is alive, simulates fence and semaphore
// signalling and records every submission and present. Misuse that a real
// driver would turn into undefined behaviour is collected in Violations.
//
// Handles are addresses in an anonymous mapping outside the Go heap, which
// only works where Vulkan handles are pointers, i.e. on 64-bit unix targets.
package vktest

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
)

type Submit struct {
	CommandBuffer vk.CommandBuffer
	Fence         vk.Fence
	Wait          []vk.Semaphore
	Signal        []vk.Semaphore
	// Commands recorded into the buffer, in order.
	Commands []string
}

type Present struct {
	Swapchain  vk.Swapchain
	ImageIndex uint32
	Wait       []vk.Semaphore
}

type fenceState struct {
	signaled bool
	// a submission will signal it
	pending bool
}

type commandBufferState struct {
	recording    bool
	inRenderPass bool
	commands     []string
	// fence of the last submission that used this buffer
	lastFence vk.Fence
}

type swapchainState struct {
	images  []vk.Image
	next    uint32
	retired bool
}

type Driver struct {
	mu sync.Mutex

	// Adapter configuration. New sets up a single discrete GPU with a
	// transfer-only family at index 0 and a graphics family at 1.
	AdapterCount        int
	Adapter             vulkan.AdapterInfo
	QueueFamilies       []vk.QueueFamilyProperties
	MemoryTypeTable     []vk.MemoryType
	MemoryTypeBits      uint32
	DepthFormats        map[vk.Format]bool
	AvailableLayers     []string
	DeviceExtensionList []string

	// Surface configuration.
	Capabilities    vk.SurfaceCapabilities
	Formats         []vk.SurfaceFormat
	PresentModeList []vk.PresentMode

	// Scripted results, consumed one per call. Empty means vk.Success.
	AcquireResults []vk.Result
	PresentResults []vk.Result
	// Create calls to fail, keyed by Vulkan function name, e.g. "vkCreateDevice".
	FailOn map[string]vk.Result
	// When set, pending fences never complete and waits time out.
	HangFences bool

	// Recorded state.
	EnabledExtensions       []string
	EnabledLayers           []string
	EnabledDeviceExtensions []string
	SwapchainInfos          []vk.SwapchainCreateInfo
	RenderPassInfos         []vk.RenderPassCreateInfo
	Submits                 []Submit
	Presents                []Present
	FenceWaits              int
	FenceResets             int
	CommandBufferResets     int
	DeviceIdleWaits         int
	// Kinds of destroyed objects, in destruction order.
	Destroyed  []string
	Violations []string

	live           map[unsafe.Pointer]string
	fences         map[vk.Fence]*fenceState
	semaphores     map[vk.Semaphore]bool
	commandBuffers map[vk.CommandBuffer]*commandBufferState
	swapchains     map[vk.Swapchain]*swapchainState
}

var _ vulkan.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{
		AdapterCount: 1,
		Adapter: vulkan.AdapterInfo{
			Name:          "Fake GPU",
			Type:          vk.PhysicalDeviceTypeDiscreteGpu,
			DriverVersion: uint32(vk.MakeVersion(1, 2, 3)),
			APIVersion:    uint32(vk.MakeVersion(1, 3, 0)),
		},
		QueueFamilies: []vk.QueueFamilyProperties{
			{QueueFlags: vk.QueueFlags(vk.QueueTransferBit), QueueCount: 1},
			{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit), QueueCount: 1},
		},
		MemoryTypeTable: []vk.MemoryType{
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)},
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)},
		},
		MemoryTypeBits: 0b11,
		DepthFormats: map[vk.Format]bool{
			vk.FormatD32Sfloat:      true,
			vk.FormatD24UnormS8Uint: true,
		},
		AvailableLayers:     []string{"VK_LAYER_KHRONOS_validation"},
		DeviceExtensionList: []string{"VK_KHR_swapchain"},
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           3,
			CurrentExtent:           vk.Extent2D{Width: 1280, Height: 720},
			MinImageExtent:          vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          vk.Extent2D{Width: 4096, Height: 4096},
			MaxImageArrayLayers:     1,
			CurrentTransform:        vk.SurfaceTransformIdentityBit,
			SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
		},
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModeList: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		FailOn:          map[string]vk.Result{},

		live:           map[unsafe.Pointer]string{},
		fences:         map[vk.Fence]*fenceState{},
		semaphores:     map[vk.Semaphore]bool{},
		commandBuffers: map[vk.CommandBuffer]*commandBufferState{},
		swapchains:     map[vk.Swapchain]*swapchainState{},
	}
}

// SetExtent changes the size the surface reports.
func (d *Driver) SetExtent(width, height uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Capabilities.CurrentExtent = vk.Extent2D{Width: width, Height: height}
}

// Live counts objects that were created and not yet destroyed, by kind.
func (d *Driver) Live() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	counts := map[string]int{}
	for _, kind := range d.live {
		counts[kind]++
	}
	return counts
}

func (d *Driver) LiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// SubmitCount is safe to call while another goroutine drives frames.
func (d *Driver) SubmitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Submits)
}

func (d *Driver) violation(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Driver) mint(kind string) unsafe.Pointer {
	p := newHandle()
	d.live[p] = kind
	return p
}

func (d *Driver) release(p unsafe.Pointer, kind string) {
	if p == nil {
		return
	}
	got, ok := d.live[p]
	if !ok {
		d.violation("destroy of unknown or already destroyed %s", kind)
		return
	}
	if got != kind {
		d.violation("destroy of %s through the %s entry point", got, kind)
	}
	delete(d.live, p)
	d.Destroyed = append(d.Destroyed, kind)
}

func (d *Driver) failure(call string) (vk.Result, bool) {
	res, ok := d.FailOn[call]
	return res, ok
}

func (d *Driver) CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateInstance"); ok {
		return nil, res
	}
	d.EnabledExtensions = trimAll(info.PpEnabledExtensionNames)
	d.EnabledLayers = trimAll(info.PpEnabledLayerNames)
	return vk.Instance(d.mint("instance")), vk.Success
}

func (d *Driver) DestroyInstance(instance vk.Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(instance), "instance")
}

func (d *Driver) InstanceLayers() ([]string, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.AvailableLayers...), vk.Success
}

func (d *Driver) CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo) (vk.DebugReportCallback, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateDebugReportCallbackEXT"); ok {
		return nil, res
	}
	return vk.DebugReportCallback(d.mint("debug callback")), vk.Success
}

func (d *Driver) DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(callback), "debug callback")
}

// CreateSurface is used by Window; real surfaces come from the platform layer.
func (d *Driver) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateSurfaceKHR"); ok {
		return nil, fmt.Errorf("surface creation failed with %d", res)
	}
	if _, ok := d.live[unsafe.Pointer(instance)]; !ok {
		d.violation("surface created on unknown instance")
	}
	return vk.Surface(d.mint("surface")), nil
}

func (d *Driver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, state := range d.swapchains {
		if !state.retired {
			d.violation("surface destroyed while a swapchain is alive")
			break
		}
	}
	d.release(unsafe.Pointer(surface), "surface")
}

func (d *Driver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	devices := make([]vk.PhysicalDevice, d.AdapterCount)
	for i := range devices {
		// Physical devices are never destroyed, so they are not tracked.
		devices[i] = vk.PhysicalDevice(newHandle())
	}
	return devices, vk.Success
}

func (d *Driver) PhysicalDeviceInfo(physicalDevice vk.PhysicalDevice) vulkan.AdapterInfo {
	return d.Adapter
}

func (d *Driver) QueueFamilyProperties(physicalDevice vk.PhysicalDevice) []vk.QueueFamilyProperties {
	return append([]vk.QueueFamilyProperties(nil), d.QueueFamilies...)
}

func (d *Driver) MemoryTypes(physicalDevice vk.PhysicalDevice) []vk.MemoryType {
	return append([]vk.MemoryType(nil), d.MemoryTypeTable...)
}

func (d *Driver) OptimalTilingFeatures(physicalDevice vk.PhysicalDevice, format vk.Format) vk.FormatFeatureFlags {
	if d.DepthFormats[format] {
		return vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	}
	return 0
}

func (d *Driver) DeviceExtensions(physicalDevice vk.PhysicalDevice) ([]string, vk.Result) {
	return append([]string(nil), d.DeviceExtensionList...), vk.Success
}

func (d *Driver) SurfaceCapabilities(physicalDevice vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Capabilities, vk.Success
}

func (d *Driver) SurfaceFormats(physicalDevice vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	return append([]vk.SurfaceFormat(nil), d.Formats...), vk.Success
}

func (d *Driver) SurfacePresentModes(physicalDevice vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result) {
	return append([]vk.PresentMode(nil), d.PresentModeList...), vk.Success
}

func (d *Driver) CreateDevice(physicalDevice vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateDevice"); ok {
		return nil, res
	}
	d.EnabledDeviceExtensions = trimAll(info.PpEnabledExtensionNames)
	return vk.Device(d.mint("device")), vk.Success
}

func (d *Driver) DestroyDevice(device vk.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, kind := range d.live {
		switch kind {
		case "instance", "surface", "debug callback", "device":
		default:
			d.violation("device destroyed while a %s is alive", kind)
		}
	}
	d.release(unsafe.Pointer(device), "device")
}

func (d *Driver) DeviceQueue(device vk.Device, familyIndex, queueIndex uint32) vk.Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(familyIndex) >= len(d.QueueFamilies) {
		d.violation("queue requested from unknown family %d", familyIndex)
	}
	return vk.Queue(newHandle())
}

func (d *Driver) DeviceWaitIdle(device vk.Device) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DeviceIdleWaits++
	d.completeAll()
	return vk.Success
}

func (d *Driver) completeAll() {
	if d.HangFences {
		return
	}
	for _, fence := range d.fences {
		if fence.pending {
			fence.pending = false
			fence.signaled = true
		}
	}
}

func (d *Driver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateSwapchainKHR"); ok {
		return nil, res
	}
	d.SwapchainInfos = append(d.SwapchainInfos, *info)
	if info.OldSwapchain != nil {
		if old, ok := d.swapchains[info.OldSwapchain]; ok {
			old.retired = true
		} else {
			d.violation("unknown old swapchain")
		}
	}

	handle := vk.Swapchain(d.mint("swapchain"))
	state := &swapchainState{images: make([]vk.Image, info.MinImageCount)}
	for i := range state.images {
		// Owned by the swapchain.
		state.images[i] = vk.Image(newHandle())
	}
	d.swapchains[handle] = state
	return handle, vk.Success
}

func (d *Driver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.swapchains, swapchain)
	d.release(unsafe.Pointer(swapchain), "swapchain")
}

func (d *Driver) SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.swapchains[swapchain]
	if !ok {
		return nil, vk.ErrorInitializationFailed
	}
	return append([]vk.Image(nil), state.images...), vk.Success
}

func (d *Driver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore) (uint32, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.swapchains[swapchain]
	if !ok {
		d.violation("acquire on unknown swapchain")
		return 0, vk.ErrorOutOfDate
	}
	if state.retired {
		d.violation("acquire on retired swapchain")
	}

	result := vk.Success
	if len(d.AcquireResults) > 0 {
		result = d.AcquireResults[0]
		d.AcquireResults = d.AcquireResults[1:]
	}
	if result != vk.Success && result != vk.Suboptimal {
		return 0, result
	}

	if d.semaphores[semaphore] {
		d.violation("acquire signals a semaphore that is already signalled")
	}
	d.semaphores[semaphore] = true

	index := state.next
	state.next = (state.next + 1) % uint32(len(state.images))
	return index, result
}

func (d *Driver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sem := range info.PWaitSemaphores {
		if !d.semaphores[sem] {
			d.violation("present waits on a semaphore nothing signals")
		}
		d.semaphores[sem] = false
	}
	for i, swapchain := range info.PSwapchains {
		d.Presents = append(d.Presents, Present{
			Swapchain:  swapchain,
			ImageIndex: info.PImageIndices[i],
			Wait:       append([]vk.Semaphore(nil), info.PWaitSemaphores...),
		})
	}

	if len(d.PresentResults) > 0 {
		result := d.PresentResults[0]
		d.PresentResults = d.PresentResults[1:]
		return result
	}
	return vk.Success
}

func (d *Driver) CreateImage(device vk.Device, info *vk.ImageCreateInfo) (vk.Image, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateImage"); ok {
		return nil, res
	}
	return vk.Image(d.mint("image")), vk.Success
}

func (d *Driver) DestroyImage(device vk.Device, image vk.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(image), "image")
}

func (d *Driver) ImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements {
	return vk.MemoryRequirements{Size: 1 << 20, Alignment: 256, MemoryTypeBits: d.MemoryTypeBits}
}

func (d *Driver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo) (vk.DeviceMemory, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkAllocateMemory"); ok {
		return nil, res
	}
	if int(info.MemoryTypeIndex) >= len(d.MemoryTypeTable) {
		d.violation("allocation from unknown memory type %d", info.MemoryTypeIndex)
	}
	return vk.DeviceMemory(d.mint("memory")), vk.Success
}

func (d *Driver) FreeMemory(device vk.Device, memory vk.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(memory), "memory")
}

func (d *Driver) BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory) vk.Result {
	return vk.Success
}

func (d *Driver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateImageView"); ok {
		return nil, res
	}
	return vk.ImageView(d.mint("image view")), vk.Success
}

func (d *Driver) DestroyImageView(device vk.Device, view vk.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(view), "image view")
}

func (d *Driver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateRenderPass"); ok {
		return nil, res
	}
	d.RenderPassInfos = append(d.RenderPassInfos, *info)
	return vk.RenderPass(d.mint("render pass")), vk.Success
}

func (d *Driver) DestroyRenderPass(device vk.Device, renderpass vk.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(renderpass), "render pass")
}

func (d *Driver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateFramebuffer"); ok {
		return nil, res
	}
	for _, view := range info.PAttachments {
		if _, ok := d.live[unsafe.Pointer(view)]; !ok {
			d.violation("framebuffer attachment is not a live image view")
		}
	}
	return vk.Framebuffer(d.mint("framebuffer")), vk.Success
}

func (d *Driver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(framebuffer), "framebuffer")
}

func (d *Driver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateCommandPool"); ok {
		return nil, res
	}
	if info.Flags&vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit) == 0 {
		d.violation("command pool does not allow resetting individual buffers")
	}
	return vk.CommandPool(d.mint("command pool")), vk.Success
}

func (d *Driver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(pool), "command pool")
}

func (d *Driver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkAllocateCommandBuffers"); ok {
		return nil, res
	}
	buffers := make([]vk.CommandBuffer, info.CommandBufferCount)
	for i := range buffers {
		buffers[i] = vk.CommandBuffer(d.mint("command buffer"))
		d.commandBuffers[buffers[i]] = &commandBufferState{}
	}
	return buffers, vk.Success
}

func (d *Driver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range buffers {
		delete(d.commandBuffers, cb)
		d.release(unsafe.Pointer(cb), "command buffer")
	}
}

func (d *Driver) ResetCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CommandBufferResets++
	state := d.commandBuffers[commandBuffer]
	if state == nil {
		d.violation("reset of unknown command buffer")
		return vk.Success
	}
	if fence, ok := d.fences[state.lastFence]; ok && !fence.signaled {
		d.violation("command buffer reset while its fence is unsignalled")
	}
	state.recording = false
	state.inRenderPass = false
	state.commands = nil
	return vk.Success
}

func (d *Driver) BeginCommandBuffer(commandBuffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.commandBuffers[commandBuffer]
	if state == nil {
		d.violation("begin of unknown command buffer")
		return vk.Success
	}
	if state.recording {
		d.violation("begin of a command buffer that is already recording")
	}
	state.recording = true
	state.commands = nil
	return vk.Success
}

func (d *Driver) EndCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.commandBuffers[commandBuffer]
	if state == nil || !state.recording {
		d.violation("end of a command buffer that is not recording")
		return vk.Success
	}
	if state.inRenderPass {
		d.violation("end of a command buffer inside a render pass")
	}
	state.recording = false
	return vk.Success
}

func (d *Driver) record(commandBuffer vk.CommandBuffer, command string) *commandBufferState {
	state := d.commandBuffers[commandBuffer]
	if state == nil || !state.recording {
		d.violation("%s recorded outside of recording", command)
		return &commandBufferState{}
	}
	state.commands = append(state.commands, command)
	return state
}

func (d *Driver) CmdBeginRenderPass(commandBuffer vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.record(commandBuffer, "BeginRenderPass")
	if state.inRenderPass {
		d.violation("nested render pass")
	}
	state.inRenderPass = true
}

func (d *Driver) CmdEndRenderPass(commandBuffer vk.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.record(commandBuffer, "EndRenderPass")
	if !state.inRenderPass {
		d.violation("end of a render pass that was not begun")
	}
	state.inRenderPass = false
}

func (d *Driver) CmdSetViewport(commandBuffer vk.CommandBuffer, viewports []vk.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(commandBuffer, "SetViewport")
}

func (d *Driver) CmdSetScissor(commandBuffer vk.CommandBuffer, scissors []vk.Rect2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(commandBuffer, "SetScissor")
}

func (d *Driver) CmdBindPipeline(commandBuffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.live[unsafe.Pointer(pipeline)]; !ok {
		d.violation("bind of a pipeline that is not alive")
	}
	d.record(commandBuffer, "BindPipeline")
}

func (d *Driver) CmdDraw(commandBuffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(commandBuffer, fmt.Sprintf("Draw(%d)", vertexCount))
}

func (d *Driver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkQueueSubmit"); ok {
		return res
	}

	if fence != nil {
		state, ok := d.fences[fence]
		switch {
		case !ok:
			d.violation("submit with unknown fence")
		case state.signaled || state.pending:
			d.violation("submit with a fence that was not reset")
		default:
			state.pending = true
		}
	}

	for _, submit := range submits {
		for _, sem := range submit.PWaitSemaphores {
			if !d.semaphores[sem] {
				d.violation("submit waits on a semaphore nothing signals")
			}
			d.semaphores[sem] = false
		}
		for _, cb := range submit.PCommandBuffers {
			state := d.commandBuffers[cb]
			var commands []string
			if state == nil {
				d.violation("submit of unknown command buffer")
			} else {
				if state.recording {
					d.violation("submit of a command buffer that is still recording")
				}
				state.lastFence = fence
				commands = append(commands, state.commands...)
			}
			d.Submits = append(d.Submits, Submit{
				CommandBuffer: cb,
				Fence:         fence,
				Wait:          append([]vk.Semaphore(nil), submit.PWaitSemaphores...),
				Signal:        append([]vk.Semaphore(nil), submit.PSignalSemaphores...),
				Commands:      commands,
			})
		}
		for _, sem := range submit.PSignalSemaphores {
			d.semaphores[sem] = true
		}
	}
	return vk.Success
}

func (d *Driver) CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateFence"); ok {
		return nil, res
	}
	fence := vk.Fence(d.mint("fence"))
	d.fences[fence] = &fenceState{
		signaled: info.Flags&vk.FenceCreateFlags(vk.FenceCreateSignaledBit) != 0,
	}
	return fence, vk.Success
}

func (d *Driver) DestroyFence(device vk.Device, fence vk.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state, ok := d.fences[fence]; ok && state.pending {
		d.violation("fence destroyed while in flight")
	}
	delete(d.fences, fence)
	d.release(unsafe.Pointer(fence), "fence")
}

// WaitForFences completes any pending submission on the fences, as if the
// GPU caught up.
func (d *Driver) WaitForFences(device vk.Device, fences []vk.Fence, timeout uint64) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FenceWaits++
	for _, fence := range fences {
		state, ok := d.fences[fence]
		if !ok {
			d.violation("wait on unknown fence")
			return vk.ErrorDeviceLost
		}
		if state.signaled {
			continue
		}
		if !state.pending {
			d.violation("wait on an unsignalled fence with no pending submission")
			return vk.Timeout
		}
		if d.HangFences {
			return vk.Timeout
		}
		state.pending = false
		state.signaled = true
	}
	return vk.Success
}

func (d *Driver) ResetFences(device vk.Device, fences []vk.Fence) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FenceResets++
	for _, fence := range fences {
		state, ok := d.fences[fence]
		if !ok {
			d.violation("reset of unknown fence")
			continue
		}
		if state.pending {
			d.violation("reset of a fence that is in flight")
		}
		state.signaled = false
	}
	return vk.Success
}

func (d *Driver) CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo) (vk.Semaphore, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateSemaphore"); ok {
		return nil, res
	}
	sem := vk.Semaphore(d.mint("semaphore"))
	d.semaphores[sem] = false
	return sem, vk.Success
}

func (d *Driver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, semaphore)
	d.release(unsafe.Pointer(semaphore), "semaphore")
}

func (d *Driver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateShaderModule"); ok {
		return nil, res
	}
	if info.CodeSize != uint64(len(info.PCode)*4) {
		d.violation("shader code size %d does not match %d words", info.CodeSize, len(info.PCode))
	}
	return vk.ShaderModule(d.mint("shader module")), vk.Success
}

func (d *Driver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(module), "shader module")
}

func (d *Driver) CreatePipelineCache(device vk.Device, info *vk.PipelineCacheCreateInfo) (vk.PipelineCache, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreatePipelineCache"); ok {
		return nil, res
	}
	return vk.PipelineCache(d.mint("pipeline cache")), vk.Success
}

func (d *Driver) DestroyPipelineCache(device vk.Device, cache vk.PipelineCache) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(cache), "pipeline cache")
}

func (d *Driver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreatePipelineLayout"); ok {
		return nil, res
	}
	return vk.PipelineLayout(d.mint("pipeline layout")), vk.Success
}

func (d *Driver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(layout), "pipeline layout")
}

func (d *Driver) CreateGraphicsPipeline(device vk.Device, cache vk.PipelineCache, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if res, ok := d.failure("vkCreateGraphicsPipelines"); ok {
		return nil, res
	}
	if _, ok := d.live[unsafe.Pointer(info.RenderPass)]; !ok {
		d.violation("pipeline created for a render pass that is not alive")
	}
	return vk.Pipeline(d.mint("pipeline")), vk.Success
}

func (d *Driver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(unsafe.Pointer(pipeline), "pipeline")
}

func trimAll(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		for len(s) > 0 && s[len(s)-1] == 0 {
			s = s[:len(s)-1]
		}
		out[i] = s
	}
	return out
}
