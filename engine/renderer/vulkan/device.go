package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	GraphicsQueueIndex uint32
	GraphicsQueue      vk.Queue

	Properties AdapterInfo
	Extensions []string

	// Queried once in DeviceCreate and never written again.
	memoryTypes []vk.MemoryType

	DepthFormat vk.Format
}

// DeviceCreate picks the first physical device and its first graphics queue
// family, then creates a logical device with a single queue on that family.
func DeviceCreate(context *VulkanContext) (*VulkanDevice, error) {
	driver := context.Driver

	physicalDevices, res := driver.EnumeratePhysicalDevices(context.Instance)
	if err := checkResult("vkEnumeratePhysicalDevices", res); err != nil {
		return nil, err
	}
	if len(physicalDevices) == 0 {
		core.LogError("No devices which support Vulkan were found.")
		return nil, ErrNoPhysicalDevice
	}

	device := &VulkanDevice{
		PhysicalDevice: physicalDevices[0],
	}
	device.Properties = driver.PhysicalDeviceInfo(device.PhysicalDevice)
	logAdapter(device.Properties)

	familyIndex, ok := selectGraphicsQueueFamily(driver.QueueFamilyProperties(device.PhysicalDevice))
	if !ok {
		core.LogError("Device '%s' has no graphics queue family.", device.Properties.Name)
		return nil, ErrNoGraphicsQueue
	}
	device.GraphicsQueueIndex = familyIndex
	core.LogDebug("Graphics Family Index: %d", familyIndex)

	available, res := driver.DeviceExtensions(device.PhysicalDevice)
	if err := checkResult("vkEnumerateDeviceExtensionProperties", res); err != nil {
		return nil, err
	}
	device.Extensions = []string{vk.KhrSwapchainExtensionName}
	for _, name := range available {
		if trimNull(name) == portabilitySubsetExtension {
			core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
			device.Extensions = append(device.Extensions, portabilitySubsetExtension)
			break
		}
	}

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: familyIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(device.Extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(device.Extensions),
	}

	core.LogInfo("Creating logical device...")
	logicalDevice, res := driver.CreateDevice(device.PhysicalDevice, &deviceCreateInfo)
	if err := checkResult("vkCreateDevice", res); err != nil {
		return nil, err
	}
	device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	device.GraphicsQueue = driver.DeviceQueue(device.LogicalDevice, familyIndex, 0)
	context.Locks.SetQueueFamily(familyIndex)
	core.LogInfo("Queues obtained.")

	device.memoryTypes = driver.MemoryTypes(device.PhysicalDevice)

	if err := DeviceDetectDepthFormat(context, device); err != nil {
		driver.DestroyDevice(device.LogicalDevice)
		return nil, err
	}
	return device, nil
}

// DeviceDetectDepthFormat probes DepthFormatCandidates against the adapter's
// optimal tiling features and stores the result on the device.
func DeviceDetectDepthFormat(context *VulkanContext, device *VulkanDevice) error {
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	supported := func(format vk.Format) bool {
		return context.Driver.OptimalTilingFeatures(device.PhysicalDevice, format)&flags == flags
	}

	device.DepthFormat = SelectDepthFormat(DepthFormatCandidates, supported, context.Config.DepthFallback)
	if device.DepthFormat == vk.FormatUndefined {
		core.LogError("Failed to find a supported depth format!")
		return ErrNoDepthFormat
	}
	core.LogDebug("Depth format: %s", FormatName(device.DepthFormat))
	return nil
}

// MemoryTypeIndex returns the first memory type allowed by typeBits whose
// property flags include propertyFlags. When none matches it logs and returns
// index 0 together with ErrNoMemoryType.
func (d *VulkanDevice) MemoryTypeIndex(typeBits uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	if index, ok := findMemoryType(d.memoryTypes, typeBits, propertyFlags); ok {
		return index, nil
	}
	core.LogError("Unable to find suitable memory type! bits=%#x flags=%#x", typeBits, uint32(propertyFlags))
	return 0, ErrNoMemoryType
}

// MemoryTypes returns a copy of the adapter's memory type table.
func (d *VulkanDevice) MemoryTypes() []vk.MemoryType {
	out := make([]vk.MemoryType, len(d.memoryTypes))
	copy(out, d.memoryTypes)
	return out
}

func (d *VulkanDevice) WaitIdle(context *VulkanContext) error {
	return context.Locks.SafeCall(DeviceManagement, func() error {
		return checkResult("vkDeviceWaitIdle", context.Driver.DeviceWaitIdle(d.LogicalDevice))
	})
}

func (d *VulkanDevice) Destroy(context *VulkanContext) {
	d.GraphicsQueue = nil

	core.LogInfo("Destroying logical device...")
	if d.LogicalDevice != nil {
		context.Driver.DestroyDevice(d.LogicalDevice)
		d.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	d.PhysicalDevice = nil
}

func findMemoryType(types []vk.MemoryType, typeBits uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, bool) {
	for i := 0; i < len(types) && i < 32; i++ {
		if typeBits&(1<<uint(i)) != 0 && types[i].PropertyFlags&propertyFlags == propertyFlags {
			return uint32(i), true
		}
	}
	return 0, false
}

func selectGraphicsQueueFamily(families []vk.QueueFamilyProperties) (uint32, bool) {
	for i, family := range families {
		if family.QueueCount > 0 && family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func logAdapter(info AdapterInfo) {
	core.LogInfo("Selected device: '%s'.", info.Name)
	// GPU type, etc.
	switch info.Type {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo("GPU Driver version: %s", versionString(info.DriverVersion))
	core.LogInfo("Vulkan API version: %s", versionString(info.APIVersion))
}

func versionString(version uint32) string {
	v := vk.Version(version)
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}
