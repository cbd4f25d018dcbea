package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

func memoryTypes(flags ...vk.MemoryPropertyFlagBits) []vk.MemoryType {
	types := make([]vk.MemoryType, len(flags))
	for i, f := range flags {
		types[i] = vk.MemoryType{PropertyFlags: vk.MemoryPropertyFlags(f)}
	}
	return types
}

func TestMemoryTypeIndex(t *testing.T) {
	device := &VulkanDevice{
		memoryTypes: memoryTypes(
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit,
			vk.MemoryPropertyDeviceLocalBit,
			vk.MemoryPropertyDeviceLocalBit|vk.MemoryPropertyHostVisibleBit,
		),
	}
	deviceLocal := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)

	t.Run("first allowed type with all flags", func(t *testing.T) {
		index, err := device.MemoryTypeIndex(0b111, deviceLocal)
		require.NoError(t, err)
		require.Equal(t, uint32(1), index)
	})

	t.Run("type bits exclude earlier matches", func(t *testing.T) {
		index, err := device.MemoryTypeIndex(0b100, deviceLocal)
		require.NoError(t, err)
		require.Equal(t, uint32(2), index)
	})

	t.Run("flags must all be present", func(t *testing.T) {
		want := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit)
		index, err := device.MemoryTypeIndex(0b111, want)
		require.NoError(t, err)
		require.Equal(t, uint32(2), index)
	})

	t.Run("no match falls back to zero with an error", func(t *testing.T) {
		index, err := device.MemoryTypeIndex(0b001, deviceLocal)
		require.ErrorIs(t, err, ErrNoMemoryType)
		require.Equal(t, uint32(0), index)
		require.True(t, IsFatal(err))
	})
}

func TestMemoryTypesIsACopy(t *testing.T) {
	device := &VulkanDevice{memoryTypes: memoryTypes(vk.MemoryPropertyDeviceLocalBit)}
	types := device.MemoryTypes()
	types[0].PropertyFlags = 0

	index, err := device.MemoryTypeIndex(1, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	require.NoError(t, err)
	require.Equal(t, uint32(0), index)
}

func TestSelectGraphicsQueueFamily(t *testing.T) {
	graphics := vk.QueueFlags(vk.QueueGraphicsBit)
	transfer := vk.QueueFlags(vk.QueueTransferBit)

	index, ok := selectGraphicsQueueFamily([]vk.QueueFamilyProperties{
		{QueueFlags: transfer, QueueCount: 2},
		{QueueFlags: graphics, QueueCount: 0},
		{QueueFlags: graphics | transfer, QueueCount: 1},
		{QueueFlags: graphics, QueueCount: 4},
	})
	require.True(t, ok)
	require.Equal(t, uint32(2), index)

	_, ok = selectGraphicsQueueFamily([]vk.QueueFamilyProperties{{QueueFlags: transfer, QueueCount: 1}})
	require.False(t, ok)
}

func TestVersionString(t *testing.T) {
	require.Equal(t, "1.3.250", versionString(uint32(vk.MakeVersion(1, 3, 250))))
}
