package vulkan

import (
	"context"
	"errors"
	"fmt"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

func TestCheckResult(t *testing.T) {
	require.NoError(t, checkResult("vkCreateFence", vk.Success))

	err := checkResult("vkCreateFence", vk.ErrorOutOfDeviceMemory)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "vkCreateFence", apiErr.Call)
	require.Equal(t, vk.ErrorOutOfDeviceMemory, apiErr.Result)
	require.Contains(t, apiErr.Site, "errors_test.go:")
	require.Contains(t, err.Error(), "VK_ERROR_OUT_OF_DEVICE_MEMORY")
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"stale surface", ErrStaleSurface, false},
		{"timeout", fmt.Errorf("frame: %w", ErrFrameTimeout), false},
		{"cancelled", context.Canceled, false},
		{"configuration", ErrNoDepthFormat, true},
		{"wrapped api error", fmt.Errorf("submit: %w", &APIError{Call: "vkQueueSubmit", Result: vk.ErrorDeviceLost}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestVulkanResultString(t *testing.T) {
	require.Equal(t, "VK_SUCCESS", VulkanResultString(vk.Success, false))
	require.Contains(t, VulkanResultString(vk.ErrorOutOfDate, true), "VK_ERROR_OUT_OF_DATE_KHR")
	require.Equal(t, "VkResult(12345)", VulkanResultString(vk.Result(12345), false))
	require.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	require.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
}
