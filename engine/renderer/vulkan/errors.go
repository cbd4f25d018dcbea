package vulkan

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
)

// ConfigurationError means the machine cannot run the renderer at all: no
// adapter, queue family, memory type or format fits.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "vulkan configuration error: " + e.Reason
}

var (
	ErrNoPhysicalDevice = &ConfigurationError{Reason: "no Vulkan capable physical device found"}
	ErrNoGraphicsQueue  = &ConfigurationError{Reason: "no queue family supports graphics"}
	ErrNoMemoryType     = &ConfigurationError{Reason: "no memory type matches the requested properties"}
	ErrNoDepthFormat    = &ConfigurationError{Reason: "no supported depth format"}
	ErrNoSurfaceFormat  = &ConfigurationError{Reason: "surface reports no formats"}
	ErrMissingLayer     = &ConfigurationError{Reason: "required validation layer is missing"}
)

// APIError is a Vulkan call that returned an error code.
type APIError struct {
	Call   string
	Result vk.Result
	// file:line of the caller that checked the result
	Site string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with %s at %s", e.Call, VulkanResultString(e.Result, true), e.Site)
}

var (
	// ErrStaleSurface is returned when the swapchain no longer matches the
	// surface. The frame is skipped and the swapchain recreated.
	ErrStaleSurface = errors.New("vulkan: presentation surface is out of date")
	// ErrFrameTimeout is returned when a bounded fence or acquire wait expires.
	ErrFrameTimeout = errors.New("vulkan: frame wait timed out")
	// ErrNotInitialized is returned when a frame is requested without a device.
	ErrNotInitialized = errors.New("vulkan: backend is not initialized")
)

// checkResult wraps a failing result in an *APIError that records the calling
// site and logs it. A success result returns nil.
func checkResult(call string, res vk.Result) error {
	if res == vk.Success {
		return nil
	}
	site := "unknown"
	if _, file, line, ok := runtime.Caller(1); ok {
		site = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	err := &APIError{Call: call, Result: res, Site: site}
	core.LogError(err.Error())
	return err
}

// IsFatal reports whether err should terminate the application. Stale
// surfaces and timeouts are recoverable; configuration and API failures are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var configErr *ConfigurationError
	var apiErr *APIError
	return errors.As(err, &configErr) || errors.As(err, &apiErr)
}
