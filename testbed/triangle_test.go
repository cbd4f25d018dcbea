package testbed

import (
	"context"
	"fmt"
	"testing"

	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan/vktest"
	"github.com/stretchr/testify/require"
)

type shaderFiles map[string][]byte

func (f shaderFiles) Load(path string) ([]byte, error) {
	code, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("no such shader %s", path)
	}
	return code, nil
}

func validShaders() shaderFiles {
	return shaderFiles{
		TriangleVertexShader:   {0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0},
		TriangleFragmentShader: {0x03, 0x02, 0x23, 0x07},
	}
}

func TestTriangleSceneDraws(t *testing.T) {
	driver := vktest.New()
	scene := NewTriangleScene(validShaders())
	backend := vulkan.NewVulkanBackend(driver, vktest.NewWindow(driver, 640, 480), scene, vulkan.DefaultBackendConfig())
	require.NoError(t, backend.Initialize())

	live := driver.Live()
	require.Equal(t, 1, live["pipeline"])
	require.Equal(t, 1, live["pipeline layout"])
	// modules are released once the pipeline exists
	require.Zero(t, live["shader module"])

	for i := 0; i < 3; i++ {
		drawn, err := backend.DrawFrame(context.Background())
		require.NoError(t, err)
		require.True(t, drawn)
	}
	require.Equal(t,
		[]string{"BeginRenderPass", "SetViewport", "SetScissor", "BindPipeline", "Draw(3)", "EndRenderPass"},
		driver.Submits[2].Commands)

	require.NoError(t, backend.Shutdown())
	require.Zero(t, driver.LiveCount())
	require.Empty(t, driver.Violations)
}

func TestTriangleSceneSurvivesRecreation(t *testing.T) {
	driver := vktest.New()
	window := vktest.NewWindow(driver, 640, 480)
	scene := NewTriangleScene(validShaders())
	backend := vulkan.NewVulkanBackend(driver, window, scene, vulkan.DefaultBackendConfig())
	require.NoError(t, backend.Initialize())

	window.Resize(320, 240)
	backend.Resized(320, 240)
	drawn, err := backend.DrawFrame(context.Background())
	require.NoError(t, err)
	require.False(t, drawn)

	drawn, err = backend.DrawFrame(context.Background())
	require.NoError(t, err)
	require.True(t, drawn)
	require.Equal(t, 1, driver.Live()["pipeline"])

	require.NoError(t, backend.Shutdown())
	require.Empty(t, driver.Violations)
}

func TestTriangleSceneBadShader(t *testing.T) {
	tests := map[string]shaderFiles{
		"missing":   {TriangleVertexShader: {0x03, 0x02, 0x23, 0x07}},
		"truncated": {TriangleVertexShader: {0x03, 0x02, 0x23}, TriangleFragmentShader: {0x03, 0x02, 0x23, 0x07}},
	}
	for name, files := range tests {
		t.Run(name, func(t *testing.T) {
			driver := vktest.New()
			backend := vulkan.NewVulkanBackend(driver, vktest.NewWindow(driver, 640, 480), NewTriangleScene(files), vulkan.DefaultBackendConfig())
			require.Error(t, backend.Initialize())
			require.Zero(t, driver.LiveCount(), "live objects: %v", driver.Live())
			require.Empty(t, driver.Violations)
		})
	}
}
