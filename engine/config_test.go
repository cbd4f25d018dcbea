package engine

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkbase/engine/core"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultApplicationConfig(), config)

	backend := config.RendererConfig()
	require.Equal(t, "Vulkan Example", backend.ApplicationName)
	require.Equal(t, uint64(math.MaxUint64), backend.FenceTimeout)
	require.Equal(t, uint64(math.MaxUint64), backend.AcquireTimeout)
	require.Equal(t, vk.FormatUndefined, backend.DepthFallback)
	require.False(t, backend.Validation)
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := writeConfig(t, `
[application]
name = "Triangle"
start_width = 800
log_level = "debug"

[renderer]
validation = true
fence_timeout_ms = 250
depth_fallback = "d16"
`)
	config, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "Triangle", config.Application.Name)
	require.Equal(t, uint32(800), config.Application.StartWidth)
	// untouched keys keep their defaults
	require.Equal(t, uint32(720), config.Application.StartHeight)
	require.Equal(t, "assets", config.Application.AssetsDir)
	require.True(t, config.Renderer.HotReload)
	require.Equal(t, core.DebugLevel, config.LogLevel())

	backend := config.RendererConfig()
	require.True(t, backend.Validation)
	require.Equal(t, uint64(250_000_000), backend.FenceTimeout)
	require.Equal(t, uint64(math.MaxUint64), backend.AcquireTimeout)
	require.Equal(t, vk.FormatD16Unorm, backend.DepthFallback)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "[application]\nfullscreen = true\n"},
		{"unknown table", "[audio]\nvolume = 3\n"},
		{"zero size", "[application]\nstart_height = 0\n"},
		{"log level", "[application]\nlog_level = \"loud\"\n"},
		{"colour name", "[renderer]\nclear_color_name = \"not-a-colour\"\n"},
		{"depth fallback", "[renderer]\ndepth_fallback = \"d8\"\n"},
		{"syntax", "[renderer\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestClearColor(t *testing.T) {
	config := DefaultApplicationConfig()
	config.Renderer.ClearColor = [4]float32{-1, 0.5, 2, 1}
	require.Equal(t, [4]float32{0, 0.5, 1, 1}, config.RendererConfig().ClearColor)

	config.Renderer.ClearColorName = "CornflowerBlue"
	require.NoError(t, config.Validate())
	color := config.RendererConfig().ClearColor
	require.InDeltaSlice(t,
		[]float32{100.0 / 255, 149.0 / 255, 237.0 / 255, 1},
		color[:], 1e-6)
}

func TestMillisToNanos(t *testing.T) {
	require.Equal(t, uint64(math.MaxUint64), millisToNanos(0))
	require.Equal(t, uint64(1_000_000), millisToNanos(1))
	require.Equal(t, uint64(math.MaxUint64/1_000_000*1_000_000), millisToNanos(math.MaxUint64/1_000_000))
	require.Equal(t, uint64(math.MaxUint64), millisToNanos(math.MaxUint64/1_000_000+1))
}
