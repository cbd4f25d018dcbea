package engine

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/vkbase/engine/core"
	emath "github.com/spaghettifunk/vkbase/engine/math"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
	"golang.org/x/image/colornames"
)

// WindowConfig is the [application] table.
type WindowConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height"`
	LogLevel    string `toml:"log_level"`
	AssetsDir   string `toml:"assets_dir"`
}

// RendererSettings is the [renderer] table.
type RendererSettings struct {
	Validation bool       `toml:"validation"`
	ClearColor [4]float32 `toml:"clear_color"`
	// A golang.org/x/image/colornames name. Overrides ClearColor when set.
	ClearColorName string `toml:"clear_color_name"`
	// Zero waits forever.
	FenceTimeoutMS   uint64 `toml:"fence_timeout_ms"`
	AcquireTimeoutMS uint64 `toml:"acquire_timeout_ms"`
	DepthFallback    string `toml:"depth_fallback"`
	HotReload        bool   `toml:"hot_reload"`
}

type ApplicationConfig struct {
	Application WindowConfig     `toml:"application"`
	Renderer    RendererSettings `toml:"renderer"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Application: WindowConfig{
			Name:        "Vulkan Example",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
			LogLevel:    "info",
			AssetsDir:   "assets",
		},
		Renderer: RendererSettings{
			ClearColor:    [4]float32{0.025, 0.025, 0.025, 1.0},
			DepthFallback: "undefined",
			HotReload:     true,
		},
	}
}

// LoadConfig reads a TOML file over the defaults. Keys the file leaves out
// keep their default; unknown keys are an error. An empty path returns the
// defaults.
func LoadConfig(path string) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()
	if path == "" {
		return config, config.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := toml.NewDecoder(f).DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, fmt.Errorf("config %s: %s", path, strictErr.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("config %s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return fmt.Errorf("window size %dx%d must be non-zero", c.Application.StartWidth, c.Application.StartHeight)
	}
	if _, err := core.ParseLogLevel(c.Application.LogLevel); err != nil {
		return err
	}
	if name := c.Renderer.ClearColorName; name != "" {
		if _, ok := colornames.Map[strings.ToLower(name)]; !ok {
			return fmt.Errorf("unknown clear colour name `%s`", name)
		}
	}
	if _, err := vulkan.ParseDepthFormat(c.Renderer.DepthFallback); err != nil {
		return err
	}
	return nil
}

// LogLevel assumes a validated config.
func (c *ApplicationConfig) LogLevel() core.LogLevel {
	level, _ := core.ParseLogLevel(c.Application.LogLevel)
	return level
}

// RendererConfig converts the file settings into the backend's options.
func (c *ApplicationConfig) RendererConfig() vulkan.BackendConfig {
	config := vulkan.DefaultBackendConfig()
	config.ApplicationName = c.Application.Name
	config.Validation = c.Renderer.Validation
	config.ClearColor = c.clearColor()
	config.FenceTimeout = millisToNanos(c.Renderer.FenceTimeoutMS)
	config.AcquireTimeout = millisToNanos(c.Renderer.AcquireTimeoutMS)
	if format, err := vulkan.ParseDepthFormat(c.Renderer.DepthFallback); err == nil {
		config.DepthFallback = format
	}
	return config
}

func (c *ApplicationConfig) clearColor() [4]float32 {
	if name := c.Renderer.ClearColorName; name != "" {
		if rgba, ok := colornames.Map[strings.ToLower(name)]; ok {
			return [4]float32{
				float32(rgba.R) / 255.0,
				float32(rgba.G) / 255.0,
				float32(rgba.B) / 255.0,
				float32(rgba.A) / 255.0,
			}
		}
	}
	var out [4]float32
	for i, v := range c.Renderer.ClearColor {
		out[i] = emath.Clamp(v, 0.0, 1.0)
	}
	return out
}

func millisToNanos(ms uint64) uint64 {
	if ms == 0 || ms > math.MaxUint64/1_000_000 {
		return math.MaxUint64
	}
	return ms * 1_000_000
}
