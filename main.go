/*
Renders a triangle through the engine's Vulkan frame loop. Window focus,
minimize and close drive the renderer's lifecycle.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/vkbase/engine"
	"github.com/spaghettifunk/vkbase/engine/assets"
	"github.com/spaghettifunk/vkbase/engine/core"
	"github.com/spaghettifunk/vkbase/engine/platform"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
	"github.com/spaghettifunk/vkbase/testbed"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	validation := flag.Bool("validation", false, "enable the Khronos validation layer")
	flag.Parse()

	config, err := engine.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("failed to load config: %s", err)
	}
	if *validation {
		config.Renderer.Validation = true
	}
	core.SetLogLevel(config.LogLevel())

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogFatal(err.Error())
	}
	if err := am.Initialize(config.Application.AssetsDir); err != nil {
		core.LogFatal("failed to index assets: %s", err)
	}
	defer am.Shutdown()

	events := core.NewEventSystem(core.DefaultEventQueueSize)
	p := platform.New(events)

	// Events fired by Startup are queued until the first tick.
	app := config.Application
	if err := p.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
		core.LogFatal("failed to start platform: %s", err)
	}
	defer p.Shutdown()

	driver, err := vulkan.NewVulkanDriver(platform.GetVulkanGetInstanceProcAddress())
	if err != nil {
		core.LogFatal("failed to load Vulkan: %s", err)
	}

	backend := vulkan.NewVulkanBackend(driver, p, testbed.NewTriangleScene(am), config.RendererConfig())
	e := engine.New(config, events, p, backend)
	if config.Renderer.HotReload {
		e.WatchAssets(am.Changes())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		e.Stop()
	}()

	// run engine
	if err := e.Run(context.Background()); err != nil {
		if vulkan.IsFatal(err) {
			core.LogFatal("engine stopped: %s", err)
		}
		core.LogError("engine stopped: %s", err)
	}
}
