package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/vkbase/engine/core"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
)

type Stage int32

const (
	// No window, no GPU resources.
	EngineStageUninitialized Stage = iota
	// GPU resources exist; frames are drawn until focus is lost.
	EngineStagePrepared
	// The window has focus and frames are drawn every tick.
	EngineStageRendering
	// GPU resources exist but nothing is submitted.
	EngineStagePaused
	// The window went away and every GPU resource was released.
	EngineStageDestroyed
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStagePrepared:
		return "prepared"
	case EngineStageRendering:
		return "rendering"
	case EngineStagePaused:
		return "paused"
	case EngineStageDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// hasDevice reports whether the backend is up in this stage.
func (s Stage) hasDevice() bool {
	return s == EngineStagePrepared || s == EngineStageRendering || s == EngineStagePaused
}

// Backend is the renderer driven by the engine. *vulkan.VulkanBackend
// implements it.
type Backend interface {
	Initialize() error
	DrawFrame(ctx context.Context) (bool, error)
	Resized(width, height uint32)
	ReloadScene() error
	WaitIdle() error
	Shutdown() error
}

// Window is the host window's message pump.
type Window interface {
	// PumpMessages processes pending window system messages. It returns
	// false once the window should close.
	PumpMessages() bool
}

type Engine struct {
	stage  atomic.Int32
	quit   atomic.Bool
	events *core.EventSystem

	window  Window
	backend Backend
	config  *ApplicationConfig

	clock   *core.Clock
	metrics *core.FrameMetrics
	log     *log.Logger

	// focus was lost while there was no window
	pendingPause bool
	// fatal error raised by an event handler
	fatal        error
	assetChanges <-chan string
}

var _ Backend = (*vulkan.VulkanBackend)(nil)

func New(config *ApplicationConfig, events *core.EventSystem, window Window, backend Backend) *Engine {
	e := &Engine{
		events:  events,
		window:  window,
		backend: backend,
		config:  config,
		clock:   core.NewClock(),
		metrics: core.NewFrameMetrics(),
		log:     core.LogWith("component", "engine"),
	}
	e.stage.Store(int32(EngineStageUninitialized))

	for _, code := range []core.SystemEventCode{
		core.EVENT_CODE_APPLICATION_QUIT,
		core.EVENT_CODE_RESIZED,
		core.EVENT_CODE_WINDOW_CREATED,
		core.EVENT_CODE_WINDOW_DESTROYED,
		core.EVENT_CODE_FOCUS_GAINED,
		core.EVENT_CODE_FOCUS_LOST,
		core.EVENT_CODE_ASSET_CHANGED,
	} {
		events.Register(code, e, e.HandleEvent)
	}
	return e
}

// Stage can be read from any goroutine.
func (e *Engine) Stage() Stage {
	return Stage(e.stage.Load())
}

func (e *Engine) setStage(s Stage) {
	old := Stage(e.stage.Swap(int32(s)))
	if old != s {
		e.log.Info("Stage changed.", "from", old, "to", s)
	}
}

func (e *Engine) Metrics() *core.FrameMetrics {
	return e.metrics
}

// WatchAssets makes Run forward every path received on changes as an
// EVENT_CODE_ASSET_CHANGED event.
func (e *Engine) WatchAssets(changes <-chan string) {
	e.assetChanges = changes
}

// Stop asks the loop to exit. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.quit.Store(true)
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

// HandleEvent applies one window system event. It runs on the render
// goroutine, from Dispatch.
func (e *Engine) HandleEvent(context core.EventContext) {
	stage := e.Stage()

	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.quit.Store(true)

	case core.EVENT_CODE_WINDOW_CREATED:
		if stage != EngineStageUninitialized && stage != EngineStageDestroyed {
			core.LogWarn("window created while %s, ignoring", stage)
			return
		}
		if err := e.backend.Initialize(); err != nil {
			core.LogError("renderer bring-up failed: %s", err)
			e.fail(err)
			return
		}
		if e.pendingPause {
			e.pendingPause = false
			e.setStage(EngineStagePaused)
			return
		}
		e.setStage(EngineStagePrepared)

	case core.EVENT_CODE_WINDOW_DESTROYED:
		if !stage.hasDevice() {
			return
		}
		if err := e.backend.Shutdown(); err != nil {
			core.LogError("renderer teardown failed: %s", err)
		}
		e.setStage(EngineStageDestroyed)

	case core.EVENT_CODE_FOCUS_GAINED:
		switch stage {
		case EngineStagePrepared, EngineStagePaused:
			e.setStage(EngineStageRendering)
		case EngineStageUninitialized, EngineStageDestroyed:
			e.pendingPause = false
		}

	case core.EVENT_CODE_FOCUS_LOST:
		switch stage {
		case EngineStagePrepared, EngineStageRendering:
			e.setStage(EngineStagePaused)
		case EngineStageUninitialized, EngineStageDestroyed:
			e.pendingPause = true
		}

	case core.EVENT_CODE_RESIZED:
		se, ok := context.Data.(*core.SystemEvent)
		if !ok {
			core.LogError("wrong event associated with the event type `%d`", context.Type)
			return
		}
		core.LogDebug("Window resize: %d, %d", se.WindowWidth, se.WindowHeight)
		if stage.hasDevice() {
			e.backend.Resized(se.WindowWidth, se.WindowHeight)
		}

	case core.EVENT_CODE_ASSET_CHANGED:
		path, _ := context.Data.(string)
		if !stage.hasDevice() || filepath.Ext(path) != ".spv" {
			return
		}
		e.log.Info("Shader changed, reloading scene.", "path", path)
		if err := e.backend.ReloadScene(); err != nil {
			core.LogError("scene reload failed: %s", err)
			if vulkan.IsFatal(err) {
				e.fail(err)
			}
		}
	}
}

func (e *Engine) fail(err error) {
	if e.fatal == nil {
		e.fatal = err
	}
	e.quit.Store(true)
}

// Tick delivers queued events and then draws one frame unless the engine
// is paused or has no window. Only fatal errors are returned.
func (e *Engine) Tick(ctx context.Context) error {
	e.events.Dispatch()
	if e.fatal != nil {
		return e.fatal
	}

	stage := e.Stage()
	if stage != EngineStagePrepared && stage != EngineStageRendering {
		e.metrics.Skip()
		return nil
	}

	e.clock.Update()
	frameStart := e.clock.Elapsed()

	drawn, err := e.backend.DrawFrame(ctx)
	switch {
	case err == nil:
	case vulkan.IsFatal(err):
		e.fail(err)
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		core.LogDebug("frame skipped: %s", err)
	default:
		core.LogWarn("frame skipped: %s", err)
	}

	if !drawn {
		e.metrics.Skip()
		return nil
	}

	e.clock.Update()
	e.metrics.Update(e.clock.Elapsed() - frameStart)
	return nil
}

// Run pumps window messages and ticks until the application quits, the
// window closes or ctx is done. Whatever is still up is torn down on exit.
func (e *Engine) Run(ctx context.Context) error {
	e.clock.Start()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if e.assetChanges != nil {
		go e.forwardAssetChanges(ctx)
	}

	var err error
	var fps float64
	for !e.quit.Load() && ctx.Err() == nil {
		if !e.window.PumpMessages() {
			e.events.Fire(core.EventContext{Type: core.EVENT_CODE_WINDOW_DESTROYED})
			e.quit.Store(true)
		}
		if err = e.Tick(ctx); err != nil {
			break
		}
		if current := e.metrics.FPS(); current != fps {
			fps = current
			e.log.Debug("Frame stats.", "fps", fps, "frame_ms", e.metrics.FrameTime(), "skipped", e.metrics.Skipped())
		}
	}

	// Deliver a pending window-destroyed before tearing down.
	e.events.Dispatch()
	if shutdownErr := e.shutdown(); err == nil {
		err = shutdownErr
	}
	return err
}

func (e *Engine) forwardAssetChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-e.assetChanges:
			if !ok {
				return
			}
			e.events.Fire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: path})
		}
	}
}

func (e *Engine) shutdown() error {
	if !e.Stage().hasDevice() {
		return nil
	}
	if err := e.backend.WaitIdle(); err != nil {
		core.LogError("device idle wait failed: %s", err)
	}
	err := e.backend.Shutdown()
	e.setStage(EngineStageDestroyed)
	return err
}
