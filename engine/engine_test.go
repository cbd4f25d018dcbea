package engine

import (
	"context"
	"testing"
	"time"

	"github.com/spaghettifunk/vkbase/engine/core"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan"
	"github.com/spaghettifunk/vkbase/engine/renderer/vulkan/vktest"
	"github.com/stretchr/testify/require"
)

// pump is a Window whose message pump runs a callback.
type pump struct {
	calls  int
	closed bool
	onPump func(call int)
}

func (p *pump) PumpMessages() bool {
	p.calls++
	if p.onPump != nil {
		p.onPump(p.calls)
	}
	return !p.closed
}

type fixture struct {
	engine *Engine
	events *core.EventSystem
	driver *vktest.Driver
	window *vktest.Window
	scene  *vktest.Scene
	pump   *pump
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	driver := vktest.New()
	f := &fixture{
		events: core.NewEventSystem(0),
		driver: driver,
		window: vktest.NewWindow(driver, 1280, 720),
		scene:  &vktest.Scene{},
		pump:   &pump{},
	}
	config := DefaultApplicationConfig()
	backend := vulkan.NewVulkanBackend(driver, f.window, f.scene, config.RendererConfig())
	f.engine = New(config, f.events, f.pump, backend)
	return f
}

func (f *fixture) fire(code core.SystemEventCode, data interface{}) {
	f.events.Fire(core.EventContext{Type: code, Data: data})
}

func (f *fixture) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, f.engine.Tick(context.Background()))
}

func TestFocusLostStopsSubmission(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, EngineStageUninitialized, f.engine.Stage())

	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	f.tick(t)
	require.Equal(t, EngineStagePrepared, f.engine.Stage())
	require.Equal(t, 1, f.driver.SubmitCount())

	f.fire(core.EVENT_CODE_FOCUS_LOST, nil)
	for i := 0; i < 5; i++ {
		f.tick(t)
	}
	require.Equal(t, EngineStagePaused, f.engine.Stage())
	require.Equal(t, 1, f.driver.SubmitCount())
	require.Equal(t, uint64(5), f.engine.Metrics().Skipped())

	f.fire(core.EVENT_CODE_FOCUS_GAINED, nil)
	f.tick(t)
	require.Equal(t, EngineStageRendering, f.engine.Stage())
	require.Equal(t, 2, f.driver.SubmitCount())
	require.Empty(t, f.driver.Violations)
}

func TestFocusLostBeforeWindowStartsPaused(t *testing.T) {
	f := newFixture(t)
	f.fire(core.EVENT_CODE_FOCUS_LOST, nil)
	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	f.tick(t)
	require.Equal(t, EngineStagePaused, f.engine.Stage())
	require.Zero(t, f.driver.SubmitCount())

	f.fire(core.EVENT_CODE_FOCUS_GAINED, nil)
	f.tick(t)
	require.Equal(t, 1, f.driver.SubmitCount())
}

func TestFocusRegainedBeforeWindowCancelsPause(t *testing.T) {
	f := newFixture(t)
	f.fire(core.EVENT_CODE_FOCUS_LOST, nil)
	f.fire(core.EVENT_CODE_FOCUS_GAINED, nil)
	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	f.tick(t)
	require.Equal(t, EngineStagePrepared, f.engine.Stage())
}

func TestWindowDestroyedReleasesEverything(t *testing.T) {
	f := newFixture(t)
	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	f.fire(core.EVENT_CODE_FOCUS_GAINED, nil)
	f.tick(t)
	f.tick(t)

	f.fire(core.EVENT_CODE_WINDOW_DESTROYED, nil)
	f.tick(t)
	require.Equal(t, EngineStageDestroyed, f.engine.Stage())
	require.Zero(t, f.driver.LiveCount())
	require.Equal(t, 2, f.driver.SubmitCount())

	// Another destroy is ignored and nothing is drawn without a window.
	f.fire(core.EVENT_CODE_WINDOW_DESTROYED, nil)
	f.tick(t)
	require.Equal(t, 2, f.driver.SubmitCount())

	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	f.tick(t)
	require.Equal(t, EngineStagePrepared, f.engine.Stage())
	require.Equal(t, 3, f.driver.SubmitCount())
	require.Empty(t, f.driver.Violations)
}

func TestSecondWindowCreatedIgnored(t *testing.T) {
	f := newFixture(t)
	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	f.fire(core.EVENT_CODE_FOCUS_GAINED, nil)
	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	f.tick(t)
	require.Equal(t, EngineStageRendering, f.engine.Stage())
	require.Equal(t, 1, f.driver.Live()["instance"])
}

func TestBringUpFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.driver.AdapterCount = 0

	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	err := f.engine.Tick(context.Background())
	require.ErrorIs(t, err, vulkan.ErrNoPhysicalDevice)
	require.True(t, vulkan.IsFatal(err))
	require.Equal(t, EngineStageUninitialized, f.engine.Stage())
	require.Zero(t, f.driver.LiveCount())
}

func TestResizeRecreatesSwapchain(t *testing.T) {
	f := newFixture(t)
	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	f.tick(t)

	f.window.Resize(1024, 768)
	f.fire(core.EVENT_CODE_RESIZED, &core.SystemEvent{WindowWidth: 1024, WindowHeight: 768})
	f.tick(t)
	require.Len(t, f.driver.SwapchainInfos, 2)
	require.Equal(t, uint32(1024), f.driver.SwapchainInfos[1].ImageExtent.Width)
	require.Equal(t, 1, f.driver.SubmitCount())

	f.tick(t)
	require.Equal(t, 2, f.driver.SubmitCount())
}

func TestShaderChangeReloadsScene(t *testing.T) {
	f := newFixture(t)
	f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
	f.tick(t)

	f.fire(core.EVENT_CODE_ASSET_CHANGED, "shaders/triangle.frag")
	f.tick(t)
	require.Equal(t, 1, f.scene.Prepares)

	f.fire(core.EVENT_CODE_ASSET_CHANGED, "shaders/triangle.frag.spv")
	f.tick(t)
	require.Equal(t, 2, f.scene.Prepares)
	require.Equal(t, 1, f.scene.Teardowns)
}

func TestRunExitsOnQuitAndTearsDown(t *testing.T) {
	f := newFixture(t)
	f.pump.onPump = func(call int) {
		switch call {
		case 1:
			f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
		case 4:
			f.fire(core.EVENT_CODE_APPLICATION_QUIT, nil)
		}
	}

	require.NoError(t, f.engine.Run(context.Background()))
	require.Equal(t, 4, f.pump.calls)
	require.Equal(t, 4, f.driver.SubmitCount())
	require.Equal(t, EngineStageDestroyed, f.engine.Stage())
	require.Zero(t, f.driver.LiveCount())
	require.Empty(t, f.driver.Violations)
}

func TestRunExitsWhenWindowCloses(t *testing.T) {
	f := newFixture(t)
	f.pump.onPump = func(call int) {
		switch call {
		case 1:
			f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
		case 3:
			f.pump.closed = true
		}
	}

	require.NoError(t, f.engine.Run(context.Background()))
	require.Equal(t, EngineStageDestroyed, f.engine.Stage())
	require.Zero(t, f.driver.LiveCount())
}

func TestRunExitsOnStop(t *testing.T) {
	f := newFixture(t)
	f.pump.onPump = func(call int) {
		if call == 1 {
			f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
		}
	}

	done := make(chan error, 1)
	go func() { done <- f.engine.Run(context.Background()) }()

	require.Eventually(t, func() bool { return f.driver.SubmitCount() > 2 }, 5*time.Second, time.Millisecond)
	f.engine.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	require.Equal(t, EngineStageDestroyed, f.engine.Stage())
	require.Zero(t, f.driver.LiveCount())
}

func TestRunExitsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.pump.onPump = func(call int) {
		switch call {
		case 1:
			f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
		case 2:
			cancel()
		}
	}

	require.NoError(t, f.engine.Run(ctx))
	require.Equal(t, 2, f.pump.calls)
	require.Equal(t, 1, f.driver.SubmitCount())
	require.Zero(t, f.driver.LiveCount())
}

func TestRunForwardsAssetChanges(t *testing.T) {
	f := newFixture(t)
	changes := make(chan string, 1)
	f.engine.WatchAssets(changes)
	f.pump.onPump = func(call int) {
		switch call {
		case 1:
			f.fire(core.EVENT_CODE_WINDOW_CREATED, nil)
			changes <- "shaders/triangle.vert.spv"
		default:
			if f.scene.Prepares > 1 {
				f.engine.Stop()
			}
		}
	}

	require.NoError(t, f.engine.Run(context.Background()))
	require.Equal(t, 2, f.scene.Prepares)
}

func TestStageString(t *testing.T) {
	require.Equal(t, "paused", EngineStagePaused.String())
	require.Equal(t, "unknown", Stage(42).String())
}
