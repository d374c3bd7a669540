package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/ember/engine/assets"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/platform"
	"github.com/spaghettifunk/ember/engine/renderer"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
	"github.com/spaghettifunk/ember/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	isRunning    atomic.Bool
	isSuspended  bool
	platform     *platform.Platform
	assetManager *assets.AssetManager
	width        uint32
	height       uint32
	clock        *core.Clock
	metrics      *core.Metrics
	lastTime     float64

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(g *Game, cfg *core.Config) (*Engine, error) {
	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = ApplicationConfigFrom(cfg)
	}

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		platform:     platform.New(),
		assetManager: am,
		isSuspended:  false,
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
		lastTime:     0,
	}
	e.isRunning.Store(true)
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageBooting
	core.SetLogLevel(e.gameInstance.ApplicationConfig.LogLevel)

	// initialize events
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)

	if err := e.platform.Startup(e.gameInstance.ApplicationConfig.Name,
		e.gameInstance.ApplicationConfig.StartPosX,
		e.gameInstance.ApplicationConfig.StartPosY,
		e.gameInstance.ApplicationConfig.StartWidth,
		e.gameInstance.ApplicationConfig.StartHeight); err != nil {
		return err
	}

	cfg := e.config.Assets
	if err := e.assetManager.Initialize(cfg.Root, cfg.MaxMeshElements, cfg.HotReload); err != nil {
		return err
	}

	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			core.LogError("game boot failed: %s", err)
			return err
		}
	}
	e.currentStage = EngineStageBootComplete
	core.LogDebug("boot complete")

	e.currentStage = EngineStageInitializing
	scene, shaders, err := e.loadScene()
	if err != nil {
		return err
	}

	drv, err := driver.NewVulkanDriver(e.platform.VulkanProcAddr())
	if err != nil {
		core.LogError("failed to load the Vulkan driver: %s", err)
		return err
	}
	if err := renderer.Initialize(e.config, drv, e.platform, scene); err != nil {
		return err
	}
	if cfg.HotReload {
		shaders.Watch(func() {
			if err := shaders.Validate(); err != nil {
				core.LogWarn("shader changed on disk but cannot be used, keeping the current pipeline: %s", err)
				return
			}
			core.LogInfo("shader changed on disk, rebuilding render targets")
			renderer.ReloadShaders()
		})
	}

	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}

	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) loadScene() (renderer.Scene, *assets.ShaderFiles, error) {
	cfg := e.config.Assets
	shaders := &assets.ShaderFiles{
		Manager:  e.assetManager,
		Vertex:   cfg.VertexShader,
		Fragment: cfg.FragmentShader,
	}
	jobs, err := systems.NewJobSystem(2, 0)
	if err != nil {
		return renderer.Scene{}, nil, err
	}
	defer jobs.Shutdown()

	var (
		mesh    *metadata.MeshData
		texture *metadata.TextureData
	)
	err = jobs.RunAll(
		systems.JobTask{Name: "load model " + cfg.Model, Run: func() (err error) {
			mesh, err = e.assetManager.LoadMesh(cfg.Model)
			return err
		}},
		systems.JobTask{Name: "load texture " + cfg.Texture, Run: func() (err error) {
			texture, err = e.assetManager.LoadTexture(cfg.Texture, false)
			return err
		}},
	)
	if err != nil {
		return renderer.Scene{}, nil, err
	}
	core.LogInfo("loaded %s: %d vertices, %d indices", mesh.Name, len(mesh.Vertices), len(mesh.Indices))
	return renderer.Scene{Shaders: shaders, Mesh: mesh, Texture: texture}, shaders, nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()

	e.lastTime = e.clock.Elapsed()

	var runningTime float64 = 0.0

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}

		if e.isSuspended {
			e.platform.Sleep(10)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()

		var currentTime float64 = e.clock.Elapsed()
		var delta float64 = (currentTime - e.lastTime)
		var frameStartTime float64 = platform.GetAbsoluteTime()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			e.isRunning.Store(false)
			break
		}

		packet := &metadata.RenderPacket{DeltaTime: delta}
		packet.Model.Identity()

		// Call the game's render routine.
		if err := e.gameInstance.FnRender(packet, delta); err != nil {
			core.LogError("game render failed, shutting down: %s", err)
			e.isRunning.Store(false)
			break
		}

		if err := renderer.DrawFrame(packet); err != nil {
			e.isRunning.Store(false)
			return err
		}

		var frameEndTime float64 = platform.GetAbsoluteTime()
		var frameElapsedTime float64 = frameEndTime - frameStartTime
		e.metrics.Update(frameElapsedTime)
		runningTime += frameElapsedTime
		if runningTime > 5 {
			fps, ms := e.metrics.Frame()
			core.LogDebug("%.0f fps, %.2f ms/frame", fps, ms)
			runningTime = 0
		}

		// Update last time
		e.lastTime = currentTime
	}

	return nil
}

// Stop makes Run return after the current frame. It may be called from any
// goroutine; Shutdown must still be called by the goroutine that ran Run.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown tears everything down in reverse order of creation. Safe to
// call more than once.
func (e *Engine) Shutdown() error {
	e.shutdownOnce.Do(func() {
		e.currentStage = EngineStageShuttingDown
		if e.gameInstance.FnShutdown != nil {
			if err := e.gameInstance.FnShutdown(); err != nil {
				core.LogError("game shutdown failed: %s", err)
			}
		}
		// The watcher may still request shader reloads until it is closed.
		if err := e.assetManager.Close(); err != nil {
			core.LogWarn("asset manager: %s", err)
		}
		if err := renderer.Shutdown(); err != nil {
			core.LogError("renderer shutdown: %s", err)
			e.shutdownErr = err
		}
		if err := e.platform.Shutdown(); err != nil {
			e.shutdownErr = err
		}
		if err := core.EventSystemShutdown(); err != nil {
			e.shutdownErr = err
		}
	})
	return e.shutdownErr
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		{
			core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
			e.Stop()
		}
	}
}

func (e *Engine) onResized(context core.EventContext) {
	if context.Type == core.EVENT_CODE_RESIZED {
		se, ok := context.Data.(*core.SystemEvent)
		if !ok {
			core.LogError("wrong event associated with the event type `%d`", context.Type)
			return
		}

		width := se.WindowWidth
		height := se.WindowHeight

		// Check if different. If so, trigger a resize event.
		if width != e.width || height != e.height {
			e.width = width
			e.height = height

			core.LogDebug("Window resize: %d, %d", width, height)

			// Handle minimization
			if width == 0 || height == 0 {
				core.LogInfo("Window minimized, suspending application.")
				e.isSuspended = true
				return
			}
			if e.isSuspended {
				core.LogInfo("Window restored, resuming application.")
				e.isSuspended = false
			}
			if err := e.gameInstance.FnOnResize(width, height); err != nil {
				core.LogError(err.Error())
			}
			renderer.OnResize(width, height)
		}
	}
}
