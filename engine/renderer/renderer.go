package renderer

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
	"github.com/spaghettifunk/ember/engine/renderer/vulkan"
)

type RendererType uint8

const (
	Vulkan RendererType = iota
)

// Scene is the content drawn every frame.
type Scene struct {
	Shaders vulkan.ShaderSource
	Mesh    *metadata.MeshData
	Texture *metadata.TextureData
}

type Renderer struct {
	backend RendererBackend
}

var (
	initRenderer sync.Once
	renderer     *Renderer
)

var errRendererNotInitialized = errors.New("renderer is not initialized")

// Initialize creates the Vulkan backend for window and builds it. The driver
// is usually obtained from driver.NewVulkanDriver.
func Initialize(cfg *core.Config, drv driver.Driver, window vulkan.Window, scene Scene) error {
	var err error
	initRenderer.Do(func() {
		opts := vulkan.OptionsFromConfig(cfg)
		opts.Shaders = scene.Shaders
		opts.Mesh = scene.Mesh
		opts.Texture = scene.Texture
		backend := vulkan.New(drv, window, opts)
		if err = backend.Initialize(); err != nil {
			return
		}
		renderer = &Renderer{backend: backend}
	})
	if err != nil {
		return err
	}
	if renderer == nil {
		return errRendererNotInitialized
	}
	return nil
}

func Shutdown() error {
	if renderer == nil {
		return errRendererNotInitialized
	}
	return renderer.backend.Shutdown()
}

func OnResize(width, height uint32) {
	if renderer != nil {
		renderer.backend.Resized(width, height)
	}
}

func ReloadShaders() {
	if renderer != nil {
		renderer.backend.ReloadShaders()
	}
}

func DrawFrame(renderPacket *metadata.RenderPacket) error {
	if renderer == nil {
		return errRendererNotInitialized
	}
	if err := renderer.backend.DrawFrame(renderPacket); err != nil {
		core.LogError("RendererDrawFrame failed. Application shutting down...")
		return err
	}
	return nil
}
