package testbed

import (
	"github.com/spaghettifunk/ember/engine"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/components"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// Radians per second.
const spinSpeed = 1.0

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	elapsed float64
	width   uint32
	height  uint32
}

func NewTestGame(cfg *core.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: engine.ApplicationConfigFrom(cfg),
			State:             &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting %s...", g.ApplicationConfig.Name)
	return nil
}

func (g *TestGame) Initialize() error {
	state := g.State.(*gameState)
	state.WorldCamera = components.NewCamera()
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime
	return nil
}

// Render spins the model around Z and views it from the world camera.
func (g *TestGame) Render(packet *metadata.RenderPacket, deltaTime float64) error {
	state := g.State.(*gameState)
	packet.Model.Identity()
	packet.Model.RotateZ(&packet.Model, float32(state.elapsed*spinSpeed))
	packet.Camera = state.WorldCamera
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed shutting down")
	return nil
}
