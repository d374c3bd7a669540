package renderer

import "github.com/spaghettifunk/ember/engine/renderer/metadata"

// RendererBackend is implemented by each graphics API backend.
type RendererBackend interface {
	Initialize() error
	Shutdown() error
	Resized(width, height uint32)
	ReloadShaders()
	DrawFrame(packet *metadata.RenderPacket) error
}
