package metadata

import (
	"github.com/spaghettifunk/ember/engine/renderer/components"
	"github.com/xlab/linmath"
)

/**
 * @brief What the game hands to the renderer every frame.
 */
type RenderPacket struct {
	DeltaTime float64
	/** @brief The model matrix of the mesh. */
	Model linmath.Mat4x4
	/** @brief The camera to render from. Nil keeps an identity view. */
	Camera *components.Camera
}
