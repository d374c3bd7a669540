package components

import (
	"github.com/xlab/linmath"
)

/**
 * @brief Represents a camera looking at a target point. The view
 * matrix is rebuilt lazily when the camera moves.
 */
type Camera struct {
	/** @brief The position of this camera. */
	Position linmath.Vec3
	/** @brief The point the camera looks at. */
	Target linmath.Vec3
	/** @brief The world up direction. */
	Up linmath.Vec3
	/** @brief Vertical field of view in degrees. */
	FovY float32
	Near float32
	Far  float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	isDirty    bool
	viewMatrix linmath.Mat4x4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

// Reset puts the camera at (2, 2, 2) looking at the origin with Z up.
func (c *Camera) Reset() {
	c.Position = linmath.Vec3{2, 2, 2}
	c.Target = linmath.Vec3{0, 0, 0}
	c.Up = linmath.Vec3{0, 0, 1}
	c.FovY = 45
	c.Near = 0.1
	c.Far = 10
	c.isDirty = true
}

func (c *Camera) SetPosition(position linmath.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *Camera) LookAt(target linmath.Vec3) {
	c.Target = target
	c.isDirty = true
}

func (c *Camera) View() linmath.Mat4x4 {
	if c.isDirty {
		c.viewMatrix.LookAt(&c.Position, &c.Target, &c.Up)
		c.isDirty = false
	}
	return c.viewMatrix
}
