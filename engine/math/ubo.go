package math

import (
	"unsafe"

	"github.com/xlab/linmath"
)

// UniformBufferObject is the per-frame uniform block read by the vertex
// shader at binding 0.
type UniformBufferObject struct {
	Model linmath.Mat4x4
	View  linmath.Mat4x4
	Proj  linmath.Mat4x4
}

const UniformBufferObjectSize = uint64(unsafe.Sizeof(UniformBufferObject{}))

func NewUniformBufferObject() UniformBufferObject {
	var ubo UniformBufferObject
	ubo.Model.Identity()
	ubo.View.Identity()
	ubo.Proj.Identity()
	return ubo
}

// SetPerspective sets a right handed perspective projection flipped for
// Vulkan clip space, where Y points down.
func (u *UniformBufferObject) SetPerspective(fovYDegrees, aspect, near, far float32) {
	u.Proj.Perspective(DegToRad(fovYDegrees), aspect, near, far)
	u.Proj[1][1] *= -1
}

// Bytes views the block as raw bytes without copying.
func (u *UniformBufferObject) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), UniformBufferObjectSize)
}
