package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

const shaderEntryPoint = "main"

// ShaderSource supplies the SPIR-V words of the two pipeline stages. It is
// queried on every pipeline build, so a source backed by files picks up
// recompiled shaders on the next swapchain recreation.
type ShaderSource interface {
	VertexShader() ([]uint32, error)
	FragmentShader() ([]uint32, error)
}

// StaticShaders is a ShaderSource over code already in memory.
type StaticShaders struct {
	Vertex   []uint32
	Fragment []uint32
}

func (s StaticShaders) VertexShader() ([]uint32, error)   { return s.Vertex, nil }
func (s StaticShaders) FragmentShader() ([]uint32, error) { return s.Fragment, nil }

// lastGoodShaders remembers the code of the last successful load of each
// stage and returns it when a later load fails. The first load of a stage
// has nothing to fall back to and fails normally.
type lastGoodShaders struct {
	src      ShaderSource
	vertex   []uint32
	fragment []uint32
}

func newLastGoodShaders(src ShaderSource) *lastGoodShaders {
	if lg, ok := src.(*lastGoodShaders); ok {
		return lg
	}
	return &lastGoodShaders{src: src}
}

func (s *lastGoodShaders) VertexShader() ([]uint32, error) {
	return s.load("vertex", s.src.VertexShader, &s.vertex)
}

func (s *lastGoodShaders) FragmentShader() ([]uint32, error) {
	return s.load("fragment", s.src.FragmentShader, &s.fragment)
}

func (s *lastGoodShaders) load(stage string, load func() ([]uint32, error), last *[]uint32) ([]uint32, error) {
	code, err := load()
	if err == nil {
		*last = code
		return code, nil
	}
	if *last == nil {
		return nil, err
	}
	core.LogWarn("failed to reload the %s shader, keeping the previous code: %s", stage, err)
	return *last, nil
}

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle driver.ShaderModule
	/** @brief The stage the module is bound to. */
	Stage vk.ShaderStageFlagBits
}

func (s VulkanShaderStage) info() driver.ShaderStage {
	return driver.ShaderStage{Stage: s.Stage, Module: s.Handle, Entry: shaderEntryPoint}
}

func NewShaderModule(drv driver.Driver, device driver.Device, code []uint32, stage vk.ShaderStageFlagBits) (VulkanShaderStage, error) {
	handle, err := drv.CreateShaderModule(device, code)
	if err != nil {
		core.LogError("failed to create shader module: %s", err)
		return VulkanShaderStage{}, err
	}
	return VulkanShaderStage{Handle: handle, Stage: stage}, nil
}

// loadShaderStages builds the vertex and fragment modules. The modules are
// only needed until the pipeline exists; the caller destroys them.
func loadShaderStages(drv driver.Driver, device driver.Device, src ShaderSource) ([]VulkanShaderStage, error) {
	vertCode, err := src.VertexShader()
	if err != nil {
		core.LogError("failed to load vertex shader: %s", err)
		return nil, err
	}
	fragCode, err := src.FragmentShader()
	if err != nil {
		core.LogError("failed to load fragment shader: %s", err)
		return nil, err
	}

	vert, err := NewShaderModule(drv, device, vertCode, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	frag, err := NewShaderModule(drv, device, fragCode, vk.ShaderStageFragmentBit)
	if err != nil {
		drv.DestroyShaderModule(device, vert.Handle)
		return nil, err
	}
	return []VulkanShaderStage{vert, frag}, nil
}

func destroyShaderStages(drv driver.Driver, device driver.Device, stages []VulkanShaderStage) {
	for _, s := range stages {
		drv.DestroyShaderModule(device, s.Handle)
	}
}
