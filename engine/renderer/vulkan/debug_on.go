//go:build debug

package vulkan

const debugAssertions = true
