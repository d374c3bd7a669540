package core

import (
	"errors"
)

var (
	ErrSwapchainBooting       = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainConfig        = errors.New("surface capabilities not satisfiable by the device")
	ErrNoSuitableDevice       = errors.New("no physical device meets the requirements")
	ErrMissingExtension       = errors.New("required extension not present")
	ErrMissingValidationLayer = errors.New("required validation layer not present")
	ErrMemoryTypeNotFound     = errors.New("no suitable memory type")
	ErrShaderMalformed        = errors.New("shader binary length is not a multiple of 4")
	// ErrAllocation marks allocation pressure: device memory exhaustion or a
	// container growing past its reserve.
	ErrAllocation = errors.New("allocation failure")
	ErrUnknown    = errors.New("unknown")
)
