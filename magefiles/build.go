//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderDir = filepath.Join("assets", "shaders")

// Compiles the GLSL sources under assets/shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	stages := map[string]string{
		"shader.vert": "vert.spv",
		"shader.frag": "frag.spv",
	}
	for src, out := range stages {
		if _, err := executeCmd("glslc", withArgs(src, "-o", out), withDir(shaderDir), withStream()); err != nil {
			return err
		}
	}
	return nil
}
