package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestDecodeConfigOverridesDefaults(t *testing.T) {
	g := NewWithT(t)

	cfg, err := DecodeConfig(strings.NewReader(`
[application]
name = "viewer"
width = 800
height = 600

[log]
level = "debug"

[renderer]
validation = true
frames_in_flight = 3
clear_color = [0.1, 0.2, 0.3, 1.0]

[assets]
model = "models/cube.obj"
max_mesh_elements = 1000
`))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Application.Name).To(Equal("viewer"))
	g.Expect(cfg.Application.Width).To(Equal(uint32(800)))
	g.Expect(cfg.Renderer.Validation).To(BeTrue())
	g.Expect(cfg.Renderer.FramesInFlight).To(Equal(uint32(3)))
	g.Expect(cfg.Renderer.ClearColor).To(Equal([4]float32{0.1, 0.2, 0.3, 1.0}))
	g.Expect(cfg.Assets.Model).To(Equal("models/cube.obj"))
	g.Expect(cfg.Assets.MaxMeshElements).To(Equal(1000))
	g.Expect(cfg.LogLevel()).To(Equal(DebugLevel))

	// untouched keys keep their defaults
	g.Expect(cfg.Renderer.PreferredImageCount).To(Equal(uint32(3)))
	g.Expect(cfg.Assets.VertexShader).To(Equal("shaders/vert.spv"))
	g.Expect(cfg.Renderer.MSAA).To(BeTrue())
}

func TestDecodeConfigRejectsUnknownKeys(t *testing.T) {
	g := NewWithT(t)

	_, err := DecodeConfig(strings.NewReader("[renderer]\nframes = 2\n"))
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("frames"))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero width", func(c *Config) { c.Application.Width = 0 }},
		{"no frames in flight", func(c *Config) { c.Renderer.FramesInFlight = 0 }},
		{"too many frames in flight", func(c *Config) { c.Renderer.FramesInFlight = MaxFramesInFlight + 1 }},
		{"no preferred image count", func(c *Config) { c.Renderer.PreferredImageCount = 0 }},
		{"missing fragment shader", func(c *Config) { c.Assets.FragmentShader = "" }},
		{"negative mesh limit", func(c *Config) { c.Assets.MaxMeshElements = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			cfg := DefaultConfig()
			g.Expect(cfg.Validate()).To(Succeed())
			tt.mutate(cfg)
			g.Expect(cfg.Validate()).NotTo(Succeed())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	g := NewWithT(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	g.Expect(os.WriteFile(path, []byte("[application]\nname = \"from-file\"\n"), 0o644)).To(Succeed())

	cfg, err := LoadConfig(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Application.Name).To(Equal("from-file"))

	_, err = LoadConfig(filepath.Join(dir, "missing.toml"))
	g.Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	g := NewWithT(t)

	cfg, err := LoadConfig(filepath.Join("..", "..", "config.toml"))
	g.Expect(err).NotTo(HaveOccurred())
	def := DefaultConfig()
	g.Expect(cfg.Renderer).To(Equal(def.Renderer))
	g.Expect(cfg.Application).To(Equal(def.Application))
	g.Expect(cfg.Assets.Model).To(Equal(def.Assets.Model))
	g.Expect(cfg.Assets.Texture).To(Equal(def.Assets.Texture))
	g.Expect(cfg.Assets.MaxMeshElements).To(Equal(1000000))
}
