package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the engine configuration, usually read from config.toml.
type Config struct {
	Application ApplicationSection `toml:"application"`
	Log         LogSection         `toml:"log"`
	Renderer    RendererSection    `toml:"renderer"`
	Assets      AssetsSection      `toml:"assets"`
}

type ApplicationSection struct {
	Name   string `toml:"name"`
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type LogSection struct {
	Level string `toml:"level"`
}

type RendererSection struct {
	// Enables the validation layer and the debug messenger.
	Validation          bool       `toml:"validation"`
	FramesInFlight      uint32     `toml:"frames_in_flight"`
	PreferredImageCount uint32     `toml:"preferred_image_count"`
	MSAA                bool       `toml:"msaa"`
	ClearColor          [4]float32 `toml:"clear_color"`
}

type AssetsSection struct {
	Root           string `toml:"root"`
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
	Model          string `toml:"model"`
	Texture        string `toml:"texture"`
	HotReload      bool   `toml:"hot_reload"`
	// Upper bound on parsed vertices/indices; zero means no limit.
	MaxMeshElements int `toml:"max_mesh_elements"`
}

const MaxFramesInFlight uint32 = 3

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationSection{
			Name:   "Ember",
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
		},
		Log: LogSection{
			Level: "info",
		},
		Renderer: RendererSection{
			Validation:          false,
			FramesInFlight:      2,
			PreferredImageCount: 3,
			MSAA:                true,
			ClearColor:          [4]float32{0.0, 0.0, 0.2, 1.0},
		},
		Assets: AssetsSection{
			Root:           "assets",
			VertexShader:   "shaders/vert.spv",
			FragmentShader: "shaders/frag.spv",
			Model:          "models/cube.obj",
			Texture:        "textures/checker.png",
			HotReload:      true,
		},
	}
}

// LoadConfig reads the TOML file at path on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

func DecodeConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown configuration keys:\n%s", strict.String())
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Application.Width, c.Application.Height)
	}
	if c.Renderer.FramesInFlight == 0 || c.Renderer.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("frames_in_flight must be in [1, %d], got %d", MaxFramesInFlight, c.Renderer.FramesInFlight)
	}
	if c.Renderer.PreferredImageCount == 0 {
		return fmt.Errorf("preferred_image_count must be positive")
	}
	if c.Assets.VertexShader == "" || c.Assets.FragmentShader == "" {
		return fmt.Errorf("both vertex_shader and fragment_shader must be set")
	}
	if c.Assets.MaxMeshElements < 0 {
		return fmt.Errorf("max_mesh_elements cannot be negative")
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the parsed level; Validate guarantees it parses.
func (c *Config) LogLevel() LogLevel {
	l, _ := ParseLogLevel(c.Log.Level)
	return l
}
