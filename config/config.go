// Package config provides configuration loading and access for the renderer.
// Defaults are embedded; an optional YAML file overrides them.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/surfel3d/surfel/sim"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all renderer and simulation parameters.
type Config struct {
	Window     WindowConfig      `yaml:"window"`
	Simulation SimulationConfig  `yaml:"simulation"`
	Orbit      OrbitConfig       `yaml:"orbit"`
	Primitives []PrimitiveConfig `yaml:"primitives"`
	HUD        HUDConfig         `yaml:"hud"`
	Debug      bool              `yaml:"debug"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type SimulationConfig struct {
	ParticleCount      int     `yaml:"particle_count"`
	RepulsionStrength  float32 `yaml:"repulsion_strength"`
	AttractionStrength float32 `yaml:"attraction_strength"`
	NeighborStride     int     `yaml:"neighbor_stride"`   // 1 = full O(n^2) scan
	NormalSimilarity   float32 `yaml:"normal_similarity"` // CPU kernel weight amplification, 0 = off
	Seed               int64   `yaml:"seed"`
}

type OrbitConfig struct {
	Radius       float32 `yaml:"radius"`
	Height       float32 `yaml:"height"`
	AngularSpeed float32 `yaml:"angular_speed"`
}

// PrimitiveConfig describes one finite vertical cylinder.
type PrimitiveConfig struct {
	Center [3]float32 `yaml:"center"`
	Radius float32    `yaml:"radius"`
	Height float32    `yaml:"height"`
}

type HUDConfig struct {
	FontPath string  `yaml:"font_path"`
	FontSize float64 `yaml:"font_size"`
}

// Load parses the embedded defaults, then overlays the YAML file at path if
// one is given, then validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the kernel cannot run. Primitive set rules,
// including the cap, live in sim.ValidatePrimitives; configuration time is the
// only place they are enforced, never inside the kernel.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Simulation.ParticleCount <= 0 {
		return fmt.Errorf("particle_count must be positive, got %d", c.Simulation.ParticleCount)
	}
	if c.Simulation.NeighborStride < 1 {
		return fmt.Errorf("neighbor_stride must be >= 1, got %d", c.Simulation.NeighborStride)
	}
	return sim.ValidatePrimitives(c.Cylinders())
}

// Cylinders converts the configured primitive set into simulation types.
func (c *Config) Cylinders() []sim.Cylinder {
	out := make([]sim.Cylinder, len(c.Primitives))
	for i, p := range c.Primitives {
		out[i] = sim.Cylinder{
			Center: mgl32.Vec3{p.Center[0], p.Center[1], p.Center[2]},
			Radius: p.Radius,
			Height: p.Height,
		}
	}
	return out
}
