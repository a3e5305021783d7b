package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfel3d/surfel/sim"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1280, cfg.Window.Width)
	assert.Equal(t, 4096, cfg.Simulation.ParticleCount)
	assert.Equal(t, 1, cfg.Simulation.NeighborStride)
	assert.NotEmpty(t, cfg.Primitives)
	assert.NoError(t, sim.ValidatePrimitives(cfg.Cylinders()))
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "surfel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"simulation:\n  particle_count: 1024\n  repulsion_strength: 2.5\n  neighbor_stride: 1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Simulation.ParticleCount)
	assert.Equal(t, float32(2.5), cfg.Simulation.RepulsionStrength)
	// Untouched sections keep their defaults.
	assert.Equal(t, 720, cfg.Window.Height)
}

func TestValidateRejectsTooManyPrimitives(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	for len(cfg.Primitives) <= sim.MaxPrimitives {
		cfg.Primitives = append(cfg.Primitives, PrimitiveConfig{Radius: 0.2, Height: 0.5})
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Simulation.ParticleCount = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Simulation.NeighborStride = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Primitives = nil
	assert.Error(t, bad.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
