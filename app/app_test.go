package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAspectRatioMatchesFramebuffer(t *testing.T) {
	assert.Equal(t, float32(1280)/float32(720), aspectRatio(1280, 720))
	assert.Equal(t, float32(1), aspectRatio(512, 512))
	// Odd sizes stay exact, never snapped to a preset ratio.
	assert.Equal(t, float32(1001)/float32(997), aspectRatio(1001, 997))
}
