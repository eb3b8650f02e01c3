package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurbo_Endpoints(t *testing.T) {
	cool := turbo(0.1, 255)
	high := turbo(1, 255)

	// Turbo runs from blue at the low end to dark red at the top.
	assert.Greater(t, cool.B, cool.R)
	assert.Greater(t, high.R, high.B)
	assert.Equal(t, turbo(0, 255), turbo(-1, 255))
	assert.Equal(t, high, turbo(2, 255))
	assert.Equal(t, uint8(191), turbo(0.5, 191).A)
}

func TestLogNorm(t *testing.T) {
	assert.InDelta(t, 0.0, logNorm(1, 1, 100), 1e-9)
	assert.InDelta(t, 0.5, logNorm(10, 1, 100), 1e-9)
	assert.InDelta(t, 1.0, logNorm(100, 1, 100), 1e-9)
	assert.InDelta(t, 1.0, logNorm(7, 7, 7), 0)
}
