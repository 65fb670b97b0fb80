package guidance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smcTestConfig() SMCConfig {
	return SMCConfig{
		VehicleMassKg: 4000,
		SurfaceLambda: 0.6,
		ReachingGain:  0.8,
		SwitchingGain: 0.05,
		BoundaryLayer: 0.02,
	}
}

func TestSlidingMode_OpposesSurface(t *testing.T) {
	smc := NewSlidingMode(smcTestConfig())

	u, err := smc.Compute(RelativeState{Position: Vec3{3, 0, 0}, Valid: true}, 0.1)
	require.NoError(t, err)
	assert.Less(t, u[0], 0.0)

	u, err = smc.Compute(RelativeState{Velocity: Vec3{0, -0.1, 0}, Valid: true}, 0.1)
	require.NoError(t, err)
	assert.Greater(t, u[1], 0.0)
}

func TestSlidingMode_ZeroOnSurface(t *testing.T) {
	smc := NewSlidingMode(smcTestConfig())

	// v = -lambda*p puts the state exactly on the sliding surface.
	state := RelativeState{Position: Vec3{2, 0, 0}, Velocity: Vec3{-1.2, 0, 0}, Valid: true}
	u, err := smc.Compute(state, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0, u[0], 1e-9)
	assert.InDelta(t, 0, smc.Surface()[0], 1e-9)
}

func TestSlidingMode_BoundaryLayerIsContinuous(t *testing.T) {
	cfg := smcTestConfig()
	smc := NewSlidingMode(cfg)

	// Commands straddling the boundary layer edge must not jump.
	inside := RelativeState{Velocity: Vec3{cfg.BoundaryLayer * 0.999, 0, 0}, Valid: true}
	outside := RelativeState{Velocity: Vec3{cfg.BoundaryLayer * 1.001, 0, 0}, Valid: true}

	uIn, err := smc.Compute(inside, 0.1)
	require.NoError(t, err)
	uOut, err := smc.Compute(outside, 0.1)
	require.NoError(t, err)

	assert.Less(t, math.Abs(uOut[0]-uIn[0]), 1.0)
}

func TestSlidingMode_ResetClearsSurface(t *testing.T) {
	smc := NewSlidingMode(smcTestConfig())
	_, err := smc.Compute(RelativeState{Position: Vec3{4, 4, 4}, Valid: true}, 0.1)
	require.NoError(t, err)
	require.NotZero(t, smc.Surface()[0])

	smc.Reset()
	assert.Equal(t, Vec3{}, smc.Surface())
}
