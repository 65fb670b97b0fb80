package guidance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lqrTestConfig() LQRConfig {
	return LQRConfig{
		OrbitalRateRadS: 0.00113,
		VehicleMassKg:   4000,
		DtS:             0.1,
		PosWeight:       1,
		VelWeight:       40,
		ControlWeight:   0.05,
		RiccatiMaxIter:  50000,
		RiccatiTol:      1e-9,
	}
}

func TestNewLQR_InvalidConfig(t *testing.T) {
	cfg := lqrTestConfig()
	cfg.DtS = 0
	_, err := NewLQR(cfg)
	assert.Error(t, err)

	cfg = lqrTestConfig()
	cfg.VehicleMassKg = -1
	_, err = NewLQR(cfg)
	assert.Error(t, err)
}

func TestNewLQR_GainStructure(t *testing.T) {
	lqr, err := NewLQR(lqrTestConfig())
	require.NoError(t, err)

	k := lqr.Gain()
	require.Len(t, k, 18)

	// Each axis feeds back its own position and velocity with positive
	// gain; u = -K x then opposes the offset.
	for axis := 0; axis < 3; axis++ {
		assert.Greater(t, k[axis*6+axis], 0.0, "position gain axis %d", axis)
		assert.Greater(t, k[axis*6+3+axis], 0.0, "velocity gain axis %d", axis)
	}
}

func TestLQR_ThrustOpposesOffset(t *testing.T) {
	lqr, err := NewLQR(lqrTestConfig())
	require.NoError(t, err)

	state := RelativeState{
		Position:  Vec3{100, 0, 0},
		Timestamp: time.Now(),
		Valid:     true,
	}
	u, err := lqr.Compute(state, 0.1)
	require.NoError(t, err)
	assert.Less(t, u[0], 0.0)

	state.Position = Vec3{-50, 0, 20}
	u, err = lqr.Compute(state, 0.1)
	require.NoError(t, err)
	assert.Greater(t, u[0], 0.0)
	assert.Less(t, u[2], 0.0)
}

func TestLQR_RegulatesToOrigin(t *testing.T) {
	cfg := lqrTestConfig()
	lqr, err := NewLQR(cfg)
	require.NoError(t, err)

	ad, bd := cwDiscrete(cfg.OrbitalRateRadS, cfg.VehicleMassKg, cfg.DtS)

	x := []float64{100, -40, 25, 0, 0, 0}
	initial := vecNorm(x[:3])

	for step := 0; step < 5000; step++ {
		state := RelativeState{
			Position: Vec3{x[0], x[1], x[2]},
			Velocity: Vec3{x[3], x[4], x[5]},
			Valid:    true,
		}
		u, err := lqr.Compute(state, cfg.DtS)
		require.NoError(t, err)

		next := make([]float64, 6)
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				next[i] += ad.At(i, j) * x[j]
			}
			for j := 0; j < 3; j++ {
				next[i] += bd.At(i, j) * u[j]
			}
		}
		x = next
	}

	assert.Less(t, vecNorm(x[:3]), initial*0.01, "closed loop should contract the offset")
	assert.Less(t, vecNorm(x[3:]), 0.5, "residual velocity stays small")
}

func vecNorm(v []float64) float64 {
	sum := 0.0
	for _, c := range v {
		sum += c * c
	}
	return math.Sqrt(sum)
}
