package subsystems

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debris-capture-core/guidance"
)

func propTestConfig() PropulsionConfig {
	return PropulsionConfig{
		MainThrustN:    450,
		VernierThrustN: 50,
		IspS:           300,
		DryMassKg:      4000,
		FuelKg:         500,
	}
}

func validCommand(thrust guidance.Vec3) guidance.ControlCommand {
	return guidance.ControlCommand{ThrustN: thrust, Valid: true, Timestamp: time.Now()}
}

func TestSimPropulsion_DispatchBurnsFuel(t *testing.T) {
	p := NewSimPropulsion(propTestConfig())
	before := p.FuelKg()

	err := p.Dispatch(context.Background(), validCommand(guidance.Vec3{450, 0, 0}), 1.0)
	require.NoError(t, err)

	// mdot = F / (Isp * g0)
	expected := 450.0 / (300 * 9.80665)
	assert.InDelta(t, before-expected, p.FuelKg(), 1e-9)
	assert.Equal(t, guidance.Vec3{450, 0, 0}, p.LastThrust())
}

func TestSimPropulsion_DispatchClampsToClusterAuthority(t *testing.T) {
	cfg := propTestConfig()
	p := NewSimPropulsion(cfg)

	err := p.Dispatch(context.Background(), validCommand(guidance.Vec3{2000, 2000, 2000}), 0.1)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(3)*cfg.MainThrustN, p.LastThrust().Norm(), 1e-9)
}

func TestSimPropulsion_RejectsInvalidCommand(t *testing.T) {
	p := NewSimPropulsion(propTestConfig())
	err := p.Dispatch(context.Background(), guidance.ControlCommand{ThrustN: guidance.Vec3{10, 0, 0}}, 0.1)
	assert.Error(t, err)
}

func TestSimPropulsion_ExhaustionErrors(t *testing.T) {
	p := NewSimPropulsion(propTestConfig())
	p.DrainFuel()

	err := p.Dispatch(context.Background(), validCommand(guidance.Vec3{100, 0, 0}), 0.1)
	assert.Error(t, err)
	assert.Zero(t, p.FuelKg())
	assert.True(t, p.Faulted())
}

func TestSimPropulsion_FaultedTracksTank(t *testing.T) {
	p := NewSimPropulsion(propTestConfig())
	assert.False(t, p.Faulted())
	p.DrainFuel()
	assert.True(t, p.Faulted())
}

func TestSimPropulsion_BurnAccounting(t *testing.T) {
	p := NewSimPropulsion(propTestConfig())

	err := p.Burn(context.Background(), 450, 60)
	require.NoError(t, err)
	expected := 450.0 / (300 * 9.80665) * 60
	assert.InDelta(t, 500-expected, p.FuelKg(), 1e-9)

	// A burn beyond the remaining load fails and empties the tank.
	err = p.Burn(context.Background(), 450, 1e6)
	assert.Error(t, err)
	assert.Zero(t, p.FuelKg())
}
