package guidance

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debris-capture-core/utils"
)

func arbTestConfig() ArbitratorConfig {
	return ArbitratorConfig{
		Bounds: ActuatorBounds{
			MaxThrustN:        779,
			MaxTorqueNm:       50,
			MaxThrustPerJetN:  450,
			MaxDeltaPerCycleN: 120,
		},
		BlendWindowS:       0, // disabled unless a test opts in
		StaleAfterS:        0.5,
		AbortStaleAfterS:   5.0,
		MinFuelHeadroomKg:  1.0,
		MinPowerHeadroomKW: 0.5,
		AttitudeKq:         8.0,
		AttitudeKw:         12.0,
	}
}

func newTestArbitrator(t *testing.T, cfg ArbitratorConfig, mpcCfg MPCConfig) *Arbitrator {
	t.Helper()

	log, err := utils.NewFileLogger(filepath.Join(t.TempDir(), "arb.log"), utils.ERROR, false)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	lqr, err := NewLQR(lqrTestConfig())
	require.NoError(t, err)
	mpc, err := NewMPC(mpcCfg)
	require.NoError(t, err)

	return NewArbitrator(cfg, log, lqr, mpc,
		NewSlidingMode(smcTestConfig()), NewAdaptive(adaptiveTestConfig()))
}

func healthyHeadroom() Headroom {
	return Headroom{FuelKg: 400, PowerKW: 8, Known: true}
}

func freshState(now time.Time, pos, vel Vec3) RelativeState {
	return RelativeState{
		Position:  pos,
		Velocity:  vel,
		Attitude:  IdentityQuat,
		Timestamp: now,
		Valid:     true,
	}
}

func TestArbitrator_PhaseLawMapping(t *testing.T) {
	now := time.Now()
	cases := []struct {
		phase  Phase
		pos    Vec3
		source string
	}{
		{PhaseDeployed, Vec3{900, 0, 0}, "NULL"},
		{PhaseCoarseApproach, Vec3{50, 0, 0}, "LQR"},
		{PhaseFineApproach, Vec3{80, 0, 0}, "MPC"},
		{PhaseCapture, Vec3{0.2, 0, 0}, "SMC+ADAPTIVE"},
		{PhaseRetraction, Vec3{0.5, 0, 0}, "NULL"},
		{PhaseReentry, Vec3{0.5, 0, 0}, "NULL"},
	}

	for _, tc := range cases {
		arb := newTestArbitrator(t, arbTestConfig(), mpcTestConfig())
		cmd, faults := arb.Update(now, tc.phase, freshState(now, tc.pos, Vec3{}), healthyHeadroom(), 0.1)
		assert.Empty(t, faults, "phase %s", tc.phase)
		assert.Equal(t, tc.source, cmd.Source, "phase %s", tc.phase)
		assert.True(t, cmd.Valid)
	}
}

func TestArbitrator_MPCFailureFallsBackToLQR(t *testing.T) {
	mpcCfg := mpcTestConfig()
	mpcCfg.MaxIterations = 0 // solver can never converge
	arb := newTestArbitrator(t, arbTestConfig(), mpcCfg)

	now := time.Now()
	cmd, faults := arb.Update(now, PhaseFineApproach, freshState(now, Vec3{100, 0, 0}, Vec3{}), healthyHeadroom(), 0.1)

	assert.Equal(t, "LQR", cmd.Source)
	require.Len(t, faults, 1)
	assert.Equal(t, FaultSolverInfeasible, faults[0].Code)
	assert.False(t, faults[0].Fatal)
	assert.Less(t, cmd.ThrustN[0], 0.0, "fallback still opposes the offset")
}

func TestArbitrator_ResourceGateIsFatal(t *testing.T) {
	arb := newTestArbitrator(t, arbTestConfig(), mpcTestConfig())
	now := time.Now()

	cmd, faults := arb.Update(now, PhaseCoarseApproach, freshState(now, Vec3{500, 0, 0}, Vec3{}),
		Headroom{FuelKg: 0.2, PowerKW: 8, Known: true}, 0.1)

	assert.Equal(t, "SAFE_NULL", cmd.Source)
	assert.Equal(t, Vec3{}, cmd.ThrustN)
	assert.Equal(t, [ThrusterCount]float64{}, cmd.Duty)
	require.Len(t, faults, 1)
	assert.Equal(t, FaultFuelDepleted, faults[0].Code)
	assert.True(t, faults[0].Fatal)

	_, faults = arb.Update(now.Add(time.Second), PhaseCoarseApproach, freshState(now, Vec3{500, 0, 0}, Vec3{}),
		Headroom{FuelKg: 400, PowerFault: true, Known: true}, 0.1)
	require.Len(t, faults, 1)
	assert.Equal(t, FaultPowerFault, faults[0].Code)
	assert.True(t, faults[0].Fatal)

	_, faults = arb.Update(now.Add(2*time.Second), PhaseCoarseApproach, freshState(now, Vec3{500, 0, 0}, Vec3{}),
		Headroom{FuelKg: 400, PowerKW: 8, FuelFault: true, Known: true}, 0.1)
	require.Len(t, faults, 1)
	assert.Equal(t, FaultFuelDepleted, faults[0].Code)
	assert.True(t, faults[0].Fatal)
}

func TestArbitrator_UnknownHeadroomHoldsSafeNull(t *testing.T) {
	arb := newTestArbitrator(t, arbTestConfig(), mpcTestConfig())
	now := time.Now()

	// Before the first subsystem status report the zero-valued margins
	// must not read as depleted resources.
	cmd, faults := arb.Update(now, PhaseCoarseApproach, freshState(now, Vec3{500, 0, 0}, Vec3{}),
		Headroom{}, 0.1)

	assert.Empty(t, faults)
	assert.Equal(t, "SAFE_NULL", cmd.Source)
	assert.Equal(t, Vec3{}, cmd.ThrustN)

	// Once known and healthy, the law runs normally.
	later := now.Add(100 * time.Millisecond)
	cmd, faults = arb.Update(later, PhaseCoarseApproach, freshState(later, Vec3{500, 0, 0}, Vec3{}),
		healthyHeadroom(), 0.1)
	assert.Empty(t, faults)
	assert.Equal(t, "LQR", cmd.Source)
}

func TestArbitrator_StaleSampleHoldsLastCommand(t *testing.T) {
	arb := newTestArbitrator(t, arbTestConfig(), mpcTestConfig())
	now := time.Now()

	state := freshState(now, Vec3{100, 0, 0}, Vec3{})
	first, faults := arb.Update(now, PhaseCoarseApproach, state, healthyHeadroom(), 0.1)
	require.Empty(t, faults)

	// Same sample one second later: past the staleness gate but short of
	// the abort threshold.
	later := now.Add(time.Second)
	held, faults := arb.Update(later, PhaseCoarseApproach, state, healthyHeadroom(), 0.1)
	assert.Equal(t, "HOLD", held.Source)
	assert.Equal(t, first.ThrustN, held.ThrustN)
	require.Len(t, faults, 1)
	assert.Equal(t, FaultSensorStale, faults[0].Code)
	assert.False(t, faults[0].Fatal)

	// Far past the abort threshold the fault turns fatal.
	_, faults = arb.Update(now.Add(10*time.Second), PhaseCoarseApproach, state, healthyHeadroom(), 0.1)
	require.Len(t, faults, 1)
	assert.True(t, faults[0].Fatal)
}

func TestArbitrator_InvalidatedSamplesEscalateToAbort(t *testing.T) {
	cfg := arbTestConfig()
	arb := newTestArbitrator(t, cfg, mpcTestConfig())
	now := time.Now()

	_, faults := arb.Update(now, PhaseCoarseApproach, freshState(now, Vec3{100, 0, 0}, Vec3{}), healthyHeadroom(), 0.1)
	require.Empty(t, faults)

	// The estimator keeps stamping frames but flags them invalid. The
	// timestamps stay fresh, so age alone never crosses a threshold;
	// the time since the last valid sample must drive escalation.
	invalidAt := func(at time.Time) RelativeState {
		s := freshState(at, Vec3{100, 0, 0}, Vec3{})
		s.Valid = false
		return s
	}

	at := now.Add(time.Second)
	cmd, faults := arb.Update(at, PhaseCoarseApproach, invalidAt(at), healthyHeadroom(), 0.1)
	assert.Equal(t, "HOLD", cmd.Source)
	require.Len(t, faults, 1)
	assert.Equal(t, FaultSensorStale, faults[0].Code)
	assert.False(t, faults[0].Fatal)

	at = now.Add(time.Duration((cfg.AbortStaleAfterS + 1) * float64(time.Second)))
	_, faults = arb.Update(at, PhaseCoarseApproach, invalidAt(at), healthyHeadroom(), 0.1)
	require.Len(t, faults, 1)
	assert.Equal(t, FaultSensorStale, faults[0].Code)
	assert.True(t, faults[0].Fatal)
}

func TestArbitrator_RateLimitBoundsCommandDelta(t *testing.T) {
	cfg := arbTestConfig()
	arb := newTestArbitrator(t, cfg, mpcTestConfig())
	now := time.Now()

	first, _ := arb.Update(now, PhaseCoarseApproach, freshState(now, Vec3{1000, 0, 0}, Vec3{}), healthyHeadroom(), 0.1)

	// The law output flips sign completely; the issued command may not.
	now = now.Add(100 * time.Millisecond)
	second, _ := arb.Update(now, PhaseCoarseApproach, freshState(now, Vec3{-1000, 0, 0}, Vec3{}), healthyHeadroom(), 0.1)

	delta := second.ThrustN.Sub(first.ThrustN)
	assert.LessOrEqual(t, delta.Norm(), cfg.Bounds.MaxDeltaPerCycleN+1e-9)
}

func TestArbitrator_SaturationClampIsReportedNotFatal(t *testing.T) {
	cfg := arbTestConfig()
	cfg.Bounds.MaxDeltaPerCycleN = 0 // isolate the saturation clamp
	arb := newTestArbitrator(t, cfg, mpcTestConfig())
	now := time.Now()

	cmd, faults := arb.Update(now, PhaseCoarseApproach, freshState(now, Vec3{50000, 0, 0}, Vec3{}), healthyHeadroom(), 0.1)

	assert.LessOrEqual(t, cmd.ThrustN.Norm(), cfg.Bounds.MaxThrustN+1e-9)
	require.Len(t, faults, 1)
	assert.Equal(t, FaultActuatorSaturation, faults[0].Code)
	assert.False(t, faults[0].Fatal)
	assert.True(t, cmd.Valid, "a clamped command is still issued")
}

func TestArbitrator_BlendRampsFromPreviousCommand(t *testing.T) {
	cfg := arbTestConfig()
	cfg.BlendWindowS = 2.0
	arb := newTestArbitrator(t, cfg, mpcTestConfig())
	now := time.Now()

	// First tick after the handoff starts the ramp at the previous
	// command, which was nothing.
	cmd, _ := arb.Update(now, PhaseCoarseApproach, freshState(now, Vec3{10, 0, 0}, Vec3{}), healthyHeadroom(), 0.1)
	assert.InDelta(t, 0, cmd.ThrustN.Norm(), 1e-9)

	// Partway through the window the incoming law has partial authority.
	now = now.Add(100 * time.Millisecond)
	cmd, _ = arb.Update(now, PhaseCoarseApproach, freshState(now, Vec3{10, 0, 0}, Vec3{}), healthyHeadroom(), 0.1)
	assert.Greater(t, cmd.ThrustN.Norm(), 0.0)
}

func TestArbitrator_TimestampsStrictlyIncrease(t *testing.T) {
	arb := newTestArbitrator(t, arbTestConfig(), mpcTestConfig())
	now := time.Now()
	state := freshState(now, Vec3{100, 0, 0}, Vec3{})

	prev, _ := arb.Update(now, PhaseCoarseApproach, state, healthyHeadroom(), 0.1)
	for i := 0; i < 5; i++ {
		cmd, _ := arb.Update(now, PhaseCoarseApproach, state, healthyHeadroom(), 0.1)
		assert.True(t, cmd.Timestamp.After(prev.Timestamp), "iteration %d", i)
		prev = cmd
	}
}

func TestArbitrator_DutyMatchesThrustSign(t *testing.T) {
	arb := newTestArbitrator(t, arbTestConfig(), mpcTestConfig())
	now := time.Now()

	cmd, _ := arb.Update(now, PhaseCoarseApproach, freshState(now, Vec3{-400, 0, 0}, Vec3{}), healthyHeadroom(), 0.1)
	require.Greater(t, cmd.ThrustN[0], 0.0)
	assert.Greater(t, cmd.Duty[ThrusterXPos], 0.0)
	assert.Zero(t, cmd.Duty[ThrusterXNeg])
}
