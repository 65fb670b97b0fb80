package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debris-capture-core/guidance"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 0.1, cfg.Period(), 1e-9)
}

func TestDefault_SynthesizesControlLaws(t *testing.T) {
	cfg := Default()

	// The stock configuration must construct every law; the Riccati
	// iteration in particular needs enough budget to reach its fixed
	// point for the slow CW dynamics.
	lqr, err := guidance.NewLQR(cfg.LQR)
	require.NoError(t, err)
	assert.Len(t, lqr.Gain(), 18)

	_, err = guidance.NewMPC(cfg.MPC)
	require.NoError(t, err)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.yaml")
	doc := `
loop:
  period_ms: 50
phases:
  coarse_to_fine_m: 600
mpc:
  horizon_steps: 30
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Loop.PeriodMS)
	assert.InDelta(t, 600, cfg.Phases.CoarseToFineM, 1e-9)
	assert.Equal(t, 30, cfg.MPC.HorizonSteps)

	// Untouched sections keep their defaults.
	assert.InDelta(t, 4000, cfg.LQR.VehicleMassKg, 1e-9)
	assert.InDelta(t, 5, cfg.Sequencer.CaptureEnvelopeM, 1e-9)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero period", func(c *Config) { c.Loop.PeriodMS = 0 }},
		{"inverted phase thresholds", func(c *Config) { c.Phases.CoarseToFineM = 2 }},
		{"hysteresis band too wide", func(c *Config) { c.Phases.HysteresisBand = 0.6 }},
		{"empty mpc horizon", func(c *Config) { c.MPC.HorizonSteps = 0 }},
		{"stale thresholds inverted", func(c *Config) { c.Arbitrator.StaleAfterS = 9 }},
		{"envelope beyond capture boundary", func(c *Config) { c.Sequencer.CaptureEnvelopeM = 50 }},
		{"adaptive contribution above one", func(c *Config) { c.Adaptive.MaxContribution = 1.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_ShippedMissionFile(t *testing.T) {
	cfg, err := Load("mission.yaml")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
