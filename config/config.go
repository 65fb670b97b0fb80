// Package config loads the mission configuration consumed read-only by
// the guidance core: controller gains and weights, phase thresholds,
// handoff and staleness timing, and the subsystem model parameters.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"debris-capture-core/guidance"
	"debris-capture-core/mission"
	"debris-capture-core/subsystems"
)

// Config is the full mission configuration tree. Loaded once at
// startup; nothing mutates it afterwards.
type Config struct {
	Loop LoopConfig `yaml:"loop"`

	Phases     mission.PhaseConfig       `yaml:"phases"`
	Sequencer  mission.SequencerConfig   `yaml:"sequencer"`
	Arbitrator guidance.ArbitratorConfig `yaml:"arbitrator"`

	LQR      guidance.LQRConfig      `yaml:"lqr"`
	MPC      guidance.MPCConfig      `yaml:"mpc"`
	SMC      guidance.SMCConfig      `yaml:"smc"`
	Adaptive guidance.AdaptiveConfig `yaml:"adaptive"`

	Power      subsystems.PowerConfig      `yaml:"power"`
	Propulsion subsystems.PropulsionConfig `yaml:"propulsion"`
	Grabbing   subsystems.GrabbingConfig   `yaml:"grabbing"`
}

// LoopConfig sets the control period.
type LoopConfig struct {
	PeriodMS int `yaml:"period_ms"`
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the core cannot run safely with.
func (c *Config) Validate() error {
	if c.Loop.PeriodMS <= 0 {
		return fmt.Errorf("config: invalid loop.period_ms %d", c.Loop.PeriodMS)
	}
	if c.Phases.CoarseToFineM <= c.Phases.FineToCaptureM {
		return fmt.Errorf("config: coarse_to_fine_m %.1f must exceed fine_to_capture_m %.1f",
			c.Phases.CoarseToFineM, c.Phases.FineToCaptureM)
	}
	if c.Phases.HysteresisBand < 0 || c.Phases.HysteresisBand >= 0.5 {
		return fmt.Errorf("config: hysteresis_band %.3f outside [0, 0.5)", c.Phases.HysteresisBand)
	}
	if c.MPC.HorizonSteps < 1 {
		return fmt.Errorf("config: mpc.horizon_steps %d must be positive", c.MPC.HorizonSteps)
	}
	if c.Arbitrator.StaleAfterS >= c.Arbitrator.AbortStaleAfterS {
		return fmt.Errorf("config: stale_after_s %.2f must be below abort_stale_after_s %.2f",
			c.Arbitrator.StaleAfterS, c.Arbitrator.AbortStaleAfterS)
	}
	if c.Sequencer.CaptureEnvelopeM > c.Phases.FineToCaptureM {
		return fmt.Errorf("config: capture_envelope_m %.1f outside the capture phase boundary %.1f",
			c.Sequencer.CaptureEnvelopeM, c.Phases.FineToCaptureM)
	}
	if c.Adaptive.MaxContribution < 0 || c.Adaptive.MaxContribution > 1 {
		return fmt.Errorf("config: adaptive.max_contribution %.2f outside [0, 1]", c.Adaptive.MaxContribution)
	}
	return nil
}

// Period returns the control period in seconds.
func (c *Config) Period() float64 {
	return float64(c.Loop.PeriodMS) / 1000.0
}
