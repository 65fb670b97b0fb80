package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"debris-capture-core/guidance"
	"debris-capture-core/mission"
)

// Scenario defines one mission run: which debris objects are on the
// catalog, where the chaser starts relative to them, and how long the
// run may take.
type Scenario struct {
	Meta    ScenarioMeta    `json:"meta"`
	Timing  ScenarioTiming  `json:"timing"`
	Initial InitialState    `json:"initial"`
	Debris  []DebrisEntry   `json:"debris"`
	Faults  *FaultInjection `json:"fault_injection,omitempty"`
}

// ScenarioMeta names the run and selects the transport mode.
type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	Mode        string `json:"mode"` // "sim" or "bus"
}

// ScenarioTiming defines run length and pacing.
type ScenarioTiming struct {
	DurationS    float64 `json:"duration_s"`
	RealTimeMode bool    `json:"real_time_mode"`
}

// InitialState places the chaser relative to the selected target.
type InitialState struct {
	PositionM  [3]float64 `json:"position_m"`
	VelocityMS [3]float64 `json:"velocity_ms"`
}

// DebrisEntry is one catalog candidate.
type DebrisEntry struct {
	Name       string     `json:"name"`
	PositionM  [3]float64 `json:"position_m"`
	VelocityMS [3]float64 `json:"velocity_ms"`
	MassKg     float64    `json:"mass_kg"`
}

// FaultInjection triggers degraded conditions mid-run for shakedown
// scenarios.
type FaultInjection struct {
	DrainFuelAtS   float64 `json:"drain_fuel_at_s,omitempty"`
	DrainPowerAtS  float64 `json:"drain_power_at_s,omitempty"`
	DropSamplesAtS float64 `json:"drop_samples_at_s,omitempty"`
}

// LoadScenario loads and validates a scenario JSON file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	if scen.Meta.Mode == "" {
		scen.Meta.Mode = "sim"
	}
	if scen.Meta.Mode != "sim" && scen.Meta.Mode != "bus" {
		return Scenario{}, fmt.Errorf("invalid mode %q (sim or bus)", scen.Meta.Mode)
	}
	if scen.Meta.Mode == "sim" && len(scen.Debris) == 0 {
		return Scenario{}, fmt.Errorf("sim mode requires at least one debris entry")
	}
	for i, d := range scen.Debris {
		if d.MassKg <= 0 {
			return Scenario{}, fmt.Errorf("debris[%d] %q: invalid mass_kg %f", i, d.Name, d.MassKg)
		}
	}

	return scen, nil
}

// Catalog converts the scenario debris list to mission candidates,
// expressed relative to the chaser's initial position.
func (s Scenario) Catalog(now time.Time) []mission.DebrisCandidate {
	out := make([]mission.DebrisCandidate, 0, len(s.Debris))
	for _, d := range s.Debris {
		var rel, relVel guidance.Vec3
		for i := 0; i < 3; i++ {
			rel[i] = s.Initial.PositionM[i] - d.PositionM[i]
			relVel[i] = s.Initial.VelocityMS[i] - d.VelocityMS[i]
		}
		out = append(out, mission.DebrisCandidate{
			ID:              uuid.New(),
			Name:            d.Name,
			EstimatedMassKg: d.MassKg,
			State: guidance.RelativeState{
				Position:  rel,
				Velocity:  relVel,
				Attitude:  guidance.IdentityQuat,
				Timestamp: now,
				Valid:     true,
			},
		})
	}
	return out
}
