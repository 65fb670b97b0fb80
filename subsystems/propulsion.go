package subsystems

import (
	"context"
	"fmt"
	"math"
	"sync"

	"debris-capture-core/guidance"
)

const g0 = 9.80665

// PropulsionConfig holds the RCS thruster model parameters.
type PropulsionConfig struct {
	MainThrustN    float64 `json:"main_thrust_n" yaml:"main_thrust_n"`
	VernierThrustN float64 `json:"vernier_thrust_n" yaml:"vernier_thrust_n"`
	IspS           float64 `json:"isp_s" yaml:"isp_s"`
	DryMassKg      float64 `json:"dry_mass_kg" yaml:"dry_mass_kg"`
	FuelKg         float64 `json:"fuel_kg" yaml:"fuel_kg"`
}

// SimPropulsion is the RCS simulation adapter. Fuel moves only through
// Dispatch and Burn.
type SimPropulsion struct {
	mu     sync.Mutex
	cfg    PropulsionConfig
	fuelKg float64

	lastThrust guidance.Vec3
}

// NewSimPropulsion starts with the configured residual propellant load.
func NewSimPropulsion(cfg PropulsionConfig) *SimPropulsion {
	return &SimPropulsion{cfg: cfg, fuelKg: cfg.FuelKg}
}

// Dispatch applies one tick's thrust command, clamping to cluster
// authority and deducting propellant at the configured Isp.
func (p *SimPropulsion) Dispatch(ctx context.Context, cmd guidance.ControlCommand, dt float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cmd.Valid {
		return fmt.Errorf("propulsion: refusing invalid command")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	thrust := cmd.ThrustN
	max := math.Sqrt(3) * p.cfg.MainThrustN
	if thrust.Norm() > max {
		thrust = thrust.Clamped(max)
	}
	p.lastThrust = thrust

	mdot := thrust.Norm() / (p.cfg.IspS * g0)
	used := mdot * dt
	if used > p.fuelKg {
		used = p.fuelKg
	}
	p.fuelKg -= used

	if p.fuelKg <= 0 && thrust.Norm() > 0 {
		return fmt.Errorf("propulsion: propellant exhausted")
	}
	return nil
}

// Burn runs a fixed open-loop retrograde burn for the de-orbit sequence.
func (p *SimPropulsion) Burn(ctx context.Context, thrustN, durationS float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	needed := thrustN / (p.cfg.IspS * g0) * durationS
	if needed > p.fuelKg {
		have := p.fuelKg
		p.fuelKg = 0
		return fmt.Errorf("propulsion: burn needs %.1f kg, have %.1f kg", needed, have)
	}
	p.fuelKg -= needed
	return nil
}

// FuelKg reports the remaining propellant headroom.
func (p *SimPropulsion) FuelKg() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fuelKg
}

// Faulted reports an exhausted tank.
func (p *SimPropulsion) Faulted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fuelKg <= 0
}

// LastThrust returns the thrust applied in the most recent dispatch,
// after clamping; the simulation plant integrates it.
func (p *SimPropulsion) LastThrust() guidance.Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastThrust
}

// DrainFuel empties the tank; test and scenario hook for exhaustion
// behavior.
func (p *SimPropulsion) DrainFuel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fuelKg = 0
}
