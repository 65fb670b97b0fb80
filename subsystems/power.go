package subsystems

import (
	"context"
	"fmt"
	"sync"
)

// PowerConfig holds the battery model parameters.
type PowerConfig struct {
	CapacityKWh    float64 `json:"capacity_kwh" yaml:"capacity_kwh"`
	Efficiency     float64 `json:"efficiency" yaml:"efficiency"`
	MaxDischargeKW float64 `json:"max_discharge_kw" yaml:"max_discharge_kw"`

	// SOC below which the adapter reports a fault.
	FaultSOC float64 `json:"fault_soc" yaml:"fault_soc"`
}

// SimPower is the battery simulation adapter. State of charge moves only
// through Allocate; the guidance core never writes it.
type SimPower struct {
	mu  sync.Mutex
	cfg PowerConfig
	soc float64
}

// NewSimPower starts with a full battery.
func NewSimPower(cfg PowerConfig) *SimPower {
	return &SimPower{cfg: cfg, soc: 1.0}
}

// Allocate draws the requested power for dt seconds, limited by the
// discharge rate and remaining charge. Returns delivered power after
// conversion losses.
func (p *SimPower) Allocate(ctx context.Context, requestKW, dt float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	available := requestKW
	if available > p.cfg.MaxDischargeKW {
		available = p.cfg.MaxDischargeKW
	}
	energyKWh := available * dt / 3600
	stored := p.soc * p.cfg.CapacityKWh
	if energyKWh > stored {
		energyKWh = stored
		available = stored * 3600 / dt
	}
	p.soc -= energyKWh / p.cfg.CapacityKWh
	if p.soc < 0 {
		p.soc = 0
	}
	if p.soc <= p.cfg.FaultSOC {
		return available * p.cfg.Efficiency, fmt.Errorf("power: state of charge %.3f at fault floor", p.soc)
	}
	return available * p.cfg.Efficiency, nil
}

// HeadroomKW reports the power margin available this cycle.
func (p *SimPower) HeadroomKW() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.soc <= p.cfg.FaultSOC {
		return 0
	}
	return p.cfg.MaxDischargeKW
}

// Faulted reports whether the battery is below its fault floor.
func (p *SimPower) Faulted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.soc <= p.cfg.FaultSOC
}

// StatusKnown is always true for the simulated battery; it owns its
// own state and never waits on telemetry.
func (p *SimPower) StatusKnown() bool { return true }

// SOC returns the state of charge for telemetry.
func (p *SimPower) SOC() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.soc
}

// Drain empties the battery; test and scenario hook for power-loss
// behavior.
func (p *SimPower) DrainCharge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.soc = 0
}
