package subsystems

import (
	"context"
	"fmt"
	"sync"
)

// GrabbingConfig holds the net mechanism timing and capacity limits.
type GrabbingConfig struct {
	DeployTimeS  float64 `json:"deploy_time_s" yaml:"deploy_time_s"`
	RetractTimeS float64 `json:"retract_time_s" yaml:"retract_time_s"`
	MaxDebrisKg  float64 `json:"max_debris_kg" yaml:"max_debris_kg"`
}

// SimGrabbing is the net mechanism simulation adapter. It runs a small
// deploy/confirm/retract machine and queues status events that the
// sequencer drains at tick boundaries.
type SimGrabbing struct {
	mu  sync.Mutex
	cfg GrabbingConfig

	deploying    bool
	deployed     bool
	confirmed    bool
	retracting   bool
	deployTimer  float64
	retractTimer float64
	capturedKg   float64

	events []Event
}

// NewSimGrabbing creates the adapter with the net stowed.
func NewSimGrabbing(cfg GrabbingConfig) *SimGrabbing {
	return &SimGrabbing{cfg: cfg}
}

// DeployNet starts a deployment. Re-deploying a stowed net after a
// failed confirmation is allowed; deploying an already-out net is not.
func (g *SimGrabbing) DeployNet(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deployed || g.deploying {
		return fmt.Errorf("grabbing: net already out")
	}
	g.deploying = true
	g.deployTimer = 0
	return nil
}

// ConfirmCapture reports debris contact with the given mass. Rejected
// when the net is not deployed or the mass exceeds capacity; the
// ordering invariant lives here, not in the caller.
func (g *SimGrabbing) ConfirmCapture(massKg float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.deployed || g.confirmed {
		return false
	}
	if massKg > g.cfg.MaxDebrisKg {
		return false
	}
	g.confirmed = true
	g.capturedKg = massKg
	g.events = append(g.events, EventCaptureConfirmed)
	return true
}

// Retract begins pulling the net back. Used both for the loaded
// retraction after capture and for safing an empty net on abort.
func (g *SimGrabbing) Retract(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.deployed {
		return fmt.Errorf("grabbing: net not deployed")
	}
	if !g.retracting {
		g.retracting = true
		g.retractTimer = 0
	}
	return nil
}

// Step advances the mechanism timers by one tick. The simulation runner
// calls this; a flight adapter would be event-driven instead.
func (g *SimGrabbing) Step(dt float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.deploying {
		g.deployTimer += dt
		if g.deployTimer >= g.cfg.DeployTimeS {
			g.deploying = false
			g.deployed = true
			g.events = append(g.events, EventNetDeployed)
		}
	}
	if g.retracting {
		g.retractTimer += dt
		if g.retractTimer >= g.cfg.RetractTimeS {
			g.retracting = false
			g.deployed = false
			g.events = append(g.events, EventRetractionComplete)
		}
	}
}

// Stow resets a deployed, unconfirmed net so it can be re-deployed on a
// capture retry. A net holding confirmed debris cannot be stowed.
func (g *SimGrabbing) Stow(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.confirmed {
		return fmt.Errorf("grabbing: captured net cannot be stowed")
	}
	g.deployed = false
	g.deploying = false
	g.deployTimer = 0
	return nil
}

// Drain returns and clears the queued events.
func (g *SimGrabbing) Drain() []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.events
	g.events = nil
	return out
}

// Progress reports retraction progress in [0,1].
func (g *SimGrabbing) Progress() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg.RetractTimeS <= 0 {
		return 0
	}
	if !g.retracting && g.retractTimer >= g.cfg.RetractTimeS {
		return 1
	}
	p := g.retractTimer / g.cfg.RetractTimeS
	if p > 1 {
		p = 1
	}
	return p
}

// CapturedKg reports the confirmed captured mass for telemetry.
func (g *SimGrabbing) CapturedKg() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capturedKg
}

// Deployed reports whether the net is currently out.
func (g *SimGrabbing) Deployed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deployed
}
