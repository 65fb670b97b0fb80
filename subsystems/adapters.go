// Package subsystems holds the adapters the guidance core commands:
// propulsion, power and the net grabbing mechanism. The core issues
// fire-and-confirm requests with timeouts and only reads the headroom
// the adapters report; the adapters are the sole owners of fuel and
// power budget state.
package subsystems

import (
	"context"

	"debris-capture-core/guidance"
)

// Event is a discrete status change reported by the grabbing mechanism
// and consumed by the sequencer at tick boundaries.
type Event int

const (
	EventNetDeployed Event = iota
	EventCaptureConfirmed
	EventRetractionComplete
)

func (e Event) String() string {
	switch e {
	case EventNetDeployed:
		return "NET_DEPLOYED"
	case EventCaptureConfirmed:
		return "CAPTURE_CONFIRMED"
	case EventRetractionComplete:
		return "RETRACTION_COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Propulsion consumes thrust commands and owns the fuel budget.
type Propulsion interface {
	// Dispatch applies one tick's command. A confirmation miss is
	// returned as an error and reported, never silently retried.
	Dispatch(ctx context.Context, cmd guidance.ControlCommand, dt float64) error
	// Burn runs a fixed open-loop burn, used for the de-orbit sequence.
	Burn(ctx context.Context, thrustN, durationS float64) error
	FuelKg() float64
	// Faulted reports a propulsion-side fault, e.g. an exhausted tank.
	Faulted() bool
}

// Power services per-cycle allocation requests and owns the battery.
type Power interface {
	// Allocate requests power for this cycle and returns what was
	// actually delivered.
	Allocate(ctx context.Context, requestKW, dt float64) (float64, error)
	HeadroomKW() float64
	Faulted() bool
	// StatusKnown reports whether the adapter has real telemetry yet.
	// Bus-backed adapters return false until the first status frame.
	StatusKnown() bool
}

// Grabbing drives the capture net and reports events.
type Grabbing interface {
	DeployNet(ctx context.Context) error
	Retract(ctx context.Context) error
	// Stow resets an unconfirmed net so a capture retry can redeploy.
	Stow(ctx context.Context) error
	// Drain returns and clears the events accumulated since the last
	// tick boundary.
	Drain() []Event
	Progress() float64
}
