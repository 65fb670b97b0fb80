package main

import (
	"time"

	"debris-capture-core/guidance"
)

// Plant is the kinematic simulation stand-in for the estimator and the
// real relative dynamics: it integrates the dispatched thrust and hands
// back relative-state samples the way the navigation filter would.
type Plant struct {
	relPos guidance.Vec3 // chaser minus debris, m
	relVel guidance.Vec3
	massKg float64

	// Slow drift of the debris itself, applied to the relative motion.
	debrisDriftMS guidance.Vec3

	samplesHeld bool // fault injection: estimator output suppressed
	lastSample  guidance.RelativeState
}

// NewPlant positions the chaser relative to the selected target.
func NewPlant(initial InitialState, target DebrisEntry, massKg float64) *Plant {
	p := &Plant{massKg: massKg}
	for i := 0; i < 3; i++ {
		p.relPos[i] = initial.PositionM[i] - target.PositionM[i]
		p.relVel[i] = initial.VelocityMS[i] - target.VelocityMS[i]
		p.debrisDriftMS[i] = target.VelocityMS[i] * 0.1
	}
	return p
}

// Step integrates one control period of the applied thrust.
func (p *Plant) Step(thrustN guidance.Vec3, dt float64) {
	accel := thrustN.Scale(1 / p.massKg)
	p.relVel = p.relVel.Add(accel.Scale(dt))
	p.relPos = p.relPos.Add(p.relVel.Scale(dt)).Sub(p.debrisDriftMS.Scale(dt * 0.1))
}

// Sample produces the estimator output for this tick. When samples are
// held (sensor-loss injection) the previous sample is returned with its
// stale timestamp so the staleness machinery sees it age.
func (p *Plant) Sample(now time.Time) guidance.RelativeState {
	if p.samplesHeld {
		return p.lastSample
	}
	s := guidance.RelativeState{
		Position:  p.relPos,
		Velocity:  p.relVel,
		Attitude:  guidance.IdentityQuat,
		Timestamp: now,
		Valid:     true,
	}
	p.lastSample = s
	return s
}

// HoldSamples suppresses fresh estimator output from now on.
func (p *Plant) HoldSamples() { p.samplesHeld = true }

// Range returns the current true separation.
func (p *Plant) Range() float64 { return p.relPos.Norm() }

// Speed returns the current true relative speed.
func (p *Plant) Speed() float64 { return p.relVel.Norm() }
