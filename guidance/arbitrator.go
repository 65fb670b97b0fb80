package guidance

import (
	"fmt"
	"math"
	"time"

	"debris-capture-core/utils"
)

// Controller is the common contract of the four control laws. Compute
// returns a thrust demand in newtons for the current error state; an
// error is the solver-failure path (only MPC uses it).
type Controller interface {
	Name() string
	Compute(state RelativeState, dt float64) (Vec3, error)
	Reset()
}

// Headroom carries the resource margins the subsystem adapters report
// each cycle. The core only reads these; the adapters are the only
// writers of fuel and power budget state.
type Headroom struct {
	FuelKg     float64
	PowerKW    float64
	FuelFault  bool
	PowerFault bool

	// Known is false until the adapters have real telemetry, e.g.
	// before the first status frame arrives on the bus. Margins of an
	// unknown report must not be judged against the minimums.
	Known bool
}

// Arbitrator selects the active control law per mission phase, blends
// commands across law handoffs, and applies saturation, rate and
// resource limits before a command is issued. It is driven by the single
// tick loop and is the only producer of ControlCommand values.
type Arbitrator struct {
	cfg ArbitratorConfig
	log *utils.Logger

	lqr      Controller
	mpc      Controller
	smc      Controller
	adaptive Controller

	prevPhase  Phase
	blendFrom  Vec3
	blendLeftS float64

	lastValidAt time.Time

	lastThrust Vec3
	lastCmd    ControlCommand
	haveLast   bool
	lastStamp  time.Time
}

// NewArbitrator wires the four laws behind the phase map. All laws are
// constructed up front so a handoff never waits on initialization.
func NewArbitrator(cfg ArbitratorConfig, log *utils.Logger, lqr, mpc, smc, adaptive Controller) *Arbitrator {
	return &Arbitrator{
		cfg:       cfg,
		log:       log,
		lqr:       lqr,
		mpc:       mpc,
		smc:       smc,
		adaptive:  adaptive,
		prevPhase: PhaseDeployed,
	}
}

// Update synthesizes the command for one tick. The returned faults are
// surfaced to the driver; fatal ones are acted on by the sequencer.
func (a *Arbitrator) Update(now time.Time, phase Phase, state RelativeState, hr Headroom, dt float64) (ControlCommand, []Fault) {
	var faults []Fault

	// No subsystem telemetry yet: hold the null command instead of
	// judging zero-valued margins against the minimums.
	if !hr.Known {
		a.log.Debug("Subsystem status unknown, holding null command")
		cmd := a.issue(now, Vec3{}, Vec3{}, "SAFE_NULL")
		return cmd, nil
	}

	// Resource gate first: with no fuel or power margin the only safe
	// command is a null one, regardless of phase.
	if hr.FuelFault || hr.FuelKg < a.cfg.MinFuelHeadroomKg {
		faults = append(faults, Fault{
			Code: FaultFuelDepleted, Fatal: true, Time: now,
			Message: fmt.Sprintf("fuel headroom %.2f kg below minimum %.2f kg", hr.FuelKg, a.cfg.MinFuelHeadroomKg),
		})
	}
	if hr.PowerFault || hr.PowerKW < a.cfg.MinPowerHeadroomKW {
		faults = append(faults, Fault{
			Code: FaultPowerFault, Fatal: true, Time: now,
			Message: fmt.Sprintf("power headroom %.2f kW below minimum %.2f kW", hr.PowerKW, a.cfg.MinPowerHeadroomKW),
		})
	}
	if len(faults) > 0 {
		cmd := a.issue(now, Vec3{}, Vec3{}, "SAFE_NULL")
		return cmd, faults
	}

	// Staleness gate: without a usable sample, hold the last safe
	// command. Escalation is driven by how long the loop has gone
	// without a valid sample, so a stream of invalidated frames with
	// fresh timestamps still aborts.
	age := state.Age(now).Seconds()
	if a.lastValidAt.IsZero() {
		a.lastValidAt = now
	}
	if !a.SampleUsable(now, state) {
		starved := now.Sub(a.lastValidAt).Seconds()
		fatal := starved > a.cfg.AbortStaleAfterS
		faults = append(faults, Fault{
			Code: FaultSensorStale, Fatal: fatal, Time: now,
			Message: fmt.Sprintf("no usable sample for %.2f s (age %.2f s, valid=%v)", starved, age, state.Valid),
		})
		if a.haveLast {
			cmd := a.issue(now, a.lastThrust, a.lastCmd.TorqueNm, "HOLD")
			return cmd, faults
		}
		cmd := a.issue(now, Vec3{}, Vec3{}, "SAFE_NULL")
		return cmd, faults
	}
	a.lastValidAt = now

	thrust, source, lawFaults := a.lawThrust(now, phase, state, dt)
	faults = append(faults, lawFaults...)

	// Handoff blending: on a phase change, ramp linearly from the last
	// issued thrust to the incoming law over the configured window.
	if phase != a.prevPhase {
		a.blendFrom = a.lastThrust
		a.blendLeftS = a.cfg.BlendWindowS
		a.log.Info("Law handoff %s -> %s, blending over %.1f s", a.prevPhase, phase, a.cfg.BlendWindowS)
		a.prevPhase = phase
	}
	if a.blendLeftS > 0 && a.cfg.BlendWindowS > 0 {
		alpha := 1 - a.blendLeftS/a.cfg.BlendWindowS
		thrust = a.blendFrom.Scale(1 - alpha).Add(thrust.Scale(alpha))
		a.blendLeftS -= dt
	}

	// Rate limit: the per-cycle magnitude change is capped. Exceedance
	// is clamped and logged, never rejected.
	if a.haveLast && a.cfg.Bounds.MaxDeltaPerCycleN > 0 {
		delta := thrust.Sub(a.lastThrust)
		if delta.Norm() > a.cfg.Bounds.MaxDeltaPerCycleN {
			a.log.Debug("Command delta %.1f N clamped to %.1f N", delta.Norm(), a.cfg.Bounds.MaxDeltaPerCycleN)
			thrust = a.lastThrust.Add(delta.Clamped(a.cfg.Bounds.MaxDeltaPerCycleN))
		}
	}

	// Saturation clamp to actuator bounds.
	if thrust.Norm() > a.cfg.Bounds.MaxThrustN {
		faults = append(faults, Fault{
			Code: FaultActuatorSaturation, Time: now,
			Message: fmt.Sprintf("thrust %.1f N clamped to %.1f N", thrust.Norm(), a.cfg.Bounds.MaxThrustN),
		})
		thrust = thrust.Clamped(a.cfg.Bounds.MaxThrustN)
	}

	torque := a.attitudeTorque(state).Clamped(a.cfg.Bounds.MaxTorqueNm)

	cmd := a.issue(now, thrust, torque, source)
	return cmd, faults
}

// SampleUsable reports whether a navigation sample is validated and
// fresh enough to act on. Phase advancement and the capture envelope
// check are gated on the same predicate as command synthesis.
func (a *Arbitrator) SampleUsable(now time.Time, state RelativeState) bool {
	return state.Valid && state.Age(now).Seconds() <= a.cfg.StaleAfterS
}

// Reset clears handoff and hold state, plus every law's internal state.
func (a *Arbitrator) Reset() {
	a.prevPhase = PhaseDeployed
	a.blendLeftS = 0
	a.haveLast = false
	a.lastThrust = Vec3{}
	a.lastValidAt = time.Time{}
	for _, c := range []Controller{a.lqr, a.mpc, a.smc, a.adaptive} {
		c.Reset()
	}
}

// lawThrust runs the phase's active law set.
func (a *Arbitrator) lawThrust(now time.Time, phase Phase, state RelativeState, dt float64) (Vec3, string, []Fault) {
	switch phase {
	case PhaseCoarseApproach:
		u, _ := a.lqr.Compute(state, dt)
		return u, a.lqr.Name(), nil

	case PhaseFineApproach:
		u, err := a.mpc.Compute(state, dt)
		if err == nil {
			return u, a.mpc.Name(), nil
		}
		// Degraded cycle: the optimizer missed its budget, the
		// regulator command is used instead.
		fallback, _ := a.lqr.Compute(state, dt)
		f := Fault{
			Code: FaultSolverInfeasible, Time: now,
			Message: fmt.Sprintf("falling back to %s: %v", a.lqr.Name(), err),
		}
		return fallback, a.lqr.Name(), []Fault{f}

	case PhaseCapture:
		base, _ := a.smc.Compute(state, dt)
		add, _ := a.adaptive.Compute(state, dt)
		maxAdd := a.cfg.Bounds.MaxThrustN
		if adCfg, ok := a.adaptive.(*Adaptive); ok && adCfg.cfg.MaxContribution > 0 {
			maxAdd *= adCfg.cfg.MaxContribution
		}
		return base.Add(add.Clamped(maxAdd)), a.smc.Name() + "+" + a.adaptive.Name(), nil

	default:
		// Deployed, retraction, re-entry and aborted phases hold
		// translation; retraction loads and the de-orbit burn are
		// commanded by the sequencer through propulsion directly.
		return Vec3{}, "NULL", nil
	}
}

// attitudeTorque is the common quaternion-PD stabilization law applied
// in every phase.
func (a *Arbitrator) attitudeTorque(state RelativeState) Vec3 {
	sign := 1.0
	if state.Attitude[0] < 0 {
		sign = -1
	}
	qv := state.Attitude.Vec()
	return qv.Scale(-a.cfg.AttitudeKq * sign).Sub(state.AngularVelocity.Scale(a.cfg.AttitudeKw))
}

// issue stamps and records a command. Timestamps are strictly
// increasing even when two ticks land on the same clock reading.
func (a *Arbitrator) issue(now time.Time, thrust, torque Vec3, source string) ControlCommand {
	if !now.After(a.lastStamp) {
		now = a.lastStamp.Add(time.Microsecond)
	}
	cmd := ControlCommand{
		ThrustN:   thrust,
		TorqueNm:  torque,
		Duty:      a.allocateDuty(thrust),
		Source:    source,
		Valid:     true,
		Timestamp: now,
	}
	a.lastThrust = thrust
	a.lastCmd = cmd
	a.haveLast = true
	a.lastStamp = now
	return cmd
}

// allocateDuty maps the thrust vector onto the opposed axis jet pairs.
func (a *Arbitrator) allocateDuty(thrust Vec3) [ThrusterCount]float64 {
	var duty [ThrusterCount]float64
	perJet := a.cfg.Bounds.MaxThrustPerJetN
	if perJet <= 0 {
		return duty
	}
	pairs := [3][2]int{
		{ThrusterXPos, ThrusterXNeg},
		{ThrusterYPos, ThrusterYNeg},
		{ThrusterZPos, ThrusterZNeg},
	}
	for axis, pair := range pairs {
		frac := math.Min(math.Abs(thrust[axis])/perJet, 1)
		if thrust[axis] >= 0 {
			duty[pair[0]] = frac
		} else {
			duty[pair[1]] = frac
		}
	}
	return duty
}

// LastCommand returns the most recently issued command, if any.
func (a *Arbitrator) LastCommand() (ControlCommand, bool) {
	return a.lastCmd, a.haveLast
}
