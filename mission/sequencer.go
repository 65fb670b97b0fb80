package mission

import (
	"context"
	"fmt"
	"time"

	"debris-capture-core/guidance"
	"debris-capture-core/subsystems"
	"debris-capture-core/utils"
)

// SequencerState is the top-level mission state, one level above the
// approach phase machine it delegates to.
type SequencerState int

const (
	StateIdle SequencerState = iota
	StatePayloadDeployed
	StateTargetSelected
	StateApproach
	StateCaptureAttempt
	StateRetracted
	StateReentryBurn
	StateComplete
	StateAborted
)

func (s SequencerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePayloadDeployed:
		return "PAYLOAD_DEPLOYED"
	case StateTargetSelected:
		return "TARGET_SELECTED"
	case StateApproach:
		return "APPROACH"
	case StateCaptureAttempt:
		return "CAPTURE_ATTEMPT"
	case StateRetracted:
		return "RETRACTED"
	case StateReentryBurn:
		return "REENTRY_BURN"
	case StateComplete:
		return "COMPLETE"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// SequencerConfig holds the capture envelope, timeouts and the de-orbit
// burn parameters.
type SequencerConfig struct {
	CaptureEnvelopeM  float64 `json:"capture_envelope_m" yaml:"capture_envelope_m"`
	CaptureSpeedMaxMS float64 `json:"capture_speed_max_ms" yaml:"capture_speed_max_ms"`

	TargetStaleAfterS   float64 `json:"target_stale_after_s" yaml:"target_stale_after_s"`
	CaptureConfirmWaitS float64 `json:"capture_confirm_wait_s" yaml:"capture_confirm_wait_s"`
	MaxDeployRetries    int     `json:"max_deploy_retries" yaml:"max_deploy_retries"`

	DispatchTimeoutS float64 `json:"dispatch_timeout_s" yaml:"dispatch_timeout_s"`

	ReentryBurnThrustN   float64 `json:"reentry_burn_thrust_n" yaml:"reentry_burn_thrust_n"`
	ReentryBurnDurationS float64 `json:"reentry_burn_duration_s" yaml:"reentry_burn_duration_s"`
}

// MissionContext is the mission-wide mutable state, owned by the
// sequencer and threaded through the tick loop. Nothing else writes it.
type MissionContext struct {
	State   SequencerState
	Capture CaptureStatus
	Target  *TargetDebris

	DeployRetries  int
	DegradedCycles int
	BurnCommanded  bool

	netCommandedAt  time.Time
	confirmDeadline time.Time
}

// TickResult is what one control period hands back to the driver.
type TickResult struct {
	Command guidance.ControlCommand
	Phase   guidance.Phase
	State   SequencerState
	Capture CaptureStatus
	Faults  []guidance.Fault
}

// Sequencer is the top-level orchestrator: target selection, the
// phase-driven subsystem commands (net deployment, retraction, de-orbit
// burn) and abort handling. It is the sole authority for entering the
// aborted phase.
type Sequencer struct {
	cfg SequencerConfig
	log *utils.Logger

	phases *PhaseManager
	arb    *guidance.Arbitrator

	propulsion subsystems.Propulsion
	power      subsystems.Power
	grabbing   subsystems.Grabbing

	catalog []DebrisCandidate
	mc      MissionContext
}

// NewSequencer wires the orchestrator. The catalog may be loaded later
// via SetCatalog when it comes from a scenario file.
func NewSequencer(cfg SequencerConfig, log *utils.Logger, phases *PhaseManager, arb *guidance.Arbitrator,
	prop subsystems.Propulsion, pow subsystems.Power, grab subsystems.Grabbing) *Sequencer {
	return &Sequencer{
		cfg:        cfg,
		log:        log,
		phases:     phases,
		arb:        arb,
		propulsion: prop,
		power:      pow,
		grabbing:   grab,
		mc:         MissionContext{State: StatePayloadDeployed},
	}
}

// SetCatalog installs the candidate debris objects.
func (s *Sequencer) SetCatalog(catalog []DebrisCandidate) {
	s.catalog = catalog
}

// Context returns a copy of the mission-wide state.
func (s *Sequencer) Context() MissionContext { return s.mc }

// Tick runs one control period: target bookkeeping, grabbing events,
// phase update, command synthesis and subsystem dispatch. It is the
// only writer of mission phase, capture status and the issued command.
func (s *Sequencer) Tick(ctx context.Context, now time.Time, sample guidance.RelativeState, dt float64) TickResult {
	if s.mc.State == StateComplete || s.mc.State == StateAborted {
		return TickResult{Phase: s.phases.Phase(), State: s.mc.State, Capture: s.mc.Capture}
	}

	var faults []guidance.Fault

	// The estimator tracks the locked target, so a valid sample is the
	// target's freshest known state.
	if s.mc.Target != nil && sample.Valid {
		s.mc.Target.State = sample
	}
	s.updateTarget(now)
	s.consumeGrabbingEvents(now)

	// The phase machine only ever reads validated, fresh range data.
	// Without a usable sample the phase holds; the arbitrator reports
	// the staleness and escalates on sustained sensor loss.
	usable := s.arb.SampleUsable(now, sample)
	phase := s.phases.Phase()
	if usable {
		phase = s.phases.Update(sample.Range(), s.mc.Capture)
	}

	headroom := guidance.Headroom{
		FuelKg:     s.propulsion.FuelKg(),
		PowerKW:    s.power.HeadroomKW(),
		FuelFault:  s.propulsion.Faulted(),
		PowerFault: s.power.Faulted(),
		Known:      s.power.StatusKnown(),
	}

	cmd, cmdFaults := s.arb.Update(now, phase, sample, headroom, dt)
	faults = append(faults, cmdFaults...)

	for _, f := range faults {
		if f.Code == guidance.FaultSolverInfeasible {
			s.mc.DegradedCycles++
		}
		if f.Fatal {
			s.abort(ctx, now, f.String())
			return TickResult{Command: cmd, Phase: s.phases.Phase(), State: s.mc.State, Capture: s.mc.Capture, Faults: faults}
		}
	}

	faults = append(faults, s.phaseActions(ctx, now, phase, sample, usable)...)
	if s.mc.State == StateAborted {
		return TickResult{Command: cmd, Phase: s.phases.Phase(), State: s.mc.State, Capture: s.mc.Capture, Faults: faults}
	}

	// Dispatch is fire-and-confirm under a timeout; a miss is reported,
	// never silently retried. The next tick re-evaluates from scratch.
	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout())
	err := s.propulsion.Dispatch(dctx, cmd, dt)
	cancel()
	if err != nil {
		faults = append(faults, guidance.Fault{
			Code: guidance.FaultDispatchTimeout, Time: now,
			Message: "propulsion dispatch: " + err.Error(),
		})
	}

	// Per-cycle power allocation for the commanded duty.
	requestKW := 0.0
	for _, d := range cmd.Duty {
		requestKW += d
	}
	requestKW *= 0.5 // valve-driver draw per unit duty
	if _, err := s.power.Allocate(ctx, requestKW, dt); err != nil {
		faults = append(faults, guidance.Fault{
			Code: guidance.FaultPowerFault, Time: now,
			Message: "power allocation: " + err.Error(),
		})
	}

	return TickResult{Command: cmd, Phase: s.phases.Phase(), State: s.mc.State, Capture: s.mc.Capture, Faults: faults}
}

// updateTarget selects the initial target and replaces one whose state
// estimate has gone stale.
func (s *Sequencer) updateTarget(now time.Time) {
	staleAfter := time.Duration(s.cfg.TargetStaleAfterS * float64(time.Second))

	if s.mc.Target != nil && !s.mc.Target.Stale(now, staleAfter) {
		return
	}
	if s.mc.Target != nil {
		s.log.Warn("Target %s state stale, reselecting", s.mc.Target.Name)
		s.mc.Target = nil
	}

	target, err := SelectTarget(s.catalog, now)
	if err != nil {
		return
	}
	s.mc.Target = target
	s.log.Info("Target selected: %s mass=%.0f kg score=%.1f m", target.Name, target.EstimatedMassKg, target.Score)

	if s.mc.State == StatePayloadDeployed || s.mc.State == StateIdle {
		s.mc.State = StateTargetSelected
	}
	s.phases.TargetSelected()
	if s.mc.State == StateTargetSelected {
		s.mc.State = StateApproach
	}
}

// consumeGrabbingEvents applies queued grabbing events to the capture
// status. Ordering is enforced here: a confirmation with no deployed
// net is rejected and logged.
func (s *Sequencer) consumeGrabbingEvents(now time.Time) {
	for _, ev := range s.grabbing.Drain() {
		switch ev {
		case subsystems.EventNetDeployed:
			s.mc.Capture.NetDeployed = true
			s.mc.confirmDeadline = now.Add(time.Duration(s.cfg.CaptureConfirmWaitS * float64(time.Second)))
			s.log.Info("Net deployed, waiting %.1f s for capture confirmation", s.cfg.CaptureConfirmWaitS)
		case subsystems.EventCaptureConfirmed:
			if !s.mc.Capture.NetDeployed {
				s.log.Warn("Capture confirmation before net deployment, ignored")
				continue
			}
			s.mc.Capture.CaptureConfirmed = true
			s.mc.State = StateCaptureAttempt
			s.log.Info("Capture confirmed")
		case subsystems.EventRetractionComplete:
			s.mc.Capture.RetractionProgress = 1
			s.mc.State = StateRetracted
			s.log.Info("Retraction complete")
		}
	}
	if s.phases.Phase() == guidance.PhaseRetraction && s.mc.Capture.RetractionProgress < 1 {
		s.mc.Capture.RetractionProgress = s.grabbing.Progress()
	}
}

// phaseActions issues the discrete subsystem commands tied to the
// current phase.
func (s *Sequencer) phaseActions(ctx context.Context, now time.Time, phase guidance.Phase, sample guidance.RelativeState, usable bool) []guidance.Fault {
	var faults []guidance.Fault

	switch phase {
	case guidance.PhaseCapture:
		// The envelope is only ever judged on a usable sample; an
		// invalidated one reads as zero range and must not fire the net.
		inEnvelope := usable && sample.Range() <= s.cfg.CaptureEnvelopeM && sample.Speed() < s.cfg.CaptureSpeedMaxMS
		if inEnvelope && !s.mc.Capture.NetDeployed && s.mc.netCommandedAt.IsZero() {
			if err := s.grabbing.DeployNet(ctx); err != nil {
				s.log.Error("Net deployment command failed: %v", err)
			} else {
				s.mc.netCommandedAt = now
				s.log.Info("Net deployment commanded at range %.2f m, speed %.3f m/s", sample.Range(), sample.Speed())
			}
		}

		// Confirmation watchdog: a deployed net that never confirms is
		// retried a bounded number of times, then the mission aborts.
		if s.mc.Capture.NetDeployed && !s.mc.Capture.CaptureConfirmed &&
			!s.mc.confirmDeadline.IsZero() && now.After(s.mc.confirmDeadline) {
			if s.mc.DeployRetries < s.cfg.MaxDeployRetries {
				s.mc.DeployRetries++
				s.mc.Capture.NetDeployed = false
				s.mc.netCommandedAt = time.Time{}
				s.mc.confirmDeadline = time.Time{}
				s.retryDeployment(ctx)
				faults = append(faults, guidance.Fault{
					Code: guidance.FaultCaptureFailed, Time: now,
					Message: fmt.Sprintf("no capture confirmation, redeploy %d/%d", s.mc.DeployRetries, s.cfg.MaxDeployRetries),
				})
			} else {
				f := guidance.Fault{
					Code: guidance.FaultCaptureFailed, Fatal: true, Time: now,
					Message: "capture retries exhausted",
				}
				faults = append(faults, f)
				s.abort(ctx, now, f.String())
			}
		}

	case guidance.PhaseRetraction:
		if err := s.grabbing.Retract(ctx); err != nil {
			s.log.Debug("Retract command: %v", err)
		}

	case guidance.PhaseReentry:
		if !s.mc.BurnCommanded {
			s.mc.BurnCommanded = true
			s.mc.State = StateReentryBurn
			if err := s.propulsion.Burn(ctx, s.cfg.ReentryBurnThrustN, s.cfg.ReentryBurnDurationS); err != nil {
				f := guidance.Fault{
					Code: guidance.FaultFuelDepleted, Fatal: true, Time: now,
					Message: "de-orbit burn: " + err.Error(),
				}
				faults = append(faults, f)
				s.abort(ctx, now, f.String())
				return faults
			}
			s.log.Info("De-orbit burn commanded: %.0f N for %.0f s", s.cfg.ReentryBurnThrustN, s.cfg.ReentryBurnDurationS)
			s.mc.State = StateComplete
		}
	}
	return faults
}

// retryDeployment stows an unconfirmed net so the next in-envelope tick
// can command a fresh deployment.
func (s *Sequencer) retryDeployment(ctx context.Context) {
	if err := s.grabbing.Stow(ctx); err != nil {
		s.log.Error("Net stow for redeploy failed: %v", err)
		return
	}
	s.log.Warn("Capture confirmation timed out, net stowed for redeploy")
}

// abort commands the safe state and enters the terminal failure state:
// zero thrust, and the net retracted if it is out.
func (s *Sequencer) abort(ctx context.Context, now time.Time, reason string) {
	if s.mc.State == StateAborted {
		return
	}
	s.log.Critical("Abort: %s", reason)

	safe := guidance.ControlCommand{Source: "SAFE_NULL", Valid: true, Timestamp: now}
	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout())
	if err := s.propulsion.Dispatch(dctx, safe, 0); err != nil {
		s.log.Error("Safe-state dispatch failed: %v", err)
	}
	cancel()

	if s.mc.Capture.NetDeployed {
		if err := s.grabbing.Retract(ctx); err != nil {
			s.log.Error("Safe-state net retraction failed: %v", err)
		}
	}

	s.mc.State = StateAborted
	s.phases.Abort(reason)
}

func (s *Sequencer) dispatchTimeout() time.Duration {
	if s.cfg.DispatchTimeoutS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(s.cfg.DispatchTimeoutS * float64(time.Second))
}
