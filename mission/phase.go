package mission

import (
	"debris-capture-core/guidance"
	"debris-capture-core/utils"
)

// PhaseConfig holds the distance boundaries and the hysteresis band
// applied around them.
type PhaseConfig struct {
	CoarseToFineM  float64 `json:"coarse_to_fine_m" yaml:"coarse_to_fine_m"`
	FineToCaptureM float64 `json:"fine_to_capture_m" yaml:"fine_to_capture_m"`

	// HysteresisBand is the fractional margin inside a boundary the
	// range must reach before the transition fires, so noise straddling
	// a threshold cannot flap the phase.
	HysteresisBand float64 `json:"hysteresis_band" yaml:"hysteresis_band"`
}

// CaptureStatus is the grabbing-side mission state. It is owned by the
// sequencer and mutated only through explicit grabbing events;
// CaptureConfirmed can become true only after NetDeployed.
type CaptureStatus struct {
	NetDeployed        bool
	CaptureConfirmed   bool
	RetractionProgress float64
}

// PhaseManager owns the mission phase. Transitions are monotone forward
// except the abort path, which is reachable from any phase and terminal.
type PhaseManager struct {
	cfg   PhaseConfig
	log   *utils.Logger
	phase guidance.Phase
}

// NewPhaseManager starts in the payload-deployed phase.
func NewPhaseManager(cfg PhaseConfig, log *utils.Logger) *PhaseManager {
	return &PhaseManager{cfg: cfg, log: log, phase: guidance.PhaseDeployed}
}

// Phase returns the current mission phase.
func (pm *PhaseManager) Phase() guidance.Phase { return pm.phase }

// TargetSelected moves out of the deployed phase once the sequencer has
// locked a target.
func (pm *PhaseManager) TargetSelected() {
	if pm.phase == guidance.PhaseDeployed {
		pm.set(guidance.PhaseCoarseApproach)
	}
}

// Update advances the phase machine from the current range and capture
// status. At most one transition fires per tick.
func (pm *PhaseManager) Update(rangeM float64, status CaptureStatus) guidance.Phase {
	switch pm.phase {
	case guidance.PhaseCoarseApproach:
		if rangeM < pm.advanceThreshold(pm.cfg.CoarseToFineM) {
			pm.set(guidance.PhaseFineApproach)
		}
	case guidance.PhaseFineApproach:
		if rangeM < pm.advanceThreshold(pm.cfg.FineToCaptureM) {
			pm.set(guidance.PhaseCapture)
		}
	case guidance.PhaseCapture:
		if status.CaptureConfirmed {
			pm.set(guidance.PhaseRetraction)
		}
	case guidance.PhaseRetraction:
		if status.RetractionProgress >= 1 {
			pm.set(guidance.PhaseReentry)
		}
	}
	return pm.phase
}

// Abort forces the terminal failure phase from anywhere.
func (pm *PhaseManager) Abort(reason string) {
	if pm.phase == guidance.PhaseAborted {
		return
	}
	pm.log.Critical("Mission abort from %s: %s", pm.phase, reason)
	pm.phase = guidance.PhaseAborted
}

// advanceThreshold shrinks a boundary by the hysteresis band: the range
// must be convincingly inside before the phase advances.
func (pm *PhaseManager) advanceThreshold(boundary float64) float64 {
	return boundary * (1 - pm.cfg.HysteresisBand)
}

func (pm *PhaseManager) set(next guidance.Phase) {
	pm.log.Info("Phase transition %s -> %s", pm.phase, next)
	pm.phase = next
}
