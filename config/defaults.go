package config

import (
	"debris-capture-core/guidance"
	"debris-capture-core/mission"
	"debris-capture-core/subsystems"
)

// LEO reference orbit at ~400 km altitude.
const orbitalRateRadS = 0.00113

// Default returns the stock mission configuration: a 4-tonne second
// stage with residual propellant chasing sub-500-kg debris from a
// kilometer out.
func Default() *Config {
	return &Config{
		Loop: LoopConfig{PeriodMS: 100},

		Phases: mission.PhaseConfig{
			CoarseToFineM:  500,
			FineToCaptureM: 5,
			HysteresisBand: 0.05,
		},

		Sequencer: mission.SequencerConfig{
			CaptureEnvelopeM:     5,
			CaptureSpeedMaxMS:    0.2,
			TargetStaleAfterS:    10,
			CaptureConfirmWaitS:  8,
			MaxDeployRetries:     3,
			DispatchTimeoutS:     0.05,
			ReentryBurnThrustN:   450,
			ReentryBurnDurationS: 60,
		},

		Arbitrator: guidance.ArbitratorConfig{
			Bounds: guidance.ActuatorBounds{
				MaxThrustN:        779, // sqrt(3) x 450 N cluster authority
				MaxTorqueNm:       50,
				MaxThrustPerJetN:  450,
				MaxDeltaPerCycleN: 120,
			},
			BlendWindowS:       2.0,
			StaleAfterS:        0.5,
			AbortStaleAfterS:   5.0,
			MinFuelHeadroomKg:  1.0,
			MinPowerHeadroomKW: 0.5,
			AttitudeKq:         8.0,
			AttitudeKw:         12.0,
		},

		LQR: guidance.LQRConfig{
			OrbitalRateRadS: orbitalRateRadS,
			VehicleMassKg:   4000,
			DtS:             0.1,
			PosWeight:       1,
			VelWeight:       40,
			ControlWeight:   0.05,
			RiccatiMaxIter:  50000,
			RiccatiTol:      1e-9,
		},

		MPC: guidance.MPCConfig{
			HorizonSteps:    20,
			StepS:           0.5,
			VehicleMassKg:   4000,
			OrbitalRateRadS: orbitalRateRadS,
			PosWeight:       4,
			VelWeight:       80,
			ControlWeight:   0.02,
			MaxThrustN:      450,
			MaxIterations:   40,
			BudgetFraction:  0.6,
			ConvergenceTol:  1e-6,
		},

		SMC: guidance.SMCConfig{
			VehicleMassKg: 4000,
			SurfaceLambda: 0.6,
			ReachingGain:  0.8,
			SwitchingGain: 0.05,
			BoundaryLayer: 0.02,
		},

		Adaptive: guidance.AdaptiveConfig{
			SurfaceLambda:   0.6,
			AdaptationGain:  20,
			MaxRateNPerS:    10,
			MaxEstimateN:    50,
			FeedbackGain:    60,
			MaxContribution: 0.25,
		},

		Power: subsystems.PowerConfig{
			CapacityKWh:    50,
			Efficiency:     0.95,
			MaxDischargeKW: 10,
			FaultSOC:       0.01,
		},

		Propulsion: subsystems.PropulsionConfig{
			MainThrustN:    450,
			VernierThrustN: 50,
			IspS:           300,
			DryMassKg:      4000,
			FuelKg:         500,
		},

		Grabbing: subsystems.GrabbingConfig{
			DeployTimeS:  3,
			RetractTimeS: 5,
			MaxDebrisKg:  500,
		},
	}
}
