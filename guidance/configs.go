package guidance

// ActuatorBounds holds the physical limits shared by every controller
// and enforced again by the arbitrator before dispatch.
type ActuatorBounds struct {
	MaxThrustN        float64 `json:"max_thrust_n" yaml:"max_thrust_n"`
	MaxTorqueNm       float64 `json:"max_torque_nm" yaml:"max_torque_nm"`
	MaxThrustPerJetN  float64 `json:"max_thrust_per_jet_n" yaml:"max_thrust_per_jet_n"`
	MaxDeltaPerCycleN float64 `json:"max_delta_per_cycle_n" yaml:"max_delta_per_cycle_n"`
}

// LQRConfig holds the coarse-approach regulator parameters. The gain is
// synthesized once at construction from the discretized relative-motion
// dynamics; nothing here is touched after init.
type LQRConfig struct {
	OrbitalRateRadS float64 `json:"orbital_rate_rad_s" yaml:"orbital_rate_rad_s"`
	VehicleMassKg   float64 `json:"vehicle_mass_kg" yaml:"vehicle_mass_kg"`
	DtS             float64 `json:"dt_s" yaml:"dt_s"`

	PosWeight     float64 `json:"pos_weight" yaml:"pos_weight"`
	VelWeight     float64 `json:"vel_weight" yaml:"vel_weight"`
	ControlWeight float64 `json:"control_weight" yaml:"control_weight"`

	RiccatiMaxIter int     `json:"riccati_max_iter" yaml:"riccati_max_iter"`
	RiccatiTol     float64 `json:"riccati_tol" yaml:"riccati_tol"`
}

// MPCConfig holds the fine-approach optimizer parameters.
type MPCConfig struct {
	HorizonSteps  int     `json:"horizon_steps" yaml:"horizon_steps"`
	StepS         float64 `json:"step_s" yaml:"step_s"`
	VehicleMassKg float64 `json:"vehicle_mass_kg" yaml:"vehicle_mass_kg"`

	OrbitalRateRadS float64 `json:"orbital_rate_rad_s" yaml:"orbital_rate_rad_s"`

	PosWeight     float64 `json:"pos_weight" yaml:"pos_weight"`
	VelWeight     float64 `json:"vel_weight" yaml:"vel_weight"`
	ControlWeight float64 `json:"control_weight" yaml:"control_weight"`

	MaxThrustN float64 `json:"max_thrust_n" yaml:"max_thrust_n"`

	// Solver budget. The solve aborts at MaxIterations or at
	// BudgetFraction of the control period, whichever trips first.
	MaxIterations  int     `json:"max_iterations" yaml:"max_iterations"`
	BudgetFraction float64 `json:"budget_fraction" yaml:"budget_fraction"`
	ConvergenceTol float64 `json:"convergence_tol" yaml:"convergence_tol"`
}

// SMCConfig holds the sliding-mode parameters for the capture phase.
type SMCConfig struct {
	VehicleMassKg float64 `json:"vehicle_mass_kg" yaml:"vehicle_mass_kg"`

	// Sliding surface s = v + SurfaceLambda*p, per axis.
	SurfaceLambda float64 `json:"surface_lambda" yaml:"surface_lambda"`
	ReachingGain  float64 `json:"reaching_gain" yaml:"reaching_gain"`
	SwitchingGain float64 `json:"switching_gain" yaml:"switching_gain"`

	// Boundary layer width in surface units; the switching term is
	// linear inside it to bound chattering.
	BoundaryLayer float64 `json:"boundary_layer" yaml:"boundary_layer"`
}

// AdaptiveConfig holds the online disturbance estimator parameters. The
// adaptive output supplements the sliding-mode command during capture;
// it never replaces it.
type AdaptiveConfig struct {
	SurfaceLambda  float64 `json:"surface_lambda" yaml:"surface_lambda"`
	AdaptationGain float64 `json:"adaptation_gain" yaml:"adaptation_gain"`

	// Per-second bound on estimate movement and absolute bound on the
	// estimate itself.
	MaxRateNPerS float64 `json:"max_rate_n_per_s" yaml:"max_rate_n_per_s"`
	MaxEstimateN float64 `json:"max_estimate_n" yaml:"max_estimate_n"`
	FeedbackGain float64 `json:"feedback_gain" yaml:"feedback_gain"`

	// Fraction of thrust authority the adaptive term may contribute.
	MaxContribution float64 `json:"max_contribution" yaml:"max_contribution"`
}

// ArbitratorConfig holds handoff, limit and staleness parameters.
type ArbitratorConfig struct {
	Bounds ActuatorBounds `json:"bounds" yaml:"bounds"`

	BlendWindowS float64 `json:"blend_window_s" yaml:"blend_window_s"`

	StaleAfterS      float64 `json:"stale_after_s" yaml:"stale_after_s"`
	AbortStaleAfterS float64 `json:"abort_stale_after_s" yaml:"abort_stale_after_s"`

	MinFuelHeadroomKg  float64 `json:"min_fuel_headroom_kg" yaml:"min_fuel_headroom_kg"`
	MinPowerHeadroomKW float64 `json:"min_power_headroom_kw" yaml:"min_power_headroom_kw"`

	// Attitude stabilization applied in every phase.
	AttitudeKq float64 `json:"attitude_kq" yaml:"attitude_kq"`
	AttitudeKw float64 `json:"attitude_kw" yaml:"attitude_kw"`
}
