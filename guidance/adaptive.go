package guidance

// Adaptive maintains an online estimate of the unmodeled disturbance
// force (plume impingement, tether drag, captured-mass offset) and
// feeds a compensating term back each cycle. During capture its output
// is blended additively, with a bounded contribution, on top of the
// sliding-mode command; it never replaces it.
type Adaptive struct {
	cfg AdaptiveConfig

	estimate Vec3 // disturbance force estimate, N
	updates  int
}

// NewAdaptive creates the estimator with a zero initial estimate.
func NewAdaptive(cfg AdaptiveConfig) *Adaptive {
	return &Adaptive{cfg: cfg}
}

// Name identifies the law in command source tags and logs.
func (a *Adaptive) Name() string { return "ADAPTIVE" }

// Compute advances the disturbance estimate by one bounded step and
// returns the compensation thrust. The per-cycle estimate movement is
// clamped to MaxRateNPerS*dt and the estimate itself to MaxEstimateN,
// so a burst of bad samples cannot run the gain away.
func (a *Adaptive) Compute(state RelativeState, dt float64) (Vec3, error) {
	a.updates++

	var u Vec3
	maxStep := a.cfg.MaxRateNPerS * dt
	for i := 0; i < 3; i++ {
		s := state.Velocity[i] + a.cfg.SurfaceLambda*state.Position[i]

		step := clampFloat(a.cfg.AdaptationGain*s*dt, -maxStep, maxStep)
		a.estimate[i] = clampFloat(a.estimate[i]+step, -a.cfg.MaxEstimateN, a.cfg.MaxEstimateN)

		u[i] = -a.estimate[i] - a.cfg.FeedbackGain*s
	}
	return u, nil
}

// Reset clears the learned estimate.
func (a *Adaptive) Reset() {
	a.estimate = Vec3{}
	a.updates = 0
}

// Estimate returns the current disturbance force estimate.
func (a *Adaptive) Estimate() Vec3 { return a.estimate }
