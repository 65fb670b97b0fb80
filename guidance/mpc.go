package guidance

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// MPC is the fine-approach controller. Each cycle it solves a condensed
// finite-horizon QP over the discretized relative dynamics and applies
// only the first command of the optimal sequence. The solve is bounded
// by both an iteration budget and a wall-clock deadline; exhausting
// either without convergence returns ErrSolverInfeasible and the
// arbitrator falls back to LQR for that cycle.
type MPC struct {
	cfg MPCConfig

	// Condensed prediction matrices, built once: X = phi*x0 + gamma*U.
	phi   *mat.Dense // 6N x 6
	gamma *mat.Dense // 6N x 3N
	h     *mat.Dense // 3N x 3N, gamma'Qbar gamma + Rbar
	hInv  *mat.Dense // factor for the unconstrained Newton step
	f     *mat.Dense // 3N x 6,  gamma'Qbar phi

	stepSize float64 // 1/L from a power-iteration Lipschitz estimate

	solveCount int
	failCount  int
}

// NewMPC precomputes the prediction and Hessian matrices for the
// configured horizon.
func NewMPC(cfg MPCConfig) (*MPC, error) {
	if cfg.HorizonSteps < 1 {
		return nil, fmt.Errorf("mpc: invalid horizon_steps %d", cfg.HorizonSteps)
	}
	if cfg.StepS <= 0 {
		return nil, fmt.Errorf("mpc: invalid step_s %g", cfg.StepS)
	}
	if cfg.VehicleMassKg <= 0 {
		return nil, fmt.Errorf("mpc: invalid vehicle_mass_kg %g", cfg.VehicleMassKg)
	}

	n := cfg.HorizonSteps
	ad, bd := cwDiscrete(cfg.OrbitalRateRadS, cfg.VehicleMassKg, cfg.StepS)

	// Stack powers of Ad into phi and the lower-triangular impulse
	// responses into gamma.
	phi := mat.NewDense(6*n, 6, nil)
	gamma := mat.NewDense(6*n, 3*n, nil)

	apow := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		apow.Set(i, i, 1)
	}
	blocks := make([]*mat.Dense, n) // blocks[k] = Ad^k * Bd
	for k := 0; k < n; k++ {
		blk := mat.NewDense(6, 3, nil)
		blk.Mul(apow, bd)
		blocks[k] = blk

		var nextPow mat.Dense
		nextPow.Mul(ad, apow)
		apow.Copy(&nextPow)

		phi.Slice(6*k, 6*k+6, 0, 6).(*mat.Dense).Copy(apow)
	}
	for row := 0; row < n; row++ {
		for col := 0; col <= row; col++ {
			gamma.Slice(6*row, 6*row+6, 3*col, 3*col+3).(*mat.Dense).Copy(blocks[row-col])
		}
	}

	qbar := mat.NewDiagDense(6*n, nil)
	for k := 0; k < n; k++ {
		for i := 0; i < 3; i++ {
			qbar.SetDiag(6*k+i, cfg.PosWeight)
			qbar.SetDiag(6*k+3+i, cfg.VelWeight)
		}
	}

	var gq, h, f mat.Dense
	gq.Mul(gamma.T(), qbar)
	h.Mul(&gq, gamma)
	for i := 0; i < 3*n; i++ {
		h.Set(i, i, h.At(i, i)+cfg.ControlWeight)
	}
	f.Mul(&gq, phi)

	hD := mat.NewDense(3*n, 3*n, nil)
	hD.Copy(&h)
	fD := mat.NewDense(3*n, 6, nil)
	fD.Copy(&f)

	hInv := mat.NewDense(3*n, 3*n, nil)
	if err := hInv.Inverse(hD); err != nil {
		return nil, fmt.Errorf("mpc: hessian inverse: %w", err)
	}

	m := &MPC{
		cfg:   cfg,
		phi:   phi,
		gamma: gamma,
		h:     hD,
		hInv:  hInv,
		f:     fD,
	}
	m.stepSize = 1.0 / (2.0 * m.lipschitzEstimate())
	return m, nil
}

// Name identifies the law in command source tags and logs.
func (m *MPC) Name() string { return "MPC" }

// Compute runs one receding-horizon solve. dt is the control period the
// wall-clock budget is derived from.
func (m *MPC) Compute(state RelativeState, dt float64) (Vec3, error) {
	m.solveCount++

	deadline := time.Now().Add(m.budget(dt))

	x0 := mat.NewVecDense(6, []float64{
		state.Position[0], state.Position[1], state.Position[2],
		state.Velocity[0], state.Velocity[1], state.Velocity[2],
	})

	// Constant gradient term: grad = 2(H U + F x0).
	var fx mat.VecDense
	fx.MulVec(m.f, x0)

	// Start from the unconstrained minimizer U = -H^-1 F x0 projected
	// onto the actuator box, then refine with projected gradient steps.
	// When no bound is active the start point is already optimal.
	nv, _ := m.h.Dims()
	u := mat.NewVecDense(nv, nil)
	u.MulVec(m.hInv, &fx)
	u.ScaleVec(-1, u)
	m.project(u)

	// Tolerance scales with the problem data so the cutoff is meaningful
	// at kilometer range and at capture range alike.
	tol := m.cfg.ConvergenceTol * (1 + mat.Norm(&fx, 2))

	grad := mat.NewVecDense(nv, nil)
	converged := false
	for iter := 0; iter < m.cfg.MaxIterations; iter++ {
		if time.Now().After(deadline) {
			break
		}

		grad.MulVec(m.h, u)
		grad.AddVec(grad, &fx)
		grad.ScaleVec(2, grad)

		if m.projectedResidual(u, grad) < tol {
			converged = true
			break
		}

		u.AddScaledVec(u, -m.stepSize, grad)
		m.project(u)
	}

	if !converged {
		m.failCount++
		return Vec3{}, ErrSolverInfeasible
	}

	return Vec3{u.AtVec(0), u.AtVec(1), u.AtVec(2)}, nil
}

// Reset clears the solver counters.
func (m *MPC) Reset() {
	m.solveCount = 0
	m.failCount = 0
}

// Diagnostics reports solver health for logging.
func (m *MPC) Diagnostics() (solves, failures int) {
	return m.solveCount, m.failCount
}

func (m *MPC) budget(dt float64) time.Duration {
	frac := m.cfg.BudgetFraction
	if frac <= 0 || frac > 1 {
		frac = 0.5
	}
	return time.Duration(frac * dt * float64(time.Second))
}

// project clamps every control component into the actuator box.
func (m *MPC) project(u *mat.VecDense) {
	data := u.RawVector().Data
	for i := range data {
		data[i] = clampFloat(data[i], -m.cfg.MaxThrustN, m.cfg.MaxThrustN)
	}
}

// projectedResidual measures the gradient restricted to directions not
// blocked by an active bound.
func (m *MPC) projectedResidual(u, grad *mat.VecDense) float64 {
	ud := u.RawVector().Data
	gd := grad.RawVector().Data
	sum := 0.0
	for i := range ud {
		atLower := ud[i] <= -m.cfg.MaxThrustN && gd[i] > 0
		atUpper := ud[i] >= m.cfg.MaxThrustN && gd[i] < 0
		if atLower || atUpper {
			continue
		}
		sum += gd[i] * gd[i]
	}
	return math.Sqrt(sum)
}

// lipschitzEstimate runs a short power iteration on H to bound the
// gradient step size.
func (m *MPC) lipschitzEstimate() float64 {
	nv, _ := m.h.Dims()
	v := mat.NewVecDense(nv, nil)
	for i := 0; i < nv; i++ {
		v.SetVec(i, 1)
	}
	var w mat.VecDense
	lambda := 1.0
	for i := 0; i < 20; i++ {
		w.MulVec(m.h, v)
		lambda = mat.Norm(&w, 2)
		if lambda == 0 {
			return 1
		}
		v.ScaleVec(1/lambda, &w)
	}
	return math.Max(lambda, 1e-9)
}
