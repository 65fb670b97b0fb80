package guidance

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LQR is the coarse-approach regulator. The feedback gain is computed
// once at construction by iterating the discrete Riccati equation on the
// Clohessy-Wiltshire linearized relative dynamics; each cycle is then a
// single 3x6 matrix-vector product, so the controller is always
// available as the fallback law.
type LQR struct {
	cfg LQRConfig
	k   *mat.Dense // 3x6 feedback gain

	iterations int // Riccati iterations used at synthesis
}

// NewLQR synthesizes the steady-state feedback gain for the given
// configuration. Fails if the Riccati iteration does not converge.
func NewLQR(cfg LQRConfig) (*LQR, error) {
	if cfg.DtS <= 0 {
		return nil, fmt.Errorf("lqr: invalid dt_s %g", cfg.DtS)
	}
	if cfg.VehicleMassKg <= 0 {
		return nil, fmt.Errorf("lqr: invalid vehicle_mass_kg %g", cfg.VehicleMassKg)
	}

	ad, bd := cwDiscrete(cfg.OrbitalRateRadS, cfg.VehicleMassKg, cfg.DtS)

	q := mat.NewDiagDense(6, []float64{
		cfg.PosWeight, cfg.PosWeight, cfg.PosWeight,
		cfg.VelWeight, cfg.VelWeight, cfg.VelWeight,
	})
	r := mat.NewDiagDense(3, []float64{
		cfg.ControlWeight, cfg.ControlWeight, cfg.ControlWeight,
	})

	k, iters, err := solveDiscreteRiccati(ad, bd, q, r, cfg.RiccatiMaxIter, cfg.RiccatiTol)
	if err != nil {
		return nil, err
	}

	return &LQR{cfg: cfg, k: k, iterations: iters}, nil
}

// Name identifies the law in command source tags and logs.
func (l *LQR) Name() string { return "LQR" }

// Compute returns the thrust demand u = -K*x for the current error
// state. Deterministic and O(1); never fails.
func (l *LQR) Compute(state RelativeState, dt float64) (Vec3, error) {
	x := mat.NewVecDense(6, []float64{
		state.Position[0], state.Position[1], state.Position[2],
		state.Velocity[0], state.Velocity[1], state.Velocity[2],
	})

	var u mat.VecDense
	u.MulVec(l.k, x)

	return Vec3{-u.AtVec(0), -u.AtVec(1), -u.AtVec(2)}, nil
}

// Reset is a no-op; the regulator carries no per-cycle state.
func (l *LQR) Reset() {}

// Gain returns a copy of the synthesized feedback gain, row-major 3x6.
func (l *LQR) Gain() []float64 {
	out := make([]float64, 18)
	for i := 0; i < 3; i++ {
		for j := 0; j < 6; j++ {
			out[i*6+j] = l.k.At(i, j)
		}
	}
	return out
}

// cwDiscrete builds the Euler-discretized Clohessy-Wiltshire state-space
// pair for orbital rate n and vehicle mass m: x = [p; v], u in newtons.
func cwDiscrete(n, massKg, dt float64) (ad, bd *mat.Dense) {
	a := mat.NewDense(6, 6, nil)
	a.Set(0, 3, 1)
	a.Set(1, 4, 1)
	a.Set(2, 5, 1)
	a.Set(3, 0, 3*n*n)
	a.Set(3, 4, 2*n)
	a.Set(4, 3, -2*n)
	a.Set(5, 2, -n*n)

	ad = mat.NewDense(6, 6, nil)
	ad.Scale(dt, a)
	for i := 0; i < 6; i++ {
		ad.Set(i, i, ad.At(i, i)+1)
	}

	bd = mat.NewDense(6, 3, nil)
	inv := dt / massKg
	bd.Set(3, 0, inv)
	bd.Set(4, 1, inv)
	bd.Set(5, 2, inv)
	return ad, bd
}

// solveDiscreteRiccati iterates P <- Q + A'PA - A'PB (R+B'PB)^-1 B'PA to
// its fixed point and returns K = (R+B'PB)^-1 B'PA.
func solveDiscreteRiccati(a, b *mat.Dense, q *mat.DiagDense, r *mat.DiagDense, maxIter int, tol float64) (*mat.Dense, int, error) {
	// CW dynamics at LEO rates contract slowly per step, so the fixed
	// point can take tens of thousands of iterations at a tight
	// tolerance. Iterations are 6x6 products; the budget is cheap.
	if maxIter <= 0 {
		maxIter = 50000
	}
	if tol <= 0 {
		tol = 1e-9
	}

	p := mat.NewDense(6, 6, nil)
	p.Copy(q)

	var atp, atpa, atpb, btp, btpb, gain, next mat.Dense
	for iter := 1; iter <= maxIter; iter++ {
		atp.Mul(a.T(), p)
		atpa.Mul(&atp, a)
		atpb.Mul(&atp, b)
		btp.Mul(b.T(), p)
		btpb.Mul(&btp, b)

		var s mat.Dense // R + B'PB
		s.CloneFrom(&btpb)
		for i := 0; i < 3; i++ {
			s.Set(i, i, s.At(i, i)+r.At(i, i))
		}
		var sInv mat.Dense
		if err := sInv.Inverse(&s); err != nil {
			return nil, iter, fmt.Errorf("lqr: riccati inner inverse: %w", err)
		}

		var btpa mat.Dense
		btpa.Mul(&btp, a)
		gain.Mul(&sInv, &btpa) // K = (R+B'PB)^-1 B'PA

		var corr mat.Dense
		corr.Mul(&atpb, &gain) // A'PB K

		next.Sub(&atpa, &corr)
		for i := 0; i < 6; i++ {
			next.Set(i, i, next.At(i, i)+q.At(i, i))
		}

		var diff mat.Dense
		diff.Sub(&next, p)
		delta := mat.Norm(&diff, 1)
		p.Copy(&next)

		if delta < tol {
			out := mat.NewDense(3, 6, nil)
			out.Copy(&gain)
			return out, iter, nil
		}
	}
	return nil, maxIter, fmt.Errorf("lqr: riccati iteration did not converge in %d steps", maxIter)
}
