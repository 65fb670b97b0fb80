package guidance

import "math"

// SlidingMode is the capture-range controller. It drives the per-axis
// surface s = v + lambda*p to zero with a reaching term plus a switching
// term softened by a boundary layer, trading fuel economy for robust
// millimeter-scale tracking inside 5 m.
type SlidingMode struct {
	cfg SMCConfig

	lastSurface Vec3
}

// NewSlidingMode creates the controller; no precomputation is needed.
func NewSlidingMode(cfg SMCConfig) *SlidingMode {
	return &SlidingMode{cfg: cfg}
}

// Name identifies the law in command source tags and logs.
func (c *SlidingMode) Name() string { return "SMC" }

// Compute returns the reaching-law thrust for the current error state.
func (c *SlidingMode) Compute(state RelativeState, dt float64) (Vec3, error) {
	var u Vec3
	for i := 0; i < 3; i++ {
		s := state.Velocity[i] + c.cfg.SurfaceLambda*state.Position[i]
		c.lastSurface[i] = s
		u[i] = -c.cfg.VehicleMassKg * (c.cfg.ReachingGain*s + c.cfg.SwitchingGain*saturate(s, c.cfg.BoundaryLayer))
	}
	return u, nil
}

// Reset clears the surface diagnostic.
func (c *SlidingMode) Reset() {
	c.lastSurface = Vec3{}
}

// Surface returns the most recent sliding-surface value per axis.
func (c *SlidingMode) Surface() Vec3 { return c.lastSurface }

// saturate is sign(s) outside the boundary layer and linear inside it,
// which bounds command chattering near the surface.
func saturate(s, layer float64) float64 {
	if layer <= 0 {
		if s > 0 {
			return 1
		}
		if s < 0 {
			return -1
		}
		return 0
	}
	if math.Abs(s) <= layer {
		return s / layer
	}
	if s > 0 {
		return 1
	}
	return -1
}
