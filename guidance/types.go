package guidance

import (
	"errors"
	"math"
	"time"
)

// Vec3 is a 3-component vector in the debris-relative LVLH frame.
type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3   { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3   { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Norm returns the Euclidean magnitude.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Clamped limits the vector magnitude to max, preserving direction.
func (v Vec3) Clamped(max float64) Vec3 {
	n := v.Norm()
	if n <= max || n == 0 {
		return v
	}
	return v.Scale(max / n)
}

// Quat is a unit quaternion, scalar first: [w, x, y, z].
type Quat [4]float64

// IdentityQuat is the no-rotation attitude.
var IdentityQuat = Quat{1, 0, 0, 0}

// Vec returns the vector part of the quaternion.
func (q Quat) Vec() Vec3 { return Vec3{q[1], q[2], q[3]} }

// RelativeState is one estimator sample expressed in the debris-relative
// frame. Immutable once produced; superseded by the next sample.
type RelativeState struct {
	Position        Vec3
	Velocity        Vec3
	Attitude        Quat
	AngularVelocity Vec3
	Timestamp       time.Time
	Valid           bool
}

// Range returns the distance to the target.
func (s RelativeState) Range() float64 { return s.Position.Norm() }

// Speed returns the relative closing speed magnitude.
func (s RelativeState) Speed() float64 { return s.Velocity.Norm() }

// Age returns how old the sample is at the given tick time.
func (s RelativeState) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// ControlCommand is the actuator command issued once per tick. It is
// produced fresh each cycle and never mutated after issue.
type ControlCommand struct {
	ThrustN   Vec3
	TorqueNm  Vec3
	Duty      [ThrusterCount]float64
	Source    string
	Valid     bool
	Timestamp time.Time
}

// ThrusterCount is the RCS cluster size: one opposed pair per body axis.
const ThrusterCount = 6

// Thruster indexing for the duty-cycle set.
const (
	ThrusterXPos = iota
	ThrusterXNeg
	ThrusterYPos
	ThrusterYNeg
	ThrusterZPos
	ThrusterZNeg
)

// Phase is the mission phase driving controller selection. Transitions
// are monotone forward except PhaseAborted, which is reachable from any
// phase and terminal.
type Phase int

const (
	PhaseDeployed Phase = iota
	PhaseCoarseApproach
	PhaseFineApproach
	PhaseCapture
	PhaseRetraction
	PhaseReentry
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseDeployed:
		return "DEPLOYED"
	case PhaseCoarseApproach:
		return "COARSE_APPROACH"
	case PhaseFineApproach:
		return "FINE_APPROACH"
	case PhaseCapture:
		return "CAPTURE"
	case PhaseRetraction:
		return "RETRACTION"
	case PhaseReentry:
		return "REENTRY"
	case PhaseAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the phase ends the mission.
func (p Phase) Terminal() bool {
	return p == PhaseReentry || p == PhaseAborted
}

// ErrSolverInfeasible is returned by MPC when the horizon optimization
// cannot converge inside its iteration/wall-clock budget. The cycle
// falls back to the LQR command.
var ErrSolverInfeasible = errors.New("mpc: no feasible solution within budget")

// FaultCode classifies a raised fault.
type FaultCode int

const (
	FaultSolverInfeasible FaultCode = iota
	FaultSensorStale
	FaultActuatorSaturation
	FaultFuelDepleted
	FaultPowerFault
	FaultCaptureFailed
	FaultDispatchTimeout
)

func (c FaultCode) String() string {
	switch c {
	case FaultSolverInfeasible:
		return "SOLVER_INFEASIBLE"
	case FaultSensorStale:
		return "SENSOR_STALE"
	case FaultActuatorSaturation:
		return "ACTUATOR_SATURATION"
	case FaultFuelDepleted:
		return "FUEL_DEPLETED"
	case FaultPowerFault:
		return "POWER_FAULT"
	case FaultCaptureFailed:
		return "CAPTURE_FAILED"
	case FaultDispatchTimeout:
		return "DISPATCH_TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Fault is a raised condition surfaced to the driver every tick. Fatal
// faults are escalated to the sequencer, which is the only authority
// allowed to enter PhaseAborted.
type Fault struct {
	Code    FaultCode
	Fatal   bool
	Message string
	Time    time.Time
}

func (f Fault) String() string {
	sev := "degraded"
	if f.Fatal {
		sev = "fatal"
	}
	return f.Code.String() + " (" + sev + "): " + f.Message
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
