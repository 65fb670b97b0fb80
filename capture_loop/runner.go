package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"debris-capture-core/config"
	"debris-capture-core/guidance"
	"debris-capture-core/mission"
	"debris-capture-core/subsystems"
	"debris-capture-core/utils"
)

// Range below which the simulated net makes debris contact.
const contactRangeM = 1.0

type RunnerConfig struct {
	ConfigPath   string
	ScenarioPath string
	Interface    string
	MapPath      string
}

// Runner owns the fixed-rate mission loop. In sim mode it closes the
// loop through the kinematic plant; in bus mode it talks to the real
// subsystem controllers over the avionics bus.
type Runner struct {
	cfg  *config.Config
	rc   RunnerConfig
	log  *utils.Logger
	scen Scenario

	seq *mission.Sequencer

	// sim mode
	plant    *Plant
	simProp  *subsystems.SimPropulsion
	simPower *subsystems.SimPower
	simGrab  *subsystems.SimGrabbing
	target   DebrisEntry
	injected struct {
		fuel, power, samples bool
	}

	// bus mode
	bmap   *utils.BusMap
	writer utils.BusWriter
	reader utils.BusReader
	status *BusStatus

	ticks uint64
}

func NewRunner(ctx context.Context, rc RunnerConfig, log *utils.Logger) (*Runner, error) {
	cfg, err := config.Load(rc.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	scen, err := LoadScenario(rc.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	r := &Runner{cfg: cfg, rc: rc, log: log, scen: scen}

	lqr, err := guidance.NewLQR(cfg.LQR)
	if err != nil {
		return nil, fmt.Errorf("lqr synthesis: %w", err)
	}
	mpc, err := guidance.NewMPC(cfg.MPC)
	if err != nil {
		return nil, fmt.Errorf("mpc setup: %w", err)
	}
	smc := guidance.NewSlidingMode(cfg.SMC)
	adaptive := guidance.NewAdaptive(cfg.Adaptive)

	arb := guidance.NewArbitrator(cfg.Arbitrator, log.Named("arb"), lqr, mpc, smc, adaptive)
	phases := mission.NewPhaseManager(cfg.Phases, log.Named("phase"))

	var prop subsystems.Propulsion
	var pow subsystems.Power
	var grab subsystems.Grabbing

	switch scen.Meta.Mode {
	case "sim":
		r.target, err = pickPlantTarget(scen)
		if err != nil {
			return nil, err
		}
		r.plant = NewPlant(scen.Initial, r.target, cfg.LQR.VehicleMassKg)
		r.simProp = subsystems.NewSimPropulsion(cfg.Propulsion)
		r.simPower = subsystems.NewSimPower(cfg.Power)
		r.simGrab = subsystems.NewSimGrabbing(cfg.Grabbing)
		prop, pow, grab = r.simProp, r.simPower, r.simGrab

	case "bus":
		bmap := utils.DefaultBusMap()
		if rc.MapPath != "" {
			bmap, err = utils.LoadBusMap(rc.MapPath)
			if err != nil {
				return nil, fmt.Errorf("load bus map: %w", err)
			}
		}
		writer, err := utils.NewSocketBusWriter(ctx, rc.Interface)
		if err != nil {
			return nil, err
		}
		reader, err := utils.NewSocketBusReader(ctx, rc.Interface)
		if err != nil {
			writer.Close()
			return nil, err
		}
		r.bmap = bmap
		r.writer = writer
		r.reader = reader
		r.status = &BusStatus{}
		prop = NewBusPropulsion(writer, bmap, r.status, log.Named("prop"))
		pow = NewBusPower(r.status)
		grab = NewBusGrabbing(writer, bmap, r.status)
	}

	r.seq = mission.NewSequencer(cfg.Sequencer, log.Named("seq"), phases, arb, prop, pow, grab)
	r.seq.SetCatalog(scen.Catalog(time.Now()))
	return r, nil
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting mission: scenario=%s mode=%s duration=%.0fs period=%dms",
		r.scen.Meta.Name, r.scen.Meta.Mode, r.scen.Timing.DurationS, r.cfg.Loop.PeriodMS)

	if r.scen.Meta.Mode == "bus" {
		return r.runBus(ctx)
	}
	return r.runSim(ctx)
}

// runSim closes the loop through the plant. Real-time scenarios pace on
// a ticker; shakedown scenarios run the same tick as fast as the CPU
// allows on a synthetic clock.
func (r *Runner) runSim(ctx context.Context) error {
	dt := r.cfg.Period()
	start := time.Now()
	endAfter := time.Duration(r.scen.Timing.DurationS * float64(time.Second))

	if !r.scen.Timing.RealTimeMode {
		for elapsed := time.Duration(0); elapsed <= endAfter; elapsed += time.Duration(dt * float64(time.Second)) {
			if err := ctx.Err(); err != nil {
				r.log.Warn("Context canceled; stopping after %d ticks", r.ticks)
				return err
			}
			done, err := r.simTick(ctx, start.Add(elapsed), elapsed.Seconds(), dt)
			if err != nil || done {
				return err
			}
		}
		r.log.Warn("Scenario duration exhausted with mission state %s", r.seq.Context().State)
		return nil
	}

	ticker := time.NewTicker(time.Duration(r.cfg.Loop.PeriodMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping after %d ticks", r.ticks)
			return ctx.Err()

		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed > endAfter {
				r.log.Warn("Scenario duration exhausted with mission state %s", r.seq.Context().State)
				return nil
			}
			done, err := r.simTick(ctx, now, elapsed.Seconds(), dt)
			if err != nil || done {
				return err
			}
		}
	}
}

// simTick runs one control period against the plant: sample, sequence,
// integrate the dispatched thrust, advance the mechanism timers.
func (r *Runner) simTick(ctx context.Context, now time.Time, t, dt float64) (bool, error) {
	r.applyInjectedFaults(t)

	sample := r.plant.Sample(now)
	res := r.seq.Tick(ctx, now, sample, dt)

	r.plant.Step(r.simProp.LastThrust(), dt)
	r.simGrab.Step(dt)

	// Debris contact model: an out net at contact range grabs the target.
	if r.simGrab.Deployed() && r.plant.Range() < contactRangeM {
		if r.simGrab.ConfirmCapture(r.target.MassKg) {
			r.log.Info("Contact at range %.2f m, captured %.0f kg", r.plant.Range(), r.target.MassKg)
		}
	}

	r.ticks++
	if r.ticks%50 == 0 {
		r.log.Debug("t=%.1f phase=%s state=%s range=%.1f m speed=%.3f m/s fuel=%.1f kg thrust=%s",
			t, res.Phase, res.State, r.plant.Range(), r.plant.Speed(),
			r.simProp.FuelKg(), res.Command.Source)
	}
	for _, f := range res.Faults {
		r.log.Warn("Fault: %s", f)
	}

	if res.State == mission.StateComplete || res.State == mission.StateAborted {
		r.log.Info("Mission finished: state=%s phase=%s ticks=%d captured=%.0f kg",
			res.State, res.Phase, r.ticks, r.simGrab.CapturedKg())
		return true, nil
	}
	return false, nil
}

// applyInjectedFaults fires the scenario's one-shot degradations.
func (r *Runner) applyInjectedFaults(t float64) {
	fi := r.scen.Faults
	if fi == nil {
		return
	}
	if fi.DrainFuelAtS > 0 && t >= fi.DrainFuelAtS && !r.injected.fuel {
		r.injected.fuel = true
		r.simProp.DrainFuel()
		r.log.Warn("Fault injection at t=%.1f: fuel drained", t)
	}
	if fi.DrainPowerAtS > 0 && t >= fi.DrainPowerAtS && !r.injected.power {
		r.injected.power = true
		r.simPower.DrainCharge()
		r.log.Warn("Fault injection at t=%.1f: battery drained", t)
	}
	if fi.DropSamplesAtS > 0 && t >= fi.DropSamplesAtS && !r.injected.samples {
		r.injected.samples = true
		r.plant.HoldSamples()
		r.log.Warn("Fault injection at t=%.1f: estimator samples held", t)
	}
}

// runBus drives the loop from bus traffic: navigation samples arrive on
// rxChan, subsystem status folds into the shared cache, and each ticker
// period runs the sequencer against the freshest sample.
func (r *Runner) runBus(ctx context.Context) error {
	rxChan := make(chan guidance.RelativeState, 100)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.receiveLoop(gctx, rxChan)
	})
	g.Go(func() error {
		return r.busTickLoop(gctx, rxChan)
	})
	return g.Wait()
}

func (r *Runner) busTickLoop(ctx context.Context, rxChan <-chan guidance.RelativeState) error {
	dt := r.cfg.Period()
	start := time.Now()
	endAfter := time.Duration(r.scen.Timing.DurationS * float64(time.Second))

	ticker := time.NewTicker(time.Duration(r.cfg.Loop.PeriodMS) * time.Millisecond)
	defer ticker.Stop()

	var sample guidance.RelativeState

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping after %d ticks", r.ticks)
			return ctx.Err()

		case s := <-rxChan:
			sample = s
			r.log.Trace("RX nav range=%.2f m speed=%.3f m/s valid=%v", s.Range(), s.Speed(), s.Valid)

		case now := <-ticker.C:
			if now.Sub(start) > endAfter {
				r.log.Warn("Scenario duration exhausted with mission state %s", r.seq.Context().State)
				return nil
			}

			res := r.seq.Tick(ctx, now, sample, dt)
			r.ticks++
			if r.ticks%50 == 0 {
				r.log.Debug("t=%.1f phase=%s state=%s range=%.1f m source=%s",
					now.Sub(start).Seconds(), res.Phase, res.State, sample.Range(), res.Command.Source)
			}
			for _, f := range res.Faults {
				r.log.Warn("Fault: %s", f)
			}

			if res.State == mission.StateComplete || res.State == mission.StateAborted {
				r.log.Info("Mission finished: state=%s phase=%s ticks=%d", res.State, res.Phase, r.ticks)
				return nil
			}
		}
	}
}

// receiveLoop decodes inbound frames. Navigation position and velocity
// arrive as a pair; the position frame carries the validity bit and
// closes out one sample.
func (r *Runner) receiveLoop(ctx context.Context, rxChan chan<- guidance.RelativeState) error {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	var lastVel guidance.Vec3

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Error("RX error: %v", err)
			continue
		}

		switch uint32(frame.ID) {
		case utils.FrameNavVel:
			values, err := r.bmap.DecodeFrame(uint32(frame.ID), frame.Data[:frame.Length])
			if err != nil {
				r.log.Error("RX decode 0x%X: %v", uint32(frame.ID), err)
				continue
			}
			lastVel = guidance.Vec3{values["vel_ms_x"], values["vel_ms_y"], values["vel_ms_z"]}

		case utils.FrameNavPos:
			values, err := r.bmap.DecodeFrame(uint32(frame.ID), frame.Data[:frame.Length])
			if err != nil {
				r.log.Error("RX decode 0x%X: %v", uint32(frame.ID), err)
				continue
			}
			sample := guidance.RelativeState{
				Position:  guidance.Vec3{values["pos_m_x"], values["pos_m_y"], values["pos_m_z"]},
				Velocity:  lastVel,
				Attitude:  guidance.IdentityQuat,
				Timestamp: time.Now(),
				Valid:     values["nav_valid"] >= 0.5,
			}
			select {
			case rxChan <- sample:
			default:
				// channel full, drop
			}

		case utils.FramePowerStat, utils.FrameGrabStat:
			if err := r.status.ApplyFrame(r.bmap, frame); err != nil {
				r.log.Error("RX status 0x%X: %v", uint32(frame.ID), err)
			}

		default:
			r.log.Trace("RX id=0x%X len=%d data=% X", uint32(frame.ID), frame.Length, frame.Data[:frame.Length])
		}
	}
}

// pickPlantTarget runs the mission's own target selection over the
// scenario catalog so the plant simulates the object the sequencer will
// lock.
func pickPlantTarget(scen Scenario) (DebrisEntry, error) {
	target, err := mission.SelectTarget(scen.Catalog(time.Now()), time.Now())
	if err != nil {
		return DebrisEntry{}, fmt.Errorf("scenario target selection: %w", err)
	}
	for _, d := range scen.Debris {
		if d.Name == target.Name {
			return d, nil
		}
	}
	return DebrisEntry{}, fmt.Errorf("scenario target %q not in debris list", target.Name)
}
