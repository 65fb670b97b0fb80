package main

import (
	"context"
	"sync"

	"go.einride.tech/can"

	"debris-capture-core/guidance"
	"debris-capture-core/subsystems"
	"debris-capture-core/utils"
)

// BusStatus caches the latest decoded subsystem status frames. The RX
// goroutine writes it; the bus-backed adapters read it at tick
// boundaries.
type BusStatus struct {
	mu sync.Mutex

	powerStatSeen   bool
	powerHeadroomKW float64
	powerSOC        float64
	powerFault      bool
	fuelKg          float64
	fuelFault       bool

	netDeployed        bool
	captureConfirmed   bool
	retractionProgress float64
	capturedMassKg     float64

	events []subsystems.Event
}

// ApplyFrame folds one received status frame into the cache, emitting
// edge-triggered grabbing events.
func (b *BusStatus) ApplyFrame(bmap *utils.BusMap, frame can.Frame) error {
	values, err := bmap.DecodeFrame(uint32(frame.ID), frame.Data[:frame.Length])
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch uint32(frame.ID) {
	case utils.FramePowerStat:
		b.powerStatSeen = true
		b.powerHeadroomKW = values["headroom_kw"]
		b.powerSOC = values["soc"]
		b.powerFault = values["fault"] >= 0.5
		b.fuelKg = values["fuel_kg"]
		b.fuelFault = values["fuel_fault"] >= 0.5

	case utils.FrameGrabStat:
		deployed := values["net_deployed"] >= 0.5
		confirmed := values["capture_confirmed"] >= 0.5
		progress := values["retraction_progress"]

		if deployed && !b.netDeployed {
			b.events = append(b.events, subsystems.EventNetDeployed)
		}
		if confirmed && !b.captureConfirmed {
			b.events = append(b.events, subsystems.EventCaptureConfirmed)
		}
		if progress >= 1 && b.retractionProgress < 1 {
			b.events = append(b.events, subsystems.EventRetractionComplete)
		}
		b.netDeployed = deployed
		b.captureConfirmed = confirmed
		b.retractionProgress = progress
		b.capturedMassKg = values["captured_mass_kg"]
	}
	return nil
}

// BusPropulsion sends thrust, torque and duty frames each tick and
// reads fuel headroom from the cached power status.
type BusPropulsion struct {
	writer utils.BusWriter
	bmap   *utils.BusMap
	status *BusStatus
	log    *utils.Logger
}

func NewBusPropulsion(writer utils.BusWriter, bmap *utils.BusMap, status *BusStatus, log *utils.Logger) *BusPropulsion {
	return &BusPropulsion{writer: writer, bmap: bmap, status: status, log: log}
}

func (p *BusPropulsion) Dispatch(ctx context.Context, cmd guidance.ControlCommand, dt float64) error {
	thrust, err := p.bmap.EncodeFrame("GNC_THRUST_CMD", map[string]float64{
		"thrust_n_x": cmd.ThrustN[0],
		"thrust_n_y": cmd.ThrustN[1],
		"thrust_n_z": cmd.ThrustN[2],
		"cmd_valid":  boolToFloat(cmd.Valid),
	})
	if err != nil {
		return err
	}
	torque, err := p.bmap.EncodeFrame("GNC_TORQUE_CMD", map[string]float64{
		"torque_nm_x": cmd.TorqueNm[0],
		"torque_nm_y": cmd.TorqueNm[1],
		"torque_nm_z": cmd.TorqueNm[2],
	})
	if err != nil {
		return err
	}
	duty, err := p.bmap.EncodeFrame("GNC_DUTY_CMD", map[string]float64{
		"duty_xp": cmd.Duty[guidance.ThrusterXPos],
		"duty_xn": cmd.Duty[guidance.ThrusterXNeg],
		"duty_yp": cmd.Duty[guidance.ThrusterYPos],
		"duty_yn": cmd.Duty[guidance.ThrusterYNeg],
		"duty_zp": cmd.Duty[guidance.ThrusterZPos],
		"duty_zn": cmd.Duty[guidance.ThrusterZNeg],
	})
	if err != nil {
		return err
	}

	for _, frame := range []can.Frame{thrust, torque, duty} {
		if err := p.writer.WriteFrame(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}

func (p *BusPropulsion) Burn(ctx context.Context, thrustN, durationS float64) error {
	frame, err := p.bmap.EncodeFrame("GNC_BURN_CMD", map[string]float64{
		"burn_thrust_n":   thrustN,
		"burn_duration_s": durationS,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteFrame(ctx, frame)
}

func (p *BusPropulsion) FuelKg() float64 {
	p.status.mu.Lock()
	defer p.status.mu.Unlock()
	return p.status.fuelKg
}

func (p *BusPropulsion) Faulted() bool {
	p.status.mu.Lock()
	defer p.status.mu.Unlock()
	return p.status.fuelFault
}

// BusPower reads headroom from the cached power status. Allocation
// requests ride on the duty command the propulsion adapter already
// sends, so Allocate only validates context here.
type BusPower struct {
	status *BusStatus
}

func NewBusPower(status *BusStatus) *BusPower { return &BusPower{status: status} }

func (p *BusPower) Allocate(ctx context.Context, requestKW, dt float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.status.mu.Lock()
	defer p.status.mu.Unlock()
	if requestKW > p.status.powerHeadroomKW {
		return p.status.powerHeadroomKW, nil
	}
	return requestKW, nil
}

func (p *BusPower) HeadroomKW() float64 {
	p.status.mu.Lock()
	defer p.status.mu.Unlock()
	return p.status.powerHeadroomKW
}

func (p *BusPower) Faulted() bool {
	p.status.mu.Lock()
	defer p.status.mu.Unlock()
	return p.status.powerFault
}

// StatusKnown is false until the first power status frame is cached,
// so the startup ticks hold a safe command instead of reading the
// zero-valued cache as depleted resources.
func (p *BusPower) StatusKnown() bool {
	p.status.mu.Lock()
	defer p.status.mu.Unlock()
	return p.status.powerStatSeen
}

// BusGrabbing sends discrete grab commands and replays status edges as
// events.
type BusGrabbing struct {
	writer utils.BusWriter
	bmap   *utils.BusMap
	status *BusStatus
}

func NewBusGrabbing(writer utils.BusWriter, bmap *utils.BusMap, status *BusStatus) *BusGrabbing {
	return &BusGrabbing{writer: writer, bmap: bmap, status: status}
}

func (g *BusGrabbing) DeployNet(ctx context.Context) error {
	return g.sendCommand(ctx, 1)
}

func (g *BusGrabbing) Retract(ctx context.Context) error {
	return g.sendCommand(ctx, 2)
}

func (g *BusGrabbing) Stow(ctx context.Context) error {
	return g.sendCommand(ctx, 3)
}

func (g *BusGrabbing) sendCommand(ctx context.Context, code float64) error {
	frame, err := g.bmap.EncodeFrame("GNC_GRAB_CMD", map[string]float64{"grab_command": code})
	if err != nil {
		return err
	}
	return g.writer.WriteFrame(ctx, frame)
}

func (g *BusGrabbing) Drain() []subsystems.Event {
	g.status.mu.Lock()
	defer g.status.mu.Unlock()
	out := g.status.events
	g.status.events = nil
	return out
}

func (g *BusGrabbing) Progress() float64 {
	g.status.mu.Lock()
	defer g.status.mu.Unlock()
	return g.status.retractionProgress
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
