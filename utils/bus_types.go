package utils

import "sort"

// SignalDef describes one packed signal on an avionics bus frame.
// Little-endian bit layout only; values are fixed-point with a factor
// and offset, clamped to [Min, Max] on encode.
type SignalDef struct {
	Name      string
	StartBit  int
	BitLength int
	Signed    bool
	Factor    float64
	Offset    float64
	Min       float64
	Max       float64
	Default   float64
	Unit      string
}

// FrameDef describes one bus frame: actuator commands out, subsystem
// status in.
type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string // "tx" from the guidance core, "rx" toward it
	CycleMS   int
	Signals   []SignalDef
}

// BusMap indexes the avionics frame catalog both ways.
type BusMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func (m *BusMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Frame IDs on the spacecraft avionics bus.
const (
	FrameThrustCmd uint32 = 0x101
	FrameTorqueCmd uint32 = 0x102
	FrameDutyCmd   uint32 = 0x103
	FrameBurnCmd   uint32 = 0x104
	FrameGrabCmd   uint32 = 0x105
	FramePowerStat uint32 = 0x201
	FrameGrabStat  uint32 = 0x202
	FrameNavPos    uint32 = 0x301
	FrameNavVel    uint32 = 0x302
)

// DefaultBusMap returns the built-in avionics frame catalog. A CSV map
// loaded at startup overrides it when present.
func DefaultBusMap() *BusMap {
	m := &BusMap{ByID: map[uint32]*FrameDef{}, ByName: map[string]*FrameDef{}}

	add := func(fd *FrameDef) {
		m.ByID[fd.ID] = fd
		m.ByName[fd.Name] = fd
	}

	triplet := func(prefix string, factor, min, max float64, unit string) []SignalDef {
		axes := []string{"x", "y", "z"}
		sigs := make([]SignalDef, 0, 3)
		for i, ax := range axes {
			sigs = append(sigs, SignalDef{
				Name: prefix + "_" + ax, StartBit: 16 * i, BitLength: 16,
				Signed: true, Factor: factor, Min: min, Max: max, Unit: unit,
			})
		}
		return sigs
	}

	add(&FrameDef{
		ID: FrameThrustCmd, Name: "GNC_THRUST_CMD", DLC: 8, Direction: "tx", CycleMS: 100,
		Signals: append(triplet("thrust_n", 0.05, -1600, 1600, "N"),
			SignalDef{Name: "cmd_valid", StartBit: 48, BitLength: 1, Max: 1}),
	})
	add(&FrameDef{
		ID: FrameTorqueCmd, Name: "GNC_TORQUE_CMD", DLC: 8, Direction: "tx", CycleMS: 100,
		Signals: triplet("torque_nm", 0.01, -320, 320, "Nm"),
	})

	duties := make([]SignalDef, 0, 6)
	jets := []string{"xp", "xn", "yp", "yn", "zp", "zn"}
	for i, jet := range jets {
		duties = append(duties, SignalDef{
			Name: "duty_" + jet, StartBit: 8 * i, BitLength: 8,
			Factor: 0.005, Min: 0, Max: 1,
		})
	}
	add(&FrameDef{
		ID: FrameDutyCmd, Name: "GNC_DUTY_CMD", DLC: 8, Direction: "tx", CycleMS: 100,
		Signals: duties,
	})

	add(&FrameDef{
		ID: FrameBurnCmd, Name: "GNC_BURN_CMD", DLC: 8, Direction: "tx", CycleMS: 0,
		Signals: []SignalDef{
			{Name: "burn_thrust_n", StartBit: 0, BitLength: 16, Factor: 0.05, Min: 0, Max: 3200, Unit: "N"},
			{Name: "burn_duration_s", StartBit: 16, BitLength: 16, Factor: 0.1, Min: 0, Max: 6500, Unit: "s"},
		},
	})
	add(&FrameDef{
		ID: FrameGrabCmd, Name: "GNC_GRAB_CMD", DLC: 8, Direction: "tx", CycleMS: 0,
		Signals: []SignalDef{
			// 1 = deploy net, 2 = retract, 3 = stow unconfirmed net
			{Name: "grab_command", StartBit: 0, BitLength: 8, Max: 3},
		},
	})

	add(&FrameDef{
		ID: FramePowerStat, Name: "PWR_STATUS", DLC: 8, Direction: "rx", CycleMS: 100,
		Signals: []SignalDef{
			{Name: "headroom_kw", StartBit: 0, BitLength: 16, Factor: 0.01, Min: 0, Max: 650, Unit: "kW"},
			{Name: "soc", StartBit: 16, BitLength: 8, Factor: 0.005, Min: 0, Max: 1},
			{Name: "fault", StartBit: 24, BitLength: 1, Max: 1},
			{Name: "fuel_fault", StartBit: 25, BitLength: 1, Max: 1},
			{Name: "fuel_kg", StartBit: 32, BitLength: 16, Factor: 0.05, Min: 0, Max: 3200, Unit: "kg"},
		},
	})
	add(&FrameDef{
		ID: FrameGrabStat, Name: "GRAB_STATUS", DLC: 8, Direction: "rx", CycleMS: 100,
		Signals: []SignalDef{
			{Name: "net_deployed", StartBit: 0, BitLength: 1, Max: 1},
			{Name: "capture_confirmed", StartBit: 1, BitLength: 1, Max: 1},
			{Name: "retraction_progress", StartBit: 8, BitLength: 8, Factor: 0.005, Min: 0, Max: 1},
			{Name: "captured_mass_kg", StartBit: 16, BitLength: 16, Factor: 0.1, Min: 0, Max: 6500, Unit: "kg"},
		},
	})

	add(&FrameDef{
		ID: FrameNavPos, Name: "NAV_REL_POS", DLC: 8, Direction: "rx", CycleMS: 100,
		Signals: append(triplet("pos_m", 0.05, -1600, 1600, "m"),
			SignalDef{Name: "nav_valid", StartBit: 48, BitLength: 1, Max: 1}),
	})
	add(&FrameDef{
		ID: FrameNavVel, Name: "NAV_REL_VEL", DLC: 8, Direction: "rx", CycleMS: 100,
		Signals: triplet("vel_ms", 0.001, -32, 32, "m/s"),
	})

	return m
}
