package utils

import (
	"fmt"
	"math"

	"go.einride.tech/can"
)

// EncodePayload packs physical signal values into a frame payload.
// Missing values take the signal default; everything is clamped to the
// signal range before fixed-point conversion.
func (m *BusMap) EncodePayload(frameName string, values map[string]float64) ([]byte, uint32, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return nil, 0, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return nil, 0, fmt.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	var payload uint64
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		v = clampPhys(v, s.Min, s.Max)

		factor := s.Factor
		if factor == 0 {
			factor = 1
		}
		raw := clampRaw(int64(math.Round((v-s.Offset)/factor)), s.BitLength, s.Signed)
		payload = insertBits(payload, s.StartBit, s.BitLength, unsignedFromRaw(raw, s.BitLength))
	}

	out := make([]byte, fd.DLC)
	for i := 0; i < fd.DLC; i++ {
		out[i] = byte(payload >> (8 * i))
	}
	return out, fd.ID, nil
}

// EncodeFrame builds a transmit-ready frame.
func (m *BusMap) EncodeFrame(frameName string, values map[string]float64) (can.Frame, error) {
	payload, id, err := m.EncodePayload(frameName, values)
	if err != nil {
		return can.Frame{}, err
	}
	var f can.Frame
	f.ID = id
	f.Length = uint8(len(payload))
	copy(f.Data[:], payload)
	return f, nil
}

// DecodeFrame unpacks a received frame into physical signal values.
func (m *BusMap) DecodeFrame(frameID uint32, data []byte) (map[string]float64, error) {
	fd, err := m.FrameByID(frameID)
	if err != nil {
		return nil, err
	}
	if len(data) < fd.DLC {
		return nil, fmt.Errorf("frame 0x%X expects DLC %d, got %d", frameID, fd.DLC, len(data))
	}

	var payload uint64
	for i := 0; i < fd.DLC && i < 8; i++ {
		payload |= uint64(data[i]) << (8 * i)
	}

	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		raw := rawFromUnsigned(extractBits(payload, s.StartBit, s.BitLength), s.BitLength, s.Signed)
		factor := s.Factor
		if factor == 0 {
			factor = 1
		}
		out[s.Name] = float64(raw)*factor + s.Offset
	}
	return out, nil
}

func (m *BusMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

func (m *BusMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}
