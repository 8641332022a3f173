package canlink

import (
	"fmt"
	"math"

	"go.einride.tech/can"
)

// DecodeFrame decodes a raw payload against the frame layout for the
// given identifier, returning physical signal values.
func (m *FrameMap) DecodeFrame(frameID uint32, data []byte) (map[string]float64, error) {
	fd, ok := m.ByID[frameID]
	if !ok {
		return nil, fmt.Errorf("canlink: unknown frame 0x%X", frameID)
	}
	if len(data) < fd.DLC {
		return nil, fmt.Errorf("canlink: frame 0x%X expects DLC %d, got %d", frameID, fd.DLC, len(data))
	}

	var payload uint64
	for i := 0; i < fd.DLC && i < 8; i++ {
		payload |= uint64(data[i]) << (8 * i)
	}

	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		u := getBits(payload, s.StartBit, s.BitLength)
		raw := unsignedToRawInt64(u, s.BitLength, s.Signed)
		out[s.Name] = float64(raw)*s.Factor + s.Offset
	}
	return out, nil
}

// EncodeFrame packs physical signal values into a transmit-ready frame.
// Missing signals encode as zero; values are clamped to the signal
// range.
func (m *FrameMap) EncodeFrame(frameName string, values map[string]float64) (can.Frame, error) {
	fd, ok := m.ByName[frameName]
	if !ok {
		return can.Frame{}, fmt.Errorf("canlink: unknown frame %q", frameName)
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return can.Frame{}, fmt.Errorf("canlink: frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	var payload uint64
	for _, s := range fd.Signals {
		v := clamp(values[s.Name], s.Min, s.Max)
		raw := clampRaw(int64(math.Round((v-s.Offset)/s.Factor)), s.BitLength, s.Signed)
		payload = setBits(payload, s.StartBit, s.BitLength, rawToUnsigned(raw, s.BitLength))
	}

	var f can.Frame
	f.ID = fd.ID
	f.Length = uint8(fd.DLC)
	for i := 0; i < fd.DLC; i++ {
		f.Data[i] = byte((payload >> (8 * i)) & 0xFF)
	}
	return f, nil
}
