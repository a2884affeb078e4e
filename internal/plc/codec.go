package plc

import (
	"encoding/binary"
	"math"
)

// ParseFrame decodes a raw cabin-array read into a PollFrame. A short read
// truncates the cabin list rather than padding it, matching the spec's
// partial-read behavior.
func ParseFrame(raw []byte, cabinCount, cabinSize int, timestamp float64) PollFrame {
	cabins := make([]CabinFrame, 0, cabinCount)
	for i := 0; i < cabinCount; i++ {
		start := i * cabinSize
		end := start + cabinSize
		if end > len(raw) {
			break
		}
		chunk := raw[start:end]
		cabins = append(cabins, CabinFrame{
			CabinIndex: i,
			Analog:     int16(binary.BigEndian.Uint16(chunk[0:2])),
			Pressure:   math.Float32frombits(binary.BigEndian.Uint32(chunk[2:6])),
			Position:   int16(binary.BigEndian.Uint16(chunk[6:8])),
			Angle:      math.Float32frombits(binary.BigEndian.Uint32(chunk[8:12])),
			Timestamp:  timestamp,
		})
	}
	return PollFrame{Timestamp: timestamp, Cabins: cabins}
}

// EncodeInt16BE packs a value as a big-endian int16, the layout used by
// every PLC write-back path.
func EncodeInt16BE(v int16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(v))
	return buf
}
