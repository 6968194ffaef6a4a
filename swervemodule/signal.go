package swervemodule

import (
	"encoding/binary"
	"math"
)

// signal describes a little-endian scalar packed into a classic CAN payload.
type signal struct {
	scale  float64
	offset float64
	start  uint8 // start bit
	length uint8 // length in bits
	signed bool
}

func (s signal) mask() uint64 {
	if s.length >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << s.length) - 1
}

func payload(data []byte) uint64 {
	var buf [8]byte
	copy(buf[:], data)
	return binary.LittleEndian.Uint64(buf[:])
}

// extract returns the physical value of s in data. Missing trailing bytes read as zero.
func (s signal) extract(data []byte) float64 {
	raw := (payload(data) >> s.start) & s.mask()

	var v float64
	if s.signed && s.length < 64 && raw&(uint64(1)<<(s.length-1)) != 0 {
		// extend the sign bit
		v = float64(int64(raw | ^s.mask()))
	} else if s.signed {
		v = float64(int64(raw))
	} else {
		v = float64(raw)
	}
	return v*s.scale + s.offset
}

// insert encodes value into data, saturating at the range of the signal. data must be
// 8 bytes long.
func (s signal) insert(data []byte, value float64) {
	scaled := math.Round((value - s.offset) / s.scale)

	var lo, hi float64
	if s.signed {
		hi = math.Ldexp(1, int(s.length)-1) - 1
		lo = -hi - 1
	} else {
		hi = math.Ldexp(1, int(s.length)) - 1
	}
	scaled = math.Max(lo, math.Min(scaled, hi))

	var raw uint64
	if s.signed {
		raw = uint64(int64(scaled))
	} else {
		raw = uint64(scaled)
	}

	word := payload(data)
	word &^= s.mask() << s.start
	word |= (raw & s.mask()) << s.start
	binary.LittleEndian.PutUint64(data, word)
}
