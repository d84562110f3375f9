// internal/device/encode.go
package device

import "math"

// The firmware reads a float32 as two consecutive registers holding the
// little-endian halves of its IEEE-754 bits: low word first.
// This is a bit reinterpretation, never a numeric conversion.

// FloatToWords splits f into its register pair.
func FloatToWords(f float32) [2]uint16 {
	b := math.Float32bits(f)
	return [2]uint16{uint16(b), uint16(b >> 16)}
}

// WordsToFloat is the exact inverse of FloatToWords.
func WordsToFloat(lo, hi uint16) float32 {
	return math.Float32frombits(uint32(lo) | uint32(hi)<<16)
}

// PackFloats converts a float stream into 2*len(fs) registers.
func PackFloats(fs []float32) []uint16 {
	out := make([]uint16, 2*len(fs))
	for i, f := range fs {
		w := FloatToWords(f)
		out[2*i] = w[0]
		out[2*i+1] = w[1]
	}
	return out
}

// UnpackFloats converts registers back into floats.
// A trailing odd word is ignored.
func UnpackFloats(words []uint16) []float32 {
	n := len(words) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = WordsToFloat(words[2*i], words[2*i+1])
	}
	return out
}

// ---- wire framing (Modbus register memory order, BIG-ENDIAN) ----

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
