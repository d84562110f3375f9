// internal/device/encode_test.go
package device

import (
	"math"
	"testing"
)

func TestFloatWordsRoundTrip(t *testing.T) {
	values := []float32{
		0,
		float32(math.Copysign(0, -1)),
		0.5,
		-0.5,
		1e-3,
		-1e-3,
		3.4028235e38,
		1.1754944e-38, // smallest normal
		1.1754942e-38, // largest subnormal
		1e-45,
		-1e-45,
		float32(math.Inf(1)),
		float32(math.Inf(-1)),
	}

	for _, v := range values {
		w := FloatToWords(v)
		got := WordsToFloat(w[0], w[1])
		if math.Float32bits(got) != math.Float32bits(v) {
			t.Fatalf("round trip %g: got bits %#08x want %#08x", v, math.Float32bits(got), math.Float32bits(v))
		}
	}
}

func TestFloatToWordsLowWordFirst(t *testing.T) {
	// 0.5 = 0x3F000000
	w := FloatToWords(0.5)
	if w[0] != 0x0000 || w[1] != 0x3F00 {
		t.Fatalf("0.5 packed as %#04x %#04x, want 0x0000 0x3f00", w[0], w[1])
	}

	// -2.5 = 0xC0200000
	w = FloatToWords(-2.5)
	if w[0] != 0x0000 || w[1] != 0xC020 {
		t.Fatalf("-2.5 packed as %#04x %#04x, want 0x0000 0xc020", w[0], w[1])
	}

	// 1e-3 = 0x3A83126F
	w = FloatToWords(1e-3)
	if w[0] != 0x126F || w[1] != 0x3A83 {
		t.Fatalf("1e-3 packed as %#04x %#04x, want 0x126f 0x3a83", w[0], w[1])
	}
}

func TestNaNKeepsPayload(t *testing.T) {
	nan := math.Float32frombits(0x7FC00123)
	w := FloatToWords(nan)
	if got := math.Float32bits(WordsToFloat(w[0], w[1])); got != 0x7FC00123 {
		t.Fatalf("nan payload lost: %#08x", got)
	}
}

func TestPackUnpackFloats(t *testing.T) {
	in := []float32{-0.5, 0, 0.25, 7.125}
	words := PackFloats(in)
	if len(words) != 2*len(in) {
		t.Fatalf("expected %d words, got %d", 2*len(in), len(words))
	}

	out := UnpackFloats(append(words, 0xFFFF)) // odd trailer ignored
	if len(out) != len(in) {
		t.Fatalf("expected %d floats, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("index %d: got %g want %g", i, out[i], in[i])
		}
	}
}

func TestRegisterFramingBigEndian(t *testing.T) {
	b := packRegisters([]uint16{0x1234, 0xABCD})
	want := []byte{0x12, 0x34, 0xAB, 0xCD}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("byte %d: got %#02x want %#02x", i, b[i], want[i])
		}
	}
	regs := unpackRegisters(b)
	if regs[0] != 0x1234 || regs[1] != 0xABCD {
		t.Fatalf("unexpected registers %#v", regs)
	}
}
