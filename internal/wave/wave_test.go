package wave

import (
	"math"
	"testing"
)

func TestTriangleBasicShape(t *testing.T) {
	var p Phasor
	sr := 100.0 // 100 samples per cycle at 1 Hz
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = Shape(Triangle, p.Advance(1, sr))
	}
	if math.Abs(samples[0]-(-1.0)) > 0.05 {
		t.Errorf("triangle at phase 0: got %f, want -1.0", samples[0])
	}
	if math.Abs(samples[25]) > 0.05 {
		t.Errorf("triangle at phase 0.25: got %f, want ~0", samples[25])
	}
	if math.Abs(samples[50]-1.0) > 0.05 {
		t.Errorf("triangle at phase 0.5: got %f, want 1.0", samples[50])
	}
}

func TestSquareShape(t *testing.T) {
	if v := Shape(Square, 0.1); v != 1 {
		t.Errorf("square first half: got %f, want 1", v)
	}
	if v := Shape(Square, 0.6); v != -1 {
		t.Errorf("square second half: got %f, want -1", v)
	}
}

func TestSawtoothAndSine(t *testing.T) {
	if v := Shape(Sawtooth, 0); v != -1 {
		t.Errorf("saw at phase 0: got %f, want -1", v)
	}
	if v := Shape(Sawtooth, 0.75); math.Abs(v-0.5) > 1e-9 {
		t.Errorf("saw at phase 0.75: got %f, want 0.5", v)
	}
	if v := Shape(Sine, 0.25); math.Abs(v-1) > 1e-9 {
		t.Errorf("sine at phase 0.25: got %f, want 1", v)
	}
}

func TestPhasorWraps(t *testing.T) {
	var p Phasor
	for i := 0; i < 1000; i++ {
		ph := p.Advance(441, 44100)
		if ph < 0 || ph >= 1 {
			t.Fatalf("phase out of range at %d: %f", i, ph)
		}
	}
	p.Reset()
	if p.Phase() != 0 {
		t.Errorf("reset phase = %f, want 0", p.Phase())
	}
}

func TestPhasorNegativeFrequency(t *testing.T) {
	var p Phasor
	p.Advance(-25, 100)
	if got := p.Phase(); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("phase after negative step = %f, want 0.75", got)
	}
}

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"sine": Sine, "SIN": Sine, "square": Square, "sqr": Square,
		"saw": Sawtooth, "sawtooth": Sawtooth, " tri ": Triangle, "triangle": Triangle,
	}
	for in, want := range cases {
		got, err := ParseType(in)
		if err != nil {
			t.Fatalf("ParseType(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseType(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseType("pulse"); err == nil {
		t.Error("expected error for unknown waveform")
	}
}
