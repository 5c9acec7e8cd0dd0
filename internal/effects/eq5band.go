package effects

import (
	"math"
	"sync/atomic"
)

// EQBands is the number of master EQ bands.
const EQBands = 5

// EQ5Band is the master equalizer. Bands are split at 200Hz, 800Hz, 2.5kHz
// and 8kHz. Gains are float32 bit patterns so the audio thread reads them
// without locking.
type EQ5Band struct {
	gains  [EQBands]atomic.Uint32
	alphas [EQBands - 1]float32
	lp     [EQBands - 1]float32
}

var defaultCrossovers = [EQBands - 1]float64{200, 800, 2500, 8000}

// NewEQ5Band creates a 5-band EQ with all gains at unity.
func NewEQ5Band(sampleRate int) *EQ5Band {
	eq := &EQ5Band{}
	for i, freq := range defaultCrossovers {
		eq.alphas[i] = onePoleAlpha(sampleRate, freq)
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1.0))
	}
	return eq
}

// SetGain sets the linear gain for band 0-4. Out of range bands are ignored.
func (eq *EQ5Band) SetGain(band int, gain float32) {
	if band >= 0 && band < EQBands {
		eq.gains[band].Store(math.Float32bits(gain))
	}
}

// Gain returns the gain for band 0-4, or 1 for out of range bands.
func (eq *EQ5Band) Gain(band int) float32 {
	if band >= 0 && band < EQBands {
		return math.Float32frombits(eq.gains[band].Load())
	}
	return 1.0
}

func (eq *EQ5Band) Process(x float32) float32 {
	var out float32
	rem := x
	for i := range eq.lp {
		eq.lp[i] += eq.alphas[i] * (rem - eq.lp[i])
		out += eq.lp[i] * math.Float32frombits(eq.gains[i].Load())
		rem -= eq.lp[i]
	}
	return out + rem*math.Float32frombits(eq.gains[EQBands-1].Load())
}

func (eq *EQ5Band) Reset() {
	clear(eq.lp[:])
}
