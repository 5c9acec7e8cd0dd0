package effects

import "math"

// EQ3Band splits the signal at two one-pole crossovers and rescales each band.
type EQ3Band struct {
	lowGain  float32
	midGain  float32
	highGain float32
	lpAlpha  float32
	hpAlpha  float32
	lp, hp   float32
}

// NewEQ3Band creates a 3-band EQ. Gains are linear (1.0 = unity);
// lowFreq and highFreq are the crossover frequencies in Hz.
func NewEQ3Band(sampleRate int, lowGain, midGain, highGain, lowFreq, highFreq float32) *EQ3Band {
	return &EQ3Band{
		lowGain:  lowGain,
		midGain:  midGain,
		highGain: highGain,
		lpAlpha:  onePoleAlpha(sampleRate, float64(lowFreq)),
		hpAlpha:  onePoleAlpha(sampleRate, float64(highFreq)),
	}
}

func (eq *EQ3Band) Process(x float32) float32 {
	eq.lp += eq.lpAlpha * (x - eq.lp)
	eq.hp += eq.hpAlpha * (x - eq.hp)
	low := eq.lp
	high := x - eq.hp
	mid := x - low - high
	return low*eq.lowGain + mid*eq.midGain + high*eq.highGain
}

func (eq *EQ3Band) Reset() {
	eq.lp, eq.hp = 0, 0
}

func onePoleAlpha(sampleRate int, freq float64) float32 {
	rc := 1.0 / (2.0 * math.Pi * freq)
	dt := 1.0 / float64(sampleRate)
	return float32(dt / (rc + dt))
}
