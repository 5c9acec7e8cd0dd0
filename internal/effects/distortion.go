package effects

import (
	"fmt"
	"math"
	"strings"
)

// Curve is a waveshaping transfer function.
type Curve int

const (
	CurveTanh Curve = iota // smooth saturation
	CurveHard              // hard clip at ±1
	CurveFold              // sine wavefolder
)

func (c Curve) String() string {
	switch c {
	case CurveHard:
		return "hard"
	case CurveFold:
		return "fold"
	default:
		return "tanh"
	}
}

func ParseCurve(name string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tanh", "soft", "":
		return CurveTanh, nil
	case "hard", "clip":
		return CurveHard, nil
	case "fold":
		return CurveFold, nil
	}
	return 0, fmt.Errorf("unknown distortion curve %q", name)
}

func (c Curve) shape(x float64) float64 {
	switch c {
	case CurveHard:
		return max(-1, min(1, x))
	case CurveFold:
		return math.Sin(x * math.Pi / 2)
	default:
		return math.Tanh(x)
	}
}

// Distortion drives its input through a waveshaper, then tames the added
// harmonics with a one-pole lowpass.
type Distortion struct {
	curve    Curve
	drive    float64
	level    float32
	lpfAlpha float32 // 0 = filter off
	lpf      float32
}

// NewDistortion creates a tanh distortion. lpfCutoff of 0 (or at or above
// Nyquist) disables the tone filter.
func NewDistortion(sampleRate int, preGain, postGain, lpfCutoff float32) *Distortion {
	d := &Distortion{drive: float64(preGain), level: postGain}
	if lpfCutoff > 0 && lpfCutoff < float32(sampleRate)/2 {
		d.lpfAlpha = onePoleAlpha(sampleRate, float64(lpfCutoff))
	}
	return d
}

func (d *Distortion) Curve() Curve { return d.curve }

// SetCurve changes the transfer function. Not safe during Process.
func (d *Distortion) SetCurve(c Curve) { d.curve = c }

func (d *Distortion) Process(x float32) float32 {
	y := float32(d.curve.shape(float64(x)*d.drive)) * d.level
	if d.lpfAlpha == 0 {
		return y
	}
	d.lpf += d.lpfAlpha * (y - d.lpf)
	return d.lpf
}

func (d *Distortion) Reset() {
	d.lpf = 0
}
