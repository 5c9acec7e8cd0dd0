package effects

import (
	"math"
	"sync/atomic"
)

// DefaultKneeDB is the soft-knee width used by NewCompressor.
const DefaultKneeDB = 6

// Compressor is a feed-forward peak compressor with a soft knee. Gain is
// computed in the dB domain from a peak envelope follower.
type Compressor struct {
	thresholdDB float64
	ratio       float64
	kneeDB      float64
	attack      float64 // smoothing coefficients
	release     float64
	makeup      float32
	env         float64
	reduction   atomic.Uint64 // last gain reduction in dB, float64 bits
}

// NewCompressor creates a compressor. Ratios below 1 are treated as 1;
// times are in milliseconds.
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	return &Compressor{
		thresholdDB: float64(thresholdDB),
		ratio:       max(1, float64(ratio)),
		kneeDB:      DefaultKneeDB,
		attack:      follower(sampleRate, float64(attackMs)),
		release:     follower(sampleRate, float64(releaseMs)),
		makeup:      float32(dbToLinear(float64(makeupDB))),
	}
}

func follower(sampleRate int, ms float64) float64 {
	if ms <= 0 {
		return 1
	}
	return 1 - math.Exp(-1/(ms*float64(sampleRate)/1000))
}

func dbToLinear(db float64) float64 { return math.Pow(10, db/20) }

// SetKnee sets the knee width in dB; 0 is a hard knee. Not safe during Process.
func (c *Compressor) SetKnee(db float64) { c.kneeDB = max(0, db) }

// GainReduction returns the most recent gain reduction in dB (>= 0). It is
// safe to call from any goroutine.
func (c *Compressor) GainReduction() float64 {
	return math.Float64frombits(c.reduction.Load())
}

func (c *Compressor) Process(x float32) float32 {
	abs := math.Abs(float64(x))
	if abs > c.env {
		c.env += c.attack * (abs - c.env)
	} else {
		c.env += c.release * (abs - c.env)
	}
	red := c.reductionDB(c.env)
	c.reduction.Store(math.Float64bits(red))
	return x * float32(dbToLinear(-red)) * c.makeup
}

// reductionDB is the static curve: how many dB to cut for an envelope level.
func (c *Compressor) reductionDB(env float64) float64 {
	if env <= 0 {
		return 0
	}
	over := 20*math.Log10(env) - c.thresholdDB
	slope := 1 - 1/c.ratio
	switch {
	case 2*over <= -c.kneeDB:
		return 0
	case c.kneeDB > 0 && 2*math.Abs(over) < c.kneeDB:
		k := over + c.kneeDB/2
		return slope * k * k / (2 * c.kneeDB)
	default:
		return slope * over
	}
}

func (c *Compressor) Reset() {
	c.env = 0
	c.reduction.Store(0)
}
