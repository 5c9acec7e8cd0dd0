package effects

import "math"

// Chorus is a sine-modulated fractional delay.
type Chorus struct {
	buf      []float32
	pos      int
	depth    float32 // modulation depth in samples
	rate     float64 // radians per sample
	phase    float64
	feedback float32
	wet      float32
}

// NewChorus creates a chorus/flanger effect.
// delayMs: base delay (typically 5-30ms); depthMs: modulation depth;
// rateHz: modulation rate; feedback and wet are 0..1.
func NewChorus(sampleRate int, delayMs, feedback, depthMs, rateHz, wet float32) *Chorus {
	base := int(float64(delayMs) * float64(sampleRate) / 1000.0)
	depth := float64(depthMs) * float64(sampleRate) / 1000.0
	return &Chorus{
		buf:      make([]float32, max(base+int(depth)+2, 4)),
		depth:    float32(depth),
		rate:     2.0 * math.Pi * float64(rateHz) / float64(sampleRate),
		feedback: clamp(feedback, 0, 0.9),
		wet:      clamp(wet, 0, 1),
	}
}

func (c *Chorus) Process(x float32) float32 {
	size := len(c.buf)
	mod := float32(math.Sin(c.phase)) * c.depth
	c.phase += c.rate
	if c.phase > 2*math.Pi {
		c.phase -= 2 * math.Pi
	}
	c.buf[c.pos] = x

	readPos := float32(c.pos) - (float32(size/2) + mod)
	for readPos < 0 {
		readPos += float32(size)
	}
	idx := int(readPos) % size
	frac := readPos - float32(int(readPos))
	next := (idx + 1) % size
	del := c.buf[idx]*(1-frac) + c.buf[next]*frac

	c.buf[c.pos] += del * c.feedback
	c.pos = (c.pos + 1) % size
	return x*(1-c.wet) + del*c.wet
}

func (c *Chorus) Reset() {
	clear(c.buf)
	c.pos = 0
	c.phase = 0
}
