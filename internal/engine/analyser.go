package engine

import "math"

const DefaultFFTSize = 2048

// Analyser passes its input through and keeps the most recent samples.
type Analyser struct {
	node
	ring []float64
	pos  int
}

func (c *Context) NewAnalyser(size int) *Analyser {
	if size <= 0 {
		size = DefaultFFTSize
	}
	a := &Analyser{ring: make([]float64, size)}
	a.init(c, a, -1)
	return a
}

func (a *Analyser) process(_ tick, in float64) float64 {
	a.ring[a.pos] = in
	a.pos = (a.pos + 1) % len(a.ring)
	return in
}

// Size returns the number of samples retained.
func (a *Analyser) Size() int { return len(a.ring) }

// TimeDomainData returns the retained samples, oldest first.
func (a *Analyser) TimeDomainData() []float32 {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	out := make([]float32, len(a.ring))
	for i := range out {
		out[i] = float32(a.ring[(a.pos+i)%len(a.ring)])
	}
	return out
}

// RMS returns the root mean square level of the retained samples.
func (a *Analyser) RMS() float64 {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	var sum float64
	for _, s := range a.ring {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(a.ring)))
}

// Peak returns the largest absolute retained sample.
func (a *Analyser) Peak() float64 {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	var peak float64
	for _, s := range a.ring {
		peak = math.Max(peak, math.Abs(s))
	}
	return peak
}
