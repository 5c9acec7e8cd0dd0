package effects

// Reverb is a Schroeder reverb: four damped feedback combs in parallel,
// followed by two series allpasses.
type Reverb struct {
	combs   [4]comb
	allpass [2]delayLine
	wet     float32
}

// delayLine is a fixed-length circular buffer.
type delayLine struct {
	buf []float32
	pos int
}

func newDelayLine(n int) delayLine { return delayLine{buf: make([]float32, max(n, 1))} }

// tap returns the oldest sample and replaces it with in.
func (d *delayLine) tap(in func(out float32) float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in(out)
	if d.pos++; d.pos == len(d.buf) {
		d.pos = 0
	}
	return out
}

func (d *delayLine) reset() {
	clear(d.buf)
	d.pos = 0
}

// comb feeds back through a one-pole lowpass, so highs decay faster.
type comb struct {
	line  delayLine
	fb    float32
	damp  float32
	store float32
}

func (c *comb) process(x float32) float32 {
	return c.line.tap(func(out float32) float32 {
		c.store = out*(1-c.damp) + c.store*c.damp
		return x + c.store*c.fb
	})
}

// Comb lengths relative to the base length; mutually prime-ish ratios keep
// the echo density even.
var (
	combRatios    = [4]float32{1, 1.117, 1.271, 1.437}
	allpassRatios = [2]float32{0.347, 0.213}
)

// NewReverb creates a reverb. roomSize (0..1) scales the delay lengths up
// to 50 ms, feedback (0..0.95) sets decay time and wet is the mix.
func NewReverb(sampleRate int, roomSize, feedback, wet float32) *Reverb {
	base := max(float32(sampleRate)*roomSize*0.05, 10)
	r := &Reverb{wet: clamp(wet, 0, 1)}
	fb := clamp(feedback, 0, 0.95)
	for i, ratio := range combRatios {
		r.combs[i] = comb{line: newDelayLine(int(base * ratio)), fb: fb}
	}
	for i, ratio := range allpassRatios {
		r.allpass[i] = newDelayLine(int(base * ratio))
	}
	return r
}

// SetDamping sets how strongly the tail loses high frequencies, 0..1.
// Not safe during Process.
func (r *Reverb) SetDamping(d float32) {
	for i := range r.combs {
		r.combs[i].damp = clamp(d, 0, 0.99)
	}
}

func (r *Reverb) Process(x float32) float32 {
	var y float32
	for i := range r.combs {
		y += r.combs[i].process(x)
	}
	y /= float32(len(r.combs))
	for i := range r.allpass {
		in := y
		y = r.allpass[i].tap(func(out float32) float32 { return in + out/2 }) - in
	}
	return x*(1-r.wet) + y*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		r.combs[i].line.reset()
		r.combs[i].store = 0
	}
	for i := range r.allpass {
		r.allpass[i].reset()
	}
}
