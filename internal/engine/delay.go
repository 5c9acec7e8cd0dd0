package engine

import "math"

// Delay is a variable delay line read with linear interpolation.
type Delay struct {
	node
	buf       []float64
	pos       int
	delayTime *Param
}

// NewDelay creates a delay line able to hold maxSeconds of signal.
func (c *Context) NewDelay(delay, maxSeconds float64) *Delay {
	if maxSeconds <= 0 {
		maxSeconds = 1
	}
	size := int(math.Ceil(maxSeconds*float64(c.sampleRate))) + 2
	d := &Delay{buf: make([]float64, size)}
	d.init(c, d, -1)
	d.delayTime = newParam(c, "delayTime", delay, 0, maxSeconds)
	return d
}

// DelayTime is in seconds.
func (d *Delay) DelayTime() *Param { return d.delayTime }

func (d *Delay) process(tk tick, in float64) float64 {
	size := len(d.buf)
	d.buf[d.pos] = in
	back := d.delayTime.at(tk) * float64(d.ctx.sampleRate)
	read := float64(d.pos) - back
	for read < 0 {
		read += float64(size)
	}
	i := int(read)
	frac := read - float64(i)
	i %= size
	out := d.buf[i]*(1-frac) + d.buf[(i+1)%size]*frac
	d.pos = (d.pos + 1) % size
	return out
}
