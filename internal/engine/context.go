// Package engine is an in-process audio rendering engine: a clock driven by
// rendered frames, a graph of signal nodes pulled once per frame, and
// automatable parameters with sample-accurate scheduled changes.
package engine

import (
	"errors"
	"sync"
	"sync/atomic"
)

const DefaultSampleRate = 48000

var (
	ErrInvalidValue    = errors.New("invalid automation value")
	ErrNotConnectable  = errors.New("node does not accept inputs")
	ErrContextMismatch = errors.New("nodes belong to different contexts")
)

// Context owns a node graph and the audio clock. Graph edits and parameter
// automation are serialised with rendering, so a change submitted before a
// block is rendered takes effect at its exact frame.
type Context struct {
	mu         sync.Mutex
	sampleRate int
	frames     atomic.Int64
	dest       *Destination
	params     []*Param
	tap        func(float32) float32
}

// NewContext creates a context. Non-positive rates fall back to DefaultSampleRate.
func NewContext(sampleRate int) *Context {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	c := &Context{sampleRate: sampleRate}
	c.dest = &Destination{}
	c.dest.init(c, c.dest, -1)
	return c
}

func (c *Context) SampleRate() int { return c.sampleRate }

// CurrentTime returns the number of seconds rendered so far.
// It is safe to call from any goroutine.
func (c *Context) CurrentTime() float64 {
	return float64(c.frames.Load()) / float64(c.sampleRate)
}

// Frames returns the number of frames rendered so far.
func (c *Context) Frames() int64 { return c.frames.Load() }

// Destination returns the context's output node.
func (c *Context) Destination() *Destination { return c.dest }

// SetOutputTap installs a per-sample transform applied to the destination
// output (e.g. a master EQ). Pass nil to remove it.
func (c *Context) SetOutputTap(tap func(float32) float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tap = tap
}

// Render fills dst with interleaved stereo frames and advances the clock.
func (c *Context) Render(dst []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compact()
	for i := 0; i+1 < len(dst); i += 2 {
		s := c.renderFrame()
		dst[i], dst[i+1] = s, s
	}
}

// RenderMono fills dst with mono frames and advances the clock.
func (c *Context) RenderMono(dst []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compact()
	for i := range dst {
		dst[i] = c.renderFrame()
	}
}

// Process implements the output backends' sample source contract.
func (c *Context) Process(dst []float32) { c.Render(dst) }

func (c *Context) renderFrame() float32 {
	f := c.frames.Load()
	s := float32(c.dest.pull(tick{frame: f, t: float64(f) / float64(c.sampleRate)}))
	if c.tap != nil {
		s = c.tap(s)
	}
	c.frames.Store(f + 1)
	return s
}

func (c *Context) compact() {
	now := c.CurrentTime()
	for _, p := range c.params {
		p.compact(now)
	}
}
