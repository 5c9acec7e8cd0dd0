package synth

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cbegin/patchbay-go/internal/engine"
	"github.com/cbegin/patchbay-go/internal/wave"
)

// OscPatch is a periodic waveform source.
type OscPatch struct {
	*source
	osc *engine.Oscillator
}

func buildOsc(s *Synth, p params) (Patch, error) {
	typ := wave.Sine
	if v, ok := p.values["type"]; ok {
		switch t := v.(type) {
		case wave.Type:
			typ = t
		case string:
			var err error
			if typ, err = wave.ParseType(t); err != nil {
				return nil, &ConfigError{Kind: p.kind, Key: "type", Err: err}
			}
		default:
			return nil, p.typeError("type", v, "waveform name")
		}
	}
	freq, err := p.float("frequency", 440)
	if err != nil {
		return nil, err
	}
	detune, err := p.float("detune", 0)
	if err != nil {
		return nil, err
	}
	osc := s.ctx.NewOscillator(typ, freq)
	if err := osc.Detune().SetValue(detune); err != nil {
		return nil, err
	}
	src, err := newSource(s, p.kind, osc)
	if err != nil {
		return nil, err
	}
	return &OscPatch{source: src, osc: osc}, nil
}

func (o *OscPatch) Oscillator() *engine.Oscillator { return o.osc }
func (o *OscPatch) Frequency() *engine.Param       { return o.osc.Frequency() }
func (o *OscPatch) Detune() *engine.Param          { return o.osc.Detune() }
func (o *OscPatch) Type() wave.Type                { return o.osc.Type() }
func (o *OscPatch) SetType(t wave.Type)            { o.osc.SetType(t) }

func (o *OscPatch) SetFrequency(v, time float64, r Ramp) error {
	return SetParam(o.osc.Frequency(), v, time, r)
}

func (o *OscPatch) SetDetune(v, time float64, r Ramp) error {
	return SetParam(o.osc.Detune(), v, time, r)
}

// NoisePatch is a white noise source.
type NoisePatch struct {
	*source
	noise *engine.Noise
}

func buildNoise(s *Synth, p params) (Patch, error) {
	seed, err := p.int("seed", 1)
	if err != nil {
		return nil, err
	}
	n := s.ctx.NewNoise(uint64(seed))
	src, err := newSource(s, p.kind, n)
	if err != nil {
		return nil, err
	}
	return &NoisePatch{source: src, noise: n}, nil
}

// BufferPatch plays a sample buffer from its start each time it is played.
type BufferPatch struct {
	*source
	buf *engine.BufferSource
}

func buildBuffer(s *Synth, p params) (Patch, error) {
	if p.has("path") && p.has("samples") {
		return nil, &ConfigError{Kind: p.kind, Key: "samples", Err: errors.New("path and samples are exclusive")}
	}
	var buf *engine.Buffer
	switch {
	case p.has("path"):
		path, err := p.string("path", "")
		if err != nil {
			return nil, err
		}
		if buf, err = engine.LoadWAV(path); err != nil {
			return nil, &ConfigError{Kind: p.kind, Key: "path", Err: err}
		}
	case p.has("samples"):
		rate, err := p.int("sampleRate", s.ctx.SampleRate())
		if err != nil {
			return nil, err
		}
		if rate <= 0 {
			return nil, &ConfigError{Kind: p.kind, Key: "sampleRate", Err: fmt.Errorf("must be positive, got %d", rate)}
		}
		samples, err := sampleSlice(p)
		if err != nil {
			return nil, err
		}
		buf = &engine.Buffer{Samples: samples, SampleRate: rate}
	default:
		return nil, &ConfigError{Kind: p.kind, Err: errors.New("path or samples is required")}
	}
	loop, err := p.bool("loop", false)
	if err != nil {
		return nil, err
	}
	rate, err := p.float("playbackRate", 1)
	if err != nil {
		return nil, err
	}
	bs := s.ctx.NewBufferSource(buf, loop)
	if err := bs.PlaybackRate().SetValue(rate); err != nil {
		return nil, err
	}
	src, err := newSource(s, p.kind, bs)
	if err != nil {
		return nil, err
	}
	src.onStart = bs.Start
	return &BufferPatch{source: src, buf: bs}, nil
}

func sampleSlice(p params) ([]float32, error) {
	if s, ok := p.values["samples"].([]float32); ok {
		return s, nil
	}
	f, err := p.floats("samples")
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(f))
	for i, v := range f {
		out[i] = float32(v)
	}
	return out, nil
}

func (b *BufferPatch) Node() *engine.BufferSource  { return b.buf }
func (b *BufferPatch) Buffer() *engine.Buffer      { return b.buf.Buffer() }
func (b *BufferPatch) PlaybackRate() *engine.Param { return b.buf.PlaybackRate() }
func (b *BufferPatch) SetLoop(loop bool)           { b.buf.SetLoop(loop) }

func (b *BufferPatch) SetPlaybackRate(v, time float64, r Ramp) error {
	return SetParam(b.buf.PlaybackRate(), v, time, r)
}

// DefaultInputCapacity is the capture ring size of an input patch, in samples.
const DefaultInputCapacity = 8192

// InputOpener attaches a capture device to in. The returned Closer releases
// the device.
type InputOpener func(in *engine.Input) (io.Closer, error)

// InputPatch plays live audio from a capture device. When the device cannot
// be opened the patch is still usable but silent until Retry succeeds.
type InputPatch struct {
	*source
	in *engine.Input

	devMu sync.Mutex
	dev   io.Closer
	err   error
}

func buildInput(s *Synth, p params) (Patch, error) {
	size, err := p.int("capacity", DefaultInputCapacity)
	if err != nil {
		return nil, err
	}
	if size <= 0 || size&(size-1) != 0 {
		return nil, &ConfigError{Kind: p.kind, Key: "capacity", Err: fmt.Errorf("must be a power of 2, got %d", size)}
	}
	in := s.ctx.NewInput(size)
	src, err := newSource(s, p.kind, in)
	if err != nil {
		return nil, err
	}
	ip := &InputPatch{source: src, in: in}
	if err := ip.Retry(); err != nil {
		s.logger.Warn("input device unavailable, patch is silent", "err", err)
	}
	return ip, nil
}

// Retry attempts to open the capture device if it is not already open.
func (p *InputPatch) Retry() error {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	if p.dev != nil {
		return nil
	}
	open := p.synth.opener
	if open == nil {
		p.err = &ResourceError{Resource: "input device", Err: errors.New("no input opener configured")}
		return p.err
	}
	dev, err := open(p.in)
	if err != nil {
		p.err = &ResourceError{Resource: "input device", Err: err}
		return p.err
	}
	p.dev, p.err = dev, nil
	return nil
}

// Active reports whether a capture device is attached.
func (p *InputPatch) Active() bool {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	return p.dev != nil
}

// Err returns the last device open failure, or nil.
func (p *InputPatch) Err() error {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	return p.err
}

// Close releases the capture device. The patch turns silent.
func (p *InputPatch) Close() error {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	if p.dev == nil {
		return nil
	}
	err := p.dev.Close()
	p.dev = nil
	return err
}

func (p *InputPatch) Node() *engine.Input { return p.in }
