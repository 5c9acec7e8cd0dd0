package synth

import (
	"errors"
	"fmt"

	"github.com/cbegin/patchbay-go/internal/engine"
)

// GainPatch scales its input.
type GainPatch struct {
	patch
	g *engine.Gain
}

func buildGain(s *Synth, p params) (Patch, error) {
	gain, err := p.float("gain", 1)
	if err != nil {
		return nil, err
	}
	g := s.ctx.NewGain(gain)
	return &GainPatch{patch: single(s, p.kind, g), g: g}, nil
}

func single(s *Synth, kind Kind, n engine.Node) patch {
	return patch{kind: kind, synth: s, in: []engine.Node{n}, out: []engine.Node{n}}
}

func (g *GainPatch) Gain() *engine.Param { return g.g.Gain() }

func (g *GainPatch) SetGain(v, time float64, r Ramp) error {
	return SetParam(g.g.Gain(), v, time, r)
}

// FilterPatch is a biquad filter.
type FilterPatch struct {
	patch
	f *engine.BiquadFilter
}

func buildFilter(s *Synth, p params) (Patch, error) {
	typ := engine.Lowpass
	if v, ok := p.values["type"]; ok {
		switch t := v.(type) {
		case engine.FilterType:
			typ = t
		case string:
			var err error
			if typ, err = engine.ParseFilterType(t); err != nil {
				return nil, &ConfigError{Kind: p.kind, Key: "type", Err: err}
			}
		default:
			return nil, p.typeError("type", v, "filter type name")
		}
	}
	freq, err := p.float("frequency", 350)
	if err != nil {
		return nil, err
	}
	q, err := p.float("Q", 1)
	if err != nil {
		return nil, err
	}
	gain, err := p.float("gain", 0)
	if err != nil {
		return nil, err
	}
	f := s.ctx.NewBiquadFilter(typ, freq, q)
	if err := f.Gain().SetValue(gain); err != nil {
		return nil, err
	}
	return &FilterPatch{patch: single(s, p.kind, f), f: f}, nil
}

func (f *FilterPatch) Filter() *engine.BiquadFilter { return f.f }
func (f *FilterPatch) Frequency() *engine.Param     { return f.f.Frequency() }
func (f *FilterPatch) Q() *engine.Param             { return f.f.Q() }
func (f *FilterPatch) Gain() *engine.Param          { return f.f.Gain() }
func (f *FilterPatch) Type() engine.FilterType      { return f.f.Type() }
func (f *FilterPatch) SetType(t engine.FilterType)  { f.f.SetType(t) }

func (f *FilterPatch) SetFrequency(v, time float64, r Ramp) error {
	return SetParam(f.f.Frequency(), v, time, r)
}

func (f *FilterPatch) SetQ(v, time float64, r Ramp) error {
	return SetParam(f.f.Q(), v, time, r)
}

// FilterBankPatch splits its input through parallel bandpass filters and sums
// them into one gain.
type FilterBankPatch struct {
	patch
	filters []*engine.BiquadFilter
	sum     *engine.Gain
}

func buildFilterBank(s *Synth, p params) (Patch, error) {
	freqs, err := p.floats("frequencies")
	if err != nil {
		return nil, err
	}
	if len(freqs) == 0 {
		return nil, &ConfigError{Kind: p.kind, Key: "frequencies", Err: errors.New("at least one band is required")}
	}
	q, err := p.float("Q", 4)
	if err != nil {
		return nil, err
	}
	gain, err := p.float("gain", 1)
	if err != nil {
		return nil, err
	}
	fb := &FilterBankPatch{sum: s.ctx.NewGain(gain)}
	fb.patch = patch{kind: p.kind, synth: s, out: []engine.Node{fb.sum}}
	for i, f := range freqs {
		if f <= 0 {
			return nil, &ConfigError{Kind: p.kind, Key: "frequencies", Err: fmt.Errorf("band %d: frequency must be positive, got %g", i, f)}
		}
		bp := s.ctx.NewBiquadFilter(engine.Bandpass, f, q)
		if err := bp.Connect(fb.sum); err != nil {
			return nil, err
		}
		fb.filters = append(fb.filters, bp)
		fb.in = append(fb.in, bp)
	}
	return fb, nil
}

func (f *FilterBankPatch) Filters() []*engine.BiquadFilter {
	return append([]*engine.BiquadFilter(nil), f.filters...)
}

func (f *FilterBankPatch) Gain() *engine.Param { return f.sum.Gain() }

func (f *FilterBankPatch) SetGain(v, time float64, r Ramp) error {
	return SetParam(f.sum.Gain(), v, time, r)
}

// SetQ changes the Q of every band.
func (f *FilterBankPatch) SetQ(v, time float64, r Ramp) error {
	var errs []error
	for _, bp := range f.filters {
		errs = append(errs, SetParam(bp.Q(), v, time, r))
	}
	return errors.Join(errs...)
}

// DelayPatch is a delay line with a feedback path.
type DelayPatch struct {
	patch
	d  *engine.Delay
	fb *engine.Gain
}

func buildDelay(s *Synth, p params) (Patch, error) {
	dt, err := p.float("delayTime", 0.25)
	if err != nil {
		return nil, err
	}
	maxDelay, err := p.float("maxDelay", max(1, dt))
	if err != nil {
		return nil, err
	}
	if dt < 0 || dt > maxDelay {
		return nil, &ConfigError{Kind: p.kind, Key: "delayTime", Err: fmt.Errorf("%g outside [0, %g]", dt, maxDelay)}
	}
	feedback, err := p.float("feedback", 0)
	if err != nil {
		return nil, err
	}
	d := s.ctx.NewDelay(dt, maxDelay)
	fb := s.ctx.NewGain(feedback)
	if err := d.Connect(fb); err != nil {
		return nil, err
	}
	if err := fb.Connect(d); err != nil {
		return nil, err
	}
	return &DelayPatch{patch: single(s, p.kind, d), d: d, fb: fb}, nil
}

func (d *DelayPatch) DelayTime() *engine.Param { return d.d.DelayTime() }
func (d *DelayPatch) Feedback() *engine.Param  { return d.fb.Gain() }

func (d *DelayPatch) SetDelayTime(v, time float64, r Ramp) error {
	return SetParam(d.d.DelayTime(), v, time, r)
}

func (d *DelayPatch) SetFeedback(v, time float64, r Ramp) error {
	return SetParam(d.fb.Gain(), v, time, r)
}

// AnalyserPatch passes signal through and records the latest samples.
type AnalyserPatch struct {
	patch
	a *engine.Analyser
}

func buildAnalyser(s *Synth, p params) (Patch, error) {
	size, err := p.int("fftSize", engine.DefaultFFTSize)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, &ConfigError{Kind: p.kind, Key: "fftSize", Err: fmt.Errorf("must be positive, got %d", size)}
	}
	a := s.ctx.NewAnalyser(size)
	return &AnalyserPatch{patch: single(s, p.kind, a), a: a}, nil
}

func (a *AnalyserPatch) Analyser() *engine.Analyser { return a.a }
func (a *AnalyserPatch) TimeDomainData() []float32  { return a.a.TimeDomainData() }
func (a *AnalyserPatch) RMS() float64               { return a.a.RMS() }
func (a *AnalyserPatch) Peak() float64              { return a.a.Peak() }

// OutputPatch feeds the context destination through a master gain. It has
// no outputs of its own.
type OutputPatch struct {
	patch
	g *engine.Gain
}

func buildOutput(s *Synth, p params) (Patch, error) {
	gain, err := p.float("gain", 1)
	if err != nil {
		return nil, err
	}
	g := s.ctx.NewGain(gain)
	if err := g.Connect(s.ctx.Destination()); err != nil {
		return nil, err
	}
	return &OutputPatch{patch: patch{kind: p.kind, synth: s, in: []engine.Node{g}}, g: g}, nil
}

func (o *OutputPatch) Gain() *engine.Param { return o.g.Gain() }

func (o *OutputPatch) SetGain(v, time float64, r Ramp) error {
	return SetParam(o.g.Gain(), v, time, r)
}
