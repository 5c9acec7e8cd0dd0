// Package synth composes engine nodes into patches: uniform wiring units
// built by kind from a parameter bag, connected in stages and played or
// stopped together.
package synth

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/cbegin/patchbay-go/internal/engine"
)

// Synth is a patch factory and registry bound to one engine context.
type Synth struct {
	ctx    *engine.Context
	logger *slog.Logger
	opener InputOpener

	mu      sync.Mutex
	patches []Patch
	sources []SourcePatch
}

type Option func(*Synth)

func WithLogger(l *slog.Logger) Option {
	return func(s *Synth) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInputOpener sets how input patches acquire a capture device.
func WithInputOpener(open InputOpener) Option {
	return func(s *Synth) { s.opener = open }
}

func New(ctx *engine.Context, opts ...Option) *Synth {
	s := &Synth{
		ctx:    ctx,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synth) Context() *engine.Context { return s.ctx }

// Make builds a patch of the given kind and registers it.
func (s *Synth) Make(kind Kind, p Params) (Patch, error) {
	e, ok := registry[kind]
	if !ok {
		return nil, &ConfigError{Kind: kind, Err: fmt.Errorf("%w %q", ErrUnknownKind, string(kind))}
	}
	np, err := normalize(kind, e.keys, p)
	if err != nil {
		return nil, err
	}
	pt, err := e.build(s, np)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.patches = append(s.patches, pt)
	if src, ok := pt.(SourcePatch); ok {
		s.sources = append(s.sources, src)
	}
	s.mu.Unlock()
	s.logger.Debug("patch created", "kind", kind)
	return pt, nil
}

func makeAs[T Patch](s *Synth, kind Kind, p Params) (T, error) {
	pt, err := s.Make(kind, p)
	if err != nil {
		var zero T
		return zero, err
	}
	return pt.(T), nil
}

func (s *Synth) MakeOsc(p Params) (*OscPatch, error) { return makeAs[*OscPatch](s, KindOsc, p) }

func (s *Synth) MakeNoise(p Params) (*NoisePatch, error) {
	return makeAs[*NoisePatch](s, KindNoise, p)
}

func (s *Synth) MakeBuffer(p Params) (*BufferPatch, error) {
	return makeAs[*BufferPatch](s, KindBuffer, p)
}

// MakeInput never fails because the device is missing; check Active or Err.
func (s *Synth) MakeInput(p Params) (*InputPatch, error) {
	return makeAs[*InputPatch](s, KindInput, p)
}

func (s *Synth) MakeGain(p Params) (*GainPatch, error) { return makeAs[*GainPatch](s, KindGain, p) }

func (s *Synth) MakeFilter(p Params) (*FilterPatch, error) {
	return makeAs[*FilterPatch](s, KindFilter, p)
}

func (s *Synth) MakeFilterBank(p Params) (*FilterBankPatch, error) {
	return makeAs[*FilterBankPatch](s, KindFilterBank, p)
}

func (s *Synth) MakeDelay(p Params) (*DelayPatch, error) {
	return makeAs[*DelayPatch](s, KindDelay, p)
}

func (s *Synth) MakeAnalyser(p Params) (*AnalyserPatch, error) {
	return makeAs[*AnalyserPatch](s, KindAnalyser, p)
}

func (s *Synth) MakeEffect(p Params) (*EffectPatch, error) {
	return makeAs[*EffectPatch](s, KindEffect, p)
}

func (s *Synth) MakeOutput(p Params) (*OutputPatch, error) {
	return makeAs[*OutputPatch](s, KindOutput, p)
}

// Patches returns every patch made so far, in creation order.
func (s *Synth) Patches() []Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.patches)
}

// Sources returns the source patches made so far, in creation order.
func (s *Synth) Sources() []SourcePatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sources)
}

// Connect wires consecutive stages. A stage is a Patch or a []Patch; every
// patch of one stage is connected to every patch of the next. All stages are
// checked before anything is wired.
func (s *Synth) Connect(stages ...any) error {
	groups := make([][]Patch, len(stages))
	for i, st := range stages {
		switch v := st.(type) {
		case Patch:
			groups[i] = []Patch{v}
		case []Patch:
			if slices.Contains(v, nil) {
				return fmt.Errorf("%w: stage %d contains nil", ErrContractViolation, i)
			}
			groups[i] = v
		default:
			return fmt.Errorf("%w: stage %d is %T", ErrContractViolation, i, st)
		}
		for _, pt := range groups[i] {
			if i > 0 && len(pt.Inputs()) == 0 {
				return fmt.Errorf("%w: stage %d: %s patch has no inputs", ErrContractViolation, i, pt.Kind())
			}
			if i < len(stages)-1 && len(pt.Outputs()) == 0 {
				return fmt.Errorf("%w: stage %d: %s patch has no outputs", ErrContractViolation, i, pt.Kind())
			}
		}
	}
	for i := 1; i < len(groups); i++ {
		for _, src := range groups[i-1] {
			for _, dst := range groups[i] {
				if err := src.Connect(dst); err != nil {
					return fmt.Errorf("stage %d: %w", i, err)
				}
			}
		}
	}
	return nil
}

// Play starts every source patch at time.
func (s *Synth) Play(time float64) error {
	var errs []error
	for _, src := range s.Sources() {
		errs = append(errs, src.Play(time))
	}
	return errors.Join(errs...)
}

// Stop stops every source patch at time.
func (s *Synth) Stop(time float64) error {
	var errs []error
	for _, src := range s.Sources() {
		errs = append(errs, src.Stop(time))
	}
	return errors.Join(errs...)
}
