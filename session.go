// Package patchbay is a real-time audio patching toolkit: an audio engine,
// a lookahead event scheduler that turns coarse timer ticks into
// sample-accurate parameter automation, and a patch layer for wiring
// oscillators, filters and effects into playable graphs.
package patchbay

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	intaudio "github.com/cbegin/patchbay-go/internal/audio"
	"github.com/cbegin/patchbay-go/internal/effects"
	"github.com/cbegin/patchbay-go/internal/engine"
	"github.com/cbegin/patchbay-go/internal/scheduler"
	"github.com/cbegin/patchbay-go/internal/synth"
)

// Backend selects the realtime output device driver.
type Backend string

const (
	BackendEbiten    Backend = "ebiten"
	BackendPortAudio Backend = "portaudio"
	// BackendNone renders only when asked (RenderOffline).
	BackendNone Backend = "none"
)

func ParseBackend(name string) (Backend, error) {
	switch b := Backend(name); b {
	case BackendEbiten, BackendPortAudio, BackendNone:
		return b, nil
	}
	return "", fmt.Errorf("unknown audio backend %q", name)
}

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	backend         Backend
	tickInterval    time.Duration
	lookahead       float64
	masterEQ        bool
	framesPerBuffer int
	logger          *slog.Logger
	inputOpener     synth.InputOpener
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		backend:      BackendEbiten,
		tickInterval: scheduler.DefaultTickInterval,
		lookahead:    scheduler.DefaultLookahead,
		masterEQ:     true,
		logger:       Logger(),
	}
}

func WithBackend(b Backend) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.backend = b
	}
}

func WithTickInterval(d time.Duration) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.tickInterval = d
	}
}

// WithLookahead sets how far ahead of the clock, in seconds, events are
// dispatched.
func WithLookahead(seconds float64) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.lookahead = seconds
	}
}

// WithMasterEQ enables or bypasses the 5-band master EQ. It is on by default.
func WithMasterEQ(enabled bool) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.masterEQ = enabled
	}
}

// WithFramesPerBuffer sets the PortAudio device buffer size.
func WithFramesPerBuffer(n int) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.framesPerBuffer = n
	}
}

func WithLogger(l *slog.Logger) SessionOption {
	return func(cfg *sessionConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithInputOpener replaces the PortAudio capture used by input patches.
func WithInputOpener(open synth.InputOpener) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.inputOpener = open
	}
}

// Session bundles an engine context, its scheduler and patch factory, and
// the output device that drives the clock.
type Session struct {
	mu      sync.Mutex
	cfg     sessionConfig
	ctx     *engine.Context
	sched   *scheduler.Scheduler
	synth   *synth.Synth
	eq      *effects.EQ5Band
	volume  atomic.Uint64
	out     intaudio.Output
	running bool
}

func NewSession(sampleRate int, opts ...SessionOption) (*Session, error) {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if _, err := ParseBackend(string(cfg.backend)); err != nil {
		return nil, err
	}
	if cfg.tickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %v", cfg.tickInterval)
	}
	if !(cfg.lookahead > 0) {
		return nil, fmt.Errorf("lookahead must be positive, got %v", cfg.lookahead)
	}
	ctx := engine.NewContext(sampleRate)
	s := &Session{
		cfg: cfg,
		ctx: ctx,
		eq:  effects.NewEQ5Band(ctx.SampleRate()),
	}
	s.volume.Store(math.Float64bits(1))
	s.sched = scheduler.New(ctx,
		scheduler.WithTickInterval(cfg.tickInterval),
		scheduler.WithLookahead(cfg.lookahead),
		scheduler.WithLogger(cfg.logger.With("component", "scheduler")))
	opener := cfg.inputOpener
	if opener == nil {
		opener = s.openCapture
	}
	s.synth = synth.New(ctx,
		synth.WithLogger(cfg.logger.With("component", "synth")),
		synth.WithInputOpener(opener))
	ctx.SetOutputTap(s.master)
	return s, nil
}

func (s *Session) openCapture(in *engine.Input) (io.Closer, error) {
	return intaudio.OpenCapture(s.ctx.SampleRate(), s.cfg.framesPerBuffer, in)
}

// master is the per-sample output stage: EQ then volume.
func (s *Session) master(x float32) float32 {
	if s.cfg.masterEQ {
		x = s.eq.Process(x)
	}
	return x * float32(math.Float64frombits(s.volume.Load()))
}

func (s *Session) Engine() *engine.Context         { return s.ctx }
func (s *Session) Scheduler() *scheduler.Scheduler { return s.sched }
func (s *Session) Synth() *synth.Synth             { return s.synth }
func (s *Session) SampleRate() int                 { return s.ctx.SampleRate() }
func (s *Session) Backend() Backend                { return s.cfg.backend }

// Now returns the audio clock in seconds.
func (s *Session) Now() float64 { return s.ctx.CurrentTime() }

// Start opens the output device and starts the scheduler timer.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	var (
		out intaudio.Output
		err error
	)
	switch s.cfg.backend {
	case BackendEbiten:
		out, err = intaudio.NewPlayer(s.ctx.SampleRate(), s.ctx)
	case BackendPortAudio:
		out, err = intaudio.NewPortAudioOutput(s.ctx.SampleRate(), s.cfg.framesPerBuffer, s.ctx)
	}
	if err != nil {
		return fmt.Errorf("open %s output: %w", s.cfg.backend, err)
	}
	if out != nil {
		if err := out.Start(); err != nil {
			_ = out.Stop()
			return fmt.Errorf("start %s output: %w", s.cfg.backend, err)
		}
	}
	s.out = out
	s.sched.Start()
	s.running = true
	attrs := []any{"backend", s.cfg.backend, "sampleRate", s.ctx.SampleRate()}
	if p, ok := out.(interface{ Latency() time.Duration }); ok {
		attrs = append(attrs, "latency", p.Latency())
	}
	s.cfg.logger.Info("session started", attrs...)
	return nil
}

// Stop halts the scheduler, drops pending events and closes the output.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.sched.Stop(true)
	var err error
	attrs := []any{"clock", s.ctx.CurrentTime()}
	if s.out != nil {
		if p, ok := s.out.(interface{ Frames() int64 }); ok {
			attrs = append(attrs, "deviceFrames", p.Frames())
		}
		err = s.out.Stop()
		s.out = nil
	}
	s.running = false
	s.cfg.logger.Info("session stopped", attrs...)
	return err
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetMasterVolume sets the linear output gain. Negative values clamp to 0.
func (s *Session) SetMasterVolume(volume float64) {
	if volume < 0 || math.IsNaN(volume) {
		volume = 0
	}
	s.volume.Store(math.Float64bits(volume))
}

func (s *Session) MasterVolume() float64 {
	return math.Float64frombits(s.volume.Load())
}

// SetEQBand sets the gain for a master EQ band (0-4). 1.0 = unity.
// Band frequencies: 0=<200Hz, 1=200-800Hz, 2=800-2.5kHz, 3=2.5-8kHz, 4=>8kHz.
func (s *Session) SetEQBand(band int, gain float32) {
	s.eq.SetGain(band, gain)
}

// EQBand returns the current gain for a master EQ band (0-4).
func (s *Session) EQBand(band int) float32 {
	return s.eq.Gain(band)
}
