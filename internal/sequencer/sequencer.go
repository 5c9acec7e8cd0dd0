// Package sequencer plays step patterns through a Voice, scheduling every
// step on a lookahead scheduler so note times are sample accurate.
package sequencer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cbegin/patchbay-go/internal/scheduler"
)

const (
	DefaultBPM          = 120
	DefaultStepsPerBeat = 4
	DefaultGate         = 0.9
)

// Voice receives note events at their audio-clock times. Times are usually
// slightly in the future.
type Voice interface {
	NoteOn(note int, time float64) error
	NoteOff(time float64) error
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

func (k EventKind) String() string {
	if k == EventPlaybackEnded {
		return "playback ended"
	}
	return "loop completed"
}

type Sequencer struct {
	sched   *scheduler.Scheduler
	voice   Voice
	logger  *slog.Logger
	onEvent func(EventKind)

	mu           sync.Mutex
	pattern      Pattern
	bpm          float64
	stepsPerBeat int
	gate         float64
	loop         bool
	running      bool
	gen          uint64
	step         int
}

type Option func(*Sequencer)

func WithBPM(bpm float64) Option {
	return func(s *Sequencer) {
		if bpm > 0 {
			s.bpm = bpm
		}
	}
}

func WithStepsPerBeat(n int) Option {
	return func(s *Sequencer) {
		if n > 0 {
			s.stepsPerBeat = n
		}
	}
}

// WithGate sets the fraction of its length a note sounds, in (0, 1].
func WithGate(g float64) Option {
	return func(s *Sequencer) {
		if g > 0 && g <= 1 {
			s.gate = g
		}
	}
}

// WithLoop repeats the pattern until Stop. It is on by default.
func WithLoop(loop bool) Option {
	return func(s *Sequencer) { s.loop = loop }
}

func WithPattern(p Pattern) Option {
	return func(s *Sequencer) { s.pattern = append(Pattern(nil), p...) }
}

// WithOnEvent registers a lifecycle callback. It runs on the scheduler's
// goroutine.
func WithOnEvent(fn func(EventKind)) Option {
	return func(s *Sequencer) { s.onEvent = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(sched *scheduler.Scheduler, voice Voice, opts ...Option) *Sequencer {
	s := &Sequencer{
		sched:        sched,
		voice:        voice,
		logger:       slog.New(slog.DiscardHandler),
		bpm:          DefaultBPM,
		stepsPerBeat: DefaultStepsPerBeat,
		gate:         DefaultGate,
		loop:         true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StepDuration returns the length of one step in seconds.
func (s *Sequencer) StepDuration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepDuration()
}

func (s *Sequencer) stepDuration() float64 {
	return 60 / s.bpm / float64(s.stepsPerBeat)
}

func (s *Sequencer) BPM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

// SetBPM changes the tempo from the next step on.
func (s *Sequencer) SetBPM(bpm float64) error {
	if !(bpm > 0) {
		return fmt.Errorf("bpm must be positive, got %v", bpm)
	}
	s.mu.Lock()
	s.bpm = bpm
	s.mu.Unlock()
	return nil
}

func (s *Sequencer) Pattern() Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(Pattern(nil), s.pattern...)
}

// SetPattern replaces the pattern. A running sequencer continues from the
// same step index, wrapped to the new length.
func (s *Sequencer) SetPattern(p Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pattern = append(Pattern(nil), p...)
	if len(p) > 0 {
		s.step %= len(p)
	} else {
		s.step = 0
	}
}

// Step returns the index of the next step to be scheduled.
func (s *Sequencer) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start schedules the first step one lookahead from now. Starting a running
// sequencer does nothing.
func (s *Sequencer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if len(s.pattern) == 0 {
		return errors.New("sequencer: empty pattern")
	}
	s.running = true
	s.gen++
	s.step = 0
	s.sched.NextTickNow(s.fire, s.gen)
	s.logger.Debug("sequencer started", "bpm", s.bpm, "steps", len(s.pattern))
	return nil
}

// Stop cancels the remaining steps and releases the voice now, cutting
// short a note whose release is still scheduled. It releases the voice even
// after a one-shot pattern has ended.
func (s *Sequencer) Stop() error {
	s.mu.Lock()
	if s.running {
		s.logger.Debug("sequencer stopped")
	}
	s.running = false
	s.gen++
	s.mu.Unlock()
	return s.voice.NoteOff(s.sched.Time())
}

// fire plays one step and chains the next. Callbacks from an earlier run
// carry a stale generation and are ignored.
func (s *Sequencer) fire(tick scheduler.Tick, args ...any) error {
	s.mu.Lock()
	if gen, _ := args[0].(uint64); gen != s.gen || !s.running || len(s.pattern) == 0 {
		s.mu.Unlock()
		return nil
	}
	dur := s.stepDuration()
	i := s.step
	st := s.pattern[i]
	holds := 0
	for j := i + 1; j < len(s.pattern) && s.pattern[j] == Hold; j++ {
		holds++
	}
	off := tick.Time + (float64(holds)+s.gate)*dur

	var event *EventKind
	s.step++
	if s.step == len(s.pattern) {
		s.step = 0
		ev := EventLoopCompleted
		if !s.loop {
			ev = EventPlaybackEnded
			s.running = false
		}
		event = &ev
	}
	if s.running {
		s.sched.Insert(tick.Time+dur, s.fire, s.gen)
	}
	s.mu.Unlock()

	var err error
	if st >= 0 {
		err = errors.Join(s.voice.NoteOn(int(st), tick.Time), s.voice.NoteOff(off))
	}
	if event != nil && s.onEvent != nil {
		s.onEvent(*event)
	}
	return err
}
