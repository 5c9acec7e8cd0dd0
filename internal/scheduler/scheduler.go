// Package scheduler dispatches time-stamped callbacks ahead of an audio clock.
//
// A coarse periodic timer polls the queue; each poll dispatches every event
// whose time falls inside the lookahead window measured against the clock.
// Keeping the tick interval well below the lookahead means a late or skipped
// tick is absorbed by the next one instead of dropping events, at the cost of
// events being handed out up to one lookahead early.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultTickInterval = 25 * time.Millisecond
	DefaultLookahead    = 0.1 // seconds
)

// TimeSource is the authoritative clock, in seconds.
type TimeSource interface {
	CurrentTime() float64
}

// Tick is passed to every callback.
type Tick struct {
	Sender *Scheduler
	Time   float64 // the event's scheduled time
}

// Callback is a scheduled function. A returned error is reported to the
// scheduler's error handler; it does not stop the poll.
type Callback func(tick Tick, args ...any) error

// Event is a queued callback.
type Event struct {
	Time     float64
	Callback Callback
	Args     []any
}

var ErrCallback = errors.New("scheduled callback failed")

// CallbackError wraps a failure returned or raised by a scheduled callback.
type CallbackError struct {
	Time  float64
	Err   error
	Panic any
}

func (e *CallbackError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("callback at %.6fs panicked: %v", e.Time, e.Panic)
	}
	return fmt.Sprintf("callback at %.6fs: %v", e.Time, e.Err)
}

func (e *CallbackError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCallback, e.Err}
	}
	return []error{ErrCallback}
}

// Option configures a Scheduler.
type Option func(*config)

type config struct {
	tickInterval time.Duration
	lookahead    float64
	logger       *slog.Logger
	onError      func(Event, error)
}

// WithTickInterval sets how often the timer polls the queue.
func WithTickInterval(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.tickInterval = d
		}
	}
}

// WithLookahead sets the dispatch window in seconds.
func WithLookahead(seconds float64) Option {
	return func(cfg *config) {
		if seconds > 0 {
			cfg.lookahead = seconds
		}
	}
}

// WithLogger sets the logger for lifecycle and callback failure records.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithErrorHandler receives every failed callback. The default handler logs
// at error level.
func WithErrorHandler(fn func(Event, error)) Option {
	return func(cfg *config) {
		cfg.onError = fn
	}
}

// Scheduler is a lookahead event queue polled by a periodic timer. It is
// safe for concurrent use, including from its own callbacks.
type Scheduler struct {
	ts           TimeSource
	tickInterval time.Duration
	lookahead    float64
	logger       *slog.Logger
	onError      func(Event, error)

	mu      sync.Mutex // guards queue, stopCh and polling
	queue   []Event
	stopCh  chan struct{}
	polling bool
}

// New returns a stopped scheduler reading time from ts.
func New(ts TimeSource, opts ...Option) *Scheduler {
	cfg := config{
		tickInterval: DefaultTickInterval,
		lookahead:    DefaultLookahead,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Scheduler{
		ts:           ts,
		tickInterval: cfg.tickInterval,
		lookahead:    cfg.lookahead,
		logger:       cfg.logger,
		onError:      cfg.onError,
	}
	if s.onError == nil {
		s.onError = s.logError
	}
	return s
}

func (s *Scheduler) Time() float64 { return s.ts.CurrentTime() }

func (s *Scheduler) Lookahead() float64 { return s.lookahead }

func (s *Scheduler) TickInterval() time.Duration { return s.tickInterval }

// Insert queues cb at time t. Events are kept in time order; events with
// equal times run in insertion order. A time in the past runs on the next poll.
func (s *Scheduler) Insert(t float64, cb Callback, args ...any) *Scheduler {
	ev := Event{Time: t, Callback: cb, Args: args}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	if n == 0 || t >= s.queue[n-1].Time {
		s.queue = append(s.queue, ev)
		return s
	}
	i := 0
	for i < n && s.queue[i].Time <= t {
		i++
	}
	s.queue = append(s.queue, Event{})
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = ev
	return s
}

// NextTick queues cb one full lookahead after t, so a chained callback is
// itself dispatched with a whole window of slack.
func (s *Scheduler) NextTick(t float64, cb Callback, args ...any) *Scheduler {
	return s.Insert(t+s.lookahead, cb, args...)
}

// NextTickNow is NextTick relative to the current time.
func (s *Scheduler) NextTickNow(cb Callback, args ...any) *Scheduler {
	return s.NextTick(s.Time(), cb, args...)
}

// Start arms the poll timer. Calling it while running has no effect.
func (s *Scheduler) Start() *Scheduler {
	s.arm()
	return s
}

// StartWith queues cb at the current time. If the scheduler was stopped it
// is started and polled once immediately, so cb does not wait for the first
// tick; if it was already running cb is only queued. Called from a callback,
// the poll already in progress dispatches cb.
func (s *Scheduler) StartWith(cb Callback, args ...any) *Scheduler {
	s.Insert(s.Time(), cb, args...)
	if s.arm() {
		s.Poll()
	}
	return s
}

func (s *Scheduler) arm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return false
	}
	stop := make(chan struct{})
	s.stopCh = stop
	go s.run(stop)
	s.logger.Debug("scheduler started", "tick", s.tickInterval, "lookahead", s.lookahead)
	return true
}

func (s *Scheduler) run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Poll()
		}
	}
}

// Stop disarms the timer. With reset the queue is emptied as well.
func (s *Scheduler) Stop(reset bool) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
		s.logger.Debug("scheduler stopped", "reset", reset, "pending", len(s.queue))
	}
	if reset {
		s.queue = nil
	}
	return s
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil
}

// Len returns the number of queued events.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Poll runs one tick: every queued event earlier than now+lookahead is
// removed and invoked in time order. Callbacks may queue further events;
// those that land inside the same window run in this poll too. Poll returns
// at once if another poll is dispatching, including when called from a
// callback.
func (s *Scheduler) Poll() {
	if !s.beginPoll() {
		return
	}
	defer s.endPoll()
	end := s.Time() + s.lookahead
	for {
		ev, ok := s.pop(end)
		if !ok {
			return
		}
		s.dispatch(ev)
	}
}

func (s *Scheduler) beginPoll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.polling {
		return false
	}
	s.polling = true
	return true
}

func (s *Scheduler) endPoll() {
	s.mu.Lock()
	s.polling = false
	s.mu.Unlock()
}

func (s *Scheduler) pop(end float64) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 || s.queue[0].Time >= end {
		return Event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return ev, true
}

// dispatch isolates a callback failure so it cannot stop the poll loop.
func (s *Scheduler) dispatch(ev Event) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &CallbackError{Time: ev.Time, Panic: r}
			}
		}()
		if cerr := ev.Callback(Tick{Sender: s, Time: ev.Time}, ev.Args...); cerr != nil {
			err = &CallbackError{Time: ev.Time, Err: cerr}
		}
	}()
	if err != nil {
		s.onError(ev, err)
	}
}

func (s *Scheduler) logError(ev Event, err error) {
	s.logger.Error("scheduled callback failed", "time", ev.Time, "err", err)
}
