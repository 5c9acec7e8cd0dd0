package scheduler

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	bits atomic.Uint64
}

func (c *fakeClock) CurrentTime() float64 { return math.Float64frombits(c.bits.Load()) }
func (c *fakeClock) Set(t float64)        { c.bits.Store(math.Float64bits(t)) }

// recorder collects callback names in dispatch order.
type recorder struct {
	mu    sync.Mutex
	names []string
	times []float64
}

func (r *recorder) cb(name string) Callback {
	return func(tick Tick, _ ...any) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.names = append(r.names, name)
		r.times = append(r.times, tick.Time)
		return nil
	}
}

func (r *recorder) got() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.names, ",")
}

// manual returns a scheduler whose timer never fires during a test.
func manual(clock TimeSource, opts ...Option) *Scheduler {
	return New(clock, append([]Option{WithTickInterval(time.Hour)}, opts...)...)
}

func TestEndToEndLookaheadScenario(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock, WithLookahead(0.1))
	defer s.Stop(true)
	var rec recorder
	s.Insert(0.05, rec.cb("A")).Insert(0.02, rec.cb("B")).Insert(0.2, rec.cb("C"))
	s.Start()
	s.Poll()
	if got := rec.got(); got != "B,A" {
		t.Fatalf("first poll dispatched %q, want B,A", got)
	}
	if s.Len() != 1 {
		t.Fatalf("pending = %d, want 1", s.Len())
	}
	clock.Set(0.05)
	s.Poll()
	if got := rec.got(); got != "B,A" {
		t.Fatalf("C dispatched too early: %q", got)
	}
	clock.Set(0.11)
	s.Poll()
	if got := rec.got(); got != "B,A,C" {
		t.Fatalf("after clock passed 0.1 dispatched %q, want B,A,C", got)
	}
}

func TestStartWithPollsSynchronously(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock)
	defer s.Stop(true)
	var rec recorder
	s.Insert(0.05, rec.cb("queued"))
	s.StartWith(rec.cb("first"))
	if got := rec.got(); got != "first,queued" {
		t.Fatalf("dispatched %q, want first,queued", got)
	}
	if !s.Running() {
		t.Fatal("scheduler should be running")
	}
	// Already running: the callback is only queued.
	s.StartWith(rec.cb("second"))
	if got := rec.got(); got != "first,queued" {
		t.Fatalf("StartWith on a running scheduler polled: %q", got)
	}
	if s.Len() != 1 {
		t.Fatalf("pending = %d, want 1", s.Len())
	}
}

func TestRestartFromCallback(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock)
	defer s.Stop(true)
	var rec recorder
	restart := func(tk Tick, _ ...any) error {
		tk.Sender.Poll() // nested poll is a no-op
		tk.Sender.Stop(false).StartWith(rec.cb("restarted"))
		return nil
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.StartWith(restart)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StartWith from a callback never returned")
	}
	if got := rec.got(); got != "restarted" {
		t.Fatalf("dispatched %q, want restarted", got)
	}
	if !s.Running() || s.Len() != 0 {
		t.Fatalf("running = %v, pending = %d", s.Running(), s.Len())
	}
	// Later polls are not blocked by the nested restart.
	s.Insert(0.01, rec.cb("after"))
	s.Poll()
	if got := rec.got(); got != "restarted,after" {
		t.Fatalf("dispatched %q, want restarted,after", got)
	}
}

func TestQueueOrderIsStable(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock, WithLookahead(10))
	var rec recorder
	times := []float64{3, 1, 2, 1, 3, 0, 2, 1}
	for i, tm := range times {
		s.Insert(tm, rec.cb(string(rune('a'+i))))
	}
	s.Poll()
	// equal times keep insertion order: 1s are b,d,h; 2s are c,g; 3s are a,e
	if got := rec.got(); got != "f,b,d,h,c,g,a,e" {
		t.Fatalf("dispatch order %q", got)
	}
	for i := 1; i < len(rec.times); i++ {
		if rec.times[i] < rec.times[i-1] {
			t.Fatalf("times not sorted: %v", rec.times)
		}
	}
}

func TestQueueOrderInterleavedWithPolls(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock, WithLookahead(0.1))
	var rec recorder
	s.Insert(0.3, rec.cb("x"))
	s.Insert(0.05, rec.cb("a"))
	s.Poll()
	s.Insert(0.25, rec.cb("y"))
	s.Insert(0.25, rec.cb("z"))
	s.Insert(0.0, rec.cb("late"))
	s.Poll()
	clock.Set(0.3)
	s.Poll()
	if got := rec.got(); got != "a,late,y,z,x" {
		t.Fatalf("dispatch order %q", got)
	}
}

func TestLookaheadContainment(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(1)
	s := manual(clock, WithLookahead(0.1))
	var rec recorder
	for _, tm := range []float64{0.5, 1.0, 1.0999, 1.1, 1.2} {
		s.Insert(tm, rec.cb("e"))
	}
	s.Poll()
	if len(rec.times) != 3 {
		t.Fatalf("dispatched %d events (%v), want 3", len(rec.times), rec.times)
	}
	for _, tm := range rec.times {
		if tm >= 1.1 {
			t.Fatalf("event at %v dispatched outside window", tm)
		}
	}
}

func TestResetClearsQueue(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(5)
	s := manual(clock)
	var rec recorder
	s.Insert(1, rec.cb("past"))
	s.Insert(2, rec.cb("past2"))
	s.Stop(true)
	if s.Len() != 0 {
		t.Fatalf("pending after reset = %d", s.Len())
	}
	s.Start()
	s.Poll()
	s.Stop(false)
	if got := rec.got(); got != "" {
		t.Fatalf("dispatched %q after reset", got)
	}
}

func TestStopWithoutResetKeepsQueue(t *testing.T) {
	s := manual(&fakeClock{})
	s.Start()
	s.Insert(5, func(Tick, ...any) error { return nil })
	s.Stop(false)
	if s.Running() {
		t.Fatal("scheduler still running after Stop")
	}
	if s.Len() != 1 {
		t.Fatalf("pending = %d, want 1", s.Len())
	}
}

func TestNextTickChainsWithFullLookahead(t *testing.T) {
	clock := &fakeClock{}
	s := manual(clock, WithLookahead(0.1))
	var times []float64
	var step Callback
	step = func(tick Tick, args ...any) error {
		times = append(times, tick.Time)
		if n := args[0].(int); n > 1 {
			tick.Sender.NextTick(tick.Time, step, n-1)
		}
		return nil
	}
	s.NextTickNow(step, 3)
	for i := 0; i < 5; i++ {
		s.Poll()
		clock.Set(clock.CurrentTime() + 0.1)
	}
	want := []float64{0.1, 0.2, 0.3}
	if len(times) != len(want) {
		t.Fatalf("times = %v, want %v", times, want)
	}
	for i := range want {
		if math.Abs(times[i]-want[i]) > 1e-9 {
			t.Fatalf("times = %v, want %v", times, want)
		}
	}
}

func TestCallbackArgsAndSender(t *testing.T) {
	s := manual(&fakeClock{})
	var gotArgs []any
	var sender *Scheduler
	s.Insert(0, func(tick Tick, args ...any) error {
		gotArgs = args
		sender = tick.Sender
		return nil
	}, "a", 2)
	s.Poll()
	if sender != s {
		t.Fatal("tick sender is not the scheduler")
	}
	if len(gotArgs) != 2 || gotArgs[0] != "a" || gotArgs[1] != 2 {
		t.Fatalf("args = %v", gotArgs)
	}
}

func TestCallbackFailuresAreIsolated(t *testing.T) {
	var failures []error
	s := manual(&fakeClock{}, WithErrorHandler(func(_ Event, err error) {
		failures = append(failures, err)
	}))
	boom := errors.New("boom")
	var rec recorder
	s.Insert(0, func(Tick, ...any) error { return boom })
	s.Insert(0.01, func(Tick, ...any) error { panic("bad callback") })
	s.Insert(0.02, rec.cb("after"))
	s.Poll()
	if got := rec.got(); got != "after" {
		t.Fatalf("events after failures dispatched %q, want after", got)
	}
	if len(failures) != 2 {
		t.Fatalf("failures = %v, want 2", failures)
	}
	if !errors.Is(failures[0], ErrCallback) || !errors.Is(failures[0], boom) {
		t.Errorf("returned error not wrapped: %v", failures[0])
	}
	var cerr *CallbackError
	if !errors.As(failures[1], &cerr) || cerr.Panic != "bad callback" {
		t.Errorf("panic not captured: %v", failures[1])
	}
}

func TestCallbackFailureIsLoggedByDefault(t *testing.T) {
	var buf bytes.Buffer
	s := manual(&fakeClock{}, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	s.Insert(0, func(Tick, ...any) error { return errors.New("nope") })
	s.Poll()
	if !strings.Contains(buf.String(), "scheduled callback failed") || !strings.Contains(buf.String(), "nope") {
		t.Fatalf("log output %q", buf.String())
	}
}

func TestTimerPollsPeriodically(t *testing.T) {
	clock := &fakeClock{}
	s := New(clock, WithTickInterval(time.Millisecond))
	defer s.Stop(true)
	done := make(chan struct{})
	s.Insert(0.05, func(Tick, ...any) error {
		close(done)
		return nil
	})
	s.Start().Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never dispatched the event")
	}
}

func BenchmarkInsertAppend(b *testing.B) {
	s := manual(&fakeClock{})
	cb := func(Tick, ...any) error { return nil }
	for i := 0; i < b.N; i++ {
		s.Insert(float64(i), cb)
	}
}

func BenchmarkInsertFront(b *testing.B) {
	s := manual(&fakeClock{})
	cb := func(Tick, ...any) error { return nil }
	for i := 0; i < b.N; i++ {
		s.Insert(float64(-i), cb)
		if s.Len() > 1024 {
			s.Stop(true)
		}
	}
}
