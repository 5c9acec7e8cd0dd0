package patchbay

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/cbegin/patchbay-go/internal/engine"
	"github.com/cbegin/patchbay-go/internal/scheduler"
	"github.com/cbegin/patchbay-go/internal/synth"
)

func newOfflineSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	opts = append([]SessionOption{WithBackend(BackendNone), WithMasterEQ(false)}, opts...)
	s, err := NewSession(8000, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func framePeak(buf []float32, from, to int) float64 {
	var p float64
	for i := from * 2; i < to*2 && i < len(buf); i++ {
		p = max(p, math.Abs(float64(buf[i])))
	}
	return p
}

func TestScheduledPlayIsSampleAccurate(t *testing.T) {
	s := newOfflineSession(t)
	osc, err := s.Synth().MakeOsc(synth.Params{"type": "square", "freq": 200})
	if err != nil {
		t.Fatal(err)
	}
	out, _ := s.Synth().MakeOutput(nil)
	if err := s.Synth().Connect(osc, out); err != nil {
		t.Fatal(err)
	}
	s.Scheduler().Insert(0.1, func(tk scheduler.Tick, _ ...any) error {
		return osc.Play(tk.Time)
	})
	s.Scheduler().Insert(0.2, func(tk scheduler.Tick, _ ...any) error {
		return osc.Stop(tk.Time)
	})

	buf := RenderOffline(s, 0.3)
	if got := len(buf); got != 2*2400 {
		t.Fatalf("rendered %d samples, want 4800", got)
	}
	if p := framePeak(buf, 0, 801); p != 0 {
		t.Fatalf("sound before 0.1s: peak %v", p)
	}
	if p := framePeak(buf, 840, 1600); p < 0.9 {
		t.Fatalf("note peak %v, want ~1", p)
	}
	if p := framePeak(buf, 1800, 2400); p > 1e-6 {
		t.Fatalf("sound after release: peak %v", p)
	}
	if s.Scheduler().Len() != 0 {
		t.Fatalf("queue not drained: %d", s.Scheduler().Len())
	}
}

func TestRenderOfflineIsDeterministic(t *testing.T) {
	render := func() []float32 {
		s := newOfflineSession(t, WithMasterEQ(true))
		n, _ := s.Synth().MakeNoise(synth.Params{"seed": 3})
		f, _ := s.Synth().MakeFilter(synth.Params{"type": "bp", "f": 900, "q": 2})
		fx, _ := s.Synth().MakeEffect(synth.Params{"fx": "reverb"})
		out, _ := s.Synth().MakeOutput(synth.Params{"gain": 0.5})
		if err := s.Synth().Connect(n, f, fx, out); err != nil {
			t.Fatal(err)
		}
		s.Scheduler().Insert(0.05, func(tk scheduler.Tick, _ ...any) error {
			return s.Synth().Play(tk.Time)
		})
		return RenderOffline(s, 0.2)
	}
	a, b := render(), render()
	if !bytes.Equal(EncodeWAVFloat32LE(a, 8000, 2), EncodeWAVFloat32LE(b, 8000, 2)) {
		t.Fatal("two renders of the same script differ")
	}
	if framePeak(a, 0, 1600) == 0 {
		t.Fatal("render is silent")
	}
}

func TestMasterVolumeRuntimeAPI(t *testing.T) {
	s := newOfflineSession(t)
	if got := s.MasterVolume(); got != 1 {
		t.Fatalf("default master volume = %v, want 1", got)
	}
	s.SetMasterVolume(0.35)
	if got := s.MasterVolume(); got != 0.35 {
		t.Fatalf("master volume = %v, want 0.35", got)
	}
	s.SetMasterVolume(-2)
	if got := s.MasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}

	osc, _ := s.Synth().MakeOsc(nil)
	out, _ := s.Synth().MakeOutput(nil)
	_ = s.Synth().Connect(osc, out)
	_ = osc.Play(0)
	if p := framePeak(RenderOffline(s, 0.05), 0, 400); p != 0 {
		t.Fatalf("muted session peak %v", p)
	}
}

func TestEQBandRuntimeAPI(t *testing.T) {
	s := newOfflineSession(t)
	if got := s.EQBand(2); got != 1 {
		t.Fatalf("default band gain = %v", got)
	}
	s.SetEQBand(2, 0.5)
	if got := s.EQBand(2); got != 0.5 {
		t.Fatalf("band gain = %v, want 0.5", got)
	}
}

func TestNewSessionValidation(t *testing.T) {
	if _, err := NewSession(48000, WithBackend("jack")); err == nil {
		t.Fatal("unknown backend accepted")
	}
	if _, err := NewSession(48000, WithBackend(BackendNone), WithLookahead(0)); err == nil {
		t.Fatal("zero lookahead accepted")
	}
	if _, err := NewSession(48000, WithBackend(BackendNone), WithTickInterval(-time.Second)); err == nil {
		t.Fatal("negative tick interval accepted")
	}
	s, err := NewSession(0, WithBackend(BackendNone))
	if err != nil {
		t.Fatal(err)
	}
	if s.SampleRate() != engine.DefaultSampleRate {
		t.Fatalf("sample rate = %d", s.SampleRate())
	}
}

func TestSessionStartStopWithoutDevice(t *testing.T) {
	s := newOfflineSession(t, WithTickInterval(time.Hour))
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if !s.Running() || !s.Scheduler().Running() {
		t.Fatal("session not running after Start")
	}
	s.Scheduler().Insert(5, func(scheduler.Tick, ...any) error { return nil })
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if s.Running() || s.Scheduler().Len() != 0 {
		t.Fatalf("after Stop: running %v, queue %d", s.Running(), s.Scheduler().Len())
	}
}

func TestCallbackFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	s := newOfflineSession(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	ran := false
	s.Scheduler().Insert(0, func(scheduler.Tick, ...any) error { panic("boom") })
	s.Scheduler().Insert(0, func(scheduler.Tick, ...any) error { ran = true; return nil })
	RenderOffline(s, 0.01)
	if !ran {
		t.Fatal("event after a panicking callback did not run")
	}
	if !strings.Contains(logs.String(), "level=ERROR") || !strings.Contains(logs.String(), "component=scheduler") {
		t.Fatalf("failure not logged: %q", logs.String())
	}
}

func TestInputOpenerOption(t *testing.T) {
	s := newOfflineSession(t, WithInputOpener(func(*engine.Input) (io.Closer, error) {
		return nil, errors.New("unplugged")
	}))
	in, err := s.Synth().MakeInput(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(in.Err(), synth.ErrResourceUnavailable) {
		t.Fatalf("Err = %v", in.Err())
	}
}

func TestEncodeWAVFloat32LEHeader(t *testing.T) {
	wav := EncodeWAVFloat32LE([]float32{0.5, -0.5}, 44100, 2)
	if len(wav) != 52 {
		t.Fatalf("len = %d, want 52", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", wav[:40])
	}
	if f := binary.LittleEndian.Uint16(wav[20:]); f != 3 {
		t.Fatalf("format = %d, want 3 (float)", f)
	}
	if sr := binary.LittleEndian.Uint32(wav[24:]); sr != 44100 {
		t.Fatalf("sample rate = %d", sr)
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(wav[48:])); v != -0.5 {
		t.Fatalf("second sample = %v", v)
	}
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("default logger is enabled")
	}
	var logs bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	s := newOfflineSession(t)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	_ = s.Stop()
	if !strings.Contains(logs.String(), "session started") {
		t.Fatalf("session did not use the package logger: %q", logs.String())
	}
	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("SetLogger(nil) did not restore silence")
	}
}
