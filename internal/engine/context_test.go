package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/cbegin/patchbay-go/internal/effects"
	"github.com/cbegin/patchbay-go/internal/wave"
)

func energy(buf []float32) float64 {
	var e float64
	for _, s := range buf {
		e += math.Abs(float64(s))
	}
	return e
}

func TestContextClockAdvances(t *testing.T) {
	ctx := NewContext(48000)
	if ctx.CurrentTime() != 0 {
		t.Fatalf("initial time = %v, want 0", ctx.CurrentTime())
	}
	ctx.Render(make([]float32, 4800*2))
	if got := ctx.CurrentTime(); !near(got, 0.1) {
		t.Fatalf("time after 4800 frames = %v, want 0.1", got)
	}
	if got := ctx.Frames(); got != 4800 {
		t.Fatalf("frames = %d, want 4800", got)
	}
}

func TestContextDefaultSampleRate(t *testing.T) {
	if got := NewContext(0).SampleRate(); got != DefaultSampleRate {
		t.Fatalf("sample rate = %d, want %d", got, DefaultSampleRate)
	}
}

func TestOscillatorThroughGainIsSilentAtZero(t *testing.T) {
	ctx := NewContext(8000)
	osc := ctx.NewOscillator(wave.Sine, 440)
	g := ctx.NewGain(0)
	if err := osc.Connect(g); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(ctx.Destination()); err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 800)
	ctx.RenderMono(buf)
	if e := energy(buf); e != 0 {
		t.Fatalf("energy with zero gain = %v, want 0", e)
	}
	g.Gain().SetValue(1)
	ctx.RenderMono(buf)
	if e := energy(buf); e == 0 {
		t.Fatal("expected signal with unity gain")
	}
}

func TestGainAutomationIsSampleAccurate(t *testing.T) {
	ctx := NewContext(1000)
	src := ctx.NewBufferSource(&Buffer{Samples: []float32{1}, SampleRate: 1000}, true)
	g := ctx.NewGain(0)
	src.Connect(g)
	g.Connect(ctx.Destination())
	g.Gain().SetValueAtTime(1, 0.01) // frame 10
	buf := make([]float32, 20)
	ctx.RenderMono(buf)
	for i, s := range buf {
		want := float32(0)
		if i >= 10 {
			want = 1
		}
		if s != want {
			t.Fatalf("frame %d = %v, want %v", i, s, want)
		}
	}
}

func TestStereoRenderDuplicatesChannels(t *testing.T) {
	ctx := NewContext(8000)
	ctx.NewNoise(1).Connect(ctx.Destination())
	buf := make([]float32, 64)
	ctx.Render(buf)
	for i := 0; i < len(buf); i += 2 {
		if buf[i] != buf[i+1] {
			t.Fatalf("frame %d: left %v != right %v", i/2, buf[i], buf[i+1])
		}
	}
	if energy(buf) == 0 {
		t.Fatal("expected noise output")
	}
}

func TestFanOutRendersSourceOnce(t *testing.T) {
	ctx := NewContext(1000)
	osc := ctx.NewOscillator(wave.Sawtooth, 100)
	a, b := ctx.NewGain(1), ctx.NewGain(1)
	osc.Connect(a)
	osc.Connect(b)
	a.Connect(ctx.Destination())
	b.Connect(ctx.Destination())
	buf := make([]float32, 10)
	ctx.RenderMono(buf)
	// saw from phase 0 at 100 Hz / 1 kHz: -1, -0.8, ... doubled by the two paths
	for i, s := range buf {
		want := 2 * (2*float64(i)*0.1 - 1)
		if math.Abs(float64(s)-want) > 1e-5 {
			t.Fatalf("frame %d = %v, want %v", i, s, want)
		}
	}
}

func TestConnectDeduplicatesAndRejectsSources(t *testing.T) {
	ctx := NewContext(1000)
	osc := ctx.NewOscillator(wave.Sine, 1)
	g := ctx.NewGain(1)
	osc.Connect(g)
	osc.Connect(g)
	if n := len(g.Inputs()); n != 1 {
		t.Fatalf("inputs = %d, want 1", n)
	}
	if err := g.Connect(osc); !errors.Is(err, ErrNotConnectable) {
		t.Fatalf("connect into source error = %v, want ErrNotConnectable", err)
	}
	other := NewContext(1000)
	if err := osc.Connect(other.NewGain(1)); !errors.Is(err, ErrContextMismatch) {
		t.Fatalf("cross-context error = %v, want ErrContextMismatch", err)
	}
}

func TestDisconnect(t *testing.T) {
	ctx := NewContext(1000)
	osc := ctx.NewOscillator(wave.Square, 10)
	g := ctx.NewGain(1)
	osc.Connect(g)
	osc.ConnectParam(g.Gain())
	osc.Disconnect()
	if n := len(g.Inputs()); n != 0 {
		t.Fatalf("inputs after disconnect = %d, want 0", n)
	}
}

func TestParamModulation(t *testing.T) {
	ctx := NewContext(1000)
	dc := ctx.NewBufferSource(&Buffer{Samples: []float32{1}, SampleRate: 1000}, true)
	mod := ctx.NewGain(0.5)
	dc.Connect(mod)
	g := ctx.NewGain(1)
	dc.Connect(g)
	mod.ConnectParam(g.Gain())
	g.Connect(ctx.Destination())
	buf := make([]float32, 4)
	ctx.RenderMono(buf)
	if buf[3] != 1.5 {
		t.Fatalf("modulated output = %v, want 1.5", buf[3])
	}
}

func TestDelayFeedbackLoop(t *testing.T) {
	ctx := NewContext(1000)
	impulse := ctx.NewBufferSource(&Buffer{Samples: []float32{1}, SampleRate: 1000}, false)
	d := ctx.NewDelay(0.005, 0.1)
	fb := ctx.NewGain(0.5)
	impulse.Connect(d)
	d.Connect(fb)
	fb.Connect(d)
	d.Connect(ctx.Destination())
	buf := make([]float32, 20)
	ctx.RenderMono(buf)
	if buf[5] != 1 {
		t.Fatalf("first echo = %v, want 1", buf[5])
	}
	if buf[11] != 0.5 && buf[10] != 0.5 {
		t.Fatalf("expected a second, quieter echo, got %v", buf)
	}
}

func TestBiquadLowpassAttenuatesHighs(t *testing.T) {
	ctx := NewContext(48000)
	osc := ctx.NewOscillator(wave.Sine, 12000)
	f := ctx.NewBiquadFilter(Lowpass, 200, 0.707)
	a := ctx.NewAnalyser(1024)
	osc.Connect(f)
	f.Connect(a)
	a.Connect(ctx.Destination())
	ctx.RenderMono(make([]float32, 4800))
	if rms := a.RMS(); rms > 0.01 {
		t.Fatalf("lowpassed RMS = %v, want < 0.01", rms)
	}
	f.SetType(Highpass)
	ctx.RenderMono(make([]float32, 4800))
	if rms := a.RMS(); rms < 0.5 {
		t.Fatalf("highpassed RMS = %v, want ~0.707", rms)
	}
}

func TestParseFilterType(t *testing.T) {
	for in, want := range map[string]FilterType{"lp": Lowpass, "highpass": Highpass, "BP": Bandpass, "notch": Notch, "peak": Peaking} {
		got, err := ParseFilterType(in)
		if err != nil || got != want {
			t.Errorf("ParseFilterType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFilterType("comb"); err == nil {
		t.Error("expected error for unknown filter type")
	}
}

func TestAnalyserKeepsLatestSamples(t *testing.T) {
	ctx := NewContext(1000)
	src := ctx.NewBufferSource(&Buffer{Samples: []float32{1, 2, 3, 4, 5}, SampleRate: 1000}, false)
	a := ctx.NewAnalyser(3)
	src.Connect(a)
	ctx.RenderMono(make([]float32, 5)) // analyser is not connected to the destination
	if got := a.TimeDomainData(); got[0] != 0 {
		t.Fatalf("unpulled analyser data = %v, want zeros", got)
	}
	a.Connect(ctx.Destination())
	src.Start(0)
	ctx.RenderMono(make([]float32, 5))
	got := a.TimeDomainData()
	want := []float32{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("data = %v, want %v", got, want)
		}
	}
	if a.Peak() != 5 {
		t.Fatalf("peak = %v, want 5", a.Peak())
	}
}

func TestBufferSourcePlaybackRateAndLoop(t *testing.T) {
	ctx := NewContext(1000)
	src := ctx.NewBufferSource(&Buffer{Samples: []float32{0, 1, 2, 3}, SampleRate: 1000}, true)
	src.PlaybackRate().SetValue(2)
	src.Connect(ctx.Destination())
	buf := make([]float32, 4)
	ctx.RenderMono(buf)
	want := []float32{0, 2, 0, 2}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("output = %v, want %v", buf, want)
		}
	}
}

func TestEffectNode(t *testing.T) {
	ctx := NewContext(1000)
	dc := ctx.NewBufferSource(&Buffer{Samples: []float32{0.5}, SampleRate: 1000}, true)
	fx := ctx.NewEffect(effects.NewDistortion(1000, 1, 2, 0))
	dc.Connect(fx)
	fx.Connect(ctx.Destination())
	buf := make([]float32, 1)
	ctx.RenderMono(buf)
	want := float32(2 * math.Tanh(0.5))
	if math.Abs(float64(buf[0]-want)) > 1e-6 {
		t.Fatalf("effect output = %v, want %v", buf[0], want)
	}
}

func TestInputRing(t *testing.T) {
	ctx := NewContext(1000)
	in := ctx.NewInput(4)
	in.Connect(ctx.Destination())
	if n := in.Write([]float32{1, 2, 3, 4, 5, 6}); n != 4 {
		t.Fatalf("written = %d, want 4", n)
	}
	if in.Dropped() != 2 {
		t.Fatalf("dropped = %d, want 2", in.Dropped())
	}
	buf := make([]float32, 6)
	ctx.RenderMono(buf)
	want := []float32{1, 2, 3, 4, 0, 0}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("output = %v, want %v", buf, want)
		}
	}
}

func TestOutputTap(t *testing.T) {
	ctx := NewContext(1000)
	ctx.NewBufferSource(&Buffer{Samples: []float32{1}, SampleRate: 1000}, true).Connect(ctx.Destination())
	ctx.SetOutputTap(func(s float32) float32 { return s * 0.25 })
	buf := make([]float32, 2)
	ctx.RenderMono(buf)
	if buf[1] != 0.25 {
		t.Fatalf("tapped output = %v, want 0.25", buf[1])
	}
}

func pcm16WAV(samples []int16, sampleRate int) []byte {
	var b bytes.Buffer
	dataSize := len(samples) * 2
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataSize))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&b, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataSize))
	binary.Write(&b, binary.LittleEndian, samples)
	return b.Bytes()
}

func TestDecodeWAV(t *testing.T) {
	raw := pcm16WAV([]int16{0, 16384, -16384, 0}, 22050)
	buf, err := DecodeWAV(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.SampleRate != 22050 {
		t.Fatalf("sample rate = %d, want 22050", buf.SampleRate)
	}
	if len(buf.Samples) != 4 {
		t.Fatalf("samples = %d, want 4", len(buf.Samples))
	}
	if math.Abs(float64(buf.Samples[1])-0.5) > 0.01 || math.Abs(float64(buf.Samples[2])+0.5) > 0.01 {
		t.Fatalf("decoded samples = %v", buf.Samples)
	}
}
