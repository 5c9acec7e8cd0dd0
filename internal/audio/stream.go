// Package audio connects a rendering engine to sound devices: an ebiten/oto
// stream player, a PortAudio output stream and PortAudio capture for live
// input.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource renders interleaved stereo float32 frames into dst.
type SampleSource interface {
	Process(dst []float32)
}

// Output is a running sound device fed by a SampleSource.
type Output interface {
	Start() error
	Stop() error
}

// StreamReader pulls frames from a SampleSource on demand and encodes them
// as little-endian float32, the layout ebiten's F32 players expect. Partial
// frames at the end of p are left unfilled.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	frames atomic.Int64
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

const bytesPerFrame = 8 // two float32 channels

func (r *StreamReader) Read(p []byte) (int, error) {
	n := len(p) / bytesPerFrame
	if n == 0 {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = slices.Grow(r.buf[:0], 2*n)[:2*n]
	r.source.Process(r.buf)
	for i, v := range r.buf {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	r.frames.Add(int64(n))
	return n * bytesPerFrame, nil
}

// Frames returns the number of frames delivered so far.
func (r *StreamReader) Frames() int64 { return r.frames.Load() }

// DefaultBufferSize is the ebiten player's device buffer. The engine clock
// runs ahead of what is audible by roughly this much.
const DefaultBufferSize = 50 * time.Millisecond

type PlayerOption func(*Player)

// WithBufferSize overrides DefaultBufferSize.
func WithBufferSize(d time.Duration) PlayerOption {
	return func(p *Player) {
		if d > 0 {
			p.bufferSize = d
		}
	}
}

// Player plays a SampleSource through ebiten's (oto) audio context.
type Player struct {
	player     *ebitaudio.Player
	reader     *StreamReader
	bufferSize time.Duration
}

var (
	sharedMu   sync.Mutex
	shared     *ebitaudio.Context
	sharedRate int
)

// audioContext returns the process-wide ebiten context. Ebiten permits
// exactly one, so every player must share its sample rate.
func audioContext(sampleRate int) (*ebitaudio.Context, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared, sharedRate = ebitaudio.NewContext(sampleRate), sampleRate
	}
	if sharedRate != sampleRate {
		return nil, fmt.Errorf("audio context runs at %d Hz, cannot open player at %d Hz", sharedRate, sampleRate)
	}
	return shared, nil
}

func NewPlayer(sampleRate int, source SampleSource, opts ...PlayerOption) (*Player, error) {
	p := &Player{reader: NewStreamReader(source), bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(p)
	}
	ctx, err := audioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	if p.player, err = ctx.NewPlayerF32(p.reader); err != nil {
		return nil, err
	}
	p.player.SetBufferSize(p.bufferSize)
	return p, nil
}

func (p *Player) Start() error {
	p.player.Play()
	return nil
}

// Latency is the configured device buffer.
func (p *Player) Latency() time.Duration { return p.bufferSize }

// Frames returns how many frames the device has pulled.
func (p *Player) Frames() int64 { return p.reader.Frames() }

func (p *Player) Stop() error {
	p.player.Pause()
	return p.player.Close()
}
