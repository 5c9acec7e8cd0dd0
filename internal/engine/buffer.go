package engine

import (
	"errors"
	"fmt"
	"io"
	"os"

	wav "github.com/youpy/go-wav"
)

// Buffer is decoded mono audio.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// LoadWAV decodes a WAV file, keeping the first channel.
func LoadWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf, nil
}

// WAVSource is what the WAV decoder reads from; *os.File and *bytes.Reader qualify.
type WAVSource interface {
	io.Reader
	io.ReaderAt
}

func DecodeWAV(src WAVSource) (*Buffer, error) {
	r := wav.NewReader(src)
	format, err := r.Format()
	if err != nil {
		return nil, err
	}
	buf := &Buffer{SampleRate: int(format.SampleRate)}
	for {
		samples, err := r.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, sample := range samples {
			buf.Samples = append(buf.Samples, float32(r.FloatValue(sample, 0)))
		}
	}
	return buf, nil
}

// BufferSource plays a Buffer, resampled to the context rate.
type BufferSource struct {
	node
	buf          *Buffer
	loop         bool
	pos          float64
	startAt      float64
	pending      bool
	playbackRate *Param
}

func (c *Context) NewBufferSource(buf *Buffer, loop bool) *BufferSource {
	if buf == nil {
		buf = &Buffer{SampleRate: c.sampleRate}
	}
	b := &BufferSource{buf: buf, loop: loop}
	b.init(c, b, 0)
	b.playbackRate = newParam(c, "playbackRate", 1, -maxFloat, maxFloat)
	return b
}

func (b *BufferSource) PlaybackRate() *Param { return b.playbackRate }

func (b *BufferSource) Buffer() *Buffer { return b.buf }

// Start rewinds the playhead when the clock reaches t.
func (b *BufferSource) Start(t float64) {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	b.startAt = t
	b.pending = true
}

func (b *BufferSource) SetLoop(loop bool) {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	b.loop = loop
}

func (b *BufferSource) process(tk tick, _ float64) float64 {
	if b.pending && tk.t >= b.startAt {
		b.pos = 0
		b.pending = false
	}
	n := len(b.buf.Samples)
	if n == 0 {
		return 0
	}
	if b.pos >= float64(n) || b.pos < 0 {
		if !b.loop {
			return 0
		}
		for b.pos >= float64(n) {
			b.pos -= float64(n)
		}
		for b.pos < 0 {
			b.pos += float64(n)
		}
	}
	i := int(b.pos)
	frac := b.pos - float64(i)
	next := i + 1
	if next >= n {
		next = i
		if b.loop {
			next = 0
		}
	}
	out := float64(b.buf.Samples[i])*(1-frac) + float64(b.buf.Samples[next])*frac
	b.pos += b.playbackRate.at(tk) * float64(b.buf.SampleRate) / float64(b.ctx.sampleRate)
	return out
}
