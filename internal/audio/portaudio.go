package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const DefaultFramesPerBuffer = 256

// PortAudioOutput plays a SampleSource on the default output device.
type PortAudioOutput struct {
	stream *portaudio.Stream
	source SampleSource
	buf    []float32
}

func NewPortAudioOutput(sampleRate, framesPerBuffer int, source SampleSource) (*PortAudioOutput, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: %w", err)
	}
	o := &PortAudioOutput{source: source}
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), framesPerBuffer, o.process)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio output: %w", err)
	}
	o.stream = stream
	return o, nil
}

// process runs on the PortAudio callback thread with non-interleaved
// channel buffers.
func (o *PortAudioOutput) process(out [][]float32) {
	frames := len(out[0])
	if cap(o.buf) < frames*2 {
		o.buf = make([]float32, frames*2)
	}
	o.buf = o.buf[:frames*2]
	o.source.Process(o.buf)
	for i := range frames {
		out[0][i] = o.buf[2*i]
		out[1][i] = o.buf[2*i+1]
	}
}

func (o *PortAudioOutput) Start() error {
	return o.stream.Start()
}

func (o *PortAudioOutput) Stop() error {
	err := o.stream.Stop()
	if cerr := o.stream.Close(); err == nil {
		err = cerr
	}
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

// SampleWriter accepts captured mono samples without blocking.
type SampleWriter interface {
	Write(samples []float32) int
}

// Capture streams the default input device into a SampleWriter.
type Capture struct {
	stream *portaudio.Stream
	once   sync.Once
	err    error
}

// OpenCapture starts capturing mono audio from the default input device.
func OpenCapture(sampleRate, framesPerBuffer int, w SampleWriter) (*Capture, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, func(in []float32) {
		w.Write(in)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio input: %w", err)
	}
	return &Capture{stream: stream}, nil
}

// Close stops capturing. It is safe to call more than once.
func (c *Capture) Close() error {
	c.once.Do(func() {
		c.err = c.stream.Stop()
		if err := c.stream.Close(); c.err == nil {
			c.err = err
		}
		if err := portaudio.Terminate(); c.err == nil {
			c.err = err
		}
	})
	return c.err
}

var _ io.Closer = (*Capture)(nil)
