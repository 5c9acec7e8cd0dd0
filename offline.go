package patchbay

import (
	"encoding/binary"
	"math"
	"time"
)

// RenderOffline renders seconds of interleaved stereo audio from the session
// as fast as possible. The scheduler is polled once per tick interval of
// audio time, so a given script always renders the same samples. The
// session should not be started while rendering offline.
func RenderOffline(s *Session, seconds float64) []float32 {
	sr := s.ctx.SampleRate()
	frames := int(float64(sr) * seconds)
	block := int(float64(sr) * s.sched.TickInterval().Seconds())
	if block <= 0 {
		block = int(float64(sr) * time.Millisecond.Seconds())
	}
	block = max(block, 1)
	out := make([]float32, frames*2)
	for done := 0; done < frames; {
		n := min(block, frames-done)
		s.sched.Poll()
		s.ctx.Render(out[done*2 : (done+n)*2])
		done += n
	}
	return out
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
