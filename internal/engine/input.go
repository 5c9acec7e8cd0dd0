package engine

import "sync/atomic"

// Input emits samples written by a capture device. Writer and renderer
// communicate through a single-producer single-consumer ring; when the ring
// runs dry the node outputs silence, when it is full new samples are dropped.
type Input struct {
	node
	ring        []float32
	read, write atomic.Uint32
	dropped     atomic.Uint64
}

// NewInput creates an input node; size must be a power of 2.
func (c *Context) NewInput(size int) *Input {
	if size <= 0 || size&(size-1) != 0 {
		panic("input ring size must be a power of 2")
	}
	in := &Input{ring: make([]float32, size)}
	in.init(c, in, 0)
	return in
}

// Write queues captured samples. It never blocks and is safe to call from
// one device goroutine concurrently with rendering.
func (in *Input) Write(samples []float32) int {
	size := uint32(len(in.ring))
	n := 0
	for _, s := range samples {
		w := in.write.Load()
		if w-in.read.Load() == size {
			in.dropped.Add(uint64(len(samples) - n))
			break
		}
		in.ring[w%size] = s
		in.write.Store(w + 1)
		n++
	}
	return n
}

// Dropped returns how many samples were discarded because the ring was full.
func (in *Input) Dropped() uint64 { return in.dropped.Load() }

func (in *Input) process(tick, float64) float64 {
	r := in.read.Load()
	if r == in.write.Load() {
		return 0
	}
	s := in.ring[r%uint32(len(in.ring))]
	in.read.Store(r + 1)
	return float64(s)
}
