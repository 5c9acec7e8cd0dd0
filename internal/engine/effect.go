package engine

import "github.com/cbegin/patchbay-go/internal/effects"

// Effect hosts a mono effects.Effector in the graph.
type Effect struct {
	node
	fx effects.Effector
}

func (c *Context) NewEffect(fx effects.Effector) *Effect {
	e := &Effect{fx: fx}
	e.init(c, e, -1)
	return e
}

func (e *Effect) Effector() effects.Effector { return e.fx }

// Reset clears the effect's internal state (delay lines, envelopes).
func (e *Effect) Reset() {
	e.ctx.mu.Lock()
	defer e.ctx.mu.Unlock()
	e.fx.Reset()
}

func (e *Effect) process(_ tick, in float64) float64 {
	return float64(e.fx.Process(float32(in)))
}
