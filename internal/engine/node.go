package engine

import "slices"

type tick struct {
	frame int64
	t     float64
}

// Node is a signal processing node in a Context graph.
type Node interface {
	// Connect routes this node's output into dst's input.
	Connect(dst Node) error
	// ConnectParam adds this node's output to p's value at audio rate.
	ConnectParam(p *Param) error
	// Disconnect removes every outgoing connection.
	Disconnect()
	// Inputs returns the nodes connected into this node.
	Inputs() []Node
	Context() *Context
	core() *node
}

type processor interface {
	process(tk tick, in float64) float64
}

// node carries the graph bookkeeping shared by every node type.
type node struct {
	ctx       *Context
	self      Node
	proc      processor
	maxInputs int // 0 = source, -1 = unlimited
	inputs    []Node
	targets   []Node
	params    []*Param
	frame     int64
	value     float64
	visiting  bool
}

func (n *node) init(ctx *Context, self interface {
	Node
	processor
}, maxInputs int) {
	n.ctx = ctx
	n.self = self
	n.proc = self
	n.maxInputs = maxInputs
	n.frame = -1
}

func (n *node) core() *node       { return n }
func (n *node) Context() *Context { return n.ctx }

func (n *node) Connect(dst Node) error {
	d := dst.core()
	if d.ctx != n.ctx {
		return ErrContextMismatch
	}
	if d.maxInputs == 0 {
		return ErrNotConnectable
	}
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if slices.Contains(d.inputs, n.self) {
		return nil
	}
	d.inputs = append(d.inputs, n.self)
	n.targets = append(n.targets, dst)
	return nil
}

func (n *node) ConnectParam(p *Param) error {
	if p.ctx != n.ctx {
		return ErrContextMismatch
	}
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if slices.Contains(p.inputs, n.self) {
		return nil
	}
	p.inputs = append(p.inputs, n.self)
	n.params = append(n.params, p)
	return nil
}

func (n *node) Disconnect() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	for _, dst := range n.targets {
		d := dst.core()
		d.inputs = slices.DeleteFunc(d.inputs, func(in Node) bool { return in == n.self })
	}
	for _, p := range n.params {
		p.inputs = slices.DeleteFunc(p.inputs, func(in Node) bool { return in == n.self })
	}
	n.targets = nil
	n.params = nil
}

func (n *node) Inputs() []Node {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return slices.Clone(n.inputs)
}

// pull renders the node once per frame. A node reached again while it is
// being rendered (a feedback loop) yields its previous sample.
func (n *node) pull(tk tick) float64 {
	if n.frame == tk.frame || n.visiting {
		return n.value
	}
	n.visiting = true
	var in float64
	for _, src := range n.inputs {
		in += src.core().pull(tk)
	}
	n.value = n.proc.process(tk, in)
	n.frame = tk.frame
	n.visiting = false
	return n.value
}

// Destination sums everything connected to it.
type Destination struct {
	node
}

func (d *Destination) process(_ tick, in float64) float64 { return in }
