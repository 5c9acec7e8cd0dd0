package synth

import (
	"fmt"

	"github.com/cbegin/patchbay-go/internal/engine"
)

// Patch wraps one engine node, or a small fixed cluster of them, behind a
// uniform wiring contract.
type Patch interface {
	Kind() Kind
	Synth() *Synth
	// Inputs are the nodes that incoming connections feed.
	Inputs() []engine.Node
	// Outputs are the nodes that outgoing connections leave from.
	Outputs() []engine.Node
	// Connect wires this patch into target: another Patch, an automatable
	// *engine.Param or a raw engine.Node. Anything else is a contract
	// violation.
	Connect(target any) error
}

type patch struct {
	kind  Kind
	synth *Synth
	in    []engine.Node
	out   []engine.Node
}

func (p *patch) Kind() Kind             { return p.kind }
func (p *patch) Synth() *Synth          { return p.synth }
func (p *patch) Inputs() []engine.Node  { return p.in }
func (p *patch) Outputs() []engine.Node { return p.out }

func (p *patch) Connect(target any) error {
	return connect(p.out, target)
}

func connect(outs []engine.Node, target any) error {
	if len(outs) == 0 {
		return fmt.Errorf("%w: patch has no outputs", ErrContractViolation)
	}
	switch t := target.(type) {
	case Patch:
		ins := t.Inputs()
		if len(ins) == 0 {
			return fmt.Errorf("%w: %s patch has no inputs", ErrContractViolation, t.Kind())
		}
		for _, o := range outs {
			for _, in := range ins {
				if err := o.Connect(in); err != nil {
					return err
				}
			}
		}
	case *engine.Param:
		if t == nil {
			return fmt.Errorf("%w: nil parameter", ErrContractViolation)
		}
		for _, o := range outs {
			if err := o.ConnectParam(t); err != nil {
				return err
			}
		}
	case engine.Node:
		for _, o := range outs {
			if err := o.Connect(t); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %T", ErrContractViolation, target)
	}
	return nil
}
