package synth

import (
	"fmt"
	"strings"

	"github.com/cbegin/patchbay-go/internal/engine"
)

// Lookup returns the automatable parameter of p called name. Aliases are
// accepted. Source patches also expose their switch gain as "switch".
func Lookup(p Patch, name string) (*engine.Param, error) {
	key := strings.ToLower(Canonical(name))
	var param *engine.Param
	switch pt := p.(type) {
	case *OscPatch:
		switch key {
		case "frequency":
			param = pt.Frequency()
		case "detune":
			param = pt.Detune()
		}
	case *BufferPatch:
		if key == "playbackrate" {
			param = pt.PlaybackRate()
		}
	case *GainPatch:
		if key == "gain" {
			param = pt.Gain()
		}
	case *FilterPatch:
		switch key {
		case "frequency":
			param = pt.Frequency()
		case "q":
			param = pt.Q()
		case "gain":
			param = pt.Gain()
		}
	case *FilterBankPatch:
		if key == "gain" {
			param = pt.Gain()
		}
	case *DelayPatch:
		switch key {
		case "delaytime":
			param = pt.DelayTime()
		case "feedback":
			param = pt.Feedback()
		}
	case *OutputPatch:
		if key == "gain" {
			param = pt.Gain()
		}
	}
	if param == nil && key == "switch" {
		if sw, ok := p.(interface{ Switch() *engine.Param }); ok {
			param = sw.Switch()
		}
	}
	if param == nil {
		return nil, fmt.Errorf("%s patch has no parameter %q", p.Kind(), name)
	}
	return param, nil
}
