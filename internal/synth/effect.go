package synth

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cbegin/patchbay-go/internal/effects"
	"github.com/cbegin/patchbay-go/internal/engine"
)

// Effect parameter defaults. Times are in seconds, levels are linear unless
// the name says dB.
var effectDefaults = map[string]map[string]float64{
	"delay":      {"delayTime": 0.25, "feedback": 0.4, "wet": 0.3},
	"reverb":     {"roomSize": 0.5, "feedback": 0.7, "damping": 0.2, "wet": 0.25},
	"chorus":     {"delayTime": 0.015, "feedback": 0.3, "depth": 0.003, "frequency": 1.5, "wet": 0.4},
	"distortion": {"preGain": 4, "postGain": 0.5, "frequency": 8000},
	"compressor": {"threshold": -20, "ratio": 4, "attack": 0.005, "release": 0.1, "gain": 6, "knee": effects.DefaultKneeDB},
	"eq":         {"low": 1, "mid": 1, "high": 1, "lowFreq": 300, "highFreq": 3000},
}

var effectNames = map[string]string{
	"delay": "delay", "echo": "delay",
	"reverb": "reverb", "verb": "reverb",
	"chorus":     "chorus",
	"distortion": "distortion", "dist": "distortion", "drive": "distortion",
	"compressor": "compressor", "comp": "compressor",
	"eq": "eq", "eq3": "eq",
}

// Effects returns the names of the built-in effects.
func Effects() []string { return slices.Sorted(maps.Keys(effectDefaults)) }

func effectKeys() []string {
	keys := []string{"effect", "curve"}
	for _, d := range effectDefaults {
		for k := range d {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	return keys
}

// EffectPatch hosts one DSP effect.
type EffectPatch struct {
	patch
	name string
	node *engine.Effect
}

func buildEffect(s *Synth, p params) (Patch, error) {
	var (
		name string
		fx   effects.Effector
	)
	switch v := p.values["effect"].(type) {
	case effects.Effector:
		if len(p.values) > 1 {
			return nil, &ConfigError{Kind: p.kind, Err: fmt.Errorf("custom effect takes no parameters")}
		}
		name, fx = "custom", v
	case string:
		canon, ok := effectNames[strings.ToLower(strings.TrimSpace(v))]
		if !ok {
			return nil, &ConfigError{Kind: p.kind, Key: "effect", Err: fmt.Errorf("unknown effect %q", v)}
		}
		name = canon
	case nil:
		return nil, &ConfigError{Kind: p.kind, Key: "effect", Err: fmt.Errorf("effect name is required")}
	default:
		return nil, p.typeError("effect", v, "effect name")
	}
	if fx == nil {
		defs := effectDefaults[name]
		vals := make(map[string]float64, len(defs))
		for _, k := range slices.Sorted(maps.Keys(p.values)) {
			if k == "effect" || (k == "curve" && name == "distortion") {
				continue
			}
			if _, ok := defs[k]; !ok {
				return nil, &ConfigError{Kind: p.kind, Key: k, Err: fmt.Errorf("not a %s parameter", name)}
			}
		}
		for k, def := range defs {
			v, err := p.float(k, def)
			if err != nil {
				return nil, err
			}
			vals[k] = v
		}
		fx = newEffector(name, s.ctx.SampleRate(), vals)
		if d, ok := fx.(*effects.Distortion); ok {
			cs, err := p.string("curve", "tanh")
			if err != nil {
				return nil, err
			}
			curve, err := effects.ParseCurve(cs)
			if err != nil {
				return nil, &ConfigError{Kind: p.kind, Key: "curve", Err: err}
			}
			d.SetCurve(curve)
		}
	}
	n := s.ctx.NewEffect(fx)
	return &EffectPatch{patch: single(s, p.kind, n), name: name, node: n}, nil
}

func newEffector(name string, sr int, v map[string]float64) effects.Effector {
	f := func(k string) float32 { return float32(v[k]) }
	ms := func(k string) float32 { return float32(v[k] * 1000) }
	switch name {
	case "delay":
		return effects.NewEcho(sr, v["delayTime"]*1000, f("feedback"), f("wet"))
	case "reverb":
		r := effects.NewReverb(sr, f("roomSize"), f("feedback"), f("wet"))
		r.SetDamping(f("damping"))
		return r
	case "chorus":
		return effects.NewChorus(sr, ms("delayTime"), f("feedback"), ms("depth"), f("frequency"), f("wet"))
	case "distortion":
		return effects.NewDistortion(sr, f("preGain"), f("postGain"), f("frequency"))
	case "compressor":
		c := effects.NewCompressor(sr, f("threshold"), f("ratio"), ms("attack"), ms("release"), f("gain"))
		c.SetKnee(v["knee"])
		return c
	default:
		return effects.NewEQ3Band(sr, f("low"), f("mid"), f("high"), f("lowFreq"), f("highFreq"))
	}
}

// Name returns the canonical effect name, or "custom".
func (e *EffectPatch) Name() string               { return e.name }
func (e *EffectPatch) Effector() effects.Effector { return e.node.Effector() }

// Reset clears the effect's internal state (delay lines, envelopes).
func (e *EffectPatch) Reset() { e.node.Reset() }
