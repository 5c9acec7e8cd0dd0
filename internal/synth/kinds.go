package synth

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// Kind names a patch type known to the factory.
type Kind string

const (
	KindOsc        Kind = "osc"
	KindNoise      Kind = "noise"
	KindBuffer     Kind = "buffer"
	KindInput      Kind = "input"
	KindGain       Kind = "gain"
	KindFilter     Kind = "filter"
	KindFilterBank Kind = "filterbank"
	KindDelay      Kind = "delay"
	KindAnalyser   Kind = "analyser"
	KindEffect     Kind = "effect"
	KindOutput     Kind = "output"
)

// Params configures a patch. Keys are canonical parameter names or one of
// their aliases.
type Params map[string]any

type entry struct {
	source bool
	keys   []string
	build  func(s *Synth, p params) (Patch, error)
}

var registry = map[Kind]entry{
	KindOsc:        {source: true, keys: []string{"type", "frequency", "detune"}, build: buildOsc},
	KindNoise:      {source: true, keys: []string{"seed"}, build: buildNoise},
	KindBuffer:     {source: true, keys: []string{"path", "samples", "sampleRate", "loop", "playbackRate"}, build: buildBuffer},
	KindInput:      {source: true, keys: []string{"capacity"}, build: buildInput},
	KindGain:       {keys: []string{"gain"}, build: buildGain},
	KindFilter:     {keys: []string{"type", "frequency", "Q", "gain"}, build: buildFilter},
	KindFilterBank: {keys: []string{"frequencies", "Q", "gain"}, build: buildFilterBank},
	KindDelay:      {keys: []string{"delayTime", "maxDelay", "feedback"}, build: buildDelay},
	KindAnalyser:   {keys: []string{"fftSize"}, build: buildAnalyser},
	KindEffect:     {keys: effectKeys(), build: buildEffect},
	KindOutput:     {keys: []string{"gain"}, build: buildOutput},
}

var aliases = map[string]string{
	"f":         "frequency",
	"freq":      "frequency",
	"g":         "gain",
	"vol":       "gain",
	"volume":    "gain",
	"amp":       "gain",
	"level":     "gain",
	"q":         "Q",
	"res":       "Q",
	"resonance": "Q",
	"wave":      "type",
	"shape":     "type",
	"waveform":  "type",
	"det":       "detune",
	"cents":     "detune",
	"time":      "delayTime",
	"delay":     "delayTime",
	"rate":      "playbackRate",
	"bands":     "frequencies",
	"freqs":     "frequencies",
	"fx":        "effect",
	"size":      "fftSize",
	"fb":        "feedback",
	"mix":       "wet",
	"damp":      "damping",
	"file":      "path",
	"room":      "roomSize",
	"thresh":    "threshold",
	"max":       "maxDelay",
}

// Kinds returns every registered kind in lexical order.
func Kinds() []Kind {
	return slices.Sorted(maps.Keys(registry))
}

// IsSource reports whether patches of kind k have a play/stop lifecycle.
func IsSource(k Kind) bool { return registry[k].source }

// Keys returns the canonical parameter names accepted by kind k.
func Keys(k Kind) []string { return slices.Clone(registry[k].keys) }

// Aliases returns a copy of the parameter alias table.
func Aliases() map[string]string { return maps.Clone(aliases) }

// Canonical resolves an alias to its canonical parameter name. Names that are
// not aliases are returned unchanged.
func Canonical(key string) string {
	if c, ok := aliases[strings.ToLower(key)]; ok {
		return c
	}
	return key
}

// params is a normalised Params bag that remembers which keys were read.
type params struct {
	kind   Kind
	values map[string]any
}

func normalize(kind Kind, keys []string, in Params) (params, error) {
	out := params{kind: kind, values: make(map[string]any, len(in))}
	// Sorted so the reported error does not depend on map order.
	for _, raw := range slices.Sorted(maps.Keys(in)) {
		key := Canonical(raw)
		idx := slices.IndexFunc(keys, func(k string) bool { return strings.EqualFold(k, key) })
		if idx < 0 {
			return out, &ConfigError{Kind: kind, Key: raw, Err: errors.New("unknown parameter")}
		}
		key = keys[idx]
		if _, dup := out.values[key]; dup {
			return out, &ConfigError{Kind: kind, Key: raw, Err: fmt.Errorf("duplicate parameter %s", key)}
		}
		out.values[key] = in[raw]
	}
	return out, nil
}

func (p params) has(key string) bool {
	_, ok := p.values[key]
	return ok
}

func (p params) typeError(key string, v any, want string) error {
	return &ConfigError{Kind: p.kind, Key: key, Err: fmt.Errorf("want %s, got %T", want, v)}
}

func (p params) float(key string, def float64) (float64, error) {
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, p.typeError(key, v, "number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ConfigError{Kind: p.kind, Key: key, Err: errors.New("not a finite number")}
	}
	return f, nil
}

func (p params) int(key string, def int) (int, error) {
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	}
	return 0, p.typeError(key, v, "integer")
}

func (p params) string(key, def string) (string, error) {
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", p.typeError(key, v, "string")
	}
	return s, nil
}

func (p params) bool(key string, def bool) (bool, error) {
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, p.typeError(key, v, "bool")
	}
	return b, nil
}

func (p params) floats(key string) ([]float64, error) {
	v, ok := p.values[key]
	if !ok {
		return nil, nil
	}
	switch s := v.(type) {
	case []float64:
		return slices.Clone(s), nil
	case []float32:
		out := make([]float64, len(s))
		for i, f := range s {
			out[i] = float64(f)
		}
		return out, nil
	case []int:
		out := make([]float64, len(s))
		for i, n := range s {
			out[i] = float64(n)
		}
		return out, nil
	case []any:
		out := make([]float64, len(s))
		for i, e := range s {
			f, ok := toFloat(e)
			if !ok {
				return nil, p.typeError(key, e, "number list")
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, p.typeError(key, v, "number list")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
