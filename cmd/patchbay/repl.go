package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/cbegin/patchbay-go"
	"github.com/cbegin/patchbay-go/internal/effects"
	"github.com/cbegin/patchbay-go/internal/sequencer"
	"github.com/cbegin/patchbay-go/internal/synth"
	"github.com/chzyer/readline"
)

type env struct {
	sess    *patchbay.Session
	seq     *sequencer.Sequencer
	voice   *sequencer.SynthVoice
	patches map[string]synth.Patch
}

func (e *env) patch(name string) (synth.Patch, error) {
	p, ok := e.patches[name]
	if !ok {
		return nil, fmt.Errorf("unknown patch: %s", name)
	}
	return p, nil
}

// at is the earliest time a change can still be applied on schedule.
func (e *env) at() float64 {
	return e.sess.Now() + e.sess.Scheduler().Lookahead()
}

func (e *env) eval(input string) (string, error) {
	fields := strings.Fields(input)
	name, args := fields[0], fields[1:]
	for _, cmd := range commands {
		if name != cmd.name {
			continue
		}
		if len(args) < cmd.min {
			return "", fmt.Errorf("%s: wrong number of arguments: need at least %v, got %v",
				cmd.name, cmd.min, len(args))
		}
		if cmd.max >= 0 && len(args) > cmd.max {
			return "", fmt.Errorf("%s: wrong number of arguments: want at most %v, got %v",
				cmd.name, cmd.max, len(args))
		}
		result, err := cmd.run(e, args)
		if err != nil {
			return result, fmt.Errorf("%s error: %w", cmd.name, err)
		}
		return result, nil
	}
	return "", fmt.Errorf("unknown command: %s (try help)", name)
}

func repl(env *env) error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || errors.Is(err, readline.ErrInterrupt) {
			return nil
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		if result, err := env.eval(line); err != nil {
			fmt.Println(err)
		} else if result != "" {
			fmt.Println(result)
		}
	}
}

type command struct {
	name  string
	usage string
	run   func(*env, []string) (string, error)
	min   int
	max   int // -1 = unlimited
}

var commands []command

func init() {
	commands = []command{
		{"make", "make <name> <kind> [key=value ...]", makeCommand, 2, -1},
		{"connect", "connect <stage> <stage> ... (a stage is name or name,name)", connectCommand, 2, -1},
		{"set", "set <patch> <param> <value> [smooth|linear|exp] [seconds]", setCommand, 3, 5},
		{"play", "play [patch]", playCommand, 0, 1},
		{"stop", "stop [patch]", stopCommand, 0, 1},
		{"list", "list", listCommand, 0, 0},
		{"level", "level <analyser|compressor>", levelCommand, 1, 1},
		{"pattern", "pattern <steps ...>", patternCommand, 1, -1},
		{"bpm", "bpm <tempo>", bpmCommand, 1, 1},
		{"seq", "seq start|stop", seqCommand, 1, 1},
		{"volume", "volume <scalar>", volumeCommand, 1, 1},
		{"eq", "eq <band 0-4> <gain>", eqCommand, 2, 2},
		{"help", "help", helpCommand, 0, 0},
	}
}

func makeCommand(env *env, args []string) (string, error) {
	name, kind := args[0], synth.Kind(args[1])
	if _, exists := env.patches[name]; exists {
		return "", fmt.Errorf("patch %s already exists", name)
	}
	params := synth.Params{}
	for _, kv := range args[2:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return "", fmt.Errorf("expected key=value, got %q", kv)
		}
		params[k] = parseValue(v)
	}
	p, err := env.sess.Synth().Make(kind, params)
	if err != nil {
		return "", err
	}
	env.patches[name] = p
	return fmt.Sprintf("%s: %s", name, kind), nil
}

// parseValue turns REPL text into the most specific parameter value.
func parseValue(v string) any {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if strings.Contains(v, ",") {
		parts := strings.Split(v, ",")
		list := make([]float64, 0, len(parts))
		for _, s := range parts {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return v
			}
			list = append(list, f)
		}
		return list
	}
	return v
}

func connectCommand(env *env, args []string) (string, error) {
	stages := make([]any, len(args))
	for i, arg := range args {
		var group []synth.Patch
		for _, name := range strings.Split(arg, ",") {
			p, err := env.patch(name)
			if err != nil {
				return "", err
			}
			group = append(group, p)
		}
		stages[i] = group
	}
	return "", env.sess.Synth().Connect(stages...)
}

func setCommand(env *env, args []string) (string, error) {
	p, err := env.patch(args[0])
	if err != nil {
		return "", err
	}
	param, err := synth.Lookup(p, args[1])
	if err != nil {
		return "", err
	}
	value, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return "", err
	}
	ramp := synth.RampSmooth
	if len(args) > 3 {
		if ramp, err = synth.ParseRamp(args[3]); err != nil {
			return "", err
		}
	}
	at := env.at()
	if len(args) > 4 {
		d, err := strconv.ParseFloat(args[4], 64)
		if err != nil {
			return "", err
		}
		at += d
	}
	return "", synth.SetParam(param, value, at, ramp)
}

func sourceArg(env *env, args []string) (synth.SourcePatch, error) {
	p, err := env.patch(args[0])
	if err != nil {
		return nil, err
	}
	src, ok := p.(synth.SourcePatch)
	if !ok {
		return nil, fmt.Errorf("%s is not a source", args[0])
	}
	return src, nil
}

func playCommand(env *env, args []string) (string, error) {
	if len(args) == 0 {
		return "", env.sess.Synth().Play(env.at())
	}
	src, err := sourceArg(env, args)
	if err != nil {
		return "", err
	}
	return "", src.Play(env.at())
}

func stopCommand(env *env, args []string) (string, error) {
	if len(args) == 0 {
		return "", env.sess.Synth().Stop(env.at())
	}
	src, err := sourceArg(env, args)
	if err != nil {
		return "", err
	}
	return "", src.Stop(env.at())
}

func listCommand(env *env, _ []string) (string, error) {
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(env.patches)) {
		p := env.patches[name]
		fmt.Fprintf(&b, "%-8s %s", name, p.Kind())
		if src, ok := p.(synth.SourcePatch); ok {
			fmt.Fprintf(&b, " (%s)", src.State())
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func levelCommand(env *env, args []string) (string, error) {
	p, err := env.patch(args[0])
	if err != nil {
		return "", err
	}
	switch p := p.(type) {
	case *synth.AnalyserPatch:
		return fmt.Sprintf("rms %.3f peak %.3f", p.RMS(), p.Peak()), nil
	case *synth.EffectPatch:
		if c, ok := p.Effector().(*effects.Compressor); ok {
			return fmt.Sprintf("gr %.1f dB", c.GainReduction()), nil
		}
	}
	return "", fmt.Errorf("%s has no meter", args[0])
}

func patternCommand(env *env, args []string) (string, error) {
	p, err := sequencer.ParsePattern(strings.Join(args, " "))
	if err != nil {
		return "", err
	}
	env.seq.SetPattern(p)
	return p.String(), nil
}

func bpmCommand(env *env, args []string) (string, error) {
	bpm, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "", err
	}
	return "", env.seq.SetBPM(bpm)
}

func seqCommand(env *env, args []string) (string, error) {
	switch args[0] {
	case "start":
		return "", env.seq.Start()
	case "stop":
		return "", env.seq.Stop()
	}
	return "", fmt.Errorf("expected start or stop, got %q", args[0])
}

func volumeCommand(env *env, args []string) (string, error) {
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "", err
	}
	env.sess.SetMasterVolume(v)
	return "", nil
}

func eqCommand(env *env, args []string) (string, error) {
	band, err := strconv.Atoi(args[0])
	if err != nil {
		return "", err
	}
	gain, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return "", err
	}
	env.sess.SetEQBand(band, float32(gain))
	return "", nil
}

func helpCommand(*env, []string) (string, error) {
	var b strings.Builder
	for _, cmd := range commands {
		fmt.Fprintln(&b, cmd.usage)
	}
	kinds := make([]string, 0)
	for _, k := range synth.Kinds() {
		kinds = append(kinds, string(k))
	}
	fmt.Fprintf(&b, "kinds: %s\neffects: %s", strings.Join(kinds, " "), strings.Join(synth.Effects(), " "))
	return b.String(), nil
}
