package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cbegin/patchbay-go"
	"github.com/cbegin/patchbay-go/internal/sequencer"
	"github.com/cbegin/patchbay-go/internal/synth"
)

const defaultPattern = "c4 e4 g4 - c5 . g4 e4"

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		backend    = flag.String("backend", "ebiten", "audio backend: ebiten|portaudio|none")
		pattern    = flag.String("pattern", defaultPattern, "step pattern: note names, - to hold, . to rest")
		bpm        = flag.Float64("bpm", sequencer.DefaultBPM, "tempo in beats per minute")
		waveform   = flag.String("wave", "sawtooth", "oscillator waveform: sine|square|sawtooth|triangle")
		cutoff     = flag.Float64("cutoff", 1800, "lowpass cutoff in Hz")
		fx         = flag.String("fx", "delay", "effect: delay|reverb|chorus|distortion|compressor|eq (empty for none)")
		volume     = flag.Float64("volume", 0.5, "master volume scalar")
		seconds    = flag.Float64("seconds", 0, "stop after N seconds (0 = until interrupted)")
		outPath    = flag.String("out", "", "render offline to a float32 WAV file instead of playing")
		lookahead  = flag.Float64("lookahead", 0.1, "scheduler lookahead in seconds")
		tick       = flag.Duration("tick", 25*time.Millisecond, "scheduler tick interval")
		interact   = flag.Bool("repl", false, "start an interactive prompt")
		verbose    = flag.Bool("v", false, "log debug output to stderr")
	)
	flag.Parse()

	if *verbose {
		patchbay.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	be, err := patchbay.ParseBackend(*backend)
	if err != nil {
		log.Fatal(err)
	}
	if *outPath != "" {
		be = patchbay.BackendNone
	}
	steps, err := sequencer.ParsePattern(*pattern)
	if err != nil {
		log.Fatalf("invalid -pattern: %v", err)
	}

	sess, err := patchbay.NewSession(*sampleRate,
		patchbay.WithBackend(be),
		patchbay.WithLookahead(*lookahead),
		patchbay.WithTickInterval(*tick))
	if err != nil {
		log.Fatal(err)
	}
	sess.SetMasterVolume(*volume)

	env, err := newEnv(sess, *waveform, *cutoff, *fx)
	if err != nil {
		log.Fatal(err)
	}
	env.seq = sequencer.New(sess.Scheduler(), env.voice,
		sequencer.WithPattern(steps),
		sequencer.WithBPM(*bpm),
		sequencer.WithLogger(patchbay.Logger()))

	if *outPath != "" {
		if err := renderToFile(env, *outPath, *seconds); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := sess.Start(); err != nil {
		log.Fatal(err)
	}
	defer sess.Stop()
	if err := env.seq.Start(); err != nil {
		log.Fatal(err)
	}

	if *interact {
		if err := repl(env); err != nil {
			fmt.Println(err)
		}
		return
	}
	waitForExit(*seconds)
	_ = env.seq.Stop()
	// Let the release ramp finish before closing the device.
	time.Sleep(50 * time.Millisecond)
}

// newEnv builds the default patch chain: osc -> lowpass -> [fx] -> analyser -> out.
func newEnv(sess *patchbay.Session, waveform string, cutoff float64, fx string) (*env, error) {
	s := sess.Synth()
	osc, err := s.MakeOsc(synth.Params{"type": waveform})
	if err != nil {
		return nil, err
	}
	lp, err := s.MakeFilter(synth.Params{"type": "lowpass", "frequency": cutoff, "Q": 2})
	if err != nil {
		return nil, err
	}
	scope, err := s.MakeAnalyser(nil)
	if err != nil {
		return nil, err
	}
	out, err := s.MakeOutput(nil)
	if err != nil {
		return nil, err
	}
	e := &env{
		sess:    sess,
		patches: map[string]synth.Patch{"osc": osc, "lp": lp, "scope": scope, "out": out},
		voice:   sequencer.NewSynthVoice(s, osc),
	}
	stages := []any{osc, lp}
	if fx != "" {
		p, err := s.MakeEffect(synth.Params{"effect": fx})
		if err != nil {
			return nil, err
		}
		e.patches["fx"] = p
		stages = append(stages, p)
	}
	stages = append(stages, scope, out)
	if err := s.Connect(stages...); err != nil {
		return nil, err
	}
	return e, nil
}

func renderToFile(env *env, path string, seconds float64) error {
	if seconds <= 0 {
		seconds = 4
	}
	if err := env.seq.Start(); err != nil {
		return err
	}
	samples := patchbay.RenderOffline(env.sess, seconds)
	wav := patchbay.EncodeWAVFloat32LE(samples, env.sess.SampleRate(), 2)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %.2fs to %s\n", seconds, path)
	return nil
}

func waitForExit(seconds float64) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	if seconds <= 0 {
		<-sig
		return
	}
	select {
	case <-sig:
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	}
}
