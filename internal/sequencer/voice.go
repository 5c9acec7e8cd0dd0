package sequencer

import (
	"errors"

	"github.com/cbegin/patchbay-go/internal/synth"
)

// SynthVoice plays notes by retuning a set of oscillator patches and
// gating every source of their synth.
type SynthVoice struct {
	synth *synth.Synth
	oscs  []*synth.OscPatch
	// Ratios multiplies the note frequency per oscillator; missing entries are 1.
	Ratios []float64
	// Glide selects how the pitch moves to a new note.
	Glide synth.Ramp
}

func NewSynthVoice(s *synth.Synth, oscs ...*synth.OscPatch) *SynthVoice {
	return &SynthVoice{synth: s, oscs: oscs}
}

func (v *SynthVoice) NoteOn(note int, time float64) error {
	f := MidiToFreq(note)
	var errs []error
	for i, o := range v.oscs {
		r := 1.0
		if i < len(v.Ratios) && v.Ratios[i] > 0 {
			r = v.Ratios[i]
		}
		errs = append(errs, o.SetFrequency(f*r, time, v.Glide))
	}
	errs = append(errs, v.synth.Play(time))
	return errors.Join(errs...)
}

func (v *SynthVoice) NoteOff(time float64) error {
	return v.synth.Stop(time)
}
