package sequencer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Step is a MIDI note number, Rest or Hold.
type Step int

const (
	// Rest is silence for one step.
	Rest Step = -1
	// Hold extends the previous note by one step.
	Hold Step = -2
)

// Pattern is one bar-agnostic loop of steps.
type Pattern []Step

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

var noteNames = [12]string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}

const defaultOctave = 4

// ParsePattern reads whitespace-separated steps: note names with an optional
// accidental and octave ("c4", "f#3", "eb5", "a"), MIDI numbers ("60"),
// "-" to hold the previous note and "." or "r" to rest.
func ParsePattern(src string) (Pattern, error) {
	fields := strings.Fields(src)
	p := make(Pattern, 0, len(fields))
	for i, tok := range fields {
		switch tok {
		case "-", "_":
			p = append(p, Hold)
		case ".", "r", "R":
			p = append(p, Rest)
		default:
			n, err := ParseNote(tok)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			p = append(p, Step(n))
		}
	}
	return p, nil
}

// ParseNote converts a note name or MIDI number to a MIDI note. C4 is 60.
func ParseNote(tok string) (int, error) {
	if tok == "" {
		return 0, fmt.Errorf("empty note")
	}
	if n, err := strconv.Atoi(tok); err == nil {
		if n < 0 || n > 127 {
			return 0, fmt.Errorf("note %d out of range", n)
		}
		return n, nil
	}
	s := strings.ToLower(tok)
	base, ok := noteOffsets[s[0]]
	if !ok {
		return 0, fmt.Errorf("bad note %q", tok)
	}
	i, shift := 1, 0
	for i < len(s) {
		switch s[i] {
		case '#', '+':
			shift++
		case 'b', '-':
			shift--
		default:
			goto done
		}
		i++
	}
done:
	octave := defaultOctave
	if i < len(s) {
		o, err := strconv.Atoi(s[i:])
		if err != nil || o < 0 || o > 9 {
			return 0, fmt.Errorf("bad octave in %q", tok)
		}
		octave = o
	}
	n := (octave+1)*12 + base + shift
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("note %q out of range", tok)
	}
	return n, nil
}

// NoteName formats a MIDI note, e.g. 61 -> "c#4".
func NoteName(n int) string {
	return noteNames[n%12] + strconv.Itoa(n/12-1)
}

func (p Pattern) String() string {
	var b strings.Builder
	for i, st := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch {
		case st == Hold:
			b.WriteByte('-')
		case st < 0:
			b.WriteByte('.')
		default:
			b.WriteString(NoteName(int(st)))
		}
	}
	return b.String()
}

// MidiToFreq returns the equal-tempered frequency of a MIDI note (A4 = 440 Hz).
func MidiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}
