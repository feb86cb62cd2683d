package step

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PitchMode selects how a step's pitch field is interpreted.
type PitchMode int

const (
	PitchByName     PitchMode = iota // note name with octave, e.g. "c4", "f#3", "bb2"
	PitchByFreq                      // frequency in Hz
	PitchBySemitone                  // equal-tempered note number (midi numbering, a4=69)
)

// PitchSpec is the declarative pitch of a step in one of three modes.
type PitchSpec struct {
	Mode     PitchMode
	Name     string
	Freq     float64
	Semitone int
}

var letterSemitones = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// ParseNoteName converts a note name like "c4", "f#3", "bb2" or "a#-1" into
// a note number (c-1 = 0, a4 = 69).
func ParseNoteName(name string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return 0, fmt.Errorf("empty note name")
	}
	semi, ok := letterSemitones[s[0]]
	if !ok {
		return 0, fmt.Errorf("invalid note letter %q in %q", s[0], name)
	}
	i := 1
	for i < len(s) {
		switch s[i] {
		case '#', '+':
			semi++
		case 'b', '-':
			// A '-' may also begin a negative octave; only treat it as a
			// flat when another digit or accidental follows it.
			if s[i] == '-' && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
				goto octave
			}
			semi--
		default:
			goto octave
		}
		i++
	}
octave:
	oct, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("invalid octave in note name %q", name)
	}
	note := (oct+1)*12 + semi
	if note < 0 || note > 127 {
		return 0, fmt.Errorf("note %q out of range", name)
	}
	return note, nil
}

// SemitoneToFreq converts a note number to Hz with a4 (note 69) at 440 Hz.
func SemitoneToFreq(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12.0)
}

// resolve returns the frequency for the spec and, when the pitch is
// expressible as a note number, that number as well.
func (p PitchSpec) resolve() (freq float64, note int, hasNote bool, err error) {
	switch p.Mode {
	case PitchByName:
		n, err := ParseNoteName(p.Name)
		if err != nil {
			return 0, 0, false, err
		}
		return SemitoneToFreq(n), n, true, nil
	case PitchBySemitone:
		if p.Semitone < 0 || p.Semitone > 127 {
			return 0, 0, false, fmt.Errorf("note number %d out of range", p.Semitone)
		}
		return SemitoneToFreq(p.Semitone), p.Semitone, true, nil
	case PitchByFreq:
		if p.Freq <= 0 {
			return 0, 0, false, fmt.Errorf("non-positive frequency %v", p.Freq)
		}
		return p.Freq, 0, false, nil
	}
	return 0, 0, false, fmt.Errorf("unknown pitch mode %d", p.Mode)
}
