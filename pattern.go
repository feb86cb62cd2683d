package beatsync

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/beatsync-go/internal/step"
)

// PatternStep is the YAML form of one declarative step. Exactly one of
// note, freq or semitone must be set on a non-rest step.
type PatternStep struct {
	Rest      bool    `yaml:"rest"`
	Tie       bool    `yaml:"tie"`
	Duration  float64 `yaml:"duration"`
	Note      string  `yaml:"note"`
	Freq      float64 `yaml:"freq"`
	Semitone  *int    `yaml:"semitone"`
	Velocity  *int    `yaml:"velocity"` // default 100
	EventType string  `yaml:"event_type"`
	EventTag  string  `yaml:"event_tag"`
}

// Pattern is a declarative step list as loaded from YAML. It is plain data;
// compile-time sanitization happens when a sequencer starts.
type Pattern struct {
	Name     string        `yaml:"name"`
	BPM      float64       `yaml:"bpm"` // 0 = keep the engine's tempo
	Loop     bool          `yaml:"loop"`
	Quantize float64       `yaml:"quantize"` // beats; 0 starts immediately
	Steps    []PatternStep `yaml:"steps"`
}

// ParsePattern decodes a YAML pattern document.
func ParsePattern(data []byte) (*Pattern, error) {
	var p Pattern
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pattern: %w", err)
	}
	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("pattern %q has no steps", p.Name)
	}
	return &p, nil
}

// Compile converts the pattern into sequencer steps. Pitch mode is inferred
// per step from whichever field is set; ambiguous or missing pitch on a
// non-rest step is an error.
func (p *Pattern) Compile() ([]Step, error) {
	steps := make([]Step, 0, len(p.Steps))
	for i, ps := range p.Steps {
		s := Step{
			Rest:      ps.Rest,
			Tie:       ps.Tie,
			Duration:  ps.Duration,
			Velocity:  100,
			EventType: ps.EventType,
			EventTag:  ps.EventTag,
		}
		if ps.Velocity != nil {
			s.Velocity = *ps.Velocity
		}
		if !ps.Rest {
			spec, err := inferPitch(ps)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			s.Pitch = spec
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func inferPitch(ps PatternStep) (PitchSpec, error) {
	set := 0
	if ps.Note != "" {
		set++
	}
	if ps.Freq != 0 {
		set++
	}
	if ps.Semitone != nil {
		set++
	}
	if set == 0 {
		return PitchSpec{}, fmt.Errorf("non-rest step needs note, freq or semitone")
	}
	if set > 1 {
		return PitchSpec{}, fmt.Errorf("note, freq and semitone are mutually exclusive")
	}
	switch {
	case ps.Note != "":
		return PitchSpec{Mode: step.PitchByName, Name: ps.Note}, nil
	case ps.Freq != 0:
		return PitchSpec{Mode: step.PitchByFreq, Freq: ps.Freq}, nil
	default:
		return PitchSpec{Mode: step.PitchBySemitone, Semitone: *ps.Semitone}, nil
	}
}
