package step

import "fmt"

// MinDuration is the smallest step duration in beats. Declarative values
// below it (including zero and negatives) are raised before any timing math.
const MinDuration = 1.0 / 64

// Step is one declarative entry of a pattern. The list is mutable between
// runs; compilation snapshots it into an immutable runtime form at start.
type Step struct {
	Rest      bool
	Tie       bool // sustain the previous step's note instead of retriggering
	Duration  float64
	Pitch     PitchSpec
	Velocity  int
	EventType string
	EventTag  string
	Generator Generator // optional per-step override of the sequencer default
}

// runtimeStep is the compiled, sanitized view of a Step. Immutable during
// playback.
type runtimeStep struct {
	rest     bool
	tie      bool
	duration float64
	freq     float64
	note     int
	hasNote  bool
	velocity int
	gen      Generator
	evType   string
	evTag    string
}

// compileSteps sanitizes a declarative list into runtime steps. Steps whose
// pitch cannot be resolved are demoted to rests; the reasons come back as
// problems for the caller to log. Tie flags are sanitized afterwards: a
// rest never ties, the first step of a non-looping run plays as a fresh
// attack, and a step tying from a rest (wrapping to the last step when
// looping) sustains silence, so it becomes a rest itself.
func compileSteps(steps []Step, defaultGen Generator, loop bool) ([]runtimeStep, []error) {
	var problems []error
	rt := make([]runtimeStep, 0, len(steps))
	for i, s := range steps {
		r := runtimeStep{
			rest:     s.Rest,
			tie:      s.Tie,
			duration: s.Duration,
			velocity: s.Velocity,
			gen:      s.Generator,
			evType:   s.EventType,
			evTag:    s.EventTag,
		}
		if r.duration < MinDuration {
			r.duration = MinDuration
		}
		if r.velocity < 0 {
			r.velocity = 0
		} else if r.velocity > 127 {
			r.velocity = 127
		}
		if r.gen == nil {
			r.gen = defaultGen
		}
		if r.rest {
			// A rest can never tie.
			r.tie = false
		} else {
			freq, note, hasNote, err := s.Pitch.resolve()
			if err != nil {
				problems = append(problems, fmt.Errorf("step %d: %w", i, err))
				r.rest = true
				r.tie = false
			} else {
				r.freq, r.note, r.hasNote = freq, note, hasNote
			}
		}
		rt = append(rt, r)
	}

	for i := range rt {
		if !rt[i].tie {
			continue
		}
		if i == 0 && !loop {
			rt[i].tie = false
			continue
		}
		prev := i - 1
		if i == 0 {
			prev = len(rt) - 1
		}
		// A tie from a rest sustains nothing: the step is a rest, not a
		// retrigger.
		if rt[prev].rest {
			rt[i].rest = true
			rt[i].tie = false
		}
	}
	return rt, problems
}
