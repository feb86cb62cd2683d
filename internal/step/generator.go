// Package step compiles declarative step lists into runtime form and plays
// them against the beat timeline through the callback queue and the
// lookahead event directory.
package step

// Generator is the sound-generating collaborator. The sequencer only ever
// calls these methods; synthesis internals stay behind the interface.
// Pitch and velocity are applied before NoteOn for each non-tying step.
type Generator interface {
	SetFrequency(hz float64)
	SetVelocity(velocity int)
	NoteOn()
	NoteOff()
}

// SemitoneTuner is implemented by generators that natively address pitch as
// an equal-tempered note number (MIDI outputs). When a step's pitch resolves
// to a note number and the generator implements SemitoneTuner, the
// sequencer prefers it over the frequency conversion.
type SemitoneTuner interface {
	SetSemitone(note int)
}
