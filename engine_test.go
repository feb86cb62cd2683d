package beatsync

import (
	"math"
	"testing"
)

type countingGen struct {
	noteOns  int
	noteOffs int
	freqs    []float64
}

func (g *countingGen) SetFrequency(hz float64) { g.freqs = append(g.freqs, hz) }
func (g *countingGen) SetVelocity(v int)       {}
func (g *countingGen) NoteOn()                 { g.noteOns++ }
func (g *countingGen) NoteOff()                { g.noteOffs++ }

func runTicks(e *Engine, from, to float64) {
	const dt = 1.0 / 60
	for now := from; now <= to+1e-9; now += dt {
		e.Tick(now)
	}
}

func TestEngineTempoChangeKeepsBeatSchedule(t *testing.T) {
	// bpm=120: beat 4 due at 2.0s. Doubling the tempo at t=1.0s moves the
	// same callback to 1.0 + (4-2)*0.25 = 1.5s, still on beat 4.
	e := NewEngine(WithBPM(120))
	e.StartTransport(0)
	e.Tick(0)

	var firedAt float64 = -1
	var now float64
	e.ScheduleAtBeat(4, func() { firedAt = now })

	const dt = 1.0 / 100
	for now = 0; now <= 0.99+1e-9; now += dt {
		e.Tick(now)
	}
	e.SetTempo(240, 1.0)
	for now = 1.0; now <= 2.5; now += dt {
		e.Tick(now)
	}
	if firedAt < 0 {
		t.Fatalf("callback never fired")
	}
	if firedAt < 1.5-1e-6 || firedAt > 1.5+2*dt {
		t.Fatalf("callback fired at %v, want just after 1.5s", firedAt)
	}
}

func TestEngineBeatObserver(t *testing.T) {
	e := NewEngine(WithBPM(120), WithTimeSignature(3, 4))
	var infos []BeatInfo
	e.ObserveBeats(func(bi BeatInfo) { infos = append(infos, bi) })
	e.StartTransport(0)
	runTicks(e, 0, 2.1) // beats 0..4

	if len(infos) != 5 {
		t.Fatalf("expected 5 beat notifications, got %d", len(infos))
	}
	// 3/4 signature: beat 3 opens bar 2.
	if infos[3].Bar != 2 || infos[3].BeatInBar != 1 {
		t.Fatalf("beat 3 should be bar 2 beat 1, got %+v", infos[3])
	}
}

func TestEngineUndefinedTempoRejectsScheduling(t *testing.T) {
	e := NewEngine(WithBPM(0))
	if h := e.ScheduleAtBeat(1, func() {}); h.Valid() {
		t.Fatalf("undefined tempo must reject scheduling")
	}
}

func TestEngineRejectsZeroTempoChange(t *testing.T) {
	e := NewEngine(WithBPM(120))
	e.StartTransport(0)
	e.Tick(0)

	fired := false
	e.ScheduleAtBeat(100, func() { fired = true }) // due at 50s

	// A zero tempo must not collapse pending due times onto the anchor.
	e.SetTempo(0, 1.0)
	e.Tick(1.0)
	if fired {
		t.Fatalf("distant callback fired after a rejected tempo change")
	}
	if e.BPM() != 120 {
		t.Fatalf("rejected tempo change altered bpm: %v", e.BPM())
	}
}

func TestEngineRestartStopsRunningSequencers(t *testing.T) {
	e := NewEngine(WithBPM(120))
	gen := &countingGen{}
	steps := []Step{
		{Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "c4"}, Velocity: 100},
		{Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "e4"}, Velocity: 100},
	}
	seq := e.NewSequencer(SequencerConfig{Steps: steps, Generator: gen, Loop: true})
	e.StartTransport(0)
	e.Tick(0)
	seq.Start(0)
	runTicks(e, 0, 1.1)

	e.StartTransport(2.0)
	if seq.Playing() {
		t.Fatalf("restart left a sequencer running against the dead epoch")
	}
	got := gen.noteOns
	runTicks(e, 2.0, 4.0)
	if gen.noteOns != got {
		t.Fatalf("stale step callbacks fired in the new epoch: %d -> %d", got, gen.noteOns)
	}
}

func TestEngineRelativeScheduleBeforeStart(t *testing.T) {
	e := NewEngine(WithBPM(120))
	fired := false
	// Stopped transport: the reference beat is the planned start beat, so
	// this lands on beat 2 of the upcoming run.
	e.ScheduleBeatsFromNow(0, 2, func() { fired = true })
	e.StartTransport(1.0)
	runTicks(e, 0, 1.9) // beat 2 of the run is at 2.0s
	if fired {
		t.Fatalf("fired before beat 2 of the run")
	}
	runTicks(e, 1.9, 2.1)
	if !fired {
		t.Fatalf("relative schedule against a pending run never fired")
	}
}

func TestEngineStopTransportDropsEpochState(t *testing.T) {
	e := NewEngine(WithBPM(120))
	e.StartTransport(0)
	e.Tick(0)
	fired := false
	e.ScheduleAtBeat(8, func() { fired = true })
	e.RegisterEvent(6, nil, "cue", "", nil)
	e.StopTransport()

	e.StartTransport(10)
	runTicks(e, 10, 20)
	if fired {
		t.Fatalf("callback from a dead epoch fired in the next one")
	}
	if got := e.QueryEvents(0, 1e6, nil, "", ""); len(got) != 0 {
		t.Fatalf("events from a dead epoch survived: %d", len(got))
	}
}

func TestEngineSequencerEndToEnd(t *testing.T) {
	e := NewEngine(WithBPM(120))
	gen := &countingGen{}
	steps := []Step{
		{Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "c4"}, Velocity: 100, EventType: "stepTrigger"},
		{Rest: true, Duration: 1, EventType: "stepTrigger"},
		{Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "e4"}, Velocity: 100, EventType: "stepTrigger"},
		{Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "g4"}, Velocity: 100, EventType: "stepTrigger"},
	}
	seq := e.NewSequencer(SequencerConfig{Steps: steps, Generator: gen, Loop: true})

	e.StartTransport(0)
	e.Tick(0)
	seq.Start(0)
	e.Tick(0)

	// A visual consumer peeks two beats ahead without touching dispatch.
	upcoming := e.QueryEvents(0, 2, seq, "", "stepTrigger")
	if len(upcoming) != 3 {
		t.Fatalf("expected 3 events in [0,2], got %d", len(upcoming))
	}

	runTicks(e, 0, 4.1) // two loop cycles
	if gen.noteOns != 6 {
		t.Fatalf("expected 6 note-ons over two cycles, got %d", gen.noteOns)
	}
	// The rest after step 1 must silence the note each cycle.
	if gen.noteOffs < 2 {
		t.Fatalf("rest steps should force note-off, got %d", gen.noteOffs)
	}

	seq.Stop()
	if seq.Playing() {
		t.Fatalf("sequencer still playing after stop")
	}
}

func TestEngineRoundTripHelpers(t *testing.T) {
	e := NewEngine(WithBPM(93.5))
	e.StartTransport(0.75)
	e.Tick(0.75)
	for _, beat := range []float64{0, 1, 2.5, 17.125} {
		got := e.CurrentBeat(e.BeatTime(beat))
		if math.Abs(got-beat) > 1e-9 {
			t.Fatalf("beat %v round-tripped to %v", beat, got)
		}
	}
}
