package step

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/cbegin/beatsync-go/internal/clock"
	"github.com/cbegin/beatsync-go/internal/lookahead"
	"github.com/cbegin/beatsync-go/internal/sched"
)

// DefaultLookaheadDepth is how many steps the sequencer keeps scheduled
// ahead of the playhead. The gap makes playback timing resilient to host
// frame-rate variance.
const DefaultLookaheadDepth = 16

// quantizeTolerance guards quantized starts against double-firing when the
// playhead sits almost exactly on a grid boundary.
const quantizeTolerance = 1e-3

type seqState int

const (
	stateStopped seqState = iota
	statePending          // quantized start scheduled, waiting for the grid boundary
	stateRunning
)

// Config is the construction-time configuration of a Sequencer. All
// collaborators are explicit; there is no discovery.
type Config struct {
	Steps          []Step
	Generator      Generator // default generator for steps without an override
	Loop           bool
	LookaheadDepth int     // 0 selects DefaultLookaheadDepth
	QuantizeBeats  float64 // 0 starts immediately; >0 snaps starts to this grid
}

// Trigger is the payload the sequencer attaches to its directory
// registrations so visual or gameplay consumers can prepare for a step
// before its audio callback fires.
type Trigger struct {
	StepIndex int // index within the pattern
	Beat      float64
	Duration  float64
	Velocity  int
	Rest      bool
}

// Sequencer plays a compiled step list by keeping a fixed-size lookahead
// buffer of scheduled callbacks and directory registrations ahead of the
// playhead. All methods run on the tick thread.
type Sequencer struct {
	transport *clock.Transport
	queue     *sched.Queue
	dir       *lookahead.Directory
	log       zerolog.Logger

	cfg     Config
	runtime []runtimeStep
	state   seqState

	playbackStartBeat float64
	currentStep       int     // steps fired so far this run
	scheduled         int     // steps scheduled so far this run; >= currentStep
	nextBeat          float64 // absolute start beat of the next step to schedule

	pendingStart sched.Handle
	handles      map[int]sched.Handle // step ordinal -> pending callback
	eventIDs     map[int]uint64       // step ordinal -> pending registration

	sounding bool
	active   Generator
}

func NewSequencer(transport *clock.Transport, queue *sched.Queue, dir *lookahead.Directory, cfg Config, log zerolog.Logger) *Sequencer {
	if cfg.LookaheadDepth <= 0 {
		cfg.LookaheadDepth = DefaultLookaheadDepth
	}
	return &Sequencer{
		transport: transport,
		queue:     queue,
		dir:       dir,
		log:       log,
		cfg:       cfg,
		handles:   map[int]sched.Handle{},
		eventIDs:  map[int]uint64{},
	}
}

// Playing reports whether a run is active or pending a quantized start.
func (s *Sequencer) Playing() bool { return s.state != stateStopped }

// PlaybackStartBeat returns the absolute beat the current run began at.
func (s *Sequencer) PlaybackStartBeat() float64 { return s.playbackStartBeat }

// StepsFired returns how many steps have fired in the current run.
func (s *Sequencer) StepsFired() int { return s.currentStep }

// PatternIndex returns the pattern index of the most recently fired step,
// or -1 before the first fire of a run.
func (s *Sequencer) PatternIndex() int {
	if s.currentStep == 0 || len(s.runtime) == 0 {
		return -1
	}
	return (s.currentStep - 1) % len(s.runtime)
}

// SetSteps replaces the declarative step list. Takes effect on the next
// Start; the running compiled form is immutable.
func (s *Sequencer) SetSteps(steps []Step) { s.cfg.Steps = steps }

// Start compiles the step list and begins playback: immediately at the
// current reference beat, or at the next quantization boundary when
// quantization is configured and the transport is running. An empty
// compiled list is a warning-level no-op.
func (s *Sequencer) Start(now float64) {
	if s.transport == nil || s.queue == nil {
		s.log.Warn().Msg("sequencer started without clock or queue; ignoring")
		return
	}
	if s.state != stateStopped {
		s.Stop()
	}
	runtime, problems := compileSteps(s.cfg.Steps, s.cfg.Generator, s.cfg.Loop)
	for _, p := range problems {
		s.log.Warn().Err(p).Msg("step demoted to rest")
	}
	if len(runtime) == 0 {
		s.log.Warn().Msg("no runtime steps compiled; not starting")
		return
	}
	s.runtime = runtime

	if s.cfg.QuantizeBeats > 0 && s.transport.Running() {
		quant := math.Max(clock.TempoEpsilon, s.cfg.QuantizeBeats)
		cur := s.transport.CurrentBeat(now)
		target := (math.Floor(cur/quant) + 1) * quant
		if target-cur < quantizeTolerance {
			target += quant
		}
		h := s.queue.ScheduleAtBeat(target, func() { s.beginAt(target) })
		if !h.Valid() {
			s.log.Warn().Float64("beat", target).Msg("quantized start rejected; tempo undefined")
			return
		}
		s.pendingStart = h
		s.state = statePending
		s.log.Debug().Float64("beat", target).Msg("quantized start scheduled")
		return
	}
	s.beginAt(s.transport.ReferenceBeat(now))
}

func (s *Sequencer) beginAt(beat float64) {
	s.pendingStart = sched.Handle{}
	s.playbackStartBeat = beat
	s.currentStep = 0
	s.scheduled = 0
	s.nextBeat = beat
	s.state = stateRunning
	s.log.Debug().Float64("beat", beat).Msg("sequence playback started")
}

// Tick refills the lookahead buffer: while fewer than LookaheadDepth steps
// are scheduled ahead of the playhead, the next step is registered in the
// event directory (when it carries an event type) and its trigger callback
// is placed on the queue.
func (s *Sequencer) Tick(now float64) {
	if s.state != stateRunning {
		return
	}
	for s.scheduled < s.currentStep+s.cfg.LookaheadDepth {
		ord := s.scheduled
		if !s.cfg.Loop && ord >= len(s.runtime) {
			return
		}
		idx := ord % len(s.runtime)
		st := s.runtime[idx]
		beat := s.nextBeat

		if s.dir != nil && st.evType != "" {
			s.eventIDs[ord] = s.dir.Register(beat, s, st.evType, st.evTag, Trigger{
				StepIndex: idx,
				Beat:      beat,
				Duration:  st.duration,
				Velocity:  st.velocity,
				Rest:      st.rest,
			})
		}
		h := s.queue.ScheduleAtBeat(beat, func() { s.fire(ord, idx) })
		if !h.Valid() {
			s.log.Warn().Int("step", idx).Msg("step trigger rejected; tempo undefined")
			return
		}
		s.handles[ord] = h
		s.nextBeat = beat + st.duration
		s.scheduled++

		// After the last step of a non-looping run, a completion trigger
		// ends the run once that step's duration has elapsed.
		if !s.cfg.Loop && s.scheduled == len(s.runtime) {
			end := s.nextBeat
			if ch := s.queue.ScheduleAtBeat(end, func() { s.complete() }); ch.Valid() {
				s.handles[s.scheduled] = ch
			}
			return
		}
	}
}

func (s *Sequencer) complete() {
	delete(s.handles, len(s.runtime))
	s.log.Debug().Msg("sequence finished")
	s.Stop()
}

// fire is the scheduled trigger of one step. Rests silence the sounding
// note, ties leave it untouched, and everything else retriggers the
// resolved generator with the step's pitch and velocity.
func (s *Sequencer) fire(ord, idx int) {
	delete(s.handles, ord)
	// Leave the directory record in place for trailing consumers; the
	// horizon sweep reclaims it.
	delete(s.eventIDs, ord)

	st := s.runtime[idx]
	switch {
	case st.rest:
		s.silence()
	case st.tie:
		// The previous step's note keeps sounding.
	default:
		if st.gen == nil {
			s.log.Warn().Int("step", idx).Msg("no generator resolved; step skipped")
			break
		}
		if s.sounding && s.active != st.gen {
			s.active.NoteOff()
		}
		s.applyPitch(st)
		st.gen.SetVelocity(st.velocity)
		st.gen.NoteOn()
		s.sounding = true
		s.active = st.gen
	}

	s.currentStep = ord + 1
}

func (s *Sequencer) applyPitch(st runtimeStep) {
	if tuner, ok := st.gen.(SemitoneTuner); ok && st.hasNote {
		tuner.SetSemitone(st.note)
		return
	}
	st.gen.SetFrequency(st.freq)
}

func (s *Sequencer) silence() {
	if s.sounding && s.active != nil {
		s.active.NoteOff()
	}
	s.sounding = false
	s.active = nil
}

// Stop cancels every outstanding callback and pending registration, forces
// note-off on the active generator, and resets the playhead.
func (s *Sequencer) Stop() {
	if s.pendingStart.Valid() {
		s.queue.Cancel(s.pendingStart)
		s.pendingStart = sched.Handle{}
	}
	for ord, h := range s.handles {
		s.queue.Cancel(h)
		delete(s.handles, ord)
	}
	if s.dir != nil && len(s.eventIDs) > 0 {
		ids := make([]uint64, 0, len(s.eventIDs))
		for ord, id := range s.eventIDs {
			ids = append(ids, id)
			delete(s.eventIDs, ord)
		}
		s.dir.RemoveBatch(ids)
	}
	s.silence()
	s.currentStep = 0
	s.scheduled = 0
	s.state = stateStopped
}
