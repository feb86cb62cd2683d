// Package beatsync reconciles a continuously advancing host clock with a
// tempo-relative beat timeline. It schedules cancellable one-shot callbacks
// at future beats, publishes advisory lookahead events for callback-free
// consumers, and drives step sequencers from a single cooperative per-frame
// tick.
package beatsync

import (
	"github.com/rs/zerolog"

	"github.com/cbegin/beatsync-go/internal/clock"
	"github.com/cbegin/beatsync-go/internal/lookahead"
	"github.com/cbegin/beatsync-go/internal/sched"
	"github.com/cbegin/beatsync-go/internal/step"
)

// Re-exported collaborator types. Hosts implement Generator; everything
// else is constructed through the Engine.
type (
	Generator       = step.Generator
	SemitoneTuner   = step.SemitoneTuner
	Step            = step.Step
	PitchSpec       = step.PitchSpec
	SequencerConfig = step.Config
	Sequencer       = step.Sequencer
	Trigger         = step.Trigger
	Handle          = sched.Handle
	Event           = lookahead.Event
	BeatInfo        = clock.BeatInfo
	ObserverHandle  = clock.ObserverHandle
)

const (
	PitchByName     = step.PitchByName
	PitchByFreq     = step.PitchByFreq
	PitchBySemitone = step.PitchBySemitone
)

type Option func(*engineConfig)

type engineConfig struct {
	bpm            float64
	beatsPerBar    int
	sigDenominator int
	horizonBeats   float64
	log            zerolog.Logger
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		bpm:            120,
		beatsPerBar:    4,
		sigDenominator: 4,
		horizonBeats:   lookahead.DefaultHorizon,
		log:            zerolog.Nop(),
	}
}

// WithBPM sets the initial tempo. Non-positive values leave the tempo
// undefined until SetTempo is called.
func WithBPM(bpm float64) Option {
	return func(cfg *engineConfig) { cfg.bpm = bpm }
}

// WithTimeSignature sets beats per bar and the signature denominator.
func WithTimeSignature(beatsPerBar, denominator int) Option {
	return func(cfg *engineConfig) {
		cfg.beatsPerBar = beatsPerBar
		cfg.sigDenominator = denominator
	}
}

// WithRetentionHorizon sets how many beats behind the playhead a lookahead
// event survives before the per-tick sweep removes it.
func WithRetentionHorizon(beats float64) Option {
	return func(cfg *engineConfig) { cfg.horizonBeats = beats }
}

// WithLogger installs a logger for warning-level degradation reports. The
// default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(cfg *engineConfig) { cfg.log = log }
}

// Engine composes the tempo clock, transport, callback queue, lookahead
// directory and any registered sequencers behind a single Tick entry point.
// The host calls Tick once per frame with a monotonic timestamp in seconds;
// every scheduling decision happens inside that call, on that goroutine.
type Engine struct {
	log        zerolog.Logger
	tempo      *clock.Tempo
	transport  *clock.Transport
	queue      *sched.Queue
	directory  *lookahead.Directory
	sequencers []*step.Sequencer
}

func NewEngine(opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	tempo := clock.NewTempo(cfg.bpm, cfg.beatsPerBar, cfg.sigDenominator)
	transport := clock.NewTransport(tempo)
	return &Engine{
		log:       cfg.log,
		tempo:     tempo,
		transport: transport,
		queue:     sched.NewQueue(transport),
		directory: lookahead.NewDirectory(cfg.horizonBeats),
	}
}

// Tick advances the whole engine to now: the transport promotes and emits
// beat notifications, due callbacks dispatch, stale lookahead events are
// swept, and every sequencer refills its lookahead buffer.
func (e *Engine) Tick(now float64) {
	e.transport.Tick(now)
	if !e.transport.Running() {
		return
	}
	e.queue.Dispatch(now)
	e.directory.Sweep(e.transport.CurrentBeat(now))
	for _, s := range e.sequencers {
		s.Tick(now)
	}
}

// StartTransport arms the transport to begin a new beat epoch at startTime.
// Active sequencers are stopped first, since their playheads belong to the
// previous epoch; remaining pending callbacks are retimed onto the new one.
func (e *Engine) StartTransport(startTime float64) {
	for _, s := range e.sequencers {
		s.Stop()
	}
	e.transport.Start(startTime)
	e.queue.Retime()
	e.log.Debug().Float64("startTime", startTime).Msg("transport armed")
}

// StopTransport halts the timeline. Sequencers are stopped and the pending
// callback queue and event directory are cleared: entries belong to the
// beat epoch that just ended and would alias into the next one.
func (e *Engine) StopTransport() {
	for _, s := range e.sequencers {
		s.Stop()
	}
	e.queue.Clear()
	e.directory.Clear()
	e.transport.Stop()
	e.log.Debug().Msg("transport stopped")
}

// TransportRunning reports whether the beat timeline is advancing.
func (e *Engine) TransportRunning() bool { return e.transport.Running() }

// SetTempo changes the tempo phase-continuously at anchorTime and retimes
// every pending callback onto the new beat-to-time mapping. Non-positive
// bpm is rejected: collapsing the mapping mid-run would retime every
// pending callback onto the anchor instant.
func (e *Engine) SetTempo(bpm float64, anchorTime float64) {
	if bpm <= 0 {
		e.log.Warn().Float64("bpm", bpm).Msg("tempo change rejected; bpm must be positive")
		return
	}
	e.tempo.SetTempo(bpm, anchorTime)
	e.queue.Retime()
	e.log.Debug().Float64("bpm", bpm).Msg("tempo changed")
}

func (e *Engine) BPM() float64 { return e.tempo.BPM() }

// CurrentBeat returns the fractional beat index at now, 0 while stopped.
func (e *Engine) CurrentBeat(now float64) float64 { return e.transport.CurrentBeat(now) }

// BeatTime returns the wall-clock time of a beat index under the current
// tempo mapping.
func (e *Engine) BeatTime(beat float64) float64 { return e.tempo.TimeAt(beat) }

// BarPosition converts a beat index into 1-indexed (bar, beatInBar).
func (e *Engine) BarPosition(beat float64) (bar, beatInBar int) {
	return e.transport.BarPosition(beat)
}

// ObserveBeats registers fn for one notification per elapsed whole beat.
func (e *Engine) ObserveBeats(fn func(BeatInfo)) ObserverHandle {
	return e.transport.ObserveBeats(fn)
}

// ObserveStart registers fn for the armed-to-running transition.
func (e *Engine) ObserveStart(fn func(startTime float64)) ObserverHandle {
	return e.transport.ObserveStart(fn)
}

func (e *Engine) ForgetObserver(h ObserverHandle) { e.transport.ForgetObserver(h) }

// ScheduleAtBeat registers a one-shot callback at an absolute beat. The
// returned handle is invalid when the tempo is undefined; check Valid.
func (e *Engine) ScheduleAtBeat(beat float64, fn func()) Handle {
	h := e.queue.ScheduleAtBeat(beat, fn)
	if !h.Valid() {
		e.log.Warn().Float64("beat", beat).Msg("schedule rejected; tempo undefined")
	}
	return h
}

// ScheduleBeatsFromNow registers a one-shot callback offsetBeats after the
// current reference beat.
func (e *Engine) ScheduleBeatsFromNow(now, offsetBeats float64, fn func()) Handle {
	h := e.queue.ScheduleBeatsFromNow(now, offsetBeats, fn)
	if !h.Valid() {
		e.log.Warn().Float64("offset", offsetBeats).Msg("schedule rejected; tempo undefined")
	}
	return h
}

// Cancel removes a pending callback. Returns false when it already fired or
// never existed; cancelling twice is a safe no-op.
func (e *Engine) Cancel(h Handle) bool { return e.queue.Cancel(h) }

// RegisterEvent appends an advisory record to the lookahead directory.
// Nothing fires from a registration.
func (e *Engine) RegisterEvent(beat float64, source any, eventType, tag string, payload any) uint64 {
	return e.directory.Register(beat, source, eventType, tag, payload)
}

// QueryEvents returns every registered event in the closed beat window
// [fromBeat, fromBeat+windowBeats] matching all supplied filters; a nil
// source and empty strings are wildcards.
func (e *Engine) QueryEvents(fromBeat, windowBeats float64, source any, tag, eventType string) []Event {
	return e.directory.Query(fromBeat, windowBeats, source, tag, eventType)
}

// RemoveEvent deletes one event by id; RemoveEvents deletes a batch.
func (e *Engine) RemoveEvent(id uint64) bool    { return e.directory.Remove(id) }
func (e *Engine) RemoveEvents(ids []uint64) int { return e.directory.RemoveBatch(ids) }

// NewSequencer creates a step sequencer wired to this engine's transport,
// queue and directory, and registers it for per-tick lookahead refill.
func (e *Engine) NewSequencer(cfg SequencerConfig) *Sequencer {
	s := step.NewSequencer(e.transport, e.queue, e.directory, cfg, e.log)
	e.sequencers = append(e.sequencers, s)
	return s
}
