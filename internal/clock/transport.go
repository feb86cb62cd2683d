package clock

import "math"

// State is the transport lifecycle state.
type State int

const (
	StateStopped State = iota
	StateArmed
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	}
	return "unknown"
}

// BeatInfo is delivered to beat observers once per elapsed whole beat.
type BeatInfo struct {
	Beat      int // absolute whole-beat index, 0 at transport start
	Bar       int // 1-indexed bar number
	BeatInBar int // 1-indexed beat within the bar
}

// BeatFunc observes whole-beat boundaries.
type BeatFunc func(BeatInfo)

// StartFunc observes the Armed -> Running transition, once per run.
type StartFunc func(startTime float64)

// ObserverHandle identifies a registered observer for removal.
type ObserverHandle int

// Transport arms, starts and stops the beat timeline over a Tempo map and
// notifies observers of whole-beat boundaries from the host tick.
type Transport struct {
	tempo     *Tempo
	state     State
	startTime float64
	lastBeat  int // last whole beat notified; -1 before the first

	nextHandle ObserverHandle
	beatObs    map[ObserverHandle]BeatFunc
	startObs   map[ObserverHandle]StartFunc
}

func NewTransport(tempo *Tempo) *Transport {
	return &Transport{
		tempo:    tempo,
		lastBeat: -1,
		beatObs:  map[ObserverHandle]BeatFunc{},
		startObs: map[ObserverHandle]StartFunc{},
	}
}

func (tr *Transport) Tempo() *Tempo { return tr.tempo }
func (tr *Transport) State() State  { return tr.state }

// Running reports whether the transport has passed its start instant.
func (tr *Transport) Running() bool { return tr.state == StateRunning }

// ObserveBeats registers fn for per-beat notification and returns a handle
// for ForgetObserver.
func (tr *Transport) ObserveBeats(fn BeatFunc) ObserverHandle {
	tr.nextHandle++
	tr.beatObs[tr.nextHandle] = fn
	return tr.nextHandle
}

// ObserveStart registers fn to be called once per run when the transport
// transitions from armed to running.
func (tr *Transport) ObserveStart(fn StartFunc) ObserverHandle {
	tr.nextHandle++
	tr.startObs[tr.nextHandle] = fn
	return tr.nextHandle
}

// ForgetObserver removes a previously registered observer. Unknown handles
// are ignored.
func (tr *Transport) ForgetObserver(h ObserverHandle) {
	delete(tr.beatObs, h)
	delete(tr.startObs, h)
}

// Start arms the transport to begin at startTime. Beat zero always
// coincides with the start instant; any previous run's epoch is discarded.
func (tr *Transport) Start(startTime float64) {
	tr.tempo.ResetAnchor(startTime)
	tr.startTime = startTime
	tr.lastBeat = -1
	tr.state = StateArmed
}

// Stop unconditionally returns the transport to stopped and clears the
// per-run dispatch bookkeeping.
func (tr *Transport) Stop() {
	tr.state = StateStopped
	tr.lastBeat = -1
}

// StartTime returns the (planned or actual) start instant of the current
// run. Meaningful only while armed or running.
func (tr *Transport) StartTime() float64 { return tr.startTime }

// CurrentBeat returns the fractional beat index at now, or 0 when stopped.
func (tr *Transport) CurrentBeat(now float64) float64 {
	if tr.state == StateStopped {
		return 0
	}
	return tr.tempo.BeatAt(now)
}

// ReferenceBeat resolves the beat that "now" means for relative scheduling:
// the current beat while running, otherwise the planned start beat (zero).
func (tr *Transport) ReferenceBeat(now float64) float64 {
	if tr.state == StateRunning {
		return tr.tempo.BeatAt(now)
	}
	return 0
}

// BarPosition converts a fractional beat into 1-indexed (bar, beatInBar).
// The modulo is positive even for beats before beat zero.
func (tr *Transport) BarPosition(beat float64) (bar, beatInBar int) {
	whole := int(math.Floor(beat))
	per := tr.tempo.BeatsPerBar()
	bar = floorDiv(whole, per) + 1
	beatInBar = posMod(whole, per) + 1
	return bar, beatInBar
}

// Tick advances the transport to now. While armed it promotes to running
// once the start instant is reached; while running it notifies one BeatInfo
// per whole beat elapsed since the previous tick, in order, never batching.
func (tr *Transport) Tick(now float64) {
	if tr.state == StateArmed && now >= tr.startTime {
		tr.state = StateRunning
		for _, fn := range tr.startObs {
			fn(tr.startTime)
		}
	}
	if tr.state != StateRunning {
		return
	}
	cur := int(math.Floor(tr.tempo.BeatAt(now)))
	for b := tr.lastBeat + 1; b <= cur; b++ {
		bar, bib := tr.BarPosition(float64(b))
		info := BeatInfo{Beat: b, Bar: bar, BeatInBar: bib}
		for _, fn := range tr.beatObs {
			fn(info)
		}
	}
	if cur > tr.lastBeat {
		tr.lastBeat = cur
	}
}

func posMod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
