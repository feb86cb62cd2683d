package clock

// TempoEpsilon is the smallest seconds-per-beat value considered a defined
// tempo. Below it, beat math degrades to zero instead of dividing by zero.
const TempoEpsilon = 1e-9

// Tempo maps wall-clock seconds to fractional beat indices and back. The
// mapping is anchored: beatZeroAnchor is the instant at which the beat index
// is exactly zero, so BeatAt and TimeAt are inverses of each other for any
// fixed tempo.
type Tempo struct {
	bpm            float64
	beatsPerBar    int
	sigDenominator int
	secondsPerBeat float64
	beatZeroAnchor float64
}

// NewTempo creates a tempo map. Non-positive bpm leaves the tempo
// undefined; beatsPerBar and denominator are clamped to at least 1.
func NewTempo(bpm float64, beatsPerBar, sigDenominator int) *Tempo {
	t := &Tempo{}
	t.setBPM(bpm)
	t.SetTimeSignature(beatsPerBar, sigDenominator)
	return t
}

func (t *Tempo) setBPM(bpm float64) {
	t.bpm = bpm
	if bpm <= 0 {
		t.secondsPerBeat = 0
		return
	}
	t.secondsPerBeat = 60.0 / bpm
}

// SetTimeSignature sets the bar length in beats and the signature
// denominator. Values below 1 are clamped to 1.
func (t *Tempo) SetTimeSignature(beatsPerBar, sigDenominator int) {
	if beatsPerBar < 1 {
		beatsPerBar = 1
	}
	if sigDenominator < 1 {
		sigDenominator = 1
	}
	t.beatsPerBar = beatsPerBar
	t.sigDenominator = sigDenominator
}

func (t *Tempo) BPM() float64            { return t.bpm }
func (t *Tempo) BeatsPerBar() int        { return t.beatsPerBar }
func (t *Tempo) SigDenominator() int     { return t.sigDenominator }
func (t *Tempo) SecondsPerBeat() float64 { return t.secondsPerBeat }

// Defined reports whether the tempo mapping is usable for beat math.
func (t *Tempo) Defined() bool { return t.secondsPerBeat > TempoEpsilon }

// BeatAt returns the fractional beat index at wall-clock time now.
// Returns 0 when the tempo is undefined.
func (t *Tempo) BeatAt(now float64) float64 {
	if !t.Defined() {
		return 0
	}
	return (now - t.beatZeroAnchor) / t.secondsPerBeat
}

// TimeAt returns the wall-clock time at which the given beat index occurs.
func (t *Tempo) TimeAt(beat float64) float64 {
	return t.beatZeroAnchor + beat*t.secondsPerBeat
}

// SetTempo changes the tempo such that the beat index at anchorTime is the
// same before and after the call. The anchor is re-derived from the beat
// value under the old mapping, so the timeline stays phase-continuous.
func (t *Tempo) SetTempo(bpm float64, anchorTime float64) {
	beatAtAnchor := t.BeatAt(anchorTime)
	t.setBPM(bpm)
	t.beatZeroAnchor = anchorTime - beatAtAnchor*t.secondsPerBeat
}

// ResetAnchor moves beat zero to startTime. Called when transport starts so
// every run begins a fresh beat epoch.
func (t *Tempo) ResetAnchor(startTime float64) {
	t.beatZeroAnchor = startTime
}
