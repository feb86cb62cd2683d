// Package synth is a minimal monophonic tone generator. It exists so the
// cmd hosts are audible end to end; it is not a serious instrument. Control
// parameters are single-writer (tick thread) / single-reader (audio thread)
// atomic cells, so the audio callback never blocks.
package synth

import (
	"math"
	"sync/atomic"
)

type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Square
)

type Params struct {
	Waveform       Waveform
	AttackSeconds  float64
	ReleaseSeconds float64
	MasterGain     float64
	Pan            float64 // -1 left .. +1 right
}

func DefaultParams() Params {
	return Params{
		Waveform:       Sine,
		AttackSeconds:  0.004,
		ReleaseSeconds: 0.06,
		MasterGain:     0.25,
		Pan:            0,
	}
}

// Voice is one gated oscillator voice. Setters may be called from the tick
// thread at any time; RenderFrame and Process belong to the audio thread.
type Voice struct {
	sampleRate  int
	waveform    Waveform
	attackStep  float64 // envelope delta per frame while gated
	releaseStep float64 // envelope delta per frame while released

	// Lock-free parameter cells (float bit patterns), one writer each.
	freq     atomic.Uint64
	gain     atomic.Uint64
	pan      atomic.Uint64
	velocity atomic.Uint32
	gate     atomic.Bool

	// Audio-thread state.
	phase float64
	env   float64
}

func New(sampleRate int, p Params) *Voice {
	v := &Voice{sampleRate: sampleRate, waveform: p.Waveform}
	step := func(seconds float64) float64 {
		frames := seconds * float64(sampleRate)
		if frames < 1 {
			frames = 1
		}
		return 1 / frames
	}
	v.attackStep = step(p.AttackSeconds)
	v.releaseStep = step(p.ReleaseSeconds)
	v.freq.Store(math.Float64bits(440))
	v.gain.Store(math.Float64bits(p.MasterGain))
	v.pan.Store(math.Float64bits(p.Pan))
	v.velocity.Store(100)
	return v
}

// SetFrequency sets the oscillator pitch in Hz. Non-positive values gate
// the voice off instead.
func (v *Voice) SetFrequency(hz float64) {
	if hz <= 0 {
		v.gate.Store(false)
		return
	}
	v.freq.Store(math.Float64bits(hz))
}

// SetVelocity sets the attack loudness, 0..127.
func (v *Voice) SetVelocity(vel int) {
	if vel < 0 {
		vel = 0
	} else if vel > 127 {
		vel = 127
	}
	v.velocity.Store(uint32(vel))
}

func (v *Voice) NoteOn()  { v.gate.Store(true) }
func (v *Voice) NoteOff() { v.gate.Store(false) }

// Gated reports the current note-is-sounding signal.
func (v *Voice) Gated() bool { return v.gate.Load() }

func (v *Voice) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	v.gain.Store(math.Float64bits(gain))
}

// SetPan sets stereo placement, -1 (left) to +1 (right).
func (v *Voice) SetPan(pan float64) {
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	v.pan.Store(math.Float64bits(pan))
}

// RenderFrame produces one stereo frame.
func (v *Voice) RenderFrame() (float32, float32) {
	freq := math.Float64frombits(v.freq.Load())
	v.phase += freq / float64(v.sampleRate)
	if v.phase >= 1 {
		v.phase -= math.Floor(v.phase)
	}

	var osc float64
	switch v.waveform {
	case Triangle:
		osc = 4*math.Abs(v.phase-0.5) - 1
	case Square:
		if v.phase < 0.5 {
			osc = 1
		} else {
			osc = -1
		}
	default:
		osc = math.Sin(2 * math.Pi * v.phase)
	}

	if v.gate.Load() {
		v.env += v.attackStep
		if v.env > 1 {
			v.env = 1
		}
	} else {
		v.env -= v.releaseStep
		if v.env < 0 {
			v.env = 0
		}
	}

	vel := float64(v.velocity.Load()) / 127
	gain := math.Float64frombits(v.gain.Load())
	s := osc * v.env * vel * gain

	pan := math.Float64frombits(v.pan.Load())
	left := s * math.Sqrt((1-pan)/2)
	right := s * math.Sqrt((1+pan)/2)
	return float32(left), float32(right)
}

// Process fills an interleaved stereo buffer, accumulating nothing: the
// voice owns the buffer contents.
func (v *Voice) Process(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		l, r := v.RenderFrame()
		dst[i] = l
		dst[i+1] = r
	}
}
