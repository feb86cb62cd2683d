package synth

import "testing"

func energy(buf []float32) float64 {
	var e float64
	for _, s := range buf {
		if s < 0 {
			e -= float64(s)
		} else {
			e += float64(s)
		}
	}
	return e
}

func TestVoiceSilentUntilGated(t *testing.T) {
	v := New(48000, DefaultParams())
	buf := make([]float32, 4800*2)
	v.Process(buf)
	if e := energy(buf); e != 0 {
		t.Fatalf("ungated voice should be silent, energy=%v", e)
	}
}

func TestVoiceSoundsWhileGated(t *testing.T) {
	v := New(48000, DefaultParams())
	v.SetFrequency(440)
	v.SetVelocity(100)
	v.NoteOn()
	buf := make([]float32, 4800*2)
	v.Process(buf)
	if e := energy(buf); e == 0 {
		t.Fatalf("gated voice produced no audio")
	}
}

func TestVoiceReleasesAfterNoteOff(t *testing.T) {
	v := New(48000, DefaultParams())
	v.SetFrequency(440)
	v.NoteOn()
	buf := make([]float32, 4800*2)
	v.Process(buf)
	v.NoteOff()
	// A full second is far beyond the release time; the tail must be silent.
	tail := make([]float32, 48000*2)
	v.Process(tail)
	half := tail[len(tail)/2:]
	if e := energy(half); e != 0 {
		t.Fatalf("voice still sounding long after note-off, energy=%v", e)
	}
}

func TestVoiceZeroVelocityIsSilent(t *testing.T) {
	v := New(48000, DefaultParams())
	v.SetFrequency(440)
	v.SetVelocity(0)
	v.NoteOn()
	buf := make([]float32, 4800*2)
	v.Process(buf)
	if e := energy(buf); e != 0 {
		t.Fatalf("zero velocity should be silent, energy=%v", e)
	}
}

func TestVoicePanHardLeft(t *testing.T) {
	v := New(48000, Params{Waveform: Square, AttackSeconds: 0, ReleaseSeconds: 0.01, MasterGain: 0.5, Pan: -1})
	v.SetFrequency(220)
	v.NoteOn()
	buf := make([]float32, 4800*2)
	v.Process(buf)
	var right float64
	for i := 1; i < len(buf); i += 2 {
		right += float64(buf[i]) * float64(buf[i])
	}
	if right != 0 {
		t.Fatalf("hard-left pan leaked into the right channel: %v", right)
	}
}
