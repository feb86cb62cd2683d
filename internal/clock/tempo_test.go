package clock

import (
	"math"
	"testing"
)

func TestBeatTimeRoundTrip(t *testing.T) {
	cases := []struct {
		bpm  float64
		beat float64
	}{
		{60, 0},
		{120, 4},
		{120, 3.75},
		{93.7, 17.25},
		{240, 1024},
		{7.5, 0.001},
	}
	for _, c := range cases {
		tempo := NewTempo(c.bpm, 4, 4)
		tempo.ResetAnchor(12.5)
		got := tempo.BeatAt(tempo.TimeAt(c.beat))
		if math.Abs(got-c.beat) > 1e-9 {
			t.Fatalf("bpm=%v beat=%v: round trip gave %v", c.bpm, c.beat, got)
		}
	}
}

func TestSecondsPerBeatDerivation(t *testing.T) {
	tempo := NewTempo(120, 4, 4)
	if got := tempo.SecondsPerBeat(); got != 0.5 {
		t.Fatalf("expected 0.5 s/beat at 120 bpm, got %v", got)
	}
	tempo.SetTempo(240, 0)
	if got := tempo.SecondsPerBeat(); got != 0.25 {
		t.Fatalf("expected 0.25 s/beat at 240 bpm, got %v", got)
	}
}

func TestSetTempoPreservesPhase(t *testing.T) {
	anchors := []float64{0, 1.0, 2.31, 100.7}
	for _, anchor := range anchors {
		tempo := NewTempo(120, 4, 4)
		tempo.ResetAnchor(0.25)
		before := tempo.BeatAt(anchor)
		tempo.SetTempo(187.3, anchor)
		after := tempo.BeatAt(anchor)
		if math.Abs(before-after) > 1e-6 {
			t.Fatalf("anchor=%v: beat moved from %v to %v across tempo change", anchor, before, after)
		}
	}
}

func TestSetTempoShiftsDueTimes(t *testing.T) {
	// Scenario: bpm=120, callback due at beat 4 (beatZero+2.0s). Doubling the
	// tempo at t=1.0s keeps the callback on beat 4, now 0.75s later in wall
	// time: anchorTime + (4 - beatAt(anchor)) * 0.25.
	tempo := NewTempo(120, 4, 4)
	tempo.ResetAnchor(0)
	if got := tempo.TimeAt(4); got != 2.0 {
		t.Fatalf("expected beat 4 at 2.0s, got %v", got)
	}
	tempo.SetTempo(240, 1.0)
	beatAtAnchor := 2.0 // 1.0s at 120 bpm
	want := 1.0 + (4-beatAtAnchor)*0.25
	if got := tempo.TimeAt(4); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected beat 4 at %v after tempo change, got %v", want, got)
	}
}

func TestZeroTempoIsUndefined(t *testing.T) {
	tempo := NewTempo(0, 4, 4)
	if tempo.Defined() {
		t.Fatalf("zero bpm should leave the tempo undefined")
	}
	if got := tempo.BeatAt(10); got != 0 {
		t.Fatalf("undefined tempo should report beat 0, got %v", got)
	}
}

func TestTimeSignatureClamp(t *testing.T) {
	tempo := NewTempo(120, 0, 0)
	if tempo.BeatsPerBar() != 1 || tempo.SigDenominator() != 1 {
		t.Fatalf("expected signature clamped to 1/1, got %d/%d", tempo.BeatsPerBar(), tempo.SigDenominator())
	}
}
