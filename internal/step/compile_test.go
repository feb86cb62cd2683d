package step

import "testing"

func note(name string, dur float64) Step {
	return Step{Duration: dur, Pitch: PitchSpec{Mode: PitchByName, Name: name}, Velocity: 100}
}

func TestCompileClampsDurationAndVelocity(t *testing.T) {
	steps := []Step{
		{Duration: 0, Pitch: PitchSpec{Mode: PitchByName, Name: "c4"}, Velocity: 300},
		{Duration: -2, Pitch: PitchSpec{Mode: PitchByName, Name: "c4"}, Velocity: -5},
	}
	rt, problems := compileSteps(steps, nil, false)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	for i, r := range rt {
		if r.duration != MinDuration {
			t.Fatalf("step %d: duration %v not clamped to %v", i, r.duration, MinDuration)
		}
	}
	if rt[0].velocity != 127 || rt[1].velocity != 0 {
		t.Fatalf("velocities not clamped: %d, %d", rt[0].velocity, rt[1].velocity)
	}
}

func TestCompileStripsFirstTieWhenNotLooping(t *testing.T) {
	steps := []Step{
		{Tie: true, Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "c4"}},
		note("d4", 1),
	}
	rt, _ := compileSteps(steps, nil, false)
	if rt[0].tie {
		t.Fatalf("first step of a non-looping run must not tie")
	}
	if rt[0].rest {
		t.Fatalf("stripped first tie should still play")
	}
}

func TestCompileKeepsFirstTieWhenLooping(t *testing.T) {
	steps := []Step{
		{Tie: true, Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "c4"}},
		note("c4", 1),
	}
	rt, _ := compileSteps(steps, nil, true)
	if !rt[0].tie {
		t.Fatalf("looping first step tying from a sounding last step should keep its tie")
	}
}

func TestCompileTieFromRestBecomesRest(t *testing.T) {
	steps := []Step{
		{Rest: true, Duration: 1},
		{Tie: true, Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "c4"}},
	}
	rt, _ := compileSteps(steps, nil, false)
	if !rt[1].rest || rt[1].tie {
		t.Fatalf("tie from a rest should become a rest, got rest=%v tie=%v", rt[1].rest, rt[1].tie)
	}
}

func TestCompileRestNeverTies(t *testing.T) {
	steps := []Step{
		note("c4", 1),
		{Rest: true, Tie: true, Duration: 1},
	}
	rt, _ := compileSteps(steps, nil, false)
	if rt[1].tie {
		t.Fatalf("a rest can never tie")
	}
}

func TestCompileInvalidPitchDemotesToRest(t *testing.T) {
	steps := []Step{
		{Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "nope"}},
	}
	rt, problems := compileSteps(steps, nil, false)
	if len(problems) != 1 {
		t.Fatalf("expected one problem, got %v", problems)
	}
	if !rt[0].rest {
		t.Fatalf("unresolvable pitch should demote the step to a rest")
	}
}

func TestCompileResolvesGeneratorOverride(t *testing.T) {
	def := &countingGenerator{}
	override := &countingGenerator{}
	steps := []Step{
		note("c4", 1),
		{Duration: 1, Pitch: PitchSpec{Mode: PitchByName, Name: "d4"}, Generator: override},
	}
	rt, _ := compileSteps(steps, def, false)
	if rt[0].gen != Generator(def) {
		t.Fatalf("step without override should use the default generator")
	}
	if rt[1].gen != Generator(override) {
		t.Fatalf("step override should win over the default generator")
	}
}
