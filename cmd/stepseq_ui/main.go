package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/rs/zerolog"

	beatsync "github.com/cbegin/beatsync-go"
	"github.com/cbegin/beatsync-go/internal/audio"
	"github.com/cbegin/beatsync-go/internal/synth"
)

const (
	windowW      = 720
	windowH      = 360
	uiSampleRate = 48000

	// cueWindow is how far ahead (in beats) the UI peeks into the event
	// directory to light up steps before their audio fires.
	cueWindow = 1.0

	cellW   = 36
	cellH   = 48
	cellGap = 6
	gridY   = 140
)

var (
	bgColor     = color.RGBA{18, 20, 26, 255}
	idleColor   = color.RGBA{52, 56, 70, 255}
	cuedColor   = color.RGBA{110, 90, 30, 255}
	activeColor = color.RGBA{220, 180, 60, 255}
	restColor   = color.RGBA{34, 38, 48, 255}
)

const defaultPattern = `
name: ui-demo
bpm: 120
loop: true
quantize: 1
steps:
  - {note: c4, duration: 0.5, velocity: 110, event_type: stepTrigger}
  - {note: e4, duration: 0.5, velocity: 80, event_type: stepTrigger}
  - {note: g4, duration: 0.5, velocity: 80, event_type: stepTrigger}
  - {note: e4, duration: 0.5, velocity: 80, event_type: stepTrigger}
  - {note: a4, duration: 0.5, velocity: 100, event_type: stepTrigger}
  - {tie: true, note: a4, duration: 0.5, event_type: stepTrigger}
  - {rest: true, duration: 0.5, event_type: stepTrigger}
  - {note: b4, duration: 0.5, velocity: 90, event_type: stepTrigger}
`

type game struct {
	eng    *beatsync.Engine
	seq    *beatsync.Sequencer
	player *audio.Player
	start  time.Time

	steps    []beatsync.Step
	cued     map[int]bool
	lastBeat beatsync.BeatInfo
}

func (g *game) now() float64 { return time.Since(g.start).Seconds() }

func (g *game) Update() error {
	now := g.now()
	g.eng.Tick(now)

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if g.seq.Playing() {
			g.seq.Stop()
		} else {
			g.seq.Start(now)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		g.eng.SetTempo(g.eng.BPM()+5, now)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		if bpm := g.eng.BPM() - 5; bpm >= 20 {
			g.eng.SetTempo(bpm, now)
		}
	}

	// Peek ahead of the playhead so upcoming steps light up before their
	// audio callback fires.
	g.cued = map[int]bool{}
	cur := g.eng.CurrentBeat(now)
	for _, ev := range g.eng.QueryEvents(cur, cueWindow, g.seq, "", "stepTrigger") {
		if trig, ok := ev.Payload.(beatsync.Trigger); ok {
			g.cued[trig.StepIndex] = true
		}
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)

	playing := g.seq.PatternIndex()
	for i, st := range g.steps {
		x := 20 + i*(cellW+cellGap)
		col := idleColor
		switch {
		case g.seq.Playing() && i == playing:
			col = activeColor
		case g.cued[i]:
			col = cuedColor
		case st.Rest:
			col = restColor
		}
		ebitenutil.DrawRect(screen, float64(x), gridY, cellW, cellH, col)
		if st.Tie {
			ebitenutil.DrawRect(screen, float64(x-cellGap), gridY+cellH/2-2, cellGap, 4, col)
		}
	}

	state := "stopped"
	if g.seq.Playing() {
		state = "playing"
	}
	msg := fmt.Sprintf("beatsync demo\nbpm: %.0f  bar %d beat %d  [%s]\nspace: start/stop  up/down: tempo",
		g.eng.BPM(), g.lastBeat.Bar, g.lastBeat.BeatInBar, state)
	ebitenutil.DebugPrint(screen, msg)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	return windowW, windowH
}

func main() {
	patternPath := flag.String("file", "", "path to a YAML pattern")
	flag.Parse()

	raw := []byte(defaultPattern)
	if *patternPath != "" {
		data, err := os.ReadFile(*patternPath)
		if err != nil {
			log.Fatal(err)
		}
		raw = data
	}
	pattern, err := beatsync.ParsePattern(raw)
	if err != nil {
		log.Fatal(err)
	}
	steps, err := pattern.Compile()
	if err != nil {
		log.Fatal(err)
	}
	tempo := pattern.BPM
	if tempo <= 0 {
		tempo = 120
	}

	voice := synth.New(uiSampleRate, synth.DefaultParams())
	player, err := audio.NewPlayer(uiSampleRate, voice)
	if err != nil {
		log.Fatal(err)
	}
	player.Play()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	eng := beatsync.NewEngine(beatsync.WithBPM(tempo), beatsync.WithLogger(logger))
	seq := eng.NewSequencer(beatsync.SequencerConfig{
		Steps:         steps,
		Generator:     voice,
		Loop:          pattern.Loop,
		QuantizeBeats: pattern.Quantize,
	})

	g := &game{
		eng:    eng,
		seq:    seq,
		player: player,
		start:  time.Now(),
		steps:  steps,
		cued:   map[int]bool{},
	}
	eng.ObserveBeats(func(bi beatsync.BeatInfo) { g.lastBeat = bi })
	eng.StartTransport(0)

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("beatsync step sequencer")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
	player.Stop()
}
