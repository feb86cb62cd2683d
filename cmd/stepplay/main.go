package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	beatsync "github.com/cbegin/beatsync-go"
	"github.com/cbegin/beatsync-go/internal/audio"
	"github.com/cbegin/beatsync-go/internal/midiout"
	"github.com/cbegin/beatsync-go/internal/synth"
)

const defaultPattern = `
name: default
bpm: 120
loop: true
steps:
  - {note: c4, duration: 1, velocity: 110, event_type: stepTrigger}
  - {note: e4, duration: 0.5, velocity: 90, event_type: stepTrigger}
  - {tie: true, note: e4, duration: 0.5, event_type: stepTrigger}
  - {note: g4, duration: 1, velocity: 100, event_type: stepTrigger}
  - {rest: true, duration: 1, event_type: stepTrigger}
`

func main() {
	var (
		patternPath = flag.String("file", "", "path to a YAML pattern")
		bpm         = flag.Float64("bpm", 0, "tempo override (0 = pattern header or 120)")
		sampleRate  = flag.Int("sample-rate", 48000, "audio sample rate")
		waveName    = flag.String("wave", "sine", "builtin synth waveform: sine|triangle|square")
		midiPort    = flag.Int("midi", -1, "MIDI output port index (-1 = builtin synth)")
		midiChan    = flag.Int("midi-channel", 0, "MIDI channel (0-15)")
		listMIDI    = flag.Bool("list-midi", false, "list MIDI output ports and exit")
		seconds     = flag.Float64("seconds", 8, "how long to run a looping pattern")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *listMIDI {
		for i, name := range midiout.Ports() {
			fmt.Printf("%d: %s\n", i, name)
		}
		return
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	pattern, err := resolvePattern(*patternPath)
	if err != nil {
		log.Fatal(err)
	}
	steps, err := pattern.Compile()
	if err != nil {
		log.Fatal(err)
	}

	tempo := 120.0
	if pattern.BPM > 0 {
		tempo = pattern.BPM
	}
	if *bpm > 0 {
		tempo = *bpm
	}

	var (
		gen     beatsync.Generator
		backend *audio.Player
	)
	if *midiPort >= 0 {
		mg, err := midiout.Open(*midiPort, uint8(*midiChan))
		if err != nil {
			log.Fatal(err)
		}
		defer mg.Close()
		gen = mg
	} else {
		params := synth.DefaultParams()
		params.Waveform, err = parseWaveform(*waveName)
		if err != nil {
			log.Fatal(err)
		}
		voice := synth.New(*sampleRate, params)
		backend, err = audio.NewPlayer(*sampleRate, voice)
		if err != nil {
			log.Fatal(err)
		}
		backend.Play()
		defer backend.Stop()
		gen = voice
	}

	eng := beatsync.NewEngine(beatsync.WithBPM(tempo), beatsync.WithLogger(logger))
	eng.ObserveBeats(func(bi beatsync.BeatInfo) {
		fmt.Printf("bar %d beat %d\n", bi.Bar, bi.BeatInBar)
	})
	seq := eng.NewSequencer(beatsync.SequencerConfig{
		Steps:         steps,
		Generator:     gen,
		Loop:          pattern.Loop,
		QuantizeBeats: pattern.Quantize,
	})

	eng.StartTransport(0)
	eng.Tick(0)
	seq.Start(0)

	start := time.Now()
	ticker := time.NewTicker(4 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Since(start).Seconds()
		eng.Tick(now)
		if !seq.Playing() {
			break
		}
		if pattern.Loop && now >= *seconds {
			seq.Stop()
			break
		}
	}
	eng.StopTransport()
	// Let the release tail ring out before tearing down the audio device.
	if backend != nil {
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("done")
}

func resolvePattern(path string) (*beatsync.Pattern, error) {
	if strings.TrimSpace(path) == "" {
		return beatsync.ParsePattern([]byte(defaultPattern))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return beatsync.ParsePattern(data)
}

func parseWaveform(name string) (synth.Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine":
		return synth.Sine, nil
	case "triangle", "tri":
		return synth.Triangle, nil
	case "square", "sq":
		return synth.Square, nil
	default:
		return 0, fmt.Errorf("invalid -wave %q (expected sine|triangle|square)", name)
	}
}
