// Package midiout implements the sequencer's generator interface on top of
// a MIDI output port. All methods are tick-thread only.
package midiout

import (
	"fmt"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Ports lists the available MIDI output port names.
func Ports() []string {
	outs := midi.GetOutPorts()
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names
}

// Generator sends note-on/off messages to one MIDI channel of an output
// port. Pitch arrives either as a note number (preferred) or as a
// frequency, which is rounded to the nearest equal-tempered note.
type Generator struct {
	out      drivers.Out
	send     func(msg midi.Message) error
	channel  uint8
	note     uint8 // pitch armed for the next NoteOn
	velocity uint8

	sounding     bool
	soundingNote uint8
}

// Open opens the MIDI output port at index on the given channel (0-15).
func Open(index int, channel uint8) (*Generator, error) {
	outs := midi.GetOutPorts()
	if index < 0 || index >= len(outs) {
		return nil, fmt.Errorf("invalid midi port index %d (have %d ports)", index, len(outs))
	}
	send, err := midi.SendTo(outs[index])
	if err != nil {
		return nil, fmt.Errorf("open midi port %q: %w", outs[index].String(), err)
	}
	return &Generator{
		out:      outs[index],
		send:     send,
		channel:  channel & 0x0f,
		note:     60,
		velocity: 100,
	}, nil
}

// SetSemitone arms the next NoteOn with a note number, clamped to 0..127.
func (g *Generator) SetSemitone(note int) {
	if note < 0 {
		note = 0
	} else if note > 127 {
		note = 127
	}
	g.note = uint8(note)
}

// SetFrequency arms the nearest equal-tempered note for the next NoteOn.
func (g *Generator) SetFrequency(hz float64) {
	if hz <= 0 {
		return
	}
	n := int(math.Round(69 + 12*math.Log2(hz/440)))
	g.SetSemitone(n)
}

func (g *Generator) SetVelocity(v int) {
	if v < 0 {
		v = 0
	} else if v > 127 {
		v = 127
	}
	g.velocity = uint8(v)
}

// NoteOn retriggers: a still-sounding note is released first so a mono line
// never stacks.
func (g *Generator) NoteOn() {
	if g.send == nil {
		return
	}
	if g.sounding {
		g.send(midi.NoteOff(g.channel, g.soundingNote))
	}
	g.send(midi.NoteOn(g.channel, g.note, g.velocity))
	g.sounding = true
	g.soundingNote = g.note
}

func (g *Generator) NoteOff() {
	if g.send == nil || !g.sounding {
		return
	}
	g.send(midi.NoteOff(g.channel, g.soundingNote))
	g.sounding = false
}

// Close releases any sounding note and the MIDI driver.
func (g *Generator) Close() {
	g.NoteOff()
	midi.CloseDriver()
}
