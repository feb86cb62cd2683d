// Package lookahead is a registry of advisory event metadata that consumers
// query over a sliding beat window. Registering an event here never fires
// anything; producers that also want a side effect use the callback queue.
package lookahead

import "reflect"

// DefaultHorizon is how many beats behind the playhead an event survives
// before the per-tick sweep removes it. It must exceed the largest consumer
// lookahead window, or a slow consumer can miss events.
const DefaultHorizon = 8.0

// Event is an immutable metadata record on the beat timeline.
type Event struct {
	ID      uint64
	Beat    float64
	Source  any    // opaque producer handle, compared by identity
	Type    string // event kind tag, e.g. "note", "stepTrigger"
	Tag     string // optional free-form filter tag
	Payload any
}

// Directory holds registered events. All methods must be called from the
// tick thread.
type Directory struct {
	horizon float64
	nextID  uint64
	events  []Event
}

// NewDirectory creates a directory with the given retention horizon in
// beats. Non-positive values select DefaultHorizon.
func NewDirectory(horizonBeats float64) *Directory {
	if horizonBeats <= 0 {
		horizonBeats = DefaultHorizon
	}
	return &Directory{horizon: horizonBeats}
}

func (d *Directory) Len() int         { return len(d.events) }
func (d *Directory) Horizon() float64 { return d.horizon }

// Register appends an event record and returns its id. Pure append, no
// dispatch side effect. Sources are identity handles compared with ==; an
// uncomparable source (func, map, slice) is stored as nil so that later
// queries and removals cannot panic on the comparison.
func (d *Directory) Register(beat float64, source any, eventType, tag string, payload any) uint64 {
	if source != nil && !reflect.TypeOf(source).Comparable() {
		source = nil
	}
	d.nextID++
	d.events = append(d.events, Event{
		ID:      d.nextID,
		Beat:    beat,
		Source:  source,
		Type:    eventType,
		Tag:     tag,
		Payload: payload,
	})
	return d.nextID
}

// Query returns every event with Beat in the closed interval
// [fromBeat, fromBeat+windowBeats] matching all supplied filters. A nil
// source and empty tag/type are wildcards. Result order is unspecified.
func (d *Directory) Query(fromBeat, windowBeats float64, source any, tag, eventType string) []Event {
	to := fromBeat + windowBeats
	var out []Event
	for _, ev := range d.events {
		if ev.Beat < fromBeat || ev.Beat > to {
			continue
		}
		if source != nil && ev.Source != source {
			continue
		}
		if tag != "" && ev.Tag != tag {
			continue
		}
		if eventType != "" && ev.Type != eventType {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Remove deletes the event with the given id, reporting whether it existed.
func (d *Directory) Remove(id uint64) bool {
	for i := range d.events {
		if d.events[i].ID == id {
			d.events = append(d.events[:i], d.events[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveBatch deletes every listed id and returns how many were present.
func (d *Directory) RemoveBatch(ids []uint64) int {
	removed := 0
	for _, id := range ids {
		if d.Remove(id) {
			removed++
		}
	}
	return removed
}

// RemoveSource deletes every event registered by source. Used when a
// producer stops and withdraws its pending registrations.
func (d *Directory) RemoveSource(source any) int {
	if source == nil {
		return 0
	}
	kept := d.events[:0]
	removed := 0
	for _, ev := range d.events {
		if ev.Source == source {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	d.events = kept
	return removed
}

// Clear drops every event.
func (d *Directory) Clear() {
	d.events = d.events[:0]
}

// Sweep removes events older than the retention horizon behind currentBeat
// and returns how many were dropped. Called once per tick.
func (d *Directory) Sweep(currentBeat float64) int {
	cutoff := currentBeat - d.horizon
	kept := d.events[:0]
	removed := 0
	for _, ev := range d.events {
		if ev.Beat < cutoff {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	d.events = kept
	return removed
}
