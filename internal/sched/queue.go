// Package sched holds the time-ordered one-shot callback queue dispatched
// from the host tick.
package sched

import (
	"sort"

	"github.com/cbegin/beatsync-go/internal/clock"
)

// DispatchEpsilon absorbs floating rounding between a computed due time and
// the host clock: entries within it of "now" are considered due.
const DispatchEpsilon = 1e-6

// Callback is a one-shot action fired when its beat's wall-clock time has
// passed. It runs synchronously on the tick thread and may schedule or
// cancel further entries.
type Callback func()

// Handle identifies a scheduled callback for cancellation. The zero Handle
// is invalid; check Valid before relying on it.
type Handle struct {
	id uint64
}

func (h Handle) Valid() bool { return h.id != 0 }

type entry struct {
	id   uint64
	beat float64
	due  float64
	fn   Callback
}

// Queue is a collection of pending callbacks ordered by due time. All
// methods must be called from the tick thread.
type Queue struct {
	transport *clock.Transport
	nextID    uint64
	pending   []entry
}

func NewQueue(transport *clock.Transport) *Queue {
	return &Queue{transport: transport}
}

// Len returns the number of callbacks not yet dispatched.
func (q *Queue) Len() int { return len(q.pending) }

// ScheduleAtBeat registers fn to fire when beat's wall-clock time passes.
// Returns an invalid handle when the tempo is undefined.
func (q *Queue) ScheduleAtBeat(beat float64, fn Callback) Handle {
	tempo := q.transport.Tempo()
	if !tempo.Defined() || fn == nil {
		return Handle{}
	}
	q.nextID++
	e := entry{id: q.nextID, beat: beat, due: tempo.TimeAt(beat), fn: fn}
	i := sort.Search(len(q.pending), func(i int) bool { return q.pending[i].due > e.due })
	q.pending = append(q.pending, entry{})
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = e
	return Handle{id: e.id}
}

// ScheduleBeatsFromNow schedules fn offsetBeats after the reference beat:
// the current beat while the transport runs, otherwise the planned start
// beat. Negative offsets clamp to zero.
func (q *Queue) ScheduleBeatsFromNow(now, offsetBeats float64, fn Callback) Handle {
	if offsetBeats < 0 {
		offsetBeats = 0
	}
	return q.ScheduleAtBeat(q.transport.ReferenceBeat(now)+offsetBeats, fn)
}

// Cancel removes the callback identified by h. It reports false when the
// handle is invalid, unknown, or already dispatched; cancelling twice is a
// safe no-op.
func (q *Queue) Cancel(h Handle) bool {
	if !h.Valid() {
		return false
	}
	for i := range q.pending {
		if q.pending[i].id == h.id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch fires every entry whose due time has passed, oldest first. Each
// entry is removed before its callback runs so a callback can re-enter the
// queue without seeing itself as pending.
func (q *Queue) Dispatch(now float64) {
	for len(q.pending) > 0 && q.pending[0].due-now <= DispatchEpsilon {
		e := q.pending[0]
		q.pending = q.pending[1:]
		e.fn()
	}
}

// Retime recomputes every pending due time from its stored beat index under
// the current tempo mapping and restores due-time order. Beat indices and
// handles are untouched. Call after every tempo change. While the tempo is
// undefined the entries keep their due times from the last defined mapping.
func (q *Queue) Retime() {
	tempo := q.transport.Tempo()
	if !tempo.Defined() {
		return
	}
	for i := range q.pending {
		q.pending[i].due = tempo.TimeAt(q.pending[i].beat)
	}
	sort.SliceStable(q.pending, func(i, j int) bool { return q.pending[i].due < q.pending[j].due })
}

// Clear drops every pending callback without firing it.
func (q *Queue) Clear() {
	q.pending = q.pending[:0]
}
