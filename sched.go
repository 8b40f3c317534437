package trafgen

// sched.go holds the scheduler facade through which generators, samplers
// and the link model ask for work to be done at a future simulation time.
// The facade sits on top of the evt event manager; everything it runs
// executes on the event manager's single thread, in time order.

import (
	"fmt"
	"math"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// EventFunc is the work carried by a scheduled event.  now is the
// simulation time (in seconds) at which it runs
type EventFunc func(now float64)

// Clock reports the current simulation time in seconds
type Clock interface {
	Now() float64
}

// Scheduler runs callbacks at simulated times
type Scheduler interface {
	Clock

	// Schedule arranges for fn to run once, delay seconds from now
	Schedule(delay float64, fn EventFunc) *Event

	// Cancel keeps a pending event from running.  It returns false
	// if the event already ran or was already cancelled
	Cancel(ev *Event) bool
}

// Event is the handle of a scheduled callback
type Event struct {
	at        float64
	fn        EventFunc
	cancelled bool
	fired     bool
}

// NewEvent creates a handle for work due at simulation time at.  It is
// exported for Scheduler implementations other than EvtScheduler
func NewEvent(at float64, fn EventFunc) *Event {
	return &Event{at: at, fn: fn}
}

// Time is the simulation time the event is due
func (ev *Event) Time() float64 {
	return ev.at
}

// Pending is true while the event has neither run nor been cancelled.
// A nil event is never pending
func (ev *Event) Pending() bool {
	return ev != nil && !ev.fired && !ev.cancelled
}

// Cancelled is true if Cancel was applied before the event ran
func (ev *Event) Cancelled() bool {
	return ev != nil && ev.cancelled
}

// Fire runs the event's callback if it is still pending, and marks it as run
func (ev *Event) Fire(now float64) bool {
	if !ev.Pending() {
		return false
	}
	ev.fired = true
	ev.fn(now)
	return true
}

// MarkCancelled flags a pending event as cancelled
func (ev *Event) MarkCancelled() bool {
	if !ev.Pending() {
		return false
	}
	ev.cancelled = true
	return true
}

// EvtScheduler is the Scheduler backed by an evtm.EventManager
type EvtScheduler struct {
	evtMgr  *evtm.EventManager
	pending int // events scheduled, not yet run, not cancelled
}

// NewEvtScheduler wraps evtMgr.  When evtMgr is nil a fresh event manager is created
func NewEvtScheduler(evtMgr *evtm.EventManager) *EvtScheduler {
	if evtMgr == nil {
		evtMgr = evtm.New()
	}
	return &EvtScheduler{evtMgr: evtMgr}
}

// EventManager exposes the underlying event manager, so that the facade can be
// embedded in a larger evtm model
func (es *EvtScheduler) EventManager() *evtm.EventManager {
	return es.evtMgr
}

// Now returns the current simulation time in seconds
func (es *EvtScheduler) Now() float64 {
	return es.evtMgr.CurrentSeconds()
}

// Schedule puts fn on the evtm event list, delay seconds in the future
func (es *EvtScheduler) Schedule(delay float64, fn EventFunc) *Event {
	if delay < 0.0 || math.IsNaN(delay) || math.IsInf(delay, 0) {
		panic(fmt.Errorf("schedule with delay %v", delay))
	}
	ev := NewEvent(es.Now()+delay, fn)
	es.pending += 1
	es.evtMgr.Schedule(es, ev, fireEvent, vrtime.SecondsToTime(delay))
	return ev
}

// fireEvent is the evtm handler for every event the facade schedules.  A
// cancelled event stays on the evtm list and is dropped here
func fireEvent(evtMgr *evtm.EventManager, context any, data any) any {
	es := context.(*EvtScheduler)
	ev := data.(*Event)
	if !ev.Pending() {
		return nil
	}
	es.pending -= 1
	ev.Fire(evtMgr.CurrentSeconds())
	return nil
}

// Cancel marks ev so that it will not run
func (es *EvtScheduler) Cancel(ev *Event) bool {
	if !ev.MarkCancelled() {
		return false
	}
	es.pending -= 1
	return true
}

// Pending is the number of events that are scheduled and still due to run
func (es *EvtScheduler) Pending() int {
	return es.pending
}

// Run executes events in time order until the simulation time passes horizon
// or the event list empties
func (es *EvtScheduler) Run(horizon float64) {
	es.evtMgr.Run(horizon)
}
