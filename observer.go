package trafgen

// observer.go holds the notification source used to watch a changing
// quantity, and the observer that copies congestion window changes
// into a Recorder

import (
	"github.com/sirupsen/logrus"
)

// TraceCallback is invoked with the previous and the new value of a traced quantity
type TraceCallback func(oldValue, newValue uint32)

// TraceSource accepts callbacks to be notified of changes
type TraceSource interface {
	Connect(cb TraceCallback)
}

// TracedValue holds a uint32 and notifies connected callbacks whenever it changes
type TracedValue struct {
	value uint32
	sinks []TraceCallback
}

// NewTracedValue creates a TracedValue holding initial.  No notification is
// made for the initial value
func NewTracedValue(initial uint32) *TracedValue {
	return &TracedValue{value: initial}
}

// Connect adds cb to the callbacks notified on change
func (tv *TracedValue) Connect(cb TraceCallback) {
	tv.sinks = append(tv.sinks, cb)
}

// Get returns the current value
func (tv *TracedValue) Get() uint32 {
	return tv.value
}

// Set stores v, and if it differs from the current value, notifies every callback in
// the order they were connected
func (tv *TracedValue) Set(v uint32) {
	if v == tv.value {
		return
	}
	old := tv.value
	tv.value = v
	for _, cb := range tv.sinks {
		cb(old, v)
	}
}

// CwndObserver records every congestion window change, stamped with the
// current simulation time
type CwndObserver struct {
	clock Clock
	rec   *Recorder
	log   *logrus.Entry
}

// NewCwndObserver creates an observer writing into rec
func NewCwndObserver(clock Clock, rec *Recorder) *CwndObserver {
	return &CwndObserver{clock: clock, rec: rec, log: componentLogger("cwnd-observer", rec.Name)}
}

// Bind registers the observer with src
func (co *CwndObserver) Bind(src TraceSource) {
	src.Connect(co.Notify)
}

// Notify is the TraceCallback.  It runs inline in the notifier and never fails;
// a sample the recorder refuses is only logged (by the recorder)
func (co *CwndObserver) Notify(oldCwnd, newCwnd uint32) {
	if err := co.rec.Add(co.clock.Now(), float64(newCwnd)); err != nil {
		co.log.WithField("old", oldCwnd).WithField("new", newCwnd).Debug("cwnd sample dropped")
	}
}
