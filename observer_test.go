package trafgen

import (
	"testing"
)

// stubClock is a Clock the test moves by hand
type stubClock struct {
	now float64
}

func (sc *stubClock) Now() float64 { return sc.now }

func TestTracedValueNotifiesOnChange(t *testing.T) {
	tv := NewTracedValue(10)
	type change struct{ old, new uint32 }
	var first, second []change
	tv.Connect(func(o, n uint32) { first = append(first, change{o, n}) })
	tv.Connect(func(o, n uint32) { second = append(second, change{o, n}) })

	tv.Set(10)
	tv.Set(20)
	tv.Set(20)
	tv.Set(15)

	want := []change{{10, 20}, {20, 15}}
	for _, got := range [][]change{first, second} {
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("notifications = %v, want %v", got, want)
		}
	}
	if tv.Get() != 15 {
		t.Fatalf("Get() = %d, want 15", tv.Get())
	}
}

func TestCwndObserverRecords(t *testing.T) {
	clock := &stubClock{}
	rec := CreateRecorder("cwnd")
	co := NewCwndObserver(clock, rec)
	tv := NewTracedValue(536)
	co.Bind(tv)

	clock.now = 0.5
	tv.Set(1072)
	clock.now = 0.75
	tv.Set(2144)

	samples := rec.Snapshot()
	if len(samples) != 2 {
		t.Fatalf("recorded %d samples, want 2", len(samples))
	}
	if samples[0] != (Sample{0.5, 1072}) || samples[1] != (Sample{0.75, 2144}) {
		t.Fatalf("samples = %v", samples)
	}
}

func TestCwndObserverSurvivesRejectedSample(t *testing.T) {
	clock := &stubClock{now: 2.0}
	rec := CreateRecorder("cwnd")
	co := NewCwndObserver(clock, rec)

	co.Notify(0, 100)
	clock.now = 1.0
	co.Notify(100, 200)

	if rec.Len() != 1 || rec.Rejected() != 1 {
		t.Fatalf("Len()=%d Rejected()=%d, want 1 and 1", rec.Len(), rec.Rejected())
	}
}
