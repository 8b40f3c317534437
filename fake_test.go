package trafgen

// fakeScheduler is a Scheduler that runs events on demand, in time order with
// ties broken by scheduling order, and counts the calls made on it
type fakeScheduler struct {
	now       float64
	events    []*Event
	scheduled int
	cancels   int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{}
}

func (fs *fakeScheduler) Now() float64 { return fs.now }

func (fs *fakeScheduler) Schedule(delay float64, fn EventFunc) *Event {
	ev := NewEvent(fs.now+delay, fn)
	fs.events = append(fs.events, ev)
	fs.scheduled += 1
	return ev
}

func (fs *fakeScheduler) Cancel(ev *Event) bool {
	fs.cancels += 1
	return ev.MarkCancelled()
}

// pending counts events still due to run
func (fs *fakeScheduler) pending() int {
	cnt := 0
	for _, ev := range fs.events {
		if ev.Pending() {
			cnt += 1
		}
	}
	return cnt
}

// runUntil fires every pending event due at or before horizon
func (fs *fakeScheduler) runUntil(horizon float64) {
	for {
		var next *Event
		nextIdx := -1
		for idx, ev := range fs.events {
			if !ev.Pending() || ev.Time() > horizon {
				continue
			}
			if next == nil || ev.Time() < next.Time() {
				next, nextIdx = ev, idx
			}
		}
		if next == nil {
			break
		}
		fs.events = append(fs.events[:nextIdx], fs.events[nextIdx+1:]...)
		fs.now = next.Time()
		next.Fire(fs.now)
	}
	// drop what has already run or been cancelled
	live := fs.events[:0]
	for _, ev := range fs.events {
		if ev.Pending() {
			live = append(live, ev)
		}
	}
	fs.events = live
}

// fakeChannel is a Channel that accepts everything unless told otherwise
type fakeChannel struct {
	binds    int
	connects int
	attempts int
	sends    int
	closes   int
	peer     string

	bindErr    error
	connectErr error
	sendErr    func(attempt int) error // attempt counts from 1
	onSend     func()
}

func (fc *fakeChannel) Bind() error {
	fc.binds += 1
	return fc.bindErr
}

func (fc *fakeChannel) Connect(peer string) error {
	fc.connects += 1
	fc.peer = peer
	return fc.connectErr
}

func (fc *fakeChannel) Send(data []byte) error {
	fc.attempts += 1
	if fc.onSend != nil {
		fc.onSend()
	}
	if fc.sendErr != nil {
		if err := fc.sendErr(fc.attempts); err != nil {
			return err
		}
	}
	fc.sends += 1
	return nil
}

func (fc *fakeChannel) Close() error {
	fc.closes += 1
	return nil
}

// fakeCounter is a Counter whose value the test sets directly
type fakeCounter struct {
	value uint64
}

func (fc *fakeCounter) Value() uint64 { return fc.value }
