package trafgen

import (
	"math"
	"testing"

	"github.com/iti/rngstream"
	"github.com/pkg/errors"
)

func constOnOff(name string, maxBytes uint64) OnOffConfig {
	// 1250 bytes at 40 kb/s is one unit every 0.25 s
	return OnOffConfig{
		Name:       name,
		Peer:       "sink",
		DataRate:   40000,
		PacketSize: 1250,
		OnTime:     ConstPeriod(1.0),
		OffTime:    ConstPeriod(1.0),
		MaxBytes:   maxBytes,
	}
}

func TestOnOffConstantPeriods(t *testing.T) {
	fs := newFakeScheduler()
	ch := &fakeChannel{}
	var sendTimes []float64
	ch.onSend = func() { sendTimes = append(sendTimes, fs.Now()) }

	oo, err := NewOnOffGenerator(fs, ch, constOnOff("oo", 0))
	if err != nil {
		t.Fatalf("NewOnOffGenerator: %v", err)
	}
	if err := oo.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fs.runUntil(3.9)

	want := []float64{0, 0.25, 0.5, 0.75, 2.0, 2.25, 2.5, 2.75}
	if len(sendTimes) != len(want) {
		t.Fatalf("send times = %v, want %v", sendTimes, want)
	}
	for idx := range want {
		if math.Abs(sendTimes[idx]-want[idx]) > 1e-9 {
			t.Fatalf("send %d at %v, want %v", idx, sendTimes[idx], want[idx])
		}
	}
	if oo.OnPeriods() != 2 || oo.On() {
		t.Fatalf("OnPeriods()=%d On()=%v at t=3.9", oo.OnPeriods(), oo.On())
	}
	if fs.pending() != 1 {
		t.Fatalf("pending events = %d, want exactly 1", fs.pending())
	}
	oo.Stop()
	if fs.pending() != 0 || ch.closes != 1 || oo.State() != GeneratorStopped {
		t.Fatalf("after Stop: pending=%d closes=%d state=%s", fs.pending(), ch.closes, oo.State())
	}
}

func TestOnOffZeroOffTime(t *testing.T) {
	fs := newFakeScheduler()
	ch := &fakeChannel{}
	cfg := constOnOff("oo", 0)
	cfg.OffTime = ConstPeriod(0)
	oo, _ := NewOnOffGenerator(fs, ch, cfg)
	if err := oo.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fs.runUntil(1.9)
	// continuous sending: 0, 0.25, ... 1.75
	if ch.sends != 8 {
		t.Fatalf("sends = %d, want 8", ch.sends)
	}
}

func TestOnOffMaxBytes(t *testing.T) {
	fs := newFakeScheduler()
	ch := &fakeChannel{}
	oo, _ := NewOnOffGenerator(fs, ch, constOnOff("oo", 2500))
	if err := oo.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fs.runUntil(10.0)

	if oo.Sent() != 2 || oo.SentBytes() != 2500 {
		t.Fatalf("Sent=%d SentBytes=%d, want 2 and 2500", oo.Sent(), oo.SentBytes())
	}
	if oo.State() != GeneratorStopped || ch.closes != 1 || fs.pending() != 0 {
		t.Fatalf("state=%s closes=%d pending=%d", oo.State(), ch.closes, fs.pending())
	}
}

func TestOnOffFatalError(t *testing.T) {
	fs := newFakeScheduler()
	ch := &fakeChannel{sendErr: func(attempt int) error {
		if attempt == 2 {
			return transportErr("send", "sink", ErrChannelClosed)
		}
		return nil
	}}
	var reported []error
	oo, _ := NewOnOffGenerator(fs, ch, constOnOff("oo", 0))
	oo.OnError(func(err error) { reported = append(reported, err) })
	if err := oo.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fs.runUntil(5.0)

	if oo.State() != GeneratorStopped || fs.pending() != 0 || ch.attempts != 2 {
		t.Fatalf("state=%s pending=%d attempts=%d", oo.State(), fs.pending(), ch.attempts)
	}
	if len(reported) != 1 || !IsFatal(reported[0]) {
		t.Fatalf("reported = %v", reported)
	}
}

func TestOnOffExponentialPeriods(t *testing.T) {
	fs := newFakeScheduler()
	ch := &fakeChannel{}
	cfg := constOnOff("oo-exp", 0)
	cfg.OnTime = PeriodDist{Model: "exp", Mean: 0.5}
	cfg.OffTime = PeriodDist{Model: "exp", Mean: 0.5}
	oo, _ := NewOnOffGenerator(fs, ch, cfg)
	if err := oo.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fs.runUntil(60.0)

	if oo.OnPeriods() < 2 || oo.Sent() == 0 {
		t.Fatalf("OnPeriods=%d Sent=%d over 60 s", oo.OnPeriods(), oo.Sent())
	}
	// sending only happens while ON, so well below the full-time count
	if oo.Sent() >= 240 {
		t.Fatalf("Sent=%d, no OFF periods observed", oo.Sent())
	}
	if fs.pending() != 1 {
		t.Fatalf("pending events = %d, want exactly 1", fs.pending())
	}
}

func TestOnOffValidation(t *testing.T) {
	fs := newFakeScheduler()
	tests := []struct {
		name   string
		modify func(*OnOffConfig)
		want   error
	}{
		{"zero rate", func(c *OnOffConfig) { c.DataRate = 0 }, ErrInvalidRate},
		{"zero size", func(c *OnOffConfig) { c.PacketSize = 0 }, ErrInvalidSize},
		{"zero on time", func(c *OnOffConfig) { c.OnTime = ConstPeriod(0) }, ErrInvalidParam},
		{"negative off time", func(c *OnOffConfig) { c.OffTime = ConstPeriod(-1) }, ErrInvalidParam},
		{"unknown model", func(c *OnOffConfig) { c.OnTime.Model = "pareto" }, ErrInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := constOnOff("oo", 0)
			tt.modify(&cfg)
			_, err := NewOnOffGenerator(fs, &fakeChannel{}, cfg)
			if err == nil {
				t.Fatalf("invalid configuration accepted")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPeriodDistValidate(t *testing.T) {
	if err := ConstPeriod(0).Validate(true); err != nil {
		t.Fatalf("zero mean with zeroOK: %v", err)
	}
	for _, pd := range []PeriodDist{ConstPeriod(0), ConstPeriod(math.NaN()), {Model: "weibull", Mean: 1}} {
		if err := pd.Validate(false); !errors.Is(err, ErrInvalidParam) {
			t.Fatalf("Validate(%+v): err = %v, want ErrInvalidParam", pd, err)
		}
	}
}

func TestPeriodDistSample(t *testing.T) {
	rng := rngstream.New("period-test")
	if got := ConstPeriod(1.5).Sample(rng); got != 1.5 {
		t.Fatalf("constant sample = %v", got)
	}
	exp := PeriodDist{Model: "exp", Mean: 2.0}
	sum := 0.0
	n := 20000
	for idx := 0; idx < n; idx++ {
		v := exp.Sample(rng)
		if v < 0 {
			t.Fatalf("negative exponential sample %v", v)
		}
		sum += v
	}
	if mean := sum / float64(n); math.Abs(mean-2.0) > 0.1 {
		t.Fatalf("exponential sample mean = %v, want about 2", mean)
	}
}
