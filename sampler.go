package trafgen

// sampler.go holds the DeltaSampler, a self-rescheduling probe that reads a
// cumulative byte counter at a fixed interval and records the rate at which
// the counter grew since the previous reading

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SamplerConfig carries the optional parameters of a DeltaSampler
type SamplerConfig struct {
	Name string

	// Scale divides bits per second to give the recorded unit.  Zero selects 1e6 (Mb/s)
	Scale float64

	// Baseline is the counter value assumed before the first reading
	Baseline uint64
}

// DeltaSampler turns a cumulative byte counter into rate samples
type DeltaSampler struct {
	name    string
	sched   Scheduler
	counter Counter
	rec     *Recorder

	scale    float64
	interval float64

	// snapshot of the previous reading
	prev     uint64
	prevTime float64
	first    bool

	started     bool
	running     bool
	tickEvent   *Event
	ticks       int
	regressions int

	onError func(error)
	metrics *Metrics
	log     *logrus.Entry
}

// NewDeltaSampler creates a sampler reading counter and writing into rec
func NewDeltaSampler(sched Scheduler, counter Counter, rec *Recorder, cfg SamplerConfig) (*DeltaSampler, error) {
	if cfg.Scale == 0.0 {
		cfg.Scale = 1e6
	}
	if cfg.Scale < 0.0 || math.IsNaN(cfg.Scale) || math.IsInf(cfg.Scale, 0) {
		return nil, errors.Wrapf(ErrInvalidParam, "sampler %s: scale %v", cfg.Name, cfg.Scale)
	}
	if cfg.Name == "" {
		cfg.Name = rec.Name
	}
	ds := &DeltaSampler{
		name:    cfg.Name,
		sched:   sched,
		counter: counter,
		rec:     rec,
		scale:   cfg.Scale,
		prev:    cfg.Baseline,
		log:     componentLogger("sampler", cfg.Name),
	}
	return ds, nil
}

func (ds *DeltaSampler) SetLogger(l *logrus.Entry) { ds.log = l }
func (ds *DeltaSampler) SetMetrics(m *Metrics)     { ds.metrics = m }

// OnError registers a function called with every runtime error the sampler reports
func (ds *DeltaSampler) OnError(fn func(error)) { ds.onError = fn }

// Name identifies the sampler in logs and metrics
func (ds *DeltaSampler) Name() string { return ds.name }

// Interval is the sampling period given to Start
func (ds *DeltaSampler) Interval() float64 { return ds.interval }

// Running is true between Start and Stop
func (ds *DeltaSampler) Running() bool { return ds.running }

// Ticks is the number of samples taken
func (ds *DeltaSampler) Ticks() int { return ds.ticks }

// Regressions is the number of ticks at which the counter was found to have decreased
func (ds *DeltaSampler) Regressions() int { return ds.regressions }

// Start takes a first sample now and another every interval seconds after.
// A sampler can be started once
func (ds *DeltaSampler) Start(interval float64) error {
	if !(interval > 0.0) || math.IsInf(interval, 0) {
		return errors.Wrapf(ErrInvalidInterval, "sampler %s: interval %v", ds.name, interval)
	}
	if ds.started {
		return errors.Wrapf(ErrInvalidState, "sampler %s already started", ds.name)
	}
	ds.started = true
	ds.running = true
	ds.interval = interval
	ds.first = true
	ds.prevTime = ds.sched.Now()
	ds.tick(ds.sched.Now())
	return nil
}

// Stop cancels the pending tick.  Stopping a sampler that is not running does nothing
func (ds *DeltaSampler) Stop() {
	if !ds.running {
		return
	}
	ds.running = false
	if ds.tickEvent.Pending() {
		ds.sched.Cancel(ds.tickEvent)
	}
	ds.tickEvent = nil
}

// tick reads the counter, records the rate and schedules the next tick
func (ds *DeltaSampler) tick(now float64) {
	ds.tickEvent = nil
	ds.ticks += 1

	cur := ds.counter.Value()
	rate := 0.0
	if cur < ds.prev {
		ds.regressions += 1
		ds.metrics.counterRegression(ds.name)
		ds.report(errors.Wrapf(ErrCounterRegression, "sampler %s at t=%v: %d after %d", ds.name, now, cur, ds.prev))
	} else {
		// the first tick has no previous reading in time, so the nominal interval stands in
		elapsed := now - ds.prevTime
		if ds.first || elapsed <= 0.0 {
			elapsed = ds.interval
		}
		rate = float64(cur-ds.prev) * 8.0 / elapsed / ds.scale
	}
	ds.first = false

	// the recorder logs and counts a rejected sample itself
	_ = ds.rec.Add(now, rate)

	ds.prev = cur
	ds.prevTime = now

	if ds.running {
		if ds.tickEvent.Pending() {
			panic(fmt.Errorf("sampler %s: tick already scheduled", ds.name))
		}
		ds.tickEvent = ds.sched.Schedule(ds.interval, ds.tick)
	}
}

func (ds *DeltaSampler) report(err error) {
	ds.log.WithError(err).Warn("sampler error")
	if ds.onError != nil {
		ds.onError(err)
	}
}
