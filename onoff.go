package trafgen

// onoff.go holds the OnOffGenerator, which sends at a constant rate during ON
// periods and stays silent during OFF periods.  Period lengths are drawn from
// PeriodDists using a random number stream private to the generator

import (
	"fmt"
	"math"

	"github.com/iti/rngstream"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// OnOffConfig describes an OnOffGenerator
type OnOffConfig struct {
	Name       string
	Peer       string
	DataRate   float64 // bits per second while ON
	PacketSize int     // bytes
	OnTime     PeriodDist
	OffTime    PeriodDist
	MaxBytes   uint64 // stop after sending this many bytes; 0 means no limit
}

// OnOffGenerator alternates ON periods of paced sending with OFF periods.  It
// keeps one scheduled event at a time, due at the earlier of the next send and
// the end of the current period
type OnOffGenerator struct {
	name       string
	sched      Scheduler
	ch         Channel
	peer       string
	packetSize int
	dataRate   float64
	unit       []byte
	onTime     PeriodDist
	offTime    PeriodDist
	maxBytes   uint64
	rngstrm    *rngstream.RngStream

	state    GeneratorState
	on       bool
	phaseEnd float64
	event    *Event

	sent      uint64
	sentBytes uint64
	errs      uint64
	onPeriods int

	onError func(error)
	metrics *Metrics
	log     *logrus.Entry
}

// NewOnOffGenerator is a constructor
func NewOnOffGenerator(sched Scheduler, ch Channel, cfg OnOffConfig) (*OnOffGenerator, error) {
	if cfg.Name == "" {
		cfg.Name = cfg.Peer
	}
	if !(cfg.DataRate > 0.0) || math.IsInf(cfg.DataRate, 0) {
		return nil, errors.Wrapf(ErrInvalidRate, "onoff %s: rate %v", cfg.Name, cfg.DataRate)
	}
	if cfg.PacketSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "onoff %s: size %d", cfg.Name, cfg.PacketSize)
	}
	if err := cfg.OnTime.Validate(false); err != nil {
		return nil, errors.Wrapf(err, "onoff %s: on time", cfg.Name)
	}
	if err := cfg.OffTime.Validate(true); err != nil {
		return nil, errors.Wrapf(err, "onoff %s: off time", cfg.Name)
	}
	oo := &OnOffGenerator{
		name:       cfg.Name,
		sched:      sched,
		ch:         ch,
		peer:       cfg.Peer,
		packetSize: cfg.PacketSize,
		dataRate:   cfg.DataRate,
		unit:       make([]byte, cfg.PacketSize),
		onTime:     cfg.OnTime,
		offTime:    cfg.OffTime,
		maxBytes:   cfg.MaxBytes,
		rngstrm:    rngstream.New(cfg.Name),
		state:      GeneratorIdle,
		log:        componentLogger("onoff", cfg.Name),
	}
	return oo, nil
}

func (oo *OnOffGenerator) SetLogger(l *logrus.Entry) { oo.log = l }

func (oo *OnOffGenerator) SetMetrics(m *Metrics) {
	oo.metrics = m
	m.generatorState(oo.name, oo.state)
}

// OnError registers a function called with every runtime error the generator reports
func (oo *OnOffGenerator) OnError(fn func(error)) { oo.onError = fn }

func (oo *OnOffGenerator) Name() string          { return oo.name }
func (oo *OnOffGenerator) State() GeneratorState { return oo.state }
func (oo *OnOffGenerator) Sent() uint64          { return oo.sent }
func (oo *OnOffGenerator) SentBytes() uint64     { return oo.sentBytes }
func (oo *OnOffGenerator) Errors() uint64        { return oo.errs }

// On is true during an ON period
func (oo *OnOffGenerator) On() bool { return oo.on }

// OnPeriods is the number of ON periods begun
func (oo *OnOffGenerator) OnPeriods() int { return oo.onPeriods }

// Interval is the time between sends during an ON period
func (oo *OnOffGenerator) Interval() float64 {
	return float64(oo.packetSize) * 8.0 / oo.dataRate
}

// Start binds and connects the channel and begins the first ON period
func (oo *OnOffGenerator) Start() error {
	if oo.state != GeneratorIdle {
		return errors.Wrapf(ErrInvalidState, "onoff %s is %s", oo.name, oo.state)
	}
	oo.setState(GeneratorRunning)
	if err := oo.ch.Bind(); err != nil {
		oo.report(err)
		oo.setState(GeneratorStopped)
		return err
	}
	if err := oo.ch.Connect(oo.peer); err != nil {
		oo.report(err)
		oo.setState(GeneratorStopped)
		return err
	}
	now := oo.sched.Now()
	oo.on = false
	oo.phaseEnd = now
	oo.log.Info("onoff generator started")
	oo.step(now)
	return nil
}

// Stop cancels the pending event and closes the channel.  It does nothing unless running
func (oo *OnOffGenerator) Stop() {
	if oo.state != GeneratorRunning {
		return
	}
	oo.shutdown(true)
	oo.log.WithField("sent", oo.sent).Info("onoff generator stopped")
}

func (oo *OnOffGenerator) shutdown(closeChannel bool) {
	oo.setState(GeneratorStopped)
	oo.on = false
	if oo.event.Pending() {
		oo.sched.Cancel(oo.event)
	}
	oo.event = nil
	if closeChannel {
		if err := oo.ch.Close(); err != nil {
			oo.report(err)
		}
	}
}

// toggle ends the current period and draws the length of the next one
func (oo *OnOffGenerator) toggle(now float64) {
	oo.on = !oo.on
	if oo.on {
		oo.onPeriods += 1
		oo.phaseEnd = now + oo.onTime.Sample(oo.rngstrm)
	} else {
		oo.phaseEnd = now + oo.offTime.Sample(oo.rngstrm)
	}
	oo.log.WithField("on", oo.on).WithField("until", oo.phaseEnd).Debug("period change")
}

func (oo *OnOffGenerator) step(now float64) {
	oo.event = nil
	if now >= oo.phaseEnd {
		oo.toggle(now)
	}
	// a zero-length OFF period passes straight into the next ON period
	if !oo.on && now >= oo.phaseEnd {
		oo.toggle(now)
	}

	if oo.on && now < oo.phaseEnd {
		if !oo.send() {
			return
		}
	}
	if oo.state != GeneratorRunning {
		return
	}

	delay := oo.phaseEnd - now
	if oo.on {
		delay = math.Min(delay, oo.Interval())
	}
	if delay <= 0.0 {
		delay = oo.Interval()
	}
	if oo.event.Pending() {
		panic(fmt.Errorf("onoff %s: event already scheduled", oo.name))
	}
	oo.event = oo.sched.Schedule(delay, oo.step)
}

// send pushes one unit into the channel.  The return is false if the generator stopped
func (oo *OnOffGenerator) send() bool {
	err := oo.ch.Send(oo.unit)
	if err != nil {
		oo.errs += 1
		oo.report(err)
		if IsFatal(err) {
			oo.shutdown(false)
			return false
		}
		return true
	}
	oo.sent += 1
	oo.sentBytes += uint64(oo.packetSize)
	oo.metrics.unitSent(oo.name, oo.packetSize)
	if oo.maxBytes > 0 && oo.sentBytes >= oo.maxBytes {
		oo.log.WithField("bytes", oo.sentBytes).Info("byte limit reached")
		oo.shutdown(true)
		return false
	}
	return true
}

func (oo *OnOffGenerator) setState(gs GeneratorState) {
	oo.state = gs
	oo.metrics.generatorState(oo.name, gs)
}

func (oo *OnOffGenerator) report(err error) {
	fatal := IsFatal(err)
	oo.metrics.transportError(oo.name, fatal)
	oo.log.WithError(err).WithField("fatal", fatal).Warn("transport error")
	if oo.onError != nil {
		oo.onError(err)
	}
}
