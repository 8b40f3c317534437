package trafgen

// generator.go holds the RatePacedGenerator, an application that sends
// fixed-size units over a Channel at a target bit rate.  Rather than
// writing as fast as the channel accepts, it computes the time one unit
// occupies at the target rate and schedules the next send that far ahead

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultPacketSize is the unit size used when none is configured
const DefaultPacketSize = 512

// GeneratorState is the lifecycle state of a generator
type GeneratorState int

const (
	GeneratorIdle GeneratorState = iota
	GeneratorRunning
	GeneratorStopped
)

var gsToStr map[GeneratorState]string = map[GeneratorState]string{
	GeneratorIdle: "idle", GeneratorRunning: "running", GeneratorStopped: "stopped"}

func (gs GeneratorState) String() string {
	if str, present := gsToStr[gs]; present {
		return str
	}
	return "unknown"
}

// RatePacedGenerator sends packetSize-byte units to peer at dataRate bits/sec
type RatePacedGenerator struct {
	name       string
	sched      Scheduler
	ch         Channel
	peer       string
	packetSize int
	dataRate   float64
	unit       []byte

	state     GeneratorState
	sendEvent *Event // the one scheduled send, nil when none is pending

	sent      uint64
	sentBytes uint64
	errs      uint64

	onError func(error)
	metrics *Metrics
	log     *logrus.Entry
}

// NewRatePacedGenerator is a constructor.  dataRate is in bits per second,
// packetSize in bytes; both must be positive
func NewRatePacedGenerator(sched Scheduler, ch Channel, peer string, dataRate float64, packetSize int) (*RatePacedGenerator, error) {
	if !(dataRate > 0.0) || math.IsInf(dataRate, 0) {
		return nil, errors.Wrapf(ErrInvalidRate, "generator to %s: rate %v", peer, dataRate)
	}
	if packetSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "generator to %s: size %d", peer, packetSize)
	}
	gen := &RatePacedGenerator{
		name:       peer,
		sched:      sched,
		ch:         ch,
		peer:       peer,
		packetSize: packetSize,
		dataRate:   dataRate,
		unit:       make([]byte, packetSize),
		state:      GeneratorIdle,
	}
	gen.log = componentLogger("generator", gen.name)
	return gen, nil
}

// SetName replaces the name used in logs and metrics (the peer by default)
func (gen *RatePacedGenerator) SetName(name string) {
	gen.name = name
	gen.log = componentLogger("generator", name)
}

func (gen *RatePacedGenerator) SetLogger(l *logrus.Entry) { gen.log = l }

func (gen *RatePacedGenerator) SetMetrics(m *Metrics) {
	gen.metrics = m
	m.generatorState(gen.name, gen.state)
}

// OnError registers a function called with every runtime error the generator reports
func (gen *RatePacedGenerator) OnError(fn func(error)) { gen.onError = fn }

func (gen *RatePacedGenerator) Name() string          { return gen.name }
func (gen *RatePacedGenerator) State() GeneratorState { return gen.state }
func (gen *RatePacedGenerator) PacketSize() int       { return gen.packetSize }
func (gen *RatePacedGenerator) DataRate() float64     { return gen.dataRate }

// Sent is the number of units the channel accepted
func (gen *RatePacedGenerator) Sent() uint64 { return gen.sent }

// SentBytes is the number of bytes the channel accepted
func (gen *RatePacedGenerator) SentBytes() uint64 { return gen.sentBytes }

// Errors is the number of failed sends
func (gen *RatePacedGenerator) Errors() uint64 { return gen.errs }

// Interval is the time in seconds between successive sends, the time one unit
// takes at the target rate
func (gen *RatePacedGenerator) Interval() float64 {
	return float64(gen.packetSize) * 8.0 / gen.dataRate
}

// Start binds and connects the channel, sends the first unit and schedules the
// next.  It is valid only on an idle generator.  A bind or connect failure
// leaves the generator stopped, as does a fatal failure of the first send
func (gen *RatePacedGenerator) Start() error {
	if gen.state != GeneratorIdle {
		return errors.Wrapf(ErrInvalidState, "generator %s is %s", gen.name, gen.state)
	}
	gen.setState(GeneratorRunning)

	if err := gen.ch.Bind(); err != nil {
		gen.report(err)
		gen.setState(GeneratorStopped)
		return err
	}
	if err := gen.ch.Connect(gen.peer); err != nil {
		gen.report(err)
		gen.setState(GeneratorStopped)
		return err
	}
	gen.log.WithField("interval", gen.Interval()).Info("generator started")
	if err := gen.sendAndReschedule(); err != nil && IsFatal(err) {
		return err
	}
	return nil
}

// Stop cancels the pending send and closes the channel.  It does nothing unless
// the generator is running
func (gen *RatePacedGenerator) Stop() {
	if gen.state != GeneratorRunning {
		return
	}
	gen.shutdown(true)
	gen.log.WithField("sent", gen.sent).Info("generator stopped")
}

func (gen *RatePacedGenerator) shutdown(closeChannel bool) {
	gen.setState(GeneratorStopped)
	if gen.sendEvent.Pending() {
		gen.sched.Cancel(gen.sendEvent)
	}
	gen.sendEvent = nil
	if closeChannel {
		if err := gen.ch.Close(); err != nil {
			gen.report(err)
		}
	}
}

// sendAndReschedule sends one unit and, if the generator is still running
// afterwards, schedules the next cycle
func (gen *RatePacedGenerator) sendAndReschedule() error {
	err := gen.ch.Send(gen.unit)
	if err != nil {
		gen.errs += 1
		gen.report(err)
		if IsFatal(err) {
			gen.log.Warn("channel lost, generator stopping")
			gen.shutdown(false)
			return err
		}
	} else {
		gen.sent += 1
		gen.sentBytes += uint64(gen.packetSize)
		gen.metrics.unitSent(gen.name, gen.packetSize)
	}
	gen.scheduleTx()
	return err
}

func (gen *RatePacedGenerator) scheduleTx() {
	// Stop may have run inside Send, through a channel callback
	if gen.state != GeneratorRunning {
		return
	}
	if gen.sendEvent.Pending() {
		panic(fmt.Errorf("generator %s: send already scheduled", gen.name))
	}
	gen.sendEvent = gen.sched.Schedule(gen.Interval(), func(now float64) {
		gen.sendEvent = nil
		_ = gen.sendAndReschedule()
	})
}

func (gen *RatePacedGenerator) setState(gs GeneratorState) {
	gen.state = gs
	gen.metrics.generatorState(gen.name, gs)
}

func (gen *RatePacedGenerator) report(err error) {
	fatal := IsFatal(err)
	gen.metrics.transportError(gen.name, fatal)
	gen.log.WithError(err).WithField("fatal", fatal).Warn("transport error")
	if gen.onError != nil {
		gen.onError(err)
	}
}
