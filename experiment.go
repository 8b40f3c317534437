package trafgen

// experiment.go assembles the components an ExpCfg describes and runs them.
// One rate-paced generator drives a stream channel across the link to a sink;
// any on/off generators share the link through datagram channels.  Three
// recorders are filled: the stream's congestion window, the link's transmit
// throughput and the sink's receive throughput

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// names of the recorders an experiment creates
const (
	CwndSeries    = "cwnd"
	TxRateSeries  = "link-tx"
	GoodputSeries = "goodput"
)

// Experiment holds the assembled model of one ExpCfg
type Experiment struct {
	Cfg       *ExpCfg
	Sched     *EvtScheduler
	Link      *Link
	Sink      *PacketSink
	Stream    *StreamChannel
	Generator *RatePacedGenerator
	OnOffs    []*OnOffGenerator

	CwndObserver *CwndObserver
	TxSampler    *DeltaSampler
	RxSampler    *DeltaSampler
	Telemetry    *TelemetryManager
	Metrics      *Metrics

	errs []error
	log  *logrus.Entry
}

// BuildExperiment validates cfg and builds every component.  metrics may be nil
func BuildExperiment(cfg *ExpCfg, metrics *Metrics) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exp := &Experiment{
		Cfg:       cfg,
		Sched:     NewEvtScheduler(nil),
		Telemetry: CreateTelemetryManager(cfg.Name),
		Metrics:   metrics,
		log:       componentLogger("experiment", cfg.Name),
	}

	bandwidth, _ := ParseDataRate(cfg.Link.Bandwidth)
	lnk, err := NewLink(exp.Sched, LinkConfig{
		Name:       "link",
		Bandwidth:  bandwidth,
		Delay:      cfg.Link.Delay,
		QueueLimit: cfg.Link.QueueLimit,
	})
	if err != nil {
		return nil, err
	}
	lnk.SetMetrics(metrics)
	exp.Link = lnk

	exp.Sink = NewPacketSink(cfg.Generator.Peer)
	exp.Stream = NewStreamChannel(exp.Sched, lnk, exp.Sink, StreamConfig{Name: cfg.Generator.Peer, MSS: cfg.Link.MSS})

	rate, _ := ParseDataRate(cfg.Generator.DataRate)
	gen, err := NewRatePacedGenerator(exp.Sched, exp.Stream, cfg.Generator.Peer, rate, cfg.Generator.PacketSize)
	if err != nil {
		return nil, err
	}
	gen.SetName("stream")
	gen.SetMetrics(metrics)
	gen.OnError(exp.collect)
	exp.Generator = gen

	for _, oc := range cfg.OnOff {
		ooRate, _ := ParseDataRate(oc.DataRate)
		ch := NewDatagramChannel(exp.Sched, lnk, NewPacketSink(oc.Peer), oc.Name)
		oo, err := NewOnOffGenerator(exp.Sched, ch, OnOffConfig{
			Name:       oc.Name,
			Peer:       oc.Peer,
			DataRate:   ooRate,
			PacketSize: oc.PacketSize,
			OnTime:     oc.OnTime,
			OffTime:    oc.OffTime,
			MaxBytes:   oc.MaxBytes,
		})
		if err != nil {
			return nil, err
		}
		oo.SetMetrics(metrics)
		oo.OnError(exp.collect)
		exp.OnOffs = append(exp.OnOffs, oo)
	}

	cwndRec := CreateRecorder(CwndSeries)
	cwndRec.SetLabels("Congestion window", "Time (Seconds)", "Congestion window size (cwnd)")
	txRec := CreateRecorder(TxRateSeries)
	txRec.SetLabels("Link Throughput", "Time (Seconds)", "Data Rate (Mb/s)")
	rxRec := CreateRecorder(GoodputSeries)
	rxRec.SetLabels("Goodput", "Time (Seconds)", "Data Rate (Mb/s)")
	for _, rc := range []*Recorder{cwndRec, txRec, rxRec} {
		rc.SetMetrics(metrics)
		if err := exp.Telemetry.AddRecorder(rc); err != nil {
			return nil, err
		}
	}

	exp.CwndObserver = NewCwndObserver(exp.Sched, cwndRec)
	exp.CwndObserver.Bind(exp.Stream.CongestionWindow())

	samplerCfg := SamplerConfig{Scale: cfg.Sampling.Scale}
	samplerCfg.Name = TxRateSeries
	if exp.TxSampler, err = NewDeltaSampler(exp.Sched, lnk.TxBytes(), txRec, samplerCfg); err != nil {
		return nil, err
	}
	samplerCfg.Name = GoodputSeries
	if exp.RxSampler, err = NewDeltaSampler(exp.Sched, exp.Sink.RxBytes(), rxRec, samplerCfg); err != nil {
		return nil, err
	}
	for _, ds := range []*DeltaSampler{exp.TxSampler, exp.RxSampler} {
		ds.SetMetrics(metrics)
		ds.OnError(exp.collect)
	}
	return exp, nil
}

// collect keeps a runtime error reported by a component
func (exp *Experiment) collect(err error) {
	exp.errs = append(exp.errs, err)
}

// Errors returns the runtime errors components reported during the run
func (exp *Experiment) Errors() []error {
	return exp.errs
}

// Run schedules application start and stop times, starts the samplers and
// executes the model for the configured duration
func (exp *Experiment) Run() error {
	cfg := exp.Cfg
	if err := exp.TxSampler.Start(cfg.Sampling.Interval); err != nil {
		return err
	}
	if err := exp.RxSampler.Start(cfg.Sampling.Interval); err != nil {
		return err
	}

	exp.scheduleApp(exp.Generator.Name(), cfg.Generator.Start, cfg.Generator.Stop, exp.Generator.Start, exp.Generator.Stop)
	for idx, oo := range exp.OnOffs {
		oc := cfg.OnOff[idx]
		exp.scheduleApp(oo.Name(), oc.Start, oc.Stop, oo.Start, oo.Stop)
	}

	exp.log.WithField("duration", cfg.Duration).Info("running experiment")
	exp.Sched.Run(cfg.Duration)

	exp.TxSampler.Stop()
	exp.RxSampler.Stop()
	exp.Generator.Stop()
	for _, oo := range exp.OnOffs {
		oo.Stop()
	}
	exp.log.WithFields(logrus.Fields{
		"sent":     exp.Generator.Sent(),
		"received": exp.Sink.RxBytes().Value(),
		"drops":    exp.Link.Drops(),
		"errors":   len(exp.errs),
	}).Info("experiment complete")
	return nil
}

// scheduleApp arranges for an application's start, and its stop if one is given
func (exp *Experiment) scheduleApp(name string, start, stop float64, startFn func() error, stopFn func()) {
	exp.Sched.Schedule(start, func(now float64) {
		if err := startFn(); err != nil {
			// the component has already reported transport errors through its hook
			exp.log.WithError(err).WithField("app", name).Error("application start failed")
		}
	})
	if stop > 0.0 {
		exp.Sched.Schedule(stop, func(now float64) {
			stopFn()
		})
	}
}

// WriteOutputs writes the telemetry and metrics files named by the configuration
func (exp *Experiment) WriteOutputs() error {
	out := exp.Cfg.Output
	if out.Telemetry != "" {
		if err := exp.Telemetry.WriteToFile(out.Telemetry); err != nil {
			return errors.Wrap(err, "write telemetry")
		}
		exp.log.WithField("file", out.Telemetry).Info("telemetry written")
	}
	if out.Metrics != "" && exp.Metrics != nil {
		f, err := os.Create(out.Metrics)
		if err != nil {
			return errors.Wrap(err, "write metrics")
		}
		defer f.Close()
		if err := exp.Metrics.WriteText(f); err != nil {
			return errors.Wrap(err, "write metrics")
		}
		exp.log.WithField("file", out.Metrics).Info("metrics written")
	}
	return nil
}
