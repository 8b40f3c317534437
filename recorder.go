package trafgen

// recorder.go holds the time-series recorder that observation callbacks
// and samplers append to, and from which a plotter later reads

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sample is one (time, value) observation.  Time is in simulation seconds,
// the unit of Value depends on what is being recorded
type Sample struct {
	Time  float64 `json:"time" yaml:"time"`
	Value float64 `json:"value" yaml:"value"`
}

// Recorder is an append-only, time-ordered series of samples
type Recorder struct {
	Name string

	// labels handed to whatever renders the series
	Title  string
	XLabel string
	YLabel string

	samples  []Sample
	rejected int

	metrics *Metrics
	log     *logrus.Entry
}

// CreateRecorder is a constructor
func CreateRecorder(name string) *Recorder {
	rc := new(Recorder)
	rc.Name = name
	rc.Title = name
	rc.XLabel = "Time (Seconds)"
	rc.samples = make([]Sample, 0)
	rc.log = componentLogger("recorder", name)
	return rc
}

// SetLabels sets the title and axis legends of the series
func (rc *Recorder) SetLabels(title, xLabel, yLabel string) {
	rc.Title = title
	rc.XLabel = xLabel
	rc.YLabel = yLabel
}

func (rc *Recorder) SetMetrics(m *Metrics) {
	rc.metrics = m
}

func (rc *Recorder) SetLogger(l *logrus.Entry) {
	rc.log = l
}

// Add appends (t, value).  A timestamp earlier than the last one held, or
// one that is negative or NaN, is rejected with ErrNonMonotonicSample and
// the series is left unchanged
func (rc *Recorder) Add(t, value float64) error {
	bad := t < 0.0 || math.IsNaN(t)
	if !bad && len(rc.samples) > 0 && t < rc.samples[len(rc.samples)-1].Time {
		bad = true
	}
	if bad {
		rc.rejected += 1
		rc.metrics.sampleRejected(rc.Name)
		err := errors.Wrapf(ErrNonMonotonicSample, "recorder %s at t=%v", rc.Name, t)
		rc.log.WithError(err).Warn("sample rejected")
		return err
	}
	rc.samples = append(rc.samples, Sample{Time: t, Value: value})
	rc.metrics.sampleRecorded(rc.Name)
	rc.log.Debugf("%v\t%v", t, value)
	return nil
}

// Snapshot returns a copy of the samples in insertion order
func (rc *Recorder) Snapshot() []Sample {
	return slices.Clone(rc.samples)
}

// Len is the number of samples held
func (rc *Recorder) Len() int {
	return len(rc.samples)
}

// Last returns the most recent sample, if there is one
func (rc *Recorder) Last() (Sample, bool) {
	if len(rc.samples) == 0 {
		return Sample{}, false
	}
	return rc.samples[len(rc.samples)-1], true
}

// Rejected is the number of samples Add refused
func (rc *Recorder) Rejected() int {
	return rc.rejected
}

// Summary describes the distribution of a recorder's values
type Summary struct {
	Count  int     `json:"count" yaml:"count"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
}

// Summary computes count, extremes, mean and standard deviation of the values
func (rc *Recorder) Summary() Summary {
	n := len(rc.samples)
	if n == 0 {
		return Summary{}
	}
	values := make([]float64, n)
	for idx, s := range rc.samples {
		values[idx] = s.Value
	}
	sm := Summary{
		Count: n,
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Mean:  stat.Mean(values, nil),
	}
	// the unbiased estimator is undefined for a single value
	if n > 1 {
		sm.StdDev = stat.StdDev(values, nil)
	}
	return sm
}
