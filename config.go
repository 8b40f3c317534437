package trafgen

// config.go holds the description of an experiment: how long it runs, the
// traffic it generates, the link that carries it, how it is sampled and where
// the results go.  Descriptions are read from and written to yaml or json

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// GeneratorCfg describes the rate-paced stream generator
type GeneratorCfg struct {
	Peer       string  `json:"peer" yaml:"peer"`
	DataRate   string  `json:"datarate" yaml:"datarate"`
	PacketSize int     `json:"packetsize" yaml:"packetsize"`
	Start      float64 `json:"start" yaml:"start"` // seconds
	Stop       float64 `json:"stop" yaml:"stop"`   // seconds, 0 means the end of the run
}

// OnOffCfg describes one on/off datagram generator sharing the link
type OnOffCfg struct {
	Name       string     `json:"name" yaml:"name"`
	Peer       string     `json:"peer" yaml:"peer"`
	DataRate   string     `json:"datarate" yaml:"datarate"`
	PacketSize int        `json:"packetsize" yaml:"packetsize"`
	OnTime     PeriodDist `json:"ontime" yaml:"ontime"`
	OffTime    PeriodDist `json:"offtime" yaml:"offtime"`
	MaxBytes   uint64     `json:"maxbytes" yaml:"maxbytes"`
	Start      float64    `json:"start" yaml:"start"`
	Stop       float64    `json:"stop" yaml:"stop"`
}

// LinkCfg describes the shared link
type LinkCfg struct {
	Bandwidth  string  `json:"bandwidth" yaml:"bandwidth"`
	Delay      float64 `json:"delay" yaml:"delay"` // seconds
	QueueLimit int     `json:"queuelimit" yaml:"queuelimit"`
	MSS        int     `json:"mss" yaml:"mss"`
}

// SamplingCfg describes the throughput samplers
type SamplingCfg struct {
	Interval float64 `json:"interval" yaml:"interval"` // seconds
	Scale    float64 `json:"scale" yaml:"scale"`       // bits/sec per recorded unit
}

// OutputCfg names the files written after the run.  Empty names write nothing
type OutputCfg struct {
	Telemetry string `json:"telemetry" yaml:"telemetry"`
	Metrics   string `json:"metrics" yaml:"metrics"`
}

// ExpCfg is the complete description of an experiment
type ExpCfg struct {
	Name      string       `json:"name" yaml:"name"`
	Duration  float64      `json:"duration" yaml:"duration"` // seconds
	Generator GeneratorCfg `json:"generator" yaml:"generator"`
	OnOff     []OnOffCfg   `json:"onoff" yaml:"onoff"`
	Link      LinkCfg      `json:"link" yaml:"link"`
	Sampling  SamplingCfg  `json:"sampling" yaml:"sampling"`
	Output    OutputCfg    `json:"output" yaml:"output"`
	Log       LogCfg       `json:"log" yaml:"log"`
}

// DefaultExpCfg returns an experiment of one 40Mbps stream of 512 byte units
// over a 54Mbps link, sampled every 100ms for 120 seconds
func DefaultExpCfg() *ExpCfg {
	return &ExpCfg{
		Name:     "trafgen",
		Duration: 120.0,
		Generator: GeneratorCfg{
			Peer:       "sink",
			DataRate:   "40Mbps",
			PacketSize: DefaultPacketSize,
			Start:      2.0,
		},
		OnOff: []OnOffCfg{},
		Link: LinkCfg{
			Bandwidth:  "54Mbps",
			Delay:      0.001,
			QueueLimit: DefaultQueueLimit,
			MSS:        DefaultMSS,
		},
		Sampling: SamplingCfg{
			Interval: 0.1,
			Scale:    1e6,
		},
		Output: OutputCfg{
			Telemetry: "telemetry.yaml",
		},
		Log: LogCfg{Level: "info", Formatter: "text"},
	}
}

// Validate checks every parameter, returning the first problem found
func (cfg *ExpCfg) Validate() error {
	if !(cfg.Duration > 0.0) || math.IsInf(cfg.Duration, 0) {
		return errors.Wrapf(ErrInvalidDuration, "duration %v", cfg.Duration)
	}
	if _, err := ParseDataRate(cfg.Generator.DataRate); err != nil {
		return errors.Wrap(err, "generator")
	}
	if cfg.Generator.PacketSize <= 0 {
		return errors.Wrapf(ErrInvalidSize, "generator packet size %d", cfg.Generator.PacketSize)
	}
	if err := checkWindow(cfg.Generator.Start, cfg.Generator.Stop, cfg.Duration); err != nil {
		return errors.Wrap(err, "generator")
	}
	names := make(map[string]bool)
	for idx, oc := range cfg.OnOff {
		if oc.Name == "" {
			return errors.Wrapf(ErrInvalidParam, "onoff[%d] has no name", idx)
		}
		if names[oc.Name] {
			return errors.Wrapf(ErrInvalidParam, "duplicated onoff name %s", oc.Name)
		}
		names[oc.Name] = true
		if _, err := ParseDataRate(oc.DataRate); err != nil {
			return errors.Wrapf(err, "onoff %s", oc.Name)
		}
		if oc.PacketSize <= 0 {
			return errors.Wrapf(ErrInvalidSize, "onoff %s packet size %d", oc.Name, oc.PacketSize)
		}
		if err := oc.OnTime.Validate(false); err != nil {
			return errors.Wrapf(err, "onoff %s on time", oc.Name)
		}
		if err := oc.OffTime.Validate(true); err != nil {
			return errors.Wrapf(err, "onoff %s off time", oc.Name)
		}
		if err := checkWindow(oc.Start, oc.Stop, cfg.Duration); err != nil {
			return errors.Wrapf(err, "onoff %s", oc.Name)
		}
	}
	if _, err := ParseDataRate(cfg.Link.Bandwidth); err != nil {
		return errors.Wrap(err, "link bandwidth")
	}
	if cfg.Link.Delay < 0.0 || math.IsNaN(cfg.Link.Delay) {
		return errors.Wrapf(ErrInvalidParam, "link delay %v", cfg.Link.Delay)
	}
	if cfg.Link.MSS < 0 {
		return errors.Wrapf(ErrInvalidSize, "link mss %d", cfg.Link.MSS)
	}
	if !(cfg.Sampling.Interval > 0.0) || math.IsInf(cfg.Sampling.Interval, 0) {
		return errors.Wrapf(ErrInvalidInterval, "sampling interval %v", cfg.Sampling.Interval)
	}
	if cfg.Sampling.Scale < 0.0 || math.IsNaN(cfg.Sampling.Scale) {
		return errors.Wrapf(ErrInvalidParam, "sampling scale %v", cfg.Sampling.Scale)
	}
	return nil
}

// checkWindow validates an application start/stop pair against the run duration
func checkWindow(start, stop, duration float64) error {
	if start < 0.0 || math.IsNaN(start) || start >= duration {
		return errors.Wrapf(ErrInvalidParam, "start %v outside [0, %v)", start, duration)
	}
	if stop != 0.0 && (stop <= start || math.IsNaN(stop)) {
		return errors.Wrapf(ErrInvalidParam, "stop %v not after start %v", stop, start)
	}
	return nil
}

// WriteToFile serializes the ExpCfg and writes to the file whose name is given as an input argument.
// Extension of the file name selects whether serialization is to json or to yaml format.
func (cfg *ExpCfg) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	switch pathExt {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(*cfg)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(*cfg, "", "\t")
	default:
		return fmt.Errorf("experiment file %s needs a .yaml, .yml or .json extension", filename)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// ReadExpCfg deserializes an experiment description.  Fields absent from the
// input keep the values of DefaultExpCfg.  If dict is not empty it is decoded
// instead of reading the file
func ReadExpCfg(filename string, useYAML bool, dict []byte) (*ExpCfg, error) {
	var err error

	// read from the file only if the byte slice is empty
	// validate input file name
	if len(dict) == 0 {
		fileInfo, err := os.Stat(filename)
		if os.IsNotExist(err) || (err == nil && fileInfo.IsDir()) {
			return nil, fmt.Errorf("experiment %s does not exist or cannot be read", filename)
		}
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	cfg := DefaultExpCfg()
	if useYAML {
		err = yaml.Unmarshal(dict, cfg)
	} else {
		err = json.Unmarshal(dict, cfg)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// UseYAML reports whether filename's extension names a yaml file
func UseYAML(filename string) bool {
	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		return true
	}
	return false
}
