package trafgen

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func TestParseDataRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"40Mbps", 40e6},
		{"54Mbps", 54e6},
		{"5 Mb/s", 5e6},
		{"100kbps", 1e5},
		{"1.5Gbps", 1.5e9},
		{"125KBps", 1e6},
		{"1e6", 1e6},
		{"2e3bps", 2e3},
		{"8000", 8000},
		{" 10 Mbps ", 10e6},
	}
	for _, tt := range tests {
		got, err := ParseDataRate(tt.in)
		if err != nil {
			t.Fatalf("ParseDataRate(%q): %v", tt.in, err)
		}
		if math.Abs(got-tt.want) > 1e-6 {
			t.Fatalf("ParseDataRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"", "fast", "10 furlongs", "0Mbps", "-5Mbps", "Mbps"} {
		if _, err := ParseDataRate(in); !errors.Is(err, ErrInvalidRate) {
			t.Fatalf("ParseDataRate(%q): err = %v, want ErrInvalidRate", in, err)
		}
	}
}

func TestFormatDataRate(t *testing.T) {
	for bps, want := range map[float64]string{
		40e6: "40Mbps", 1.5e9: "1.5Gbps", 2500: "2.5kbps", 300: "300bps",
	} {
		if got := FormatDataRate(bps); got != want {
			t.Fatalf("FormatDataRate(%v) = %q, want %q", bps, got, want)
		}
	}
}

func TestDefaultExpCfgIsValid(t *testing.T) {
	cfg := DefaultExpCfg()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
	if cfg.Duration != 120 || cfg.Generator.PacketSize != 512 || cfg.Generator.Start != 2.0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestExpCfgValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ExpCfg)
		want   error
	}{
		{"zero duration", func(c *ExpCfg) { c.Duration = 0 }, ErrInvalidDuration},
		{"bad rate", func(c *ExpCfg) { c.Generator.DataRate = "lots" }, ErrInvalidRate},
		{"zero packet", func(c *ExpCfg) { c.Generator.PacketSize = 0 }, ErrInvalidSize},
		{"bad link", func(c *ExpCfg) { c.Link.Bandwidth = "0bps" }, ErrInvalidRate},
		{"zero interval", func(c *ExpCfg) { c.Sampling.Interval = 0 }, ErrInvalidInterval},
		{"start after end", func(c *ExpCfg) { c.Generator.Start = 200 }, ErrInvalidParam},
		{"stop before start", func(c *ExpCfg) { c.Generator.Stop = 1.0 }, ErrInvalidParam},
		{"negative delay", func(c *ExpCfg) { c.Link.Delay = -0.5 }, ErrInvalidParam},
		{"negative scale", func(c *ExpCfg) { c.Sampling.Scale = -1 }, ErrInvalidParam},
		{"unnamed onoff", func(c *ExpCfg) {
			c.OnOff = []OnOffCfg{{Peer: "x", DataRate: "1Mbps", PacketSize: 100, OnTime: ConstPeriod(1)}}
		}, ErrInvalidParam},
		{"duplicate onoff", func(c *ExpCfg) {
			oc := OnOffCfg{Name: "a", Peer: "x", DataRate: "1Mbps", PacketSize: 100, OnTime: ConstPeriod(1)}
			c.OnOff = []OnOffCfg{oc, oc}
		}, ErrInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultExpCfg()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("invalid configuration accepted")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadExpCfgKeepsDefaults(t *testing.T) {
	dict := []byte(`
name: short
duration: 10
generator:
  datarate: 5Mbps
onoff:
  - name: burst
    peer: burst-sink
    datarate: 1Mbps
    packetsize: 1000
    ontime: {model: exp, mean: 0.5}
    offtime: {model: const, mean: 1}
`)
	cfg, err := ReadExpCfg("", true, dict)
	if err != nil {
		t.Fatalf("ReadExpCfg: %v", err)
	}
	if cfg.Name != "short" || cfg.Duration != 10 || cfg.Generator.DataRate != "5Mbps" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Generator.PacketSize != DefaultPacketSize || cfg.Link.Bandwidth != "54Mbps" || cfg.Sampling.Interval != 0.1 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if len(cfg.OnOff) != 1 || cfg.OnOff[0].OnTime.Model != "exp" || cfg.OnOff[0].OffTime.Mean != 1 {
		t.Fatalf("onoff = %+v", cfg.OnOff)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestExpCfgFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultExpCfg()
	cfg.Name = "roundtrip"
	cfg.OnOff = []OnOffCfg{{Name: "b", Peer: "bs", DataRate: "2Mbps", PacketSize: 200,
		OnTime: ConstPeriod(0.5), OffTime: PeriodDist{Model: "exp", Mean: 1}, Start: 1}}

	for _, name := range []string{"exp.yaml", "exp.json"} {
		filename := filepath.Join(dir, name)
		if err := cfg.WriteToFile(filename); err != nil {
			t.Fatalf("WriteToFile(%s): %v", name, err)
		}
		back, err := ReadExpCfg(filename, UseYAML(filename), []byte{})
		if err != nil {
			t.Fatalf("ReadExpCfg(%s): %v", name, err)
		}
		if back.Name != "roundtrip" || len(back.OnOff) != 1 || back.OnOff[0].OffTime.Model != "exp" {
			t.Fatalf("%s: read back %+v", name, back)
		}
	}
	if err := cfg.WriteToFile(filepath.Join(dir, "exp.toml")); err == nil {
		t.Fatalf("WriteToFile accepted an unknown extension")
	}
	if _, err := ReadExpCfg(filepath.Join(dir, "missing.yaml"), true, []byte{}); err == nil {
		t.Fatalf("ReadExpCfg of a missing file succeeded")
	}
}

func TestConfigureLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	if err := ConfigureLogging(LogCfg{Level: "debug", Formatter: "json"}); err != nil {
		t.Fatalf("ConfigureLogging: %v", err)
	}
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s, want debug", logrus.GetLevel())
	}
	if _, ok := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("formatter is %T, want JSONFormatter", logrus.StandardLogger().Formatter)
	}
	if err := ConfigureLogging(LogCfg{Level: "chatty"}); err == nil {
		t.Fatalf("unknown level accepted")
	}
	if err := ConfigureLogging(LogCfg{Formatter: "xml"}); err == nil {
		t.Fatalf("unknown formatter accepted")
	}
}
