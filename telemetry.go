package trafgen

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// TelemetryManager gathers the recorders of one experiment so that they can be
// written out together after the run
type TelemetryManager struct {
	ExpName   string
	recorders map[string]*Recorder
	order     []string // names in the order the recorders were added
}

// SeriesDesc is the serialized form of one recorder
type SeriesDesc struct {
	Name    string   `json:"name" yaml:"name"`
	Title   string   `json:"title" yaml:"title"`
	XLabel  string   `json:"xlabel" yaml:"xlabel"`
	YLabel  string   `json:"ylabel" yaml:"ylabel"`
	Summary Summary  `json:"summary" yaml:"summary"`
	Samples []Sample `json:"samples" yaml:"samples"`
}

// TelemetryDesc is the serialized form of a TelemetryManager
type TelemetryDesc struct {
	ExpName string       `json:"expname" yaml:"expname"`
	Series  []SeriesDesc `json:"series" yaml:"series"`
}

// CreateTelemetryManager is a constructor
func CreateTelemetryManager(expName string) *TelemetryManager {
	tm := new(TelemetryManager)
	tm.ExpName = expName
	tm.recorders = make(map[string]*Recorder)
	tm.order = make([]string, 0)
	return tm
}

// AddRecorder puts rc under management.  Names must be unique
func (tm *TelemetryManager) AddRecorder(rc *Recorder) error {
	if _, present := tm.recorders[rc.Name]; present {
		return fmt.Errorf("duplicated recorder name %s", rc.Name)
	}
	tm.recorders[rc.Name] = rc
	tm.order = append(tm.order, rc.Name)
	return nil
}

// Recorder returns the recorder with the given name
func (tm *TelemetryManager) Recorder(name string) (*Recorder, bool) {
	rc, present := tm.recorders[name]
	return rc, present
}

// Names lists recorder names in the order they were added
func (tm *TelemetryManager) Names() []string {
	return slices.Clone(tm.order)
}

// Transform builds the serializable description of every managed recorder
func (tm *TelemetryManager) Transform() TelemetryDesc {
	td := TelemetryDesc{ExpName: tm.ExpName, Series: make([]SeriesDesc, 0, len(tm.order))}
	for _, name := range tm.order {
		rc := tm.recorders[name]
		td.Series = append(td.Series, SeriesDesc{
			Name:    rc.Name,
			Title:   rc.Title,
			XLabel:  rc.XLabel,
			YLabel:  rc.YLabel,
			Summary: rc.Summary(),
			Samples: rc.Snapshot(),
		})
	}
	return td
}

// WriteToFile stores the series to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TelemetryManager) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	td := tm.Transform()
	switch pathExt {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(td)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(td, "", "\t")
	default:
		return fmt.Errorf("telemetry file %s needs a .yaml, .yml or .json extension", filename)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// ReadTelemetry deserializes a telemetry file written by WriteToFile.  If dict
// is not empty it is decoded instead of reading the file
func ReadTelemetry(filename string, useYAML bool, dict []byte) (*TelemetryDesc, error) {
	var err error

	// read from the file only if the byte slice is empty
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	td := TelemetryDesc{}
	if useYAML {
		err = yaml.Unmarshal(dict, &td)
	} else {
		err = json.Unmarshal(dict, &td)
	}
	if err != nil {
		return nil, err
	}
	return &td, nil
}
