// Package config parses the YAML configuration document for one input
// (a DVB tuner or a TS file) into its typed, validated fields.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dvbcore/tsengine/internal/tserr"
)

// DeliverySystem discriminates the tune descriptor variants.
type DeliverySystem string

const (
	DVBS  DeliverySystem = "S"
	DVBS2 DeliverySystem = "S2"
	DVBT  DeliverySystem = "T"
	DVBT2 DeliverySystem = "T2"
	DVBC  DeliverySystem = "C"
)

// Polarization is the LNB polarization for satellite tuning.
type Polarization string

const (
	PolHorizontal Polarization = "H"
	PolVertical   Polarization = "V"
)

// Rolloff is the DVB-S2 roll-off factor.
type Rolloff string

const (
	RolloffAuto Rolloff = "AUTO"
	Rolloff20   Rolloff = "20"
	Rolloff25   Rolloff = "25"
	Rolloff35   Rolloff = "35"
)

// LNB carries the local oscillator frequencies (kHz) used to compute the
// IF frequency handed to the tuner.
type LNB struct {
	LOF1 int `yaml:"lof1"`
	LOF2 int `yaml:"lof2"`
	SLOF int `yaml:"slof"`
}

// UnmarshalYAML accepts either a mapping {lof1,lof2,slof} or the
// colon-delimited shorthand "lof1:lof2:slof".
func (l *LNB) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parts := strings.Split(value.Value, ":")
		if len(parts) != 3 {
			return fmt.Errorf("config: lnb shorthand must be \"lof1:lof2:slof\", got %q", value.Value)
		}
		var err error
		if l.LOF1, err = strconv.Atoi(parts[0]); err != nil {
			return fmt.Errorf("config: lnb lof1: %w", err)
		}
		if l.LOF2, err = strconv.Atoi(parts[1]); err != nil {
			return fmt.Errorf("config: lnb lof2: %w", err)
		}
		if l.SLOF, err = strconv.Atoi(parts[2]); err != nil {
			return fmt.Errorf("config: lnb slof: %w", err)
		}
		return nil
	}
	type plain LNB
	return value.Decode((*plain)(l))
}

// Satellite carries DVB-S/S2 tuning parameters.
type Satellite struct {
	FrequencyKHz int          `yaml:"frequency"`
	Polarization Polarization `yaml:"polarization"`
	SymbolRate   int          `yaml:"symbolrate"` // ksym/s
	FEC          string       `yaml:"fec"`
	Rolloff      Rolloff      `yaml:"rolloff"`
	LNB          LNB          `yaml:"lnb"`
	LNBSharing   bool         `yaml:"lnb_sharing"`
	DiSEqC       int          `yaml:"diseqc"` // 0 = none, 1..4 = port
}

// parseTP parses the "freq:pol:symrate" shorthand into a Satellite's
// frequency, polarization and symbol rate fields.
func parseTP(s string) (freqKHz int, pol Polarization, symrate int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, "", 0, fmt.Errorf("config: tp shorthand must be \"freq:pol:symrate\", got %q", s)
	}
	if freqKHz, err = strconv.Atoi(parts[0]); err != nil {
		return 0, "", 0, fmt.Errorf("config: tp freq: %w", err)
	}
	switch strings.ToUpper(parts[1]) {
	case "H", "L":
		pol = PolHorizontal
	case "V", "R":
		pol = PolVertical
	default:
		return 0, "", 0, fmt.Errorf("config: tp polarization %q not in {H,L,V,R}", parts[1])
	}
	if symrate, err = strconv.Atoi(parts[2]); err != nil {
		return 0, "", 0, fmt.Errorf("config: tp symrate: %w", err)
	}
	return freqKHz, pol, symrate, nil
}

// Terrestrial carries DVB-T/T2 tuning parameters. Frequency is specified
// in MHz in config but converted to kHz internally.
type Terrestrial struct {
	FrequencyMHz    int    `yaml:"frequency"`
	Bandwidth       string `yaml:"bandwidth"` // "6","7","8","auto"
	Modulation      string `yaml:"modulation"`
	GuardInterval   string `yaml:"guardinterval"`
	TransmitMode    string `yaml:"transmitmode"`
	Hierarchy       string `yaml:"hierarchy"`
}

// FrequencyKHz returns the terrestrial frequency converted to kHz.
func (t Terrestrial) FrequencyKHz() int { return t.FrequencyMHz * 1000 }

// Cable carries DVB-C tuning parameters.
type Cable struct {
	FrequencyMHz int    `yaml:"frequency"`
	SymbolRate   int    `yaml:"symbolrate"`
	FEC          string `yaml:"fec"`
	Modulation   string `yaml:"modulation"`
}

// Tuner is one DVB adapter input's full configuration.
type Tuner struct {
	Type       DeliverySystem `yaml:"type"`
	Adapter    int            `yaml:"adapter"`
	Device     int            `yaml:"device"`
	Budget     bool           `yaml:"budget"`
	BufferSize int            `yaml:"buffer_size"` // 4KiB units, 0 = driver default

	Satellite   Satellite   `yaml:"satellite"`
	Terrestrial Terrestrial `yaml:"terrestrial"`
	Cable       Cable       `yaml:"cable"`

	// TP is the optional "freq:pol:symrate" shorthand; when set it
	// overrides Satellite.FrequencyKHz/Polarization/SymbolRate after
	// parsing.
	TP string `yaml:"tp"`
}

// File is a file-based TS input's configuration.
type File struct {
	Filename string `yaml:"filename"`
	Lock     string `yaml:"lock"` // optional skip-persistence path
}

// Document is the top-level config file shape: exactly one of Tuner or
// File must be populated.
type Document struct {
	Tuner *Tuner `yaml:"tuner"`
	File  *File  `yaml:"file"`
}

// Parse unmarshals a YAML config document and validates it, returning a
// tserr.Config error on any malformed or unknown enum value so the
// caller can terminate the process immediately.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, tserr.New(tserr.Config, err)
	}
	if err := doc.validate(); err != nil {
		return nil, tserr.New(tserr.Config, err)
	}
	return &doc, nil
}

func (d *Document) validate() error {
	if d.Tuner == nil && d.File == nil {
		return fmt.Errorf("config: exactly one of tuner or file must be set")
	}
	if d.Tuner != nil && d.File != nil {
		return fmt.Errorf("config: tuner and file are mutually exclusive")
	}
	if d.Tuner != nil {
		return d.Tuner.validate()
	}
	return d.File.validate()
}

func (t *Tuner) validate() error {
	switch t.Type {
	case DVBS, DVBS2, DVBT, DVBT2, DVBC:
	default:
		return fmt.Errorf("config: unknown delivery system %q", t.Type)
	}
	if t.TP != "" {
		freq, pol, sym, err := parseTP(t.TP)
		if err != nil {
			return err
		}
		t.Satellite.FrequencyKHz = freq
		t.Satellite.Polarization = pol
		t.Satellite.SymbolRate = sym
	}
	if t.Satellite.DiSEqC < 0 || t.Satellite.DiSEqC > 4 {
		return fmt.Errorf("config: diseqc port %d out of range 0..4", t.Satellite.DiSEqC)
	}
	switch t.Satellite.Rolloff {
	case "", RolloffAuto, Rolloff20, Rolloff25, Rolloff35:
	default:
		return fmt.Errorf("config: unknown rolloff %q", t.Satellite.Rolloff)
	}
	return nil
}

func (f *File) validate() error {
	if f.Filename == "" {
		return fmt.Errorf("config: file.filename is required")
	}
	return nil
}
