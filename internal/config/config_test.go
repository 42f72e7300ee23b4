package config

import (
	"errors"
	"testing"

	"github.com/dvbcore/tsengine/internal/tserr"
)

func TestParseSatelliteTP(t *testing.T) {
	doc, err := Parse([]byte(`
tuner:
  type: S2
  adapter: 0
  device: 0
  satellite:
    diseqc: 1
    lnb: "9750:10600:11700"
  tp: "11727000:H:27500"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Tuner.Satellite.FrequencyKHz != 11727000 {
		t.Fatalf("frequency = %d, want 11727000", doc.Tuner.Satellite.FrequencyKHz)
	}
	if doc.Tuner.Satellite.Polarization != PolHorizontal {
		t.Fatalf("polarization = %v, want H", doc.Tuner.Satellite.Polarization)
	}
	if doc.Tuner.Satellite.SymbolRate != 27500 {
		t.Fatalf("symbolrate = %d, want 27500", doc.Tuner.Satellite.SymbolRate)
	}
	if doc.Tuner.Satellite.LNB != (LNB{LOF1: 9750, LOF2: 10600, SLOF: 11700}) {
		t.Fatalf("lnb = %+v", doc.Tuner.Satellite.LNB)
	}
}

func TestParseUnknownDeliverySystemIsConfigError(t *testing.T) {
	_, err := Parse([]byte(`
tuner:
  type: Q
  adapter: 0
  device: 0
`))
	if err == nil {
		t.Fatal("expected an error for an unknown delivery system")
	}
	var terr *tserr.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected a *tserr.Error, got %T", err)
	}
	if terr.Kind != tserr.Config {
		t.Fatalf("Kind = %v, want Config", terr.Kind)
	}
}

func TestParseFileConfig(t *testing.T) {
	doc, err := Parse([]byte(`
file:
  filename: "/var/media/test.ts"
  lock: "/var/run/test.skip"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.File.Filename != "/var/media/test.ts" {
		t.Fatalf("filename = %q", doc.File.Filename)
	}
}

func TestParseRejectsBothTunerAndFile(t *testing.T) {
	_, err := Parse([]byte(`
tuner:
  type: T
file:
  filename: "/x.ts"
`))
	if err == nil {
		t.Fatal("expected mutual-exclusion error")
	}
}

func TestTerrestrialFrequencyConversion(t *testing.T) {
	doc, err := Parse([]byte(`
tuner:
  type: T
  terrestrial:
    frequency: 506
    bandwidth: "8"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := doc.Tuner.Terrestrial.FrequencyKHz(); got != 506000 {
		t.Fatalf("FrequencyKHz() = %d, want 506000", got)
	}
}

func TestDiseqcPortOutOfRange(t *testing.T) {
	_, err := Parse([]byte(`
tuner:
  type: S
  satellite:
    diseqc: 5
`))
	if err == nil {
		t.Fatal("expected diseqc range error")
	}
}
