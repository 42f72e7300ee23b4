package frontend

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvbcore/tsengine/internal/config"
	"github.com/dvbcore/tsengine/internal/dvbdevice"
	"github.com/dvbcore/tsengine/internal/tserr"
)

const diseqcDelay = 15 * time.Millisecond

// tune dispatches to the per-delivery-system tune routine.
func tune(dev device, t *config.Tuner) error {
	switch t.Type {
	case config.DVBS:
		return tuneS(dev, t.Satellite)
	case config.DVBS2:
		if !dev.Supports2G() {
			return tserr.NewStep(tserr.Config, "tune", fmt.Errorf("frontend does not advertise CAN_2G_MODULATION, cannot tune DVB-S2"))
		}
		return tuneS2(dev, t.Satellite)
	case config.DVBT:
		return tuneT(dev, t.Terrestrial)
	case config.DVBT2:
		return tuneT2(dev, t.Terrestrial)
	case config.DVBC:
		return tuneC(dev, t.Cable)
	default:
		return tserr.NewStep(tserr.Config, "tune", fmt.Errorf("unknown delivery system %q", t.Type))
	}
}

// satellitePreamble computes the IF frequency, runs the voltage/tone/
// DiSEqC setup common to DVB-S and DVB-S2, and returns the IF frequency
// in kHz for the caller to issue the actual tune with.
func satellitePreamble(dev device, sat config.Satellite) (ifKHz int, err error) {
	hiband := sat.LNB.SLOF > 0 && sat.LNB.LOF2 > 0 && sat.FrequencyKHz > sat.LNB.SLOF
	if hiband {
		ifKHz = sat.FrequencyKHz - sat.LNB.LOF2
	} else {
		ifKHz = abs(sat.FrequencyKHz - sat.LNB.LOF1)
	}

	var voltage, tone uint32
	if sat.LNBSharing {
		voltage = dvbdevice.SEC_VOLTAGE_OFF
		tone = dvbdevice.SEC_TONE_OFF
	} else {
		if sat.Polarization == config.PolVertical {
			voltage = dvbdevice.SEC_VOLTAGE_13
		} else {
			voltage = dvbdevice.SEC_VOLTAGE_18
		}
		if hiband {
			tone = dvbdevice.SEC_TONE_ON
		} else {
			tone = dvbdevice.SEC_TONE_OFF
		}
	}

	if sat.DiSEqC >= 1 && sat.DiSEqC <= 4 {
		if err := diseqcSequence(dev, sat.DiSEqC, hiband, voltage, tone); err != nil {
			return 0, err
		}
		return ifKHz, nil
	}

	if err := dev.SetVoltage(voltage); err != nil {
		return 0, tserr.NewStep(tserr.Ioctl, "SET_VOLTAGE", err)
	}
	if err := dev.SetTone(tone); err != nil {
		return 0, tserr.NewStep(tserr.Ioctl, "SET_TONE", err)
	}
	return ifKHz, nil
}

// diseqcSequence runs the DiSEqC 1.0 committed-switch master command
// sequence: tone off, voltage, master command, tone burst, final tone.
func diseqcSequence(dev device, port int, hiband bool, voltage, finalTone uint32) error {
	i := 4*(port-1) | boolBit(hiband, 2) | boolBit(voltage == dvbdevice.SEC_VOLTAGE_18, 1)

	if err := dev.SetTone(dvbdevice.SEC_TONE_OFF); err != nil {
		return tserr.NewStep(tserr.Ioctl, "SET_TONE", err)
	}
	if err := dev.SetVoltage(voltage); err != nil {
		return tserr.NewStep(tserr.Ioctl, "SET_VOLTAGE", err)
	}
	time.Sleep(diseqcDelay)

	cmd := dvbdevice.DiseqcMasterCmd{
		Msg:    [6]byte{0xE0, 0x10, 0x38, byte(0xF0 | i), 0x00, 0x00},
		MsgLen: 4,
	}
	if err := dev.DiseqcSendMasterCmd(cmd); err != nil {
		return tserr.NewStep(tserr.Ioctl, "DISEQC_SEND_MASTER_CMD", err)
	}
	time.Sleep(diseqcDelay)

	burst := uint32(dvbdevice.SEC_MINI_A)
	if (i/4)%2 != 0 {
		burst = dvbdevice.SEC_MINI_B
	}
	if err := dev.DiseqcSendBurst(burst); err != nil {
		return tserr.NewStep(tserr.Ioctl, "DISEQC_SEND_BURST", err)
	}
	time.Sleep(diseqcDelay)

	if err := dev.SetTone(finalTone); err != nil {
		return tserr.NewStep(tserr.Ioctl, "SET_TONE", err)
	}
	return nil
}

func tuneS(dev device, sat config.Satellite) error {
	ifKHz, err := satellitePreamble(dev, sat)
	if err != nil {
		return err
	}
	p := dvbdevice.FrontendParametersLegacy{
		FrequencyHz: uint32(ifKHz) * 1000,
		Inversion:   dvbdevice.INVERSION_AUTO,
		SymbolRate:  uint32(sat.SymbolRate) * 1000,
		FEC:         fecCode(sat.FEC),
	}
	if err := dev.SetFrontendLegacy(p); err != nil {
		return tserr.NewStep(tserr.Ioctl, "SET_FRONTEND", err)
	}
	return nil
}

func tuneS2(dev device, sat config.Satellite) error {
	ifKHz, err := satellitePreamble(dev, sat)
	if err != nil {
		return err
	}

	dev.DrainEvents()

	voltage := uint32(dvbdevice.SEC_VOLTAGE_18)
	if sat.Polarization == config.PolVertical {
		voltage = dvbdevice.SEC_VOLTAGE_13
	}
	hiband := sat.LNB.SLOF > 0 && sat.LNB.LOF2 > 0 && sat.FrequencyKHz > sat.LNB.SLOF
	tone := uint32(dvbdevice.SEC_TONE_OFF)
	if hiband {
		tone = dvbdevice.SEC_TONE_ON
	}

	props := []dvbdevice.DTVProperty{
		dvbdevice.ClearProperty(),
		dvbdevice.Property(dvbdevice.DTV_DELIVERY_SYSTEM, dvbdevice.SYS_DVBS2),
		dvbdevice.Property(dvbdevice.DTV_FREQUENCY, uint32(ifKHz)*1000),
		dvbdevice.Property(dvbdevice.DTV_SYMBOL_RATE, uint32(sat.SymbolRate)*1000),
		dvbdevice.Property(dvbdevice.DTV_INNER_FEC, fecCode(sat.FEC)),
		dvbdevice.Property(dvbdevice.DTV_INVERSION, dvbdevice.INVERSION_AUTO),
		dvbdevice.Property(dvbdevice.DTV_VOLTAGE, voltage),
		dvbdevice.Property(dvbdevice.DTV_MODULATION, dvbdevice.QPSK),
		dvbdevice.Property(dvbdevice.DTV_ROLLOFF, rolloffCode(sat.Rolloff)),
		dvbdevice.Property(dvbdevice.DTV_TONE, tone),
		dvbdevice.TuneProperty(),
	}
	if err := dev.SetProperty(props); err != nil {
		return tserr.NewStep(tserr.Ioctl, "SET_PROPERTY", err)
	}
	return nil
}

func tuneT(dev device, t config.Terrestrial) error {
	p := dvbdevice.FrontendParametersLegacy{
		FrequencyHz:   uint32(t.FrequencyKHz()) * 1000,
		Inversion:     dvbdevice.INVERSION_AUTO,
		Bandwidth:     bandwidthLegacyCode(t.Bandwidth),
		CodeRateHP:    dvbdevice.FEC_AUTO,
		CodeRateLP:    dvbdevice.FEC_AUTO,
		Modulation:    modulationCode(t.Modulation),
		TransmitMode:  transmitModeCode(t.TransmitMode),
		GuardInterval: guardIntervalCode(t.GuardInterval),
		Hierarchy:     hierarchyCode(t.Hierarchy),
	}
	if err := dev.SetFrontendLegacy(p); err != nil {
		return tserr.NewStep(tserr.Ioctl, "SET_FRONTEND", err)
	}
	return nil
}

func tuneT2(dev device, t config.Terrestrial) error {
	dev.DrainEvents()
	props := []dvbdevice.DTVProperty{
		dvbdevice.ClearProperty(),
		dvbdevice.Property(dvbdevice.DTV_FREQUENCY, uint32(t.FrequencyKHz())*1000),
		dvbdevice.Property(dvbdevice.DTV_MODULATION, modulationCode(t.Modulation)),
		dvbdevice.Property(dvbdevice.DTV_INVERSION, dvbdevice.INVERSION_AUTO),
		dvbdevice.Property(dvbdevice.DTV_BANDWIDTH_HZ, bandwidthHz(t.Bandwidth)),
		dvbdevice.Property(dvbdevice.DTV_CODE_RATE_HP, dvbdevice.FEC_AUTO),
		dvbdevice.Property(dvbdevice.DTV_CODE_RATE_LP, dvbdevice.FEC_AUTO),
		dvbdevice.Property(dvbdevice.DTV_GUARD_INTERVAL, guardIntervalCode(t.GuardInterval)),
		dvbdevice.Property(dvbdevice.DTV_TRANSMISSION_MODE, transmitModeCode(t.TransmitMode)),
		dvbdevice.Property(dvbdevice.DTV_HIERARCHY, hierarchyCode(t.Hierarchy)),
		dvbdevice.Property(dvbdevice.DTV_DELIVERY_SYSTEM, dvbdevice.SYS_DVBT2),
		dvbdevice.TuneProperty(),
	}
	if err := dev.SetProperty(props); err != nil {
		return tserr.NewStep(tserr.Ioctl, "SET_PROPERTY", err)
	}
	return nil
}

func tuneC(dev device, c config.Cable) error {
	p := dvbdevice.FrontendParametersLegacy{
		FrequencyHz: uint32(c.FrequencyMHz) * 1_000_000,
		Inversion:   dvbdevice.INVERSION_AUTO,
		SymbolRate:  uint32(c.SymbolRate) * 1000,
		FEC:         fecCode(c.FEC),
		Modulation:  modulationCode(c.Modulation),
	}
	if err := dev.SetFrontendLegacy(p); err != nil {
		return tserr.NewStep(tserr.Ioctl, "SET_FRONTEND", err)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func boolBit(b bool, shift uint) int {
	if b {
		return 1 << shift
	}
	return 0
}

func fecCode(s string) uint32 {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return dvbdevice.FEC_NONE
	case "1/2":
		return dvbdevice.FEC_1_2
	case "2/3":
		return dvbdevice.FEC_2_3
	case "3/4":
		return dvbdevice.FEC_3_4
	case "4/5":
		return dvbdevice.FEC_4_5
	case "5/6":
		return dvbdevice.FEC_5_6
	case "6/7":
		return dvbdevice.FEC_6_7
	case "7/8":
		return dvbdevice.FEC_7_8
	case "8/9":
		return dvbdevice.FEC_8_9
	case "3/5":
		return dvbdevice.FEC_3_5
	case "9/10":
		return dvbdevice.FEC_9_10
	default:
		return dvbdevice.FEC_AUTO
	}
}

func rolloffCode(r config.Rolloff) uint32 {
	switch r {
	case config.Rolloff20:
		return dvbdevice.ROLLOFF_20
	case config.Rolloff25:
		return dvbdevice.ROLLOFF_25
	case config.Rolloff35:
		return dvbdevice.ROLLOFF_35
	default:
		return dvbdevice.ROLLOFF_AUTO
	}
}

func modulationCode(s string) uint32 {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QPSK":
		return dvbdevice.QPSK
	case "QAM16":
		return dvbdevice.QAM_16
	case "QAM32":
		return dvbdevice.QAM_32
	case "QAM64":
		return dvbdevice.QAM_64
	case "QAM128":
		return dvbdevice.QAM_128
	case "QAM256":
		return dvbdevice.QAM_256
	case "VSB8":
		return dvbdevice.VSB_8
	case "VSB16":
		return dvbdevice.VSB_16
	case "8PSK":
		return dvbdevice.PSK_8
	default:
		return dvbdevice.QAM_AUTO
	}
}

func bandwidthHz(s string) uint32 {
	switch strings.TrimSpace(s) {
	case "6":
		return 6_000_000
	case "7":
		return 7_000_000
	case "8":
		return 8_000_000
	default:
		return 8_000_000
	}
}

func bandwidthLegacyCode(s string) uint32 {
	switch strings.TrimSpace(s) {
	case "6":
		return dvbdevice.BANDWIDTH_6_MHZ
	case "7":
		return dvbdevice.BANDWIDTH_7_MHZ
	case "8":
		return dvbdevice.BANDWIDTH_8_MHZ
	default:
		return dvbdevice.BANDWIDTH_AUTO
	}
}

func guardIntervalCode(s string) uint32 {
	switch strings.TrimSpace(s) {
	case "1/32":
		return dvbdevice.GUARD_INTERVAL_1_32
	case "1/16":
		return dvbdevice.GUARD_INTERVAL_1_16
	case "1/8":
		return dvbdevice.GUARD_INTERVAL_1_8
	case "1/4":
		return dvbdevice.GUARD_INTERVAL_1_4
	default:
		return dvbdevice.GUARD_INTERVAL_AUTO
	}
}

func transmitModeCode(s string) uint32 {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "2K":
		return dvbdevice.TRANSMISSION_MODE_2K
	case "4K":
		return dvbdevice.TRANSMISSION_MODE_4K
	case "8K":
		return dvbdevice.TRANSMISSION_MODE_8K
	default:
		return dvbdevice.TRANSMISSION_MODE_AUTO
	}
}

func hierarchyCode(s string) uint32 {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return dvbdevice.HIERARCHY_NONE
	case "1":
		return dvbdevice.HIERARCHY_1
	case "2":
		return dvbdevice.HIERARCHY_2
	case "4":
		return dvbdevice.HIERARCHY_4
	default:
		return dvbdevice.HIERARCHY_AUTO
	}
}
