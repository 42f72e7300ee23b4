// Package frontend drives the DVB tuning state machine: open,
// per-delivery-system tune, DiSEqC, and the once-per-second lock
// monitor that reports LOCK/ERROR/RETUNE messages to the reactor over
// a typed channel.
package frontend

import "github.com/dvbcore/tsengine/internal/dvbdevice"

// device is the subset of *dvbdevice.Frontend this package depends on.
// Accepting an interface here, the same way a pipeline package
// accepting a Broadcaster does, lets tests drive the tune and status
// logic against a fake without a real DVB adapter.
type device interface {
	Supports2G() bool
	SetTone(tone uint32) error
	SetVoltage(voltage uint32) error
	DiseqcSendMasterCmd(cmd dvbdevice.DiseqcMasterCmd) error
	DiseqcSendBurst(burst uint32) error
	SetFrontendLegacy(p dvbdevice.FrontendParametersLegacy) error
	SetProperty(props []dvbdevice.DTVProperty) error
	DrainEvents()
	ReadStatus() (uint32, error)
	ReadSignalStrength() (uint16, error)
	ReadSNR() (uint16, error)
	ReadBER() (uint32, error)
	ReadUncorrectedBlocks() (uint32, error)
}

var _ device = (*dvbdevice.Frontend)(nil)
