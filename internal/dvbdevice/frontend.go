package dvbdevice

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Frontend is an open /dev/dvb/adapter<A>/frontend<D> handle.
type Frontend struct {
	fd   int
	Info FrontendInfo
}

// OpenFrontend opens the frontend device nonblocking and queries
// FE_GET_INFO, rejecting adapters that don't advertise a usable API.
func OpenFrontend(adapter, device int) (*Frontend, error) {
	path := fmt.Sprintf("/dev/dvb/adapter%d/frontend%d", adapter, device)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fe := &Frontend{fd: fd}
	if err := fe.getInfo(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return fe, nil
}

func (f *Frontend) Close() error {
	return unix.Close(f.fd)
}

func (f *Frontend) getInfo() error {
	return ioctl(f.fd, feGetInfo, uintptr(unsafe.Pointer(&f.Info)))
}

// Supports2G reports whether the card advertises CAN_2G_MODULATION,
// required before attempting a DVB-S2 tune.
func (f *Frontend) Supports2G() bool {
	return f.Info.Caps&FE_CAN_2G_MODULATION != 0
}

// SetTone issues FE_SET_TONE.
func (f *Frontend) SetTone(tone uint32) error {
	return ioctl(f.fd, feSetTone, uintptr(tone))
}

// SetVoltage issues FE_SET_VOLTAGE.
func (f *Frontend) SetVoltage(voltage uint32) error {
	return ioctl(f.fd, feSetVoltage, uintptr(voltage))
}

// DiseqcSendMasterCmd issues FE_DISEQC_SEND_MASTER_CMD.
func (f *Frontend) DiseqcSendMasterCmd(cmd DiseqcMasterCmd) error {
	return ioctl(f.fd, feDiseqcSendMasterCmd, uintptr(unsafe.Pointer(&cmd)))
}

// DiseqcSendBurst issues FE_DISEQC_SEND_BURST with a fe_sec_mini_cmd_t.
func (f *Frontend) DiseqcSendBurst(burst uint32) error {
	return ioctl(f.fd, feDiseqcSendBurst, uintptr(burst))
}

// SetFrontendLegacy issues the DVB v3 FE_SET_FRONTEND ioctl.
func (f *Frontend) SetFrontendLegacy(p FrontendParametersLegacy) error {
	return ioctl(f.fd, feSetFrontendLegacy, uintptr(unsafe.Pointer(&p)))
}

// GetEvent drains one queued frontend event via FE_GET_EVENT. It returns
// unix.EAGAIN when the event queue is empty, since the fd is
// nonblocking.
func (f *Frontend) GetEvent() (FrontendEvent, error) {
	var ev FrontendEvent
	err := ioctl(f.fd, feGetEvent, uintptr(unsafe.Pointer(&ev)))
	return ev, err
}

// DrainEvents repeatedly calls GetEvent until the queue is empty. This
// is the required preamble before issuing a property-based tune.
func (f *Frontend) DrainEvents() {
	for {
		if _, err := f.GetEvent(); err != nil {
			return
		}
	}
}

// SetProperty issues FE_SET_PROPERTY with the given property vector.
// By convention this engine's callers build that vector as CLEAR,
// then the delivery-system properties, then TUNE.
func (f *Frontend) SetProperty(props []DTVProperty) error {
	arr := make([]dtvPropertyRaw, len(props))
	for i, p := range props {
		arr[i] = dtvPropertyRaw{cmd: p.Cmd, data: p.Data}
	}
	req := dtvPropertiesRaw{
		num:   uint32(len(arr)),
		props: uintptr(0),
	}
	if len(arr) > 0 {
		req.props = uintptr(unsafe.Pointer(&arr[0]))
	}
	return ioctl(f.fd, feSetProperty, uintptr(unsafe.Pointer(&req)))
}

// dtvPropertyRaw and dtvPropertiesRaw mirror the kernel's exact memory
// layout (struct dtv_property / struct dtv_properties) for the ioctl
// call; DTVProperty/DTVProperties in types.go are the caller-facing shape.
type dtvPropertyRaw struct {
	cmd      uint32
	reserved [3]uint32
	data     uint32
	result   [56]byte
}

type dtvPropertiesRaw struct {
	num   uint32
	props uintptr
}

// ClearProperty and TuneProperty are convenience constructors for the two
// properties every property-based tune begins and ends with.
func ClearProperty() DTVProperty  { return DTVProperty{Cmd: DTV_CLEAR} }
func TuneProperty() DTVProperty   { return DTVProperty{Cmd: DTV_TUNE} }
func Property(cmd, data uint32) DTVProperty {
	return DTVProperty{Cmd: cmd, Data: data}
}

// ReadStatus issues FE_READ_STATUS.
func (f *Frontend) ReadStatus() (uint32, error) {
	var status uint32
	err := ioctl(f.fd, feReadStatus, uintptr(unsafe.Pointer(&status)))
	return status, err
}

// ReadSignalStrength issues FE_READ_SIGNAL_STRENGTH.
func (f *Frontend) ReadSignalStrength() (uint16, error) {
	var v uint16
	err := ioctl(f.fd, feReadSignalStrength, uintptr(unsafe.Pointer(&v)))
	return v, err
}

// ReadSNR issues FE_READ_SNR.
func (f *Frontend) ReadSNR() (uint16, error) {
	var v uint16
	err := ioctl(f.fd, feReadSNR, uintptr(unsafe.Pointer(&v)))
	return v, err
}

// ReadBER issues FE_READ_BER.
func (f *Frontend) ReadBER() (uint32, error) {
	var v uint32
	err := ioctl(f.fd, feReadBER, uintptr(unsafe.Pointer(&v)))
	return v, err
}

// ReadUncorrectedBlocks issues FE_READ_UNCORRECTED_BLOCKS.
func (f *Frontend) ReadUncorrectedBlocks() (uint32, error) {
	var v uint32
	err := ioctl(f.fd, feReadUncorrectedBlocks, uintptr(unsafe.Pointer(&v)))
	return v, err
}

// DiseqcRecvSlaveReply issues FE_DISEQC_RECV_SLAVE_REPLY, used by
// positioner/switch equipment that echoes a reply after a master
// command. Most LNB setups never populate this.
func (f *Frontend) DiseqcRecvSlaveReply() (DiseqcSlaveReply, error) {
	var reply DiseqcSlaveReply
	err := ioctl(f.fd, feDiseqcRecvSlaveReply, uintptr(unsafe.Pointer(&reply)))
	return reply, err
}
