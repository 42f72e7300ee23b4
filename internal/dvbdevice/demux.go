package dvbdevice

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Demux is one open /dev/dvb/adapter<A>/demux<D> filter handle. The DVB
// API hands out a fresh fd per filter; internal/demux keeps one Demux
// per joined PID (or a single full-TS-tap Demux in budget mode).
type Demux struct {
	fd int
}

// OpenDemux opens the demux device nonblocking.
func OpenDemux(adapter, device int) (*Demux, error) {
	path := fmt.Sprintf("/dev/dvb/adapter%d/demux%d", adapter, device)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Demux{fd: fd}, nil
}

func (d *Demux) Close() error { return unix.Close(d.fd) }

// SetPESFilterPID programs a raw-TS-tap PES filter for one PID, the
// shape this engine uses regardless of whether the PID actually carries
// a PES stream: DMX_PES_OTHER + DMX_OUT_TS_TAP yields untouched 188-byte
// TS packets on Read, which the psi/pes/ts packages then parse in
// userspace.
func (d *Demux) SetPESFilterPID(pid uint16, immediateStart bool) error {
	flags := uint32(0)
	if immediateStart {
		flags = DMX_IMMEDIATE_START
	}
	p := PESFilterParams{
		PID:     pid,
		Input:   DMX_IN_FRONTEND,
		Output:  DMX_OUT_TS_TAP,
		PESType: DMX_PES_OTHER,
		Flags:   flags,
	}
	return ioctl(d.fd, dmxSetPESFilter, uintptr(unsafe.Pointer(&p)))
}

// SetFullTSFilter programs the filter at the full-TS PID (0x2000 in the
// budget-mode convention exposed by most drivers), used when the
// manager is running in budget mode and wants every PID on one fd.
func (d *Demux) SetFullTSFilter() error {
	return d.SetPESFilterPID(0x2000, true)
}

// Start issues DMX_START.
func (d *Demux) Start() error { return ioctl(d.fd, dmxStart, 0) }

// Stop issues DMX_STOP.
func (d *Demux) Stop() error { return ioctl(d.fd, dmxStop, 0) }

// AddPID issues DMX_ADD_PID, adding a PID to an already-running
// full-TS-tap filter (selective-mode multi-PID join without opening a
// second fd).
func (d *Demux) AddPID(pid uint16) error {
	return ioctl(d.fd, dmxAddPID, uintptr(unsafe.Pointer(&pid)))
}

// RemovePID issues DMX_REMOVE_PID.
func (d *Demux) RemovePID(pid uint16) error {
	return ioctl(d.fd, dmxRemovePID, uintptr(unsafe.Pointer(&pid)))
}

// SetBufferSize issues DMX_SET_BUFFER_SIZE.
func (d *Demux) SetBufferSize(bytes int) error {
	return ioctl(d.fd, dmxSetBufferSize, uintptr(bytes))
}

// Fd exposes the raw descriptor, mainly for tests and diagnostics.
// Output with DMX_OUT_TS_TAP routes matched packets to the DVR device,
// not back through this fd; see DVR for the read side.
func (d *Demux) Fd() int { return d.fd }
