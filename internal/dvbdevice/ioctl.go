// Package dvbdevice wraps the Linux DVB v5 ioctl API: frontend tuning and
// status, DiSEqC, and demux PID/PES filters. It is the only package that
// touches /dev/dvb/* directly; everything above it (internal/frontend,
// internal/demux) talks to this package's Go-shaped types.
package dvbdevice

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl direction bits, matching asm-generic/ioctl.h.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocNRShift  = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func ior(typ, nr, size uintptr) uintptr  { return ioc(iocRead, typ, nr, size) }
func iow(typ, nr, size uintptr) uintptr  { return ioc(iocWrite, typ, nr, size) }
func iowr(typ, nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, typ, nr, size) }
func io(typ, nr uintptr) uintptr         { return ioc(iocNone, typ, nr, 0) }

const dvbType = uintptr('o') // all DVB ioctls use type 'o'

// Frontend ioctls (linux/dvb/frontend.h). Sizes are taken via
// unsafe.Sizeof against the structs in types.go/frontend.go so a field
// change there keeps the generated ioctl numbers correct automatically.
var (
	feGetInfo               = ior(dvbType, 61, unsafe.Sizeof(FrontendInfo{}))
	feDiseqcResetOverload   = io(dvbType, 62)
	feDiseqcSendMasterCmd   = iow(dvbType, 63, unsafe.Sizeof(DiseqcMasterCmd{}))
	feDiseqcRecvSlaveReply  = ior(dvbType, 64, unsafe.Sizeof(DiseqcSlaveReply{}))
	feDiseqcSendBurst       = io(dvbType, 65)
	feSetTone               = io(dvbType, 66)
	feSetVoltage            = io(dvbType, 67)
	feEnableHighLNBVoltage  = iow(dvbType, 68, unsafe.Sizeof(uint32(0)))
	feReadStatus            = ior(dvbType, 69, unsafe.Sizeof(uint32(0)))
	feReadBER               = ior(dvbType, 70, unsafe.Sizeof(uint32(0)))
	feReadSignalStrength    = ior(dvbType, 71, unsafe.Sizeof(uint16(0)))
	feReadSNR               = ior(dvbType, 72, unsafe.Sizeof(uint16(0)))
	feReadUncorrectedBlocks = ior(dvbType, 73, unsafe.Sizeof(uint32(0)))
	feSetFrontendLegacy     = iow(dvbType, 76, unsafe.Sizeof(FrontendParametersLegacy{}))
	feGetFrontendLegacy     = ior(dvbType, 77, unsafe.Sizeof(FrontendParametersLegacy{}))
	feGetEvent              = ior(dvbType, 78, unsafe.Sizeof(FrontendEvent{}))
	feSetFrontendTuneMode   = iow(dvbType, 81, unsafe.Sizeof(uint32(0)))
	feSetProperty           = iowr(dvbType, 82, unsafe.Sizeof(dtvPropertiesRaw{}))
	feGetProperty           = iowr(dvbType, 84, unsafe.Sizeof(dtvPropertiesRaw{}))
)

// Demux ioctls (linux/dvb/dmx.h).
var (
	dmxStart         = io(dvbType, 41)
	dmxStop          = io(dvbType, 42)
	dmxSetFilter     = iow(dvbType, 43, unsafe.Sizeof(SCTFilterParams{}))
	dmxSetPESFilter  = iow(dvbType, 44, unsafe.Sizeof(PESFilterParams{}))
	dmxSetBufferSize = io(dvbType, 45)
	dmxAddPID        = iow(dvbType, 51, unsafe.Sizeof(uint16(0)))
	dmxRemovePID     = iow(dvbType, 52, unsafe.Sizeof(uint16(0)))
)

// DVR ioctls.
var (
	dvrSetBufferSize = io(dvbType, 50)
)

func ioctl(fd int, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
