package dvbdevice

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DVR is the aggregated-TS read side of a tuner: every PID joined via a
// Demux filter with DMX_OUT_TS_TAP output shows up here as a stream of
// 188-byte packets.
type DVR struct {
	fd int
}

// OpenDVR opens the DVR device nonblocking; callers poll/retry on
// EAGAIN rather than blocking the reactor goroutine.
func OpenDVR(adapter, device int) (*DVR, error) {
	path := fmt.Sprintf("/dev/dvb/adapter%d/dvr%d", adapter, device)
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DVR{fd: fd}, nil
}

func (r *DVR) Close() error { return unix.Close(r.fd) }

// SetBufferSize issues DVR_SET_BUFFER_SIZE, sized by the tuner's
// buffer_size config field.
func (r *DVR) SetBufferSize(bytes int) error {
	return ioctl(r.fd, dvrSetBufferSize, uintptr(bytes))
}

// Read fills buf directly from the kernel ring buffer. Callers should
// size buf as a whole multiple of 188 bytes and handle unix.EAGAIN by
// backing off, not treating it as a device error.
func (r *DVR) Read(buf []byte) (int, error) {
	return unix.Read(r.fd, buf)
}

// Fd exposes the raw descriptor for poll-based readers.
func (r *DVR) Fd() int { return r.fd }
