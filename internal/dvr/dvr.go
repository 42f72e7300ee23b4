// Package dvr implements the ring-buffer reader that drains
// the kernel DVR device, forwards 188-byte packets to a sink, reopens
// on error with backoff, and logs bitrate transitions.
package dvr

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dvbcore/tsengine/internal/dvbdevice"
	"github.com/dvbcore/tsengine/internal/tserr"
	"github.com/dvbcore/tsengine/ts"
)

const (
	reopenBackoff  = 5 * time.Second
	bitrateWindow  = 2 * time.Second
	readBufPackets = 1022
)

// Sink receives each 188-byte TS packet read off the device, in the
// same shape the psi/pes/ts packages consume.
type Sink func(packet []byte)

// device is the subset of *dvbdevice.DVR this package depends on.
type device interface {
	Read(buf []byte) (int, error)
	SetBufferSize(bytes int) error
	Close() error
}

var _ device = (*dvbdevice.DVR)(nil)

// Reader drains one DVR device in a loop.
type Reader struct {
	log        *slog.Logger
	open       func() (device, error)
	bufferSize int
	sink       Sink

	buf        []byte
	everOpened bool

	windowBytes int64
	windowStart time.Time
	wasFlowing  bool
}

// New creates a Reader. openFn opens a fresh DVR device handle.
func New(openFn func() (*dvbdevice.DVR, error), bufferSize4KiB int, sink Sink) *Reader {
	return &Reader{
		log:        slog.With("component", "dvr"),
		bufferSize: bufferSize4KiB,
		sink:       sink,
		buf:        make([]byte, readBufPackets*ts.PacketSize),
		windowStart: time.Time{},
		open: func() (device, error) {
			return openFn()
		},
	}
}

// Run blocks, reading and reopening until ctx is cancelled.
func (r *Reader) Run(ctx context.Context) error {
	r.windowStart = time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		dev, err := r.openOnce(ctx)
		if err != nil {
			return err
		}
		if dev == nil {
			return nil
		}
		r.drain(ctx, dev)
		dev.Close()
	}
}

// openOnce opens the device. The first-ever open failure is returned
// immediately; every later failure retries with backoff instead.
func (r *Reader) openOnce(ctx context.Context) (device, error) {
	for {
		dev, err := r.open()
		if err == nil {
			if r.bufferSize > 0 {
				if err := dev.SetBufferSize(r.bufferSize * 4096); err != nil {
					r.log.Warn("set dvr buffer size failed", "error", err)
				}
			}
			r.everOpened = true
			return dev, nil
		}
		if !r.everOpened {
			return nil, tserr.New(tserr.DeviceOpen, err)
		}
		r.log.Warn("dvr reopen failed, backing off", "error", err, "backoff", reopenBackoff)
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(reopenBackoff):
		}
	}
}

// drain reads and forwards packets from dev until it errors or EOFs.
func (r *Reader) drain(ctx context.Context, dev device) {
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := dev.Read(r.buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				r.tickBitrate()
				time.Sleep(10 * time.Millisecond)
				continue
			}
			r.log.Warn("dvr read failed, reopening", "error", err)
			return
		}
		if n == 0 {
			return
		}
		r.forward(r.buf[:n])
		r.tickBitrate()
	}
}

func (r *Reader) forward(chunk []byte) {
	for off := 0; off+ts.PacketSize <= len(chunk); off += ts.PacketSize {
		r.sink(chunk[off : off+ts.PacketSize])
		r.windowBytes += ts.PacketSize
	}
}

// tickBitrate computes bytes*8/1024/seconds every bitrateWindow and
// logs 0→nonzero / nonzero→0 transitions.
func (r *Reader) tickBitrate() {
	elapsed := time.Since(r.windowStart)
	if elapsed < bitrateWindow {
		return
	}
	kbps := float64(r.windowBytes*8) / 1024 / elapsed.Seconds()
	flowing := r.windowBytes > 0
	if flowing != r.wasFlowing {
		if flowing {
			r.log.Info("dvr stream flowing", "kbps", kbps)
		} else {
			r.log.Warn("dvr stream stalled")
		}
		r.wasFlowing = flowing
	}
	r.windowBytes = 0
	r.windowStart = time.Now()
}
