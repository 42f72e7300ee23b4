// Package pacer implements a file-based TS pacing engine: PCR-driven
// real-time replay with feedback-driven drift correction, skip-offset
// persistence, and loop-on-EOF.
package pacer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvbcore/tsengine/ts"
)

const (
	minBlockMs = 1
	maxBlockMs = 100
	persistInterval = 2 * time.Second
)

// Sink receives each emitted 188-byte TS packet.
type Sink func(packet []byte)

// Pacer replays a TS file in real time using embedded PCR timestamps.
type Pacer struct {
	log      *slog.Logger
	filename string
	lockPath string
	sink     Sink

	f      *os.File
	skip   int64
	lastPersist time.Time

	lastPCR     uint64
	havePCR     bool
	accuracy    time.Duration // feedback term, per-packet
}

// New creates a Pacer for filename. If lockPath is non-empty, the
// reader's absolute file offset is loaded from it at Open and persisted
// to it periodically while running.
func New(filename, lockPath string, sink Sink) *Pacer {
	return &Pacer{
		log:      slog.With("component", "pacer", "file", filename),
		filename: filename,
		lockPath: lockPath,
		sink:     sink,
	}
}

// Open opens the file and seeks to the persisted skip offset, if any.
func (p *Pacer) Open() error {
	return p.openFrom(p.loadSkip())
}

func (p *Pacer) loadSkip() int64 {
	if p.lockPath == "" {
		return 0
	}
	data, err := os.ReadFile(p.lockPath)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (p *Pacer) openFrom(skip int64) error {
	f, err := os.Open(p.filename)
	if err != nil {
		return err
	}
	if skip > 0 {
		if _, err := f.Seek(skip, io.SeekStart); err != nil {
			skip = 0
		}
	}
	p.f = f
	p.skip = skip
	p.havePCR = false
	p.lastPersist = time.Now()
	return nil
}

// reopenFromStart closes the current handle (if any) and reopens at
// offset 0. The engine loops a file input deliberately rather than
// terminating at end of file.
func (p *Pacer) reopenFromStart() error {
	if p.f != nil {
		p.f.Close()
	}
	p.log.Info("reached end of file, looping from start")
	return p.openFrom(0)
}

func (p *Pacer) Close() error {
	if p.f == nil {
		return nil
	}
	return p.f.Close()
}

// readPacket reads one 188-byte packet, resynchronizing to the next
// 0x47 sync byte if the stream is misaligned.
func (p *Pacer) readPacket() ([]byte, error) {
	buf := make([]byte, ts.PacketSize)
	if _, err := io.ReadFull(p.f, buf[:1]); err != nil {
		return nil, err
	}
	for buf[0] != ts.SyncByte {
		p.skip++ // count the discarded byte so skip stays the file offset
		if _, err := io.ReadFull(p.f, buf[:1]); err != nil {
			return nil, err
		}
	}
	if _, err := io.ReadFull(p.f, buf[1:]); err != nil {
		return nil, err
	}
	p.skip += int64(ts.PacketSize)
	return buf, nil
}

// Run reads and paces packets until ctx is cancelled or a non-recoverable
// error occurs.
func (p *Pacer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.runBlock(ctx); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				if err := p.reopenFromStart(); err != nil {
					return err
				}
				continue
			}
			return err
		}
		p.maybePersist()
	}
}

// runBlock emits packets up to and including the next PCR-bearing
// packet, sleeping according to the measured PCR delta.
func (p *Pacer) runBlock(ctx context.Context) error {
	var block [][]byte
	for {
		pkt, err := p.readPacket()
		if err != nil {
			return err
		}
		block = append(block, pkt)
		if ts.CheckPCR(pkt) {
			break
		}
	}

	pcr, err := ts.PCR(block[len(block)-1])
	if err != nil {
		return p.emitImmediate(block)
	}

	if !p.havePCR {
		p.lastPCR = pcr
		p.havePCR = true
		return p.emitImmediate(block)
	}

	dtTicks := pcrDelta(p.lastPCR, pcr)
	p.lastPCR = pcr
	dt := time.Duration(float64(dtTicks)/27000.0*float64(time.Millisecond))
	if dt < minBlockMs*time.Millisecond || dt > maxBlockMs*time.Millisecond {
		// Discontinuity: emit without pacing and move on.
		return p.emitImmediate(block)
	}

	return p.emitPaced(ctx, block, dt)
}

func (p *Pacer) emitImmediate(block [][]byte) error {
	for _, pkt := range block {
		p.sink(pkt)
	}
	return nil
}

func (p *Pacer) emitPaced(ctx context.Context, block [][]byte, dt time.Duration) error {
	n := len(block)
	perPacket := dt/time.Duration(n) + p.accuracy

	start := time.Now()
	for _, pkt := range block {
		p.sink(pkt)
		if perPacket > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(perPacket):
			}
		}
	}
	elapsed := time.Since(start)

	totalTarget := dt
	p.accuracy = (totalTarget - elapsed) / time.Duration(n)
	return nil
}

func (p *Pacer) maybePersist() {
	if p.lockPath == "" {
		return
	}
	if time.Since(p.lastPersist) < persistInterval {
		return
	}
	p.persist()
	p.lastPersist = time.Now()
}

func (p *Pacer) persist() {
	tmp := p.lockPath + ".tmp"
	data := []byte(strconv.FormatInt(p.skip, 10))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		p.log.Warn("persist skip offset failed", "error", err)
		return
	}
	if err := os.Rename(tmp, p.lockPath); err != nil {
		p.log.Warn("atomic rename of skip offset failed", "error", err)
	}
}

// pcrDelta computes the forward PCR difference in 27MHz ticks, handling
// the 42-bit PCR wraparound.
func pcrDelta(prev, cur uint64) uint64 {
	const pcrMax = uint64(1) << 42
	if cur >= prev {
		return cur - prev
	}
	return (pcrMax - prev) + cur
}
