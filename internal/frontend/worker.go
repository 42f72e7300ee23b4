package frontend

import (
	"context"
	"log/slog"
	"time"

	"github.com/dvbcore/tsengine/internal/config"
	"github.com/dvbcore/tsengine/internal/dvbdevice"
	"github.com/dvbcore/tsengine/internal/tserr"
)

const (
	statusInterval = 1 * time.Second
	retuneInterval = 4 * statusInterval // poll less often while unlocked
)

// Worker owns the frontend fd and drives the tune/status loop on its
// own goroutine. It never touches demux state;
// it only ever writes to its own status box and enqueues Messages.
type Worker struct {
	log    *slog.Logger
	dev    device
	tuner  *config.Tuner
	status statusBox
	out    chan<- Message

	wasLocked bool
}

// NewWorker wires a Worker around an already-opened frontend device.
// The caller owns dev's lifetime (open/close).
func NewWorker(dev *dvbdevice.Frontend, tuner *config.Tuner, out chan<- Message) *Worker {
	return &Worker{
		log:   slog.With("component", "frontend", "adapter", tuner.Adapter, "device", tuner.Device),
		dev:   dev,
		tuner: tuner,
		out:   out,
	}
}

// Status returns a snapshot of the worker's current status, safe to
// call from the reactor goroutine.
func (w *Worker) Status() Status { return w.status.Snapshot() }

// Run blocks, tuning and then looping the once-per-second lock monitor
// until ctx is cancelled, checked at each status loop turn.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.tuneAndReport(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(statusInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		next := statusInterval
		if !w.statusTick(ctx) {
			if ctx.Err() != nil {
				return nil
			}
			next = retuneInterval
		}
		timer.Reset(next)
	}
}

// tuneAndReport issues the initial tune, reporting an Error message
// (without terminating the worker) on failure so the caller's status
// RPC reflects it. It always returns nil; a failed tune is retried by
// the status loop once it reads an unlocked status.
func (w *Worker) tuneAndReport(ctx context.Context) error {
	if err := tune(w.dev, w.tuner); err != nil {
		w.reportError("TUNE", err)
	}
	return nil
}

// statusTick performs one FE_READ_STATUS cycle and returns true iff the
// frontend is locked.
func (w *Worker) statusTick(ctx context.Context) bool {
	bits, err := w.dev.ReadStatus()
	if err != nil {
		w.reportError("READ_STATUS", err)
		return false
	}
	signal, err := w.dev.ReadSignalStrength()
	if err != nil {
		w.reportError("READ_SIGNAL_STRENGTH", err)
		return false
	}
	snr, err := w.dev.ReadSNR()
	if err != nil {
		w.reportError("READ_SNR", err)
		return false
	}
	ber, err := w.dev.ReadBER()
	if err != nil {
		w.reportError("READ_BER", err)
		return false
	}
	unc, err := w.dev.ReadUncorrectedBlocks()
	if err != nil {
		w.reportError("READ_UNCORRECTED_BLOCKS", err)
		return false
	}

	isLocked := locked(bits)
	w.status.set(bits, isLocked, pct(signal), pct(snr), ber, unc)

	if isLocked {
		if !w.wasLocked {
			w.log.Info("frontend locked", "signal_pct", pct(signal), "snr_pct", pct(snr))
			w.out <- Message{Kind: Lock, Status: w.status.Snapshot()}
		}
		w.wasLocked = true
		return true
	}

	w.log.Warn("frontend not locked, retuning",
		"has_signal", bits&dvbdevice.FE_HAS_SIGNAL != 0,
		"has_carrier", bits&dvbdevice.FE_HAS_CARRIER != 0,
		"has_viterbi", bits&dvbdevice.FE_HAS_VITERBI != 0,
		"has_sync", bits&dvbdevice.FE_HAS_SYNC != 0,
		"has_lock", bits&dvbdevice.FE_HAS_LOCK != 0,
	)
	if err := tune(w.dev, w.tuner); err != nil {
		w.reportError("TUNE", err)
	}
	w.wasLocked = false
	w.out <- Message{Kind: Retune, Status: w.status.Snapshot()}
	return false
}

func (w *Worker) reportError(step string, err error) {
	kind := tserr.Ioctl
	var terr *tserr.Error
	if e, ok := err.(*tserr.Error); ok {
		terr = e
		kind = terr.Kind
		if terr.Step != "" {
			step = terr.Step // name the failing ioctl, not the wrapper
		}
	}
	w.status.setError(kind)
	w.wasLocked = false
	w.log.Error("frontend operation failed", "step", step, "error", err)
	w.out <- Message{Kind: Error, Step: step, Err: err, ErrKind: kind, Status: w.status.Snapshot()}
}
