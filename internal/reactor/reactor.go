// Package reactor implements the single-threaded event loop that owns
// the demux manager and the tuner state machine, consuming
// LOCK/ERROR/RETUNE messages from the frontend worker and bouncing
// demux filters at the right edges.
package reactor

import (
	"context"
	"log/slog"

	"github.com/dvbcore/tsengine/internal/demux"
	"github.com/dvbcore/tsengine/internal/dvbdevice"
	"github.com/dvbcore/tsengine/internal/frontend"
	"github.com/dvbcore/tsengine/internal/metrics"
)

// State is one of the tuner state machine's states.
type State int

const (
	Tuning State = iota
	Locked
	RetunePending
	Error
)

func (s State) String() string {
	switch s {
	case Tuning:
		return "tuning"
	case Locked:
		return "locked"
	case RetunePending:
		return "retune_pending"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Reactor drives one tuner input's state machine and demux manager.
type Reactor struct {
	log     *slog.Logger
	demux   *demux.Manager
	metrics *metrics.Registry
	label   string

	state State

	// retunePending tracks whether a RETUNE was observed since the last
	// time we were Locked, so the LOCK handler knows whether to bounce.
	retunePending bool
}

// New creates a Reactor around an already-constructed demux Manager.
// metricsReg may be nil if metrics are not wired for this input.
func New(label string, mgr *demux.Manager, metricsReg *metrics.Registry) *Reactor {
	return &Reactor{
		log:     slog.With("component", "reactor", "input", label),
		demux:   mgr,
		metrics: metricsReg,
		label:   label,
		state:   Tuning,
	}
}

// State returns the reactor's current tuner state.
func (r *Reactor) State() State { return r.state }

// Run drains messages from in until ctx is cancelled or the channel is
// closed. This is the reactor's only goroutine; it never blocks on
// anything but the channel receive.
func (r *Reactor) Run(ctx context.Context, in <-chan frontend.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			r.handle(msg)
		}
	}
}

func (r *Reactor) handle(msg frontend.Message) {
	switch msg.Kind {
	case frontend.Lock:
		r.handleLock(msg)
	case frontend.Error:
		r.handleError(msg)
	case frontend.Retune:
		r.handleRetune(msg)
	}
	r.observe(msg.Status)
}

func (r *Reactor) handleLock(msg frontend.Message) {
	wasLocked := r.state == Locked
	r.log.Info("lock", "signal_pct", msg.Status.SignalPct, "snr_pct", msg.Status.SNRPct)
	if !wasLocked && r.retunePending {
		r.demux.Bounce()
	}
	r.retunePending = false
	r.state = Locked
}

func (r *Reactor) handleError(msg frontend.Message) {
	r.log.Error("frontend error", "step", msg.Step, "error", msg.Err)
	r.state = Error
}

func (r *Reactor) handleRetune(msg frontend.Message) {
	r.log.Warn("retune",
		"has_signal", msg.Status.Bits&dvbdevice.FE_HAS_SIGNAL != 0,
		"has_carrier", msg.Status.Bits&dvbdevice.FE_HAS_CARRIER != 0,
		"has_viterbi", msg.Status.Bits&dvbdevice.FE_HAS_VITERBI != 0,
		"has_sync", msg.Status.Bits&dvbdevice.FE_HAS_SYNC != 0,
		"has_lock", msg.Status.Bits&dvbdevice.FE_HAS_LOCK != 0,
	)
	if r.state == Locked {
		r.retunePending = true
		r.state = RetunePending
	}
}

func (r *Reactor) observe(s frontend.Status) {
	if r.metrics == nil {
		return
	}
	locked := 0.0
	if s.Locked {
		locked = 1.0
	}
	r.metrics.Lock.WithLabelValues(r.label).Set(locked)
	r.metrics.SignalPct.WithLabelValues(r.label).Set(float64(s.SignalPct))
	r.metrics.SNRPct.WithLabelValues(r.label).Set(float64(s.SNRPct))
	r.metrics.BER.WithLabelValues(r.label).Set(float64(s.BER))
	r.metrics.Unc.WithLabelValues(r.label).Set(float64(s.Unc))
}
