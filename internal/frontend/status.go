package frontend

import (
	"sync"

	"github.com/dvbcore/tsengine/internal/dvbdevice"
	"github.com/dvbcore/tsengine/internal/tserr"
)

// Status is a point-in-time copy of the frontend status. It carries no
// lock so it can be copied freely, including across the
// worker→reactor message channel.
type Status struct {
	Bits          uint32
	Locked        bool
	SignalPct     int
	SNRPct        int
	BER           uint32
	Unc           uint32
	LastErrorKind tserr.Kind
}

// statusBox is the mutable, mutex-guarded holder the worker writes into
// and the reactor reads out of via Snapshot. Only the worker goroutine
// calls set/setError.
type statusBox struct {
	mu  sync.Mutex
	cur Status
}

func (s *statusBox) set(bits uint32, locked bool, signalPct, snrPct int, ber, unc uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = Status{
		Bits:          bits,
		Locked:        locked,
		SignalPct:     signalPct,
		SNRPct:        snrPct,
		BER:           ber,
		Unc:           unc,
		LastErrorKind: s.cur.LastErrorKind,
	}
}

func (s *statusBox) setError(kind tserr.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Locked = false
	s.cur.LastErrorKind = kind
}

// Snapshot returns a copy of the current status, safe for concurrent
// reads from the reactor goroutine.
func (s *statusBox) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

func pct(v uint16) int {
	return int(uint32(v) * 100 / 0xFFFF)
}

func locked(bits uint32) bool {
	return bits&dvbdevice.FE_HAS_LOCK != 0
}
