// Package demux implements a reference-counted PID filter manager with
// budget (full-band) and selective modes, join/leave
// accounting, and the stop/start "bounce" used after every retune.
package demux

import (
	"log/slog"
	"sync"

	"github.com/dvbcore/tsengine/internal/dvbdevice"
)

const (
	numPIDs  = 8192
	fullTSPID = 0x2000
)

// filter is the narrow interface an opened demux handle must satisfy,
// implemented by *dvbdevice.Demux. Handles are obtained through openFunc
// (New wraps dvbdevice.OpenDemux into one); accepting a func value there
// rather than an interface with one method lets tests supply a closure.
type filter interface {
	SetPESFilterPID(pid uint16, immediateStart bool) error
	SetFullTSFilter() error
	Start() error
	Stop() error
	Close() error
}

var _ filter = (*dvbdevice.Demux)(nil)

type openFunc func() (filter, error)

// Manager owns the PID refcount table and the open kernel filter
// handles for one tuner instance, keeping the invariant
// fd_present implies refcount >= 1.
type Manager struct {
	log    *slog.Logger
	open   openFunc
	budget bool

	mu       sync.Mutex
	refcount [numPIDs + 1]int // index numPIDs (8192) is the budget slot
	fds      [numPIDs + 1]filter
}

// New creates a Manager. openFn opens a fresh demux device fd; it is
// called once per PID in selective mode or once total in budget mode.
func New(openFn func() (*dvbdevice.Demux, error), budget bool) *Manager {
	return &Manager{
		log:    slog.With("component", "demux"),
		budget: budget,
		open: func() (filter, error) {
			return openFn()
		},
	}
}

// Join increments the reference count for pid and opens a kernel filter
// on the 0→1 transition. In budget mode every join besides the
// full-band slot (8192) is a no-op.
func (m *Manager) Join(pid uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget && pid != fullTSPID {
		return
	}

	idx := m.slot(pid)
	m.refcount[idx]++
	if m.refcount[idx] != 1 {
		return
	}

	f, err := m.open()
	if err != nil {
		m.log.Error("open demux filter failed", "pid", pid, "error", err)
		// Refcount stays incremented; a balancing Leave will decrement
		// it back to zero even though no fd was ever opened, per
		// the documented phantom-join behavior: the join still counts.
		return
	}

	if m.budget {
		err = f.SetFullTSFilter()
	} else {
		err = f.SetPESFilterPID(pid, true)
	}
	if err != nil {
		m.log.Error("configure demux filter failed", "pid", pid, "error", err)
		f.Close()
		return
	}
	m.fds[idx] = f
}

// Leave decrements the reference count and closes the filter on the
// 1→0 transition.
func (m *Manager) Leave(pid uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget && pid != fullTSPID {
		return
	}

	idx := m.slot(pid)
	if m.refcount[idx] == 0 {
		return
	}
	m.refcount[idx]--
	if m.refcount[idx] != 0 {
		return
	}
	if f := m.fds[idx]; f != nil {
		if err := f.Close(); err != nil {
			m.log.Warn("close demux filter failed", "pid", pid, "error", err)
		}
		m.fds[idx] = nil
	}
}

// ForceClose sets pid's refcount to exactly 1 so the next Leave call
// tears the filter down. This is a deliberate teardown cheat,
// expressed as a single explicit operation rather than an inline hack.
func (m *Manager) ForceClose(pid uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.slot(pid)
	if m.refcount[idx] > 0 {
		m.refcount[idx] = 1
	}
}

// ReplayPendingJoins re-issues Join for every PID that was already
// counted before the manager had a chance to open filters for them —
// a startup cheat, made explicit rather than folded
// into an initialization loop that pre-decrements counters.
func (m *Manager) ReplayPendingJoins(pids []uint16) {
	for _, pid := range pids {
		m.mu.Lock()
		idx := m.slot(pid)
		if m.refcount[idx] > 0 {
			m.refcount[idx] = 0
		}
		m.mu.Unlock()
		m.Join(pid)
	}
}

// Bounce stops then starts every open filter, resynchronizing kernel
// filter state after a retune.
func (m *Manager) Bounce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.fds {
		if f == nil {
			continue
		}
		if err := f.Stop(); err != nil {
			m.log.Warn("bounce: stop failed", "error", err)
		}
		if err := f.Start(); err != nil {
			m.log.Warn("bounce: start failed", "error", err)
		}
	}
}

// RefCount returns pid's current reference count, mainly for tests and
// diagnostics.
func (m *Manager) RefCount(pid uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refcount[m.slot(pid)]
}

func (m *Manager) slot(pid uint16) int {
	if pid == fullTSPID {
		return numPIDs
	}
	return int(pid)
}
