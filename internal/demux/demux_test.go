package demux

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dvbcore/tsengine/internal/dvbdevice"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFilter struct {
	pid         uint16
	started     bool
	closed      bool
	startCalls  int
	stopCalls   int
	failConfigure bool
}

func (f *fakeFilter) SetPESFilterPID(pid uint16, immediateStart bool) error {
	if f.failConfigure {
		return errors.New("configure failed")
	}
	f.pid = pid
	f.started = immediateStart
	return nil
}
func (f *fakeFilter) SetFullTSFilter() error { f.pid = fullTSPID; f.started = true; return nil }
func (f *fakeFilter) Start() error           { f.startCalls++; return nil }
func (f *fakeFilter) Stop() error            { f.stopCalls++; return nil }
func (f *fakeFilter) Close() error           { f.closed = true; return nil }

func newTestManager(budget bool) (*Manager, *[]*fakeFilter) {
	opened := new([]*fakeFilter)
	m := &Manager{
		budget: budget,
		log:    testLogger(),
		open: func() (filter, error) {
			f := &fakeFilter{}
			*opened = append(*opened, f)
			return f, nil
		},
	}
	return m, opened
}

func TestJoinLeaveBalance(t *testing.T) {
	m, opened := newTestManager(false)
	m.Join(200)
	m.Join(200)
	if got := m.RefCount(200); got != 2 {
		t.Fatalf("refcount = %d, want 2", got)
	}
	m.Leave(200)
	if got := m.RefCount(200); got != 1 {
		t.Fatalf("refcount = %d, want 1", got)
	}
	if len(*opened) != 1 || (*opened)[0].closed {
		t.Fatal("filter closed too early")
	}
	m.Leave(200)
	if got := m.RefCount(200); got != 0 {
		t.Fatalf("refcount = %d, want 0", got)
	}
	if !(*opened)[0].closed {
		t.Fatal("filter was not closed on final leave")
	}
}

func TestBudgetModeIgnoresOtherPIDs(t *testing.T) {
	m, opened := newTestManager(true)
	m.Join(100)
	if len(*opened) != 0 {
		t.Fatal("budget mode opened a filter for a non-budget pid")
	}
	m.Join(fullTSPID)
	if len(*opened) != 1 {
		t.Fatalf("expected 1 filter opened, got %d", len(*opened))
	}
	if !(*opened)[0].started {
		t.Fatal("full TS filter was not started")
	}
}

func TestOpenFailureLeavesRefcountIncremented(t *testing.T) {
	m := &Manager{
		log: testLogger(),
		open: func() (filter, error) {
			return nil, errors.New("open failed")
		},
	}
	m.Join(50)
	if got := m.RefCount(50); got != 1 {
		t.Fatalf("refcount = %d, want 1 even though open failed", got)
	}
	m.Leave(50)
	if got := m.RefCount(50); got != 0 {
		t.Fatalf("refcount = %d, want 0 after balancing leave", got)
	}
}

func TestBounceStopsThenStartsOpenFilters(t *testing.T) {
	m, opened := newTestManager(false)
	m.Join(300)
	m.Bounce()
	if (*opened)[0].stopCalls != 1 || (*opened)[0].startCalls != 1 {
		t.Fatalf("expected one stop and one start, got stop=%d start=%d", (*opened)[0].stopCalls, (*opened)[0].startCalls)
	}
}

func TestForceCloseThenLeaveTearsDown(t *testing.T) {
	m, opened := newTestManager(false)
	m.Join(400)
	m.Join(400)
	m.Join(400)
	m.ForceClose(400)
	m.Leave(400)
	if got := m.RefCount(400); got != 0 {
		t.Fatalf("refcount = %d, want 0", got)
	}
	if !(*opened)[0].closed {
		t.Fatal("filter was not closed after ForceClose+Leave")
	}
}

var _ *dvbdevice.Demux // keeps the dvbdevice import meaningful for the interface check in demux.go
