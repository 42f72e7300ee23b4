package dvr

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dvbcore/tsengine/internal/dvbdevice"
	"github.com/dvbcore/tsengine/ts"
)

func noopOpen() (*dvbdevice.DVR, error) { return nil, nil }

type fakeDevice struct {
	chunks [][]byte
	idx    int
	closed bool
}

func (f *fakeDevice) Read(buf []byte) (int, error) {
	if f.idx >= len(f.chunks) {
		return 0, unix.EAGAIN
	}
	c := f.chunks[f.idx]
	f.idx++
	n := copy(buf, c)
	return n, nil
}
func (f *fakeDevice) SetBufferSize(bytes int) error { return nil }
func (f *fakeDevice) Close() error                  { f.closed = true; return nil }

func TestForwardsWholePacketsOnly(t *testing.T) {
	pkt := make([]byte, ts.PacketSize)
	pkt[0] = ts.SyncByte
	// Two whole packets followed by a 100-byte partial one.
	chunk := append(append(append([]byte{}, pkt...), pkt...), pkt[:100]...)
	fd := &fakeDevice{chunks: [][]byte{chunk}}

	var got [][]byte
	r := New(noopOpen, 0, func(p []byte) {
		cp := append([]byte{}, p...)
		got = append(got, cp)
	})
	r.open = func() (device, error) { return fd, nil }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = r.Run(ctx)

	if len(got) != 2 {
		t.Fatalf("forwarded %d packets, want 2", len(got))
	}
	for _, p := range got {
		if p[0] != ts.SyncByte {
			t.Fatal("forwarded packet missing sync byte")
		}
	}
}

func TestReopenBackoffAfterFirstSuccess(t *testing.T) {
	calls := 0
	// One empty read ends the first drain, forcing a reopen.
	fd := &fakeDevice{chunks: [][]byte{{}}}
	r := New(noopOpen, 0, func([]byte) {})
	r.open = func() (device, error) {
		calls++
		if calls == 1 {
			return fd, nil
		}
		return nil, errors.New("device busy")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run = %v, want nil: a failed reopen after a successful open must back off, not fail", err)
	}

	if calls != 2 {
		t.Fatalf("open calls = %d, want 2 (first open, then one failed reopen waiting on backoff)", calls)
	}
}
