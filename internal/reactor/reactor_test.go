package reactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvbcore/tsengine/internal/demux"
	"github.com/dvbcore/tsengine/internal/dvbdevice"
	"github.com/dvbcore/tsengine/internal/frontend"
)

func TestRetuneThenLockBouncesDemux(t *testing.T) {
	mgr := demux.New(func() (*dvbdevice.Demux, error) { return nil, errors.New("no real device in tests") }, false)

	// demux.Manager's Bounce only visits already-open fds; since no
	// filters are open here, this asserts on the reactor's own state
	// transitions end to end.
	r := New("test", mgr, nil)

	in := make(chan frontend.Message, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, in)

	in <- frontend.Message{Kind: frontend.Lock}
	time.Sleep(10 * time.Millisecond)
	if r.State() != Locked {
		t.Fatalf("state = %v, want Locked", r.State())
	}

	in <- frontend.Message{Kind: frontend.Retune}
	time.Sleep(10 * time.Millisecond)
	if r.State() != RetunePending {
		t.Fatalf("state = %v, want RetunePending", r.State())
	}

	in <- frontend.Message{Kind: frontend.Lock}
	time.Sleep(10 * time.Millisecond)
	if r.State() != Locked {
		t.Fatalf("state = %v, want Locked after re-lock", r.State())
	}
}

func TestErrorTransitionsToErrorState(t *testing.T) {
	mgr := demux.New(func() (*dvbdevice.Demux, error) { return nil, errors.New("x") }, false)
	r := New("test", mgr, nil)

	in := make(chan frontend.Message, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, in)

	in <- frontend.Message{Kind: frontend.Error, Step: "SET_TONE", Err: errors.New("ioctl failed")}
	time.Sleep(10 * time.Millisecond)
	if r.State() != Error {
		t.Fatalf("state = %v, want Error", r.State())
	}
}
