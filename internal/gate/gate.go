// Package gate admits at most one in-flight document operation at a time.
package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docbridge/internal/errs"
)

const (
	idle int32 = iota
	busy
)

// Options controls how callers are treated while the gate is busy. The zero
// value rejects them immediately.
type Options struct {
	// MaxWaiters is how many callers may wait for the gate. Zero disables waiting.
	MaxWaiters int
	// WaitTimeout bounds each wait. Zero with MaxWaiters > 0 means wait until ctx is done.
	WaitTimeout time.Duration
}

// Gate is a binary admission token. Acquiring and releasing are atomic
// transitions on a single state word.
type Gate struct {
	state   atomic.Int32
	wake    chan struct{}
	opts    Options
	waiters atomic.Int32

	admitted atomic.Uint64
	rejected atomic.Uint64
}

func New(opts Options) *Gate {
	if opts.MaxWaiters < 0 {
		opts.MaxWaiters = 0
	}
	return &Gate{
		wake: make(chan struct{}, 1),
		opts: opts,
	}
}

// TryAcquire takes the gate if it is idle.
func (g *Gate) TryAcquire() bool {
	return g.state.CompareAndSwap(idle, busy)
}

// Release returns the gate to idle. Releasing an idle gate is a bug.
func (g *Gate) Release() {
	if !g.state.CompareAndSwap(busy, idle) {
		panic("gate: release of idle gate")
	}
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// Busy reports whether an operation currently holds the gate.
func (g *Gate) Busy() bool {
	return g.state.Load() == busy
}

// Admit acquires the gate for one operation. The returned release func is
// safe to call more than once. When the gate is held and no waiting slot is
// available, Admit fails with a retryable Busy error.
func (g *Gate) Admit(ctx context.Context) (release func(), err error) {
	if g.TryAcquire() {
		return g.admit(), nil
	}
	if g.opts.MaxWaiters == 0 {
		g.rejected.Add(1)
		return nil, errs.New(errs.KindBusy, "another operation is in progress")
	}
	if int(g.waiters.Add(1)) > g.opts.MaxWaiters {
		g.waiters.Add(-1)
		g.rejected.Add(1)
		return nil, errs.New(errs.KindBusy, "another operation is in progress and %d callers are already waiting", g.opts.MaxWaiters)
	}
	defer g.waiters.Add(-1)

	var timeout <-chan time.Time
	if g.opts.WaitTimeout > 0 {
		t := time.NewTimer(g.opts.WaitTimeout)
		defer t.Stop()
		timeout = t.C
	}

	for {
		if g.TryAcquire() {
			return g.admit(), nil
		}
		select {
		case <-g.wake:
		case <-timeout:
			g.rejected.Add(1)
			return nil, errs.New(errs.KindBusy, "gate still busy after %s", g.opts.WaitTimeout)
		case <-ctx.Done():
			g.rejected.Add(1)
			return nil, errs.Wrap(errs.KindBusy, ctx.Err(), "gave up waiting for gate")
		}
	}
}

func (g *Gate) admit() func() {
	g.admitted.Add(1)
	var once sync.Once
	return func() { once.Do(g.Release) }
}

// Stats is a point-in-time view of gate activity.
type Stats struct {
	Busy     bool   `json:"busy"`
	Waiters  int    `json:"waiters"`
	Admitted uint64 `json:"admitted"`
	Rejected uint64 `json:"rejected"`
}

func (g *Gate) Stats() Stats {
	return Stats{
		Busy:     g.Busy(),
		Waiters:  int(g.waiters.Load()),
		Admitted: g.admitted.Load(),
		Rejected: g.rejected.Load(),
	}
}
