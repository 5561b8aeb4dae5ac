// Package dispatch marshals work from request goroutines onto the host loop
// and waits, with a deadline, for the result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/host"
	"github.com/google/uuid"
)

// DefaultTimeout is the caller-side ceiling used when none is configured.
const DefaultTimeout = 60 * time.Second

// Poster is the host loop as seen by the dispatcher.
type Poster interface {
	Post(task func()) error
	Done() <-chan struct{}
}

// Dispatcher runs closures on the host loop.
type Dispatcher struct {
	loop    Poster
	timeout time.Duration
	log     *slog.Logger
	stats   *LatencyStats
	journal *Journal

	timeouts    atomic.Uint64
	unavailable atomic.Uint64
	late        atomic.Uint64
}

// Options configures a Dispatcher.
type Options struct {
	Timeout     time.Duration
	StatsWindow time.Duration
	JournalTTL  time.Duration
}

func New(loop Poster, log *slog.Logger, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		loop:    loop,
		timeout: opts.Timeout,
		log:     log,
		stats:   NewLatencyStats(opts.StatsWindow),
		journal: NewJournal(opts.JournalTTL),
	}
}

// Run executes fn on the host loop using the default timeout.
func (d *Dispatcher) Run(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	return d.RunWithTimeout(ctx, name, fn, d.timeout)
}

// RunWithTimeout posts fn to the host loop and blocks until it has run, the
// timeout elapses, or ctx is done. A timeout does not cancel fn: it may still
// run later, and its result is then dropped.
//
// Errors returned by fn come back as OperationFailed unless fn already
// returned a classified error, which is passed through unchanged. Timeout and
// HostUnavailable mean fn never delivered a result.
func (d *Dispatcher) RunWithTimeout(ctx context.Context, name string, fn func() (any, error), timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = d.timeout
	}
	start := time.Now()
	op := newOperation(uuid.NewString(), name, fn, start.Add(timeout))
	d.journal.Put(op)
	log := d.log.With("op_id", op.ID, "op", name)

	if err := d.loop.Post(func() { d.execute(op) }); err != nil {
		d.unavailable.Add(1)
		op.setCaller(CallerAbandoned)
		op.setState(StateFailed, err.Error())
		if errors.Is(err, host.ErrQueueFull) {
			return nil, errs.Wrap(errs.KindHostUnavailable, err, "host loop cannot accept %s", name)
		}
		return nil, errs.Wrap(errs.KindHostUnavailable, err, "host loop unavailable for %s", name)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-op.result:
		op.setCaller(CallerDelivered)
		d.stats.Record(time.Since(start).Milliseconds())
		return out.value, out.err
	case <-timer.C:
		d.timeouts.Add(1)
		op.setCaller(CallerTimedOut)
		log.Warn("caller timed out waiting for host loop", "timeout", timeout)
		return nil, errs.New(errs.KindTimeout, "%s did not complete within %s", name, timeout)
	case <-ctx.Done():
		op.setCaller(CallerAbandoned)
		return nil, errs.Wrap(errs.KindTimeout, ctx.Err(), "caller gave up on %s", name)
	case <-d.loop.Done():
		d.unavailable.Add(1)
		op.setCaller(CallerAbandoned)
		return nil, errs.New(errs.KindHostUnavailable, "host loop stopped before %s ran", name)
	}
}

// execute runs on the host loop. Publishing never blocks because the result
// channel has room for exactly one outcome and nobody else writes to it.
func (d *Dispatcher) execute(op *PendingOperation) {
	op.setState(StateRunning, "")
	value, err := d.call(op)
	if err != nil {
		op.setState(StateFailed, err.Error())
	} else {
		op.setState(StateCompleted, "")
	}
	if op.Snapshot().Caller != CallerWaiting {
		d.late.Add(1)
	}
	op.result <- outcome{value: value, err: err}
}

func (d *Dispatcher) call(op *PendingOperation) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("operation panicked", "op_id", op.ID, "op", op.Name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			value = nil
			err = errs.New(errs.KindOperationFailed, "%s panicked: %v", op.Name, r)
		}
	}()
	value, err = op.fn()
	if err != nil {
		if _, ok := errs.As(err); !ok {
			err = errs.Wrap(errs.KindOperationFailed, err, "%s failed", op.Name)
		}
	}
	return value, err
}

// Journal exposes recent operations.
func (d *Dispatcher) Journal() *Journal { return d.journal }

// Counters are cumulative dispatcher outcomes.
type Counters struct {
	Timeouts    uint64 `json:"timeouts"`
	Unavailable uint64 `json:"host_unavailable"`
	LateResults uint64 `json:"late_results_dropped"`
}

// Report bundles latency stats and counters.
type Report struct {
	Latency  StatsSnapshot `json:"latency"`
	Counters Counters      `json:"counters"`
}

func (d *Dispatcher) Report() Report {
	return Report{
		Latency: d.stats.Snapshot(),
		Counters: Counters{
			Timeouts:    d.timeouts.Load(),
			Unavailable: d.unavailable.Load(),
			LateResults: d.late.Load(),
		},
	}
}

// StartJanitor evicts old journal entries every interval until ctx is done.
func (d *Dispatcher) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.journal.Cleanup()
			}
		}
	}()
}
