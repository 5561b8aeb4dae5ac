// Package host runs the single event loop that owns every document. All
// document reads and writes happen inside tasks executed by this loop.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	// ErrStopped is returned by Post once the loop has been stopped.
	ErrStopped = errors.New("host loop is not running")

	// ErrQueueFull is returned by Post when the task queue is at capacity.
	ErrQueueFull = errors.New("host loop queue is full")
)

// Loop executes posted tasks one at a time, in order, on a single goroutine.
type Loop struct {
	queue chan func()
	log   *slog.Logger

	mu      sync.RWMutex // guards started/stopped against concurrent Post
	started bool
	stopped bool

	cancel context.CancelFunc
	done   chan struct{}

	processed atomic.Uint64
	panics    atomic.Uint64
}

// NewLoop creates a loop with a bounded task queue.
func NewLoop(queueSize int, log *slog.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Loop{
		queue: make(chan func(), queueSize),
		log:   log,
		done:  make(chan struct{}),
	}
}

// Start launches the loop goroutine. It runs until ctx is cancelled or Stop
// is called.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	go func() {
		defer close(l.done)
		for {
			select {
			case <-loopCtx.Done():
				l.markStopped()
				return
			case task := <-l.queue:
				l.run(task)
			}
		}
	}()
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.log.Error("host task panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
		l.processed.Add(1)
	}()
	task()
}

func (l *Loop) markStopped() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}

// Stop halts the loop and waits for the running task to finish. Tasks still
// queued are dropped; their callers observe Done.
func (l *Loop) Stop() {
	l.mu.Lock()
	started := l.started
	l.stopped = true
	cancel := l.cancel
	l.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-l.done
}

// Post enqueues task without blocking.
func (l *Loop) Post(task func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.started || l.stopped {
		return ErrStopped
	}
	select {
	case l.queue <- task:
		return nil
	default:
		return fmt.Errorf("%w (%d)", ErrQueueFull, cap(l.queue))
	}
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Running reports whether the loop accepts tasks.
func (l *Loop) Running() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started && !l.stopped
}

// QueueDepth returns the number of tasks waiting to run.
func (l *Loop) QueueDepth() int {
	return len(l.queue)
}

// Stats is a point-in-time view of loop activity.
type Stats struct {
	Running    bool   `json:"running"`
	QueueDepth int    `json:"queue_depth"`
	Processed  uint64 `json:"processed"`
	Panics     uint64 `json:"panics"`
}

func (l *Loop) Stats() Stats {
	return Stats{
		Running:    l.Running(),
		QueueDepth: l.QueueDepth(),
		Processed:  l.processed.Load(),
		Panics:     l.panics.Load(),
	}
}
