package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startLoop(t *testing.T, queue int) *host.Loop {
	t.Helper()
	l := host.NewLoop(queue, testLogger())
	l.Start(context.Background())
	t.Cleanup(l.Stop)
	return l
}

func TestRun_ReturnsValue(t *testing.T) {
	d := New(startLoop(t, 4), testLogger(), Options{Timeout: time.Second})

	v, err := d.Run(context.Background(), "answer", func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	report := d.Report()
	assert.Equal(t, 1, report.Latency.Count)
}

func TestRun_ClosureErrorIsOperationFailed(t *testing.T) {
	d := New(startLoop(t, 4), testLogger(), Options{Timeout: time.Second})
	cause := errors.New("style not found")

	_, err := d.Run(context.Background(), "set_style", func() (any, error) { return nil, cause })
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrOperationFailed)
	assert.ErrorIs(t, err, cause)
	assert.False(t, errs.IsRetryable(err))
}

func TestRun_ClassifiedErrorPassesThrough(t *testing.T) {
	d := New(startLoop(t, 4), testLogger(), Options{Timeout: time.Second})

	_, err := d.Run(context.Background(), "resolve", func() (any, error) {
		return nil, errs.New(errs.KindOrphanedLocator, "bookmark _mcp_1 is orphaned")
	})
	assert.ErrorIs(t, err, errs.ErrOrphanedLocator)
	assert.Equal(t, "bookmark _mcp_1 is orphaned", err.Error())
}

func TestRun_PanicIsContained(t *testing.T) {
	d := New(startLoop(t, 4), testLogger(), Options{Timeout: time.Second})

	_, err := d.Run(context.Background(), "explode", func() (any, error) { panic("bad index") })
	assert.ErrorIs(t, err, errs.ErrOperationFailed)

	v, err := d.Run(context.Background(), "after", func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

// A closure that outlives its caller must complete without blocking the loop.
func TestRun_TimeoutIndependence(t *testing.T) {
	d := New(startLoop(t, 4), testLogger(), Options{Timeout: time.Second})

	release := make(chan struct{})
	finished := make(chan struct{})
	_, err := d.RunWithTimeout(context.Background(), "slow", func() (any, error) {
		<-release
		defer close(finished)
		return "late", nil
	}, 30*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.True(t, errs.IsRetryable(err))

	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("timed-out closure never finished")
	}

	// The loop must still be serving work after publishing to nobody.
	v, err := d.Run(context.Background(), "next", func() (any, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	recent := d.Journal().Recent(10)
	require.Len(t, recent, 2)
	slow := recent[1]
	assert.Equal(t, "slow", slow.Name)
	assert.Equal(t, StateCompleted, slow.State)
	assert.Equal(t, CallerTimedOut, slow.Caller)
	assert.Equal(t, uint64(1), d.Report().Counters.Timeouts)
	assert.Equal(t, uint64(1), d.Report().Counters.LateResults)
}

func TestRun_StoppedLoopIsHostUnavailable(t *testing.T) {
	l := host.NewLoop(4, testLogger())
	d := New(l, testLogger(), Options{Timeout: time.Second})

	_, err := d.Run(context.Background(), "noop", func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, errs.ErrHostUnavailable)
	assert.True(t, errs.IsRetryable(err))
}

func TestRun_QueueFullIsHostUnavailable(t *testing.T) {
	l := startLoop(t, 1)
	d := New(l, testLogger(), Options{Timeout: time.Second})

	release := make(chan struct{})
	running := make(chan struct{})
	require.NoError(t, l.Post(func() {
		close(running)
		<-release
	}))
	<-running
	require.NoError(t, l.Post(func() {}))
	defer close(release)

	_, err := d.Run(context.Background(), "noop", func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, errs.ErrHostUnavailable)
}

func TestRun_LoopStopsWhileWaiting(t *testing.T) {
	l := host.NewLoop(4, testLogger())
	l.Start(context.Background())
	d := New(l, testLogger(), Options{Timeout: 5 * time.Second})

	release := make(chan struct{})
	running := make(chan struct{})
	require.NoError(t, l.Post(func() {
		close(running)
		<-release
	}))
	<-running

	errCh := make(chan error, 1)
	go func() {
		_, err := d.Run(context.Background(), "queued", func() (any, error) { return nil, nil })
		errCh <- err
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	l.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			assert.ErrorIs(t, err, errs.ErrHostUnavailable)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("caller stayed blocked after the loop stopped")
	}
}

func TestRun_CallerContextCancelled(t *testing.T) {
	l := startLoop(t, 4)
	d := New(l, testLogger(), Options{Timeout: 5 * time.Second})

	release := make(chan struct{})
	defer close(release)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := d.Run(ctx, "blocked", func() (any, error) {
		<-release
		return nil, nil
	})
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJournal_TTLCleanup(t *testing.T) {
	j := NewJournal(50 * time.Millisecond)
	old := newOperation("old", "a", nil, time.Now())
	j.Put(old)
	time.Sleep(100 * time.Millisecond)
	fresh := newOperation("new", "b", nil, time.Now())
	j.Put(fresh)

	j.Cleanup()

	assert.Nil(t, j.Get("old"))
	assert.NotNil(t, j.Get("new"))
	assert.Equal(t, 1, j.Len())
}

func TestJournal_RecentNewestFirst(t *testing.T) {
	j := NewJournal(time.Hour)
	for _, id := range []string{"1", "2", "3"} {
		j.Put(newOperation(id, "op"+id, nil, time.Now()))
	}
	recent := j.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].ID)
	assert.Equal(t, "2", recent[1].ID)
}
