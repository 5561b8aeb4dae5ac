package dispatch

import (
	"sync"
	"time"
)

// OpState is the host-side state of a PendingOperation.
type OpState string

const (
	StateQueued    OpState = "queued"
	StateRunning   OpState = "running"
	StateCompleted OpState = "completed"
	StateFailed    OpState = "failed"
)

// CallerState is the caller-side state. It races independently of OpState:
// an operation can complete after its caller has already timed out.
type CallerState string

const (
	CallerWaiting   CallerState = "waiting"
	CallerDelivered CallerState = "delivered"
	CallerTimedOut  CallerState = "timed_out"
	CallerAbandoned CallerState = "abandoned"
)

type outcome struct {
	value any
	err   error
}

// PendingOperation is one unit of work submitted to the host loop.
type PendingOperation struct {
	mu sync.Mutex

	ID       string
	Name     string
	Deadline time.Time

	fn     func() (any, error)
	result chan outcome // buffered: the loop never blocks publishing

	state      OpState
	caller     CallerState
	err        string
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	updatedAt  time.Time
}

func newOperation(id, name string, fn func() (any, error), deadline time.Time) *PendingOperation {
	now := time.Now()
	return &PendingOperation{
		ID:        id,
		Name:      name,
		Deadline:  deadline,
		fn:        fn,
		result:    make(chan outcome, 1),
		state:     StateQueued,
		caller:    CallerWaiting,
		createdAt: now,
		updatedAt: now,
	}
}

func (op *PendingOperation) setState(s OpState, errMsg string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	now := time.Now()
	op.state = s
	switch s {
	case StateRunning:
		op.startedAt = now
	case StateCompleted, StateFailed:
		op.finishedAt = now
		op.err = errMsg
	}
	op.updatedAt = now
}

func (op *PendingOperation) setCaller(s CallerState) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.caller = s
	op.updatedAt = time.Now()
}

// OperationSnapshot is a read-only, JSON-safe copy of an operation.
type OperationSnapshot struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	State     OpState     `json:"state"`
	Caller    CallerState `json:"caller"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	Deadline  time.Time   `json:"deadline"`
	QueuedMs  int64       `json:"queued_ms"`
	RunMs     int64       `json:"run_ms"`
}

func (op *PendingOperation) Snapshot() OperationSnapshot {
	op.mu.Lock()
	defer op.mu.Unlock()
	snap := OperationSnapshot{
		ID:        op.ID,
		Name:      op.Name,
		State:     op.state,
		Caller:    op.caller,
		Error:     op.err,
		CreatedAt: op.createdAt,
		Deadline:  op.Deadline,
	}
	if !op.startedAt.IsZero() {
		snap.QueuedMs = op.startedAt.Sub(op.createdAt).Milliseconds()
		if !op.finishedAt.IsZero() {
			snap.RunMs = op.finishedAt.Sub(op.startedAt).Milliseconds()
		}
	}
	return snap
}

func (op *PendingOperation) lastUpdate() time.Time {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.updatedAt
}

// Journal keeps recent operations for inspection, evicting them after a TTL.
type Journal struct {
	mu    sync.Mutex
	ops   map[string]*PendingOperation
	order []string
	ttl   time.Duration
}

func NewJournal(ttl time.Duration) *Journal {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Journal{
		ops: make(map[string]*PendingOperation),
		ttl: ttl,
	}
}

func (j *Journal) Put(op *PendingOperation) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.ops[op.ID]; !ok {
		j.order = append(j.order, op.ID)
	}
	j.ops[op.ID] = op
}

func (j *Journal) Get(id string) *PendingOperation {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ops[id]
}

// Recent returns up to limit snapshots, newest first.
func (j *Journal) Recent(limit int) []OperationSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]OperationSnapshot, 0, min(limit, len(j.order)))
	for i := len(j.order) - 1; i >= 0 && len(out) < limit; i-- {
		if op, ok := j.ops[j.order[i]]; ok {
			out = append(out, op.Snapshot())
		}
	}
	return out
}

// Cleanup removes operations not updated within the TTL.
func (j *Journal) Cleanup() {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	kept := j.order[:0]
	for _, id := range j.order {
		op := j.ops[id]
		if now.Sub(op.lastUpdate()) > j.ttl {
			delete(j.ops, id)
			continue
		}
		kept = append(kept, id)
	}
	j.order = kept
}

func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.ops)
}
