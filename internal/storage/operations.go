package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// OperationState tracks one in-flight store/retrieve/delete call, the
// supplemented feature carried over from the original implementation's
// operational-visibility bookkeeping (see SPEC_FULL.md). It is exposed
// only through Stats().ActiveOperations, never as a per-peer diagnostic.
type OperationState struct {
	ID        string
	Kind      string
	UserID    string
	StartedAt time.Time
}

type operationTracker struct {
	mu   sync.Mutex
	ops  map[string]OperationState
}

func newOperationTracker() *operationTracker {
	return &operationTracker{ops: make(map[string]OperationState)}
}

// begin registers a new in-flight operation and returns a function that
// ends it; callers defer the returned function.
func (t *operationTracker) begin(kind, userID string) func() {
	id := uuid.NewString()
	t.mu.Lock()
	t.ops[id] = OperationState{ID: id, Kind: kind, UserID: userID, StartedAt: time.Now()}
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.ops, id)
		t.mu.Unlock()
	}
}

func (t *operationTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}
