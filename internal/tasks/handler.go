package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrTaskNotFound is returned for keys without a live task.
var ErrTaskNotFound = errors.New("task not found")

// Handler is a concurrent registry of tasks.
type Handler struct {
	tasks  *xsync.MapOf[Key, *Task]
	nextID atomic.Uint64
	now    func() time.Time

	mu      sync.Mutex
	changed chan struct{}
}

func NewHandler() *Handler {
	return &Handler{
		tasks:   xsync.NewMapOf[Key, *Task](),
		now:     time.Now,
		changed: make(chan struct{}),
	}
}

// Add returns the task for key, creating it when absent. A task deleted
// while still running is replaced by a fresh one.
func (h *Handler) Add(owner Owner, endpoint string, typ Type) *Task {
	key := Key{Owner: owner, Endpoint: endpoint, Type: typ}
	t, _ := h.tasks.Compute(key, func(old *Task, loaded bool) (*Task, bool) {
		if loaded && old.State() != StateDeleted {
			return old, false
		}
		return newTask(h.nextID.Add(1), key), false
	})
	return t
}

func (h *Handler) Get(key Key) (*Task, bool) {
	t, ok := h.tasks.Load(key)
	if !ok || t.State() == StateDeleted {
		return nil, false
	}
	return t, true
}

func (h *Handler) Has(key Key) bool {
	_, ok := h.Get(key)
	return ok
}

// InProgress reports whether the task for key is running.
func (h *Handler) InProgress(key Key) bool {
	t, ok := h.Get(key)
	return ok && t.State() == StateInProgress
}

// Start moves the task for key to in progress. Starting a running task
// fails with common.ErrScanInProgress.
func (h *Handler) Start(key Key) (*Task, error) {
	t, ok := h.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrTaskNotFound, key.Endpoint, key.Type)
	}
	if err := t.fire(eventStart); err != nil {
		if t.State() == StateInProgress {
			return nil, fmt.Errorf("%w: %s", common.ErrScanInProgress, key.Endpoint)
		}
		return nil, fmt.Errorf("start %s: %w", key.Endpoint, err)
	}
	t.mu.Lock()
	t.start, t.end = h.now(), time.Time{}
	t.mu.Unlock()
	return t, nil
}

// Finish ends a run started with Start. runErr counts towards the task's
// consecutive failures. A task deleted during the run is dropped now.
func (h *Handler) Finish(t *Task, runErr error) {
	t.mu.Lock()
	t.end = h.now()
	if runErr != nil {
		t.failures++
	} else {
		t.failures = 0
	}
	t.mu.Unlock()

	if t.State() == StateDeleted {
		h.drop(t)
		return
	}
	_ = t.fire(eventFinish)
}

// Delete removes the task for key. A running task stays registered, in
// the deleted state, until its run finishes.
func (h *Handler) Delete(key Key) bool {
	t, ok := h.Get(key)
	if !ok {
		return false
	}
	running := t.State() == StateInProgress
	if err := t.fire(eventDelete); err != nil {
		return false
	}
	if !running {
		h.drop(t)
	}
	return true
}

func (h *Handler) drop(t *Task) {
	h.tasks.Compute(t.Key, func(old *Task, loaded bool) (*Task, bool) {
		return old, !loaded || old == t
	})
	h.mu.Lock()
	close(h.changed)
	h.changed = make(chan struct{})
	h.mu.Unlock()
}

// Tasks returns the tasks of owner, deleted ones still running included,
// ordered by id.
func (h *Handler) Tasks(owner Owner) []*Task {
	var out []*Task
	h.tasks.Range(func(k Key, t *Task) bool {
		if k.Owner == owner {
			out = append(out, t)
		}
		return true
	})
	slices.SortFunc(out, func(a, b *Task) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Empty reports whether owner has no tasks left.
func (h *Handler) Empty(owner Owner) bool {
	return len(h.Tasks(owner)) == 0
}

// WaitEmpty blocks until owner has no tasks left or ctx ends.
func (h *Handler) WaitEmpty(ctx context.Context, owner Owner) error {
	for {
		h.mu.Lock()
		ch := h.changed
		h.mu.Unlock()

		if h.Empty(owner) {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
