// Package tasks tracks the scan tasks of the provider: one task per owner,
// endpoint and task type, each driven by a small state machine.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// Owner identifies the component a task belongs to.
type Owner string

// Type is the kind of work a task performs.
type Type string

const (
	ScanEndpoint  Type = "ScanEndpoint"
	ScanTemplates Type = "ScanTemplates"
)

// Task states.
const (
	StateIdle       = "idle"
	StateInProgress = "inProgress"
	StateDeleted    = "deleted"
)

const (
	eventStart  = "start"
	eventFinish = "finish"
	eventDelete = "delete"
)

// Key addresses a task. At most one task exists per key.
type Key struct {
	Owner    Owner
	Endpoint string
	Type     Type
}

// Task is one scheduled unit of work.
type Task struct {
	ID  uint64
	Key Key

	fsm *fsm.FSM

	mu       sync.Mutex
	start    time.Time
	end      time.Time
	failures int
}

func newTask(id uint64, key Key) *Task {
	return &Task{
		ID:  id,
		Key: key,
		fsm: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventStart, Src: []string{StateIdle}, Dst: StateInProgress},
				{Name: eventFinish, Src: []string{StateInProgress}, Dst: StateIdle},
				{Name: eventDelete, Src: []string{StateIdle, StateInProgress}, Dst: StateDeleted},
			},
			fsm.Callbacks{},
		),
	}
}

// State returns the current state.
func (t *Task) State() string {
	return t.fsm.Current()
}

// Times returns when the last run started and ended. End is zero while a
// run is in progress.
func (t *Task) Times() (start, end time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start, t.end
}

// Failures is the number of consecutive failed runs.
func (t *Task) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

func (t *Task) fire(event string) error {
	return t.fsm.Event(context.Background(), event)
}
