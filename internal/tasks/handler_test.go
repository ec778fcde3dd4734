package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/aasindex/internal/common"
)

const owner Owner = "provider"

func TestHandler_Lifecycle(t *testing.T) {
	h := NewHandler()
	task := h.Add(owner, "ep", ScanEndpoint)
	require.NotNil(t, task)
	assert.Equal(t, StateIdle, task.State())
	assert.Same(t, task, h.Add(owner, "ep", ScanEndpoint))
	assert.True(t, h.Has(task.Key))
	assert.False(t, h.InProgress(task.Key))

	started, err := h.Start(task.Key)
	require.NoError(t, err)
	assert.Same(t, task, started)
	assert.True(t, h.InProgress(task.Key))

	_, err = h.Start(task.Key)
	assert.ErrorIs(t, err, common.ErrScanInProgress)

	h.Finish(task, errors.New("boom"))
	assert.Equal(t, StateIdle, task.State())
	assert.Equal(t, 1, task.Failures())
	start, end := task.Times()
	assert.False(t, end.Before(start))

	_, err = h.Start(task.Key)
	require.NoError(t, err)
	h.Finish(task, nil)
	assert.Zero(t, task.Failures())

	assert.True(t, h.Delete(task.Key))
	assert.False(t, h.Has(task.Key))
	assert.True(t, h.Empty(owner))
	assert.False(t, h.Delete(task.Key))
}

func TestHandler_StartUnknown(t *testing.T) {
	h := NewHandler()
	_, err := h.Start(Key{Owner: owner, Endpoint: "nope", Type: ScanEndpoint})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestHandler_DeleteWhileRunning(t *testing.T) {
	h := NewHandler()
	task := h.Add(owner, "ep", ScanEndpoint)
	_, err := h.Start(task.Key)
	require.NoError(t, err)

	require.True(t, h.Delete(task.Key))
	assert.Equal(t, StateDeleted, task.State())
	assert.False(t, h.Has(task.Key))
	assert.False(t, h.Empty(owner), "running task stays until it finishes")

	// re-adding replaces the deleted task
	fresh := h.Add(owner, "ep", ScanEndpoint)
	assert.NotSame(t, task, fresh)
	assert.Greater(t, fresh.ID, task.ID)

	h.Finish(task, nil)
	got, ok := h.Get(task.Key)
	require.True(t, ok)
	assert.Same(t, fresh, got, "finishing the old run must not drop the new task")

	h.Delete(fresh.Key)
	assert.True(t, h.Empty(owner))
}

func TestHandler_TasksByOwner(t *testing.T) {
	h := NewHandler()
	a := h.Add(owner, "a", ScanEndpoint)
	b := h.Add(owner, "b", ScanEndpoint)
	h.Add("other", "a", ScanEndpoint)
	c := h.Add(owner, "a", ScanTemplates)

	got := h.Tasks(owner)
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{a.ID, b.ID, c.ID}, []uint64{got[0].ID, got[1].ID, got[2].ID})
	assert.Len(t, h.Tasks("other"), 1)
}

func TestHandler_WaitEmpty(t *testing.T) {
	h := NewHandler()
	task := h.Add(owner, "ep", ScanEndpoint)
	_, err := h.Start(task.Key)
	require.NoError(t, err)
	h.Delete(task.Key)

	done := make(chan error, 1)
	go func() {
		done <- h.WaitEmpty(context.Background(), owner)
	}()

	select {
	case <-done:
		t.Fatal("WaitEmpty returned while a task was running")
	case <-time.After(20 * time.Millisecond):
	}

	h.Finish(task, nil)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitEmpty did not return")
	}
}

func TestHandler_WaitEmptyCanceled(t *testing.T) {
	h := NewHandler()
	h.Add(owner, "ep", ScanEndpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.WaitEmpty(ctx, owner), context.DeadlineExceeded)
	assert.NoError(t, h.WaitEmpty(context.Background(), "other"))
}
