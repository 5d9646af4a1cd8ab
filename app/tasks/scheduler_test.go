package tasks

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type stubTask struct {
	Task
	executions atomic.Int32
	err        error
	done       chan struct{}
}

func newStubTask(err error) *stubTask {
	return &stubTask{
		Task: NewTask(TaskTypeRefreshFeed, "stub"),
		err:  err,
		done: make(chan struct{}, 10),
	}
}

func (t *stubTask) Execute(ctx context.Context) error {
	t.executions.Add(1)
	t.done <- struct{}{}
	return t.err
}

func newTestScheduler(queueSize, workers int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		interval:    time.Hour,
		workerCount: workers,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

func TestTaskRetryAccounting(t *testing.T) {
	task := NewTask(TaskTypePullChanges, "all-zones")

	if !task.CanRetry() {
		t.Error("Expected a fresh task to be retryable")
	}
	for i := 0; i < DefaultMaxRetries; i++ {
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected retries exhausted after max increments")
	}
	if task.GetRetryCount() != DefaultMaxRetries {
		t.Errorf("Expected retry count %d, got %d", DefaultMaxRetries, task.GetRetryCount())
	}
}

func TestTaskIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		task := NewTask(TaskTypeSendStatuses, "status-queue")
		if seen[task.GetID()] {
			t.Fatalf("Duplicate task ID %s", task.GetID())
		}
		seen[task.GetID()] = true
	}
}

func TestEnqueueTaskRejectsWhenFull(t *testing.T) {
	s := newTestScheduler(1, 0)
	defer s.cancel()

	if err := s.EnqueueTask(newStubTask(nil)); err != nil {
		t.Fatalf("First enqueue failed: %v", err)
	}
	if err := s.EnqueueTask(newStubTask(nil)); err == nil {
		t.Error("Expected enqueue to fail on a full queue")
	}
}

func TestWorkerExecutesQueuedTask(t *testing.T) {
	s := newTestScheduler(10, 1)

	s.wg.Add(1)
	go s.worker(0)

	task := newStubTask(nil)
	if err := s.EnqueueTask(task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case <-task.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Task was not executed")
	}

	s.cancel()
	s.wg.Wait()

	if task.executions.Load() != 1 {
		t.Errorf("Expected 1 execution, got %d", task.executions.Load())
	}
}

func TestFailedTaskIsRetried(t *testing.T) {
	s := newTestScheduler(10, 1)

	s.wg.Add(1)
	go s.worker(0)

	task := newStubTask(fmt.Errorf("transient failure"))
	if err := s.EnqueueTask(task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// First execution plus at least one retry (1s backoff for retry #1).
	for i := 0; i < 2; i++ {
		select {
		case <-task.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("Expected execution %d to happen", i+1)
		}
	}

	s.cancel()
	s.wg.Wait()

	if task.GetRetryCount() == 0 {
		t.Error("Expected retry count to be incremented")
	}
}
