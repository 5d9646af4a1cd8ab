package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/feedvault/feedvault/app/cfg"
	"github.com/feedvault/feedvault/app/feed"
	"github.com/feedvault/feedvault/app/store"
	feedsync "github.com/feedvault/feedvault/app/sync"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs the background side of the application: feed refreshes,
// remote pulls, queue drains and retention cleanup, executed by a worker pool
// fed from a task queue.
type Scheduler struct {
	store         *store.Store
	refresher     *feed.Refresher
	provider      *feedsync.Provider
	interval      time.Duration
	refreshEvery  time.Duration
	retentionDays int
	workerCount   int
	lastCleanup   time.Time
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface
}

func NewScheduler(st *store.Store, refresher *feed.Refresher, provider *feedsync.Provider) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		store:         st,
		refresher:     refresher,
		provider:      provider,
		interval:      time.Duration(cfg.SchedulerInterval) * time.Second,
		refreshEvery:  time.Duration(cfg.RefreshInterval) * time.Second,
		retentionDays: cfg.RetentionDays,
		workerCount:   cfg.WorkerCount,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueTasks() {
	// Drain before pull: replayed local operations should land remotely
	// before their echoes come back in the delta.
	if err := s.EnqueueTask(NewDrainOperationsTask(s.provider)); err != nil {
		slog.Warn("Failed to enqueue DrainOperationsTask", "error", err)
	}
	if err := s.EnqueueTask(NewSendStatusesTask(s.provider)); err != nil {
		slog.Warn("Failed to enqueue SendStatusesTask", "error", err)
	}
	if err := s.EnqueueTask(NewPullChangesTask(s.provider)); err != nil {
		slog.Warn("Failed to enqueue PullChangesTask", "error", err)
	}

	now := time.Now()
	for _, f := range s.store.Feeds() {
		if f.LastCheckedAt != nil && now.Sub(*f.LastCheckedAt) < s.refreshEvery {
			continue
		}
		if err := s.EnqueueTask(NewRefreshFeedTask(f.ID, s.refresher)); err != nil {
			slog.Warn("Failed to enqueue RefreshFeedTask", "feed", f.ID, "error", err)
		}
	}

	if now.Sub(s.lastCleanup) >= 24*time.Hour {
		if err := s.EnqueueTask(NewCleanupArticlesTask(s.store, s.retentionDays)); err != nil {
			slog.Warn("Failed to enqueue CleanupArticlesTask", "error", err)
		} else {
			s.lastCleanup = now
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
