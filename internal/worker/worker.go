// Package worker runs background jobs from the SQLite job queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/docmind/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	ReleaseJob(id string) error
	RequeueRunningJobs() (int, error)
}

// Handler processes the JSON payload of one job. A returned error marks the
// job failed (or schedules a retry while attempts remain), unless the
// worker's context was cancelled, in which case the job goes back to
// pending without using an attempt.
type Handler func(ctx context.Context, payload []byte) error

// Options configures a Worker.
type Options struct {
	// Concurrency is the number of jobs processed in parallel. Defaults to 1.
	Concurrency int
	// PollInterval is how long an idle loop sleeps before checking the queue
	// again. Defaults to 500ms.
	PollInterval time.Duration
}

// Worker claims jobs of registered types and dispatches them to handlers.
type Worker struct {
	store    JobStore
	handlers map[string]Handler
	types    []string
	conc     int
	poll     time.Duration
	wake     chan struct{}
	logger   *slog.Logger
}

// New creates a Worker with the given store.
func New(store JobStore, opts Options) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		handlers: make(map[string]Handler),
		conc:     opts.Concurrency,
		poll:     opts.PollInterval,
		wake:     make(chan struct{}, 1),
		logger:   slog.Default(),
	}
}

// Handle registers h for jobs of jobType. It must be called before Run.
func (w *Worker) Handle(jobType string, h Handler) {
	if _, ok := w.handlers[jobType]; !ok {
		w.types = append(w.types, jobType)
	}
	w.handlers[jobType] = h
}

// Enqueue stores a job with a JSON-encoded payload and wakes an idle loop.
// maxAttempts <= 0 uses the store default.
func (w *Worker) Enqueue(jobType string, payload any, maxAttempts int) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", jobType, err)
	}
	job := storage.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		PayloadJSON: string(data),
		MaxAttempts: maxAttempts,
	}
	if err := w.store.EnqueueJob(job); err != nil {
		return fmt.Errorf("enqueueing %s job: %w", jobType, err)
	}
	w.Notify()
	return nil
}

// Notify wakes one idle loop without waiting for the poll interval.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run requeues jobs interrupted by a previous shutdown, then processes jobs
// with the configured concurrency until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if n, err := w.store.RequeueRunningJobs(); err != nil {
		w.logger.Error("requeueing interrupted jobs", "error", err)
	} else if n > 0 {
		w.logger.Info("requeued interrupted jobs", "count", n)
	}

	var wg sync.WaitGroup
	for i := 0; i < w.conc; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(w.types)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.process(ctx, job); err != nil {
		if ctx.Err() != nil {
			w.logger.Info("job interrupted, releasing", "job_id", job.ID, "type", job.Type, "error", err)
			if relErr := w.store.ReleaseJob(job.ID); relErr != nil {
				w.logger.Error("failed to release job", "job_id", job.ID, "error", relErr)
			}
			return true, nil
		}
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *storage.Job) (err error) {
	h, ok := w.handlers[job.Type]
	if !ok {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, []byte(job.PayloadJSON))
}
