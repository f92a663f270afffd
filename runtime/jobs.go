package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"workroom/observability"

	"github.com/google/uuid"
)

// Job is a cancellable background task (export, conversation delete)
// reporting progress as processed/total counts. The triggering
// request returns the handle immediately; callers await Done only if
// they need the result.
type Job struct {
	ID     uuid.UUID
	Name   string
	cancel context.CancelFunc
	done   chan struct{}

	processed atomic.Int64
	total     atomic.Int64
	err       atomic.Value
	result    atomic.Value
}

func (j *Job) Cancel()               { j.cancel() }
func (j *Job) Done() <-chan struct{} { return j.done }

// Progress returns processed and total counts. Total may be zero
// until the job has sized its work.
func (j *Job) Progress() (int64, int64) {
	return j.processed.Load(), j.total.Load()
}

func (j *Job) SetTotal(n int64)  { j.total.Store(n) }
func (j *Job) AddProcessed(n int64) { j.processed.Add(n) }

func (j *Job) Err() error {
	if err, ok := j.err.Load().(error); ok {
		return err
	}
	return nil
}

// SetResult publishes the job's outcome; read it after Done closes.
func (j *Job) SetResult(v any) { j.result.Store(v) }
func (j *Job) Result() any     { return j.result.Load() }

// Jobs launches and tracks background tasks. Stop cancels nothing on
// its own; it only waits for running jobs to finish, so a shutdown
// drains in-flight exports and deletes cleanly.
type Jobs struct {
	log        *slog.Logger
	wg         sync.WaitGroup
	monitoring *observability.Monitoring
}

func NewJobs(log *slog.Logger, monitoring *observability.Monitoring) *Jobs {
	return &Jobs{log: log, monitoring: monitoring}
}

// Launch starts fn in its own goroutine under a cancellable context
// derived from ctx.
func (s *Jobs) Launch(ctx context.Context, name string, fn func(ctx context.Context, job *Job) error) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:     uuid.New(),
		Name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	s.monitoring.JobStarted()
	go func() {
		defer s.wg.Done()
		defer s.monitoring.JobFinished()
		defer cancel()
		defer close(job.done)
		if err := fn(jobCtx, job); err != nil {
			job.err.Store(err)
			s.log.Warn(fmt.Sprintf("Job %s (%s) failed", name, job.ID), "error", err)
			return
		}
		s.log.Debug(fmt.Sprintf("Job %s (%s) finished", name, job.ID))
	}()
	return job
}

// Wait blocks until all launched jobs have returned.
func (s *Jobs) Wait() {
	s.wg.Wait()
}
