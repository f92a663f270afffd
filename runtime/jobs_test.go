package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"workroom/observability"
)

func TestJobs_Launch_Reports_Progress_And_Result(t *testing.T) {
	req := require.New(t)
	jobs := NewJobs(slog.Default(), observability.NewMonitoring())

	job := jobs.Launch(context.Background(), "export", func(ctx context.Context, job *Job) error {
		job.SetTotal(3)
		for i := 0; i < 3; i++ {
			job.AddProcessed(1)
		}
		job.SetResult("archive-bytes")
		return nil
	})

	<-job.Done()
	req.NoError(job.Err())

	processed, total := job.Progress()
	req.Equal(int64(3), processed)
	req.Equal(int64(3), total)
	req.Equal("archive-bytes", job.Result())
}

func TestJobs_Cancel_Stops_The_Job(t *testing.T) {
	req := require.New(t)
	jobs := NewJobs(slog.Default(), observability.NewMonitoring())

	started := make(chan struct{})
	job := jobs.Launch(context.Background(), "delete", func(ctx context.Context, job *Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	job.Cancel()

	select {
	case <-job.Done():
		req.ErrorIs(job.Err(), context.Canceled)
	case <-time.After(time.Second):
		req.Fail("Job should have stopped after cancel")
	}
}

func TestJobs_Wait_Blocks_Until_All_Jobs_Return(t *testing.T) {
	req := require.New(t)
	monitoring := observability.NewMonitoring()
	jobs := NewJobs(slog.Default(), monitoring)

	release := make(chan struct{})
	jobs.Launch(context.Background(), "slow", func(ctx context.Context, job *Job) error {
		<-release
		return nil
	})
	req.Equal(int64(1), monitoring.Snapshot().JobsRunning)

	close(release)
	jobs.Wait()
	req.Equal(int64(0), monitoring.Snapshot().JobsRunning)
}
