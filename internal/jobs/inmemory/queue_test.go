package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/spend-insights/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, store *Store, jobID string, status jobs.JobStatus) *jobs.AnalyzeUserJob {
	t.Helper()
	var got *jobs.AnalyzeUserJob
	require.Eventually(t, func() bool {
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		got = job
		return job.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueueProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.AnalyzeUserJob)
		j.ReportID = "report-" + j.UserID
		return nil
	}))

	job := &jobs.AnalyzeUserJob{UserID: "u1"}
	require.NoError(t, q.PublishAnalyzeUser(ctx, job))
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, defaultMaxRetries, job.MaxRetries)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, "report-u1", done.ReportID)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store, WithWorkers(1), WithRetryBackoff(time.Millisecond))
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if calls.Add(1) < 3 {
			return errors.New("backend unavailable")
		}
		return nil
	}))

	job := &jobs.AnalyzeUserJob{UserID: "u1"}
	require.NoError(t, q.PublishAnalyzeUser(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.RetryCount)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueFailsAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store, WithRetryBackoff(time.Millisecond))
	defer q.Close()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		return errors.New("no transactions source")
	}))

	job := &jobs.AnalyzeUserJob{UserID: "u1", MaxRetries: 1}
	require.NoError(t, q.PublishAnalyzeUser(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Equal(t, "no transactions source", failed.Error)
}

func TestQueuePermanentErrorIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store, WithRetryBackoff(time.Millisecond))
	defer q.Close()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return jobs.Permanent(errors.New("invalid amount"))
	}))

	job := &jobs.AnalyzeUserJob{UserID: "u1"}
	require.NoError(t, q.PublishAnalyzeUser(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 0, failed.RetryCount)
	assert.Equal(t, "invalid amount", failed.Error)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueuePublishValidation(t *testing.T) {
	q := NewQueue(1, NewStore())

	err := q.PublishAnalyzeUser(context.Background(), &jobs.AnalyzeUserJob{})
	assert.Error(t, err)

	require.NoError(t, q.Close())
	err = q.PublishAnalyzeUser(context.Background(), &jobs.AnalyzeUserJob{UserID: "u1"})
	assert.EqualError(t, err, "queue is closed")
	assert.EqualError(t, q.Start(context.Background(), nil), "queue is closed")
}
