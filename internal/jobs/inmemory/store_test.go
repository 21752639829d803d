package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/spend-insights/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreListJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []jobs.AnalyzeUserJob{
		{JobID: "a", UserID: "u1", Status: jobs.JobStatusCompleted},
		{JobID: "b", UserID: "u2", Status: jobs.JobStatusFailed},
		{JobID: "c", UserID: "u1", Status: jobs.JobStatusPending},
		{JobID: "d", UserID: "u1", Status: jobs.JobStatusCompleted},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveJob(ctx, &j))
	}

	ids := func(list []*jobs.AnalyzeUserJob) []string {
		out := []string{}
		for _, j := range list {
			out = append(out, j.JobID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "all newest first", filter: jobs.JobFilter{}, want: []string{"d", "c", "b", "a"}},
		{name: "by user", filter: jobs.JobFilter{UserID: "u1"}, want: []string{"d", "c", "a"}},
		{name: "by status", filter: jobs.JobFilter{Status: jobs.JobStatusCompleted}, want: []string{"d", "a"}},
		{name: "paged", filter: jobs.JobFilter{Limit: 2, Offset: 1}, want: []string{"c", "b"}},
		{name: "offset past end", filter: jobs.JobFilter{Offset: 10}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestStoreGetJobCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	job := &jobs.AnalyzeUserJob{JobID: "a", UserID: "u1", Status: jobs.JobStatusPending}
	require.NoError(t, store.SaveJob(ctx, job))

	job.Status = jobs.JobStatusRunning
	got, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status)

	_, err = store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestStoreUpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.SaveJob(ctx, &jobs.AnalyzeUserJob{JobID: "a", UserID: "u1"}))

	require.NoError(t, store.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"))
	got, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	assert.ErrorIs(t, store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""), jobs.ErrJobNotFound)
	assert.Error(t, store.SaveJob(ctx, &jobs.AnalyzeUserJob{}))
}

func TestStoreEvictsOldestFinishedJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore(WithMaxFinishedJobs(2))
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	finish := func(id string, minute int) {
		completed := base.Add(time.Duration(minute) * time.Minute)
		require.NoError(t, store.SaveJob(ctx, &jobs.AnalyzeUserJob{
			JobID:       id,
			UserID:      "u1",
			Status:      jobs.JobStatusCompleted,
			CreatedAt:   base,
			CompletedAt: &completed,
		}))
	}

	require.NoError(t, store.SaveJob(ctx, &jobs.AnalyzeUserJob{JobID: "running", Status: jobs.JobStatusRunning, CreatedAt: base}))
	finish("first", 1)
	finish("second", 2)
	finish("third", 3)

	_, err := store.GetJob(ctx, "first")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	for _, id := range []string{"running", "second", "third"} {
		_, err := store.GetJob(ctx, id)
		assert.NoError(t, err, id)
	}

	// A job failing through UpdateJobStatus also counts toward the cap.
	require.NoError(t, store.UpdateJobStatus(ctx, "running", jobs.JobStatusFailed, "boom"))
	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
