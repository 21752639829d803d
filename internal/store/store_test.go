package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, time.June, 3, 8, 0, 0, 0, time.UTC)

func report(id, user string, offset time.Duration) *domain.InsightReport {
	return &domain.InsightReport{ReportID: id, UserID: user, GeneratedAt: base.Add(offset)}
}

func TestMemoryStoreLatest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.SaveReport(ctx, report("r2", "u1", time.Hour)))
	require.NoError(t, s.SaveReport(ctx, report("r1", "u1", 0)))
	require.NoError(t, s.SaveReport(ctx, report("r3", "u2", 2*time.Hour)))

	got, err := s.GetLatestReport(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ReportID)

	_, err = s.GetLatestReport(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.SaveReport(ctx, &domain.InsightReport{UserID: "u1"}))
}

func TestMemoryStoreTieBreak(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SaveReport(ctx, report("a", "u1", 0)))
	require.NoError(t, s.SaveReport(ctx, report("b", "u1", 0)))

	got, err := s.GetLatestReport(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ReportID)
}

// countingStore counts reads that reach the wrapped store.
type countingStore struct {
	ReportStore
	gets int
}

func (c *countingStore) GetLatestReport(ctx context.Context, userID string) (*domain.InsightReport, error) {
	c.gets++
	return c.ReportStore.GetLatestReport(ctx, userID)
}

func TestCachedReportStore(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{ReportStore: NewMemoryStore()}
	s := NewCachedReportStore(inner, time.Minute)

	require.NoError(t, inner.SaveReport(ctx, report("r1", "u1", 0)))

	for i := 0; i < 3; i++ {
		got, err := s.GetLatestReport(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "r1", got.ReportID)
	}
	assert.Equal(t, 1, inner.gets)

	require.NoError(t, s.SaveReport(ctx, report("r2", "u1", time.Hour)))
	got, err := s.GetLatestReport(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ReportID)
	assert.Equal(t, 1, inner.gets)

	// An older report does not displace the cached one.
	require.NoError(t, s.SaveReport(ctx, report("r0", "u1", -time.Hour)))
	got, err = s.GetLatestReport(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ReportID)

	s.Invalidate("u1")
	_, err = s.GetLatestReport(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.gets)
}

func TestCachedReportStoreMissIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{ReportStore: NewMemoryStore()}
	s := NewCachedReportStore(inner, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := s.GetLatestReport(ctx, "u1")
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	assert.Equal(t, 2, inner.gets)
}
