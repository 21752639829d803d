package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/patrickmn/go-cache"
)

// ErrNotFound is returned when a user has no stored report.
var ErrNotFound = errors.New("report not found")

// ReportStore persists insight reports.
type ReportStore interface {
	// SaveReport stores a report. Saving the same report ID again replaces it.
	SaveReport(ctx context.Context, report *domain.InsightReport) error

	// GetLatestReport returns the most recently generated report for a user.
	GetLatestReport(ctx context.Context, userID string) (*domain.InsightReport, error)
}

// MemoryStore keeps reports in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]map[string]*domain.InsightReport
}

// NewMemoryStore creates an empty in-memory report store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]map[string]*domain.InsightReport)}
}

// SaveReport implements ReportStore.
func (s *MemoryStore) SaveReport(ctx context.Context, report *domain.InsightReport) error {
	if report == nil || report.ReportID == "" || report.UserID == "" {
		return fmt.Errorf("SaveReport: report ID and user ID are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.reports[report.UserID]
	if !ok {
		byID = make(map[string]*domain.InsightReport)
		s.reports[report.UserID] = byID
	}
	byID[report.ReportID] = report
	return nil
}

// GetLatestReport implements ReportStore. Ties on generation time go to the
// lexically greatest report ID so the answer does not depend on map order.
func (s *MemoryStore) GetLatestReport(ctx context.Context, userID string) (*domain.InsightReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.InsightReport
	for _, r := range s.reports[userID] {
		if latest == nil || r.GeneratedAt.After(latest.GeneratedAt) ||
			(r.GeneratedAt.Equal(latest.GeneratedAt) && r.ReportID > latest.ReportID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("GetLatestReport: %w: user %s", ErrNotFound, userID)
	}
	return latest, nil
}

// CachedReportStore fronts another ReportStore with an expiring cache of the
// latest report per user.
type CachedReportStore struct {
	next  ReportStore
	cache *cache.Cache
}

// NewCachedReportStore wraps next with a cache whose entries live for ttl.
func NewCachedReportStore(next ReportStore, ttl time.Duration) *CachedReportStore {
	return &CachedReportStore{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func latestKey(userID string) string {
	return "latest:" + userID
}

// SaveReport writes through to the wrapped store and refreshes the cache
// when the report is newer than the cached one.
func (s *CachedReportStore) SaveReport(ctx context.Context, report *domain.InsightReport) error {
	if err := s.next.SaveReport(ctx, report); err != nil {
		return err
	}

	if cached, ok := s.cache.Get(latestKey(report.UserID)); ok {
		if current := cached.(*domain.InsightReport); current.GeneratedAt.After(report.GeneratedAt) {
			return nil
		}
	}
	s.cache.Set(latestKey(report.UserID), report, cache.DefaultExpiration)
	return nil
}

// GetLatestReport serves from the cache and falls back to the wrapped store.
func (s *CachedReportStore) GetLatestReport(ctx context.Context, userID string) (*domain.InsightReport, error) {
	if cached, ok := s.cache.Get(latestKey(userID)); ok {
		return cached.(*domain.InsightReport), nil
	}

	report, err := s.next.GetLatestReport(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(latestKey(userID), report, cache.DefaultExpiration)
	return report, nil
}

// Invalidate drops the cached report for a user.
func (s *CachedReportStore) Invalidate(userID string) {
	s.cache.Delete(latestKey(userID))
}

var (
	_ ReportStore = (*MemoryStore)(nil)
	_ ReportStore = (*CachedReportStore)(nil)
)
