package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// reportRow stores a report as a JSON payload keyed for latest-per-user lookups.
type reportRow struct {
	ReportID         string    `gorm:"primaryKey"`
	UserID           string    `gorm:"index:idx_user_generated,priority:1;not null"`
	GeneratedAt      time.Time `gorm:"index:idx_user_generated,priority:2;not null"`
	TransactionCount int
	AnomalyCount     int
	Payload          string `gorm:"type:text;not null"`
}

func (reportRow) TableName() string {
	return "insight_reports"
}

// Store is a ReportStore backed by a local SQLite database.
type Store struct {
	db *gorm.DB
}

// Open connects to the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&reportRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveReport implements store.ReportStore. Saving an existing report ID
// replaces the row.
func (s *Store) SaveReport(ctx context.Context, report *domain.InsightReport) error {
	if report == nil || report.ReportID == "" || report.UserID == "" {
		return fmt.Errorf("SaveReport: report ID and user ID are required")
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("SaveReport: encode: %w", err)
	}

	row := reportRow{
		ReportID:         report.ReportID,
		UserID:           report.UserID,
		GeneratedAt:      report.GeneratedAt.UTC(),
		TransactionCount: report.TransactionCount,
		AnomalyCount:     len(report.Anomalies),
		Payload:          string(payload),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("SaveReport: %w", err)
	}
	return nil
}

// GetLatestReport implements store.ReportStore.
func (s *Store) GetLatestReport(ctx context.Context, userID string) (*domain.InsightReport, error) {
	var row reportRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("generated_at DESC").
		Order("report_id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("GetLatestReport: %w: user %s", store.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetLatestReport: %w", err)
	}

	var report domain.InsightReport
	if err := json.Unmarshal([]byte(row.Payload), &report); err != nil {
		return nil, fmt.Errorf("GetLatestReport: decode report %s: %w", row.ReportID, err)
	}
	return &report, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ store.ReportStore = (*Store)(nil)
