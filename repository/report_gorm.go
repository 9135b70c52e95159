package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/AzielCF/az-sheetboard/domains/report"
)

type reportRunModel struct {
	ID             string `gorm:"primaryKey"`
	ServerID       string
	SheetID        string `gorm:"index"`
	RowCount       int
	CacheHit       bool
	Partial        bool
	ProcessedCount int
	Strategy       string
	DurationMs     int64
	CreatedAt      time.Time `gorm:"index"`
}

func (reportRunModel) TableName() string { return "report_runs" }

// ReportRunRepository persists load-run summaries so operators can audit how
// the optimization layer behaved over time.
type ReportRunRepository struct {
	db *gorm.DB
}

func NewReportRunRepository(db *gorm.DB) (*ReportRunRepository, error) {
	if err := db.AutoMigrate(&reportRunModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate report_runs: %w", err)
	}
	return &ReportRunRepository{db: db}, nil
}

func (r *ReportRunRepository) Save(ctx context.Context, run *report.RunSummary) error {
	model := reportRunModel{
		ID:             run.ID,
		ServerID:       run.ServerID,
		SheetID:        run.SheetID,
		RowCount:       run.RowCount,
		CacheHit:       run.CacheHit,
		Partial:        run.Partial,
		ProcessedCount: run.ProcessedCount,
		Strategy:       run.Strategy,
		DurationMs:     run.Duration.Milliseconds(),
		CreatedAt:      run.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

func (r *ReportRunRepository) Recent(ctx context.Context, limit int) ([]report.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []reportRunModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to query run summaries: %w", err)
	}

	out := make([]report.RunSummary, 0, len(models))
	for _, m := range models {
		out = append(out, report.RunSummary{
			ID:             m.ID,
			ServerID:       m.ServerID,
			SheetID:        m.SheetID,
			RowCount:       m.RowCount,
			CacheHit:       m.CacheHit,
			Partial:        m.Partial,
			ProcessedCount: m.ProcessedCount,
			Strategy:       m.Strategy,
			Duration:       time.Duration(m.DurationMs) * time.Millisecond,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, nil
}
