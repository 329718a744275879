package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// ReportRepository stores generated adherence reports
type ReportRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *pgxpool.Pool, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Save saves a report record
func (r *ReportRepository) Save(ctx context.Context, report *model.AdherenceReport) error {
	query := `
		INSERT INTO adherence_reports (
			id, user_id, period_start, period_end,
			scheduled, taken, missed, percentage, streak,
			file_path, generated_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`

	_, err := r.db.Exec(ctx, query,
		report.ID,
		report.UserID,
		report.PeriodStart,
		report.PeriodEnd,
		report.Scheduled,
		report.Taken,
		report.Missed,
		report.Percentage,
		report.Streak,
		report.FilePath,
		report.GeneratedAt,
	)

	if err != nil {
		r.logger.Error("failed to save report",
			zap.Error(err),
			zap.String("report_id", report.ID),
			zap.String("user_id", report.UserID),
		)
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// FindByID retrieves a report by ID
func (r *ReportRepository) FindByID(ctx context.Context, reportID string) (*model.AdherenceReport, error) {
	query := `
		SELECT
			id, user_id, period_start, period_end,
			scheduled, taken, missed, percentage, streak,
			file_path, generated_at, created_at
		FROM adherence_reports
		WHERE id = $1
	`

	var report model.AdherenceReport
	err := r.db.QueryRow(ctx, query, reportID).Scan(
		&report.ID,
		&report.UserID,
		&report.PeriodStart,
		&report.PeriodEnd,
		&report.Scheduled,
		&report.Taken,
		&report.Missed,
		&report.Percentage,
		&report.Streak,
		&report.FilePath,
		&report.GeneratedAt,
		&report.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
		}
		r.logger.Error("failed to get report", zap.Error(err), zap.String("report_id", reportID))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &report, nil
}
