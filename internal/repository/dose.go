package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

const doseColumns = `
	d.id, d.medication_id, d.user_id, m.name, m.dosage,
	d.scheduled_time, d.status, d.taken_at, d.created_at, d.updated_at`

// DedupBucket maps a scheduled time onto the minute bucket backing the
// (medication_id, dedup_bucket) uniqueness constraint
func DedupBucket(t time.Time) int64 {
	return t.Unix() / 60
}

// DoseRepository stores dose instances
type DoseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewDoseRepository creates a new DoseRepository
func NewDoseRepository(db *pgxpool.Pool, logger *zap.Logger) *DoseRepository {
	return &DoseRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a pending dose instance. It returns false without error when
// a dose for the same medication and minute already exists.
func (r *DoseRepository) Insert(ctx context.Context, dose *model.DoseInstance) (bool, error) {
	query := `
		INSERT INTO dose_instances (
			id, medication_id, user_id, scheduled_time, dedup_bucket,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (medication_id, dedup_bucket) DO NOTHING
	`

	result, err := r.db.Exec(ctx, query,
		dose.ID,
		dose.MedicationID,
		dose.UserID,
		dose.ScheduledTime,
		DedupBucket(dose.ScheduledTime),
		string(dose.Status),
	)
	if err != nil {
		r.logger.Error("failed to insert dose instance",
			zap.Error(err),
			zap.String("medication_id", dose.MedicationID),
			zap.Time("scheduled_time", dose.ScheduledTime),
		)
		return false, fmt.Errorf("failed to insert dose instance: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// FindByID retrieves a dose instance with its medication name and dosage
func (r *DoseRepository) FindByID(ctx context.Context, doseID string) (*model.DoseInstance, error) {
	query := `SELECT ` + doseColumns + `
		FROM dose_instances d
		JOIN medications m ON m.id = d.medication_id
		WHERE d.id = $1
	`

	var dose model.DoseInstance
	if err := scanDose(r.db.QueryRow(ctx, query, doseID), &dose); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("dose %s: %w", doseID, ErrNotFound)
		}
		r.logger.Error("failed to find dose instance", zap.Error(err), zap.String("dose_id", doseID))
		return nil, fmt.Errorf("failed to find dose instance: %w", err)
	}

	return &dose, nil
}

// FindByUserInRange returns the user's dose instances scheduled in [from, to)
func (r *DoseRepository) FindByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]model.DoseInstance, error) {
	query := `SELECT ` + doseColumns + `
		FROM dose_instances d
		JOIN medications m ON m.id = d.medication_id
		WHERE d.user_id = $1 AND d.scheduled_time >= $2 AND d.scheduled_time < $3
		ORDER BY d.scheduled_time, m.name
	`
	return r.query(ctx, query, userID, from, to)
}

// FindPendingBefore returns pending doses scheduled strictly before cutoff,
// oldest first. An empty userID scans every user.
func (r *DoseRepository) FindPendingBefore(ctx context.Context, userID string, cutoff time.Time, limit int) ([]model.DoseInstance, error) {
	query := `SELECT ` + doseColumns + `
		FROM dose_instances d
		JOIN medications m ON m.id = d.medication_id
		WHERE d.status = 'pending'
		  AND d.scheduled_time < $1
		  AND ($2 = '' OR d.user_id::text = $2)
		ORDER BY d.scheduled_time
		LIMIT $3
	`
	return r.query(ctx, query, cutoff, userID, limit)
}

// FindUpcoming returns pending doses scheduled in [from, to)
func (r *DoseRepository) FindUpcoming(ctx context.Context, userID string, from, to time.Time) ([]model.DoseInstance, error) {
	query := `SELECT ` + doseColumns + `
		FROM dose_instances d
		JOIN medications m ON m.id = d.medication_id
		WHERE d.user_id = $1 AND d.status = 'pending'
		  AND d.scheduled_time >= $2 AND d.scheduled_time < $3
		ORDER BY d.scheduled_time
	`
	return r.query(ctx, query, userID, from, to)
}

// MarkMissed moves a pending dose to missed. It reports false when the dose
// was no longer pending.
func (r *DoseRepository) MarkMissed(ctx context.Context, doseID string) (bool, error) {
	query := `
		UPDATE dose_instances
		SET status = 'missed', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.Exec(ctx, query, doseID)
	if err != nil {
		r.logger.Error("failed to mark dose missed", zap.Error(err), zap.String("dose_id", doseID))
		return false, fmt.Errorf("failed to mark dose missed: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// MarkTaken moves a pending or missed dose to taken. It reports false when
// the dose was already taken or archived.
func (r *DoseRepository) MarkTaken(ctx context.Context, doseID string, takenAt time.Time) (bool, error) {
	query := `
		UPDATE dose_instances
		SET status = 'taken', taken_at = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'missed')
	`

	result, err := r.db.Exec(ctx, query, doseID, takenAt)
	if err != nil {
		r.logger.Error("failed to mark dose taken", zap.Error(err), zap.String("dose_id", doseID))
		return false, fmt.Errorf("failed to mark dose taken: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// ArchiveMissedBefore archives missed doses scheduled before cutoff and
// returns the number of rows archived
func (r *DoseRepository) ArchiveMissedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		UPDATE dose_instances
		SET status = 'archived', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM dose_instances
			WHERE status = 'missed' AND scheduled_time < $1
			ORDER BY scheduled_time
			LIMIT $2
		) AND status = 'missed'
	`

	result, err := r.db.Exec(ctx, query, cutoff, limit)
	if err != nil {
		r.logger.Error("failed to archive missed doses", zap.Error(err), zap.Time("cutoff", cutoff))
		return 0, fmt.Errorf("failed to archive missed doses: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *DoseRepository) query(ctx context.Context, query string, args ...any) ([]model.DoseInstance, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query dose instances", zap.Error(err))
		return nil, fmt.Errorf("failed to query dose instances: %w", err)
	}
	defer rows.Close()

	var doses []model.DoseInstance
	for rows.Next() {
		var dose model.DoseInstance
		if err := scanDose(rows, &dose); err != nil {
			r.logger.Error("failed to scan dose instance", zap.Error(err))
			return nil, fmt.Errorf("failed to scan dose instance: %w", err)
		}
		doses = append(doses, dose)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating dose instances", zap.Error(err))
		return nil, fmt.Errorf("error iterating dose instances: %w", err)
	}

	return doses, nil
}

func scanDose(row pgx.Row, dose *model.DoseInstance) error {
	return row.Scan(
		&dose.ID,
		&dose.MedicationID,
		&dose.UserID,
		&dose.MedicationName,
		&dose.Dosage,
		&dose.ScheduledTime,
		&dose.Status,
		&dose.TakenAt,
		&dose.CreatedAt,
		&dose.UpdatedAt,
	)
}
