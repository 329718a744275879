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

const medicationColumns = `
	id, user_id, name, dosage, times,
	start_date, end_date, notes, active,
	created_at, updated_at`

// MedicationRepository manages medication definitions
type MedicationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationRepository creates a new MedicationRepository
func NewMedicationRepository(db *pgxpool.Pool, logger *zap.Logger) *MedicationRepository {
	return &MedicationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new medication definition
func (r *MedicationRepository) Create(ctx context.Context, med *model.Medication) error {
	query := `
		INSERT INTO medications (
			id, user_id, name, dosage, times,
			start_date, end_date, notes, active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`

	_, err := r.db.Exec(ctx, query,
		med.ID,
		med.UserID,
		med.Name,
		med.Dosage,
		med.Times,
		med.StartDate,
		med.EndDate,
		med.Notes,
		med.Active,
	)

	if err != nil {
		r.logger.Error("failed to create medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
			zap.String("user_id", med.UserID),
		)
		return fmt.Errorf("failed to create medication: %w", err)
	}

	return nil
}

// FindByUserID retrieves all medications for a user, newest start date first
func (r *MedicationRepository) FindByUserID(ctx context.Context, userID string) ([]model.Medication, error) {
	query := `SELECT ` + medicationColumns + `
		FROM medications
		WHERE user_id = $1
		ORDER BY start_date DESC
	`
	return r.query(ctx, query, userID)
}

// FindActiveByUserID retrieves the active medications the schedule generator expands
func (r *MedicationRepository) FindActiveByUserID(ctx context.Context, userID string) ([]model.Medication, error) {
	query := `SELECT ` + medicationColumns + `
		FROM medications
		WHERE user_id = $1 AND active
		ORDER BY name
	`
	return r.query(ctx, query, userID)
}

func (r *MedicationRepository) query(ctx context.Context, query string, args ...any) ([]model.Medication, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to find medications", zap.Error(err))
		return nil, fmt.Errorf("failed to find medications: %w", err)
	}
	defer rows.Close()

	var medications []model.Medication
	for rows.Next() {
		var med model.Medication
		if err := scanMedication(rows, &med); err != nil {
			r.logger.Error("failed to scan medication", zap.Error(err))
			continue
		}
		medications = append(medications, med)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medications", zap.Error(err))
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}

	return medications, nil
}

// FindByID retrieves a medication by ID
func (r *MedicationRepository) FindByID(ctx context.Context, medicationID string) (*model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`

	var med model.Medication
	err := scanMedication(r.db.QueryRow(ctx, query, medicationID), &med)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("medication %s: %w", medicationID, ErrNotFound)
		}
		r.logger.Error("failed to find medication", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}

	return &med, nil
}

// Update updates an existing medication definition. Dose instances already
// generated are left untouched.
func (r *MedicationRepository) Update(ctx context.Context, med *model.Medication) error {
	query := `
		UPDATE medications
		SET name = $1, dosage = $2, times = $3,
		    start_date = $4, end_date = $5, notes = $6,
		    active = $7, updated_at = NOW()
		WHERE id = $8
	`

	result, err := r.db.Exec(ctx, query,
		med.Name,
		med.Dosage,
		med.Times,
		med.StartDate,
		med.EndDate,
		med.Notes,
		med.Active,
		med.ID,
	)

	if err != nil {
		r.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
		return fmt.Errorf("failed to update medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", med.ID, ErrNotFound)
	}

	return nil
}

// Deactivate stops future generation for a medication. Rows are kept so that
// existing dose instances keep their reference.
func (r *MedicationRepository) Deactivate(ctx context.Context, medicationID string) error {
	query := `UPDATE medications SET active = false, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, medicationID)
	if err != nil {
		r.logger.Error("failed to deactivate medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to deactivate medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", medicationID, ErrNotFound)
	}

	return nil
}

func scanMedication(row pgx.Row, med *model.Medication) error {
	return row.Scan(
		&med.ID,
		&med.UserID,
		&med.Name,
		&med.Dosage,
		&med.Times,
		&med.StartDate,
		&med.EndDate,
		&med.Notes,
		&med.Active,
		&med.CreatedAt,
		&med.UpdatedAt,
	)
}
