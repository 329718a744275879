package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/security"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// CaregiverRepository stores caregivers. Contact fields are encrypted at rest.
type CaregiverRepository struct {
	db        *pgxpool.Pool
	encryptor *security.Encryptor
	logger    *zap.Logger
}

// NewCaregiverRepository creates a new CaregiverRepository
func NewCaregiverRepository(db *pgxpool.Pool, encryptor *security.Encryptor, logger *zap.Logger) *CaregiverRepository {
	return &CaregiverRepository{
		db:        db,
		encryptor: encryptor,
		logger:    logger,
	}
}

// Create stores a caregiver, sealing email and phone
func (r *CaregiverRepository) Create(ctx context.Context, c *model.Caregiver) error {
	email, err := r.encryptor.EncryptOptional(c.Email)
	if err != nil {
		return fmt.Errorf("failed to encrypt caregiver email: %w", err)
	}
	phone, err := r.encryptor.EncryptOptional(c.Phone)
	if err != nil {
		return fmt.Errorf("failed to encrypt caregiver phone: %w", err)
	}

	query := `
		INSERT INTO caregivers (
			id, user_id, name, email_encrypted, phone_encrypted,
			relationship, notifications_enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`

	_, err = r.db.Exec(ctx, query,
		c.ID,
		c.UserID,
		c.Name,
		email,
		phone,
		c.Relationship,
		c.NotificationsEnabled,
	)
	if err != nil {
		r.logger.Error("failed to create caregiver",
			zap.Error(err),
			zap.String("caregiver_id", c.ID),
			zap.String("user_id", c.UserID),
		)
		return fmt.Errorf("failed to create caregiver: %w", err)
	}

	return nil
}

// FindEnabledByUserID returns the caregivers of a user that accept notifications
func (r *CaregiverRepository) FindEnabledByUserID(ctx context.Context, userID string) ([]model.Caregiver, error) {
	query := `
		SELECT id, user_id, name, email_encrypted, phone_encrypted,
		       relationship, notifications_enabled, created_at, updated_at
		FROM caregivers
		WHERE user_id = $1 AND notifications_enabled
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to find caregivers", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to find caregivers: %w", err)
	}
	defer rows.Close()

	var caregivers []model.Caregiver
	for rows.Next() {
		var c model.Caregiver
		var email, phone *string
		if err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.Name,
			&email,
			&phone,
			&c.Relationship,
			&c.NotificationsEnabled,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			r.logger.Error("failed to scan caregiver", zap.Error(err))
			continue
		}

		if c.Email, err = r.encryptor.DecryptOptional(email); err != nil {
			r.logger.Error("failed to decrypt caregiver email", zap.Error(err), zap.String("caregiver_id", c.ID))
			c.Email = nil
		}
		if c.Phone, err = r.encryptor.DecryptOptional(phone); err != nil {
			r.logger.Error("failed to decrypt caregiver phone", zap.Error(err), zap.String("caregiver_id", c.ID))
			c.Phone = nil
		}

		caregivers = append(caregivers, c)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating caregivers", zap.Error(err))
		return nil, fmt.Errorf("error iterating caregivers: %w", err)
	}

	return caregivers, nil
}
