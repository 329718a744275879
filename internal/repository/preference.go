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

// PreferenceRepository stores notification preferences
type PreferenceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPreferenceRepository creates a new PreferenceRepository
func NewPreferenceRepository(db *pgxpool.Pool, logger *zap.Logger) *PreferenceRepository {
	return &PreferenceRepository{
		db:     db,
		logger: logger,
	}
}

// FindByUserID returns the stored preferences or ErrNotFound
func (r *PreferenceRepository) FindByUserID(ctx context.Context, userID string) (*model.NotificationPreference, error) {
	query := `
		SELECT user_id, reminders, missed_dose_alerts, adherence_reports, emergency,
		       push_enabled, email_enabled, sms_enabled,
		       quiet_start, quiet_end, critical_override, updated_at
		FROM notification_preferences
		WHERE user_id = $1
	`

	var p model.NotificationPreference
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Reminders,
		&p.MissedDoseAlerts,
		&p.AdherenceReports,
		&p.Emergency,
		&p.PushEnabled,
		&p.EmailEnabled,
		&p.SMSEnabled,
		&p.QuietStart,
		&p.QuietEnd,
		&p.CriticalOverride,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("preferences for %s: %w", userID, ErrNotFound)
		}
		r.logger.Error("failed to find preferences", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to find preferences: %w", err)
	}

	return &p, nil
}

// Upsert creates or replaces a user's preferences
func (r *PreferenceRepository) Upsert(ctx context.Context, p *model.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences (
			user_id, reminders, missed_dose_alerts, adherence_reports, emergency,
			push_enabled, email_enabled, sms_enabled,
			quiet_start, quiet_end, critical_override, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			reminders = EXCLUDED.reminders,
			missed_dose_alerts = EXCLUDED.missed_dose_alerts,
			adherence_reports = EXCLUDED.adherence_reports,
			emergency = EXCLUDED.emergency,
			push_enabled = EXCLUDED.push_enabled,
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			quiet_start = EXCLUDED.quiet_start,
			quiet_end = EXCLUDED.quiet_end,
			critical_override = EXCLUDED.critical_override,
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		p.UserID,
		p.Reminders,
		p.MissedDoseAlerts,
		p.AdherenceReports,
		p.Emergency,
		p.PushEnabled,
		p.EmailEnabled,
		p.SMSEnabled,
		p.QuietStart,
		p.QuietEnd,
		p.CriticalOverride,
	)
	if err != nil {
		r.logger.Error("failed to upsert preferences", zap.Error(err), zap.String("user_id", p.UserID))
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}

	return nil
}
