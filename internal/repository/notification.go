package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

const notificationColumns = `
	id, user_id, caregiver_id, dose_instance_id, category, title, message,
	priority, channels, data, scheduled_for, status, skip_reason,
	claimed_at, sent_at, created_at, updated_at`

// NotificationRepository stores notifications and their delivery attempts
type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a notification with its current outcome
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, caregiver_id, dose_instance_id, category, title, message,
			priority, channels, data, scheduled_for, status, skip_reason,
			claimed_at, sent_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
	`

	_, err := r.db.Exec(ctx, query, notificationArgs(n)...)
	if err != nil {
		r.logger.Error("failed to create notification",
			zap.Error(err),
			zap.String("user_id", n.UserID),
			zap.String("category", string(n.Category)),
		)
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// CreateReminder stores a pending reminder for a dose. It returns false when
// the dose already has one.
func (r *NotificationRepository) CreateReminder(ctx context.Context, n *model.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (
			id, user_id, caregiver_id, dose_instance_id, category, title, message,
			priority, channels, data, scheduled_for, status, skip_reason,
			claimed_at, sent_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		ON CONFLICT (dose_instance_id, category) WHERE category = 'reminder' AND caregiver_id IS NULL
		DO NOTHING
	`

	result, err := r.db.Exec(ctx, query, notificationArgs(n)...)
	if err != nil {
		r.logger.Error("failed to create reminder", zap.Error(err), zap.String("user_id", n.UserID))
		return false, fmt.Errorf("failed to create reminder: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// ClaimDueReminders marks up to limit unclaimed pending reminders scheduled at
// or before now as claimed and returns them. Concurrent callers never receive
// the same row.
func (r *NotificationRepository) ClaimDueReminders(ctx context.Context, userID string, now time.Time, limit int) ([]model.Notification, error) {
	query := `
		UPDATE notifications
		SET claimed_at = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE category = 'reminder'
			  AND status = 'pending'
			  AND claimed_at IS NULL
			  AND scheduled_for <= $1
			  AND ($2 = '' OR user_id::text = $2)
			ORDER BY scheduled_for
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationColumns

	return r.query(ctx, query, now, userID, limit)
}

// FindByUserID returns the most recent notifications addressed to a user or
// their caregivers
func (r *NotificationRepository) FindByUserID(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY scheduled_for DESC
		LIMIT $2
	`
	return r.query(ctx, query, userID, limit)
}

// UpdateOutcome persists status, skip reason, channels and sent time
func (r *NotificationRepository) UpdateOutcome(ctx context.Context, n *model.Notification) error {
	query := `
		UPDATE notifications
		SET status = $2, skip_reason = $3, sent_at = $4, channels = $5, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, n.ID, n.Status, n.SkipReason, n.SentAt, channelStrings(n.Channels))
	if err != nil {
		r.logger.Error("failed to update notification", zap.Error(err), zap.String("notification_id", n.ID))
		return fmt.Errorf("failed to update notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", n.ID, ErrNotFound)
	}

	return nil
}

// CreateDelivery records one channel attempt
func (r *NotificationRepository) CreateDelivery(ctx context.Context, d *model.NotificationDelivery) error {
	query := `
		INSERT INTO notification_deliveries (
			id, notification_id, channel, status, attempts, last_error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := r.db.Exec(ctx, query,
		d.ID,
		d.NotificationID,
		string(d.Channel),
		string(d.Status),
		d.Attempts,
		d.LastError,
	)
	if err != nil {
		r.logger.Error("failed to create delivery",
			zap.Error(err),
			zap.String("notification_id", d.NotificationID),
			zap.String("channel", string(d.Channel)),
		)
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	return nil
}

func (r *NotificationRepository) query(ctx context.Context, query string, args ...any) ([]model.Notification, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			r.logger.Error("failed to scan notification", zap.Error(err))
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating notifications", zap.Error(err))
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

func notificationArgs(n *model.Notification) []any {
	return []any{
		n.ID,
		n.UserID,
		n.CaregiverID,
		n.DoseInstanceID,
		string(n.Category),
		n.Title,
		n.Message,
		string(n.Priority),
		channelStrings(n.Channels),
		n.Data,
		n.ScheduledFor,
		string(n.Status),
		n.SkipReason,
		n.ClaimedAt,
		n.SentAt,
	}
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	var category, priority, status string
	var channels []string
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.CaregiverID,
		&n.DoseInstanceID,
		&category,
		&n.Title,
		&n.Message,
		&priority,
		&channels,
		&n.Data,
		&n.ScheduledFor,
		&status,
		&n.SkipReason,
		&n.ClaimedAt,
		&n.SentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Category = model.NotificationCategory(category)
	n.Priority = model.Priority(priority)
	n.Status = model.NotificationStatus(status)
	for _, ch := range channels {
		n.Channels = append(n.Channels, model.Channel(ch))
	}

	return &n, nil
}

func channelStrings(channels []model.Channel) []string {
	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		out = append(out, string(ch))
	}
	return out
}
