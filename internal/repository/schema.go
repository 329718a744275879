package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row looked up by key does not exist
var ErrNotFound = errors.New("not found")

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		phone VARCHAR(64),
		timezone VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS medications (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id),
		name VARCHAR(255) NOT NULL,
		dosage VARCHAR(255) NOT NULL,
		times TEXT[] NOT NULL DEFAULT '{}',
		start_date DATE NOT NULL,
		end_date DATE,
		notes TEXT,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_medications_user_active ON medications (user_id) WHERE active`,
	`CREATE TABLE IF NOT EXISTS dose_instances (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		medication_id UUID NOT NULL REFERENCES medications(id),
		user_id UUID NOT NULL REFERENCES users(id),
		scheduled_time TIMESTAMPTZ NOT NULL,
		dedup_bucket BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'taken', 'missed', 'archived')),
		taken_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_dose_medication_bucket UNIQUE (medication_id, dedup_bucket)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dose_user_time ON dose_instances (user_id, scheduled_time)`,
	`CREATE INDEX IF NOT EXISTS idx_dose_pending_time ON dose_instances (scheduled_time) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS caregivers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id),
		name VARCHAR(255) NOT NULL,
		email_encrypted TEXT,
		phone_encrypted TEXT,
		relationship VARCHAR(64) NOT NULL DEFAULT '',
		notifications_enabled BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notification_preferences (
		user_id UUID PRIMARY KEY REFERENCES users(id),
		reminders BOOLEAN NOT NULL DEFAULT true,
		missed_dose_alerts BOOLEAN NOT NULL DEFAULT true,
		adherence_reports BOOLEAN NOT NULL DEFAULT true,
		emergency BOOLEAN NOT NULL DEFAULT true,
		push_enabled BOOLEAN NOT NULL DEFAULT true,
		email_enabled BOOLEAN NOT NULL DEFAULT true,
		sms_enabled BOOLEAN NOT NULL DEFAULT false,
		quiet_start VARCHAR(5),
		quiet_end VARCHAR(5),
		critical_override BOOLEAN NOT NULL DEFAULT true,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id),
		caregiver_id UUID REFERENCES caregivers(id),
		dose_instance_id UUID REFERENCES dose_instances(id),
		category VARCHAR(32) NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		priority VARCHAR(16) NOT NULL,
		channels TEXT[] NOT NULL DEFAULT '{}',
		data JSONB,
		scheduled_for TIMESTAMPTZ NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'sent', 'failed')),
		skip_reason VARCHAR(32),
		claimed_at TIMESTAMPTZ,
		sent_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_notifications_reminder
		ON notifications (dose_instance_id, category)
		WHERE category = 'reminder' AND caregiver_id IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_due
		ON notifications (scheduled_for) WHERE status = 'pending' AND claimed_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS notification_deliveries (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		notification_id UUID NOT NULL REFERENCES notifications(id),
		channel VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL CHECK (status IN ('delivered', 'failed', 'skipped')),
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS adherence_reports (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id),
		period_start TIMESTAMPTZ NOT NULL,
		period_end TIMESTAMPTZ NOT NULL,
		scheduled INTEGER NOT NULL,
		taken INTEGER NOT NULL,
		missed INTEGER NOT NULL,
		percentage DOUBLE PRECISION NOT NULL,
		streak INTEGER NOT NULL,
		file_path VARCHAR(500) NOT NULL DEFAULT '',
		generated_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id VARCHAR(64) NOT NULL,
		operation_type VARCHAR(16) NOT NULL,
		resource_type VARCHAR(64) NOT NULL,
		resource_id VARCHAR(64) NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		ip_address VARCHAR(64),
		user_agent TEXT,
		additional_data JSONB
	)`,
}

// Migrate creates the tables and indexes the engine relies on
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
