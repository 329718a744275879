// Package audit records who changed a medication, a dose or a caregiver
// contact, both as a structured log line and as an audit_logs row.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OperationType is the kind of change an entry records
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
)

// ResourceType is the kind of record that changed
type ResourceType string

const (
	ResourceMedication   ResourceType = "medication"
	ResourceDoseInstance ResourceType = "dose_instance"
	ResourceCaregiver    ResourceType = "caregiver"
)

// idField is the log field the resource id is written under
func (r ResourceType) idField() string {
	switch r {
	case ResourceMedication:
		return "medication_id"
	case ResourceDoseInstance:
		return "dose_id"
	case ResourceCaregiver:
		return "caregiver_id"
	default:
		return "resource_id"
	}
}

// AuditLog is one recorded change. Changes holds the fields that moved,
// e.g. a dose's previous_status and status.
type AuditLog struct {
	UserID        string
	OperationType OperationType
	ResourceType  ResourceType
	ResourceID    string
	Timestamp     time.Time
	IPAddress     string
	UserAgent     string
	Changes       map[string]string
}

// Logger writes audit entries
type Logger struct {
	db     *pgxpool.Pool
	now    func() time.Time
	logger *zap.Logger
}

// NewLogger creates a new audit Logger
func NewLogger(db *pgxpool.Pool, logger *zap.Logger) *Logger {
	return &Logger{
		db:     db,
		now:    time.Now,
		logger: logger,
	}
}

// Log records entry. The log line is written even when the insert fails.
func (l *Logger) Log(ctx context.Context, entry AuditLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	l.logger.Info("audit", entryFields(entry)...)

	_, err := l.db.Exec(ctx, `
		INSERT INTO audit_logs (
			user_id, operation_type, resource_type, resource_id,
			timestamp, ip_address, user_agent, additional_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.UserID,
		string(entry.OperationType),
		string(entry.ResourceType),
		entry.ResourceID,
		entry.Timestamp,
		entry.IPAddress,
		entry.UserAgent,
		entry.Changes,
	)
	if err != nil {
		l.logger.Error("failed to write audit log",
			zap.Error(err),
			zap.String("user_id", entry.UserID),
			zap.String(entry.ResourceType.idField(), entry.ResourceID),
		)
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

func entryFields(entry AuditLog) []zap.Field {
	fields := []zap.Field{
		zap.String("user_id", entry.UserID),
		zap.String("operation", string(entry.OperationType)),
		zap.String(entry.ResourceType.idField(), entry.ResourceID),
		zap.Time("at", entry.Timestamp),
	}

	keys := make([]string, 0, len(entry.Changes))
	for k := range entry.Changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.String(k, entry.Changes[k]))
	}
	return fields
}
