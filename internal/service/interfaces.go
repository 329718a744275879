package service

import (
	"context"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/pdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
)

// UserStore defines the interface for user lookups
type UserStore interface {
	FindByID(ctx context.Context, userID string) (*model.User, error)
	ListWithActiveMedications(ctx context.Context) ([]string, error)
}

// MedicationStore defines the interface for medication definition access
type MedicationStore interface {
	Create(ctx context.Context, med *model.Medication) error
	FindByID(ctx context.Context, medicationID string) (*model.Medication, error)
	FindByUserID(ctx context.Context, userID string) ([]model.Medication, error)
	FindActiveByUserID(ctx context.Context, userID string) ([]model.Medication, error)
	Update(ctx context.Context, med *model.Medication) error
	Deactivate(ctx context.Context, medicationID string) error
}

// DoseStore defines the interface for dose instance access
type DoseStore interface {
	Insert(ctx context.Context, dose *model.DoseInstance) (bool, error)
	FindByID(ctx context.Context, doseID string) (*model.DoseInstance, error)
	FindByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]model.DoseInstance, error)
	FindPendingBefore(ctx context.Context, userID string, cutoff time.Time, limit int) ([]model.DoseInstance, error)
	FindUpcoming(ctx context.Context, userID string, from, to time.Time) ([]model.DoseInstance, error)
	MarkMissed(ctx context.Context, doseID string) (bool, error)
	MarkTaken(ctx context.Context, doseID string, takenAt time.Time) (bool, error)
	ArchiveMissedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// CaregiverStore defines the interface for caregiver access
type CaregiverStore interface {
	Create(ctx context.Context, caregiver *model.Caregiver) error
	FindEnabledByUserID(ctx context.Context, userID string) ([]model.Caregiver, error)
}

// PreferenceStore defines the interface for notification preference access
type PreferenceStore interface {
	FindByUserID(ctx context.Context, userID string) (*model.NotificationPreference, error)
	Upsert(ctx context.Context, pref *model.NotificationPreference) error
}

// NotificationStore defines the interface for notification persistence
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	CreateReminder(ctx context.Context, n *model.Notification) (bool, error)
	ClaimDueReminders(ctx context.Context, userID string, now time.Time, limit int) ([]model.Notification, error)
	FindByUserID(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	UpdateOutcome(ctx context.Context, n *model.Notification) error
	CreateDelivery(ctx context.Context, d *model.NotificationDelivery) error
}

// ReportStore defines the interface for adherence report records
type ReportStore interface {
	Save(ctx context.Context, report *model.AdherenceReport) error
	FindByID(ctx context.Context, reportID string) (*model.AdherenceReport, error)
}

// EventPublisher emits domain events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event model.DomainEvent) error
}

// Auditor records mutations for the audit trail
type Auditor interface {
	Log(ctx context.Context, entry audit.AuditLog) error
}

// PushSender delivers push notifications to a user's devices
type PushSender interface {
	Send(ctx context.Context, userID, title, body string, priority model.Priority, data map[string]string) error
}

// EmailSender delivers email
type EmailSender interface {
	Send(ctx context.Context, address, subject, html string) error
}

// SMSSender delivers text messages
type SMSSender interface {
	Send(ctx context.Context, phone, text string) error
}

// attemptCounter is implemented by adapter errors that know how many provider
// calls a failed delivery took
type attemptCounter interface {
	Attempts() int
}

// ReportStorage stores rendered report documents
type ReportStorage interface {
	UploadPDF(ctx context.Context, filename string, data []byte) (string, error)
	DownloadPDF(ctx context.Context, blobName string) ([]byte, error)
}

// ReportRenderer renders an adherence report document
type ReportRenderer interface {
	Generate(data *pdf.ReportData) ([]byte, error)
}
