package model

import "time"

// Domain event types published when dose state changes
const (
	EventDoseMissed      = "dose.missed"
	EventDoseTaken       = "dose.taken"
	EventEmergency       = "user.emergency"
	EventReportGenerated = "report.generated"
)

// DomainEvent is an outward notification of a state change in the engine
type DomainEvent struct {
	Type         string            `json:"type"`
	UserID       string            `json:"user_id"`
	DoseID       string            `json:"dose_id,omitempty"`
	MedicationID string            `json:"medication_id,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
	Data         map[string]string `json:"data,omitempty"`
}
