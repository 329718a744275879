package model

import "time"

// User represents a patient using the engine
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	Timezone  string     `json:"timezone"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Medication represents a recurring medication definition.
// Times are local to the owning user and formatted as HH:MM.
type Medication struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage"`
	Times     []string   `json:"times"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CoversDate reports whether the definition is active on the given calendar day.
// Only the year, month and day of each value are compared.
func (m *Medication) CoversDate(day time.Time) bool {
	if !m.Active {
		return false
	}
	d := DateOf(day)
	if d.Before(DateOf(m.StartDate)) {
		return false
	}
	if m.EndDate != nil && d.After(DateOf(*m.EndDate)) {
		return false
	}
	return true
}

// DoseStatus represents the lifecycle state of a dose instance
type DoseStatus string

const (
	DoseStatusPending  DoseStatus = "pending"
	DoseStatusTaken    DoseStatus = "taken"
	DoseStatusMissed   DoseStatus = "missed"
	DoseStatusArchived DoseStatus = "archived"
)

// DoseInstance is one concrete obligation to take a medication at a point in time
type DoseInstance struct {
	ID             string     `json:"id"`
	MedicationID   string     `json:"medication_id"`
	UserID         string     `json:"user_id"`
	MedicationName string     `json:"medication_name,omitempty"`
	Dosage         string     `json:"dosage,omitempty"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	Status         DoseStatus `json:"status"`
	TakenAt        *time.Time `json:"taken_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Caregiver is an escalation target belonging to a user
type Caregiver struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	Name                 string    `json:"name"`
	Email                *string   `json:"email,omitempty"`
	Phone                *string   `json:"phone,omitempty"`
	Relationship         string    `json:"relationship"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// HasEmail reports whether the caregiver can be reached by email
func (c *Caregiver) HasEmail() bool {
	return c.Email != nil && *c.Email != ""
}

// HasPhone reports whether the caregiver can be reached by SMS
func (c *Caregiver) HasPhone() bool {
	return c.Phone != nil && *c.Phone != ""
}

// NotificationPreference holds per-user notification settings
type NotificationPreference struct {
	UserID           string    `json:"user_id"`
	Reminders        bool      `json:"reminders"`
	MissedDoseAlerts bool      `json:"missed_dose_alerts"`
	AdherenceReports bool      `json:"adherence_reports"`
	Emergency        bool      `json:"emergency"`
	PushEnabled      bool      `json:"push_enabled"`
	EmailEnabled     bool      `json:"email_enabled"`
	SMSEnabled       bool      `json:"sms_enabled"`
	QuietStart       *string   `json:"quiet_start,omitempty"`
	QuietEnd         *string   `json:"quiet_end,omitempty"`
	CriticalOverride bool      `json:"critical_override"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DefaultNotificationPreference returns the settings used when a user has no stored row
func DefaultNotificationPreference(userID string) *NotificationPreference {
	return &NotificationPreference{
		UserID:           userID,
		Reminders:        true,
		MissedDoseAlerts: true,
		AdherenceReports: true,
		Emergency:        true,
		PushEnabled:      true,
		EmailEnabled:     true,
		SMSEnabled:       false,
		CriticalOverride: true,
	}
}

// ChannelEnabled reports whether the user enabled the given channel
func (p *NotificationPreference) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelPush:
		return p.PushEnabled
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	default:
		return false
	}
}

// NotificationCategory is the logical type of a notification
type NotificationCategory string

const (
	CategoryReminder        NotificationCategory = "reminder"
	CategoryMissedDose      NotificationCategory = "missed_dose"
	CategoryAdherenceReport NotificationCategory = "adherence_report"
	CategoryEmergency       NotificationCategory = "emergency"
	CategoryDoseTaken       NotificationCategory = "dose_taken"
)

// Priority orders notifications by urgency
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Channel is a delivery channel
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// AllChannels lists every supported channel in dispatch order
var AllChannels = []Channel{ChannelPush, ChannelEmail, ChannelSMS}

// NotificationStatus represents the lifecycle of a notification
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Skip reasons recorded on notifications and deliveries that were not sent
const (
	SkipReasonQuietHours   = "quiet_hours"
	SkipReasonNoChannels   = "no_channels"
	SkipReasonDoseResolved = "dose_resolved"
	SkipReasonNoContact    = "no_contact"
	SkipReasonDisabled     = "category_disabled"
)

// Notification is a logical event addressed to a user or one of their caregivers
type Notification struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	CaregiverID    *string                `json:"caregiver_id,omitempty"`
	DoseInstanceID *string                `json:"dose_instance_id,omitempty"`
	Category       NotificationCategory   `json:"category"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Priority       Priority               `json:"priority"`
	Channels       []Channel              `json:"channels"`
	Data           map[string]string      `json:"data,omitempty"`
	ScheduledFor   time.Time              `json:"scheduled_for"`
	Status         NotificationStatus     `json:"status"`
	SkipReason     *string                `json:"skip_reason,omitempty"`
	ClaimedAt      *time.Time             `json:"claimed_at,omitempty"`
	SentAt         *time.Time             `json:"sent_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	Deliveries     []NotificationDelivery `json:"deliveries,omitempty"`
}

// DeliveryStatus is the outcome of one channel attempt
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusSkipped   DeliveryStatus = "skipped"
)

// NotificationDelivery records one channel attempt for a notification
type NotificationDelivery struct {
	ID             string         `json:"id"`
	NotificationID string         `json:"notification_id"`
	Channel        Channel        `json:"channel"`
	Status         DeliveryStatus `json:"status"`
	Attempts       int            `json:"attempts"`
	LastError      *string        `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// AdherenceWindow is a derived adherence summary over [From, To)
type AdherenceWindow struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Scheduled  int       `json:"scheduled"`
	Taken      int       `json:"taken"`
	Missed     int       `json:"missed"`
	Pending    int       `json:"pending"`
	Percentage float64   `json:"percentage"`
}

// AdherenceReport is a persisted periodic adherence summary
type AdherenceReport struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Scheduled   int       `json:"scheduled"`
	Taken       int       `json:"taken"`
	Missed      int       `json:"missed"`
	Percentage  float64   `json:"percentage"`
	Streak      int       `json:"streak"`
	FilePath    string    `json:"file_path"`
	GeneratedAt time.Time `json:"generated_at"`
	CreatedAt   time.Time `json:"created_at"`
}
