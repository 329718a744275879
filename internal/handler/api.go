package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// Error codes
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL_ERROR"
)

// AdherenceReader computes adherence summaries
type AdherenceReader interface {
	ComputeAdherence(ctx context.Context, userID string, from, to time.Time) (*model.AdherenceWindow, error)
	Today(ctx context.Context, userID string) (*model.AdherenceWindow, error)
	ThisWeek(ctx context.Context, userID string) (*model.AdherenceWindow, error)
	ThisMonth(ctx context.Context, userID string) (*model.AdherenceWindow, error)
	ComputeStreak(ctx context.Context, userID string) (int, error)
}

// DoseTracker reads dose instances and records intake
type DoseTracker interface {
	MarkTaken(ctx context.Context, doseID string, takenAt *time.Time, info service.RequestInfo) (*model.DoseInstance, error)
	GetToday(ctx context.Context, userID string) ([]model.DoseInstance, error)
	GetUpcoming(ctx context.Context, userID string, horizon time.Duration) ([]model.DoseInstance, error)
}

// EngineRunner executes engine triggers
type EngineRunner interface {
	Run(ctx context.Context, trigger service.Trigger) (*service.RunSummary, error)
}

// EmergencyRaiser sends emergency alerts
type EmergencyRaiser interface {
	Raise(ctx context.Context, userID, message string) (*service.EmergencyResult, error)
}

// ReportProvider generates and serves adherence reports
type ReportProvider interface {
	GenerateReport(ctx context.Context, userID string) (*model.AdherenceReport, error)
	GetReport(ctx context.Context, reportID string) (*model.AdherenceReport, []byte, error)
}

// MedicationManager manages medication definitions
type MedicationManager interface {
	AddMedication(ctx context.Context, userID string, med *model.Medication, info service.RequestInfo) error
	ListMedications(ctx context.Context, userID string) ([]model.Medication, error)
	UpdateMedication(ctx context.Context, medID string, updates *model.Medication, info service.RequestInfo) error
	DeactivateMedication(ctx context.Context, medID string, info service.RequestInfo) error
}

// CaregiverManager manages escalation contacts
type CaregiverManager interface {
	AddCaregiver(ctx context.Context, userID string, c *model.Caregiver, info service.RequestInfo) error
	ListCaregivers(ctx context.Context, userID string) ([]model.Caregiver, error)
}

// PreferenceManager reads and stores notification preferences
type PreferenceManager interface {
	Resolve(ctx context.Context, userID string) (*model.NotificationPreference, error)
	Update(ctx context.Context, pref *model.NotificationPreference) error
}

// NotificationReader lists notification history
type NotificationReader interface {
	FindByUserID(ctx context.Context, userID string, limit int) ([]model.Notification, error)
}

// requestInfo extracts audit metadata from the request
func requestInfo(c *gin.Context) service.RequestInfo {
	return service.RequestInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func validationError(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Code: CodeValidation, Message: message}
	if err != nil {
		resp.Details = stringPtr(err.Error())
	}
	c.JSON(http.StatusBadRequest, resp)
}

// serviceError maps a service error onto a status code and error body
func serviceError(c *gin.Context, logger *zap.Logger, message string, err error) {
	status, code := http.StatusInternalServerError, CodeInternal
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidWindow),
		errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, model.ErrInvalidTimeOfDay):
		status, code = http.StatusBadRequest, CodeValidation
	case errors.Is(err, service.ErrDoseNotFound),
		errors.Is(err, service.ErrMedicationNotFound),
		errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, service.ErrUserNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrDoseArchived):
		status, code = http.StatusConflict, CodeConflict
	}

	if status == http.StatusInternalServerError {
		logger.Error(message, zap.Error(err), zap.String("path", c.FullPath()))
	} else {
		logger.Debug(message, zap.Error(err), zap.String("path", c.FullPath()))
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: stringPtr(err.Error()),
	})
}
