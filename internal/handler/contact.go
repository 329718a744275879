package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// CaregiverRequest is the body for registering a caregiver
type CaregiverRequest struct {
	Name                 string  `json:"name" binding:"required"`
	Email                *string `json:"email,omitempty"`
	Phone                *string `json:"phone,omitempty"`
	Relationship         string  `json:"relationship"`
	NotificationsEnabled *bool   `json:"notifications_enabled,omitempty"`
}

// PreferenceRequest is the body for replacing notification preferences
type PreferenceRequest struct {
	Reminders        bool    `json:"reminders"`
	MissedDoseAlerts bool    `json:"missed_dose_alerts"`
	AdherenceReports bool    `json:"adherence_reports"`
	Emergency        bool    `json:"emergency"`
	PushEnabled      bool    `json:"push_enabled"`
	EmailEnabled     bool    `json:"email_enabled"`
	SMSEnabled       bool    `json:"sms_enabled"`
	QuietStart       *string `json:"quiet_start,omitempty"`
	QuietEnd         *string `json:"quiet_end,omitempty"`
	CriticalOverride bool    `json:"critical_override"`
}

// ContactHandler implements caregiver, preference and notification history endpoints
type ContactHandler struct {
	caregivers    CaregiverManager
	preferences   PreferenceManager
	notifications NotificationReader
	logger        *zap.Logger
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(
	caregivers CaregiverManager,
	preferences PreferenceManager,
	notifications NotificationReader,
	logger *zap.Logger,
) *ContactHandler {
	return &ContactHandler{
		caregivers:    caregivers,
		preferences:   preferences,
		notifications: notifications,
		logger:        logger,
	}
}

// AddCaregiver registers an escalation contact. Notifications default to enabled.
func (h *ContactHandler) AddCaregiver(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	var req CaregiverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid request body", zap.Error(err))
		validationError(c, "Invalid request body", err)
		return
	}

	caregiver := &model.Caregiver{
		Name:                 req.Name,
		Email:                req.Email,
		Phone:                req.Phone,
		Relationship:         req.Relationship,
		NotificationsEnabled: req.NotificationsEnabled == nil || *req.NotificationsEnabled,
	}

	if err := h.caregivers.AddCaregiver(c.Request.Context(), userID, caregiver, requestInfo(c)); err != nil {
		serviceError(c, h.logger, "Failed to add caregiver", err)
		return
	}

	h.logger.Info("caregiver added",
		zap.String("caregiver_id", caregiver.ID),
		zap.String("user_id", userID),
	)

	c.JSON(http.StatusCreated, caregiver)
}

// ListCaregivers returns the caregivers that receive escalations
func (h *ContactHandler) ListCaregivers(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	caregivers, err := h.caregivers.ListCaregivers(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, h.logger, "Failed to retrieve caregivers", err)
		return
	}
	if caregivers == nil {
		caregivers = []model.Caregiver{}
	}

	c.JSON(http.StatusOK, gin.H{"caregivers": caregivers})
}

// GetPreferences returns stored preferences or the defaults
func (h *ContactHandler) GetPreferences(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	pref, err := h.preferences.Resolve(c.Request.Context(), userID)
	if err != nil {
		serviceError(c, h.logger, "Failed to retrieve preferences", err)
		return
	}

	c.JSON(http.StatusOK, pref)
}

// UpdatePreferences replaces the user's preferences
func (h *ContactHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	var req PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid request body", zap.Error(err))
		validationError(c, "Invalid request body", err)
		return
	}

	pref := &model.NotificationPreference{
		UserID:           userID,
		Reminders:        req.Reminders,
		MissedDoseAlerts: req.MissedDoseAlerts,
		AdherenceReports: req.AdherenceReports,
		Emergency:        req.Emergency,
		PushEnabled:      req.PushEnabled,
		EmailEnabled:     req.EmailEnabled,
		SMSEnabled:       req.SMSEnabled,
		QuietStart:       req.QuietStart,
		QuietEnd:         req.QuietEnd,
		CriticalOverride: req.CriticalOverride,
	}

	if err := h.preferences.Update(c.Request.Context(), pref); err != nil {
		serviceError(c, h.logger, "Failed to update preferences", err)
		return
	}

	h.logger.Info("notification preferences updated", zap.String("user_id", userID))

	c.JSON(http.StatusOK, pref)
}

// ListNotifications returns the most recent notifications, newest first
func (h *ContactHandler) ListNotifications(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxNotificationLimit {
			validationError(c, "limit must be between 1 and 200", err)
			return
		}
		limit = parsed
	}

	notifications, err := h.notifications.FindByUserID(c.Request.Context(), userID, limit)
	if err != nil {
		serviceError(c, h.logger, "Failed to retrieve notifications", err)
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}
