package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// EmergencyResult reports what an emergency alert reached
type EmergencyResult struct {
	UserNotification   *model.Notification   `json:"user_notification"`
	CaregiverAlerts    []*model.Notification `json:"caregiver_alerts"`
	CaregiversNotified int                   `json:"caregivers_notified"`
}

// EmergencyService raises critical alerts on behalf of a user
type EmergencyService struct {
	dispatcher *Dispatcher
	escalation *EscalationService
	events     EventPublisher
	now        func() time.Time
	logger     *zap.Logger
}

// NewEmergencyService creates a new EmergencyService
func NewEmergencyService(dispatcher *Dispatcher, escalation *EscalationService, events EventPublisher, logger *zap.Logger) *EmergencyService {
	return &EmergencyService{
		dispatcher: dispatcher,
		escalation: escalation,
		events:     events,
		now:        time.Now,
		logger:     logger,
	}
}

// Raise sends a critical notification to the user and every reachable caregiver
func (s *EmergencyService) Raise(ctx context.Context, userID, message string) (*EmergencyResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: emergency message is required", ErrValidation)
	}

	n := &model.Notification{
		ID:       uuid.New().String(),
		UserID:   userID,
		Category: model.CategoryEmergency,
		Title:    "Emergency alert sent",
		Message:  "Your caregivers have been notified: " + message,
		Priority: model.PriorityCritical,
		Channels: model.AllChannels,
		Status:   model.NotificationStatusPending,
	}
	if _, err := s.dispatcher.Dispatch(ctx, n); err != nil {
		s.logger.Error("failed to notify user of emergency", zap.Error(err), zap.String("user_id", userID))
	}

	alerts, err := s.escalation.EscalateToCaregivers(ctx, userID, EscalationEvent{
		Category: model.CategoryEmergency,
		Message:  message,
	})
	if err != nil {
		s.logger.Error("failed to escalate emergency to caregivers", zap.Error(err), zap.String("user_id", userID))
		alerts = nil
	}

	if err := s.events.Publish(ctx, model.DomainEvent{
		Type:       model.EventEmergency,
		UserID:     userID,
		OccurredAt: s.now(),
	}); err != nil {
		s.logger.Warn("failed to publish emergency event", zap.Error(err), zap.String("user_id", userID))
	}

	s.logger.Warn("emergency raised",
		zap.String("user_id", userID),
		zap.Int("caregivers_notified", len(alerts)),
	)

	return &EmergencyResult{
		UserNotification:   n,
		CaregiverAlerts:    alerts,
		CaregiversNotified: len(alerts),
	}, nil
}
