package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// ReminderScheduler queues one reminder per new dose and later hands due
// reminders to the dispatcher
type ReminderScheduler struct {
	notifications NotificationStore
	doses         DoseStore
	dispatcher    *Dispatcher
	lead          time.Duration
	batchLimit    int
	now           func() time.Time
	logger        *zap.Logger
}

// NewReminderScheduler creates a new ReminderScheduler
func NewReminderScheduler(
	notifications NotificationStore,
	doses DoseStore,
	dispatcher *Dispatcher,
	lead time.Duration,
	batchLimit int,
	logger *zap.Logger,
) *ReminderScheduler {
	return &ReminderScheduler{
		notifications: notifications,
		doses:         doses,
		dispatcher:    dispatcher,
		lead:          lead,
		batchLimit:    batchLimit,
		now:           time.Now,
		logger:        logger,
	}
}

// ScheduleUpcoming stores a pending reminder for each dose. Failures are
// logged per dose and never abort generation.
func (s *ReminderScheduler) ScheduleUpcoming(ctx context.Context, doses []model.DoseInstance) int {
	queued := 0
	for i := range doses {
		dose := &doses[i]
		doseID := dose.ID

		n := &model.Notification{
			ID:             uuid.New().String(),
			UserID:         dose.UserID,
			DoseInstanceID: &doseID,
			Category:       model.CategoryReminder,
			Title:          fmt.Sprintf("Time to take %s", dose.MedicationName),
			Message:        fmt.Sprintf("%s %s is scheduled for %s.", dose.MedicationName, dose.Dosage, dose.ScheduledTime.Format("15:04")),
			Priority:       model.PriorityNormal,
			Channels:       model.AllChannels,
			Data: map[string]string{
				"dose_id":       dose.ID,
				"medication_id": dose.MedicationID,
			},
			ScheduledFor: dose.ScheduledTime.Add(-s.lead),
			Status:       model.NotificationStatusPending,
		}

		created, err := s.notifications.CreateReminder(ctx, n)
		if err != nil {
			s.logger.Error("failed to queue reminder",
				zap.Error(err),
				zap.String("dose_id", dose.ID),
			)
			continue
		}
		if created {
			queued++
		}
	}
	return queued
}

// DispatchDue claims reminders that are due and delivers those whose dose is
// still pending. An empty userID processes every user. It returns the number
// of reminders handed to the dispatcher.
func (s *ReminderScheduler) DispatchDue(ctx context.Context, userID string) (int, error) {
	due, err := s.notifications.ClaimDueReminders(ctx, userID, s.now(), s.batchLimit)
	if err != nil {
		s.logger.Error("failed to claim due reminders", zap.Error(err), zap.String("user_id", userID))
		return 0, fmt.Errorf("failed to claim due reminders: %w", err)
	}

	dispatched := 0
	for i := range due {
		n := &due[i]

		if n.DoseInstanceID != nil {
			resolved, err := s.doseResolved(ctx, *n.DoseInstanceID)
			if err != nil {
				s.logger.Error("failed to check reminder dose",
					zap.Error(err),
					zap.String("notification_id", n.ID),
				)
				continue
			}
			if resolved {
				reason := model.SkipReasonDoseResolved
				n.SkipReason = &reason
				if err := s.notifications.UpdateOutcome(ctx, n); err != nil {
					s.logger.Error("failed to close resolved reminder",
						zap.Error(err),
						zap.String("notification_id", n.ID),
					)
				}
				continue
			}
		}

		if _, err := s.dispatcher.DispatchStored(ctx, n); err != nil {
			s.logger.Error("failed to dispatch reminder",
				zap.Error(err),
				zap.String("notification_id", n.ID),
			)
			continue
		}
		dispatched++
	}

	return dispatched, nil
}

func (s *ReminderScheduler) doseResolved(ctx context.Context, doseID string) (bool, error) {
	dose, err := s.doses.FindByID(ctx, doseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return dose.Status != model.DoseStatusPending, nil
}
