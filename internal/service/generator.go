package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// ScheduleGenerator expands medication definitions into dose instances
type ScheduleGenerator struct {
	medications MedicationStore
	doses       DoseStore
	timezones   *TimezoneResolver
	reminders   *ReminderScheduler
	tolerance   time.Duration
	logger      *zap.Logger
}

// NewScheduleGenerator creates a new ScheduleGenerator. reminders may be nil.
func NewScheduleGenerator(
	medications MedicationStore,
	doses DoseStore,
	timezones *TimezoneResolver,
	reminders *ReminderScheduler,
	tolerance time.Duration,
	logger *zap.Logger,
) *ScheduleGenerator {
	return &ScheduleGenerator{
		medications: medications,
		doses:       doses,
		timezones:   timezones,
		reminders:   reminders,
		tolerance:   tolerance,
		logger:      logger,
	}
}

// EnsureDaySchedule creates the missing dose instances of a user for the
// calendar day of targetDate and returns the ones it created. The year, month
// and day of targetDate are taken as-is and interpreted in the user's zone.
// Calling it repeatedly or concurrently for the same day is safe.
func (g *ScheduleGenerator) EnsureDaySchedule(ctx context.Context, userID string, targetDate time.Time) ([]model.DoseInstance, error) {
	loc := g.timezones.Location(ctx, userID)
	y, m, d := targetDate.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	medications, err := g.medications.FindActiveByUserID(ctx, userID)
	if err != nil {
		g.logger.Error("failed to load active medications",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to load active medications: %w", err)
	}

	existing, err := g.doses.FindByUserInRange(ctx, userID, dayStart, dayEnd)
	if err != nil {
		g.logger.Error("failed to load existing doses",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to load existing doses: %w", err)
	}

	var created []model.DoseInstance
	for i := range medications {
		med := &medications[i]
		if !med.CoversDate(dayStart) {
			continue
		}

		for _, raw := range med.Times {
			tod, err := model.ParseTimeOfDay(raw)
			if err != nil {
				g.logger.Warn("skipping malformed time of day",
					zap.String("medication_id", med.ID),
					zap.String("time", raw),
				)
				continue
			}

			at := tod.On(dayStart, loc)
			if g.hasNearby(existing, med.ID, at) {
				continue
			}

			dose := model.DoseInstance{
				ID:             uuid.New().String(),
				MedicationID:   med.ID,
				UserID:         userID,
				MedicationName: med.Name,
				Dosage:         med.Dosage,
				ScheduledTime:  at,
				Status:         model.DoseStatusPending,
			}

			inserted, err := g.doses.Insert(ctx, &dose)
			if err != nil {
				g.logger.Error("failed to insert dose instance",
					zap.Error(err),
					zap.String("medication_id", med.ID),
					zap.Time("scheduled_time", at),
				)
				return created, fmt.Errorf("failed to insert dose instance: %w", err)
			}
			if !inserted {
				// Another trigger created it between our read and write.
				continue
			}

			existing = append(existing, dose)
			created = append(created, dose)
		}
	}

	if len(created) > 0 {
		g.logger.Info("dose instances generated",
			zap.String("user_id", userID),
			zap.Time("day", dayStart),
			zap.Int("count", len(created)),
		)
		if g.reminders != nil {
			g.reminders.ScheduleUpcoming(ctx, created)
		}
	}

	return created, nil
}

func (g *ScheduleGenerator) hasNearby(doses []model.DoseInstance, medicationID string, at time.Time) bool {
	for _, d := range doses {
		if d.MedicationID != medicationID || d.Status == model.DoseStatusArchived {
			continue
		}
		diff := d.ScheduledTime.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if diff < g.tolerance {
			return true
		}
	}
	return false
}
