package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// Sweeper moves overdue pending doses to missed and escalates them
type Sweeper struct {
	doses       DoseStore
	dispatcher  *Dispatcher
	escalation  *EscalationService
	events      EventPublisher
	timezones   *TimezoneResolver
	graceWindow time.Duration
	archiveAge  time.Duration
	batchLimit  int
	now         func() time.Time
	logger      *zap.Logger
}

// SweeperConfig holds the sweep thresholds
type SweeperConfig struct {
	GraceWindow time.Duration
	ArchiveAge  time.Duration
	BatchLimit  int
}

// NewSweeper creates a new Sweeper
func NewSweeper(
	doses DoseStore,
	dispatcher *Dispatcher,
	escalation *EscalationService,
	events EventPublisher,
	timezones *TimezoneResolver,
	cfg SweeperConfig,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		doses:       doses,
		dispatcher:  dispatcher,
		escalation:  escalation,
		events:      events,
		timezones:   timezones,
		graceWindow: cfg.GraceWindow,
		archiveAge:  cfg.ArchiveAge,
		batchLimit:  cfg.BatchLimit,
		now:         time.Now,
		logger:      logger,
	}
}

// SweepMissed marks pending doses older than the grace window as missed and
// returns the doses this call transitioned. An empty userID sweeps every
// user. Doses that another sweeper or MarkTaken resolved first are skipped.
func (s *Sweeper) SweepMissed(ctx context.Context, userID string) ([]model.DoseInstance, error) {
	cutoff := s.now().Add(-s.graceWindow)

	overdue, err := s.doses.FindPendingBefore(ctx, userID, cutoff, s.batchLimit)
	if err != nil {
		s.logger.Error("failed to find overdue doses",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to find overdue doses: %w", err)
	}

	var missed []model.DoseInstance
	for i := range overdue {
		dose := overdue[i]

		changed, err := s.doses.MarkMissed(ctx, dose.ID)
		if err != nil {
			s.logger.Error("failed to mark dose missed",
				zap.Error(err),
				zap.String("dose_id", dose.ID),
			)
			continue
		}
		if !changed {
			continue
		}

		dose.Status = model.DoseStatusMissed
		missed = append(missed, dose)
		s.announce(ctx, &dose)
	}

	if len(missed) > 0 {
		s.logger.Info("doses marked missed",
			zap.String("user_id", userID),
			zap.Int("count", len(missed)),
		)
	}

	return missed, nil
}

func (s *Sweeper) announce(ctx context.Context, dose *model.DoseInstance) {
	dose.ScheduledTime = dose.ScheduledTime.In(s.timezones.Location(ctx, dose.UserID))
	doseID := dose.ID
	data := map[string]string{
		"dose_id":       dose.ID,
		"medication_id": dose.MedicationID,
	}

	n := &model.Notification{
		ID:             uuid.New().String(),
		UserID:         dose.UserID,
		DoseInstanceID: &doseID,
		Category:       model.CategoryMissedDose,
		Title:          fmt.Sprintf("Missed dose: %s", dose.MedicationName),
		Message: fmt.Sprintf("You have not taken %s %s scheduled for %s. You can still mark it as taken.",
			dose.MedicationName, dose.Dosage, dose.ScheduledTime.Format("15:04")),
		Priority: model.PriorityHigh,
		Channels: model.AllChannels,
		Data:     data,
		Status:   model.NotificationStatusPending,
	}
	if _, err := s.dispatcher.Dispatch(ctx, n); err != nil {
		s.logger.Error("failed to notify user of missed dose",
			zap.Error(err),
			zap.String("dose_id", dose.ID),
		)
	}

	if _, err := s.escalation.EscalateToCaregivers(ctx, dose.UserID, EscalationEvent{
		Category: model.CategoryMissedDose,
		Dose:     dose,
		Data:     data,
	}); err != nil {
		s.logger.Error("failed to escalate missed dose",
			zap.Error(err),
			zap.String("dose_id", dose.ID),
		)
	}

	if err := s.events.Publish(ctx, model.DomainEvent{
		Type:         model.EventDoseMissed,
		UserID:       dose.UserID,
		DoseID:       dose.ID,
		MedicationID: dose.MedicationID,
		OccurredAt:   s.now(),
	}); err != nil {
		s.logger.Warn("failed to publish dose event",
			zap.Error(err),
			zap.String("dose_id", dose.ID),
		)
	}
}

// ArchiveExpired archives missed doses older than the archive age
func (s *Sweeper) ArchiveExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.archiveAge)

	archived, err := s.doses.ArchiveMissedBefore(ctx, cutoff, s.batchLimit)
	if err != nil {
		s.logger.Error("failed to archive missed doses", zap.Error(err))
		return 0, fmt.Errorf("failed to archive missed doses: %w", err)
	}

	if archived > 0 {
		s.logger.Info("missed doses archived", zap.Int64("count", archived))
	}

	return archived, nil
}
