package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// RequestInfo carries caller metadata recorded in the audit trail
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// DoseService serves dose reads and the taken mutation
type DoseService struct {
	doses      DoseStore
	timezones  *TimezoneResolver
	dispatcher *Dispatcher
	events     EventPublisher
	auditor    Auditor
	now        func() time.Time
	logger     *zap.Logger
}

// NewDoseService creates a new DoseService. auditor may be nil.
func NewDoseService(
	doses DoseStore,
	timezones *TimezoneResolver,
	dispatcher *Dispatcher,
	events EventPublisher,
	auditor Auditor,
	logger *zap.Logger,
) *DoseService {
	return &DoseService{
		doses:      doses,
		timezones:  timezones,
		dispatcher: dispatcher,
		events:     events,
		auditor:    auditor,
		now:        time.Now,
		logger:     logger,
	}
}

// MarkTaken records that a dose was taken. Pending and missed doses become
// taken, an already taken dose is returned unchanged, and archived doses are
// rejected. A nil takenAt means now.
func (s *DoseService) MarkTaken(ctx context.Context, doseID string, takenAt *time.Time, info RequestInfo) (*model.DoseInstance, error) {
	dose, err := s.load(ctx, doseID)
	if err != nil {
		return nil, err
	}

	switch dose.Status {
	case model.DoseStatusTaken:
		return dose, nil
	case model.DoseStatusArchived:
		return nil, fmt.Errorf("%w: %s", ErrDoseArchived, doseID)
	}

	at := s.now()
	if takenAt != nil {
		at = *takenAt
	}
	previous := dose.Status

	changed, err := s.doses.MarkTaken(ctx, doseID, at)
	if err != nil {
		s.logger.Error("failed to mark dose taken",
			zap.Error(err),
			zap.String("dose_id", doseID),
		)
		return nil, fmt.Errorf("failed to mark dose taken: %w", err)
	}

	if !changed {
		// Lost a race with another writer; report what it left behind.
		current, err := s.load(ctx, doseID)
		if err != nil {
			return nil, err
		}
		if current.Status == model.DoseStatusArchived {
			return nil, fmt.Errorf("%w: %s", ErrDoseArchived, doseID)
		}
		return current, nil
	}

	dose.Status = model.DoseStatusTaken
	dose.TakenAt = &at

	s.logger.Info("dose marked taken",
		zap.String("dose_id", doseID),
		zap.String("user_id", dose.UserID),
		zap.String("previous_status", string(previous)),
	)

	if s.auditor != nil {
		if err := s.auditor.Log(ctx, audit.AuditLog{
			UserID:        dose.UserID,
			OperationType: audit.OperationUpdate,
			ResourceType:  audit.ResourceDoseInstance,
			ResourceID:    doseID,
			IPAddress:     info.IPAddress,
			UserAgent:     info.UserAgent,
			Changes: map[string]string{
				"previous_status": string(previous),
				"status":          string(model.DoseStatusTaken),
				"taken_at":        at.UTC().Format(time.RFC3339),
			},
		}); err != nil {
			s.logger.Warn("failed to write audit log", zap.Error(err), zap.String("dose_id", doseID))
		}
	}

	if err := s.events.Publish(ctx, model.DomainEvent{
		Type:         model.EventDoseTaken,
		UserID:       dose.UserID,
		DoseID:       dose.ID,
		MedicationID: dose.MedicationID,
		OccurredAt:   at,
	}); err != nil {
		s.logger.Warn("failed to publish dose event", zap.Error(err), zap.String("dose_id", doseID))
	}

	s.confirm(ctx, dose)

	return dose, nil
}

func (s *DoseService) confirm(ctx context.Context, dose *model.DoseInstance) {
	doseID := dose.ID
	n := &model.Notification{
		ID:             uuid.New().String(),
		UserID:         dose.UserID,
		DoseInstanceID: &doseID,
		Category:       model.CategoryDoseTaken,
		Title:          "Dose recorded",
		Message:        fmt.Sprintf("%s %s marked as taken.", dose.MedicationName, dose.Dosage),
		Priority:       model.PriorityLow,
		Channels:       []model.Channel{model.ChannelPush},
		Data:           map[string]string{"dose_id": dose.ID},
		Status:         model.NotificationStatusPending,
	}
	if _, err := s.dispatcher.Dispatch(ctx, n); err != nil {
		s.logger.Warn("failed to send taken confirmation", zap.Error(err), zap.String("dose_id", dose.ID))
	}
}

func (s *DoseService) load(ctx context.Context, doseID string) (*model.DoseInstance, error) {
	dose, err := s.doses.FindByID(ctx, doseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDoseNotFound, doseID)
		}
		s.logger.Error("failed to load dose", zap.Error(err), zap.String("dose_id", doseID))
		return nil, fmt.Errorf("failed to load dose: %w", err)
	}
	return dose, nil
}

// GetToday returns every dose of the user's current local day
func (s *DoseService) GetToday(ctx context.Context, userID string) ([]model.DoseInstance, error) {
	loc := s.timezones.Location(ctx, userID)
	start := model.StartOfDay(s.now(), loc)

	doses, err := s.doses.FindByUserInRange(ctx, userID, start, start.AddDate(0, 0, 1))
	if err != nil {
		s.logger.Error("failed to get today's doses", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to get today's doses: %w", err)
	}

	return localize(doses, loc), nil
}

// GetUpcoming returns pending doses due within horizon from now
func (s *DoseService) GetUpcoming(ctx context.Context, userID string, horizon time.Duration) ([]model.DoseInstance, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive", ErrValidation)
	}

	loc := s.timezones.Location(ctx, userID)
	now := s.now()

	doses, err := s.doses.FindUpcoming(ctx, userID, now, now.Add(horizon))
	if err != nil {
		s.logger.Error("failed to get upcoming doses", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to get upcoming doses: %w", err)
	}

	return localize(doses, loc), nil
}

func localize(doses []model.DoseInstance, loc *time.Location) []model.DoseInstance {
	for i := range doses {
		doses[i].ScheduledTime = doses[i].ScheduledTime.In(loc)
		if doses[i].TakenAt != nil {
			t := doses[i].TakenAt.In(loc)
			doses[i].TakenAt = &t
		}
	}
	return doses
}
