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

// MedicationService handles medication definition management
type MedicationService struct {
	repo    MedicationStore
	auditor Auditor
	now     func() time.Time
	logger  *zap.Logger
}

// NewMedicationService creates a new MedicationService. auditor may be nil.
func NewMedicationService(repo MedicationStore, auditor Auditor, logger *zap.Logger) *MedicationService {
	return &MedicationService{
		repo:    repo,
		auditor: auditor,
		now:     time.Now,
		logger:  logger,
	}
}

func validateMedication(med *model.Medication) error {
	if med.Name == "" {
		return fmt.Errorf("%w: medication name is required", ErrValidation)
	}
	if med.Dosage == "" {
		return fmt.Errorf("%w: medication dosage is required", ErrValidation)
	}
	if err := model.ValidateTimes(med.Times); err != nil {
		return err
	}
	if med.StartDate.IsZero() {
		return fmt.Errorf("%w: medication start date is required", ErrValidation)
	}
	if med.EndDate != nil && model.DateOf(*med.EndDate).Before(model.DateOf(med.StartDate)) {
		return fmt.Errorf("%w: medication end date must not be before start date", ErrValidation)
	}
	return nil
}

// AddMedication adds a new medication for a user
func (s *MedicationService) AddMedication(ctx context.Context, userID string, med *model.Medication, info RequestInfo) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", ErrValidation)
	}
	if err := validateMedication(med); err != nil {
		return err
	}

	if med.ID == "" {
		med.ID = uuid.New().String()
	}
	med.UserID = userID
	med.Active = !s.ended(med)

	now := s.now()
	med.CreatedAt = now
	med.UpdatedAt = now

	if err := s.repo.Create(ctx, med); err != nil {
		s.logger.Error("failed to add medication",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("medication_name", med.Name),
		)
		return fmt.Errorf("failed to add medication: %w", err)
	}

	s.audit(ctx, userID, audit.OperationCreate, med.ID, info)
	s.logger.Info("medication added",
		zap.String("medication_id", med.ID),
		zap.String("user_id", userID),
		zap.Strings("times", med.Times),
	)

	return nil
}

// ListMedications retrieves all medications for a user. Definitions whose
// end date has passed are deactivated on the way out.
func (s *MedicationService) ListMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	medications, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list medications",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}

	for i := range medications {
		if medications[i].Active && s.ended(&medications[i]) {
			medications[i].Active = false
			if err := s.repo.Update(ctx, &medications[i]); err != nil {
				s.logger.Warn("failed to update medication active status",
					zap.Error(err),
					zap.String("medication_id", medications[i].ID),
				)
			}
		}
	}

	return medications, nil
}

// UpdateMedication replaces a medication definition. Already generated dose
// instances keep their original times.
func (s *MedicationService) UpdateMedication(ctx context.Context, medID string, updates *model.Medication, info RequestInfo) error {
	if medID == "" {
		return fmt.Errorf("%w: medication ID is required", ErrValidation)
	}
	if err := validateMedication(updates); err != nil {
		return err
	}

	existing, err := s.repo.FindByID(ctx, medID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMedicationNotFound, medID)
		}
		return fmt.Errorf("failed to find medication: %w", err)
	}

	updates.ID = existing.ID
	updates.UserID = existing.UserID
	updates.CreatedAt = existing.CreatedAt
	updates.Active = !s.ended(updates)
	updates.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, updates); err != nil {
		s.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return fmt.Errorf("failed to update medication: %w", err)
	}

	s.audit(ctx, existing.UserID, audit.OperationUpdate, medID, info)
	return nil
}

// DeactivateMedication stops future dose generation for a medication
func (s *MedicationService) DeactivateMedication(ctx context.Context, medID string, info RequestInfo) error {
	if medID == "" {
		return fmt.Errorf("%w: medication ID is required", ErrValidation)
	}

	existing, err := s.repo.FindByID(ctx, medID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMedicationNotFound, medID)
		}
		return fmt.Errorf("failed to find medication: %w", err)
	}

	if err := s.repo.Deactivate(ctx, medID); err != nil {
		s.logger.Error("failed to deactivate medication",
			zap.Error(err),
			zap.String("medication_id", medID),
		)
		return fmt.Errorf("failed to deactivate medication: %w", err)
	}

	s.audit(ctx, existing.UserID, audit.OperationDelete, medID, info)
	s.logger.Info("medication deactivated", zap.String("medication_id", medID))

	return nil
}

func (s *MedicationService) ended(med *model.Medication) bool {
	return med.EndDate != nil && model.DateOf(*med.EndDate).Before(model.DateOf(s.now()))
}

func (s *MedicationService) audit(ctx context.Context, userID string, op audit.OperationType, medID string, info RequestInfo) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(ctx, audit.AuditLog{
		UserID:        userID,
		OperationType: op,
		ResourceType:  audit.ResourceMedication,
		ResourceID:    medID,
		IPAddress:     info.IPAddress,
		UserAgent:     info.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err), zap.String("medication_id", medID))
	}
}
