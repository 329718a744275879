package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// CaregiverService manages a user's escalation contacts
type CaregiverService struct {
	store   CaregiverStore
	auditor Auditor
	logger  *zap.Logger
}

// NewCaregiverService creates a new CaregiverService. auditor may be nil.
func NewCaregiverService(store CaregiverStore, auditor Auditor, logger *zap.Logger) *CaregiverService {
	return &CaregiverService{
		store:   store,
		auditor: auditor,
		logger:  logger,
	}
}

// AddCaregiver registers a caregiver. At least one contact method is required.
func (s *CaregiverService) AddCaregiver(ctx context.Context, userID string, c *model.Caregiver, info RequestInfo) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", ErrValidation)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: caregiver name is required", ErrValidation)
	}
	if !c.HasEmail() && !c.HasPhone() {
		return fmt.Errorf("%w: caregiver needs an email or a phone number", ErrValidation)
	}
	if c.HasEmail() {
		if _, err := mail.ParseAddress(*c.Email); err != nil {
			return fmt.Errorf("%w: invalid caregiver email: %v", ErrValidation, err)
		}
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.UserID = userID

	if err := s.store.Create(ctx, c); err != nil {
		s.logger.Error("failed to add caregiver", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("failed to add caregiver: %w", err)
	}

	if s.auditor != nil {
		if err := s.auditor.Log(ctx, audit.AuditLog{
			UserID:        userID,
			OperationType: audit.OperationCreate,
			ResourceType:  audit.ResourceCaregiver,
			ResourceID:    c.ID,
			IPAddress:     info.IPAddress,
			UserAgent:     info.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to write audit log", zap.Error(err), zap.String("caregiver_id", c.ID))
		}
	}

	return nil
}

// ListCaregivers returns the caregivers that receive escalations
func (s *CaregiverService) ListCaregivers(ctx context.Context, userID string) ([]model.Caregiver, error) {
	caregivers, err := s.store.FindEnabledByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list caregivers: %w", err)
	}
	return caregivers, nil
}
