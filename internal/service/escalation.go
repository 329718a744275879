package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// EscalationEvent describes something a patient's caregivers must hear about
type EscalationEvent struct {
	Category model.NotificationCategory
	Dose     *model.DoseInstance
	Message  string
	Data     map[string]string
}

// EscalationPriority maps an escalation category to its notification priority
func EscalationPriority(category model.NotificationCategory) (model.Priority, error) {
	switch category {
	case model.CategoryMissedDose:
		return model.PriorityHigh, nil
	case model.CategoryEmergency:
		return model.PriorityCritical, nil
	case model.CategoryAdherenceReport:
		return model.PriorityLow, nil
	default:
		return "", fmt.Errorf("%w: %q cannot be escalated", ErrUnknownCategory, category)
	}
}

// EscalationService notifies the enabled caregivers of a patient
type EscalationService struct {
	caregivers CaregiverStore
	users      UserStore
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewEscalationService creates a new EscalationService
func NewEscalationService(caregivers CaregiverStore, users UserStore, dispatcher *Dispatcher, logger *zap.Logger) *EscalationService {
	return &EscalationService{
		caregivers: caregivers,
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// EscalateToCaregivers builds one notification per reachable caregiver and
// dispatches it under the patient's preferences. A failure for one caregiver
// does not stop the others.
func (s *EscalationService) EscalateToCaregivers(ctx context.Context, userID string, event EscalationEvent) ([]*model.Notification, error) {
	priority, err := EscalationPriority(event.Category)
	if err != nil {
		s.logger.Error("dropping escalation", zap.Error(err), zap.String("user_id", userID))
		return nil, err
	}

	caregivers, err := s.caregivers.FindEnabledByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load caregivers", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to load caregivers: %w", err)
	}
	if len(caregivers) == 0 {
		return nil, nil
	}

	patient := "Your patient"
	if user, err := s.users.FindByID(ctx, userID); err == nil && user.Name != "" {
		patient = user.Name
	}
	title, message := caregiverCopy(patient, event)

	var notifications []*model.Notification
	for i := range caregivers {
		c := &caregivers[i]

		var channels []model.Channel
		rcpt := Recipient{}
		if c.HasEmail() {
			channels = append(channels, model.ChannelEmail)
			rcpt.Email = *c.Email
		}
		if c.HasPhone() {
			channels = append(channels, model.ChannelSMS)
			rcpt.Phone = *c.Phone
		}
		if len(channels) == 0 {
			s.logger.Debug("caregiver has no contact method",
				zap.String("caregiver_id", c.ID),
			)
			continue
		}

		caregiverID := c.ID
		n := &model.Notification{
			ID:          uuid.New().String(),
			UserID:      userID,
			CaregiverID: &caregiverID,
			Category:    event.Category,
			Title:       title,
			Message:     message,
			Priority:    priority,
			Channels:    channels,
			Data:        event.Data,
			Status:      model.NotificationStatusPending,
		}
		if event.Dose != nil {
			doseID := event.Dose.ID
			n.DoseInstanceID = &doseID
		}

		if _, err := s.dispatcher.DispatchTo(ctx, n, rcpt); err != nil {
			s.logger.Error("failed to notify caregiver",
				zap.Error(err),
				zap.String("user_id", userID),
				zap.String("caregiver_id", c.ID),
			)
			continue
		}
		notifications = append(notifications, n)
	}

	s.logger.Info("escalated to caregivers",
		zap.String("user_id", userID),
		zap.String("category", string(event.Category)),
		zap.Int("notified", len(notifications)),
	)

	return notifications, nil
}

func caregiverCopy(patient string, event EscalationEvent) (string, string) {
	switch event.Category {
	case model.CategoryMissedDose:
		if event.Dose != nil {
			return fmt.Sprintf("%s missed a dose", patient),
				fmt.Sprintf("%s did not take %s %s scheduled for %s.",
					patient, event.Dose.MedicationName, event.Dose.Dosage,
					event.Dose.ScheduledTime.Format("Mon 15:04"))
		}
		return fmt.Sprintf("%s missed a dose", patient), event.Message
	case model.CategoryEmergency:
		return fmt.Sprintf("Emergency alert from %s", patient), event.Message
	default:
		return fmt.Sprintf("Adherence report for %s", patient), event.Message
	}
}
