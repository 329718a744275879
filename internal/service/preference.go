package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// PreferenceResolver loads notification preferences, falling back to defaults
type PreferenceResolver struct {
	store  PreferenceStore
	logger *zap.Logger
}

// NewPreferenceResolver creates a new PreferenceResolver
func NewPreferenceResolver(store PreferenceStore, logger *zap.Logger) *PreferenceResolver {
	return &PreferenceResolver{
		store:  store,
		logger: logger,
	}
}

// Resolve returns the stored preferences of a user or the defaults when the
// user never saved any
func (r *PreferenceResolver) Resolve(ctx context.Context, userID string) (*model.NotificationPreference, error) {
	pref, err := r.store.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.DefaultNotificationPreference(userID), nil
		}
		r.logger.Error("failed to load notification preferences",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to load notification preferences: %w", err)
	}
	return pref, nil
}

// Update validates and stores a user's preferences
func (r *PreferenceResolver) Update(ctx context.Context, pref *model.NotificationPreference) error {
	if pref.UserID == "" {
		return fmt.Errorf("%w: user ID is required", ErrValidation)
	}
	if (pref.QuietStart == nil) != (pref.QuietEnd == nil) {
		return fmt.Errorf("%w: quiet_start and quiet_end must be set together", ErrValidation)
	}
	for _, v := range []*string{pref.QuietStart, pref.QuietEnd} {
		if v == nil {
			continue
		}
		if _, err := model.ParseTimeOfDay(*v); err != nil {
			return err
		}
	}

	if err := r.store.Upsert(ctx, pref); err != nil {
		r.logger.Error("failed to update notification preferences",
			zap.Error(err),
			zap.String("user_id", pref.UserID),
		)
		return fmt.Errorf("failed to update notification preferences: %w", err)
	}

	return nil
}

// CategoryEnabled reports whether the preference set allows the category.
// dose_taken confirmations follow the reminders toggle.
func CategoryEnabled(pref *model.NotificationPreference, category model.NotificationCategory) (bool, error) {
	switch category {
	case model.CategoryReminder, model.CategoryDoseTaken:
		return pref.Reminders, nil
	case model.CategoryMissedDose:
		return pref.MissedDoseAlerts, nil
	case model.CategoryAdherenceReport:
		return pref.AdherenceReports, nil
	case model.CategoryEmergency:
		return pref.Emergency, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
}

// InQuietHours reports whether local falls inside [quiet_start, quiet_end).
// A window whose start is after its end wraps past midnight. Missing or
// malformed bounds, or equal bounds, mean no quiet hours.
func InQuietHours(pref *model.NotificationPreference, local time.Time) bool {
	if pref.QuietStart == nil || pref.QuietEnd == nil {
		return false
	}
	start, err := model.ParseTimeOfDay(*pref.QuietStart)
	if err != nil {
		return false
	}
	end, err := model.ParseTimeOfDay(*pref.QuietEnd)
	if err != nil {
		return false
	}

	s, e := start.Minutes(), end.Minutes()
	m := local.Hour()*60 + local.Minute()

	switch {
	case s == e:
		return false
	case s < e:
		return m >= s && m < e
	default:
		return m >= s || m < e
	}
}

// Suppressed reports whether quiet hours hold back a notification of the
// given priority
func Suppressed(pref *model.NotificationPreference, priority model.Priority, local time.Time) bool {
	if !InQuietHours(pref, local) {
		return false
	}
	return !(priority == model.PriorityCritical && pref.CriticalOverride)
}
