package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// AdherenceService computes adherence windows and streaks. It never writes.
type AdherenceService struct {
	doses     DoseStore
	timezones *TimezoneResolver
	lookback  int
	now       func() time.Time
	logger    *zap.Logger
}

// NewAdherenceService creates a new AdherenceService. lookback bounds the
// streak scan in days.
func NewAdherenceService(doses DoseStore, timezones *TimezoneResolver, lookback int, logger *zap.Logger) *AdherenceService {
	return &AdherenceService{
		doses:     doses,
		timezones: timezones,
		lookback:  lookback,
		now:       time.Now,
		logger:    logger,
	}
}

// ComputeAdherence summarises doses scheduled in [from, to). Doses scheduled
// at or after now are ignored. An empty window is 100% adherent.
func (s *AdherenceService) ComputeAdherence(ctx context.Context, userID string, from, to time.Time) (*model.AdherenceWindow, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidWindow)
	}

	window := &model.AdherenceWindow{From: from, To: to}

	now := s.now()
	end := to
	if now.Before(end) {
		end = now
	}

	if end.After(from) {
		doses, err := s.doses.FindByUserInRange(ctx, userID, from, end)
		if err != nil {
			s.logger.Error("failed to load doses for adherence",
				zap.Error(err),
				zap.String("user_id", userID),
			)
			return nil, fmt.Errorf("failed to load doses for adherence: %w", err)
		}
		for _, d := range doses {
			if !d.ScheduledTime.Before(now) {
				continue
			}
			window.Scheduled++
			switch d.Status {
			case model.DoseStatusTaken:
				window.Taken++
			case model.DoseStatusMissed, model.DoseStatusArchived:
				window.Missed++
			default:
				window.Pending++
			}
		}
	}

	window.Percentage = percentage(window.Taken, window.Scheduled)
	return window, nil
}

// Today computes adherence for the user's current local day
func (s *AdherenceService) Today(ctx context.Context, userID string) (*model.AdherenceWindow, error) {
	loc := s.timezones.Location(ctx, userID)
	start := model.StartOfDay(s.now(), loc)
	return s.ComputeAdherence(ctx, userID, start, start.AddDate(0, 0, 1))
}

// ThisWeek computes adherence for the user's current Monday-based week
func (s *AdherenceService) ThisWeek(ctx context.Context, userID string) (*model.AdherenceWindow, error) {
	loc := s.timezones.Location(ctx, userID)
	start := model.StartOfDay(s.now(), loc)
	offset := (int(start.Weekday()) + 6) % 7
	start = start.AddDate(0, 0, -offset)
	return s.ComputeAdherence(ctx, userID, start, start.AddDate(0, 0, 7))
}

// ThisMonth computes adherence for the user's current calendar month
func (s *AdherenceService) ThisMonth(ctx context.Context, userID string) (*model.AdherenceWindow, error) {
	loc := s.timezones.Location(ctx, userID)
	local := s.now().In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return s.ComputeAdherence(ctx, userID, start, start.AddDate(0, 1, 0))
}

// ComputeStreak counts consecutive fully adherent local days, walking back
// from yesterday. Days without scheduled doses are skipped. The scan stops at
// the first day with a dose that was not taken or after the lookback limit.
func (s *AdherenceService) ComputeStreak(ctx context.Context, userID string) (int, error) {
	loc := s.timezones.Location(ctx, userID)
	today := model.StartOfDay(s.now(), loc)
	earliest := today.AddDate(0, 0, -s.lookback)

	doses, err := s.doses.FindByUserInRange(ctx, userID, earliest, today)
	if err != nil {
		s.logger.Error("failed to load doses for streak",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return 0, fmt.Errorf("failed to load doses for streak: %w", err)
	}

	type dayTally struct{ total, taken int }
	days := make(map[string]*dayTally)
	for _, d := range doses {
		key := d.ScheduledTime.In(loc).Format(time.DateOnly)
		t, ok := days[key]
		if !ok {
			t = &dayTally{}
			days[key] = t
		}
		t.total++
		if d.Status == model.DoseStatusTaken {
			t.taken++
		}
	}

	streak := 0
	for k := 1; k <= s.lookback; k++ {
		t, ok := days[today.AddDate(0, 0, -k).Format(time.DateOnly)]
		if !ok || t.total == 0 {
			continue
		}
		if t.taken < t.total {
			break
		}
		streak++
	}

	return streak, nil
}

func percentage(taken, scheduled int) float64 {
	if scheduled == 0 {
		return 100
	}
	return float64(taken) / float64(scheduled) * 100
}
