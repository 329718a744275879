package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TimezoneResolver maps a user to the IANA zone their schedule is expressed in
type TimezoneResolver struct {
	users    UserStore
	fallback *time.Location
	logger   *zap.Logger
}

// NewTimezoneResolver creates a new TimezoneResolver. A nil fallback means UTC.
func NewTimezoneResolver(users UserStore, fallback *time.Location, logger *zap.Logger) *TimezoneResolver {
	if fallback == nil {
		fallback = time.UTC
	}
	return &TimezoneResolver{
		users:    users,
		fallback: fallback,
		logger:   logger,
	}
}

// Location returns the user's zone, or the fallback when the user has none
// or it cannot be loaded
func (r *TimezoneResolver) Location(ctx context.Context, userID string) *time.Location {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		r.logger.Warn("failed to load user timezone, using default",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return r.fallback
	}

	if user.Timezone == "" {
		return r.fallback
	}

	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		r.logger.Warn("invalid user timezone, using default",
			zap.String("user_id", userID),
			zap.String("timezone", user.Timezone),
		)
		return r.fallback
	}

	return loc
}
