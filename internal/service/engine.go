package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Mode selects the work a trigger performs
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeSweep    Mode = "sweep"
	ModeReport   Mode = "report"
)

// ParseMode validates a trigger mode
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeGenerate, ModeSweep, ModeReport:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Trigger is one external request to run the engine. An empty UserID runs
// for every user with an active medication. TargetDate only applies to
// generate and defaults to each user's local today.
type Trigger struct {
	UserID     string
	TargetDate *time.Time
	Mode       Mode
}

// RunSummary reports what a trigger did
type RunSummary struct {
	Mode          Mode          `json:"mode"`
	Debounced     bool          `json:"debounced"`
	Users         int           `json:"users"`
	FailedUsers   int           `json:"failed_users"`
	DosesCreated  int           `json:"doses_created"`
	DosesMissed   int           `json:"doses_missed"`
	RemindersSent int           `json:"reminders_sent"`
	Archived      int64         `json:"archived"`
	Reports       int           `json:"reports"`
	Duration      time.Duration `json:"duration"`
}

// Debouncer suppresses repeated triggers for the same key within a window
type Debouncer interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

// Engine orchestrates generation, sweeping and reporting per trigger
type Engine struct {
	users     UserStore
	generator *ScheduleGenerator
	sweeper   *Sweeper
	reminders *ReminderScheduler
	reports   *ReportService
	timezones *TimezoneResolver
	debouncer Debouncer
	lookahead int
	now       func() time.Time
	logger    *zap.Logger
}

// EngineDeps groups the collaborators of Engine
type EngineDeps struct {
	Users     UserStore
	Generator *ScheduleGenerator
	Sweeper   *Sweeper
	Reminders *ReminderScheduler
	Reports   *ReportService
	Timezones *TimezoneResolver
	Debouncer Debouncer
}

// NewEngine creates a new Engine. Debouncer may be nil. lookahead is the
// number of days after the target date that generate also fills.
func NewEngine(deps EngineDeps, lookahead int, logger *zap.Logger) *Engine {
	return &Engine{
		users:     deps.Users,
		generator: deps.Generator,
		sweeper:   deps.Sweeper,
		reminders: deps.Reminders,
		reports:   deps.Reports,
		timezones: deps.Timezones,
		debouncer: deps.Debouncer,
		lookahead: lookahead,
		now:       time.Now,
		logger:    logger,
	}
}

// Run executes one trigger. Failures for a single user are logged and
// counted without stopping the batch. The returned error covers failures
// that prevented the run itself.
func (e *Engine) Run(ctx context.Context, trigger Trigger) (*RunSummary, error) {
	if _, err := ParseMode(string(trigger.Mode)); err != nil {
		return nil, err
	}

	started := e.now()
	summary := &RunSummary{Mode: trigger.Mode}
	logger := e.logger.With(
		zap.String("mode", string(trigger.Mode)),
		zap.String("user_id", trigger.UserID),
	)

	if e.debouncer != nil {
		ok, err := e.debouncer.Acquire(ctx, debounceKey(trigger))
		if err != nil {
			logger.Warn("debounce unavailable, running anyway", zap.Error(err))
		} else if !ok {
			logger.Info("trigger debounced")
			summary.Debounced = true
			return summary, nil
		}
	}

	var err error
	switch trigger.Mode {
	case ModeGenerate:
		err = e.generate(ctx, trigger, summary)
	case ModeSweep:
		err = e.sweep(ctx, trigger, summary)
	case ModeReport:
		err = e.report(ctx, trigger, summary)
	}

	summary.Duration = e.now().Sub(started)
	logger.Info("engine run finished",
		zap.Int("users", summary.Users),
		zap.Int("failed_users", summary.FailedUsers),
		zap.Int("doses_created", summary.DosesCreated),
		zap.Int("doses_missed", summary.DosesMissed),
		zap.Int("reminders_sent", summary.RemindersSent),
		zap.Int64("archived", summary.Archived),
		zap.Int("reports", summary.Reports),
		zap.Duration("duration", summary.Duration),
	)

	return summary, err
}

func debounceKey(t Trigger) string {
	user := t.UserID
	if user == "" {
		user = "all"
	}
	key := string(t.Mode) + ":" + user
	if t.TargetDate != nil {
		key += ":" + t.TargetDate.Format(time.DateOnly)
	}
	return key
}

func (e *Engine) targets(ctx context.Context, userID string) ([]string, error) {
	if userID != "" {
		return []string{userID}, nil
	}
	ids, err := e.users.ListWithActiveMedications(ctx)
	if err != nil {
		e.logger.Error("failed to list users for batch run", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}

func (e *Engine) generate(ctx context.Context, trigger Trigger, summary *RunSummary) error {
	users, err := e.targets(ctx, trigger.UserID)
	if err != nil {
		return err
	}
	summary.Users = len(users)

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return err
		}

		day := e.now().In(e.timezones.Location(ctx, userID))
		if trigger.TargetDate != nil {
			day = *trigger.TargetDate
		}

		failed := false
		for offset := 0; offset <= e.lookahead; offset++ {
			created, err := e.generator.EnsureDaySchedule(ctx, userID, day.AddDate(0, 0, offset))
			summary.DosesCreated += len(created)
			if err != nil {
				e.logger.Error("schedule generation failed for user",
					zap.Error(err),
					zap.String("user_id", userID),
				)
				failed = true
				break
			}
		}
		if failed {
			summary.FailedUsers++
		}
	}

	return nil
}

func (e *Engine) sweep(ctx context.Context, trigger Trigger, summary *RunSummary) error {
	var errs []error

	missed, err := e.sweeper.SweepMissed(ctx, trigger.UserID)
	if err != nil {
		errs = append(errs, err)
	}
	summary.DosesMissed = len(missed)

	sent, err := e.reminders.DispatchDue(ctx, trigger.UserID)
	if err != nil {
		errs = append(errs, err)
	}
	summary.RemindersSent = sent

	if trigger.UserID == "" {
		archived, err := e.sweeper.ArchiveExpired(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		summary.Archived = archived
	}

	return errors.Join(errs...)
}

func (e *Engine) report(ctx context.Context, trigger Trigger, summary *RunSummary) error {
	users, err := e.targets(ctx, trigger.UserID)
	if err != nil {
		return err
	}
	summary.Users = len(users)

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.reports.GenerateReport(ctx, userID); err != nil {
			e.logger.Error("report generation failed for user",
				zap.Error(err),
				zap.String("user_id", userID),
			)
			summary.FailedUsers++
			continue
		}
		summary.Reports++
	}

	return nil
}
