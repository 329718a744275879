// Package scheduler fires engine triggers on cron schedules inside the server
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/service"
	"go.uber.org/zap"
)

// Runner executes one engine trigger
type Runner interface {
	Run(ctx context.Context, trigger service.Trigger) (*service.RunSummary, error)
}

// Schedule maps each engine mode to a cron spec with a seconds field. An
// empty spec leaves that mode unscheduled.
type Schedule struct {
	Generate string
	Sweep    string
	Report   string
}

// Scheduler runs batch triggers for every user on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Scheduler and registers the jobs of schedule. Each job run
// is bounded by timeout, and a run still in progress causes the next tick of
// the same job to be skipped.
func New(runner Runner, schedule Schedule, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	cronLogger := zapCronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}

	jobs := []struct {
		mode service.Mode
		spec string
	}{
		{service.ModeGenerate, schedule.Generate},
		{service.ModeSweep, schedule.Sweep},
		{service.ModeReport, schedule.Report},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		mode := job.mode
		if _, err := s.cron.AddFunc(job.spec, func() { s.runJob(mode) }); err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", mode, job.spec, err)
		}
		logger.Info("scheduled engine job", zap.String("mode", string(mode)), zap.String("spec", job.spec))
	}

	return s, nil
}

// Start begins firing jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs or ctx, whichever ends first
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

// Jobs returns the number of registered jobs
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runJob(mode service.Mode) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary, err := s.runner.Run(ctx, service.Trigger{Mode: mode})
	if err != nil {
		s.logger.Error("scheduled engine run failed", zap.Error(err), zap.String("mode", string(mode)))
		return
	}
	if summary.FailedUsers > 0 {
		s.logger.Warn("scheduled engine run had failures",
			zap.String("mode", string(mode)),
			zap.Int("failed_users", summary.FailedUsers),
		)
	}
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
