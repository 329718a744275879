// Command trigger runs one engine trigger and exits. It is meant for system
// cron or a Kubernetes CronJob when the in-process scheduler is off.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/app"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/config"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/service"
)

// Runner executes one engine trigger
type Runner interface {
	Run(ctx context.Context, trigger service.Trigger) (*service.RunSummary, error)
}

// RunnerFactory builds a Runner and a cleanup function
type RunnerFactory func(ctx context.Context) (Runner, func(), error)

// defaultRunnerFactory loads configuration and connects the full engine
func defaultRunnerFactory(ctx context.Context) (Runner, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger, err := app.NewLogger(cfg.Logging, cfg.Server.Environment)
	if err != nil {
		return nil, nil, err
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}

	return application.Engine, func() {
		application.Close()
		logger.Sync()
	}, nil
}

type triggerOptions struct {
	userID  string
	date    string
	timeout time.Duration
}

func newRootCmd(factory RunnerFactory, out io.Writer) *cobra.Command {
	opts := &triggerOptions{}

	root := &cobra.Command{
		Use:           "trigger",
		Short:         "Run one medication adherence engine trigger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.userID, "user", "", "limit the run to one user ID (default: every user with an active medication)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "abort the run after this long")

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create missing dose instances and queue their reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(cmd.Context(), factory, out, service.ModeGenerate, opts)
		},
	}
	generate.Flags().StringVar(&opts.date, "date", "", "target calendar day as YYYY-MM-DD (default: each user's local today)")

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue doses missed, send due reminders and archive old misses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(cmd.Context(), factory, out, service.ModeSweep, opts)
		},
	}

	report := &cobra.Command{
		Use:   "report",
		Short: "Generate weekly adherence reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(cmd.Context(), factory, out, service.ModeReport, opts)
		},
	}

	root.AddCommand(generate, sweep, report)
	return root
}

func buildTrigger(mode service.Mode, opts *triggerOptions) (service.Trigger, error) {
	trigger := service.Trigger{Mode: mode}

	if opts.userID != "" {
		if _, err := uuid.Parse(opts.userID); err != nil {
			return trigger, fmt.Errorf("invalid --user: %w", err)
		}
		trigger.UserID = opts.userID
	}

	if opts.date != "" {
		day, err := time.Parse(time.DateOnly, opts.date)
		if err != nil {
			return trigger, fmt.Errorf("invalid --date, want YYYY-MM-DD: %w", err)
		}
		trigger.TargetDate = &day
	}

	return trigger, nil
}

func runTrigger(ctx context.Context, factory RunnerFactory, out io.Writer, mode service.Mode, opts *triggerOptions) error {
	trigger, err := buildTrigger(mode, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	runner, cleanup, err := factory(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer cleanup()

	summary, runErr := runner.Run(ctx, trigger)
	if summary != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("%s run failed: %w", mode, runErr)
	}
	if summary != nil && summary.FailedUsers > 0 {
		return fmt.Errorf("%s run failed for %d of %d users", mode, summary.FailedUsers, summary.Users)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultRunnerFactory, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
