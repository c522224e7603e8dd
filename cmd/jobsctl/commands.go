package main

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/app"
	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/jobs"
	"github.com/songer666/jobs-ai/internal/middleware"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/quota"
	"github.com/songer666/jobs-ai/internal/repositories"
	"github.com/songer666/jobs-ai/internal/utils"
)

const commandTimeout = 5 * time.Minute

// loadApp wires the service without a language model. None of the commands
// generate text.
func loadApp(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger, app.Options{SkipProvider: true})
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			db, err := app.OpenDatabase(cfg.Database, logger)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var pendingTTL, evaluatingAfter time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance pass",
		Long:  "Deletes pending interviews that were never started and completes evaluations that never reported back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			a, logger, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			maintenance := a.Config.Maintenance
			if cmd.Flags().Changed("pending-ttl") {
				maintenance.PendingTTL = pendingTTL
			}
			if cmd.Flags().Changed("evaluating-after") {
				maintenance.EvaluatingAfter = evaluatingAfter
			}
			return runSweep(ctx, cmd, jobs.NewMaintenanceJob(a.Service, maintenance, logger))
		},
	}

	cmd.Flags().DurationVar(&pendingTTL, "pending-ttl", 0, "override the age after which pending interviews are deleted")
	cmd.Flags().DurationVar(&evaluatingAfter, "evaluating-after", 0, "override the age after which evaluations are forced complete")
	return cmd
}

func runSweep(ctx context.Context, cmd *cobra.Command, job *jobs.MaintenanceJob) error {
	report, err := job.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d stale pending interviews\n", report.PendingDeleted)
	fmt.Fprintf(cmd.OutOrStdout(), "Completed %d stuck evaluations\n", report.EvaluationsForced)
	return nil
}

func newUsageCmd() *cobra.Command {
	var userID, role string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show today's quota usage for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			a, _, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return runUsage(ctx, cmd, a.Quota, models.Caller{ID: userID, Role: role})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().StringVar(&role, "role", "user", "role used to decide whether limits apply")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runUsage(ctx context.Context, cmd *cobra.Command, counter *quota.Counter, caller models.Caller) error {
	usage, err := counter.Usage(ctx, caller)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage for %s on %s\n", caller.ID, counter.Today())
	for _, kind := range quota.Kinds() {
		entry := usage[kind]
		if entry.Limit == quota.Unlimited {
			fmt.Fprintf(out, "  %-18s %d used, unlimited\n", kind, entry.Used)
			continue
		}
		fmt.Fprintf(out, "  %-18s %d/%d used, %d remaining\n", kind, entry.Used, entry.Limit, entry.Remaining)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count interviews by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			a, _, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return runStats(ctx, cmd, a.Interviews)
		},
	}
}

func runStats(ctx context.Context, cmd *cobra.Command, repo *repositories.InterviewRepository) error {
	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		return err
	}
	statuses := []string{
		string(models.StatusPending),
		string(models.StatusInProgress),
		string(models.StatusEvaluating),
		string(models.StatusCompleted),
	}
	var extra []string
	for status := range counts {
		if !slices.Contains(statuses, string(status)) {
			extra = append(extra, string(status))
		}
	}
	sort.Strings(extra)
	statuses = append(statuses, extra...)

	out := cmd.OutOrStdout()
	for _, status := range statuses {
		fmt.Fprintf(out, "%-12s %d\n", status, counts[models.InterviewStatus(status)])
	}
	return nil
}

func newTokenCmd() *cobra.Command {
	var userID, name, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a caller token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runToken(cmd, cfg.JWTSecret, models.Caller{ID: userID, Name: name, Role: role}, ttl)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (token subject)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "user", "caller role")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runToken(cmd *cobra.Command, secret string, caller models.Caller, ttl time.Duration) error {
	token, err := middleware.IssueCallerToken(secret, caller, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
