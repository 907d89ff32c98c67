package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/jobs"
	"github.com/blogsphere/blogapi/pkg/logging"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run the scheduled maintenance jobs",
	Long: `Run the counter reconciliation and the expired token purge on their cron
schedules (BLOG_RECOUNT_CRON, BLOG_TOKEN_PURGE_CRON) until SIGINT or
SIGTERM. An empty schedule disables that job.`,
	RunE: runJobs,
}

var recountCmd = &cobra.Command{
	Use:   "recount",
	Short: "Reconcile stored counters once",
	Long: `Recompute post counts of categories and tags and comment counts of posts
from the rows that back them, and print how many counters were corrected.`,
	RunE: runRecount,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(recountCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	scheduler, err := jobs.NewScheduler(&cfg.Jobs, jobs.NewMaintenance(database.Store()))
	if err != nil {
		return err
	}
	if scheduler.Entries() == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.WithComponent("jobs").Info("Scheduler started", zap.Int("jobs", scheduler.Entries()))
	return scheduler.Run(ctx)
}

func runRecount(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	res, err := jobs.NewMaintenance(database.Store()).Recount(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "categories corrected: %d\n", res.Categories)
	fmt.Fprintf(out, "tags corrected:       %d\n", res.Tags)
	fmt.Fprintf(out, "posts corrected:      %d\n", res.Posts)
	return nil
}
