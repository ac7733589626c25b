package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"maildigest/internal/app"
	"maildigest/internal/config"
	"maildigest/internal/logging"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "maildigest",
		Short:         "Newsletter digest engine",
		Long:          "Fetches newsletters from a mailbox, classifies and summarizes them with an LLM, and composes weekly digests.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newDailyCommand())
	root.AddCommand(newWeeklyCommand())
	root.AddCommand(newScheduleCommand())
	root.AddCommand(newStatsCommand())
	root.AddCommand(newRecentCommand())

	return root
}

// buildApp loads .env overrides and configuration, then wires the
// application. Every subcommand goes through here.
func buildApp() (*app.Application, config.Config, error) {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		return nil, cfg, err
	}
	return application, cfg, nil
}

func newDailyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Run one daily ingestion cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.RunDaily(signalContext(cmd.Context()))
			if err != nil {
				return err
			}

			fmt.Printf("Fetched %d emails, %d candidates, %d stored.\n",
				report.Fetched, report.Candidates, report.Stored)
			return nil
		},
	}
}

func newWeeklyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "weekly",
		Short: "Run one weekly digest cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.RunWeekly(signalContext(cmd.Context()))
			if err != nil {
				return err
			}

			if report.DigestPath == "" {
				fmt.Printf("No digest produced (%d records, %d genres).\n", report.Records, report.Genres)
				return nil
			}
			fmt.Printf("Digest written to %s (%d newsletters, %d genres).\n",
				report.DigestPath, report.Records, report.Genres)
			if report.PublishedID != "" {
				fmt.Printf("Published to Notion as %s.\n", report.PublishedID)
			}
			return nil
		},
	}
}

func newScheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily and weekly jobs on their configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cfg, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			fmt.Printf("Scheduling daily at %s and weekly on %s at %s (%s).\n",
				cfg.Scheduler.DailyAt, cfg.Scheduler.WeeklyDay, cfg.Scheduler.WeeklyAt, cfg.Scheduler.Timezone)
			return application.RunScheduled(signalContext(cmd.Context()))
		},
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			stats, err := application.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Total newsletters: %d\n", stats.Total)
			fmt.Printf("Last 7 days:       %d\n", stats.Recent)

			genres := make([]string, 0, len(stats.ByGenre))
			for genre := range stats.ByGenre {
				genres = append(genres, genre)
			}
			sort.Slice(genres, func(i, j int) bool {
				if stats.ByGenre[genres[i]] != stats.ByGenre[genres[j]] {
					return stats.ByGenre[genres[i]] > stats.ByGenre[genres[j]]
				}
				return genres[i] < genres[j]
			})
			for _, genre := range genres {
				fmt.Printf("  %-20s %d\n", genre, stats.ByGenre[genre])
			}
			return nil
		},
	}
}

func newRecentCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "recent <genre>",
		Short: "List recent newsletters of one genre",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			records, err := application.RecentByGenre(cmd.Context(), args[0], days)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Printf("No newsletters in the last %d days.\n", days)
				return nil
			}
			for _, record := range records {
				fmt.Printf("%s  %-30s  %s (%d words)\n",
					record.Date, record.Sender, record.Subject, record.WordCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "trailing window in days")

	return cmd
}

// signalContext cancels the returned context on SIGINT or SIGTERM so
// pacing waits and in-flight requests unwind cleanly.
func signalContext(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	ctx, _ := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return ctx
}
