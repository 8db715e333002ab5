package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funding-harvester/internal/ingest"
	"github.com/sells-group/funding-harvester/internal/schedule"
)

var (
	scheduleCron     string
	scheduleInterval time.Duration
	scheduleSources  []string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run ingestion on a recurring schedule",
	Long:  "Blocks and runs the ingestion pipeline on a cron schedule (or a fixed interval), until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, ingest.Options{
			CaptureRaw: cfg.Ingest.CaptureRaw,
			Parallel:   cfg.Ingest.Parallel,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		cron := scheduleCron
		if cron == "" {
			cron = cfg.Schedule.Cron
		}
		interval := scheduleInterval
		if interval == 0 && cfg.Schedule.IntervalSecs > 0 {
			interval = time.Duration(cfg.Schedule.IntervalSecs) * time.Second
		}
		sources := selectedSources(scheduleSources)

		job := func(jobCtx context.Context) {
			start, end := ingestWindow(cfg.Ingest.WindowYears)
			if _, err := env.Pipeline.RunAll(jobCtx, sources, start, end); err != nil {
				zap.L().Error("scheduled ingestion failed", zap.Error(err))
			}
		}

		s := schedule.New(schedule.Options{Cron: cron, Interval: interval}, job)
		return s.Run(ctx)
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "cron expression (default from config)")
	scheduleCmd.Flags().DurationVar(&scheduleInterval, "interval", 0, "fixed interval between runs; overrides cron (e.g. 6h)")
	scheduleCmd.Flags().StringSliceVar(&scheduleSources, "sources", nil, "sources to ingest (default from config)")
	rootCmd.AddCommand(scheduleCmd)
}
