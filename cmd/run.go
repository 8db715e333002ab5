package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funding-harvester/internal/ingest"
)

var (
	runSources     []string
	runWindowYears int
	runParallel    bool
	runCaptureRaw  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass over the configured sources",
	Long:  "Fetches funding records from each selected source over the lookback window, resolves companies, and persists the results. Each source gets its own ledger entry.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, ingest.Options{
			CaptureRaw: runCaptureRaw || cfg.Ingest.CaptureRaw,
			Parallel:   runParallel || cfg.Ingest.Parallel,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		window := runWindowYears
		if window == 0 {
			window = cfg.Ingest.WindowYears
		}
		start, end := ingestWindow(window)
		sources := selectedSources(runSources)

		zap.L().Info("starting ingestion",
			zap.Strings("sources", sources),
			zap.Int("window_years", window),
		)

		runs, runErr := env.Pipeline.RunAll(ctx, sources, start, end)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runs); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runSources, "sources", nil, "sources to ingest (default from config)")
	runCmd.Flags().IntVar(&runWindowYears, "window-years", 0, "lookback window in years (default from config)")
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "run sources concurrently")
	runCmd.Flags().BoolVar(&runCaptureRaw, "capture-raw", false, "store raw upstream payloads for auditing")
	rootCmd.AddCommand(runCmd)
}
