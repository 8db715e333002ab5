package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/funding-harvester/internal/export"
	"github.com/sells-group/funding-harvester/internal/ingest"
	"github.com/sells-group/funding-harvester/internal/model"
)

var (
	exportDir    string
	exportFormat string
	exportSource string
	exportType   string
	exportName   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the company/event dataset to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, ingest.Options{})
		if err != nil {
			return err
		}
		defer env.Close()

		dir := exportDir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		format := exportFormat
		if format == "" {
			format = cfg.Export.Format
		}

		exporter := export.NewExporter(env.Store)
		path, err := exporter.Export(ctx, dir, export.Format(format), model.EventFilter{
			Source:      exportSource,
			FundingType: exportType,
			NameQuery:   exportName,
		})
		if err != nil {
			return err
		}

		fmt.Println(path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default from config)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: csv, xlsx, yaml (default from config)")
	exportCmd.Flags().StringVar(&exportSource, "source", "", "only events from this source")
	exportCmd.Flags().StringVar(&exportType, "funding-type", "", "only events of this funding type")
	exportCmd.Flags().StringVar(&exportName, "name", "", "only companies whose name matches this substring")
	rootCmd.AddCommand(exportCmd)
}
