package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/funding-harvester/internal/ingest"
)

var (
	mergeKeepID  int64
	mergeIDs     []int64
	mergePreview bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge duplicate companies into one",
	Long:  "Re-points all funding events and identifiers from the merged companies onto the surviving one, widens its seen span, and deletes the duplicates. Atomic: on any failure nothing changes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, ingest.Options{})
		if err != nil {
			return err
		}
		defer env.Close()

		if mergePreview {
			preview, err := env.Merger.Preview(ctx, mergeKeepID, mergeIDs)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(preview)
		}

		if err := env.Merger.Merge(ctx, mergeKeepID, mergeIDs); err != nil {
			return err
		}

		fmt.Printf("merged %d companies into %d\n", len(mergeIDs), mergeKeepID)
		return nil
	},
}

func init() {
	mergeCmd.Flags().Int64Var(&mergeKeepID, "keep", 0, "company ID to keep (required)")
	mergeCmd.Flags().Int64SliceVar(&mergeIDs, "merge", nil, "company IDs to absorb (required)")
	mergeCmd.Flags().BoolVar(&mergePreview, "preview", false, "show the effect without merging")
	_ = mergeCmd.MarkFlagRequired("keep")
	_ = mergeCmd.MarkFlagRequired("merge")
	rootCmd.AddCommand(mergeCmd)
}
