package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ldpj/backend/internal/exporter"
	"github.com/ldpj/backend/internal/store"
)

var (
	exportDBPath    string
	exportOutPath   string
	exportCavityID  int
	exportLabel     int
	exportStartTime string
	exportEndTime   string
	exportLimit     int
)

func init() {
	exportCmd.Flags().StringVar(&exportDBPath, "db", "ldpj.db", "path to the record store database")
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "output file path (default: stdout)")
	exportCmd.Flags().IntVar(&exportCavityID, "cavity-id", -1, "filter to one cavity index (-1: no filter)")
	exportCmd.Flags().IntVar(&exportLabel, "label", -2, "filter to one label, -1/0/1 (-2: no filter)")
	exportCmd.Flags().StringVar(&exportStartTime, "start", "", "filter: ISO8601 start timestamp")
	exportCmd.Flags().StringVar(&exportEndTime, "end", "", "filter: ISO8601 end timestamp")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "maximum rows to export")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export-csv",
	Short: "Export persisted test records to CSV, reading the store directly",
	RunE: func(cmd *cobra.Command, args []string) error {
		recorder, err := store.Open(exportDBPath)
		if err != nil {
			return fmt.Errorf("ldpjctl: opening store at %s: %w", exportDBPath, err)
		}
		defer recorder.Close()

		filters := store.Filters{
			StartTime: exportStartTime,
			EndTime:   exportEndTime,
			Limit:     exportLimit,
		}
		if exportCavityID >= 0 {
			filters.CavityID = &exportCavityID
		}
		if exportLabel >= -1 {
			filters.Label = &exportLabel
		}

		out := os.Stdout
		if exportOutPath != "" {
			f, err := os.Create(exportOutPath)
			if err != nil {
				return fmt.Errorf("ldpjctl: creating %s: %w", exportOutPath, err)
			}
			defer f.Close()
			out = f
		}

		if err := exporter.WriteCSV(out, recorder, filters); err != nil {
			return fmt.Errorf("ldpjctl: export failed: %w", err)
		}
		return nil
	},
}
