package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fiatbridge/internal/app"
)

var (
	exportFrom       string
	exportTo         string
	exportUnit       string
	exportCSVPath    string
	exportPNGPath    string
	exportMaxEntries int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export accounting entries as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Unit:       exportUnit,
			CSVPath:    exportCSVPath,
			PNGPath:    exportPNGPath,
			MaxEntries: exportMaxEntries,
		}

		if exportFrom != "" {
			from, err := parseTimeFlag(exportFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}

		if exportTo != "" {
			to, err := parseTimeFlag(exportTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start timestamp (RFC3339 or YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End timestamp (RFC3339 or YYYY-MM-DD, exclusive)")
	exportCmd.Flags().StringVarP(&exportUnit, "unit", "u", "", "Currency unit (required for --png)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().IntVar(&exportMaxEntries, "max-entries", 0, "Maximum entries to export (defaults to config)")
}
