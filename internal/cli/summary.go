package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fiatbridge/internal/app"
)

var (
	summaryUnit   string
	summaryFrom   string
	summaryTo     string
	summaryAsJSON bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show per-unit accounting summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SummaryOptions{
			Unit: summaryUnit,
			JSON: summaryAsJSON,
		}

		if summaryFrom != "" {
			from, err := parseTimeFlag(summaryFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.Start = &from
		}

		if summaryTo != "" {
			to, err := parseTimeFlag(summaryTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.End = &to
		}

		return getApp().Summary(cmd.Context(), opts)
	},
}

func init() {
	summaryCmd.Flags().StringVarP(&summaryUnit, "unit", "u", "", "Filter by currency unit (e.g. usd, eur)")
	summaryCmd.Flags().StringVar(&summaryFrom, "from", "", "Start timestamp (RFC3339 or YYYY-MM-DD, inclusive)")
	summaryCmd.Flags().StringVar(&summaryTo, "to", "", "End timestamp (RFC3339 or YYYY-MM-DD, exclusive)")
	summaryCmd.Flags().BoolVar(&summaryAsJSON, "json", false, "Output as JSON")
}
