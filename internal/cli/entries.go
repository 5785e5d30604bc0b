package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fiatbridge/internal/app"
	"fiatbridge/internal/ledger"
)

var (
	entriesUnit      string
	entriesOperation string
	entriesLimit     int
	entriesOffset    int
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Show individual accounting entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if entriesLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		switch ledger.Operation(entriesOperation) {
		case "", ledger.OpMint, ledger.OpMelt:
		default:
			return fmt.Errorf("--operation must be mint or melt")
		}

		opts := app.EntriesOptions{
			Unit:      entriesUnit,
			Operation: entriesOperation,
			Limit:     entriesLimit,
			Offset:    entriesOffset,
		}

		return getApp().Entries(cmd.Context(), opts)
	},
}

func init() {
	entriesCmd.Flags().StringVarP(&entriesUnit, "unit", "u", "", "Filter by currency unit")
	entriesCmd.Flags().StringVarP(&entriesOperation, "operation", "o", "", "Filter by operation type (mint|melt)")
	entriesCmd.Flags().IntVarP(&entriesLimit, "limit", "l", 50, "Number of entries to show")
	entriesCmd.Flags().IntVar(&entriesOffset, "offset", 0, "Offset for pagination")
}
