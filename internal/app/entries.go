package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"fiatbridge/internal/ledger"
)

// Entries prints individual accounting entries, newest first.
func (a *App) Entries(ctx context.Context, opts EntriesOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot list entries")
	}
	if closeStore != nil {
		defer closeStore()
	}

	filter := ledger.EntriesFilter{
		Unit:      strings.ToLower(opts.Unit),
		Operation: ledger.Operation(opts.Operation),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}

	entries, err := store.ListEntries(ctx, filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no accounting entries found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tUnit\tAmount\tOperation\tExchange Rate\tSat Amount\tFee %\tFee Amount\tCreated")

	for _, entry := range entries {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%d\t%s\t%s\t%d\t%.2f%%\t%d\t%s\n",
			entry.ID,
			strings.ToUpper(entry.Unit),
			entry.Amount,
			entry.Operation,
			entry.ExchangeRate.StringFixed(6),
			entry.SatAmount,
			entry.FeePercent,
			entry.FeeAmount,
			entry.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	return writer.Flush()
}
