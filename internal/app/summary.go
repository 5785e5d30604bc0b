package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"fiatbridge/internal/ledger"
)

// Summary prints per-unit accounting aggregates.
func (a *App) Summary(ctx context.Context, opts SummaryOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot summarize")
	}
	if closeStore != nil {
		defer closeStore()
	}

	filter := ledger.SummaryFilter{
		Unit:  strings.ToLower(opts.Unit),
		Start: opts.Start,
		End:   opts.End,
	}

	summaries, err := store.Summarize(ctx, filter)
	if err != nil {
		return err
	}

	if opts.JSON {
		return printSummaryJSON(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(os.Stdout, "no accounting entries found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Unit\tMinted\tMelted\tNet\tMint Fees\tMelt Fees\tTotal Fees\tMint Count\tMelt Count")

	for _, sum := range summaries {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			strings.ToUpper(sum.Unit),
			sum.Minted,
			sum.Melted,
			sum.Minted-sum.Melted,
			sum.MintFees,
			sum.MeltFees,
			sum.MintFees+sum.MeltFees,
			sum.MintCount,
			sum.MeltCount,
		)
	}

	return writer.Flush()
}

func printSummaryJSON(summaries []ledger.Summary) error {
	out := make(map[string]map[string]int64, len(summaries))
	for _, sum := range summaries {
		out[sum.Unit] = map[string]int64{
			"minted":     sum.Minted,
			"melted":     sum.Melted,
			"mint_fees":  sum.MintFees,
			"melt_fees":  sum.MeltFees,
			"mint_count": sum.MintCount,
			"melt_count": sum.MeltCount,
		}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}
