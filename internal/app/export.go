package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"fiatbridge/internal/ledger"
)

// Export renders accounting history as CSV and/or a PNG chart of cumulative
// minted and melted totals.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.PNGPath != "" && opts.Unit == "" {
		return errors.New("--unit is required when exporting a chart")
	}

	opts.MaxEntries = a.Config.ResolveMaxEntries(opts.MaxEntries)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	filter := ledger.EntriesFilter{
		Unit:  strings.ToLower(opts.Unit),
		Start: opts.From,
		End:   opts.To,
		Limit: opts.MaxEntries,
	}

	entries, err := store.ListEntries(ctx, filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.Logger.Info().Msg("no entries found for export window")
		return nil
	}

	// ListEntries returns newest first; exports want chronological order.
	reverseEntries(entries)

	a.Logger.Info().Int("entries", len(entries)).Msg("exporting accounting entries")

	if opts.CSVPath != "" {
		if err := writeEntriesCSV(opts.CSVPath, entries); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeEntriesPNG(opts.PNGPath, opts.Unit, entries); err != nil {
			return err
		}
	}

	return nil
}

func reverseEntries(entries []ledger.Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

func writeEntriesCSV(path string, entries []ledger.Entry) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "unit", "amount", "operation", "exchange_rate", "sat_amount", "fee_percent", "fee_amount", "created_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, entry := range entries {
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.Unit,
			strconv.FormatInt(entry.Amount, 10),
			string(entry.Operation),
			entry.ExchangeRate.String(),
			strconv.FormatInt(entry.SatAmount, 10),
			strconv.FormatFloat(entry.FeePercent, 'f', -1, 64),
			strconv.FormatInt(entry.FeeAmount, 10),
			entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeEntriesPNG(path, unit string, entries []ledger.Entry) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(entries))
	minted := make([]float64, len(entries))
	melted := make([]float64, len(entries))

	var mintedTotal, meltedTotal int64
	for i, entry := range entries {
		switch entry.Operation {
		case ledger.OpMint:
			mintedTotal += entry.Amount
		case ledger.OpMelt:
			meltedTotal += entry.Amount
		}
		x[i] = entry.CreatedAt
		minted[i] = float64(mintedTotal)
		melted[i] = float64(meltedTotal)
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: fmt.Sprintf("Cumulative %s sub-units", strings.ToUpper(unit)),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Minted",
				XValues: x,
				YValues: minted,
			},
			chart.TimeSeries{
				Name:    "Melted",
				XValues: x,
				YValues: melted,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
