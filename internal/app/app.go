package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fiatbridge/internal/alerting"
	"fiatbridge/internal/config"
	"fiatbridge/internal/currency"
	"fiatbridge/internal/ledger"
	"fiatbridge/internal/monitor"
	"fiatbridge/internal/rates"
	"fiatbridge/internal/scheduler"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// FiatUnits materialises the configured fiat currency set.
func (a *App) FiatUnits() []currency.Currency {
	units := make([]currency.Currency, 0, len(a.Config.Mint.Units))
	for _, u := range a.Config.Mint.Units {
		units = append(units, currency.Currency{
			Unit:     currency.ParseUnit(u.Code),
			Decimals: u.Decimals,
		})
	}
	return units
}

// NewRateCache wires the rate source and cache from configuration.
func (a *App) NewRateCache() *rates.Cache {
	source := rates.NewCoinGecko(rates.CoinGeckoOptions{
		BaseURL:   a.Config.Rates.BaseURL,
		Timeout:   a.Config.Rates.RequestTimeout,
		UserAgent: a.Config.Rates.UserAgent,
	}, a.Logger)

	return rates.NewCache(source, rates.CacheOptions{
		Units:         a.FiatUnits(),
		ReferenceUnit: currency.ParseUnit(a.Config.Rates.ReferenceUnit),
		TTL:           a.Config.Rates.CacheTTL,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*ledger.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := ledger.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := ledger.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Watch executes the long-running rate snapshot daemon.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(a.Config.Mint.Units) == 0 {
		return errors.New("no fiat units configured; nothing to watch")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; snapshot persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:      a.Config.Monitor.Interval,
		AlignToBucket: a.Config.Monitor.AlignToBucket,
		StartupDelay:  a.Config.Monitor.StartupDelay,
	}, a.Logger)

	cache := a.NewRateCache()
	notifier := a.newNotifier()

	var snapshots ledger.SnapshotStore
	var locker ledger.AdvisoryLocker
	if store != nil {
		snapshots = store
		locker = store
	}

	mon := monitor.New(a.Config, sched, cache, snapshots, locker, notifier, a.Logger)

	a.Logger.Info().Msg("starting rate monitor")
	err = mon.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("rate monitor stopped")
	return nil
}

// SummaryOptions configure the summary command.
type SummaryOptions struct {
	Unit  string
	Start *time.Time
	End   *time.Time
	JSON  bool
}

// EntriesOptions configure the entries command.
type EntriesOptions struct {
	Unit      string
	Operation string
	Limit     int
	Offset    int
}

// ExportOptions hold parameters for exporting accounting history.
type ExportOptions struct {
	From       *time.Time
	To         *time.Time
	Unit       string
	CSVPath    string
	PNGPath    string
	MaxEntries int
}
