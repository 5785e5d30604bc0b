package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fiatbridge/internal/alerting"
	"fiatbridge/internal/config"
	"fiatbridge/internal/currency"
	"fiatbridge/internal/ledger"
	"fiatbridge/internal/rates"
	"fiatbridge/internal/scheduler"
)

// Monitor periodically refreshes the rate cache, persists per-unit rate
// snapshots for audit, and alerts when the reference rate moves more than
// the configured threshold between ticks.
type Monitor struct {
	scheduler *scheduler.Scheduler
	cache     *rates.Cache
	snapshots ledger.SnapshotStore
	locker    ledger.AdvisoryLocker
	notifier  alerting.Notifier
	logger    zerolog.Logger

	reference currency.Unit
	threshold decimal.Decimal
	alertsOn  bool
	lockKey   int64

	lastReference *decimal.Decimal
}

// New constructs the rate monitor.
func New(cfg *config.Config, sched *scheduler.Scheduler, cache *rates.Cache, snapshots ledger.SnapshotStore, locker ledger.AdvisoryLocker, notifier alerting.Notifier, logger zerolog.Logger) *Monitor {
	threshold := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.ThresholdPct > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.ThresholdPct)
	}

	return &Monitor{
		scheduler: sched,
		cache:     cache,
		snapshots: snapshots,
		locker:    locker,
		notifier:  notifier,
		logger:    logger.With().Str("component", "monitor").Logger(),
		reference: currency.ParseUnit(cfg.Rates.ReferenceUnit),
		threshold: threshold,
		alertsOn:  cfg.Alerting.Enabled,
		lockKey:   cfg.Monitor.AdvisoryLockKey,
	}
}

// Run begins the snapshot loop.
func (m *Monitor) Run(ctx context.Context) error {
	if m.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return m.scheduler.Run(ctx, m.ProcessBucket)
}

// ProcessBucket executes one snapshot tick, guarded by the advisory lock so
// only one replica records snapshots at a time.
func (m *Monitor) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := m.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		m.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return m.executeBucket(ctx, bucket)
}

func (m *Monitor) executeBucket(ctx context.Context, bucket time.Time) error {
	if err := m.cache.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh rates: %w", err)
	}

	observed := m.cache.Rates()
	for unit, rate := range observed {
		if m.snapshots == nil {
			break
		}
		snapshot := ledger.RateSnapshot{
			Bucket: bucket,
			Unit:   string(unit),
			Rate:   rate,
		}
		if err := m.snapshots.UpsertRateSnapshot(ctx, snapshot); err != nil {
			m.logger.Error().Err(err).Time("bucket", bucket).Str("unit", string(unit)).Msg("failed to persist rate snapshot")
		}
	}

	m.logger.Info().Time("bucket", bucket).Int("units", len(observed)).Msg("rate snapshot recorded")

	m.checkReferenceMovement(ctx, bucket, observed)
	return nil
}

func (m *Monitor) checkReferenceMovement(ctx context.Context, bucket time.Time, observed map[currency.Unit]decimal.Decimal) {
	current, ok := observed[m.reference]
	if !ok {
		return
	}

	previous := m.lastReference
	value := current
	m.lastReference = &value

	if !m.alertsOn || m.notifier == nil || m.threshold.IsZero() || previous == nil || previous.IsZero() {
		return
	}

	deviation := current.Div(*previous).Sub(decimal.NewFromInt(1)).Mul(dec100)
	if deviation.Abs().LessThanOrEqual(m.threshold) {
		return
	}

	note := alerting.Notification{
		Bucket:       bucket,
		Unit:         string(m.reference),
		PreviousRate: *previous,
		CurrentRate:  current,
		DeviationPct: deviation,
		ThresholdPct: m.threshold,
	}
	if err := m.notifier.Notify(ctx, note); err != nil {
		m.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
	}
}

func (m *Monitor) acquireLock(ctx context.Context) (func(), bool, error) {
	if m.lockKey == 0 || m.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := m.locker.TryAdvisoryLock(ctx, m.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

var dec100 = decimal.NewFromInt(100)
