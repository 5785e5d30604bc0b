package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("ledger: pool not configured")
)

const (
	insertEntrySQL = `INSERT INTO accounting_entries (
        unit,
        amount,
        operation,
        exchange_rate,
        sat_amount,
        fee_percent,
        fee_amount
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, created_at;`

	summarizeBaseSQL = `SELECT
        unit,
        COALESCE(SUM(amount)     FILTER (WHERE operation = 'mint'), 0) AS minted,
        COALESCE(SUM(amount)     FILTER (WHERE operation = 'melt'), 0) AS melted,
        COALESCE(SUM(fee_amount) FILTER (WHERE operation = 'mint'), 0) AS mint_fees,
        COALESCE(SUM(fee_amount) FILTER (WHERE operation = 'melt'), 0) AS melt_fees,
        COUNT(*) FILTER (WHERE operation = 'mint') AS mint_count,
        COUNT(*) FILTER (WHERE operation = 'melt') AS melt_count
    FROM accounting_entries`

	listEntriesBaseSQL = `SELECT
        id,
        unit,
        amount,
        operation,
        exchange_rate,
        sat_amount,
        fee_percent,
        fee_amount,
        created_at
    FROM accounting_entries`

	upsertSnapshotSQL = `INSERT INTO rate_snapshots (
        bucket_ts,
        unit,
        rate
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (bucket_ts, unit) DO UPDATE
    SET rate = EXCLUDED.rate;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// EntryStore defines operations for accounting entry persistence.
type EntryStore interface {
	AppendEntry(ctx context.Context, entry Entry) (Entry, error)
	Summarize(ctx context.Context, filter SummaryFilter) ([]Summary, error)
	ListEntries(ctx context.Context, filter EntriesFilter) ([]Entry, error)
}

// SnapshotStore defines operations for rate snapshot persistence.
type SnapshotStore interface {
	UpsertRateSnapshot(ctx context.Context, snapshot RateSnapshot) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to accounting entries and rate snapshots.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// AppendEntry persists one accounting entry and returns it with its
// generated identity.
func (s *Store) AppendEntry(ctx context.Context, entry Entry) (Entry, error) {
	pool, err := s.getPool()
	if err != nil {
		return Entry{}, err
	}

	row := pool.QueryRow(ctx, insertEntrySQL,
		entry.Unit,
		entry.Amount,
		string(entry.Operation),
		entry.ExchangeRate.String(),
		entry.SatAmount,
		entry.FeePercent,
		entry.FeeAmount,
	)

	if scanErr := row.Scan(&entry.ID, &entry.CreatedAt); scanErr != nil {
		return Entry{}, fmt.Errorf("append accounting entry: %w", scanErr)
	}
	return entry, nil
}

// Summarize aggregates matching entries per unit. Pure read, no side effects.
func (s *Store) Summarize(ctx context.Context, filter SummaryFilter) ([]Summary, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	where, args := buildConditions(filter.Unit, "", filter.Start, filter.End)
	query := summarizeBaseSQL + where + " GROUP BY unit ORDER BY unit;"

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("summarize entries: %w", queryErr)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(
			&sum.Unit,
			&sum.Minted,
			&sum.Melted,
			&sum.MintFees,
			&sum.MeltFees,
			&sum.MintCount,
			&sum.MeltCount,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return summaries, nil
}

// ListEntries lists matching entries, newest first.
func (s *Store) ListEntries(ctx context.Context, filter EntriesFilter) ([]Entry, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	where, args := buildConditions(filter.Unit, filter.Operation, filter.Start, filter.End)
	query := listEntriesBaseSQL + where + " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	query += ";"

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list entries: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// UpsertRateSnapshot persists or updates one rate observation.
func (s *Store) UpsertRateSnapshot(ctx context.Context, snapshot RateSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		snapshot.Bucket,
		snapshot.Unit,
		snapshot.Rate.String(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert rate snapshot: %w", execErr)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func buildConditions(unit string, op Operation, start, end *time.Time) (string, []interface{}) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if unit != "" {
		args = append(args, unit)
		conditions = append(conditions, fmt.Sprintf("unit = $%d", len(args)))
	}
	if op != "" {
		args = append(args, string(op))
		conditions = append(conditions, fmt.Sprintf("operation = $%d", len(args)))
	}
	if start != nil {
		args = append(args, *start)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanEntry(rows pgx.Rows) (Entry, error) {
	var (
		entry   Entry
		op      string
		rateStr string
	)

	if err := rows.Scan(
		&entry.ID,
		&entry.Unit,
		&entry.Amount,
		&op,
		&rateStr,
		&entry.SatAmount,
		&entry.FeePercent,
		&entry.FeeAmount,
		&entry.CreatedAt,
	); err != nil {
		return Entry{}, err
	}

	entry.Operation = Operation(op)

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return Entry{}, fmt.Errorf("parse exchange rate: %w", err)
	}
	entry.ExchangeRate = rate

	return entry, nil
}

var (
	_ EntryStore     = (*Store)(nil)
	_ SnapshotStore  = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
