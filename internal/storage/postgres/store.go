package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"holdersync/internal/model"
	"holdersync/internal/storage"
)

// Store provides Postgres persistence for pools, holder snapshots, metrics and the price cache.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Exec runs a statement without arguments, used for schema migrations.
func (s *Store) Exec(ctx context.Context, sql string) error {
	_, err := s.pool.Exec(ctx, sql)
	return err
}

// CreatePool inserts a tracked pool and returns its id.
func (s *Store) CreatePool(ctx context.Context, pool model.Pool) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO pools (pair_name, address, chain, platform_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, pool.PairName, strings.ToLower(pool.Address), pool.Chain, pool.PlatformID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pool: %w", err)
	}
	return id, nil
}

func (s *Store) GetPool(ctx context.Context, id int64) (model.Pool, error) {
	var pool model.Pool
	err := s.pool.QueryRow(ctx, `
		SELECT id, pair_name, address, chain, platform_id
		FROM pools
		WHERE id = $1
	`, id).Scan(&pool.ID, &pool.PairName, &pool.Address, &pool.Chain, &pool.PlatformID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Pool{}, fmt.Errorf("pool %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return model.Pool{}, fmt.Errorf("query pool: %w", err)
	}
	return pool, nil
}

func (s *Store) ListSyncablePools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pair_name, address, chain, platform_id
		FROM pools
		WHERE btrim(address) <> ''
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		var pool model.Pool
		if err := rows.Scan(&pool.ID, &pool.PairName, &pool.Address, &pool.Chain, &pool.PlatformID); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// ReplaceHolders deletes and re-inserts the pool's holder rows in one transaction.
func (s *Store) ReplaceHolders(ctx context.Context, poolID int64, records []model.HolderRecord) error {
	if poolID <= 0 {
		return fmt.Errorf("pool id %d: %w", poolID, storage.ErrInvalidInput)
	}
	for i, record := range records {
		if record.PoolID != poolID || record.HolderAddress == "" {
			return fmt.Errorf("record %d: %w", i, storage.ErrInvalidInput)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM pool_holders WHERE pool_id = $1`, poolID); err != nil {
		return fmt.Errorf("delete holders: %w", err)
	}

	if len(records) > 0 {
		batch := &pgx.Batch{}
		for _, record := range records {
			batch.Queue(`
				INSERT INTO pool_holders (
					pool_id, token_address, holder_address, raw_balance, formatted_balance,
					usd_value, wallet_usd_value, eth_balance, pool_share, rank, updated_at
				) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, $11)
			`,
				record.PoolID,
				record.TokenAddress,
				record.HolderAddress,
				record.RawBalance,
				record.FormattedBalance.String(),
				record.USDValue.String(),
				record.WalletUSDValue.String(),
				record.ETHBalance.String(),
				record.PoolShare.String(),
				record.Rank,
				record.UpdatedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range records {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert holder: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListHolders(ctx context.Context, poolID int64) ([]model.HolderRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, token_address, holder_address, raw_balance::text, formatted_balance::text,
			usd_value::text, wallet_usd_value::text, eth_balance::text, pool_share::text, rank, updated_at
		FROM pool_holders
		WHERE pool_id = $1
		ORDER BY rank
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("query holders: %w", err)
	}
	defer rows.Close()

	var records []model.HolderRecord
	for rows.Next() {
		var (
			record                             model.HolderRecord
			formatted, usd, wallet, eth, share string
		)
		if err := rows.Scan(
			&record.PoolID,
			&record.TokenAddress,
			&record.HolderAddress,
			&record.RawBalance,
			&formatted,
			&usd,
			&wallet,
			&eth,
			&share,
			&record.Rank,
			&record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		if err := parseDecimals(
			decimalField{formatted, &record.FormattedBalance},
			decimalField{usd, &record.USDValue},
			decimalField{wallet, &record.WalletUSDValue},
			decimalField{eth, &record.ETHBalance},
			decimalField{share, &record.PoolShare},
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpsertPoolMetrics writes the snapshot. A failure status keeps the stored total.
func (s *Store) UpsertPoolMetrics(ctx context.Context, snapshot model.PoolMetricsSnapshot) error {
	if snapshot.PoolID <= 0 {
		return fmt.Errorf("pool id %d: %w", snapshot.PoolID, storage.ErrInvalidInput)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_metrics (pool_id, total_holders, holder_count_status, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pool_id)
		DO UPDATE SET
			total_holders = CASE
				WHEN EXCLUDED.holder_count_status = 'failure' THEN pool_metrics.total_holders
				ELSE EXCLUDED.total_holders
			END,
			holder_count_status = EXCLUDED.holder_count_status,
			updated_at = EXCLUDED.updated_at
	`,
		snapshot.PoolID,
		snapshot.TotalHolders,
		string(snapshot.Status),
		snapshot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert pool metrics: %w", err)
	}
	return nil
}

func (s *Store) GetPoolMetrics(ctx context.Context, poolID int64) (model.PoolMetricsSnapshot, error) {
	var (
		snapshot model.PoolMetricsSnapshot
		status   string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT pool_id, total_holders, holder_count_status, updated_at
		FROM pool_metrics
		WHERE pool_id = $1
	`, poolID).Scan(&snapshot.PoolID, &snapshot.TotalHolders, &status, &snapshot.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PoolMetricsSnapshot{}, fmt.Errorf("pool metrics %d: %w", poolID, storage.ErrNotFound)
	}
	if err != nil {
		return model.PoolMetricsSnapshot{}, fmt.Errorf("query pool metrics: %w", err)
	}
	snapshot.Status = model.HolderCountStatus(status)
	return snapshot, nil
}

func (s *Store) GetTokenPrice(ctx context.Context, tokenAddress string) (model.CachedTokenPrice, error) {
	var (
		price model.CachedTokenPrice
		usd   string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT token_address, price_usd::text, updated_at
		FROM token_prices
		WHERE token_address = $1
	`, strings.ToLower(tokenAddress)).Scan(&price.TokenAddress, &usd, &price.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CachedTokenPrice{}, fmt.Errorf("token price %s: %w", tokenAddress, storage.ErrNotFound)
	}
	if err != nil {
		return model.CachedTokenPrice{}, fmt.Errorf("query token price: %w", err)
	}
	if err := parseDecimals(decimalField{usd, &price.PriceUSD}); err != nil {
		return model.CachedTokenPrice{}, err
	}
	return price, nil
}

func (s *Store) PutTokenPrice(ctx context.Context, price model.CachedTokenPrice) error {
	if price.TokenAddress == "" {
		return fmt.Errorf("token address: %w", storage.ErrInvalidInput)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO token_prices (token_address, price_usd, updated_at)
		VALUES ($1, $2::numeric, $3)
		ON CONFLICT (token_address)
		DO UPDATE SET
			price_usd = EXCLUDED.price_usd,
			updated_at = EXCLUDED.updated_at
	`, strings.ToLower(price.TokenAddress), price.PriceUSD.String(), price.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert token price: %w", err)
	}
	return nil
}

func (s *Store) RecordSyncEvent(ctx context.Context, event model.SyncEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_events (pool_id, kind, severity, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.PoolID, string(event.Kind), string(event.Severity), event.Message, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sync event: %w", err)
	}
	return nil
}

// ListSyncEvents returns the newest events first. poolID 0 matches every pool.
func (s *Store) ListSyncEvents(ctx context.Context, poolID int64, limit int) ([]model.SyncEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, kind, severity, message, created_at
		FROM sync_events
		WHERE $1::bigint = 0 OR pool_id = $1::bigint
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync events: %w", err)
	}
	defer rows.Close()

	var events []model.SyncEvent
	for rows.Next() {
		var (
			event          model.SyncEvent
			kind, severity string
		)
		if err := rows.Scan(&event.PoolID, &kind, &severity, &event.Message, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sync event: %w", err)
		}
		event.Kind = model.SyncEventKind(kind)
		event.Severity = model.Severity(severity)
		events = append(events, event)
	}
	return events, rows.Err()
}

type decimalField struct {
	raw string
	dst *decimal.Decimal
}

func parseDecimals(fields ...decimalField) error {
	for _, field := range fields {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return fmt.Errorf("parse numeric %q: %w", field.raw, err)
		}
		*field.dst = value
	}
	return nil
}
