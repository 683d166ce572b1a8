package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/nexchain-labs/asset-gateway/pkg/records"
)

const uniqueViolationCode = "23505"

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the gateway store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == uniqueViolationCode
	}
	return false
}

func (s *pgStore) CreateBridgeRecord(ctx context.Context, rec *records.BridgeRecord) error {
	dao := toBridgeRecordDao(rec)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create bridge record: %w", err)
	}

	return nil
}

func (s *pgStore) ClaimBridgeIn(ctx context.Context, rec *records.BridgeRecord) error {
	dao := toBridgeRecordDao(rec)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("failed to claim bridge-in: %w", err)
	}

	// A record for this source hash exists already. Completed and pending
	// claims are final here; only a failed claim may be taken over.
	existing, getErr := s.BridgeRecordBySourceHash(ctx, rec.SourceTxHash)
	if getErr != nil {
		return fmt.Errorf("failed to load existing bridge-in claim: %w", getErr)
	}

	switch existing.Status {
	case records.BridgeCompleted:
		return ErrHashCompleted
	case records.BridgePending:
		return ErrHashInFlight
	}

	// Take over the failed claim. The status guard makes the takeover
	// atomic: of two concurrent retries, only one update hits a row.
	res, err := s.db.NewUpdate().
		Model((*BridgeRecordDao)(nil)).
		Set("status = ?", string(records.BridgePending)).
		Set("amount = ?", rec.Amount).
		Set("fee = ?", rec.Fee).
		Set("net_amount = ?", rec.NetAmount).
		Set("recipient_address = ?", rec.RecipientAddress).
		Set("error_message = NULL").
		Set("updated_at = NOW()").
		Where("source_tx_hash = ?", rec.SourceTxHash).
		Where("direction = ?", string(records.DirectionIn)).
		Where("status = ?", string(records.BridgeFailed)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reclaim bridge-in: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read reclaim result: %w", err)
	}
	if affected == 0 {
		return ErrHashInFlight
	}

	// The caller continues with the surviving record.
	rec.ID = existing.ID
	rec.CreatedAt = existing.CreatedAt
	return nil
}

func (s *pgStore) CompleteBridgeIn(ctx context.Context, id, nativeTxHash string, verification json.RawMessage) error {
	_, err := s.db.NewUpdate().
		Model((*BridgeRecordDao)(nil)).
		Set("status = ?", string(records.BridgeCompleted)).
		Set("native_tx_hash = ?", nativeTxHash).
		Set("verification = ?", verification).
		Set("error_message = NULL").
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to complete bridge record: %w", err)
	}
	return nil
}

func (s *pgStore) MarkBridgeMintPending(ctx context.Context, id, errMsg string) error {
	_, err := s.db.NewUpdate().
		Model((*BridgeRecordDao)(nil)).
		Set("status = ?", string(records.BridgePending)).
		Set("error_message = ?", errMsg).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark bridge record mint-pending: %w", err)
	}
	return nil
}

func (s *pgStore) MarkBridgeFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.db.NewUpdate().
		Model((*BridgeRecordDao)(nil)).
		Set("status = ?", string(records.BridgeFailed)).
		Set("error_message = ?", errMsg).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark bridge record failed: %w", err)
	}
	return nil
}

func (s *pgStore) BridgeRecordBySourceHash(ctx context.Context, sourceTxHash string) (*records.BridgeRecord, error) {
	dao := new(BridgeRecordDao)

	err := s.db.NewSelect().
		Model(dao).
		Where("source_tx_hash = ?", sourceTxHash).
		Where("direction = ?", string(records.DirectionIn)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBridgeRecordNotFound
		}
		return nil, fmt.Errorf("failed to get bridge record by source hash: %w", err)
	}

	return toBridgeRecord(dao), nil
}

func (s *pgStore) BridgeRecordByHash(ctx context.Context, txHash string) (*records.BridgeRecord, error) {
	dao := new(BridgeRecordDao)

	err := s.db.NewSelect().
		Model(dao).
		Where("source_tx_hash = ? OR native_tx_hash = ?", txHash, txHash).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBridgeRecordNotFound
		}
		return nil, fmt.Errorf("failed to get bridge record by hash: %w", err)
	}

	return toBridgeRecord(dao), nil
}

func (s *pgStore) ListBridgeRecords(ctx context.Context, opts ...QueryOption) ([]*records.BridgeRecord, error) {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var daos []BridgeRecordDao
	query := s.db.NewSelect().Model(&daos)

	if options.Direction != nil {
		query = query.Where("direction = ?", string(*options.Direction))
	}
	if options.BridgeStatus != nil {
		query = query.Where("status = ?", string(*options.BridgeStatus))
	}
	if !options.IncludeArchived {
		query = query.Where("archived_at IS NULL")
	}
	query = query.OrderExpr("created_at DESC")
	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list bridge records: %w", err)
	}

	recs := make([]*records.BridgeRecord, len(daos))
	for i := range daos {
		recs[i] = toBridgeRecord(&daos[i])
	}
	return recs, nil
}

func (s *pgStore) BridgeStats(ctx context.Context) (*records.BridgeStats, error) {
	stats := &records.BridgeStats{
		ByDirection: make(map[string]int64),
		ByChain:     make(map[string]int64),
	}

	// Stats cover the full history; archived records still count.
	err := s.db.NewSelect().
		Model((*BridgeRecordDao)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(amount), 0)").
		ColumnExpr("COALESCE(SUM(fee), 0)").
		Scan(ctx, &stats.TotalBridges, &stats.TotalBridged, &stats.TotalFees)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bridge stats: %w", err)
	}

	var byDirection []struct {
		Direction string `bun:"direction"`
		Count     int64  `bun:"count"`
	}
	err = s.db.NewSelect().
		Model((*BridgeRecordDao)(nil)).
		ColumnExpr("direction").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("direction").
		Scan(ctx, &byDirection)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bridge stats by direction: %w", err)
	}
	for _, row := range byDirection {
		stats.ByDirection[row.Direction] = row.Count
	}

	// The external chain of a transfer is the destination for out and the
	// origin for in.
	var byChain []struct {
		Chain string `bun:"chain"`
		Count int64  `bun:"count"`
	}
	err = s.db.NewSelect().
		Model((*BridgeRecordDao)(nil)).
		ColumnExpr("CASE WHEN direction = 'out' THEN to_chain ELSE from_chain END AS chain").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("CASE WHEN direction = 'out' THEN to_chain ELSE from_chain END").
		Scan(ctx, &byChain)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bridge stats by chain: %w", err)
	}
	for _, row := range byChain {
		stats.ByChain[row.Chain] = row.Count
	}

	return stats, nil
}

func (s *pgStore) CreateSwapRecord(ctx context.Context, rec *records.SwapRecord) error {
	dao := toSwapRecordDao(rec)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create swap record: %w", err)
	}

	return nil
}

func (s *pgStore) ListSwapRecords(ctx context.Context, opts ...QueryOption) ([]*records.SwapRecord, error) {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var daos []SwapRecordDao
	query := s.db.NewSelect().Model(&daos)

	if options.Address != nil {
		query = query.Where("address = ?", *options.Address)
	}
	if options.SwapStatus != nil {
		query = query.Where("status = ?", string(*options.SwapStatus))
	}
	if !options.IncludeArchived {
		query = query.Where("archived_at IS NULL")
	}
	query = query.OrderExpr("created_at DESC")
	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list swap records: %w", err)
	}

	recs := make([]*records.SwapRecord, len(daos))
	for i := range daos {
		recs[i] = toSwapRecord(&daos[i])
	}
	return recs, nil
}

func (s *pgStore) EnqueueFee(ctx context.Context, entry *records.FeeOutboxEntry) error {
	dao := toFeeOutboxDao(entry)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to enqueue fee: %w", err)
	}

	return nil
}

func (s *pgStore) DueFeeEntries(ctx context.Context, now time.Time, limit int) ([]*records.FeeOutboxEntry, error) {
	var daos []FeeOutboxDao

	query := s.db.NewSelect().
		Model(&daos).
		Where("status = ?", string(records.OutboxPending)).
		Where("next_attempt_at <= ?", now).
		OrderExpr("next_attempt_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list due fee entries: %w", err)
	}

	entries := make([]*records.FeeOutboxEntry, len(daos))
	for i := range daos {
		entries[i] = toFeeOutboxEntry(&daos[i])
	}
	return entries, nil
}

func (s *pgStore) MarkFeeDelivered(ctx context.Context, id, txHash string) error {
	_, err := s.db.NewUpdate().
		Model((*FeeOutboxDao)(nil)).
		Set("status = ?", string(records.OutboxDelivered)).
		Set("delivered_tx_hash = ?", txHash).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark fee delivered: %w", err)
	}
	return nil
}

func (s *pgStore) MarkFeeRetry(ctx context.Context, id string, nextAttemptAt time.Time, lastErr string) error {
	_, err := s.db.NewUpdate().
		Model((*FeeOutboxDao)(nil)).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = ?", nextAttemptAt).
		Set("last_error = ?", lastErr).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to schedule fee retry: %w", err)
	}
	return nil
}

func (s *pgStore) MarkFeeFailed(ctx context.Context, id, lastErr string) error {
	_, err := s.db.NewUpdate().
		Model((*FeeOutboxDao)(nil)).
		Set("status = ?", string(records.OutboxFailed)).
		Set("attempts = attempts + 1").
		Set("last_error = ?", lastErr).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark fee failed: %w", err)
	}
	return nil
}

func (s *pgStore) CountPendingFees(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().
		Model((*FeeOutboxDao)(nil)).
		Where("status = ?", string(records.OutboxPending)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending fees: %w", err)
	}
	return count, nil
}

func (s *pgStore) GetSetting(ctx context.Context, key string) (string, error) {
	dao := new(SettingDao)

	err := s.db.NewSelect().
		Model(dao).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}

	return dao.Value, nil
}

func (s *pgStore) SetSetting(ctx context.Context, key, value string) error {
	dao := &SettingDao{Key: key, Value: value}

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

func (s *pgStore) ArchiveRecords(ctx context.Context, before time.Time) (int64, int64, error) {
	// Pending records stay visible regardless of age; they are either the
	// operator review queue (bridge) or the reconciliation queue (swap).
	res, err := s.db.NewUpdate().
		Model((*BridgeRecordDao)(nil)).
		Set("archived_at = NOW()").
		Where("archived_at IS NULL").
		Where("status IN (?, ?)", string(records.BridgeCompleted), string(records.BridgeFailed)).
		Where("created_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to archive bridge records: %w", err)
	}
	bridgeN, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read bridge archive count: %w", err)
	}

	res, err = s.db.NewUpdate().
		Model((*SwapRecordDao)(nil)).
		Set("archived_at = NOW()").
		Where("archived_at IS NULL").
		Where("status = ?", string(records.SwapCompleted)).
		Where("created_at < ?", before).
		Exec(ctx)
	if err != nil {
		return bridgeN, 0, fmt.Errorf("failed to archive swap records: %w", err)
	}
	swapN, err := res.RowsAffected()
	if err != nil {
		return bridgeN, 0, fmt.Errorf("failed to read swap archive count: %w", err)
	}

	return bridgeN, swapN, nil
}
