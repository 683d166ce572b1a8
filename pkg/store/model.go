package store

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/nexchain-labs/asset-gateway/pkg/records"
)

// BridgeRecordDao is a data access object that maps directly to the 'bridge_records' table in PostgreSQL.
type BridgeRecordDao struct {
	bun.BaseModel    `bun:"table:bridge_records,alias:br"`
	ID               string          `bun:"id,pk,type:uuid"`
	Direction        string          `bun:"direction,notnull,type:varchar(8)"`
	FromChain        string          `bun:"from_chain,notnull,type:varchar(32)"`
	ToChain          string          `bun:"to_chain,notnull,type:varchar(32)"`
	Amount           decimal.Decimal `bun:"amount,notnull,type:numeric(38,18)"`
	Fee              decimal.Decimal `bun:"fee,notnull,type:numeric(38,18)"`
	NetAmount        decimal.Decimal `bun:"net_amount,notnull,type:numeric(38,18)"`
	RecipientAddress *string         `bun:"recipient_address,type:varchar(128)"`
	SourceTxHash     *string         `bun:"source_tx_hash,type:varchar(128)"`
	NativeTxHash     *string         `bun:"native_tx_hash,type:varchar(128)"`
	Status           string          `bun:"status,notnull,type:varchar(16)"`
	Verification     json.RawMessage `bun:"verification,nullzero,type:jsonb"`
	ErrorMessage     *string         `bun:"error_message,type:text"`
	Note             *string         `bun:"note,type:varchar(500)"`
	CreatedAt        time.Time       `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero,default:current_timestamp"`
	ArchivedAt       *time.Time      `bun:"archived_at"`
}

// toBridgeRecordDao converts a records.BridgeRecord to BridgeRecordDao.
func toBridgeRecordDao(rec *records.BridgeRecord) *BridgeRecordDao {
	dao := &BridgeRecordDao{
		ID:           rec.ID,
		Direction:    string(rec.Direction),
		FromChain:    rec.FromChain,
		ToChain:      rec.ToChain,
		Amount:       rec.Amount,
		Fee:          rec.Fee,
		NetAmount:    rec.NetAmount,
		Status:       string(rec.Status),
		Verification: rec.Verification,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		ArchivedAt:   rec.ArchivedAt,
	}

	if rec.RecipientAddress != "" {
		dao.RecipientAddress = &rec.RecipientAddress
	}
	if rec.SourceTxHash != "" {
		dao.SourceTxHash = &rec.SourceTxHash
	}
	if rec.NativeTxHash != "" {
		dao.NativeTxHash = &rec.NativeTxHash
	}
	if rec.ErrorMessage != "" {
		dao.ErrorMessage = &rec.ErrorMessage
	}
	if rec.Note != "" {
		dao.Note = &rec.Note
	}

	return dao
}

// toBridgeRecord converts a BridgeRecordDao to records.BridgeRecord.
func toBridgeRecord(dao *BridgeRecordDao) *records.BridgeRecord {
	rec := &records.BridgeRecord{
		ID:           dao.ID,
		Direction:    records.BridgeDirection(dao.Direction),
		FromChain:    dao.FromChain,
		ToChain:      dao.ToChain,
		Amount:       dao.Amount,
		Fee:          dao.Fee,
		NetAmount:    dao.NetAmount,
		Status:       records.BridgeStatus(dao.Status),
		Verification: dao.Verification,
		CreatedAt:    dao.CreatedAt,
		UpdatedAt:    dao.UpdatedAt,
		ArchivedAt:   dao.ArchivedAt,
	}

	if dao.RecipientAddress != nil {
		rec.RecipientAddress = *dao.RecipientAddress
	}
	if dao.SourceTxHash != nil {
		rec.SourceTxHash = *dao.SourceTxHash
	}
	if dao.NativeTxHash != nil {
		rec.NativeTxHash = *dao.NativeTxHash
	}
	if dao.ErrorMessage != nil {
		rec.ErrorMessage = *dao.ErrorMessage
	}
	if dao.Note != nil {
		rec.Note = *dao.Note
	}

	return rec
}

// SwapRecordDao is a data access object that maps directly to the 'swap_records' table in PostgreSQL.
type SwapRecordDao struct {
	bun.BaseModel `bun:"table:swap_records,alias:sr"`
	ID            string          `bun:"id,pk,type:uuid"`
	Address       string          `bun:"address,notnull,type:varchar(128)"`
	FromToken     string          `bun:"from_token,notnull,type:varchar(16)"`
	ToToken       string          `bun:"to_token,notnull,type:varchar(16)"`
	FromAmount    decimal.Decimal `bun:"from_amount,notnull,type:numeric(38,18)"`
	ToAmount      decimal.Decimal `bun:"to_amount,notnull,type:numeric(38,18)"`
	Rate          decimal.Decimal `bun:"rate,notnull,type:numeric(38,18)"`
	Fee           decimal.Decimal `bun:"fee,notnull,type:numeric(38,18)"`
	CrossChain    bool            `bun:"cross_chain,notnull,default:false"`
	TargetChain   *string         `bun:"target_chain,type:varchar(32)"`
	LockTxHash    *string         `bun:"lock_tx_hash,type:varchar(128)"`
	Status        string          `bun:"status,notnull,type:varchar(16)"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,default:current_timestamp"`
	ArchivedAt    *time.Time      `bun:"archived_at"`
}

// toSwapRecordDao converts a records.SwapRecord to SwapRecordDao.
func toSwapRecordDao(rec *records.SwapRecord) *SwapRecordDao {
	dao := &SwapRecordDao{
		ID:         rec.ID,
		Address:    rec.Address,
		FromToken:  rec.FromToken,
		ToToken:    rec.ToToken,
		FromAmount: rec.FromAmount,
		ToAmount:   rec.ToAmount,
		Rate:       rec.Rate,
		Fee:        rec.Fee,
		CrossChain: rec.CrossChain,
		Status:     string(rec.Status),
		CreatedAt:  rec.CreatedAt,
	}

	if rec.TargetChain != "" {
		dao.TargetChain = &rec.TargetChain
	}
	if rec.LockTxHash != "" {
		dao.LockTxHash = &rec.LockTxHash
	}

	return dao
}

// toSwapRecord converts a SwapRecordDao to records.SwapRecord.
func toSwapRecord(dao *SwapRecordDao) *records.SwapRecord {
	rec := &records.SwapRecord{
		ID:         dao.ID,
		Address:    dao.Address,
		FromToken:  dao.FromToken,
		ToToken:    dao.ToToken,
		FromAmount: dao.FromAmount,
		ToAmount:   dao.ToAmount,
		Rate:       dao.Rate,
		Fee:        dao.Fee,
		CrossChain: dao.CrossChain,
		Status:     records.SwapStatus(dao.Status),
		CreatedAt:  dao.CreatedAt,
	}

	if dao.TargetChain != nil {
		rec.TargetChain = *dao.TargetChain
	}
	if dao.LockTxHash != nil {
		rec.LockTxHash = *dao.LockTxHash
	}

	return rec
}

// FeeOutboxDao is a data access object that maps directly to the 'fee_outbox' table in PostgreSQL.
type FeeOutboxDao struct {
	bun.BaseModel   `bun:"table:fee_outbox,alias:fo"`
	ID              string          `bun:"id,pk,type:uuid"`
	Kind            string          `bun:"kind,notnull,type:varchar(32)"`
	ParentOpID      *string         `bun:"parent_op_id,type:varchar(64)"`
	FromAddress     string          `bun:"from_address,notnull,type:varchar(128)"`
	Amount          decimal.Decimal `bun:"amount,notnull,type:numeric(38,18)"`
	SigningKey      string          `bun:"signing_key,notnull,type:text"`
	Status          string          `bun:"status,notnull,type:varchar(16)"`
	Attempts        int             `bun:"attempts,notnull,default:0"`
	NextAttemptAt   time.Time       `bun:"next_attempt_at,notnull"`
	DeliveredTxHash *string         `bun:"delivered_tx_hash,type:varchar(128)"`
	LastError       *string         `bun:"last_error,type:text"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero,default:current_timestamp"`
}

// toFeeOutboxDao converts a records.FeeOutboxEntry to FeeOutboxDao.
func toFeeOutboxDao(entry *records.FeeOutboxEntry) *FeeOutboxDao {
	dao := &FeeOutboxDao{
		ID:            entry.ID,
		Kind:          string(entry.Kind),
		FromAddress:   entry.FromAddress,
		Amount:        entry.Amount,
		SigningKey:    entry.SigningKey,
		Status:        string(entry.Status),
		Attempts:      entry.Attempts,
		NextAttemptAt: entry.NextAttemptAt,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}

	if entry.ParentOpID != "" {
		dao.ParentOpID = &entry.ParentOpID
	}
	if entry.DeliveredTxHash != "" {
		dao.DeliveredTxHash = &entry.DeliveredTxHash
	}
	if entry.LastError != "" {
		dao.LastError = &entry.LastError
	}

	return dao
}

// toFeeOutboxEntry converts a FeeOutboxDao to records.FeeOutboxEntry.
func toFeeOutboxEntry(dao *FeeOutboxDao) *records.FeeOutboxEntry {
	entry := &records.FeeOutboxEntry{
		ID:            dao.ID,
		Kind:          records.FeeKind(dao.Kind),
		FromAddress:   dao.FromAddress,
		Amount:        dao.Amount,
		SigningKey:    dao.SigningKey,
		Status:        records.OutboxStatus(dao.Status),
		Attempts:      dao.Attempts,
		NextAttemptAt: dao.NextAttemptAt,
		CreatedAt:     dao.CreatedAt,
		UpdatedAt:     dao.UpdatedAt,
	}

	if dao.ParentOpID != nil {
		entry.ParentOpID = *dao.ParentOpID
	}
	if dao.DeliveredTxHash != nil {
		entry.DeliveredTxHash = *dao.DeliveredTxHash
	}
	if dao.LastError != nil {
		entry.LastError = *dao.LastError
	}

	return entry
}

// SettingDao is a data access object that maps directly to the 'gateway_settings' table in PostgreSQL.
type SettingDao struct {
	bun.BaseModel `bun:"table:gateway_settings,alias:gs"`
	Key           string    `bun:"key,pk,type:varchar(64)"`
	Value         string    `bun:"value,notnull,type:text"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}
