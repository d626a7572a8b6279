package db

import (
	"time"
)

// BridgeState model (only 1 record), the authoritative bridge configuration
// and counters. Mutated only inside operation transactions.
type BridgeState struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Authority          string    `gorm:"not null" json:"authority"`
	Validators         string    `gorm:"not null" json:"validators"` // comma separated hex addresses
	Threshold          int       `gorm:"not null" json:"threshold"`
	FeeRateBps         uint16    `gorm:"not null" json:"fee_rate_bps"`
	DailyLimit         uint64    `gorm:"not null" json:"daily_limit"`
	DailyVolume        uint64    `gorm:"not null" json:"daily_volume"`
	LastResetTimestamp int64     `gorm:"not null" json:"last_reset_timestamp"` // UTC day boundary, unix seconds
	IsPaused           bool      `gorm:"not null" json:"is_paused"`
	PauseTimestamp     int64     `json:"pause_timestamp"` // unix seconds, 0 when not paused
	EmergencyDelay     int64     `gorm:"not null" json:"emergency_delay"` // seconds
	Nonce              uint64    `gorm:"not null" json:"nonce"`
	TotalLocked        uint64    `gorm:"not null" json:"total_locked"`
	TotalFeesCollected uint64    `gorm:"not null" json:"total_fees_collected"`
	UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`
}

// DepositRecord model, the replay guard. The composite unique index is the
// replay key: a row exists iff the deposit it names was minted exactly once.
type DepositRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SourceTxHash string    `gorm:"not null;index:unique_tx_height,unique" json:"source_tx_hash"`
	BlockHeight  uint64    `gorm:"not null;index:unique_tx_height,unique" json:"block_height"`
	Recipient    string    `gorm:"not null" json:"recipient"`
	Amount       uint64    `gorm:"not null" json:"amount"`
	Fee          uint64    `gorm:"not null" json:"fee"`
	Nonce        uint64    `gorm:"not null" json:"nonce"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

// TokenBalance model, the destination side accounting token ledger.
type TokenBalance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Account   string    `gorm:"not null;uniqueIndex" json:"account"`
	Balance   uint64    `gorm:"not null" json:"balance"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// ReleaseRequest model (for managing source chain releases on withdrawal)
type ReleaseRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderId   string    `gorm:"not null;uniqueIndex" json:"order_id"`
	Recipient string    `gorm:"not null" json:"recipient"` // address on the source chain
	Amount    uint64    `gorm:"not null" json:"amount"`    // net of fees
	Nonce     uint64    `gorm:"not null" json:"nonce"`
	Status    string    `gorm:"not null" json:"status"` // "init", "pending", "processed"
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// WithdrawalRecord model, audit row per processed withdrawal
type WithdrawalRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Caller    string    `gorm:"not null" json:"caller"`
	Recipient string    `gorm:"not null" json:"recipient"`
	Amount    uint64    `gorm:"not null" json:"amount"`
	Fee       uint64    `gorm:"not null" json:"fee"`
	Nonce     uint64    `gorm:"not null" json:"nonce"`
	OrderId   string    `gorm:"not null" json:"order_id"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// PricePoint model, persisted oracle observations
type PricePoint struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Price      uint64 `gorm:"not null" json:"price"`
	Confidence uint64 `gorm:"not null" json:"confidence"`
	Exponent   int32  `gorm:"not null" json:"exponent"`
	Timestamp  int64  `gorm:"not null;uniqueIndex" json:"timestamp"`
}

// BridgeStats model (only 1 record), monitoring counters served by the
// status endpoint. Informational, not consulted by the state machine.
type BridgeStats struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	TotalDepositVolume  uint64    `gorm:"not null" json:"total_deposit_volume"`
	TotalWithdrawVolume uint64    `gorm:"not null" json:"total_withdraw_volume"`
	TotalTransactions   uint64    `gorm:"not null" json:"total_transactions"`
	PeakDailyVolume     uint64    `gorm:"not null" json:"peak_daily_volume"`
	LargestTransaction  uint64    `gorm:"not null" json:"largest_transaction"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}
