package bridge

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/InsideOutbtc/nock-bridge/internal/config"
	"github.com/InsideOutbtc/nock-bridge/internal/db"
	"github.com/InsideOutbtc/nock-bridge/internal/ledger"
	"github.com/InsideOutbtc/nock-bridge/internal/quorum"
	"github.com/InsideOutbtc/nock-bridge/internal/state"
	"github.com/InsideOutbtc/nock-bridge/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const MaxValidators = 32

// Bridge is the deterministic state machine at the core of the relay. Every
// operation either fully applies or fully fails: state is mutated inside one
// database transaction and the in-memory cache commits only afterwards. A
// single mutex serializes operations, there is no internal parallelism.
type Bridge struct {
	mu sync.Mutex

	state  *state.State
	dbm    *db.DatabaseManager
	ledger ledger.Ledger

	feeCollector          string
	withdrawRequireQuorum bool

	nowFn func() time.Time
}

type InitializeParams struct {
	Authority      common.Address
	Validators     []common.Address
	Threshold      int
	FeeRateBps     uint16
	DailyLimit     uint64
	EmergencyDelay time.Duration
}

type DepositRequest struct {
	SourceTxHash [32]byte
	BlockHeight  uint64
	Amount       uint64
	Recipient    common.Address
	Signatures   []types.ValidatorSignature
}

type WithdrawRequest struct {
	Caller          common.Address
	SourceRecipient [32]byte
	Amount          uint64
	Signatures      []types.ValidatorSignature
}

type OperationResult struct {
	Amount  uint64 `json:"amount"`
	Fee     uint64 `json:"fee"`
	Net     uint64 `json:"net"`
	Nonce   uint64 `json:"nonce"`
	OrderId string `json:"order_id,omitempty"`
}

func NewBridge(st *state.State, dbm *db.DatabaseManager, tokenLedger ledger.Ledger) *Bridge {
	return &Bridge{
		state:                 st,
		dbm:                   dbm,
		ledger:                tokenLedger,
		feeCollector:          config.AppConfig.FeeCollector,
		withdrawRequireQuorum: config.AppConfig.WithdrawRequireQuorum,
		nowFn:                 time.Now,
	}
}

// Initialize creates the bridge state once. All later mutation goes through
// the quorum gated operations.
func (b *Bridge) Initialize(params InitializeParams) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state.Initialized() {
		return ErrAlreadyInitialized
	}
	if err := validateConfig(params.Validators, params.Threshold, params.FeeRateBps, params.DailyLimit); err != nil {
		return err
	}
	if params.EmergencyDelay < time.Hour {
		return fmt.Errorf("%w: emergency delay %v below 1h", ErrInvalidConfig, params.EmergencyDelay)
	}

	now := b.nowFn()
	bs := db.BridgeState{
		Authority:          params.Authority.Hex(),
		Validators:         types.JoinAddresses(params.Validators),
		Threshold:          params.Threshold,
		FeeRateBps:         params.FeeRateBps,
		DailyLimit:         params.DailyLimit,
		DailyVolume:        0,
		LastResetTimestamp: dayBoundary(now),
		EmergencyDelay:     int64(params.EmergencyDelay / time.Second),
		IsPaused:           false,
		Nonce:              0,
		TotalLocked:        0,
		TotalFeesCollected: 0,
	}
	err := b.dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
		return b.state.SaveBridgeState(tx, &bs)
	})
	if err != nil {
		return err
	}
	b.state.CommitBridgeState(bs)
	log.Infof("Bridge initialized with %d validators, threshold %d", len(params.Validators), params.Threshold)
	return nil
}

// Deposit mints wrapped tokens for an attested source chain lock. All
// preconditions run before any effect; the replay key is consumed in the
// same transaction as the mint.
func (b *Bridge) Deposit(req DepositRequest) (*OperationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bs, err := b.loadState()
	if err != nil {
		return nil, err
	}
	if bs.IsPaused {
		return nil, ErrBridgePaused
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: deposit amount is zero", ErrInvalidAmount)
	}

	signDoc := types.DepositSignDoc(req.SourceTxHash, req.BlockHeight, req.Amount, req.Recipient, bs.Nonce)
	if err := b.checkQuorum(signDoc, &bs, req.Signatures); err != nil {
		return nil, err
	}

	txHashHex := hex.EncodeToString(req.SourceTxHash[:])
	consumed, err := b.state.HasDepositKey(txHashHex, req.BlockHeight)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, fmt.Errorf("%w: tx %s height %d", ErrAlreadyConsumed, txHashHex, req.BlockHeight)
	}

	fee, net, err := admitVolume(&bs, req.Amount, b.nowFn())
	if err != nil {
		return nil, err
	}

	bs.TotalLocked += req.Amount
	bs.TotalFeesCollected += fee
	bs.Nonce++

	record := db.DepositRecord{
		SourceTxHash: txHashHex,
		BlockHeight:  req.BlockHeight,
		Recipient:    req.Recipient.Hex(),
		Amount:       req.Amount,
		Fee:          fee,
		Nonce:        bs.Nonce,
	}
	err = b.dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
		if err := b.state.ConsumeDepositKey(tx, &record); err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return fmt.Errorf("%w: tx %s height %d", ErrAlreadyConsumed, txHashHex, req.BlockHeight)
			}
			return err
		}
		if err := b.ledger.Mint(tx, req.Recipient.Hex(), net); err != nil {
			return err
		}
		if fee > 0 {
			if err := b.ledger.Mint(tx, b.feeCollector, fee); err != nil {
				return err
			}
		}
		return b.state.SaveBridgeState(tx, &bs)
	})
	if err != nil {
		return nil, err
	}

	b.state.CommitBridgeState(bs)
	b.state.UpdateStats(req.Amount, true, bs.DailyVolume)
	b.state.EventBus.Publish(state.DepositProcessed, state.DepositEvent{
		SourceTxHash: txHashHex,
		BlockHeight:  req.BlockHeight,
		Recipient:    req.Recipient.Hex(),
		Amount:       req.Amount,
		Fee:          fee,
		Nonce:        bs.Nonce,
	})
	log.Infof("Deposited %d, minted %d to %s (fee %d), nonce %d", req.Amount, net, req.Recipient.Hex(), fee, bs.Nonce)
	return &OperationResult{Amount: req.Amount, Fee: fee, Net: net, Nonce: bs.Nonce}, nil
}

// Withdraw burns wrapped tokens and queues a release on the source chain.
// The burn itself proves ownership; quorum is only demanded when the
// deployment opts into the defense-in-depth policy.
func (b *Bridge) Withdraw(req WithdrawRequest) (*OperationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bs, err := b.loadState()
	if err != nil {
		return nil, err
	}
	if bs.IsPaused {
		return nil, ErrBridgePaused
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: withdraw amount is zero", ErrInvalidAmount)
	}
	if b.withdrawRequireQuorum {
		signDoc := types.WithdrawSignDoc(req.Caller, req.SourceRecipient, req.Amount, bs.Nonce)
		if err := b.checkQuorum(signDoc, &bs, req.Signatures); err != nil {
			return nil, err
		}
	}

	fee, net, err := admitVolume(&bs, req.Amount, b.nowFn())
	if err != nil {
		return nil, err
	}

	// saturating, the counter must never wrap below zero
	if bs.TotalLocked >= req.Amount {
		bs.TotalLocked -= req.Amount
	} else {
		bs.TotalLocked = 0
	}
	bs.TotalFeesCollected += fee
	bs.Nonce++

	orderId := uuid.New().String()
	release := db.ReleaseRequest{
		OrderId:   orderId,
		Recipient: hex.EncodeToString(req.SourceRecipient[:]),
		Amount:    net,
		Nonce:     bs.Nonce,
	}
	err = b.dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
		if err := b.ledger.Burn(tx, req.Caller.Hex(), req.Amount); err != nil {
			return err
		}
		if fee > 0 {
			if err := b.ledger.Mint(tx, b.feeCollector, fee); err != nil {
				return err
			}
		}
		if err := b.state.CreateReleaseRequest(tx, &release); err != nil {
			return err
		}
		return b.state.SaveBridgeState(tx, &bs)
	})
	if err != nil {
		return nil, err
	}

	b.state.CommitBridgeState(bs)
	b.state.UpdateStats(req.Amount, false, bs.DailyVolume)
	b.state.RecordWithdrawal(&db.WithdrawalRecord{
		Caller:    req.Caller.Hex(),
		Recipient: release.Recipient,
		Amount:    req.Amount,
		Fee:       fee,
		Nonce:     bs.Nonce,
		OrderId:   orderId,
	})
	b.state.EventBus.Publish(state.WithdrawProcessed, state.WithdrawEvent{
		Caller:    req.Caller.Hex(),
		Recipient: release.Recipient,
		Amount:    req.Amount,
		Fee:       fee,
		OrderId:   orderId,
		Nonce:     bs.Nonce,
	})
	b.state.EventBus.Publish(state.ReleaseCreated, state.ReleaseEvent{
		OrderId:   orderId,
		Recipient: release.Recipient,
		Amount:    net,
		Nonce:     bs.Nonce,
	})
	log.Infof("Withdrew %d from %s, releasing %d on source chain (fee %d), order %s", req.Amount, req.Caller.Hex(), net, fee, orderId)
	return &OperationResult{Amount: req.Amount, Fee: fee, Net: net, Nonce: bs.Nonce, OrderId: orderId}, nil
}

// Pause halts deposits and withdrawals. Quorum signs over the current nonce
// so a stale pause bundle cannot be replayed later.
func (b *Bridge) Pause(sigs []types.ValidatorSignature) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bs, err := b.loadState()
	if err != nil {
		return err
	}
	if bs.IsPaused {
		return ErrAlreadyPaused
	}
	if err := b.checkQuorum(types.PauseSignDoc(bs.Nonce), &bs, sigs); err != nil {
		return err
	}

	now := b.nowFn()
	bs.IsPaused = true
	bs.PauseTimestamp = now.Unix()
	bs.Nonce++

	if err := b.saveState(&bs); err != nil {
		return err
	}
	b.state.EventBus.Publish(state.BridgePaused, bs.PauseTimestamp)
	log.Warnf("Bridge emergency paused at %d, nonce %d", bs.PauseTimestamp, bs.Nonce)
	return nil
}

// Unpause requires both quorum and an elapsed cooling-off delay, so
// observers get time to react to a contested pause.
func (b *Bridge) Unpause(sigs []types.ValidatorSignature) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bs, err := b.loadState()
	if err != nil {
		return err
	}
	if !bs.IsPaused {
		return ErrNotPaused
	}
	now := b.nowFn()
	readyAt := bs.PauseTimestamp + bs.EmergencyDelay
	if now.Unix() < readyAt {
		return fmt.Errorf("%w: ready at %d, now %d", ErrCoolingOffNotElapsed, readyAt, now.Unix())
	}
	if err := b.checkQuorum(types.UnpauseSignDoc(bs.Nonce), &bs, sigs); err != nil {
		return err
	}

	bs.IsPaused = false
	bs.PauseTimestamp = 0
	bs.Nonce++

	if err := b.saveState(&bs); err != nil {
		return err
	}
	b.state.EventBus.Publish(state.BridgeUnpaused, now.Unix())
	log.Infof("Bridge unpaused, nonce %d", bs.Nonce)
	return nil
}

// UpdateConfig applies a quorum gated configuration change. Permitted while
// paused, recovery may require rotating validators. The merged configuration
// is validated before anything commits.
func (b *Bridge) UpdateConfig(update types.ConfigUpdate, sigs []types.ValidatorSignature) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bs, err := b.loadState()
	if err != nil {
		return err
	}
	if err := b.checkQuorum(types.ConfigSignDoc(update, bs.Nonce), &bs, sigs); err != nil {
		return err
	}

	validators, err := config.ParseValidatorList(bs.Validators)
	if err != nil {
		return err
	}
	threshold := bs.Threshold
	feeRateBps := bs.FeeRateBps
	dailyLimit := bs.DailyLimit
	if len(update.Validators) > 0 {
		validators = update.Validators
	}
	if update.Threshold != nil {
		threshold = *update.Threshold
	}
	if update.FeeRateBps != nil {
		feeRateBps = *update.FeeRateBps
	}
	if update.DailyLimit != nil {
		dailyLimit = *update.DailyLimit
	}
	if err := validateConfig(validators, threshold, feeRateBps, dailyLimit); err != nil {
		return err
	}

	bs.Validators = types.JoinAddresses(validators)
	bs.Threshold = threshold
	bs.FeeRateBps = feeRateBps
	bs.DailyLimit = dailyLimit
	bs.Nonce++

	if err := b.saveState(&bs); err != nil {
		return err
	}
	b.state.EventBus.Publish(state.ConfigUpdated, bs.Nonce)
	log.Infof("Bridge configuration updated, %d validators, threshold %d, feeRate %d bps, dailyLimit %d",
		len(validators), threshold, feeRateBps, dailyLimit)
	return nil
}

func (b *Bridge) loadState() (db.BridgeState, error) {
	if !b.state.Initialized() {
		return db.BridgeState{}, ErrNotInitialized
	}
	return b.state.GetBridgeState(), nil
}

func (b *Bridge) saveState(bs *db.BridgeState) error {
	err := b.dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
		return b.state.SaveBridgeState(tx, bs)
	})
	if err != nil {
		return err
	}
	b.state.CommitBridgeState(*bs)
	return nil
}

func (b *Bridge) checkQuorum(signDoc []byte, bs *db.BridgeState, sigs []types.ValidatorSignature) error {
	validators, err := config.ParseValidatorList(bs.Validators)
	if err != nil {
		return err
	}
	if err := quorum.Evaluate(signDoc, validators, bs.Threshold, sigs); err != nil {
		var qe *quorum.ErrInsufficientQuorum
		if errors.As(err, &qe) {
			return fmt.Errorf("%w: %d valid signatures, need %d", ErrInsufficientQuorum, qe.Got, qe.Need)
		}
		return err
	}
	return nil
}

func validateConfig(validators []common.Address, threshold int, feeRateBps uint16, dailyLimit uint64) error {
	if len(validators) == 0 || len(validators) > MaxValidators {
		return fmt.Errorf("%w: validator count %d outside [1, %d]", ErrInvalidConfig, len(validators), MaxValidators)
	}
	seen := make(map[common.Address]bool, len(validators))
	for _, v := range validators {
		if seen[v] {
			return fmt.Errorf("%w: duplicate validator %s", ErrInvalidConfig, v.Hex())
		}
		seen[v] = true
	}
	if threshold < 1 || threshold > len(validators) {
		return fmt.Errorf("%w: threshold %d outside [1, %d]", ErrInvalidConfig, threshold, len(validators))
	}
	if feeRateBps >= 10000 {
		return fmt.Errorf("%w: fee rate %d bps not below 10000", ErrInvalidConfig, feeRateBps)
	}
	if dailyLimit == 0 {
		return fmt.Errorf("%w: daily limit is zero", ErrInvalidConfig)
	}
	return nil
}
