package state

import (
	"errors"
	"sync"
	"time"

	"github.com/InsideOutbtc/nock-bridge/internal/db"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// State owns the in-memory copy of the persisted bridge state plus the audit
// counters, and is the single gate to the replay guard table. Operations
// mutate the database inside a transaction first and commit the cache after.
type State struct {
	EventBus *EventBus

	dbm *db.DatabaseManager

	bridgeMu sync.RWMutex
	statsMu  sync.Mutex

	bridgeState db.BridgeState
	initialized bool
}

// InitializeState initializes the state by reading from the DB
func InitializeState(dbm *db.DatabaseManager) *State {
	s := &State{
		EventBus: NewEventBus(),
		dbm:      dbm,
	}

	var bs db.BridgeState
	if err := dbm.GetBridgeDB().First(&bs).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("Failed to load bridge state: %v", err)
		}
		// stays uninitialized until Initialize runs
	} else {
		s.bridgeState = bs
		s.initialized = true
	}

	var stats db.BridgeStats
	if err := dbm.GetAuditDB().First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats = db.BridgeStats{UpdatedAt: time.Now()}
			if err := dbm.GetAuditDB().Save(&stats).Error; err != nil {
				log.Warnf("Failed to seed bridge stats: %v", err)
			}
		} else {
			log.Warnf("Failed to load bridge stats: %v", err)
		}
	}

	return s
}

func (s *State) Initialized() bool {
	s.bridgeMu.RLock()
	defer s.bridgeMu.RUnlock()
	return s.initialized
}

// GetBridgeState returns a copy of the cached state.
func (s *State) GetBridgeState() db.BridgeState {
	s.bridgeMu.RLock()
	defer s.bridgeMu.RUnlock()
	return s.bridgeState
}

// SaveBridgeState persists the given state within tx. The cache is not
// touched here; call CommitBridgeState once the transaction has committed.
func (s *State) SaveBridgeState(tx *gorm.DB, bs *db.BridgeState) error {
	bs.ID = 1
	bs.UpdatedAt = time.Now()
	return tx.Save(bs).Error
}

// CommitBridgeState replaces the cached copy after a successful transaction.
func (s *State) CommitBridgeState(bs db.BridgeState) {
	s.bridgeMu.Lock()
	defer s.bridgeMu.Unlock()
	s.bridgeState = bs
	s.initialized = true
}

// HasDepositKey reports whether the replay key (sourceTxHash, blockHeight)
// was already consumed.
func (s *State) HasDepositKey(sourceTxHash string, blockHeight uint64) (bool, error) {
	var count int64
	err := s.dbm.GetBridgeDB().Model(&db.DepositRecord{}).
		Where("source_tx_hash = ? AND block_height = ?", sourceTxHash, blockHeight).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConsumeDepositKey marks the replay key consumed within tx by inserting the
// deposit record. The composite unique index backstops concurrent submitters:
// a duplicate insert fails the whole transaction, so a key is consumed iff
// the deposit it names was minted exactly once.
func (s *State) ConsumeDepositKey(tx *gorm.DB, record *db.DepositRecord) error {
	record.UpdatedAt = time.Now()
	return tx.Create(record).Error
}

func (s *State) GetDepositByTxHash(sourceTxHash string) (*db.DepositRecord, error) {
	var record db.DepositRecord
	if err := s.dbm.GetBridgeDB().Where("source_tx_hash = ?", sourceTxHash).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateReleaseRequest queues a source chain release within tx.
func (s *State) CreateReleaseRequest(tx *gorm.DB, request *db.ReleaseRequest) error {
	request.Status = db.RELEASE_STATUS_INIT
	request.UpdatedAt = time.Now()
	return tx.Create(request).Error
}

func (s *State) GetPendingReleases(size int) ([]*db.ReleaseRequest, error) {
	var requests []*db.ReleaseRequest
	result := s.dbm.GetBridgeDB().
		Where("status = ?", db.RELEASE_STATUS_INIT).
		Order("id asc").Limit(size).Find(&requests)
	if result.Error != nil {
		return nil, result.Error
	}
	return requests, nil
}

// RecordWithdrawal writes the audit row for a committed withdrawal. Audit
// rows live outside the operation transaction, a failure here is logged and
// never fails the operation.
func (s *State) RecordWithdrawal(record *db.WithdrawalRecord) {
	record.UpdatedAt = time.Now()
	if err := s.dbm.GetAuditDB().Create(record).Error; err != nil {
		log.Warnf("Failed to record withdrawal audit row: %v", err)
	}
}

// UpdateStats folds one committed operation into the monitoring counters.
func (s *State) UpdateStats(amount uint64, deposit bool, dailyVolume uint64) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	var stats db.BridgeStats
	if err := s.dbm.GetAuditDB().First(&stats).Error; err != nil {
		log.Warnf("Failed to load bridge stats: %v", err)
		return
	}
	if deposit {
		stats.TotalDepositVolume += amount
	} else {
		stats.TotalWithdrawVolume += amount
	}
	stats.TotalTransactions++
	if amount > stats.LargestTransaction {
		stats.LargestTransaction = amount
	}
	if dailyVolume > stats.PeakDailyVolume {
		stats.PeakDailyVolume = dailyVolume
	}
	stats.UpdatedAt = time.Now()
	if err := s.dbm.GetAuditDB().Save(&stats).Error; err != nil {
		log.Warnf("Failed to save bridge stats: %v", err)
	}
}

func (s *State) GetStats() (db.BridgeStats, error) {
	var stats db.BridgeStats
	err := s.dbm.GetAuditDB().First(&stats).Error
	return stats, err
}
