package state

import (
	"testing"

	"github.com/InsideOutbtc/nock-bridge/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestState(t *testing.T) (*State, *db.DatabaseManager) {
	t.Helper()
	dbm := db.NewDatabaseManagerAt(t.TempDir())
	return InitializeState(dbm), dbm
}

func TestFreshStateIsUninitialized(t *testing.T) {
	st, _ := newTestState(t)
	assert.False(t, st.Initialized())
	assert.Equal(t, uint64(0), st.GetBridgeState().Nonce)
}

func TestCommitBridgeState(t *testing.T) {
	st, dbm := newTestState(t)

	bs := db.BridgeState{Threshold: 3, Nonce: 7, DailyLimit: 1000}
	require.NoError(t, dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
		return st.SaveBridgeState(tx, &bs)
	}))
	st.CommitBridgeState(bs)

	assert.True(t, st.Initialized())
	assert.Equal(t, uint64(7), st.GetBridgeState().Nonce)

	// a second State over the same files sees the committed row
	st2 := InitializeState(dbm)
	assert.True(t, st2.Initialized())
	assert.Equal(t, uint64(7), st2.GetBridgeState().Nonce)
}

func TestDepositKeyLifecycle(t *testing.T) {
	st, dbm := newTestState(t)

	consumed, err := st.HasDepositKey("aa", 5)
	require.NoError(t, err)
	assert.False(t, consumed)

	record := db.DepositRecord{SourceTxHash: "aa", BlockHeight: 5, Amount: 100, Recipient: "alice"}
	require.NoError(t, dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
		return st.ConsumeDepositKey(tx, &record)
	}))

	consumed, err = st.HasDepositKey("aa", 5)
	require.NoError(t, err)
	assert.True(t, consumed)

	// the same hash at a different height is distinct
	consumed, err = st.HasDepositKey("aa", 6)
	require.NoError(t, err)
	assert.False(t, consumed)

	// the unique index rejects a second insert of the same key
	dup := db.DepositRecord{SourceTxHash: "aa", BlockHeight: 5, Amount: 100, Recipient: "bob"}
	err = dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
		return st.ConsumeDepositKey(tx, &dup)
	})
	assert.Error(t, err)
}

func TestDuplicateKeyFailsWholeTransaction(t *testing.T) {
	st, dbm := newTestState(t)

	first := db.DepositRecord{SourceTxHash: "bb", BlockHeight: 1, Amount: 10, Recipient: "alice"}
	require.NoError(t, dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
		return st.ConsumeDepositKey(tx, &first)
	}))

	// a transaction carrying the duplicate rolls back everything in it
	other := db.ReleaseRequest{OrderId: "order-1", Recipient: "cc", Amount: 5, Nonce: 1}
	dup := db.DepositRecord{SourceTxHash: "bb", BlockHeight: 1, Amount: 10, Recipient: "bob"}
	err := dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
		if err := st.CreateReleaseRequest(tx, &other); err != nil {
			return err
		}
		return st.ConsumeDepositKey(tx, &dup)
	})
	require.Error(t, err)

	pending, err := st.GetPendingReleases(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReleaseQueue(t *testing.T) {
	st, dbm := newTestState(t)

	for i, orderId := range []string{"order-a", "order-b"} {
		release := db.ReleaseRequest{OrderId: orderId, Recipient: "dd", Amount: uint64(i + 1), Nonce: uint64(i + 1)}
		require.NoError(t, dbm.GetBridgeDB().Transaction(func(tx *gorm.DB) error {
			return st.CreateReleaseRequest(tx, &release)
		}))
	}

	pending, err := st.GetPendingReleases(10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "order-a", pending[0].OrderId)
	assert.Equal(t, db.RELEASE_STATUS_INIT, pending[0].Status)
}

func TestUpdateStats(t *testing.T) {
	st, _ := newTestState(t)

	st.UpdateStats(1000, true, 1000)
	st.UpdateStats(400, false, 1400)
	st.UpdateStats(50, true, 50) // new day, smaller window

	stats, err := st.GetStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1050), stats.TotalDepositVolume)
	assert.Equal(t, uint64(400), stats.TotalWithdrawVolume)
	assert.Equal(t, uint64(3), stats.TotalTransactions)
	assert.Equal(t, uint64(1000), stats.LargestTransaction)
	assert.Equal(t, uint64(1400), stats.PeakDailyVolume)
}
