package ledger

import (
	"testing"

	"github.com/InsideOutbtc/nock-bridge/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestLedger(t *testing.T) *TokenLedger {
	t.Helper()
	return NewTokenLedger(db.NewDatabaseManagerAt(t.TempDir()))
}

func (l *TokenLedger) inTx(t *testing.T, fn func(tx *gorm.DB) error) error {
	t.Helper()
	return l.dbm.GetBridgeDB().Transaction(fn)
}

func TestMintAndBalance(t *testing.T) {
	l := newTestLedger(t)

	// unknown accounts read as zero
	balance, err := l.BalanceOf("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)

	require.NoError(t, l.inTx(t, func(tx *gorm.DB) error {
		if err := l.Mint(tx, "alice", 500); err != nil {
			return err
		}
		return l.Mint(tx, "alice", 250)
	}))

	balance, err = l.BalanceOf("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(750), balance)
}

func TestBurn(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.inTx(t, func(tx *gorm.DB) error {
		return l.Mint(tx, "alice", 100)
	}))

	err := l.inTx(t, func(tx *gorm.DB) error {
		return l.Burn(tx, "alice", 101)
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, l.inTx(t, func(tx *gorm.DB) error {
		return l.Burn(tx, "alice", 100)
	}))
	balance, err := l.BalanceOf("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}

func TestBurnUnknownAccount(t *testing.T) {
	l := newTestLedger(t)
	err := l.inTx(t, func(tx *gorm.DB) error {
		return l.Burn(tx, "ghost", 1)
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTransfer(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.inTx(t, func(tx *gorm.DB) error {
		return l.Mint(tx, "alice", 300)
	}))

	require.NoError(t, l.inTx(t, func(tx *gorm.DB) error {
		return l.Transfer(tx, "alice", "bob", 120)
	}))

	aliceBalance, err := l.BalanceOf("alice")
	require.NoError(t, err)
	bobBalance, err := l.BalanceOf("bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(180), aliceBalance)
	assert.Equal(t, uint64(120), bobBalance)
}

func TestFailedTransactionRollsBack(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.inTx(t, func(tx *gorm.DB) error {
		return l.Mint(tx, "alice", 100)
	}))

	err := l.inTx(t, func(tx *gorm.DB) error {
		if err := l.Mint(tx, "bob", 50); err != nil {
			return err
		}
		return l.Burn(tx, "alice", 200)
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// the mint inside the failed transaction must not stick
	bobBalance, err := l.BalanceOf("bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bobBalance)
}
