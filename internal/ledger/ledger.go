package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/InsideOutbtc/nock-bridge/internal/db"
	"gorm.io/gorm"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is the destination chain token surface the bridge mints and burns
// against. Every method takes the enclosing operation transaction so that
// token effects commit or roll back with the bridge state.
type Ledger interface {
	Mint(tx *gorm.DB, account string, amount uint64) error
	Burn(tx *gorm.DB, account string, amount uint64) error
	Transfer(tx *gorm.DB, from, to string, amount uint64) error
	BalanceOf(account string) (uint64, error)
}

// TokenLedger keeps wrapped token balances in the bridge database.
type TokenLedger struct {
	dbm *db.DatabaseManager
}

var _ Ledger = (*TokenLedger)(nil)

func NewTokenLedger(dbm *db.DatabaseManager) *TokenLedger {
	return &TokenLedger{dbm: dbm}
}

func (l *TokenLedger) Mint(tx *gorm.DB, account string, amount uint64) error {
	balance, err := loadBalance(tx, account)
	if err != nil {
		return err
	}
	balance.Balance += amount
	balance.UpdatedAt = time.Now()
	return tx.Save(balance).Error
}

func (l *TokenLedger) Burn(tx *gorm.DB, account string, amount uint64) error {
	balance, err := loadBalance(tx, account)
	if err != nil {
		return err
	}
	if balance.Balance < amount {
		return fmt.Errorf("%w: account %s holds %d, burn %d", ErrInsufficientBalance, account, balance.Balance, amount)
	}
	balance.Balance -= amount
	balance.UpdatedAt = time.Now()
	return tx.Save(balance).Error
}

func (l *TokenLedger) Transfer(tx *gorm.DB, from, to string, amount uint64) error {
	if err := l.Burn(tx, from, amount); err != nil {
		return err
	}
	return l.Mint(tx, to, amount)
}

func (l *TokenLedger) BalanceOf(account string) (uint64, error) {
	balance, err := loadBalance(l.dbm.GetBridgeDB(), account)
	if err != nil {
		return 0, err
	}
	return balance.Balance, nil
}

func loadBalance(tx *gorm.DB, account string) (*db.TokenBalance, error) {
	var balance db.TokenBalance
	err := tx.Where("account = ?", account).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &db.TokenBalance{Account: account, Balance: 0}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}
