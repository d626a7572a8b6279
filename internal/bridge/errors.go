package bridge

import (
	"errors"

	"github.com/InsideOutbtc/nock-bridge/internal/ledger"
)

// Operation error taxonomy. Every failure is returned to the immediate
// caller with the offending values wrapped in, the core never retries.
var (
	ErrBridgePaused         = errors.New("bridge is paused")
	ErrNotPaused            = errors.New("bridge is not paused")
	ErrAlreadyPaused        = errors.New("bridge is already paused")
	ErrInsufficientQuorum   = errors.New("insufficient quorum")
	ErrAlreadyConsumed      = errors.New("deposit already consumed")
	ErrDailyLimitExceeded   = errors.New("daily limit exceeded")
	ErrInvalidConfig        = errors.New("invalid bridge config")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrCoolingOffNotElapsed = errors.New("cooling-off delay not elapsed")
	ErrNotInitialized       = errors.New("bridge not initialized")
	ErrAlreadyInitialized   = errors.New("bridge already initialized")
)

// ErrInsufficientBalance is the ledger's burn failure, re-exported so callers
// can match the full taxonomy in one place.
var ErrInsufficientBalance = ledger.ErrInsufficientBalance
