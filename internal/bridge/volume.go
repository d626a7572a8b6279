package bridge

import (
	"fmt"
	"time"

	"github.com/InsideOutbtc/nock-bridge/internal/db"
)

// dayBoundary returns the most recent UTC day boundary at or before now.
func dayBoundary(now time.Time) int64 {
	return now.UTC().Truncate(24 * time.Hour).Unix()
}

// calculateFee truncates toward zero, so fee+net == amount always holds and
// the protocol never collects more than the configured rate. Split into
// quotient and remainder to stay exact without 128 bit arithmetic.
func calculateFee(amount uint64, feeRateBps uint16) uint64 {
	rate := uint64(feeRateBps)
	return amount/10000*rate + amount%10000*rate/10000
}

// admitVolume runs the rolling window bookkeeping on bs: reset the window on
// a UTC day boundary crossing (multi-day gaps jump straight to the current
// boundary), compute fee and net, and reject on the gross amount before fee
// deduction. Mutates bs only on success; callers pass a copy, so a rejection
// leaves the live state untouched.
func admitVolume(bs *db.BridgeState, amount uint64, now time.Time) (fee, net uint64, err error) {
	boundary := dayBoundary(now)
	if boundary > bs.LastResetTimestamp {
		bs.DailyVolume = 0
		bs.LastResetTimestamp = boundary
	}

	fee = calculateFee(amount, bs.FeeRateBps)
	net = amount - fee

	if amount > bs.DailyLimit-bs.DailyVolume || bs.DailyVolume > bs.DailyLimit {
		return 0, 0, fmt.Errorf("%w: volume %d + amount %d over limit %d",
			ErrDailyLimitExceeded, bs.DailyVolume, amount, bs.DailyLimit)
	}
	bs.DailyVolume += amount
	return fee, net, nil
}
