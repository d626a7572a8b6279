package bridge

import (
	"testing"
	"time"

	"github.com/InsideOutbtc/nock-bridge/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFeeConservation(t *testing.T) {
	amounts := []uint64{0, 1, 9999, 10000, 10001, 123456789, 1<<63 - 1, ^uint64(0)}
	rates := []uint16{0, 1, 10, 100, 2500, 9999}

	for _, amount := range amounts {
		for _, rate := range rates {
			fee := calculateFee(amount, rate)
			net := amount - fee
			assert.Equal(t, amount, fee+net, "amount=%d rate=%d", amount, rate)
			// truncating: never more than the configured rate
			if amount < 1<<32 {
				assert.Equal(t, amount*uint64(rate)/10000, fee, "amount=%d rate=%d", amount, rate)
			}
		}
	}
}

func TestCalculateFeeTruncates(t *testing.T) {
	// 999 * 10 / 10000 = 0.999, truncates to 0
	assert.Equal(t, uint64(0), calculateFee(999, 10))
	assert.Equal(t, uint64(1), calculateFee(1000, 10))
	// full-range amount must not overflow
	assert.Equal(t, ^uint64(0)/10000*9999+^uint64(0)%10000*9999/10000, calculateFee(^uint64(0), 9999))
}

func TestAdmitVolumeLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bs := db.BridgeState{
		DailyLimit:         10000,
		FeeRateBps:         0,
		LastResetTimestamp: dayBoundary(now),
	}

	_, _, err := admitVolume(&bs, 6000, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(6000), bs.DailyVolume)

	_, _, err = admitVolume(&bs, 6000, now)
	require.ErrorIs(t, err, ErrDailyLimitExceeded)
	// rejection leaves the window untouched
	assert.Equal(t, uint64(6000), bs.DailyVolume)

	// exactly filling the limit is allowed
	_, _, err = admitVolume(&bs, 4000, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), bs.DailyVolume)
}

func TestAdmitVolumeGrossBeforeFee(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bs := db.BridgeState{
		DailyLimit:         1000,
		FeeRateBps:         5000, // 50%, net is half the gross
		LastResetTimestamp: dayBoundary(now),
	}

	// net would fit, gross does not: the limit bounds raw throughput
	_, _, err := admitVolume(&bs, 1001, now)
	require.ErrorIs(t, err, ErrDailyLimitExceeded)

	fee, net, err := admitVolume(&bs, 1000, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), fee)
	assert.Equal(t, uint64(500), net)
}

func TestAdmitVolumeDayRollover(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	bs := db.BridgeState{
		DailyLimit:         10000,
		LastResetTimestamp: dayBoundary(day1),
	}

	_, _, err := admitVolume(&bs, 6000, day1)
	require.NoError(t, err)
	_, _, err = admitVolume(&bs, 6000, day1)
	require.ErrorIs(t, err, ErrDailyLimitExceeded)

	// one UTC day later the same amount passes
	day2 := day1.Add(2 * time.Minute)
	_, _, err = admitVolume(&bs, 6000, day2)
	require.NoError(t, err)
	assert.Equal(t, uint64(6000), bs.DailyVolume)
	assert.Equal(t, dayBoundary(day2), bs.LastResetTimestamp)
}

func TestAdmitVolumeMultiDayGap(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	bs := db.BridgeState{
		DailyLimit:         10000,
		LastResetTimestamp: dayBoundary(day1),
		DailyVolume:        9000,
	}

	// a week of idle time jumps straight to the current boundary
	later := day1.AddDate(0, 0, 7)
	_, _, err := admitVolume(&bs, 500, later)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bs.DailyVolume)
	assert.Equal(t, dayBoundary(later), bs.LastResetTimestamp)

	// and only resets once per crossing
	_, _, err = admitVolume(&bs, 500, later.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bs.DailyVolume)
}

func TestDayBoundary(t *testing.T) {
	at := time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Unix(), dayBoundary(at))
	// non-UTC wall clocks normalize to the UTC day
	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC).Unix(), dayBoundary(time.Date(2025, 6, 1, 20, 0, 0, 0, est)))
}
