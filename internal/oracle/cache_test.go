package oracle

import (
	"testing"
	"time"

	"github.com/InsideOutbtc/nock-bridge/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndLatest(t *testing.T) {
	c := NewCache(100, time.Minute)

	_, ok := c.Latest()
	assert.False(t, ok)

	require.NoError(t, c.Record(Observation{Price: 50000, Exponent: -2, Timestamp: 1000}))
	require.NoError(t, c.Record(Observation{Price: 50100, Exponent: -2, Timestamp: 1001}))

	obs, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(50100), obs.Price)
	assert.Equal(t, 2, c.Len())
}

func TestRecordRejectsNonIncreasingTimestamp(t *testing.T) {
	c := NewCache(100, time.Minute)
	require.NoError(t, c.Record(Observation{Price: 100, Timestamp: 1000}))

	assert.ErrorIs(t, c.Record(Observation{Price: 101, Timestamp: 1000}), ErrStaleObservation)
	assert.ErrorIs(t, c.Record(Observation{Price: 101, Timestamp: 999}), ErrStaleObservation)
	assert.Equal(t, 1, c.Len())
}

func TestRecordRejectsZeroPrice(t *testing.T) {
	c := NewCache(100, time.Minute)
	assert.ErrorIs(t, c.Record(Observation{Price: 0, Timestamp: 1000}), ErrInvalidObservation)
}

func TestRecordEvictsOldest(t *testing.T) {
	c := NewCache(3, time.Minute)
	for ts := int64(1); ts <= 5; ts++ {
		require.NoError(t, c.Record(Observation{Price: uint64(ts * 100), Timestamp: ts}))
	}

	assert.Equal(t, 3, c.Len())
	obs, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(500), obs.Price)
	// eviction does not loosen the monotonic timestamp check
	assert.ErrorIs(t, c.Record(Observation{Price: 1, Timestamp: 5}), ErrStaleObservation)
}

func TestLatestFresh(t *testing.T) {
	c := NewCache(100, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := c.LatestFresh(base)
	assert.ErrorIs(t, err, ErrNoPriceData)

	require.NoError(t, c.Record(Observation{Price: 42, Timestamp: base.Unix()}))

	obs, err := c.LatestFresh(base.Add(30 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), obs.Price)

	_, err = c.LatestFresh(base.Add(2 * time.Minute))
	assert.ErrorIs(t, err, ErrStaleOracleData)
}

func TestDeviationExceeded(t *testing.T) {
	c := NewCache(100, time.Minute)

	// empty history cannot flag anything
	assert.False(t, c.DeviationExceeded(1000, 500))

	for ts := int64(1); ts <= 10; ts++ {
		require.NoError(t, c.Record(Observation{Price: 1000, Timestamp: ts}))
	}

	assert.False(t, c.DeviationExceeded(1040, 500), "4% within a 5% band")
	assert.True(t, c.DeviationExceeded(1060, 500), "6% beyond a 5% band")
	assert.True(t, c.DeviationExceeded(940, 500), "deviation is symmetric")
	assert.False(t, c.DeviationExceeded(1050, 500), "exactly at the band is not exceeded")
}

func TestDeviationUsesRecentWindow(t *testing.T) {
	c := NewCache(100, time.Minute)
	ts := int64(0)

	// old regime far from the current price
	for i := 0; i < 20; i++ {
		ts++
		require.NoError(t, c.Record(Observation{Price: 100, Timestamp: ts}))
	}
	// last ten observations establish the new regime
	for i := 0; i < 10; i++ {
		ts++
		require.NoError(t, c.Record(Observation{Price: 1000, Timestamp: ts}))
	}

	assert.False(t, c.DeviationExceeded(1000, 100), "old regime must not drag the average")
}

func TestHistorySurvivesRestart(t *testing.T) {
	dbm := db.NewDatabaseManagerAt(t.TempDir())

	c := NewCacheWithDB(dbm, 100, time.Minute)
	require.NoError(t, c.Record(Observation{Price: 100, Timestamp: 1}))
	require.NoError(t, c.Record(Observation{Price: 200, Timestamp: 2}))

	restored := NewCacheWithDB(dbm, 100, time.Minute)
	assert.Equal(t, 2, restored.Len())
	obs, ok := restored.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(200), obs.Price)

	// the monotonic check carries over the persisted history
	assert.ErrorIs(t, restored.Record(Observation{Price: 300, Timestamp: 2}), ErrStaleObservation)
}

func TestValue(t *testing.T) {
	c := NewCache(100, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := c.Value(10, base)
	assert.ErrorIs(t, err, ErrNoPriceData)

	// 50000 * 10^-2 = 500.00 per unit
	require.NoError(t, c.Record(Observation{Price: 50000, Exponent: -2, Timestamp: base.Unix()}))

	value, err := c.Value(3, base)
	require.NoError(t, err)
	assert.True(t, value.Equal(decimal.NewFromInt(1500)), "got %s", value)
}
