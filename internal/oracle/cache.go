package oracle

import (
	"errors"
	"sync"
	"time"

	"github.com/InsideOutbtc/nock-bridge/internal/db"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNoPriceData       = errors.New("no price data")
	ErrStaleObservation  = errors.New("observation timestamp not increasing")
	ErrStaleOracleData   = errors.New("latest oracle data is stale")
	ErrInvalidObservation = errors.New("invalid observation")
)

// Observation is one externally pushed price point. Price is scaled by
// 10^Exponent into the reference currency.
type Observation struct {
	Price      uint64 `json:"price"`
	Confidence uint64 `json:"confidence"`
	Exponent   int32  `json:"exponent"`
	Timestamp  int64  `json:"timestamp"`
}

// Cache holds a bounded FIFO history of price observations. The bridge core
// never consults it to authorize transfers, it backs the reporting surface.
type Cache struct {
	mu        sync.RWMutex
	points    []Observation
	capacity  int
	staleness time.Duration

	dbm *db.DatabaseManager
}

func NewCache(capacity int, staleness time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache{
		points:    make([]Observation, 0, capacity),
		capacity:  capacity,
		staleness: staleness,
	}
}

// NewCacheWithDB restores the most recent persisted observations so the
// reporting surface survives a restart.
func NewCacheWithDB(dbm *db.DatabaseManager, capacity int, staleness time.Duration) *Cache {
	c := NewCache(capacity, staleness)
	c.dbm = dbm

	var rows []db.PricePoint
	if err := dbm.GetAuditDB().Order("timestamp desc").Limit(capacity).Find(&rows).Error; err != nil {
		log.Warnf("Failed to load price history: %v", err)
		return c
	}
	for i := len(rows) - 1; i >= 0; i-- {
		c.points = append(c.points, Observation{
			Price:      rows[i].Price,
			Confidence: rows[i].Confidence,
			Exponent:   rows[i].Exponent,
			Timestamp:  rows[i].Timestamp,
		})
	}
	return c
}

// Record accepts an observation with a strictly increasing timestamp,
// evicting the oldest point once capacity is reached.
func (c *Cache) Record(obs Observation) error {
	if obs.Price == 0 {
		return ErrInvalidObservation
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.points); n > 0 && obs.Timestamp <= c.points[n-1].Timestamp {
		return ErrStaleObservation
	}
	c.points = append(c.points, obs)
	if len(c.points) > c.capacity {
		c.points = c.points[1:]
	}

	if c.dbm != nil {
		row := db.PricePoint{
			Price:      obs.Price,
			Confidence: obs.Confidence,
			Exponent:   obs.Exponent,
			Timestamp:  obs.Timestamp,
		}
		if err := c.dbm.GetAuditDB().Create(&row).Error; err != nil {
			log.Warnf("Failed to persist price point: %v", err)
		}
	}
	return nil
}

// Latest returns the most recent observation, if any.
func (c *Cache) Latest() (Observation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.points) == 0 {
		return Observation{}, false
	}
	return c.points[len(c.points)-1], true
}

// LatestFresh applies the staleness threshold against the supplied now.
func (c *Cache) LatestFresh(now time.Time) (Observation, error) {
	obs, ok := c.Latest()
	if !ok {
		return Observation{}, ErrNoPriceData
	}
	if now.Unix()-obs.Timestamp > int64(c.staleness/time.Second) {
		return Observation{}, ErrStaleOracleData
	}
	return obs, nil
}

// DeviationExceeded reports whether price deviates from the average of the
// last ten observations by more than maxDeviationBps. Used to flag suspected
// manipulation for operators, never to block transfers.
func (c *Cache) DeviationExceeded(price uint64, maxDeviationBps uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.points) == 0 {
		return false
	}

	window := c.points
	if len(window) > 10 {
		window = window[len(window)-10:]
	}
	var sum uint64
	for _, p := range window {
		sum += p.Price
	}
	average := sum / uint64(len(window))
	if average == 0 {
		return false
	}

	var deviation uint64
	if price > average {
		deviation = (price - average) * 10000 / average
	} else {
		deviation = (average - price) * 10000 / average
	}
	return deviation > maxDeviationBps
}

// Value converts an asset amount into the reference currency using the
// latest fresh observation.
func (c *Cache) Value(amount uint64, now time.Time) (decimal.Decimal, error) {
	obs, err := c.LatestFresh(now)
	if err != nil {
		return decimal.Zero, err
	}
	price := decimal.NewFromUint64(obs.Price).Shift(obs.Exponent)
	return price.Mul(decimal.NewFromUint64(amount)), nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}
