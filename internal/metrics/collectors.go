package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"dcaadvisor/pkg/logger"
)

// StoreCollector reports the size of the advisor's backing stores at scrape time.
// Any of the clients may be nil when that store is not configured.
type StoreCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn
	redis      *redis.Client

	sessions      *prometheus.Desc
	historyPoints *prometheus.Desc
	redisKeys     *prometheus.Desc
}

func NewStoreCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn, redis *redis.Client) *StoreCollector {
	return &StoreCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,
		redis:      redis,

		sessions: prometheus.NewDesc(
			"dcaadvisor_sessions_stored",
			"Number of persisted chat sessions",
			nil, nil,
		),
		historyPoints: prometheus.NewDesc(
			"dcaadvisor_price_history_points",
			"Number of stored daily closes by symbol",
			[]string{"symbol"}, nil,
		),
		redisKeys: prometheus.NewDesc(
			"dcaadvisor_redis_keys",
			"Number of keys in the advisor Redis database",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessions
	ch <- c.historyPoints
	ch <- c.redisKeys
}

// Collect implements prometheus.Collector
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.postgres != nil {
		c.collectSessions(ctx, ch)
	}
	if c.clickhouse != nil {
		c.collectHistory(ctx, ch)
	}
	if c.redis != nil {
		c.collectRedis(ctx, ch)
	}
}

func (c *StoreCollector) collectSessions(ctx context.Context, ch chan<- prometheus.Metric) {
	var count int
	if err := c.postgres.GetContext(ctx, &count, "SELECT COUNT(*) FROM advisor_sessions"); err != nil {
		c.log.Warnw("Failed to collect session count", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(count))
}

func (c *StoreCollector) collectHistory(ctx context.Context, ch chan<- prometheus.Metric) {
	var rows []struct {
		Symbol string `ch:"symbol"`
		Points uint64 `ch:"points"`
	}
	if err := c.clickhouse.Select(ctx, &rows, "SELECT symbol, count() AS points FROM price_history GROUP BY symbol"); err != nil {
		c.log.Warnw("Failed to collect price history stats", "error", err)
		return
	}
	for _, r := range rows {
		ch <- prometheus.MustNewConstMetric(c.historyPoints, prometheus.GaugeValue, float64(r.Points), r.Symbol)
	}
}

func (c *StoreCollector) collectRedis(ctx context.Context, ch chan<- prometheus.Metric) {
	n, err := c.redis.DBSize(ctx).Result()
	if err != nil {
		c.log.Warnw("Failed to collect redis key count", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.redisKeys, prometheus.GaugeValue, float64(n))
}

// RegisterStoreCollector registers the store collector
func RegisterStoreCollector(collector *StoreCollector) {
	prometheus.MustRegister(collector)
}
