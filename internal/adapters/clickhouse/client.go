package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"dcaadvisor/internal/adapters/config"
	"dcaadvisor/pkg/errors"
)

// Client wraps ClickHouse connection
type Client struct {
	conn driver.Conn
}

// NewClient creates a new ClickHouse client
func NewClient(cfg config.ClickHouseConfig) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "open clickhouse: %v", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "ping clickhouse %s:%d: %v", cfg.Host, cfg.Port, err)
	}

	return &Client{conn: conn}, nil
}

// Conn returns the underlying ClickHouse connection
func (c *Client) Conn() driver.Conn {
	return c.conn
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Health checks ClickHouse connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Exec executes a query without returning rows
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	return c.conn.Exec(ctx, query, args...)
}

// Query executes a query and scans rows into dest
func (c *Client) Query(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return c.conn.Select(ctx, dest, query, args...)
}

// Daily closes are keyed by (symbol, day); re-inserting a day replaces it on merge.
const priceHistoryDDL = `
CREATE TABLE IF NOT EXISTS price_history (
	symbol      LowCardinality(String),
	day         Date,
	price       Float64,
	source      LowCardinality(String),
	inserted_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(inserted_at)
ORDER BY (symbol, day)`

// Migrate creates the price history table
func (c *Client) Migrate(ctx context.Context) error {
	if err := c.conn.Exec(ctx, priceHistoryDDL); err != nil {
		return errors.Wrap(err, "clickhouse migrate")
	}
	return nil
}
