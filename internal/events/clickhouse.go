package events

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/minidex/internal/models"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseSink appends pool events to the pool_events table.
type ClickHouseSink struct {
	conn driver.Conn
}

var _ Sink = (*ClickHouseSink)(nil)

func NewClickHouseSink(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseSink{conn: conn}, nil
}

const createPoolEventsTable = `
	CREATE TABLE IF NOT EXISTS pool_events (
		id         String,
		kind       LowCardinality(String),
		timestamp  DateTime64(3, 'UTC'),
		pool       String,
		owner      String,
		asset_a    String,
		asset_b    String,
		direction  LowCardinality(String),
		amount_a   UInt64,
		amount_b   UInt64,
		amount_in  UInt64,
		amount_out UInt64,
		shares     UInt64,
		reserve_a  UInt64,
		reserve_b  UInt64,
		fee_bps    UInt64
	) ENGINE = MergeTree
	ORDER BY (pool, timestamp)
`

// EnsureSchema creates the pool_events table if it is missing.
func (c *ClickHouseSink) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createPoolEventsTable); err != nil {
		return fmt.Errorf("failed to create pool_events: %w", err)
	}
	return nil
}

func (c *ClickHouseSink) Publish(ctx context.Context, ev *models.PoolEvent) error {
	query := `
		INSERT INTO pool_events (
			id, kind, timestamp, pool, owner, asset_a, asset_b, direction,
			amount_a, amount_b, amount_in, amount_out, shares,
			reserve_a, reserve_b, fee_bps
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		ev.ID,
		string(ev.Kind),
		ev.Timestamp,
		ev.Pool,
		ev.Owner,
		ev.AssetA,
		ev.AssetB,
		ev.Direction,
		ev.AmountA,
		ev.AmountB,
		ev.AmountIn,
		ev.AmountOut,
		ev.Shares,
		ev.ReserveA,
		ev.ReserveB,
		ev.FeeBps,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pool event: %w", err)
	}
	return nil
}

func (c *ClickHouseSink) Close() error {
	return c.conn.Close()
}
