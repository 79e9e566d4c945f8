// Package archive mirrors sensor readings into ClickHouse for long-term
// analysis. It is optional: the advisor only reads from Postgres.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"homeclimate/internal/types"
)

const readingsTableDDL = `CREATE TABLE IF NOT EXISTS sensor_readings (
	timestamp    DateTime64(3, 'UTC'),
	device_id    LowCardinality(String),
	temp_c       Nullable(Float64),
	humidity_rh  Nullable(Float64),
	pressure_hpa Nullable(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(timestamp)
ORDER BY (device_id, timestamp)
TTL toDateTime(timestamp) + INTERVAL 2 YEAR`

const insertReadings = `INSERT INTO sensor_readings (timestamp, device_id, temp_c, humidity_rh, pressure_hpa)`

// batch is the subset of driver.Batch used for inserts.
type batch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

// Options configures the ClickHouse connection.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseArchive writes readings to the sensor_readings table.
type ClickHouseArchive struct {
	conn    driver.Conn
	exec    func(ctx context.Context, query string) error
	prepare func(ctx context.Context, query string) (batch, error)
	logger  *slog.Logger
}

// Open connects to ClickHouse and pings it.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*ClickHouseArchive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	a := &ClickHouseArchive{
		conn: conn,
		exec: func(ctx context.Context, query string) error {
			return conn.Exec(ctx, query)
		},
		prepare: func(ctx context.Context, query string) (batch, error) {
			return conn.PrepareBatch(ctx, query)
		},
		logger: logger,
	}
	logger.Info("connected to ClickHouse", "addr", opts.Addr, "database", opts.Database)
	return a, nil
}

// InitSchema creates the readings table if it does not exist.
func (a *ClickHouseArchive) InitSchema(ctx context.Context) error {
	if err := a.exec(ctx, readingsTableDDL); err != nil {
		return fmt.Errorf("failed to create sensor_readings: %w", err)
	}
	return nil
}

// WriteReadings inserts readings in a single batch. An empty slice is a
// no-op.
func (a *ClickHouseArchive) WriteReadings(ctx context.Context, readings []types.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	b, err := a.prepare(ctx, insertReadings)
	if err != nil {
		return fmt.Errorf("failed to prepare readings batch: %w", err)
	}
	for _, r := range readings {
		if err := b.Append(r.Timestamp.UTC(), r.DeviceID, r.TempC, r.HumidityRH, r.PressureHPa); err != nil {
			_ = b.Abort()
			return fmt.Errorf("failed to append reading for %s: %w", r.DeviceID, err)
		}
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("failed to send readings batch: %w", err)
	}
	a.logger.Debug("archived readings", "count", len(readings))
	return nil
}

// Ping checks the connection.
func (a *ClickHouseArchive) Ping(ctx context.Context) error {
	return a.conn.Ping(ctx)
}

// Close closes the connection.
func (a *ClickHouseArchive) Close() error {
	if a.conn == nil {
		return nil
	}
	if err := a.conn.Close(); err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}
	return nil
}
