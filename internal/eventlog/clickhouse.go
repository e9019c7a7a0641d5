package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/northstar-market/concierge/internal/config"
)

// ClickHouseSink inserts audit events directly, for deployments running
// without a Kafka-to-ClickHouse consumer pipeline.
type ClickHouseSink struct {
	conn clickhouse.Conn
}

// NewClickHouseSink opens a connection and ensures the events table exists.
func NewClickHouseSink(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseSink, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, nil
	}

	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if cfg.Database != "" {
		opts.Auth.Database = cfg.Database
	} else if opts.Auth.Database == "" {
		opts.Auth.Database = "concierge"
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctxTimeout); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	if err := conn.Exec(ctxTimeout, `
		CREATE TABLE IF NOT EXISTS events (
			type String,
			session_id String,
			user_id String,
			timestamp DateTime,
			payload String
		) ENGINE = MergeTree() ORDER BY (session_id, timestamp)
	`); err != nil {
		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &ClickHouseSink{conn: conn}, nil
}

// Insert writes one event row.
func (s *ClickHouseSink) Insert(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("eventlog: encode payload: %w", err)
	}
	return s.conn.Exec(ctx, `INSERT INTO events (type, session_id, user_id, timestamp, payload) VALUES (?, ?, ?, ?, ?)`,
		ev.Type, ev.SessionID, ev.UserID, ev.Timestamp, string(payload))
}

// Close releases the underlying connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
