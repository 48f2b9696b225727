// Package frameclickhouse stores frame summaries in ClickHouse.
package frameclickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"flametrace/internal/logger"
	"flametrace/pkg/models"
)

// Config configures the ClickHouse native writer.
type Config struct {
	Addr     string
	Database string
	Table    string
	Username string
	Password string
	Secure   bool
	Timeout  time.Duration
}

// Columns is the insert column order; Row produces values in the same order.
var Columns = []string{
	"trace_id",
	"frame",
	"event_count",
	"zoom",
	"offset_x",
	"offset_y",
	"width",
	"height",
	"time_start",
	"time_end",
	"depth_start",
	"depth_end",
	"visible_count",
	"bucketed_event_count",
	"bucket_count",
	"max_events_per_bucket",
	"query_time_us",
	"generated_at",
}

// Writer batches frame summaries into a ClickHouse table.
type Writer struct {
	conn      driver.Conn
	insertSQL string
	timeout   time.Duration
}

// NewWriter opens a connection pool and checks it with a ping.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse addr is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "frame_summaries"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:     cfg.Timeout,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
	if cfg.Secure {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create clickhouse connection: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	logger.Infof("Frame ClickHouse writer initialized: %s/%s.%s", cfg.Addr, cfg.Database, cfg.Table)
	return newWithConn(conn, cfg.Database, cfg.Table, cfg.Timeout), nil
}

func newWithConn(conn driver.Conn, database, table string, timeout time.Duration) *Writer {
	return &Writer{
		conn:      conn,
		insertSQL: InsertSQL(database, table),
		timeout:   timeout,
	}
}

// InsertSQL builds the batch insert statement for database.table.
func InsertSQL(database, table string) string {
	return fmt.Sprintf("INSERT INTO %s.%s (%s)", quoteIdent(database), quoteIdent(table), strings.Join(Columns, ", "))
}

// WriteFrames sends one batch.
func (w *Writer) WriteFrames(frames []models.FrameSummary) error {
	if len(frames) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, w.insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for i, f := range frames {
		if err := batch.Append(Row(f)...); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append frame %d: %w", i, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Row maps a summary onto Columns.
func Row(f models.FrameSummary) []any {
	return []any{
		f.TraceID,
		f.Label,
		uint64(f.EventCount),
		f.Zoom,
		f.OffsetX,
		f.OffsetY,
		f.Width,
		f.Height,
		f.Bounds.TimeStart,
		f.Bounds.TimeEnd,
		int32(f.Bounds.DepthStart),
		int32(f.Bounds.DepthEnd),
		uint64(f.Stats.VisibleCount),
		uint64(f.Stats.BucketedEventCount),
		uint64(f.Stats.BucketCount),
		uint64(f.Stats.MaxEventsPerBucket),
		uint64(f.QueryTime.Microseconds()),
		f.GeneratedAt,
	}
}

// Close closes the connection pool.
func (w *Writer) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}

func quoteIdent(v string) string {
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
