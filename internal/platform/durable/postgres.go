package durable

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/r3e-network/xrail/internal/corekit"
)

// schemaSQL is the complete stream-records schema. Every statement carries
// an IF NOT EXISTS guard, so applying it on each start is idempotent and no
// versioned migration machinery is needed for a single-table store.
//
//go:embed schema.sql
var schemaSQL string

// Postgres is a Store backed by a single append-only stream_records table,
// shared across streams and distinguished by the stream column.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres opens a connection pool against dsn and, if migrate is true,
// applies the embedded schema.
func NewPostgres(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, migrate bool) (*Postgres, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if migrate {
		if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
			return nil, fmt.Errorf("bootstrap stream schema: %w", err)
		}
	}
	return &Postgres{db: db}, nil
}

type streamRecordRow struct {
	Stream  string `db:"stream"`
	Cursor  int64  `db:"cursor"`
	Payload []byte `db:"payload"`
}

// Append inserts the next record for stream inside a transaction that reads
// the current max cursor and increments it, serialized per stream by an
// advisory lock so concurrent appenders never race on cursor assignment.
func (p *Postgres) Append(ctx context.Context, stream string, payload []byte) (Record, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Concurrent appenders to the same stream serialize on a per-stream
	// advisory lock; the lock releases at commit/rollback.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, stream); err != nil {
		return Record{}, fmt.Errorf("acquire stream lock: %w", err)
	}

	var maxCursor int64
	if err := tx.GetContext(ctx, &maxCursor,
		`SELECT COALESCE(MAX(cursor), 0) FROM stream_records WHERE stream = $1`, stream); err != nil {
		return Record{}, fmt.Errorf("select max cursor: %w", err)
	}

	next := maxCursor + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stream_records (stream, cursor, payload) VALUES ($1, $2, $3)`,
		stream, next, payload); err != nil {
		return Record{}, fmt.Errorf("insert stream record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	return Record{Cursor: next, Payload: payload}, nil
}

// Read returns up to limit records from stream with cursor > fromCursor.
// The page size is clamped so an unbounded read cannot drag an arbitrarily
// large stream through one query.
func (p *Postgres) Read(ctx context.Context, stream string, fromCursor int64, limit int) ([]Record, error) {
	limit = corekit.ClampBatch(limit, corekit.DefaultReadBatch, corekit.MaxReadBatch)
	var rows []streamRecordRow
	err := p.db.SelectContext(ctx, &rows,
		`SELECT stream, cursor, payload FROM stream_records
		 WHERE stream = $1 AND cursor > $2
		 ORDER BY cursor ASC
		 LIMIT $3`, stream, fromCursor, limit)
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = Record{Cursor: r.Cursor, Payload: r.Payload}
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
