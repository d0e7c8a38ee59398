// Package durable implements the durable store collaborator (§6):
// append(stream, record) and read(stream, from_cursor) -> iterator, backing
// the edge_snapshots and execution_history streams.
package durable

import (
	"context"
	"sync"
)

// Record is one entry appended to a stream: an opaque payload plus the
// monotonic cursor assigned on append.
type Record struct {
	Cursor  int64
	Payload []byte
}

// Store is the durable store collaborator contract.
type Store interface {
	Append(ctx context.Context, stream string, payload []byte) (Record, error)
	Read(ctx context.Context, stream string, fromCursor int64, limit int) ([]Record, error)
}

const (
	// StreamEdgeSnapshots holds one record per snapshot-class tick.
	StreamEdgeSnapshots = "edge_snapshots"
	// StreamExecutionHistory holds one record per ExecutionRecord state transition.
	StreamExecutionHistory = "execution_history"
)

// Memory is an in-memory Store, safe for concurrent use, used by tests and
// local runs without Postgres.
type Memory struct {
	mu      sync.RWMutex
	streams map[string][]Record
	cursors map[string]int64
}

// NewMemory builds an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		streams: make(map[string][]Record),
		cursors: make(map[string]int64),
	}
}

// Append assigns the next monotonic cursor for stream and stores payload.
func (m *Memory) Append(_ context.Context, stream string, payload []byte) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cursors[stream]++
	rec := Record{Cursor: m.cursors[stream], Payload: append([]byte(nil), payload...)}
	m.streams[stream] = append(m.streams[stream], rec)
	return rec, nil
}

// Read returns up to limit records from stream with cursor > fromCursor, in
// ascending cursor order.
func (m *Memory) Read(_ context.Context, stream string, fromCursor int64, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.streams[stream] {
		if rec.Cursor <= fromCursor {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
