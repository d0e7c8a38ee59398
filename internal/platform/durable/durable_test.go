package durable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAppendAssignsMonotonicCursors(t *testing.T) {
	m := NewMemory()
	r1, err := m.Append(context.Background(), StreamExecutionHistory, []byte("a"))
	require.NoError(t, err)
	r2, err := m.Append(context.Background(), StreamExecutionHistory, []byte("b"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), r1.Cursor)
	assert.Equal(t, int64(2), r2.Cursor)
}

func TestMemoryCursorsAreIndependentPerStream(t *testing.T) {
	m := NewMemory()
	a, err := m.Append(context.Background(), StreamEdgeSnapshots, []byte("a"))
	require.NoError(t, err)
	b, err := m.Append(context.Background(), StreamExecutionHistory, []byte("b"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Cursor)
	assert.Equal(t, int64(1), b.Cursor, "a distinct stream starts its own cursor sequence")
}

func TestMemoryReadReturnsOnlyRecordsAfterCursor(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _ = m.Append(ctx, StreamExecutionHistory, []byte("a"))
	_, _ = m.Append(ctx, StreamExecutionHistory, []byte("b"))
	_, _ = m.Append(ctx, StreamExecutionHistory, []byte("c"))

	recs, err := m.Read(ctx, StreamExecutionHistory, 1, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []byte("b"), recs[0].Payload)
	assert.Equal(t, []byte("c"), recs[1].Payload)
}

func TestMemoryReadRespectsLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = m.Append(ctx, StreamEdgeSnapshots, []byte{byte(i)})
	}

	recs, err := m.Read(ctx, StreamEdgeSnapshots, 0, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1), recs[0].Cursor)
	assert.Equal(t, int64(2), recs[1].Cursor)
}

func TestMemoryReadUnknownStreamIsEmptyNotError(t *testing.T) {
	m := NewMemory()
	recs, err := m.Read(context.Background(), "nonexistent", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
