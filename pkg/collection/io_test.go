package collection

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openviking/vikingdb/pkg/store"
)

func TestCollectionDumpThenImportRoundTrips(t *testing.T) {
	ctx := context.Background()
	src := newTestCollection(t)

	_, err := src.Upsert(ctx, []UpsertInput{
		{PK: "doc-1", Fields: map[string]any{"pk": "doc-1", "category": "a", "rating": int64(5)}, Vector: []float32{1, 0, 0, 0}},
		{PK: "doc-2", Fields: map[string]any{"pk": "doc-2", "category": "b", "rating": int64(3)}, Vector: []float32{0, 1, 0, 0}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := src.Dump(ctx, &buf, DefaultDumpOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RecordCount)

	dst, err := New(testMeta(), store.NewMemStore(), nil)
	require.NoError(t, err)

	importStats, err := dst.Import(ctx, &buf, DumpFormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, importStats.Upserted)

	got, err := dst.Fetch(ctx, []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	require.NotNil(t, got[0])
	require.NotNil(t, got[1])
	assert.Equal(t, "a", got[0].Fields["category"])
	assert.Equal(t, "b", got[1].Fields["category"])
}

func TestCollectionDumpJSONLRoundTrips(t *testing.T) {
	ctx := context.Background()
	src := newTestCollection(t)
	_, err := src.Upsert(ctx, []UpsertInput{
		{PK: "doc-1", Fields: map[string]any{"pk": "doc-1"}, Vector: []float32{1, 0, 0, 0}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = src.Dump(ctx, &buf, DumpOptions{Format: DumpFormatJSONL, IncludeVectors: true})
	require.NoError(t, err)

	dst, err := New(testMeta(), store.NewMemStore(), nil)
	require.NoError(t, err)
	importStats, err := dst.Import(ctx, &buf, DumpFormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, 1, importStats.Upserted)
}
