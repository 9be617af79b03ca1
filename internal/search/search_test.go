package search_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwindex/kwindex/internal/build"
	"github.com/kwindex/kwindex/internal/container"
	kwerrors "github.com/kwindex/kwindex/internal/errors"
	"github.com/kwindex/kwindex/internal/parquetsrc"
	"github.com/kwindex/kwindex/internal/search"
	"github.com/kwindex/kwindex/internal/storage"
)

type emailRow struct {
	Email string `parquet:"email"`
}

// setupIndex writes rows to dir/data.bin as a parquet file, builds an index
// over it, and persists the sidecar at dir/data.bin.index. It returns the
// adapter and data path a Searcher can be opened against.
func setupIndex(t *testing.T, rows []emailRow) (storage.Adapter, string) {
	t.Helper()
	dir := t.TempDir()
	adapter := storage.NewLocal()
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, parquet.Write(&buf, rows))
	dataPath := dir + "/data.bin"
	require.NoError(t, adapter.Put(ctx, dataPath, bytes.NewReader(buf.Bytes())))

	info, err := adapter.Head(ctx, dataPath)
	require.NoError(t, err)

	src, err := parquetsrc.Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	b := build.New(build.DefaultOptions())
	header, data, err := b.Build(ctx, src, info)
	require.NoError(t, err)

	w := container.NewWriter(adapter, dataPath+".index")
	require.NoError(t, w.Write(ctx, header, data))

	return adapter, dataPath
}

func TestSearch_SingleToken_VerifiedMatch(t *testing.T) {
	adapter, dataPath := setupIndex(t, []emailRow{{Email: "user@example.com"}})

	s, err := search.Open(context.Background(), adapter, dataPath)
	require.NoError(t, err)

	result, err := s.Search(context.Background(), "example", search.Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Verified)
	assert.Equal(t, 1, result.Verified.TotalOccurrences)
	assert.Contains(t, result.Verified.Columns, "email")
	assert.Equal(t, []search.RowOccurrence{{RowGroup: 0, Row: 0}}, result.Verified.RowsByColumn["email"])
}

func TestSearch_FullToken_NoDataFileRead(t *testing.T) {
	adapter, dataPath := setupIndex(t, []emailRow{{Email: "user@example.com"}})

	s, err := search.Open(context.Background(), adapter, dataPath)
	require.NoError(t, err)

	result, err := s.Search(context.Background(), "user@example.com", search.Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Verified)
	assert.Equal(t, []search.RowOccurrence{{RowGroup: 0, Row: 0}}, result.Verified.RowsByColumn["email"])
}

func TestSearch_Nonexistent_ReturnsNoMatch(t *testing.T) {
	adapter, dataPath := setupIndex(t, []emailRow{{Email: "user@example.com"}})

	s, err := search.Open(context.Background(), adapter, dataPath)
	require.NoError(t, err)

	result, err := s.Search(context.Background(), "nonexistent", search.Options{})
	require.NoError(t, err)
	assert.True(t, result.NoMatch)
}

func TestSearch_DottedPhrase_VerifiedViaSharedParent(t *testing.T) {
	adapter, dataPath := setupIndex(t, []emailRow{{Email: "user@example.com"}})

	s, err := search.Open(context.Background(), adapter, dataPath)
	require.NoError(t, err)

	result, err := s.Search(context.Background(), "example.com", search.Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Verified)
	assert.Equal(t, []search.RowOccurrence{{RowGroup: 0, Row: 0}}, result.Verified.RowsByColumn["email"])
}

func TestSearch_Phrase_RejectsRowWithDifferentParent(t *testing.T) {
	adapter, dataPath := setupIndex(t, []emailRow{
		{Email: "alpha beta"},
		{Email: "alpha gamma"},
	})

	s, err := search.Open(context.Background(), adapter, dataPath)
	require.NoError(t, err)

	result, err := s.Search(context.Background(), "alpha beta", search.Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Verified)
	assert.Equal(t, []search.RowOccurrence{{RowGroup: 0, Row: 0}}, result.Verified.RowsByColumn["email"])
}

func TestSearch_EmptyQuery_ReturnsEmptyQueryError(t *testing.T) {
	adapter, dataPath := setupIndex(t, []emailRow{{Email: "user@example.com"}})

	s, err := search.Open(context.Background(), adapter, dataPath)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "   ", search.Options{})
	require.Error(t, err)
	assert.Equal(t, kwerrors.ErrCodeEmptyQuery, kwerrors.GetCode(err))
}

func TestSearch_StaleIndex_ReturnsStaleIndexError(t *testing.T) {
	adapter, dataPath := setupIndex(t, []emailRow{{Email: "user@example.com"}})

	ctx := context.Background()
	require.NoError(t, adapter.Put(ctx, dataPath, bytes.NewReader([]byte("truncated"))))

	s, err := search.Open(ctx, adapter, dataPath)
	require.NoError(t, err)

	_, err = s.Search(ctx, "example", search.Options{})
	require.Error(t, err)
	assert.Equal(t, kwerrors.ErrCodeStaleIndex, kwerrors.GetCode(err))
}
