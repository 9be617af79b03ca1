package build_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwindex/kwindex/internal/build"
	"github.com/kwindex/kwindex/internal/columnpool"
	"github.com/kwindex/kwindex/internal/container"
	kwerrors "github.com/kwindex/kwindex/internal/errors"
	"github.com/kwindex/kwindex/internal/parquetsrc"
	"github.com/kwindex/kwindex/internal/storage"
)

// decodeAllChunks decodes every chunk indexed for columnID, for assertions
// that don't care about chunk boundaries.
func decodeAllChunks(header *container.Header, columnID uint32, data []byte, isGlobal bool) ([]container.Entry, error) {
	ci, ok := header.ColumnIndex(columnID)
	if !ok {
		return nil, nil
	}
	var all []container.Entry
	for _, meta := range ci.Chunks {
		payload := data[meta.Offset : meta.Offset+uint64(meta.Length)]
		entries, err := container.DecodeChunk(payload, isGlobal)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

type record struct {
	Email string `parquet:"email"`
	Name  string `parquet:"name"`
}

func buildSourceFile(t *testing.T, rows []record) *parquetsrc.Source {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, parquet.Write(&buf, rows))

	data := buf.Bytes()
	src, err := parquetsrc.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return src
}

func TestBuilder_Build_SingleRowSingleColumn(t *testing.T) {
	src := buildSourceFile(t, []record{
		{Email: "user@example.com", Name: "alice"},
	})

	b := build.New(build.DefaultOptions())
	header, data, err := b.Build(context.Background(), src, storage.ObjectInfo{Size: 10, ETag: "e1", LastModified: 100})
	require.NoError(t, err)
	require.NotNil(t, header)
	assert.NotEmpty(t, data)

	assert.Equal(t, uint64(10), header.Source.Size)
	assert.Equal(t, "e1", header.Source.ETag)

	// Two real columns plus the global aggregate must each have a filter
	// and a chunk index.
	assert.Len(t, header.Filters, 3)
	assert.Len(t, header.ChunkIndex, 3)

	pool, err := columnpool.FromEntries(header.ColumnPool)
	require.NoError(t, err)
	emailID, ok := pool.ID("email")
	require.True(t, ok)

	ci, ok := header.ColumnIndex(emailID)
	require.True(t, ok)
	require.Len(t, ci.Chunks, 1)

	entries, err := decodeAllChunks(header, emailID, data, false)
	require.NoError(t, err)

	var found bool
	for _, e := range entries {
		if e.Keyword == "example" {
			found = true
			require.Len(t, e.Runs, 1)
			assert.Equal(t, uint16(0), e.Runs[0].RowGroup)
			assert.Equal(t, uint32(0), e.Runs[0].Start)
			assert.Equal(t, uint32(1), e.Runs[0].Length)
		}
	}
	assert.True(t, found, "expected %q to be indexed for column email", "example")
}

func TestBuilder_Build_GlobalColumnTracksOriginColumns(t *testing.T) {
	src := buildSourceFile(t, []record{
		{Email: "alice", Name: "alice"},
	})

	b := build.New(build.DefaultOptions())
	header, data, err := b.Build(context.Background(), src, storage.ObjectInfo{})
	require.NoError(t, err)

	pool, err := columnpool.FromEntries(header.ColumnPool)
	require.NoError(t, err)
	emailID, _ := pool.ID("email")
	nameID, _ := pool.ID("name")

	entries, err := decodeAllChunks(header, columnpool.GlobalColumnID, data, true)
	require.NoError(t, err)

	for _, e := range entries {
		if e.Keyword == "alice" {
			assert.ElementsMatch(t, []uint32{emailID, nameID}, e.Columns)
			return
		}
	}
	t.Fatal("expected \"alice\" in the global column")
}

func TestBuilder_Build_GlobalColumnMergesRunsAcrossColumns(t *testing.T) {
	// "alice" appears in the name column at row 0 and in the email column
	// at row 1, so a column-major traversal (email fully, then name fully)
	// would feed the global accumulator row 1 before row 0 -- a
	// non-monotonic sequence that used to split this into two trailing,
	// unmerged runs instead of one maximal [0,2) run.
	src := buildSourceFile(t, []record{
		{Email: "zzz", Name: "alice"},
		{Email: "alice", Name: "zzz"},
	})

	b := build.New(build.DefaultOptions())
	header, data, err := b.Build(context.Background(), src, storage.ObjectInfo{})
	require.NoError(t, err)

	entries, err := decodeAllChunks(header, columnpool.GlobalColumnID, data, true)
	require.NoError(t, err)

	var found bool
	for _, e := range entries {
		if e.Keyword != "alice" {
			continue
		}
		found = true
		require.Len(t, e.Runs, 1, "expected a single maximal run, got %+v", e.Runs)
		assert.Equal(t, uint16(0), e.Runs[0].RowGroup)
		assert.Equal(t, uint32(0), e.Runs[0].Start)
		assert.Equal(t, uint32(2), e.Runs[0].Length)
	}
	assert.True(t, found, "expected \"alice\" in the global column")
}

func TestBuilder_Build_RejectsUnknownExcludedColumn(t *testing.T) {
	src := buildSourceFile(t, []record{{Email: "a", Name: "b"}})
	opts := build.DefaultOptions()
	opts.Excluded = map[string]bool{"nonexistent": true}

	b := build.New(opts)
	_, _, err := b.Build(context.Background(), src, storage.ObjectInfo{})
	require.Error(t, err)
	assert.Equal(t, kwerrors.ErrCodeConfigUnknownColumn, kwerrors.GetCode(err))
}

func TestBuilder_Build_RejectsBadFalsePositiveRate(t *testing.T) {
	src := buildSourceFile(t, []record{{Email: "a", Name: "b"}})
	opts := build.DefaultOptions()
	opts.FalsePositiveRate = 1.5

	b := build.New(opts)
	_, _, err := b.Build(context.Background(), src, storage.ObjectInfo{})
	assert.Error(t, err)
}
