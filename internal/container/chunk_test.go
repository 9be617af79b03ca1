package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeChunk_ColumnScoped_RoundTrips(t *testing.T) {
	entries := []Entry{
		{
			Keyword: "example",
			Parent:  "example.com",
			Level:   3,
			Runs: []Run{
				{RowGroup: 0, Start: 10, Length: 3},
				{RowGroup: 1, Start: 0, Length: 1},
			},
		},
		{
			Keyword: "com",
			Parent:  "example.com",
			Level:   3,
			Runs:    []Run{{RowGroup: 0, Start: 10, Length: 3}},
		},
	}

	data := EncodeChunk(entries, false)
	got, err := DecodeChunk(data, false)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestEncodeDecodeChunk_Global_IncludesColumnsBitset(t *testing.T) {
	entries := []Entry{
		{
			Keyword: "example",
			Parent:  "",
			Level:   0,
			Runs:    []Run{{RowGroup: 0, Start: 5, Length: 2}},
			Columns: []uint32{1, 3},
		},
	}

	data := EncodeChunk(entries, true)
	got, err := DecodeChunk(data, true)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestDecodeChunk_EmptyPayload_NoEntries(t *testing.T) {
	data := EncodeChunk(nil, false)
	got, err := DecodeChunk(data, false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeChunk_TruncatedPayload_Errors(t *testing.T) {
	entries := []Entry{{Keyword: "x", Runs: []Run{{RowGroup: 0, Start: 0, Length: 1}}}}
	data := EncodeChunk(entries, false)

	_, err := DecodeChunk(data[:len(data)-2], false)
	require.Error(t, err)
}

func TestDecodeChunk_MalformedBitsetLength_Errors(t *testing.T) {
	w := &byteWriter{}
	w.u32(1)
	w.str16("kw")
	w.str16("")
	w.u8(0)
	w.u32(0) // zero runs
	w.u32(3) // bitset length not a multiple of 4
	w.bytes([]byte{1, 2, 3})

	_, err := DecodeChunk(w.buf, true)
	require.Error(t, err)
}
