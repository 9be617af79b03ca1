package container

import (
	"bytes"
	"context"
	"sort"

	"github.com/kwindex/kwindex/internal/storage"
)

// HeaderFileName and DataFileName are the two files that make up an index,
// always written/read together under the same directory or URI prefix.
const (
	HeaderFileName = "filters.rkyv"
	DataFileName   = "data.bin"
)

// Writer persists a Header and its accompanying chunk payloads to a Storage
// Adapter. The data file is written before the header so that a reader
// never observes a header whose offsets point past the end of data.bin.
type Writer struct {
	adapter storage.Adapter
	prefix  string
}

// NewWriter returns a Writer that stores index files under prefix (a
// directory path for a LocalAdapter, or a URI prefix for an HTTPAdapter).
func NewWriter(adapter storage.Adapter, prefix string) *Writer {
	return &Writer{adapter: adapter, prefix: prefix}
}

func (w *Writer) join(name string) string {
	if w.prefix == "" {
		return name
	}
	return w.prefix + "/" + name
}

// Write persists data (the concatenated chunk payloads) and then header.
func (w *Writer) Write(ctx context.Context, header *Header, data []byte) error {
	if err := w.adapter.Put(ctx, w.join(DataFileName), bytes.NewReader(data)); err != nil {
		return err
	}
	return w.adapter.Put(ctx, w.join(HeaderFileName), bytes.NewReader(header.Marshal()))
}

// Reader loads a Header eagerly and serves chunk payloads lazily via byte
// range reads against the data file, one range per touched chunk.
type Reader struct {
	adapter storage.Adapter
	prefix  string
	Header  *Header
}

// OpenReader loads and parses the header at prefix. It does not read any
// chunk payloads; those are fetched on demand via Chunk.
func OpenReader(ctx context.Context, adapter storage.Adapter, prefix string) (*Reader, error) {
	r := &Reader{adapter: adapter, prefix: prefix}
	raw, err := adapter.Get(ctx, r.join(HeaderFileName), 0, -1)
	if err != nil {
		return nil, err
	}
	h, err := Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	r.Header = h
	return r, nil
}

func (r *Reader) join(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + "/" + name
}

// DataIdentity returns the current identity of this index's own data.bin
// (under prefix), not of the source Parquet file that Header.Source describes.
func (r *Reader) DataIdentity(ctx context.Context) (storage.ObjectInfo, error) {
	return r.adapter.Head(ctx, r.join(DataFileName))
}

// Chunk fetches and decodes a single chunk payload.
func (r *Reader) Chunk(ctx context.Context, columnID uint32, meta ChunkMeta, isGlobal bool) ([]Entry, error) {
	raw, err := r.adapter.Get(ctx, r.join(DataFileName), int64(meta.Offset), int64(meta.Length))
	if err != nil {
		return nil, err
	}
	return DecodeChunk(raw, isGlobal)
}

// ColumnIndex returns the chunk index for columnID, or a zero value and false
// if the column has none (e.g. it was excluded or contains no string data).
func (h *Header) ColumnIndex(columnID uint32) (ColumnChunkIndex, bool) {
	for _, ci := range h.ChunkIndex {
		if ci.ColumnID == columnID {
			return ci, true
		}
	}
	return ColumnChunkIndex{}, false
}

// ColumnFilterFor returns the serialized filter registered for columnID.
func (h *Header) ColumnFilterFor(columnID uint32) (ColumnFilter, bool) {
	for _, f := range h.Filters {
		if f.ColumnID == columnID {
			return f, true
		}
	}
	return ColumnFilter{}, false
}

// FindChunk locates the chunk whose [FirstKey, LastKey] range could contain
// key, via binary search over chunks (which must be sorted by FirstKey with
// non-overlapping ranges). It returns false if no chunk's range covers key.
func FindChunk(chunks []ChunkMeta, key string) (ChunkMeta, bool) {
	i := sort.Search(len(chunks), func(i int) bool {
		return chunks[i].LastKey >= key
	})
	if i == len(chunks) || key < chunks[i].FirstKey || key > chunks[i].LastKey {
		return ChunkMeta{}, false
	}
	return chunks[i], true
}
