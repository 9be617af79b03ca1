package container

import (
	"fmt"

	kwerrors "github.com/kwindex/kwindex/internal/errors"
	"github.com/kwindex/kwindex/internal/columnpool"
	"github.com/kwindex/kwindex/internal/filter"
)

// SourceIdentity is the (size, etag, mtime) tuple the Validator compares
// against the current data file to detect staleness.
type SourceIdentity struct {
	Size         uint64
	ETag         string
	LastModified uint64
}

// ConfigEcho records the build-time configuration. Searches do not compare
// it against their own settings.
type ConfigEcho struct {
	FalsePositiveRate     float64
	ChunkSize             uint32
	DelimiterTableVersion uint16
}

// ColumnFilter pairs a column id with its tagged, serialized filter.
type ColumnFilter struct {
	ColumnID uint32
	Kind     filter.Kind
	Payload  []byte
}

// ChunkMeta describes one chunk's key range and location in data.bin.
type ChunkMeta struct {
	FirstKey string
	LastKey  string
	Offset   uint64
	Length   uint32
}

// ColumnChunkIndex is one column's ordered, binary-searchable chunk list.
type ColumnChunkIndex struct {
	ColumnID uint32
	Chunks   []ChunkMeta
}

// Header is the full contents of filters.rkyv.
type Header struct {
	Version     uint32
	Source      SourceIdentity
	Config      ConfigEcho
	ColumnPool  []columnpool.Entry
	Filters     []ColumnFilter
	ChunkIndex  []ColumnChunkIndex
}

// Marshal encodes the header as magic, version, column pool, source
// identity, config echo, per-column filters, and per-column chunk indices —
// all little-endian.
func (h *Header) Marshal() []byte {
	w := &byteWriter{}
	w.bytes(Magic[:])
	w.u32(h.Version)

	w.u32(uint32(len(h.ColumnPool)))
	for _, e := range h.ColumnPool {
		w.u32(e.ID)
		w.str16(e.Name)
	}

	w.u64(h.Source.Size)
	w.str16(h.Source.ETag)
	w.u64(h.Source.LastModified)

	w.f64(h.Config.FalsePositiveRate)
	w.u32(h.Config.ChunkSize)
	w.u16(h.Config.DelimiterTableVersion)

	w.u32(uint32(len(h.Filters)))
	for _, f := range h.Filters {
		w.u32(f.ColumnID)
		w.u8(uint8(f.Kind))
		w.u32(uint32(len(f.Payload)))
		w.bytes(f.Payload)
	}

	w.u32(uint32(len(h.ChunkIndex)))
	for _, ci := range h.ChunkIndex {
		w.u32(ci.ColumnID)
		w.u32(uint32(len(ci.Chunks)))
		for _, c := range ci.Chunks {
			w.str16(c.FirstKey)
			w.str16(c.LastKey)
			w.u64(c.Offset)
			w.u32(c.Length)
		}
	}

	return w.buf
}

// Unmarshal decodes a header previously produced by Marshal. It validates
// the magic and version tag before touching the rest of the payload.
func Unmarshal(data []byte) (*Header, error) {
	r := &byteReader{buf: data}

	magic, err := r.bytesN(4)
	if err != nil {
		return nil, kwerrors.Wrap(kwerrors.ErrCodeTruncated, err)
	}
	if string(magic) != string(Magic[:]) {
		return nil, kwerrors.New(kwerrors.ErrCodeBadMagic, fmt.Sprintf("unexpected magic %q", magic), nil)
	}

	version, err := r.u32()
	if err != nil {
		return nil, kwerrors.Wrap(kwerrors.ErrCodeTruncated, err)
	}
	if version != FormatVersion {
		return nil, kwerrors.New(kwerrors.ErrCodeVersionMismatch,
			fmt.Sprintf("index format version %d, expected %d", version, FormatVersion), nil)
	}

	h := &Header{Version: version}

	poolCount, err := r.u32()
	if err != nil {
		return nil, truncated(err)
	}
	for i := uint32(0); i < poolCount; i++ {
		id, err := r.u32()
		if err != nil {
			return nil, truncated(err)
		}
		name, err := r.str16()
		if err != nil {
			return nil, truncated(err)
		}
		h.ColumnPool = append(h.ColumnPool, columnpool.Entry{ID: id, Name: name})
	}

	if h.Source.Size, err = r.u64(); err != nil {
		return nil, truncated(err)
	}
	if h.Source.ETag, err = r.str16(); err != nil {
		return nil, truncated(err)
	}
	if h.Source.LastModified, err = r.u64(); err != nil {
		return nil, truncated(err)
	}

	if h.Config.FalsePositiveRate, err = r.f64(); err != nil {
		return nil, truncated(err)
	}
	if h.Config.ChunkSize, err = r.u32(); err != nil {
		return nil, truncated(err)
	}
	if h.Config.DelimiterTableVersion, err = r.u16(); err != nil {
		return nil, truncated(err)
	}

	filterCount, err := r.u32()
	if err != nil {
		return nil, truncated(err)
	}
	for i := uint32(0); i < filterCount; i++ {
		colID, err := r.u32()
		if err != nil {
			return nil, truncated(err)
		}
		kind, err := r.u8()
		if err != nil {
			return nil, truncated(err)
		}
		plen, err := r.u32()
		if err != nil {
			return nil, truncated(err)
		}
		payload, err := r.bytesN(int(plen))
		if err != nil {
			return nil, truncated(err)
		}
		h.Filters = append(h.Filters, ColumnFilter{
			ColumnID: colID,
			Kind:     filter.Kind(kind),
			Payload:  append([]byte(nil), payload...),
		})
	}

	chunkIdxCount, err := r.u32()
	if err != nil {
		return nil, truncated(err)
	}
	for i := uint32(0); i < chunkIdxCount; i++ {
		colID, err := r.u32()
		if err != nil {
			return nil, truncated(err)
		}
		chunkCount, err := r.u32()
		if err != nil {
			return nil, truncated(err)
		}
		cci := ColumnChunkIndex{ColumnID: colID}
		for j := uint32(0); j < chunkCount; j++ {
			first, err := r.str16()
			if err != nil {
				return nil, truncated(err)
			}
			last, err := r.str16()
			if err != nil {
				return nil, truncated(err)
			}
			offset, err := r.u64()
			if err != nil {
				return nil, truncated(err)
			}
			length, err := r.u32()
			if err != nil {
				return nil, truncated(err)
			}
			cci.Chunks = append(cci.Chunks, ChunkMeta{FirstKey: first, LastKey: last, Offset: offset, Length: length})
		}
		h.ChunkIndex = append(h.ChunkIndex, cci)
	}

	return h, nil
}

func truncated(err error) error {
	return kwerrors.Wrap(kwerrors.ErrCodeTruncated, err)
}
