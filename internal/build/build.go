// Package build implements the Index Builder: it streams string cells out
// of a parquetsrc.Source through the shredder, accumulates per-column
// keyword directories with RLE row runs and parent references, builds
// column filters, chunks the sorted directories, and serializes the result
// into a container.Header plus a data.bin payload.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kwindex/kwindex/internal/columnpool"
	"github.com/kwindex/kwindex/internal/container"
	kwerrors "github.com/kwindex/kwindex/internal/errors"
	"github.com/kwindex/kwindex/internal/filter"
	"github.com/kwindex/kwindex/internal/logging"
	"github.com/kwindex/kwindex/internal/parquetsrc"
	"github.com/kwindex/kwindex/internal/shred"
	"github.com/kwindex/kwindex/internal/storage"
)

// Options configures one build. Zero value is not valid; use DefaultOptions
// and override individual fields.
type Options struct {
	Excluded              map[string]bool
	FalsePositiveRate     float64
	ChunkSize             int
	BloomThreshold        int
	DelimiterTableVersion uint16
}

// DefaultOptions returns the standard build configuration: a 1% false
// positive rate, 4096-entry chunks, and the bloom/hash-set cardinality
// threshold used elsewhere in this package.
func DefaultOptions() Options {
	return Options{
		FalsePositiveRate:     0.01,
		ChunkSize:             4096,
		BloomThreshold:        filter.DefaultThreshold,
		DelimiterTableVersion: 1,
	}
}

func (o Options) validate() error {
	if o.FalsePositiveRate <= 0 || o.FalsePositiveRate >= 1 {
		return kwerrors.ConfigError(fmt.Sprintf("false positive rate must be in (0,1), got %f", o.FalsePositiveRate), nil)
	}
	if o.ChunkSize <= 0 {
		return kwerrors.ConfigError(fmt.Sprintf("chunk size must be positive, got %d", o.ChunkSize), nil)
	}
	return nil
}

// Builder runs one Index Builder pass.
type Builder struct {
	opts     Options
	shredder *shred.Shredder
	logger   *slog.Logger
}

// New creates a Builder bound to opts, logging nowhere unless WithLogger
// is also passed.
func New(opts Options, optFns ...func(*Builder)) *Builder {
	b := &Builder{opts: opts, shredder: shred.New(), logger: logging.Discard()}
	for _, fn := range optFns {
		fn(b)
	}
	return b
}

// WithLogger attaches logger to a Builder; nil is treated as discard.
func WithLogger(logger *slog.Logger) func(*Builder) {
	return func(b *Builder) { b.logger = logging.OrDiscard(logger) }
}

// Build discovers string columns in src, shreds every cell, and returns the
// resulting header and data.bin payload. sourceIdentity is stamped into the
// header for later staleness checks by the Validator.
func (b *Builder) Build(ctx context.Context, src *parquetsrc.Source, sourceIdentity storage.ObjectInfo) (*container.Header, []byte, error) {
	if err := b.opts.validate(); err != nil {
		return nil, nil, err
	}

	start := time.Now()

	if err := checkExcludedColumns(b.opts.Excluded, src.ColumnNames()); err != nil {
		return nil, nil, err
	}

	pool := columnpool.New()
	names := src.StringColumns(b.opts.Excluded)
	for _, name := range names {
		pool.Add(name)
	}
	b.logger.Info("build started", slog.Int("columns", len(names)), slog.Int("row_groups", src.NumRowGroups()))

	columnAccums := make(map[uint32]*accumulator, pool.Len())
	for _, id := range pool.IDs() {
		columnAccums[id] = newAccumulator()
	}
	global := newAccumulator()

	// Row groups are the outer loop so the global accumulator, fed once per
	// row group after every included column has been shredded, only ever
	// sees rows in strictly ascending order. A column-major traversal would
	// restart each column at row 0, handing global.add() a non-monotonic
	// (rowGroup, row) sequence for any keyword shared across columns.
	for rg := 0; rg < src.NumRowGroups(); rg++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		var events []rowEvent
		for _, name := range names {
			colID, _ := pool.ID(name)
			accum := columnAccums[colID]

			err := src.RowGroupColumnCells(rg, name, func(cell parquetsrc.Cell) error {
				for _, e := range b.shredder.Shred(cell.Value) {
					accum.add(uint16(rg), cell.Row, e.Keyword, e.Parent, e.Level)
					events = append(events, rowEvent{
						row:     cell.Row,
						keyword: e.Keyword,
						parent:  e.Parent,
						level:   e.Level,
						colID:   colID,
					})
				}
				return nil
			})
			if err != nil {
				return nil, nil, err
			}
		}

		sortRowEventsByRow(events)
		for _, ev := range events {
			global.add(uint16(rg), ev.row, ev.keyword, ev.parent, ev.level)
			global.addColumn(ev.keyword, ev.colID)
		}
	}

	header := &container.Header{
		Version: container.FormatVersion,
		Source: container.SourceIdentity{
			Size:         uint64(sourceIdentity.Size),
			ETag:         sourceIdentity.ETag,
			LastModified: uint64(sourceIdentity.LastModified),
		},
		Config: container.ConfigEcho{
			FalsePositiveRate:     b.opts.FalsePositiveRate,
			ChunkSize:             uint32(b.opts.ChunkSize),
			DelimiterTableVersion: b.opts.DelimiterTableVersion,
		},
		ColumnPool: pool.Entries(),
	}

	var data []byte

	appendColumn := func(colID uint32, accum *accumulator, isGlobal bool) error {
		entries := accum.finish(isGlobal)
		if len(entries) == 0 {
			return nil
		}

		f, err := filter.Build(keywordBytes(entries), b.opts.FalsePositiveRate, b.opts.BloomThreshold)
		if err != nil {
			return err
		}
		header.Filters = append(header.Filters, container.ColumnFilter{
			ColumnID: colID,
			Kind:     f.Kind(),
			Payload:  f.Marshal(),
		})

		chunks, payload := chunkEntries(entries, b.opts.ChunkSize, isGlobal, uint64(len(data)))
		data = append(data, payload...)
		header.ChunkIndex = append(header.ChunkIndex, container.ColumnChunkIndex{ColumnID: colID, Chunks: chunks})
		return nil
	}

	if err := appendColumn(columnpool.GlobalColumnID, global, true); err != nil {
		return nil, nil, err
	}
	for _, id := range pool.IDs() {
		if err := appendColumn(id, columnAccums[id], false); err != nil {
			return nil, nil, err
		}
	}

	b.logger.Info("build finished",
		slog.Int("columns", len(names)),
		slog.Int("filters", len(header.Filters)),
		slog.Duration("elapsed", time.Since(start)))

	return header, data, nil
}

// checkExcludedColumns returns a ConfigUnknownColumn error for the first
// excluded name absent from schema, the full set of discovered column
// names (string or not).
func checkExcludedColumns(excluded map[string]bool, schema []string) error {
	known := make(map[string]bool, len(schema))
	for _, name := range schema {
		known[name] = true
	}
	names := make([]string, 0, len(excluded))
	for name := range excluded {
		names = append(names, name)
	}
	sortStrings(names)
	for _, name := range names {
		if !known[name] {
			return kwerrors.UnknownColumnError(name)
		}
	}
	return nil
}

func keywordBytes(entries []container.Entry) [][]byte {
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = []byte(e.Keyword)
	}
	return out
}

// chunkEntries groups sorted entries into chunkSize-sized chunks, encodes
// each chunk's payload, and returns per-chunk (first, last, offset, length)
// metadata with offsets relative to baseOffset (the data blob's current
// length, so chunks from different columns concatenate correctly).
func chunkEntries(entries []container.Entry, chunkSize int, isGlobal bool, baseOffset uint64) ([]container.ChunkMeta, []byte) {
	var metas []container.ChunkMeta
	var payload []byte

	for start := 0; start < len(entries); start += chunkSize {
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]
		encoded := container.EncodeChunk(chunk, isGlobal)

		metas = append(metas, container.ChunkMeta{
			FirstKey: chunk[0].Keyword,
			LastKey:  chunk[len(chunk)-1].Keyword,
			Offset:   baseOffset + uint64(len(payload)),
			Length:   uint32(len(encoded)),
		})
		payload = append(payload, encoded...)
	}

	return metas, payload
}
