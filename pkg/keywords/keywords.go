// Package keywords is the public API of the keyword index: build a sidecar
// over a Parquet file, search it, and validate it against the current
// source file. It composes internal/build, internal/container,
// internal/search, internal/storage, and internal/validate behind three
// entry points.
package keywords

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/kwindex/kwindex/internal/build"
	"github.com/kwindex/kwindex/internal/container"
	"github.com/kwindex/kwindex/internal/parquetsrc"
	"github.com/kwindex/kwindex/internal/search"
	"github.com/kwindex/kwindex/internal/storage"
	"github.com/kwindex/kwindex/internal/validate"
)

// BuildOptions configures BuildAndSaveIndex.
type BuildOptions struct {
	Excluded              []string
	FalsePositiveRate     float64
	ChunkSize             int
	BloomThreshold        int
	DelimiterTableVersion uint16
}

// DefaultBuildOptions mirrors build.DefaultOptions.
func DefaultBuildOptions() BuildOptions {
	d := build.DefaultOptions()
	return BuildOptions{
		FalsePositiveRate:     d.FalsePositiveRate,
		ChunkSize:             d.ChunkSize,
		BloomThreshold:        d.BloomThreshold,
		DelimiterTableVersion: d.DelimiterTableVersion,
	}
}

func (o BuildOptions) toInternal() build.Options {
	excluded := make(map[string]bool, len(o.Excluded))
	for _, name := range o.Excluded {
		excluded[name] = true
	}
	return build.Options{
		Excluded:              excluded,
		FalsePositiveRate:     o.FalsePositiveRate,
		ChunkSize:             o.ChunkSize,
		BloomThreshold:        o.BloomThreshold,
		DelimiterTableVersion: o.DelimiterTableVersion,
	}
}

// BuildAndSaveIndex reads the Parquet file at dataPath (via adapter),
// builds the keyword index, and persists it as the sidecar at
// dataPath+".index". logger may be nil; build events are discarded then.
func BuildAndSaveIndex(ctx context.Context, adapter storage.Adapter, dataPath string, opts BuildOptions, logger *slog.Logger) error {
	info, err := adapter.Head(ctx, dataPath)
	if err != nil {
		return err
	}
	raw, err := adapter.Get(ctx, dataPath, 0, info.Size)
	if err != nil {
		return err
	}

	src, err := parquetsrc.Open(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return err
	}

	header, data, err := build.New(opts.toInternal(), build.WithLogger(logger)).Build(ctx, src, info)
	if err != nil {
		return err
	}

	w := container.NewWriter(adapter, dataPath+".index")
	return w.Write(ctx, header, data)
}

// SearchOptions configures Search.
type SearchOptions struct {
	Columns     []string
	Verify      bool
	AcceptStale bool
}

func (o SearchOptions) toInternal() search.Options {
	return search.Options{Columns: o.Columns, Verify: o.Verify, AcceptStale: o.AcceptStale}
}

// SearchResult re-exports the engine's result shape for external callers.
type SearchResult = search.Result

// RowOccurrence re-exports the engine's row position type.
type RowOccurrence = search.RowOccurrence

// Match re-exports the engine's per-view (verified/candidate) result shape.
type Match = search.Match

// Search opens the sidecar for dataPath and runs query against it. logger
// may be nil; search events are discarded then.
func Search(ctx context.Context, adapter storage.Adapter, dataPath, query string, opts SearchOptions, logger *slog.Logger) (*SearchResult, error) {
	s, err := search.Open(ctx, adapter, dataPath, search.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, query, opts.toInternal())
}

// ValidateIndex checks the sidecar at dataPath+".index" against the current
// data file identity, returning a MissingIndex error if no sidecar exists
// and a StaleIndex error if it no longer matches the data file.
func ValidateIndex(ctx context.Context, adapter storage.Adapter, dataPath string) error {
	reader, err := container.OpenReader(ctx, adapter, dataPath+".index")
	if err != nil {
		return err
	}
	return validate.Check(ctx, adapter, dataPath, reader.Header)
}
