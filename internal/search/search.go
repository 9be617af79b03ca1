// Package search implements the Search Engine: global reject, per-column
// filter reject, chunked binary search, exact match, and phrase
// verification via parent-chain ancestry, with an opt-in data-file fallback
// for inconclusive phrase checks.
package search

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/kwindex/kwindex/internal/columnpool"
	"github.com/kwindex/kwindex/internal/container"
	kwerrors "github.com/kwindex/kwindex/internal/errors"
	"github.com/kwindex/kwindex/internal/filter"
	"github.com/kwindex/kwindex/internal/logging"
	"github.com/kwindex/kwindex/internal/parquetsrc"
	"github.com/kwindex/kwindex/internal/shred"
	"github.com/kwindex/kwindex/internal/storage"
	"github.com/kwindex/kwindex/internal/validate"
)

// Options configures a single Search call.
type Options struct {
	// Columns restricts the search to these column names. Empty means all
	// columns reachable from column 0's union.
	Columns []string

	// Verify enables the data-file substring fallback for phrase matches
	// that parent-chain verification cannot confirm from index state alone.
	Verify bool

	// AcceptStale skips the freshness check against the current data file.
	AcceptStale bool
}

const chunkCacheSize = 64

type chunkKey struct {
	ColumnID uint32
	Offset   uint64
}

// Searcher holds one opened index and its private, non-concurrency-safe
// scratch state (decoded-chunk cache). Create one per caller; do not share
// across concurrent goroutines.
type Searcher struct {
	reader   *container.Reader
	adapter  storage.Adapter
	dataPath string
	pool     *columnpool.Pool
	filters  map[uint32]filter.Filter
	cache    *lru.Cache[chunkKey, []container.Entry]
	logger   *slog.Logger
}

// Open loads the index sidecar for the data file at dataPath (sidecar is
// dataPath + ".index"). Logs nowhere unless WithLogger is also passed.
func Open(ctx context.Context, adapter storage.Adapter, dataPath string, optFns ...func(*Searcher)) (*Searcher, error) {
	reader, err := container.OpenReader(ctx, adapter, dataPath+".index")
	if err != nil {
		return nil, err
	}
	pool, err := columnpool.FromEntries(reader.Header.ColumnPool)
	if err != nil {
		return nil, kwerrors.Wrap(kwerrors.ErrCodeBadMagic, err)
	}

	filters := make(map[uint32]filter.Filter, len(reader.Header.Filters))
	for _, cf := range reader.Header.Filters {
		f, err := filter.Unmarshal(cf.Kind, cf.Payload)
		if err != nil {
			return nil, kwerrors.Wrap(kwerrors.ErrCodeTruncated, err)
		}
		filters[cf.ColumnID] = f
	}

	cache, _ := lru.New[chunkKey, []container.Entry](chunkCacheSize)
	s := &Searcher{
		reader:   reader,
		adapter:  adapter,
		dataPath: dataPath,
		pool:     pool,
		filters:  filters,
		cache:    cache,
		logger:   logging.Discard(),
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s, nil
}

// WithLogger attaches logger to a Searcher; nil is treated as discard.
func WithLogger(logger *slog.Logger) func(*Searcher) {
	return func(s *Searcher) { s.logger = logging.OrDiscard(logger) }
}

// Search runs the global reject, per-column filter reject, chunked lookup,
// and phrase verification procedure against query.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) (*Result, error) {
	if !opts.AcceptStale {
		if err := validate.Check(ctx, s.adapter, s.dataPath, s.reader.Header); err != nil {
			return nil, err
		}
	}

	tokens := shred.ShredQuery(query)
	if len(tokens) == 0 {
		return nil, kwerrors.EmptyQuery("query shreds to zero tokens")
	}

	globalFilter, hasGlobal := s.filters[columnpool.GlobalColumnID]
	if hasGlobal {
		for _, t := range tokens {
			if !globalFilter.MayContain([]byte(t.Text)) {
				s.logger.Debug("global filter rejected query", slog.String("query", query))
				return &Result{NoMatch: true}, nil
			}
		}
	}

	candidateIDs, err := s.resolveCandidateColumns(opts.Columns)
	if err != nil {
		return nil, err
	}

	var survivors []uint32
	for _, colID := range candidateIDs {
		f, ok := s.filters[colID]
		if !ok {
			continue
		}
		ok = true
		for _, t := range tokens {
			if !f.MayContain([]byte(t.Text)) {
				ok = false
				break
			}
		}
		if ok {
			survivors = append(survivors, colID)
		}
	}
	if len(survivors) == 0 {
		s.logger.Debug("per-column filters rejected query", slog.String("query", query), slog.Int("candidates", len(candidateIDs)))
		return &Result{NoMatch: true}, nil
	}
	s.logger.Debug("searching", slog.String("query", query), slog.Int("survivors", len(survivors)))

	type columnLookup struct {
		colID   uint32
		entries []*container.Entry // parallel to tokens; nil entry means exact miss
	}
	results := make([]columnLookup, len(survivors))

	g, gctx := errgroup.WithContext(ctx)
	for i, colID := range survivors {
		i, colID := i, colID
		g.Go(func() error {
			entries := make([]*container.Entry, len(tokens))
			for j, t := range tokens {
				e, err := s.lookupEntry(gctx, colID, t.Text, false)
				if err != nil {
					return err
				}
				entries[j] = e
			}
			results[i] = columnLookup{colID: colID, entries: entries}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	verified := newMatch()
	candidate := newMatch()

	phraseRoot := query
	singleToken := len(tokens) == 1

	for _, res := range results {
		name := s.pool.Name(res.colID)

		var allFound = true
		for _, e := range res.entries {
			if e == nil {
				allFound = false
				break
			}
		}
		if !allFound {
			continue
		}

		if singleToken {
			verified.add(name, expandRuns(res.entries[0].Runs))
			continue
		}

		rowSets := make([][]RowOccurrence, len(res.entries))
		for j, e := range res.entries {
			rowSets[j] = expandRuns(e.Runs)
		}
		common := intersectRows(rowSets)
		if len(common) == 0 {
			continue
		}

		var verifiedRows, candidateRows []RowOccurrence
		for _, row := range common {
			confirmed := false
			for _, e := range res.entries {
				ok, err := s.ancestorChainContains(ctx, res.colID, *e, phraseRoot)
				if err != nil {
					return nil, err
				}
				if ok {
					confirmed = true
					break
				}
			}
			if confirmed {
				verifiedRows = append(verifiedRows, row)
				continue
			}
			if opts.Verify {
				ok, err := s.verifyAgainstSourceCell(ctx, name, row, query)
				if err != nil {
					return nil, err
				}
				if ok {
					candidateRows = append(candidateRows, row)
				}
			}
		}
		verified.add(name, verifiedRows)
		candidate.add(name, candidateRows)
	}

	result := &Result{}
	if !verified.empty() {
		result.Verified = verified
	}
	if !candidate.empty() {
		result.Candidate = candidate
	}
	if result.Verified == nil && result.Candidate == nil {
		result.NoMatch = true
	}
	return result, nil
}

// resolveCandidateColumns returns the real column ids to probe: the
// caller's restriction sorted by id, or every real column in the pool.
func (s *Searcher) resolveCandidateColumns(restriction []string) ([]uint32, error) {
	if len(restriction) == 0 {
		return s.pool.IDs(), nil
	}
	ids := make([]uint32, 0, len(restriction))
	for _, name := range restriction {
		id, ok := s.pool.ID(name)
		if !ok {
			return nil, kwerrors.ConfigError("unknown column in restriction: "+name, nil)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// lookupEntry binary-searches columnID's chunk index for the chunk that
// could hold keyword, decodes it (via cache), and exact-matches keyword
// within it.
func (s *Searcher) lookupEntry(ctx context.Context, columnID uint32, keyword string, isGlobal bool) (*container.Entry, error) {
	ci, ok := s.reader.Header.ColumnIndex(columnID)
	if !ok {
		return nil, nil
	}
	meta, ok := container.FindChunk(ci.Chunks, keyword)
	if !ok {
		return nil, nil
	}

	entries, err := s.decodedChunk(ctx, columnID, meta, isGlobal)
	if err != nil {
		return nil, err
	}

	i := sort.Search(len(entries), func(i int) bool { return entries[i].Keyword >= keyword })
	if i < len(entries) && entries[i].Keyword == keyword {
		e := entries[i]
		return &e, nil
	}
	return nil, nil
}

func (s *Searcher) decodedChunk(ctx context.Context, columnID uint32, meta container.ChunkMeta, isGlobal bool) ([]container.Entry, error) {
	key := chunkKey{ColumnID: columnID, Offset: meta.Offset}
	if entries, ok := s.cache.Get(key); ok {
		return entries, nil
	}
	entries, err := s.reader.Chunk(ctx, columnID, meta, isGlobal)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, entries)
	return entries, nil
}

// ancestorChainContains walks leaf's recorded parent pointers (each
// resolved by a fresh directory lookup in the same column, per the design's
// pointer-free DAG) up to MaxLevel hops, reporting whether root appears.
func (s *Searcher) ancestorChainContains(ctx context.Context, columnID uint32, leaf container.Entry, root string) (bool, error) {
	current := leaf
	for i := 0; i <= shred.MaxLevel; i++ {
		if current.Parent == root {
			return true, nil
		}
		if current.Parent == "" {
			return false, nil
		}
		next, err := s.lookupEntry(ctx, columnID, current.Parent, columnID == columnpool.GlobalColumnID)
		if err != nil {
			return false, err
		}
		if next == nil {
			return false, nil
		}
		current = *next
	}
	return false, nil
}

// verifyAgainstSourceCell re-reads the cell at (column, row) directly from
// the data file and performs a literal substring check, for phrase matches
// that parent-chain verification could not confirm from index state alone.
func (s *Searcher) verifyAgainstSourceCell(ctx context.Context, column string, row RowOccurrence, query string) (bool, error) {
	info, err := s.adapter.Head(ctx, s.dataPath)
	if err != nil {
		return false, err
	}
	raw, err := s.adapter.Get(ctx, s.dataPath, 0, info.Size)
	if err != nil {
		return false, err
	}

	src, err := parquetsrc.Open(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return false, err
	}

	var found bool
	err = src.RowGroupColumnCells(int(row.RowGroup), column, func(c parquetsrc.Cell) error {
		if c.Row == row.Row {
			found = strings.Contains(c.Value, query)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func expandRuns(runs []container.Run) []RowOccurrence {
	var out []RowOccurrence
	for _, r := range runs {
		for i := uint32(0); i < r.Length; i++ {
			out = append(out, RowOccurrence{RowGroup: r.RowGroup, Row: r.Start + i})
		}
	}
	return out
}

// intersectRows returns the rows common to every set in sets.
func intersectRows(sets [][]RowOccurrence) []RowOccurrence {
	if len(sets) == 0 {
		return nil
	}
	counts := make(map[RowOccurrence]int)
	for _, set := range sets {
		seen := make(map[RowOccurrence]bool, len(set))
		for _, r := range set {
			if !seen[r] {
				seen[r] = true
				counts[r]++
			}
		}
	}
	var out []RowOccurrence
	for r, c := range counts {
		if c == len(sets) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RowGroup != out[j].RowGroup {
			return out[i].RowGroup < out[j].RowGroup
		}
		return out[i].Row < out[j].Row
	})
	return out
}
