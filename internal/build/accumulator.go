package build

import "github.com/kwindex/kwindex/internal/container"

// entryState is the in-progress accumulation for one keyword within one
// column (or within the global column 0): its parent/level (fixed on first
// sight, since shredding is deterministic) and its growing RLE run list.
type entryState struct {
	parent  string
	level   uint8
	runs    []container.Run
	open    *container.Run
	lastRG  uint16
	lastRow uint32
	hasLast bool
	columns map[uint32]struct{} // non-nil only for the global accumulator
}

// rowEvent is one shredded keyword occurrence within a single row group,
// buffered so a row group's events can be replayed into the global
// accumulator in row-ascending order regardless of which column produced
// them first.
type rowEvent struct {
	row     uint32
	keyword string
	parent  string
	level   uint8
	colID   uint32
}

// accumulator collects keyword occurrences for a single column id across
// every row group, in the ascending (row_group, row) order the builder
// feeds it, coalescing them into maximal non-spanning RLE runs.
type accumulator struct {
	entries map[string]*entryState
}

func newAccumulator() *accumulator {
	return &accumulator{entries: make(map[string]*entryState)}
}

func (a *accumulator) get(keyword string) *entryState {
	e, ok := a.entries[keyword]
	if !ok {
		e = &entryState{}
		a.entries[keyword] = e
	}
	return e
}

// add records one occurrence of keyword (with its parent/level) at
// (rowGroup, row). Consecutive rows in the same row group extend the
// current open run; a row-group boundary or a gap starts a new one.
func (a *accumulator) add(rowGroup uint16, row uint32, keyword, parent string, level uint8) {
	e := a.get(keyword)
	if !e.hasLast {
		e.parent = parent
		e.level = level
	}

	if e.hasLast && e.lastRG == rowGroup && e.lastRow == row {
		return // already counted this (row_group, row) for this keyword
	}
	e.hasLast = true
	e.lastRG, e.lastRow = rowGroup, row

	if e.open != nil && e.open.RowGroup == rowGroup && uint32(e.open.Start)+e.open.Length == row {
		e.open.Length++
		return
	}
	a.flushOpen(e)
	e.open = &container.Run{RowGroup: rowGroup, Start: row, Length: 1}
}

// addColumn records, for the global accumulator only, that colID
// contributed an occurrence of keyword somewhere in the file.
func (a *accumulator) addColumn(keyword string, colID uint32) {
	e := a.get(keyword)
	if e.columns == nil {
		e.columns = make(map[uint32]struct{})
	}
	e.columns[colID] = struct{}{}
}

func (a *accumulator) flushOpen(e *entryState) {
	if e.open != nil {
		e.runs = append(e.runs, *e.open)
		e.open = nil
	}
}

// finish flushes every open run and returns the column's entries sorted
// byte-ascending by keyword, ready for chunking.
func (a *accumulator) finish(isGlobal bool) []container.Entry {
	keywords := make([]string, 0, len(a.entries))
	for k := range a.entries {
		keywords = append(keywords, k)
	}
	sortStrings(keywords)

	out := make([]container.Entry, 0, len(keywords))
	for _, k := range keywords {
		e := a.entries[k]
		a.flushOpen(e)
		entry := container.Entry{
			Keyword: k,
			Parent:  e.parent,
			Level:   e.level,
			Runs:    e.runs,
		}
		if isGlobal {
			cols := make([]uint32, 0, len(e.columns))
			for c := range e.columns {
				cols = append(cols, c)
			}
			sortUint32s(cols)
			entry.Columns = cols
		}
		out = append(out, entry)
	}
	return out
}
