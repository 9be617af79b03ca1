package container

import "fmt"

// Run is a maximal (row_group, start, length) run of consecutive rows in a
// single row-group all containing the owning keyword.
type Run struct {
	RowGroup uint16
	Start    uint32
	Length   uint32
}

// Entry is one keyword's directory record within a chunk: its parent (by
// value, empty if none), split level, row occurrence runs, and — for
// column 0 only — the set of real column ids it occurred in.
type Entry struct {
	Keyword string
	Parent  string
	Level   uint8
	Runs    []Run
	Columns []uint32 // non-nil only for column 0 entries
}

// EncodeChunk serializes a chunk's entries (already sorted by Keyword) into
// the data.bin record format. isGlobal controls whether the trailing
// columns-bitset field is written for every entry.
func EncodeChunk(entries []Entry, isGlobal bool) []byte {
	w := &byteWriter{}
	w.u32(uint32(len(entries)))
	for _, e := range entries {
		w.str16(e.Keyword)
		w.str16(e.Parent)
		w.u8(e.Level)
		w.u32(uint32(len(e.Runs)))
		for _, run := range e.Runs {
			w.u16(run.RowGroup)
			w.u32(run.Start)
			w.u32(run.Length)
		}
		if isGlobal {
			w.u32(uint32(len(e.Columns) * 4))
			for _, c := range e.Columns {
				w.u32(c)
			}
		}
	}
	return w.buf
}

// DecodeChunk parses a chunk payload produced by EncodeChunk.
func DecodeChunk(data []byte, isGlobal bool) ([]Entry, error) {
	r := &byteReader{buf: data}
	count, err := r.u32()
	if err != nil {
		return nil, truncated(err)
	}

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		kw, err := r.str16()
		if err != nil {
			return nil, truncated(err)
		}
		parent, err := r.str16()
		if err != nil {
			return nil, truncated(err)
		}
		level, err := r.u8()
		if err != nil {
			return nil, truncated(err)
		}
		runCount, err := r.u32()
		if err != nil {
			return nil, truncated(err)
		}
		runs := make([]Run, 0, runCount)
		for j := uint32(0); j < runCount; j++ {
			rg, err := r.u16()
			if err != nil {
				return nil, truncated(err)
			}
			start, err := r.u32()
			if err != nil {
				return nil, truncated(err)
			}
			length, err := r.u32()
			if err != nil {
				return nil, truncated(err)
			}
			runs = append(runs, Run{RowGroup: rg, Start: start, Length: length})
		}

		e := Entry{Keyword: kw, Parent: parent, Level: level, Runs: runs}

		if isGlobal {
			bitsetLen, err := r.u32()
			if err != nil {
				return nil, truncated(err)
			}
			if bitsetLen%4 != 0 {
				return nil, fmt.Errorf("container: malformed column bitset length %d", bitsetLen)
			}
			n := bitsetLen / 4
			cols := make([]uint32, 0, n)
			for j := uint32(0); j < n; j++ {
				c, err := r.u32()
				if err != nil {
					return nil, truncated(err)
				}
				cols = append(cols, c)
			}
			e.Columns = cols
		}

		entries = append(entries, e)
	}
	return entries, nil
}
