// Package parquetsrc adapts github.com/segmentio/parquet-go into the narrow
// surface the Index Builder needs: list string columns, then stream each
// row-group's string cells with their row numbers.
package parquetsrc

import (
	"fmt"
	"io"

	"github.com/segmentio/parquet-go"

	kwerrors "github.com/kwindex/kwindex/internal/errors"
)

// Cell is one (row, value) pair read from a single string column within a
// single row group. Row is relative to the start of its row group.
type Cell struct {
	Row   uint32
	Value string
}

// Source wraps an opened Parquet file and exposes only the string columns,
// in stable schema discovery order.
type Source struct {
	file         *parquet.File
	columnNames  []string // leaf column path, in Value.Column() index order
	stringCols   map[int]string
	stringColIdx []int // indices into columnNames that are string columns, in discovery order
}

// Open reads a Parquet file's footer and schema from r (size bytes long).
func Open(r io.ReaderAt, size int64) (*Source, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, kwerrors.FormatError(kwerrors.ErrCodeSourceUnreadable, "failed to open parquet file", err)
	}

	paths := f.Schema().Columns()
	names := make([]string, len(paths))
	stringCols := make(map[int]string)
	var stringColIdx []int

	for i, path := range paths {
		name := leafName(path)
		names[i] = name

		leaf, ok := f.Schema().Lookup(path...)
		if !ok {
			continue
		}
		if isStringKind(leaf.Node.Type().Kind()) {
			stringCols[i] = name
			stringColIdx = append(stringColIdx, i)
		}
	}

	return &Source{file: f, columnNames: names, stringCols: stringCols, stringColIdx: stringColIdx}, nil
}

func leafName(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

func isStringKind(k parquet.Kind) bool {
	return k == parquet.ByteArray || k == parquet.FixedLenByteArray
}

// StringColumns returns the names of columns this builder will index, in
// stable schema discovery order, excluding any name present in exclude.
func (s *Source) StringColumns(exclude map[string]bool) []string {
	names := make([]string, 0, len(s.stringColIdx))
	for _, idx := range s.stringColIdx {
		name := s.columnNames[idx]
		if exclude[name] {
			continue
		}
		names = append(names, name)
	}
	return names
}

// ColumnNames returns every leaf column name in the source schema, in
// discovery order, including non-string columns. Used to validate that an
// excluded column name actually exists.
func (s *Source) ColumnNames() []string {
	names := make([]string, len(s.columnNames))
	copy(names, s.columnNames)
	return names
}

// NumRowGroups returns the number of row groups in the file.
func (s *Source) NumRowGroups() int {
	return len(s.file.RowGroups())
}

// RowGroupColumnCells streams (row, value) pairs for columnName within
// row group rgIndex, in ascending row order, invoking fn for each non-null
// cell. Iteration stops at the first error fn returns.
func (s *Source) RowGroupColumnCells(rgIndex int, columnName string, fn func(Cell) error) error {
	rowGroups := s.file.RowGroups()
	if rgIndex < 0 || rgIndex >= len(rowGroups) {
		return fmt.Errorf("parquetsrc: row group index %d out of range", rgIndex)
	}
	rg := rowGroups[rgIndex]

	colIndex := -1
	for i, name := range s.columnNames {
		if name == columnName {
			if _, ok := s.stringCols[i]; ok {
				colIndex = i
				break
			}
		}
	}
	if colIndex < 0 {
		return fmt.Errorf("parquetsrc: column %q is not a known string column", columnName)
	}

	rows := rg.Rows()
	defer rows.Close()

	buf := make([]parquet.Row, 256)
	var rowNum uint32

	for {
		n, err := rows.ReadRows(buf)
		for i := 0; i < n; i++ {
			row := buf[i]
			for _, v := range row {
				if v.Column() != colIndex {
					continue
				}
				if v.IsNull() {
					break
				}
				if ferr := fn(Cell{Row: rowNum, Value: string(v.ByteArray())}); ferr != nil {
					return ferr
				}
				break
			}
			rowNum++
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return kwerrors.IoError("failed reading parquet row group", err, false)
		}
		if n == 0 {
			return nil
		}
	}
}
